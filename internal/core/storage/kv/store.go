// Package kv 提供带前缀隔离的 KV 存储
//
// Store 在存储引擎之上为所有键自动加前缀，各组件以不同前缀共享同一个引擎：
//
//	eng, _ := badger.Open(badger.Options{})
//	book := kv.New(eng, []byte("t/"))
//	book.PutJSON([]byte("<topic>/<addr>"), rec) // 实际键: t/<topic>/<addr>
package kv

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/dep2p/go-topicswarm/internal/core/storage/engine"
)

// Store 带前缀隔离的 KV 存储
type Store struct {
	engine engine.Engine
	prefix []byte
}

// New 创建 Store
func New(eng engine.Engine, prefix []byte) *Store {
	return &Store{engine: eng, prefix: prefix}
}

// Sub 在当前前缀之后追加子前缀
func (s *Store) Sub(prefix []byte) *Store {
	return New(s.engine, s.prefixKey(prefix))
}

func (s *Store) prefixKey(key []byte) []byte {
	prefixed := make([]byte, len(s.prefix)+len(key))
	copy(prefixed, s.prefix)
	copy(prefixed[len(s.prefix):], key)
	return prefixed
}

// Get 获取指定键的值
func (s *Store) Get(key []byte) ([]byte, error) {
	return s.engine.Get(s.prefixKey(key))
}

// Put 设置键值对
func (s *Store) Put(key, value []byte) error {
	return s.engine.Put(s.prefixKey(key), value)
}

// Delete 删除指定键
func (s *Store) Delete(key []byte) error {
	return s.engine.Delete(s.prefixKey(key))
}

// GetJSON 获取并反序列化 JSON 值
func (s *Store) GetJSON(key []byte, v any) error {
	data, err := s.Get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// PutJSON 序列化并存储 JSON 值；ttl > 0 时到期自动删除
func (s *Store) PutJSON(key []byte, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.engine.PutWithTTL(s.prefixKey(key), data, ttl)
}

// Scan 遍历子前缀下的键值，回调收到的键已去掉 Store 前缀
func (s *Store) Scan(prefix []byte, fn engine.ScanFunc) error {
	n := len(s.prefix)
	return s.engine.Scan(s.prefixKey(prefix), func(key, value []byte) error {
		return fn(key[n:], value)
	})
}

// DeletePrefix 删除子前缀下的全部键
func (s *Store) DeletePrefix(prefix []byte) (int, error) {
	return s.engine.DeletePrefix(s.prefixKey(prefix))
}
