// Package engine 定义存储引擎接口
//
// 节点簿等组件只依赖这里的接口，具体实现见 engine/badger。
// 所有实现必须保证线程安全。
package engine

import (
	"errors"
	"time"
)

// 存储引擎错误定义
var (
	// ErrNotFound 键不存在
	ErrNotFound = errors.New("storage: key not found")

	// ErrEmptyKey 空键
	ErrEmptyKey = errors.New("storage: empty key")

	// ErrClosed 引擎已关闭
	ErrClosed = errors.New("storage: engine closed")
)

// IsNotFound 检查是否为 key not found 错误
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ScanFunc 遍历回调；返回错误时停止遍历并原样返回
type ScanFunc func(key, value []byte) error

// Engine 键值存储引擎
type Engine interface {
	// Get 读取键；不存在时返回 ErrNotFound
	Get(key []byte) ([]byte, error)

	// Put 写入键值
	Put(key, value []byte) error

	// PutWithTTL 写入键值，ttl 后自动过期；ttl <= 0 等同 Put
	PutWithTTL(key, value []byte, ttl time.Duration) error

	// Delete 删除键；键不存在不是错误
	Delete(key []byte) error

	// Scan 按键序遍历指定前缀下未过期的键值
	Scan(prefix []byte, fn ScanFunc) error

	// DeletePrefix 删除指定前缀下的全部键，返回删除数量
	DeletePrefix(prefix []byte) (int, error)

	// Close 关闭引擎
	Close() error
}
