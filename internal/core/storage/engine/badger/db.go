// Package badger 基于 BadgerDB 的存储引擎实现
//
// 数据目录为空时以内存模式运行，进程退出即丢弃；
// 磁盘模式下后台周期运行 value log GC。
package badger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/dep2p/go-topicswarm/internal/core/storage/engine"
	"github.com/dep2p/go-topicswarm/internal/util/logger"
)

var log = logger.Logger("storage/badger")

// Options 引擎选项
type Options struct {
	// Dir 数据目录；为空时使用内存模式
	Dir string

	// GCInterval value log GC 周期；<= 0 关闭（内存模式始终关闭）
	GCInterval time.Duration

	// GCDiscardRatio value log GC 丢弃比例
	GCDiscardRatio float64
}

// Engine BadgerDB 存储引擎
type Engine struct {
	db     *badger.DB
	opts   Options
	closed atomic.Bool

	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
}

var _ engine.Engine = (*Engine)(nil)

// Open 打开引擎
func Open(opts Options) (*Engine, error) {
	bopts := badger.DefaultOptions(opts.Dir).WithLogger(nil)
	if opts.Dir == "" {
		bopts = bopts.WithInMemory(true)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, err
	}
	if opts.GCDiscardRatio <= 0 {
		opts.GCDiscardRatio = 0.5
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{db: db, opts: opts, gcCancel: cancel}
	if opts.Dir != "" && opts.GCInterval > 0 {
		e.startGC(ctx)
	}
	log.Debug("存储引擎已打开", "dir", opts.Dir, "inMemory", opts.Dir == "")
	return e, nil
}

// startGC 启动 value log GC 后台任务
func (e *Engine) startGC(ctx context.Context) {
	e.gcWg.Add(1)
	go func() {
		defer e.gcWg.Done()
		ticker := time.NewTicker(e.opts.GCInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// 运行到没有可回收的空间为止
				for e.db.RunValueLogGC(e.opts.GCDiscardRatio) == nil {
				}
			}
		}
	}()
}

// Get 获取指定键的值
func (e *Engine) Get(key []byte) ([]byte, error) {
	if err := e.check(key); err != nil {
		return nil, err
	}
	var value []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	return value, convertError(err)
}

// Put 设置键值对
func (e *Engine) Put(key, value []byte) error {
	return e.PutWithTTL(key, value, 0)
}

// PutWithTTL 设置带过期时间的键值对
func (e *Engine) PutWithTTL(key, value []byte, ttl time.Duration) error {
	if err := e.check(key); err != nil {
		return err
	}
	err := e.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	return convertError(err)
}

// Delete 删除指定键
func (e *Engine) Delete(key []byte) error {
	if err := e.check(key); err != nil {
		return err
	}
	return convertError(e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	}))
}

// Scan 遍历前缀下的键值
func (e *Engine) Scan(prefix []byte, fn engine.ScanFunc) error {
	if e.closed.Load() {
		return engine.ErrClosed
	}
	return convertError(e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), value); err != nil {
				return err
			}
		}
		return nil
	}))
}

// DeletePrefix 删除前缀下的全部键
func (e *Engine) DeletePrefix(prefix []byte) (int, error) {
	var keys [][]byte
	if err := e.Scan(prefix, func(key, _ []byte) error {
		keys = append(keys, key)
		return nil
	}); err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	err := e.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, convertError(err)
	}
	return len(keys), nil
}

// Close 关闭引擎；重复调用返回 nil
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.gcCancel()
	e.gcWg.Wait()
	log.Debug("存储引擎已关闭", "dir", e.opts.Dir)
	return e.db.Close()
}

func (e *Engine) check(key []byte) error {
	if e.closed.Load() {
		return engine.ErrClosed
	}
	if len(key) == 0 {
		return engine.ErrEmptyKey
	}
	return nil
}

// convertError 转换 BadgerDB 错误为引擎错误
func convertError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return engine.ErrNotFound
	case errors.Is(err, badger.ErrEmptyKey):
		return engine.ErrEmptyKey
	case errors.Is(err, badger.ErrDBClosed):
		return engine.ErrClosed
	default:
		return err
	}
}
