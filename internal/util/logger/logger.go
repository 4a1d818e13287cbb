// Package logger 提供 topicswarm 的统一日志
//
// 基于 log/slog，每个子系统一个 Logger，级别可按子系统配置并在运行时调整：
//
//	var log = logger.Logger("swarm")
//
//	log.Info("开始监听", "addr", addr)
//	log.Debug("发现节点", "topic", key.ShortString(), "peer", peer)
//
// 环境变量见 ConfigFromEnv。
package logger

import (
	"io"
	"log/slog"
	"sync"
)

var (
	// registry 子系统名 -> *entry
	registry sync.Map

	root     *slog.Logger
	rootOnce sync.Once
)

type entry struct {
	logger  *slog.Logger
	handler *leveledHandler
}

// Logger 返回子系统 Logger，同名多次调用返回同一实例
func Logger(subsystem string) *slog.Logger {
	if e, ok := registry.Load(subsystem); ok {
		return e.(*entry).logger
	}
	h := newLeveledHandler(subsystem, ConfigFromEnv())
	actual, _ := registry.LoadOrStore(subsystem, &entry{logger: slog.New(h), handler: h})
	return actual.(*entry).logger
}

// GlobalLogger 返回根 Logger（子系统 "topicswarm"）
func GlobalLogger() *slog.Logger {
	rootOnce.Do(func() {
		root = Logger("topicswarm")
	})
	return root
}

// ForSwarm 返回带 swarm 标识的子系统 Logger
func ForSwarm(subsystem, swarmID string) *slog.Logger {
	return Logger(subsystem).With("swarm", shortID(swarmID))
}

// SetLevel 运行时调整子系统级别；子系统尚未创建 Logger 时无效果
func SetLevel(subsystem string, level slog.Level) {
	if e, ok := registry.Load(subsystem); ok {
		e.(*entry).handler.level.Set(level)
	}
}

// SetGlobalLevel 调整所有已创建子系统的级别
func SetGlobalLevel(level slog.Level) {
	registry.Range(func(_, v any) bool {
		v.(*entry).handler.level.Set(level)
		return true
	})
}

// SetOutput 切换所有 Logger 的输出目标
func SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	outputMu.Lock()
	output = w
	outputMu.Unlock()
}

// Discard 返回丢弃所有日志的 Logger，测试用
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// OrDiscard 非 nil 时原样返回，否则返回 Discard()
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
