package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	outputMu sync.RWMutex
	output   io.Writer = os.Stderr
)

// switchWriter 每次写入时读取当前输出目标，SetOutput 对已创建的 Logger 同样生效
type switchWriter struct{}

func (switchWriter) Write(p []byte) (int, error) {
	outputMu.RLock()
	w := output
	outputMu.RUnlock()
	return w.Write(p)
}

// leveledHandler 带可调级别的子系统 Handler
//
// 派生 Handler（WithAttrs/WithGroup）共享同一个 LevelVar，
// 因此 SetLevel 对 With 出来的 Logger 也生效。
type leveledHandler struct {
	level *slog.LevelVar
	inner slog.Handler
}

func newLeveledHandler(subsystem string, cfg *Config) *leveledHandler {
	lv := new(slog.LevelVar)
	lv.Set(cfg.LevelFor(subsystem))

	opts := &slog.HandlerOptions{
		Level:     lv,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				a.Key = "ts"
			case slog.LevelKey:
				if lvl, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(levelName(lvl))
				}
			}
			return a
		},
	}

	var inner slog.Handler
	if cfg.Format == FormatJSON {
		inner = slog.NewJSONHandler(switchWriter{}, opts)
	} else {
		inner = slog.NewTextHandler(switchWriter{}, opts)
	}

	return &leveledHandler{
		level: lv,
		inner: inner.WithAttrs([]slog.Attr{slog.String("subsystem", subsystem)}),
	}
}

func (h *leveledHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *leveledHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *leveledHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &leveledHandler{level: h.level, inner: h.inner.WithAttrs(attrs)}
}

func (h *leveledHandler) WithGroup(name string) slog.Handler {
	return &leveledHandler{level: h.level, inner: h.inner.WithGroup(name)}
}

func levelName(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return "debug"
	case level < slog.LevelWarn:
		return "info"
	case level < slog.LevelError:
		return "warn"
	default:
		return "error"
	}
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
