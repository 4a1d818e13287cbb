package handle

import (
	"context"
	"sync"
)

// Handle 可取消资源句柄
type Handle struct {
	id   uint64
	kind string

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closer   func() error
	closed   bool
	onSettle []func(error)

	settleOnce sync.Once
	done       chan struct{}
	err        error
}

// New 创建独立句柄（不属于任何 Group）
func New(parent context.Context, kind string) *Handle {
	return newHandle(parent, 0, kind)
}

func newHandle(parent context.Context, id uint64, kind string) *Handle {
	ctx, cancel := context.WithCancel(parent)
	return &Handle{
		id:     id,
		kind:   kind,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ID 作用域内唯一编号；独立句柄为 0
func (h *Handle) ID() uint64 { return h.id }

// Kind 资源类别（listen / dial / probe / discovery / conn ...）
func (h *Handle) Kind() string { return h.kind }

// Context 句柄的取消上下文
func (h *Handle) Context() context.Context { return h.ctx }

// SetCloser 设置 Close 时执行的释放函数
//
// 句柄已关闭时立即执行 fn 并返回其错误。
func (h *Handle) SetCloser(fn func() error) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return fn()
	}
	h.closer = fn
	h.mu.Unlock()
	return nil
}

// Cancel 取消上下文，不执行释放函数
func (h *Handle) Cancel() { h.cancel() }

// Close 取消上下文并执行释放函数，只生效一次
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	fn := h.closer
	h.closer = nil
	h.mu.Unlock()

	h.cancel()
	if fn != nil {
		return fn()
	}
	return nil
}

// OnSettle 注册结算回调；已结算时立即调用
func (h *Handle) OnSettle(fn func(error)) {
	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		fn(h.err)
		return
	default:
	}
	h.onSettle = append(h.onSettle, fn)
	h.mu.Unlock()
}

// Settle 记录最终结果
//
// 只有第一次调用生效并返回 true。结算同时释放上下文。
func (h *Handle) Settle(err error) bool {
	first := false
	h.settleOnce.Do(func() {
		first = true
		h.mu.Lock()
		h.err = err
		hooks := h.onSettle
		h.onSettle = nil
		close(h.done)
		h.mu.Unlock()

		h.cancel()
		for _, fn := range hooks {
			fn(err)
		}
	})
	return first
}

// Settled 是否已结算
func (h *Handle) Settled() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Done 结算后关闭
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err 结算结果；未结算时为 nil
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Wait 等待结算或 ctx 结束
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
