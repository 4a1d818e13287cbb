package handle

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/multierr"
)

// ErrGroupClosed 作用域已关闭
var ErrGroupClosed = errors.New("handle group closed")

// Group 结构化并发作用域
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	nextID  uint64
	members map[uint64]*Handle
	wg      sync.WaitGroup
}

// NewGroup 创建作用域
func NewGroup(parent context.Context) *Group {
	ctx, cancel := context.WithCancel(parent)
	return &Group{
		ctx:     ctx,
		cancel:  cancel,
		members: make(map[uint64]*Handle),
	}
}

// Context 作用域上下文，Close 后取消
func (g *Group) Context() context.Context { return g.ctx }

// Closed 是否已关闭
func (g *Group) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Track 在作用域内创建并追踪句柄
//
// 句柄结算后自动移出作用域。
func (g *Group) Track(kind string) (*Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, ErrGroupClosed
	}
	g.nextID++
	h := newHandle(g.ctx, g.nextID, kind)
	g.members[h.id] = h
	g.wg.Add(1)
	h.OnSettle(func(error) { g.untrack(h.id) })
	return h, nil
}

func (g *Group) untrack(id uint64) {
	g.mu.Lock()
	_, ok := g.members[id]
	delete(g.members, id)
	g.mu.Unlock()
	if ok {
		g.wg.Done()
	}
}

// Go 在作用域内启动 goroutine
//
// fn 的返回值即句柄的结算结果。作用域已关闭时返回 ErrGroupClosed 且不启动。
func (g *Group) Go(kind string, fn func(ctx context.Context) error) (*Handle, error) {
	h, err := g.Track(kind)
	if err != nil {
		return nil, err
	}
	go func() {
		h.Settle(fn(h.Context()))
	}()
	return h, nil
}

// Len 当前未结算成员数
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members)
}

// Members 未结算成员快照
func (g *Group) Members() []*Handle {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Handle, 0, len(g.members))
	for _, h := range g.members {
		out = append(out, h)
	}
	return out
}

// Close 关闭作用域：拒绝新工作、取消上下文、关闭全部成员
//
// 返回各成员释放函数的聚合错误。重复调用返回 nil。
func (g *Group) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	snapshot := make([]*Handle, 0, len(g.members))
	for _, h := range g.members {
		snapshot = append(snapshot, h)
	}
	g.mu.Unlock()

	g.cancel()

	var errs error
	for _, h := range snapshot {
		errs = multierr.Append(errs, h.Close())
	}
	return errs
}

// Wait 等待全部成员结算，或 ctx 结束
//
// 应在 Close 之后调用。
func (g *Group) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ForceSettle 以 err 结算全部剩余成员，返回被强制结算的句柄
func (g *Group) ForceSettle(err error) []*Handle {
	var forced []*Handle
	for _, h := range g.Members() {
		if h.Settle(err) {
			forced = append(forced, h)
		}
	}
	return forced
}
