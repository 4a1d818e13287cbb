package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-topicswarm/internal/core/handle"
	"github.com/dep2p/go-topicswarm/internal/util/logger"
	"github.com/dep2p/go-topicswarm/pkg/interfaces"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

// ErrRegistryClosed 登记表已进入取消流程，不再接受新连接
var ErrRegistryClosed = errors.New("connection registry closed")

// ErrLimitReached 连接数已达上限
var ErrLimitReached = errors.New("connection limit reached")

// Hooks 连接状态变化通知
//
// 在调用方 goroutine 中同步执行，不持有登记表锁。
type Hooks struct {
	// Opened 连接进入 Established
	Opened func(c *Connection)

	// Removed 连接移出登记表；err 为 nil 表示本地正常关闭
	Removed func(c *Connection, err error)
}

// Registry 连接登记表
type Registry struct {
	ctx   context.Context
	hooks Hooks
	log   *slog.Logger

	mu     sync.Mutex
	closed bool
	nextID uint64
	conns  map[uint64]*Connection
}

// New 创建登记表
//
// ctx 为所有连接上下文的父上下文，取消后进行中的拨号随之取消。
func New(ctx context.Context, hooks Hooks, log *slog.Logger) *Registry {
	return &Registry{
		ctx:   ctx,
		hooks: hooks,
		log:   logger.OrDiscard(log),
		conns: make(map[uint64]*Connection),
	}
}

// NewOutbound 登记一个待建立的出站连接
//
// 回调在拨号成功、失败或被取消时恰好调用一次。
func (r *Registry) NewOutbound(peer types.PeerInfo, cb ConnectCallback) (*Connection, error) {
	return r.NewOutboundWithin(peer, cb, 0)
}

// NewOutboundWithin 同 NewOutbound，连接数（含待建立）已达 limit 时返回 ErrLimitReached
//
// 计数检查与登记在同一临界区内完成；limit <= 0 表示不限制。
func (r *Registry) NewOutboundWithin(peer types.PeerInfo, cb ConnectCallback, limit int) (*Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	if limit > 0 && len(r.conns) >= limit {
		return nil, ErrLimitReached
	}
	c := r.newLocked(types.DirOutbound, peer)
	c.cb = cb
	return c, nil
}

// AddInbound 登记一个已建立的入站连接
//
// 登记表已关闭时关闭 conn 并返回 ErrRegistryClosed。
func (r *Registry) AddInbound(conn interfaces.Conn, peer types.PeerInfo) (*Connection, error) {
	return r.AddInboundWithin(conn, peer, 0)
}

// AddInboundWithin 同 AddInbound，连接数已达 limit 时关闭 conn 并返回 ErrLimitReached
//
// 计数检查与登记在同一临界区内完成；limit <= 0 表示不限制。
func (r *Registry) AddInboundWithin(conn interfaces.Conn, peer types.PeerInfo, limit int) (*Connection, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = conn.Close()
		return nil, ErrRegistryClosed
	}
	if limit > 0 && len(r.conns) >= limit {
		r.mu.Unlock()
		_ = conn.Close()
		return nil, ErrLimitReached
	}
	c := r.newLocked(types.DirInbound, peer)
	c.phase = types.PhaseEstablished
	c.conn = conn
	c.establishAt = c.createdAt
	r.mu.Unlock()

	_ = c.handle.SetCloser(conn.Close)
	r.opened(c)
	go c.watch(conn)
	return c, nil
}

func (r *Registry) newLocked(dir types.Direction, peer types.PeerInfo) *Connection {
	r.nextID++
	c := &Connection{
		id:        r.nextID,
		direction: dir,
		peer:      peer,
		createdAt: time.Now(),
		handle:    handle.New(r.ctx, "conn"),
		reg:       r,
		phase:     types.PhasePending,
	}
	r.conns[c.id] = c
	return c
}

func (r *Registry) opened(c *Connection) {
	r.log.Debug("连接已建立", "id", c.id, "dir", c.direction.String(), "peer", c.peer.String())
	if r.hooks.Opened != nil {
		r.hooks.Opened(c)
	}
}

func (r *Registry) remove(c *Connection, err error) {
	r.mu.Lock()
	_, ok := r.conns[c.id]
	delete(r.conns, c.id)
	r.mu.Unlock()
	if !ok {
		return
	}
	r.log.Debug("连接已移除", "id", c.id, "peer", c.peer.String(), "err", err)
	if r.hooks.Removed != nil {
		r.hooks.Removed(c, err)
	}
}

// Get 按编号查找
func (r *Registry) Get(id uint64) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	return c, ok
}

// All 当前连接快照
func (r *Registry) All() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Len 当前连接数（含待建立）
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Count 按阶段计数
func (r *Registry) Count(phase types.ConnPhase) int {
	n := 0
	for _, c := range r.All() {
		if c.Phase() == phase {
			n++
		}
	}
	return n
}

// ByTopic 来源为指定主题的连接
func (r *Registry) ByTopic(key types.TopicKey) []*Connection {
	var out []*Connection
	for _, c := range r.All() {
		if t := c.Topic(); t != nil && *t == key {
			out = append(out, c)
		}
	}
	return out
}

// FindByAddr 查找与地址匹配的未关闭连接
func (r *Registry) FindByAddr(addr types.Address) (*Connection, bool) {
	for _, c := range r.All() {
		if c.peer.Address() == addr && c.Phase() != types.PhaseClosed {
			return c, true
		}
	}
	return nil, false
}

// Remove 按编号关闭并移除连接；不存在时无效果
func (r *Registry) Remove(id uint64) error {
	c, ok := r.Get(id)
	if !ok {
		return nil
	}
	return c.Close()
}

// CloseTopic 关闭来源为指定主题的全部连接
func (r *Registry) CloseTopic(key types.TopicKey) error {
	var errs error
	for _, c := range r.ByTopic(key) {
		errs = multierr.Append(errs, c.Close())
	}
	return errs
}

// Closed 是否已进入取消流程
func (r *Registry) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// CancelAll 取消全部连接并等待其结束
//
// 之后不再接受新连接。待建立连接的回调收到以 cause 为原因的 *types.CancelledError。
// 与并发的移除操作安全共存。ctx 到期时以取消错误强制结算剩余连接并返回 ctx 错误。
func (r *Registry) CancelAll(ctx context.Context, cause error) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	snapshot := r.All()

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		errs  error
	)
	for _, c := range snapshot {
		wg.Add(1)
		go func(c *Connection) {
			defer wg.Done()
			if err := c.closeWithCause(cause); err != nil {
				errMu.Lock()
				errs = multierr.Append(errs, err)
				errMu.Unlock()
			}
		}(c)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		errMu.Lock()
		defer errMu.Unlock()
		return errs
	case <-ctx.Done():
	}

	forced := 0
	for _, c := range snapshot {
		err := types.NewCancelled("conn", cause)
		c.resolve(nil, err)
		r.remove(c, err)
		if c.handle.Settle(err) {
			forced++
		}
	}
	r.log.Warn("等待连接关闭超时，已强制结算", "forced", forced)

	errMu.Lock()
	defer errMu.Unlock()
	return multierr.Append(errs, ctx.Err())
}
