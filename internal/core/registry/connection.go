package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dep2p/go-topicswarm/internal/core/handle"
	"github.com/dep2p/go-topicswarm/pkg/interfaces"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

// ErrNotPending 连接已不处于待建立阶段（通常已被取消）
var ErrNotPending = errors.New("connection is not pending")

// ConnectCallback 出站连接结果回调
type ConnectCallback func(conn *Connection, err error)

// Connection 被追踪的对等连接
type Connection struct {
	id        uint64
	direction types.Direction
	peer      types.PeerInfo
	createdAt time.Time
	handle    *handle.Handle
	reg       *Registry

	mu          sync.Mutex
	phase       types.ConnPhase
	conn        interfaces.Conn
	establishAt time.Time

	cb     ConnectCallback
	cbOnce sync.Once
}

// ID 连接编号，Swarm 生命周期内唯一
func (c *Connection) ID() uint64 { return c.id }

// Direction 方向
func (c *Connection) Direction() types.Direction { return c.direction }

// Peer 对端描述
func (c *Connection) Peer() types.PeerInfo { return c.peer }

// Topic 来源主题；直接 Connect 或入站连接为 nil
func (c *Connection) Topic() *types.TopicKey { return c.peer.Topic }

// CreatedAt 登记时间
func (c *Connection) CreatedAt() time.Time { return c.createdAt }

// Context 连接上下文，拨号应使用它以便被取消
func (c *Connection) Context() context.Context { return c.handle.Context() }

// Phase 当前阶段
func (c *Connection) Phase() types.ConnPhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Conn 底层连接；未建立时为 nil
func (c *Connection) Conn() interfaces.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Done 连接关闭并移出登记表后关闭
func (c *Connection) Done() <-chan struct{} { return c.handle.Done() }

// Err 连接结束原因
func (c *Connection) Err() error { return c.handle.Err() }

// OpenStream 在连接上打开新流
func (c *Connection) OpenStream(ctx context.Context) (interfaces.Stream, error) {
	conn, err := c.established()
	if err != nil {
		return nil, err
	}
	return conn.OpenStream(ctx)
}

// AcceptStream 接受对端打开的流
func (c *Connection) AcceptStream(ctx context.Context) (interfaces.Stream, error) {
	conn, err := c.established()
	if err != nil {
		return nil, err
	}
	return conn.AcceptStream(ctx)
}

func (c *Connection) established() (interfaces.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != types.PhaseEstablished {
		return nil, ErrNotEstablished
	}
	return c.conn, nil
}

// ErrNotEstablished 连接未处于已建立阶段
var ErrNotEstablished = errors.New("connection is not established")

// Establish 拨号成功：Pending → Established，并回调成功结果
//
// 连接已被取消时关闭 conn 并返回 ErrNotPending；此时回调已收到取消错误。
func (c *Connection) Establish(conn interfaces.Conn) error {
	c.mu.Lock()
	if c.phase != types.PhasePending {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrNotPending
	}
	c.phase = types.PhaseEstablished
	c.conn = conn
	c.establishAt = time.Now()
	c.mu.Unlock()

	_ = c.handle.SetCloser(conn.Close)
	c.reg.opened(c)
	c.resolve(c, nil)
	go c.watch(conn)
	return nil
}

// Fail 拨号失败：Pending → Closed，回调错误并移除
//
// 非 Pending 时无效果。
func (c *Connection) Fail(err error) {
	c.mu.Lock()
	if c.phase != types.PhasePending {
		c.mu.Unlock()
		return
	}
	c.phase = types.PhaseClosed
	c.mu.Unlock()

	c.resolve(nil, err)
	c.finish(err)
}

// Close 关闭连接
//
// Pending：中止拨号，回调收到 *types.CancelledError。
// Established：关闭底层连接。
// 两种情况都移出登记表。重复调用无效果。
func (c *Connection) Close() error {
	return c.closeWithCause(types.ErrCancelled)
}

func (c *Connection) closeWithCause(cause error) error {
	c.mu.Lock()
	prev := c.phase
	if prev == types.PhaseClosed {
		c.mu.Unlock()
		return nil
	}
	c.phase = types.PhaseClosed
	c.mu.Unlock()

	if prev == types.PhasePending {
		err := types.NewCancelled("dial", cause)
		c.handle.Cancel()
		c.resolve(nil, err)
		c.finish(err)
		return nil
	}

	closeErr := c.handle.Close()
	c.finish(nil)
	return closeErr
}

// watch 远端断开时移除连接
func (c *Connection) watch(conn interfaces.Conn) {
	select {
	case <-conn.CloseChan():
		c.mu.Lock()
		if c.phase != types.PhaseEstablished {
			c.mu.Unlock()
			return
		}
		c.phase = types.PhaseClosed
		c.mu.Unlock()
		_ = c.handle.Close()
		c.finish(errRemoteClosed)
	case <-c.handle.Done():
	}
}

var errRemoteClosed = errors.New("connection closed by remote")

func (c *Connection) resolve(conn *Connection, err error) {
	c.cbOnce.Do(func() {
		if c.cb != nil {
			c.cb(conn, err)
		}
	})
}

func (c *Connection) finish(err error) {
	c.reg.remove(c, err)
	c.handle.Settle(err)
}
