package topicswarm

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/dep2p/go-topicswarm/internal/core/registry"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              出站连接
// ════════════════════════════════════════════════════════════════════════════

// Connect 向节点发起连接
//
// 销毁开始后返回 ErrDestroyed，节点描述不可达时返回 *InvalidInputError，
// 两种情况下 cb 都不会被调用。否则连接以 Pending 登记，拨号结束时
// cb 恰好被调用一次：成功时 cb(conn, nil)，失败或被取消时 cb(nil, err)。
// cb 可以为 nil。cb 在独立 goroutine 中执行，可以在其中调用 Close。
func (s *Swarm) Connect(peer types.PeerInfo, cb ConnectCallback) error {
	if cb != nil {
		user := cb
		cb = func(conn *Connection, err error) {
			detach(func() { user(conn, err) })
		}
	}
	_, err := s.connect(peer, cb)
	return err
}

// Dial 阻塞形式的 Connect
//
// ctx 结束时中止拨号并返回 *CancelledError。
func (s *Swarm) Dial(ctx context.Context, peer types.PeerInfo) (*Connection, error) {
	type result struct {
		conn *Connection
		err  error
	}
	ch := make(chan result, 1)
	c, err := s.connect(peer, func(conn *Connection, err error) {
		ch <- result{conn, err}
	})
	if err != nil {
		return nil, err
	}

	select {
	case r := <-ch:
		return r.conn, r.err
	case <-ctx.Done():
		_ = c.Close()
		r := <-ch
		if r.err == nil {
			// 拨号恰好在取消前完成，调用方已放弃，关闭之
			_ = r.conn.Close()
		}
		return nil, types.NewCancelled("dial", ctx.Err())
	}
}

func (s *Swarm) connect(peer types.PeerInfo, cb ConnectCallback) (*Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.activeLocked(); err != nil {
		return nil, err
	}
	if err := peer.Validate(); err != nil {
		return nil, err
	}
	return s.connectLocked(peer, cb, 0)
}

// connectLocked 登记并在作用域内启动拨号；调用方须持有 mu 且状态为 Active
//
// limit > 0 时连接数已达上限返回 registry.ErrLimitReached。
func (s *Swarm) connectLocked(peer types.PeerInfo, cb ConnectCallback, limit int) (*Connection, error) {
	c, err := s.conns.NewOutboundWithin(peer, cb, limit)
	if errors.Is(err, registry.ErrLimitReached) {
		return nil, err
	}
	if err != nil {
		return nil, types.ErrDestroyed
	}
	if _, err := s.group.Go("dial", func(context.Context) error {
		s.dial(c)
		return nil
	}); err != nil {
		_ = c.Close()
		return nil, types.ErrDestroyed
	}
	return c, nil
}

// dial 在拨号并发与速率限制下执行拨号
//
// 连接被关闭（包括销毁）时其上下文被取消，拨号随之中止；
// 此时回调已由 Close 以 *CancelledError 调用，这里只需退出。
func (s *Swarm) dial(c *Connection) {
	ctx := c.Context()
	if err := s.dialSem.Acquire(ctx, 1); err != nil {
		return
	}
	defer s.dialSem.Release(1)
	if err := s.dialLimiter.Wait(ctx); err != nil {
		if ctx.Err() == nil {
			// 令牌桶等待超过期限
			c.Fail(&types.TransportError{Op: "dial", Err: err})
		}
		return
	}

	s.stats.dialed.Add(1)
	peer := c.Peer()
	dctx, cancel := context.WithTimeout(ctx, time.Duration(s.config.Swarm.DialTimeout))
	conn, err := s.transport.Dial(dctx, peer)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.stats.dialFailed.Add(1)
		s.log.Debug("拨号失败", "peer", peer.String(), "err", err)
		c.Fail(&types.TransportError{Op: "dial", Err: err})
		return
	}
	if err := c.Establish(conn); err != nil {
		if !errors.Is(err, registry.ErrNotPending) {
			s.log.Debug("登记已建立连接失败", "peer", peer.String(), "err", err)
		}
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              登记表回调
// ════════════════════════════════════════════════════════════════════════════

func (s *Swarm) connectionOpened(c *Connection) {
	s.emit(s.emitters.opened, types.EvtConnectionOpened{
		SwarmID:   s.id,
		ConnID:    c.ID(),
		Direction: c.Direction(),
		Peer:      c.Peer(),
	})
}

func (s *Swarm) connectionRemoved(c *Connection, err error) {
	s.emit(s.emitters.closed, types.EvtConnectionClosed{
		SwarmID:   s.id,
		ConnID:    c.ID(),
		Direction: c.Direction(),
		Peer:      c.Peer(),
		Err:       err,
	})
}

// ════════════════════════════════════════════════════════════════════════════
//                              发现结果
// ════════════════════════════════════════════════════════════════════════════

// maybeConnect 对发现的节点发起连接：跳过自身、已有连接的地址，以及超出 MaxPeers 的情况
func (s *Swarm) maybeConnect(peer types.PeerInfo) {
	if peer.Validate() != nil || s.isSelf(peer.Address()) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeLocked() != nil {
		return
	}
	if _, ok := s.conns.FindByAddr(peer.Address()); ok {
		return
	}
	if _, err := s.connectLocked(peer, nil, s.config.Swarm.MaxPeers); errors.Is(err, registry.ErrLimitReached) {
		s.log.Debug("连接数已达上限，跳过发现的节点", "peer", peer.String())
	}
}

// isSelf 地址是否指向本 Swarm 的监听端口
func (s *Swarm) isSelf(addr types.Address) bool {
	local, ok := s.localAddr()
	if !ok || local.Port != addr.Port {
		return false
	}
	if local.Host == addr.Host {
		return true
	}
	lip := net.ParseIP(local.Host)
	rip := net.ParseIP(addr.Host)
	if lip == nil || rip == nil {
		return false
	}
	return lip.IsUnspecified() && (rip.IsLoopback() || rip.IsUnspecified())
}
