package topicswarm

import (
	"context"
	"errors"
	"sync"

	"github.com/dep2p/go-topicswarm/internal/core/registry"
	"github.com/dep2p/go-topicswarm/pkg/interfaces"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              监听
// ════════════════════════════════════════════════════════════════════════════

// bindAttempt 并发 Listen 调用共享的一次绑定
type bindAttempt struct {
	done chan struct{}
	once sync.Once
	addr types.Address
	err  error
}

func newBindAttempt() *bindAttempt {
	return &bindAttempt{done: make(chan struct{})}
}

// resolve 只有第一次生效
func (b *bindAttempt) resolve(addr types.Address, err error) bool {
	first := false
	b.once.Do(func() {
		first = true
		b.addr, b.err = addr, err
		close(b.done)
	})
	return first
}

// Listen 绑定监听端口并开始接受入站连接
//
// 已在监听时直接返回当前地址；并发调用共享同一次绑定。
// 绑定失败返回 *TransportError，之后可以重试。绑定期间开始销毁时返回
// *CancelledError（errors.Is(err, ErrDestroyed) 成立）。
// ctx 只限制本次调用的等待，不影响共享的绑定。
func (s *Swarm) Listen(ctx context.Context) (types.Address, error) {
	s.mu.Lock()
	if err := s.activeLocked(); err != nil {
		s.mu.Unlock()
		return types.Address{}, err
	}
	if s.listener != nil {
		addr := s.listener.Addr()
		s.mu.Unlock()
		return addr, nil
	}
	b := s.bind
	if b == nil {
		b = newBindAttempt()
		if _, err := s.group.Go("bind", func(ctx context.Context) error {
			return s.runBind(ctx, b)
		}); err != nil {
			s.mu.Unlock()
			return types.Address{}, types.ErrDestroyed
		}
		s.bind = b
		s.log.Debug("开始绑定监听地址", "host", s.config.Transport.Host, "port", s.config.Transport.Port)
	}
	s.mu.Unlock()

	select {
	case <-b.done:
		return b.addr, b.err
	case <-ctx.Done():
		return types.Address{}, ctx.Err()
	}
}

// runBind 执行绑定；在作用域 goroutine 中运行
func (s *Swarm) runBind(ctx context.Context, b *bindAttempt) error {
	cfg := s.config.Transport
	l, err := s.transport.Listen(ctx, types.Address{Host: cfg.Host, Port: cfg.Port})

	s.mu.Lock()
	if s.bind == b {
		s.bind = nil
	}
	if s.state != types.StateActive {
		s.mu.Unlock()
		if l != nil {
			_ = l.Close()
		}
		cancelled := types.NewCancelled("listen", types.ErrDestroyed)
		b.resolve(types.Address{}, cancelled)
		return cancelled
	}
	if err != nil {
		s.mu.Unlock()
		terr := &types.TransportError{Op: "listen", Err: err}
		s.log.Warn("绑定监听地址失败", "err", err)
		b.resolve(types.Address{}, terr)
		return nil
	}

	s.listener = l
	addr := l.Addr()
	s.listenAddr.Store(&addr)
	h, gerr := s.group.Go("accept", func(ctx context.Context) error {
		return s.acceptLoop(ctx, l)
	})
	s.mu.Unlock()

	if gerr == nil {
		// 作用域关闭时关闭监听器以打断 Accept
		_ = h.SetCloser(l.Close)
	}
	b.resolve(addr, nil)
	s.log.Info("开始监听", "addr", addr.String())
	s.emit(s.emitters.listening, types.EvtListening{SwarmID: s.id, Addr: addr})
	return nil
}

// Address 当前监听地址
//
// 销毁开始后返回 ErrDestroyed；未监听时返回 ErrNotListening。
func (s *Swarm) Address() (types.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.activeLocked(); err != nil {
		return types.Address{}, err
	}
	if s.listener == nil {
		return types.Address{}, types.ErrNotListening
	}
	return s.listener.Addr(), nil
}

// localAddr 供发现后端通告的本地地址
func (s *Swarm) localAddr() (types.Address, bool) {
	addr := s.listenAddr.Load()
	if addr == nil {
		return types.Address{}, false
	}
	return *addr, true
}

// acceptLoop 接受入站连接，直到监听器关闭
func (s *Swarm) acceptLoop(ctx context.Context, l interfaces.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn("接受连接失败，监听器停止", "err", err)
			s.mu.Lock()
			if s.listener == l {
				s.listener = nil
				s.listenAddr.Store(nil)
			}
			s.mu.Unlock()
			_ = l.Close()
			return err
		}
		s.handleInbound(conn)
	}
}

// handleInbound 登记入站连接；超过 MaxPeers 时拒绝
func (s *Swarm) handleInbound(conn interfaces.Conn) {
	var peer types.PeerInfo
	if addr, err := types.AddressFromNetAddr(conn.RemoteAddr()); err == nil {
		peer.Host, peer.Port = addr.Host, addr.Port
	}
	_, err := s.conns.AddInboundWithin(conn, peer, s.config.Swarm.MaxPeers)
	switch {
	case errors.Is(err, registry.ErrLimitReached):
		s.stats.refused.Add(1)
		s.log.Debug("连接数已达上限，拒绝入站连接", "remote", peer.String())
		return
	case err != nil:
		s.log.Debug("Swarm 正在销毁，丢弃入站连接", "remote", peer.String())
		return
	}
	s.stats.accepted.Add(1)
}
