package tcp

import (
	"context"
	"net"

	"github.com/hashicorp/yamux"

	"github.com/dep2p/go-topicswarm/internal/util/logger"
	"github.com/dep2p/go-topicswarm/pkg/interfaces"
)

var log = logger.Logger("transport/tcp")

// Conn 基于 yamux 会话的连接
type Conn struct {
	sess *yamux.Session
}

var _ interfaces.Conn = (*Conn)(nil)

func newConn(sess *yamux.Session) *Conn {
	return &Conn{sess: sess}
}

// LocalAddr 本地地址
func (c *Conn) LocalAddr() net.Addr { return c.sess.LocalAddr() }

// RemoteAddr 远端地址
func (c *Conn) RemoteAddr() net.Addr { return c.sess.RemoteAddr() }

// OpenStream 打开新流
//
// yamux 的 OpenStream 不接受 context，在 goroutine 中执行；
// ctx 先结束时，晚到的流被关闭。
func (c *Conn) OpenStream(ctx context.Context) (interfaces.Stream, error) {
	type result struct {
		s   *yamux.Stream
		err error
	}
	ch := make(chan result, 1)
	go func() {
		s, err := c.sess.OpenStream()
		ch <- result{s, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return r.s, nil
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.s != nil {
				_ = r.s.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// AcceptStream 接受对端打开的流
func (c *Conn) AcceptStream(ctx context.Context) (interfaces.Stream, error) {
	s, err := c.sess.AcceptStreamWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CloseChan 会话关闭时关闭
func (c *Conn) CloseChan() <-chan struct{} { return c.sess.CloseChan() }

// IsClosed 会话是否已关闭
func (c *Conn) IsClosed() bool { return c.sess.IsClosed() }

// Close 关闭会话与底层 TCP 连接
func (c *Conn) Close() error { return c.sess.Close() }
