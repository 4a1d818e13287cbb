package quic

import (
	"context"
	"net"

	"github.com/quic-go/quic-go"

	"github.com/dep2p/go-topicswarm/pkg/interfaces"
)

// 应用层关闭码
const closeCodeNormal quic.ApplicationErrorCode = 0

// Conn QUIC 连接
type Conn struct {
	qc *quic.Conn
}

var _ interfaces.Conn = (*Conn)(nil)

func newConn(qc *quic.Conn) *Conn {
	return &Conn{qc: qc}
}

// LocalAddr 本地地址
func (c *Conn) LocalAddr() net.Addr { return c.qc.LocalAddr() }

// RemoteAddr 远端地址
func (c *Conn) RemoteAddr() net.Addr { return c.qc.RemoteAddr() }

// OpenStream 打开双向流，流控额度不足时等待
func (c *Conn) OpenStream(ctx context.Context) (interfaces.Stream, error) {
	s, err := c.qc.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// AcceptStream 接受对端打开的流
func (c *Conn) AcceptStream(ctx context.Context) (interfaces.Stream, error) {
	s, err := c.qc.AcceptStream(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CloseChan 连接结束时关闭
func (c *Conn) CloseChan() <-chan struct{} { return c.qc.Context().Done() }

// IsClosed 连接是否已结束
func (c *Conn) IsClosed() bool { return c.qc.Context().Err() != nil }

// Close 以正常关闭码关闭连接
func (c *Conn) Close() error {
	return c.qc.CloseWithError(closeCodeNormal, "")
}
