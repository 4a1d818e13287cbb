package interfaces

import (
	"context"
	"io"
	"net"

	"github.com/dep2p/go-topicswarm/pkg/types"
)

// Transport 传输层
//
// Listen 与 Dial 必须遵守 ctx：ctx 取消后尽快返回错误，
// 不得在取消后仍无限期阻塞。
type Transport interface {
	// Name 传输协议名（tcp / quic）
	Name() string

	// Listen 在指定地址上绑定监听器
	Listen(ctx context.Context, addr types.Address) (Listener, error)

	// Dial 拨号远端节点
	Dial(ctx context.Context, peer types.PeerInfo) (Conn, error)

	// Close 释放传输层共享资源
	Close() error
}

// Listener 监听器
type Listener interface {
	// Accept 阻塞直到有新入站连接或监听器关闭
	Accept() (Conn, error)

	// Addr 实际绑定的地址（端口 0 时为分配后的端口）
	Addr() types.Address

	// Close 关闭监听器，使阻塞中的 Accept 返回
	Close() error
}

// Conn 已建立的对等连接
type Conn interface {
	// LocalAddr 本地地址
	LocalAddr() net.Addr

	// RemoteAddr 远端地址
	RemoteAddr() net.Addr

	// OpenStream 打开新流
	OpenStream(ctx context.Context) (Stream, error)

	// AcceptStream 接受远端打开的流
	AcceptStream(ctx context.Context) (Stream, error)

	// CloseChan 连接关闭（本地或远端）时关闭的通道
	CloseChan() <-chan struct{}

	// IsClosed 连接是否已关闭
	IsClosed() bool

	// Close 关闭连接，幂等
	Close() error
}

// Stream 连接上的双向字节流
type Stream interface {
	io.ReadWriteCloser
}
