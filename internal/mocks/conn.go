package mocks

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-topicswarm/pkg/interfaces"
)

// ErrMockClosed 模拟连接或监听器已关闭
var ErrMockClosed = errors.New("mock: closed")

// MockConn 模拟 interfaces.Conn
type MockConn struct {
	Local  net.Addr
	Remote net.Addr

	OpenStreamFunc   func(ctx context.Context) (interfaces.Stream, error)
	AcceptStreamFunc func(ctx context.Context) (interfaces.Stream, error)
	CloseFunc        func() error

	// CloseCalls Close 被调用次数
	CloseCalls atomic.Int32

	once    sync.Once
	closeCh chan struct{}
}

// NewMockConn 创建模拟连接
func NewMockConn(remote string) *MockConn {
	addr, _ := net.ResolveTCPAddr("tcp", remote)
	return &MockConn{
		Local:   &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1},
		Remote:  addr,
		closeCh: make(chan struct{}),
	}
}

// LocalAddr 本地地址
func (m *MockConn) LocalAddr() net.Addr { return m.Local }

// RemoteAddr 远端地址
func (m *MockConn) RemoteAddr() net.Addr { return m.Remote }

// OpenStream 打开流
func (m *MockConn) OpenStream(ctx context.Context) (interfaces.Stream, error) {
	if m.OpenStreamFunc != nil {
		return m.OpenStreamFunc(ctx)
	}
	if m.IsClosed() {
		return nil, ErrMockClosed
	}
	a, _ := net.Pipe()
	return a, nil
}

// AcceptStream 接受流；默认阻塞到连接关闭或 ctx 结束
func (m *MockConn) AcceptStream(ctx context.Context) (interfaces.Stream, error) {
	if m.AcceptStreamFunc != nil {
		return m.AcceptStreamFunc(ctx)
	}
	select {
	case <-m.closeCh:
		return nil, ErrMockClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CloseChan 关闭通知
func (m *MockConn) CloseChan() <-chan struct{} { return m.closeCh }

// IsClosed 是否已关闭
func (m *MockConn) IsClosed() bool {
	select {
	case <-m.closeCh:
		return true
	default:
		return false
	}
}

// Close 关闭连接
func (m *MockConn) Close() error {
	m.CloseCalls.Add(1)
	m.once.Do(func() { close(m.closeCh) })
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// RemoteClose 模拟对端断开
func (m *MockConn) RemoteClose() {
	m.once.Do(func() { close(m.closeCh) })
}
