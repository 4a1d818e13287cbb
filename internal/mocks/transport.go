package mocks

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-topicswarm/pkg/interfaces"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

// MockTransport 模拟 interfaces.Transport
type MockTransport struct {
	ListenFunc func(ctx context.Context, addr types.Address) (interfaces.Listener, error)
	DialFunc   func(ctx context.Context, peer types.PeerInfo) (interfaces.Conn, error)
	CloseFunc  func() error

	// 调用记录
	ListenCalls atomic.Int32
	DialCalls   atomic.Int32

	mu        sync.Mutex
	listeners []*MockListener
	nextPort  int
}

// NewMockTransport 创建模拟传输层
func NewMockTransport() *MockTransport {
	return &MockTransport{nextPort: 40000}
}

// Name 传输名
func (m *MockTransport) Name() string { return "mock" }

// Listen 默认返回一个分配了端口的 MockListener
func (m *MockTransport) Listen(ctx context.Context, addr types.Address) (interfaces.Listener, error) {
	m.ListenCalls.Add(1)
	if m.ListenFunc != nil {
		return m.ListenFunc(ctx, addr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if addr.Port == 0 {
		m.nextPort++
		addr.Port = m.nextPort
	}
	if addr.Host == "" {
		addr.Host = "127.0.0.1"
	}
	l := NewMockListener(addr)
	m.listeners = append(m.listeners, l)
	return l, nil
}

// Dial 默认立即返回新的 MockConn
func (m *MockTransport) Dial(ctx context.Context, peer types.PeerInfo) (interfaces.Conn, error) {
	m.DialCalls.Add(1)
	if m.DialFunc != nil {
		return m.DialFunc(ctx, peer)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewMockConn(peer.Address().String()), nil
}

// Close 关闭
func (m *MockTransport) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Listeners 已创建的监听器
func (m *MockTransport) Listeners() []*MockListener {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockListener(nil), m.listeners...)
}

// MockListener 模拟 interfaces.Listener
type MockListener struct {
	addr     types.Address
	incoming chan interfaces.Conn

	once    sync.Once
	closeCh chan struct{}
}

// NewMockListener 创建模拟监听器
func NewMockListener(addr types.Address) *MockListener {
	return &MockListener{
		addr:     addr,
		incoming: make(chan interfaces.Conn, 16),
		closeCh:  make(chan struct{}),
	}
}

// Push 投递一个入站连接
func (l *MockListener) Push(conn interfaces.Conn) {
	select {
	case l.incoming <- conn:
	case <-l.closeCh:
	}
}

// Accept 阻塞到有入站连接或关闭
func (l *MockListener) Accept() (interfaces.Conn, error) {
	select {
	case c := <-l.incoming:
		return c, nil
	case <-l.closeCh:
		return nil, ErrMockClosed
	}
}

// Addr 绑定地址
func (l *MockListener) Addr() types.Address { return l.addr }

// Close 关闭
func (l *MockListener) Close() error {
	l.once.Do(func() { close(l.closeCh) })
	return nil
}

// Closed 是否已关闭
func (l *MockListener) Closed() bool {
	select {
	case <-l.closeCh:
		return true
	default:
		return false
	}
}
