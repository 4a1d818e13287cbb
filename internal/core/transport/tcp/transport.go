// Package tcp 提供 TCP + yamux 传输
//
// 每条 TCP 连接建立后立即升级为 yamux 会话：拨号方为客户端，监听方为服务端。
// 握手与加密不在本层处理。
package tcp

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/hashicorp/yamux"

	"github.com/dep2p/go-topicswarm/pkg/interfaces"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

// Name 传输名
const Name = "tcp"

// Transport TCP 传输
type Transport struct {
	keepAlive time.Duration
	yamuxCfg  *yamux.Config
	closed    atomic.Bool
}

var _ interfaces.Transport = (*Transport)(nil)

// New 创建 TCP 传输
func New() *Transport {
	cfg := yamux.DefaultConfig()
	cfg.LogOutput = io.Discard
	cfg.EnableKeepAlive = true
	cfg.KeepAliveInterval = 15 * time.Second
	cfg.ConnectionWriteTimeout = 10 * time.Second
	return &Transport{
		keepAlive: 30 * time.Second,
		yamuxCfg:  cfg,
	}
}

// Name 传输名
func (t *Transport) Name() string { return Name }

// Listen 绑定 TCP 监听器
func (t *Transport) Listen(ctx context.Context, addr types.Address) (interfaces.Listener, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	lc := net.ListenConfig{KeepAlive: t.keepAlive}
	l, err := lc.Listen(ctx, "tcp", net.JoinHostPort(addr.Host, strconv.Itoa(addr.Port)))
	if err != nil {
		return nil, err
	}
	bound, err := types.AddressFromNetAddr(l.Addr())
	if err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("resolve bound address: %w", err)
	}
	return &Listener{inner: l, addr: bound, cfg: t.yamuxCfg}, nil
}

// Dial 拨号并建立 yamux 客户端会话
func (t *Transport) Dial(ctx context.Context, peer types.PeerInfo) (interfaces.Conn, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	d := net.Dialer{KeepAlive: t.keepAlive}
	raw, err := d.DialContext(ctx, "tcp", peer.Address().String())
	if err != nil {
		return nil, err
	}
	if tc, ok := raw.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	sess, err := yamux.Client(raw, t.yamuxCfg)
	if err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("yamux client: %w", err)
	}
	return newConn(sess), nil
}

// Close 之后 Listen/Dial 返回 ErrTransportClosed；已建立的监听器与连接不受影响
func (t *Transport) Close() error {
	t.closed.Store(true)
	return nil
}
