// Package quic 提供基于 quic-go 的传输
//
// QUIC 原生多路复用，流直接映射为 quic.Stream。
package quic

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/dep2p/go-topicswarm/internal/util/logger"
	"github.com/dep2p/go-topicswarm/pkg/interfaces"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

var log = logger.Logger("transport/quic")

// Name 传输名
const Name = "quic"

// ErrTransportClosed 传输已关闭
var ErrTransportClosed = errors.New("quic transport closed")

// Transport QUIC 传输
type Transport struct {
	alpn   string
	config *quic.Config

	tlsOnce sync.Once
	tlsConf *tls.Config
	tlsErr  error

	closed atomic.Bool
}

var _ interfaces.Transport = (*Transport)(nil)

// New 创建 QUIC 传输
func New(alpn string) *Transport {
	return &Transport{
		alpn: alpn,
		config: &quic.Config{
			MaxIdleTimeout:       30 * time.Second,
			KeepAlivePeriod:      10 * time.Second,
			HandshakeIdleTimeout: 10 * time.Second,
		},
	}
}

// Name 传输名
func (t *Transport) Name() string { return Name }

func (t *Transport) serverTLS() (*tls.Config, error) {
	t.tlsOnce.Do(func() {
		t.tlsConf, t.tlsErr = selfSignedConfig(t.alpn)
	})
	return t.tlsConf, t.tlsErr
}

// Listen 绑定 UDP 端口
func (t *Transport) Listen(ctx context.Context, addr types.Address) (interfaces.Listener, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tlsConf, err := t.serverTLS()
	if err != nil {
		return nil, err
	}
	ql, err := quic.ListenAddr(net.JoinHostPort(addr.Host, strconv.Itoa(addr.Port)), tlsConf, t.config)
	if err != nil {
		return nil, err
	}
	bound, err := types.AddressFromNetAddr(ql.Addr())
	if err != nil {
		_ = ql.Close()
		return nil, fmt.Errorf("resolve bound address: %w", err)
	}
	log.Debug("QUIC 监听已绑定", "addr", bound.String())
	return &Listener{inner: ql, addr: bound}, nil
}

// Dial 拨号
func (t *Transport) Dial(ctx context.Context, peer types.PeerInfo) (interfaces.Conn, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	qc, err := quic.DialAddr(ctx, peer.Address().String(), clientConfig(t.alpn), t.config)
	if err != nil {
		return nil, err
	}
	return newConn(qc), nil
}

// Close 之后 Listen/Dial 返回 ErrTransportClosed
func (t *Transport) Close() error {
	t.closed.Store(true)
	return nil
}
