package tcp

import (
	"errors"
	"fmt"
	"net"

	"github.com/hashicorp/yamux"

	"github.com/dep2p/go-topicswarm/pkg/interfaces"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

// ErrTransportClosed 传输已关闭
var ErrTransportClosed = errors.New("tcp transport closed")

// Listener TCP 监听器，接受的连接被升级为 yamux 服务端会话
type Listener struct {
	inner net.Listener
	addr  types.Address
	cfg   *yamux.Config
}

// Accept 接受并升级下一条连接
//
// 单条连接升级失败时关闭它并继续等待下一条。
func (l *Listener) Accept() (interfaces.Conn, error) {
	for {
		raw, err := l.inner.Accept()
		if err != nil {
			return nil, err
		}
		sess, err := yamux.Server(raw, l.cfg)
		if err != nil {
			_ = raw.Close()
			log.Debug("入站连接升级 yamux 失败", "remote", raw.RemoteAddr().String(), "err", err)
			continue
		}
		return newConn(sess), nil
	}
}

// Addr 实际绑定地址
func (l *Listener) Addr() types.Address { return l.addr }

// Close 关闭监听器
func (l *Listener) Close() error {
	if err := l.inner.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("close listener: %w", err)
	}
	return nil
}
