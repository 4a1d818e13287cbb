package quic

import (
	"context"

	"github.com/quic-go/quic-go"

	"github.com/dep2p/go-topicswarm/pkg/interfaces"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

// Listener QUIC 监听器
type Listener struct {
	inner *quic.Listener
	addr  types.Address
}

// Accept 接受下一条连接，Close 后返回错误
func (l *Listener) Accept() (interfaces.Conn, error) {
	qc, err := l.inner.Accept(context.Background())
	if err != nil {
		return nil, err
	}
	return newConn(qc), nil
}

// Addr 实际绑定地址
func (l *Listener) Addr() types.Address { return l.addr }

// Close 关闭监听器
func (l *Listener) Close() error { return l.inner.Close() }
