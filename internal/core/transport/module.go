// Package transport 按配置选择传输实现并提供 fx 模块
//
//   - tcp: TCP + yamux（internal/core/transport/tcp）
//   - quic: quic-go（internal/core/transport/quic）
package transport

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/dep2p/go-topicswarm/config"
	"github.com/dep2p/go-topicswarm/internal/core/transport/quic"
	"github.com/dep2p/go-topicswarm/internal/core/transport/tcp"
	"github.com/dep2p/go-topicswarm/pkg/interfaces"
)

// New 按协议名创建传输
func New(cfg config.TransportConfig) (interfaces.Transport, error) {
	switch cfg.Protocol {
	case config.ProtocolTCP, "":
		return tcp.New(), nil
	case config.ProtocolQUIC:
		return quic.New(cfg.ALPN), nil
	default:
		return nil, fmt.Errorf("unsupported transport protocol %q", cfg.Protocol)
	}
}

// Params fx 输入
type Params struct {
	fx.In

	Config *config.Config

	// Override 外部注入的传输（WithTransport），存在时不按配置创建
	Override interfaces.Transport `name:"transport_override" optional:"true"`
}

// Result fx 输出
type Result struct {
	fx.Out

	Transport interfaces.Transport
}

// Module 传输 fx 模块；应用停止时关闭按配置创建的传输
//
// 外部注入的传输归调用方所有，不随应用停止而关闭，可在多个 Swarm 间共享。
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(Provide),
		fx.Invoke(registerLifecycle),
	)
}

// Provide 提供传输
func Provide(p Params) (Result, error) {
	if p.Override != nil {
		return Result{Transport: p.Override}, nil
	}
	t, err := New(p.Config.Transport)
	if err != nil {
		return Result{}, err
	}
	return Result{Transport: t}, nil
}

type lifecycleParams struct {
	fx.In

	LC        fx.Lifecycle
	Transport interfaces.Transport
	Override  interfaces.Transport `name:"transport_override" optional:"true"`
}

func registerLifecycle(p lifecycleParams) {
	if p.Override != nil {
		return
	}
	p.LC.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return p.Transport.Close()
		},
	})
}
