package discovery

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-topicswarm/config"
	"github.com/dep2p/go-topicswarm/internal/core/discovery/backend"
	"github.com/dep2p/go-topicswarm/internal/core/discovery/mdns"
	"github.com/dep2p/go-topicswarm/internal/core/discovery/memory"
	"github.com/dep2p/go-topicswarm/internal/core/discovery/static"
	"github.com/dep2p/go-topicswarm/pkg/interfaces"
)

// ============================================================================
//                              fx 模块
// ============================================================================

// Params fx 输入
type Params struct {
	fx.In

	Config *config.Config
	Clock  clock.Clock `optional:"true"`

	// Network 进程内会合点；未提供时使用进程级默认会合点
	Network *memory.Network `optional:"true"`

	// Override 外部注入的发现服务（WithDiscovery），存在时不按配置构建
	Override interfaces.Discovery `name:"discovery_override" optional:"true"`
}

// Result fx 输出
type Result struct {
	fx.Out

	Discovery interfaces.Discovery
}

// Module 发现 fx 模块
func Module() fx.Option {
	return fx.Module("discovery",
		fx.Provide(Provide),
	)
}

// Provide 提供发现服务
func Provide(p Params) (Result, error) {
	if p.Override != nil {
		return Result{Discovery: p.Override}, nil
	}
	backends, err := BuildBackends(p.Config.Discovery, p.Network, p.Clock)
	if err != nil {
		return Result{}, err
	}
	opts := []Option{}
	if p.Clock != nil {
		opts = append(opts, WithClock(p.Clock))
	}
	return Result{Discovery: NewService(backends, opts...)}, nil
}

// BuildBackends 按配置构建后端列表
func BuildBackends(cfg config.DiscoveryConfig, n *memory.Network, clk clock.Clock) ([]backend.Backend, error) {
	base := time.Duration(cfg.LookupInterval)
	max := time.Duration(cfg.MaxLookupInterval)

	var out []backend.Backend
	if cfg.EnableMemory {
		if n == nil {
			n = memory.Default()
		}
		out = append(out, memory.NewBackend(n, clk, base, max))
	}
	if cfg.EnableStatic && len(cfg.StaticPeers) > 0 {
		sb, err := static.FromConfig(cfg.StaticPeers)
		if err != nil {
			return nil, err
		}
		out = append(out, sb)
	}
	if cfg.EnableMDNS {
		out = append(out, mdns.New(mdns.Config{
			ServicePrefix: cfg.MDNSService,
			BaseInterval:  base,
			MaxInterval:   max,
		}, clk))
	}
	if len(out) == 0 {
		return nil, ErrNoBackends
	}
	return out, nil
}
