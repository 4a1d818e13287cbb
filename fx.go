package topicswarm

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-topicswarm/internal/core/connectivity"
	"github.com/dep2p/go-topicswarm/internal/core/discovery"
	"github.com/dep2p/go-topicswarm/internal/core/eventbus"
	"github.com/dep2p/go-topicswarm/internal/core/peerbook"
	"github.com/dep2p/go-topicswarm/internal/core/transport"
	"github.com/dep2p/go-topicswarm/pkg/interfaces"
)

// components 由 fx 组装的组件
type components struct {
	bus       *eventbus.Bus
	transport interfaces.Transport
	discovery interfaces.Discovery
	prober    *connectivity.Prober
	book      *peerbook.Book
}

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：配置与时钟 → 事件总线 → 传输 → 发现 → 连通性探测 → 节点簿。
// 通过选项注入的传输与发现以命名值提供，模块检测到时跳过按配置创建。
func buildFxApp(o *options, c *components) *fx.App {
	clk := o.clock
	if clk == nil {
		clk = clock.New()
	}

	modules := []fx.Option{
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),

		// 配置注入
		fx.Supply(o.config),
		fx.Provide(func() clock.Clock { return clk }),

		eventbus.Module(),
		transport.Module(),
		discovery.Module(),
		connectivity.Module(),
		peerbook.Module(),
	}

	if o.transport != nil {
		t := o.transport
		modules = append(modules, fx.Provide(fx.Annotate(
			func() interfaces.Transport { return t },
			fx.ResultTags(`name:"transport_override"`),
		)))
	}
	if o.discovery != nil {
		d := o.discovery
		modules = append(modules, fx.Provide(fx.Annotate(
			func() interfaces.Discovery { return d },
			fx.ResultTags(`name:"discovery_override"`),
		)))
	}
	if o.network != nil {
		modules = append(modules, fx.Supply(o.network))
	}

	modules = append(modules, fx.Populate(
		&c.bus,
		&c.transport,
		&c.discovery,
		&c.prober,
		&c.book,
	))

	return fx.New(modules...)
}
