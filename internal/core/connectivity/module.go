package connectivity

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-topicswarm/config"
)

// Params fx 输入
type Params struct {
	fx.In

	Config *config.Config
	Clock  clock.Clock `optional:"true"`
}

// Result fx 输出
type Result struct {
	fx.Out

	Prober *Prober
}

// Module 连通性探测 fx 模块
func Module() fx.Option {
	return fx.Module("connectivity",
		fx.Provide(Provide),
	)
}

// Provide 提供探测器
func Provide(p Params) Result {
	return Result{Prober: New(p.Config.Connectivity, WithClock(p.Clock))}
}
