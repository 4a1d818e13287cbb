package eventbus

import (
	"go.uber.org/fx"

	pkgif "github.com/dep2p/go-topicswarm/pkg/interfaces"
)

// Result fx 输出
type Result struct {
	fx.Out

	Bus      *Bus
	EventBus pkgif.EventBus
}

// Module 事件总线 fx 模块
//
// 总线由持有者关闭（Swarm 在发出关闭事件之后），不挂在 fx 生命周期上。
func Module() fx.Option {
	return fx.Module("eventbus",
		fx.Provide(Provide),
	)
}

// Provide 提供事件总线
func Provide() Result {
	bus := NewBus()
	return Result{Bus: bus, EventBus: bus}
}
