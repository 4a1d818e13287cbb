package interfaces

// EventBus 类型化事件总线
//
// 事件类型以指针形式指定：Subscribe(new(types.EvtSwarmClosed))。
type EventBus interface {
	// Subscribe 订阅事件类型
	Subscribe(eventType interface{}, opts ...SubscriptionOpt) (Subscription, error)

	// Emitter 获取事件类型的发射器
	Emitter(eventType interface{}, opts ...EmitterOpt) (Emitter, error)

	// GetAllEventTypes 返回已注册的事件类型
	GetAllEventTypes() []interface{}
}

// Subscription 事件订阅
type Subscription interface {
	// Out 事件通道，Close 后关闭
	Out() <-chan interface{}

	// Close 取消订阅，幂等
	Close() error
}

// Emitter 事件发射器
type Emitter interface {
	// Emit 发射事件
	Emit(event interface{}) error

	// Close 关闭发射器，幂等
	Close() error
}

// SubscriptionOpt 订阅选项
type SubscriptionOpt func(*SubscriptionSettings)

// EmitterOpt 发射器选项
type EmitterOpt func(*EmitterSettings)

// SubscriptionSettings 订阅设置
type SubscriptionSettings struct {
	Buffer int
}

// EmitterSettings 发射器设置
type EmitterSettings struct {
	// Stateful 保留最后一个事件，晚订阅者订阅时立即收到
	Stateful bool
}

// BufSize 设置订阅缓冲区大小
func BufSize(size int) SubscriptionOpt {
	return func(s *SubscriptionSettings) {
		s.Buffer = size
	}
}

// Stateful 设置发射器为有状态模式
func Stateful() EmitterOpt {
	return func(s *EmitterSettings) {
		s.Stateful = true
	}
}
