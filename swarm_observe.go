package topicswarm

import (
	"errors"

	"github.com/dep2p/go-topicswarm/internal/core/eventbus"
	pkgif "github.com/dep2p/go-topicswarm/pkg/interfaces"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              事件
// ════════════════════════════════════════════════════════════════════════════

// emitters Swarm 使用的事件发射器
type emitters struct {
	listening  pkgif.Emitter
	joined     pkgif.Emitter
	left       pkgif.Emitter
	discovered pkgif.Emitter
	opened     pkgif.Emitter
	closed     pkgif.Emitter
	swarm      pkgif.Emitter
}

func (e *emitters) init(bus *eventbus.Bus) error {
	var err error
	if e.listening, err = bus.Emitter(new(types.EvtListening)); err != nil {
		return err
	}
	if e.joined, err = bus.Emitter(new(types.EvtTopicJoined)); err != nil {
		return err
	}
	if e.left, err = bus.Emitter(new(types.EvtTopicLeft)); err != nil {
		return err
	}
	if e.discovered, err = bus.Emitter(new(types.EvtPeerDiscovered)); err != nil {
		return err
	}
	if e.opened, err = bus.Emitter(new(types.EvtConnectionOpened)); err != nil {
		return err
	}
	if e.closed, err = bus.Emitter(new(types.EvtConnectionClosed)); err != nil {
		return err
	}
	e.swarm, err = bus.Emitter(new(types.EvtSwarmClosed), eventbus.Stateful())
	return err
}

func (e *emitters) all() []pkgif.Emitter {
	return []pkgif.Emitter{e.listening, e.joined, e.left, e.discovered, e.opened, e.closed, e.swarm}
}

// emit 发射事件；总线关闭后的发射静默丢弃
func (s *Swarm) emit(em pkgif.Emitter, evt interface{}) {
	if err := em.Emit(evt); err != nil && !errors.Is(err, eventbus.ErrClosed) {
		s.log.Debug("发射事件失败", "err", err)
	}
}

// Subscribe 订阅 Swarm 事件，事件类型以指针形式指定
//
//	sub, _ := s.Subscribe(new(types.EvtSwarmClosed))
//	evt := (<-sub.Out()).(types.EvtSwarmClosed)
//
// 销毁之后订阅 EvtSwarmClosed 仍会收到关闭事件，随后通道关闭。
func (s *Swarm) Subscribe(eventType interface{}, opts ...pkgif.SubscriptionOpt) (pkgif.Subscription, error) {
	return s.bus.Subscribe(eventType, opts...)
}

// EventBus 事件总线
func (s *Swarm) EventBus() pkgif.EventBus { return s.bus }

// ════════════════════════════════════════════════════════════════════════════
//                              关闭观察者
// ════════════════════════════════════════════════════════════════════════════

// Done 到达 Destroyed 时关闭
func (s *Swarm) Done() <-chan struct{} { return s.done }

// OnClose 注册关闭观察者，到达 Destroyed 时以销毁错误调用一次
//
// 已销毁时立即在调用方 goroutine 中调用。
func (s *Swarm) OnClose(fn func(err error)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	if s.state == types.StateDestroyed {
		err := s.destroyErr
		s.mu.Unlock()
		fn(err)
		return
	}
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// ════════════════════════════════════════════════════════════════════════════
//                              用户回调
// ════════════════════════════════════════════════════════════════════════════

// detach 在独立 goroutine 中执行用户回调，返回时回调已开始执行
//
// 销毁流程只等待回调被调用，不等待其返回；回调内可以调用 Close 等待销毁完成。
func detach(fn func()) {
	started := make(chan struct{})
	go func() {
		close(started)
		fn()
	}()
	<-started
}
