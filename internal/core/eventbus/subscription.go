package eventbus

import (
	"sync"
)

// ============================================================================
//                              Subscription
// ============================================================================

// Subscription 事件订阅
type Subscription struct {
	bus  *Bus
	node *node
	out  chan interface{}

	once sync.Once
}

// Out 事件通道，订阅关闭后关闭
func (s *Subscription) Out() <-chan interface{} { return s.out }

// Close 取消订阅，可重复调用
func (s *Subscription) Close() error {
	s.node.mu.Lock()
	for i, sink := range s.node.sinks {
		if sink == s {
			s.node.sinks = append(s.node.sinks[:i], s.node.sinks[i+1:]...)
			break
		}
	}
	s.node.mu.Unlock()

	s.closeChan()
	s.bus.release(s.node)
	return nil
}

// closeChan 调用方须已将 s 移出 node.sinks
func (s *Subscription) closeChan() {
	s.once.Do(func() { close(s.out) })
}

// ============================================================================
//                              Emitter
// ============================================================================

// Emitter 事件发射器
type Emitter struct {
	bus  *Bus
	node *node

	mu     sync.Mutex
	closed bool
}

// Emit 发射事件，event 的类型必须与发射器类型一致
func (e *Emitter) Emit(event interface{}) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed || e.bus.isClosed() {
		return ErrClosed
	}
	return e.node.emit(event)
}

// Close 关闭发射器，可重复调用
func (e *Emitter) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.node.mu.Lock()
	e.node.emitters--
	e.node.mu.Unlock()
	e.bus.release(e.node)
	return nil
}
