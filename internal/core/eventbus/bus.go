package eventbus

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-topicswarm/internal/util/logger"
	pkgif "github.com/dep2p/go-topicswarm/pkg/interfaces"
)

var log = logger.Logger("eventbus")

var (
	// ErrClosed 事件总线已关闭
	ErrClosed = errors.New("eventbus closed")
	// ErrInvalidEventType 事件类型为空或与发射器类型不符
	ErrInvalidEventType = errors.New("invalid event type")
	// ErrNonPointerType 以非指针指定事件类型
	ErrNonPointerType = errors.New("event type must be given as a pointer")
)

// ============================================================================
//                              Bus
// ============================================================================

// Bus 事件总线
type Bus struct {
	mu     sync.RWMutex
	closed bool
	nodes  map[reflect.Type]*node
}

var _ pkgif.EventBus = (*Bus)(nil)

// node 单个事件类型的订阅者与状态
type node struct {
	mu       sync.Mutex
	typ      reflect.Type
	sinks    []*Subscription
	emitters int
	keepLast bool
	last     interface{}
	hasLast  bool

	dropped atomic.Int64
}

// NewBus 创建事件总线
func NewBus() *Bus {
	return &Bus{nodes: make(map[reflect.Type]*node)}
}

func elemType(eventType interface{}) (reflect.Type, error) {
	if eventType == nil {
		return nil, ErrInvalidEventType
	}
	typ := reflect.TypeOf(eventType)
	if typ.Kind() != reflect.Ptr {
		return nil, ErrNonPointerType
	}
	return typ.Elem(), nil
}

// Subscribe 订阅事件类型
func (b *Bus) Subscribe(eventType interface{}, opts ...pkgif.SubscriptionOpt) (pkgif.Subscription, error) {
	typ, err := elemType(eventType)
	if err != nil {
		return nil, err
	}
	settings := pkgif.SubscriptionSettings{Buffer: DefaultBuffer}
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.Buffer < 1 {
		settings.Buffer = 1
	}

	n, err := b.node(typ)
	if errors.Is(err, ErrClosed) {
		return b.sealed(typ), nil
	}
	if err != nil {
		return nil, err
	}

	sub := &Subscription{bus: b, node: n, out: make(chan interface{}, settings.Buffer)}

	n.mu.Lock()
	n.sinks = append(n.sinks, sub)
	if n.keepLast && n.hasLast {
		sub.out <- n.last
	}
	n.mu.Unlock()

	return sub, nil
}

// Emitter 获取事件类型的发射器
func (b *Bus) Emitter(eventType interface{}, opts ...pkgif.EmitterOpt) (pkgif.Emitter, error) {
	typ, err := elemType(eventType)
	if err != nil {
		return nil, err
	}
	var settings pkgif.EmitterSettings
	for _, opt := range opts {
		opt(&settings)
	}

	n, err := b.node(typ)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	n.emitters++
	if settings.Stateful {
		n.keepLast = true
	}
	n.mu.Unlock()

	return &Emitter{bus: b, node: n}, nil
}

// GetAllEventTypes 返回已注册事件类型的指针零值
func (b *Bus) GetAllEventTypes() []interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]interface{}, 0, len(b.nodes))
	for typ := range b.nodes {
		out = append(out, reflect.New(typ).Interface())
	}
	return out
}

// Dropped 因订阅者缓冲区满而丢弃的事件数
func (b *Bus) Dropped(eventType interface{}) int64 {
	typ, err := elemType(eventType)
	if err != nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n, ok := b.nodes[typ]; ok {
		return n.dropped.Load()
	}
	return 0
}

// sealed 总线关闭后的订阅：只投递保留的最后事件（如有），随即关闭
func (b *Bus) sealed(typ reflect.Type) *Subscription {
	sub := &Subscription{bus: b, node: &node{typ: typ}, out: make(chan interface{}, 1)}
	b.mu.RLock()
	n, ok := b.nodes[typ]
	b.mu.RUnlock()
	if ok {
		n.mu.Lock()
		if n.keepLast && n.hasLast {
			sub.out <- n.last
		}
		n.mu.Unlock()
	}
	sub.closeChan()
	return sub
}

// Close 关闭总线并关闭全部订阅
//
// 之后 Emitter/Emit 返回 ErrClosed；Subscribe 仍然成功，
// 只收到有状态类型保留的最后事件，通道随即关闭。
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	nodes := make([]*node, 0, len(b.nodes))
	for _, n := range b.nodes {
		nodes = append(nodes, n)
	}
	b.mu.Unlock()

	for _, n := range nodes {
		n.mu.Lock()
		sinks := n.sinks
		n.sinks = nil
		n.mu.Unlock()
		for _, s := range sinks {
			s.closeChan()
		}
	}
	return nil
}

func (b *Bus) isClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

func (b *Bus) node(typ reflect.Type) (*node, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	n, ok := b.nodes[typ]
	if !ok {
		n = &node{typ: typ}
		b.nodes[typ] = n
	}
	return n, nil
}

// release 节点无订阅者与发射器且无保留事件时删除
func (b *Bus) release(n *node) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n.mu.Lock()
	idle := len(n.sinks) == 0 && n.emitters == 0 && !n.hasLast
	n.mu.Unlock()
	if idle && b.nodes[n.typ] == n {
		delete(b.nodes, n.typ)
	}
}

func (n *node) emit(event interface{}) error {
	if reflect.TypeOf(event) != n.typ {
		return fmt.Errorf("%w: got %T, want %s", ErrInvalidEventType, event, n.typ)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.keepLast {
		n.last = event
		n.hasLast = true
	}
	for _, sub := range n.sinks {
		select {
		case sub.out <- event:
		default:
			if dropped := n.dropped.Add(1); dropped%100 == 1 {
				log.Warn("订阅者消费过慢，事件被丢弃", "type", n.typ.String(), "dropped", dropped)
			}
		}
	}
	return nil
}
