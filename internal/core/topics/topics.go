// Package topics 维护 Swarm 已加入的主题及其后台发现任务
//
// 每个主题至多一个发现任务：以不同选项重复加入会重启任务而不是叠加，
// 离开或取消时任务被取消，其结果泵在发现通道关闭后退出。
package topics

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-topicswarm/internal/util/logger"
	"github.com/dep2p/go-topicswarm/pkg/interfaces"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

// ErrTableClosed 主题表已取消
var ErrTableClosed = errors.New("topic table closed")

// Starter 启动主题的发现任务，不得阻塞
type Starter func(ctx context.Context, key types.TopicKey, opts types.JoinOptions) (interfaces.DiscoveryTask, error)

// PeerFunc 发现结果处理函数，在结果泵 goroutine 中调用
type PeerFunc func(key types.TopicKey, peer types.PeerInfo)

// Topic 已加入的主题
type Topic struct {
	Key      types.TopicKey
	Options  types.JoinOptions
	JoinedAt time.Time

	task     interfaces.DiscoveryTask
	pumpDone chan struct{}
}

// Task 当前发现任务
func (t *Topic) Task() interfaces.DiscoveryTask { return t.task }

// Table 主题表
type Table struct {
	ctx    context.Context
	start  Starter
	onPeer PeerFunc
	log    *slog.Logger

	mu       sync.Mutex
	closed   bool
	topics   map[types.TopicKey]*Topic
	draining map[*Topic]struct{}
}

// New 创建主题表
func New(ctx context.Context, start Starter, onPeer PeerFunc, log *slog.Logger) *Table {
	return &Table{
		ctx:      ctx,
		start:    start,
		onPeer:   onPeer,
		log:      logger.OrDiscard(log),
		topics:   make(map[types.TopicKey]*Topic),
		draining: make(map[*Topic]struct{}),
	}
}

// Join 加入主题或更新其选项
//
// 选项不变时不做任何事；选项变化时启动新任务并取消旧任务，restarted 为 true。
func (t *Table) Join(key types.TopicKey, opts types.JoinOptions) (topic *Topic, restarted bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, false, ErrTableClosed
	}

	old, exists := t.topics[key]
	if exists && old.Options == opts {
		return old, false, nil
	}

	task, err := t.start(t.ctx, key, opts)
	if err != nil {
		return nil, false, err
	}

	topic = &Topic{
		Key:      key,
		Options:  opts,
		JoinedAt: time.Now(),
		task:     task,
		pumpDone: make(chan struct{}),
	}
	t.topics[key] = topic
	go t.pump(topic)

	if exists {
		t.retireLocked(old)
		t.log.Debug("主题选项变化，重启发现任务", "topic", key.ShortString(),
			"announce", opts.Announce, "lookup", opts.Lookup)
	}
	return topic, exists, nil
}

// Leave 离开主题；未加入时返回 false
//
// 任务被取消但不等待其结束，CancelAll 会等待所有退役任务。
func (t *Table) Leave(key types.TopicKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	topic, ok := t.topics[key]
	if !ok {
		return false
	}
	delete(t.topics, key)
	t.retireLocked(topic)
	return true
}

func (t *Table) retireLocked(topic *Topic) {
	topic.task.Cancel()
	t.draining[topic] = struct{}{}
	go func() {
		<-topic.pumpDone
		t.mu.Lock()
		delete(t.draining, topic)
		t.mu.Unlock()
	}()
}

// pump 把发现结果转交 onPeer，直到任务结束
func (t *Table) pump(topic *Topic) {
	defer close(topic.pumpDone)
	for peer := range topic.task.Peers() {
		if !t.current(topic) {
			continue
		}
		t.onPeer(topic.Key, peer)
	}
	<-topic.task.Done()
	if err := topic.task.Err(); !cancellation(err) {
		t.log.Warn("发现任务异常结束", "topic", topic.Key.ShortString(), "err", err)
	}
}

func (t *Table) current(topic *Topic) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed && t.topics[topic.Key] == topic
}

// Get 查找主题
func (t *Table) Get(key types.TopicKey) (*Topic, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	topic, ok := t.topics[key]
	return topic, ok
}

// Keys 已加入主题的密钥
func (t *Table) Keys() []types.TopicKey {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]types.TopicKey, 0, len(t.topics))
	for k := range t.topics {
		keys = append(keys, k)
	}
	return keys
}

// Len 已加入主题数
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.topics)
}

// Draining 已取消但尚未结束的任务数
func (t *Table) Draining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.draining)
}

// CancelAll 取消全部任务并等待其结果泵退出
//
// 之后 Join 返回 ErrTableClosed。ctx 到期时返回 ctx 错误。
func (t *Table) CancelAll(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	var pending []*Topic
	for key, topic := range t.topics {
		topic.task.Cancel()
		pending = append(pending, topic)
		delete(t.topics, key)
	}
	for topic := range t.draining {
		pending = append(pending, topic)
	}
	t.mu.Unlock()

	var errs error
	for _, topic := range pending {
		select {
		case <-topic.pumpDone:
		case <-ctx.Done():
			return multierr.Append(errs, ctx.Err())
		}
		if err := topic.task.Err(); !cancellation(err) {
			errs = multierr.Append(errs, err)
		}
	}

	t.mu.Lock()
	for _, topic := range pending {
		delete(t.draining, topic)
	}
	t.mu.Unlock()
	return errs
}

// cancellation 任务因取消而结束（或正常结束）
func cancellation(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, types.ErrCancelled)
}
