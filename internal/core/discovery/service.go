// Package discovery 实现按主题的节点发现
//
// Service 把多个后端（memory / mdns / static）合并为一个发现任务：
// 每个后端在独立 goroutine 中运行，结果按地址去重后写入任务的 Peers 通道；
// 全部后端返回后通道关闭、任务结束。
package discovery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/multierr"

	"github.com/dep2p/go-topicswarm/internal/core/discovery/backend"
	"github.com/dep2p/go-topicswarm/internal/util/logger"
	"github.com/dep2p/go-topicswarm/pkg/interfaces"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

// ErrNoBackends 未配置任何发现后端
var ErrNoBackends = errors.New("no discovery backends configured")

// seenCacheSize 每个任务记住的最近报告地址数
const seenCacheSize = 1024

// Service 多后端发现服务
type Service struct {
	backends    []backend.Backend
	clock       clock.Clock
	redeliverIn time.Duration
	log         *slog.Logger
}

var _ interfaces.Discovery = (*Service)(nil)

// Option 服务选项
type Option func(*Service)

// WithClock 注入时钟
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithRedeliverAfter 同一地址在该时长后可被再次报告
func WithRedeliverAfter(d time.Duration) Option {
	return func(s *Service) { s.redeliverIn = d }
}

// WithLogger 设置日志
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService 创建发现服务
func NewService(backends []backend.Backend, opts ...Option) *Service {
	s := &Service{
		backends:    backends,
		clock:       clock.New(),
		redeliverIn: 30 * time.Second,
		log:         logger.Logger("discovery"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backends 后端名称
func (s *Service) Backends() []string {
	names := make([]string, len(s.backends))
	for i, b := range s.backends {
		names[i] = b.Name()
	}
	return names
}

// Start 启动主题发现任务
func (s *Service) Start(ctx context.Context, req interfaces.StartRequest) (interfaces.DiscoveryTask, error) {
	if len(s.backends) == 0 {
		return nil, ErrNoBackends
	}
	if req.Local == nil {
		req.Local = func() (types.Address, bool) { return types.Address{}, false }
	}

	seen, err := lru.New[types.Address, time.Time](seenCacheSize)
	if err != nil {
		return nil, err
	}
	tctx, cancel := context.WithCancel(ctx)
	t := &task{
		ctx:    tctx,
		cancel: cancel,
		peers:  make(chan types.PeerInfo, 32),
		done:   make(chan struct{}),
		seen:   seen,
	}

	found := func(p types.PeerInfo) {
		key := req.Key
		p = p.WithTopic(key, p.Source)
		if !t.admit(p.Address(), s.clock.Now(), s.redeliverIn) {
			return
		}
		select {
		case t.peers <- p:
		case <-tctx.Done():
		}
	}

	var wg sync.WaitGroup
	for _, b := range s.backends {
		wg.Add(1)
		go func(b backend.Backend) {
			defer wg.Done()
			err := b.Run(tctx, req, found)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.log.Warn("发现后端异常退出", "backend", b.Name(), "topic", req.Key.ShortString(), "err", err)
				t.addErr(err)
			}
		}(b)
	}

	go func() {
		wg.Wait()
		cancel()
		close(t.peers)
		close(t.done)
	}()

	s.log.Debug("发现任务已启动", "topic", req.Key.ShortString(),
		"announce", req.Options.Announce, "lookup", req.Options.Lookup, "backends", len(s.backends))
	return t, nil
}

// task 发现任务
type task struct {
	ctx    context.Context
	cancel context.CancelFunc
	peers  chan types.PeerInfo
	done   chan struct{}

	// seen 最近报告时间，容量有限，淘汰的地址可被再次报告
	seen *lru.Cache[types.Address, time.Time]

	mu  sync.Mutex
	err error
}

func (t *task) admit(addr types.Address, now time.Time, window time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if last, ok := t.seen.Peek(addr); ok && now.Sub(last) < window {
		return false
	}
	t.seen.Add(addr, now)
	return true
}

func (t *task) addErr(err error) {
	t.mu.Lock()
	t.err = multierr.Append(t.err, err)
	t.mu.Unlock()
}

func (t *task) Peers() <-chan types.PeerInfo { return t.peers }

func (t *task) Cancel() { t.cancel() }

func (t *task) Done() <-chan struct{} { return t.done }

func (t *task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
