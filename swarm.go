package topicswarm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-topicswarm/config"
	"github.com/dep2p/go-topicswarm/internal/core/handle"
	"github.com/dep2p/go-topicswarm/internal/core/metrics"
	"github.com/dep2p/go-topicswarm/internal/core/registry"
	"github.com/dep2p/go-topicswarm/internal/core/topics"
	"github.com/dep2p/go-topicswarm/internal/util/logger"
	"github.com/dep2p/go-topicswarm/pkg/interfaces"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

// startTimeout fx 应用启动超时
const startTimeout = 10 * time.Second

// Swarm 按主题发现并维护对等连接
//
// 生命周期单调推进 Active → Destroying → Destroyed。所有状态转换都在 mu 下进行，
// 后台 goroutine（绑定、拨号、探测、接受循环、主题泵）只在 Active 时于 mu 下启动，
// 并由根作用域 group 追踪；Destroy 关闭作用域并等待它们全部结算。
type Swarm struct {
	id     string
	config *config.Config
	clock  clock.Clock
	log    *slog.Logger

	app *fx.App
	components

	group  *handle.Group
	conns  *registry.Registry
	topics *topics.Table

	dialSem     *semaphore.Weighted
	dialLimiter *rate.Limiter

	emitters emitters
	stats    counters

	// metrics 为 nil 表示未导出指标
	metricsReg prometheus.Registerer
	collector  *metrics.Collector

	// listenAddr 供发现后端读取，避免在发现 goroutine 中持有 mu
	listenAddr atomic.Pointer[types.Address]

	mu         sync.Mutex
	state      types.SwarmState
	listener   interfaces.Listener
	bind       *bindAttempt
	destroyErr error
	done       chan struct{}
	observers  []func(error)
}

// counters 统计计数
type counters struct {
	dialed     atomic.Int64
	dialFailed atomic.Int64
	accepted   atomic.Int64
	refused    atomic.Int64
	discovered atomic.Int64
}

// New 创建 Swarm
//
// 创建后处于 Active，但尚未监听；调用 Listen 绑定端口，Join 加入主题。
func New(opts ...Option) (*Swarm, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if err := o.config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	id := uuid.NewString()
	s := &Swarm{
		id:     id,
		config: o.config,
		clock:  o.clock,
		log:    logger.ForSwarm("swarm", id),
		state:  types.StateActive,
		done:   make(chan struct{}),
	}
	if s.clock == nil {
		s.clock = clock.New()
	}

	s.app = buildFxApp(o, &s.components)
	if err := s.app.Err(); err != nil {
		return nil, fmt.Errorf("build swarm: %w", err)
	}
	startCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	if err := s.app.Start(startCtx); err != nil {
		return nil, fmt.Errorf("start swarm: %w", err)
	}

	if err := s.emitters.init(s.bus); err != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), startTimeout)
		defer stopCancel()
		_ = s.app.Stop(stopCtx)
		return nil, err
	}

	swarmCfg := s.config.Swarm
	s.dialSem = semaphore.NewWeighted(int64(swarmCfg.MaxConcurrentDials))
	if swarmCfg.DialRate > 0 {
		s.dialLimiter = rate.NewLimiter(rate.Limit(swarmCfg.DialRate), swarmCfg.DialBurst)
	} else {
		s.dialLimiter = rate.NewLimiter(rate.Inf, 0)
	}

	s.group = handle.NewGroup(context.Background())
	s.conns = registry.New(s.group.Context(), registry.Hooks{
		Opened:  s.connectionOpened,
		Removed: s.connectionRemoved,
	}, logger.ForSwarm("registry", id))
	s.topics = topics.New(s.group.Context(), s.startDiscovery, s.peerDiscovered, logger.ForSwarm("topics", id))

	if o.metrics != nil {
		s.registerMetrics(o.metrics)
	}

	live.add(s)
	s.log.Info("Swarm 已创建",
		"protocol", s.transport.Name(),
		"maxPeers", swarmCfg.MaxPeers,
		"peerBook", s.book != nil)
	return s, nil
}

// ID Swarm 标识
func (s *Swarm) ID() string { return s.id }

// State 当前生命周期状态
func (s *Swarm) State() types.SwarmState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Config 配置副本
func (s *Swarm) Config() *config.Config { return s.config.Clone() }

// Connections 当前连接快照（含待建立）
func (s *Swarm) Connections() []*Connection {
	return s.conns.All()
}

// Topics 已加入的主题
func (s *Swarm) Topics() []types.TopicKey {
	return s.topics.Keys()
}

// Stats Swarm 统计
type Stats struct {
	State       types.SwarmState
	Listening   bool
	Address     types.Address
	Topics      int
	Pending     int
	Established int
	Dialed      int64
	DialFailed  int64
	Accepted    int64
	Refused     int64
	Discovered  int64
}

// Stats 统计快照
func (s *Swarm) Stats() Stats {
	st := Stats{
		Topics:      s.topics.Len(),
		Pending:     s.conns.Count(types.PhasePending),
		Established: s.conns.Count(types.PhaseEstablished),
		Dialed:      s.stats.dialed.Load(),
		DialFailed:  s.stats.dialFailed.Load(),
		Accepted:    s.stats.accepted.Load(),
		Refused:     s.stats.refused.Load(),
		Discovered:  s.stats.discovered.Load(),
	}
	s.mu.Lock()
	st.State = s.state
	if s.listener != nil {
		st.Listening = true
		st.Address = s.listener.Addr()
	}
	s.mu.Unlock()
	return st
}

// registerMetrics 注册指标采集器；失败只记录日志
func (s *Swarm) registerMetrics(reg prometheus.Registerer) {
	col := metrics.NewCollector(s.id, func() metrics.Snapshot {
		st := s.Stats()
		return metrics.Snapshot{
			State:       st.State,
			Topics:      st.Topics,
			Pending:     st.Pending,
			Established: st.Established,
			Dialed:      st.Dialed,
			DialFailed:  st.DialFailed,
			Accepted:    st.Accepted,
			Refused:     st.Refused,
			Discovered:  st.Discovered,
		}
	})
	if err := reg.Register(col); err != nil {
		s.log.Warn("注册指标失败", "err", err)
		return
	}
	s.metricsReg, s.collector = reg, col
}

// unregisterMetrics 注销指标采集器
func (s *Swarm) unregisterMetrics() {
	if s.collector != nil {
		s.metricsReg.Unregister(s.collector)
	}
}

// activeLocked 调用方须持有 mu
func (s *Swarm) activeLocked() error {
	if s.state != types.StateActive {
		return types.ErrDestroyed
	}
	return nil
}
