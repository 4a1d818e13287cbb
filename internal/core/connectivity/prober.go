package connectivity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/semaphore"

	"github.com/dep2p/go-topicswarm/config"
	"github.com/dep2p/go-topicswarm/internal/util/logger"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

// 探测方式
const (
	MethodTCP  = "tcp"
	MethodSTUN = "stun"
)

// ProbeFunc 探测单个端点，返回外部地址（如有）
type ProbeFunc func(ctx context.Context, endpoint string) (publicAddr string, err error)

// Target 探测目标
type Target struct {
	Method   string
	Endpoint string
}

// Prober 连通性探测器
type Prober struct {
	cfg    config.ConnectivityConfig
	clock  clock.Clock
	probes map[string]ProbeFunc
	log    *slog.Logger
}

// Option 探测器选项
type Option func(*Prober)

// WithClock 注入时钟
func WithClock(c clock.Clock) Option {
	return func(p *Prober) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithProbe 替换某种方式的探测实现
func WithProbe(method string, fn ProbeFunc) Option {
	return func(p *Prober) { p.probes[method] = fn }
}

// WithLogger 设置日志
func WithLogger(l *slog.Logger) Option {
	return func(p *Prober) { p.log = l }
}

// New 创建探测器
func New(cfg config.ConnectivityConfig, opts ...Option) *Prober {
	p := &Prober{
		cfg:   cfg,
		clock: clock.New(),
		probes: map[string]ProbeFunc{
			MethodTCP:  tcpProbe,
			MethodSTUN: stunBinding,
		},
		log: logger.Logger("connectivity"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cfg.MaxConcurrent < 1 {
		p.cfg.MaxConcurrent = 1
	}
	return p
}

// Targets 本轮探测的端点，引导节点在前
func (p *Prober) Targets() []Target {
	out := make([]Target, 0, len(p.cfg.BootstrapEndpoints)+len(p.cfg.STUNServers))
	for _, ep := range p.cfg.BootstrapEndpoints {
		out = append(out, Target{Method: MethodTCP, Endpoint: ep})
	}
	for _, ep := range p.cfg.STUNServers {
		out = append(out, Target{Method: MethodSTUN, Endpoint: ep})
	}
	return out
}

type outcome struct {
	target     Target
	rtt        time.Duration
	publicAddr string
	err        error
}

// Probe 执行一轮探测
//
// 首个成功的端点决定结果；全部失败时返回 Reachable=false 的结果和 nil 错误。
// ctx 结束时返回 *types.CancelledError。
func (p *Prober) Probe(ctx context.Context) (types.ConnectivityResult, error) {
	targets := p.Targets()
	if len(targets) == 0 {
		return types.ConnectivityResult{
			Detail:    "no endpoints configured",
			CheckedAt: p.clock.Now(),
		}, nil
	}

	pctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := semaphore.NewWeighted(int64(p.cfg.MaxConcurrent))
	results := make(chan outcome, len(targets))
	go func() {
		var wg sync.WaitGroup
		defer func() {
			wg.Wait()
			close(results)
		}()
		for _, tg := range targets {
			// 已有端点应答或 ctx 结束后不再启动新的探测
			if err := sem.Acquire(pctx, 1); err != nil {
				return
			}
			wg.Add(1)
			go func(tg Target) {
				defer wg.Done()
				defer sem.Release(1)
				results <- p.probeOne(pctx, tg)
			}(tg)
		}
	}()

	res := types.ConnectivityResult{}
	var failures []string
	for o := range results {
		res.Attempts++
		if o.err != nil {
			failures = append(failures, fmt.Sprintf("%s %s: %v", o.target.Method, o.target.Endpoint, o.err))
			continue
		}
		if !res.Reachable {
			res.Reachable = true
			res.Endpoint = o.target.Endpoint
			res.Method = o.target.Method
			res.RTT = o.rtt
			res.PublicAddr = o.publicAddr
			cancel()
		}
	}
	res.CheckedAt = p.clock.Now()

	if !res.Reachable && ctx.Err() != nil {
		return types.ConnectivityResult{}, types.NewCancelled("connectivity", ctx.Err())
	}
	if !res.Reachable {
		res.Detail = strings.Join(failures, "; ")
	}
	p.log.Debug("连通性探测完成", "reachable", res.Reachable, "endpoint", res.Endpoint,
		"method", res.Method, "rtt", res.RTT, "attempts", res.Attempts)
	return res, nil
}

func (p *Prober) probeOne(ctx context.Context, tg Target) outcome {
	fn, ok := p.probes[tg.Method]
	if !ok {
		return outcome{target: tg, err: fmt.Errorf("unknown probe method %q", tg.Method)}
	}
	tctx, cancel := p.clock.WithTimeout(ctx, time.Duration(p.cfg.Timeout))
	defer cancel()

	start := p.clock.Now()
	addr, err := fn(tctx, tg.Endpoint)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || tctx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("timed out after %s", time.Duration(p.cfg.Timeout))
		}
		return outcome{target: tg, err: err}
	}
	return outcome{target: tg, rtt: p.clock.Since(start), publicAddr: addr}
}

// tcpProbe 与引导节点建立 TCP 连接后立即关闭
func tcpProbe(ctx context.Context, endpoint string) (string, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return "", err
	}
	return "", conn.Close()
}
