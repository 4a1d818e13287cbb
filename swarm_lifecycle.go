package topicswarm

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-topicswarm/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              销毁
// ════════════════════════════════════════════════════════════════════════════

// Destroy 开始销毁，不等待完成
//
// 幂等，可在 Listen 之前或进行中调用。首次调用使状态进入 Destroying，
// 取消根作用域（绑定、拨号、探测、发现随之中止），关闭监听器、全部主题任务与连接，
// 全部释放后进入 Destroyed，关闭 Done()，发出 EvtSwarmClosed 并调用 OnClose 观察者。
// 之后的调用无效果。
func (s *Swarm) Destroy() {
	s.mu.Lock()
	if s.state != types.StateActive {
		s.mu.Unlock()
		return
	}
	s.state = types.StateDestroying
	bind := s.bind
	s.bind = nil
	s.listener = nil
	s.listenAddr.Store(nil)
	s.mu.Unlock()

	s.log.Info("开始销毁 Swarm")
	if bind != nil {
		bind.resolve(types.Address{}, types.NewCancelled("listen", types.ErrDestroyed))
	}
	go s.teardown()
}

// Close 销毁并等待完成，返回聚合的销毁错误
func (s *Swarm) Close() error {
	return s.DestroyAndWait(context.Background())
}

// DestroyAndWait 销毁并等待到达 Destroyed 或 ctx 结束
func (s *Swarm) DestroyAndWait(ctx context.Context) error {
	s.Destroy()
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyErr
}

// teardown 释放全部资源；由首次 Destroy 在独立 goroutine 中执行一次
func (s *Swarm) teardown() {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.config.Swarm.DestroyTimeout))
	defer cancel()

	var errs error

	// 关闭根作用域：拒绝新任务，取消上下文，关闭监听器
	errs = multierr.Append(errs, s.group.Close())

	if err := s.topics.CancelAll(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := s.conns.CancelAll(ctx, types.ErrDestroyed); err != nil {
		errs = multierr.Append(errs, err)
	}

	if err := s.group.Wait(ctx); err != nil {
		forced := s.group.ForceSettle(types.NewCancelled("teardown", types.ErrDestroyed))
		kinds := make([]string, 0, len(forced))
		for _, h := range forced {
			kinds = append(kinds, h.Kind())
		}
		s.log.Warn("销毁超时，强制结算剩余任务", "count", len(forced), "kinds", kinds)
		errs = multierr.Append(errs, err)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), startTimeout)
	if err := s.app.Stop(stopCtx); err != nil {
		errs = multierr.Append(errs, err)
	}
	stopCancel()

	// Done() 关闭之前移出存活列表并注销指标，Close 返回时二者都已完成
	live.remove(s)
	s.unregisterMetrics()

	s.mu.Lock()
	s.state = types.StateDestroyed
	s.destroyErr = errs
	observers := s.observers
	s.observers = nil
	close(s.done)
	s.mu.Unlock()

	s.emit(s.emitters.swarm, types.EvtSwarmClosed{SwarmID: s.id, Err: errs, ClosedAt: time.Now()})
	for _, em := range s.emitters.all() {
		_ = em.Close()
	}
	_ = s.bus.Close()

	if errs != nil {
		s.log.Warn("Swarm 已销毁（有错误）", "elapsed", time.Since(start), "err", errs)
	} else {
		s.log.Info("Swarm 已销毁", "elapsed", time.Since(start))
	}
	for _, fn := range observers {
		fn(errs)
	}
}
