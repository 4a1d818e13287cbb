package topicswarm

import (
	"context"
	"errors"
	"sync"

	"github.com/dep2p/go-topicswarm/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              连通性探测
// ════════════════════════════════════════════════════════════════════════════

// Connectivity 在后台执行一轮连通性探测
//
// 销毁开始后返回 ErrDestroyed 且 cb 不会被调用。否则 cb 恰好被调用一次；
// 探测期间开始销毁时 cb 收到 *CancelledError（errors.Is(err, ErrDestroyed) 成立）。
// cb 在独立 goroutine 中执行，可以在其中调用 Close。
func (s *Swarm) Connectivity(cb ConnectivityCallback) error {
	if cb != nil {
		user := cb
		cb = func(res types.ConnectivityResult, err error) {
			detach(func() { user(res, err) })
		}
	}
	_, err := s.startProbe(cb)
	return err
}

// CheckConnectivity 阻塞形式的 Connectivity
func (s *Swarm) CheckConnectivity(ctx context.Context) (types.ConnectivityResult, error) {
	type result struct {
		res types.ConnectivityResult
		err error
	}
	ch := make(chan result, 1)
	h, err := s.startProbe(func(res types.ConnectivityResult, err error) {
		ch <- result{res, err}
	})
	if err != nil {
		return types.ConnectivityResult{}, err
	}
	stop := context.AfterFunc(ctx, h.Cancel)
	defer stop()

	r := <-ch
	return r.res, r.err
}

// probeHandle 探测任务中调用方需要的部分
type probeHandle interface {
	Cancel()
}

func (s *Swarm) startProbe(cb ConnectivityCallback) (probeHandle, error) {
	var once sync.Once
	deliver := func(res types.ConnectivityResult, err error) {
		once.Do(func() {
			if cb != nil {
				cb(res, err)
			}
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.activeLocked(); err != nil {
		return nil, err
	}
	h, err := s.group.Go("probe", func(ctx context.Context) error {
		res, err := s.prober.Probe(ctx)
		if err != nil && s.destroying() {
			err = types.NewCancelled("connectivity", types.ErrDestroyed)
		}
		deliver(res, err)
		return err
	})
	if err != nil {
		return nil, types.ErrDestroyed
	}
	// 销毁超时被强制结算时，回调仍须收到结果
	h.OnSettle(func(err error) {
		if err == nil {
			err = types.NewCancelled("connectivity", types.ErrDestroyed)
		}
		var cancelled *types.CancelledError
		if !errors.As(err, &cancelled) {
			err = types.NewCancelled("connectivity", err)
		}
		deliver(types.ConnectivityResult{}, err)
	})
	return h, nil
}

// destroying 销毁是否已开始
func (s *Swarm) destroying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != types.StateActive
}
