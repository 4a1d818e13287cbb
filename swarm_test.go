package topicswarm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-topicswarm/internal/mocks"
	"github.com/dep2p/go-topicswarm/pkg/interfaces"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

// ============================================================================
//                              测试辅助
// ============================================================================

// newTestSwarm 使用模拟传输与发现创建 Swarm，测试结束时销毁
func newTestSwarm(t *testing.T, opts ...Option) (*Swarm, *mocks.MockTransport, *mocks.MockDiscovery) {
	t.Helper()
	tr := mocks.NewMockTransport()
	disc := mocks.NewMockDiscovery()
	base := []Option{
		WithTransport(tr),
		WithDiscovery(disc),
		WithPeerBook(false, ""),
		WithDestroyTimeout(2 * time.Second),
	}
	s, err := New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, tr, disc
}

func waitDone(t *testing.T, s *Swarm) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("swarm did not reach Destroyed")
	}
}

func testKey(b byte) []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = b
	}
	return key
}

func recvEvent(t *testing.T, sub interfaces.Subscription) interface{} {
	t.Helper()
	select {
	case evt, ok := <-sub.Out():
		require.True(t, ok, "subscription closed")
		return evt
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
		return nil
	}
}

// ============================================================================
//                              生命周期
// ============================================================================

func TestNew_InitialState(t *testing.T) {
	s, _, _ := newTestSwarm(t)

	assert.Equal(t, StateActive, s.State())
	assert.NotEmpty(t, s.ID())
	assert.Empty(t, s.Connections())
	assert.Empty(t, s.Topics())

	_, err := s.Address()
	assert.ErrorIs(t, err, ErrNotListening)

	t.Log("✅ 新建 Swarm 处于 Active 且未监听")
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(WithMaxPeers(0))
	assert.Error(t, err)

	_, err = New(WithPort(70000))
	assert.ErrorIs(t, err, ErrInvalidInput)

	t.Log("✅ 非法配置被拒绝")
}

func TestDestroy_ExactlyOneNotification(t *testing.T) {
	s, _, _ := newTestSwarm(t)

	notified := make(chan error, 16)
	s.OnClose(func(err error) { notified <- err })

	sub, err := s.Subscribe(new(types.EvtSwarmClosed))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Destroy()
		}()
	}
	wg.Wait()
	waitDone(t, s)

	select {
	case err := <-notified:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("OnClose not called")
	}

	evt := recvEvent(t, sub).(types.EvtSwarmClosed)
	assert.Equal(t, s.ID(), evt.SwarmID)
	_, ok := <-sub.Out()
	assert.False(t, ok, "subscription should close after the swarm closes")

	s.Destroy()
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, notified)
	assert.Equal(t, StateDestroyed, s.State())

	t.Log("✅ 并发 Destroy 只产生一次关闭通知")
}

func TestDestroy_RightAfterNew(t *testing.T) {
	s, _, _ := newTestSwarm(t)

	s.Destroy()
	waitDone(t, s)
	assert.Equal(t, StateDestroyed, s.State())

	t.Log("✅ 创建后立即销毁可以完成")
}

func TestDestroy_DuringListen(t *testing.T) {
	s, tr, _ := newTestSwarm(t)
	tr.ListenFunc = func(ctx context.Context, _ types.Address) (interfaces.Listener, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Listen(context.Background())
		errCh <- err
	}()
	require.Eventually(t, func() bool { return tr.ListenCalls.Load() == 1 }, 5*time.Second, 5*time.Millisecond)

	s.Destroy()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrCancelled)
		assert.ErrorIs(t, err, ErrDestroyed)
		var cerr *CancelledError
		assert.True(t, errors.As(err, &cerr))
	case <-time.After(5 * time.Second):
		t.Fatal("Listen did not return")
	}
	waitDone(t, s)

	t.Log("✅ 绑定中销毁：Listen 返回取消错误，Swarm 到达 Destroyed")
}

func TestOperationsAfterDestroy(t *testing.T) {
	s, tr, _ := newTestSwarm(t)
	require.NoError(t, s.Close())

	_, err := s.Address()
	assert.EqualError(t, err, "swarm has been destroyed")

	_, err = s.Listen(context.Background())
	assert.ErrorIs(t, err, ErrDestroyed)

	assert.ErrorIs(t, s.Join(testKey(1)), ErrDestroyed)
	assert.ErrorIs(t, s.Leave(testKey(1)), ErrDestroyed)

	called := false
	err = s.Connect(types.PeerInfo{Host: "127.0.0.1", Port: 9000}, func(*Connection, error) { called = true })
	assert.ErrorIs(t, err, ErrDestroyed)

	err = s.Connectivity(func(types.ConnectivityResult, error) { called = true })
	assert.ErrorIs(t, err, ErrDestroyed)

	// 状态检查先于校验
	assert.ErrorIs(t, s.Join([]byte("short")), ErrDestroyed)
	assert.ErrorIs(t, s.Connect(types.PeerInfo{}, nil), ErrDestroyed)

	time.Sleep(20 * time.Millisecond)
	assert.False(t, called)
	assert.Zero(t, tr.ListenCalls.Load())
	assert.Zero(t, tr.DialCalls.Load())

	t.Log("✅ 销毁后的操作全部返回 ErrDestroyed，回调从未调用")
}

func TestListen_AddressThenDestroy(t *testing.T) {
	s, tr, _ := newTestSwarm(t)

	notified := make(chan struct{}, 1)
	s.OnClose(func(error) { notified <- struct{}{} })

	addr, err := s.Listen(context.Background())
	require.NoError(t, err)
	assert.Greater(t, addr.Port, 0)

	got, err := s.Address()
	require.NoError(t, err)
	assert.Equal(t, addr, got)

	again, err := s.Listen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, addr, again)
	assert.Equal(t, int32(1), tr.ListenCalls.Load())

	s.Destroy()
	select {
	case <-notified:
	case <-time.After(5 * time.Second):
		t.Fatal("no close notification")
	}
	require.Len(t, tr.Listeners(), 1)
	assert.True(t, tr.Listeners()[0].Closed())

	t.Log("✅ Listen → 端口 → Destroy → 关闭通知")
}

func TestListen_DestroyThenListen(t *testing.T) {
	s, _, _ := newTestSwarm(t)

	_, err := s.Listen(context.Background())
	require.NoError(t, err)
	s.Destroy()

	_, err = s.Listen(context.Background())
	assert.EqualError(t, err, "swarm has been destroyed")

	t.Log("✅ 销毁后再次 Listen 被拒绝")
}

func TestListen_ConcurrentShareOneBind(t *testing.T) {
	s, tr, _ := newTestSwarm(t)
	release := make(chan struct{})
	tr.ListenFunc = func(ctx context.Context, _ types.Address) (interfaces.Listener, error) {
		<-release
		return mocks.NewMockListener(types.Address{Host: "127.0.0.1", Port: 41000}), nil
	}

	const n = 5
	addrs := make(chan types.Address, n)
	for i := 0; i < n; i++ {
		go func() {
			addr, err := s.Listen(context.Background())
			assert.NoError(t, err)
			addrs <- addr
		}()
	}
	require.Eventually(t, func() bool { return tr.ListenCalls.Load() == 1 }, 5*time.Second, 5*time.Millisecond)
	close(release)

	for i := 0; i < n; i++ {
		assert.Equal(t, 41000, (<-addrs).Port)
	}
	assert.Equal(t, int32(1), tr.ListenCalls.Load())

	t.Log("✅ 并发 Listen 共享同一次绑定")
}

func TestListen_FailureThenRetry(t *testing.T) {
	s, tr, _ := newTestSwarm(t)
	bindErr := errors.New("address already in use")
	tr.ListenFunc = func(ctx context.Context, _ types.Address) (interfaces.Listener, error) {
		if tr.ListenCalls.Load() == 1 {
			return nil, bindErr
		}
		return mocks.NewMockListener(types.Address{Host: "127.0.0.1", Port: 42000}), nil
	}

	_, err := s.Listen(context.Background())
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "listen", terr.Op)
	assert.ErrorIs(t, err, bindErr)

	_, err = s.Address()
	assert.ErrorIs(t, err, ErrNotListening)

	addr, err := s.Listen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42000, addr.Port)

	t.Log("✅ 绑定失败返回 TransportError，之后可以重试")
}

func TestListen_ContextBoundsOnlyTheWait(t *testing.T) {
	s, tr, _ := newTestSwarm(t)
	release := make(chan struct{})
	tr.ListenFunc = func(ctx context.Context, _ types.Address) (interfaces.Listener, error) {
		<-release
		return mocks.NewMockListener(types.Address{Host: "127.0.0.1", Port: 43000}), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Listen(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	addr, err := s.Listen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 43000, addr.Port)
	assert.Equal(t, int32(1), tr.ListenCalls.Load())

	t.Log("✅ ctx 只限制调用方的等待，共享绑定继续完成")
}

func TestDestroyTwice(t *testing.T) {
	s, _, _ := newTestSwarm(t)

	count := 0
	var mu sync.Mutex
	s.OnClose(func(error) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	require.NoError(t, s.Close())
	first := s.State()
	require.NoError(t, s.Close())
	assert.Equal(t, first, s.State())
	assert.Equal(t, StateDestroyed, s.State())

	mu.Lock()
	assert.Equal(t, 1, count)
	mu.Unlock()

	t.Log("✅ 两次销毁结果相同，只通知一次")
}

func TestOnClose_LateObserver(t *testing.T) {
	s, _, _ := newTestSwarm(t)
	require.NoError(t, s.Close())

	called := false
	s.OnClose(func(err error) {
		called = true
		assert.NoError(t, err)
	})
	assert.True(t, called)

	t.Log("✅ 销毁后注册的观察者立即被调用")
}

func TestSubscribe_AfterDestroyGetsClosedEvent(t *testing.T) {
	s, _, _ := newTestSwarm(t)
	require.NoError(t, s.Close())

	sub, err := s.Subscribe(new(types.EvtSwarmClosed))
	require.NoError(t, err)
	evt := recvEvent(t, sub).(types.EvtSwarmClosed)
	assert.Equal(t, s.ID(), evt.SwarmID)
	assert.NoError(t, evt.Err)

	_, ok := <-sub.Out()
	assert.False(t, ok)

	t.Log("✅ 晚订阅者仍收到关闭事件")
}

func TestDestroyAndWait_ContextExpires(t *testing.T) {
	s, _, _ := newTestSwarm(t)
	_, err := s.Listen(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.DestroyAndWait(ctx)
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
	waitDone(t, s)
	assert.NoError(t, s.Close())

	t.Log("✅ DestroyAndWait 受 ctx 约束，销毁仍然完成")
}

func TestActiveSwarms(t *testing.T) {
	s, _, _ := newTestSwarm(t)
	assert.Contains(t, ActiveSwarms(), s)

	require.NoError(t, s.Close())
	assert.NotContains(t, ActiveSwarms(), s)

	t.Log("✅ 存活 Swarm 列表随生命周期更新")
}

func TestStats(t *testing.T) {
	s, _, _ := newTestSwarm(t)
	_, err := s.Listen(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Join(testKey(7)))

	st := s.Stats()
	assert.Equal(t, StateActive, st.State)
	assert.True(t, st.Listening)
	assert.Equal(t, 1, st.Topics)

	require.NoError(t, s.Close())
	st = s.Stats()
	assert.Equal(t, StateDestroyed, st.State)
	assert.False(t, st.Listening)
	assert.Zero(t, st.Topics)

	t.Log("✅ 统计快照反映状态")
}

func TestMetrics_RegisterAndUnregister(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, _, _ := newTestSwarm(t, WithMetrics(reg))
	require.NoError(t, s.Join(testKey(3)))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]float64{}
	for _, f := range families {
		if f.GetName() == "topicswarm_topics" {
			names[f.GetName()] = f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, 1.0, names["topicswarm_topics"])

	require.NoError(t, s.Close())
	families, err = reg.Gather()
	require.NoError(t, err)
	assert.Empty(t, families)

	t.Log("✅ 指标随 Swarm 注册与注销")
}

func TestClose_RemovesFromActiveSwarmsAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	for i := 0; i < 50; i++ {
		s, err := New(
			WithTransport(mocks.NewMockTransport()),
			WithDiscovery(mocks.NewMockDiscovery()),
			WithPeerBook(false, ""),
			WithMetrics(reg),
		)
		require.NoError(t, err)
		require.NoError(t, s.Close())

		require.NotContains(t, ActiveSwarms(), s, "round %d", i)
		families, err := reg.Gather()
		require.NoError(t, err)
		require.Empty(t, families, "round %d", i)
	}

	t.Log("✅ Close 返回时已移出存活列表并注销指标")
}

func TestWithTransport_SharedTransportOutlivesSwarm(t *testing.T) {
	tr := mocks.NewMockTransport()
	var closes atomic.Int32
	tr.CloseFunc = func() error {
		closes.Add(1)
		return nil
	}

	a, _, _ := newTestSwarm(t, WithTransport(tr))
	b, _, _ := newTestSwarm(t, WithTransport(tr))

	require.NoError(t, a.Close())
	assert.Zero(t, closes.Load())

	addr, err := b.Listen(context.Background())
	require.NoError(t, err)
	assert.NotZero(t, addr.Port)
	require.NoError(t, b.Close())
	assert.Zero(t, closes.Load())

	t.Log("✅ 注入的传输不随 Swarm 销毁而关闭")
}
