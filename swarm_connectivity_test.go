package topicswarm

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-topicswarm/internal/core/connectivity"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

// silentUDP 只收不答的 UDP 端点，STUN 探测会一直等待
func silentUDP(t *testing.T) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })
	return pc.LocalAddr().String()
}

func TestCheckConnectivity_Reachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	s, _, _ := newTestSwarm(t,
		WithBootstrapEndpoints(ln.Addr().String()),
		WithSTUNServers(),
	)

	res, err := s.CheckConnectivity(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Reachable)
	assert.Equal(t, connectivity.MethodTCP, res.Method)
	assert.Equal(t, ln.Addr().String(), res.Endpoint)

	t.Log("✅ 本地 TCP 端点可达")
}

func TestConnectivity_CallbackOnce(t *testing.T) {
	s, _, _ := newTestSwarm(t, WithBootstrapEndpoints(), WithSTUNServers())

	var calls atomic.Int32
	done := make(chan types.ConnectivityResult, 4)
	require.NoError(t, s.Connectivity(func(res types.ConnectivityResult, err error) {
		calls.Add(1)
		assert.NoError(t, err)
		done <- res
	}))

	select {
	case res := <-done:
		assert.False(t, res.Reachable)
	case <-time.After(5 * time.Second):
		t.Fatal("callback not called")
	}
	require.NoError(t, s.Close())
	assert.Equal(t, int32(1), calls.Load())

	t.Log("✅ 探测回调恰好一次")
}

func TestConnectivity_CancelledByDestroy(t *testing.T) {
	s, _, _ := newTestSwarm(t, WithBootstrapEndpoints(), WithSTUNServers(silentUDP(t)))

	var calls atomic.Int32
	errCh := make(chan error, 4)
	require.NoError(t, s.Connectivity(func(_ types.ConnectivityResult, err error) {
		calls.Add(1)
		errCh <- err
	}))

	s.Destroy()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrCancelled)
		assert.ErrorIs(t, err, ErrDestroyed)
	case <-time.After(5 * time.Second):
		t.Fatal("callback not called")
	}
	waitDone(t, s)
	assert.Equal(t, int32(1), calls.Load())

	t.Log("✅ 销毁中止探测，回调收到 CancelledError")
}

func TestConnectivity_CallbackWaitsForDestroy(t *testing.T) {
	s, _, _ := newTestSwarm(t, WithBootstrapEndpoints(), WithSTUNServers(silentUDP(t)))

	closeErr := make(chan error, 1)
	require.NoError(t, s.Connectivity(func(types.ConnectivityResult, error) {
		closeErr <- s.Close()
	}))

	start := time.Now()
	s.Destroy()

	select {
	case err := <-closeErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Close inside the callback did not return")
	}
	assert.Less(t, time.Since(start), time.Second, "销毁不应等到 DestroyTimeout")

	t.Log("✅ 探测回调内调用 Close 不阻塞销毁")
}

func TestCheckConnectivity_ContextCancelled(t *testing.T) {
	s, _, _ := newTestSwarm(t, WithBootstrapEndpoints(), WithSTUNServers(silentUDP(t)))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := s.CheckConnectivity(ctx)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.NotErrorIs(t, err, ErrDestroyed)
	assert.Equal(t, StateActive, s.State())

	t.Log("✅ CheckConnectivity 受 ctx 约束")
}
