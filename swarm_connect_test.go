package topicswarm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-topicswarm/internal/mocks"
	"github.com/dep2p/go-topicswarm/pkg/interfaces"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

type connectResult struct {
	conn *Connection
	err  error
}

// collect 返回记录回调次数的 ConnectCallback
func collect(calls *atomic.Int32) (ConnectCallback, <-chan connectResult) {
	ch := make(chan connectResult, 4)
	return func(c *Connection, err error) {
		calls.Add(1)
		ch <- connectResult{c, err}
	}, ch
}

func waitResult(t *testing.T, ch <-chan connectResult) connectResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("connect callback not called")
		return connectResult{}
	}
}

var testPeer = types.PeerInfo{Host: "10.0.0.2", Port: 9000}

// ============================================================================
//                              出站连接
// ============================================================================

func TestConnect_Success(t *testing.T) {
	s, tr, _ := newTestSwarm(t)
	sub, err := s.Subscribe(new(types.EvtConnectionOpened))
	require.NoError(t, err)

	var calls atomic.Int32
	cb, ch := collect(&calls)
	require.NoError(t, s.Connect(testPeer, cb))

	r := waitResult(t, ch)
	require.NoError(t, r.err)
	require.NotNil(t, r.conn)
	assert.Equal(t, types.PhaseEstablished, r.conn.Phase())
	assert.Equal(t, types.DirOutbound, r.conn.Direction())
	assert.Equal(t, testPeer.Address(), r.conn.Peer().Address())
	assert.Equal(t, int32(1), tr.DialCalls.Load())

	evt := recvEvent(t, sub).(types.EvtConnectionOpened)
	assert.Equal(t, r.conn.ID(), evt.ConnID)
	assert.Len(t, s.Connections(), 1)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	t.Log("✅ 拨号成功：回调一次，连接保持 Established")
}

func TestConnect_InvalidPeer(t *testing.T) {
	s, tr, _ := newTestSwarm(t)

	called := false
	cb := func(*Connection, error) { called = true }
	for _, p := range []types.PeerInfo{
		{Host: "", Port: 9000},
		{Host: "10.0.0.2", Port: 0},
		{Host: "10.0.0.2", Port: 70000},
	} {
		err := s.Connect(p, cb)
		assert.ErrorIs(t, err, ErrInvalidInput, "peer %v", p)
		var ierr *InvalidInputError
		assert.True(t, errors.As(err, &ierr))
	}

	assert.False(t, called)
	assert.Empty(t, s.Connections())
	assert.Zero(t, tr.DialCalls.Load())

	t.Log("✅ 不可达的节点描述被拒绝，回调不调用")
}

func TestConnect_DialFailure(t *testing.T) {
	s, tr, _ := newTestSwarm(t)
	dialErr := errors.New("connection refused")
	tr.DialFunc = func(context.Context, types.PeerInfo) (interfaces.Conn, error) {
		return nil, dialErr
	}
	sub, err := s.Subscribe(new(types.EvtConnectionClosed))
	require.NoError(t, err)

	var calls atomic.Int32
	cb, ch := collect(&calls)
	require.NoError(t, s.Connect(testPeer, cb))

	r := waitResult(t, ch)
	assert.Nil(t, r.conn)
	var terr *TransportError
	require.True(t, errors.As(r.err, &terr))
	assert.Equal(t, "dial", terr.Op)
	assert.ErrorIs(t, r.err, dialErr)

	evt := recvEvent(t, sub).(types.EvtConnectionClosed)
	assert.ErrorIs(t, evt.Err, dialErr)
	assert.Empty(t, s.Connections())
	assert.Equal(t, int64(1), s.Stats().DialFailed)

	t.Log("✅ 拨号失败：回调 TransportError，连接移出登记表")
}

func TestConnect_PendingCancelledByDestroy(t *testing.T) {
	s, tr, _ := newTestSwarm(t)
	tr.DialFunc = func(ctx context.Context, _ types.PeerInfo) (interfaces.Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	var calls atomic.Int32
	cb, ch := collect(&calls)
	require.NoError(t, s.Connect(testPeer, cb))
	require.Eventually(t, func() bool { return tr.DialCalls.Load() == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, s.Stats().Pending)

	s.Destroy()
	r := waitResult(t, ch)
	assert.Nil(t, r.conn)
	assert.ErrorIs(t, r.err, ErrCancelled)
	assert.ErrorIs(t, r.err, ErrDestroyed)

	waitDone(t, s)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, s.Connections())

	t.Log("✅ 销毁取消待建立连接，回调收到 CancelledError")
}

func TestConnect_CallbackWaitsForDestroy(t *testing.T) {
	s, tr, _ := newTestSwarm(t)
	tr.DialFunc = func(ctx context.Context, _ types.PeerInfo) (interfaces.Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	cbErr := make(chan error, 1)
	closeErr := make(chan error, 1)
	require.NoError(t, s.Connect(testPeer, func(_ *Connection, err error) {
		cbErr <- err
		closeErr <- s.Close()
	}))
	require.Eventually(t, func() bool { return tr.DialCalls.Load() == 1 }, 5*time.Second, 5*time.Millisecond)

	start := time.Now()
	s.Destroy()

	select {
	case err := <-closeErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Close inside the callback did not return")
	}
	assert.Less(t, time.Since(start), time.Second, "销毁不应等到 DestroyTimeout")
	assert.ErrorIs(t, <-cbErr, ErrDestroyed)
	assert.Equal(t, StateDestroyed, s.State())

	t.Log("✅ 回调内调用 Close 不阻塞销毁")
}

func TestConnect_DestroyClosesEstablished(t *testing.T) {
	s, tr, _ := newTestSwarm(t)
	conn := mocks.NewMockConn(testPeer.Address().String())
	tr.DialFunc = func(context.Context, types.PeerInfo) (interfaces.Conn, error) {
		return conn, nil
	}

	c, err := s.Dial(context.Background(), testPeer)
	require.NoError(t, err)
	assert.Equal(t, types.PhaseEstablished, c.Phase())

	require.NoError(t, s.Close())
	assert.True(t, conn.IsClosed())
	assert.Equal(t, types.PhaseClosed, c.Phase())
	assert.Empty(t, s.Connections())

	t.Log("✅ 销毁关闭已建立连接")
}

func TestDial_ContextCancelled(t *testing.T) {
	s, tr, _ := newTestSwarm(t)
	tr.DialFunc = func(ctx context.Context, _ types.PeerInfo) (interfaces.Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	c, err := s.Dial(ctx, testPeer)
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Eventually(t, func() bool { return len(s.Connections()) == 0 }, 5*time.Second, 5*time.Millisecond)

	t.Log("✅ Dial 的 ctx 结束时中止拨号")
}

func TestConnection_ClosePending(t *testing.T) {
	s, tr, _ := newTestSwarm(t)
	tr.DialFunc = func(ctx context.Context, _ types.PeerInfo) (interfaces.Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	var calls atomic.Int32
	cb, ch := collect(&calls)
	require.NoError(t, s.Connect(testPeer, cb))
	require.Len(t, s.Connections(), 1)
	require.NoError(t, s.Connections()[0].Close())

	r := waitResult(t, ch)
	assert.ErrorIs(t, r.err, ErrCancelled)
	assert.NotErrorIs(t, r.err, ErrDestroyed)
	assert.Eventually(t, func() bool { return len(s.Connections()) == 0 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateActive, s.State())

	t.Log("✅ 关闭待建立连接：回调收到取消错误")
}

// ============================================================================
//                              入站连接
// ============================================================================

func TestInbound_MaxPeersRefused(t *testing.T) {
	s, tr, _ := newTestSwarm(t, WithMaxPeers(1))
	_, err := s.Listen(context.Background())
	require.NoError(t, err)
	l := tr.Listeners()[0]

	first := mocks.NewMockConn("10.0.0.3:5000")
	l.Push(first)
	require.Eventually(t, func() bool { return len(s.Connections()) == 1 }, 5*time.Second, 5*time.Millisecond)

	second := mocks.NewMockConn("10.0.0.4:5000")
	l.Push(second)
	require.Eventually(t, second.IsClosed, 5*time.Second, 5*time.Millisecond)

	assert.Len(t, s.Connections(), 1)
	assert.False(t, first.IsClosed())
	st := s.Stats()
	assert.Equal(t, int64(1), st.Accepted)
	assert.Equal(t, int64(1), st.Refused)

	c := s.Connections()[0]
	assert.Equal(t, types.DirInbound, c.Direction())
	assert.Equal(t, "10.0.0.3", c.Peer().Host)

	t.Log("✅ 超过 MaxPeers 的入站连接被拒绝")
}

func TestInbound_RemoteClose(t *testing.T) {
	s, tr, _ := newTestSwarm(t)
	_, err := s.Listen(context.Background())
	require.NoError(t, err)
	sub, err := s.Subscribe(new(types.EvtConnectionClosed))
	require.NoError(t, err)

	conn := mocks.NewMockConn("10.0.0.3:5000")
	tr.Listeners()[0].Push(conn)
	require.Eventually(t, func() bool { return len(s.Connections()) == 1 }, 5*time.Second, 5*time.Millisecond)

	conn.RemoteClose()
	evt := recvEvent(t, sub).(types.EvtConnectionClosed)
	assert.Equal(t, types.DirInbound, evt.Direction)
	assert.Error(t, evt.Err)
	assert.Empty(t, s.Connections())

	t.Log("✅ 远端断开的连接被移除")
}

func TestDestroy_ClosesInbound(t *testing.T) {
	s, tr, _ := newTestSwarm(t)
	_, err := s.Listen(context.Background())
	require.NoError(t, err)

	conn := mocks.NewMockConn("10.0.0.3:5000")
	tr.Listeners()[0].Push(conn)
	require.Eventually(t, func() bool { return len(s.Connections()) == 1 }, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Close())
	assert.True(t, conn.IsClosed())
	assert.True(t, tr.Listeners()[0].Closed())

	t.Log("✅ 销毁关闭入站连接与监听器")
}
