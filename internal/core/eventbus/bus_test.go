package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgif "github.com/dep2p/go-topicswarm/pkg/interfaces"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

func recv(t *testing.T, sub pkgif.Subscription) interface{} {
	t.Helper()
	select {
	case ev, ok := <-sub.Out():
		require.True(t, ok, "订阅通道已关闭")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("等待事件超时")
		return nil
	}
}

func TestBus_SubscribeEmit(t *testing.T) {
	bus := NewBus()

	sub, err := bus.Subscribe(new(types.EvtListening))
	require.NoError(t, err)
	defer sub.Close()

	em, err := bus.Emitter(new(types.EvtListening))
	require.NoError(t, err)
	defer em.Close()

	addr := types.Address{Host: "127.0.0.1", Port: 4001}
	require.NoError(t, em.Emit(types.EvtListening{SwarmID: "s1", Addr: addr}))

	ev := recv(t, sub).(types.EvtListening)
	assert.Equal(t, addr, ev.Addr)

	t.Log("✅ 事件按类型投递")
}

func TestBus_InvalidTypes(t *testing.T) {
	bus := NewBus()

	_, err := bus.Subscribe(nil)
	assert.ErrorIs(t, err, ErrInvalidEventType)

	_, err = bus.Subscribe(types.EvtListening{})
	assert.ErrorIs(t, err, ErrNonPointerType)

	em, err := bus.Emitter(new(types.EvtListening))
	require.NoError(t, err)
	assert.ErrorIs(t, em.Emit(types.EvtTopicLeft{}), ErrInvalidEventType)
}

func TestBus_StatefulLateSubscriber(t *testing.T) {
	bus := NewBus()

	em, err := bus.Emitter(new(types.EvtSwarmClosed), Stateful())
	require.NoError(t, err)
	require.NoError(t, em.Emit(types.EvtSwarmClosed{SwarmID: "late"}))

	sub, err := bus.Subscribe(new(types.EvtSwarmClosed))
	require.NoError(t, err)
	assert.Equal(t, "late", recv(t, sub).(types.EvtSwarmClosed).SwarmID)
}

func TestBus_CloseSeals(t *testing.T) {
	bus := NewBus()

	early, err := bus.Subscribe(new(types.EvtSwarmClosed))
	require.NoError(t, err)

	em, err := bus.Emitter(new(types.EvtSwarmClosed), Stateful())
	require.NoError(t, err)
	require.NoError(t, em.Emit(types.EvtSwarmClosed{SwarmID: "sealed"}))
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.Equal(t, "sealed", recv(t, early).(types.EvtSwarmClosed).SwarmID)
	_, ok := <-early.Out()
	assert.False(t, ok, "关闭总线后订阅通道应关闭")

	late, err := bus.Subscribe(new(types.EvtSwarmClosed))
	require.NoError(t, err)
	assert.Equal(t, "sealed", recv(t, late).(types.EvtSwarmClosed).SwarmID)
	_, ok = <-late.Out()
	assert.False(t, ok)
	require.NoError(t, late.Close())

	assert.ErrorIs(t, em.Emit(types.EvtSwarmClosed{}), ErrClosed)
	_, err = bus.Emitter(new(types.EvtSwarmClosed))
	assert.ErrorIs(t, err, ErrClosed)

	t.Log("✅ 关闭后晚订阅者仍收到最后的关闭事件")
}

func TestBus_SlowSubscriberDrops(t *testing.T) {
	bus := NewBus()

	sub, err := bus.Subscribe(new(types.EvtPeerDiscovered), BufSize(1))
	require.NoError(t, err)
	defer sub.Close()
	em, err := bus.Emitter(new(types.EvtPeerDiscovered))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, em.Emit(types.EvtPeerDiscovered{}))
	}
	assert.Equal(t, int64(4), bus.Dropped(new(types.EvtPeerDiscovered)))
}

func TestBus_ConcurrentEmitAndClose(t *testing.T) {
	bus := NewBus()
	em, err := bus.Emitter(new(types.EvtTopicJoined))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = em.Emit(types.EvtTopicJoined{})
			}
		}()
		go func() {
			defer wg.Done()
			sub, err := bus.Subscribe(new(types.EvtTopicJoined), BufSize(4))
			if err == nil {
				_ = sub.Close()
			}
		}()
	}
	wg.Wait()
	require.NoError(t, bus.Close())
}

func TestBus_NodeReleased(t *testing.T) {
	bus := NewBus()
	sub, err := bus.Subscribe(new(types.EvtTopicLeft))
	require.NoError(t, err)
	assert.Len(t, bus.GetAllEventTypes(), 1)

	require.NoError(t, sub.Close())
	assert.Empty(t, bus.GetAllEventTypes())
}
