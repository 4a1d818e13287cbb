package memory

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-topicswarm/pkg/interfaces"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

func TestNetwork_AnnounceWithdraw(t *testing.T) {
	n := NewNetwork()
	key := types.TopicKey{1}
	addr := types.Address{Host: "127.0.0.1", Port: 4001}

	ch := n.Changed()
	n.Announce(key, "a", addr)
	select {
	case <-ch:
	default:
		t.Fatal("announce should notify")
	}

	ch = n.Changed()
	n.Announce(key, "a", addr)
	select {
	case <-ch:
		t.Fatal("unchanged announce should not notify")
	default:
	}

	recs := n.Lookup(key)
	require.Len(t, recs, 1)
	assert.Equal(t, Record{Owner: "a", Addr: addr}, recs[0])

	n.Withdraw(key, "a")
	assert.Empty(t, n.Lookup(key))
	n.Withdraw(key, "missing")

	t.Log("✅ 会合点通告与撤销")
}

func TestBackend_FindsPeerAndWithdraws(t *testing.T) {
	n := NewNetwork()
	clk := clock.NewMock()
	key := types.TopicKey{2}
	found := make(chan types.PeerInfo, 8)

	lookupCtx, stopLookup := context.WithCancel(context.Background())
	defer stopLookup()
	go func() {
		_ = NewBackend(n, clk, time.Second, time.Second).Run(lookupCtx, interfaces.StartRequest{
			Key:     key,
			Options: types.JoinOptions{Lookup: true},
			Local:   func() (types.Address, bool) { return types.Address{}, false },
			SelfID:  "b",
		}, func(p types.PeerInfo) { found <- p })
	}()

	announceCtx, stopAnnounce := context.WithCancel(context.Background())
	announced := make(chan error, 1)
	go func() {
		announced <- NewBackend(n, clk, time.Second, time.Second).Run(announceCtx, interfaces.StartRequest{
			Key:     key,
			Options: types.JoinOptions{Announce: true},
			Local:   func() (types.Address, bool) { return types.Address{Host: "127.0.0.1", Port: 5001}, true },
			SelfID:  "a",
		}, func(types.PeerInfo) {})
	}()

	select {
	case p := <-found:
		assert.Equal(t, "127.0.0.1", p.Host)
		assert.Equal(t, 5001, p.Port)
		assert.Equal(t, Source, p.Source)
	case <-time.After(2 * time.Second):
		t.Fatal("lookup did not observe announcement")
	}

	stopAnnounce()
	require.NoError(t, <-announced)
	assert.Empty(t, n.Lookup(key), "退出时应撤销通告")

	t.Log("✅ 查找方通过变化通知发现通告方")
}

func TestBackend_SkipsSelf(t *testing.T) {
	n := NewNetwork()
	key := types.TopicKey{3}
	n.Announce(key, "self", types.Address{Host: "127.0.0.1", Port: 1})

	ctx, cancel := context.WithCancel(context.Background())
	var reported int
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = NewBackend(n, clock.NewMock(), time.Second, time.Second).Run(ctx, interfaces.StartRequest{
			Key:     key,
			Options: types.JoinOptions{Lookup: true},
			Local:   func() (types.Address, bool) { return types.Address{}, false },
			SelfID:  "self",
		}, func(types.PeerInfo) { reported++ })
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done
	assert.Zero(t, reported)
}
