package peerbook

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-topicswarm/config"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

func testBook(t *testing.T, maxReplay int) (*Book, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	cfg := config.DefaultPeerBookConfig()
	cfg.MaxReplay = maxReplay
	b, err := Open(cfg, mock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b, mock
}

func TestBook_RecordAndReplay(t *testing.T) {
	b, mock := testBook(t, 2)
	key := types.TopicKey{1}
	other := types.TopicKey{2}

	require.NoError(t, b.Record(key, types.PeerInfo{Host: "10.0.0.1", Port: 1, Source: "memory"}))
	mock.Add(time.Second)
	require.NoError(t, b.Record(key, types.PeerInfo{Host: "10.0.0.2", Port: 2, Source: "mdns"}))
	mock.Add(time.Second)
	require.NoError(t, b.Record(key, types.PeerInfo{Host: "10.0.0.3", Port: 3}))
	require.NoError(t, b.Record(other, types.PeerInfo{Host: "10.0.0.9", Port: 9}))

	recs, err := b.Records(key)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "10.0.0.3", recs[0].Host)
	assert.Equal(t, "memory", recs[2].Source)

	peers, err := b.Peers(key)
	require.NoError(t, err)
	require.Len(t, peers, 2, "回放数量受 MaxReplay 限制")
	assert.Equal(t, 3, peers[0].Port)
	assert.Equal(t, 2, peers[1].Port)
	require.NotNil(t, peers[0].Topic)
	assert.Equal(t, key, *peers[0].Topic)
	assert.Equal(t, Source, peers[0].Source)

	t.Log("✅ 按最近见过的顺序回放节点")
}

func TestBook_OverwriteAndForget(t *testing.T) {
	b, mock := testBook(t, 0)
	key := types.TopicKey{3}
	peer := types.PeerInfo{Host: "10.0.0.1", Port: 1}

	require.NoError(t, b.Record(key, peer))
	mock.Add(time.Minute)
	require.NoError(t, b.Record(key, peer))

	recs, err := b.Records(key)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, mock.Now().Unix(), recs[0].SeenAt.Unix())

	require.NoError(t, b.Record(key, types.PeerInfo{Host: "10.0.0.2", Port: 2}))
	require.NoError(t, b.Remove(key, types.Address{Host: "10.0.0.2", Port: 2}))
	n, err := b.Forget(key)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	peers, err := b.Peers(key)
	require.NoError(t, err)
	assert.Empty(t, peers)
}

func TestBook_RejectsInvalidPeer(t *testing.T) {
	b, _ := testBook(t, 0)
	assert.ErrorIs(t, b.Record(types.TopicKey{4}, types.PeerInfo{Host: "", Port: 1}), types.ErrInvalidInput)
}

func TestModule(t *testing.T) {
	var book *Book
	app := fxtest.New(t,
		fx.NopLogger,
		fx.Supply(config.NewConfig()),
		Module(),
		fx.Populate(&book),
	)
	app.RequireStart()
	require.NotNil(t, book)
	require.NoError(t, book.Record(types.TopicKey{5}, types.PeerInfo{Host: "127.0.0.1", Port: 1}))
	app.RequireStop()

	cfg := config.NewConfig()
	cfg.PeerBook.Enable = false
	book = nil
	app = fxtest.New(t,
		fx.NopLogger,
		fx.Supply(cfg),
		Module(),
		fx.Populate(&book),
	)
	app.RequireStart().RequireStop()
	assert.Nil(t, book)
}
