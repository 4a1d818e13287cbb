package tcp

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-topicswarm/pkg/interfaces"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

func listenLocal(t *testing.T, tr *Transport) interfaces.Listener {
	t.Helper()
	l, err := tr.Listen(context.Background(), types.Address{Host: "127.0.0.1", Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestListen_AssignsPort(t *testing.T) {
	l := listenLocal(t, New())

	assert.Equal(t, "127.0.0.1", l.Addr().Host)
	assert.NotZero(t, l.Addr().Port)

	t.Log("✅ 端口 0 时分配实际端口")
}

func TestDialAndStream(t *testing.T) {
	tr := New()
	l := listenLocal(t, tr)

	accepted := make(chan interfaces.Conn, 1)
	go func() {
		c, err := l.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := tr.Dial(ctx, types.PeerInfo{Host: l.Addr().Host, Port: l.Addr().Port})
	require.NoError(t, err)
	defer client.Close()

	var server interfaces.Conn
	select {
	case server = <-accepted:
	case <-ctx.Done():
		t.Fatal("未接受到入站连接")
	}
	defer server.Close()

	out, err := client.OpenStream(ctx)
	require.NoError(t, err)
	_, err = out.Write([]byte("ping"))
	require.NoError(t, err)

	in, err := server.AcceptStream(ctx)
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(in, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))

	t.Log("✅ yamux 流读写正常")
}

func TestRemoteCloseSignalled(t *testing.T) {
	tr := New()
	l := listenLocal(t, tr)

	accepted := make(chan interfaces.Conn, 1)
	go func() {
		if c, err := l.Accept(); err == nil {
			accepted <- c
		}
	}()

	client, err := tr.Dial(context.Background(), types.PeerInfo{Host: "127.0.0.1", Port: l.Addr().Port})
	require.NoError(t, err)

	server := <-accepted
	require.NoError(t, server.Close())

	select {
	case <-client.CloseChan():
	case <-time.After(5 * time.Second):
		t.Fatal("远端关闭未被感知")
	}
	assert.True(t, client.IsClosed())
}

func TestDial_Refused(t *testing.T) {
	tr := New()
	l := listenLocal(t, tr)
	port := l.Addr().Port
	require.NoError(t, l.Close())

	_, err := tr.Dial(context.Background(), types.PeerInfo{Host: "127.0.0.1", Port: port})
	assert.Error(t, err)
}

func TestClosedTransport(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Close())

	_, err := tr.Listen(context.Background(), types.Address{Host: "127.0.0.1"})
	assert.ErrorIs(t, err, ErrTransportClosed)
	_, err = tr.Dial(context.Background(), types.PeerInfo{Host: "127.0.0.1", Port: 1})
	assert.ErrorIs(t, err, ErrTransportClosed)
}
