package transport

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-topicswarm/config"
	"github.com/dep2p/go-topicswarm/internal/mocks"
	"github.com/dep2p/go-topicswarm/pkg/interfaces"
)

func TestNew_SelectsByProtocol(t *testing.T) {
	tcpT, err := New(config.TransportConfig{Protocol: config.ProtocolTCP})
	require.NoError(t, err)
	assert.Equal(t, "tcp", tcpT.Name())

	quicT, err := New(config.TransportConfig{Protocol: config.ProtocolQUIC, ALPN: "x"})
	require.NoError(t, err)
	assert.Equal(t, "quic", quicT.Name())

	_, err = New(config.TransportConfig{Protocol: "ws"})
	assert.Error(t, err)
}

func TestModule_Override(t *testing.T) {
	override := mocks.NewMockTransport()
	var closes atomic.Int32
	override.CloseFunc = func() error {
		closes.Add(1)
		return nil
	}
	var got interfaces.Transport

	app := fxtest.New(t,
		fx.NopLogger,
		fx.Supply(config.NewConfig()),
		fx.Provide(fx.Annotate(
			func() interfaces.Transport { return override },
			fx.ResultTags(`name:"transport_override"`),
		)),
		Module(),
		fx.Populate(&got),
	)
	app.RequireStart().RequireStop()

	assert.Same(t, override, got.(*mocks.MockTransport))
	assert.Zero(t, closes.Load(), "注入的传输归调用方所有，停止时不关闭")

	t.Log("✅ 注入的传输优先于配置")
}

func TestModule_FromConfig(t *testing.T) {
	var got interfaces.Transport
	app := fxtest.New(t,
		fx.NopLogger,
		fx.Supply(config.NewConfig()),
		Module(),
		fx.Populate(&got),
	)
	app.RequireStart().RequireStop()
	assert.Equal(t, "tcp", got.Name())
}
