package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-topicswarm/config"
	"github.com/dep2p/go-topicswarm/internal/core/discovery/memory"
	"github.com/dep2p/go-topicswarm/internal/mocks"
	"github.com/dep2p/go-topicswarm/pkg/interfaces"
)

func TestBuildBackends(t *testing.T) {
	cfg := config.DefaultDiscoveryConfig()
	bs, err := BuildBackends(cfg, memory.NewNetwork(), nil)
	require.NoError(t, err)
	require.Len(t, bs, 1)
	assert.Equal(t, memory.Source, bs[0].Name())

	cfg.EnableMDNS = true
	cfg.StaticPeers = map[string][]string{
		"0000000000000000000000000000000000000000000000000000000000000001": {"127.0.0.1:4001"},
	}
	bs, err = BuildBackends(cfg, nil, nil)
	require.NoError(t, err)
	names := make([]string, len(bs))
	for i, b := range bs {
		names[i] = b.Name()
	}
	assert.Equal(t, []string{"memory", "static", "mdns"}, names)

	_, err = BuildBackends(config.DiscoveryConfig{}, nil, nil)
	assert.ErrorIs(t, err, ErrNoBackends)
}

func TestModule_Override(t *testing.T) {
	override := mocks.NewMockDiscovery()
	var got interfaces.Discovery

	app := fxtest.New(t,
		fx.NopLogger,
		fx.Supply(config.NewConfig()),
		fx.Provide(fx.Annotate(
			func() interfaces.Discovery { return override },
			fx.ResultTags(`name:"discovery_override"`),
		)),
		Module(),
		fx.Populate(&got),
	)
	app.RequireStart().RequireStop()

	assert.Same(t, override, got.(*mocks.MockDiscovery))
	t.Log("✅ 注入的发现服务优先于配置")
}

func TestModule_FromConfig(t *testing.T) {
	var got interfaces.Discovery
	app := fxtest.New(t,
		fx.NopLogger,
		fx.Supply(config.NewConfig()),
		fx.Supply(memory.NewNetwork()),
		Module(),
		fx.Populate(&got),
	)
	app.RequireStart().RequireStop()

	svc, ok := got.(*Service)
	require.True(t, ok)
	assert.Equal(t, []string{"memory"}, svc.Backends())
}
