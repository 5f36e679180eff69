package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/tripwire/pkg/types"
)

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	for _, cfg := range []*types.ObservabilityConfig{nil, {ServiceName: "x"}} {
		shutdown, err := Setup(context.Background(), cfg)
		require.NoError(t, err)
		assert.NoError(t, shutdown(context.Background()))
	}
}

func TestSetup_InstallsProviders(t *testing.T) {
	shutdown, err := Setup(context.Background(), &types.ObservabilityConfig{
		Endpoint: "127.0.0.1:4317",
		Insecure: true,
	})
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// nothing is listening; only make sure shutdown returns
	_ = shutdown(ctx)
}
