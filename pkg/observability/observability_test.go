package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/policyforge/policyforge/pkg/config"
)

func TestDisabledProviderIsNoop(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, config.TelemetryConfig{Enabled: false})
	require.NoError(t, err)

	// All operations must be safe without exporters.
	opCtx, done := p.TrackOperation(ctx, "store.save",
		attribute.String("entity_id", "ACME_CORP"))
	require.NotNil(t, opCtx)
	done(nil)

	_, done = p.TrackOperation(ctx, "store.save")
	done(errors.New("backend write failed"))

	require.NotNil(t, p.Tracer())
	require.NoError(t, p.Shutdown(ctx))
}

func TestShutdownWithoutInit(t *testing.T) {
	p := &Provider{}
	require.NoError(t, p.Shutdown(context.Background()))
}
