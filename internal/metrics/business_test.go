package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordBeforeInit(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordRun(ctx, "success", 1.5)
		RecordGeneration(ctx, "llamacpp-cli", 30)
		RecordFallback(ctx, "llamacpp-cli", "llamacpp-server", "server_error")
	})
}

func TestInit(t *testing.T) {
	require.NoError(t, Init())
	assert.NotNil(t, GanttRunsTotal)
	assert.NotNil(t, ProviderFallbackTotal)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordRun(ctx, "failed", 0.2)
		RecordExternalCall(ctx, "recipe-page", 0.4)
	})
}
