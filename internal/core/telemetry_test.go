// AngelaMos | 2026
// telemetry_test.go

package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/portfolio-backend/internal/config"
)

func TestDisabledTelemetryIsNoop(t *testing.T) {
	tel, err := NewTelemetry(context.Background(), config.OtelConfig{Enabled: false}, config.AppConfig{})
	require.NoError(t, err)
	assert.NoError(t, tel.Shutdown(context.Background()))

	ctx, span := StartSpan(context.Background(), "achievement.submit")
	EndSpan(span, nil)
	assert.Empty(t, TraceIDFromContext(ctx))
}

func TestSampleRatio(t *testing.T) {
	assert.InDelta(t, 0.1, sampleRatio(0), 1e-9)
	assert.InDelta(t, 0.1, sampleRatio(1.5), 1e-9)
	assert.InDelta(t, 0.25, sampleRatio(0.25), 1e-9)
}
