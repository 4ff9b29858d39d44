package telemetry_test

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/paddockd/internal/config"
	"github.com/fyrsmithlabs/paddockd/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDisabled(t *testing.T) {
	tel, err := telemetry.New(context.Background(), config.TelemetryConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, tel)

	// Disabled telemetry still hands out usable (no-op) tracers.
	tracer := tel.Tracer("test")
	_, span := tracer.Start(context.Background(), "test-span")
	span.End()

	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNewEnabledRequiresEndpoint(t *testing.T) {
	_, err := telemetry.New(context.Background(), config.TelemetryConfig{
		Enabled:     true,
		ServiceName: "paddockd",
	})
	assert.Error(t, err)
}

func TestNilSafety(t *testing.T) {
	var tel *telemetry.Telemetry

	tracer := tel.Tracer("test")
	_, span := tracer.Start(context.Background(), "test-span")
	span.End()

	assert.NoError(t, tel.Shutdown(context.Background()))
}
