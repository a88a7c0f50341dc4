package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/finbotd/internal/config"
	"github.com/fyrsmithlabs/finbotd/internal/telemetry"
)

func TestDisabledIsNoOp(t *testing.T) {
	tel := telemetry.New(context.Background(), config.TelemetryConfig{Enabled: false}, "test")

	assert.False(t, tel.Active())
	assert.Empty(t, tel.DegradedReason())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestBadProtocolDegrades(t *testing.T) {
	tel := telemetry.New(context.Background(), config.TelemetryConfig{
		Enabled:  true,
		Endpoint: "localhost:4317",
		Protocol: "carrier-pigeon",
	}, "test")

	assert.False(t, tel.Active())
	assert.Contains(t, tel.DegradedReason(), "unsupported protocol")
	assert.NoError(t, tel.Shutdown(context.Background()))
}
