package telemetry

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitTracerDisabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestGetSampler(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		description string
	}{
		{"always", Config{SamplerType: "always"}, sdktrace.AlwaysSample().Description()},
		{"never", Config{SamplerType: "never"}, sdktrace.NeverSample().Description()},
		{"ratio", Config{SamplerType: "ratio", SamplerRatio: 0.5}, sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.5)).Description()},
		{"unknown falls back to always", Config{SamplerType: "sometimes"}, sdktrace.AlwaysSample().Description()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.description, getSampler(tt.cfg).Description())
		})
	}
}

func TestWithSpan(t *testing.T) {
	t.Run("returns nil from successful function", func(t *testing.T) {
		called := false
		err := WithSpan(context.Background(), "validate.links", func(context.Context) error {
			called = true
			return nil
		})
		assert.NoError(t, err)
		assert.True(t, called)
	})

	t.Run("propagates function error", func(t *testing.T) {
		err := WithSpan(context.Background(), "validate.links", func(context.Context) error {
			return errors.New("boom")
		})
		assert.EqualError(t, err, "boom")
	})
}
