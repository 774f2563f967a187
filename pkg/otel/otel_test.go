package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestConfig_SampleRatioIsClamped(t *testing.T) {
	assert.InDelta(t, 0.0, Config{SampleRatio: -1}.sampleRatio(), 0)
	assert.InDelta(t, 1.0, Config{SampleRatio: 7}.sampleRatio(), 0)
	assert.InDelta(t, 0.25, Config{SampleRatio: 0.25}.sampleRatio(), 0)
}

func TestConfig_ResourceAttributes(t *testing.T) {
	cfg := Config{
		ServiceName:        "runtime-authz",
		Environment:        "staging",
		ResourceAttributes: map[string]string{"team": "platform"},
	}

	attrs := cfg.toResourceAttributes()

	assert.Contains(t, attrs, attribute.String("service.name", "runtime-authz"))
	assert.Contains(t, attrs, attribute.String("deployment.environment", "staging"))
	assert.Contains(t, attrs, attribute.String("team", "platform"))
	for _, a := range attrs {
		assert.NotEqual(t, attribute.Key("service.version"), a.Key)
	}
}

func TestInitTracer_DisabledIsNoop(t *testing.T) {
	tr, err := InitTracer(Config{ServiceName: "runtime-authz", Enabled: true})
	require.NoError(t, err)

	_, span := tr.Start(context.Background(), "op")
	defer span.End()
	assert.False(t, span.SpanContext().IsValid())
	require.NoError(t, Shutdown(context.Background()))
}

func TestNewSampler(t *testing.T) {
	assert.Contains(t, newSampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, newSampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, newSampler(0.5).Description(), "TraceIDRatioBased")
	assert.IsType(t, sdktrace.ParentBased(sdktrace.AlwaysSample()), newSampler(0.5))
}
