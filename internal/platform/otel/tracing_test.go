package otel

import (
	"bytes"
	"context"
	"testing"

	"github.com/nulzo/ai-sdk-gateway/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(config.TracingConfig{}, zap.NewNop(), &bytes.Buffer{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracer_ExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var out bytes.Buffer
	shutdown, err := InitTracer(config.TracingConfig{Enabled: true, ServiceName: "gateway-test"}, zap.NewNop(), &out)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "ask")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, out.String(), `"Name": "ask"`)
}
