package otel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup("furbot", "dev", false)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupWithWriter_ExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := SetupWithWriter("furbot", "1.2.3", true, &buf)
	require.NoError(t, err)

	_, span := Tracer("github.com/vaisest/fakefurbot/internal/otel/test").Start(context.Background(), "test.operation")
	assert.True(t, span.SpanContext().IsValid())
	assert.True(t, span.SpanContext().HasTraceID())
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, shutdown(ctx))

	assert.Contains(t, buf.String(), "test.operation")
	assert.Contains(t, buf.String(), "furbot")
}
