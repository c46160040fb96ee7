package requestctx

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestWithCorrelationID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, CorrelationID(ctx))

	ctx2 := WithCorrelationID(ctx, "abc")
	assert.Equal(t, "abc", CorrelationID(ctx2))
	assert.Empty(t, CorrelationID(ctx))

	ctx3 := WithCorrelationID(ctx2, "def")
	assert.Equal(t, "def", CorrelationID(ctx3))
	assert.Equal(t, "abc", CorrelationID(ctx2))
}

func TestLogFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	logger.Info().Func(LogFields(context.Background())).Msg("plain")
	assert.NotContains(t, buf.String(), "correlation_id")

	buf.Reset()
	logger.Info().Func(LogFields(WithCorrelationID(context.Background(), "abc"))).Msg("tagged")
	assert.Contains(t, buf.String(), `"correlation_id":"abc"`)
}
