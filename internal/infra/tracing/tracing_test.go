//go:build !integration

package tracing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maizey-chat/internal/config"
)

func TestInitDisabledIsNoop(t *testing.T) {
	tr, shutdown, err := Init(context.Background(), config.TracingConfig{}, "test")
	require.NoError(t, err)
	_, span := tr.Start(context.Background(), "x")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitWritesSpansToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.log")
	tr, shutdown, err := Init(context.Background(), config.TracingConfig{Enabled: true, File: path}, "test")
	require.NoError(t, err)

	_, span := tr.Start(context.Background(), "assistant.send")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
	require.NoError(t, shutdown(context.Background()))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "assistant.send")
}
