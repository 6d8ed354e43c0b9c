package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestFromContextReturnsAttachedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).With().Str("command", "tail").Logger()

	ctx := WithContext(context.Background(), logger)
	got := FromContext(ctx)
	got.Warn().Msg("hello")

	require.Contains(t, buf.String(), `"command":"tail"`)
	require.Contains(t, buf.String(), `"message":"hello"`)
}

func TestFromContextFallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger
	t.Cleanup(func() { Logger = prev })
	Logger = zerolog.New(&buf)

	fallback := FromContext(context.Background())
	fallback.Warn().Msg("global")
	var unset context.Context
	nilCtx := FromContext(unset)
	nilCtx.Warn().Msg("nil ctx")

	require.Contains(t, buf.String(), "global")
	require.Contains(t, buf.String(), "nil ctx")
}

func TestComponentAndRoomFields(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger
	t.Cleanup(func() { Logger = prev })
	Logger = zerolog.New(&buf)

	logger := WithRoom("stream", "42")
	logger.Warn().Msg("x")
	require.Contains(t, buf.String(), `"component":"stream"`)
	require.Contains(t, buf.String(), `"room":"42"`)
}
