package utils

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStampWriter_StampsCompleteLines(t *testing.T) {
	var out bytes.Buffer
	w := NewStampWriter(&out)
	w.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	n, err := w.Write([]byte("first\nsec"))
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.Equal(t, "line=1 time=2026-01-02T03:04:05Z first\n", out.String())

	_, err = w.Write([]byte("ond\r\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "line=2 time=2026-01-02T03:04:05Z second", lines[1])
}

func TestStampWriter_CloseFlushesPartialLine(t *testing.T) {
	var out bytes.Buffer
	w := NewStampWriter(&out)

	_, err := w.Write([]byte("tail"))
	require.NoError(t, err)
	assert.Empty(t, out.String())

	require.NoError(t, w.Close())
	assert.True(t, strings.HasSuffix(out.String(), " tail\n"))
	require.NoError(t, w.Close())
}

func TestFanoutHandler_RespectsLevels(t *testing.T) {
	var debugOut, warnOut bytes.Buffer
	debugH := slog.NewTextHandler(&debugOut, &slog.HandlerOptions{Level: slog.LevelDebug})
	warnH := slog.NewTextHandler(&warnOut, &slog.HandlerOptions{Level: slog.LevelWarn})

	logger := slog.New(NewFanoutHandler(debugH, warnH)).With("component", "test")
	logger.Debug("quiet")
	logger.Warn("loud")

	assert.Contains(t, debugOut.String(), "quiet")
	assert.Contains(t, debugOut.String(), "loud")
	assert.NotContains(t, warnOut.String(), "quiet")
	assert.Contains(t, warnOut.String(), "component=test")

	h := NewFanoutHandler(warnH)
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.WithGroup("g").Enabled(context.Background(), slog.LevelError))
}
