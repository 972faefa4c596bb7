package config

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/openmined/termhost/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_DefaultsAreValid(t *testing.T) {
	s := DefaultSettings()
	require.NoError(t, s.Validate())

	assert.True(t, filepath.IsAbs(s.DataDir))
	assert.Equal(t, transfer.DefaultBufferSize, s.BufferSize)
	assert.Equal(t, DefaultJobs, s.Jobs)
	assert.True(t, s.History)
	assert.Equal(t, filepath.Join(s.DataDir, "config.yaml"), s.ConfigPath())
	assert.Equal(t, filepath.Join(s.DataDir, "logs", "termhost.log"), s.LogFilePath())
}

func TestSettings_ValidateResolvesDataDir(t *testing.T) {
	s := DefaultSettings()
	s.DataDir = "relative/dir"
	require.NoError(t, s.Validate())
	assert.True(t, filepath.IsAbs(s.DataDir))
	assert.Equal(t, "dir", filepath.Base(s.DataDir))
}

func TestSettings_ValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Settings)
		errIs  error
	}{
		{name: "empty data dir", modify: func(s *Settings) { s.DataDir = "" }},
		{name: "bad level", modify: func(s *Settings) { s.LogLevel = "loud" }},
		{name: "zero buffer", modify: func(s *Settings) { s.BufferSize = 0 }, errIs: ErrInvalidBufferSize},
		{name: "negative jobs", modify: func(s *Settings) { s.Jobs = -1 }, errIs: ErrInvalidJobs},
		{name: "bad include", modify: func(s *Settings) { s.Include = []string{"[oops"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			s.DataDir = t.TempDir()
			tt.modify(s)

			err := s.Validate()
			require.Error(t, err)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for input, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
}
