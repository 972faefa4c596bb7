package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openmined/termhost/internal/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// settingsFor parses args on a throwaway command and loads settings from it.
func settingsFor(t *testing.T, args ...string) (*config.Settings, error) {
	t.Helper()

	var loaded *config.Settings
	var loadErr error
	root := newRootCmd(&app{})
	root.PersistentPreRunE = nil
	probe := &cobra.Command{
		Use: "probe",
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded, loadErr = loadSettings(cmd)
			return nil
		},
	}
	probe.Flags().Int("jobs", config.DefaultJobs, "")
	root.AddCommand(probe)
	root.SetArgs(append([]string{"probe"}, args...))
	require.NoError(t, root.Execute())
	return loaded, loadErr
}

func TestLoadSettings_Defaults(t *testing.T) {
	dataDir := t.TempDir()
	s, err := settingsFor(t, "--datadir", dataDir)
	require.NoError(t, err)

	assert.Equal(t, dataDir, s.DataDir)
	assert.Equal(t, config.DefaultJobs, s.Jobs)
	assert.True(t, s.History)
}

func TestLoadSettings_Precedence(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, config.SettingsFileName),
		[]byte("jobs: 2\nbuffer_size: 4096\nignore: [\"*.tmp\"]\nhistory: false\n"), 0o644))

	s, err := settingsFor(t, "--datadir", dataDir)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Jobs)
	assert.Equal(t, 4096, s.BufferSize)
	assert.Equal(t, []string{"*.tmp"}, s.Ignore)
	assert.False(t, s.History)

	t.Setenv("TERMHOST_JOBS", "3")
	s, err = settingsFor(t, "--datadir", dataDir)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Jobs, "env beats the settings file")

	s, err = settingsFor(t, "--datadir", dataDir, "--jobs", "5")
	require.NoError(t, err)
	assert.Equal(t, 5, s.Jobs, "flags beat env")
}

func TestLoadSettings_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "termhost.env")
	require.NoError(t, os.WriteFile(envFile, []byte("TERMHOST_BUFFER_SIZE=2048\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("TERMHOST_BUFFER_SIZE") })

	s, err := settingsFor(t, "--datadir", dir, "--env-file", envFile)
	require.NoError(t, err)
	assert.Equal(t, 2048, s.BufferSize)

	_, err = settingsFor(t, "--datadir", dir, "--env-file", filepath.Join(dir, "missing.env"))
	assert.Error(t, err)
}

func TestLoadSettings_Invalid(t *testing.T) {
	t.Setenv("TERMHOST_JOBS", "0")
	_, err := settingsFor(t, "--datadir", t.TempDir())
	assert.ErrorIs(t, err, config.ErrInvalidJobs)

	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, config.SettingsFileName), []byte("jobs: [broken"), 0o644))
	_, err = settingsFor(t, "--datadir", dataDir)
	assert.Error(t, err)
}
