package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/openmined/termhost/internal/transfer"
	"github.com/openmined/termhost/internal/utils"
	"github.com/openmined/termhost/internal/version"
)

const (
	SettingsFileName = "settings.yaml"
	HistoryFileName  = "history.db"
	logsDir          = "logs"
	logFileName      = "termhost.log"
	DefaultJobs      = 4
)

var (
	ErrInvalidBufferSize = errors.New("buffer size must be positive")
	ErrInvalidJobs       = errors.New("jobs must be positive")
)

// Settings control the CLI. They are read from flags, TERMHOST_* variables and an
// optional settings.yaml, and are separate from the config.yaml the Store manages.
type Settings struct {
	DataDir    string   `mapstructure:"data_dir" yaml:"data_dir" json:"data_dir"`
	LogLevel   string   `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	BufferSize int      `mapstructure:"buffer_size" yaml:"buffer_size" json:"buffer_size"`
	Ignore     []string `mapstructure:"ignore" yaml:"ignore" json:"ignore"`
	Include    []string `mapstructure:"include" yaml:"include" json:"include"`
	Jobs       int      `mapstructure:"jobs" yaml:"jobs" json:"jobs"`
	History    bool     `mapstructure:"history" yaml:"history" json:"history"`
}

// DefaultDataDir is the per-user config directory for the app, falling back to
// ~/.termhost when the platform has none.
func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, version.AppName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+version.AppName)
}

func DefaultSettings() *Settings {
	return &Settings{
		DataDir:    DefaultDataDir(),
		LogLevel:   "info",
		BufferSize: transfer.DefaultBufferSize,
		Jobs:       DefaultJobs,
		History:    true,
	}
}

// Validate resolves DataDir to an absolute path and checks the remaining fields.
func (s *Settings) Validate() error {
	dataDir, err := utils.ResolvePath(s.DataDir)
	if err != nil {
		return fmt.Errorf("data dir: %w", err)
	}
	s.DataDir = dataDir

	if _, err := ParseLevel(s.LogLevel); err != nil {
		return err
	}
	if s.BufferSize <= 0 {
		return ErrInvalidBufferSize
	}
	if s.Jobs <= 0 {
		return ErrInvalidJobs
	}
	for _, glob := range s.Include {
		if !doublestar.ValidatePattern(glob) {
			return fmt.Errorf("include pattern %q is invalid", glob)
		}
	}
	return nil
}

func (s *Settings) ConfigPath() string   { return filepath.Join(s.DataDir, FileName) }
func (s *Settings) SettingsPath() string { return filepath.Join(s.DataDir, SettingsFileName) }
func (s *Settings) HistoryPath() string  { return filepath.Join(s.DataDir, HistoryFileName) }
func (s *Settings) LogFilePath() string  { return filepath.Join(s.DataDir, logsDir, logFileName) }

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", level, err)
	}
	return l, nil
}
