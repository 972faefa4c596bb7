package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/openmined/termhost/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "TERMHOST"

// settingFlags maps settings keys to the flags that may set them. Subcommands
// define the flags they care about; missing ones are skipped.
var settingFlags = map[string]string{
	"data_dir":    "datadir",
	"log_level":   "log-level",
	"buffer_size": "buffer-size",
	"jobs":        "jobs",
	"ignore":      "ignore",
	"include":     "include",
	"history":     "history",
}

// loadSettings merges, lowest first: defaults, settings.yaml, TERMHOST_* env and
// flags given on the command line.
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	if envFile, _ := cmd.Flags().GetString("env-file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	defaults := config.DefaultSettings()
	v.SetDefault("data_dir", defaults.DataDir)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("buffer_size", defaults.BufferSize)
	v.SetDefault("jobs", defaults.Jobs)
	v.SetDefault("ignore", defaults.Ignore)
	v.SetDefault("include", defaults.Include)
	v.SetDefault("history", defaults.History)

	for key, name := range settingFlags {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	settingsPath, _ := cmd.Flags().GetString("settings")
	if settingsPath == "" {
		settingsPath = (&config.Settings{DataDir: v.GetString("data_dir")}).SettingsPath()
	}
	v.SetConfigFile(settingsPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("settings read '%s': %w", settingsPath, err)
		}
	}

	s := &config.Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("settings decode: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	return s, nil
}
