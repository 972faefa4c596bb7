package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/termhost/internal/config"
	"github.com/openmined/termhost/internal/utils"
)

// setupLogging sends records to stderr through tint and to the log file under the
// data dir. The returned func flushes and closes the file.
func setupLogging(s *config.Settings, stderr io.Writer) (func() error, error) {
	level, err := config.ParseLevel(s.LogLevel)
	if err != nil {
		return nil, err
	}

	logFile := s.LogFilePath()
	if err := utils.EnsureDir(filepath.Dir(logFile)); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	consoleHandler := tint.NewHandler(stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isTerminal(stderr),
	})

	stamp := utils.NewStampWriter(file)
	fileHandler := slog.NewTextHandler(stamp, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// the stamp writer adds the time
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	slog.SetDefault(slog.New(utils.NewFanoutHandler(consoleHandler, fileHandler)))

	return func() error {
		stampErr := stamp.Close()
		if err := file.Close(); err != nil {
			return err
		}
		return stampErr
	}, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
