// Package config persists the application's configuration file.
//
// The Store writes the whole file on every save through a sibling temp file and an
// atomic rename, so a reader never sees a partially written config. Saves are
// serialized in call order within the process and guarded by a lock file across
// processes.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/gofrs/flock"
	"github.com/openmined/termhost/internal/hosterr"
	"github.com/openmined/termhost/internal/utils"
)

const (
	FileName     = "config.yaml"
	tempSuffix   = ".new"
	backupSuffix = ".backup"
	lockSuffix   = ".lock"
	filePerm     = 0o600
)

type Store struct {
	path string
	lock *flock.Flock

	// tail is closed when the most recently queued save has finished
	queueMu sync.Mutex
	tail    chan struct{}

	// known is the canonical content as last written or read by this process
	knownMu  sync.Mutex
	known    string
	hasKnown bool

	// beforeRename runs after both sibling files are written
	beforeRename func() error
}

func NewStore(path string) *Store {
	idle := make(chan struct{})
	close(idle)
	return &Store{
		path: path,
		lock: flock.New(path + lockSuffix),
		tail: idle,
	}
}

func (s *Store) Path() string       { return s.path }
func (s *Store) TempPath() string   { return s.path + tempSuffix }
func (s *Store) BackupPath() string { return s.path + backupSuffix }

// Save replaces the config file with content.
//
// Calls run one at a time in the order they were made, and each returns only after
// its own write finished. A failed save is reported to its caller only; later saves
// still run. If ctx ends while waiting in the queue Save returns ctx.Err() and
// writes nothing. Once the write has started it runs to completion.
func (s *Store) Save(ctx context.Context, content string) error {
	s.queueMu.Lock()
	prev := s.tail
	done := make(chan struct{})
	s.tail = done
	s.queueMu.Unlock()

	select {
	case <-prev:
	case <-ctx.Done():
		// keep our place in the chain so the next save still waits for prev
		go func() {
			<-prev
			close(done)
		}()
		return ctx.Err()
	}
	defer close(done)

	if err := s.write(content); err != nil {
		slog.Warn("config save failed", "path", s.path, "error", err)
		return err
	}
	slog.Debug("config saved", "path", s.path, "bytes", len(content))
	return nil
}

func (s *Store) write(content string) error {
	if err := utils.EnsureParent(s.path); err != nil {
		return hosterr.NewIOError("mkdir", s.path, err)
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", s.lock.Path(), err)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			slog.Warn("config unlock failed", "path", s.lock.Path(), "error", err)
		}
	}()

	data := []byte(content)
	if err := writeSynced(s.TempPath(), data); err != nil {
		return err
	}
	// the backup is never read back; it is there for manual recovery
	if err := writeSynced(s.BackupPath(), data); err != nil {
		return err
	}

	if s.beforeRename != nil {
		if err := s.beforeRename(); err != nil {
			return err
		}
	}

	s.knownMu.Lock()
	defer s.knownMu.Unlock()
	if err := os.Rename(s.TempPath(), s.path); err != nil {
		return hosterr.NewIOError("rename", s.TempPath(), err)
	}
	s.known, s.hasKnown = content, true
	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return hosterr.NewIOError("open", path, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return hosterr.NewIOError("write", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return hosterr.NewIOError("sync", path, err)
	}
	return hosterr.NewIOError("close", path, f.Close())
}

// Load returns the current config content, or "" when no config was saved yet.
func (s *Store) Load() (string, error) {
	s.knownMu.Lock()
	defer s.knownMu.Unlock()

	content, err := s.read()
	if err != nil {
		return "", err
	}
	s.known, s.hasKnown = content, true
	return content, nil
}

// refresh rereads the file and reports whether it differs from what this process
// last wrote or read.
func (s *Store) refresh() (string, bool, error) {
	s.knownMu.Lock()
	defer s.knownMu.Unlock()

	content, err := s.read()
	if err != nil {
		return "", false, err
	}
	changed := s.hasKnown && content != s.known
	s.known, s.hasKnown = content, true
	return content, changed, nil
}

func (s *Store) read() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", hosterr.NewIOError("read", s.path, err)
	}
	return string(data), nil
}
