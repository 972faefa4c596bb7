package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "app", FileName))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestStore_LoadFirstRun(t *testing.T) {
	s := newTestStore(t)

	content, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, content)
}

func TestStore_SaveThenLoad(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Save(context.Background(), "theme: dark\n"))

	content, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "theme: dark\n", content)
	assert.Equal(t, "theme: dark\n", readFile(t, s.BackupPath()))
	assert.NoFileExists(t, s.TempPath())
	assert.FileExists(t, s.Path()+lockSuffix)

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePerm), info.Mode().Perm())
}

func TestStore_ConcurrentSavesAreSerialized(t *testing.T) {
	s := newTestStore(t)

	var (
		inFlight    atomic.Int32
		maxInFlight atomic.Int32
		orderMu     sync.Mutex
		order       []string
	)
	s.beforeRename = func() error {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := maxInFlight.Load()
			if n <= old || maxInFlight.CompareAndSwap(old, n) {
				break
			}
		}

		// the temp file holds exactly this save's content
		data, err := os.ReadFile(s.TempPath())
		if err != nil {
			return err
		}
		orderMu.Lock()
		order = append(order, string(data))
		orderMu.Unlock()

		time.Sleep(time.Millisecond)
		return nil
	}

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Save(context.Background(), fmt.Sprintf("value: %d\n", i)))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
	require.Len(t, order, 20)

	content, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, order[len(order)-1], content, "last completed write wins")
}

func TestStore_SavesRunInCallOrder(t *testing.T) {
	s := newTestStore(t)

	release := make(chan struct{})
	var (
		mu    sync.Mutex
		order []string
	)
	s.beforeRename = func() error {
		data, err := os.ReadFile(s.TempPath())
		if err != nil {
			return err
		}
		mu.Lock()
		order = append(order, string(data))
		first := len(order) == 1
		mu.Unlock()
		if first {
			<-release
		}
		return nil
	}

	var wg sync.WaitGroup
	for _, v := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Save(context.Background(), v))
		}()
		// give each save time to join the queue before the next one
		time.Sleep(20 * time.Millisecond)
	}
	close(release)
	wg.Wait()

	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
	assert.Equal(t, "d", readFile(t, s.Path()))
}

func TestStore_FailureDoesNotPoisonQueue(t *testing.T) {
	s := newTestStore(t)

	errDisk := errors.New("disk unplugged")
	var calls atomic.Int32
	s.beforeRename = func() error {
		if calls.Add(1) == 1 {
			return errDisk
		}
		return nil
	}

	err := s.Save(context.Background(), "first")
	assert.ErrorIs(t, err, errDisk)

	require.NoError(t, s.Save(context.Background(), "second"))
	content, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "second", content)
}

func TestStore_CrashBeforeRenameKeepsPreviousContent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(context.Background(), "old"))

	errCrash := errors.New("simulated crash")
	s.beforeRename = func() error { return errCrash }

	err := s.Save(context.Background(), "new")
	require.ErrorIs(t, err, errCrash)

	content, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "old", content)
	assert.Equal(t, "new", readFile(t, s.BackupPath()), "backup may run ahead of the canonical file")
	assert.Equal(t, "new", readFile(t, s.TempPath()))

	// the next save recovers by overwriting the stale temp file
	s.beforeRename = nil
	require.NoError(t, s.Save(context.Background(), "newer"))
	assert.Equal(t, "newer", readFile(t, s.Path()))
	assert.NoFileExists(t, s.TempPath())
}

func TestStore_CancelledWhileQueued(t *testing.T) {
	s := newTestStore(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	s.beforeRename = func() error {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return nil
	}

	firstDone := make(chan error, 1)
	go func() { firstDone <- s.Save(context.Background(), "first") }()
	<-entered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Save(ctx, "cancelled"), context.Canceled)

	thirdDone := make(chan error, 1)
	go func() { thirdDone <- s.Save(context.Background(), "third") }()

	select {
	case <-thirdDone:
		t.Fatal("save ran while an earlier save was still writing")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-thirdDone)
	assert.Equal(t, "third", readFile(t, s.Path()))
	assert.Equal(t, int32(2), calls.Load(), "the cancelled save never wrote")
}

func TestStore_ReadErrorIsIOError(t *testing.T) {
	dir := t.TempDir()
	// a directory in place of the config file cannot be read
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.Mkdir(path, 0o755))

	_, err := NewStore(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}
