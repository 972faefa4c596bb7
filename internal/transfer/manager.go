package transfer

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/openmined/termhost/internal/hosterr"
	"github.com/openmined/termhost/internal/utils"
	"golang.org/x/sync/errgroup"
)

const (
	defaultOpenConcurrency = 8
	subscriberBuffer       = 32
)

// Manager starts transfers and announces each started transfer to subscribers.
type Manager struct {
	expander        *Expander
	opts            []Option
	openConcurrency int

	subsMu sync.Mutex
	subs   map[int]chan Transfer
	nextID int
}

// NewManager uses expander to resolve upload selections. opts are applied to every
// transfer it creates.
func NewManager(expander *Expander, opts ...Option) *Manager {
	return &Manager{
		expander:        expander,
		opts:            opts,
		openConcurrency: defaultOpenConcurrency,
		subs:            make(map[int]chan Transfer),
	}
}

// Subscribe returns a channel of started transfers and a function that ends the
// subscription. Slow subscribers miss announcements rather than stall transfers.
func (m *Manager) Subscribe() (<-chan Transfer, func()) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan Transfer, subscriberBuffer)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subsMu.Lock()
			defer m.subsMu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

func (m *Manager) announce(t Transfer) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	for _, ch := range m.subs {
		select {
		case ch <- t:
		default:
			slog.Debug("transfer announcement dropped", "id", t.ID(), "name", t.Name())
		}
	}
}

// StartUpload expands roots and opens one Upload per unit. Either every upload is
// returned open, or all of them are closed and the first error is returned.
func (m *Manager) StartUpload(ctx context.Context, roots []string) ([]*Upload, error) {
	units, err := m.expander.Expand(ctx, roots)
	if err != nil {
		return nil, err
	}

	uploads := make([]*Upload, len(units))
	for i, unit := range units {
		uploads[i] = m.newUpload(unit)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.openConcurrency)
	for _, u := range uploads {
		g.Go(func() error {
			return u.Open(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		closeAll(uploads)
		return nil, err
	}

	for _, u := range uploads {
		m.announce(u)
	}
	return uploads, nil
}

// OpenUpload opens a single unit. On failure the upload is already closed.
func (m *Manager) OpenUpload(ctx context.Context, unit Unit) (*Upload, error) {
	u := m.newUpload(unit)
	if err := u.Open(ctx); err != nil {
		return nil, errors.Join(err, u.Close())
	}
	m.announce(u)
	return u, nil
}

// StartDownload creates path's parent directories and opens a download into it.
// On failure the download is already closed.
func (m *Manager) StartDownload(ctx context.Context, path string, mode fs.FileMode, size int64) (*Download, error) {
	if err := utils.EnsureParent(path); err != nil {
		return nil, hosterr.NewIOError("mkdir", path, err)
	}

	d := NewDownload(path, mode, size, m.opts...)
	if err := d.Open(ctx); err != nil {
		return nil, errors.Join(err, d.Close())
	}
	m.announce(d)
	return d, nil
}

func (m *Manager) newUpload(unit Unit) *Upload {
	opts := append(append([]Option(nil), m.opts...), WithRelPath(unit.RelPath))
	return NewUpload(unit.AbsPath, opts...)
}

func closeAll[T Transfer](transfers []T) {
	for _, t := range transfers {
		if err := t.Close(); err != nil {
			slog.Warn("transfer close failed", "path", t.Path(), "error", err)
		}
	}
}
