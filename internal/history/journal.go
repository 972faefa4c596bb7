// Package history keeps a local record of finished transfers.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/termhost/internal/db"
	"github.com/openmined/termhost/internal/transfer"
)

const schema = `
CREATE TABLE IF NOT EXISTS transfers (
    id TEXT PRIMARY KEY,
    direction TEXT NOT NULL,
    name TEXT NOT NULL,
    path TEXT NOT NULL,
    rel_path TEXT NOT NULL DEFAULT '',
    size INTEGER NOT NULL,
    transferred INTEGER NOT NULL,
    status TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    started_at TEXT NOT NULL, -- UTC, fixed width
    finished_at TEXT NOT NULL -- UTC, fixed width
);

CREATE INDEX IF NOT EXISTS idx_transfers_finished_at ON transfers(finished_at);
`

// timeLayout is fixed-width so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var (
	ErrNotOpen     = errors.New("history: journal not open")
	ErrAlreadyOpen = errors.New("history: journal already open")
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Entry struct {
	ID          string             `json:"id"`
	Direction   transfer.Direction `json:"direction"`
	Name        string             `json:"name"`
	Path        string             `json:"path"`
	RelPath     string             `json:"rel_path,omitempty"`
	Size        int64              `json:"size"`
	Transferred int64              `json:"transferred"`
	Status      Status             `json:"status"`
	Error       string             `json:"error,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
}

// NewEntry describes t as finished now. A non-nil err marks it failed.
func NewEntry(t transfer.Transfer, startedAt time.Time, err error) Entry {
	e := Entry{
		ID:          t.ID(),
		Direction:   t.Direction(),
		Name:        t.Name(),
		Path:        t.Path(),
		RelPath:     t.RelPath(),
		Size:        t.Size(),
		Transferred: t.Progress().Transferred,
		Status:      StatusCompleted,
		StartedAt:   startedAt.UTC(),
		FinishedAt:  time.Now().UTC(),
	}
	if err != nil {
		e.Status = StatusFailed
		e.Error = err.Error()
	}
	return e
}

type row struct {
	ID          string `db:"id"`
	Direction   string `db:"direction"`
	Name        string `db:"name"`
	Path        string `db:"path"`
	RelPath     string `db:"rel_path"`
	Size        int64  `db:"size"`
	Transferred int64  `db:"transferred"`
	Status      string `db:"status"`
	Error       string `db:"error"`
	StartedAt   string `db:"started_at"`
	FinishedAt  string `db:"finished_at"`
}

// Journal stores entries in SQLite.
type Journal struct {
	db     *sqlx.DB
	dbPath string
}

// NewJournal prepares a journal at dbPath; db.MemoryPath keeps it in memory.
func NewJournal(dbPath string) *Journal {
	return &Journal{dbPath: dbPath}
}

func (j *Journal) Open() error {
	if j.db != nil {
		return ErrAlreadyOpen
	}

	conn, err := db.NewSqliteDB(db.WithPath(j.dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return fmt.Errorf("init history schema: %w", err)
	}

	j.db = conn
	return nil
}

func (j *Journal) Close() error {
	if j.db == nil {
		return ErrNotOpen
	}
	err := j.db.Close()
	j.db = nil
	if err != nil {
		slog.Error("history close", "error", err)
		return err
	}
	return nil
}

// Record inserts e, replacing an earlier entry with the same ID.
func (j *Journal) Record(e Entry) error {
	if j.db == nil {
		return ErrNotOpen
	}

	_, err := j.db.NamedExec(`
		INSERT OR REPLACE INTO transfers
			(id, direction, name, path, rel_path, size, transferred, status, error, started_at, finished_at)
		VALUES
			(:id, :direction, :name, :path, :rel_path, :size, :transferred, :status, :error, :started_at, :finished_at)`,
		toRow(e))
	if err != nil {
		return fmt.Errorf("record transfer %s: %w", e.ID, err)
	}
	return nil
}

// List returns up to limit entries, most recently finished first. A limit below 1
// returns everything.
func (j *Journal) List(limit int) ([]Entry, error) {
	if j.db == nil {
		return nil, ErrNotOpen
	}
	if limit < 1 {
		limit = -1
	}

	var rows []row
	if err := j.db.Select(&rows, "SELECT * FROM transfers ORDER BY finished_at DESC, id LIMIT ?", limit); err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		e, err := r.entry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Get returns the entry with id, or nil if there is none.
func (j *Journal) Get(id string) (*Entry, error) {
	if j.db == nil {
		return nil, ErrNotOpen
	}

	var r row
	if err := j.db.Get(&r, "SELECT * FROM transfers WHERE id = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transfer %s: %w", id, err)
	}
	e, err := r.entry()
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (j *Journal) Count() (int, error) {
	if j.db == nil {
		return 0, ErrNotOpen
	}
	var n int
	if err := j.db.Get(&n, "SELECT COUNT(*) FROM transfers"); err != nil {
		return 0, fmt.Errorf("count transfers: %w", err)
	}
	return n, nil
}

func toRow(e Entry) row {
	return row{
		ID:          e.ID,
		Direction:   string(e.Direction),
		Name:        e.Name,
		Path:        e.Path,
		RelPath:     e.RelPath,
		Size:        e.Size,
		Transferred: e.Transferred,
		Status:      string(e.Status),
		Error:       e.Error,
		StartedAt:   e.StartedAt.UTC().Format(timeLayout),
		FinishedAt:  e.FinishedAt.UTC().Format(timeLayout),
	}
}

func (r row) entry() (Entry, error) {
	started, err := time.Parse(timeLayout, r.StartedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parse started_at of %s: %w", r.ID, err)
	}
	finished, err := time.Parse(timeLayout, r.FinishedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parse finished_at of %s: %w", r.ID, err)
	}
	return Entry{
		ID:          r.ID,
		Direction:   transfer.Direction(r.Direction),
		Name:        r.Name,
		Path:        r.Path,
		RelPath:     r.RelPath,
		Size:        r.Size,
		Transferred: r.Transferred,
		Status:      Status(r.Status),
		Error:       r.Error,
		StartedAt:   started,
		FinishedAt:  finished,
	}, nil
}
