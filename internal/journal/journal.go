// Package journal keeps an SQLite history of transfer outcomes. It is an
// audit log: the queue itself is never restored from it.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/warpdl/warpq/common"
	"github.com/warpdl/warpq/pkg/logger"
	"github.com/warpdl/warpq/pkg/warpq"

	_ "modernc.org/sqlite"
)

// DefaultListLimit is used by List when limit is not positive.
const DefaultListLimit = 50

// ErrClosed is returned by Record and List after Close.
var ErrClosed = errors.New("journal: closed")

const schema = `
CREATE TABLE IF NOT EXISTS outcomes (
    id         TEXT PRIMARY KEY,
    attempt    TEXT NOT NULL,
    key        TEXT NOT NULL,
    outcome    TEXT NOT NULL,
    detail     TEXT NOT NULL DEFAULT '',
    bytes      INTEGER NOT NULL DEFAULT 0,
    elapsed_ms INTEGER NOT NULL DEFAULT 0,
    at         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS outcomes_at ON outcomes (at);
`

// Journal records terminal scheduler events.
type Journal struct {
	db     *sql.DB
	log    logger.Logger
	closed atomic.Bool
}

// Open opens or creates the journal database at path.
func Open(path string, l logger.Logger) (*Journal, error) {
	if l == nil {
		l = logger.NewNopLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("journal: create dir: %w", err)
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	// a single connection serializes writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: create schema: %w", err)
	}
	return &Journal{db: db, log: l}, nil
}

// Attach records every terminal event emitted on n.
func (j *Journal) Attach(n warpq.Notifier) {
	h := func(ev warpq.Event) {
		if err := j.Record(context.Background(), ev); err != nil {
			j.log.Error("Failed to journal %s of %s: %v", ev.Type, ev.Key, err)
		}
	}
	n.On(warpq.EventSuccess, h)
	n.On(warpq.EventFailed, h)
	n.On(warpq.EventAborted, h)
}

// Record stores one terminal event. Other event types are ignored.
func (j *Journal) Record(ctx context.Context, ev warpq.Event) error {
	if !ev.Type.IsTerminal() {
		return nil
	}
	if j.closed.Load() {
		return ErrClosed
	}
	var detail string
	if ev.Err != nil {
		detail = ev.Err.Error()
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO outcomes (id, attempt, key, outcome, detail, bytes, elapsed_ms, at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), ev.Attempt, ev.Key, string(ev.Type), detail,
		int64(len(ev.Payload)), ev.Elapsed.Milliseconds(), at.UnixNano())
	if err != nil {
		if errors.Is(err, sql.ErrConnDone) {
			return ErrClosed
		}
		return fmt.Errorf("journal: insert: %w", err)
	}
	return nil
}

// List returns the most recent outcomes, newest first.
func (j *Journal) List(ctx context.Context, limit int) ([]common.HistoryEntry, error) {
	if j.closed.Load() {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := j.db.QueryContext(ctx, `
        SELECT id, attempt, key, outcome, detail, bytes, elapsed_ms, at
        FROM outcomes
        ORDER BY at DESC, rowid DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	entries := make([]common.HistoryEntry, 0)
	for rows.Next() {
		var (
			e  common.HistoryEntry
			at int64
		)
		if err := rows.Scan(&e.ID, &e.Attempt, &e.Key, &e.Outcome, &e.Detail, &e.Bytes, &e.ElapsedMs, &at); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.At = time.Unix(0, at)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate: %w", err)
	}
	return entries, nil
}

// Close closes the database. It is safe to call more than once.
func (j *Journal) Close() error {
	if j.closed.Swap(true) {
		return nil
	}
	return j.db.Close()
}
