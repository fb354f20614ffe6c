//go:build !rp2040 && !rp2350

// Package journal keeps a SQLite record of every phase transition, keyed by
// the boot that produced it.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"signalcode-go/types"
)

var ErrDuplicate = errors.New("duplicate")

// Entry is one journalled transition.
type Entry struct {
	types.Transition
	BootID string `json:"boot_id"`
}

type Store struct {
	db     *sql.DB
	bootID string
	lost   atomic.Uint32
}

// Open creates or opens the journal at path, migrates it and starts a new
// boot id.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := ApplyMigrations(ctx, db); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return &Store{db: db, bootID: uuid.New().String()}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) BootID() string { return s.bootID }

// Record inserts ev under the current boot. An empty ID gets a fresh one;
// a repeated ID returns ErrDuplicate.
func (s *Store) Record(ctx context.Context, ev types.Transition) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO transitions(id, boot_id, tick, from_state, to_state, caution, forced, ts_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING`,
		ev.ID, s.bootID, ev.Tick, ev.From.String(), ev.To.String(),
		boolInt(ev.Caution), boolInt(ev.Forced), ev.TS)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transition %s: %w", ev.ID, ErrDuplicate)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, boot_id, tick, from_state, to_state, caution, forced, ts_ms
FROM transitions
ORDER BY ts_ms DESC, rowid DESC
LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []Entry
	for rows.Next() {
		var (
			e               Entry
			from, to        string
			caution, forced int
		)
		if err := rows.Scan(&e.ID, &e.BootID, &e.Tick, &from, &to, &caution, &forced, &e.TS); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		if e.From, err = types.ParsePhase(from); err != nil {
			return nil, fmt.Errorf("transition %s: %w", e.ID, err)
		}
		if e.To, err = types.ParsePhase(to); err != nil {
			return nil, fmt.Errorf("transition %s: %w", e.ID, err)
		}
		e.Caution, e.Forced = caution != 0, forced != 0
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return out, nil
}

// CountByState counts transitions into each phase across all boots.
func (s *Store) CountByState(ctx context.Context) (map[types.Phase]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT to_state, COUNT(*) FROM transitions GROUP BY to_state`)
	if err != nil {
		return nil, fmt.Errorf("count transitions: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	out := map[types.Phase]int{}
	for rows.Next() {
		var (
			name string
			n    int
		)
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		p, err := types.ParsePhase(name)
		if err != nil {
			return nil, fmt.Errorf("count %q: %w", name, err)
		}
		out[p] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return out, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
