// Package report maintains the read-side reporting index: an SQLite
// database synced from the correction files, serving status counts and
// completion percentages to the reporting collaborator, plus a review
// event log.
//
// The index is derived data. The correction files stay authoritative;
// a lost or stale index is rebuilt with Sync.
package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quadratecode/zhlaw-sub000/correction"
	"github.com/quadratecode/zhlaw-sub000/corrstore"
	"github.com/quadratecode/zhlaw-sub000/dbopen"
	"github.com/quadratecode/zhlaw-sub000/idgen"
)

// Schema bootstraps the reporting tables.
const Schema = `
CREATE TABLE IF NOT EXISTS law_reviews (
	law_id     TEXT NOT NULL,
	version    TEXT NOT NULL,
	status     TEXT NOT NULL,
	total      INTEGER NOT NULL,
	undefined  INTEGER NOT NULL,
	confirmed  INTEGER NOT NULL,
	edited     INTEGER NOT NULL,
	rejected   INTEGER NOT NULL,
	merged     INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (law_id, version)
);
CREATE TABLE IF NOT EXISTS review_events (
	event_id   TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	law_id     TEXT,
	version    TEXT,
	details    TEXT,
	success    INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_review_events_type ON review_events (event_type, created_at);
`

// Store wraps the reporting database.
type Store struct {
	db    *sql.DB
	newID idgen.Generator
}

// Option configures a Store.
type Option func(*Store)

// WithEventIDGenerator sets a custom ID generator for event IDs.
func WithEventIDGenerator(gen idgen.Generator) Option {
	return func(s *Store) { s.newID = gen }
}

// NewStore wraps an already-opened reporting database.
func NewStore(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, newID: idgen.Prefixed("evt_", idgen.Default)}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open opens (or creates) the reporting database at path.
func Open(path string, opts ...Option) (*Store, *sql.DB, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, nil, fmt.Errorf("report: %w", err)
	}
	return NewStore(db, opts...), db, nil
}

// Sync rebuilds the index rows from the correction store. Corrupt
// correction files are logged and skipped; they block only themselves.
func (s *Store) Sync(ctx context.Context, cs *corrstore.Store) error {
	keys, err := cs.List()
	if err != nil {
		return fmt.Errorf("report: sync: %w", err)
	}
	now := time.Now().Unix()
	for _, k := range keys {
		f, err := cs.Load(k)
		if errors.Is(err, corrstore.ErrCorrupt) {
			slog.Warn("reporting sync skipped corrupt file", "key", k.String(), "error", err)
			continue
		}
		if err != nil {
			return fmt.Errorf("report: sync %s: %w", k, err)
		}
		counts := f.Counts()
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO law_reviews (
				law_id, version, status, total,
				undefined, confirmed, edited, rejected, merged, updated_at
			) VALUES (?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT (law_id, version) DO UPDATE SET
				status = excluded.status,
				total = excluded.total,
				undefined = excluded.undefined,
				confirmed = excluded.confirmed,
				edited = excluded.edited,
				rejected = excluded.rejected,
				merged = excluded.merged,
				updated_at = excluded.updated_at`,
			k.LawID, k.Version, string(f.Status), len(f.Tables),
			counts[correction.StatusUndefined], counts[correction.StatusConfirmed],
			counts[correction.StatusEdited], counts[correction.StatusRejected],
			counts[correction.StatusMerged], now,
		)
		if err != nil {
			return fmt.Errorf("report: upsert %s: %w", k, err)
		}
	}
	return nil
}

// FileSummary is one indexed correction file.
type FileSummary struct {
	LawID     string
	Version   string
	Status    string
	Total     int
	Undefined int
	Confirmed int
	Edited    int
	Rejected  int
	Merged    int
}

// Summary aggregates the whole index.
type Summary struct {
	Files          int
	CompletedFiles int
	Tables         int
	Undefined      int
	Confirmed      int
	Edited         int
	Rejected       int
	Merged         int
}

// CompletionPercent is the share of tables already reviewed, 0..100.
func (s Summary) CompletionPercent() float64 {
	if s.Tables == 0 {
		return 100
	}
	return float64(s.Tables-s.Undefined) / float64(s.Tables) * 100
}

// Summary returns aggregate counters across all indexed files.
func (s *Store) Summary(ctx context.Context) (*Summary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(status = 'completed'), 0),
			COALESCE(SUM(total), 0),
			COALESCE(SUM(undefined), 0),
			COALESCE(SUM(confirmed), 0),
			COALESCE(SUM(edited), 0),
			COALESCE(SUM(rejected), 0),
			COALESCE(SUM(merged), 0)
		FROM law_reviews`)

	var sum Summary
	err := row.Scan(&sum.Files, &sum.CompletedFiles, &sum.Tables, &sum.Undefined,
		&sum.Confirmed, &sum.Edited, &sum.Rejected, &sum.Merged)
	if err != nil {
		return nil, fmt.Errorf("report: summary: %w", err)
	}
	return &sum, nil
}

// Files lists indexed files, optionally restricted to one law.
func (s *Store) Files(ctx context.Context, lawID string) ([]FileSummary, error) {
	query := `SELECT law_id, version, status, total, undefined, confirmed, edited, rejected, merged
		FROM law_reviews`
	args := []any{}
	if lawID != "" {
		query += ` WHERE law_id = ?`
		args = append(args, lawID)
	}
	query += ` ORDER BY law_id, version`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("report: files: %w", err)
	}
	defer rows.Close()

	var result []FileSummary
	for rows.Next() {
		var fs FileSummary
		if err := rows.Scan(&fs.LawID, &fs.Version, &fs.Status, &fs.Total,
			&fs.Undefined, &fs.Confirmed, &fs.Edited, &fs.Rejected, &fs.Merged); err != nil {
			return nil, fmt.Errorf("report: scan file: %w", err)
		}
		result = append(result, fs)
	}
	return result, rows.Err()
}

// Event is a domain-level review event to record.
type Event struct {
	Type    string
	LawID   string
	Version string
	Details string // optional JSON
	Success bool
}

// LogEvent records a review event. Non-blocking: errors are logged via
// slog but do not propagate, so a failing index never blocks review work.
func (s *Store) LogEvent(ctx context.Context, ev Event) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_events (event_id, event_type, law_id, version, details, success, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		s.newID(), ev.Type, ev.LawID, ev.Version, ev.Details, ev.Success, time.Now().Unix())
	if err != nil {
		slog.Error("review event log failed", "error", err, "event_type", ev.Type)
	}
}
