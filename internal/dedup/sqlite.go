package dedup

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store and History using modernc.org/sqlite.
type SQLiteStore struct {
	db      *sql.DB
	ids     map[string]struct{}
	pending []string
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "dedup: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "dedup: sqlite exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, ids: make(map[string]struct{})}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS alerted (
	id         TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS alert_history (
	id          TEXT PRIMARY KEY,
	record_id   TEXT NOT NULL,
	category    TEXT NOT NULL,
	distance_m  REAL NOT NULL,
	agency      TEXT,
	headline    TEXT,
	notified_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alert_history_notified_at ON alert_history(notified_at);
`

// Migrate creates the schema if missing.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "dedup: sqlite migrate")
}

// Load reads all alerted IDs into memory. Query failures degrade to an
// empty set with a warning, per the fail-open dedup contract.
func (s *SQLiteStore) Load(ctx context.Context) error {
	if err := s.Migrate(ctx); err != nil {
		zap.L().Warn("dedup: sqlite migrate failed, starting with empty set", zap.Error(err))
		return nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM alerted`)
	if err != nil {
		zap.L().Warn("dedup: sqlite load failed, starting with empty set", zap.Error(err))
		return nil
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			zap.L().Warn("dedup: sqlite scan failed, starting with empty set", zap.Error(err))
			s.ids = make(map[string]struct{})
			return nil
		}
		s.ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		zap.L().Warn("dedup: sqlite iterate failed, keeping partial set", zap.Error(err))
	}
	return nil
}

func (s *SQLiteStore) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *SQLiteStore) Add(id string) {
	if _, ok := s.ids[id]; ok {
		return
	}
	s.ids[id] = struct{}{}
	s.pending = append(s.pending, id)
}

func (s *SQLiteStore) Len() int {
	return len(s.ids)
}

// Persist writes IDs added since the last Persist in one transaction.
func (s *SQLiteStore) Persist(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "dedup: sqlite begin")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, id := range s.pending {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO alerted (id, created_at) VALUES (?, ?)`,
			id, now,
		); err != nil {
			return eris.Wrapf(err, "dedup: sqlite insert %s", id)
		}
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "dedup: sqlite commit")
	}
	s.pending = nil
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Reset deletes all dedup state. History rows are kept for the audit
// trail.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM alerted`); err != nil {
		return eris.Wrap(err, "dedup: sqlite reset")
	}
	s.ids = make(map[string]struct{})
	s.pending = nil
	return nil
}

// AppendHistory records one sent notification immediately.
func (s *SQLiteStore) AppendHistory(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alert_history (id, record_id, category, distance_m, agency, headline, notified_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), e.RecordID, e.Category, e.DistanceMeters, e.Agency, e.Headline, e.NotifiedAt.UTC(),
	)
	return eris.Wrap(err, "dedup: sqlite append history")
}

// ListHistory returns the most recent entries, newest first.
func (s *SQLiteStore) ListHistory(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_id, category, distance_m, agency, headline, notified_at
		 FROM alert_history ORDER BY notified_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "dedup: sqlite list history")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var agency, headline sql.NullString
		if err := rows.Scan(&e.RecordID, &e.Category, &e.DistanceMeters, &agency, &headline, &e.NotifiedAt); err != nil {
			return nil, eris.Wrap(err, "dedup: sqlite scan history")
		}
		e.Agency = agency.String
		e.Headline = headline.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "dedup: sqlite iterate history")
	}
	return entries, nil
}
