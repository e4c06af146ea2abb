package dedup

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store and History on a pgx pool, for
// deployments that share dedup state between hosts.
type PostgresStore struct {
	pool    Pool
	ids     map[string]struct{}
	pending []string
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS alerted (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS alert_history (
	id          UUID PRIMARY KEY,
	record_id   TEXT NOT NULL,
	category    TEXT NOT NULL,
	distance_m  DOUBLE PRECISION NOT NULL,
	agency      TEXT,
	headline    TEXT,
	notified_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alert_history_notified_at ON alert_history(notified_at);
`

// NewPostgres connects a PostgresStore with pool sizing tuned for this
// tool's tiny write volume.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "dedup: postgres parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "dedup: postgres create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "dedup: postgres ping")
	}
	return NewPostgresWithPool(pool), nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool, ids: make(map[string]struct{})}
}

// Migrate creates the schema if missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "dedup: postgres migrate")
}

// Load reads all alerted IDs into memory, degrading to an empty set with
// a warning on failure.
func (s *PostgresStore) Load(ctx context.Context) error {
	if err := s.Migrate(ctx); err != nil {
		zap.L().Warn("dedup: postgres migrate failed, starting with empty set", zap.Error(err))
		return nil
	}

	rows, err := s.pool.Query(ctx, `SELECT id FROM alerted`)
	if err != nil {
		zap.L().Warn("dedup: postgres load failed, starting with empty set", zap.Error(err))
		return nil
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			zap.L().Warn("dedup: postgres scan failed, starting with empty set", zap.Error(err))
			s.ids = make(map[string]struct{})
			return nil
		}
		s.ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		zap.L().Warn("dedup: postgres iterate failed, keeping partial set", zap.Error(err))
	}
	return nil
}

func (s *PostgresStore) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *PostgresStore) Add(id string) {
	if _, ok := s.ids[id]; ok {
		return
	}
	s.ids[id] = struct{}{}
	s.pending = append(s.pending, id)
}

func (s *PostgresStore) Len() int {
	return len(s.ids)
}

// Persist writes IDs added since the last Persist.
func (s *PostgresStore) Persist(ctx context.Context) error {
	for _, id := range s.pending {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO alerted (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`,
			id,
		); err != nil {
			return eris.Wrapf(err, "dedup: postgres insert %s", id)
		}
	}
	s.pending = nil
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Reset deletes all dedup state, keeping history rows.
func (s *PostgresStore) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM alerted`); err != nil {
		return eris.Wrap(err, "dedup: postgres reset")
	}
	s.ids = make(map[string]struct{})
	s.pending = nil
	return nil
}

// AppendHistory records one sent notification immediately.
func (s *PostgresStore) AppendHistory(ctx context.Context, e Entry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO alert_history (id, record_id, category, distance_m, agency, headline, notified_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New(), e.RecordID, e.Category, e.DistanceMeters, e.Agency, e.Headline, e.NotifiedAt.UTC(),
	)
	return eris.Wrap(err, "dedup: postgres append history")
}

// ListHistory returns the most recent entries, newest first.
func (s *PostgresStore) ListHistory(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT record_id, category, distance_m, agency, headline, notified_at
		 FROM alert_history ORDER BY notified_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "dedup: postgres list history")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var agency, headline *string
		if err := rows.Scan(&e.RecordID, &e.Category, &e.DistanceMeters, &agency, &headline, &e.NotifiedAt); err != nil {
			return nil, eris.Wrap(err, "dedup: postgres scan history")
		}
		if agency != nil {
			e.Agency = *agency
		}
		if headline != nil {
			e.Headline = *headline
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "dedup: postgres iterate history")
	}
	return entries, nil
}
