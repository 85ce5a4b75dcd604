package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/scanlock/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it, which keeps the Postgres backend unit-testable without a server.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"save_session": `INSERT INTO sessions (id, started_at, ended_at, observations, decided)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			ended_at = excluded.ended_at,
			observations = excluded.observations,
			decided = excluded.decided`,
	"get_session": `SELECT id, started_at, ended_at, observations, decided FROM sessions WHERE id = $1`,
	"save_decision": `INSERT INTO decisions (id, session_id, text, score, elapsed_ms, source, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"get_decision": `SELECT id, session_id, text, score, elapsed_ms, source, decided_at FROM decisions WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	started_at   TIMESTAMPTZ NOT NULL,
	ended_at     TIMESTAMPTZ NOT NULL,
	observations INTEGER NOT NULL DEFAULT 0,
	decided      BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS decisions (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	session_id TEXT NOT NULL,
	text       TEXT NOT NULL,
	score      DOUBLE PRECISION NOT NULL,
	elapsed_ms BIGINT NOT NULL,
	source     TEXT NOT NULL,
	decided_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_decisions_session_id ON decisions(session_id);
CREATE INDEX IF NOT EXISTS idx_decisions_source ON decisions(source);
CREATE INDEX IF NOT EXISTS idx_decisions_decided_at ON decisions(decided_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveSession(ctx context.Context, sess model.SessionRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, started_at, ended_at, observations, decided)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
			ended_at = excluded.ended_at,
			observations = excluded.observations,
			decided = excluded.decided`,
		sess.ID, sess.StartedAt.UTC(), sess.EndedAt.UTC(), sess.Observations, sess.Decided,
	)
	return eris.Wrapf(err, "postgres: save session %s", sess.ID)
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*model.SessionRecord, error) {
	var sess model.SessionRecord
	err := s.pool.QueryRow(ctx,
		`SELECT id, started_at, ended_at, observations, decided FROM sessions WHERE id = $1`,
		sessionID,
	).Scan(&sess.ID, &sess.StartedAt, &sess.EndedAt, &sess.Observations, &sess.Decided)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get session %s", sessionID)
	}
	return &sess, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, since time.Time) ([]model.SessionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, started_at, ended_at, observations, decided FROM sessions
		 WHERE started_at >= $1 ORDER BY started_at DESC`,
		since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	var sessions []model.SessionRecord
	for rows.Next() {
		var sess model.SessionRecord
		if err := rows.Scan(&sess.ID, &sess.StartedAt, &sess.EndedAt, &sess.Observations, &sess.Decided); err != nil {
			return nil, eris.Wrap(err, "postgres: scan session")
		}
		sessions = append(sessions, sess)
	}
	return sessions, eris.Wrap(rows.Err(), "postgres: list sessions iterate")
}

func (s *PostgresStore) SaveDecision(ctx context.Context, dec model.Decision) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO decisions (id, session_id, text, score, elapsed_ms, source, decided_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		dec.ID, dec.SessionID, dec.Text, dec.Score, dec.Elapsed.Milliseconds(),
		string(dec.Source), dec.DecidedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: save decision %s", dec.ID)
}

func (s *PostgresStore) GetDecision(ctx context.Context, decisionID string) (*model.Decision, error) {
	dec, err := scanDecision(s.pool.QueryRow(ctx,
		`SELECT id, session_id, text, score, elapsed_ms, source, decided_at
		 FROM decisions WHERE id = $1`,
		decisionID,
	).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get decision %s", decisionID)
	}
	return dec, nil
}

func (s *PostgresStore) ListDecisions(ctx context.Context, filter DecisionFilter) ([]model.Decision, error) {
	query := `SELECT id, session_id, text, score, elapsed_ms, source, decided_at
		 FROM decisions WHERE 1=1`
	var args []any

	if filter.Source != "" {
		args = append(args, string(filter.Source))
		query += ` AND source = $` + strconv.Itoa(len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since.UTC())
		query += ` AND decided_at >= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY decided_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list decisions")
	}
	defer rows.Close()

	var decisions []model.Decision
	for rows.Next() {
		dec, err := scanDecision(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan decision")
		}
		decisions = append(decisions, *dec)
	}
	return decisions, eris.Wrap(rows.Err(), "postgres: list decisions iterate")
}
