package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/scanlock/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	started_at   DATETIME NOT NULL,
	ended_at     DATETIME NOT NULL,
	observations INTEGER NOT NULL DEFAULT 0,
	decided      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS decisions (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	text       TEXT NOT NULL,
	score      REAL NOT NULL,
	elapsed_ms INTEGER NOT NULL,
	source     TEXT NOT NULL,
	decided_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_session_id ON decisions(session_id);
CREATE INDEX IF NOT EXISTS idx_decisions_source ON decisions(source);
CREATE INDEX IF NOT EXISTS idx_decisions_decided_at ON decisions(decided_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveSession(ctx context.Context, sess model.SessionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, ended_at, observations, decided)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			ended_at = excluded.ended_at,
			observations = excluded.observations,
			decided = excluded.decided`,
		sess.ID, sess.StartedAt.UTC(), sess.EndedAt.UTC(), sess.Observations, boolToInt(sess.Decided),
	)
	return eris.Wrapf(err, "sqlite: save session %s", sess.ID)
}

func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*model.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, ended_at, observations, decided FROM sessions WHERE id = ?`,
		sessionID,
	)

	var sess model.SessionRecord
	var decided int
	err := row.Scan(&sess.ID, &sess.StartedAt, &sess.EndedAt, &sess.Observations, &decided)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get session %s", sessionID)
	}
	sess.Decided = decided != 0
	return &sess, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, since time.Time) ([]model.SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, ended_at, observations, decided FROM sessions
		 WHERE started_at >= ? ORDER BY started_at DESC`,
		since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close()

	var sessions []model.SessionRecord
	for rows.Next() {
		var sess model.SessionRecord
		var decided int
		if err := rows.Scan(&sess.ID, &sess.StartedAt, &sess.EndedAt, &sess.Observations, &decided); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan session")
		}
		sess.Decided = decided != 0
		sessions = append(sessions, sess)
	}
	return sessions, eris.Wrap(rows.Err(), "sqlite: list sessions iterate")
}

func (s *SQLiteStore) SaveDecision(ctx context.Context, dec model.Decision) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions (id, session_id, text, score, elapsed_ms, source, decided_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		dec.ID, dec.SessionID, dec.Text, dec.Score, dec.Elapsed.Milliseconds(),
		string(dec.Source), dec.DecidedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save decision %s", dec.ID)
}

func (s *SQLiteStore) GetDecision(ctx context.Context, decisionID string) (*model.Decision, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, text, score, elapsed_ms, source, decided_at
		 FROM decisions WHERE id = ?`,
		decisionID,
	)
	dec, err := scanDecision(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get decision %s", decisionID)
	}
	return dec, nil
}

func (s *SQLiteStore) ListDecisions(ctx context.Context, filter DecisionFilter) ([]model.Decision, error) {
	query := `SELECT id, session_id, text, score, elapsed_ms, source, decided_at
		 FROM decisions WHERE 1=1`
	var args []any

	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, string(filter.Source))
	}
	if !filter.Since.IsZero() {
		query += ` AND decided_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY decided_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list decisions")
	}
	defer rows.Close()

	var decisions []model.Decision
	for rows.Next() {
		dec, err := scanDecision(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan decision")
		}
		decisions = append(decisions, *dec)
	}
	return decisions, eris.Wrap(rows.Err(), "sqlite: list decisions iterate")
}

func scanDecision(scan func(dest ...any) error) (*model.Decision, error) {
	var dec model.Decision
	var elapsedMS int64
	var source string
	if err := scan(&dec.ID, &dec.SessionID, &dec.Text, &dec.Score, &elapsedMS, &source, &dec.DecidedAt); err != nil {
		return nil, err
	}
	dec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	dec.Source = model.DecisionSource(source)
	return &dec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
