package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/scanlock/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_SaveSession(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs("sess-1", pgxmock.AnyArg(), pgxmock.AnyArg(), 7, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	now := time.Now().UTC()
	err := s.SaveSession(context.Background(), model.SessionRecord{
		ID:           "sess-1",
		StartedAt:    now,
		EndedAt:      now.Add(time.Second),
		Observations: 7,
		Decided:      true,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSession_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, started_at, ended_at, observations, decided FROM sessions WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetSession(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveDecision(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO decisions`).
		WithArgs("dec-1", "sess-1", "PARCEL 42", 0.87, int64(1250), "evaluation", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveDecision(context.Background(), model.Decision{
		ID:        "dec-1",
		SessionID: "sess-1",
		Text:      "PARCEL 42",
		Score:     0.87,
		Elapsed:   1250 * time.Millisecond,
		Source:    model.SourceEvaluation,
		DecidedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDecision(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	decidedAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "session_id", "text", "score", "elapsed_ms", "source", "decided_at"}).
		AddRow("dec-1", "sess-1", "PARCEL 42", 0.87, int64(1250), "emergency", decidedAt)

	mock.ExpectQuery(`SELECT id, session_id, text, score, elapsed_ms, source, decided_at`).
		WithArgs("dec-1").
		WillReturnRows(rows)

	got, err := s.GetDecision(context.Background(), "dec-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.SourceEmergency, got.Source)
	assert.Equal(t, 1250*time.Millisecond, got.Elapsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDecision_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, session_id, text, score, elapsed_ms, source, decided_at`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetDecision(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListDecisions_SourceFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	decidedAt := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "session_id", "text", "score", "elapsed_ms", "source", "decided_at"}).
		AddRow("dec-2", "sess-2", "CRATE", 0.71, int64(4100), "emergency", decidedAt)

	mock.ExpectQuery(`FROM decisions WHERE 1=1 AND source = \$1 ORDER BY decided_at DESC LIMIT \$2`).
		WithArgs("emergency", 100).
		WillReturnRows(rows)

	got, err := s.ListDecisions(context.Background(), DecisionFilter{Source: model.SourceEmergency})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "dec-2", got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS sessions`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
