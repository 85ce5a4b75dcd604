// Package store persists scanning sessions and their committed decisions.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/scanlock/internal/config"
	"github.com/sells-group/scanlock/internal/model"
)

// DecisionFilter specifies criteria for listing decisions.
type DecisionFilter struct {
	Source model.DecisionSource `json:"source,omitempty"`
	Since  time.Time            `json:"since,omitempty"`
	Limit  int                  `json:"limit,omitempty"`
	Offset int                  `json:"offset,omitempty"`
}

// Store defines the persistence interface shared by the SQLite and
// Postgres backends.
type Store interface {
	// Sessions
	SaveSession(ctx context.Context, sess model.SessionRecord) error
	GetSession(ctx context.Context, sessionID string) (*model.SessionRecord, error)
	ListSessions(ctx context.Context, since time.Time) ([]model.SessionRecord, error)

	// Decisions
	SaveDecision(ctx context.Context, dec model.Decision) error
	GetDecision(ctx context.Context, decisionID string) (*model.Decision, error)
	ListDecisions(ctx context.Context, filter DecisionFilter) ([]model.Decision, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// New opens the backend named by the config.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.Path)
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, eris.New("store: postgres driver requires database_url")
		}
		return NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
