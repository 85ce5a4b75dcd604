// Package monitoring watches decision history for signs the stabilizer
// is struggling: sessions ending undecided or falling through to the
// emergency path too often.
package monitoring

import (
	"context"
	"time"

	"github.com/sells-group/scanlock/internal/model"
	"github.com/sells-group/scanlock/internal/store"
)

// MetricsSnapshot holds a point-in-time view of scanning health.
type MetricsSnapshot struct {
	// Session metrics (within lookback window).
	SessionsTotal   int     `json:"sessions_total"`
	SessionsDecided int     `json:"sessions_decided"`
	UndecidedRate   float64 `json:"undecided_rate"`

	// Decision metrics (within lookback window).
	DecisionsTotal  int     `json:"decisions_total"`
	ByEvaluation    int     `json:"by_evaluation"`
	ByEmergency     int     `json:"by_emergency"`
	ByBurst         int     `json:"by_burst"`
	EmergencyRate   float64 `json:"emergency_rate"`
	AvgScore        float64 `json:"avg_score"`
	AvgElapsedMS    int64   `json:"avg_elapsed_ms"`
	AvgObservations float64 `json:"avg_observations"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the decision store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of scanning metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}
	since := snap.CollectedAt.Add(-time.Duration(lookbackHours) * time.Hour)

	sessions, err := c.store.ListSessions(ctx, since)
	if err != nil {
		return nil, err
	}
	snap.SessionsTotal = len(sessions)
	var observations int
	for _, sess := range sessions {
		if sess.Decided {
			snap.SessionsDecided++
		}
		observations += sess.Observations
	}
	if snap.SessionsTotal > 0 {
		snap.UndecidedRate = float64(snap.SessionsTotal-snap.SessionsDecided) / float64(snap.SessionsTotal)
		snap.AvgObservations = float64(observations) / float64(snap.SessionsTotal)
	}

	decisions, err := c.store.ListDecisions(ctx, store.DecisionFilter{Since: since, Limit: 10000})
	if err != nil {
		return nil, err
	}
	snap.DecisionsTotal = len(decisions)

	var scoreSum float64
	var elapsedSum time.Duration
	for _, dec := range decisions {
		switch dec.Source {
		case model.SourceEvaluation:
			snap.ByEvaluation++
		case model.SourceEmergency:
			snap.ByEmergency++
		case model.SourceBurst:
			snap.ByBurst++
		}
		scoreSum += dec.Score
		elapsedSum += dec.Elapsed
	}
	if snap.DecisionsTotal > 0 {
		snap.EmergencyRate = float64(snap.ByEmergency) / float64(snap.DecisionsTotal)
		snap.AvgScore = scoreSum / float64(snap.DecisionsTotal)
		snap.AvgElapsedMS = (elapsedSum / time.Duration(snap.DecisionsTotal)).Milliseconds()
	}

	return snap, nil
}
