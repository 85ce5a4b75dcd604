package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/scanlock/internal/config"
	"github.com/sells-group/scanlock/internal/model"
	"github.com/sells-group/scanlock/internal/store"
)

func newSeededStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "monitoring.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedSession(t *testing.T, st store.Store, decided bool, observations int) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, st.SaveSession(context.Background(), model.SessionRecord{
		ID:           uuid.NewString(),
		StartedAt:    now.Add(-time.Minute),
		EndedAt:      now,
		Observations: observations,
		Decided:      decided,
	}))
}

func seedDecision(t *testing.T, st store.Store, source model.DecisionSource, score float64) {
	t.Helper()
	require.NoError(t, st.SaveDecision(context.Background(), model.Decision{
		ID:        uuid.NewString(),
		SessionID: uuid.NewString(),
		Text:      "PARCEL 42",
		Score:     score,
		Elapsed:   2 * time.Second,
		Source:    source,
		DecidedAt: time.Now().UTC(),
	}))
}

func TestCollector_Collect(t *testing.T) {
	st := newSeededStore(t)
	seedSession(t, st, true, 10)
	seedSession(t, st, true, 20)
	seedSession(t, st, false, 6)

	seedDecision(t, st, model.SourceEvaluation, 0.9)
	seedDecision(t, st, model.SourceEmergency, 0.5)

	snap, err := NewCollector(st).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 3, snap.SessionsTotal)
	assert.Equal(t, 2, snap.SessionsDecided)
	assert.InDelta(t, 1.0/3.0, snap.UndecidedRate, 1e-9)
	assert.InDelta(t, 12.0, snap.AvgObservations, 1e-9)

	assert.Equal(t, 2, snap.DecisionsTotal)
	assert.Equal(t, 1, snap.ByEvaluation)
	assert.Equal(t, 1, snap.ByEmergency)
	assert.Equal(t, 0, snap.ByBurst)
	assert.InDelta(t, 0.5, snap.EmergencyRate, 1e-9)
	assert.InDelta(t, 0.7, snap.AvgScore, 1e-9)
	assert.Equal(t, int64(2000), snap.AvgElapsedMS)
}

func TestCollector_Collect_Empty(t *testing.T) {
	st := newSeededStore(t)

	snap, err := NewCollector(st).Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Zero(t, snap.SessionsTotal)
	assert.Zero(t, snap.UndecidedRate)
	assert.Zero(t, snap.AvgScore)
}

func testMonitoringConfig() config.MonitoringConfig {
	return config.MonitoringConfig{
		EmergencyRateAlert: 0.5,
		UndecidedRateAlert: 0.5,
	}
}

func TestAlerter_Evaluate(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	// Healthy snapshot triggers nothing.
	alerts := a.Evaluate(&MetricsSnapshot{
		SessionsTotal:   10,
		SessionsDecided: 9,
		UndecidedRate:   0.1,
		DecisionsTotal:  9,
		ByEmergency:     1,
		EmergencyRate:   1.0 / 9.0,
		LookbackHours:   24,
	})
	assert.Empty(t, alerts)

	// Both rates breached.
	alerts = a.Evaluate(&MetricsSnapshot{
		SessionsTotal:   10,
		SessionsDecided: 3,
		UndecidedRate:   0.7,
		DecisionsTotal:  6,
		ByEmergency:     4,
		EmergencyRate:   4.0 / 6.0,
		LookbackHours:   24,
	})
	require.Len(t, alerts, 2)
	assert.Equal(t, AlertUndecidedRate, alerts[0].Type)
	assert.Equal(t, AlertEmergencyRate, alerts[1].Type)
	assert.Contains(t, alerts[0].Message, "70.0%")
}

func TestAlerter_Evaluate_TooFewSessions(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	alerts := a.Evaluate(&MetricsSnapshot{
		SessionsTotal: 2,
		UndecidedRate: 1.0,
	})
	assert.Empty(t, alerts)
}

func TestAlerter_SendAlerts(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var alert Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		assert.Equal(t, AlertUndecidedRate, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	sent := a.SendAlerts(context.Background(), []Alert{{
		Type:      AlertUndecidedRate,
		Severity:  "high",
		Message:   "too many undecided sessions",
		Timestamp: time.Now().UTC(),
	}})
	assert.Equal(t, 1, sent)
	assert.Equal(t, int32(1), received.Load())
}

func TestAlerter_SendAlerts_NoWebhook(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertEmergencyRate}})
	assert.Zero(t, sent)
}

func TestAlerter_SendAlerts_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertEmergencyRate}})
	assert.Zero(t, sent)
}

func TestChecker_Sweep_AlertsOnDegradedScanning(t *testing.T) {
	st := newSeededStore(t)
	for i := 0; i < 6; i++ {
		seedSession(t, st, false, 4)
	}

	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var alert Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		assert.Equal(t, AlertUndecidedRate, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = srv.URL
	cfg.LookbackWindowHours = 24

	checker := NewChecker(NewCollector(st), NewAlerter(cfg), cfg)
	checker.sweep(context.Background(), zap.NewNop())

	assert.Equal(t, int32(1), received.Load())
}

func TestChecker_Sweep_HealthyNoAlert(t *testing.T) {
	st := newSeededStore(t)
	for i := 0; i < 6; i++ {
		seedSession(t, st, true, 10)
	}
	seedDecision(t, st, model.SourceEvaluation, 0.9)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no alert expected for a healthy window")
	}))
	defer srv.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = srv.URL
	cfg.LookbackWindowHours = 24

	checker := NewChecker(NewCollector(st), NewAlerter(cfg), cfg)
	checker.sweep(context.Background(), zap.NewNop())
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	st := newSeededStore(t)
	cfg := testMonitoringConfig()
	cfg.CheckIntervalSecs = 1

	checker := NewChecker(NewCollector(st), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("checker did not stop on context cancel")
	}
}
