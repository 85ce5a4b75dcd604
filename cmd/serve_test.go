package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/scanlock/internal/config"
	"github.com/sells-group/scanlock/internal/model"
	"github.com/sells-group/scanlock/internal/ocr"
	"github.com/sells-group/scanlock/internal/store"
)

const testReplayScript = `
frames:
  a.png:
    - text: "PARCEL 42"
      confidences: [0.85, 0.9]
  b.png:
    - text: "PARCEL 42"
      confidences: [0.8, 0.88]
  c.png:
    - text: "PARCEL 42"
      confidences: [0.9, 0.92]
`

// newTestEnv builds an env backed by a replay OCR provider and a
// throwaway SQLite store, plus a frame directory matching the script.
func newTestEnv(t *testing.T) (*env, string) {
	t.Helper()

	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "replay.yaml")
	require.NoError(t, os.WriteFile(scriptPath, []byte(testReplayScript), 0o644))

	framesDir := filepath.Join(dir, "frames")
	require.NoError(t, os.Mkdir(framesDir, 0o755))
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(framesDir, name), []byte("x"), 0o644))
	}

	provider, err := ocr.NewReplay(scriptPath)
	require.NoError(t, err)

	st, err := store.NewSQLite(filepath.Join(dir, "scanlock.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	cfg = &config.Config{
		Engine:  config.EngineConfig{EvaluateIntervalMS: 20, StopGraceMS: 20},
		Capture: config.CaptureConfig{FramesPerSecond: 200, Loop: true},
	}

	return &env{Provider: provider, Store: st}, framesDir
}

func TestServe_Health(t *testing.T) {
	env, _ := newTestEnv(t)
	router := newRouter(context.Background(), env)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServe_Burst(t *testing.T) {
	env, framesDir := newTestEnv(t)
	router := newRouter(context.Background(), env)

	body := `{"frames_dir":` + jsonQuote(framesDir) + `,"captures":3}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/burst", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var dec model.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dec))
	assert.Equal(t, "PARCEL 42", dec.Text)
	assert.Equal(t, model.SourceBurst, dec.Source)

	// The decision must have been persisted.
	stored, err := env.Store.GetDecision(context.Background(), dec.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "PARCEL 42", stored.Text)
}

func TestServe_Burst_BadRequests(t *testing.T) {
	env, _ := newTestEnv(t)
	router := newRouter(context.Background(), env)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/burst", strings.NewReader("not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/burst", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/burst",
		strings.NewReader(`{"frames_dir":"/nonexistent"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServe_Scan_Accepted(t *testing.T) {
	env, framesDir := newTestEnv(t)
	router := newRouter(context.Background(), env)

	body := `{"frames_dir":` + jsonQuote(framesDir) + `,"timeout_ms":500}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/scan", strings.NewReader(body)))

	require.Equal(t, http.StatusAccepted, rec.Code)

	// The session runs asynchronously; the decision shows up in the
	// store shortly after.
	require.Eventually(t, func() bool {
		decisions, err := env.Store.ListDecisions(context.Background(), store.DecisionFilter{})
		return err == nil && len(decisions) == 1
	}, 3*time.Second, 20*time.Millisecond)

	decisions, err := env.Store.ListDecisions(context.Background(), store.DecisionFilter{})
	require.NoError(t, err)
	assert.Equal(t, "PARCEL 42", decisions[0].Text)
	assert.Equal(t, model.SourceEvaluation, decisions[0].Source)
}

func TestServe_Scan_BadRequest(t *testing.T) {
	env, _ := newTestEnv(t)
	router := newRouter(context.Background(), env)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/scan", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServe_ListDecisions(t *testing.T) {
	env, _ := newTestEnv(t)
	router := newRouter(context.Background(), env)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/decisions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	dec := model.Decision{
		ID:        "dec-1",
		SessionID: "sess-1",
		Text:      "CRATE",
		Score:     0.7,
		Elapsed:   4 * time.Second,
		Source:    model.SourceEmergency,
		DecidedAt: time.Now().UTC(),
	}
	require.NoError(t, env.Store.SaveDecision(context.Background(), dec))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/decisions?source=emergency", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []model.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "CRATE", got[0].Text)
}

func TestServe_Metrics(t *testing.T) {
	env, _ := newTestEnv(t)
	router := newRouter(context.Background(), env)

	dec := model.Decision{
		ID:        "dec-1",
		SessionID: "sess-1",
		Text:      "PARCEL 42",
		Score:     0.9,
		Elapsed:   time.Second,
		Source:    model.SourceEvaluation,
		DecidedAt: time.Now().UTC(),
	}
	require.NoError(t, env.Store.SaveDecision(context.Background(), dec))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.EqualValues(t, 1, snap["decisions_total"])
	assert.EqualValues(t, 1, snap["by_evaluation"])
}

func TestServe_GetDecision_NotFound(t *testing.T) {
	env, _ := newTestEnv(t)
	router := newRouter(context.Background(), env)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/decisions/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// jsonQuote quotes a string for inline request bodies.
func jsonQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
