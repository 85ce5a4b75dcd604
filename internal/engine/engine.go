// Package engine implements the adaptive detection stabilization engine:
// it turns a stream of low-trust per-frame OCR observations into a single
// stabilized, high-confidence decision.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/scanlock/internal/model"
)

// ErrNotScanning is returned when observations arrive outside an active
// session. This indicates a caller lifecycle bug, not a transient condition.
var ErrNotScanning = eris.New("engine: no active scanning session")

const (
	defaultEvaluateInterval = 300 * time.Millisecond
	defaultStopGrace        = 300 * time.Millisecond

	// emergencyMinScore is the minimum best-candidate score required for
	// the emergency fallback to commit a decision.
	emergencyMinScore = 0.3
)

// Config controls engine behavior.
type Config struct {
	// EvaluateInterval is the periodic evaluator cadence. It should be
	// faster than the frame arrival rate so short-lived stable readings
	// are not missed. Default: 300ms.
	EvaluateInterval time.Duration

	// StopGrace is how long a session lingers after a decision commits,
	// discarding in-flight observations. Default: 300ms.
	StopGrace time.Duration

	// OnDecision is invoked exactly once per committed decision.
	OnDecision func(model.Decision)

	// OnStatus receives informational updates on threshold transitions
	// and evaluator activity. Purely observational. Must not call back
	// into the Engine.
	OnStatus func(msg string)
}

// Engine runs at most one scanning session at a time. Frame observations,
// the periodic evaluator, and the one-shot threshold timers all mutate
// session state under a single mutex, so evaluator reads always see a
// consistent snapshot. All exported methods are safe for concurrent use.
type Engine struct {
	cfg Config

	mu   sync.Mutex
	sess *session

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// session holds all state scoped to one scanning attempt. A fresh session
// is built on Start and discarded on Stop, so nothing leaks across
// attempts.
type session struct {
	id         string
	startedAt  time.Time
	agg        *aggregator
	thresholds *thresholdController
	best       bestCandidate

	observations int
	decided      bool
	stopping     bool

	timers []*time.Timer
	done   chan struct{}
}

// New creates an Engine with the given config.
func New(cfg Config) *Engine {
	if cfg.EvaluateInterval <= 0 {
		cfg.EvaluateInterval = defaultEvaluateInterval
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = defaultStopGrace
	}
	return &Engine{
		cfg:     cfg,
		nowFunc: time.Now,
	}
}

// Start begins a new scanning session and returns its id. Any session
// still active is discarded first, along with all of its accumulated
// state.
func (e *Engine) Start() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess != nil {
		e.stopLocked()
	}

	sess := &session{
		id:        uuid.New().String(),
		startedAt: e.nowFunc(),
		agg:       newAggregator(),
		best:      bestCandidate{},
		done:      make(chan struct{}),
	}
	sess.thresholds = newThresholdController(func(from, to ThresholdPhase) {
		e.status("thresholds: %s -> %s", from, to)
	})
	e.sess = sess

	// One-shot threshold relaxation triggers plus the emergency checkpoint,
	// all keyed to this session so stopping cancels them unambiguously.
	sess.timers = append(sess.timers,
		time.AfterFunc(sensitivityAfter, func() { e.advanceThresholds(sess) }),
		time.AfterFunc(illuminationAfter, func() { e.advanceThresholds(sess) }),
		time.AfterFunc(emergencyAfter, func() { e.emergencyDue(sess) }),
	)

	go e.runEvaluator(sess)

	e.status("session %s started", sess.id)
	return sess.id
}

// Stop ends the active session without a decision. Safe to call multiple
// times or when no session was ever started.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

// Active reports whether a session is currently accepting observations.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess != nil && !e.sess.decided && !e.sess.stopping
}

// Observe records one frame's recognized blocks into the active session.
// Observations arriving after a decision committed are discarded quietly;
// observations with no session at all fail fast with ErrNotScanning.
func (e *Engine) Observe(blocks []model.Block) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess := e.sess
	if sess == nil || sess.stopping {
		return ErrNotScanning
	}
	if sess.decided {
		return nil
	}

	flags := sess.thresholds.flags()
	for _, block := range blocks {
		if len(block.Elements) == 0 {
			continue
		}
		adjusted := ScoreBlock(block, flags)
		normalized := Normalize(block.Text)
		if !sess.agg.record(normalized, adjusted) {
			continue
		}
		sess.best.observe(normalized, adjusted)
		sess.observations++
	}
	return nil
}

// Snapshot reports the current session state for diagnostics. The second
// return is false when no session is active.
func (e *Engine) Snapshot() (Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess := e.sess
	if sess == nil {
		return Snapshot{}, false
	}
	return Snapshot{
		SessionID:    sess.id,
		Elapsed:      e.elapsedLocked(sess),
		Thresholds:   sess.thresholds.state(),
		Candidates:   sess.agg.candidates(),
		BestText:     sess.best.text,
		BestScore:    sess.best.score,
		Observations: sess.observations,
		Decided:      sess.decided,
	}, true
}

// Snapshot is a point-in-time view of the active session.
type Snapshot struct {
	SessionID    string         `json:"session_id"`
	Elapsed      time.Duration  `json:"elapsed"`
	Thresholds   ThresholdState `json:"thresholds"`
	Candidates   []Candidate    `json:"candidates"`
	BestText     string         `json:"best_text,omitempty"`
	BestScore    float64        `json:"best_score"`
	Observations int            `json:"observations"`
	Decided      bool           `json:"decided"`
}

func (e *Engine) runEvaluator(sess *session) {
	ticker := time.NewTicker(e.cfg.EvaluateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sess.done:
			return
		case <-ticker.C:
			e.evaluateTick(sess)
		}
	}
}

// evaluateTick runs one evaluation pass against the session's current
// snapshot and commits a decision when a candidate is selected.
func (e *Engine) evaluateTick(sess *session) {
	e.mu.Lock()
	if e.sess != sess || sess.decided || sess.stopping {
		e.mu.Unlock()
		return
	}

	sel := evaluate(
		sess.agg.candidates(),
		sess.thresholds.confidenceThreshold,
		sess.thresholds.occurrenceThreshold,
		e.elapsedLocked(sess),
	)
	if sel == nil {
		e.mu.Unlock()
		return
	}
	if sel.quickWin {
		e.status("quick win: %q at avg confidence above %.2f", sel.text, quickWinConfidence)
	}
	dec := e.commitLocked(sess, sel.text, sel.score, model.SourceEvaluation)
	e.mu.Unlock()

	e.notifyDecision(dec)
}

// advanceThresholds is the one-shot timer target for the relaxation
// checkpoints. Firing after a decision or stop is a no-op.
func (e *Engine) advanceThresholds(sess *session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess != sess || sess.decided || sess.stopping {
		return
	}
	sess.thresholds.advance(e.elapsedLocked(sess))
}

// emergencyDue fires at the emergency checkpoint: if the best candidate
// ever seen clears the minimum score, commit it as an emergency decision;
// otherwise the session keeps running and the caller decides when to stop.
func (e *Engine) emergencyDue(sess *session) {
	e.mu.Lock()
	if e.sess != sess || sess.decided || sess.stopping {
		e.mu.Unlock()
		return
	}

	elapsed := e.elapsedLocked(sess)
	sess.thresholds.advance(elapsed)

	if sess.best.score <= emergencyMinScore {
		best := sess.best
		e.mu.Unlock()
		e.status("emergency fallback declined: best score %.3f not above %.2f", best.score, emergencyMinScore)
		return
	}

	dec := e.commitLocked(sess, sess.best.text, sess.best.score, model.SourceEmergency)
	e.mu.Unlock()

	e.notifyDecision(dec)
}

// commitLocked records the session's single decision and schedules the
// session to stop after the grace period. Callers must hold e.mu and have
// checked sess.decided.
func (e *Engine) commitLocked(sess *session, text string, score float64, source model.DecisionSource) model.Decision {
	sess.decided = true
	for _, t := range sess.timers {
		t.Stop()
	}

	dec := model.Decision{
		ID:        uuid.New().String(),
		SessionID: sess.id,
		Text:      text,
		Score:     score,
		Elapsed:   e.elapsedLocked(sess),
		Source:    source,
		DecidedAt: e.nowFunc(),
	}

	time.AfterFunc(e.cfg.StopGrace, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.sess == sess {
			e.stopLocked()
		}
	})

	return dec
}

func (e *Engine) stopLocked() {
	sess := e.sess
	if sess == nil {
		return
	}
	sess.stopping = true
	for _, t := range sess.timers {
		t.Stop()
	}
	close(sess.done)
	e.sess = nil
	e.status("session %s stopped", sess.id)
}

func (e *Engine) elapsedLocked(sess *session) time.Duration {
	return e.nowFunc().Sub(sess.startedAt)
}

func (e *Engine) notifyDecision(dec model.Decision) {
	e.status("decision committed: %q score=%.3f source=%s", dec.Text, dec.Score, dec.Source)
	if e.cfg.OnDecision != nil {
		e.cfg.OnDecision(dec)
	}
}

func (e *Engine) status(format string, args ...any) {
	if e.cfg.OnStatus != nil {
		e.cfg.OnStatus(fmt.Sprintf(format, args...))
	}
}
