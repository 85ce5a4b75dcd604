package engine

import "time"

// ThresholdPhase is the state of the adaptive threshold controller.
type ThresholdPhase int

const (
	// PhaseStrict is the initial state with strict acceptance thresholds.
	PhaseStrict ThresholdPhase = iota
	// PhaseSensitive relaxes thresholds and activates the sensitivity boost.
	PhaseSensitive
	// PhaseIlluminated additionally activates the illumination boost.
	PhaseIlluminated
	// PhaseEmergencyDue marks that the emergency fallback should act. It
	// does not change thresholds.
	PhaseEmergencyDue
)

func (p ThresholdPhase) String() string {
	switch p {
	case PhaseStrict:
		return "strict"
	case PhaseSensitive:
		return "sensitive"
	case PhaseIlluminated:
		return "illuminated"
	case PhaseEmergencyDue:
		return "emergency-due"
	default:
		return "unknown"
	}
}

const (
	strictConfidenceThreshold  = 0.75
	strictOccurrenceThreshold  = 3
	relaxedConfidenceThreshold = 0.65
	relaxedOccurrenceThreshold = 2

	sensitivityAfter  = 1500 * time.Millisecond
	illuminationAfter = 2500 * time.Millisecond
	emergencyAfter    = 4000 * time.Millisecond
)

// ThresholdState is a snapshot of the controller for diagnostics.
type ThresholdState struct {
	Phase               string  `json:"phase"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	OccurrenceThreshold int     `json:"occurrence_threshold"`
	SensitivityBoost    bool    `json:"sensitivity_boost"`
	IlluminationBoost   bool    `json:"illumination_boost"`
}

// thresholdController relaxes acceptance thresholds at fixed elapsed-time
// checkpoints. Transitions are one-directional and time-triggered only;
// within a session thresholds only move toward laxer values. Not safe
// for concurrent use; the Engine serializes access.
type thresholdController struct {
	phase               ThresholdPhase
	confidenceThreshold float64
	occurrenceThreshold int
	sensitivityBoost    bool
	illuminationBoost   bool

	// illuminationFired latches so the illumination boost is activated at
	// most once per session.
	illuminationFired bool

	onTransition func(from, to ThresholdPhase)
}

func newThresholdController(onTransition func(from, to ThresholdPhase)) *thresholdController {
	return &thresholdController{
		phase:               PhaseStrict,
		confidenceThreshold: strictConfidenceThreshold,
		occurrenceThreshold: strictOccurrenceThreshold,
		onTransition:        onTransition,
	}
}

// advance moves the controller forward according to elapsed session time.
// Calls after a transition has already fired are no-ops, so the one-shot
// timers may fire in any order or repeatedly without harm.
func (tc *thresholdController) advance(elapsed time.Duration) {
	if tc.phase == PhaseStrict && elapsed > sensitivityAfter {
		tc.confidenceThreshold = relaxedConfidenceThreshold
		tc.occurrenceThreshold = relaxedOccurrenceThreshold
		tc.sensitivityBoost = true
		tc.transition(PhaseSensitive)
	}
	if tc.phase == PhaseSensitive && elapsed > illuminationAfter && !tc.illuminationFired {
		tc.illuminationBoost = true
		tc.illuminationFired = true
		tc.transition(PhaseIlluminated)
	}
	if tc.phase == PhaseIlluminated && elapsed > emergencyAfter {
		tc.transition(PhaseEmergencyDue)
	}
}

func (tc *thresholdController) transition(to ThresholdPhase) {
	from := tc.phase
	tc.phase = to
	if tc.onTransition != nil {
		tc.onTransition(from, to)
	}
}

func (tc *thresholdController) flags() BoostFlags {
	return BoostFlags{
		Sensitivity:  tc.sensitivityBoost,
		Illumination: tc.illuminationBoost,
	}
}

func (tc *thresholdController) state() ThresholdState {
	return ThresholdState{
		Phase:               tc.phase.String(),
		ConfidenceThreshold: tc.confidenceThreshold,
		OccurrenceThreshold: tc.occurrenceThreshold,
		SensitivityBoost:    tc.sensitivityBoost,
		IlluminationBoost:   tc.illuminationBoost,
	}
}
