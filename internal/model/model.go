// Package model holds the shared types exchanged between the capture,
// OCR, engine, and store layers.
package model

import "time"

// Frame references a single captured image handed to the OCR provider.
type Frame struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	CapturedAt time.Time `json:"captured_at"`
}

// Element is a single recognized unit (typically a word) within a block.
// Confidence is in [0,1]; nil when the provider reports none.
type Element struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Block is one recognized text region from a single frame.
type Block struct {
	Text     string    `json:"text"`
	Elements []Element `json:"elements"`
}

// DecisionSource identifies which path produced a decision.
type DecisionSource string

const (
	// SourceEvaluation is a decision committed by the periodic evaluator.
	SourceEvaluation DecisionSource = "evaluation"
	// SourceEmergency is a decision committed by the emergency fallback.
	SourceEmergency DecisionSource = "emergency"
	// SourceBurst is a decision produced by the burst majority vote.
	SourceBurst DecisionSource = "burst"
)

// Decision is the single committed output of a scanning session.
type Decision struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Text      string         `json:"text"`
	Score     float64        `json:"score"`
	Elapsed   time.Duration  `json:"elapsed"`
	Source    DecisionSource `json:"source"`
	DecidedAt time.Time      `json:"decided_at"`
}

// SessionRecord summarizes one scanning session for persistence.
type SessionRecord struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	Observations int       `json:"observations"`
	Decided      bool      `json:"decided"`
}
