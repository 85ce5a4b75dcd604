package engine

import (
	"time"
	"unicode/utf8"
)

// Candidate ranking weights occurrences over confidence: repeated sightings
// are stronger evidence of a stable reading than a single confident one.
const (
	occurrenceWeight = 0.6
	confidenceWeight = 0.4

	longCandidateLength = 5
	longCandidateBonus  = 1.2

	// Time-pressure bonuses compound once both checkpoints are crossed:
	// past 3000ms a qualifying candidate receives 1.3 and then 1.5.
	midSessionAfter  = 2000 * time.Millisecond
	midSessionBonus  = 1.3
	lateSessionAfter = 3000 * time.Millisecond
	lateSessionBonus = 1.5

	quickWinConfidence = 0.9
	quickWinMinLength  = 3
	quickWinScore      = 1.0
)

// selection is the candidate chosen by one evaluation pass.
type selection struct {
	text     string
	score    float64
	quickWin bool
}

// evaluate ranks all candidates that meet the current thresholds and
// returns the top scorer, or a quick-win candidate when none qualify.
// Ties keep the earliest-seen candidate: candidates arrive in insertion
// order and only a strictly greater score replaces the current leader.
func evaluate(candidates []Candidate, confThreshold float64, occThreshold int, elapsed time.Duration) *selection {
	if len(candidates) == 0 {
		return nil
	}

	var best *selection
	for _, c := range candidates {
		if c.Occurrences < occThreshold || c.AvgConfidence < confThreshold {
			continue
		}

		score := (float64(c.Occurrences)/float64(occThreshold))*occurrenceWeight +
			(c.AvgConfidence/confThreshold)*confidenceWeight
		if utf8.RuneCountInString(c.Text) > longCandidateLength {
			score *= longCandidateBonus
		}
		if elapsed > midSessionAfter {
			score *= midSessionBonus
		}
		if elapsed > lateSessionAfter {
			score *= lateSessionBonus
		}

		if best == nil || score > best.score {
			best = &selection{text: c.Text, score: score}
		}
	}
	if best != nil {
		return best
	}

	// Quick win: a single very confident reading commits immediately even
	// before the occurrence threshold is met.
	for _, c := range candidates {
		if c.AvgConfidence > quickWinConfidence && utf8.RuneCountInString(c.Text) >= quickWinMinLength {
			return &selection{text: c.Text, score: quickWinScore, quickWin: true}
		}
	}
	return nil
}
