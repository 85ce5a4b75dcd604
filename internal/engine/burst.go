package engine

import (
	"unicode/utf8"

	"github.com/sells-group/scanlock/internal/model"
)

// burstMinBlockConfidence is the per-block scorer cutoff for burst voting.
const burstMinBlockConfidence = 0.6

// DefaultBurstCaptures is the recommended number of independent captures
// for a burst vote.
const DefaultBurstCaptures = 3

// BurstVote is the non-streaming decision path: given independent
// observation batches from discrete captures, it returns the most
// frequent qualifying normalized text across all batches. Ties keep the
// first-seen text; ok is false when no block qualifies. It reads no
// session state and can be called while a streaming session is active.
func BurstVote(batches [][]model.Block) (text string, ok bool) {
	counts := make(map[string]int)
	var order []string

	for _, batch := range batches {
		for _, block := range batch {
			if ScoreBlock(block, BoostFlags{}) < burstMinBlockConfidence {
				continue
			}
			normalized := Normalize(block.Text)
			if utf8.RuneCountInString(normalized) < minCandidateLength {
				continue
			}
			if _, seen := counts[normalized]; !seen {
				order = append(order, normalized)
			}
			counts[normalized]++
		}
	}

	bestCount := 0
	for _, t := range order {
		if counts[t] > bestCount {
			text = t
			bestCount = counts[t]
		}
	}
	return text, bestCount > 0
}
