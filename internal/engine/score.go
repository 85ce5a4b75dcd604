package engine

import (
	"unicode/utf8"

	"github.com/sells-group/scanlock/internal/model"
)

// Length boosts reward longer raw readings, which are far less likely to
// be spurious than one- or two-character fragments.
const (
	mediumTextLength = 3
	mediumTextBoost  = 1.15
	longTextLength   = 6
	longTextBoost    = 1.10

	sensitivityBoost  = 1.10
	illuminationBoost = 1.05
)

// BoostFlags carries the session-state enhancements that feed back into
// block scoring once the threshold controller has relaxed.
type BoostFlags struct {
	Sensitivity  bool
	Illumination bool
}

// ScoreBlock converts the raw per-element confidences of one recognized
// block into a single adjusted confidence in [0,1]. Elements without a
// reported confidence count as 0. A block with no elements scores 0.
func ScoreBlock(block model.Block, flags BoostFlags) float64 {
	if len(block.Elements) == 0 {
		return 0
	}

	var sum float64
	for _, el := range block.Elements {
		if el.Confidence != nil {
			sum += *el.Confidence
		}
	}
	score := sum / float64(len(block.Elements))

	length := utf8.RuneCountInString(block.Text)
	if length > mediumTextLength {
		score *= mediumTextBoost
	}
	if length > longTextLength {
		score *= longTextBoost
	}

	if flags.Sensitivity {
		score *= sensitivityBoost
	}
	if flags.Illumination {
		score *= illuminationBoost
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
