package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/scanlock/internal/model"
)

func conf(v float64) *float64 { return &v }

func blockOf(text string, confidences ...*float64) model.Block {
	b := model.Block{Text: text}
	for _, c := range confidences {
		b.Elements = append(b.Elements, model.Element{Confidence: c})
	}
	return b
}

func TestScoreBlock(t *testing.T) {
	tests := []struct {
		name  string
		block model.Block
		flags BoostFlags
		want  float64
	}{
		{
			name:  "no elements rejected",
			block: model.Block{Text: "HELLO"},
			want:  0,
		},
		{
			name:  "short text no boost",
			block: blockOf("AB", conf(0.5), conf(0.7)),
			want:  0.6,
		},
		{
			name:  "medium text boost",
			block: blockOf("WORD", conf(0.8)),
			want:  0.8 * 1.15,
		},
		{
			name:  "long text both boosts compose",
			block: blockOf("LONGWORD", conf(0.6)),
			want:  0.6 * 1.15 * 1.10,
		},
		{
			name:  "absent confidence counts as zero",
			block: blockOf("AB", conf(0.8), nil),
			want:  0.4,
		},
		{
			name:  "sensitivity boost",
			block: blockOf("AB", conf(0.6)),
			flags: BoostFlags{Sensitivity: true},
			want:  0.6 * 1.10,
		},
		{
			name:  "both session boosts",
			block: blockOf("AB", conf(0.6)),
			flags: BoostFlags{Sensitivity: true, Illumination: true},
			want:  0.6 * 1.10 * 1.05,
		},
		{
			name:  "clamped to one",
			block: blockOf("VERYLONGTEXT", conf(0.95), conf(0.99)),
			flags: BoostFlags{Sensitivity: true, Illumination: true},
			want:  1.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ScoreBlock(tt.block, tt.flags), 1e-9)
		})
	}
}
