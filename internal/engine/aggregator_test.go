package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_OccurrenceMatchesRecords(t *testing.T) {
	agg := newAggregator()

	for i := 0; i < 5; i++ {
		require.True(t, agg.record("HELLO", float64(i)/10))
		assert.Equal(t, i+1, agg.occurrences("HELLO"))
	}
}

func TestAggregator_RejectsShortText(t *testing.T) {
	agg := newAggregator()

	assert.False(t, agg.record("", 0.9))
	assert.False(t, agg.record("A", 0.9))
	assert.True(t, agg.record("AB", 0.9))
	assert.Len(t, agg.candidates(), 1)
}

func TestAggregator_AverageConfidence(t *testing.T) {
	agg := newAggregator()

	agg.record("HELLO", 0.6)
	agg.record("HELLO", 0.8)
	agg.record("HELLO", 1.0)

	assert.InDelta(t, 0.8, agg.averageConfidence("HELLO"), 1e-9)
	assert.Zero(t, agg.averageConfidence("UNSEEN"))
	assert.Zero(t, agg.occurrences("UNSEEN"))
}

func TestAggregator_InsertionOrderPreserved(t *testing.T) {
	agg := newAggregator()

	texts := []string{"CHARLIE", "ALPHA", "BRAVO"}
	for _, text := range texts {
		agg.record(text, 0.5)
	}
	// Re-recording must not change order.
	agg.record("ALPHA", 0.9)

	cands := agg.candidates()
	require.Len(t, cands, 3)
	for i, text := range texts {
		assert.Equal(t, text, cands[i].Text)
	}
	assert.Equal(t, 2, cands[1].Occurrences)
	assert.InDelta(t, 0.7, cands[1].AvgConfidence, 1e-9)
}

func TestBestCandidate_MonotoneNonDecreasing(t *testing.T) {
	best := bestCandidate{}

	observations := []struct {
		text string
		conf float64
	}{
		{"AB", 0.9},     // 0.9 * 0.2 = 0.18
		{"PARCEL", 0.8}, // 0.8 * 0.6 = 0.48
		{"HELLO", 0.9},  // 0.9 * 0.5 = 0.45, lower: keeps PARCEL
		{"WAREHOUSE", 0.7}, // 0.7 * 0.9 = 0.63
	}

	prev := 0.0
	for _, obs := range observations {
		best.observe(obs.text, obs.conf)
		require.GreaterOrEqual(t, best.score, prev,
			fmt.Sprintf("score decreased after observing %q", obs.text))
		prev = best.score
	}

	assert.Equal(t, "WAREHOUSE", best.text)
	assert.InDelta(t, 0.63, best.score, 1e-9)
}

func TestBestCandidate_ScoreWeightsLength(t *testing.T) {
	best := bestCandidate{}
	best.observe("PARCEL", 0.5)

	// confidence * len/10 for a six-character reading.
	assert.InDelta(t, 0.3, best.score, 1e-9)
	assert.Equal(t, "PARCEL", best.text)
}
