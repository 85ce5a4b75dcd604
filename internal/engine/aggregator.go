package engine

import "unicode/utf8"

// Candidate is a snapshot view of one tracked candidate.
type Candidate struct {
	Text          string  `json:"text"`
	Occurrences   int     `json:"occurrences"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// candidateStats accumulates observations for a single normalized text.
// The occurrence count is always len(confidences).
type candidateStats struct {
	confidences []float64
}

func (cs *candidateStats) average() float64 {
	if len(cs.confidences) == 0 {
		return 0
	}
	var sum float64
	for _, c := range cs.confidences {
		sum += c
	}
	return sum / float64(len(cs.confidences))
}

// aggregator accumulates normalized candidates over one session. It is
// not safe for concurrent use; the Engine serializes all access under
// its session mutex.
type aggregator struct {
	stats map[string]*candidateStats
	order []string // candidate insertion order
}

func newAggregator() *aggregator {
	return &aggregator{stats: make(map[string]*candidateStats)}
}

// record appends one observed confidence for the given normalized text,
// creating the candidate on first sight. Empty or too-short text is
// rejected and reported as false.
func (a *aggregator) record(normalized string, confidence float64) bool {
	if utf8.RuneCountInString(normalized) < minCandidateLength {
		return false
	}
	cs, ok := a.stats[normalized]
	if !ok {
		cs = &candidateStats{}
		a.stats[normalized] = cs
		a.order = append(a.order, normalized)
	}
	cs.confidences = append(cs.confidences, confidence)
	return true
}

func (a *aggregator) occurrences(normalized string) int {
	cs, ok := a.stats[normalized]
	if !ok {
		return 0
	}
	return len(cs.confidences)
}

func (a *aggregator) averageConfidence(normalized string) float64 {
	cs, ok := a.stats[normalized]
	if !ok {
		return 0
	}
	return cs.average()
}

// candidates returns all tracked candidates in insertion order.
func (a *aggregator) candidates() []Candidate {
	out := make([]Candidate, 0, len(a.order))
	for _, text := range a.order {
		cs := a.stats[text]
		out = append(out, Candidate{
			Text:          text,
			Occurrences:   len(cs.confidences),
			AvgConfidence: cs.average(),
		})
	}
	return out
}

// bestLengthDivisor normalizes candidate length into a weight so that a
// ten-character reading at full confidence scores 1.0.
const bestLengthDivisor = 10.0

// bestCandidate tracks the single highest-scoring candidate seen so far,
// independent of threshold state. Its score never decreases within a
// session.
type bestCandidate struct {
	text  string
	score float64
}

// observe considers one accepted observation for the emergency slot.
func (b *bestCandidate) observe(normalized string, confidence float64) {
	score := confidence * (float64(utf8.RuneCountInString(normalized)) / bestLengthDivisor)
	if score > b.score {
		b.text = normalized
		b.score = score
	}
}
