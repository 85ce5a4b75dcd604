package engine

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// minCandidateLength is the shortest normalized text accepted as a candidate.
// Single characters are almost always OCR noise.
const minCandidateLength = 2

// glyphConfusions maps symbols the recognizer routinely emits in place of
// letters to the letter they stand for. Applied before the strip pass so
// a misread letter is recovered instead of dropped.
var glyphConfusions = map[rune]rune{
	'|': 'L',
}

// Normalize canonicalizes raw OCR text into a comparable candidate key:
// NFKC folding, glyph-confusion recovery, everything that is neither
// alphanumeric nor whitespace stripped, whitespace runs collapsed to a
// single space, trimmed, and upper-cased. It is pure, total, and
// idempotent.
func Normalize(raw string) string {
	folded := norm.NFKC.String(raw)

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		if sub, ok := glyphConfusions[r]; ok {
			r = sub
		}
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}
	return b.String()
}
