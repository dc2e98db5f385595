package pattern

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// phoneticBonus is added to the Jaro-Winkler score when the compared strings
// share a Double Metaphone code, so phonetically identical ASR errors
// ("whether" for "weather") clear the thresholds.
const phoneticBonus = 0.08

// similarity scores how well candidate matches value: Jaro-Winkler on the
// lower-cased strings, boosted when the Double Metaphone codes overlap.
// The result is clamped to 1.
func similarity(candidate, value string) float64 {
	a := strings.ToLower(strings.TrimSpace(candidate))
	b := strings.ToLower(strings.TrimSpace(value))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	score := matchr.JaroWinkler(a, b, false)

	// Multi-word values also get a space-stripped comparison, so "new york"
	// still aligns with a transcript token run "newyork".
	if strings.ContainsRune(a, ' ') || strings.ContainsRune(b, ' ') {
		if s := matchr.JaroWinkler(stripSpaces(a), stripSpaces(b), false); s > score {
			score = s
		}
	}

	if phoneticOverlap(a, b) {
		score += phoneticBonus
	}
	if score > 1 {
		score = 1
	}
	return score
}

// bestMatch returns the highest similarity between keyword and any token or
// adjacent token pair of the utterance.
func bestMatch(keyword string, tokens []string) float64 {
	var best float64
	for i, t := range tokens {
		if s := similarity(t, keyword); s > best {
			best = s
		}
		if strings.ContainsRune(keyword, ' ') && i+1 < len(tokens) {
			if s := similarity(t+" "+tokens[i+1], keyword); s > best {
				best = s
			}
		}
	}
	return best
}

// phoneticOverlap reports whether any word of a shares a Double Metaphone
// code with any word of b.
func phoneticOverlap(a, b string) bool {
	codesA := metaphoneCodes(a)
	if len(codesA) == 0 {
		return false
	}
	for _, w := range strings.Fields(b) {
		p, s := matchr.DoubleMetaphone(w)
		if p != "" && codesA[p] {
			return true
		}
		if s != "" && codesA[s] {
			return true
		}
	}
	return false
}

// metaphoneCodes returns the union of Double Metaphone codes for each word of
// the phrase. Empty codes are excluded.
func metaphoneCodes(phrase string) map[string]bool {
	codes := make(map[string]bool, 4)
	for _, w := range strings.Fields(phrase) {
		p, s := matchr.DoubleMetaphone(w)
		if p != "" {
			codes[p] = true
		}
		if s != "" {
			codes[s] = true
		}
	}
	return codes
}

func stripSpaces(s string) string {
	return strings.ReplaceAll(s, " ", "")
}
