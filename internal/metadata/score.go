package metadata

import (
	"strings"
	"unicode"
)

// Threshold is the minimum combined score a candidate needs to be accepted.
const Threshold = 70

const (
	titleExact    = 60
	titlePartial  = 35
	artistExact   = 40
	artistPartial = 20
)

// Normalize lower-cases s and drops whitespace and punctuation.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Score rates how well a candidate matches the requested title and artist,
// out of 100.
func Score(c Candidate, title, artist string) int {
	return partScore(c.Title, title, titleExact, titlePartial) +
		partScore(c.Artist, artist, artistExact, artistPartial)
}

func partScore(got, want string, exact, partial int) int {
	if strings.TrimSpace(got) == "" || strings.TrimSpace(want) == "" {
		return 0
	}

	got, want = Normalize(got), Normalize(want)
	if got == want {
		return exact
	}
	// An empty side would be contained in anything.
	if got == "" || want == "" {
		return 0
	}
	if strings.Contains(got, want) || strings.Contains(want, got) {
		return partial
	}
	return 0
}

// Best returns the highest scoring candidate, the first one on ties. ok is
// false when no candidate reaches Threshold.
func Best(candidates []Candidate, title, artist string) (best Candidate, score int, ok bool) {
	score = -1
	for _, c := range candidates {
		if s := Score(c, title, artist); s > score {
			best, score = c, s
		}
	}
	return best, score, score >= Threshold
}
