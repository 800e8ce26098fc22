// Package resolver matches free-text participant names onto a group roster.
package resolver

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DefaultThreshold is the minimum similarity a roster entry needs to match.
const DefaultThreshold = 0.45

// ErrNoMatchFound is returned when no roster entry is similar enough.
var ErrNoMatchFound = errors.New("no roster match found")

// Resolver picks the closest roster name for a candidate.
type Resolver struct {
	threshold float64
}

// New creates a resolver. A threshold outside (0, 1] falls back to DefaultThreshold.
func New(threshold float64) *Resolver {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Resolver{threshold: threshold}
}

// Threshold returns the minimum accepted similarity.
func (r *Resolver) Threshold() float64 {
	return r.threshold
}

// Resolve returns the roster entry closest to candidate by edit distance.
// Ties go to an entry containing the candidate as a substring, then to the
// earliest entry. The match is rejected when its similarity is below the
// threshold.
func (r *Resolver) Resolve(candidate string, roster []string) (string, error) {
	c := normalize(candidate)
	if c == "" {
		return "", fmt.Errorf("%w: empty name", ErrNoMatchFound)
	}

	best := -1
	bestDistance := 0
	bestContains := false
	for i, entry := range roster {
		e := normalize(entry)
		d := levenshtein.ComputeDistance(c, e)
		contains := e != "" && strings.Contains(e, c)

		switch {
		case best < 0, d < bestDistance:
		case d == bestDistance && contains && !bestContains:
		default:
			continue
		}
		best, bestDistance, bestContains = i, d, contains
	}

	if best < 0 {
		return "", fmt.Errorf("%w: %q (empty roster)", ErrNoMatchFound, candidate)
	}

	score := similarity(bestDistance, c, normalize(roster[best]))
	if score < r.threshold {
		return "", fmt.Errorf("%w: %q (best %q scored %.2f)", ErrNoMatchFound, candidate, roster[best], score)
	}
	return roster[best], nil
}

// Resolve matches candidate against roster with DefaultThreshold.
func Resolve(candidate string, roster []string) (string, error) {
	return New(DefaultThreshold).Resolve(candidate, roster)
}

// Score returns the normalized similarity of a and b in [0, 1].
func Score(a, b string) float64 {
	a, b = normalize(a), normalize(b)
	return similarity(levenshtein.ComputeDistance(a, b), a, b)
}

func similarity(distance int, a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(distance)/float64(longest)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
