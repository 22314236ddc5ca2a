// Package guess decides whether a guess names the secret word.
package guess

import (
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
)

// DefaultMaxDistance is the edit distance tolerated when no setting is given.
const DefaultMaxDistance = 2

// Normalize lower-cases s and trims surrounding whitespace.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Distance returns the Levenshtein distance between the normalized inputs.
func Distance(a, b string) int {
	return levenshtein.ComputeDistance(Normalize(a), Normalize(b))
}

// Matches reports whether guess is within maxDistance edits of secret.
// An empty guess never matches.
func Matches(guess, secret string, maxDistance int) bool {
	g, s := Normalize(guess), Normalize(secret)
	if g == "" || s == "" {
		return false
	}
	if maxDistance < 0 {
		maxDistance = 0
	}
	return levenshtein.ComputeDistance(g, s) <= maxDistance
}

// ParseMaxDistance reads a deployment setting. Empty, non-numeric and
// negative values fall back to DefaultMaxDistance; "0" means exact match.
func ParseMaxDistance(setting string) int {
	setting = strings.TrimSpace(setting)
	if setting == "" {
		return DefaultMaxDistance
	}
	n, err := strconv.Atoi(setting)
	if err != nil || n < 0 {
		return DefaultMaxDistance
	}
	return n
}

// Matcher binds a tolerance so callers don't carry it around.
type Matcher struct {
	MaxDistance int
}

// NewMatcher returns a Matcher with the given tolerance.
func NewMatcher(maxDistance int) Matcher {
	return Matcher{MaxDistance: maxDistance}
}

func (m Matcher) Matches(guess, secret string) bool {
	return Matches(guess, secret, m.MaxDistance)
}
