// Package words supplies secret words for rounds.
package words

import (
	"errors"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
)

// DefaultHistorySize is how many recent selections are excluded from the next draw.
const DefaultHistorySize = 3

// ErrEmptyCatalogue is returned when no usable word is available.
var ErrEmptyCatalogue = errors.New("word catalogue is empty")

// Supply hands out words from a fixed catalogue, avoiding recent picks.
// It is safe for concurrent use.
type Supply struct {
	mu          sync.Mutex
	catalogue   []string
	history     []string
	historySize int
	rng         *rand.Rand
}

// Option configures a Supply.
type Option func(*Supply)

// WithHistorySize overrides the exclusion window.
func WithHistorySize(n int) Option {
	return func(s *Supply) {
		if n >= 0 {
			s.historySize = n
		}
	}
}

// WithRand makes selection deterministic, for tests.
func WithRand(r *rand.Rand) Option {
	return func(s *Supply) { s.rng = r }
}

// NewSupply normalizes the catalogue (lower-case, trimmed, deduplicated) and
// fails if nothing usable remains.
func NewSupply(catalogue []string, opts ...Option) (*Supply, error) {
	words := Normalize(catalogue)
	if len(words) == 0 {
		return nil, ErrEmptyCatalogue
	}
	s := &Supply{
		catalogue:   words,
		historySize: DefaultHistorySize,
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Select returns a word not among the recent selections. When the exclusion
// leaves no candidate the history is cleared and the draw is retried once.
func (s *Supply) Select() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := s.candidatesLocked()
	if len(candidates) == 0 {
		s.history = s.history[:0]
		candidates = s.catalogue
	}
	word := candidates[s.rng.IntN(len(candidates))]
	s.remember(word)
	return word
}

// Catalogue returns a copy of the catalogue.
func (s *Supply) Catalogue() []string {
	return slices.Clone(s.catalogue)
}

// Contains reports whether word (any case) is in the catalogue.
func (s *Supply) Contains(word string) bool {
	_, found := slices.BinarySearch(s.catalogue, strings.ToLower(strings.TrimSpace(word)))
	return found
}

// History returns the recent selections, oldest first.
func (s *Supply) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

func (s *Supply) candidatesLocked() []string {
	if len(s.history) == 0 {
		return s.catalogue
	}
	out := make([]string, 0, len(s.catalogue))
	for _, w := range s.catalogue {
		if !slices.Contains(s.history, w) {
			out = append(out, w)
		}
	}
	return out
}

func (s *Supply) remember(word string) {
	if s.historySize == 0 {
		return
	}
	s.history = append(s.history, word)
	if len(s.history) > s.historySize {
		s.history = s.history[len(s.history)-s.historySize:]
	}
}

// Normalize lower-cases and trims every entry, dropping blanks and duplicates.
// The result is sorted.
func Normalize(in []string) []string {
	out := make([]string, 0, len(in))
	for _, w := range in {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		out = append(out, w)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
