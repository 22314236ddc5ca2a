package ai

import (
	"math/rand/v2"
	"strings"
	"sync"

	"cipherparty/internal/game"
)

// FallbackThinking is shown whenever the placeholder turn stands in for the AI.
var FallbackThinking = [4]string{
	"My reasoning engine did not answer in time.",
	"I will fall back to the word list.",
	"I am picking the word that shares the most letters with the latest hint.",
	"Here is my quick guess.",
}

// Fallback builds placeholder AI turns from the word catalogue so a round
// never stalls on the AI.
type Fallback struct {
	mu        sync.Mutex
	catalogue []string
	rng       *rand.Rand
}

// NewFallback returns a Fallback over catalogue. A nil rng is seeded randomly.
func NewFallback(catalogue []string, rng *rand.Rand) *Fallback {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Fallback{catalogue: catalogue, rng: rng}
}

// Move picks a word not yet guessed this round, preferring those sharing the
// most letters with the latest hint.
func (f *Fallback) Move(history game.History) game.AIMove {
	f.mu.Lock()
	defer f.mu.Unlock()

	guessed := map[string]bool{}
	for _, g := range history.Guesses() {
		guessed[g] = true
	}
	var hint string
	if hints := history.Hints(); len(hints) > 0 {
		hint = strings.ToLower(hints[len(hints)-1])
	}

	best, bestScore := []string(nil), -1
	for _, w := range f.catalogue {
		if guessed[w] {
			continue
		}
		score := sharedLetters(w, hint)
		switch {
		case score > bestScore:
			best, bestScore = []string{w}, score
		case score == bestScore:
			best = append(best, w)
		}
	}

	move := game.AIMove{Thinking: FallbackThinking}
	switch {
	case len(best) > 0:
		move.Guess = best[f.rng.IntN(len(best))]
	case len(f.catalogue) > 0:
		move.Guess = f.catalogue[f.rng.IntN(len(f.catalogue))]
	default:
		move.Guess = "pass"
	}
	return move
}

func sharedLetters(word, hint string) int {
	n := 0
	seen := map[rune]bool{}
	for _, c := range word {
		if seen[c] {
			continue
		}
		seen[c] = true
		if strings.ContainsRune(hint, c) {
			n++
		}
	}
	return n
}
