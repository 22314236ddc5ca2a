// Package ai defines the contract with the AI adversary and the fallback used
// when it can't answer in time.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cipherparty/internal/game"
)

const (
	MinGuessLength = 3
	MaxGuessLength = 12
)

var (
	ErrUnavailable   = errors.New("ai analyzer unavailable")
	ErrInvalidResult = errors.New("ai result failed validation")
)

// Request is everything the AI may see: the round's conversation and its own
// notes from earlier rounds. The secret word is never included.
type Request struct {
	ID      string       `json:"id"`
	RoomID  string       `json:"roomId"`
	Round   int          `json:"round"`
	History game.History `json:"history"`
	Notes   []string     `json:"notes"`
}

// Result is the raw answer of an Analyzer.
type Result struct {
	Thinking []string `json:"thinking"`
	Guess    string   `json:"guess"`
	Note     string   `json:"note,omitempty"`
}

// Analyzer produces the AI's turn.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (Result, error)
}

// Validate checks a Result and converts it into a game move: exactly four
// non-empty thinking lines and a single lower-case word of 3-12 letters.
func Validate(r Result) (game.AIMove, error) {
	var move game.AIMove
	if len(r.Thinking) != len(move.Thinking) {
		return move, fmt.Errorf("%w: got %d thinking lines, want %d", ErrInvalidResult, len(r.Thinking), len(move.Thinking))
	}
	for i, line := range r.Thinking {
		line = strings.TrimSpace(line)
		if line == "" {
			return move, fmt.Errorf("%w: thinking line %d is empty", ErrInvalidResult, i+1)
		}
		move.Thinking[i] = line
	}

	g := strings.ToLower(strings.TrimSpace(r.Guess))
	if n := len(g); n < MinGuessLength || n > MaxGuessLength {
		return move, fmt.Errorf("%w: guess %q must be %d-%d letters", ErrInvalidResult, g, MinGuessLength, MaxGuessLength)
	}
	for _, c := range g {
		if c < 'a' || c > 'z' {
			return move, fmt.Errorf("%w: guess %q must be a single word", ErrInvalidResult, g)
		}
	}
	move.Guess = g
	move.Note = strings.TrimSpace(r.Note)
	return move, nil
}

// Unavailable always fails, leaving every AI turn to the fallback.
type Unavailable struct{}

func (Unavailable) Analyze(context.Context, Request) (Result, error) {
	return Result{}, ErrUnavailable
}
