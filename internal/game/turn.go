package game

import (
	"encoding/json"
	"fmt"
)

// Turn is one entry of a round's conversation. The concrete types are
// EncoderHint, AITurn and DecoderGuess.
type Turn interface {
	Seq() int
	Actor() Actor
	isTurn()
}

// EncoderHint is a clue sent by the encoder.
type EncoderHint struct {
	Sequence int    `json:"seq"`
	Content  string `json:"content"`
}

// AITurn is the adversary's reasoning and guess.
type AITurn struct {
	Sequence int       `json:"seq"`
	Thinking [4]string `json:"thinking"`
	Guess    string    `json:"guess"`
}

// DecoderGuess is a wrong guess by the decoder. Correct guesses end the
// round and are never recorded.
type DecoderGuess struct {
	Sequence int    `json:"seq"`
	Guess    string `json:"guess"`
}

func (t EncoderHint) Seq() int  { return t.Sequence }
func (t AITurn) Seq() int       { return t.Sequence }
func (t DecoderGuess) Seq() int { return t.Sequence }

func (EncoderHint) Actor() Actor  { return ActorEncoder }
func (AITurn) Actor() Actor       { return ActorAI }
func (DecoderGuess) Actor() Actor { return ActorDecoder }

func (EncoderHint) isTurn()  {}
func (AITurn) isTurn()       {}
func (DecoderGuess) isTurn() {}

// History is the ordered conversation of the current round.
type History []Turn

// Last returns the most recent turn, or nil.
func (h History) Last() Turn {
	if len(h) == 0 {
		return nil
	}
	return h[len(h)-1]
}

// Hints returns the encoder hints in order.
func (h History) Hints() []string {
	var out []string
	for _, t := range h {
		if hint, ok := t.(EncoderHint); ok {
			out = append(out, hint.Content)
		}
	}
	return out
}

// Guesses returns every guess made so far this round, AI and decoder alike.
func (h History) Guesses() []string {
	var out []string
	for _, t := range h {
		switch v := t.(type) {
		case AITurn:
			out = append(out, v.Guess)
		case DecoderGuess:
			out = append(out, v.Guess)
		}
	}
	return out
}

type turnEnvelope struct {
	Type     Actor      `json:"type"`
	Sequence int        `json:"seq"`
	Content  string     `json:"content,omitempty"`
	Thinking *[4]string `json:"thinking,omitempty"`
	Guess    string     `json:"guess,omitempty"`
}

// MarshalJSON writes the history as an array of tagged objects.
func (h History) MarshalJSON() ([]byte, error) {
	out := make([]turnEnvelope, 0, len(h))
	for _, t := range h {
		env := turnEnvelope{Type: t.Actor(), Sequence: t.Seq()}
		switch v := t.(type) {
		case EncoderHint:
			env.Content = v.Content
		case AITurn:
			thinking := v.Thinking
			env.Thinking = &thinking
			env.Guess = v.Guess
		case DecoderGuess:
			env.Guess = v.Guess
		}
		out = append(out, env)
	}
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON.
func (h *History) UnmarshalJSON(data []byte) error {
	var raw []turnEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(History, 0, len(raw))
	for _, env := range raw {
		switch env.Type {
		case ActorEncoder:
			out = append(out, EncoderHint{Sequence: env.Sequence, Content: env.Content})
		case ActorAI:
			t := AITurn{Sequence: env.Sequence, Guess: env.Guess}
			if env.Thinking != nil {
				t.Thinking = *env.Thinking
			}
			out = append(out, t)
		case ActorDecoder:
			out = append(out, DecoderGuess{Sequence: env.Sequence, Guess: env.Guess})
		default:
			return fmt.Errorf("unknown turn type %q", env.Type)
		}
	}
	*h = out
	return nil
}
