package game

import (
	"fmt"
	"strings"
	"time"

	"cipherparty/internal/guess"
)

// WordSource draws the secret word for a round.
type WordSource interface {
	Select() string
}

// AIMove is a validated answer from the AI collaborator.
type AIMove struct {
	Thinking [4]string
	Guess    string
	// Note is an optional strategy note carried into later rounds.
	Note string
}

// Outcome describes what a transition did.
type Outcome struct {
	// Turn is the entry appended to the history, nil when nothing was appended.
	Turn Turn
	// Guess is the normalized guess that was checked, if any.
	Guess   string
	Matched bool
	// Round is set when the transition decided a round.
	Round    *RoundResult
	GameOver bool
	// Next is whose turn it is afterwards.
	Next Actor
}

// Engine applies moves to a State. It holds no per-game data; callers
// serialize access to each State.
type Engine struct {
	words       WordSource
	maxDistance int
}

// NewEngine returns an Engine drawing words from words and matching guesses
// within maxDistance edits.
func NewEngine(words WordSource, maxDistance int) *Engine {
	return &Engine{words: words, maxDistance: maxDistance}
}

// NewGame starts round 1 with the given roles.
func (e *Engine) NewGame(roles RoleAssignment, now time.Time) (*State, error) {
	if !roles.Valid() {
		return nil, fmt.Errorf("%w: need two distinct players", ErrNoRole)
	}
	s := &State{
		Status:    StatusActive,
		Score:     InitialScore,
		Round:     1,
		Word:      e.drawWord(),
		Turn:      ActorEncoder,
		Roles:     roles,
		StartedAt: now,
	}
	s.Timer.Start(now)
	return s, nil
}

// SubmitHint records the encoder's hint and hands the turn to the AI.
func (e *Engine) SubmitHint(s *State, playerID, text string, now time.Time) (Outcome, error) {
	if err := e.authorize(s, playerID, RoleEncoder, now); err != nil {
		return Outcome{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Outcome{}, ErrEmptyInput
	}

	hint := EncoderHint{Sequence: s.nextSeq(), Content: text}
	s.History = append(s.History, hint)
	s.Turn = ActorAI
	s.Timer.Pause(now)
	return Outcome{Turn: hint, Next: s.Turn}, nil
}

// ApplyAITurn records the AI's move and checks its guess.
func (e *Engine) ApplyAITurn(s *State, move AIMove, now time.Time) (Outcome, error) {
	if err := activeCheck(s); err != nil {
		return Outcome{}, err
	}
	if s.Turn != ActorAI {
		return Outcome{}, ErrNotAITurn
	}
	g := guess.Normalize(move.Guess)
	if g == "" {
		return Outcome{}, fmt.Errorf("%w: empty guess", ErrInvalidAIResult)
	}
	for i, line := range move.Thinking {
		if strings.TrimSpace(line) == "" {
			return Outcome{}, fmt.Errorf("%w: thinking line %d is empty", ErrInvalidAIResult, i+1)
		}
	}

	turn := AITurn{Sequence: s.nextSeq(), Thinking: move.Thinking, Guess: g}
	s.History = append(s.History, turn)
	s.addNote(strings.TrimSpace(move.Note))

	out := Outcome{Turn: turn, Guess: g}
	if guess.Matches(g, s.Word, e.maxDistance) {
		out.Matched = true
		e.decide(s, WinnerAI, ReasonAIGuessed, now, &out)
		return out, nil
	}
	s.Turn = ActorDecoder
	s.Timer.Resume(now)
	out.Next = s.Turn
	return out, nil
}

// SubmitGuess checks the decoder's guess. A wrong guess is recorded and the
// AI guesses again; a right one ends the round in the players' favour.
func (e *Engine) SubmitGuess(s *State, playerID, text string, now time.Time) (Outcome, error) {
	if err := e.authorize(s, playerID, RoleDecoder, now); err != nil {
		return Outcome{}, err
	}
	g := guess.Normalize(text)
	if g == "" {
		return Outcome{}, ErrEmptyInput
	}

	out := Outcome{Guess: g}
	if guess.Matches(g, s.Word, e.maxDistance) {
		out.Matched = true
		e.decide(s, WinnerPlayers, ReasonDecoderGuessed, now, &out)
		return out, nil
	}
	turn := DecoderGuess{Sequence: s.nextSeq(), Guess: g}
	s.History = append(s.History, turn)
	s.Turn = ActorAI
	s.Timer.Pause(now)
	out.Turn = turn
	out.Next = s.Turn
	return out, nil
}

// HandleExpiration scores the round for the AI and clears the timer. It does
// not advance the round; see Expire.
func (e *Engine) HandleExpiration(s *State, now time.Time) RoundResult {
	result := score(s, WinnerAI, ReasonTimeout)
	s.Timer.Clear()
	if terminal(s.Score) {
		end(s, now)
	}
	return result
}

// Expire applies HandleExpiration and advances the round when the timer of
// an active game has run out. It reports false when nothing happened.
func (e *Engine) Expire(s *State, now time.Time) (Outcome, bool) {
	if !s.Active() || !s.Timer.IsExpired(now) {
		return Outcome{}, false
	}
	result := e.HandleExpiration(s, now)
	out := Outcome{Round: &result, GameOver: s.Status == StatusEnded}
	if !out.GameOver {
		e.AdvanceRound(s, now)
		out.Next = s.Turn
	}
	return out, true
}

// AdvanceRound moves to the next round: swapped roles, a new word, an empty
// history and a fresh timer.
func (e *Engine) AdvanceRound(s *State, now time.Time) {
	s.Round++
	s.History = nil
	s.Seq = 0
	s.Roles = s.Roles.Swap()
	s.Word = e.drawWord()
	s.Turn = ActorEncoder
	s.Timer.Start(now)
}

func (e *Engine) decide(s *State, winner Winner, reason EndReason, now time.Time, out *Outcome) {
	result := score(s, winner, reason)
	out.Round = &result
	if terminal(s.Score) {
		s.Timer.Clear()
		end(s, now)
		out.GameOver = true
		return
	}
	e.AdvanceRound(s, now)
	out.Next = s.Turn
}

// authorize checks that playerID holds want and that it is want's turn.
func (e *Engine) authorize(s *State, playerID string, want Role, now time.Time) error {
	if err := activeCheck(s); err != nil {
		return err
	}
	role := s.Roles.RoleOf(playerID)
	if role == RoleNone {
		return ErrNoRole
	}
	if role != want {
		return fmt.Errorf("%w: %s cannot act as %s", ErrWrongRole, role, want)
	}
	if s.Turn != actorFor(role) {
		return fmt.Errorf("%w: waiting for %s", ErrNotYourTurn, s.Turn)
	}
	if s.Timer.IsExpired(now) {
		return ErrRoundExpired
	}
	return nil
}

func (e *Engine) drawWord() string {
	return guess.Normalize(e.words.Select())
}

func activeCheck(s *State) error {
	if s == nil {
		return ErrGameNotActive
	}
	switch s.Status {
	case StatusActive:
		return nil
	case StatusEnded:
		return ErrGameEnded
	}
	return ErrGameNotActive
}

func score(s *State, winner Winner, reason EndReason) RoundResult {
	switch winner {
	case WinnerAI:
		s.Score = max(s.Score-1, MinScore)
	case WinnerPlayers:
		s.Score = min(s.Score+1, MaxScore)
	}
	result := RoundResult{Round: s.Round, Word: s.Word, Winner: winner, Reason: reason, Score: s.Score}
	s.Rounds = append(s.Rounds, result)
	return result
}

func terminal(score int) bool {
	return score <= MinScore || score >= MaxScore
}

func end(s *State, now time.Time) {
	s.Status = StatusEnded
	s.EndedAt = now
	if s.Score <= MinScore {
		s.Winner = WinnerAI
	} else {
		s.Winner = WinnerPlayers
	}
}
