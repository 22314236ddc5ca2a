package game

import (
	"slices"
	"time"
)

const (
	InitialScore = 5
	MinScore     = 0
	MaxScore     = 10

	// MaxNotes caps the AI's carried-over strategy notes.
	MaxNotes = 10
)

// EndReason says how a round was decided.
type EndReason string

const (
	ReasonAIGuessed      EndReason = "ai_guessed"
	ReasonDecoderGuessed EndReason = "decoder_guessed"
	ReasonTimeout        EndReason = "timeout"
)

// RoundResult records a finished round.
type RoundResult struct {
	Round  int       `json:"round"`
	Word   string    `json:"word"`
	Winner Winner    `json:"winner"`
	Reason EndReason `json:"reason"`
	Score  int       `json:"score"`
}

// State is the whole game for one room.
type State struct {
	Status  Status         `json:"status"`
	Score   int            `json:"score"`
	Round   int            `json:"round"`
	Word    string         `json:"word"`
	Turn    Actor          `json:"turn"`
	Roles   RoleAssignment `json:"roles"`
	History History        `json:"history"`
	// Seq is the last turn sequence number issued in this round.
	Seq       int           `json:"seq"`
	Timer     RoundTimer    `json:"timer"`
	Notes     []string      `json:"notes,omitempty"`
	Rounds    []RoundResult `json:"rounds,omitempty"`
	Winner    Winner        `json:"winner,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
	EndedAt   time.Time     `json:"endedAt,omitzero"`
}

// Active reports whether turns are being accepted.
func (s *State) Active() bool {
	return s != nil && s.Status == StatusActive
}

// RoleOf returns playerID's role this round.
func (s *State) RoleOf(playerID string) Role {
	if s == nil {
		return RoleNone
	}
	return s.Roles.RoleOf(playerID)
}

// Snapshot captures what a player needs to detect that the game moved on.
func (s *State) Snapshot() Snapshot {
	return Snapshot{Round: s.Round, Word: s.Word}
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.History = slices.Clone(s.History)
	c.Notes = slices.Clone(s.Notes)
	c.Rounds = slices.Clone(s.Rounds)
	if s.Timer.ExpiresAt != nil {
		exp := *s.Timer.ExpiresAt
		c.Timer.ExpiresAt = &exp
	}
	if s.Timer.Paused != nil {
		left := *s.Timer.Paused
		c.Timer.Paused = &left
	}
	return &c
}

func (s *State) nextSeq() int {
	s.Seq++
	return s.Seq
}

func (s *State) addNote(note string) {
	if note == "" {
		return
	}
	s.Notes = append(s.Notes, note)
	if len(s.Notes) > MaxNotes {
		s.Notes = slices.Clone(s.Notes[len(s.Notes)-MaxNotes:])
	}
}

// Ticket identifies the AI move a State is waiting for.
type Ticket struct {
	Round int `json:"round"`
	Seq   int `json:"seq"`
}

// Ticket returns the identity of the pending AI move.
func (s *State) Ticket() Ticket {
	return Ticket{Round: s.Round, Seq: s.Seq}
}

// CheckTicket fails with ErrStaleAITurn unless s is still waiting on the AI
// move identified by t.
func (s *State) CheckTicket(t Ticket) error {
	if !s.Active() || s.Turn != ActorAI || s.Ticket() != t {
		return ErrStaleAITurn
	}
	return nil
}
