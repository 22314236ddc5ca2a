package game

import "fmt"

// Snapshot is what a player last saw: enough to tell whether the round
// moved on while they were away.
type Snapshot struct {
	Round int    `json:"round"`
	Word  string `json:"word"`
}

// RejoinReason explains a refused or degraded rejoin.
type RejoinReason string

const (
	RejoinOK            RejoinReason = ""
	ReasonNoGame        RejoinReason = "no_game"
	ReasonGameEnded     RejoinReason = "game_ended"
	ReasonRoleNotFound  RejoinReason = "role_not_found"
	ReasonRoundAdvanced RejoinReason = "round_advanced"
	ReasonWordChanged   RejoinReason = "word_changed"
)

// CanRejoin reports whether playerID may resume the game in s.
func CanRejoin(s *State, playerID string) (bool, RejoinReason) {
	switch {
	case s == nil || s.Status == StatusWaiting:
		return false, ReasonNoGame
	case s.Status == StatusEnded:
		return false, ReasonGameEnded
	case !s.Roles.Has(playerID):
		return false, ReasonRoleNotFound
	}
	return true, RejoinOK
}

// Restore is the answer to a rejoin attempt. State is always the live game
// (a copy), never the player's stale view.
type Restore struct {
	Allowed bool
	Reason  RejoinReason
	Message string
	State   *State
}

// RestoreForPlayer compares a player's saved snapshot with the live game.
// The rejoin is refused when the game can't be rejoined at all, or when the
// round or word changed since the snapshot was taken.
func RestoreForPlayer(current *State, saved *Snapshot, playerID string) Restore {
	r := Restore{State: current.Clone()}
	ok, reason := CanRejoin(current, playerID)
	if !ok {
		r.Reason = reason
		r.Message = reasonMessage(reason, current, saved)
		return r
	}
	if saved != nil {
		switch {
		case saved.Round != current.Round:
			r.Reason = ReasonRoundAdvanced
		case saved.Word != current.Word:
			r.Reason = ReasonWordChanged
		}
		if r.Reason != RejoinOK {
			r.Message = reasonMessage(r.Reason, current, saved)
			return r
		}
	}
	r.Allowed = true
	return r
}

func reasonMessage(reason RejoinReason, current *State, saved *Snapshot) string {
	switch reason {
	case ReasonNoGame:
		return "there is no game in progress"
	case ReasonGameEnded:
		return "the game has ended"
	case ReasonRoleNotFound:
		return "you no longer hold a role in this game"
	case ReasonRoundAdvanced:
		return fmt.Sprintf("the game moved on from round %d to round %d while you were away", saved.Round, current.Round)
	case ReasonWordChanged:
		return "the secret word changed while you were away"
	}
	return ""
}
