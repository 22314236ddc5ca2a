package orchestrator

import (
	"cipherparty/internal/game"
	"cipherparty/internal/protocol"
	"cipherparty/internal/session"
)

// eachPlayerLocked sends every player the message build returns for them.
func (o *Orchestrator) eachPlayerLocked(r *session.Room, build func(playerID string) []byte) {
	for _, id := range r.PlayerIDsLocked() {
		r.SendLocked(id, build(id))
	}
}

func (o *Orchestrator) sendOthersLocked(r *session.Room, playerID string, msg []byte) {
	for _, id := range r.PlayerIDsLocked() {
		if id != playerID {
			r.SendLocked(id, msg)
		}
	}
}

// emitTurnLocked announces a hint or a missed guess.
func (o *Orchestrator) emitTurnLocked(r *session.Room, out game.Outcome) {
	remaining := r.Game.Timer.Remaining(o.now())
	o.eachPlayerLocked(r, func(id string) []byte {
		return protocol.MustEncode(protocol.EventTurn, protocol.TurnPayload{
			Turn:      protocol.ViewTurn(out.Turn, r.Game.RoleOf(id)),
			Next:      out.Next,
			Remaining: remaining,
		})
	})
}

// emitAITurnLocked announces the AI's move. roles are the assignment the move
// was made under, since a winning guess has already swapped them.
func (o *Orchestrator) emitAITurnLocked(r *session.Room, out game.Outcome, roles game.RoleAssignment, fallback bool) {
	remaining := r.Game.Timer.Remaining(o.now())
	o.eachPlayerLocked(r, func(id string) []byte {
		return protocol.MustEncode(protocol.EventAITurn, protocol.AITurnPayload{
			Turn:      protocol.ViewTurn(out.Turn, roles.RoleOf(id)),
			Fallback:  fallback,
			Next:      out.Next,
			Remaining: remaining,
		})
	})
	if out.Round != nil {
		o.emitRoundEndLocked(r, out)
	}
}

// emitRoundEndLocked announces a decided round and, when it was the last,
// the end of the game. Ready flags are cleared so a new game needs both
// players to ready up again.
func (o *Orchestrator) emitRoundEndLocked(r *session.Room, out game.Outcome) {
	s := r.Game
	now := o.now()
	o.eachPlayerLocked(r, func(id string) []byte {
		payload := protocol.RoundEndedPayload{Result: *out.Round}
		if !out.GameOver {
			payload.Game = protocol.ViewGame(s, id, now)
		}
		return protocol.MustEncode(protocol.EventRoundEnded, payload)
	})
	if !out.GameOver {
		return
	}
	r.BroadcastLocked(protocol.MustEncode(protocol.EventGameEnded, protocol.GameEndedPayload{
		Winner: s.Winner,
		Score:  s.Score,
		Rounds: s.Rounds,
	}))
	r.ResetReadyLocked()
	o.log.Info().Str("room", r.ID).Str("winner", string(s.Winner)).Int("rounds", len(s.Rounds)).Msg("game ended")
}

func (o *Orchestrator) stateMessageLocked(r *session.Room, playerID string) []byte {
	return protocol.MustEncode(protocol.EventState, protocol.StatePayload{
		RoomID:  r.ID,
		Players: protocol.Players(r.PlayersLocked()),
		Game:    protocol.ViewGame(r.Game, playerID, o.now()),
	})
}

func (o *Orchestrator) broadcastStateLocked(r *session.Room) {
	o.eachPlayerLocked(r, func(id string) []byte {
		return o.stateMessageLocked(r, id)
	})
}
