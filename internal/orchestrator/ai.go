package orchestrator

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"

	"cipherparty/internal/ai"
	"cipherparty/internal/game"
	"cipherparty/internal/protocol"
	"cipherparty/internal/session"
)

// scheduleAILocked starts the AI's turn in the background. The call runs
// without the room lock; its result comes back through Manager.Update and
// is dropped if the game moved on meanwhile.
func (o *Orchestrator) scheduleAILocked(r *session.Room) {
	s := r.Game
	if !s.Active() || s.Turn != game.ActorAI {
		return
	}
	ticket := s.Ticket()
	if !r.BeginAILocked(ticket) {
		return
	}
	req := ai.Request{
		ID:      uuid.NewString(),
		RoomID:  r.ID,
		Round:   s.Round,
		History: slices.Clone(s.History),
		Notes:   slices.Clone(s.Notes),
	}
	r.BroadcastLocked(protocol.MustEncode(protocol.EventAIThinking, protocol.AIThinkingPayload{Round: ticket.Round, Seq: ticket.Seq}))

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runAI(r.ID, ticket, req)
	}()
}

func (o *Orchestrator) runAI(roomID string, ticket game.Ticket, req ai.Request) {
	log := o.log.With().Str("room", roomID).Str("request", req.ID).Int("round", ticket.Round).Logger()

	move, err := o.analyze(req)
	fallback := err != nil
	if fallback {
		log.Warn().Err(err).Msg("ai turn failed, using fallback")
		move = o.fallback.Move(req.History)
	}

	// Apply even after Close so the room is left consistent.
	err = o.rooms.Update(context.WithoutCancel(o.ctx), roomID, func(r *session.Room) error {
		r.EndAILocked(ticket)
		if err := r.Game.CheckTicket(ticket); err != nil {
			return err
		}
		roles := r.Game.Roles
		out, err := o.engine.ApplyAITurn(r.Game, move, o.now())
		if err != nil {
			return err
		}
		o.emitAITurnLocked(r, out, roles, fallback)
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, game.ErrStaleAITurn), errors.Is(err, session.ErrRoomNotFound):
		log.Debug().Err(err).Msg("discarding ai turn")
	default:
		log.Error().Err(err).Msg("apply ai turn")
	}
}

// analyze asks the analyzer for a move within the AI timeout.
func (o *Orchestrator) analyze(req ai.Request) (game.AIMove, error) {
	ctx, cancel := context.WithTimeout(o.ctx, o.aiTimeout)
	defer cancel()
	res, err := o.analyzer.Analyze(ctx, req)
	if err != nil {
		return game.AIMove{}, err
	}
	return ai.Validate(res)
}
