// Package orchestrator turns player actions into game transitions and
// outbound events, and runs the AI's turns in the background.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cipherparty/internal/ai"
	"cipherparty/internal/game"
	"cipherparty/internal/protocol"
	"cipherparty/internal/session"
)

const DefaultAITimeout = 15 * time.Second

// errUnchanged aborts a room update that had nothing to do, so the room is
// neither touched nor persisted.
var errUnchanged = errors.New("unchanged")

// Orchestrator coordinates rooms, the game engine and the AI.
type Orchestrator struct {
	rooms     *session.Manager
	engine    *game.Engine
	analyzer  ai.Analyzer
	fallback  *ai.Fallback
	aiTimeout time.Duration
	now       func() time.Time
	log       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = l.With().Str("component", "orchestrator").Logger() }
}

// WithAITimeout bounds each AI call.
func WithAITimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.aiTimeout = d
		}
	}
}

// New creates an Orchestrator. fallback produces the AI's move whenever
// analyzer fails or times out.
func New(rooms *session.Manager, engine *game.Engine, analyzer ai.Analyzer, fallback *ai.Fallback, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		rooms:     rooms,
		engine:    engine,
		analyzer:  analyzer,
		fallback:  fallback,
		aiTimeout: DefaultAITimeout,
		now:       time.Now,
		log:       zerolog.Nop(),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Wait blocks until every outstanding AI call has been applied or discarded.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close cancels outstanding AI calls, which then resolve through the
// fallback, and waits for them.
func (o *Orchestrator) Close() {
	o.cancel()
	o.wg.Wait()
}

// Join seats a player and tells the room. It returns the player's id, which
// is newly issued when the command carries none.
func (o *Orchestrator) Join(ctx context.Context, roomID string, cmd protocol.Join, send chan []byte) (string, error) {
	if cmd.RoomID != "" && cmd.RoomID != roomID {
		return "", fmt.Errorf("%w: roomId does not match the room joined", protocol.ErrInvalidMessage)
	}
	playerID := cmd.PlayerID
	saved := cmd.LastSeen
	if playerID == "" {
		playerID = uuid.NewString()
	} else if saved == nil {
		snap, err := o.rooms.LoadSnapshot(ctx, roomID, playerID)
		if err != nil {
			o.log.Warn().Err(err).Str("room", roomID).Str("player", playerID).Msg("load snapshot")
		}
		saved = snap
	}

	res, err := o.rooms.Join(ctx, roomID, session.Player{ID: playerID, Name: cmd.PlayerName, Send: send})
	if err != nil {
		return "", err
	}
	o.log.Info().Str("room", roomID).Str("player", playerID).Bool("rejoined", res.Rejoined).Msg("player joined")

	err = o.rooms.View(roomID, func(r *session.Room) {
		now := o.now()
		players := protocol.Players(r.PlayersLocked())
		joined := protocol.JoinedPayload{
			RoomID:   roomID,
			PlayerID: playerID,
			Players:  players,
			Game:     protocol.ViewGame(r.Game, playerID, now),
		}
		if r.Game != nil {
			restore := game.RestoreForPlayer(r.Game, saved, playerID)
			joined.Rejoin = &protocol.Rejoin{Allowed: restore.Allowed, Reason: restore.Reason, Message: restore.Message}
		}
		r.SendLocked(playerID, protocol.MustEncode(protocol.EventJoined, joined))

		self, ok := r.PlayerLocked(playerID)
		if !ok {
			return
		}
		msg := protocol.MustEncode(protocol.EventPlayerJoined, protocol.PlayerJoinedPayload{
			Player:  protocol.Players([]session.Player{*self})[0],
			Players: players,
		})
		o.sendOthersLocked(r, playerID, msg)

		// A restored room may be waiting on an AI move nobody is computing.
		if r.Game.Active() && r.Game.Turn == game.ActorAI && !r.AIPendingLocked() {
			o.scheduleAILocked(r)
		}
	})
	return playerID, err
}

// SetReady sets a player's ready flag and starts a game once both players
// are ready.
func (o *Orchestrator) SetReady(ctx context.Context, roomID, playerID string, ready bool) error {
	return o.rooms.Update(ctx, roomID, func(r *session.Room) error {
		p, ok := r.PlayerLocked(playerID)
		if !ok {
			return session.ErrPlayerNotFound
		}
		prev := p.Ready
		p.Ready = ready

		var started *game.State
		if r.IsReadyLocked() && !r.Game.Active() {
			ids := r.PlayerIDsLocked()
			s, err := o.engine.NewGame(game.RoleAssignment{Encoder: ids[0], Decoder: ids[1]}, o.now())
			if err != nil {
				p.Ready = prev
				return err
			}
			started = s
		}

		r.BroadcastLocked(protocol.MustEncode(protocol.EventReadyChanged, protocol.ReadyChangedPayload{
			PlayerID: playerID,
			Ready:    ready,
			Players:  protocol.Players(r.PlayersLocked()),
		}))
		if started != nil {
			o.startGameLocked(r, started)
		}
		return nil
	})
}

func (o *Orchestrator) startGameLocked(r *session.Room, s *game.State) {
	r.Game = s
	r.BroadcastLocked(protocol.MustEncode(protocol.EventRoomReady, protocol.RoomReadyPayload{RoomID: r.ID}))
	now := o.now()
	o.eachPlayerLocked(r, func(id string) []byte {
		return protocol.MustEncode(protocol.EventGameStarted, protocol.GameStartedPayload{Game: protocol.ViewGame(s, id, now)})
	})
	o.log.Info().Str("room", r.ID).Str("encoder", s.Roles.Encoder).Str("decoder", s.Roles.Decoder).Msg("game started")
}

// SendHint applies the encoder's hint and hands the turn to the AI.
func (o *Orchestrator) SendHint(ctx context.Context, roomID, playerID, text string) error {
	if err := o.expireIfDue(ctx, roomID); err != nil {
		return err
	}
	return o.rooms.Update(ctx, roomID, func(r *session.Room) error {
		if r.AIPendingLocked() {
			return protocol.ErrAIBusy
		}
		out, err := o.engine.SubmitHint(r.Game, playerID, text, o.now())
		if err != nil {
			return err
		}
		o.emitTurnLocked(r, out)
		o.scheduleAILocked(r)
		return nil
	})
}

// SubmitGuess checks the decoder's guess. A miss hands the turn back to the
// AI; a hit ends the round.
func (o *Orchestrator) SubmitGuess(ctx context.Context, roomID, playerID, text string) error {
	if err := o.expireIfDue(ctx, roomID); err != nil {
		return err
	}
	return o.rooms.Update(ctx, roomID, func(r *session.Room) error {
		if r.AIPendingLocked() {
			return protocol.ErrAIBusy
		}
		out, err := o.engine.SubmitGuess(r.Game, playerID, text, o.now())
		if err != nil {
			return err
		}
		if out.Round != nil {
			o.log.Info().Str("room", r.ID).Int("round", out.Round.Round).Msg("decoder guessed the word")
			o.emitRoundEndLocked(r, out)
			return nil
		}
		o.emitTurnLocked(r, out)
		o.scheduleAILocked(r)
		return nil
	})
}

// Leave removes a player from the room. The game is kept so a role holder
// can come back; an empty room is deleted.
func (o *Orchestrator) Leave(ctx context.Context, roomID, playerID string) error {
	deleted, err := o.rooms.RemovePlayer(ctx, roomID, playerID)
	if err != nil {
		return err
	}
	o.log.Info().Str("room", roomID).Str("player", playerID).Bool("room_deleted", deleted).Msg("player left")
	if deleted {
		return nil
	}
	return o.rooms.View(roomID, func(r *session.Room) {
		r.BroadcastLocked(protocol.MustEncode(protocol.EventPlayerLeft, protocol.PlayerLeftPayload{
			PlayerID: playerID,
			Players:  protocol.Players(r.PlayersLocked()),
		}))
	})
}

// Disconnect records that a player's connection send went away. The seat is
// kept and a rejoin snapshot saved. A newer connection of the same player is
// left alone.
func (o *Orchestrator) Disconnect(ctx context.Context, roomID, playerID string, send chan []byte) error {
	err := o.rooms.Update(ctx, roomID, func(r *session.Room) error {
		if !r.DetachLocked(playerID, send) {
			return errUnchanged
		}
		if r.Game != nil {
			if err := o.rooms.SaveSnapshot(ctx, roomID, playerID, r.Game.Snapshot()); err != nil {
				o.log.Warn().Err(err).Str("room", roomID).Str("player", playerID).Msg("save snapshot")
			}
		}
		o.broadcastStateLocked(r)
		return nil
	})
	if errors.Is(err, errUnchanged) || errors.Is(err, session.ErrRoomNotFound) {
		return nil
	}
	return err
}

// ListRooms returns the lobby listing.
func (o *Orchestrator) ListRooms() []session.Listing {
	return o.rooms.ListAvailable()
}

// CheckAvailability reports whether a new player could join roomID.
func (o *Orchestrator) CheckAvailability(roomID string) protocol.AvailabilityPayload {
	a := protocol.AvailabilityPayload{RoomID: roomID, MaxPlayers: session.MaxPlayers}
	if !session.ValidRoomID(roomID) {
		a.Reason = protocol.CodeInvalidRoomID
		return a
	}
	err := o.rooms.View(roomID, func(r *session.Room) {
		a.Exists = true
		a.PlayerCount = len(r.PlayerIDsLocked())
		switch {
		case a.PlayerCount >= session.MaxPlayers:
			a.Reason = protocol.CodeRoomFull
		case r.Game.Active():
			a.Reason = protocol.CodeGameInProgress
		default:
			a.Available = true
		}
	})
	if err != nil {
		// Joining creates the room.
		a.Available = true
	}
	return a
}

// expireIfDue applies an expired round before player input is considered.
func (o *Orchestrator) expireIfDue(ctx context.Context, roomID string) error {
	err := o.rooms.Update(ctx, roomID, func(r *session.Room) error {
		if !o.expireLocked(r) {
			return errUnchanged
		}
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}
	return err
}

// expireLocked ends the round if its timer ran out.
func (o *Orchestrator) expireLocked(r *session.Room) bool {
	if r.Game == nil || r.AIPendingLocked() {
		return false
	}
	out, ok := o.engine.Expire(r.Game, o.now())
	if !ok {
		return false
	}
	o.log.Info().Str("room", r.ID).Int("round", out.Round.Round).Msg("round timed out")
	o.emitRoundEndLocked(r, out)
	return true
}

// Tick applies expired rounds and sends the countdown to every active room.
func (o *Orchestrator) Tick(ctx context.Context) {
	for _, id := range o.rooms.RoomIDs() {
		err := o.rooms.Update(ctx, id, func(r *session.Room) error {
			expired := o.expireLocked(r)
			if r.Game.Active() {
				r.BroadcastLocked(protocol.MustEncode(protocol.EventTimerTick, protocol.TimerTickPayload{
					Round:     r.Game.Round,
					Remaining: r.Game.Timer.Remaining(o.now()),
					Timer:     r.Game.Timer.Mode(),
				}))
			}
			if !expired {
				return errUnchanged
			}
			return nil
		})
		if err != nil && !errors.Is(err, errUnchanged) && !errors.Is(err, session.ErrRoomNotFound) {
			o.log.Warn().Err(err).Str("room", id).Msg("timer tick")
		}
	}
}

// TimerLoop calls Tick every interval until ctx is done.
func (o *Orchestrator) TimerLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.Tick(ctx)
		}
	}
}
