package protocol

import (
	"time"

	"cipherparty/internal/game"
	"cipherparty/internal/session"
)

// PlayerView is a seated player as clients see it.
type PlayerView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Ready     bool   `json:"ready"`
	Connected bool   `json:"connected"`
}

// Players projects the room's seats.
func Players(players []session.Player) []PlayerView {
	out := make([]PlayerView, 0, len(players))
	for _, p := range players {
		out = append(out, PlayerView{ID: p.ID, Name: p.Name, Ready: p.Ready, Connected: p.Connected()})
	}
	return out
}

// TurnView is one history entry. Decoders never see the AI's guesses, so
// Guess is blanked on AI turns in their view.
type TurnView struct {
	Seq      int        `json:"seq"`
	Actor    game.Actor `json:"actor"`
	Content  string     `json:"content,omitempty"`
	Thinking []string   `json:"thinking,omitempty"`
	Guess    string     `json:"guess,omitempty"`
}

// ViewTurn projects t for a player holding role.
func ViewTurn(t game.Turn, role game.Role) TurnView {
	v := TurnView{Seq: t.Seq(), Actor: t.Actor()}
	switch t := t.(type) {
	case game.EncoderHint:
		v.Content = t.Content
	case game.AITurn:
		v.Thinking = t.Thinking[:]
		if role != game.RoleDecoder {
			v.Guess = t.Guess
		}
	case game.DecoderGuess:
		v.Guess = t.Guess
	}
	return v
}

// GameView is the game state as one player sees it.
type GameView struct {
	Status    game.Status         `json:"status"`
	Score     int                 `json:"score"`
	Round     int                 `json:"round"`
	Word      string              `json:"word,omitempty"`
	Turn      game.Actor          `json:"turn"`
	Roles     game.RoleAssignment `json:"roles"`
	YourRole  game.Role           `json:"yourRole,omitempty"`
	History   []TurnView          `json:"history"`
	Remaining int                 `json:"remaining"`
	Timer     game.TimerMode      `json:"timer"`
	Rounds    []game.RoundResult  `json:"rounds,omitempty"`
	Winner    game.Winner         `json:"winner,omitempty"`
}

// ViewGame projects s for playerID. The secret word goes to both players;
// only the AI is kept from it.
func ViewGame(s *game.State, playerID string, now time.Time) *GameView {
	if s == nil {
		return nil
	}
	role := s.RoleOf(playerID)
	v := &GameView{
		Status:    s.Status,
		Score:     s.Score,
		Round:     s.Round,
		Word:      s.Word,
		Turn:      s.Turn,
		Roles:     s.Roles,
		YourRole:  role,
		History:   make([]TurnView, 0, len(s.History)),
		Remaining: s.Timer.Remaining(now),
		Timer:     s.Timer.Mode(),
		Rounds:    s.Rounds,
		Winner:    s.Winner,
	}
	for _, t := range s.History {
		v.History = append(v.History, ViewTurn(t, role))
	}
	return v
}

// Rejoin tells a returning player whether they picked up where they left off.
type Rejoin struct {
	Allowed bool              `json:"allowed"`
	Reason  game.RejoinReason `json:"reason,omitempty"`
	Message string            `json:"message,omitempty"`
}

type JoinedPayload struct {
	RoomID   string       `json:"roomId"`
	PlayerID string       `json:"playerId"`
	Players  []PlayerView `json:"players"`
	Game     *GameView    `json:"game,omitempty"`
	Rejoin   *Rejoin      `json:"rejoin,omitempty"`
}

type PlayerJoinedPayload struct {
	Player  PlayerView   `json:"player"`
	Players []PlayerView `json:"players"`
}

type PlayerLeftPayload struct {
	PlayerID string       `json:"playerId"`
	Players  []PlayerView `json:"players"`
}

type ReadyChangedPayload struct {
	PlayerID string       `json:"playerId"`
	Ready    bool         `json:"ready"`
	Players  []PlayerView `json:"players"`
}

type RoomReadyPayload struct {
	RoomID string `json:"roomId"`
}

type GameStartedPayload struct {
	Game *GameView `json:"game"`
}

// TurnPayload announces an entry appended by a human player.
type TurnPayload struct {
	Turn      TurnView   `json:"turn"`
	Next      game.Actor `json:"next"`
	Remaining int        `json:"remaining"`
}

type AIThinkingPayload struct {
	Round int `json:"round"`
	Seq   int `json:"seq"`
}

type AITurnPayload struct {
	Turn      TurnView   `json:"turn"`
	Fallback  bool       `json:"fallback,omitempty"`
	Next      game.Actor `json:"next,omitempty"`
	Remaining int        `json:"remaining"`
}

type RoundEndedPayload struct {
	Result game.RoundResult `json:"result"`
	// Game is the next round, nil when the game is over.
	Game *GameView `json:"game,omitempty"`
}

type GameEndedPayload struct {
	Winner game.Winner        `json:"winner"`
	Score  int                `json:"score"`
	Rounds []game.RoundResult `json:"rounds"`
}

type TimerTickPayload struct {
	Round     int            `json:"round"`
	Remaining int            `json:"remaining"`
	Timer     game.TimerMode `json:"timer"`
}

type StatePayload struct {
	RoomID  string       `json:"roomId"`
	Players []PlayerView `json:"players"`
	Game    *GameView    `json:"game,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RoomsPayload struct {
	Rooms []session.Listing `json:"rooms"`
}

type AvailabilityPayload struct {
	RoomID      string `json:"roomId"`
	Exists      bool   `json:"exists"`
	Available   bool   `json:"available"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
	Reason      string `json:"reason,omitempty"`
}
