package protocol

import (
	"errors"

	"cipherparty/internal/game"
	"cipherparty/internal/session"
)

// Error codes sent to clients.
const (
	CodeInvalidMessage = "invalid_message"
	CodeRateLimited    = "rate_limited"
	CodeRoomNotFound   = "room_not_found"
	CodeRoomFull       = "room_full"
	CodeInvalidRoomID  = "invalid_room_id"
	CodePlayerNotFound = "player_not_found"
	CodeGameInProgress = "game_in_progress"
	CodeGameEnded      = "game_ended"
	CodeGameNotActive  = "game_not_active"
	CodeNotYourTurn    = "not_your_turn"
	CodeWrongRole      = "wrong_role"
	CodeNoRole         = "no_role"
	CodeEmptyInput     = "empty_input"
	CodeRoundExpired   = "round_expired"
	CodeAIBusy         = "ai_busy"
	CodeInternal       = "internal"
)

// ErrAIBusy rejects an action while the AI is still answering.
var ErrAIBusy = errors.New("the AI is still taking its turn")

// order matters: ErrGameEnded wraps ErrGameNotActive.
var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidMessage, CodeInvalidMessage},
	{session.ErrRoomNotFound, CodeRoomNotFound},
	{session.ErrRoomFull, CodeRoomFull},
	{session.ErrInvalidRoomID, CodeInvalidRoomID},
	{session.ErrPlayerNotFound, CodePlayerNotFound},
	{session.ErrGameInProgress, CodeGameInProgress},
	{game.ErrGameEnded, CodeGameEnded},
	{game.ErrGameNotActive, CodeGameNotActive},
	{game.ErrNotYourTurn, CodeNotYourTurn},
	{game.ErrWrongRole, CodeWrongRole},
	{game.ErrNoRole, CodeNoRole},
	{game.ErrEmptyInput, CodeEmptyInput},
	{game.ErrRoundExpired, CodeRoundExpired},
	{ErrAIBusy, CodeAIBusy},
}

// ErrorCode maps err onto a client-facing code.
func ErrorCode(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// ErrorFor builds the error payload for err. Internal errors are not
// described to clients.
func ErrorFor(err error) ErrorPayload {
	code := ErrorCode(err)
	if code == CodeInternal {
		return ErrorPayload{Code: code, Message: "internal error"}
	}
	return ErrorPayload{Code: code, Message: err.Error()}
}
