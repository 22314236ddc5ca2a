package game

import (
	"errors"
	"fmt"
)

var (
	ErrGameNotActive   = errors.New("game not active")
	ErrGameEnded       = fmt.Errorf("%w: game has ended", ErrGameNotActive)
	ErrNotYourTurn     = errors.New("not your turn")
	ErrWrongRole       = errors.New("action not allowed for your role")
	ErrNoRole          = errors.New("player holds no role in this game")
	ErrEmptyInput      = errors.New("input is empty")
	ErrNotAITurn       = errors.New("not the AI's turn")
	ErrInvalidAIResult = errors.New("invalid AI result")
	ErrRoundExpired    = errors.New("round timer expired")
	ErrStaleAITurn     = errors.New("AI result is for a turn that already passed")
)
