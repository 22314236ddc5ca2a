// Package protocol defines the messages exchanged with clients. Every frame
// is a JSON envelope {type, payload}; inbound payloads are decoded strictly
// into typed commands, outbound payloads are built from room and game state.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope is the JSON frame for every websocket message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound message types.
const (
	TypeJoin              = "join"
	TypeReady             = "ready"
	TypeHint              = "hint"
	TypeGuess             = "guess"
	TypeLeave             = "leave"
	TypeListRooms         = "list_rooms"
	TypeCheckAvailability = "check_availability"
)

// Outbound event types.
const (
	EventJoined       = "joined"
	EventPlayerJoined = "player_joined"
	EventPlayerLeft   = "player_left"
	EventReadyChanged = "ready_changed"
	EventRoomReady    = "room_ready"
	EventGameStarted  = "game_started"
	EventTurn         = "turn"
	EventAIThinking   = "ai_thinking"
	EventAITurn       = "ai_turn"
	EventRoundEnded   = "round_ended"
	EventGameEnded    = "game_ended"
	EventTimerTick    = "timer_tick"
	EventState        = "state"
	EventError        = "error"
	EventRooms        = "rooms"
	EventAvailability = "availability"
)

// Encode wraps payload in an envelope of the given type.
func Encode(eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return json.Marshal(Envelope{Type: eventType, Payload: raw})
}

// MustEncode is Encode for payloads that are known to marshal.
func MustEncode(eventType string, payload any) []byte {
	data, err := Encode(eventType, payload)
	if err != nil {
		panic(err)
	}
	return data
}
