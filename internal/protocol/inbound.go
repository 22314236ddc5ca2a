package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"cipherparty/internal/game"
	"cipherparty/internal/session"
)

const (
	MaxNameLength = 32
	MaxHintLength = 280
	MaxGuessInput = 64
)

// ErrInvalidMessage is returned for frames that don't match their schema.
var ErrInvalidMessage = errors.New("invalid message")

// Command is a validated inbound message.
type Command interface {
	Type() string
}

// Join seats the sender in a room. PlayerID is empty for a first visit; a
// returning client sends the id it was given and optionally what it last saw.
type Join struct {
	RoomID     string         `json:"roomId"`
	PlayerID   string         `json:"playerId,omitempty"`
	PlayerName string         `json:"playerName"`
	LastSeen   *game.Snapshot `json:"lastSeen,omitempty"`
}

// Ready toggles the sender's ready flag.
type Ready struct {
	Ready bool `json:"ready"`
}

// Hint is the encoder's clue.
type Hint struct {
	Text string `json:"text"`
}

// Guess is the decoder's guess.
type Guess struct {
	Text string `json:"text"`
}

// Leave takes the sender out of the room.
type Leave struct{}

// ListRooms asks for the lobby listing.
type ListRooms struct{}

// CheckAvailability asks whether a room can be joined.
type CheckAvailability struct {
	RoomID string `json:"roomId"`
}

func (Join) Type() string              { return TypeJoin }
func (Ready) Type() string             { return TypeReady }
func (Hint) Type() string              { return TypeHint }
func (Guess) Type() string             { return TypeGuess }
func (Leave) Type() string             { return TypeLeave }
func (ListRooms) Type() string         { return TypeListRooms }
func (CheckAvailability) Type() string { return TypeCheckAvailability }

// Decode parses one frame into a validated Command. Unknown types, unknown
// fields and out-of-range values are rejected with ErrInvalidMessage.
func Decode(data []byte) (Command, error) {
	var env Envelope
	if err := strictUnmarshal(data, &env); err != nil {
		return nil, invalid("malformed envelope: %v", err)
	}
	switch env.Type {
	case TypeJoin:
		var c Join
		if err := decodePayload(env.Payload, &c); err != nil {
			return nil, err
		}
		if err := c.validate(); err != nil {
			return nil, err
		}
		return c, nil
	case TypeReady:
		c := Ready{Ready: true}
		if err := decodePayload(env.Payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case TypeHint:
		var c Hint
		if err := decodePayload(env.Payload, &c); err != nil {
			return nil, err
		}
		c.Text = strings.TrimSpace(c.Text)
		if err := checkText("text", c.Text, MaxHintLength); err != nil {
			return nil, err
		}
		return c, nil
	case TypeGuess:
		var c Guess
		if err := decodePayload(env.Payload, &c); err != nil {
			return nil, err
		}
		c.Text = strings.TrimSpace(c.Text)
		if err := checkText("text", c.Text, MaxGuessInput); err != nil {
			return nil, err
		}
		return c, nil
	case TypeLeave:
		if err := decodePayload(env.Payload, &struct{}{}); err != nil {
			return nil, err
		}
		return Leave{}, nil
	case TypeListRooms:
		if err := decodePayload(env.Payload, &struct{}{}); err != nil {
			return nil, err
		}
		return ListRooms{}, nil
	case TypeCheckAvailability:
		var c CheckAvailability
		if err := decodePayload(env.Payload, &c); err != nil {
			return nil, err
		}
		if !session.ValidRoomID(c.RoomID) {
			return nil, invalid("roomId is not a valid room id")
		}
		return c, nil
	case "":
		return nil, invalid("missing type")
	}
	return nil, invalid("unknown type %q", env.Type)
}

func (c *Join) validate() error {
	c.PlayerName = strings.TrimSpace(c.PlayerName)
	if err := checkText("playerName", c.PlayerName, MaxNameLength); err != nil {
		return err
	}
	if c.RoomID != "" && !session.ValidRoomID(c.RoomID) {
		return invalid("roomId is not a valid room id")
	}
	if c.LastSeen != nil && c.LastSeen.Round < 1 {
		return invalid("lastSeen.round must be positive")
	}
	return nil
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := strictUnmarshal(raw, v); err != nil {
		return invalid("malformed payload: %v", err)
	}
	return nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data")
	}
	return nil
}

func checkText(field, s string, maxLen int) error {
	switch {
	case s == "":
		return invalid("%s is required", field)
	case utf8.RuneCountInString(s) > maxLen:
		return invalid("%s is longer than %d characters", field, maxLen)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidMessage, fmt.Sprintf(format, args...))
}
