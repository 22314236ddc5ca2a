package game

// Role is the part a human player holds for the current round.
type Role string

const (
	RoleNone    Role = ""
	RoleEncoder Role = "encoder"
	RoleDecoder Role = "decoder"
)

// Actor names whose move the game is waiting for.
type Actor string

const (
	ActorEncoder Actor = "encoder"
	ActorAI      Actor = "ai"
	ActorDecoder Actor = "decoder"
)

// Status is the game lifecycle.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusActive  Status = "active"
	StatusEnded   Status = "ended"
)

// Winner identifies who took a round or the game.
type Winner string

const (
	WinnerNone    Winner = ""
	WinnerPlayers Winner = "players"
	WinnerAI      Winner = "ai"
)

// RoleAssignment pairs the two human players with their roles.
type RoleAssignment struct {
	Encoder string `json:"encoder"`
	Decoder string `json:"decoder"`
}

// Swap exchanges the roles of the same two players.
func (r RoleAssignment) Swap() RoleAssignment {
	return RoleAssignment{Encoder: r.Decoder, Decoder: r.Encoder}
}

// RoleOf returns the role held by playerID, or RoleNone.
func (r RoleAssignment) RoleOf(playerID string) Role {
	switch playerID {
	case "":
		return RoleNone
	case r.Encoder:
		return RoleEncoder
	case r.Decoder:
		return RoleDecoder
	}
	return RoleNone
}

// Has reports whether playerID holds either role.
func (r RoleAssignment) Has(playerID string) bool {
	return r.RoleOf(playerID) != RoleNone
}

// Valid reports whether the assignment names two distinct players.
func (r RoleAssignment) Valid() bool {
	return r.Encoder != "" && r.Decoder != "" && r.Encoder != r.Decoder
}

// actorFor maps a human role onto the turn it acts on.
func actorFor(role Role) Actor {
	switch role {
	case RoleEncoder:
		return ActorEncoder
	case RoleDecoder:
		return ActorDecoder
	}
	return ""
}
