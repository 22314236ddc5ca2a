package session

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sync"
	"time"

	"cipherparty/internal/game"
)

// MaxPlayers is the room capacity.
const MaxPlayers = 2

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrPlayerNotFound = errors.New("player not in room")
	ErrGameInProgress = errors.New("a game is in progress in this room")
	ErrInvalidRoomID  = errors.New("invalid room id")
	ErrInvalidRoom    = errors.New("room is in an invalid state")
)

var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidRoomID reports whether id may name a room.
func ValidRoomID(id string) bool {
	return roomIDPattern.MatchString(id)
}

// Player represents a player seated in a room.
type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
	// Send is the outbound transport handle; nil while disconnected.
	Send chan []byte `json:"-"`
}

// Connected reports whether the player has a live transport.
func (p *Player) Connected() bool {
	return p.Send != nil
}

// Room is two seats, their readiness and the game they play. The mutex
// serializes every action on the room; methods ending in Locked expect the
// caller to hold it.
type Room struct {
	mu           sync.Mutex
	ID           string
	Game         *game.State
	CreatedAt    time.Time
	LastActivity time.Time

	players  []*Player
	aiTicket *game.Ticket
	closed   bool
}

func newRoom(id string, now time.Time) *Room {
	return &Room{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
		players:      make([]*Player, 0, MaxPlayers),
	}
}

// Lock/Unlock expose the mutex for callers composing several locked steps.
func (r *Room) Lock()   { r.mu.Lock() }
func (r *Room) Unlock() { r.mu.Unlock() }

// ClosedLocked reports whether the room was deleted from the registry.
func (r *Room) ClosedLocked() bool {
	return r.closed
}

// PlayersLocked returns copies of the seated players in join order.
func (r *Room) PlayersLocked() []Player {
	out := make([]Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, *p)
	}
	return out
}

// PlayerIDsLocked returns the seated player ids in join order.
func (r *Room) PlayerIDsLocked() []string {
	ids := make([]string, 0, len(r.players))
	for _, p := range r.players {
		ids = append(ids, p.ID)
	}
	return ids
}

// PlayerLocked returns the player with id.
func (r *Room) PlayerLocked(id string) (*Player, bool) {
	i := r.indexOf(id)
	if i < 0 {
		return nil, false
	}
	return r.players[i], true
}

// SetReadyLocked sets a player's ready flag.
func (r *Room) SetReadyLocked(playerID string, ready bool) error {
	p, ok := r.PlayerLocked(playerID)
	if !ok {
		return ErrPlayerNotFound
	}
	p.Ready = ready
	return nil
}

// ResetReadyLocked clears every ready flag.
func (r *Room) ResetReadyLocked() {
	for _, p := range r.players {
		p.Ready = false
	}
}

// IsReadyLocked reports whether the room is full and everyone is ready.
func (r *Room) IsReadyLocked() bool {
	if len(r.players) != MaxPlayers {
		return false
	}
	for _, p := range r.players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// RolesLocked returns the current role assignment, if a game exists.
func (r *Room) RolesLocked() (game.RoleAssignment, bool) {
	if r.Game == nil {
		return game.RoleAssignment{}, false
	}
	return r.Game.Roles, true
}

// DetachLocked drops a player's transport handle if it is still send.
// A newer connection for the same player is left in place.
func (r *Room) DetachLocked(playerID string, send chan []byte) bool {
	p, ok := r.PlayerLocked(playerID)
	if !ok || p.Send != send {
		return false
	}
	p.Send = nil
	return true
}

// BeginAILocked marks an AI call as outstanding for ticket t. It fails if
// one is already outstanding.
func (r *Room) BeginAILocked(t game.Ticket) bool {
	if r.aiTicket != nil {
		return false
	}
	r.aiTicket = &t
	return true
}

// EndAILocked clears the outstanding AI call if it matches t.
func (r *Room) EndAILocked(t game.Ticket) {
	if r.aiTicket != nil && *r.aiTicket == t {
		r.aiTicket = nil
	}
}

// AIPendingLocked reports whether an AI call is outstanding.
func (r *Room) AIPendingLocked() bool {
	return r.aiTicket != nil
}

// BroadcastLocked sends msg to every connected player.
func (r *Room) BroadcastLocked(msg []byte) {
	for _, p := range r.players {
		deliver(p, msg)
	}
}

// SendLocked sends msg to one player.
func (r *Room) SendLocked(playerID string, msg []byte) {
	if p, ok := r.PlayerLocked(playerID); ok {
		deliver(p, msg)
	}
}

func deliver(p *Player, msg []byte) {
	if p.Send == nil {
		return
	}
	select {
	case p.Send <- msg:
	default:
		// drop message if buffer full
	}
}

func (r *Room) indexOf(id string) int {
	return slices.IndexFunc(r.players, func(p *Player) bool { return p.ID == id })
}

func (r *Room) touchLocked(now time.Time) {
	r.LastActivity = now
}

// validateLocked checks the room invariants.
func (r *Room) validateLocked() error {
	if len(r.players) > MaxPlayers {
		return fmt.Errorf("%w: %d players", ErrInvalidRoom, len(r.players))
	}
	seen := map[string]bool{}
	for _, p := range r.players {
		if p.ID == "" {
			return fmt.Errorf("%w: empty player id", ErrInvalidRoom)
		}
		if seen[p.ID] {
			return fmt.Errorf("%w: duplicate player %s", ErrInvalidRoom, p.ID)
		}
		seen[p.ID] = true
	}
	if r.Game != nil && r.Game.Status != game.StatusWaiting && !r.Game.Roles.Valid() {
		return fmt.Errorf("%w: roles %+v", ErrInvalidRoom, r.Game.Roles)
	}
	return nil
}

// Info is the read-only view of a room.
type Info struct {
	ID           string      `json:"id"`
	Players      []Player    `json:"players"`
	Status       game.Status `json:"status"`
	CreatedAt    time.Time   `json:"createdAt"`
	LastActivity time.Time   `json:"lastActivity"`
}

func (r *Room) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.InfoLocked()
}

// InfoLocked returns info without acquiring the lock (caller must hold it).
func (r *Room) InfoLocked() Info {
	status := game.StatusWaiting
	if r.Game != nil {
		status = r.Game.Status
	}
	return Info{
		ID:           r.ID,
		Players:      r.PlayersLocked(),
		Status:       status,
		CreatedAt:    r.CreatedAt,
		LastActivity: r.LastActivity,
	}
}
