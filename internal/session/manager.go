package session

import (
	"cmp"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"cipherparty/internal/game"
	"cipherparty/internal/storage"
)

const (
	DefaultIdleTimeout   = 30 * time.Minute
	DefaultSweepInterval = 5 * time.Minute
)

// Store persists rooms and rejoin snapshots. storage.Store and
// storage.PostgresStore satisfy it.
type Store interface {
	SaveRoom(ctx context.Context, rec storage.RoomRecord) error
	ListRooms(ctx context.Context) ([]storage.RoomRecord, error)
	DeleteRoom(ctx context.Context, id string) error
	SaveSnapshot(ctx context.Context, snap storage.SnapshotRow) error
	GetSnapshot(ctx context.Context, roomID, playerID string) (storage.SnapshotRow, error)
}

// Manager manages all rooms.
type Manager struct {
	// mu guards the map only. It is never held while waiting for a room
	// lock; a room lock holder may take it briefly.
	mu      sync.RWMutex
	rooms   map[string]*Room
	store   Store
	changes chan struct{}
	now     func() time.Time
	log     zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l.With().Str("component", "rooms").Logger() }
}

// NewManager creates a room manager. store may be nil to keep rooms in
// memory only.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		rooms:   make(map[string]*Room),
		store:   store,
		changes: make(chan struct{}, 1),
		now:     time.Now,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Changes delivers a signal after rooms were created, changed or removed.
// Signals coalesce: one pending signal stands for any number of changes.
func (m *Manager) Changes() <-chan struct{} {
	return m.changes
}

func (m *Manager) notify() {
	select {
	case m.changes <- struct{}{}:
	default:
	}
}

// JoinResult describes a successful join.
type JoinResult struct {
	Room     *Room
	Created  bool
	Rejoined bool
}

// Join seats p in the room, creating the room if needed. A player already
// seated is updated in place (new name, new transport handle).
func (m *Manager) Join(ctx context.Context, roomID string, p Player) (JoinResult, error) {
	if !ValidRoomID(roomID) {
		return JoinResult{}, ErrInvalidRoomID
	}
	if p.ID == "" {
		return JoinResult{}, fmt.Errorf("%w: missing player id", ErrPlayerNotFound)
	}

	room, created := m.lockRoomForJoin(roomID)
	defer room.Unlock()

	res := JoinResult{Room: room, Created: created}
	if existing, ok := room.PlayerLocked(p.ID); ok {
		if p.Name != "" {
			existing.Name = p.Name
		}
		existing.Send = p.Send
		res.Rejoined = true
	} else {
		switch {
		case len(room.players) >= MaxPlayers:
			return JoinResult{}, ErrRoomFull
		case room.Game.Active() && !room.Game.Roles.Has(p.ID):
			return JoinResult{}, ErrGameInProgress
		}
		seated := p
		room.players = append(room.players, &seated)
	}
	if created {
		m.log.Info().Str("room", roomID).Msg("room created")
	}

	room.touchLocked(m.now())
	m.persistLocked(ctx, room)
	m.notify()
	return res, nil
}

// lockRoomForJoin returns the room locked, creating it when absent. The
// manager lock is only held for the map lookup; a room deleted while we
// waited for its lock is skipped and the lookup retried.
func (m *Manager) lockRoomForJoin(roomID string) (*Room, bool) {
	for {
		m.mu.Lock()
		room, ok := m.rooms[roomID]
		if !ok {
			room = newRoom(roomID, m.now())
			// Held before publishing so nobody sees the room empty.
			room.Lock()
			m.rooms[roomID] = room
			m.mu.Unlock()
			return room, true
		}
		m.mu.Unlock()

		room.Lock()
		if !room.closed {
			return room, false
		}
		room.Unlock()
	}
}

// Get returns a room by id.
func (m *Manager) Get(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// Update runs fn with the room locked. It is the serialized path for every
// room mutation: on success the activity clock is bumped, the room is
// persisted and a change is announced. fn's error is returned unchanged and
// fn must leave the room untouched when it fails.
func (m *Manager) Update(ctx context.Context, id string, fn func(r *Room) error) error {
	room, ok := m.Get(id)
	if !ok {
		return ErrRoomNotFound
	}
	room.Lock()
	defer room.Unlock()
	if room.closed {
		return ErrRoomNotFound
	}
	if err := fn(room); err != nil {
		return err
	}
	room.touchLocked(m.now())
	m.persistLocked(ctx, room)
	m.notify()
	return nil
}

// View runs fn with the room locked, without touching it.
func (m *Manager) View(id string, fn func(r *Room)) error {
	room, ok := m.Get(id)
	if !ok {
		return ErrRoomNotFound
	}
	room.Lock()
	defer room.Unlock()
	if room.closed {
		return ErrRoomNotFound
	}
	fn(room)
	return nil
}

// SetReady sets a player's ready flag.
func (m *Manager) SetReady(ctx context.Context, roomID, playerID string, ready bool) error {
	return m.Update(ctx, roomID, func(r *Room) error {
		return r.SetReadyLocked(playerID, ready)
	})
}

// IsReady reports whether the room is full and all players are ready.
func (m *Manager) IsReady(roomID string) bool {
	ready := false
	if err := m.View(roomID, func(r *Room) { ready = r.IsReadyLocked() }); err != nil {
		return false
	}
	return ready
}

// RemovePlayer takes a player out of the room. The room is deleted as soon
// as it is empty; deleted reports whether that happened.
func (m *Manager) RemovePlayer(ctx context.Context, roomID, playerID string) (deleted bool, err error) {
	room, ok := m.Get(roomID)
	if !ok {
		return false, ErrRoomNotFound
	}
	room.Lock()
	defer room.Unlock()
	if room.closed {
		return false, ErrRoomNotFound
	}

	i := room.indexOf(playerID)
	if i < 0 {
		return false, ErrPlayerNotFound
	}
	room.players = slices.Delete(room.players, i, i+1)
	defer m.notify()

	if len(room.players) == 0 {
		m.deleteLocked(ctx, room)
		m.log.Info().Str("room", roomID).Msg("room deleted: last player left")
		return true, nil
	}
	room.touchLocked(m.now())
	m.persistLocked(ctx, room)
	return false, nil
}

// Validate checks that the room exists and its invariants hold.
func (m *Manager) Validate(roomID string) error {
	var err error
	if verr := m.View(roomID, func(r *Room) { err = r.validateLocked() }); verr != nil {
		return verr
	}
	return err
}

// Listing is the lobby view of a joinable room.
type Listing struct {
	ID          string    `json:"id"`
	PlayerCount int       `json:"playerCount"`
	MaxPlayers  int       `json:"maxPlayers"`
	CreatedAt   time.Time `json:"createdAt"`
	CreatedAgo  string    `json:"createdAgo"`
}

// ListAvailable returns the rooms a newcomer can join: a free seat and no
// game in progress. Oldest first.
func (m *Manager) ListAvailable() []Listing {
	rooms := m.snapshot()
	out := make([]Listing, 0, len(rooms))
	for _, r := range rooms {
		r.Lock()
		n, closed := len(r.players), r.closed
		active := r.Game.Active()
		createdAt := r.CreatedAt
		r.Unlock()
		if closed || n == 0 || n >= MaxPlayers || active {
			continue
		}
		out = append(out, Listing{
			ID:          r.ID,
			PlayerCount: n,
			MaxPlayers:  MaxPlayers,
			CreatedAt:   createdAt,
			CreatedAgo:  humanize.RelTime(createdAt, m.now(), "ago", "from now"),
		})
	}
	slices.SortFunc(out, func(a, b Listing) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// NewRoomID returns a short random room code not currently in use.
func (m *Manager) NewRoomID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for {
		code := generateCode()
		if _, taken := m.rooms[code]; !taken {
			return code
		}
	}
}

func generateCode() string {
	b := make([]byte, 3) // 6 hex chars
	if _, err := rand.Read(b); err != nil {
		// crypto/rand does not fail on supported platforms.
		panic(fmt.Sprintf("session: read random bytes: %v", err))
	}
	return hex.EncodeToString(b)
}

// RoomIDs returns the ids of every live room.
func (m *Manager) RoomIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// snapshot returns the live rooms without holding the manager lock afterwards,
// so callers can lock rooms one at a time.
func (m *Manager) snapshot() []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// CleanupLoop removes idle rooms periodically until ctx is done.
func (m *Manager) CleanupLoop(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Cleanup(ctx, maxIdle)
		}
	}
}

// Cleanup deletes every room idle for longer than maxIdle, whoever is in it,
// and returns the removed ids.
func (m *Manager) Cleanup(ctx context.Context, maxIdle time.Duration) []string {
	now := m.now()
	var removed []string
	for _, r := range m.snapshot() {
		r.Lock()
		if !r.closed && now.Sub(r.LastActivity) > maxIdle {
			m.log.Info().Str("room", r.ID).Str("idle_since", humanize.Time(r.LastActivity)).Msg("cleaning up idle room")
			m.deleteLocked(ctx, r)
			removed = append(removed, r.ID)
		}
		r.Unlock()
	}
	if len(removed) > 0 {
		m.notify()
	}
	slices.Sort(removed)
	return removed
}

// deleteLocked drops a room; the caller holds the room lock but not the
// manager lock. The record goes before the map entry so a joiner recreating
// the id cannot have its fresh record removed.
func (m *Manager) deleteLocked(ctx context.Context, r *Room) {
	r.closed = true
	m.deleteRecord(ctx, r.ID)
	m.mu.Lock()
	if m.rooms[r.ID] == r {
		delete(m.rooms, r.ID)
	}
	m.mu.Unlock()
}

func (m *Manager) deleteRecord(ctx context.Context, id string) {
	if m.store == nil {
		return
	}
	if err := m.store.DeleteRoom(ctx, id); err != nil {
		m.log.Warn().Err(err).Str("room", id).Msg("delete room record")
	}
}

// roomRecord is the persisted form of a room.
type roomRecord struct {
	Players []Player    `json:"players"`
	Game    *game.State `json:"game,omitempty"`
}

func (m *Manager) persistLocked(ctx context.Context, r *Room) {
	if m.store == nil {
		return
	}
	data, err := json.Marshal(roomRecord{Players: r.PlayersLocked(), Game: r.Game})
	if err != nil {
		m.log.Warn().Err(err).Str("room", r.ID).Msg("marshal room record")
		return
	}
	rec := storage.RoomRecord{ID: r.ID, Data: string(data), CreatedAt: r.CreatedAt, UpdatedAt: r.LastActivity}
	if err := m.store.SaveRoom(ctx, rec); err != nil {
		m.log.Warn().Err(err).Str("room", r.ID).Msg("save room record")
	}
}

// Restore loads persisted rooms on startup. Players come back disconnected;
// rooms nobody returns to are swept by the idle cleanup.
func (m *Manager) Restore(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	recs, err := m.store.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range recs {
		var data roomRecord
		if err := json.Unmarshal([]byte(rec.Data), &data); err != nil {
			m.log.Warn().Err(err).Str("room", rec.ID).Msg("skipping room: unmarshal error")
			continue
		}
		if len(data.Players) == 0 {
			m.deleteRecord(ctx, rec.ID)
			continue
		}
		r := newRoom(rec.ID, rec.CreatedAt)
		r.LastActivity = rec.UpdatedAt
		r.Game = data.Game
		for _, p := range data.Players {
			p.Send = nil
			r.players = append(r.players, &p)
		}
		if err := r.validateLocked(); err != nil {
			m.log.Warn().Err(err).Str("room", rec.ID).Msg("skipping room")
			continue
		}
		m.rooms[rec.ID] = r
	}
	m.log.Info().Int("rooms", len(m.rooms)).Msg("rooms restored")
	return nil
}

// SaveSnapshot records what playerID last saw in roomID.
func (m *Manager) SaveSnapshot(ctx context.Context, roomID, playerID string, snap game.Snapshot) error {
	if m.store == nil {
		return nil
	}
	return m.store.SaveSnapshot(ctx, storage.SnapshotRow{
		RoomID:   roomID,
		PlayerID: playerID,
		Round:    snap.Round,
		Word:     snap.Word,
		SavedAt:  m.now(),
	})
}

// LoadSnapshot returns the saved snapshot, or nil when there is none.
func (m *Manager) LoadSnapshot(ctx context.Context, roomID, playerID string) (*game.Snapshot, error) {
	if m.store == nil {
		return nil, nil
	}
	row, err := m.store.GetSnapshot(ctx, roomID, playerID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &game.Snapshot{Round: row.Round, Word: row.Word}, nil
}
