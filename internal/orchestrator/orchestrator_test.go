package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cipherparty/internal/ai"
	"cipherparty/internal/game"
	"cipherparty/internal/protocol"
	"cipherparty/internal/session"
	"cipherparty/internal/storage"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

var thinking = []string{"one", "two", "three", "four"}

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) Analyze(ctx context.Context, req ai.Request) (ai.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(ai.Result), args.Error(1)
}

// blockingAnalyzer answers only when released, or fails when ctx ends.
type blockingAnalyzer struct {
	release chan ai.Result
	calls   chan ai.Request
}

func (b *blockingAnalyzer) Analyze(ctx context.Context, req ai.Request) (ai.Result, error) {
	b.calls <- req
	select {
	case res := <-b.release:
		return res, nil
	case <-ctx.Done():
		return ai.Result{}, ctx.Err()
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// cycleWords hands out words in order.
type cycleWords struct {
	mu    sync.Mutex
	words []string
	next  int
}

func (c *cycleWords) Select() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.words[c.next%len(c.words)]
	c.next++
	return w
}

type harness struct {
	t     *testing.T
	ctx   context.Context
	orch  *Orchestrator
	rooms *session.Manager
	clock *fakeClock
	a, b  chan []byte
}

const room = "r1"

func newHarness(t *testing.T, store session.Store, analyzer ai.Analyzer, opts ...Option) *harness {
	t.Helper()
	clock := &fakeClock{now: t0}
	rooms := session.NewManager(store, session.WithClock(clock.Now))
	engine := game.NewEngine(&cycleWords{words: []string{"apple", "banana", "cherry", "grape"}}, 2)
	fallback := ai.NewFallback([]string{"melon"}, rand.New(rand.NewPCG(1, 2)))
	orch := New(rooms, engine, analyzer, fallback, append([]Option{WithClock(clock.Now)}, opts...)...)
	t.Cleanup(orch.Close)
	return &harness{
		t:     t,
		ctx:   context.Background(),
		orch:  orch,
		rooms: rooms,
		clock: clock,
		a:     make(chan []byte, 64),
		b:     make(chan []byte, 64),
	}
}

// start seats alice and bob and readies both; alice encodes first.
func (h *harness) start() {
	h.t.Helper()
	_, err := h.orch.Join(h.ctx, room, protocol.Join{PlayerID: "alice", PlayerName: "Alice"}, h.a)
	require.NoError(h.t, err)
	_, err = h.orch.Join(h.ctx, room, protocol.Join{PlayerID: "bob", PlayerName: "Bob"}, h.b)
	require.NoError(h.t, err)
	require.NoError(h.t, h.orch.SetReady(h.ctx, room, "alice", true))
	require.NoError(h.t, h.orch.SetReady(h.ctx, room, "bob", true))
}

func (h *harness) game() *game.State {
	h.t.Helper()
	var s *game.State
	require.NoError(h.t, h.rooms.View(room, func(r *session.Room) { s = r.Game.Clone() }))
	return s
}

func drain(ch chan []byte) []protocol.Envelope {
	var out []protocol.Envelope
	for {
		select {
		case msg := <-ch:
			var env protocol.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				panic(err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func types(envs []protocol.Envelope) []string {
	out := make([]string, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.Type)
	}
	return out
}

func payloadOf[T any](t *testing.T, envs []protocol.Envelope, typ string) T {
	t.Helper()
	var v T
	for _, e := range envs {
		if e.Type == typ {
			require.NoError(t, json.Unmarshal(e.Payload, &v))
			return v
		}
	}
	t.Fatalf("no %s event in %v", typ, types(envs))
	return v
}

func aiReturns(guess string) *mockAnalyzer {
	m := &mockAnalyzer{}
	m.On("Analyze", mock.Anything, mock.Anything).Return(ai.Result{Thinking: thinking, Guess: guess}, nil)
	return m
}

func TestGameStartsWhenBothReady(t *testing.T) {
	h := newHarness(t, nil, aiReturns("banana"))
	h.start()

	s := h.game()
	require.NotNil(t, s)
	assert.Equal(t, game.StatusActive, s.Status)
	assert.Equal(t, game.InitialScore, s.Score)
	assert.Equal(t, 1, s.Round)
	assert.Equal(t, game.ActorEncoder, s.Turn)
	assert.Equal(t, "apple", s.Word)
	assert.Equal(t, game.RoleAssignment{Encoder: "alice", Decoder: "bob"}, s.Roles)

	evA := drain(h.a)
	assert.Equal(t, []string{
		protocol.EventJoined, protocol.EventPlayerJoined,
		protocol.EventReadyChanged, protocol.EventReadyChanged,
		protocol.EventRoomReady, protocol.EventGameStarted,
	}, types(evA))

	evB := drain(h.b)
	started := payloadOf[protocol.GameStartedPayload](t, evB, protocol.EventGameStarted)
	assert.Equal(t, game.RoleDecoder, started.Game.YourRole)
	assert.Equal(t, "apple", started.Game.Word, "both players see the word")
	assert.Equal(t, 180, started.Game.Remaining)
}

func TestFullWinningRound(t *testing.T) {
	an := &mockAnalyzer{}
	an.On("Analyze", mock.Anything, mock.MatchedBy(func(req ai.Request) bool {
		return req.RoomID == room && req.Round == 1 && len(req.History) == 1
	})).Return(ai.Result{Thinking: thinking, Guess: "banana"}, nil).Once()
	h := newHarness(t, nil, an)
	h.start()
	drain(h.a)
	drain(h.b)

	require.NoError(t, h.orch.SendHint(h.ctx, room, "alice", "it's a fruit"))
	h.orch.Wait()
	an.AssertExpectations(t)

	s := h.game()
	assert.Equal(t, game.ActorDecoder, s.Turn)
	require.Len(t, s.History, 2)
	assert.Equal(t, game.TimerRunning, s.Timer.Mode())

	evA := drain(h.a)
	evB := drain(h.b)
	assert.Equal(t, []string{protocol.EventTurn, protocol.EventAIThinking, protocol.EventAITurn}, types(evB))
	assert.Equal(t, "banana", payloadOf[protocol.AITurnPayload](t, evA, protocol.EventAITurn).Turn.Guess)
	assert.Empty(t, payloadOf[protocol.AITurnPayload](t, evB, protocol.EventAITurn).Turn.Guess, "decoder never sees the AI's guess")

	require.NoError(t, h.orch.SubmitGuess(h.ctx, room, "bob", "apple"))
	s = h.game()
	assert.Equal(t, 6, s.Score)
	assert.Equal(t, 2, s.Round)
	assert.Equal(t, game.RoleAssignment{Encoder: "bob", Decoder: "alice"}, s.Roles)
	assert.Empty(t, s.History)
	assert.Equal(t, game.ActorEncoder, s.Turn)
	assert.Equal(t, "banana", s.Word)
	assert.Equal(t, 180, s.Timer.Remaining(h.clock.Now()))

	ended := payloadOf[protocol.RoundEndedPayload](t, drain(h.a), protocol.EventRoundEnded)
	assert.Equal(t, game.WinnerPlayers, ended.Result.Winner)
	assert.Equal(t, "apple", ended.Result.Word)
	require.NotNil(t, ended.Game)
	assert.Equal(t, game.RoleDecoder, ended.Game.YourRole)
}

func TestAIWinsRound(t *testing.T) {
	h := newHarness(t, nil, aiReturns("apple"))
	h.start()

	require.NoError(t, h.orch.SendHint(h.ctx, room, "alice", "red and round"))
	h.orch.Wait()

	s := h.game()
	assert.Equal(t, 4, s.Score)
	assert.Equal(t, 2, s.Round)
	assert.Equal(t, "bob", s.Roles.Encoder)
	assert.Equal(t, game.ActorEncoder, s.Turn)

	evB := drain(h.b)
	ended := payloadOf[protocol.RoundEndedPayload](t, evB, protocol.EventRoundEnded)
	assert.Equal(t, game.WinnerAI, ended.Result.Winner)
	assert.Equal(t, game.ReasonAIGuessed, ended.Result.Reason)
}

func TestGameEndsWhenAIReachesZero(t *testing.T) {
	h := newHarness(t, nil, aiReturns("apple"))
	h.start()
	require.NoError(t, h.rooms.Update(h.ctx, room, func(r *session.Room) error {
		r.Game.Score = 1
		return nil
	}))

	require.NoError(t, h.orch.SendHint(h.ctx, room, "alice", "red and round"))
	h.orch.Wait()

	s := h.game()
	assert.Equal(t, game.StatusEnded, s.Status)
	assert.Equal(t, 0, s.Score)
	assert.Equal(t, game.WinnerAI, s.Winner)
	assert.False(t, h.rooms.IsReady(room), "ready flags reset after the game")

	ended := payloadOf[protocol.GameEndedPayload](t, drain(h.a), protocol.EventGameEnded)
	assert.Equal(t, game.WinnerAI, ended.Winner)

	err := h.orch.SendHint(h.ctx, room, "alice", "again")
	assert.ErrorIs(t, err, game.ErrGameNotActive)
	assert.ErrorIs(t, err, game.ErrGameEnded)

	// Readying up again starts a fresh game in the same room.
	require.NoError(t, h.orch.SetReady(h.ctx, room, "alice", true))
	require.NoError(t, h.orch.SetReady(h.ctx, room, "bob", true))
	s = h.game()
	assert.Equal(t, game.StatusActive, s.Status)
	assert.Equal(t, game.InitialScore, s.Score)
	assert.Equal(t, 1, s.Round)
}

func TestTurnAndRoleEnforcement(t *testing.T) {
	an := &blockingAnalyzer{release: make(chan ai.Result), calls: make(chan ai.Request, 4)}
	h := newHarness(t, nil, an)
	h.start()

	assert.ErrorIs(t, h.orch.SendHint(h.ctx, room, "bob", "nope"), game.ErrWrongRole)
	assert.ErrorIs(t, h.orch.SubmitGuess(h.ctx, room, "alice", "apple"), game.ErrWrongRole)
	assert.ErrorIs(t, h.orch.SubmitGuess(h.ctx, room, "bob", "apple"), game.ErrNotYourTurn)
	assert.ErrorIs(t, h.orch.SendHint(h.ctx, room, "carol", "hi"), game.ErrNoRole)
	assert.ErrorIs(t, h.orch.SendHint(h.ctx, "nowhere", "alice", "hi"), session.ErrRoomNotFound)

	require.NoError(t, h.orch.SendHint(h.ctx, room, "alice", "fruit"))
	<-an.calls
	before := h.game()
	assert.ErrorIs(t, h.orch.SendHint(h.ctx, room, "alice", "another"), protocol.ErrAIBusy)
	assert.ErrorIs(t, h.orch.SubmitGuess(h.ctx, room, "bob", "apple"), protocol.ErrAIBusy)
	assert.Equal(t, before, h.game(), "rejected actions leave the game untouched")

	an.release <- ai.Result{Thinking: thinking, Guess: "plum"}
	h.orch.Wait()
	assert.ErrorIs(t, h.orch.SendHint(h.ctx, room, "alice", "more"), game.ErrNotYourTurn)
	assert.Len(t, an.calls, 0, "only one AI call per AI turn")
}

func TestWrongGuessGoesBackToAI(t *testing.T) {
	h := newHarness(t, nil, aiReturns("plum"))
	h.start()
	require.NoError(t, h.orch.SendHint(h.ctx, room, "alice", "fruit"))
	h.orch.Wait()
	drain(h.a)

	require.NoError(t, h.orch.SubmitGuess(h.ctx, room, "bob", "pear"))
	h.orch.Wait()

	s := h.game()
	assert.Equal(t, game.ActorDecoder, s.Turn)
	require.Len(t, s.History, 4)
	for i, turn := range s.History {
		assert.Equal(t, i+1, turn.Seq())
	}
	assert.Equal(t, []string{protocol.EventTurn, protocol.EventAIThinking, protocol.EventAITurn}, types(drain(h.a)))
}

func TestFallbackOnAIFailure(t *testing.T) {
	an := &mockAnalyzer{}
	an.On("Analyze", mock.Anything, mock.Anything).Return(ai.Result{}, errors.New("model overloaded"))
	h := newHarness(t, nil, an)
	h.start()
	drain(h.a)

	require.NoError(t, h.orch.SendHint(h.ctx, room, "alice", "fruit"))
	h.orch.Wait()

	s := h.game()
	assert.Equal(t, game.ActorDecoder, s.Turn)
	turn, ok := s.History.Last().(game.AITurn)
	require.True(t, ok)
	assert.Equal(t, ai.FallbackThinking, turn.Thinking)
	assert.Equal(t, "melon", turn.Guess)

	payload := payloadOf[protocol.AITurnPayload](t, drain(h.a), protocol.EventAITurn)
	assert.True(t, payload.Fallback)
}

func TestFallbackOnInvalidResult(t *testing.T) {
	h := newHarness(t, nil, aiReturns("x"))
	h.start()
	require.NoError(t, h.orch.SendHint(h.ctx, room, "alice", "fruit"))
	h.orch.Wait()

	turn, ok := h.game().History.Last().(game.AITurn)
	require.True(t, ok)
	assert.Equal(t, "melon", turn.Guess)
}

func TestFallbackOnTimeout(t *testing.T) {
	an := &blockingAnalyzer{release: make(chan ai.Result), calls: make(chan ai.Request, 1)}
	h := newHarness(t, nil, an, WithAITimeout(10*time.Millisecond))
	h.start()
	require.NoError(t, h.orch.SendHint(h.ctx, room, "alice", "fruit"))
	h.orch.Wait()

	req := <-an.calls
	assert.Equal(t, 1, req.Round)
	turn, ok := h.game().History.Last().(game.AITurn)
	require.True(t, ok)
	assert.Equal(t, ai.FallbackThinking, turn.Thinking)
}

func TestStaleAIResultDiscardedWhenRoomDeleted(t *testing.T) {
	an := &blockingAnalyzer{release: make(chan ai.Result, 1), calls: make(chan ai.Request, 1)}
	h := newHarness(t, nil, an)
	h.start()
	require.NoError(t, h.orch.SendHint(h.ctx, room, "alice", "fruit"))
	<-an.calls

	require.NoError(t, h.orch.Leave(h.ctx, room, "alice"))
	require.NoError(t, h.orch.Leave(h.ctx, room, "bob"))
	an.release <- ai.Result{Thinking: thinking, Guess: "apple"}
	h.orch.Wait()

	_, ok := h.rooms.Get(room)
	assert.False(t, ok)
}

func TestTimerExpiryAppliedBeforeInput(t *testing.T) {
	h := newHarness(t, nil, aiReturns("plum"))
	h.start()
	require.NoError(t, h.orch.SendHint(h.ctx, room, "alice", "fruit"))
	h.orch.Wait()
	require.Equal(t, game.ActorDecoder, h.game().Turn)

	h.clock.Advance(game.RoundDuration + time.Second)
	err := h.orch.SubmitGuess(h.ctx, room, "bob", "apple")
	assert.ErrorIs(t, err, game.ErrWrongRole, "bob encodes in the new round")

	s := h.game()
	assert.Equal(t, 4, s.Score)
	assert.Equal(t, 2, s.Round)
	assert.Equal(t, game.RoleAssignment{Encoder: "bob", Decoder: "alice"}, s.Roles)
	assert.Equal(t, "banana", s.Word)
	assert.Equal(t, 180, s.Timer.Remaining(h.clock.Now()))
	require.Len(t, s.Rounds, 1)
	assert.Equal(t, game.ReasonTimeout, s.Rounds[0].Reason)
}

func TestTickEmitsCountdownAndExpires(t *testing.T) {
	h := newHarness(t, nil, aiReturns("plum"))
	h.start()
	drain(h.a)

	h.clock.Advance(30 * time.Second)
	h.orch.Tick(h.ctx)
	tick := payloadOf[protocol.TimerTickPayload](t, drain(h.a), protocol.EventTimerTick)
	assert.Equal(t, 150, tick.Remaining)
	assert.Equal(t, game.TimerRunning, tick.Timer)
	lastActivity := func() time.Time {
		r, _ := h.rooms.Get(room)
		return r.Info().LastActivity
	}
	assert.Equal(t, t0, lastActivity(), "ticks do not count as activity")

	h.clock.Advance(game.RoundDuration)
	h.orch.Tick(h.ctx)
	evs := drain(h.a)
	assert.Contains(t, types(evs), protocol.EventRoundEnded)
	assert.Equal(t, 2, h.game().Round)
}

func TestTimerPausedDuringAITurn(t *testing.T) {
	an := &blockingAnalyzer{release: make(chan ai.Result, 1), calls: make(chan ai.Request, 1)}
	h := newHarness(t, nil, an)
	h.start()
	h.clock.Advance(20 * time.Second)
	require.NoError(t, h.orch.SendHint(h.ctx, room, "alice", "fruit"))
	<-an.calls

	h.clock.Advance(10 * time.Minute)
	h.orch.Tick(h.ctx)
	s := h.game()
	assert.Equal(t, 1, s.Round, "a paused round never expires")
	assert.Equal(t, 160, s.Timer.Remaining(h.clock.Now()))

	an.release <- ai.Result{Thinking: thinking, Guess: "plum"}
	h.orch.Wait()
	assert.Equal(t, 160, h.game().Timer.Remaining(h.clock.Now()))
}

func TestThirdPlayerRejected(t *testing.T) {
	h := newHarness(t, nil, aiReturns("plum"))
	h.start()
	_, err := h.orch.Join(h.ctx, room, protocol.Join{PlayerName: "Carol"}, make(chan []byte, 1))
	assert.ErrorIs(t, err, session.ErrRoomFull)

	var ids []string
	h.rooms.View(room, func(r *session.Room) { ids = r.PlayerIDsLocked() })
	assert.Equal(t, []string{"alice", "bob"}, ids)
}

func TestJoinIssuesPlayerID(t *testing.T) {
	h := newHarness(t, nil, aiReturns("plum"))
	id, err := h.orch.Join(h.ctx, room, protocol.Join{PlayerName: "Alice"}, h.a)
	require.NoError(t, err)
	assert.Len(t, id, 36)

	joined := payloadOf[protocol.JoinedPayload](t, drain(h.a), protocol.EventJoined)
	assert.Equal(t, id, joined.PlayerID)
	assert.Nil(t, joined.Game)
	assert.Nil(t, joined.Rejoin)

	_, err = h.orch.Join(h.ctx, room, protocol.Join{RoomID: "other", PlayerName: "Bob"}, h.b)
	assert.ErrorIs(t, err, protocol.ErrInvalidMessage)
}

func TestRejoinAfterRoundChange(t *testing.T) {
	store, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := newHarness(t, store, aiReturns("apple"))
	h.start()
	require.NoError(t, h.orch.Disconnect(h.ctx, room, "bob", h.b))

	snap, err := h.rooms.LoadSnapshot(h.ctx, room, "bob")
	require.NoError(t, err)
	assert.Equal(t, &game.Snapshot{Round: 1, Word: "apple"}, snap)

	// The AI wins round 1 while bob is away.
	require.NoError(t, h.orch.SendHint(h.ctx, room, "alice", "red"))
	h.orch.Wait()
	require.Equal(t, 2, h.game().Round)

	back := make(chan []byte, 64)
	_, err = h.orch.Join(h.ctx, room, protocol.Join{PlayerID: "bob", PlayerName: "Bob"}, back)
	require.NoError(t, err)

	joined := payloadOf[protocol.JoinedPayload](t, drain(back), protocol.EventJoined)
	require.NotNil(t, joined.Rejoin)
	assert.False(t, joined.Rejoin.Allowed)
	assert.Equal(t, game.ReasonRoundAdvanced, joined.Rejoin.Reason)
	assert.Contains(t, joined.Rejoin.Message, "round 1 to round 2")
	require.NotNil(t, joined.Game)
	assert.Equal(t, 2, joined.Game.Round)
	assert.Equal(t, game.RoleEncoder, joined.Game.YourRole)
}

func TestRejoinSameRoundAllowed(t *testing.T) {
	h := newHarness(t, nil, aiReturns("plum"))
	h.start()
	require.NoError(t, h.orch.Disconnect(h.ctx, room, "bob", h.b))
	require.NoError(t, h.orch.Disconnect(h.ctx, room, "bob", h.b), "second disconnect is a no-op")

	back := make(chan []byte, 64)
	_, err := h.orch.Join(h.ctx, room, protocol.Join{PlayerID: "bob", PlayerName: "Bob", LastSeen: &game.Snapshot{Round: 1, Word: "apple"}}, back)
	require.NoError(t, err)
	joined := payloadOf[protocol.JoinedPayload](t, drain(back), protocol.EventJoined)
	require.NotNil(t, joined.Rejoin)
	assert.True(t, joined.Rejoin.Allowed)
}

func TestStaleDisconnectKeepsNewConnection(t *testing.T) {
	h := newHarness(t, nil, aiReturns("plum"))
	h.start()
	fresh := make(chan []byte, 64)
	_, err := h.orch.Join(h.ctx, room, protocol.Join{PlayerID: "bob", PlayerName: "Bob"}, fresh)
	require.NoError(t, err)

	require.NoError(t, h.orch.Disconnect(h.ctx, room, "bob", h.b))
	h.rooms.View(room, func(r *session.Room) {
		p, _ := r.PlayerLocked("bob")
		assert.True(t, p.Connected())
	})
}

func TestLeaveNotifiesRemainingPlayer(t *testing.T) {
	h := newHarness(t, nil, aiReturns("plum"))
	h.start()
	drain(h.a)

	require.NoError(t, h.orch.Leave(h.ctx, room, "bob"))
	left := payloadOf[protocol.PlayerLeftPayload](t, drain(h.a), protocol.EventPlayerLeft)
	assert.Equal(t, "bob", left.PlayerID)
	assert.Len(t, left.Players, 1)

	assert.ErrorIs(t, h.orch.Leave(h.ctx, room, "bob"), session.ErrPlayerNotFound)
}

func TestCheckAvailabilityAndListRooms(t *testing.T) {
	h := newHarness(t, nil, aiReturns("plum"))
	a := h.orch.CheckAvailability("fresh")
	assert.False(t, a.Exists)
	assert.True(t, a.Available)

	a = h.orch.CheckAvailability("bad id")
	assert.False(t, a.Available)
	assert.Equal(t, protocol.CodeInvalidRoomID, a.Reason)

	_, err := h.orch.Join(h.ctx, room, protocol.Join{PlayerID: "alice", PlayerName: "Alice"}, h.a)
	require.NoError(t, err)
	a = h.orch.CheckAvailability(room)
	assert.True(t, a.Exists)
	assert.True(t, a.Available)
	assert.Equal(t, 1, a.PlayerCount)

	listing := h.orch.ListRooms()
	require.Len(t, listing, 1)
	assert.Equal(t, room, listing[0].ID)

	_, err = h.orch.Join(h.ctx, room, protocol.Join{PlayerID: "bob", PlayerName: "Bob"}, h.b)
	require.NoError(t, err)
	a = h.orch.CheckAvailability(room)
	assert.False(t, a.Available)
	assert.Equal(t, protocol.CodeRoomFull, a.Reason)
	assert.Empty(t, h.orch.ListRooms())
}

func TestConcurrentActionsKeepRoomsConsistent(t *testing.T) {
	const (
		rooms      = 4
		iterations = 200
	)
	h := newHarness(t, nil, aiReturns("kiwi"))
	ctx := h.ctx

	type seat struct{ room, player string }
	var seats []seat
	for i := range rooms {
		id := fmt.Sprintf("room-%d", i)
		for _, name := range []string{"alice", "bob"} {
			player := fmt.Sprintf("%s-%d", name, i)
			_, err := h.orch.Join(ctx, id, protocol.Join{PlayerID: player, PlayerName: name}, make(chan []byte, 16))
			require.NoError(t, err)
			seats = append(seats, seat{id, player})
		}
	}

	guesses := []string{"plum", "apple", "banana", "cherry"}
	var wg sync.WaitGroup
	for n, st := range seats {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(uint64(n), 7))
			for i := range iterations {
				// Errors such as not_your_turn or ai_busy are expected here.
				switch rng.IntN(5) {
				case 0:
					h.orch.SetReady(ctx, st.room, st.player, true)
				case 1, 2:
					h.orch.SendHint(ctx, st.room, st.player, fmt.Sprintf("hint %d", i))
				default:
					h.orch.SubmitGuess(ctx, st.room, st.player, guesses[rng.IntN(len(guesses))])
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range iterations {
			if i%20 == 0 {
				h.clock.Advance(30 * time.Second)
			}
			h.orch.Tick(ctx)
			h.orch.ListRooms()
			h.rooms.Cleanup(ctx, time.Hour)
		}
	}()
	wg.Wait()
	h.orch.Wait()

	for i := range rooms {
		id := fmt.Sprintf("room-%d", i)
		require.NoError(t, h.rooms.View(id, func(r *session.Room) {
			assert.False(t, r.AIPendingLocked(), "%s: AI call left pending", id)
			s := r.Game
			if !s.Active() {
				return
			}
			assert.Equal(t, s.Turn == game.ActorAI, s.Timer.Mode() == game.TimerPaused,
				"%s: timer %s on %s turn", id, s.Timer.Mode(), s.Turn)

			cycle := []game.Actor{game.ActorEncoder, game.ActorAI, game.ActorDecoder, game.ActorAI}
			prev := 0
			for j, turn := range s.History {
				assert.Equal(t, cycle[j%len(cycle)], turn.Actor(), "%s: turn %d", id, j)
				assert.Greater(t, turn.Seq(), prev, "%s: turn %d", id, j)
				prev = turn.Seq()
			}
		}))
	}
}
