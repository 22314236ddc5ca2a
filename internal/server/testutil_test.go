package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"

	"cipherparty/internal/ai"
	"cipherparty/internal/game"
	"cipherparty/internal/lobby"
	"cipherparty/internal/orchestrator"
	"cipherparty/internal/protocol"
	"cipherparty/internal/session"
	"cipherparty/internal/storage"
	"cipherparty/internal/words"
)

// --- Test environment ---

type analyzerFunc func(ctx context.Context, req ai.Request) (ai.Result, error)

func (f analyzerFunc) Analyze(ctx context.Context, req ai.Request) (ai.Result, error) {
	return f(ctx, req)
}

// aiGuesses answers every AI turn with guess.
func aiGuesses(guess string) ai.Analyzer {
	return analyzerFunc(func(context.Context, ai.Request) (ai.Result, error) {
		return ai.Result{Thinking: []string{"hm", "a hint", "maybe", "this"}, Guess: guess}, nil
	})
}

type testEnv struct {
	ts    *httptest.Server
	rooms *session.Manager
	orch  *orchestrator.Orchestrator
}

func setupTestEnv(t *testing.T, analyzer ai.Analyzer, opts ...Option) *testEnv {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	supply, err := words.NewSupply([]string{"apple"})
	if err != nil {
		t.Fatalf("word supply: %v", err)
	}
	rooms := session.NewManager(store)
	orch := orchestrator.New(rooms, game.NewEngine(supply, 2), analyzer, ai.NewFallback(supply.Catalogue(), nil))
	t.Cleanup(orch.Close)

	lb := lobby.NewBroadcaster(rooms, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go lb.Run(ctx)
	t.Cleanup(cancel)

	srv := New(orch, rooms, lb, opts...)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, rooms: rooms, orch: orch}
}

func timeoutCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// --- WebSocket helpers ---

func wsURL(ts *httptest.Server, path string) string {
	return strings.Replace(ts.URL, "http://", "ws://", 1) + path
}

func roomURL(ts *httptest.Server, roomID string) string {
	return wsURL(ts, "/api/rooms/"+roomID+"/ws")
}

func dial(ctx context.Context, t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

// wsJoin dials the room socket, joins as name and returns the connection and
// the issued player id.
func wsJoin(ctx context.Context, t *testing.T, ts *httptest.Server, roomID, name string) (*websocket.Conn, string) {
	t.Helper()
	conn := dial(ctx, t, roomURL(ts, roomID))
	wsSend(ctx, t, conn, protocol.TypeJoin, protocol.Join{PlayerName: name})
	var joined protocol.JoinedPayload
	readPayload(ctx, t, conn, protocol.EventJoined, &joined)
	return conn, joined.PlayerID
}

func wsSend(ctx context.Context, t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	env := protocol.Envelope{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		env.Payload = raw
	}
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal ws message: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("ws write: %v", err)
	}
}

func wsRead(ctx context.Context, t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("ws read: %v", err)
	}
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal ws message: %v", err)
	}
	return env
}

// readPayload skips messages until one of type typ arrives and decodes it
// into v.
func readPayload(ctx context.Context, t *testing.T, conn *websocket.Conn, typ string, v any) {
	t.Helper()
	for {
		env := wsRead(ctx, t, conn)
		if env.Type != typ {
			continue
		}
		if v == nil {
			return
		}
		if err := json.Unmarshal(env.Payload, v); err != nil {
			t.Fatalf("unmarshal %s payload: %v", typ, err)
		}
		return
	}
}

// readError expects the next message to be an error and returns its code.
func readError(ctx context.Context, t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	env := wsRead(ctx, t, conn)
	if env.Type != protocol.EventError {
		t.Fatalf("expected error message, got %q: %s", env.Type, env.Payload)
	}
	var ep protocol.ErrorPayload
	if err := json.Unmarshal(env.Payload, &ep); err != nil {
		t.Fatalf("unmarshal error payload: %v", err)
	}
	return ep.Code
}

// slowRate never refills after the first burst.
func slowRate(burst int) Option {
	return WithRateLimit(rate.Every(time.Hour), burst)
}
