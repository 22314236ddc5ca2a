package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
	"nhooyr.io/websocket"

	"cipherparty/internal/protocol"
	"cipherparty/internal/session"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

var errAlreadyJoined = fmt.Errorf("%w: already joined", protocol.ErrInvalidMessage)

func (s *Server) accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	opts := &websocket.AcceptOptions{OriginPatterns: s.origins}
	if len(s.origins) == 0 {
		opts.InsecureSkipVerify = true
	}
	return websocket.Accept(w, r, opts)
}

func (s *Server) handleRoomSocket(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	if !session.ValidRoomID(roomID) {
		http.Error(w, session.ErrInvalidRoomID.Error(), http.StatusBadRequest)
		return
	}

	conn, err := s.accept(w, r)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// First message must be a join
	_, data, err := conn.Read(ctx)
	if err != nil {
		return
	}
	cmd, err := protocol.Decode(data)
	if err == nil && cmd.Type() != protocol.TypeJoin {
		err = fmt.Errorf("%w: first message must be a join", protocol.ErrInvalidMessage)
	}
	if err != nil {
		writeError(ctx, conn, err)
		conn.Close(websocket.StatusPolicyViolation, "join required")
		return
	}

	send := make(chan []byte, sendBuffer)
	playerID, err := s.orch.Join(ctx, roomID, cmd.(protocol.Join), send)
	if err != nil {
		writeError(ctx, conn, err)
		conn.Close(websocket.StatusNormalClosure, protocol.ErrorCode(err))
		return
	}
	log := s.log.With().Str("room", roomID).Str("player", playerID).Logger()

	// Writer goroutine: send messages from the channel to the websocket
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-send:
				if err := write(ctx, conn, msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	limiter := rate.NewLimiter(s.limit, s.burst)
	left := false
	for !left {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		if !limiter.Allow() {
			queue(send, protocol.MustEncode(protocol.EventError, protocol.ErrorPayload{
				Code:    protocol.CodeRateLimited,
				Message: "too many messages",
			}))
			continue
		}
		cmd, err := protocol.Decode(data)
		if err == nil {
			left, err = s.dispatch(ctx, roomID, playerID, send, cmd)
		}
		if err != nil {
			log.Debug().Err(err).Msg("rejected message")
			queue(send, protocol.MustEncode(protocol.EventError, protocol.ErrorFor(err)))
		}
	}

	if left {
		conn.Close(websocket.StatusNormalClosure, "left")
		return
	}
	// Player disconnected: keep the seat so they can come back.
	if err := s.orch.Disconnect(context.Background(), roomID, playerID, send); err != nil {
		log.Warn().Err(err).Msg("disconnect")
	}
	log.Info().Msg("player disconnected")
}

// dispatch runs one command. It reports whether the player left the room.
func (s *Server) dispatch(ctx context.Context, roomID, playerID string, send chan []byte, cmd protocol.Command) (bool, error) {
	switch c := cmd.(type) {
	case protocol.Join:
		return false, errAlreadyJoined
	case protocol.Ready:
		return false, s.orch.SetReady(ctx, roomID, playerID, c.Ready)
	case protocol.Hint:
		return false, s.orch.SendHint(ctx, roomID, playerID, c.Text)
	case protocol.Guess:
		return false, s.orch.SubmitGuess(ctx, roomID, playerID, c.Text)
	case protocol.Leave:
		if err := s.orch.Leave(ctx, roomID, playerID); err != nil {
			return false, err
		}
		return true, nil
	case protocol.ListRooms:
		queue(send, protocol.MustEncode(protocol.EventRooms, protocol.RoomsPayload{Rooms: s.orch.ListRooms()}))
		return false, nil
	case protocol.CheckAvailability:
		queue(send, protocol.MustEncode(protocol.EventAvailability, s.orch.CheckAvailability(c.RoomID)))
		return false, nil
	}
	return false, fmt.Errorf("%w: unhandled %s", protocol.ErrInvalidMessage, cmd.Type())
}

func (s *Server) handleLobbySocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.accept(w, r)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	// Lobby clients only listen.
	ctx := conn.CloseRead(r.Context())
	listings, unsubscribe := s.lobby.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case l := <-listings:
			msg := protocol.MustEncode(protocol.EventRooms, protocol.RoomsPayload{Rooms: l})
			if err := write(ctx, conn, msg); err != nil {
				return
			}
		}
	}
}

// queue hands msg to the writer, dropping it if the buffer is full.
func queue(send chan []byte, msg []byte) {
	select {
	case send <- msg:
	default:
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, msg)
}

func writeError(ctx context.Context, conn *websocket.Conn, err error) {
	write(ctx, conn, protocol.MustEncode(protocol.EventError, protocol.ErrorFor(err)))
}
