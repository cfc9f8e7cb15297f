package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/scythe504/linkrace-backend/internal"
	"github.com/scythe504/linkrace-backend/internal/game"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

var (
	errClientClosed = errors.New("client connection closed")
	errSlowClient   = errors.New("client send buffer full")
)

// =============================================================================
// WEBSOCKET CONNECTION HANDLING
// =============================================================================

// client is one websocket connection of a participant. It implements
// internal.Conn so the room loop can push to it without blocking.
type client struct {
	id   string
	name string
	room *game.Room
	conn *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	reason    string
	left      bool

	limiter *rate.Limiter
}

func newClient(conn *websocket.Conn, room *game.Room, name string) *client {
	return &client{
		id:      uuid.NewString(),
		name:    name,
		room:    room,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(5, 10),
	}
}

func (c *client) ID() string { return c.id }

func (c *client) Send(msg internal.Message[any]) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return errClientClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errClientClosed
	default:
		log.Warn().Str("player", c.name).Str("type", msg.Type).Msg("[Send] client too slow, dropping connection")
		c.Close("")
		return errSlowClient
	}
}

// Close ends the connection once the queued messages are written. reason is
// carried in the close frame.
func (c *client) Close(reason string) {
	c.closeOnce.Do(func() {
		c.reason = reason
		close(c.done)
	})
}

// HandleWebSocket upgrades the request and joins the room named in the path.
// Query: name, type (player|observer).
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("[HandleWebSocket] upgrade failed")
		return
	}

	roomID := mux.Vars(r)["roomId"]
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	role := internal.PlayerRole(r.URL.Query().Get("type"))
	if role == "" {
		role = internal.RolePlayer
	}

	room, err := s.registry.GetRoom(roomID)
	if err != nil {
		reject(conn, game.CloseReason(err))
		return
	}

	c := newClient(conn, room, name)
	go c.writePump()

	if err := room.Join(name, role, c); err != nil {
		log.Info().Err(err).Str("room", room.ID).Str("player", name).Str("phase", string(room.Phase())).Msg("[HandleWebSocket] join refused")
		c.Close(game.CloseReason(err))
		return
	}

	go c.readPump()
}

func reject(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(writeWait))
	_ = conn.Close()
}

func (c *client) readPump() {
	defer func() {
		if !c.left {
			c.room.Disconnect(c.name, c.id)
		}
		c.Close("")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("player", c.name).Msg("[readPump] read error")
			}
			return
		}

		if !c.limiter.Allow() {
			c.pushError("", "rate limited")
			continue
		}

		cmd, err := game.ParseCommand(raw)
		if err != nil {
			c.pushError("", err.Error())
			continue
		}

		if _, ok := cmd.(game.LeaveCommand); ok {
			c.left = true
			if err := c.room.Leave(c.name, c.id); err != nil && !errors.Is(err, game.ErrRoomClosed) {
				log.Debug().Err(err).Str("player", c.name).Msg("[readPump] leave rejected")
			}
			return
		}

		if err := c.room.Dispatch(c.name, cmd); err != nil {
			if errors.Is(err, game.ErrRoomClosed) {
				return
			}
			c.pushError(cmd.Name(), err.Error())
		}
	}
}

func (c *client) pushError(command, message string) {
	_ = c.Send(internal.Message[any]{
		Type: internal.MsgError,
		Data: internal.ErrorData{Command: command, Message: message},
	})
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			if err := c.write(data); err != nil {
				c.Close("")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close("")
				return
			}

		case <-c.done:
			// flush what the room queued before closing, e.g. player_kicked
			c.drain()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, c.reason),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (c *client) drain() {
	for {
		select {
		case data := <-c.send:
			if err := c.write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *client) write(data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
