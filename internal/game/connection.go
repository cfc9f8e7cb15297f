package game

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/linkrace-backend/internal"
)

// =============================================================================
// CONNECTION HANDLING
// =============================================================================

// Join attaches conn to the room as a new participant or as the reconnection
// of an existing one.
func (r *Room) Join(name string, role internal.PlayerRole, conn internal.Conn) error {
	return r.exec(func() error {
		return r.handleJoin(name, role, conn)
	})
}

// Disconnect handles a connection that dropped without a leave message.
// Closes from a connection that was already replaced are ignored.
func (r *Room) Disconnect(name, connID string) {
	r.post(func() {
		r.handleDisconnect(name, connID)
	})
}

// Leave handles an explicit leave.
func (r *Room) Leave(name, connID string) error {
	return r.exec(func() error {
		p, ok := r.players[name]
		if !ok {
			return ErrPlayerNotFound
		}
		if p.Conn == nil || p.Conn.ID() != connID {
			return ErrNotEligible
		}
		p.Conn = nil
		r.handlePlayerLeave(name)
		return nil
	})
}

func (r *Room) handleJoin(name string, role internal.PlayerRole, conn internal.Conn) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > internal.MaxNameLength || !role.Valid() || conn == nil {
		log.Warn().Str("room", r.ID).Str("player", name).Str("role", string(role)).Msg("[handleJoin] invalid join request")
		return ErrInvalidJoin
	}

	p, exists := r.players[name]
	if exists {
		if p.IsConnected() {
			log.Warn().Str("room", r.ID).Str("player", name).Msg("[handleJoin] name already connected")
			return ErrNameTaken
		}

		p.Conn = conn
		r.cancelReconnect(name)
		log.Info().Str("room", r.ID).Str("player", name).Str("phase", string(r.state.phase())).Msg("[handleJoin] player reconnected")
	} else {
		if role == internal.RolePlayer && r.state.phase() != internal.PhaseLobby {
			log.Warn().Str("room", r.ID).Str("player", name).Msg("[handleJoin] game already started")
			return ErrGameInProgress
		}
		if role == internal.RolePlayer && r.racerCount() >= r.Config.MaxPlayers {
			log.Warn().Str("room", r.ID).Str("player", name).Int("max", r.Config.MaxPlayers).Msg("[handleJoin] room full")
			return ErrRoomFull
		}

		p = internal.NewPlayer(name, role, r.clock.Now())
		p.Conn = conn
		r.players[name] = p
		r.order = append(r.order, name)
		log.Info().Str("room", r.ID).Str("player", name).Str("role", string(role)).Int("participants", len(r.players)).Msg("[handleJoin] player joined")
	}

	r.disarmCleanup()
	if n := r.mailbox.flush(name, conn); n > 0 {
		log.Debug().Str("room", r.ID).Str("player", name).Int("messages", n).Msg("[handleJoin] flushed mailbox")
	}
	r.broadcastState()
	return nil
}

func (r *Room) handleDisconnect(name, connID string) {
	p, ok := r.players[name]
	if !ok || p.Conn == nil || p.Conn.ID() != connID {
		log.Debug().Str("room", r.ID).Str("player", name).Msg("[handleDisconnect] stale connection closed")
		return
	}

	p.Conn = nil
	r.armReconnect(name)
	log.Info().Str("room", r.ID).Str("player", name).Dur("grace", r.opts.ReconnectGrace).Msg("[handleDisconnect] player dropped, holding slot")

	if r.liveConnections() == 0 {
		r.armCleanup()
	}
	r.broadcastState()
}

// handlePlayerLeave removes a participant for good. The creator leaving
// closes the room for everyone.
func (r *Room) handlePlayerLeave(name string) {
	if name == r.Creator {
		log.Info().Str("room", r.ID).Msg("[handlePlayerLeave] creator left, closing room")
		for _, p := range r.players {
			if p.Name == name || p.Conn == nil {
				continue
			}
			_ = p.Conn.Send(internal.Message[any]{
				Type: internal.MsgPlayerKicked,
				Data: internal.PlayerKickedData{Player: p.Name, Reason: internal.ReasonRoomClosed},
			})
			p.Conn.Close(internal.ReasonRoomClosed)
			p.Conn = nil
		}
		r.registry.DeleteRoom(r.ID)
		return
	}

	r.removePlayer(name)
}

// removePlayer frees the slot and re-checks whatever the current phase was
// waiting on.
func (r *Room) removePlayer(name string) {
	if _, ok := r.players[name]; !ok {
		return
	}

	delete(r.players, name)
	r.removeFromOrder(name)
	r.mailbox.drop(name)
	r.cancelReconnect(name)
	moved := r.forget(name)
	log.Info().Str("room", r.ID).Str("player", name).Int("participants", len(r.players)).Msg("[removePlayer] player removed")

	if r.liveConnections() == 0 {
		r.armCleanup()
	}
	if !moved && !r.reevaluate() {
		r.broadcastState()
	}
}
