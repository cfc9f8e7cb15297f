package game

import (
	"time"

	"github.com/rs/zerolog/log"
)

// =============================================================================
// TIMER MANAGEMENT
// =============================================================================

// Clock abstracts wall time so phase timers can be driven by tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// timerHandle is a cancellable timer owned by a room. Its expiry is posted
// into the room inbox and dropped there if the handle was cancelled meanwhile.
// Only the room loop reads or writes stopped.
type timerHandle struct {
	name    string
	endsAt  time.Time
	timer   Timer
	stopped bool
}

// startTimer arms a room-owned timer. onExpire runs on the room loop.
func (r *Room) startTimer(name string, d time.Duration, onExpire func()) *timerHandle {
	h := &timerHandle{
		name:   name,
		endsAt: r.clock.Now().Add(d),
	}

	h.timer = r.clock.AfterFunc(d, func() {
		r.post(func() {
			if h.stopped {
				log.Debug().Str("room", r.ID).Str("timer", h.name).Msg("[startTimer] stale expiry dropped")
				return
			}
			h.stopped = true
			log.Debug().Str("room", r.ID).Str("timer", h.name).Msg("[startTimer] timer expired")
			onExpire()
		})
	})

	log.Debug().Str("room", r.ID).Str("timer", name).Dur("duration", d).Msg("[startTimer] timer armed")
	return h
}

func (h *timerHandle) cancel() {
	if h == nil || h.stopped {
		return
	}
	h.stopped = true
	h.timer.Stop()
}

// deadline is the absolute expiry so late joiners can compute the remaining time.
func (h *timerHandle) deadline() time.Time {
	if h == nil {
		return time.Time{}
	}
	return h.endsAt
}

func (h *timerHandle) active() bool {
	return h != nil && !h.stopped
}

// =============================================================================
// RECONNECTION AND CLEANUP TIMERS
// =============================================================================

// armReconnect keeps a disconnected player's slot for the grace window.
// At most one reconnection timer exists per name.
func (r *Room) armReconnect(name string) {
	if r.reconnect[name].active() {
		log.Debug().Str("room", r.ID).Str("player", name).Msg("[armReconnect] timer already running")
		return
	}

	r.reconnect[name] = r.startTimer("reconnect:"+name, r.opts.ReconnectGrace, func() {
		delete(r.reconnect, name)
		p, ok := r.players[name]
		if !ok || p.IsConnected() {
			return
		}
		log.Info().Str("room", r.ID).Str("player", name).Msg("[armReconnect] grace window lapsed, removing player")
		r.handlePlayerLeave(name)
	})
}

func (r *Room) cancelReconnect(name string) {
	if h, ok := r.reconnect[name]; ok {
		h.cancel()
		delete(r.reconnect, name)
		log.Debug().Str("room", r.ID).Str("player", name).Msg("[cancelReconnect] reconnection timer cancelled")
	}
}

func (r *Room) armCleanup() {
	if r.cleanup.active() {
		return
	}

	r.cleanup = r.startTimer("cleanup", r.opts.CleanupGrace, func() {
		r.cleanup = nil
		if r.liveConnections() > 0 {
			return
		}
		log.Info().Str("room", r.ID).Msg("[armCleanup] room empty past grace period, deleting")
		r.registry.DeleteRoom(r.ID)
	})
}

func (r *Room) disarmCleanup() {
	if r.cleanup != nil {
		r.cleanup.cancel()
		r.cleanup = nil
	}
}

// releaseTimers cancels every timer the room still owns.
func (r *Room) releaseTimers() {
	for name := range r.reconnect {
		r.cancelReconnect(name)
	}
	r.disarmCleanup()
	r.state.exit()
}
