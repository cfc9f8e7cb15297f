package game

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/linkrace-backend/internal"
)

// =============================================================================
// ROOM AGGREGATE
// =============================================================================

const inboxSize = 64

// Room is one isolated game session. Every field below the identity block is
// owned by the room loop; other goroutines reach it only through post/exec.
type Room struct {
	ID        string
	Name      string
	Start     string
	End       string
	Creator   string
	CreatedAt time.Time
	Config    internal.RoomConfig

	state    phaseState
	players  map[string]*internal.Player
	order    []string
	winner   string
	round    int
	seq      int
	version  uint64
	preview  string
	shortest *internal.PathInfo

	mailbox   *mailbox
	reconnect map[string]*timerHandle
	cleanup   *timerHandle

	registry *Registry
	clock    Clock
	opts     Options
	deps     Deps

	inbox     chan func()
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

func newRoom(id string, req CreateRoomRequest, g *Registry) *Room {
	return &Room{
		ID:        id,
		Name:      req.Name,
		Start:     req.Start,
		End:       req.End,
		Creator:   req.Creator,
		CreatedAt: g.deps.Clock.Now(),
		Config:    req.Config,

		state:     &lobbyState{},
		players:   make(map[string]*internal.Player),
		mailbox:   newMailbox(),
		reconnect: make(map[string]*timerHandle),

		registry: g,
		clock:    g.deps.Clock,
		opts:     g.opts,
		deps:     g.deps,

		inbox:   make(chan func(), inboxSize),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// =============================================================================
// ACTOR LOOP
// =============================================================================

func (r *Room) run() {
	log.Debug().Str("room", r.ID).Msg("[run] room loop started")
	defer func() {
		r.releaseTimers()
		r.closeConnections(internal.ReasonRoomClosed)
		close(r.stopped)
		log.Debug().Str("room", r.ID).Msg("[run] room loop stopped")
	}()

	for {
		select {
		case <-r.quit:
			return
		case fn := <-r.inbox:
			select {
			case <-r.quit:
				return
			default:
			}
			fn()
		}
	}
}

// post queues fn on the room loop. It reports false once the room is closed.
func (r *Room) post(fn func()) bool {
	select {
	case <-r.quit:
		return false
	default:
	}

	select {
	case r.inbox <- fn:
		return true
	case <-r.quit:
		return false
	}
}

// exec runs fn on the room loop and waits for its result.
// Never call it from the loop itself.
func (r *Room) exec(fn func() error) error {
	done := make(chan error, 1)
	if !r.post(func() { done <- fn() }) {
		return ErrRoomClosed
	}

	select {
	case err := <-done:
		return err
	case <-r.quit:
	}

	// the loop only stops between closures, so fn either ran to completion or never ran
	<-r.stopped
	select {
	case err := <-done:
		return err
	default:
		return ErrRoomClosed
	}
}

func (r *Room) stop() {
	r.closeOnce.Do(func() {
		close(r.quit)
	})
}

// Done is closed once the room has been deleted.
func (r *Room) Done() <-chan struct{} {
	return r.quit
}

// Phase returns the current phase, or "" once the room is closed.
func (r *Room) Phase() internal.GamePhase {
	var phase internal.GamePhase
	if err := r.exec(func() error {
		phase = r.state.phase()
		return nil
	}); err != nil {
		return ""
	}
	return phase
}

// =============================================================================
// PARTICIPANTS
// =============================================================================

// participants returns every player and observer in join order.
func (r *Room) participants() []*internal.Player {
	out := make([]*internal.Player, 0, len(r.order))
	for _, name := range r.order {
		if p, ok := r.players[name]; ok {
			out = append(out, p)
		}
	}
	return out
}

// activePlayers returns players still racing, in join order.
func (r *Room) activePlayers() []*internal.Player {
	var out []*internal.Player
	for _, p := range r.participants() {
		if p.Active() {
			out = append(out, p)
		}
	}
	return out
}

func (r *Room) racerCount() int {
	n := 0
	for _, p := range r.players {
		if p.Role == internal.RolePlayer {
			n++
		}
	}
	return n
}

func (r *Room) liveConnections() int {
	n := 0
	for _, p := range r.players {
		if p.IsConnected() {
			n++
		}
	}
	return n
}

func (r *Room) appendEntry(p *internal.Player, ref string, effect internal.Effect) internal.PathEntry {
	r.seq++
	entry := internal.PathEntry{
		Ref:    ref,
		Effect: effect,
		Order:  r.seq,
		At:     r.clock.Now(),
	}
	p.Path = append(p.Path, entry)
	return entry
}

func (r *Room) closeConnections(reason string) {
	for _, p := range r.players {
		if p.Conn != nil {
			p.Conn.Close(reason)
			p.Conn = nil
		}
	}
}

func (r *Room) removeFromOrder(name string) {
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
