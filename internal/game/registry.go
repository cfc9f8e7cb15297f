package game

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/linkrace-backend/internal"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// PathFinder estimates the shortest link path between two references.
// It returns ErrPathNotFound when the references are not connected.
type PathFinder interface {
	FetchShortestPaths(ctx context.Context, source, target string) (*internal.PathInfo, error)
}

// PreviewFetcher returns a plain-text excerpt of a reference.
type PreviewFetcher interface {
	FetchPreview(ctx context.Context, ref string) (string, error)
}

// TitleResolver turns a user supplied reference into its canonical form.
type TitleResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// EventPublisher receives room lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event internal.RoomEvent) error
}

// Deps are the collaborators shared by every room. Nil lookups disable the
// corresponding feature.
type Deps struct {
	Clock    Clock
	Paths    PathFinder
	Previews PreviewFetcher
	Titles   TitleResolver
	Events   EventPublisher
}

type Options struct {
	MaxRooms              int
	ReconnectGrace        time.Duration
	CleanupGrace          time.Duration
	FallbackRetryInterval time.Duration
	FallbackRetries       int
	LookupTimeout         time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxRooms:              500,
		ReconnectGrace:        30 * time.Second,
		CleanupGrace:          5 * time.Minute,
		FallbackRetryInterval: 3 * time.Second,
		FallbackRetries:       2,
		LookupTimeout:         10 * time.Second,
	}
}

// =============================================================================
// ROOM REGISTRY
// =============================================================================

const (
	idAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	maxIDAttempts = 16
	previewNone   = "None Found"
)

type CreateRoomRequest struct {
	Name    string              `json:"name"`
	Start   string              `json:"start"`
	End     string              `json:"end"`
	Creator string              `json:"creator"`
	Config  internal.RoomConfig `json:"config"`
}

// Registry indexes live rooms by id. It is the only state shared between rooms.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	opts  Options
	deps  Deps
	newID func() (string, error)
}

func NewRegistry(opts Options, deps Deps) *Registry {
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	return &Registry{
		rooms: make(map[string]*Room),
		opts:  opts,
		deps:  deps,
		newID: generateRoomID,
	}
}

func generateRoomID() (string, error) {
	buf := make([]byte, internal.RoomIDLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(buf), nil
}

func (req *CreateRoomRequest) validate() error {
	req.Name = strings.TrimSpace(req.Name)
	req.Start = strings.TrimSpace(req.Start)
	req.End = strings.TrimSpace(req.End)
	req.Creator = strings.TrimSpace(req.Creator)

	if req.Start == "" || req.End == "" {
		return fmt.Errorf("%w: start and end are required", internal.ErrInvalidConfig)
	}
	if internal.SameRef(req.Start, req.End) {
		return fmt.Errorf("%w: start and end must differ", internal.ErrInvalidConfig)
	}
	if req.Creator == "" || len(req.Creator) > internal.MaxNameLength {
		return fmt.Errorf("%w: creator name must be 1..%d characters", internal.ErrInvalidConfig, internal.MaxNameLength)
	}
	if req.Name == "" {
		req.Name = req.Creator + "'s room"
	}
	return req.Config.Validate()
}

// CreateRoom validates the request, registers a new room and starts its loop.
// Preview and shortest-path lookups complete in the background.
func (g *Registry) CreateRoom(ctx context.Context, req CreateRoomRequest) (*Room, error) {
	if err := req.validate(); err != nil {
		log.Warn().Err(err).Msg("[CreateRoom] rejected room config")
		return nil, err
	}

	req.Start = g.resolveTitle(ctx, req.Start)
	req.End = g.resolveTitle(ctx, req.End)

	g.mu.Lock()
	if g.opts.MaxRooms > 0 && len(g.rooms) >= g.opts.MaxRooms {
		g.mu.Unlock()
		log.Warn().Int("rooms", g.opts.MaxRooms).Msg("[CreateRoom] room limit reached")
		return nil, ErrRoomLimitReached
	}

	var id string
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		candidate, err := g.newID()
		if err != nil {
			g.mu.Unlock()
			return nil, err
		}
		if _, taken := g.rooms[candidate]; !taken {
			id = candidate
			break
		}
		log.Debug().Str("room", candidate).Int("attempt", attempt).Msg("[CreateRoom] id collision, retrying")
	}
	if id == "" {
		g.mu.Unlock()
		return nil, ErrIDExhausted
	}

	room := newRoom(id, req, g)
	g.rooms[id] = room
	count := len(g.rooms)
	g.mu.Unlock()

	go room.run()
	room.post(func() {
		room.armCleanup()
	})
	g.startLookups(room)

	log.Info().
		Str("room", id).
		Str("creator", req.Creator).
		Str("start", req.Start).
		Str("end", req.End).
		Int("rooms", count).
		Msg("[CreateRoom] room created")

	g.publish(internal.RoomEvent{Type: internal.EventRoomCreated, RoomID: id, Phase: internal.PhaseLobby, At: room.CreatedAt})
	return room, nil
}

func (g *Registry) GetRoom(id string) (*Room, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	room, ok := g.rooms[strings.ToUpper(id)]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// DeleteRoom removes the room and stops its loop, which releases every timer
// the room owns. Deleting an unknown id is a no-op.
func (g *Registry) DeleteRoom(id string) {
	g.mu.Lock()
	room, ok := g.rooms[id]
	if ok {
		delete(g.rooms, id)
	}
	g.mu.Unlock()

	if !ok {
		return
	}

	room.stop()
	log.Info().Str("room", id).Msg("[DeleteRoom] room deleted")
	g.publish(internal.RoomEvent{Type: internal.EventRoomDeleted, RoomID: id, At: g.deps.Clock.Now()})
}

func (g *Registry) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// Shutdown deletes every room.
func (g *Registry) Shutdown() {
	g.mu.RLock()
	ids := make([]string, 0, len(g.rooms))
	for id := range g.rooms {
		ids = append(ids, id)
	}
	g.mu.RUnlock()

	for _, id := range ids {
		g.DeleteRoom(id)
	}
}

func (g *Registry) resolveTitle(ctx context.Context, ref string) string {
	if g.deps.Titles == nil {
		return ref
	}

	ctx, cancel := context.WithTimeout(ctx, g.lookupTimeout())
	defer cancel()

	canonical, err := g.deps.Titles.Resolve(ctx, ref)
	if err != nil || canonical == "" {
		log.Debug().Err(err).Str("ref", ref).Msg("[resolveTitle] keeping reference as given")
		return ref
	}
	return canonical
}

func (g *Registry) lookupTimeout() time.Duration {
	if g.opts.LookupTimeout > 0 {
		return g.opts.LookupTimeout
	}
	return 10 * time.Second
}

// startLookups fetches the target preview and the start to end path estimate.
// Results are merged on the room loop and rebroadcast.
func (g *Registry) startLookups(room *Room) {
	start, end := room.Start, room.End

	go func() {
		preview := previewNone
		if g.deps.Previews != nil {
			ctx, cancel := context.WithTimeout(context.Background(), g.lookupTimeout())
			text, err := g.deps.Previews.FetchPreview(ctx, end)
			cancel()
			if err != nil {
				log.Warn().Err(err).Str("room", room.ID).Msg("[startLookups] preview lookup failed")
			} else if text != "" {
				preview = text
			}
		}
		room.post(func() {
			room.preview = preview
			room.broadcastState()
		})
	}()

	if g.deps.Paths == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.lookupTimeout())
		info, err := g.deps.Paths.FetchShortestPaths(ctx, start, end)
		cancel()
		if err != nil {
			if !errors.Is(err, ErrPathNotFound) {
				log.Warn().Err(err).Str("room", room.ID).Msg("[startLookups] shortest path lookup failed")
			}
			return
		}
		room.post(func() {
			room.shortest = info
			room.broadcastState()
		})
	}()
}

func (g *Registry) publish(event internal.RoomEvent) {
	if g.deps.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := g.deps.Events.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("room", event.RoomID).Str("event", string(event.Type)).Msg("[publish] event not published")
	}
}
