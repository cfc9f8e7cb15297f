package game

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scythe504/linkrace-backend/internal"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// FAKE CLOCK
// =============================================================================

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and fires due timers in deadline order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// =============================================================================
// FAKE CONNECTION
// =============================================================================

type fakeConn struct {
	id string

	mu       sync.Mutex
	msgs     []internal.Message[any]
	closed   bool
	reason   string
	failSend bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: uuid.NewString()}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(msg internal.Message[any]) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.failSend {
		return errors.New("send failed")
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *fakeConn) Close(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.reason = reason
	}
}

func (c *fakeConn) messages(msgType string) []internal.Message[any] {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []internal.Message[any]
	for _, m := range c.msgs {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) lastState(t *testing.T) internal.GameStateData {
	t.Helper()
	states := c.messages(internal.MsgGameState)
	require.NotEmpty(t, states, "no game_state received")
	data, ok := states[len(states)-1].Data.(internal.GameStateData)
	require.True(t, ok)
	return data
}

func (c *fakeConn) closeReason() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.reason
}

// =============================================================================
// FAKE COLLABORATORS
// =============================================================================

type fakePaths struct {
	mu        sync.Mutex
	distances map[string]int
	calls     int
}

func (f *fakePaths) FetchShortestPaths(_ context.Context, source, _ string) (*internal.PathInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	d, ok := f.distances[internal.NormalizeRef(source)]
	if !ok {
		return nil, ErrPathNotFound
	}
	return &internal.PathInfo{Length: d, PathCount: 1, ExamplePath: []string{source}}, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []internal.RoomEvent
}

func (f *fakeEvents) Publish(_ context.Context, ev internal.RoomEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeEvents) types() []internal.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]internal.EventType, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.Type
	}
	return out
}

// =============================================================================
// ROOM FIXTURES
// =============================================================================

type fixture struct {
	t      *testing.T
	clock  *fakeClock
	reg    *Registry
	room   *Room
	conns  map[string]*fakeConn
	events *fakeEvents
}

type fixtureOption func(*Options, *Deps)

func withPaths(p PathFinder) fixtureOption {
	return func(_ *Options, d *Deps) { d.Paths = p }
}

func newRegistryFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	clock := newFakeClock()
	events := &fakeEvents{}
	o := DefaultOptions()
	d := Deps{Clock: clock, Events: events}
	for _, opt := range opts {
		opt(&o, &d)
	}
	reg := NewRegistry(o, d)
	t.Cleanup(reg.Shutdown)
	return &fixture{t: t, clock: clock, reg: reg, conns: map[string]*fakeConn{}, events: events}
}

// newFixture creates a room owned by alice with the given config tweaks.
func newFixture(t *testing.T, configure func(*internal.RoomConfig), opts ...fixtureOption) *fixture {
	t.Helper()
	f := newRegistryFixture(t, opts...)

	cfg := internal.DefaultRoomConfig()
	cfg.CountdownSeconds = 10
	if configure != nil {
		configure(&cfg)
	}

	room, err := f.reg.CreateRoom(context.Background(), CreateRoomRequest{
		Name:    "test",
		Start:   "Alpha",
		End:     "Omega",
		Creator: "alice",
		Config:  cfg,
	})
	require.NoError(t, err)
	f.room = room

	// wait for the background preview merge so later version checks are stable
	require.Eventually(t, func() bool {
		snap, err := room.Snapshot()
		return err == nil && snap.Preview != ""
	}, 2*time.Second, 5*time.Millisecond)
	return f
}

func (f *fixture) join(name string, role internal.PlayerRole) *fakeConn {
	f.t.Helper()
	conn := newFakeConn()
	require.NoError(f.t, f.room.Join(name, role, conn))
	f.conns[name] = conn
	return conn
}

func (f *fixture) joinPlayers(names ...string) {
	f.t.Helper()
	for _, name := range names {
		f.join(name, internal.RolePlayer)
	}
}

func (f *fixture) do(name string, cmd Command) error {
	f.t.Helper()
	return f.room.Dispatch(name, cmd)
}

func (f *fixture) must(name string, cmd Command) {
	f.t.Helper()
	require.NoError(f.t, f.do(name, cmd))
}

// advance moves the clock and lets the room loop run whatever fired.
func (f *fixture) advance(d time.Duration) {
	f.t.Helper()
	f.clock.Advance(d)
	f.flush()
}

func (f *fixture) flush() {
	f.t.Helper()
	_ = f.room.exec(func() error { return nil })
}

func (f *fixture) snapshot() internal.GameStateData {
	f.t.Helper()
	snap, err := f.room.Snapshot()
	require.NoError(f.t, err)
	return snap
}

func (f *fixture) phase() internal.GamePhase {
	return f.room.Phase()
}

// inspect runs fn on the room loop.
func (f *fixture) inspect(fn func(r *Room)) {
	f.t.Helper()
	require.NoError(f.t, f.room.exec(func() error {
		fn(f.room)
		return nil
	}))
}

func (f *fixture) player(name string) internal.PlayerSnapshot {
	f.t.Helper()
	snap := f.snapshot()
	for _, p := range append(snap.Players, snap.Observers...) {
		if p.Name == name {
			return p
		}
	}
	f.t.Fatalf("player %q not in snapshot", name)
	return internal.PlayerSnapshot{}
}

func lastEntry(p internal.PlayerSnapshot) internal.PathEntry {
	return p.Path[len(p.Path)-1]
}

func names(players []internal.PlayerSnapshot) []string {
	out := make([]string, len(players))
	for i, p := range players {
		out[i] = p.Name
	}
	return out
}
