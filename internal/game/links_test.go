package game

import (
	"testing"
	"time"

	"github.com/scythe504/linkrace-backend/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func creatorContinues(c *internal.RoomConfig) {
	c.Continuation = internal.ContinueCreator
}

func TestBothSubmitEarlyPauses(t *testing.T) {
	f := newFixture(t, creatorContinues)
	f.joinPlayers("alice", "bob")
	f.must("alice", StartGameCommand{})
	require.Equal(t, internal.PhaseRunning, f.phase())

	f.must("alice", SelectLinkCommand{Ref: "Beta"})
	snap := f.snapshot()
	require.Equal(t, internal.PhaseWaiting, snap.Phase)
	assert.Equal(t, f.clock.Now().Add(10*time.Second), snap.Waiting.EndsAt)
	assert.Equal(t, []string{"alice"}, snap.Waiting.Submitted)

	f.advance(time.Second)
	f.must("bob", SelectLinkCommand{Ref: "Gamma"})

	snap = f.snapshot()
	assert.Equal(t, internal.PhasePaused, snap.Phase)
	assert.Equal(t, []string{"alice"}, snap.Paused.Awaiting)
	assert.Len(t, f.conns["alice"].messages(internal.MsgRequestContinueGame), 1)

	// the countdown was cancelled with the waiting phase
	f.advance(time.Minute)
	assert.Equal(t, internal.PhasePaused, f.phase())
	assert.Empty(t, f.conns["bob"].messages(internal.MsgRequestRandomURL))

	f.must("alice", ContinueGameCommand{})
	assert.Equal(t, internal.PhaseRunning, f.phase())
	assert.Equal(t, 2, f.snapshot().Round)
}

func TestSelectLinkRejections(t *testing.T) {
	f := newFixture(t, creatorContinues)
	f.joinPlayers("alice", "bob", "carol")
	f.join("olga", internal.RoleObserver)

	assert.ErrorIs(t, f.do("alice", SelectLinkCommand{Ref: "Beta"}), ErrWrongPhase)

	f.must("alice", StartGameCommand{})
	assert.ErrorIs(t, f.do("bob", SelectLinkCommand{Ref: "  "}), ErrInvalidRef)
	assert.ErrorIs(t, f.do("olga", SelectLinkCommand{Ref: "Beta"}), ErrNotActive)

	f.must("alice", SelectLinkCommand{Ref: "Beta"})
	assert.ErrorIs(t, f.do("alice", SelectLinkCommand{Ref: "Delta"}), ErrAlreadySubmitted)
	assert.Len(t, f.player("alice").Path, 2)

	f.advance(10 * time.Second)
	assert.ErrorIs(t, f.do("bob", SelectLinkCommand{Ref: "Late"}), ErrSubmissionLapsed)
}

func TestReachingTargetFinishes(t *testing.T) {
	f := newFixture(t, nil)
	f.joinPlayers("alice", "bob")
	f.must("alice", StartGameCommand{})
	f.must("alice", SelectLinkCommand{Ref: "Beta"})

	f.must("bob", SelectLinkCommand{Ref: "omega"})

	snap := f.snapshot()
	require.Equal(t, internal.PhaseFinished, snap.Phase)
	assert.Equal(t, "bob", snap.Winner)
	require.NotNil(t, snap.Finished)
	require.Len(t, snap.Finished.Ranking, 2)
	assert.Equal(t, "bob", snap.Finished.Ranking[0].Name)
	assert.True(t, snap.Finished.Ranking[0].Reached)
	assert.Contains(t, f.events.types(), internal.EventGameFinished)

	// the winning move closes the path
	assert.Equal(t, internal.EffectEnd, lastEntry(f.player("bob")).Effect)
	assert.Equal(t, internal.EffectNone, lastEntry(f.player("alice")).Effect)

	// finished accepts nothing but a restart
	assert.ErrorIs(t, f.do("alice", SelectLinkCommand{Ref: "Omega"}), ErrWrongPhase)
}

func TestCountdownRandomFallback(t *testing.T) {
	f := newFixture(t, creatorContinues)
	f.joinPlayers("alice", "bob")
	f.must("alice", StartGameCommand{})
	f.must("alice", SelectLinkCommand{Ref: "Beta"})

	f.advance(10 * time.Second)
	snap := f.snapshot()
	require.Equal(t, internal.PhaseWaiting, snap.Phase)
	assert.True(t, snap.Waiting.Lapsed)

	reqs := f.conns["bob"].messages(internal.MsgRequestRandomURL)
	require.Len(t, reqs, 1)
	data := reqs[0].Data.(internal.RequestRandomURLData)
	assert.Equal(t, "bob", data.Player)
	assert.Equal(t, "Alpha", data.Current)

	// only the player the request went to may answer it
	assert.ErrorIs(t, f.do("alice", RandomURLCommand{Ref: "Zeta"}), ErrNotAwaited)

	f.must("bob", RandomURLCommand{Ref: "Delta"})
	assert.Equal(t, internal.PhasePaused, f.phase())

	entry := lastEntry(f.player("bob"))
	assert.Equal(t, "Delta", entry.Ref)
	assert.Equal(t, internal.EffectRandom, entry.Effect)
}

func TestCountdownFallbackRetriesThenOwnPath(t *testing.T) {
	f := newFixture(t, creatorContinues)
	f.joinPlayers("alice", "bob")
	f.must("alice", StartGameCommand{})

	// round one gives bob some history to fall back on
	f.must("alice", SelectLinkCommand{Ref: "Beta"})
	f.must("bob", SelectLinkCommand{Ref: "Gamma"})
	f.must("alice", ContinueGameCommand{})
	require.Equal(t, internal.PhaseRunning, f.phase())

	f.must("alice", SelectLinkCommand{Ref: "Delta"})
	f.advance(10 * time.Second)
	for i := 0; i < 2; i++ {
		f.advance(3 * time.Second)
		require.Equal(t, internal.PhaseWaiting, f.phase())
	}
	assert.Len(t, f.conns["bob"].messages(internal.MsgRequestRandomURL), 3)

	f.advance(3 * time.Second)
	assert.Equal(t, internal.PhasePaused, f.phase())

	entry := lastEntry(f.player("bob"))
	assert.Equal(t, "Alpha", entry.Ref)
	assert.Equal(t, internal.EffectRandom, entry.Effect)
}

func TestCountdownResolvesDisconnectedImmediately(t *testing.T) {
	f := newFixture(t, creatorContinues)
	f.joinPlayers("alice", "bob")
	f.must("alice", StartGameCommand{})
	f.must("alice", SelectLinkCommand{Ref: "Beta"})

	f.room.Disconnect("bob", f.conns["bob"].ID())
	f.advance(10 * time.Second)

	assert.Equal(t, internal.PhasePaused, f.phase())
	assert.Equal(t, "Alpha", lastEntry(f.player("bob")).Ref)
}

func TestCountdownUserSelectedFallback(t *testing.T) {
	f := newFixture(t, func(c *internal.RoomConfig) {
		c.Continuation = internal.ContinueCreator
		c.LinkChooser = internal.ChooserUserSelected
	})
	f.joinPlayers("alice", "bob", "carol")
	f.must("alice", StartGameCommand{})

	f.must("bob", SelectLinkCommand{Ref: "Beta"})
	f.advance(10 * time.Second)

	reqs := f.conns["bob"].messages(internal.MsgSelectForMissing)
	require.Len(t, reqs, 1)
	data := reqs[0].Data.(internal.SelectForMissingData)
	assert.Equal(t, []string{"alice", "carol"}, data.Players)
	assert.Empty(t, f.conns["alice"].messages(internal.MsgSelectForMissing))

	assert.ErrorIs(t, f.do("alice", SelectForMissingCommand{Selections: map[string]string{"carol": "X"}}), ErrNotAwaited)

	f.must("bob", SelectForMissingCommand{Selections: map[string]string{"alice": "Zeta"}})
	assert.Equal(t, internal.PhaseWaiting, f.phase())
	assert.Equal(t, internal.EffectUserSelected, lastEntry(f.player("alice")).Effect)

	f.must("bob", SelectForMissingCommand{Selections: map[string]string{"carol": "Eta", "bob": "ignored"}})
	assert.Equal(t, internal.PhasePaused, f.phase())
	assert.Equal(t, "Eta", lastEntry(f.player("carol")).Ref)
	assert.Equal(t, "Beta", lastEntry(f.player("bob")).Ref)
}

func TestFallbackReachingTargetFinishes(t *testing.T) {
	f := newFixture(t, nil)
	f.joinPlayers("alice", "bob")
	f.must("alice", StartGameCommand{})
	f.must("alice", SelectLinkCommand{Ref: "Beta"})
	f.advance(10 * time.Second)

	f.must("bob", RandomURLCommand{Ref: "Omega"})
	snap := f.snapshot()
	assert.Equal(t, internal.PhaseFinished, snap.Phase)
	assert.Equal(t, "bob", snap.Winner)

	entry := lastEntry(f.player("bob"))
	assert.Equal(t, "Omega", entry.Ref)
	assert.Equal(t, internal.EffectEnd, entry.Effect)
}

func userSelected(c *internal.RoomConfig) {
	c.Continuation = internal.ContinueCreator
	c.LinkChooser = internal.ChooserUserSelected
}

func TestSurrenderedSubmitterDoesNotPick(t *testing.T) {
	f := newFixture(t, userSelected)
	f.joinPlayers("alice", "bob", "carol")
	f.must("alice", StartGameCommand{})

	f.must("bob", SelectLinkCommand{Ref: "Beta"})
	f.must("bob", SurrenderCommand{})
	f.advance(10 * time.Second)

	assert.Empty(t, f.conns["bob"].messages(internal.MsgSelectForMissing))
	assert.ErrorIs(t, f.do("bob", SelectForMissingCommand{Selections: map[string]string{"alice": "X", "carol": "Y"}}), ErrNotAwaited)

	// both fall back to their own path right away
	assert.Equal(t, internal.PhasePaused, f.phase())
	for _, name := range []string{"alice", "carol"} {
		entry := lastEntry(f.player(name))
		assert.Equal(t, "Alpha", entry.Ref, name)
		assert.Equal(t, internal.EffectRandom, entry.Effect, name)
	}
}

func TestSubmitterSurrendersAfterPickRequest(t *testing.T) {
	f := newFixture(t, userSelected)
	f.joinPlayers("alice", "bob", "carol")
	f.must("alice", StartGameCommand{})

	f.must("bob", SelectLinkCommand{Ref: "Beta"})
	f.advance(10 * time.Second)
	require.Len(t, f.conns["bob"].messages(internal.MsgSelectForMissing), 1)

	f.must("bob", SurrenderCommand{})
	err := f.do("bob", SelectForMissingCommand{Selections: map[string]string{"alice": "X", "carol": "Y"}})
	assert.ErrorIs(t, err, ErrNotActive)
	assert.Equal(t, "Alpha", lastEntry(f.player("alice")).Ref)
	assert.Equal(t, internal.PhaseWaiting, f.phase())

	// the next retry finds no delegate
	f.advance(3 * time.Second)
	assert.Equal(t, internal.PhasePaused, f.phase())
	assert.Len(t, f.conns["bob"].messages(internal.MsgSelectForMissing), 1)
	assert.Equal(t, internal.EffectRandom, lastEntry(f.player("alice")).Effect)
	assert.Equal(t, internal.EffectRandom, lastEntry(f.player("carol")).Effect)
}
