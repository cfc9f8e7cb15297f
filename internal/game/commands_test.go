package game

import (
	"testing"

	"github.com/scythe504/linkrace-backend/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Command
		err  error
	}{
		{"leave", `{"type":"leave"}`, LeaveCommand{}, nil},
		{"surrender ignores data", `{"type":"surrender","data":{"x":1}}`, SurrenderCommand{}, nil},
		{"select link", `{"type":"selectLink","data":{"ref":"Go_(programming_language)"}}`, SelectLinkCommand{Ref: "Go_(programming_language)"}, nil},
		{"random url", `{"type":"randomUrl","data":{"ref":"Rome"}}`, RandomURLCommand{Ref: "Rome"}, nil},
		{"select for missing", `{"type":"selectForMissingPlayers","data":{"selections":{"bob":"Paris"}}}`,
			SelectForMissingCommand{Selections: map[string]string{"bob": "Paris"}}, nil},
		{"use addition", `{"type":"useAddition","data":{"addition":"bomb","target":"bob"}}`,
			UseAdditionCommand{Addition: internal.AdditionBomb, Target: "bob"}, nil},
		{"give addition", `{"type":"giveAddition","data":{"target":"bob","addition":"swap","amount":2}}`,
			GiveAdditionCommand{Target: "bob", Addition: internal.AdditionSwap, Amount: 2}, nil},
		{"kick", `{"type":"kickUser","data":{"player":"bob"}}`, KickUserCommand{Player: "bob"}, nil},
		{"start", `{"type":"startGame"}`, StartGameCommand{}, nil},
		{"restart", `{"type":"restartGame"}`, RestartGameCommand{}, nil},
		{"continue", `{"type":"continueGame"}`, ContinueGameCommand{}, nil},
		{"ready", `{"type":"readyToContinue"}`, ReadyToContinueCommand{}, nil},

		{"unknown type", `{"type":"draw"}`, nil, ErrUnknownCommand},
		{"not json", `select`, nil, ErrMalformedCommand},
		{"missing payload", `{"type":"selectLink"}`, nil, ErrMalformedCommand},
		{"wrong payload", `{"type":"useAddition","data":"bomb"}`, nil, ErrMalformedCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand([]byte(tt.raw))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDispatchUnknownPlayer(t *testing.T) {
	f := newFixture(t, nil)
	f.join("alice", internal.RolePlayer)

	assert.ErrorIs(t, f.do("mallory", StartGameCommand{}), ErrPlayerNotFound)
	assert.ErrorIs(t, f.do("alice", LeaveCommand{}), ErrUnknownCommand)
}

func TestSurrender(t *testing.T) {
	f := newFixture(t, creatorContinues)
	f.joinPlayers("alice", "bob", "carol")

	assert.ErrorIs(t, f.do("bob", SurrenderCommand{}), ErrWrongPhase)

	f.must("alice", StartGameCommand{})
	f.must("bob", SelectLinkCommand{Ref: "Beta"})
	f.must("carol", SurrenderCommand{})

	snap := f.snapshot()
	assert.Equal(t, []string{"alice", "bob"}, names(snap.Players))
	require.Equal(t, []string{"carol"}, names(snap.Observers))
	carol := snap.Observers[0]
	assert.True(t, carol.Surrendered)
	assert.Equal(t, internal.EffectSurrender, lastEntry(carol).Effect)
	assert.Equal(t, "Alpha", lastEntry(carol).Ref)

	assert.ErrorIs(t, f.do("carol", SurrenderCommand{}), ErrNotActive)
	assert.ErrorIs(t, f.do("carol", SelectLinkCommand{Ref: "Gamma"}), ErrNotActive)

	// carol no longer holds up the round
	f.must("alice", SelectLinkCommand{Ref: "Delta"})
	assert.Equal(t, internal.PhasePaused, f.phase())
}

func TestSurrenderCompletesWaiting(t *testing.T) {
	f := newFixture(t, creatorContinues)
	f.joinPlayers("alice", "bob", "carol")
	f.must("alice", StartGameCommand{})
	f.must("alice", SelectLinkCommand{Ref: "Beta"})
	f.must("bob", SelectLinkCommand{Ref: "Gamma"})

	f.must("carol", SurrenderCommand{})
	assert.Equal(t, internal.PhasePaused, f.phase())
}

func TestLastSurrenderFinishes(t *testing.T) {
	f := newFixture(t, nil)
	f.joinPlayers("alice", "bob")
	f.must("alice", StartGameCommand{})

	f.must("alice", SurrenderCommand{})
	assert.Equal(t, internal.PhaseRunning, f.phase())
	f.must("bob", SurrenderCommand{})

	snap := f.snapshot()
	assert.Equal(t, internal.PhaseFinished, snap.Phase)
	assert.Empty(t, snap.Winner)
	require.Len(t, snap.Finished.Ranking, 2)
	assert.Equal(t, "alice", snap.Finished.Ranking[0].Name)
}

func TestCreatorSurrenderStillConfirms(t *testing.T) {
	f := newFixture(t, creatorContinues)
	f.joinPlayers("alice", "bob", "carol")
	f.must("alice", StartGameCommand{})
	f.must("bob", SelectLinkCommand{Ref: "Beta"})
	f.must("carol", SelectLinkCommand{Ref: "Gamma"})
	f.must("alice", SelectLinkCommand{Ref: "Delta"})
	require.Equal(t, internal.PhasePaused, f.phase())

	f.must("alice", SurrenderCommand{})
	snap := f.snapshot()
	assert.Equal(t, internal.PhasePaused, snap.Phase)
	assert.Equal(t, []string{"alice"}, snap.Paused.Awaiting)

	f.must("alice", ContinueGameCommand{})
	assert.Equal(t, internal.PhaseRunning, f.phase())
}

func TestDemocraticContinue(t *testing.T) {
	f := newFixture(t, func(c *internal.RoomConfig) {
		c.Continuation = internal.ContinueDemocratic
	})
	f.joinPlayers("alice", "bob", "carol")
	f.must("alice", StartGameCommand{})
	for _, name := range []string{"alice", "bob", "carol"} {
		f.must(name, SelectLinkCommand{Ref: name + "-1"})
	}
	require.Equal(t, internal.PhasePaused, f.phase())

	f.must("bob", ContinueGameCommand{})
	assert.ErrorIs(t, f.do("bob", ContinueGameCommand{}), ErrAlreadyConfirmed)
	assert.Equal(t, []string{"bob"}, f.snapshot().Paused.Confirmed)

	// a leaver stops counting
	require.NoError(t, f.room.Leave("carol", f.conns["carol"].ID()))
	require.Equal(t, internal.PhasePaused, f.phase())

	f.must("alice", ContinueGameCommand{})
	assert.Equal(t, internal.PhaseRunning, f.phase())
}

func TestContinueOnlyWhenAwaited(t *testing.T) {
	f := newFixture(t, creatorContinues)
	f.joinPlayers("alice", "bob")
	assert.ErrorIs(t, f.do("alice", ContinueGameCommand{}), ErrWrongPhase)

	f.must("alice", StartGameCommand{})
	f.must("alice", SelectLinkCommand{Ref: "Beta"})
	f.must("bob", SelectLinkCommand{Ref: "Gamma"})
	assert.ErrorIs(t, f.do("bob", ContinueGameCommand{}), ErrNotEligible)
}
