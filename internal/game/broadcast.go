package game

import (
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/linkrace-backend/internal"
)

// =============================================================================
// STATE SNAPSHOT & BROADCAST
// =============================================================================

// broadcastState pushes a new versioned snapshot to every participant.
// A finished room stays silent until its ranking is complete.
func (r *Room) broadcastState() {
	if st, ok := r.state.(*finishedState); ok && st.pending {
		log.Debug().Str("room", r.ID).Msg("[broadcastState] ranking pending, holding broadcast")
		return
	}

	r.version++
	snapshot := r.buildSnapshot()
	r.deliverAll(internal.Message[any]{
		Type: internal.MsgGameState,
		Data: snapshot,
	})

	log.Debug().Str("room", r.ID).Uint64("version", r.version).Str("phase", string(snapshot.Phase)).Msg("[broadcastState] state broadcast")
}

func (r *Room) deliver(name string, msg internal.Message[any]) {
	var conn internal.Conn
	if p, ok := r.players[name]; ok {
		conn = p.Conn
	}
	r.mailbox.deliver(name, conn, msg)
}

func (r *Room) deliverAll(msg internal.Message[any]) {
	for _, name := range r.order {
		r.deliver(name, msg)
	}
}

func (r *Room) buildSnapshot() internal.GameStateData {
	data := internal.GameStateData{
		Version:      r.version,
		RoomID:       r.ID,
		Name:         r.Name,
		Start:        r.Start,
		End:          r.End,
		Creator:      r.Creator,
		Phase:        r.state.phase(),
		Round:        r.round,
		CreatedAt:    r.CreatedAt,
		Config:       r.Config,
		Players:      []internal.PlayerSnapshot{},
		Observers:    []internal.PlayerSnapshot{},
		Preview:      r.preview,
		ShortestPath: r.shortest,
		Winner:       r.winner,
	}

	var submitted map[string]int
	switch st := r.state.(type) {
	case *waitingState:
		submitted = st.submitted
		data.Waiting = &internal.WaitingStateData{
			EndsAt:    st.timer.deadline(),
			Submitted: sortedKeys(st.submitted),
			Lapsed:    st.lapsed,
		}
	case *pausedState:
		data.Paused = &internal.PausedStateData{
			Awaiting:  sortedKeys(st.awaiting),
			Confirmed: sortedKeys(st.confirmed),
		}
	case *handoutState:
		data.Handout = &internal.HandoutStateData{
			EndsAt:   st.timer.deadline(),
			CallType: r.Config.Additions.CallType,
			Order:    append([]string(nil), st.order...),
			Eligible: sortedKeys(st.eligible),
			Ready:    sortedKeys(st.ready),
		}
	case *finishedState:
		data.Finished = &internal.FinishedStateData{
			Ranking: append([]internal.RankEntry(nil), st.ranking...),
		}
	}

	for _, p := range r.participants() {
		snap := p.Snapshot()
		snap.IsCreator = p.Name == r.Creator
		_, snap.Submitted = submitted[p.Name]
		if p.Role == internal.RolePlayer {
			data.Players = append(data.Players, snap)
		} else {
			data.Observers = append(data.Observers, snap)
		}
	}
	return data
}

// Snapshot returns the current state view without broadcasting it.
func (r *Room) Snapshot() (internal.GameStateData, error) {
	var data internal.GameStateData
	err := r.exec(func() error {
		data = r.buildSnapshot()
		return nil
	})
	return data, err
}

func (r *Room) Summary() (internal.RoomSummary, error) {
	var summary internal.RoomSummary
	err := r.exec(func() error {
		summary = internal.RoomSummary{
			RoomID:    r.ID,
			Name:      r.Name,
			Start:     r.Start,
			End:       r.End,
			Creator:   r.Creator,
			Phase:     r.state.phase(),
			CreatedAt: r.CreatedAt,
		}
		for _, p := range r.players {
			if p.Role == internal.RolePlayer {
				summary.Players++
			} else {
				summary.Observers++
			}
		}
		return nil
	})
	return summary, err
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
