package game

import (
	"math/rand/v2"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/linkrace-backend/internal"
)

// =============================================================================
// GAME FLOW - RUNNING, PAUSED, FINISHED
// =============================================================================

// enterRunning starts a round. From lobby it seeds every path with the start
// reference and hands out the initial inventory; from handout it grants the
// additions earned during the previous round.
func (r *Room) enterRunning(from internal.GamePhase) entryResult {
	r.state = &runningState{}
	r.round++

	switch from {
	case internal.PhaseLobby:
		for _, p := range r.activePlayers() {
			r.appendEntry(p, r.Start, internal.EffectStart)
			p.Inventory = make(map[internal.AdditionType]int, len(r.Config.Additions.Inventory))
			for t, n := range r.Config.Additions.Inventory {
				p.Inventory[t] = n
			}
		}
		r.publish(internal.RoomEvent{Type: internal.EventGameStarted, RoomID: r.ID, Phase: internal.PhaseRunning, At: r.clock.Now()})
	case internal.PhaseHandout:
		r.grantEarnedAdditions()
	}

	for _, p := range r.players {
		p.ResetRoundState()
	}

	if len(r.activePlayers()) == 0 {
		log.Info().Str("room", r.ID).Msg("[enterRunning] nobody left racing, finishing")
		return redirectTo(internal.PhaseFinished)
	}

	log.Info().Str("room", r.ID).Int("round", r.round).Msg("[enterRunning] round started")
	return settle()
}

// grantEarnedAdditions turns exposure and elapsed rounds into new additions.
func (r *Room) grantEarnedAdditions() {
	types := r.Config.AdditionTypes()
	if len(types) == 0 {
		return
	}
	cfg := r.Config.Additions

	for _, p := range r.activePlayers() {
		earned := 0
		if cfg.EarnEveryExposure > 0 {
			earned += p.Exposure / cfg.EarnEveryExposure
			p.Exposure %= cfg.EarnEveryExposure
		}
		if cfg.EarnEveryRounds > 0 && (r.round-1)%cfg.EarnEveryRounds == 0 {
			earned++
		}
		for i := 0; i < earned; i++ {
			p.Inventory[types[rand.IntN(len(types))]]++
		}
		if earned > 0 {
			log.Debug().Str("room", r.ID).Str("player", p.Name).Int("earned", earned).Msg("[grantEarnedAdditions] additions granted")
		}
	}
}

// enterPaused ends a round and decides how the game continues.
func (r *Room) enterPaused() entryResult {
	st := &pausedState{
		awaiting:  make(map[string]bool),
		confirmed: make(map[string]bool),
	}
	r.state = st

	switch r.Config.Continuation {
	case internal.ContinueCreator:
		st.awaiting[r.Creator] = true
	case internal.ContinueDemocratic:
		for _, p := range r.activePlayers() {
			st.awaiting[p.Name] = true
		}
	default:
		return redirectTo(internal.PhaseHandout)
	}

	if len(st.awaiting) == 0 {
		return redirectTo(internal.PhaseHandout)
	}

	waiting := sortedKeys(st.awaiting)
	for _, name := range waiting {
		r.deliver(name, internal.Message[any]{
			Type: internal.MsgRequestContinueGame,
			Data: internal.RequestContinueData{RoomID: r.ID, Round: r.round, Waiting: waiting},
		})
	}

	log.Info().Str("room", r.ID).Strs("awaiting", waiting).Msg("[enterPaused] waiting for confirmation")
	return settle()
}

// handleContinueGame records a confirmation while paused.
func (r *Room) handleContinueGame(name string) error {
	st, ok := r.state.(*pausedState)
	if !ok {
		return ErrWrongPhase
	}
	if !st.awaiting[name] {
		return ErrNotEligible
	}
	if st.confirmed[name] {
		return ErrAlreadyConfirmed
	}

	st.confirmed[name] = true
	log.Debug().Str("room", r.ID).Str("player", name).Msg("[handleContinueGame] confirmation received")

	if r.pausedSettled(st) {
		return r.transition(internal.PhaseHandout, name)
	}
	r.broadcastState()
	return nil
}

func (r *Room) pausedSettled(st *pausedState) bool {
	for name := range st.awaiting {
		if !st.confirmed[name] {
			return false
		}
	}
	return true
}

// enterFinished freezes the game and assembles the ranking.
func (r *Room) enterFinished() entryResult {
	st := &finishedState{}
	r.state = st
	r.findWinner()

	r.buildRanking(st)
	return settle()
}

// findWinner sets and returns the first racer standing on the target and
// tags the winning entry as the end of the path.
func (r *Room) findWinner() string {
	if r.winner != "" {
		return r.winner
	}

	var reached *internal.PathEntry
	for _, p := range r.participants() {
		if p.Role != internal.RolePlayer || p.Surrendered {
			continue
		}
		i := p.CurrentIndex()
		if i < 0 || !internal.SameRef(p.Path[i].Ref, r.End) {
			continue
		}
		if reached == nil || p.Path[i].Order < reached.Order {
			reached = &p.Path[i]
			r.winner = p.Name
		}
	}

	if reached != nil {
		reached.Effect = internal.EffectEnd
		log.Info().Str("room", r.ID).Str("winner", r.winner).Msg("[findWinner] target reached")
	}
	return r.winner
}

// reevaluate re-checks phase exit conditions after a participant left the
// race. It reports whether a transition happened.
func (r *Room) reevaluate() bool {
	phase := r.state.phase()
	if phase == internal.PhaseLobby || phase == internal.PhaseFinished {
		return false
	}

	if len(r.activePlayers()) == 0 {
		switch phase {
		case internal.PhaseRunning, internal.PhaseWaiting:
			_ = r.transition(internal.PhaseFinished, "")
		default:
			// running redirects straight to finished when nobody races
			_ = r.transition(internal.PhaseRunning, "")
		}
		return true
	}

	switch st := r.state.(type) {
	case *waitingState:
		if r.findWinner() != "" {
			_ = r.transition(internal.PhaseFinished, "")
			return true
		}
		if r.allSubmitted(st) {
			_ = r.transition(internal.PhasePaused, "")
			return true
		}
	case *pausedState:
		if r.pausedSettled(st) {
			_ = r.transition(internal.PhaseHandout, "")
			return true
		}
	case *handoutState:
		return r.handoutSettle(st)
	}
	return false
}

// forget drops a participant from every phase-scoped set. It reports whether
// that alone moved the room to another phase.
func (r *Room) forget(name string) bool {
	switch st := r.state.(type) {
	case *waitingState:
		delete(st.submitted, name)
		if st.fallback != nil {
			delete(st.fallback.pending, name)
		}
	case *pausedState:
		// the creator keeps confirming for the room even after surrendering
		if name != r.Creator || r.Config.Continuation == internal.ContinueDemocratic {
			delete(st.awaiting, name)
			delete(st.confirmed, name)
		}
	case *handoutState:
		return r.dropFromHandout(st, name)
	}
	return false
}

func (r *Room) publish(event internal.RoomEvent) {
	r.registry.publish(event)
}
