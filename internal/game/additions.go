package game

import (
	"math/rand/v2"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/linkrace-backend/internal"
)

// =============================================================================
// ADDITIONS - HANDOUT PHASE
// =============================================================================

// enterHandout opens the addition window for players holding inventory.
func (r *Room) enterHandout() entryResult {
	st := &handoutState{
		participants: make(map[string]bool),
		eligible:     make(map[string]bool),
		ready:        make(map[string]bool),
	}
	r.state = st

	if len(r.Config.AdditionTypes()) == 0 {
		return redirectTo(internal.PhaseRunning)
	}

	for _, p := range r.activePlayers() {
		if p.TotalInventory() > 0 {
			st.order = append(st.order, p.Name)
			st.participants[p.Name] = true
		}
	}
	if len(st.order) == 0 {
		log.Debug().Str("room", r.ID).Msg("[enterHandout] nobody holds additions, skipping")
		return redirectTo(internal.PhaseRunning)
	}

	rand.Shuffle(len(st.order), func(i, j int) {
		st.order[i], st.order[j] = st.order[j], st.order[i]
	})

	if r.Config.Additions.CallType == internal.CallRoundRobin {
		st.eligible[st.order[0]] = true
	} else {
		for _, name := range st.order {
			st.eligible[name] = true
		}
	}

	st.timer = r.startTimer("additions", r.Config.AdditionsTimer(), func() {
		r.onHandoutExpired(st)
	})

	log.Info().Str("room", r.ID).Strs("order", st.order).Str("call_type", string(r.Config.Additions.CallType)).Msg("[enterHandout] handout started")
	return settle()
}

func (r *Room) onHandoutExpired(st *handoutState) {
	if r.state != phaseState(st) {
		return
	}

	if r.Config.Additions.CallType == internal.CallRoundRobin {
		log.Debug().Str("room", r.ID).Int("index", st.index).Msg("[onHandoutExpired] turn lapsed")
		if !r.advanceTurn(st) {
			r.broadcastState()
		}
		return
	}

	log.Debug().Str("room", r.ID).Msg("[onHandoutExpired] window lapsed")
	_ = r.transition(internal.PhaseRunning, "")
}

// advanceTurn hands the round-robin turn to the next player still present.
// Wrapping past the end returns to running. It reports whether a transition happened.
func (r *Room) advanceTurn(st *handoutState) bool {
	for name := range st.eligible {
		delete(st.eligible, name)
	}
	st.timer.cancel()

	for {
		st.index++
		if st.index >= len(st.order) {
			_ = r.transition(internal.PhaseRunning, "")
			return true
		}
		if st.participants[st.order[st.index]] {
			break
		}
	}

	st.eligible[st.order[st.index]] = true
	st.timer = r.startTimer("additions", r.Config.AdditionsTimer(), func() {
		r.onHandoutExpired(st)
	})
	return false
}

// handoutSettle ends a free for all window once every participant is ready.
func (r *Room) handoutSettle(st *handoutState) bool {
	if r.Config.Additions.CallType == internal.CallRoundRobin {
		return false
	}
	for name := range st.participants {
		if !st.ready[name] {
			return false
		}
	}
	_ = r.transition(internal.PhaseRunning, "")
	return true
}

// dropFromHandout reports whether passing the turn on ended the handout.
func (r *Room) dropFromHandout(st *handoutState, name string) bool {
	if !st.participants[name] {
		return false
	}
	delete(st.participants, name)
	delete(st.ready, name)

	if st.eligible[name] && r.Config.Additions.CallType == internal.CallRoundRobin {
		return r.advanceTurn(st)
	}
	delete(st.eligible, name)
	return false
}

// markReady takes name out of the free for all window.
func (r *Room) markReady(st *handoutState, name string) bool {
	delete(st.eligible, name)
	st.ready[name] = true
	return r.handoutSettle(st)
}

// handleReadyToContinue is an explicit pass (round robin) or ready signal (free for all).
func (r *Room) handleReadyToContinue(name string) error {
	st, ok := r.state.(*handoutState)
	if !ok {
		return ErrWrongPhase
	}
	if !st.participants[name] {
		return ErrNotEligible
	}

	if r.Config.Additions.CallType == internal.CallRoundRobin {
		if !st.eligible[name] {
			return ErrNotEligible
		}
		if !r.advanceTurn(st) {
			r.broadcastState()
		}
		return nil
	}

	if st.ready[name] {
		return ErrAlreadyConfirmed
	}
	if !r.markReady(st, name) {
		r.broadcastState()
	}
	return nil
}

// handleUseAddition applies an addition from actor onto target.
func (r *Room) handleUseAddition(actor string, addition internal.AdditionType, target string) error {
	st, ok := r.state.(*handoutState)
	if !ok {
		return ErrWrongPhase
	}
	if _, enabled := r.Config.Additions.Inventory[addition]; !enabled {
		return ErrUnknownAddition
	}
	if !st.eligible[actor] {
		return ErrNotEligible
	}
	a := r.players[actor]
	if a == nil || a.Inventory[addition] <= 0 {
		return ErrNoInventory
	}
	t, ok := r.players[target]
	if !ok || target == actor || !t.Active() || !t.IsConnected() {
		return ErrInvalidTarget
	}
	if r.Config.Additions.Application == internal.ApplyOnce && t.RecentlyAffected() {
		log.Debug().Str("room", r.ID).Str("target", target).Msg("[handleUseAddition] target already affected")
		return ErrAlreadyAffected
	}

	if err := r.applyAddition(addition, a, t); err != nil {
		return err
	}

	a.Inventory[addition]--
	a.UsedAddition = true
	t.Exposure++
	log.Info().Str("room", r.ID).Str("actor", actor).Str("target", target).Str("addition", string(addition)).Msg("[handleUseAddition] addition applied")

	r.deliverAll(internal.Message[any]{
		Type: internal.MsgAdditionUsed,
		Data: internal.AdditionUsedData{Actor: actor, Target: target, Addition: addition},
	})

	if r.Config.Additions.CallType == internal.CallRoundRobin {
		if !r.advanceTurn(st) {
			r.broadcastState()
		}
		return nil
	}

	if !r.Config.Additions.Multiple || a.TotalInventory() == 0 {
		if r.markReady(st, actor) {
			return nil
		}
	}
	r.broadcastState()
	return nil
}

func (r *Room) applyAddition(addition internal.AdditionType, actor, target *internal.Player) error {
	ti := target.CurrentIndex()
	if ti < 0 {
		return ErrInvalidTarget
	}

	switch addition {
	case internal.AdditionBomb:
		target.Path[ti].Effect = internal.EffectBombed

	case internal.AdditionSwap:
		ai := actor.CurrentIndex()
		if ai < 0 {
			return ErrInvalidTarget
		}
		actor.Path[ai].Ref, target.Path[ti].Ref = target.Path[ti].Ref, actor.Path[ai].Ref
		actor.Path[ai].Effect = internal.EffectSwapped
		target.Path[ti].Effect = internal.EffectSwapped

	case internal.AdditionReturn:
		prev := target.PreviousIndex(ti)
		if prev < 0 {
			return ErrNothingToReturn
		}
		ref := target.Path[prev].Ref
		target.Path[ti].Effect = internal.EffectCancelled
		r.appendEntry(target, ref, internal.EffectReturned)

	default:
		return ErrUnknownAddition
	}
	return nil
}

// handleGiveAddition is the creator's direct grant, outside any turn order.
func (r *Room) handleGiveAddition(name, target string, addition internal.AdditionType, amount int) error {
	if name != r.Creator {
		return ErrNotCreator
	}
	if !r.Config.Additions.AllowGive {
		return ErrGiveNotAllowed
	}
	if _, enabled := r.Config.Additions.Inventory[addition]; !enabled {
		return ErrUnknownAddition
	}
	switch r.state.phase() {
	case internal.PhaseLobby, internal.PhaseFinished:
		return ErrWrongPhase
	}
	t, ok := r.players[target]
	if !ok || !t.Active() {
		return ErrInvalidTarget
	}
	if amount <= 0 {
		amount = 1
	}

	t.Inventory[addition] += amount
	log.Info().Str("room", r.ID).Str("target", target).Str("addition", string(addition)).Int("amount", amount).Msg("[handleGiveAddition] addition granted")
	r.broadcastState()
	return nil
}
