package game

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/linkrace-backend/internal"
)

// =============================================================================
// LINK SELECTION
// =============================================================================

// fallbackState tracks players the countdown lapsed on.
type fallbackState struct {
	pending map[string]bool
	attempt int
	retry   *timerHandle
}

// handleSelectLink records a player's next reference for this round.
func (r *Room) handleSelectLink(name, ref string) error {
	p, ok := r.players[name]
	if !ok {
		return ErrPlayerNotFound
	}
	if !p.Active() {
		return ErrNotActive
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ErrInvalidRef
	}

	switch st := r.state.(type) {
	case *runningState:
		r.appendEntry(p, ref, internal.EffectNone)
		log.Debug().Str("room", r.ID).Str("player", name).Str("ref", ref).Msg("[handleSelectLink] first submission of the round")
		if r.findWinner() != "" {
			return r.transition(internal.PhaseFinished, name)
		}
		return r.transition(internal.PhaseWaiting, name)

	case *waitingState:
		if st.lapsed {
			log.Debug().Str("room", r.ID).Str("player", name).Msg("[handleSelectLink] late submission dropped")
			return ErrSubmissionLapsed
		}
		if _, done := st.submitted[name]; done {
			return ErrAlreadySubmitted
		}

		entry := r.appendEntry(p, ref, internal.EffectNone)
		st.submitted[name] = entry.Order
		log.Debug().Str("room", r.ID).Str("player", name).Str("ref", ref).Int("submitted", len(st.submitted)).Msg("[handleSelectLink] submission recorded")

		if r.findWinner() != "" {
			return r.transition(internal.PhaseFinished, name)
		}
		if r.allSubmitted(st) {
			return r.transition(internal.PhasePaused, name)
		}
		r.broadcastState()
		return nil
	}

	return ErrWrongPhase
}

// enterWaiting starts the countdown once somebody moved.
func (r *Room) enterWaiting(trigger string) entryResult {
	st := &waitingState{
		submitted:      make(map[string]int),
		firstSubmitter: trigger,
	}
	r.state = st

	if p, ok := r.players[trigger]; ok && len(p.Path) > 0 {
		st.submitted[trigger] = p.Path[len(p.Path)-1].Order
	}

	if r.allSubmitted(st) {
		return redirectTo(internal.PhasePaused)
	}

	st.timer = r.startTimer("countdown", r.Config.Countdown(), func() {
		r.onCountdownExpired(st)
	})
	return settle()
}

func (r *Room) allSubmitted(st *waitingState) bool {
	for _, p := range r.activePlayers() {
		if _, ok := st.submitted[p.Name]; !ok {
			return false
		}
	}
	return true
}

func (r *Room) missingPlayers(st *waitingState) []string {
	var missing []string
	for _, p := range r.activePlayers() {
		if _, ok := st.submitted[p.Name]; !ok {
			missing = append(missing, p.Name)
		}
	}
	return missing
}

// onCountdownExpired closes submissions and fills in whoever did not move.
func (r *Room) onCountdownExpired(st *waitingState) {
	if r.state != phaseState(st) {
		return
	}

	st.lapsed = true
	missing := r.missingPlayers(st)
	log.Info().Str("room", r.ID).Strs("missing", missing).Msg("[onCountdownExpired] countdown lapsed")

	if len(missing) == 0 {
		_ = r.transition(internal.PhasePaused, "")
		return
	}

	st.fallback = &fallbackState{pending: make(map[string]bool, len(missing))}
	for _, name := range missing {
		st.fallback.pending[name] = true
	}

	r.requestFallback(st)
	if r.state == phaseState(st) {
		r.broadcastState()
	}
}

// requestFallback asks clients for picks on behalf of pending players, or
// falls back to their own path once the retries are spent.
func (r *Room) requestFallback(st *waitingState) {
	fb := st.fallback

	if fb.attempt > r.opts.FallbackRetries {
		log.Info().Str("room", r.ID).Strs("pending", sortedKeys(fb.pending)).Msg("[requestFallback] retries spent, reusing own path")
		for _, name := range sortedKeys(fb.pending) {
			if !r.resolveFromOwnPath(st, name) {
				return
			}
		}
		return
	}

	switch r.Config.LinkChooser {
	case internal.ChooserUserSelected:
		chooser, ok := r.players[st.firstSubmitter]
		if !ok || !chooser.Active() || !chooser.IsConnected() {
			// nobody to delegate to
			fb.attempt = r.opts.FallbackRetries + 1
			r.requestFallback(st)
			return
		}
		current := make(map[string]string, len(fb.pending))
		for name := range fb.pending {
			current[name] = r.players[name].CurrentRef()
		}
		r.deliver(chooser.Name, internal.Message[any]{
			Type: internal.MsgSelectForMissing,
			Data: internal.SelectForMissingData{
				RoomID:  r.ID,
				Players: sortedKeys(fb.pending),
				Current: current,
				Attempt: fb.attempt,
			},
		})

	default:
		for _, name := range sortedKeys(fb.pending) {
			p := r.players[name]
			if !p.IsConnected() {
				if !r.resolveFromOwnPath(st, name) {
					return
				}
				continue
			}
			r.deliver(name, internal.Message[any]{
				Type: internal.MsgRequestRandomURL,
				Data: internal.RequestRandomURLData{
					RoomID:  r.ID,
					Player:  name,
					Current: p.CurrentRef(),
					Attempt: fb.attempt,
				},
			})
		}
	}

	if len(fb.pending) == 0 || r.state != phaseState(st) {
		return
	}

	fb.retry = r.startTimer("fallback", r.opts.FallbackRetryInterval, func() {
		if r.state != phaseState(st) {
			return
		}
		fb.attempt++
		log.Debug().Str("room", r.ID).Int("attempt", fb.attempt).Msg("[requestFallback] retrying pick requests")
		r.requestFallback(st)
		if r.state == phaseState(st) {
			r.broadcastState()
		}
	})
}

// handleRandomURL takes a client's random pick for its own player.
func (r *Room) handleRandomURL(name, ref string) error {
	st, ok := r.state.(*waitingState)
	if !ok || st.fallback == nil || !st.fallback.pending[name] {
		return ErrNotAwaited
	}
	if r.Config.LinkChooser != internal.ChooserRandom {
		return ErrNotAwaited
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ErrInvalidRef
	}

	if r.resolveMissing(st, name, ref, internal.EffectRandom) {
		r.broadcastState()
	}
	return nil
}

// handleSelectForMissing takes the first submitter's picks for absent players.
func (r *Room) handleSelectForMissing(name string, selections map[string]string) error {
	st, ok := r.state.(*waitingState)
	if !ok || st.fallback == nil || st.firstSubmitter != name {
		return ErrNotAwaited
	}
	if r.Config.LinkChooser != internal.ChooserUserSelected {
		return ErrNotAwaited
	}
	if !r.players[name].Active() {
		return ErrNotActive
	}

	names := sortedKeys(selections)
	for _, target := range names {
		ref := strings.TrimSpace(selections[target])
		if !st.fallback.pending[target] || ref == "" {
			log.Debug().Str("room", r.ID).Str("player", target).Msg("[handleSelectForMissing] ignoring selection")
			continue
		}
		if !r.resolveMissing(st, target, ref, internal.EffectUserSelected) {
			return nil
		}
	}

	r.broadcastState()
	return nil
}

// resolveFromOwnPath steps the player back to a recent reference of their own.
func (r *Room) resolveFromOwnPath(st *waitingState, name string) bool {
	p := r.players[name]
	ref := p.CurrentRef()
	if prev := p.PreviousIndex(p.CurrentIndex()); prev >= 0 {
		ref = p.Path[prev].Ref
	}
	if ref == "" {
		ref = r.Start
	}
	return r.resolveMissing(st, name, ref, internal.EffectRandom)
}

// resolveMissing fills one pending player's entry. It reports false when the
// room left the waiting phase as a result.
func (r *Room) resolveMissing(st *waitingState, name, ref string, effect internal.Effect) bool {
	p := r.players[name]
	entry := r.appendEntry(p, ref, effect)
	st.submitted[name] = entry.Order
	delete(st.fallback.pending, name)
	log.Debug().Str("room", r.ID).Str("player", name).Str("ref", ref).Str("effect", string(effect)).Msg("[resolveMissing] pick assigned")

	if r.findWinner() != "" {
		_ = r.transition(internal.PhaseFinished, "")
		return false
	}
	if len(st.fallback.pending) == 0 && r.allSubmitted(st) {
		_ = r.transition(internal.PhasePaused, "")
		return false
	}
	return true
}
