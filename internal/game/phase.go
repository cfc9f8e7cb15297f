package game

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/linkrace-backend/internal"
)

// =============================================================================
// PHASE STATE MACHINE
// =============================================================================

var validTransitions = map[internal.GamePhase][]internal.GamePhase{
	internal.PhaseLobby:    {internal.PhaseRunning},
	internal.PhaseRunning:  {internal.PhaseWaiting, internal.PhaseFinished},
	internal.PhaseWaiting:  {internal.PhasePaused, internal.PhaseFinished, internal.PhaseHandout, internal.PhaseRunning},
	internal.PhasePaused:   {internal.PhaseHandout, internal.PhaseRunning},
	internal.PhaseHandout:  {internal.PhaseRunning},
	internal.PhaseFinished: {internal.PhaseLobby},
}

func canTransition(from, to internal.GamePhase) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// phaseState holds the fields that only exist while one phase is active.
type phaseState interface {
	phase() internal.GamePhase
	// exit cancels every timer and background work the phase owns.
	exit()
}

type lobbyState struct{}

func (*lobbyState) phase() internal.GamePhase { return internal.PhaseLobby }
func (*lobbyState) exit()                     {}

type runningState struct{}

func (*runningState) phase() internal.GamePhase { return internal.PhaseRunning }
func (*runningState) exit()                     {}

type waitingState struct {
	timer          *timerHandle
	submitted      map[string]int
	firstSubmitter string
	lapsed         bool
	fallback       *fallbackState
}

func (*waitingState) phase() internal.GamePhase { return internal.PhaseWaiting }

func (s *waitingState) exit() {
	s.timer.cancel()
	if s.fallback != nil {
		s.fallback.retry.cancel()
	}
}

type pausedState struct {
	awaiting  map[string]bool
	confirmed map[string]bool
}

func (*pausedState) phase() internal.GamePhase { return internal.PhasePaused }
func (*pausedState) exit()                     {}

type handoutState struct {
	timer        *timerHandle
	order        []string
	index        int
	participants map[string]bool
	eligible     map[string]bool
	ready        map[string]bool
}

func (*handoutState) phase() internal.GamePhase { return internal.PhaseHandout }

func (s *handoutState) exit() {
	s.timer.cancel()
}

type finishedState struct {
	ranking []internal.RankEntry
	pending bool
	cancel  context.CancelFunc
}

func (*finishedState) phase() internal.GamePhase { return internal.PhaseFinished }

func (s *finishedState) exit() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// entryResult is what a phase entry handler returns: either the phase settles
// or it redirects to another phase within the same transition.
type entryResult struct {
	redirect bool
	next     internal.GamePhase
}

func settle() entryResult { return entryResult{} }

func redirectTo(next internal.GamePhase) entryResult {
	return entryResult{redirect: true, next: next}
}

// transition validates and performs a phase change, following redirects, and
// broadcasts once at the end. trigger names the player that caused it, if any.
func (r *Room) transition(to internal.GamePhase, trigger string) error {
	from := r.state.phase()
	if !canTransition(from, to) {
		log.Warn().
			Str("room", r.ID).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("[transition] rejected transition")
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	for {
		prev := r.state.phase()
		r.state.exit()

		res := r.enter(prev, to, trigger)
		log.Info().
			Str("room", r.ID).
			Str("from", string(prev)).
			Str("to", string(to)).
			Bool("redirect", res.redirect).
			Msg("[transition] entered phase")

		if !res.redirect {
			break
		}
		if !canTransition(to, res.next) {
			log.Error().
				Str("room", r.ID).
				Str("from", string(to)).
				Str("to", string(res.next)).
				Msg("[transition] entry handler redirected to a disallowed phase, staying")
			break
		}
		to = res.next
		trigger = ""
	}

	r.broadcastState()
	return nil
}

func (r *Room) enter(from, to internal.GamePhase, trigger string) entryResult {
	switch to {
	case internal.PhaseLobby:
		return r.enterLobby()
	case internal.PhaseRunning:
		return r.enterRunning(from)
	case internal.PhaseWaiting:
		return r.enterWaiting(trigger)
	case internal.PhasePaused:
		return r.enterPaused()
	case internal.PhaseHandout:
		return r.enterHandout()
	case internal.PhaseFinished:
		return r.enterFinished()
	}
	panic(fmt.Sprintf("unknown phase %q", to))
}
