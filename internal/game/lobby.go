package game

import (
	"github.com/rs/zerolog/log"
	"github.com/scythe504/linkrace-backend/internal"
)

// =============================================================================
// GAME FLOW - LOBBY & CREATOR ACTIONS
// =============================================================================

// enterLobby resets the room for another game.
func (r *Room) enterLobby() entryResult {
	r.state = &lobbyState{}
	r.winner = ""
	r.round = 0
	r.seq = 0

	for _, p := range r.players {
		p.ResetForLobby()
	}

	log.Info().Str("room", r.ID).Msg("[enterLobby] room reset to lobby")
	return settle()
}

// handleStartGame moves the room from lobby into the first round.
func (r *Room) handleStartGame(name string) error {
	if name != r.Creator {
		return ErrNotCreator
	}
	if r.state.phase() != internal.PhaseLobby {
		return ErrWrongPhase
	}
	if len(r.activePlayers()) == 0 {
		log.Warn().Str("room", r.ID).Msg("[handleStartGame] no players in room")
		return ErrNoPlayers
	}

	log.Info().Str("room", r.ID).Int("players", len(r.activePlayers())).Msg("[handleStartGame] starting game")
	return r.transition(internal.PhaseRunning, name)
}

// handleRestartGame returns a finished room to the lobby.
func (r *Room) handleRestartGame(name string) error {
	if name != r.Creator {
		return ErrNotCreator
	}
	return r.transition(internal.PhaseLobby, name)
}

// handleKickUser removes a participant without a reconnection window.
func (r *Room) handleKickUser(name, target string) error {
	if name != r.Creator {
		return ErrNotCreator
	}
	if target == r.Creator {
		return ErrInvalidTarget
	}
	p, ok := r.players[target]
	if !ok {
		return ErrPlayerNotFound
	}

	kicked := internal.Message[any]{
		Type: internal.MsgPlayerKicked,
		Data: internal.PlayerKickedData{Player: target, Reason: internal.ReasonKicked},
	}
	r.deliverAll(kicked)

	if p.Conn != nil {
		p.Conn.Close(internal.ReasonKicked)
		p.Conn = nil
	}

	log.Info().Str("room", r.ID).Str("player", target).Msg("[handleKickUser] player kicked")
	r.removePlayer(target)
	return nil
}
