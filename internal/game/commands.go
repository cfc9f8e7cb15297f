package game

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/linkrace-backend/internal"
)

// =============================================================================
// CLIENT COMMANDS
// =============================================================================

// Command is a validated client message. The concrete types are the only
// implementations.
type Command interface {
	Name() string
}

type (
	LeaveCommand struct{}

	SelectLinkCommand struct {
		Ref string `json:"ref"`
	}
	RandomURLCommand struct {
		Ref string `json:"ref"`
	}
	SelectForMissingCommand struct {
		Selections map[string]string `json:"selections"`
	}

	SurrenderCommand    struct{}
	ContinueGameCommand struct{}

	UseAdditionCommand struct {
		Addition internal.AdditionType `json:"addition"`
		Target   string                `json:"target"`
	}
	ReadyToContinueCommand struct{}

	StartGameCommand   struct{}
	RestartGameCommand struct{}
	KickUserCommand    struct {
		Player string `json:"player"`
	}
	GiveAdditionCommand struct {
		Target   string                `json:"target"`
		Addition internal.AdditionType `json:"addition"`
		Amount   int                   `json:"amount"`
	}
)

func (LeaveCommand) Name() string            { return "leave" }
func (SelectLinkCommand) Name() string       { return "selectLink" }
func (RandomURLCommand) Name() string        { return "randomUrl" }
func (SelectForMissingCommand) Name() string { return "selectForMissingPlayers" }
func (SurrenderCommand) Name() string        { return "surrender" }
func (ContinueGameCommand) Name() string     { return "continueGame" }
func (UseAdditionCommand) Name() string      { return "useAddition" }
func (ReadyToContinueCommand) Name() string  { return "readyToContinue" }
func (StartGameCommand) Name() string        { return "startGame" }
func (RestartGameCommand) Name() string      { return "restartGame" }
func (KickUserCommand) Name() string         { return "kickUser" }
func (GiveAdditionCommand) Name() string     { return "giveAddition" }

// ParseCommand decodes a raw {"type", "data"} envelope into a typed command.
func ParseCommand(raw []byte) (Command, error) {
	var envelope internal.Message[json.RawMessage]
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}

	var cmd Command
	switch envelope.Type {
	case "leave":
		return LeaveCommand{}, nil
	case "surrender":
		return SurrenderCommand{}, nil
	case "continueGame":
		return ContinueGameCommand{}, nil
	case "readyToContinue":
		return ReadyToContinueCommand{}, nil
	case "startGame":
		return StartGameCommand{}, nil
	case "restartGame":
		return RestartGameCommand{}, nil
	case "selectLink":
		cmd = decode[SelectLinkCommand](envelope.Data)
	case "randomUrl":
		cmd = decode[RandomURLCommand](envelope.Data)
	case "selectForMissingPlayers":
		cmd = decode[SelectForMissingCommand](envelope.Data)
	case "useAddition":
		cmd = decode[UseAdditionCommand](envelope.Data)
	case "kickUser":
		cmd = decode[KickUserCommand](envelope.Data)
	case "giveAddition":
		cmd = decode[GiveAdditionCommand](envelope.Data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, envelope.Type)
	}

	if cmd == nil {
		return nil, fmt.Errorf("%w: bad payload for %q", ErrMalformedCommand, envelope.Type)
	}
	return cmd, nil
}

func decode[T Command](data json.RawMessage) Command {
	var v T
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	return v
}

// Dispatch runs a command from the named participant on the room loop.
// Leave is handled by the transport through Leave since it needs the connection id.
func (r *Room) Dispatch(name string, cmd Command) error {
	return r.exec(func() error {
		if _, ok := r.players[name]; !ok {
			return ErrPlayerNotFound
		}

		var err error
		switch c := cmd.(type) {
		case SelectLinkCommand, RandomURLCommand, SelectForMissingCommand:
			err = r.handleLinkCommand(name, c)
		case SurrenderCommand, ContinueGameCommand:
			err = r.handlePlayerCommand(name, c)
		case UseAdditionCommand, ReadyToContinueCommand:
			err = r.handleAdditionCommand(name, c)
		case StartGameCommand, RestartGameCommand, KickUserCommand, GiveAdditionCommand:
			err = r.handleCreatorCommand(name, c)
		default:
			err = fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Name())
		}

		if err != nil {
			log.Debug().Err(err).Str("room", r.ID).Str("player", name).Str("command", cmd.Name()).Msg("[Dispatch] command rejected")
		}
		return err
	})
}

func (r *Room) handleLinkCommand(name string, cmd Command) error {
	switch c := cmd.(type) {
	case SelectLinkCommand:
		return r.handleSelectLink(name, c.Ref)
	case RandomURLCommand:
		return r.handleRandomURL(name, c.Ref)
	case SelectForMissingCommand:
		return r.handleSelectForMissing(name, c.Selections)
	}
	return ErrUnknownCommand
}

func (r *Room) handlePlayerCommand(name string, cmd Command) error {
	switch cmd.(type) {
	case SurrenderCommand:
		return r.handleSurrender(name)
	case ContinueGameCommand:
		return r.handleContinueGame(name)
	}
	return ErrUnknownCommand
}

func (r *Room) handleAdditionCommand(name string, cmd Command) error {
	switch c := cmd.(type) {
	case UseAdditionCommand:
		return r.handleUseAddition(name, c.Addition, c.Target)
	case ReadyToContinueCommand:
		return r.handleReadyToContinue(name)
	}
	return ErrUnknownCommand
}

func (r *Room) handleCreatorCommand(name string, cmd Command) error {
	switch c := cmd.(type) {
	case StartGameCommand:
		return r.handleStartGame(name)
	case RestartGameCommand:
		return r.handleRestartGame(name)
	case KickUserCommand:
		return r.handleKickUser(name, c.Player)
	case GiveAdditionCommand:
		return r.handleGiveAddition(name, c.Target, c.Addition, c.Amount)
	}
	return ErrUnknownCommand
}

// handleSurrender freezes the player's path and turns them into an observer.
func (r *Room) handleSurrender(name string) error {
	p := r.players[name]
	if !p.Active() {
		return ErrNotActive
	}
	switch r.state.phase() {
	case internal.PhaseLobby, internal.PhaseFinished:
		return ErrWrongPhase
	}

	r.appendEntry(p, p.CurrentRef(), internal.EffectSurrender)
	p.Surrendered = true
	p.SurrenderedAt = r.clock.Now()
	p.Role = internal.RoleObserver
	moved := r.forget(name)
	log.Info().Str("room", r.ID).Str("player", name).Msg("[handleSurrender] player surrendered")

	if !moved && !r.reevaluate() {
		r.broadcastState()
	}
	return nil
}
