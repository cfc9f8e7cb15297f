package game

import (
	"errors"

	"github.com/scythe504/linkrace-backend/internal"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomLimitReached = errors.New("room limit reached")
	ErrIDExhausted      = errors.New("could not allocate a unique room id")
	ErrRoomClosed       = errors.New("room closed")

	ErrInvalidJoin    = errors.New("invalid join request")
	ErrGameInProgress = errors.New("game already in progress")
	ErrNameTaken      = errors.New("name already connected")
	ErrRoomFull       = errors.New("room is full")

	ErrInvalidTransition = errors.New("invalid phase transition")
	ErrWrongPhase        = errors.New("action not allowed in current phase")
	ErrNotCreator        = errors.New("only the room creator can do that")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrNotActive         = errors.New("player is not racing")
	ErrNoPlayers         = errors.New("no players to start with")

	ErrInvalidRef        = errors.New("invalid content reference")
	ErrAlreadySubmitted  = errors.New("already submitted this round")
	ErrSubmissionLapsed  = errors.New("countdown already lapsed")
	ErrNotAwaited        = errors.New("no selection awaited from player")
	ErrAlreadyConfirmed  = errors.New("already confirmed")
	ErrUnknownAddition   = errors.New("addition not enabled in this room")
	ErrNotEligible       = errors.New("player not eligible to act now")
	ErrNoInventory       = errors.New("no addition of that type left")
	ErrInvalidTarget     = errors.New("invalid addition target")
	ErrAlreadyAffected   = errors.New("target was already hit by an addition")
	ErrNothingToReturn   = errors.New("target has no earlier entry to return to")
	ErrGiveNotAllowed    = errors.New("giving additions is disabled in this room")
	ErrUnknownCommand    = errors.New("unknown command")
	ErrMalformedCommand  = errors.New("malformed command")
	ErrPathNotFound      = errors.New("no path between references")
	ErrTitleNotFound     = errors.New("title not found")
	ErrLookupUnavailable = errors.New("lookup service unavailable")
)

// CloseReason maps a join rejection to the reason string sent to the client.
func CloseReason(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrRoomClosed):
		return internal.ReasonRoomNotFound
	case errors.Is(err, ErrGameInProgress):
		return internal.ReasonGameInProgress
	case errors.Is(err, ErrNameTaken):
		return internal.ReasonNameTaken
	case errors.Is(err, ErrRoomFull):
		return internal.ReasonRoomFull
	default:
		return internal.ReasonInvalidRequest
	}
}
