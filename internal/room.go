package internal

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidConfig = errors.New("invalid room config")

// Validate checks bounds and enum fields of a room configuration.
func (c RoomConfig) Validate() error {
	if c.CountdownSeconds < MinCountdownSeconds || c.CountdownSeconds > MaxCountdownSeconds {
		return fmt.Errorf("%w: countdown_seconds must be within %d..%d, got %d",
			ErrInvalidConfig, MinCountdownSeconds, MaxCountdownSeconds, c.CountdownSeconds)
	}

	switch c.Continuation {
	case ContinueAutomatic, ContinueCreator, ContinueDemocratic:
	default:
		return fmt.Errorf("%w: unknown continuation %q", ErrInvalidConfig, c.Continuation)
	}

	switch c.LinkChooser {
	case ChooserRandom, ChooserUserSelected:
	default:
		return fmt.Errorf("%w: unknown link_chooser %q", ErrInvalidConfig, c.LinkChooser)
	}

	if c.MaxPlayers < 1 || c.MaxPlayers > MaxPlayersPerRoom {
		return fmt.Errorf("%w: max_players must be within 1..%d, got %d", ErrInvalidConfig, MaxPlayersPerRoom, c.MaxPlayers)
	}

	a := c.Additions
	for t, n := range a.Inventory {
		if !t.Valid() {
			return fmt.Errorf("%w: unknown addition %q", ErrInvalidConfig, t)
		}
		if n < 0 {
			return fmt.Errorf("%w: addition %q amount must be >= 0", ErrInvalidConfig, t)
		}
	}

	switch a.CallType {
	case CallFreeForAll, CallRoundRobin:
	default:
		return fmt.Errorf("%w: unknown additions call_type %q", ErrInvalidConfig, a.CallType)
	}

	switch a.Application {
	case ApplyOnce, ApplyUnlimited:
	default:
		return fmt.Errorf("%w: unknown additions application %q", ErrInvalidConfig, a.Application)
	}

	if a.TimerSeconds < MinAdditionsSeconds || a.TimerSeconds > MaxAdditionsSeconds {
		return fmt.Errorf("%w: additions timer_seconds must be within %d..%d, got %d",
			ErrInvalidConfig, MinAdditionsSeconds, MaxAdditionsSeconds, a.TimerSeconds)
	}

	if a.EarnEveryExposure < 0 || a.EarnEveryRounds < 0 {
		return fmt.Errorf("%w: earn thresholds must be >= 0", ErrInvalidConfig)
	}

	return nil
}

// NormalizeRef folds the differences clients produce for the same article title.
func NormalizeRef(ref string) string {
	ref = strings.TrimSpace(strings.ReplaceAll(ref, "_", " "))
	return strings.ToLower(strings.Join(strings.Fields(ref), " "))
}

func SameRef(a, b string) bool {
	return a != "" && NormalizeRef(a) == NormalizeRef(b)
}
