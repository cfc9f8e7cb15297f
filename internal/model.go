package internal

import (
	"time"
)

const (
	RoomIDLength          = 4
	MaxPlayersPerRoom     = 16
	MaxNameLength         = 32
	DefaultCountdown      = 60 * time.Second
	DefaultAdditionsTimer = 30 * time.Second
	MinCountdownSeconds   = 5
	MaxCountdownSeconds   = 600
	MinAdditionsSeconds   = 5
	MaxAdditionsSeconds   = 300
)

type GamePhase string

const (
	PhaseLobby    GamePhase = "lobby"
	PhaseRunning  GamePhase = "running"
	PhaseWaiting  GamePhase = "waiting"
	PhasePaused   GamePhase = "paused"
	PhaseHandout  GamePhase = "handout"
	PhaseFinished GamePhase = "finished"
)

type PlayerRole string

const (
	RolePlayer   PlayerRole = "player"
	RoleObserver PlayerRole = "observer"
)

func (r PlayerRole) Valid() bool {
	return r == RolePlayer || r == RoleObserver
}

// Effect is the terminal tag of a PathEntry.
type Effect string

const (
	EffectNone         Effect = "none"
	EffectStart        Effect = "start"
	EffectEnd          Effect = "end"
	EffectBombed       Effect = "bombed"
	EffectSwapped      Effect = "swapped"
	EffectReturned     Effect = "returned"
	EffectRandom       Effect = "random"
	EffectUserSelected Effect = "user_selected"
	EffectSurrender    Effect = "surrender"
	EffectCancelled    Effect = "cancelled"
)

// FromAddition reports whether the effect was produced by an addition.
func (e Effect) FromAddition() bool {
	switch e {
	case EffectBombed, EffectSwapped, EffectReturned, EffectCancelled:
		return true
	}
	return false
}

type AdditionType string

const (
	AdditionBomb   AdditionType = "bomb"
	AdditionSwap   AdditionType = "swap"
	AdditionReturn AdditionType = "return"
)

func (a AdditionType) Valid() bool {
	switch a {
	case AdditionBomb, AdditionSwap, AdditionReturn:
		return true
	}
	return false
}

type ContinuationPolicy string

const (
	ContinueAutomatic  ContinuationPolicy = "automatic"
	ContinueCreator    ContinuationPolicy = "creator"
	ContinueDemocratic ContinuationPolicy = "democratic"
)

type LinkChooser string

const (
	ChooserRandom       LinkChooser = "random"
	ChooserUserSelected LinkChooser = "user_selected"
)

type AdditionCallType string

const (
	CallFreeForAll AdditionCallType = "free_for_all"
	CallRoundRobin AdditionCallType = "round_robin"
)

type AdditionApplication string

const (
	ApplyOnce      AdditionApplication = "once"
	ApplyUnlimited AdditionApplication = "unlimited"
)

type AdditionsConfig struct {
	// Inventory handed to every player when the game starts. Types with a
	// zero amount are still enabled and can be earned or given.
	Inventory         map[AdditionType]int `json:"inventory"`
	CallType          AdditionCallType     `json:"call_type"`
	Application       AdditionApplication  `json:"application"`
	Multiple          bool                 `json:"multiple"`
	TimerSeconds      int                  `json:"timer_seconds"`
	AllowGive         bool                 `json:"allow_give"`
	EarnEveryExposure int                  `json:"earn_every_exposure"`
	EarnEveryRounds   int                  `json:"earn_every_rounds"`
}

type RoomConfig struct {
	CountdownSeconds int                `json:"countdown_seconds"`
	Continuation     ContinuationPolicy `json:"continuation"`
	LinkChooser      LinkChooser        `json:"link_chooser"`
	MaxPlayers       int                `json:"max_players"`
	Additions        AdditionsConfig    `json:"additions"`
}

// DefaultRoomConfig fills the zero values a client may omit.
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		CountdownSeconds: int(DefaultCountdown / time.Second),
		Continuation:     ContinueAutomatic,
		LinkChooser:      ChooserRandom,
		MaxPlayers:       MaxPlayersPerRoom,
		Additions: AdditionsConfig{
			Inventory:    map[AdditionType]int{},
			CallType:     CallFreeForAll,
			Application:  ApplyOnce,
			TimerSeconds: int(DefaultAdditionsTimer / time.Second),
		},
	}
}

// Countdown returns the waiting phase duration.
func (c RoomConfig) Countdown() time.Duration {
	return time.Duration(c.CountdownSeconds) * time.Second
}

func (c RoomConfig) AdditionsTimer() time.Duration {
	return time.Duration(c.Additions.TimerSeconds) * time.Second
}

// AdditionTypes returns the configured addition types in a stable order.
func (c RoomConfig) AdditionTypes() []AdditionType {
	var types []AdditionType
	for _, t := range []AdditionType{AdditionBomb, AdditionSwap, AdditionReturn} {
		if _, ok := c.Additions.Inventory[t]; ok {
			types = append(types, t)
		}
	}
	return types
}

type PathEntry struct {
	Ref    string    `json:"ref"`
	Effect Effect    `json:"effect"`
	Order  int       `json:"order"`
	At     time.Time `json:"at"`
}

// PathInfo is what the shortest-path service reports for a source/target pair.
type PathInfo struct {
	Length      int      `json:"length"`
	PathCount   int      `json:"path_count"`
	ExamplePath []string `json:"example_path"`
}

type RankEntry struct {
	Position    int    `json:"position"`
	Name        string `json:"name"`
	Reached     bool   `json:"reached"`
	Surrendered bool   `json:"surrendered"`
	Distance    *int   `json:"distance,omitempty"`
	Steps       int    `json:"steps"`
}

type Response struct {
	StatusCode    int   `json:"status_code"`
	RespStartTime int64 `json:"resp_time_start_ms"`
	RespEndTime   int64 `json:"resp_time_end_ms"`
	NetRespTime   int64 `json:"net_resp_time_ms"`
	Data          any   `json:"data"`
}
