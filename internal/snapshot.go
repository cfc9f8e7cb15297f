package internal

import "time"

// GameStateData is the versioned, immutable view of a room pushed to every participant.
// Clients drop any snapshot whose Version is not greater than the last one applied.
type GameStateData struct {
	Version      uint64             `json:"version"`
	RoomID       string             `json:"room_id"`
	Name         string             `json:"name"`
	Start        string             `json:"start"`
	End          string             `json:"end"`
	Creator      string             `json:"creator"`
	Phase        GamePhase          `json:"phase"`
	Round        int                `json:"round"`
	CreatedAt    time.Time          `json:"created_at"`
	Config       RoomConfig         `json:"config"`
	Players      []PlayerSnapshot   `json:"players"`
	Observers    []PlayerSnapshot   `json:"observers"`
	Preview      string             `json:"preview"`
	ShortestPath *PathInfo          `json:"shortest_path,omitempty"`
	Winner       string             `json:"winner,omitempty"`
	Waiting      *WaitingStateData  `json:"waiting,omitempty"`
	Paused       *PausedStateData   `json:"paused,omitempty"`
	Handout      *HandoutStateData  `json:"handout,omitempty"`
	Finished     *FinishedStateData `json:"finished,omitempty"`
}

type WaitingStateData struct {
	EndsAt    time.Time `json:"ends_at"`
	Submitted []string  `json:"submitted"`
	Lapsed    bool      `json:"lapsed"`
}

type PausedStateData struct {
	Awaiting  []string `json:"awaiting"`
	Confirmed []string `json:"confirmed"`
}

type HandoutStateData struct {
	EndsAt   time.Time        `json:"ends_at"`
	CallType AdditionCallType `json:"call_type"`
	Order    []string         `json:"order"`
	Eligible []string         `json:"eligible"`
	Ready    []string         `json:"ready"`
}

type FinishedStateData struct {
	Ranking []RankEntry `json:"ranking"`
}

// RoomSummary is the HTTP view of a room.
type RoomSummary struct {
	RoomID    string    `json:"room_id"`
	Name      string    `json:"name"`
	Start     string    `json:"start"`
	End       string    `json:"end"`
	Creator   string    `json:"creator"`
	Phase     GamePhase `json:"phase"`
	Players   int       `json:"players"`
	Observers int       `json:"observers"`
	CreatedAt time.Time `json:"created_at"`
}
