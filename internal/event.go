package internal

import "time"

type EventType string

const (
	EventRoomCreated  EventType = "created"
	EventGameStarted  EventType = "started"
	EventGameFinished EventType = "finished"
	EventRoomDeleted  EventType = "deleted"
)

// RoomEvent is published for consumers outside the game server.
type RoomEvent struct {
	Type    EventType   `json:"type"`
	RoomID  string      `json:"room_id"`
	Phase   GamePhase   `json:"phase,omitempty"`
	Winner  string      `json:"winner,omitempty"`
	Ranking []RankEntry `json:"ranking,omitempty"`
	At      time.Time   `json:"at"`
}
