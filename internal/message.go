package internal

type Message[T any] struct {
	Type string `json:"type"`
	Data T      `json:"data"`
}

// Server to client message types. Each type is one mailbox slot.
const (
	MsgGameState           = "game_state"
	MsgRequestContinueGame = "request_continue_game"
	MsgRequestRandomURL    = "request_random_url"
	MsgSelectForMissing    = "select_for_missing_players"
	MsgAdditionUsed        = "addition_used"
	MsgPlayerKicked        = "player_kicked"
	MsgError               = "error"
)

// Close reasons sent when a connection is refused or ended by the server.
const (
	ReasonInvalidRequest = "invalid_request"
	ReasonRoomNotFound   = "room_not_found"
	ReasonGameInProgress = "game_in_progress"
	ReasonNameTaken      = "name_taken"
	ReasonRoomFull       = "room_full"
	ReasonKicked         = "kicked"
	ReasonRoomClosed     = "room_closed"
	ReasonTimedOut       = "reconnect_timeout"
)

type RequestContinueData struct {
	RoomID  string   `json:"room_id"`
	Round   int      `json:"round"`
	Waiting []string `json:"waiting"`
}

type RequestRandomURLData struct {
	RoomID  string `json:"room_id"`
	Player  string `json:"player"`
	Current string `json:"current"`
	Attempt int    `json:"attempt"`
}

type SelectForMissingData struct {
	RoomID  string            `json:"room_id"`
	Players []string          `json:"players"`
	Current map[string]string `json:"current"`
	Attempt int               `json:"attempt"`
}

type AdditionUsedData struct {
	Actor    string       `json:"actor"`
	Target   string       `json:"target"`
	Addition AdditionType `json:"addition"`
}

type PlayerKickedData struct {
	Player string `json:"player"`
	Reason string `json:"reason"`
}

type ErrorData struct {
	Command string `json:"command"`
	Message string `json:"message"`
}
