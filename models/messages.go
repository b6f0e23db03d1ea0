package models

// Push channel message kinds.
const (
	// inbound
	MsgJoin = "join"
	MsgShot = "shot"
	MsgChat = "chat"

	// outbound
	MsgGameJoined         = "game_joined"
	MsgPlayerJoined       = "player_joined"
	MsgGameStart          = "game_start"
	MsgShotResult         = "shot_result"
	MsgYourTurn           = "your_turn"
	MsgGameOver           = "game_over"
	MsgPlayerDisconnected = "player_disconnected"
	MsgError              = "error"
)

// InboundMessage is anything a client sends over the push channel.
// Only the fields relevant to Type are read.
type InboundMessage struct {
	Type    string `json:"type"`
	X       *int   `json:"x,omitempty"`
	Y       *int   `json:"y,omitempty"`
	Message string `json:"message,omitempty"`
}

// OutboundMessage is the envelope of every server push.
type OutboundMessage struct {
	Type    string `json:"type"`
	MatchID string `json:"match_id"`

	Slot     int         `json:"slot,omitempty"`
	PlayerID string      `json:"player_id,omitempty"`
	Status   MatchStatus `json:"status,omitempty"`

	X        *int   `json:"x,omitempty"`
	Y        *int   `json:"y,omitempty"`
	Hit      *bool  `json:"hit,omitempty"`
	Sunk     bool   `json:"sunk,omitempty"`
	ShipType string `json:"ship_type,omitempty"`

	WinnerID string       `json:"winner_id,omitempty"`
	Reason   FinishReason `json:"reason,omitempty"`

	Message string `json:"message,omitempty"`
	Kind    string `json:"kind,omitempty"`
}
