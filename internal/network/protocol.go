package network

import (
	"encoding/json"
	"fmt"

	"github.com/gravitas-games/hexglobe/pkg/hexcore/grid"
)

// Message types - Client → Server
const (
	MsgTypeJoin   = "join"
	MsgTypeLeave  = "leave"
	MsgTypeChat   = "chat"
	MsgTypePing   = "ping"
	MsgTypeMove   = "move"
	MsgTypeMoveTo = "move_to"
	// Also sent by clients that move their dweller locally, see SetPosRequest
	MsgTypeSetPosRequest = MsgTypeSetPos
)

// Message types - Server → Client
const (
	MsgTypeWelcome       = "welcome"
	MsgTypePlayerJoined  = "player_joined"
	MsgTypePlayerLeft    = "player_left"
	MsgTypeChatBroadcast = "chat"
	MsgTypeSessionStatus = "session_status"
	MsgTypeError         = "error"
	MsgTypePong          = "pong"
	MsgTypeSetPos        = "set_pos"
	MsgTypeRoute         = "route"
)

// MoveAction is one step of cell dweller movement requested by a client
type MoveAction string

const (
	MoveForward    MoveAction = "forward"
	MoveTurnLeft   MoveAction = "turn_left"
	MoveTurnRight  MoveAction = "turn_right"
	MoveTurnAround MoveAction = "turn_around"
)

// Validate checks that a is one of the known actions
func (a MoveAction) Validate() error {
	switch a {
	case MoveForward, MoveTurnLeft, MoveTurnRight, MoveTurnAround:
		return nil
	}
	return fmt.Errorf("unknown move action %q", string(a))
}

// ClientMessage represents any message from client to server
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ServerMessage represents any message from server to client
type ServerMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// --- Client Message Payloads ---

// JoinPayload is sent by client to join the session
type JoinPayload struct {
	// Currently empty - the server picks a spawn cell
}

// MovePayload is sent by client to move its cell dweller
type MovePayload struct {
	Action MoveAction `json:"action"`
}

// ChatPayload is sent by client to send a chat message
type ChatPayload struct {
	Message string `json:"message"`
}

// MoveToPayload asks the server to walk the player's dweller to a cell,
// one step per tick, around occupied cells
type MoveToPayload struct {
	Pos grid.Point3 `json:"pos"`
}

// SetPosRequest reports a cell transform the client computed itself. The
// server accepts it when it is one cell or less from where the dweller
// stands.
type SetPosRequest struct {
	Pos          grid.Point3  `json:"pos"`
	Dir          grid.Dir     `json:"dir"`
	LastTurnBias grid.TurnDir `json:"last_turn_bias"`
}

// --- Server Message Payloads ---

// WelcomePayload is sent to client after successful connection
type WelcomePayload struct {
	PlayerID      string        `json:"player_id"`
	Username      string        `json:"username"`
	SessionID     string        `json:"session_id"`
	SessionStatus SessionStatus `json:"session_status"`
	Globe         GlobeInfo     `json:"globe"`
	Dweller       SetPosPayload `json:"dweller"`
}

// GlobeInfo describes the world the client is playing on
type GlobeInfo struct {
	Resolution grid.Resolution `json:"resolution"`
	Radius     float64         `json:"radius"`
}

// SetPosPayload carries the authoritative cell transform of one dweller
type SetPosPayload struct {
	EntityID     string       `json:"entity_id"`
	PlayerID     string       `json:"player_id"`
	Pos          grid.Point3  `json:"pos"`
	Dir          grid.Dir     `json:"dir"`
	LastTurnBias grid.TurnDir `json:"last_turn_bias"`
	WorldPos     [3]float64   `json:"world_pos"`
}

// PlayerJoinedPayload notifies clients when a player joins
type PlayerJoinedPayload struct {
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	EntityID string `json:"entity_id"`
}

// PlayerLeftPayload notifies clients when a player leaves
type PlayerLeftPayload struct {
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
}

// ChatBroadcastPayload broadcasts a chat message to all clients
type ChatBroadcastPayload struct {
	PlayerID  string `json:"player_id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"` // Unix timestamp
}

// SessionStatus represents the current session state
type SessionStatus struct {
	State       string `json:"state"`
	PlayerCount int    `json:"player_count"`
	MaxPlayers  int    `json:"max_players"`
	ServerTick  int64  `json:"server_tick"`
	Uptime      int64  `json:"uptime"`
}

// RoutePayload lists the cells a dweller will walk through, starting with
// the one it stands on
type RoutePayload struct {
	EntityID string        `json:"entity_id"`
	Cells    []grid.Point3 `json:"cells"`
}

// ErrorPayload contains error information
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
