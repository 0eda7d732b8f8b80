package server

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/gravitas-games/hexglobe/internal/network"
	"github.com/gravitas-games/hexglobe/pkg/hexcore/grid"
	"github.com/gravitas-games/hexglobe/pkg/hexcore/path"
	"github.com/gravitas-games/hexglobe/pkg/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	// WebSocket connection
	ws *websocket.Conn

	// Server reference
	server *Server

	// Player information (set after authentication)
	player *models.Player

	// Buffered channel for outbound messages
	send chan []byte

	// Is connection authenticated
	authenticated bool

	closeOnce sync.Once
}

// NewConnection creates a new connection
func NewConnection(ws *websocket.Conn, server *Server) *Connection {
	return &Connection{
		ws:            ws,
		server:        server,
		send:          make(chan []byte, 256),
		authenticated: false,
	}
}

// Handle manages the connection lifecycle
func (c *Connection) Handle() {
	// Set up connection parameters
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Start read and write pumps
	go c.writePump()
	c.readPump() // Blocking
}

// readPump pumps messages from the WebSocket connection to the server
func (c *Connection) readPump() {
	defer func() {
		c.Close()
	}()

	for {
		// Read message
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}

		// Parse message
		var clientMsg network.ClientMessage
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			log.Printf("Failed to parse client message: %v", err)
			c.SendError("invalid_message", "Failed to parse message")
			continue
		}

		// Handle message based on type
		c.handleMessage(&clientMsg)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// Write message
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket write error: %v", err)
				return
			}

		case <-ticker.C:
			// Send ping
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.server.ctx.Done():
			// Server shutting down
			return
		}
	}
}

// handleMessage routes messages to appropriate handlers
func (c *Connection) handleMessage(msg *network.ClientMessage) {
	log.Printf("Received message type: %s", msg.Type)

	switch msg.Type {
	case network.MsgTypeJoin:
		c.handleJoin(msg.Payload)

	case network.MsgTypeLeave:
		c.handleLeave()

	case network.MsgTypeChat:
		c.handleChat(msg.Payload)

	case network.MsgTypePing:
		c.handlePing()

	case network.MsgTypeMove:
		c.handleMove(msg.Payload)

	case network.MsgTypeMoveTo:
		c.handleMoveTo(msg.Payload)

	case network.MsgTypeSetPosRequest:
		c.handleSetPos(msg.Payload)

	default:
		log.Printf("Unknown message type: %s", msg.Type)
		c.SendError("unknown_message_type", "Unknown message type")
	}
}

// handleJoin handles player join requests
func (c *Connection) handleJoin(payload json.RawMessage) {
	// Verify player is authenticated (should always be true now)
	if !c.authenticated || c.player == nil {
		c.SendError("not_authenticated", "Connection not authenticated")
		return
	}

	log.Printf("Player join request from %s", c.player.Username)
	session := c.server.session

	// Update player connection state
	c.player.Connected = true
	c.player.ConnectedAt = time.Now()
	c.player.SessionID = session.ID

	// Add player to session
	dweller, err := session.AddPlayer(c.player, c)
	if err != nil {
		log.Printf("Failed to add player to session: %v", err)
		if errors.Is(err, ErrSessionFull) {
			c.SendError("session_full", "Session is full")
		} else {
			c.SendError("join_failed", "Failed to join session")
		}
		return
	}

	own, err := session.SetPosFor(c.player.ID)
	if err != nil {
		log.Printf("Player %s joined without a dweller: %v", c.player.Username, err)
		c.SendError("join_failed", "Failed to join session")
		return
	}

	g := session.Globe()
	c.SendMessage(&network.ServerMessage{
		Type: network.MsgTypeWelcome,
		Payload: network.WelcomePayload{
			PlayerID:      c.player.ID,
			Username:      c.player.Username,
			SessionID:     session.ID,
			SessionStatus: session.GetStatus(),
			Globe: network.GlobeInfo{
				Resolution: g.Resolution,
				Radius:     g.Radius,
			},
			Dweller: own,
		},
	})

	// Tell the newcomer where everyone else stands
	for _, other := range session.Snapshot(c.player.ID) {
		c.SendMessage(&network.ServerMessage{Type: network.MsgTypeSetPos, Payload: other})
	}

	// Broadcast player joined to all other players
	session.BroadcastExcept(c, &network.ServerMessage{
		Type: network.MsgTypePlayerJoined,
		Payload: network.PlayerJoinedPayload{
			PlayerID: c.player.ID,
			Username: c.player.Username,
			Email:    c.player.Email,
			EntityID: dweller.EntityID,
		},
	})
	session.BroadcastExcept(c, &network.ServerMessage{Type: network.MsgTypeSetPos, Payload: own})

	log.Printf("Player %s joined session %s", c.player.Username, session.ID)
}

// handleLeave handles player leave requests
func (c *Connection) handleLeave() {
	if c.player == nil {
		return
	}
	if !c.server.session.RemovePlayerIfConn(c.player.ID, c) {
		return
	}

	// Broadcast player left
	c.server.session.BroadcastMessage(&network.ServerMessage{
		Type: network.MsgTypePlayerLeft,
		Payload: network.PlayerLeftPayload{
			PlayerID: c.player.ID,
			Username: c.player.Username,
		},
	})
}

// handleMove queues a movement command for the player's dweller. The
// result arrives later as a set_pos broadcast.
func (c *Connection) handleMove(payload json.RawMessage) {
	if !c.authenticated || c.player == nil {
		c.SendError("not_authenticated", "Must be authenticated to move")
		return
	}

	var move network.MovePayload
	if err := json.Unmarshal(payload, &move); err != nil {
		log.Printf("Failed to parse move payload: %v", err)
		c.SendError("invalid_move", "Invalid move message")
		return
	}

	if err := c.server.session.QueueMove(c.player.ID, move.Action); err != nil {
		switch {
		case errors.Is(err, ErrNotInSession):
			c.SendError("not_joined", "Join the session before moving")
		case errors.Is(err, ErrQueueFull):
			c.SendError("move_dropped", "Too many pending moves")
		default:
			c.SendError("invalid_move", err.Error())
		}
	}
}

// handleMoveTo plans a route for the player's dweller and sends it back
func (c *Connection) handleMoveTo(payload json.RawMessage) {
	if !c.authenticated || c.player == nil {
		c.SendError("not_authenticated", "Must be authenticated to move")
		return
	}

	var moveTo network.MoveToPayload
	if err := json.Unmarshal(payload, &moveTo); err != nil {
		log.Printf("Failed to parse move_to payload: %v", err)
		c.SendError("invalid_move", "Invalid move_to message")
		return
	}

	route, err := c.server.session.PlanRoute(c.player.ID, moveTo.Pos)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotInSession):
			c.SendError("not_joined", "Join the session before moving")
		case errors.Is(err, grid.ErrOutOfBounds):
			c.SendError("invalid_move", "Destination is off the globe")
		case errors.Is(err, path.ErrNoPath):
			c.SendError("no_route", "Destination cannot be reached")
		default:
			c.SendError("invalid_move", err.Error())
		}
		return
	}

	c.SendMessage(&network.ServerMessage{Type: network.MsgTypeRoute, Payload: route})
}

// handleSetPos accepts a cell transform computed by the client and relays
// it to everyone else
func (c *Connection) handleSetPos(payload json.RawMessage) {
	if !c.authenticated || c.player == nil {
		c.SendError("not_authenticated", "Must be authenticated to move")
		return
	}

	var req network.SetPosRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		log.Printf("Failed to parse set_pos payload: %v", err)
		c.SendError("invalid_move", "Invalid set_pos message")
		return
	}

	session := c.server.session
	update, err := session.ApplySetPos(c.player.ID, req.Pos, req.Dir, req.LastTurnBias)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotInSession):
			c.SendError("not_joined", "Join the session before moving")
		case errors.Is(err, ErrCellOccupied):
			c.SendError("cell_occupied", "Cell is occupied")
		default:
			c.SendError("invalid_move", err.Error())
		}
		// Put the client back where the server has it.
		if own, err := session.SetPosFor(c.player.ID); err == nil {
			c.SendMessage(&network.ServerMessage{Type: network.MsgTypeSetPos, Payload: own})
		}
		return
	}

	session.BroadcastExcept(c, &network.ServerMessage{Type: network.MsgTypeSetPos, Payload: update})
}

// handleChat handles chat messages
func (c *Connection) handleChat(payload json.RawMessage) {
	if !c.authenticated || c.player == nil {
		c.SendError("not_authenticated", "Must be authenticated to chat")
		return
	}

	// Parse chat payload
	var chatMsg network.ChatPayload
	if err := json.Unmarshal(payload, &chatMsg); err != nil {
		log.Printf("Failed to parse chat payload: %v", err)
		c.SendError("invalid_chat", "Invalid chat message")
		return
	}

	if limit := c.server.config.Chat.MaxMessageLength; utf8.RuneCountInString(chatMsg.Message) > limit {
		c.SendError("invalid_chat", "Chat message too long")
		return
	}

	// TODO: Enforce chat.rate_limit per player

	// Broadcast chat message to all players
	broadcast := &network.ServerMessage{
		Type: network.MsgTypeChatBroadcast,
		Payload: network.ChatBroadcastPayload{
			PlayerID:  c.player.ID,
			Username:  c.player.Username,
			Message:   chatMsg.Message,
			Timestamp: time.Now().Unix(),
		},
	}

	c.server.session.BroadcastMessage(broadcast)
	log.Printf("Chat from %s: %s", c.player.Username, chatMsg.Message)
}

// handlePing handles ping requests
func (c *Connection) handlePing() {
	c.SendMessage(&network.ServerMessage{
		Type:    network.MsgTypePong,
		Payload: map[string]interface{}{"timestamp": time.Now().Unix()},
	})
}

// SendMessage sends a message to the client
func (c *Connection) SendMessage(msg *network.ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal message: %v", err)
		return
	}

	select {
	case c.send <- data:
	default:
		log.Printf("Send buffer full, dropping message")
	}
}

// SendError sends an error message to the client
func (c *Connection) SendError(code, message string) {
	c.SendMessage(&network.ServerMessage{
		Type: network.MsgTypeError,
		Payload: network.ErrorPayload{
			Code:    code,
			Message: message,
		},
	})
}

// Close closes the connection. It is safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		// Remove player from session if authenticated
		if c.authenticated && c.player != nil {
			c.handleLeave()
		}

		// Close send channel
		close(c.send)

		// Close WebSocket connection
		if c.ws != nil {
			c.ws.Close()
		}
	})
}
