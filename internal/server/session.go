package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/gravitas-games/hexglobe/internal/config"
	"github.com/gravitas-games/hexglobe/internal/globe"
	"github.com/gravitas-games/hexglobe/internal/network"
	"github.com/gravitas-games/hexglobe/pkg/hexcore/grid"
	"github.com/gravitas-games/hexglobe/pkg/hexcore/movement"
	"github.com/gravitas-games/hexglobe/pkg/hexcore/path"
	"github.com/gravitas-games/hexglobe/pkg/models"
)

var (
	// ErrSessionFull is returned when max_players are already in the session
	ErrSessionFull = errors.New("session is full")
	// ErrNotInSession is returned for players that have not joined
	ErrNotInSession = errors.New("player not in session")
	// ErrQueueFull is returned when a player sends moves faster than ticks
	// can apply them
	ErrQueueFull = errors.New("command queue full")
	// ErrNotAdjacent is returned when a client places its dweller further
	// than one cell from where the server has it
	ErrNotAdjacent = errors.New("position is not adjacent")
	// ErrCellOccupied is returned when a client places its dweller on a
	// cell another entity stands on
	ErrCellOccupied = errors.New("cell is occupied")
)

// Session represents a game session
type Session struct {
	ID        string
	CreatedAt time.Time

	// Player management
	players     map[string]*models.Player // playerID -> Player
	connections map[string]*Connection    // playerID -> Connection
	commands    map[string]chan network.MoveAction
	routes      map[string][]grid.Point3 // playerID -> cells still to walk
	mu          sync.RWMutex

	// Game state
	globe  *globe.Globe
	rng    *rand.Rand
	status network.SessionStatus

	// Configuration
	config *config.Config
}

// NewSession creates a new game session
func NewSession(cfg *config.Config) (*Session, error) {
	id := uuid.NewString()
	log.Printf("Creating session: %s", id)

	res, err := cfg.Globe.Resolution()
	if err != nil {
		return nil, err
	}

	g, err := globe.New(res, cfg.Globe.Radius, cfg.Globe.SpawnSearchRadius)
	if err != nil {
		return nil, err
	}

	seed := cfg.Globe.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	session := &Session{
		ID:          id,
		CreatedAt:   time.Now(),
		players:     make(map[string]*models.Player),
		connections: make(map[string]*Connection),
		commands:    make(map[string]chan network.MoveAction),
		routes:      make(map[string][]grid.Point3),
		globe:       g,
		rng:         rand.New(rand.NewSource(seed)),
		config:      cfg,
		status: network.SessionStatus{
			State:      "waiting",
			MaxPlayers: cfg.Session.MaxPlayers,
		},
	}

	log.Printf("Session %s created on a globe of %s cells", id, humanize.Comma(int64(res.CellCount())))
	return session, nil
}

// Globe returns the world this session plays on
func (s *Session) Globe() *globe.Globe {
	return s.globe
}

// AddPlayer adds a player to the session and spawns their cell dweller
func (s *Session) AddPlayer(player *models.Player, conn *Connection) (*models.CellDweller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.players[player.ID]; ok && existing.Dweller != nil {
		// Rejoining keeps the dweller where it was.
		player.Dweller = existing.Dweller
		s.players[player.ID] = player
		s.connections[player.ID] = conn
		return player.Dweller, nil
	}

	if len(s.players) >= s.status.MaxPlayers {
		return nil, ErrSessionFull
	}

	pos, dir, err := s.globe.Spawn(s.rng)
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", player.Username, err)
	}
	if err := s.globe.ValidatePlacement(pos, dir); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", player.Username, err)
	}
	dweller, err := models.NewCellDweller(pos, dir, s.globe.Resolution)
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", player.Username, err)
	}
	if err := s.globe.Place(dweller.EntityID, dweller.Pos); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", player.Username, err)
	}

	player.Dweller = dweller
	s.players[player.ID] = player
	s.connections[player.ID] = conn
	s.commands[player.ID] = make(chan network.MoveAction, s.config.Session.CommandQueueSize)
	s.refreshStatusLocked()

	log.Printf("Player %s (%s) joined session %s at %v facing %v", player.Username, player.ID, s.ID, dweller.Pos, dweller.Dir)
	return dweller, nil
}

// RemovePlayer removes a player and their dweller from the session
func (s *Session) RemovePlayer(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removePlayerLocked(playerID)
}

// RemovePlayerIfConn removes the player only while conn is still the
// connection they play through. A connection replaced by a rejoin must not
// take the player with it when it closes.
func (s *Session) RemovePlayerIfConn(playerID string, conn *Connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.connections[playerID]; !ok || current != conn {
		return false
	}
	return s.removePlayerLocked(playerID)
}

// removePlayerLocked must be called with mu held
func (s *Session) removePlayerLocked(playerID string) bool {
	player, exists := s.players[playerID]
	if !exists {
		return false
	}

	log.Printf("Player %s (%s) left session %s", player.Username, playerID, s.ID)
	if player.Dweller != nil {
		s.globe.Remove(player.Dweller.EntityID, player.Dweller.Pos)
		player.Dweller = nil
	}
	delete(s.players, playerID)
	delete(s.connections, playerID)
	delete(s.commands, playerID)
	delete(s.routes, playerID)
	s.refreshStatusLocked()
	return true
}

// GetPlayer retrieves a player by ID
func (s *Session) GetPlayer(playerID string) (*models.Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	player, exists := s.players[playerID]
	return player, exists
}

// GetPlayers returns all players in the session
func (s *Session) GetPlayers() []*models.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()

	players := make([]*models.Player, 0, len(s.players))
	for _, player := range s.players {
		players = append(players, player)
	}
	return players
}

// QueueMove schedules a movement command for the player's dweller. At most
// one command per dweller is applied each tick; when the queue is full the
// new command is dropped.
func (s *Session) QueueMove(playerID string, action network.MoveAction) error {
	if err := action.Validate(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	queue, ok := s.commands[playerID]
	if !ok {
		return ErrNotInSession
	}
	select {
	case queue <- action:
		return nil
	default:
		return ErrQueueFull
	}
}

// PlanRoute finds a path for the player's dweller to goal around occupied
// cells and starts walking it, replacing any earlier route. The returned
// cells start with the one the dweller stands on.
func (s *Session) PlanRoute(playerID string, goal grid.Point3) (network.RoutePayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[playerID]
	if !ok || player.Dweller == nil {
		return network.RoutePayload{}, ErrNotInSession
	}

	cells, err := path.AStar(player.Dweller.Pos, goal, s.globe.Resolution, func(p grid.Point3) bool {
		return !s.globe.IsOccupied(p)
	})
	if err != nil {
		return network.RoutePayload{}, fmt.Errorf("route for %s: %w", player.Username, err)
	}

	s.routes[playerID] = cells[1:]
	return network.RoutePayload{EntityID: player.Dweller.EntityID, Cells: cells}, nil
}

// ApplySetPos accepts a client-reported cell transform for the player's
// dweller. The new cell must be the current one or one of its neighbours,
// and free of other entities. Any planned route is dropped.
func (s *Session) ApplySetPos(playerID string, pos grid.Point3, dir grid.Dir, bias grid.TurnDir) (network.SetPosPayload, error) {
	if err := s.globe.ValidatePlacement(pos, dir); err != nil {
		return network.SetPosPayload{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[playerID]
	if !ok || player.Dweller == nil {
		return network.SetPosPayload{}, ErrNotInSession
	}
	dweller := player.Dweller
	res := s.globe.Resolution

	if !grid.SameCell(dweller.Pos, pos, res) {
		neighbors, err := movement.Neighbors(dweller.Pos, res)
		if err != nil {
			return network.SetPosPayload{}, fmt.Errorf("set pos for %s: %w", player.Username, err)
		}
		adjacent := false
		for _, n := range neighbors {
			if grid.SameCell(n, pos, res) {
				adjacent = true
				break
			}
		}
		if !adjacent {
			return network.SetPosPayload{}, fmt.Errorf("set pos for %s to %v: %w", player.Username, pos, ErrNotAdjacent)
		}
		for _, id := range s.globe.Occupants(pos) {
			if id != dweller.EntityID {
				return network.SetPosPayload{}, fmt.Errorf("set pos for %s to %v: %w", player.Username, pos, ErrCellOccupied)
			}
		}
	}

	from := dweller.Pos
	dweller.SetCellTransform(pos, dir, bias)
	if err := s.globe.Move(dweller.EntityID, from, pos); err != nil {
		log.Printf("Failed to update occupancy for %s: %v", player.Username, err)
	}
	delete(s.routes, playerID)

	// The caller tells the other clients; the sender already knows.
	dweller.TakeDirty()
	return s.setPosPayload(player), nil
}

// SetPosFor returns the current cell transform of the player's dweller
func (s *Session) SetPosFor(playerID string) (network.SetPosPayload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	player, ok := s.players[playerID]
	if !ok || player.Dweller == nil {
		return network.SetPosPayload{}, ErrNotInSession
	}
	return s.setPosPayload(player), nil
}

// Snapshot returns the cell transform of every dweller except the given
// player's, sorted by player id
func (s *Session) Snapshot(exceptPlayerID string) []network.SetPosPayload {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]network.SetPosPayload, 0, len(s.players))
	for id, player := range s.players {
		if id == exceptPlayerID || player.Dweller == nil {
			continue
		}
		out = append(out, s.setPosPayload(player))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}

// Run advances the session at the configured tick rate until ctx is done
func (s *Session) Run(ctx context.Context) {
	interval := time.Second / time.Duration(s.config.Server.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("Session %s ticking every %v", s.ID, interval)

	for {
		select {
		case <-ticker.C:
			s.Tick()
		case <-ctx.Done():
			log.Printf("Session %s stopped after %s ticks", s.ID, humanize.Comma(s.GetStatus().ServerTick))
			return
		}
	}
}

// Tick applies at most one queued command per dweller, then tells every
// client about the dwellers that changed
func (s *Session) Tick() {
	s.mu.Lock()

	s.status.ServerTick++
	tick := s.status.ServerTick

	ids := make([]string, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var updates []*network.ServerMessage
	for _, id := range ids {
		player := s.players[id]
		if player.Dweller == nil {
			continue
		}
		select {
		case action := <-s.commands[id]:
			// Manual control cancels the autopilot.
			delete(s.routes, id)
			s.applyMoveLocked(player, action)
		default:
			if len(s.routes[id]) > 0 {
				s.advanceRouteLocked(player)
			}
		}
		if player.Dweller.TakeDirty() {
			updates = append(updates, &network.ServerMessage{
				Type:    network.MsgTypeSetPos,
				Payload: s.setPosPayload(player),
			})
		}
	}

	var statusMsg *network.ServerMessage
	if every := int64(s.config.Session.StatusEveryTicks); every > 0 && tick%every == 0 {
		status := s.statusLocked()
		log.Printf("Session %s: tick %s, %d/%d players, %s occupied cells, started %s",
			s.ID,
			humanize.Comma(tick),
			status.PlayerCount,
			status.MaxPlayers,
			humanize.Comma(int64(s.globe.OccupiedCells())),
			humanize.Time(s.CreatedAt))
		statusMsg = &network.ServerMessage{Type: network.MsgTypeSessionStatus, Payload: status}
	}

	s.mu.Unlock()

	for _, msg := range updates {
		s.BroadcastMessage(msg)
	}
	if statusMsg != nil {
		s.BroadcastMessage(statusMsg)
	}
}

// applyMoveLocked must be called with mu held
func (s *Session) applyMoveLocked(player *models.Player, action network.MoveAction) {
	dweller := player.Dweller
	res := s.globe.Resolution
	from := dweller.Pos

	var err error
	switch action {
	case network.MoveForward:
		ahead := *dweller
		if err := ahead.StepForward(res); err != nil {
			log.Printf("Move %s for %s failed: %v", action, player.Username, err)
			return
		}
		if s.globe.IsOccupied(ahead.Pos) {
			log.Printf("Move %s for %s refused: %v is occupied", action, player.Username, ahead.Pos)
			return
		}
		err = dweller.StepForward(res)
	case network.MoveTurnLeft:
		err = dweller.Turn(grid.TurnLeft, res)
	case network.MoveTurnRight:
		err = dweller.Turn(grid.TurnRight, res)
	case network.MoveTurnAround:
		err = dweller.TurnAround(res)
	}
	if err != nil {
		log.Printf("Move %s for %s failed: %v", action, player.Username, err)
		return
	}

	if dweller.Pos != from {
		if err := s.globe.Move(dweller.EntityID, from, dweller.Pos); err != nil {
			log.Printf("Failed to update occupancy for %s: %v", player.Username, err)
		}
	}
}

// advanceRouteLocked takes one turn or one step along the player's route.
// Must be called with mu held.
func (s *Session) advanceRouteLocked(player *models.Player) {
	route := s.routes[player.ID]
	next := route[0]
	dweller := player.Dweller

	if s.globe.IsOccupied(next) {
		log.Printf("Route for %s blocked at %v", player.Username, next)
		delete(s.routes, player.ID)
		return
	}

	turns, err := path.Steer(dweller.Pos, dweller.Dir, s.globe.Resolution, next)
	if err != nil {
		log.Printf("Route for %s abandoned: %v", player.Username, err)
		delete(s.routes, player.ID)
		return
	}

	switch {
	case len(turns) > 0 && turns[0] == grid.TurnLeft:
		s.applyMoveLocked(player, network.MoveTurnLeft)
	case len(turns) > 0:
		s.applyMoveLocked(player, network.MoveTurnRight)
	default:
		s.applyMoveLocked(player, network.MoveForward)
		if len(route) == 1 {
			delete(s.routes, player.ID)
		} else {
			s.routes[player.ID] = route[1:]
		}
	}
}

// setPosPayload must be called with mu held
func (s *Session) setPosPayload(player *models.Player) network.SetPosPayload {
	d := player.Dweller
	world := d.RealPosition(s.globe.Resolution, s.globe.Radius)
	return network.SetPosPayload{
		EntityID:     d.EntityID,
		PlayerID:     player.ID,
		Pos:          d.Pos,
		Dir:          d.Dir,
		LastTurnBias: d.LastTurnBias,
		WorldPos:     [3]float64{world.X(), world.Y(), world.Z()},
	}
}

// BroadcastMessage sends a message to all connected players
func (s *Session) BroadcastMessage(msg *network.ServerMessage) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, conn := range s.connections {
		conn.SendMessage(msg)
	}
}

// BroadcastExcept sends a message to all players except the specified connection
func (s *Session) BroadcastExcept(exclude *Connection, msg *network.ServerMessage) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, conn := range s.connections {
		if conn != exclude {
			conn.SendMessage(msg)
		}
	}
}

// GetStatus returns the current session status
func (s *Session) GetStatus() network.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.statusLocked()
}

func (s *Session) statusLocked() network.SessionStatus {
	status := s.status
	status.Uptime = int64(time.Since(s.CreatedAt).Seconds())
	return status
}

func (s *Session) refreshStatusLocked() {
	s.status.PlayerCount = len(s.players)
	if s.status.PlayerCount > 0 {
		s.status.State = "running"
	} else {
		s.status.State = "waiting"
	}
}
