package server

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/gravitas-games/hexglobe/internal/config"
	"github.com/gravitas-games/hexglobe/internal/network"
	"github.com/gravitas-games/hexglobe/pkg/hexcore/grid"
	"github.com/gravitas-games/hexglobe/pkg/hexcore/movement"
	"github.com/gravitas-games/hexglobe/pkg/models"
)

const testConfig = `
session:
  max_players: 2
  command_queue_size: 2
  status_every_ticks: 5
globe:
  resolution_x: 4
  radius: 10
  seed: 3
`

func newTestSession(t *testing.T) *Session {
	t.Helper()
	cfg, err := config.Parse([]byte(testConfig))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func newTestConnection() *Connection {
	return &Connection{send: make(chan []byte, 64), authenticated: true}
}

func drain(t *testing.T, c *Connection) []network.ClientMessage {
	t.Helper()
	var out []network.ClientMessage
	for {
		select {
		case data := <-c.send:
			var msg network.ClientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("bad message %s: %v", data, err)
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func messagesOfType(msgs []network.ClientMessage, typ string) []network.ClientMessage {
	var out []network.ClientMessage
	for _, m := range msgs {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func TestAddPlayerSpawnsDweller(t *testing.T) {
	s := newTestSession(t)
	p := &models.Player{ID: "1", Username: "alice"}

	d, err := s.AddPlayer(p, newTestConnection())
	if err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	if p.Dweller != d {
		t.Fatalf("player should own the spawned dweller")
	}
	if err := s.Globe().ValidatePlacement(d.Pos, d.Dir); err != nil {
		t.Fatalf("spawned into an invalid placement: %v", err)
	}
	if got := s.Globe().Occupants(d.Pos); len(got) != 1 || got[0] != d.EntityID {
		t.Fatalf("expected dweller on its cell, got %v", got)
	}
	if status := s.GetStatus(); status.State != "running" || status.PlayerCount != 1 {
		t.Fatalf("unexpected status %+v", status)
	}

	// Rejoining keeps the same dweller.
	again := &models.Player{ID: "1", Username: "alice"}
	d2, err := s.AddPlayer(again, newTestConnection())
	if err != nil || d2 != d {
		t.Fatalf("rejoin should keep the dweller, got %v, %v", d2, err)
	}
}

func TestSessionFull(t *testing.T) {
	s := newTestSession(t)
	for _, id := range []string{"1", "2"} {
		if _, err := s.AddPlayer(&models.Player{ID: id}, newTestConnection()); err != nil {
			t.Fatalf("AddPlayer %s: %v", id, err)
		}
	}
	if _, err := s.AddPlayer(&models.Player{ID: "3"}, newTestConnection()); !errors.Is(err, ErrSessionFull) {
		t.Fatalf("expected ErrSessionFull, got %v", err)
	}
}

func TestTickAppliesOneMovePerDweller(t *testing.T) {
	s := newTestSession(t)
	conn := newTestConnection()
	p := &models.Player{ID: "1", Username: "alice"}
	d, err := s.AddPlayer(p, conn)
	if err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}

	// The fresh dweller is announced on the first tick.
	s.Tick()
	if got := messagesOfType(drain(t, conn), network.MsgTypeSetPos); len(got) != 1 {
		t.Fatalf("expected one set_pos after spawning, got %d", len(got))
	}

	if err := s.QueueMove("1", network.MoveForward); err != nil {
		t.Fatalf("QueueMove: %v", err)
	}
	if err := s.QueueMove("1", network.MoveTurnRight); err != nil {
		t.Fatalf("QueueMove: %v", err)
	}
	if err := s.QueueMove("1", network.MoveForward); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	start, startDir := d.Pos, d.Dir
	wantPos, wantDir := start, startDir
	if err := movement.MoveForward(&wantPos, &wantDir, s.Globe().Resolution); err != nil {
		t.Fatalf("MoveForward: %v", err)
	}

	s.Tick()
	if d.Pos != wantPos || d.Dir != wantDir {
		t.Fatalf("expected %v facing %v after one tick, got %v facing %v", wantPos, wantDir, d.Pos, d.Dir)
	}
	if s.Globe().IsOccupied(start) {
		t.Fatalf("old cell %v should be empty", start)
	}
	if !s.Globe().IsOccupied(d.Pos) {
		t.Fatalf("new cell %v should be occupied", d.Pos)
	}

	updates := messagesOfType(drain(t, conn), network.MsgTypeSetPos)
	if len(updates) != 1 {
		t.Fatalf("expected one set_pos, got %d", len(updates))
	}
	var payload network.SetPosPayload
	if err := json.Unmarshal(updates[0].Payload, &payload); err != nil {
		t.Fatalf("set_pos payload: %v", err)
	}
	if payload.EntityID != d.EntityID || payload.Pos != d.Pos || payload.Dir != d.Dir {
		t.Fatalf("set_pos does not match dweller: %+v", payload)
	}

	// The turn is applied on the following tick.
	if err := movement.TurnRightByOneHexEdge(&wantPos, &wantDir, s.Globe().Resolution); err != nil {
		t.Fatalf("TurnRight: %v", err)
	}
	s.Tick()
	if d.Pos != wantPos || d.Dir != wantDir || d.LastTurnBias != grid.TurnRight {
		t.Fatalf("unexpected state after turning: %+v", d)
	}

	// Nothing queued, nothing sent.
	drain(t, conn)
	s.Tick()
	if got := messagesOfType(drain(t, conn), network.MsgTypeSetPos); len(got) != 0 {
		t.Fatalf("expected no set_pos for an idle dweller, got %d", len(got))
	}
}

func TestQueueMoveRejectsBadInput(t *testing.T) {
	s := newTestSession(t)
	if err := s.QueueMove("nobody", network.MoveForward); !errors.Is(err, ErrNotInSession) {
		t.Fatalf("expected ErrNotInSession, got %v", err)
	}
	if _, err := s.AddPlayer(&models.Player{ID: "1"}, newTestConnection()); err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	if err := s.QueueMove("1", network.MoveAction("jump")); err == nil {
		t.Fatalf("expected an error for an unknown action")
	}
}

func TestRemovePlayerFreesCell(t *testing.T) {
	s := newTestSession(t)
	p := &models.Player{ID: "1"}
	d, err := s.AddPlayer(p, newTestConnection())
	if err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	pos := d.Pos

	s.RemovePlayer("1")
	if s.Globe().IsOccupied(pos) {
		t.Fatalf("cell %v should be free after the player left", pos)
	}
	if p.Dweller != nil {
		t.Fatalf("player should no longer own a dweller")
	}
	if status := s.GetStatus(); status.State != "waiting" || status.PlayerCount != 0 {
		t.Fatalf("unexpected status %+v", status)
	}
	if err := s.QueueMove("1", network.MoveForward); !errors.Is(err, ErrNotInSession) {
		t.Fatalf("expected ErrNotInSession, got %v", err)
	}
}

func TestStatusBroadcastInterval(t *testing.T) {
	s := newTestSession(t)
	conn := newTestConnection()
	if _, err := s.AddPlayer(&models.Player{ID: "1"}, conn); err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}

	for i := 0; i < 4; i++ {
		s.Tick()
	}
	if got := messagesOfType(drain(t, conn), network.MsgTypeSessionStatus); len(got) != 0 {
		t.Fatalf("expected no status before tick 5, got %d", len(got))
	}
	s.Tick()
	got := messagesOfType(drain(t, conn), network.MsgTypeSessionStatus)
	if len(got) != 1 {
		t.Fatalf("expected one status on tick 5, got %d", len(got))
	}
	var status network.SessionStatus
	if err := json.Unmarshal(got[0].Payload, &status); err != nil {
		t.Fatalf("status payload: %v", err)
	}
	if status.ServerTick != 5 || status.PlayerCount != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestSnapshotExcludesSelf(t *testing.T) {
	s := newTestSession(t)
	for _, id := range []string{"1", "2"} {
		if _, err := s.AddPlayer(&models.Player{ID: id}, newTestConnection()); err != nil {
			t.Fatalf("AddPlayer %s: %v", id, err)
		}
	}
	snap := s.Snapshot("1")
	if len(snap) != 1 || snap[0].PlayerID != "2" {
		t.Fatalf("expected only player 2, got %+v", snap)
	}
}

func TestPlanRouteWalksToGoal(t *testing.T) {
	s := newTestSession(t)
	p := &models.Player{ID: "1"}
	d, err := s.AddPlayer(p, newTestConnection())
	if err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	res := s.Globe().Resolution

	nbs, err := movement.Neighbors(d.Pos, res)
	if err != nil {
		t.Fatalf("neighbors: %v", err)
	}
	further, err := movement.Neighbors(nbs[0], res)
	if err != nil {
		t.Fatalf("neighbors: %v", err)
	}
	var goal grid.Point3
	for _, c := range further {
		if !grid.SameCell(c, d.Pos, res) {
			goal = c
			break
		}
	}

	route, err := s.PlanRoute("1", goal)
	if err != nil {
		t.Fatalf("PlanRoute: %v", err)
	}
	if route.EntityID != d.EntityID || len(route.Cells) < 2 || len(route.Cells) > 3 {
		t.Fatalf("unexpected route %+v", route)
	}

	// Each step needs at most three turns and one move.
	for i := 0; i < 4*len(route.Cells); i++ {
		s.Tick()
	}
	if !grid.SameCell(d.Pos, goal, res) {
		t.Fatalf("expected to arrive at %v, stopped at %v", goal, d.Pos)
	}
	if !s.Globe().IsOccupied(goal) {
		t.Fatalf("goal %v should now be occupied", goal)
	}
	if len(s.routes["1"]) != 0 {
		t.Fatalf("route should be used up, %v left", s.routes["1"])
	}
}

func TestManualMoveCancelsRoute(t *testing.T) {
	s := newTestSession(t)
	d, err := s.AddPlayer(&models.Player{ID: "1"}, newTestConnection())
	if err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	res := s.Globe().Resolution

	if _, err := s.PlanRoute("1", grid.Point3{X: res.X, Y: res.Y}); err != nil {
		t.Fatalf("PlanRoute: %v", err)
	}
	if err := s.QueueMove("1", network.MoveTurnLeft); err != nil {
		t.Fatalf("QueueMove: %v", err)
	}
	before := d.Dir
	s.Tick()
	if d.Dir == before {
		t.Fatalf("queued turn was not applied")
	}
	if len(s.routes["1"]) != 0 {
		t.Fatalf("manual command should cancel the route")
	}

	if _, err := s.PlanRoute("nobody", grid.Point3{}); !errors.Is(err, ErrNotInSession) {
		t.Fatalf("expected ErrNotInSession, got %v", err)
	}
	if _, err := s.PlanRoute("1", grid.Point3{X: -3}); !errors.Is(err, grid.ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
}

func newJoinedConnection(t *testing.T, s *Session, p *models.Player) *Connection {
	t.Helper()
	conn := &Connection{
		send:          make(chan []byte, 64),
		server:        &Server{session: s},
		player:        p,
		authenticated: true,
	}
	if _, err := s.AddPlayer(p, conn); err != nil {
		t.Fatalf("AddPlayer %s: %v", p.ID, err)
	}
	return conn
}

// cellTwoAway returns a cell two steps from pos that is not pos itself
func cellTwoAway(t *testing.T, pos grid.Point3, res grid.Resolution) grid.Point3 {
	t.Helper()
	nbs, err := movement.Neighbors(pos, res)
	if err != nil {
		t.Fatalf("neighbors: %v", err)
	}
	further, err := movement.Neighbors(nbs[0], res)
	if err != nil {
		t.Fatalf("neighbors: %v", err)
	}
	for _, c := range further {
		if !grid.SameCell(c, pos, res) && !containsCell(nbs, c, res) {
			return c
		}
	}
	t.Fatalf("no cell two steps from %v", pos)
	return grid.Point3{}
}

func containsCell(cells []grid.Point3, p grid.Point3, res grid.Resolution) bool {
	for _, c := range cells {
		if grid.SameCell(c, p, res) {
			return true
		}
	}
	return false
}

func TestClosingReplacedConnectionKeepsPlayer(t *testing.T) {
	s := newTestSession(t)
	connA := newJoinedConnection(t, s, &models.Player{ID: "1", Username: "alice"})
	rejoined := &models.Player{ID: "1", Username: "alice"}
	connB := newJoinedConnection(t, s, rejoined)
	d := rejoined.Dweller

	connA.Close()

	if _, ok := s.GetPlayer("1"); !ok {
		t.Fatalf("closing the old connection removed the rejoined player")
	}
	if err := s.QueueMove("1", network.MoveTurnLeft); err != nil {
		t.Fatalf("QueueMove after old connection closed: %v", err)
	}
	if !s.Globe().IsOccupied(d.Pos) {
		t.Fatalf("dweller should still stand on %v", d.Pos)
	}

	connB.Close()
	if _, ok := s.GetPlayer("1"); ok {
		t.Fatalf("closing the live connection should remove the player")
	}
	if s.Globe().IsOccupied(d.Pos) {
		t.Fatalf("cell %v should be free after the player left", d.Pos)
	}
}

func TestLeaveBroadcastsToOthers(t *testing.T) {
	s := newTestSession(t)
	connA := newJoinedConnection(t, s, &models.Player{ID: "1", Username: "alice"})
	connB := newJoinedConnection(t, s, &models.Player{ID: "2", Username: "bob"})

	connA.Close()
	left := messagesOfType(drain(t, connB), network.MsgTypePlayerLeft)
	if len(left) != 1 {
		t.Fatalf("expected one player_left, got %d", len(left))
	}
	var payload network.PlayerLeftPayload
	if err := json.Unmarshal(left[0].Payload, &payload); err != nil {
		t.Fatalf("player_left payload: %v", err)
	}
	if payload.PlayerID != "1" {
		t.Fatalf("unexpected player_left %+v", payload)
	}
}

func TestRouteDroppedWhenNextCellOccupied(t *testing.T) {
	s := newTestSession(t)
	d, err := s.AddPlayer(&models.Player{ID: "1"}, newTestConnection())
	if err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	res := s.Globe().Resolution

	if _, err := s.PlanRoute("1", cellTwoAway(t, d.Pos, res)); err != nil {
		t.Fatalf("PlanRoute: %v", err)
	}
	if err := s.Globe().Place("blocker", s.routes["1"][0]); err != nil {
		t.Fatalf("Place: %v", err)
	}

	pos, dir := d.Pos, d.Dir
	for i := 0; i < 10; i++ {
		s.Tick()
	}
	if len(s.routes["1"]) != 0 {
		t.Fatalf("blocked route should be dropped, %v left", s.routes["1"])
	}
	if d.Pos != pos || d.Dir != dir {
		t.Fatalf("dweller should stay at %v facing %v, got %v facing %v", pos, dir, d.Pos, d.Dir)
	}
}

func TestForwardIntoOccupiedCellRefused(t *testing.T) {
	s := newTestSession(t)
	conn := newTestConnection()
	d, err := s.AddPlayer(&models.Player{ID: "1"}, conn)
	if err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	s.Tick()
	drain(t, conn)

	ahead, aheadDir := d.Pos, d.Dir
	if err := movement.MoveForward(&ahead, &aheadDir, s.Globe().Resolution); err != nil {
		t.Fatalf("MoveForward: %v", err)
	}
	if err := s.Globe().Place("blocker", ahead); err != nil {
		t.Fatalf("Place: %v", err)
	}

	pos, dir := d.Pos, d.Dir
	if err := s.QueueMove("1", network.MoveForward); err != nil {
		t.Fatalf("QueueMove: %v", err)
	}
	s.Tick()
	if d.Pos != pos || d.Dir != dir {
		t.Fatalf("step into %v should be refused, dweller moved to %v", ahead, d.Pos)
	}
	if got := messagesOfType(drain(t, conn), network.MsgTypeSetPos); len(got) != 0 {
		t.Fatalf("expected no set_pos for a refused step, got %d", len(got))
	}

	s.Globe().Remove("blocker", ahead)
	if err := s.QueueMove("1", network.MoveForward); err != nil {
		t.Fatalf("QueueMove: %v", err)
	}
	s.Tick()
	if d.Pos != ahead || d.Dir != aheadDir {
		t.Fatalf("expected %v facing %v once the cell is free, got %v facing %v", ahead, aheadDir, d.Pos, d.Dir)
	}
}

func TestApplySetPos(t *testing.T) {
	s := newTestSession(t)
	conn := newTestConnection()
	d, err := s.AddPlayer(&models.Player{ID: "1"}, conn)
	if err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	res := s.Globe().Resolution
	s.Tick()
	drain(t, conn)

	if _, err := s.PlanRoute("1", cellTwoAway(t, d.Pos, res)); err != nil {
		t.Fatalf("PlanRoute: %v", err)
	}

	start := d.Pos
	pos, dir := d.Pos, d.Dir
	if err := movement.MoveForward(&pos, &dir, res); err != nil {
		t.Fatalf("MoveForward: %v", err)
	}

	update, err := s.ApplySetPos("1", pos, dir, grid.TurnRight)
	if err != nil {
		t.Fatalf("ApplySetPos: %v", err)
	}
	if update.Pos != pos || update.Dir != dir || update.LastTurnBias != grid.TurnRight || update.EntityID != d.EntityID {
		t.Fatalf("unexpected update %+v", update)
	}
	if d.Pos != pos || d.Dir != dir {
		t.Fatalf("dweller not moved: %+v", d)
	}
	if s.Globe().IsOccupied(start) || !s.Globe().IsOccupied(pos) {
		t.Fatalf("occupancy not moved from %v to %v", start, pos)
	}
	if len(s.routes["1"]) != 0 {
		t.Fatalf("set_pos should cancel the route")
	}

	// The sender is not told about its own move.
	s.Tick()
	if got := messagesOfType(drain(t, conn), network.MsgTypeSetPos); len(got) != 0 {
		t.Fatalf("expected no set_pos echo, got %d", len(got))
	}

	// Turning in place is accepted.
	turnPos, turnDir := d.Pos, d.Dir
	if err := movement.TurnRightByOneHexEdge(&turnPos, &turnDir, res); err != nil {
		t.Fatalf("TurnRight: %v", err)
	}
	if _, err := s.ApplySetPos("1", turnPos, turnDir, grid.TurnRight); err != nil {
		t.Fatalf("ApplySetPos turn: %v", err)
	}
}

func TestApplySetPosRejections(t *testing.T) {
	s := newTestSession(t)
	d, err := s.AddPlayer(&models.Player{ID: "1"}, newTestConnection())
	if err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	res := s.Globe().Resolution

	farPos, farDir := d.Pos, d.Dir
	for i := 0; i < 2; i++ {
		if err := movement.MoveForward(&farPos, &farDir, res); err != nil {
			t.Fatalf("MoveForward: %v", err)
		}
	}
	nearPos, nearDir := d.Pos, d.Dir
	if err := movement.MoveForward(&nearPos, &nearDir, res); err != nil {
		t.Fatalf("MoveForward: %v", err)
	}

	tests := []struct {
		name string
		id   string
		pos  grid.Point3
		dir  grid.Dir
		want error
	}{
		{"not joined", "nobody", d.Pos, d.Dir, ErrNotInSession},
		{"off the globe", "1", grid.Point3{X: -4}, d.Dir, grid.ErrOutOfBounds},
		{"vertex direction", "1", d.Pos, d.Dir.Add(1), movement.ErrInvalidDirection},
		{"too far", "1", farPos, farDir, ErrNotAdjacent},
	}
	for _, tt := range tests {
		if _, err := s.ApplySetPos(tt.id, tt.pos, tt.dir, grid.TurnLeft); !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}

	if err := s.Globe().Place("blocker", nearPos); err != nil {
		t.Fatalf("Place: %v", err)
	}
	if _, err := s.ApplySetPos("1", nearPos, nearDir, grid.TurnLeft); !errors.Is(err, ErrCellOccupied) {
		t.Fatalf("expected ErrCellOccupied, got %v", err)
	}
	if !s.Globe().IsOccupied(d.Pos) || len(s.Globe().Occupants(nearPos)) != 1 {
		t.Fatalf("rejected set_pos changed occupancy")
	}
}

func TestSetPosRelayedToOthers(t *testing.T) {
	s := newTestSession(t)
	alice := &models.Player{ID: "1", Username: "alice"}
	connA := newJoinedConnection(t, s, alice)
	connB := newJoinedConnection(t, s, &models.Player{ID: "2", Username: "bob"})
	s.Tick()
	drain(t, connA)
	drain(t, connB)

	res := s.Globe().Resolution
	pos, dir := alice.Dweller.Pos, alice.Dweller.Dir
	if err := movement.TurnLeftByOneHexEdge(&pos, &dir, res); err != nil {
		t.Fatalf("TurnLeft: %v", err)
	}
	req, err := json.Marshal(network.SetPosRequest{Pos: pos, Dir: dir, LastTurnBias: grid.TurnLeft})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	connA.handleMessage(&network.ClientMessage{Type: network.MsgTypeSetPosRequest, Payload: req})

	if got := drain(t, connA); len(got) != 0 {
		t.Fatalf("sender should get nothing back, got %+v", got)
	}
	relayed := messagesOfType(drain(t, connB), network.MsgTypeSetPos)
	if len(relayed) != 1 {
		t.Fatalf("expected one relayed set_pos, got %d", len(relayed))
	}
	var payload network.SetPosPayload
	if err := json.Unmarshal(relayed[0].Payload, &payload); err != nil {
		t.Fatalf("set_pos payload: %v", err)
	}
	if payload.PlayerID != "1" || payload.Pos != pos || payload.Dir != dir {
		t.Fatalf("unexpected relayed set_pos %+v", payload)
	}

	// A rejected request is corrected for the sender only.
	bad, err := json.Marshal(network.SetPosRequest{Pos: grid.Point3{X: -4}, Dir: dir})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	connA.handleMessage(&network.ClientMessage{Type: network.MsgTypeSetPosRequest, Payload: bad})

	back := drain(t, connA)
	if len(messagesOfType(back, network.MsgTypeError)) != 1 || len(messagesOfType(back, network.MsgTypeSetPos)) != 1 {
		t.Fatalf("expected an error and a correcting set_pos, got %+v", back)
	}
	if got := drain(t, connB); len(got) != 0 {
		t.Fatalf("rejected set_pos should not be relayed, got %+v", got)
	}
}
