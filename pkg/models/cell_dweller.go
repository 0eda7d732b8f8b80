package models

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/gravitas-games/hexglobe/pkg/hexcore/grid"
	"github.com/gravitas-games/hexglobe/pkg/hexcore/movement"
)

// CellDweller is an entity that lives on a single cell of the globe and
// moves one cell at a time. Its position is always canonical.
type CellDweller struct {
	EntityID string      `json:"entity_id"`
	Pos      grid.Point3 `json:"pos"`
	Dir      grid.Dir    `json:"dir"`
	// Direction of the most recent turn; used to break the tie when
	// turning around on a pentagon
	LastTurnBias grid.TurnDir `json:"last_turn_bias"`

	// Set whenever Pos or Dir change, cleared by TakeDirty
	dirty bool
}

// NewCellDweller places a new dweller at pos facing dir. pos and dir must
// already be canonical for res.
func NewCellDweller(pos grid.Point3, dir grid.Dir, res grid.Resolution) (*CellDweller, error) {
	if !res.Contains(pos) {
		return nil, fmt.Errorf("new cell dweller: %w", grid.ErrOutOfBounds)
	}
	if !dir.PointsAtHexEdge() {
		return nil, fmt.Errorf("new cell dweller: %w", movement.ErrInvalidDirection)
	}
	return &CellDweller{
		EntityID:     uuid.NewString(),
		Pos:          pos,
		Dir:          dir,
		LastTurnBias: grid.TurnLeft,
		dirty:        true,
	}, nil
}

// StepForward moves the dweller one cell ahead.
func (cd *CellDweller) StepForward(res grid.Resolution) error {
	if err := movement.MoveForward(&cd.Pos, &cd.Dir, res); err != nil {
		return fmt.Errorf("step forward: %w", err)
	}
	cd.dirty = true
	return nil
}

// Turn rotates the dweller one hex edge in place.
func (cd *CellDweller) Turn(turn grid.TurnDir, res grid.Resolution) error {
	if err := movement.TurnByOneHexEdge(&cd.Pos, &cd.Dir, res, turn); err != nil {
		return fmt.Errorf("turn %s: %w", turn, err)
	}
	cd.LastTurnBias = turn
	cd.dirty = true
	return nil
}

// TurnAround faces the dweller back the way it came. Consecutive
// turn-arounds alternate their bias so that on a pentagon they undo each
// other.
func (cd *CellDweller) TurnAround(res grid.Resolution) error {
	if err := movement.TurnAroundAndFaceNeighbor(&cd.Pos, &cd.Dir, res, cd.LastTurnBias); err != nil {
		return fmt.Errorf("turn around: %w", err)
	}
	cd.LastTurnBias = cd.LastTurnBias.Opposite()
	cd.dirty = true
	return nil
}

// SetCellTransform overwrites the dweller's state, e.g. from an
// authoritative server update.
func (cd *CellDweller) SetCellTransform(pos grid.Point3, dir grid.Dir, lastTurnBias grid.TurnDir) {
	cd.Pos = pos
	cd.Dir = dir
	cd.LastTurnBias = lastTurnBias
	cd.dirty = true
}

// TakeDirty reports whether the dweller changed since the last call, and
// marks it clean.
func (cd *CellDweller) TakeDirty() bool {
	dirty := cd.dirty
	cd.dirty = false
	return dirty
}

// RealPosition returns the dweller's cell centre in world space on a
// globe of the given radius.
func (cd *CellDweller) RealPosition(res grid.Resolution, radius float64) mgl64.Vec3 {
	return grid.CellCenterOnUnitSphere(cd.Pos, res).Mul(radius)
}
