package globe

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"

	"github.com/zyedidia/generic/mapset"

	"github.com/gravitas-games/hexglobe/pkg/hexcore/grid"
	"github.com/gravitas-games/hexglobe/pkg/hexcore/hex"
	"github.com/gravitas-games/hexglobe/pkg/hexcore/movement"
)

var (
	// ErrNoFreeCell is returned when Spawn cannot find an empty cell
	ErrNoFreeCell = errors.New("no free cell")
	// ErrNotCanonical is returned for a position/direction pair whose next
	// cell lies outside the root
	ErrNotCanonical = errors.New("position is not canonical")
)

// spawnAttempts bounds how many seed cells Spawn tries before giving up
const spawnAttempts = 16

// Globe tracks which entities stand on which cell of the world
type Globe struct {
	Resolution grid.Resolution
	Radius     float64

	// Keyed by the owning-root form of each cell so that edge cells seen
	// from two roots share one entry
	cells map[grid.Point3]mapset.Set[string]
	mu    sync.RWMutex

	// Upper bound on how far Spawn searches around a seed cell
	SpawnSearchRadius int
}

// New creates an empty globe at the given resolution
func New(res grid.Resolution, radius float64, spawnSearchRadius int) (*Globe, error) {
	if err := res.Validate(); err != nil {
		return nil, fmt.Errorf("new globe: %w", err)
	}

	log.Printf("Creating globe at resolution [%d, %d] with %d cells", res.X, res.Y, res.CellCount())

	return &Globe{
		Resolution:        res,
		Radius:            radius,
		cells:             make(map[grid.Point3]mapset.Set[string]),
		SpawnSearchRadius: spawnSearchRadius,
	}, nil
}

// Place puts an entity on the cell at pos
func (g *Globe) Place(id string, pos grid.Point3) error {
	key, err := grid.PosInOwningRoot(pos, g.Resolution)
	if err != nil {
		return fmt.Errorf("place %s: %w", id, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.put(id, key)
	return nil
}

// Remove takes an entity off the cell at pos. Removing an entity that is
// not there is a no-op.
func (g *Globe) Remove(id string, pos grid.Point3) {
	key, err := grid.PosInOwningRoot(pos, g.Resolution)
	if err != nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.remove(id, key)
}

// Move transfers an entity from one cell to another
func (g *Globe) Move(id string, from, to grid.Point3) error {
	fromKey, err := grid.PosInOwningRoot(from, g.Resolution)
	if err != nil {
		return fmt.Errorf("move %s: %w", id, err)
	}
	toKey, err := grid.PosInOwningRoot(to, g.Resolution)
	if err != nil {
		return fmt.Errorf("move %s: %w", id, err)
	}
	if fromKey == toKey {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.remove(id, fromKey)
	g.put(id, toKey)
	return nil
}

// Occupants returns the ids of every entity on the cell at pos, sorted
func (g *Globe) Occupants(pos grid.Point3) []string {
	key, err := grid.PosInOwningRoot(pos, g.Resolution)
	if err != nil {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	set, ok := g.cells[key]
	if !ok {
		return nil
	}
	ids := make([]string, 0, set.Size())
	set.Each(func(id string) {
		ids = append(ids, id)
	})
	sort.Strings(ids)
	return ids
}

// IsOccupied reports whether anything stands on the cell at pos
func (g *Globe) IsOccupied(pos grid.Point3) bool {
	key, err := grid.PosInOwningRoot(pos, g.Resolution)
	if err != nil {
		return false
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.occupied(key)
}

// OccupiedCells returns how many distinct cells hold at least one entity
func (g *Globe) OccupiedCells() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.cells)
}

// Spawn picks a free cell strictly inside a root, away from the pentagons,
// and a facing to go with it. The search looks outward from random seed
// cells first and falls back to scanning the whole globe.
func (g *Globe) Spawn(rng *rand.Rand) (grid.Point3, grid.Dir, error) {
	res := g.Resolution
	if res.X < 2 {
		// Every cell of the smallest globe sits on a root edge.
		return grid.Point3{}, 0, fmt.Errorf("spawn at resolution [%d, %d]: %w", res.X, res.Y, ErrNoFreeCell)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	dir := grid.NewDir(2 * rng.Intn(6))

	for attempt := 0; attempt < spawnAttempts; attempt++ {
		root := grid.Root(rng.Intn(grid.RootQuads))
		seed := hex.Axial{Q: 1 + rng.Intn(res.X-1), R: 1 + rng.Intn(res.Y-1)}

		for _, a := range hex.Spiral(seed, g.SpawnSearchRadius) {
			pos := grid.Point3{Root: root, X: a.Q, Y: a.R}
			if g.spawnable(pos) {
				return pos, dir, nil
			}
		}
	}

	first := rng.Intn(grid.RootQuads)
	for i := 0; i < grid.RootQuads; i++ {
		root := grid.Root(first).Offset(i)
		for y := 1; y < res.Y; y++ {
			for x := 1; x < res.X; x++ {
				pos := grid.Point3{Root: root, X: x, Y: y}
				if g.spawnable(pos) {
					return pos, dir, nil
				}
			}
		}
	}
	return grid.Point3{}, 0, ErrNoFreeCell
}

// spawnable must be called with mu held
func (g *Globe) spawnable(pos grid.Point3) bool {
	if !g.Resolution.Interior(pos) || grid.IsPentagon(pos, g.Resolution) {
		return false
	}
	// Interior cells are already in their owning root.
	return !g.occupied(pos)
}

// ValidatePlacement checks a client-supplied position and facing before
// it is trusted
func (g *Globe) ValidatePlacement(pos grid.Point3, dir grid.Dir) error {
	if !pos.Root.Valid() || !g.Resolution.Contains(pos) {
		return fmt.Errorf("validate %v: %w", pos, grid.ErrOutOfBounds)
	}
	if !dir.PointsAtHexEdge() {
		return fmt.Errorf("validate %v facing %v: %w", pos, dir, movement.ErrInvalidDirection)
	}
	next, err := movement.AdjacentPosInDir(pos, dir)
	if err != nil {
		return fmt.Errorf("validate %v facing %v: %w", pos, dir, err)
	}
	if !g.Resolution.Contains(next) {
		return fmt.Errorf("validate %v facing %v: %w", pos, dir, ErrNotCanonical)
	}
	return nil
}

func (g *Globe) occupied(key grid.Point3) bool {
	set, ok := g.cells[key]
	return ok && set.Size() > 0
}

func (g *Globe) put(id string, key grid.Point3) {
	set, ok := g.cells[key]
	if !ok {
		set = mapset.New[string]()
		g.cells[key] = set
	}
	set.Put(id)
}

func (g *Globe) remove(id string, key grid.Point3) {
	set, ok := g.cells[key]
	if !ok {
		return
	}
	set.Remove(id)
	if set.Size() == 0 {
		delete(g.cells, key)
	}
}
