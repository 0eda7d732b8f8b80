package path

import (
	"container/heap"
	"errors"
	"fmt"
	"math"

	"github.com/gravitas-games/hexglobe/pkg/hexcore/grid"
	"github.com/gravitas-games/hexglobe/pkg/hexcore/movement"
)

// ErrNoPath is returned when the goal cannot be reached
var ErrNoPath = errors.New("no path")

// maxStepRatio bounds how much longer, on the unit sphere, any single step
// is than a step away from a pole. Dividing by it keeps the heuristic
// admissible.
const maxStepRatio = 2.0

// AStar computes a shortest path between two cells of the globe.
// - passable: reports whether a cell may be entered; nil allows every cell.
// The start cell is always allowed.
// Returns the path including start and goal, each in its owning root.
func AStar(start, goal grid.Point3, res grid.Resolution, passable func(grid.Point3) bool) ([]grid.Point3, error) {
	startK, err := grid.PosInOwningRoot(start, res)
	if err != nil {
		return nil, fmt.Errorf("path start: %w", err)
	}
	goalK, err := grid.PosInOwningRoot(goal, res)
	if err != nil {
		return nil, fmt.Errorf("path goal: %w", err)
	}
	if startK == goalK {
		return []grid.Point3{startK}, nil
	}
	if passable == nil {
		passable = func(grid.Point3) bool { return true }
	}

	h := HeuristicTo(goalK, res)

	// priority queue of nodes by fScore
	open := &nodePQ{}
	heap.Init(open)
	push := func(p grid.Point3, f float64) { heap.Push(open, &pqNode{p: p, f: f}) }

	g := map[grid.Point3]int{startK: 0}
	came := map[grid.Point3]grid.Point3{}
	closed := map[grid.Point3]bool{}
	push(startK, float64(h(startK)))

	for open.Len() > 0 {
		cur := heap.Pop(open).(*pqNode).p
		if closed[cur] {
			continue
		}
		closed[cur] = true
		if cur == goalK {
			return reconstruct(came, startK, goalK), nil
		}

		nbs, err := movement.Neighbors(cur, res)
		if err != nil {
			return nil, err
		}
		for _, nb := range nbs {
			if closed[nb] || !passable(nb) {
				continue
			}
			tentative := g[cur] + 1
			if old, ok := g[nb]; !ok || tentative < old {
				g[nb] = tentative
				came[nb] = cur
				push(nb, float64(tentative+h(nb)))
			}
		}
	}
	return nil, ErrNoPath
}

func reconstruct(came map[grid.Point3]grid.Point3, start, goal grid.Point3) []grid.Point3 {
	path := []grid.Point3{goal}
	for k := goal; k != start; {
		k = came[k]
		path = append(path, k)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// HeuristicTo returns a lower bound on the number of steps from a cell to
// goal, based on the straight-line distance between their centres.
func HeuristicTo(goal grid.Point3, res grid.Resolution) func(p grid.Point3) int {
	target := grid.CellCenterOnUnitSphere(goal, res)
	poleStep := grid.CellCenterOnUnitSphere(grid.Point3{}, res).
		Sub(grid.CellCenterOnUnitSphere(grid.Point3{Y: 1}, res)).Len()
	maxStep := maxStepRatio * poleStep
	return func(p grid.Point3) int {
		d := grid.CellCenterOnUnitSphere(p, res).Sub(target).Len()
		return int(math.Floor(d / maxStep))
	}
}

// PQ implementation
type pqNode struct {
	p   grid.Point3
	f   float64
	idx int
}

type nodePQ []*pqNode

func (p nodePQ) Len() int           { return len(p) }
func (p nodePQ) Less(i, j int) bool { return p[i].f < p[j].f }
func (p nodePQ) Swap(i, j int)      { p[i], p[j] = p[j], p[i]; p[i].idx = i; p[j].idx = j }
func (p *nodePQ) Push(x any)        { *p = append(*p, x.(*pqNode)) }
func (p *nodePQ) Pop() any          { old := *p; n := len(old); x := old[n-1]; *p = old[:n-1]; return x }
