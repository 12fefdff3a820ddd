// Package pathfinder implements the cached A* next-step query shared
// by every moving agent in a process (spec §4.2).
package pathfinder

import (
	"container/heap"
	"errors"
	"sync"

	"github.com/sti-hpc/hospicon/pkg/geometry"
	"github.com/sti-hpc/hospicon/pkg/plan"
)

// ErrNoPath is returned when no path exists between two cells.
var ErrNoPath = errors.New("pathfinder: no path")

// Pathfinder answers NextStep queries against a plan's obstacle mask,
// memoizing the next step of every cell on each path a search finds,
// so later queries from a cell on an earlier path short-circuit.
// Cells a search explores that are not on the path it finds are not
// memoized. NextStep and CacheMisses serialize on an internal mutex;
// each process owns exactly one Pathfinder.
type Pathfinder struct {
	plan *plan.Plan

	// paths[goal][from] = next step to take from "from" towards "goal".
	paths map[geometry.DiscreteCoord]map[geometry.DiscreteCoord]geometry.DiscreteCoord

	// misses counts cache misses across all goals, surfaced as a diagnostic
	// metric only (spec §7 "diagnostic only").
	misses uint64
	mu     sync.Mutex
}

// New constructs a Pathfinder bound to an immutable plan.
func New(p *plan.Plan) *Pathfinder {
	return &Pathfinder{
		plan:  p,
		paths: make(map[geometry.DiscreteCoord]map[geometry.DiscreteCoord]geometry.DiscreteCoord),
	}
}

// CacheMisses returns the number of A* searches run so far (diagnostic only).
func (pf *Pathfinder) CacheMisses() uint64 {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.misses
}

// NextStep returns the next cell to step into along a shortest
// Manhattan-path from "from" towards "goal".
func (pf *Pathfinder) NextStep(from, goal geometry.DiscreteCoord) (geometry.DiscreteCoord, error) {
	if from.Equal(goal) {
		return from, nil
	}

	pf.mu.Lock()
	defer pf.mu.Unlock()

	cache, ok := pf.paths[goal]
	if !ok {
		cache = make(map[geometry.DiscreteCoord]geometry.DiscreteCoord)
		pf.paths[goal] = cache
	}
	if next, ok := cache[from]; ok {
		return next, nil
	}

	pf.misses++
	if err := pf.search(from, goal, cache); err != nil {
		return geometry.DiscreteCoord{}, err
	}
	next, ok := cache[from]
	if !ok {
		return geometry.DiscreteCoord{}, ErrNoPath
	}
	return next, nil
}

// walkable mirrors spec §4.2's neighbor rule: a neighbor is walkable
// if the plan marks it walkable OR it is the search goal (so agents
// can step onto the exit or another otherwise-non-walkable
// destination).
func (pf *Pathfinder) walkable(c, goal geometry.DiscreteCoord) bool {
	if c.Equal(goal) {
		return pf.plan.InBounds(c)
	}
	return pf.plan.Walkable(c)
}

// search runs A* with a Manhattan heuristic from "from" to "goal",
// memoizing the next-step for every cell on the path it finds (see
// reconstruct), in the teacher's container/heap-based priority queue
// idiom.
func (pf *Pathfinder) search(from, goal geometry.DiscreteCoord, cache map[geometry.DiscreteCoord]geometry.DiscreteCoord) error {
	open := &openSet{}
	heap.Init(open)

	gScore := map[geometry.DiscreteCoord]int64{from: 0}
	cameFrom := map[geometry.DiscreteCoord]geometry.DiscreteCoord{}
	visited := map[geometry.DiscreteCoord]bool{}

	heap.Push(open, &openNode{coord: from, f: from.ManhattanDistance(goal), order: 0})
	var insertOrder int

	for open.Len() > 0 {
		current := heap.Pop(open).(*openNode)
		if visited[current.coord] {
			continue
		}
		visited[current.coord] = true

		if current.coord.Equal(goal) {
			reconstruct(from, goal, cameFrom, cache)
			return nil
		}

		for _, n := range current.coord.Neighbors4() {
			if !pf.walkable(n, goal) {
				continue
			}
			tentativeG := gScore[current.coord] + 1
			if existing, ok := gScore[n]; ok && tentativeG >= existing {
				continue
			}
			gScore[n] = tentativeG
			cameFrom[n] = current.coord
			insertOrder++
			heap.Push(open, &openNode{coord: n, f: tentativeG + n.ManhattanDistance(goal), order: insertOrder})
		}
	}

	return ErrNoPath
}

// reconstruct walks the cameFrom chain from goal back to from,
// memoizing the (cell, nextStepTowardsGoal) pair of every cell on
// that path, not just the query endpoints. Cells the search explored
// off that path are not memoized.
func reconstruct(from, goal geometry.DiscreteCoord, cameFrom map[geometry.DiscreteCoord]geometry.DiscreteCoord, cache map[geometry.DiscreteCoord]geometry.DiscreteCoord) {
	// Build the path as a slice from "from" to "goal".
	path := []geometry.DiscreteCoord{goal}
	cur := goal
	for !cur.Equal(from) {
		prev, ok := cameFrom[cur]
		if !ok {
			break
		}
		path = append(path, prev)
		cur = prev
	}
	// path is now [goal, ..., from]; reverse to [from, ..., goal].
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	for i := 0; i < len(path)-1; i++ {
		if _, ok := cache[path[i]]; !ok {
			cache[path[i]] = path[i+1]
		}
	}
}

// openNode is one entry of the A* open set.
type openNode struct {
	coord geometry.DiscreteCoord
	f     int64
	order int // insertion order, used to break ties deterministically
	index int
}

// openSet is a container/heap priority queue ordered by f-score, with
// deterministic insertion-order tie-breaks (spec §4.2).
type openSet []*openNode

func (s openSet) Len() int { return len(s) }
func (s openSet) Less(i, j int) bool {
	if s[i].f != s[j].f {
		return s[i].f < s[j].f
	}
	return s[i].order < s[j].order
}
func (s openSet) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
	s[i].index = i
	s[j].index = j
}
func (s *openSet) Push(x any) {
	n := x.(*openNode)
	n.index = len(*s)
	*s = append(*s, n)
}
func (s *openSet) Pop() any {
	old := *s
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*s = old[:n-1]
	return item
}
