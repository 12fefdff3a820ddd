package pathfinder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sti-hpc/hospicon/pkg/geometry"
	"github.com/sti-hpc/hospicon/pkg/plan"
)

func gridPlan(t *testing.T, w, h int, walls []geometry.DiscreteCoord) *plan.Plan {
	t.Helper()
	obstacles := make([][]bool, w)
	for x := range obstacles {
		obstacles[x] = make([]bool, h)
		for y := range obstacles[x] {
			obstacles[x][y] = true
		}
	}
	for _, wall := range walls {
		obstacles[wall.X][wall.Y] = false
	}
	exit := geometry.DiscreteCoord{X: int32(w - 1), Y: int32(h - 1)}
	return plan.New(w, h, obstacles, walls, nil, nil, nil, nil,
		geometry.DiscreteCoord{}, exit, plan.ICU{})
}

func TestNextStepStraightLine(t *testing.T) {
	p := gridPlan(t, 5, 5, nil)
	pf := New(p)

	from := geometry.DiscreteCoord{X: 0, Y: 0}
	goal := geometry.DiscreteCoord{X: 3, Y: 0}

	cur := from
	steps := 0
	for !cur.Equal(goal) {
		next, err := pf.NextStep(cur, goal)
		require.NoError(t, err)
		assert.LessOrEqual(t, cur.ManhattanDistance(goal), int64(4))
		cur = next
		steps++
		require.Less(t, steps, 20, "path should not loop")
	}
	assert.Equal(t, 3, steps)
}

func TestNextStepCanReachExit(t *testing.T) {
	p := gridPlan(t, 3, 3, nil)
	pf := New(p)

	from := geometry.DiscreteCoord{X: 0, Y: 0}
	goal := p.Exit
	next, err := pf.NextStep(from, goal)
	require.NoError(t, err)
	assert.NotEqual(t, from, next)
}

func TestNextStepNoPath(t *testing.T) {
	// Wall off a 3x3 grid entirely around the target cell (1,1).
	walls := []geometry.DiscreteCoord{
		{X: 0, Y: 1}, {X: 2, Y: 1}, {X: 1, Y: 0}, {X: 1, Y: 2},
	}
	p := gridPlan(t, 3, 3, walls)
	pf := New(p)

	_, err := pf.NextStep(geometry.DiscreteCoord{X: 0, Y: 0}, geometry.DiscreteCoord{X: 1, Y: 1})
	assert.ErrorIs(t, err, ErrNoPath)
}

func TestCacheGrowsMonotonically(t *testing.T) {
	p := gridPlan(t, 5, 5, nil)
	pf := New(p)
	goal := geometry.DiscreteCoord{X: 4, Y: 4}

	_, err := pf.NextStep(geometry.DiscreteCoord{X: 0, Y: 0}, goal)
	require.NoError(t, err)
	missesAfterFirst := pf.CacheMisses()
	assert.Equal(t, uint64(1), missesAfterFirst)

	// A cell on the first search's path should be a cache hit now.
	_, err = pf.NextStep(geometry.DiscreteCoord{X: 1, Y: 0}, goal)
	require.NoError(t, err)
	assert.Equal(t, missesAfterFirst, pf.CacheMisses(), "expected a cache hit, not a new search")
}
