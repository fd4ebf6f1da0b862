package wfc

import (
	"context"
	"errors"
	"maps"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Halffd/VoxelIsle/internal/logging"
	"github.com/Halffd/VoxelIsle/internal/voxel"
)

func islandRules() []Constraint {
	return []Constraint{
		HeightRange(voxel.Water, 0, 40),
		HeightRange(voxel.Air, 25, 64),
		Adjacency(voxel.Grass, voxel.Down, voxel.Dirt, voxel.Stone, voxel.Sand),
		Proximity(voxel.Sand, voxel.Water, 5),
		Geological(voxel.Iron, voxel.Stone, 0.3),
	}
}

func neighbourhood(x, y, z int) []voxel.Position {
	var out []voxel.Position
	for dx := -1; dx <= 1; dx++ {
		for dy := 0; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				out = append(out, voxel.Pos(x+dx, y+dy, z+dz))
			}
		}
	}
	return out
}

func newTestSolver(rules []Constraint, seed int64, opts ...Option) *Solver {
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	return NewSolver(rules, seed, opts...)
}

func TestSolveIsDeterministic(t *testing.T) {
	positions := neighbourhood(10, 30, -4)
	for seed := int64(1); seed <= 5; seed++ {
		a := NewLocalContext(true)
		b := NewLocalContext(true)
		errA := newTestSolver(islandRules(), seed).Solve(context.Background(), a, positions)
		errB := newTestSolver(islandRules(), seed).Solve(context.Background(), b, positions)

		require.Equal(t, errA == nil, errB == nil, "seed %d", seed)
		require.Equal(t, a.blocks, b.blocks, "seed %d", seed)
	}
}

func TestSolveCommitsEveryBatchPositionAndNothingElse(t *testing.T) {
	ctx := NewLocalContext(false)
	positions := neighbourhood(0, 10, 0)
	positions = append(positions, positions[0]) // duplicates collapse into one cell

	solver := newTestSolver([]Constraint{Adjacency(voxel.Grass, voxel.Down, voxel.Dirt, voxel.Stone)}, 42)
	require.NoError(t, solver.Solve(context.Background(), ctx, positions))
	require.Equal(t, 18, ctx.Len())
	for _, p := range positions {
		_, known := ctx.BlockAt(p)
		require.True(t, known, "%s not committed", p)
	}
}

func TestSolveNeverPutsGrassOnWater(t *testing.T) {
	rules := []Constraint{Adjacency(voxel.Grass, voxel.Down, voxel.Dirt, voxel.Stone)}
	var positions []voxel.Position
	for x := 0; x < 3; x++ {
		for y := 26; y <= 36; y++ {
			positions = append(positions, voxel.Pos(x, y, 0))
		}
	}

	grassSeen := false
	for seed := int64(0); seed < 40; seed++ {
		ctx := NewLocalContext(true)
		err := newTestSolver(rules, seed).Solve(context.Background(), ctx, positions)
		require.NoError(t, err, "seed %d", seed)
		for _, p := range positions {
			v, _ := ctx.BlockAt(p)
			if v != voxel.Grass {
				continue
			}
			grassSeen = true
			below, known := ctx.BlockAt(p.Add(voxel.Down))
			if known {
				require.NotEqual(t, voxel.Water, below, "seed %d: grass on water at %s", seed, p)
				require.Contains(t, []voxel.BlockType{voxel.Dirt, voxel.Stone}, below)
			}
		}
	}
	require.True(t, grassSeen, "expected at least one grass cell across seeds")
}

func TestFailedSolveLeavesContextUntouched(t *testing.T) {
	// Nothing may be stacked vertically, so any two cells in a column
	// contradict each other.
	var rules []Constraint
	for i := 0; i < voxel.NumBlockTypes; i++ {
		rules = append(rules, Adjacency(voxel.BlockType(i), voxel.Up))
		rules = append(rules, Adjacency(voxel.BlockType(i), voxel.Down))
	}

	ctx := NewLocalContext(false)
	ctx.SetBlockAt(voxel.Pos(5, 5, 5), voxel.Gold)
	ctx.SetBlockAt(voxel.Pos(0, 9, 0), voxel.Stone)
	before := maps.Clone(ctx.blocks)

	err := newTestSolver(rules, 7).Solve(context.Background(), ctx, []voxel.Position{
		voxel.Pos(0, 20, 0), voxel.Pos(0, 21, 0), voxel.Pos(0, 22, 0),
	})
	require.ErrorIs(t, err, ErrContradiction)
	require.Equal(t, before, ctx.blocks)
}

func TestCancelledSolveReportsTimeout(t *testing.T) {
	ctx := NewLocalContext(true)
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestSolver(islandRules(), 3).Solve(cancelled, ctx, neighbourhood(0, 30, 0))
	require.True(t, errors.Is(err, ErrTimeout))
	require.Zero(t, ctx.Len())
}

func TestDomainsShrinkMonotonically(t *testing.T) {
	for seed := int64(0); seed < 10; seed++ {
		sizes := make(map[voxel.Position]int)
		collapsed := make(map[voxel.Position]bool)
		trace := func(ev Event) {
			switch ev.Kind {
			case EventNarrow:
				require.False(t, collapsed[ev.Pos], "collapsed cell %s narrowed", ev.Pos)
				require.Less(t, ev.After, ev.Before)
				if last, ok := sizes[ev.Pos]; ok {
					require.LessOrEqual(t, ev.After, last)
				}
				sizes[ev.Pos] = ev.After
			case EventCollapse:
				require.False(t, collapsed[ev.Pos], "cell %s collapsed twice", ev.Pos)
				if last, ok := sizes[ev.Pos]; ok {
					require.LessOrEqual(t, ev.Before, last)
				}
				collapsed[ev.Pos] = true
				sizes[ev.Pos] = 1
			}
		}
		solver := newTestSolver(append(islandRules(), BiomeRule(PriorityBiome, 32)), seed, WithTrace(trace))
		_ = solver.Solve(context.Background(), NewLocalContext(true), neighbourhood(3, 31, 3))
	}
}

func TestSolvedBatchesSatisfyEveryRule(t *testing.T) {
	rules := append(islandRules(), BiomeRule(PriorityBiome, 32), Erosion(0.5, 32))
	successes := 0
	for seed := int64(0); seed < 20; seed++ {
		ctx := NewLocalContext(true)
		solver := newTestSolver(rules, seed)
		positions := neighbourhood(-7, 33, 12)
		if err := solver.Solve(context.Background(), ctx, positions); err != nil {
			require.ErrorIs(t, err, ErrContradiction)
			require.Zero(t, ctx.Len())
			continue
		}
		successes++
		for _, p := range positions {
			v, _ := ctx.BlockAt(p)
			for _, rule := range rules {
				require.True(t, rule.IsValid(p, v, ctx), "seed %d: %s breaks %s at %s", seed, v, rule, p)
			}
		}
	}
	require.Positive(t, successes)
}

func TestWithSeedSharesRules(t *testing.T) {
	base := newTestSolver(islandRules(), 1)
	other := base.WithSeed(99)
	require.Equal(t, int64(99), other.Seed())
	require.Equal(t, int64(1), base.Seed())
	require.Equal(t, base.Constraints(), other.Constraints())
	require.Equal(t, PriorityAdjacency, base.Constraints()[0].Priority)
}

func TestStructuresOnlyGrowInPostPass(t *testing.T) {
	rules := []Constraint{Structure(PriorityStructure, 1.0, 32)}
	solver := newTestSolver(rules, 5)
	require.Empty(t, solver.Constraints(), "structure rules are not part of the solve")

	ctx := NewLocalContext(true)
	ground := voxel.Pos(4, 40, 4)
	ctx.SetBlockAt(ground, voxel.Stone)
	site := ground.Add(voxel.Up)
	ctx.SetBlockAt(site, voxel.Air)
	high := voxel.Pos(0, 70, 0)
	ctx.SetBlockAt(high, voxel.Air)
	ctx.SetBlockAt(high.Add(voxel.Down), voxel.Stone)

	placed := solver.PlaceStructures(ctx, []voxel.Position{site, high, site})
	require.Equal(t, 1, placed)

	got, _ := ctx.BlockAt(site)
	require.Equal(t, voxel.Wood, got)
	got, _ = ctx.BlockAt(site.Offset(0, 1, 0))
	require.Equal(t, voxel.Wood, got)
	got, _ = ctx.BlockAt(site.Offset(0, 2, 0))
	require.Equal(t, voxel.Leaves, got)
	got, _ = ctx.BlockAt(high)
	require.Equal(t, voxel.Air, got)
}

func TestClimateHelpers(t *testing.T) {
	require.InDelta(t, 25.0, Temperature(voxel.Pos(0, 0, 0)), 1e-9)
	require.InDelta(t, 13.0, Temperature(voxel.Pos(0, 40, 0)), 1e-9)
	require.Equal(t, 5.0, Temperature(voxel.Pos(0, 200, 0)))

	require.Equal(t, 80.0, Humidity(voxel.Pos(0, 32, 0), false))
	require.Equal(t, 60.0, Humidity(voxel.Pos(0, 32, 0), true))
	require.Equal(t, 100.0, Humidity(voxel.Pos(0, 0, 0), false))
	require.Equal(t, 40.0, Humidity(voxel.Pos(0, 42, 0), true))

	lc := NewLocalContext(true)
	p := voxel.Pos(3, 20, 3)
	require.Equal(t, Temperature(p), lc.TemperatureAt(p))
	require.Equal(t, Humidity(p, true), lc.HumidityAt(p))
}
