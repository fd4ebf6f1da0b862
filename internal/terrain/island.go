package terrain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Halffd/VoxelIsle/internal/config"
	"github.com/Halffd/VoxelIsle/internal/logging"
	"github.com/Halffd/VoxelIsle/internal/voxel"
	"github.com/Halffd/VoxelIsle/internal/wfc"
)

const (
	islandFrequency    = 0.003
	archipelagoScale   = 0.0008
	islandShapeScale   = 0.01
	islandSizeVariance = 2.5
	islandMaxRise      = 25
)

// IslandStats counts how surface solves ended. Counters only ever grow and
// never feed back into generation.
type IslandStats struct {
	Solves         int64
	Contradictions int64
	Timeouts       int64
	Fallbacks      int64
	Panics         int64
}

// Island generates an ocean world with scattered islands whose surface
// blocks are chosen by the constraint solver.
type Island struct {
	seed          int64
	seaLevel      int
	worldHeight   int
	oceanBias     float64
	surfaceCutoff int
	maxAttempts   int
	solveTimeout  time.Duration

	solver      *wfc.Solver
	archipelago *NoiseField
	centers     *NoiseField
	shape       *NoiseField
	log         logrus.FieldLogger

	// heuristicHook runs before the height heuristic; tests use it to force
	// the last-resort path.
	heuristicHook func(x, y, z int)

	solves         atomic.Int64
	contradictions atomic.Int64
	timeouts       atomic.Int64
	fallbacks      atomic.Int64
	panics         atomic.Int64
}

func NewIsland(tc config.TerrainConfig, wc config.WFCConfig, rules []wfc.Constraint, log logrus.FieldLogger) *Island {
	if log == nil {
		log = logging.Named("terrain")
	}
	opts := []wfc.Option{wfc.WithSeaLevel(tc.SeaLevel), wfc.WithLogger(log.WithField("component", "wfc"))}
	if wc.Verbose {
		trace := log.WithField("component", "wfc-trace")
		opts = append(opts, wfc.WithTrace(func(ev wfc.Event) {
			trace.WithFields(logrus.Fields{
				"pos":    ev.Pos.String(),
				"kind":   ev.Kind,
				"before": ev.Before,
				"after":  ev.After,
			}).Debug("domain change")
		}))
	}
	return &Island{
		seed:          tc.Seed,
		seaLevel:      tc.SeaLevel,
		worldHeight:   tc.WorldHeight,
		oceanBias:     wc.OceanBias,
		surfaceCutoff: wc.SurfaceCutoff,
		maxAttempts:   wc.MaxAttempts,
		solveTimeout:  wc.SolveTimeout.Duration(),
		solver:        wfc.NewSolver(rules, tc.Seed, opts...),
		archipelago:   NewNoiseField(tc.Seed * 65537),
		centers:       NewNoiseField(tc.Seed * 12289),
		shape:         NewNoiseField(tc.Seed * 37171),
		log:           log,
	}
}

// BlockAt never panics. Solver failures fall back to the height heuristic
// and heuristic failures to a constant classifier.
func (g *Island) BlockAt(x, y, z int) voxel.BlockType {
	if y < 0 || y >= g.worldHeight {
		return voxel.Air
	}
	if y >= g.surfaceCutoff {
		t, err := g.surfaceBlock(x, y, z)
		if err == nil {
			return t
		}
		g.fallbacks.Add(1)
		g.log.WithError(err).WithFields(logrus.Fields{"x": x, "y": y, "z": z}).Debug("surface solve failed, using heightmap")
	}
	return g.heightBlock(x, y, z)
}

// HeightAt is the heightmap surface used outside of solver batches.
func (g *Island) HeightAt(x, z int) float64 {
	v := g.IslandValue(x, z)
	rise := math.Max(0, (v-g.oceanBias)/(1-g.oceanBias))
	return float64(g.seaLevel) + math.Pow(rise, 0.7)*islandMaxRise
}

// IslandValue blends archipelago, island centre and shape noise into [0, 1].
// Values above the ocean bias are land.
func (g *Island) IslandValue(x, z int) float64 {
	fx, fz := float64(x), float64(z)
	v := (g.archipelago.Noise2D(fx*archipelagoScale, fz*archipelagoScale) + 1) * 0.5
	v += (g.centers.Noise2D(fx*islandFrequency, fz*islandFrequency) + 1) * 0.3
	v += g.shape.Noise2D(fx*islandShapeScale, fz*islandShapeScale) * 0.3
	return clamp(v*islandSizeVariance, 0, 1)
}

func (g *Island) Stats() IslandStats {
	return IslandStats{
		Solves:         g.solves.Load(),
		Contradictions: g.contradictions.Load(),
		Timeouts:       g.timeouts.Load(),
		Fallbacks:      g.fallbacks.Load(),
		Panics:         g.panics.Load(),
	}
}

func (g *Island) surfaceBlock(x, y, z int) (t voxel.BlockType, err error) {
	defer func() {
		if r := recover(); r != nil {
			g.panics.Add(1)
			err = fmt.Errorf("surface solve panicked: %v", r)
		}
	}()

	if g.IslandValue(x, z) <= g.oceanBias {
		if y <= g.seaLevel {
			return voxel.Water, nil
		}
		return voxel.Air, nil
	}

	center := voxel.Pos(x, y, z)
	positions := surfaceNeighbourhood(center)
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		local := wfc.NewLocalContext(true)
		solver := g.solver.WithSeed(attemptSeed(g.seed, center, attempt))

		ctx, cancel := context.WithTimeout(context.Background(), g.solveTimeout)
		err = solver.Solve(ctx, local, positions)
		cancel()

		switch {
		case err == nil:
			g.solves.Add(1)
			solver.PlaceStructures(local, positions)
			if t, ok := local.BlockAt(center); ok {
				return t, nil
			}
			return voxel.Air, errors.New("solved batch is missing its centre")
		case errors.Is(err, wfc.ErrTimeout):
			g.timeouts.Add(1)
		default:
			g.contradictions.Add(1)
		}
	}
	return voxel.Air, fmt.Errorf("%d attempts exhausted: %w", g.maxAttempts, err)
}

func (g *Island) heightBlock(x, y, z int) (t voxel.BlockType) {
	defer func() {
		if r := recover(); r != nil {
			g.panics.Add(1)
			g.log.WithField("panic", r).Warn("height heuristic failed, using basic classifier")
			t = basicBlock(y)
		}
	}()
	if g.heuristicHook != nil {
		g.heuristicHook(x, y, z)
	}

	if g.IslandValue(x, z) <= g.oceanBias {
		if y <= g.seaLevel {
			return voxel.Water
		}
		return voxel.Air
	}

	h := g.HeightAt(x, z)
	fy := float64(y)
	if fy > h {
		return voxel.Air
	}
	sea := float64(g.seaLevel)
	switch depth := h - fy; {
	case depth < 1:
		if h > sea+1 {
			return voxel.Grass
		}
		return voxel.Sand
	case depth < 3:
		if h > sea+1 {
			return voxel.Dirt
		}
		return voxel.Sand
	default:
		return voxel.Stone
	}
}

// surfaceNeighbourhood is the 3x2x3 block of positions solved together for
// one surface query: the centre layer and the layer above it.
func surfaceNeighbourhood(center voxel.Position) []voxel.Position {
	out := make([]voxel.Position, 0, 18)
	for dx := -1; dx <= 1; dx++ {
		for dy := 0; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				out = append(out, center.Offset(dx, dy, dz))
			}
		}
	}
	return out
}

func attemptSeed(seed int64, p voxel.Position, attempt int) int64 {
	return int64(voxel.Hash3(seed+int64(attempt)*0x2545f491, p.X, p.Y, p.Z))
}
