package world

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/sirupsen/logrus"

	"github.com/Halffd/VoxelIsle/internal/config"
	"github.com/Halffd/VoxelIsle/internal/logging"
	"github.com/Halffd/VoxelIsle/internal/terrain"
	"github.com/Halffd/VoxelIsle/internal/voxel"
	"github.com/Halffd/VoxelIsle/internal/wfc"
)

// ErrNotLoaded is returned when an operation needs a chunk that is not
// committed yet.
var ErrNotLoaded = errors.New("world: chunk not loaded")

// World is the facade collaborators talk to. Reads fall back to the
// generator wherever no chunk is loaded.
type World struct {
	gen      terrain.Generator
	sched    *Scheduler
	reshaper *wfc.Solver
	island   bool
	log      logrus.FieldLogger
}

type options struct {
	gen   terrain.Generator
	store ChunkStore
	log   logrus.FieldLogger
}

type Option func(*options)

// WithGenerator replaces the generator built from the terrain config.
func WithGenerator(gen terrain.Generator) Option {
	return func(o *options) { o.gen = gen }
}

// WithChunkStore replaces the store built from the storage config.
func WithChunkStore(store ChunkStore) Option {
	return func(o *options) { o.store = store }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) { o.log = log }
}

// New builds the generator, store and scheduler described by cfg and starts
// the workers.
func New(cfg *config.Config, opts ...Option) (*World, error) {
	o := options{log: logging.Named("world")}
	for _, opt := range opts {
		opt(&o)
	}
	if o.gen == nil {
		gen, err := terrain.New(cfg, o.log.WithField("component", "terrain"))
		if err != nil {
			return nil, err
		}
		o.gen = gen
	}
	rules, err := wfc.FromSpecs(cfg.WFC.Constraints, cfg.Terrain.SeaLevel)
	if err != nil {
		return nil, fmt.Errorf("build reshape constraints: %w", err)
	}
	if o.store == nil {
		store, err := OpenStore(cfg.Storage)
		if err != nil {
			return nil, err
		}
		o.store = store
	}

	w := &World{
		gen:    o.gen,
		island: cfg.Terrain.Kind == "island",
		log:    o.log,
		reshaper: wfc.NewSolver(rules, cfg.Terrain.Seed,
			wfc.WithSeaLevel(cfg.Terrain.SeaLevel),
			wfc.WithLogger(o.log.WithField("component", "wfc"))),
	}
	w.sched = NewScheduler(cfg.Streaming, o.gen, w,
		WithStore(o.store),
		WithSchedulerLogger(o.log.WithField("component", "streaming")))
	return w, nil
}

// BlockAt lets the world serve as the neighbour source for meshing.
func (w *World) BlockAt(x, y, z int) voxel.BlockType {
	return w.GetBlockAt(x, y, z)
}

// GetBlockAt answers from the loaded chunk when there is one, otherwise from
// the generator.
func (w *World) GetBlockAt(x, y, z int) voxel.BlockType {
	if y < 0 || y >= ChunkHeight {
		return voxel.Air
	}
	coord, lx, lz := localOf(x, z)
	if ch, ok := w.sched.Chunk(coord); ok && ch.Generated() {
		return ch.BlockAt(lx, y, lz)
	}
	return w.gen.BlockAt(x, y, z)
}

// SetBlockAt edits a loaded chunk and queues mesh rebuilds for it and for
// every loaded chunk sharing the edited face. Edits to unloaded chunks are
// rejected.
func (w *World) SetBlockAt(x, y, z int, t voxel.BlockType) bool {
	coord, lx, lz := localOf(x, z)
	ch, ok := w.sched.Chunk(coord)
	if !ok || !ch.Generated() || !ch.SetBlockAt(lx, y, lz, t) {
		return false
	}
	w.sched.RequestRebuild(coord)
	for _, n := range boundaryNeighbours(coord, lx, lz) {
		w.sched.RequestRebuild(n)
	}
	return true
}

// boundaryNeighbours lists the chunks whose faces touch local column lx, lz.
func boundaryNeighbours(coord ChunkCoord, lx, lz int) []ChunkCoord {
	var out []ChunkCoord
	if lx == 0 {
		out = append(out, ChunkCoord{X: coord.X - 1, Z: coord.Z})
	}
	if lx == ChunkWidth-1 {
		out = append(out, ChunkCoord{X: coord.X + 1, Z: coord.Z})
	}
	if lz == 0 {
		out = append(out, ChunkCoord{X: coord.X, Z: coord.Z - 1})
	}
	if lz == ChunkDepth-1 {
		out = append(out, ChunkCoord{X: coord.X, Z: coord.Z + 1})
	}
	return out
}

// Update drives streaming around ref.
func (w *World) Update(ref mgl64.Vec3) {
	w.sched.Update(ref)
}

// Run ticks streaming until ctx is done.
func (w *World) Run(ctx context.Context, ref func() mgl64.Vec3) error {
	return w.sched.Run(ctx, ref)
}

// Pregenerate fills radius chunks around ref before streaming starts.
func (w *World) Pregenerate(ctx context.Context, ref mgl64.Vec3, radius int) (int, error) {
	return w.sched.Pregenerate(ctx, ChunkAt(ref), radius)
}

func (w *World) HeightAt(x, z int) float64 {
	return w.gen.HeightAt(x, z)
}

func (w *World) Chunk(coord ChunkCoord) (*Chunk, bool) {
	return w.sched.Chunk(coord)
}

// Loaded returns an immutable snapshot of the committed chunks.
func (w *World) Loaded() map[ChunkCoord]*Chunk {
	return w.sched.Loaded()
}

func (w *World) Stats() SchedulerStats {
	return w.sched.Stats()
}

// Close stops streaming and persists edited chunks.
func (w *World) Close() error {
	return w.sched.Close()
}

// Raycast walks the voxel grid cell by cell along dir and returns the first
// cell holding a solid, non-liquid block within maxDistance of origin.
// maxDistance must be finite.
func (w *World) Raycast(origin, dir mgl64.Vec3, maxDistance float64) (voxel.Position, bool) {
	if maxDistance <= 0 || math.IsNaN(maxDistance) || math.IsInf(maxDistance, 0) || dir.Len() == 0 {
		return voxel.Position{}, false
	}
	d := dir.Normalize()
	x, y, z := blockOf(origin)
	cell := [3]int{x, y, z}

	var step [3]int
	var tMax, tDelta [3]float64
	for i := 0; i < 3; i++ {
		switch {
		case d[i] > 0:
			step[i] = 1
			tMax[i] = (float64(cell[i]+1) - origin[i]) / d[i]
			tDelta[i] = 1 / d[i]
		case d[i] < 0:
			step[i] = -1
			tMax[i] = (origin[i] - float64(cell[i])) / -d[i]
			tDelta[i] = -1 / d[i]
		default:
			tMax[i] = math.Inf(1)
			tDelta[i] = math.Inf(1)
		}
	}

	for t := 0.0; t <= maxDistance; {
		// Nothing solid exists outside the height range, so a ray that
		// has left it heading away never hits.
		if (cell[1] >= ChunkHeight && step[1] >= 0) || (cell[1] < 0 && step[1] <= 0) {
			break
		}
		if b := w.GetBlockAt(cell[0], cell[1], cell[2]); b.Solid() && !b.Liquid() {
			return voxel.Pos(cell[0], cell[1], cell[2]), true
		}
		axis := 0
		if tMax[1] < tMax[axis] {
			axis = 1
		}
		if tMax[2] < tMax[axis] {
			axis = 2
		}
		t = tMax[axis]
		cell[axis] += step[axis]
		tMax[axis] += tDelta[axis]
	}
	return voxel.Position{}, false
}

// Reshape re-solves positions of the committed world with the configured
// constraints. Either every position is rewritten or none is. All positions
// must lie in loaded chunks.
func (w *World) Reshape(ctx context.Context, positions []voxel.Position) error {
	for _, p := range positions {
		if p.Y < 0 || p.Y >= ChunkHeight {
			return fmt.Errorf("reshape %s: outside the world", p)
		}
		coord := ChunkOf(p.X, p.Z)
		if ch, ok := w.sched.Chunk(coord); !ok || !ch.Generated() {
			return fmt.Errorf("reshape %s: %w", p, ErrNotLoaded)
		}
	}
	if err := w.reshaper.Solve(ctx, CommittedContext{w: w}, positions); err != nil {
		return fmt.Errorf("reshape: %w", err)
	}
	return nil
}

// CommittedContext exposes the live world to the constraint solver. Every
// position inside the world height is known.
type CommittedContext struct {
	w *World
}

func (c CommittedContext) BlockAt(p voxel.Position) (voxel.BlockType, bool) {
	if p.Y < 0 || p.Y >= ChunkHeight {
		return voxel.Air, false
	}
	return c.w.GetBlockAt(p.X, p.Y, p.Z), true
}

func (c CommittedContext) SetBlockAt(p voxel.Position, t voxel.BlockType) {
	if !c.w.SetBlockAt(p.X, p.Y, p.Z, t) {
		c.w.log.WithField("pos", p.String()).Warn("reshape dropped an edit outside the loaded world")
	}
}

func (c CommittedContext) HeightAt(x, z int) float64 {
	return c.w.gen.HeightAt(x, z)
}

func (c CommittedContext) TemperatureAt(p voxel.Position) float64 {
	return wfc.Temperature(p)
}

func (c CommittedContext) HumidityAt(p voxel.Position) float64 {
	return wfc.Humidity(p, c.w.island)
}
