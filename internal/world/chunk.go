package world

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Halffd/VoxelIsle/internal/voxel"
)

// NeighborSource resolves blocks outside a chunk while meshing. The owning
// world answers from loaded chunks and falls back to the generator.
type NeighborSource interface {
	BlockAt(x, y, z int) voxel.BlockType
}

// BlockSource fills a chunk. terrain.Generator satisfies it.
type BlockSource interface {
	BlockAt(x, y, z int) voxel.BlockType
}

// Chunk stores a dense 16x64x16 block grid and its latest mesh.
type Chunk struct {
	coord     ChunkCoord
	bounds    Bounds
	neighbors NeighborSource
	order     OrderPolicy

	mu     sync.RWMutex
	blocks [chunkVolume]voxel.BlockType

	// meshMu orders concurrent rebuilds so a later snapshot always
	// publishes last.
	meshMu sync.Mutex

	generated atomic.Bool
	dirty     atomic.Bool
	edited    atomic.Bool
	disposed  atomic.Bool
	mesh      atomic.Pointer[Mesh]
	version   atomic.Uint64
}

func NewChunk(coord ChunkCoord, neighbors NeighborSource) *Chunk {
	return &Chunk{
		coord:     coord,
		bounds:    boundsOf(coord),
		neighbors: neighbors,
		order:     UnorderedInstances,
	}
}

func (c *Chunk) Coord() ChunkCoord { return c.coord }

// Bounds is fixed at construction.
func (c *Chunk) Bounds() Bounds { return c.bounds }

func blockIndex(x, y, z int) int {
	return (y*ChunkDepth+z)*ChunkWidth + x
}

func inChunk(x, y, z int) bool {
	return x >= 0 && x < ChunkWidth && y >= 0 && y < ChunkHeight && z >= 0 && z < ChunkDepth
}

// Generate asks src for every voxel of the chunk, one call each, then builds
// the mesh. It is slow and belongs on a worker.
func (c *Chunk) Generate(src BlockSource) {
	var grid [chunkVolume]voxel.BlockType
	o := c.coord.Origin()
	for y := 0; y < ChunkHeight; y++ {
		for z := 0; z < ChunkDepth; z++ {
			for x := 0; x < ChunkWidth; x++ {
				grid[blockIndex(x, y, z)] = src.BlockAt(o.X+x, y, o.Z+z)
			}
		}
	}
	c.mu.Lock()
	c.blocks = grid
	c.mu.Unlock()
	c.generated.Store(true)
	c.CreateMesh()
}

// Restore fills the chunk from previously saved blocks instead of
// generating it.
func (c *Chunk) Restore(blocks []voxel.BlockType) error {
	if len(blocks) != chunkVolume {
		return fmt.Errorf("chunk %s: restore %d blocks, want %d", c.coord, len(blocks), chunkVolume)
	}
	c.mu.Lock()
	copy(c.blocks[:], blocks)
	c.mu.Unlock()
	c.generated.Store(true)
	c.CreateMesh()
	return nil
}

// Blocks returns a copy of the grid in storage order.
func (c *Chunk) Blocks() []voxel.BlockType {
	out := make([]voxel.BlockType, chunkVolume)
	c.mu.RLock()
	copy(out, c.blocks[:])
	c.mu.RUnlock()
	return out
}

// BlockAt reads local coordinates. Anything outside the chunk is air.
func (c *Chunk) BlockAt(x, y, z int) voxel.BlockType {
	if !inChunk(x, y, z) {
		return voxel.Air
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks[blockIndex(x, y, z)]
}

// SetBlockAt writes local coordinates and marks the chunk dirty. It never
// rebuilds the mesh; the caller schedules that.
func (c *Chunk) SetBlockAt(x, y, z int, t voxel.BlockType) bool {
	if !inChunk(x, y, z) || !t.Valid() {
		return false
	}
	c.mu.Lock()
	c.blocks[blockIndex(x, y, z)] = t
	c.dirty.Store(true)
	c.edited.Store(true)
	c.mu.Unlock()
	return true
}

// CreateMesh rebuilds and publishes the instance list from a snapshot of the
// grid. Edits made while it runs leave the chunk dirty.
func (c *Chunk) CreateMesh() *Mesh {
	c.meshMu.Lock()
	defer c.meshMu.Unlock()

	prev := c.mesh.Load()
	// dirty is cleared under the same lock edits set it under, so an edit
	// either lands in this snapshot or leaves the chunk dirty.
	c.mu.RLock()
	grid := c.blocks
	c.dirty.Store(false)
	c.mu.RUnlock()

	o := c.coord.Origin()
	instances := make([]Instance, 0, chunkVolume/8)
	for y := 0; y < ChunkHeight; y++ {
		for z := 0; z < ChunkDepth; z++ {
			for x := 0; x < ChunkWidth; x++ {
				t := grid[blockIndex(x, y, z)]
				if t == voxel.Air {
					continue
				}
				var faces uint8
				for _, d := range voxel.Directions {
					dx, dy, dz := d.Offset()
					if faceExposed(t, c.neighbour(&grid, x+dx, y+dy, z+dz)) {
						faces |= 1 << d
					}
				}
				if faces == 0 {
					continue
				}
				instances = append(instances, Instance{
					Position: mgl32.Vec3{float32(o.X + x), float32(y), float32(o.Z + z)},
					Block:    t,
					Faces:    faces,
				})
			}
		}
	}
	c.order.Arrange(instances)

	m := &Mesh{Instances: instances, Version: c.version.Add(1)}
	if !c.disposed.Load() {
		// Loses against a concurrent Dispose.
		c.mesh.CompareAndSwap(prev, m)
	}
	return m
}

// neighbour resolves a local coordinate that may fall outside the chunk. The
// sky is open and bedrock is closed.
func (c *Chunk) neighbour(grid *[chunkVolume]voxel.BlockType, x, y, z int) voxel.BlockType {
	switch {
	case y >= ChunkHeight:
		return voxel.Air
	case y < 0:
		return voxel.Stone
	case inChunk(x, y, z):
		return grid[blockIndex(x, y, z)]
	case c.neighbors == nil:
		return voxel.Air
	}
	o := c.coord.Origin()
	return c.neighbors.BlockAt(o.X+x, y, o.Z+z)
}

// Mesh returns the latest published mesh, or nil before the first build.
func (c *Chunk) Mesh() *Mesh {
	return c.mesh.Load()
}

// IsReady reports whether the chunk has blocks and a mesh and is still live.
func (c *Chunk) IsReady() bool {
	return c.generated.Load() && c.mesh.Load() != nil && !c.disposed.Load()
}

func (c *Chunk) Generated() bool { return c.generated.Load() }

// Dirty reports an edit the published mesh does not reflect yet.
func (c *Chunk) Dirty() bool { return c.dirty.Load() }

// Edited reports changes since the chunk was generated or restored.
func (c *Chunk) Edited() bool { return c.edited.Load() }

func (c *Chunk) Disposed() bool { return c.disposed.Load() }

// Dispose drops the mesh. Blocks stay readable so they can still be saved.
func (c *Chunk) Dispose() {
	c.disposed.Store(true)
	c.mesh.Store(nil)
}
