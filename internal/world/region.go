package world

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Halffd/VoxelIsle/internal/config"
	"github.com/Halffd/VoxelIsle/internal/voxel"
)

// Chunk footprint in blocks.
const (
	ChunkWidth  = 16
	ChunkHeight = config.WorldHeight
	ChunkDepth  = 16

	chunkVolume = ChunkWidth * ChunkHeight * ChunkDepth
)

// ChunkCoord identifies a chunk column in chunk space. Chunks span the full
// world height, so there is no vertical component.
type ChunkCoord struct {
	X int
	Z int
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Z)
}

// Origin is the world position of the chunk's lowest corner.
func (c ChunkCoord) Origin() voxel.Position {
	return voxel.Pos(c.X*ChunkWidth, 0, c.Z*ChunkDepth)
}

// Distance is the Chebyshev distance in chunks. Streaming loads and evicts
// square rings, so this is the metric both sides agree on.
func (c ChunkCoord) Distance(o ChunkCoord) int {
	return max(absInt(c.X-o.X), absInt(c.Z-o.Z))
}

// Within lists every coordinate at most radius chunks from c, nearest ring
// first and in a fixed order within each ring.
func (c ChunkCoord) Within(radius int) []ChunkCoord {
	if radius < 0 {
		return nil
	}
	side := 2*radius + 1
	out := make([]ChunkCoord, 0, side*side)
	out = append(out, c)
	for ring := 1; ring <= radius; ring++ {
		for dx := -ring; dx <= ring; dx++ {
			for dz := -ring; dz <= ring; dz++ {
				if max(absInt(dx), absInt(dz)) != ring {
					continue
				}
				out = append(out, ChunkCoord{X: c.X + dx, Z: c.Z + dz})
			}
		}
	}
	return out
}

// ChunkOf returns the chunk holding the block column x, z.
func ChunkOf(x, z int) ChunkCoord {
	return ChunkCoord{X: floorDiv(x, ChunkWidth), Z: floorDiv(z, ChunkDepth)}
}

// ChunkAt returns the chunk containing a continuous world position.
func ChunkAt(pos mgl64.Vec3) ChunkCoord {
	x, _, z := blockOf(pos)
	return ChunkOf(x, z)
}

// localOf splits a world column into its chunk and the offset inside it.
func localOf(x, z int) (ChunkCoord, int, int) {
	c := ChunkOf(x, z)
	return c, x - c.X*ChunkWidth, z - c.Z*ChunkDepth
}

// Bounds is an axis-aligned box with inclusive min and exclusive max corners.
type Bounds struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

func boundsOf(c ChunkCoord) Bounds {
	o := c.Origin()
	lo := mgl64.Vec3{float64(o.X), 0, float64(o.Z)}
	return Bounds{Min: lo, Max: lo.Add(mgl64.Vec3{ChunkWidth, ChunkHeight, ChunkDepth})}
}

func (b Bounds) Contains(p mgl64.Vec3) bool {
	return p.X() >= b.Min.X() && p.X() < b.Max.X() &&
		p.Y() >= b.Min.Y() && p.Y() < b.Max.Y() &&
		p.Z() >= b.Min.Z() && p.Z() < b.Max.Z()
}

func (b Bounds) Center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func blockOf(pos mgl64.Vec3) (int, int, int) {
	return floorInt(pos.X()), floorInt(pos.Y()), floorInt(pos.Z())
}

func floorDiv(value, size int) int {
	if size <= 0 {
		return 0
	}
	if value >= 0 {
		return value / size
	}
	return -((-value - 1) / size) - 1
}

func floorInt(v float64) int {
	i := int(v)
	if v < float64(i) {
		return i - 1
	}
	return i
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
