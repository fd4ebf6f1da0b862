package wfc

import (
	"math"

	"github.com/Halffd/VoxelIsle/internal/voxel"
)

// Reader is the read-only view of a world that constraints evaluate against.
// BlockAt reports known=false for positions nothing has been decided for.
type Reader interface {
	BlockAt(p voxel.Position) (voxel.BlockType, bool)
	HeightAt(x, z int) float64
	TemperatureAt(p voxel.Position) float64
	HumidityAt(p voxel.Position) float64
}

// WorldContext is a Reader the solver can commit into.
type WorldContext interface {
	Reader
	SetBlockAt(p voxel.Position, t voxel.BlockType)
}

// LocalContext is an ephemeral map-backed world used for a single solver
// batch. It is not safe for concurrent use and is discarded after the batch.
type LocalContext struct {
	blocks map[voxel.Position]voxel.BlockType
	island bool
}

func NewLocalContext(island bool) *LocalContext {
	return &LocalContext{
		blocks: make(map[voxel.Position]voxel.BlockType),
		island: island,
	}
}

func (c *LocalContext) BlockAt(p voxel.Position) (voxel.BlockType, bool) {
	t, ok := c.blocks[p]
	return t, ok
}

func (c *LocalContext) SetBlockAt(p voxel.Position, t voxel.BlockType) {
	c.blocks[p] = t
}

// Len returns how many positions have been decided.
func (c *LocalContext) Len() int {
	return len(c.blocks)
}

// HeightAt approximates the surface. Islands get a gentle swell around 35,
// open water sits at sea level.
func (c *LocalContext) HeightAt(x, z int) float64 {
	if !c.island {
		return 32
	}
	return 35 + math.Sin(float64(x)*0.1)*math.Cos(float64(z)*0.1)*5
}

func (c *LocalContext) TemperatureAt(p voxel.Position) float64 {
	return Temperature(p)
}

func (c *LocalContext) HumidityAt(p voxel.Position) float64 {
	return Humidity(p, c.island)
}

// Temperature is the synthetic climate temperature: it cools with height and
// bottoms out at 5.
func Temperature(p voxel.Position) float64 {
	return math.Max(5, 25-float64(p.Y)*0.3)
}

// Humidity rises below sea level. Island worlds are drier than open ocean.
func Humidity(p voxel.Position, island bool) float64 {
	base := 80.0
	if island {
		base = 60
	}
	return math.Min(100, base+float64(32-p.Y)*2)
}
