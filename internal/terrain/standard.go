package terrain

import (
	"math"

	"github.com/Halffd/VoxelIsle/internal/config"
	"github.com/Halffd/VoxelIsle/internal/voxel"
)

// Per-ore salts keep the rarity draws of different ores independent.
const (
	saltOil     = 0x0111
	saltDiamond = 0x0d1a
	saltCrystal = 0x0c47
	saltGold    = 0x0601
	saltIron    = 0x0fe0
	saltCoal    = 0x0c0a
)

type oreRule struct {
	block    voxel.BlockType
	minY     int // exclusive
	maxY     int // exclusive
	minDepth float64
	value    float64
	rarity   float64
	salt     int64
}

// Checked in order, rarest first.
var oreRules = []oreRule{
	{block: voxel.Oil, minY: math.MinInt, maxY: 15, minDepth: math.Inf(-1), value: 0.85, rarity: 0.001, salt: saltOil},
	{block: voxel.Diamond, minY: math.MinInt, maxY: 20, minDepth: 20, value: 0.9, rarity: 0.0005, salt: saltDiamond},
	{block: voxel.Crystal, minY: 20, maxY: 40, minDepth: math.Inf(-1), value: 0.88, rarity: 0.001, salt: saltCrystal},
	{block: voxel.Gold, minY: math.MinInt, maxY: 30, minDepth: 15, value: 0.82, rarity: 0.003, salt: saltGold},
	{block: voxel.Iron, minY: math.MinInt, maxY: 50, minDepth: 5, value: 0.75, rarity: 0.01, salt: saltIron},
	{block: voxel.Coal, minY: math.MinInt, maxY: 55, minDepth: 3, value: 0.7, rarity: 0.02, salt: saltCoal},
}

// Standard is the layered heightmap generator with caves and ores.
type Standard struct {
	seed     int64
	seaLevel int
	caves    bool
	ores     bool

	height       *NoiseField
	heightDetail *NoiseField
	cave         *NoiseField
	caveDensity  *NoiseField
	ore          *NoiseField
	biome        *NoiseField

	heightFn func(x, z int) float64
}

type StandardOption func(*Standard)

// WithHeightFunc replaces the noise heightmap.
func WithHeightFunc(fn func(x, z int) float64) StandardOption {
	return func(g *Standard) { g.heightFn = fn }
}

func NewStandard(cfg config.TerrainConfig, opts ...StandardOption) *Standard {
	seed := cfg.Seed
	g := &Standard{
		seed:         seed,
		seaLevel:     cfg.SeaLevel,
		caves:        !cfg.DisableCaves,
		ores:         !cfg.DisableOres,
		height:       NewNoiseField(seed * 16807),
		heightDetail: NewNoiseField(seed * 48271),
		cave:         NewNoiseField(seed * 65539),
		caveDensity:  NewNoiseField(seed * 22699),
		ore:          NewNoiseField(seed * 37449),
		biome:        NewNoiseField(seed * 104729),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Standard) BlockAt(x, y, z int) voxel.BlockType {
	h := g.HeightAt(x, z)
	fy := float64(y)

	if y <= g.seaLevel && fy > h {
		return voxel.Water
	}
	if fy > h {
		return voxel.Air
	}
	if g.caves && fy < h-5 && g.hasCave(x, y, z) {
		if y <= g.seaLevel {
			return voxel.Water
		}
		return voxel.Air
	}
	if g.ores {
		if ore, ok := g.oreAt(x, y, z, h); ok {
			return ore
		}
	}

	sea := float64(g.seaLevel)
	switch depth := h - fy; {
	case depth < 1:
		if h > sea+2 {
			return voxel.Grass
		}
		return voxel.Sand
	case depth < 4:
		if h > sea {
			return voxel.Dirt
		}
		return voxel.Sand
	default:
		return voxel.Stone
	}
}

// HeightAt returns the surface height of the column at x, z.
func (g *Standard) HeightAt(x, z int) float64 {
	if g.heightFn != nil {
		return g.heightFn(x, z)
	}
	fx, fz := float64(x), float64(z)

	biome := (g.biome.Noise2D(fx*0.004, fz*0.004) + 1) * 0.5
	continental := math.Pow((g.height.Noise2D(fx*0.005, fz*0.005)+1)*0.5, 1.5)
	hills := g.height.Noise2D(fx*0.02, fz*0.02)
	detail := g.heightDetail.Octave2D(fx*0.08, fz*0.08, 3, 0.5) * 0.45

	h := float64(g.seaLevel)
	h += continental * 30
	h += hills * 12 * continental
	h += detail * 6 * continental

	switch {
	case biome > 0.6:
		f := (biome - 0.6) / 0.4
		h += f * f * 20
	case biome < 0.3:
		h -= (0.3 - biome) / 0.3 * 8
	}
	return math.Max(h, 5)
}

func (g *Standard) hasCave(x, y, z int) bool {
	if y < 8 || y > 55 {
		return false
	}
	fx, fy, fz := float64(x), float64(y), float64(z)
	shape := g.cave.Noise3D(fx*0.03, fy*0.04, fz*0.03)

	depthFactor := 1.0
	switch {
	case y > 40:
		depthFactor = 1 - (fy-40)/15
	case y < 20:
		depthFactor = 0.7 + (fy-8)/40
	}
	local := g.caveDensity.Octave3D(fx*0.01, fy*0.01, fz*0.01, 2, 0.5) * 0.1
	threshold := (0.6 - local) * depthFactor

	if y > 15 && y < 45 && g.caveDensity.Noise3D(fx*0.008, fy*0.008, fz*0.008) > 0.4 {
		threshold -= 0.1
	}
	return shape > threshold
}

func (g *Standard) oreAt(x, y, z int, h float64) (voxel.BlockType, bool) {
	value := g.ore.Noise3D(float64(x)*0.1, float64(y)*0.1, float64(z)*0.1)
	return pickOre(y, h-float64(y), value, func(salt int64) float64 {
		return voxel.Chance(g.seed^salt, x, y, z)
	})
}

// pickOre returns the first rule, rarest first, whose height band, depth and
// noise threshold admit the cell and whose rarity roll succeeds.
func pickOre(y int, depth, value float64, roll func(salt int64) float64) (voxel.BlockType, bool) {
	for _, r := range oreRules {
		if y <= r.minY || y >= r.maxY || depth <= r.minDepth || value <= r.value {
			continue
		}
		if roll(r.salt) < r.rarity {
			return r.block, true
		}
	}
	return voxel.Air, false
}
