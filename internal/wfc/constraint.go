package wfc

import (
	"fmt"

	"github.com/Halffd/VoxelIsle/internal/voxel"
)

// Kind tags the closed set of constraint variants.
type Kind uint8

const (
	KindAdjacency Kind = iota
	KindHeightRange
	KindProximity
	KindGeological
	KindBiome
	KindErosion
	KindStructure
)

var kindNames = [...]string{
	KindAdjacency:   "adjacency",
	KindHeightRange: "height",
	KindProximity:   "proximity",
	KindGeological:  "geological",
	KindBiome:       "biome",
	KindErosion:     "erosion",
	KindStructure:   "structure",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Default evaluation priorities. Higher runs first.
const (
	PriorityAdjacency  = 10
	PriorityHeight     = 8
	PriorityErosion    = 7
	PriorityGeological = 6
	PriorityProximity  = 5
	PriorityBiome      = 4
	PriorityStructure  = 1
)

// Biome is the coarse climate class the biome rule derives for a position.
type Biome uint8

const (
	BiomeOcean Biome = iota
	BiomePlains
	BiomeForest
	BiomeDesert
	BiomeMountain
)

var biomeNames = [...]string{"ocean", "plains", "forest", "desert", "mountain"}

func (b Biome) String() string {
	if int(b) < len(biomeNames) {
		return biomeNames[b]
	}
	return fmt.Sprintf("biome(%d)", b)
}

var biomeBlocks = [...]voxel.BlockSet{
	BiomeOcean:    voxel.SetOf(voxel.Water, voxel.Sand, voxel.Gravel, voxel.Clay, voxel.Air),
	BiomePlains:   voxel.SetOf(voxel.Grass, voxel.Dirt, voxel.Stone, voxel.Air),
	BiomeForest:   voxel.SetOf(voxel.Grass, voxel.Dirt, voxel.Stone, voxel.Wood, voxel.Leaves, voxel.Air),
	BiomeDesert:   voxel.SetOf(voxel.Sand, voxel.Sandstone, voxel.Cactus, voxel.Air),
	BiomeMountain: voxel.SetOf(voxel.Stone, voxel.CoalOre, voxel.IronOre, voxel.Air),
}

// Constraint is a declarative local rule. Which fields matter depends on
// Kind; use the constructors rather than filling the struct by hand.
//
// Constraints never write to the world. Structure rules only take effect
// through Solver.PlaceStructures after a committed solve.
type Constraint struct {
	Kind     Kind
	Priority int

	// Block is the subject type: adjacency source, height/proximity target,
	// geological ore.
	Block voxel.BlockType
	// Reference is the proximity reference or geological host rock.
	Reference voxel.BlockType
	Direction voxel.Direction
	Allowed   voxel.BlockSet
	MinY      int
	MaxY      int
	Distance  int
	Threshold float64
	Density   float64
	SeaLevel  int
}

func Adjacency(source voxel.BlockType, dir voxel.Direction, allowed ...voxel.BlockType) Constraint {
	return Constraint{
		Kind:      KindAdjacency,
		Priority:  PriorityAdjacency,
		Block:     source,
		Direction: dir,
		Allowed:   voxel.SetOf(allowed...),
	}
}

// HeightRange restricts t to the inclusive band [minY, maxY].
func HeightRange(t voxel.BlockType, minY, maxY int) Constraint {
	return Constraint{Kind: KindHeightRange, Priority: PriorityHeight, Block: t, MinY: minY, MaxY: maxY}
}

// Proximity requires a reference block within a Manhattan distance of target.
func Proximity(target, reference voxel.BlockType, maxDistance int) Constraint {
	return Constraint{
		Kind:      KindProximity,
		Priority:  PriorityProximity,
		Block:     target,
		Reference: reference,
		Distance:  maxDistance,
	}
}

// Geological requires ore to sit in a neighbourhood where the host rock makes
// up at least threshold of the known blocks.
func Geological(ore, host voxel.BlockType, threshold float64) Constraint {
	return Constraint{
		Kind:      KindGeological,
		Priority:  PriorityGeological,
		Block:     ore,
		Reference: host,
		Threshold: threshold,
	}
}

func BiomeRule(priority, seaLevel int) Constraint {
	return Constraint{Kind: KindBiome, Priority: priority, SeaLevel: seaLevel}
}

// Erosion only lets air exist where the water flow potential reaches threshold.
func Erosion(threshold float64, seaLevel int) Constraint {
	return Constraint{Kind: KindErosion, Priority: PriorityErosion, Threshold: threshold, SeaLevel: seaLevel}
}

// Structure places a small tree-like pillar on solid ground with the given
// per-position density.
func Structure(priority int, density float64, seaLevel int) Constraint {
	return Constraint{Kind: KindStructure, Priority: priority, Density: density, SeaLevel: seaLevel}
}

// IsValid reports whether t may occupy p given what r already knows.
func (c Constraint) IsValid(p voxel.Position, t voxel.BlockType, r Reader) bool {
	switch c.Kind {
	case KindAdjacency:
		if t != c.Block {
			return true
		}
		n, known := r.BlockAt(p.Add(c.Direction))
		return !known || c.Allowed.Has(n)
	case KindHeightRange:
		if t != c.Block {
			return true
		}
		return p.Y >= c.MinY && p.Y <= c.MaxY
	case KindProximity:
		if t != c.Block {
			return true
		}
		return c.referenceNearby(p, r)
	case KindGeological:
		if t != c.Block {
			return true
		}
		return c.hostDensity(p, r) >= c.Threshold
	case KindBiome:
		return biomeBlocks[c.BiomeAt(p, r)].Has(t)
	case KindErosion:
		if t != voxel.Air {
			return true
		}
		return c.flowPotential(p, r) >= c.Threshold
	default:
		return true
	}
}

// AllowedTypes returns the subset of types this rule permits at p.
func (c Constraint) AllowedTypes(p voxel.Position, r Reader) voxel.BlockSet {
	switch c.Kind {
	case KindAdjacency:
		if src, known := r.BlockAt(p.Add(c.Direction.Opposite())); known && src == c.Block {
			return c.Allowed
		}
	case KindHeightRange:
		if p.Y < c.MinY || p.Y > c.MaxY {
			return voxel.AllBlocks.Remove(c.Block)
		}
	case KindProximity:
		if !c.referenceNearby(p, r) {
			return voxel.AllBlocks.Remove(c.Block)
		}
	case KindGeological:
		if c.hostDensity(p, r) < c.Threshold {
			return voxel.AllBlocks.Remove(c.Block)
		}
	case KindBiome:
		return biomeBlocks[c.BiomeAt(p, r)]
	case KindErosion:
		if c.flowPotential(p, r) < c.Threshold {
			return voxel.AllBlocks.Remove(voxel.Air)
		}
	}
	return voxel.AllBlocks
}

// BiomeAt classifies p the way the biome rule does.
func (c Constraint) BiomeAt(p voxel.Position, r Reader) Biome {
	switch {
	case p.Y <= c.SeaLevel:
		return BiomeOcean
	case r.TemperatureAt(p) > 70 && r.HumidityAt(p) < 30:
		return BiomeDesert
	case r.HeightAt(p.X, p.Z) > 50:
		return BiomeMountain
	case r.HumidityAt(p) > 60:
		return BiomeForest
	default:
		return BiomePlains
	}
}

func (c Constraint) referenceNearby(p voxel.Position, r Reader) bool {
	d := c.Distance
	for dx := -d; dx <= d; dx++ {
		for dy := -d; dy <= d; dy++ {
			for dz := -d; dz <= d; dz++ {
				if abs(dx)+abs(dy)+abs(dz) > d {
					continue
				}
				if b, known := r.BlockAt(p.Offset(dx, dy, dz)); known && b == c.Reference {
					return true
				}
			}
		}
	}
	return false
}

func (c Constraint) hostDensity(p voxel.Position, r Reader) float64 {
	host, total := 0, 0
	for dx := -2; dx <= 2; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -2; dz <= 2; dz++ {
				b, known := r.BlockAt(p.Offset(dx, dy, dz))
				if !known {
					continue
				}
				total++
				if b == c.Reference {
					host++
				}
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(host) / float64(total)
}

func (c Constraint) flowPotential(p voxel.Position, r Reader) float64 {
	potential := 0.0
	if p.Y > c.SeaLevel {
		potential += float64(p.Y-c.SeaLevel) * 0.1
	}
	for _, d := range voxel.Directions {
		n := p.Add(d)
		b, known := r.BlockAt(n)
		if !known {
			continue
		}
		switch {
		case b == voxel.Water:
			potential += 0.8
		case b == voxel.Air && n.Y > p.Y:
			potential += 0.3
		}
	}
	return potential
}

func (c Constraint) String() string {
	switch c.Kind {
	case KindAdjacency:
		return fmt.Sprintf("adjacency(%s %s %s)", c.Block, c.Direction, c.Allowed)
	case KindHeightRange:
		return fmt.Sprintf("height(%s %d..%d)", c.Block, c.MinY, c.MaxY)
	case KindProximity:
		return fmt.Sprintf("proximity(%s near %s <= %d)", c.Block, c.Reference, c.Distance)
	case KindGeological:
		return fmt.Sprintf("geological(%s in %s >= %.2f)", c.Block, c.Reference, c.Threshold)
	case KindErosion:
		return fmt.Sprintf("erosion(>= %.2f)", c.Threshold)
	case KindStructure:
		return fmt.Sprintf("structure(%.4f)", c.Density)
	default:
		return c.Kind.String()
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
