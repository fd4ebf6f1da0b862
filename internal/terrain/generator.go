package terrain

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Halffd/VoxelIsle/internal/config"
	"github.com/Halffd/VoxelIsle/internal/logging"
	"github.com/Halffd/VoxelIsle/internal/voxel"
	"github.com/Halffd/VoxelIsle/internal/wfc"
)

// Generator answers which block type belongs at a world position. Results
// are a pure function of the seed and the coordinates, and implementations
// are safe for concurrent use.
type Generator interface {
	BlockAt(x, y, z int) voxel.BlockType
	HeightAt(x, z int) float64
}

// New builds the generator selected by cfg.Terrain.Kind.
func New(cfg *config.Config, log logrus.FieldLogger) (Generator, error) {
	if log == nil {
		log = logging.Named("terrain")
	}
	switch cfg.Terrain.Kind {
	case "standard":
		return NewStandard(cfg.Terrain), nil
	case "island":
		rules, err := wfc.FromSpecs(cfg.WFC.Constraints, cfg.Terrain.SeaLevel)
		if err != nil {
			return nil, fmt.Errorf("build island constraints: %w", err)
		}
		return NewIsland(cfg.Terrain, cfg.WFC, rules, log), nil
	default:
		return nil, fmt.Errorf("unknown terrain kind %q", cfg.Terrain.Kind)
	}
}

// basicBlock is the last-resort classifier used when everything else fails.
func basicBlock(y int) voxel.BlockType {
	switch {
	case y <= 30:
		return voxel.Stone
	case y <= 32:
		return voxel.Water
	case y <= 35:
		return voxel.Sand
	default:
		return voxel.Air
	}
}
