package wfc

import (
	"fmt"

	"github.com/Halffd/VoxelIsle/internal/config"
	"github.com/Halffd/VoxelIsle/internal/voxel"
)

// FromSpecs builds rules from their configuration form.
func FromSpecs(specs []config.ConstraintSpec, seaLevel int) ([]Constraint, error) {
	out := make([]Constraint, 0, len(specs))
	for i, spec := range specs {
		c, err := fromSpec(spec, seaLevel)
		if err != nil {
			return nil, fmt.Errorf("constraint %d (%s): %w", i, spec.Kind, err)
		}
		if spec.Priority != 0 {
			c.Priority = spec.Priority
		}
		out = append(out, c)
	}
	return out, nil
}

func fromSpec(spec config.ConstraintSpec, seaLevel int) (Constraint, error) {
	switch spec.Kind {
	case "adjacency":
		src, err := voxel.ParseBlockType(spec.Block)
		if err != nil {
			return Constraint{}, err
		}
		dir, err := voxel.ParseDirection(spec.Direction)
		if err != nil {
			return Constraint{}, err
		}
		allowed := make([]voxel.BlockType, 0, len(spec.Allowed))
		for _, name := range spec.Allowed {
			t, err := voxel.ParseBlockType(name)
			if err != nil {
				return Constraint{}, err
			}
			allowed = append(allowed, t)
		}
		return Adjacency(src, dir, allowed...), nil
	case "height":
		t, err := voxel.ParseBlockType(spec.Block)
		if err != nil {
			return Constraint{}, err
		}
		if spec.Max < spec.Min {
			return Constraint{}, fmt.Errorf("max %d below min %d", spec.Max, spec.Min)
		}
		return HeightRange(t, spec.Min, spec.Max), nil
	case "proximity":
		target, ref, err := parsePair(spec)
		if err != nil {
			return Constraint{}, err
		}
		if spec.Distance < 0 {
			return Constraint{}, fmt.Errorf("negative distance %d", spec.Distance)
		}
		return Proximity(target, ref, spec.Distance), nil
	case "geological":
		ore, host, err := parsePair(spec)
		if err != nil {
			return Constraint{}, err
		}
		return Geological(ore, host, spec.Threshold), nil
	case "biome":
		return BiomeRule(PriorityBiome, seaLevel), nil
	case "erosion":
		return Erosion(spec.Threshold, seaLevel), nil
	case "structure":
		density := spec.Density
		if density == 0 {
			density = 0.001
		}
		return Structure(PriorityStructure, density, seaLevel), nil
	default:
		return Constraint{}, fmt.Errorf("unknown kind %q", spec.Kind)
	}
}

func parsePair(spec config.ConstraintSpec) (voxel.BlockType, voxel.BlockType, error) {
	a, err := voxel.ParseBlockType(spec.Block)
	if err != nil {
		return 0, 0, err
	}
	b, err := voxel.ParseBlockType(spec.Reference)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}
