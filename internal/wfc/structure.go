package wfc

import (
	"sort"

	"github.com/Halffd/VoxelIsle/internal/voxel"
)

const structureSalt = 0x5f3759df

// PlaceStructures runs the structure rules over positions that a previous
// Solve committed into wc. Each qualifying air block sitting on solid ground
// in the band above sea level may grow a wood pillar capped with leaves. The
// draw is a hash of the seed and the position. It returns how many
// structures were placed.
func (s *Solver) PlaceStructures(wc WorldContext, positions []voxel.Position) int {
	if len(s.structures) == 0 {
		return 0
	}
	order := make([]voxel.Position, len(positions))
	copy(order, positions)
	sort.Slice(order, func(i, j int) bool { return order[i].Less(order[j]) })

	placed := 0
	seen := make(map[voxel.Position]struct{}, len(order))
	for _, p := range order {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		for _, rule := range s.structures {
			if !rule.canGrow(p, wc) {
				continue
			}
			if voxel.Chance(s.seed^structureSalt, p.X, p.Y, p.Z) >= rule.Density {
				continue
			}
			wc.SetBlockAt(p, voxel.Wood)
			wc.SetBlockAt(p.Add(voxel.Up), voxel.Wood)
			wc.SetBlockAt(p.Offset(0, 2, 0), voxel.Leaves)
			placed++
			break
		}
	}
	return placed
}

func (c Constraint) canGrow(p voxel.Position, r Reader) bool {
	if p.Y <= c.SeaLevel || p.Y >= 60 {
		return false
	}
	if t, known := r.BlockAt(p); !known || t != voxel.Air {
		return false
	}
	below, known := r.BlockAt(p.Add(voxel.Down))
	return known && below.Solid()
}
