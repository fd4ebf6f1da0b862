package terrain

import (
	"testing"

	"github.com/Halffd/VoxelIsle/internal/config"
	"github.com/Halffd/VoxelIsle/internal/voxel"
)

func always(p float64) func(int64) float64 {
	return func(int64) float64 { return p }
}

func TestPickOrePriority(t *testing.T) {
	missOil := func(salt int64) float64 {
		if salt == saltOil {
			return 1
		}
		return 0
	}
	tests := []struct {
		name  string
		y     int
		depth float64
		value float64
		roll  func(int64) float64
		want  voxel.BlockType
		ok    bool
	}{
		{"oil beats everything deep down", 10, 30, 0.95, always(0), voxel.Oil, true},
		{"diamond once oil misses its roll", 10, 30, 0.95, missOil, voxel.Diamond, true},
		{"diamond above the oil band", 17, 30, 0.95, always(0), voxel.Diamond, true},
		{"shallow diamond band falls to iron", 17, 10, 0.95, always(0), voxel.Iron, true},
		{"crystal in its band", 25, 30, 0.95, always(0), voxel.Crystal, true},
		{"gold below the crystal threshold", 25, 30, 0.85, always(0), voxel.Gold, true},
		{"iron when only its threshold passes", 10, 30, 0.8, always(0), voxel.Iron, true},
		{"iron above the gold band", 45, 30, 0.95, always(0), voxel.Iron, true},
		{"coal above the iron band", 52, 30, 0.95, always(0), voxel.Coal, true},
		{"too close to the surface", 52, 2, 0.95, always(0), voxel.Air, false},
		{"noise below every threshold", 10, 30, 0.5, always(0), voxel.Air, false},
		{"every roll misses", 10, 30, 0.95, always(1), voxel.Air, false},
		{"nothing near the sky", 60, 30, 0.95, always(0), voxel.Air, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pickOre(tt.y, tt.depth, tt.value, tt.roll)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("pickOre(y=%d, depth=%v, value=%v) = %s, %v; want %s, %v", tt.y, tt.depth, tt.value, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestStandardOresRespectTheirBands(t *testing.T) {
	gen := NewStandard(config.TerrainConfig{
		Seed:         3,
		SeaLevel:     32,
		WorldHeight:  64,
		DisableCaves: true,
	}, WithHeightFunc(func(x, z int) float64 { return 60 }))

	bands := make(map[voxel.BlockType]oreRule, len(oreRules))
	for _, r := range oreRules {
		bands[r.block] = r
	}
	found := 0
	for x := 0; x < 48; x++ {
		for z := 0; z < 48; z++ {
			for y := 0; y < 58; y++ {
				b := gen.BlockAt(x, y, z)
				r, isOre := bands[b]
				if !isOre {
					continue
				}
				found++
				depth := 60 - float64(y)
				if y <= r.minY || y >= r.maxY || depth <= r.minDepth {
					t.Fatalf("%s outside its band at %d,%d,%d", b, x, y, z)
				}
			}
		}
	}
	if found == 0 {
		t.Fatalf("no ore generated in a 48x48 area")
	}
}

func TestStandardCavesFloodBelowSeaLevel(t *testing.T) {
	gen := NewStandard(config.TerrainConfig{
		Seed:        11,
		SeaLevel:    32,
		WorldHeight: 64,
		DisableOres: true,
	}, WithHeightFunc(func(x, z int) float64 { return 60 }))

	var wet, dry int
	for x := 0; x < 128 && (wet == 0 || dry == 0); x += 2 {
		for z := 0; z < 128; z += 2 {
			for y := 8; y < 55; y++ {
				if !gen.hasCave(x, y, z) {
					continue
				}
				got := gen.BlockAt(x, y, z)
				want := voxel.Air
				if y <= 32 {
					want = voxel.Water
					wet++
				} else {
					dry++
				}
				if got != want {
					t.Fatalf("cave cell at %d,%d,%d is %s, want %s", x, y, z, got, want)
				}
			}
		}
	}
	if wet == 0 || dry == 0 {
		t.Fatalf("expected caves both below and above sea level, got %d wet and %d dry cells", wet, dry)
	}

	if got := gen.BlockAt(0, 56, 0); got != voxel.Stone && got != voxel.Dirt {
		t.Fatalf("cave carved into the surface crust: %s", got)
	}
}
