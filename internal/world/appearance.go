package world

import (
	"image/color"

	"github.com/Halffd/VoxelIsle/internal/voxel"
)

// BlockAppearance captures the preview styling of a block type.
type BlockAppearance struct {
	Color    string
	Emission float64
}

// DefaultAppearances maps every block type to its preview colour.
var DefaultAppearances = map[voxel.BlockType]BlockAppearance{
	voxel.Stone:     {Color: "#7f7f7f"},
	voxel.Dirt:      {Color: "#8b5a2b"},
	voxel.Grass:     {Color: "#5d9b3d"},
	voxel.Sand:      {Color: "#dbcf8e"},
	voxel.Water:     {Color: "#2f5fbf"},
	voxel.Coal:      {Color: "#2b2b2b"},
	voxel.Iron:      {Color: "#c8a08a"},
	voxel.Gold:      {Color: "#f2c94c", Emission: 0.2},
	voxel.Diamond:   {Color: "#5ce1e6", Emission: 0.3},
	voxel.Crystal:   {Color: "#b784f7", Emission: 0.6},
	voxel.Oil:       {Color: "#1a1423"},
	voxel.Wood:      {Color: "#6b4a2b"},
	voxel.Gravel:    {Color: "#8e8a85"},
	voxel.Clay:      {Color: "#a3a8b8"},
	voxel.Leaves:    {Color: "#3f7f2f"},
	voxel.Sandstone: {Color: "#d8c38a"},
	voxel.Cactus:    {Color: "#4e8a3a"},
	voxel.CoalOre:   {Color: "#4a4a4a"},
	voxel.IronOre:   {Color: "#9a8070"},
}

var fallbackColor = color.NRGBA{R: 128, G: 128, B: 128, A: 255}

// Appearance returns the styling for t, falling back to neutral grey.
func Appearance(t voxel.BlockType) (color.NRGBA, float64) {
	a, ok := DefaultAppearances[t]
	if !ok {
		return fallbackColor, 0
	}
	col, ok := parseHexColor(a.Color)
	if !ok {
		return fallbackColor, a.Emission
	}
	return col, a.Emission
}
