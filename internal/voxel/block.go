package voxel

import (
	"fmt"
	"strings"
)

// BlockType is the closed set of materials a voxel can hold.
type BlockType uint8

const (
	Air BlockType = iota
	Stone
	Dirt
	Grass
	Sand
	Water
	Coal
	Iron
	Gold
	Diamond
	Crystal
	Oil
	Wood
	Gravel
	Clay
	Leaves
	Sandstone
	Cactus
	CoalOre
	IronOre

	blockTypeCount
)

// NumBlockTypes is the number of defined block types.
const NumBlockTypes = int(blockTypeCount)

type blockInfo struct {
	name     string
	solid    bool
	hardness float64
}

var blockInfos = [blockTypeCount]blockInfo{
	Air:       {"air", false, 0},
	Stone:     {"stone", true, 2.0},
	Dirt:      {"dirt", true, 0.5},
	Grass:     {"grass", true, 0.6},
	Sand:      {"sand", true, 0.5},
	Water:     {"water", false, 0},
	Coal:      {"coal", true, 2.5},
	Iron:      {"iron", true, 4.0},
	Gold:      {"gold", true, 3.0},
	Diamond:   {"diamond", true, 5.0},
	Crystal:   {"crystal", true, 4.5},
	Oil:       {"oil", false, 0},
	Wood:      {"wood", true, 1.5},
	Gravel:    {"gravel", true, 0.6},
	Clay:      {"clay", true, 0.7},
	Leaves:    {"leaves", true, 0.2},
	Sandstone: {"sandstone", true, 0.8},
	Cactus:    {"cactus", true, 0.4},
	CoalOre:   {"coal_ore", true, 3.0},
	IronOre:   {"iron_ore", true, 5.0},
}

// Valid reports whether b is one of the defined block types.
func (b BlockType) Valid() bool {
	return b < blockTypeCount
}

func (b BlockType) Solid() bool {
	return b.Valid() && blockInfos[b].solid
}

func (b BlockType) Hardness() float64 {
	if !b.Valid() {
		return 0
	}
	return blockInfos[b].hardness
}

// Liquid reports whether the block flows (water and oil).
func (b BlockType) Liquid() bool {
	return b == Water || b == Oil
}

func (b BlockType) String() string {
	if !b.Valid() {
		return fmt.Sprintf("block(%d)", uint8(b))
	}
	return blockInfos[b].name
}

// MarshalText encodes the block by name so configs stay readable.
func (b BlockType) MarshalText() ([]byte, error) {
	if !b.Valid() {
		return nil, fmt.Errorf("invalid block type %d", uint8(b))
	}
	return []byte(blockInfos[b].name), nil
}

func (b *BlockType) UnmarshalText(text []byte) error {
	parsed, err := ParseBlockType(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// ParseBlockType resolves a block type by name, ignoring case.
func ParseBlockType(name string) (BlockType, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i := range blockInfos {
		if blockInfos[i].name == key {
			return BlockType(i), nil
		}
	}
	return Air, fmt.Errorf("unknown block type %q", name)
}
