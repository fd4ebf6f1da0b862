package voxel

import (
	"math/bits"
	"strings"
)

// BlockSet is a bitset over BlockType. The zero value is the empty set.
type BlockSet uint32

// AllBlocks contains every defined block type.
const AllBlocks BlockSet = 1<<blockTypeCount - 1

// SetOf builds a set from the given types.
func SetOf(types ...BlockType) BlockSet {
	var s BlockSet
	for _, t := range types {
		s = s.Add(t)
	}
	return s
}

func (s BlockSet) Has(t BlockType) bool {
	return t.Valid() && s&(1<<t) != 0
}

func (s BlockSet) Add(t BlockType) BlockSet {
	if !t.Valid() {
		return s
	}
	return s | 1<<t
}

func (s BlockSet) Remove(t BlockType) BlockSet {
	if !t.Valid() {
		return s
	}
	return s &^ (1 << t)
}

func (s BlockSet) Intersect(o BlockSet) BlockSet { return s & o }

func (s BlockSet) Union(o BlockSet) BlockSet { return s | o }

func (s BlockSet) Len() int { return bits.OnesCount32(uint32(s)) }

func (s BlockSet) Empty() bool { return s == 0 }

// Single returns the only member of a one-element set.
func (s BlockSet) Single() (BlockType, bool) {
	if s.Len() != 1 {
		return Air, false
	}
	return BlockType(bits.TrailingZeros32(uint32(s))), true
}

// Types lists the members in ascending ordinal order.
func (s BlockSet) Types() []BlockType {
	out := make([]BlockType, 0, s.Len())
	for v := uint32(s); v != 0; v &= v - 1 {
		out = append(out, BlockType(bits.TrailingZeros32(v)))
	}
	return out
}

func (s BlockSet) String() string {
	names := make([]string, 0, s.Len())
	for _, t := range s.Types() {
		names = append(names, t.String())
	}
	return "{" + strings.Join(names, ",") + "}"
}
