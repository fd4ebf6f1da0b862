package wfc

import (
	"math/rand"
	"sort"

	"github.com/Halffd/VoxelIsle/internal/voxel"
)

// cell is the solver-local superposition for one position.
type cell struct {
	domain    voxel.BlockSet
	collapsed bool
	value     voxel.BlockType
}

func (c *cell) collapse(v voxel.BlockType) {
	c.domain = voxel.SetOf(v)
	c.collapsed = true
	c.value = v
}

// entropy is the number of remaining candidates, zero once collapsed.
func (c *cell) entropy() int {
	if c.collapsed {
		return 0
	}
	return c.domain.Len()
}

type batch struct {
	wc    WorldContext
	cells map[voxel.Position]*cell
	order []voxel.Position
}

func newBatch(wc WorldContext, positions []voxel.Position) *batch {
	b := &batch{
		wc:    wc,
		cells: make(map[voxel.Position]*cell, len(positions)),
		order: make([]voxel.Position, 0, len(positions)),
	}
	for _, p := range positions {
		if _, dup := b.cells[p]; dup {
			continue
		}
		b.cells[p] = &cell{domain: voxel.AllBlocks}
		b.order = append(b.order, p)
	}
	sort.Slice(b.order, func(i, j int) bool { return b.order[i].Less(b.order[j]) })
	return b
}

// lowestEntropy picks an uncollapsed cell with the fewest candidates,
// breaking ties with rng.
func (b *batch) lowestEntropy(rng *rand.Rand) (voxel.Position, bool) {
	best := -1
	var ties []voxel.Position
	for _, p := range b.order {
		e := b.cells[p].entropy()
		if e == 0 {
			continue
		}
		switch {
		case best < 0 || e < best:
			best = e
			ties = append(ties[:0], p)
		case e == best:
			ties = append(ties, p)
		}
	}
	if len(ties) == 0 {
		return voxel.Position{}, false
	}
	return ties[rng.Intn(len(ties))], true
}

func (b *batch) view() batchView {
	return batchView{b: b}
}

func (b *batch) pairView(p voxel.Position, a voxel.BlockType, q voxel.Position, bt voxel.BlockType) batchView {
	return batchView{b: b, paired: true, p: p, a: a, q: q, bt: bt}
}

// batchView reads collapsed batch cells as known, uncollapsed ones as
// unknown and everything outside the batch through the context. A paired
// view additionally pins two positions to candidate values.
type batchView struct {
	b      *batch
	paired bool
	p, q   voxel.Position
	a, bt  voxel.BlockType
}

func (v batchView) BlockAt(pos voxel.Position) (voxel.BlockType, bool) {
	if v.paired {
		if pos == v.p {
			return v.a, true
		}
		if pos == v.q {
			return v.bt, true
		}
	}
	if c, ok := v.b.cells[pos]; ok {
		if c.collapsed {
			return c.value, true
		}
		return voxel.Air, false
	}
	return v.b.wc.BlockAt(pos)
}

func (v batchView) HeightAt(x, z int) float64 { return v.b.wc.HeightAt(x, z) }

func (v batchView) TemperatureAt(p voxel.Position) float64 { return v.b.wc.TemperatureAt(p) }

func (v batchView) HumidityAt(p voxel.Position) float64 { return v.b.wc.HumidityAt(p) }
