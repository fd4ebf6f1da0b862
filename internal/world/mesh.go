package world

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Halffd/VoxelIsle/internal/voxel"
)

// Instance is one renderable voxel with at least one visible face.
type Instance struct {
	Position mgl32.Vec3
	Block    voxel.BlockType
	// Faces has bit d set when the face towards voxel.Direction d is exposed.
	Faces uint8
}

func (i Instance) Exposed(d voxel.Direction) bool {
	return i.Faces&(1<<d) != 0
}

// Mesh is an immutable instance list. A chunk swaps its whole mesh at once,
// so a reader holding a *Mesh never sees a partial rebuild.
type Mesh struct {
	Instances []Instance
	// Version increases with every rebuild of the owning chunk.
	Version uint64
}

func (m *Mesh) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Instances)
}

// OrderPolicy arranges instances before a mesh is published.
type OrderPolicy interface {
	Arrange(instances []Instance)
}

type unorderedInstances struct{}

func (unorderedInstances) Arrange([]Instance) {}

// UnorderedInstances leaves instances in scan order. Opaque voxels need no
// draw order, so instance order is unspecified.
var UnorderedInstances OrderPolicy = unorderedInstances{}

// faceExposed reports whether the face between self and neighbour is visible.
func faceExposed(self, neighbour voxel.BlockType) bool {
	if neighbour == voxel.Air {
		return true
	}
	return self.Solid() && !neighbour.Solid()
}
