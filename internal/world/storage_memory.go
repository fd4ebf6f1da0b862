package world

import (
	"sync"

	"github.com/Halffd/VoxelIsle/internal/voxel"
)

// MemoryStore keeps saved chunks for the lifetime of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[ChunkCoord][]voxel.BlockType
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chunks: make(map[ChunkCoord][]voxel.BlockType)}
}

func (m *MemoryStore) Load(coord ChunkCoord) ([]voxel.BlockType, error) {
	m.mu.RLock()
	blocks, ok := m.chunks[coord]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrChunkNotStored
	}
	dup := make([]voxel.BlockType, len(blocks))
	copy(dup, blocks)
	return dup, nil
}

func (m *MemoryStore) Save(coord ChunkCoord, blocks []voxel.BlockType) error {
	dup := make([]voxel.BlockType, len(blocks))
	copy(dup, blocks)
	m.mu.Lock()
	m.chunks[coord] = dup
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(coord ChunkCoord) error {
	m.mu.Lock()
	delete(m.chunks, coord)
	m.mu.Unlock()
	return nil
}

// Len reports how many chunks are saved.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

func (m *MemoryStore) Close() error {
	return nil
}
