package world

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/Halffd/VoxelIsle/internal/config"
	"github.com/Halffd/VoxelIsle/internal/voxel"
)

// ErrChunkNotStored is returned by ChunkStore.Load for chunks never saved.
var ErrChunkNotStored = errors.New("world: chunk not stored")

// ChunkStore persists edited chunks between evictions and runs. Blocks are
// passed in the chunk's storage order.
type ChunkStore interface {
	Load(coord ChunkCoord) ([]voxel.BlockType, error)
	Save(coord ChunkCoord, blocks []voxel.BlockType) error
	Delete(coord ChunkCoord) error
	Close() error
}

// OpenStore opens the store selected by cfg.Kind.
func OpenStore(cfg config.StorageConfig) (ChunkStore, error) {
	switch cfg.Kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "disk":
		return OpenDiskStore(cfg.Path)
	case "leveldb":
		return OpenLevelDBStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown storage kind %q", cfg.Kind)
	}
}

const chunkEncodingVersion = 1

// blockRun stores the raw block id; names would bloat every record.
type blockRun struct {
	Block uint8
	Count uint16
}

type chunkEncoding struct {
	Version int
	Runs    []blockRun
}

// compressBlocks run-length encodes blocks. Chunks are mostly long runs of
// stone and air, so this shrinks them a lot.
func compressBlocks(blocks []voxel.BlockType) []blockRun {
	var runs []blockRun
	for _, b := range blocks {
		if n := len(runs); n > 0 && runs[n-1].Block == uint8(b) && runs[n-1].Count < ^uint16(0) {
			runs[n-1].Count++
			continue
		}
		runs = append(runs, blockRun{Block: uint8(b), Count: 1})
	}
	return runs
}

func encodeChunkPayload(blocks []voxel.BlockType) ([]byte, error) {
	if len(blocks) != chunkVolume {
		return nil, fmt.Errorf("encode chunk: %d blocks, want %d", len(blocks), chunkVolume)
	}
	var buf bytes.Buffer
	enc := chunkEncoding{Version: chunkEncodingVersion, Runs: compressBlocks(blocks)}
	if err := gob.NewEncoder(&buf).Encode(&enc); err != nil {
		return nil, fmt.Errorf("encode chunk: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeChunkPayload(payload []byte) ([]voxel.BlockType, error) {
	var enc chunkEncoding
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&enc); err != nil {
		return nil, fmt.Errorf("decode chunk: %w", err)
	}
	if enc.Version != chunkEncodingVersion {
		return nil, fmt.Errorf("decode chunk: unsupported version %d", enc.Version)
	}
	blocks := make([]voxel.BlockType, 0, chunkVolume)
	for _, r := range enc.Runs {
		block := voxel.BlockType(r.Block)
		if !block.Valid() {
			return nil, fmt.Errorf("decode chunk: invalid block %d", r.Block)
		}
		if len(blocks)+int(r.Count) > chunkVolume {
			return nil, fmt.Errorf("decode chunk: runs exceed %d blocks", chunkVolume)
		}
		for i := 0; i < int(r.Count); i++ {
			blocks = append(blocks, block)
		}
	}
	if len(blocks) != chunkVolume {
		return nil, fmt.Errorf("decode chunk: %d blocks, want %d", len(blocks), chunkVolume)
	}
	return blocks, nil
}
