package world

import (
	"bytes"
	"encoding/gob"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Halffd/VoxelIsle/internal/config"
	"github.com/Halffd/VoxelIsle/internal/voxel"
)

func sampleBlocks(marker voxel.BlockType) []voxel.BlockType {
	blocks := make([]voxel.BlockType, chunkVolume)
	for y := 0; y < ChunkHeight; y++ {
		for z := 0; z < ChunkDepth; z++ {
			for x := 0; x < ChunkWidth; x++ {
				switch {
				case y < 30:
					blocks[blockIndex(x, y, z)] = voxel.Stone
				case y == 30:
					blocks[blockIndex(x, y, z)] = voxel.Grass
				}
			}
		}
	}
	blocks[blockIndex(3, 31, 4)] = marker
	return blocks
}

func TestChunkStores(t *testing.T) {
	tests := []struct {
		name string
		open func(t *testing.T) ChunkStore
	}{
		{"memory", func(t *testing.T) ChunkStore { return NewMemoryStore() }},
		{"disk", func(t *testing.T) ChunkStore {
			s, err := OpenDiskStore(t.TempDir())
			require.NoError(t, err)
			return s
		}},
		{"leveldb", func(t *testing.T) ChunkStore {
			s, err := OpenLevelDBStore(filepath.Join(t.TempDir(), "db"))
			require.NoError(t, err)
			return s
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tt.open(t)
			defer store.Close()

			a, b := ChunkCoord{X: -3, Z: 7}, ChunkCoord{X: 2, Z: -9}
			_, err := store.Load(a)
			require.ErrorIs(t, err, ErrChunkNotStored)

			require.NoError(t, store.Save(a, sampleBlocks(voxel.Wood)))
			require.NoError(t, store.Save(b, sampleBlocks(voxel.Crystal)))
			require.NoError(t, store.Save(a, sampleBlocks(voxel.Leaves)))

			got, err := store.Load(a)
			require.NoError(t, err)
			require.Equal(t, sampleBlocks(voxel.Leaves), got)

			got, err = store.Load(b)
			require.NoError(t, err)
			require.Equal(t, voxel.Crystal, got[blockIndex(3, 31, 4)])

			require.NoError(t, store.Delete(b))
			_, err = store.Load(b)
			require.ErrorIs(t, err, ErrChunkNotStored)
			require.NoError(t, store.Delete(b), "deleting twice is fine")
		})
	}
}

func TestDiskStoreReplaysLogOnOpen(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenDiskStore(dir)
	require.NoError(t, err)

	a, b := ChunkCoord{X: 1, Z: 1}, ChunkCoord{X: -1, Z: -1}
	require.NoError(t, store.Save(a, sampleBlocks(voxel.Wood)))
	require.NoError(t, store.Save(b, sampleBlocks(voxel.Gold)))
	require.NoError(t, store.Save(a, sampleBlocks(voxel.Sand)))
	require.NoError(t, store.Delete(b))
	require.NoError(t, store.Close())

	reopened, err := OpenDiskStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, 1, reopened.Len())
	got, err := reopened.Load(a)
	require.NoError(t, err)
	require.Equal(t, voxel.Sand, got[blockIndex(3, 31, 4)])
	_, err = reopened.Load(b)
	require.ErrorIs(t, err, ErrChunkNotStored)
}

func TestLevelDBStorePersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	store, err := OpenLevelDBStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(ChunkCoord{X: 4, Z: -4}, sampleBlocks(voxel.Diamond)))
	require.NoError(t, store.Close())

	reopened, err := OpenLevelDBStore(dir)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Load(ChunkCoord{X: 4, Z: -4})
	require.NoError(t, err)
	require.Equal(t, voxel.Diamond, got[blockIndex(3, 31, 4)])
}

func TestOpenStoreSelectsKind(t *testing.T) {
	s, err := OpenStore(config.StorageConfig{Kind: "memory"})
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, s)

	s, err = OpenStore(config.StorageConfig{Kind: "disk", Path: t.TempDir()})
	require.NoError(t, err)
	require.IsType(t, &DiskStore{}, s)
	require.NoError(t, s.Close())

	_, err = OpenStore(config.StorageConfig{Kind: "disk"})
	require.Error(t, err)
	_, err = OpenStore(config.StorageConfig{Kind: "s3"})
	require.Error(t, err)
}

func TestCompressBlocksMergesRuns(t *testing.T) {
	blocks := []voxel.BlockType{voxel.Stone, voxel.Stone, voxel.Stone, voxel.Air, voxel.Air, voxel.Stone}
	runs := compressBlocks(blocks)
	require.Equal(t, []blockRun{{uint8(voxel.Stone), 3}, {uint8(voxel.Air), 2}, {uint8(voxel.Stone), 1}}, runs)
}

func TestChunkPayloadIsCompact(t *testing.T) {
	payload, err := encodeChunkPayload(sampleBlocks(voxel.Wood))
	require.NoError(t, err)
	require.Less(t, len(payload), chunkVolume/10)

	decoded, err := decodeChunkPayload(payload)
	require.NoError(t, err)
	require.Equal(t, sampleBlocks(voxel.Wood), decoded)
}

func TestDecodeChunkPayloadRejectsBadInput(t *testing.T) {
	_, err := encodeChunkPayload(make([]voxel.BlockType, 3))
	require.Error(t, err)

	encode := func(enc chunkEncoding) []byte {
		var buf bytes.Buffer
		require.NoError(t, gob.NewEncoder(&buf).Encode(&enc))
		return buf.Bytes()
	}
	_, err = decodeChunkPayload(encode(chunkEncoding{Version: 99, Runs: []blockRun{{uint8(voxel.Air), 1}}}))
	require.Error(t, err)
	_, err = decodeChunkPayload(encode(chunkEncoding{Version: chunkEncodingVersion, Runs: []blockRun{{uint8(voxel.Air), 10}}}))
	require.Error(t, err, "short payload")
	_, err = decodeChunkPayload(encode(chunkEncoding{Version: chunkEncodingVersion, Runs: []blockRun{{99, 1}}}))
	require.Error(t, err, "unknown block")
	_, err = decodeChunkPayload([]byte("not gob"))
	require.Error(t, err)
}
