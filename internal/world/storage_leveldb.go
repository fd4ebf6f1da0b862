package world

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/df-mc/goleveldb/leveldb"

	"github.com/Halffd/VoxelIsle/internal/voxel"
)

// LevelDBStore keeps one key per chunk in a LevelDB database.
type LevelDBStore struct {
	db *leveldb.DB
}

func OpenLevelDBStore(dir string) (*LevelDBStore, error) {
	if dir == "" {
		return nil, errors.New("leveldb store: path is empty")
	}
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", dir, err)
	}
	return &LevelDBStore{db: db}, nil
}

// chunkKey is 'c' followed by big endian x and z.
func chunkKey(coord ChunkCoord) []byte {
	key := make([]byte, 9)
	key[0] = 'c'
	binary.BigEndian.PutUint32(key[1:5], uint32(int32(coord.X)))
	binary.BigEndian.PutUint32(key[5:9], uint32(int32(coord.Z)))
	return key
}

func (s *LevelDBStore) Load(coord ChunkCoord) ([]voxel.BlockType, error) {
	payload, err := s.db.Get(chunkKey(coord), nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return nil, ErrChunkNotStored
	case err != nil:
		return nil, fmt.Errorf("load chunk %s: %w", coord, err)
	}
	return decodeChunkPayload(payload)
}

func (s *LevelDBStore) Save(coord ChunkCoord, blocks []voxel.BlockType) error {
	payload, err := encodeChunkPayload(blocks)
	if err != nil {
		return err
	}
	if err := s.db.Put(chunkKey(coord), payload, nil); err != nil {
		return fmt.Errorf("save chunk %s: %w", coord, err)
	}
	return nil
}

func (s *LevelDBStore) Delete(coord ChunkCoord) error {
	if err := s.db.Delete(chunkKey(coord), nil); err != nil {
		return fmt.Errorf("delete chunk %s: %w", coord, err)
	}
	return nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
