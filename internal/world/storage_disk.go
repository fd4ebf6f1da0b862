package world

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/Halffd/VoxelIsle/internal/voxel"
)

const (
	diskOpDelete byte = 0
	diskOpSet    byte = 1

	// op, int32 x, int32 z, uint32 payload size
	diskHeaderSize = 13

	diskLogName = "chunks.log"
)

type diskRecordMeta struct {
	offset int64
	size   uint32
}

// DiskStore appends chunk records to a single log file and keeps an
// in-memory index of the latest record per chunk. The index is rebuilt by
// replaying the log on open.
type DiskStore struct {
	file    *os.File
	mu      sync.RWMutex
	records map[ChunkCoord]diskRecordMeta
}

// OpenDiskStore opens or creates the chunk log beneath dir.
func OpenDiskStore(dir string) (*DiskStore, error) {
	if dir == "" {
		return nil, errors.New("disk store: path is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, diskLogName), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open chunk log: %w", err)
	}
	s := &DiskStore{
		file:    f,
		records: make(map[ChunkCoord]diskRecordMeta),
	}
	if err := s.loadIndex(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *DiskStore) loadIndex() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind chunk log: %w", err)
	}

	header := make([]byte, diskHeaderSize)
	var offset int64
	for {
		if _, err := io.ReadFull(s.file, header); err != nil {
			if err == io.EOF {
				break
			}
			if err == io.ErrUnexpectedEOF {
				return fmt.Errorf("truncated chunk header at %d: %w", offset, err)
			}
			return fmt.Errorf("read chunk header: %w", err)
		}
		op, coord, size := decodeDiskHeader(header)
		recordOffset := offset
		offset += diskHeaderSize + int64(size)

		if _, err := s.file.Seek(int64(size), io.SeekCurrent); err != nil {
			return fmt.Errorf("seek past payload: %w", err)
		}
		if op == diskOpSet {
			s.records[coord] = diskRecordMeta{offset: recordOffset, size: size}
		} else {
			delete(s.records, coord)
		}
	}
	return nil
}

func encodeDiskHeader(op byte, coord ChunkCoord, size int) []byte {
	header := make([]byte, diskHeaderSize)
	header[0] = op
	binary.LittleEndian.PutUint32(header[1:5], uint32(int32(coord.X)))
	binary.LittleEndian.PutUint32(header[5:9], uint32(int32(coord.Z)))
	binary.LittleEndian.PutUint32(header[9:13], uint32(size))
	return header
}

func decodeDiskHeader(header []byte) (byte, ChunkCoord, uint32) {
	coord := ChunkCoord{
		X: int(int32(binary.LittleEndian.Uint32(header[1:5]))),
		Z: int(int32(binary.LittleEndian.Uint32(header[5:9]))),
	}
	return header[0], coord, binary.LittleEndian.Uint32(header[9:13])
}

func (s *DiskStore) Load(coord ChunkCoord) ([]voxel.BlockType, error) {
	s.mu.RLock()
	meta, ok := s.records[coord]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrChunkNotStored
	}

	header := make([]byte, diskHeaderSize)
	if _, err := s.file.ReadAt(header, meta.offset); err != nil {
		return nil, fmt.Errorf("read header at %d: %w", meta.offset, err)
	}
	op, stored, size := decodeDiskHeader(header)
	if op != diskOpSet || stored != coord {
		return nil, fmt.Errorf("chunk %s: index points at a foreign record", coord)
	}
	payload := make([]byte, size)
	if _, err := s.file.ReadAt(payload, meta.offset+diskHeaderSize); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return decodeChunkPayload(payload)
}

func (s *DiskStore) Save(coord ChunkCoord, blocks []voxel.BlockType) error {
	payload, err := encodeChunkPayload(blocks)
	if err != nil {
		return err
	}
	header := encodeDiskHeader(diskOpSet, coord, len(payload))

	s.mu.Lock()
	defer s.mu.Unlock()

	offset, err := s.append(header, payload)
	if err != nil {
		return err
	}
	s.records[coord] = diskRecordMeta{offset: offset, size: uint32(len(payload))}
	return nil
}

func (s *DiskStore) Delete(coord ChunkCoord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[coord]; !ok {
		return nil
	}
	if _, err := s.append(encodeDiskHeader(diskOpDelete, coord, 0), nil); err != nil {
		return err
	}
	delete(s.records, coord)
	return nil
}

// append writes one record at the end of the log. Callers hold s.mu.
func (s *DiskStore) append(header, payload []byte) (int64, error) {
	offset, err := s.file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("seek log end: %w", err)
	}
	if _, err := s.file.Write(header); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := s.file.Write(payload); err != nil {
			return 0, fmt.Errorf("write payload: %w", err)
		}
	}
	if err := s.file.Sync(); err != nil {
		return 0, fmt.Errorf("sync chunk log: %w", err)
	}
	return offset, nil
}

// Len reports how many chunks the index holds.
func (s *DiskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *DiskStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
