// Package store is the persistence layer: a segmented append-only store for
// block and revert bytes, and a bbolt-backed metadata KV for block/
// transaction/chain-head metadata, the UTXO set, and the address pool.
package store

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"corechain.dev/node/consensus"
	"corechain.dev/node/corecore"
)

// SegmentMaxBytes is the rotation threshold: ≤128 MiB per segment (§4.1).
const SegmentMaxBytes = 128 << 20

// segmentRecordMagic tags every record so a corrupt or truncated read is
// detectable independent of the record's length field.
const segmentRecordMagic uint32 = 0x53454731 // "SEG1"

// SegmentStore is an append-only store split across size-capped segment
// files, named by pattern (e.g. block%05d.bin). A written StoragePointer is
// valid for all future reads (§4.1 contract).
type SegmentStore struct {
	dir       string
	pattern   string // e.g. "block%05d.bin"
	current   uint32
	file      *os.File
	size      int64
	indexPath string
}

// OpenSegmentStore opens (creating if absent) a segment store rooted at dir,
// naming files with pattern. The current segment index is read from a small
// sidecar file so crash recovery resumes on the right file (§4.1).
func OpenSegmentStore(dir, pattern string) (*SegmentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, corecore.Wrap(corecore.KindStorage, "create segment directory", err)
	}
	s := &SegmentStore{
		dir:       dir,
		pattern:   pattern,
		indexPath: filepath.Join(dir, "CURRENT"),
	}
	idx, err := readCurrentIndex(s.indexPath)
	if err != nil {
		return nil, err
	}
	s.current = idx
	if err := s.openCurrent(); err != nil {
		return nil, err
	}
	return s, nil
}

func readCurrentIndex(path string) (uint32, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, corecore.Wrap(corecore.KindStorage, "read segment index", err)
	}
	if len(b) != 4 {
		return 0, corecore.New(corecore.KindCorruption, "segment index file has wrong size")
	}
	return binary.LittleEndian.Uint32(b), nil
}

func writeCurrentIndexAtomic(path string, idx uint32) error {
	tmp := path + ".tmp"
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], idx)
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return corecore.Wrap(corecore.KindStorage, "write segment index temp file", err)
	}
	if _, err := f.Write(buf[:]); err != nil {
		f.Close()
		return corecore.Wrap(corecore.KindStorage, "write segment index temp file", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return corecore.Wrap(corecore.KindStorage, "fsync segment index temp file", err)
	}
	if err := f.Close(); err != nil {
		return corecore.Wrap(corecore.KindStorage, "close segment index temp file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return corecore.Wrap(corecore.KindStorage, "rename segment index file", err)
	}
	dir, err := os.Open(filepath.Dir(path))
	if err != nil {
		return corecore.Wrap(corecore.KindStorage, "open segment directory for fsync", err)
	}
	defer dir.Close()
	if err := dir.Sync(); err != nil {
		return corecore.Wrap(corecore.KindStorage, "fsync segment directory", err)
	}
	return nil
}

func (s *SegmentStore) segmentPath(idx uint32) string {
	return filepath.Join(s.dir, fmt.Sprintf(s.pattern, idx))
}

func (s *SegmentStore) openCurrent() error {
	path := s.segmentPath(s.current)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return corecore.Wrap(corecore.KindStorage, "open segment file", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return corecore.Wrap(corecore.KindStorage, "stat segment file", err)
	}
	s.file = f
	s.size = info.Size()
	return nil
}

// Store appends payload as a new record, rotating to the next segment first
// if the write would exceed SegmentMaxBytes, and returns its pointer.
func (s *SegmentStore) Store(payload []byte) (consensus.StoragePointer, error) {
	recordLen := int64(4 + 4 + len(payload))
	if s.size > 0 && s.size+recordLen > SegmentMaxBytes {
		if err := s.rotate(); err != nil {
			return consensus.StoragePointer{}, err
		}
	}
	ptr := consensus.StoragePointer{Segment: s.current, Offset: uint64(s.size)}

	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], segmentRecordMagic)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(payload)))
	if _, err := s.file.Write(header[:]); err != nil {
		return consensus.StoragePointer{}, corecore.Wrap(corecore.KindStorage, "write segment record header", err)
	}
	if _, err := s.file.Write(payload); err != nil {
		return consensus.StoragePointer{}, corecore.Wrap(corecore.KindStorage, "write segment record payload", err)
	}
	if err := s.file.Sync(); err != nil {
		return consensus.StoragePointer{}, corecore.Wrap(corecore.KindStorage, "fsync segment file", err)
	}
	s.size += recordLen
	return ptr, nil
}

func (s *SegmentStore) rotate() error {
	if err := s.file.Close(); err != nil {
		return corecore.Wrap(corecore.KindStorage, "close segment file before rotation", err)
	}
	s.current++
	if err := writeCurrentIndexAtomic(s.indexPath, s.current); err != nil {
		return err
	}
	return s.openCurrent()
}

// Retrieve reads back the payload a prior Store call wrote at ptr.
func (s *SegmentStore) Retrieve(ptr consensus.StoragePointer) ([]byte, error) {
	path := s.segmentPath(ptr.Segment)
	f, err := os.Open(path)
	if err != nil {
		return nil, corecore.Wrap(corecore.KindStorage, "open segment file for read", err)
	}
	defer f.Close()

	if _, err := f.Seek(int64(ptr.Offset), io.SeekStart); err != nil {
		return nil, corecore.Wrap(corecore.KindStorage, "seek segment file", err)
	}
	var header [8]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		return nil, corecore.Wrap(corecore.KindStorage, "read segment record header", err)
	}
	magic := binary.LittleEndian.Uint32(header[0:4])
	if magic != segmentRecordMagic {
		return nil, corecore.New(corecore.KindCorruption, "segment record magic mismatch")
	}
	length := binary.LittleEndian.Uint32(header[4:8])
	payload := make([]byte, length)
	if _, err := io.ReadFull(f, payload); err != nil {
		return nil, corecore.Wrap(corecore.KindStorage, "read segment record payload", err)
	}
	return payload, nil
}

// Close releases the current segment file handle.
func (s *SegmentStore) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
