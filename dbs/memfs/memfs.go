// Package memfs is an in-memory dbs.FileSystem used by tests. It tracks
// per-file read and write counts so tests can assert on the exact
// number of addressing-file accesses a given operation performs (e.g.
// the self-heal invariant: exactly k writes for k corrupted slots; the
// constant-time unlock invariant: exactly SlotsPerSession reads
// regardless of password correctness).
package memfs

import (
	"fmt"
	"sync"

	"github.com/agraphon-io/vault/dbs"
)

// FS is a mutex-guarded, map-backed in-memory filesystem.
type FS struct {
	mu          sync.Mutex
	files       map[dbs.FileID][]byte
	writeCounts map[dbs.FileID]int
	readCounts  map[dbs.FileID]int
}

// New returns an empty in-memory filesystem with both files zero-length.
func New() *FS {
	return &FS{
		files:       make(map[dbs.FileID][]byte),
		writeCounts: make(map[dbs.FileID]int),
		readCounts:  make(map[dbs.FileID]int),
	}
}

func (f *FS) ReadBytes(id dbs.FileID, offset uint64, length int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.readCounts[id]++

	out := make([]byte, length)
	buf := f.files[id]
	if offset >= uint64(len(buf)) {
		return out, nil
	}
	n := copy(out, buf[offset:])
	_ = n
	return out, nil
}

func (f *FS) WriteBytes(id dbs.FileID, offset uint64, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	buf := f.files[id]
	end := offset + uint64(len(data))
	if end > uint64(len(buf)) {
		grown := make([]byte, end)
		copy(grown, buf)
		buf = grown
	}
	copy(buf[offset:end], data)
	f.files[id] = buf
	f.writeCounts[id]++
	return nil
}

func (f *FS) Size(id dbs.FileID) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.files[id])), nil
}

func (f *FS) Flush(dbs.FileID) error { return nil }

// WriteCount returns the number of WriteBytes calls made against id since
// the filesystem was created or last reset.
func (f *FS) WriteCount(id dbs.FileID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeCounts[id]
}

// ResetWriteCount zeroes the write counter for id.
func (f *FS) ResetWriteCount(id dbs.FileID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeCounts[id] = 0
}

// ReadCount returns the number of ReadBytes calls made against id since
// the filesystem was created or last reset.
func (f *FS) ReadCount(id dbs.FileID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readCounts[id]
}

// ResetReadCount zeroes the read counter for id.
func (f *FS) ResetReadCount(id dbs.FileID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readCounts[id] = 0
}

// CorruptAt overwrites length bytes at offset in id with garbage, for
// tests exercising self-heal.
func (f *FS) CorruptAt(id dbs.FileID, offset uint64, garbage []byte) error {
	if err := f.WriteBytes(id, offset, garbage); err != nil {
		return err
	}
	f.mu.Lock()
	f.writeCounts[id]-- // corruption itself is test setup, not a tracked write
	f.mu.Unlock()
	return nil
}

// String renders file sizes for debugging.
func (f *FS) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("memfs{addr=%d data=%d}", len(f.files[dbs.FileAddr]), len(f.files[dbs.FileData]))
}
