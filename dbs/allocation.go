package dbs

import (
	"encoding/binary"
	"fmt"
)

// AllocationEntrySize is the fixed 56-byte serialized size of one
// AllocationEntry.
const AllocationEntrySize = 56

// AllocationEntry describes one block's placement: the logical range it
// covers and its physical location and encrypted size on disk.
type AllocationEntry struct {
	InnerDataOffset uint64
	InnerLength     uint32
	Address         uint64
	OuterLength     uint32
	BlockID         [32]byte
}

// EndOffset returns the exclusive end of the logical range this entry
// covers.
func (e AllocationEntry) EndOffset() uint64 {
	return e.InnerDataOffset + uint64(e.InnerLength)
}

// Encode serializes the entry to its 56-byte big-endian form.
func (e AllocationEntry) Encode() []byte {
	buf := make([]byte, AllocationEntrySize)
	binary.BigEndian.PutUint64(buf[0:8], e.InnerDataOffset)
	binary.BigEndian.PutUint32(buf[8:12], e.InnerLength)
	binary.BigEndian.PutUint64(buf[12:20], e.Address)
	binary.BigEndian.PutUint32(buf[20:24], e.OuterLength)
	copy(buf[24:56], e.BlockID[:])
	return buf
}

// DecodeAllocationEntry parses a 56-byte serialized entry.
func DecodeAllocationEntry(buf []byte) (AllocationEntry, error) {
	if len(buf) != AllocationEntrySize {
		return AllocationEntry{}, fmt.Errorf("dbs: invalid allocation entry length %d", len(buf))
	}
	var e AllocationEntry
	e.InnerDataOffset = binary.BigEndian.Uint64(buf[0:8])
	e.InnerLength = binary.BigEndian.Uint32(buf[8:12])
	e.Address = binary.BigEndian.Uint64(buf[12:20])
	e.OuterLength = binary.BigEndian.Uint32(buf[20:24])
	copy(e.BlockID[:], buf[24:56])
	return e, nil
}

// AllocationTable is the root block's payload: a flat, insertion-ordered
// list of AllocationEntry records. Lookups are linear scans; tables stay
// small (tens of blocks per session) so this is not a bottleneck.
type AllocationTable struct {
	entries []AllocationEntry
}

// NewAllocationTable returns an empty table.
func NewAllocationTable() *AllocationTable {
	return &AllocationTable{}
}

// AddEntry appends a new entry, preserving insertion order.
func (t *AllocationTable) AddEntry(e AllocationEntry) {
	t.entries = append(t.entries, e)
}

// Entries returns the table's entries in insertion order. Callers must
// not mutate the returned slice.
func (t *AllocationTable) Entries() []AllocationEntry {
	return t.entries
}

// FindBlock returns the entry whose logical range covers offset, if any.
func (t *AllocationTable) FindBlock(offset uint64) (AllocationEntry, bool) {
	for _, e := range t.entries {
		if offset >= e.InnerDataOffset && offset < e.EndOffset() {
			return e, true
		}
	}
	return AllocationEntry{}, false
}

// FindByID returns the entry with the given block_id, if any.
func (t *AllocationTable) FindByID(blockID [32]byte) (AllocationEntry, bool) {
	for _, e := range t.entries {
		if e.BlockID == blockID {
			return e, true
		}
	}
	return AllocationEntry{}, false
}

// LastBlock returns the entry with the highest logical range, if any.
func (t *AllocationTable) LastBlock() (AllocationEntry, bool) {
	if len(t.entries) == 0 {
		return AllocationEntry{}, false
	}
	last := t.entries[0]
	for _, e := range t.entries[1:] {
		if e.InnerDataOffset > last.InnerDataOffset {
			last = e
		}
	}
	return last, true
}

// NextLogicalOffset returns the logical size implied by the table: the
// maximum end offset across all entries, or 0 if empty.
func (t *AllocationTable) NextLogicalOffset() uint64 {
	var max uint64
	for _, e := range t.entries {
		if end := e.EndOffset(); end > max {
			max = end
		}
	}
	return max
}

// ReplaceEntry overwrites the entry matching old.BlockID with updated,
// used when a block's on-disk address or length changes without
// reallocating a new block_id (flush re-encrypting in place never needs
// this since address/length are invariant across flush, but it is kept
// narrow and available for that invariant to be asserted against).
func (t *AllocationTable) ReplaceEntry(blockID [32]byte, updated AllocationEntry) bool {
	for i, e := range t.entries {
		if e.BlockID == blockID {
			t.entries[i] = updated
			return true
		}
	}
	return false
}

// ToBytes serializes the table: u32 BE count followed by count entries.
func (t *AllocationTable) ToBytes() []byte {
	buf := make([]byte, 4+len(t.entries)*AllocationEntrySize)
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(t.entries)))
	for i, e := range t.entries {
		copy(buf[4+i*AllocationEntrySize:], e.Encode())
	}
	return buf
}

// AllocationTableFromBytes parses a serialized allocation table.
func AllocationTableFromBytes(buf []byte) (*AllocationTable, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("dbs: allocation table truncated")
	}
	count := binary.BigEndian.Uint32(buf[0:4])
	want := 4 + int(count)*AllocationEntrySize
	if len(buf) < want {
		return nil, fmt.Errorf("dbs: allocation table truncated: want %d have %d", want, len(buf))
	}
	t := &AllocationTable{entries: make([]AllocationEntry, 0, count)}
	for i := uint32(0); i < count; i++ {
		start := 4 + int(i)*AllocationEntrySize
		e, err := DecodeAllocationEntry(buf[start : start+AllocationEntrySize])
		if err != nil {
			return nil, err
		}
		t.entries = append(t.entries, e)
	}
	return t, nil
}
