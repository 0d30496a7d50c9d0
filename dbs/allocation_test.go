package dbs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocationEntryRoundTrip(t *testing.T) {
	e := AllocationEntry{
		InnerDataOffset: 1024,
		InnerLength:     4096,
		Address:         2_000_000,
		OuterLength:     4112,
		BlockID:         [32]byte{1, 2, 3, 4},
	}
	got, err := DecodeAllocationEntry(e.Encode())
	require.NoError(t, err)
	require.Equal(t, e, got)
}

func TestAllocationTableFindBlock(t *testing.T) {
	table := NewAllocationTable()
	a := AllocationEntry{InnerDataOffset: 0, InnerLength: 100, Address: 10, OuterLength: 116, BlockID: [32]byte{1}}
	b := AllocationEntry{InnerDataOffset: 100, InnerLength: 200, Address: 200, OuterLength: 216, BlockID: [32]byte{2}}
	table.AddEntry(a)
	table.AddEntry(b)

	got, ok := table.FindBlock(50)
	require.True(t, ok)
	require.Equal(t, a, got)

	got, ok = table.FindBlock(150)
	require.True(t, ok)
	require.Equal(t, b, got)

	_, ok = table.FindBlock(300)
	require.False(t, ok)

	require.Equal(t, uint64(300), table.NextLogicalOffset())

	last, ok := table.LastBlock()
	require.True(t, ok)
	require.Equal(t, b, last)
}

func TestAllocationTableToBytesRoundTrip(t *testing.T) {
	table := NewAllocationTable()
	table.AddEntry(AllocationEntry{InnerDataOffset: 0, InnerLength: 10, Address: 5, OuterLength: 26, BlockID: [32]byte{9}})
	table.AddEntry(AllocationEntry{InnerDataOffset: 10, InnerLength: 20, Address: 50, OuterLength: 36, BlockID: [32]byte{8}})

	got, err := AllocationTableFromBytes(table.ToBytes())
	require.NoError(t, err)
	require.Equal(t, table.Entries(), got.Entries())
}

func TestAllocationTableFromBytesTruncated(t *testing.T) {
	_, err := AllocationTableFromBytes([]byte{0, 0, 0, 1})
	require.Error(t, err)
}

func TestReplaceEntry(t *testing.T) {
	table := NewAllocationTable()
	id := [32]byte{7}
	table.AddEntry(AllocationEntry{InnerDataOffset: 0, InnerLength: 10, Address: 5, OuterLength: 26, BlockID: id})

	updated := AllocationEntry{InnerDataOffset: 0, InnerLength: 10, Address: 99, OuterLength: 26, BlockID: id}
	require.True(t, table.ReplaceEntry(id, updated))

	got, ok := table.FindByID(id)
	require.True(t, ok)
	require.Equal(t, uint64(99), got.Address)

	require.False(t, table.ReplaceEntry([32]byte{42}, updated))
}
