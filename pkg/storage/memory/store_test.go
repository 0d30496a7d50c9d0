package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	blobs := store.BlobStore()

	_, err := blobs.Get(ctx, "alice")
	require.Error(t, err)

	require.NoError(t, blobs.Put(ctx, "alice", []byte("snapshot-v1")))
	got, err := blobs.Get(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, []byte("snapshot-v1"), got.Blob)
	require.Equal(t, got.CreatedAt, got.UpdatedAt)

	require.NoError(t, blobs.Put(ctx, "alice", []byte("snapshot-v2")))
	got2, err := blobs.Get(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, []byte("snapshot-v2"), got2.Blob)
	require.Equal(t, got.CreatedAt, got2.CreatedAt)
	require.False(t, got2.UpdatedAt.Before(got.UpdatedAt))

	require.NoError(t, blobs.Put(ctx, "bob", []byte("bob-snapshot")))
	ids, err := blobs.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, ids)

	count, err := blobs.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	require.NoError(t, blobs.Delete(ctx, "bob"))
	_, err = blobs.Get(ctx, "bob")
	require.Error(t, err)
}
