package storage

import "context"

// BlobStore persists one opaque, encrypted blob per identity. It is
// intentionally narrower than a general key-value store: callers only
// ever read back a blob under the same ID they wrote it with, and the
// store is never asked to interpret, index, or query its contents.
type BlobStore interface {
	// Put writes or overwrites the blob stored under id.
	Put(ctx context.Context, id string, blob []byte) error

	// Get retrieves the blob stored under id.
	Get(ctx context.Context, id string) (*PeerBlob, error)

	// Delete removes the blob stored under id, if any.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of all stored blobs.
	List(ctx context.Context) ([]string, error)

	// Count returns the number of stored blobs.
	Count(ctx context.Context) (int64, error)
}

// Store combines the blob store with connection lifecycle management.
type Store interface {
	BlobStore() BlobStore

	// Close closes the storage connection.
	Close() error

	// Ping checks the storage connection.
	Ping(ctx context.Context) error
}
