// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agraphon-io/vault/pkg/storage"
)

// Store implements storage.Store with in-memory storage, for tests
// and single-process deployments that don't need blobs to survive a
// restart.
type Store struct {
	blobs   map[string]*storage.PeerBlob
	blobsMu sync.RWMutex

	blobStore *BlobStore
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	s := &Store{blobs: make(map[string]*storage.PeerBlob)}
	s.blobStore = &BlobStore{store: s}
	return s
}

// BlobStore returns the peer blob store.
func (s *Store) BlobStore() storage.BlobStore {
	return s.blobStore
}

// Close closes the store (no-op for memory store).
func (s *Store) Close() error {
	return nil
}

// Ping checks the store (always succeeds for memory store).
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Clear removes all data (useful for testing).
func (s *Store) Clear() {
	s.blobsMu.Lock()
	defer s.blobsMu.Unlock()
	s.blobs = make(map[string]*storage.PeerBlob)
}

// BlobStore implements storage.BlobStore in memory.
type BlobStore struct {
	store *Store
}

func (b *BlobStore) Put(ctx context.Context, id string, blob []byte) error {
	b.store.blobsMu.Lock()
	defer b.store.blobsMu.Unlock()

	now := time.Now()
	blobCopy := append([]byte(nil), blob...)

	existing, exists := b.store.blobs[id]
	createdAt := now
	if exists {
		createdAt = existing.CreatedAt
	}

	b.store.blobs[id] = &storage.PeerBlob{
		ID:        id,
		Blob:      blobCopy,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}
	return nil
}

func (b *BlobStore) Get(ctx context.Context, id string) (*storage.PeerBlob, error) {
	b.store.blobsMu.RLock()
	defer b.store.blobsMu.RUnlock()

	blob, exists := b.store.blobs[id]
	if !exists {
		return nil, fmt.Errorf("blob not found: %s", id)
	}

	out := *blob
	out.Blob = append([]byte(nil), blob.Blob...)
	return &out, nil
}

func (b *BlobStore) Delete(ctx context.Context, id string) error {
	b.store.blobsMu.Lock()
	defer b.store.blobsMu.Unlock()

	if _, exists := b.store.blobs[id]; !exists {
		return fmt.Errorf("blob not found: %s", id)
	}

	delete(b.store.blobs, id)
	return nil
}

func (b *BlobStore) List(ctx context.Context) ([]string, error) {
	b.store.blobsMu.RLock()
	defer b.store.blobsMu.RUnlock()

	ids := make([]string, 0, len(b.store.blobs))
	for id := range b.store.blobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (b *BlobStore) Count(ctx context.Context) (int64, error) {
	b.store.blobsMu.RLock()
	defer b.store.blobsMu.RUnlock()
	return int64(len(b.store.blobs)), nil
}
