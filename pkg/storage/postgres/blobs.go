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

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agraphon-io/vault/pkg/storage"
)

// BlobStore implements storage.BlobStore for PostgreSQL.
type BlobStore struct {
	db *pgxpool.Pool
}

func (b *BlobStore) ensureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS peer_blobs (
			id         TEXT PRIMARY KEY,
			blob       BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	_, err := b.db.Exec(ctx, schema)
	return err
}

// Put writes or overwrites the blob stored under id.
func (b *BlobStore) Put(ctx context.Context, id string, blob []byte) error {
	query := `
		INSERT INTO peer_blobs (id, blob, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET blob = $2, updated_at = NOW()
	`

	if _, err := b.db.Exec(ctx, query, id, blob); err != nil {
		return fmt.Errorf("failed to store blob: %w", err)
	}

	return nil
}

// Get retrieves the blob stored under id.
func (b *BlobStore) Get(ctx context.Context, id string) (*storage.PeerBlob, error) {
	query := `SELECT id, blob, created_at, updated_at FROM peer_blobs WHERE id = $1`

	var out storage.PeerBlob
	err := b.db.QueryRow(ctx, query, id).Scan(&out.ID, &out.Blob, &out.CreatedAt, &out.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("blob not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob: %w", err)
	}

	return &out, nil
}

// Delete removes the blob stored under id, if any.
func (b *BlobStore) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM peer_blobs WHERE id = $1`

	result, err := b.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("blob not found: %s", id)
	}

	return nil
}

// List returns the IDs of all stored blobs.
func (b *BlobStore) List(ctx context.Context) ([]string, error) {
	query := `SELECT id FROM peer_blobs ORDER BY id`

	rows, err := b.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan blob id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating blobs: %w", err)
	}

	return ids, nil
}

// Count returns the number of stored blobs.
func (b *BlobStore) Count(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM peer_blobs`

	var count int64
	if err := b.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count blobs: %w", err)
	}

	return count, nil
}
