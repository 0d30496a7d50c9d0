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

package storage

import "time"

// PeerBlob is one opaque, already-encrypted SessionManager snapshot
// (the output of asp.SessionManager.ToEncryptedBlob) stored under the
// identity it belongs to. The store never inspects Blob's contents;
// all confidentiality and integrity come from the AEAD seal applied
// before the blob reaches this package.
type PeerBlob struct {
	ID        string    `json:"id"`
	Blob      []byte    `json:"blob"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
