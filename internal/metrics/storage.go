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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UnlockAttempts tracks attempts to unlock a session from the
	// addressing blob by trial password, labeled by outcome.
	UnlockAttempts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "unlock_attempts_total",
			Help:      "Total number of session unlock attempts",
		},
		[]string{"status"}, // found, not_found
	)

	// UnlockDuration tracks the constant-time full-blob scan performed on
	// every unlock attempt. This is dominated by Argon2id derivation cost
	// and is expected to stay flat across both found and not_found outcomes.
	UnlockDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "unlock_duration_seconds",
			Help:      "Duration of a full addressing-blob unlock scan in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 1.5, 15),
		},
	)

	// SlotsSelfHealed counts corrupted session slots repaired in place
	// during an unlock scan.
	SlotsSelfHealed = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "slots_self_healed_total",
			Help:      "Total number of corrupted slots self-healed during unlock",
		},
	)

	// BlockAllocations tracks block manager allocations by operation.
	BlockAllocations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "block_allocations_total",
			Help:      "Total number of block allocation operations",
		},
		[]string{"operation"}, // allocate, free, resize
	)

	// BlockCapacityBytes tracks the log-normal-sampled capacity chosen for
	// newly allocated blocks.
	BlockCapacityBytes = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "block_capacity_bytes",
			Help:      "Sampled capacity of newly allocated blocks in bytes",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 12),
		},
	)

	// PaddingBytes tracks the Pareto-distributed padding applied to a
	// written block to obscure its true payload length.
	PaddingBytes = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "padding_bytes",
			Help:      "Sampled padding length applied to a block write in bytes",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
		},
	)

	// SessionsOpen tracks currently open (unlocked) DBS sessions.
	SessionsOpen = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "sessions_open",
			Help:      "Number of currently open deniable storage sessions",
		},
	)
)
