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
	// AnnouncementsInitiated tracks outgoing announcement precursors created
	AnnouncementsInitiated = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "announcements",
			Name:      "initiated_total",
			Help:      "Total number of announcements initiated",
		},
		[]string{"role"}, // outgoing, incoming
	)

	// AnnouncementsCompleted tracks announcements that reached a session
	AnnouncementsCompleted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "announcements",
			Name:      "completed_total",
			Help:      "Total number of announcements completed",
		},
		[]string{"status"}, // success, failure
	)

	// AnnouncementsRejected tracks rejected incoming announcements by reason
	AnnouncementsRejected = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "announcements",
			Name:      "rejected_total",
			Help:      "Total number of rejected announcements by reason",
		},
		[]string{"reason"}, // invalid, too_old, too_far_future, stale
	)

	// AnnouncementDuration tracks announcement stage durations
	AnnouncementDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "announcements",
			Name:      "duration_seconds",
			Help:      "Announcement stage duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to 4s
		},
		[]string{"stage"}, // precursor, finalize, parse
	)
)
