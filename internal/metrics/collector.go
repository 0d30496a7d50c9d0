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
	"sync"
	"time"
)

// MetricsCollector is a lightweight, dependency-free alternative to the
// Prometheus collectors in this package: a caller that only wants
// snapshot-style numbers (a CLI status line, a debug endpoint) without
// scraping can use this instead of reaching into the Registry.
type MetricsCollector struct {
	mu sync.RWMutex

	// Counters
	KEMOperations      int64
	AEADOperations     int64
	SuccessfulUnlocks  int64
	FailedUnlocks      int64
	SeekerLookups      int64
	SelfHealHits       int64
	SelfHealMisses     int64
	BoardReads         int64
	BoardReadErrors    int64

	// Timing metrics (in microseconds)
	KEMTimes        []int64
	UnlockTimes     []int64
	BoardReadTimes  []int64
	SeekerLookupTimes []int64

	// Start time for uptime calculation
	startTime time.Time

	// Configuration
	maxTimingSamples int
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		startTime:        time.Now(),
		maxTimingSamples: 1000, // Keep last 1000 samples for each timing metric
	}
}

// RecordKEMOperation records an ML-KEM encapsulate or decapsulate call.
func (mc *MetricsCollector) RecordKEMOperation(duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.KEMOperations++
	mc.recordTiming(&mc.KEMTimes, duration)
}

// RecordUnlock records a session unlock attempt against the addressing blob.
func (mc *MetricsCollector) RecordUnlock(success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if success {
		mc.SuccessfulUnlocks++
	} else {
		mc.FailedUnlocks++
	}
	mc.recordTiming(&mc.UnlockTimes, duration)
}

// RecordSeekerLookup records a message-board seeker lookup.
func (mc *MetricsCollector) RecordSeekerLookup(healed bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.SeekerLookups++
	if healed {
		mc.SelfHealHits++
	} else {
		mc.SelfHealMisses++
	}
	mc.recordTiming(&mc.SeekerLookupTimes, duration)
}

// RecordBoardRead records a message board read sweep.
func (mc *MetricsCollector) RecordBoardRead(success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.BoardReads++
	if !success {
		mc.BoardReadErrors++
	}
	mc.recordTiming(&mc.BoardReadTimes, duration)
}

// recordTiming records a timing sample
func (mc *MetricsCollector) recordTiming(timings *[]int64, duration time.Duration) {
	microseconds := duration.Microseconds()
	*timings = append(*timings, microseconds)

	// Keep only last N samples
	if len(*timings) > mc.maxTimingSamples {
		*timings = (*timings)[len(*timings)-mc.maxTimingSamples:]
	}
}

// GetSnapshot returns a snapshot of current metrics
func (mc *MetricsCollector) GetSnapshot() *MetricsSnapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return &MetricsSnapshot{
		Timestamp:          time.Now(),
		Uptime:             time.Since(mc.startTime),
		KEMOperations:      mc.KEMOperations,
		SuccessfulUnlocks:  mc.SuccessfulUnlocks,
		FailedUnlocks:      mc.FailedUnlocks,
		SeekerLookups:      mc.SeekerLookups,
		SelfHealHits:       mc.SelfHealHits,
		SelfHealMisses:     mc.SelfHealMisses,
		BoardReads:         mc.BoardReads,
		BoardReadErrors:    mc.BoardReadErrors,
		AvgKEMTime:         calculateAverage(mc.KEMTimes),
		AvgUnlockTime:      calculateAverage(mc.UnlockTimes),
		AvgBoardReadTime:   calculateAverage(mc.BoardReadTimes),
		AvgSeekerLookupTime: calculateAverage(mc.SeekerLookupTimes),
		P95KEMTime:         calculatePercentile(mc.KEMTimes, 95),
		P95UnlockTime:      calculatePercentile(mc.UnlockTimes, 95),
		P95BoardReadTime:   calculatePercentile(mc.BoardReadTimes, 95),
		P95SeekerLookupTime: calculatePercentile(mc.SeekerLookupTimes, 95),
	}
}

// Reset resets all metrics
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.KEMOperations = 0
	mc.AEADOperations = 0
	mc.SuccessfulUnlocks = 0
	mc.FailedUnlocks = 0
	mc.SeekerLookups = 0
	mc.SelfHealHits = 0
	mc.SelfHealMisses = 0
	mc.BoardReads = 0
	mc.BoardReadErrors = 0

	mc.KEMTimes = nil
	mc.UnlockTimes = nil
	mc.BoardReadTimes = nil
	mc.SeekerLookupTimes = nil

	mc.startTime = time.Now()
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	Timestamp time.Time
	Uptime    time.Duration

	// Counters
	KEMOperations     int64
	SuccessfulUnlocks int64
	FailedUnlocks     int64
	SeekerLookups     int64
	SelfHealHits      int64
	SelfHealMisses    int64
	BoardReads        int64
	BoardReadErrors   int64

	// Timing averages (microseconds)
	AvgKEMTime          float64
	AvgUnlockTime       float64
	AvgBoardReadTime    float64
	AvgSeekerLookupTime float64

	// 95th percentile timings (microseconds)
	P95KEMTime          int64
	P95UnlockTime       int64
	P95BoardReadTime    int64
	P95SeekerLookupTime int64
}

// GetSelfHealRate returns the fraction of seeker lookups that required
// self-healing a corrupted slot, as a percentage.
func (ms *MetricsSnapshot) GetSelfHealRate() float64 {
	if ms.SeekerLookups == 0 {
		return 0
	}
	return float64(ms.SelfHealHits) / float64(ms.SeekerLookups) * 100
}

// GetUnlockSuccessRate returns the unlock success rate as a percentage.
func (ms *MetricsSnapshot) GetUnlockSuccessRate() float64 {
	total := ms.SuccessfulUnlocks + ms.FailedUnlocks
	if total == 0 {
		return 0
	}
	return float64(ms.SuccessfulUnlocks) / float64(total) * 100
}

// GetBoardReadErrorRate returns the board read error rate as a percentage.
func (ms *MetricsSnapshot) GetBoardReadErrorRate() float64 {
	if ms.BoardReads == 0 {
		return 0
	}
	return float64(ms.BoardReadErrors) / float64(ms.BoardReads) * 100
}

// Helper functions

func calculateAverage(values []int64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum int64
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

func calculatePercentile(values []int64, percentile int) int64 {
	if len(values) == 0 {
		return 0
	}

	// Simple implementation - for production, use a proper percentile algorithm
	// This is an approximation
	index := len(values) * percentile / 100
	if index >= len(values) {
		index = len(values) - 1
	}

	// Create a copy and sort (simple bubble sort for small datasets)
	sorted := make([]int64, len(values))
	copy(sorted, values)

	for i := 0; i < len(sorted)-1; i++ {
		for j := 0; j < len(sorted)-i-1; j++ {
			if sorted[j] > sorted[j+1] {
				sorted[j], sorted[j+1] = sorted[j+1], sorted[j]
			}
		}
	}

	return sorted[index]
}

// Global metrics collector instance
var globalCollector = NewMetricsCollector()

// GetGlobalCollector returns the global metrics collector
func GetGlobalCollector() *MetricsCollector {
	return globalCollector
}
