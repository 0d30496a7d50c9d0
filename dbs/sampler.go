package dbs

import (
	"fmt"
	"math"

	"github.com/agraphon-io/vault/crypto"
)

// MaxSamplingIterations bounds the block-capacity rejection sampler.
// Hitting it means the configured distribution cannot satisfy
// min_capacity_needed, which is a programmer error, not a runtime
// condition to retry.
const MaxSamplingIterations = 10000

// ErrCapacityExceeded is returned when a caller asks for more capacity
// than the configured block_max can ever provide.
var ErrCapacityExceeded = fmt.Errorf("dbs: min_capacity_needed exceeds configured block_max")

// ErrSamplerTimeout is returned when the rejection sampler exhausts its
// iteration budget without drawing an acceptable sample, which indicates
// a misconfigured distribution (e.g. a near-empty acceptance window).
var ErrSamplerTimeout = fmt.Errorf("dbs: padding sampler exceeded iteration cap")

// SamplePareto draws a single Pareto-distributed padding size via inverse
// CDF sampling: raw = min / U^(1/alpha), clamped to max.
func SamplePareto(rng crypto.RNG, min, max uint64, alpha float64) (uint64, error) {
	u, err := sampleUniform(rng)
	if err != nil {
		return 0, err
	}
	raw := float64(min) / math.Pow(u, 1.0/alpha)
	if raw > float64(max) {
		return max, nil
	}
	return uint64(raw), nil
}

// SampleBlockCapacity draws a log-normal block capacity by rejection
// sampling: N ~ Normal(0,1) via Box-Muller, size = exp(mu + sigma*N);
// accept iff size is within [blockMin, blockMax] and size >=
// minCapacityNeeded.
func SampleBlockCapacity(rng crypto.RNG, blockMin, blockMax uint64, mu, sigma float64, minCapacityNeeded uint64) (uint64, error) {
	if minCapacityNeeded > blockMax {
		return 0, ErrCapacityExceeded
	}
	for i := 0; i < MaxSamplingIterations; i++ {
		n, err := sampleStandardNormal(rng)
		if err != nil {
			return 0, err
		}
		size := math.Exp(mu + sigma*n)
		if size < float64(blockMin) || size > float64(blockMax) {
			continue
		}
		capacity := uint64(size)
		if capacity < minCapacityNeeded {
			continue
		}
		return capacity, nil
	}
	return 0, ErrSamplerTimeout
}

// sampleUniform draws a uniform float in (0, 1].
func sampleUniform(rng crypto.RNG) (float64, error) {
	var buf [8]byte
	if err := crypto.FillBuffer(rng, buf[:]); err != nil {
		return 0, err
	}
	// 53 bits of entropy into the mantissa, excluding 0 so 1/U never
	// divides by zero.
	bits := uint64(buf[0])<<56 | uint64(buf[1])<<48 | uint64(buf[2])<<40 | uint64(buf[3])<<32 |
		uint64(buf[4])<<24 | uint64(buf[5])<<16 | uint64(buf[6])<<8 | uint64(buf[7])
	u := float64(bits>>11) / float64(1<<53)
	if u <= 0 {
		u = 1.0 / float64(1<<53)
	}
	return u, nil
}

// sampleStandardNormal draws one N(0,1) sample via Box-Muller, consuming
// two uniform draws.
func sampleStandardNormal(rng crypto.RNG) (float64, error) {
	u1, err := sampleUniform(rng)
	if err != nil {
		return 0, err
	}
	u2, err := sampleUniform(rng)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2), nil
}
