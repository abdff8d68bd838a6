// Package simulate provides the bounded random-walk primitives and the
// periodic scheduler that drive every simulated dashboard metric.
//
// All helpers take an explicit *rand.Rand so each panel can own its random
// source. A rand.Rand is not safe for concurrent use; callers serialize
// access (panels do so under their own mutex).
package simulate

import (
	"math"
	"math/rand/v2"
	"time"
)

// Walk nudges current by a uniform delta in [-jitter/2, jitter/2) and clamps
// the result to [min, max]. min must not exceed max.
func Walk(r *rand.Rand, current, min, max, jitter float64) float64 {
	return Clamp(current+(r.Float64()-0.5)*jitter, min, max)
}

// Clamp limits v to [lo, hi]. NaN collapses to lo so the result is always
// finite for finite bounds.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Rise adds a uniform amount in [0, step) to current, capped at max.
// Training progress only ever moves forward.
func Rise(r *rand.Rand, current, max, step float64) float64 {
	return math.Min(max, current+r.Float64()*step)
}

// Roll reports whether a uniform draw exceeds threshold, so Roll(r, 0.7)
// succeeds with probability 0.3.
func Roll(r *rand.Rand, threshold float64) bool {
	return r.Float64() > threshold
}

// IntIn returns lo + floor(U*span): an integer in [lo, lo+span).
func IntIn(r *rand.Rand, lo, span int) int {
	if span <= 0 {
		return lo
	}
	return lo + r.IntN(span)
}

// Nudge moves an integer counter by floor((U-0.5)*jitter) and keeps it at or
// above floor.
func Nudge(r *rand.Rand, current int, jitter float64, floor int) int {
	next := current + int(math.Floor((r.Float64()-0.5)*jitter))
	if next < floor {
		return floor
	}
	return next
}

// Pick returns a uniformly chosen element. items must be non-empty.
func Pick[T any](r *rand.Rand, items []T) T {
	return items[r.IntN(len(items))]
}

// NewRand returns a PCG-backed source. A zero seed draws a fresh one from
// the runtime's global generator.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), uint64(time.Now().UnixNano())))
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Round rounds v to the given number of decimals. Snapshots use it so the
// JSON stays readable.
func Round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}
