package core

import (
	"math"
	"math/rand/v2"
	"time"
)

// Sampler draws uniform samples from [0, 1).
type Sampler interface {
	Float64() float64
}

type globalSampler struct{}

func (globalSampler) Float64() float64 { return rand.Float64() }

// DefaultSampler uses the process-wide math/rand/v2 source.
var DefaultSampler Sampler = globalSampler{}

// WaitParams shapes raw backoff intervals into wait durations. All values are
// in seconds. A zero Jitter or Stagger disables it; nil bounds are unbounded.
type WaitParams struct {
	Jitter  float64
	WaitMin *float64
	WaitMax *float64
	Stagger float64
}

// Shape turns a raw interval into a wait duration.
//
// The raw interval is first clamped to [WaitMin, WaitMax]. Jitter is then added,
// sampled uniformly from [0, Jitter) on every call. Jitter is applied after the
// clamp, so a jittered wait may exceed WaitMax by up to Jitter seconds but can
// never drop below WaitMin or zero.
func (w WaitParams) Shape(raw float64, r Sampler) time.Duration {
	secs := saturate(raw)
	if w.WaitMin != nil {
		secs = math.Max(secs, *w.WaitMin)
	}
	if w.WaitMax != nil {
		secs = math.Min(secs, *w.WaitMax)
	}
	secs = math.Max(secs, 0)
	if w.Jitter > 0 {
		secs += uniform(r, w.Jitter)
	}
	return DurationFromSeconds(secs)
}

// StaggerDelay returns the one-off delay applied before the first attempt,
// sampled uniformly from [0, Stagger). It is zero when staggering is disabled.
func (w WaitParams) StaggerDelay(r Sampler) time.Duration {
	if w.Stagger <= 0 {
		return 0
	}
	return DurationFromSeconds(uniform(r, w.Stagger))
}

func uniform(r Sampler, upper float64) float64 {
	if r == nil {
		r = DefaultSampler
	}
	return r.Float64() * upper
}

// DurationFromSeconds converts seconds to a duration, saturating at the largest
// representable duration. Negative or NaN input is a programming error since
// every value is validated before it reaches here.
func DurationFromSeconds(secs float64) time.Duration {
	if math.IsNaN(secs) || secs < 0 {
		panic("core: invalid duration in seconds")
	}
	ns := secs * float64(time.Second)
	if ns >= float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ns)
}
