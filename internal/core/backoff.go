package core

import (
	"fmt"
	"iter"
	"math"
	"time"
)

// BackoffType names a backoff strategy.
type BackoffType string

const (
	BackoffFixed       BackoffType = "fixed"
	BackoffLinear      BackoffType = "linear"
	BackoffExponential BackoffType = "exponential"
)

// ParseBackoffType resolves a strategy name, including the "exp" alias.
func ParseBackoffType(s string) (BackoffType, bool) {
	switch s {
	case "fixed":
		return BackoffFixed, true
	case "linear":
		return BackoffLinear, true
	case "exponential", "exp":
		return BackoffExponential, true
	}
	return "", false
}

// Backoff describes how the raw interval between attempts grows. Only the
// fields belonging to Type are consulted; all intervals are in seconds.
type Backoff struct {
	Type BackoffType

	// fixed
	Wait float64

	// exponential: Multiplier * Base^n
	Base float64

	// linear: Multiplier * n + StartingWait
	Multiplier   float64
	StartingWait float64
}

// DefaultBackoff is the implicit strategy: one second between attempts.
func DefaultBackoff() Backoff {
	return Backoff{Type: BackoffFixed, Wait: 1}
}

// Interval computes the raw (unshaped) interval in seconds after attempt n,
// where n starts at zero. The result is always finite: growth past the float64
// range saturates at math.MaxFloat64 and a zero multiplier stays zero.
func (b Backoff) Interval(n int) float64 {
	switch b.Type {
	case BackoffLinear:
		return saturate(b.Multiplier*float64(n) + b.StartingWait)
	case BackoffExponential:
		if b.Multiplier == 0 {
			return 0
		}
		return saturate(b.Multiplier * math.Pow(b.Base, float64(n)))
	default:
		return b.Wait
	}
}

func saturate(secs float64) float64 {
	switch {
	case math.IsNaN(secs):
		return 0
	case math.IsInf(secs, 1):
		return math.MaxFloat64
	}
	return secs
}

func (b Backoff) String() string {
	switch b.Type {
	case BackoffLinear:
		return fmt.Sprintf("linear(multiplier=%g, starting_wait=%g)", b.Multiplier, b.StartingWait)
	case BackoffExponential:
		return fmt.Sprintf("exponential(base=%g, multiplier=%g)", b.Base, b.Multiplier)
	default:
		return fmt.Sprintf("fixed(wait=%g)", b.Wait)
	}
}

// Step is one entry of a schedule: the shaped delay to sleep after attempt
// Index fails, and whether Index is the final attempt.
type Step struct {
	Index int
	Delay time.Duration
	Last  bool
}

// Schedule produces the per-attempt backoff sequence.
type Schedule struct {
	Backoff Backoff
	// Attempts caps the number of attempts; zero means unlimited.
	Attempts int
	Wait     WaitParams
	Sampler  Sampler
}

// Steps returns a fresh sequence of steps. With a finite attempt cap it yields
// exactly Attempts steps and only the final one has Last set; otherwise it is
// unbounded and Last is never set. Each delay is shaped when its step is
// produced, so jitter is sampled independently per step.
func (s Schedule) Steps() iter.Seq[Step] {
	return func(yield func(Step) bool) {
		for n := 0; s.Attempts <= 0 || n < s.Attempts; n++ {
			step := Step{
				Index: n,
				Delay: s.Wait.Shape(s.Backoff.Interval(n), s.Sampler),
				Last:  s.Attempts > 0 && n == s.Attempts-1,
			}
			if !yield(step) {
				return
			}
		}
	}
}
