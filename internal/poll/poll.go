// Package poll waits for a running child to finish without blocking on it,
// bounded by a timeout.
package poll

import (
	"time"

	"github.com/openjobspec/attempt/internal/clock"
)

const (
	// FixedDelay is the polling interval while an expected runtime elapses.
	FixedDelay = time.Minute
	// InitialDelay is the first delay of the exponential phase.
	InitialDelay = 10 * time.Millisecond
	// MaxDelay caps every exponential delay.
	MaxDelay = 15 * time.Second
)

// Pollable reports without blocking whether a result is ready.
type Pollable interface {
	Poll() (bool, error)
}

// WithTimeout polls p until it is ready or timeout elapses, returning true if
// p became ready in time. Polling is aggressive at first, since most commands
// finish quickly, then backs off exponentially up to MaxDelay.
//
// A positive expected runtime, clamped to timeout, is waited out first in
// FixedDelay steps, still polling so an early exit is noticed. The timeout
// clock starts after that phase. WithTimeout never kills the child.
func WithTimeout(p Pollable, clk clock.Clock, timeout, expected time.Duration) (bool, error) {
	if expected > timeout {
		expected = timeout
	}
	if expected > 0 {
		done, err := waitExpected(p, clk, expected)
		if done || err != nil {
			return done, err
		}
	}

	start := clk.Now()
	delay := InitialDelay
	for {
		done, err := p.Poll()
		if err != nil {
			return false, err
		}
		if done {
			return true, nil
		}

		remaining := timeout - clk.Now().Sub(start)
		if remaining <= 0 {
			return false, nil
		}
		clk.Sleep(min(delay, remaining))

		if delay < MaxDelay {
			delay = min(delay*2, MaxDelay)
		}
	}
}

func waitExpected(p Pollable, clk clock.Clock, expected time.Duration) (bool, error) {
	steps := int(expected / FixedDelay)
	for i := 0; i < steps; i++ {
		done, err := p.Poll()
		if done || err != nil {
			return done, err
		}
		clk.Sleep(FixedDelay)
	}

	done, err := p.Poll()
	if done || err != nil {
		return done, err
	}
	if rest := expected - time.Duration(steps)*FixedDelay; rest > 0 {
		clk.Sleep(rest)
	}
	return false, nil
}
