package core

import (
	"math"
	"testing"
	"time"
)

type fixedSampler float64

func (f fixedSampler) Float64() float64 { return float64(f) }

func collect(s Schedule, limit int) []Step {
	var steps []Step
	for step := range s.Steps() {
		steps = append(steps, step)
		if len(steps) == limit {
			break
		}
	}
	return steps
}

func TestParseBackoffType(t *testing.T) {
	tests := []struct {
		input string
		want  BackoffType
		ok    bool
	}{
		{"fixed", BackoffFixed, true},
		{"linear", BackoffLinear, true},
		{"exponential", BackoffExponential, true},
		{"exp", BackoffExponential, true},
		{"constant", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseBackoffType(tt.input)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseBackoffType(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestBackoffInterval(t *testing.T) {
	tests := []struct {
		name    string
		backoff Backoff
		want    []float64
	}{
		{"fixed", Backoff{Type: BackoffFixed, Wait: 1.5}, []float64{1.5, 1.5, 1.5}},
		{"exponential", Backoff{Type: BackoffExponential, Base: 2, Multiplier: 1}, []float64{1, 2, 4, 8}},
		{"exponential multiplier", Backoff{Type: BackoffExponential, Base: 3, Multiplier: 0.5}, []float64{0.5, 1.5, 4.5}},
		{"linear", Backoff{Type: BackoffLinear, Multiplier: 2, StartingWait: 1}, []float64{1, 3, 5, 7}},
		{"linear flat", Backoff{Type: BackoffLinear, Multiplier: 0, StartingWait: 2}, []float64{2, 2, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for n, want := range tt.want {
				if got := tt.backoff.Interval(n); got != want {
					t.Errorf("Interval(%d) = %v, want %v", n, got, want)
				}
			}
		})
	}
}

func TestDefaultBackoff(t *testing.T) {
	b := DefaultBackoff()
	if b.Type != BackoffFixed {
		t.Errorf("Type = %q, want %q", b.Type, BackoffFixed)
	}
	if got := b.Interval(7); got != 1 {
		t.Errorf("Interval(7) = %v, want 1", got)
	}
}

func TestScheduleSteps_Finite(t *testing.T) {
	s := Schedule{Backoff: DefaultBackoff(), Attempts: 3}

	steps := collect(s, 10)
	if len(steps) != 3 {
		t.Fatalf("len(steps) = %d, want 3", len(steps))
	}
	for i, step := range steps {
		if step.Index != i {
			t.Errorf("steps[%d].Index = %d, want %d", i, step.Index, i)
		}
		if step.Delay != time.Second {
			t.Errorf("steps[%d].Delay = %v, want 1s", i, step.Delay)
		}
		if wantLast := i == 2; step.Last != wantLast {
			t.Errorf("steps[%d].Last = %v, want %v", i, step.Last, wantLast)
		}
	}
}

func TestScheduleSteps_SingleAttempt(t *testing.T) {
	steps := collect(Schedule{Backoff: DefaultBackoff(), Attempts: 1}, 10)
	if len(steps) != 1 || !steps[0].Last {
		t.Errorf("steps = %+v, want one step with Last set", steps)
	}
}

func TestScheduleSteps_Unlimited(t *testing.T) {
	steps := collect(Schedule{Backoff: DefaultBackoff()}, 50)
	if len(steps) != 50 {
		t.Fatalf("len(steps) = %d, want 50", len(steps))
	}
	for _, step := range steps {
		if step.Last {
			t.Errorf("step %d has Last set on an unlimited schedule", step.Index)
		}
	}
}

func TestScheduleSteps_Fresh(t *testing.T) {
	s := Schedule{Backoff: Backoff{Type: BackoffExponential, Base: 2, Multiplier: 1}, Attempts: 3}

	first := collect(s, 10)
	second := collect(s, 10)
	if len(first) != len(second) {
		t.Fatalf("second iteration yielded %d steps, want %d", len(second), len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("step %d differs between iterations: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestScheduleSteps_Exponential(t *testing.T) {
	s := Schedule{Backoff: Backoff{Type: BackoffExponential, Base: 2, Multiplier: 1}, Attempts: 3}

	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	for i, step := range collect(s, 10) {
		if step.Delay != want[i] {
			t.Errorf("steps[%d].Delay = %v, want %v", i, step.Delay, want[i])
		}
	}
}

func TestScheduleSteps_Linear(t *testing.T) {
	s := Schedule{Backoff: Backoff{Type: BackoffLinear, Multiplier: 2, StartingWait: 1}, Attempts: 3}

	want := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}
	for i, step := range collect(s, 10) {
		if step.Delay != want[i] {
			t.Errorf("steps[%d].Delay = %v, want %v", i, step.Delay, want[i])
		}
	}
}

func TestScheduleSteps_WaitMax(t *testing.T) {
	ceiling := 5.0
	s := Schedule{
		Backoff:  Backoff{Type: BackoffExponential, Base: 2, Multiplier: 1},
		Attempts: 6,
		Wait:     WaitParams{WaitMax: &ceiling},
	}

	want := []time.Duration{1, 2, 4, 5, 5, 5}
	for i, step := range collect(s, 10) {
		if step.Delay != want[i]*time.Second {
			t.Errorf("steps[%d].Delay = %v, want %v", i, step.Delay, want[i]*time.Second)
		}
	}
}

func TestScheduleSteps_Jitter(t *testing.T) {
	s := Schedule{
		Backoff:  DefaultBackoff(),
		Attempts: 3,
		Wait:     WaitParams{Jitter: 1},
		Sampler:  fixedSampler(0.5),
	}

	for i, step := range collect(s, 10) {
		if step.Delay != 1500*time.Millisecond {
			t.Errorf("steps[%d].Delay = %v, want 1.5s", i, step.Delay)
		}
	}
}

func TestScheduleSteps_ZeroMultiplierUnlimited(t *testing.T) {
	s := Schedule{Backoff: Backoff{Type: BackoffExponential, Base: 2, Multiplier: 0}}

	steps := collect(s, 1200)
	if len(steps) != 1200 {
		t.Fatalf("len(steps) = %d, want 1200", len(steps))
	}
	for _, step := range steps {
		if step.Delay != 0 {
			t.Fatalf("steps[%d].Delay = %v, want 0", step.Index, step.Delay)
		}
	}
}

func TestScheduleSteps_ExponentialSaturates(t *testing.T) {
	s := Schedule{Backoff: Backoff{Type: BackoffExponential, Base: 2, Multiplier: 1}}

	steps := collect(s, 1200)
	if got := steps[len(steps)-1].Delay; got != time.Duration(math.MaxInt64) {
		t.Errorf("steps[1199].Delay = %v, want the maximum duration", got)
	}
}

func TestBackoffInterval_Finite(t *testing.T) {
	tests := []struct {
		name string
		b    Backoff
		n    int
		want float64
	}{
		{"zero multiplier past overflow", Backoff{Type: BackoffExponential, Base: 2, Multiplier: 0}, 1100, 0},
		{"overflow saturates", Backoff{Type: BackoffExponential, Base: 2, Multiplier: 1}, 1100, math.MaxFloat64},
		{"zero base", Backoff{Type: BackoffExponential, Base: 0, Multiplier: 3}, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.b.Interval(tt.n); got != tt.want {
				t.Errorf("Interval(%d) = %v, want %v", tt.n, got, tt.want)
			}
		})
	}
}
