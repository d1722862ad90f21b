// Package cli parses the attempt command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"

	"github.com/openjobspec/attempt/internal/attempt"
	"github.com/openjobspec/attempt/internal/core"
	"github.com/openjobspec/attempt/internal/policy"
	"github.com/openjobspec/attempt/internal/proc"
)

// ErrHelp is returned when -h or --help is given.
var ErrHelp = pflag.ErrHelp

// UsageError is an invalid command line. It maps to exit code 2.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

func usageErrorf(format string, args ...any) error {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}

// Options is the parsed command line.
type Options struct {
	Backoff  core.Backoff
	Attempts int

	Unlimited bool
	Forever   bool

	Timeout         *float64
	ExpectedRuntime *float64
	ForceKill       bool
	Align           string

	Verbose int
	Quiet   int

	Jitter  float64
	WaitMin *float64
	WaitMax *float64
	Stagger float64

	Policy  policy.Policy
	Command []string

	alignSchedule cron.Schedule
}

var alignParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// strategyFlags lists the flags that belong to a single strategy.
var strategyFlags = map[string][]core.BackoffType{
	"wait":          {core.BackoffFixed},
	"base":          {core.BackoffExponential},
	"multiplier":    {core.BackoffExponential, core.BackoffLinear},
	"starting-wait": {core.BackoffLinear},
}

func newFlagSet(o *Options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("attempt", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false

	fs.VarP(newAttemptsValue(3, &o.Attempts), "attempts", "a", "The maximum number of attempts")
	fs.VarP(&optionalSecondsValue{&o.Timeout}, "timeout", "t", "Timeout for an individual attempt of the command")
	fs.VarP(&optionalSecondsValue{&o.ExpectedRuntime}, "expected-runtime", "R", "How long the command is expected to take; not counted against its timeout")
	fs.BoolVarP(&o.ForceKill, "force-kill", "k", false, "Kill timed-out commands instead of sending SIGTERM")
	fs.BoolVarP(&o.Unlimited, "unlimited-attempts", "U", false, "Run until the command succeeds, with no limit on the number of attempts")
	fs.BoolVarP(&o.Forever, "forever", "Y", false, "Always retry the command, and do not limit the number of attempts")
	fs.CountVarP(&o.Verbose, "verbose", "v", "Print human-readable messages; -vv shows all messages")
	fs.CountVarP(&o.Quiet, "quiet", "q", "Suppress human-readable messages; -qq suppresses all messages")
	fs.StringVar(&o.Align, "align", "", "Wait for the next firing of a cron schedule before the first attempt")

	fs.VarP(newSecondsValue(0, &o.Jitter), "jitter", "j", "Add random jitter in [0, n) to the wait time")
	fs.VarP(&optionalSecondsValue{&o.WaitMin}, "wait-min", "m", "The minimum amount of time to wait between attempts")
	fs.VarP(&optionalSecondsValue{&o.WaitMax}, "wait-max", "M", "The maximum amount of time to wait between attempts")
	fs.Var(newSecondsValue(0, &o.Stagger), "stagger", "Wait a random amount of time in [0, n) before the first attempt")

	fs.VarP(newSecondsValue(1, &o.Backoff.Wait), "wait", "w", "fixed: the amount of time to wait between attempts")
	fs.VarP(newNonNegativeFloatValue(2, &o.Backoff.Base), "base", "b", "exponential: the base of the exponent")
	fs.VarP(newNonNegativeFloatValue(1, &o.Backoff.Multiplier), "multiplier", "x", "exponential, linear: the multiplier")
	fs.VarP(newSecondsValue(1, &o.Backoff.StartingWait), "starting-wait", "W", "linear: the wait before the second attempt")

	p := &o.Policy
	fs.BoolVar(&p.RetryAlways, "retry-always", false, "Retry unless a stop predicate matches")
	fs.BoolVarP(&p.RetryFailingStatus, "retry-failing-status", "F", false, "Retry if the command exits with a non-zero status")
	fs.BoolVar(&p.RetryIfKilled, "retry-if-killed", false, "Retry if the command is killed by a signal")
	fs.BoolVar(&p.RetryIfTimeout, "retry-if-timeout", false, "Retry if the command times out")
	fs.VarP(&patternValue{&p.RetryIfStatus}, "retry-if-status", "S", "Retry if the exit status matches the pattern")
	fs.Var(&patternValue{&p.RetryIfSignal}, "retry-if-signal", "Retry if the terminating signal matches the pattern")
	fs.VarP(&textValue{&p.RetryIfContains}, "retry-if-contains", "s", "Retry if stdout or stderr contains the string")
	fs.VarP(&regexValue{&p.RetryIfMatches}, "retry-if-matches", "r", "Retry if stdout or stderr matches the regex")
	fs.Var(&textValue{&p.RetryIfStdoutContains}, "retry-if-stdout-contains", "Retry if stdout contains the string")
	fs.Var(&regexValue{&p.RetryIfStdoutMatches}, "retry-if-stdout-matches", "Retry if stdout matches the regex")
	fs.Var(&textValue{&p.RetryIfStderrContains}, "retry-if-stderr-contains", "Retry if stderr contains the string")
	fs.Var(&regexValue{&p.RetryIfStderrMatches}, "retry-if-stderr-matches", "Retry if stderr matches the regex")

	fs.BoolVar(&p.StopIfKilled, "stop-if-killed", false, "Stop if the command is killed by a signal")
	fs.BoolVar(&p.StopIfTimeout, "stop-if-timeout", false, "Stop if the command times out")
	fs.Var(&patternValue{&p.StopIfStatus}, "stop-if-status", "Stop if the exit status matches the pattern")
	fs.Var(&patternValue{&p.StopIfSignal}, "stop-if-signal", "Stop if the terminating signal matches the pattern")
	fs.Var(&textValue{&p.StopIfContains}, "stop-if-contains", "Stop if stdout or stderr contains the string")
	fs.Var(&regexValue{&p.StopIfMatches}, "stop-if-matches", "Stop if stdout or stderr matches the regex")
	fs.Var(&textValue{&p.StopIfStdoutContains}, "stop-if-stdout-contains", "Stop if stdout contains the string")
	fs.Var(&regexValue{&p.StopIfStdoutMatches}, "stop-if-stdout-matches", "Stop if stdout matches the regex")
	fs.Var(&textValue{&p.StopIfStderrContains}, "stop-if-stderr-contains", "Stop if stderr contains the string")
	fs.Var(&regexValue{&p.StopIfStderrMatches}, "stop-if-stderr-matches", "Stop if stderr matches the regex")

	return fs
}

// Parse parses args, which exclude the program name. The strategy name is
// optional and defaults to fixed; flags may appear before and after it. The
// command starts at the first argument that is neither a flag nor a strategy
// name, or after "--".
func Parse(args []string) (*Options, error) {
	o := &Options{Backoff: core.Backoff{Type: core.BackoffFixed}}
	fs := newFlagSet(o)

	if err := fs.Parse(args); err != nil {
		return nil, flagError(err)
	}
	rest := fs.Args()

	if len(rest) > 0 && fs.ArgsLenAtDash() != 0 {
		if strategy, ok := core.ParseBackoffType(rest[0]); ok {
			o.Backoff.Type = strategy
			if err := fs.Parse(rest[1:]); err != nil {
				return nil, flagError(err)
			}
			rest = fs.Args()
		}
	}
	o.Command = rest

	if err := o.validate(fs); err != nil {
		return nil, err
	}
	return o, nil
}

func flagError(err error) error {
	if errors.Is(err, pflag.ErrHelp) {
		return ErrHelp
	}
	return &UsageError{Err: err}
}

func (o *Options) validate(fs *pflag.FlagSet) error {
	if len(o.Command) == 0 {
		return usageErrorf("No command specified.")
	}

	for name, allowed := range strategyFlags {
		if !fs.Changed(name) {
			continue
		}
		ok := false
		for _, s := range allowed {
			ok = ok || s == o.Backoff.Type
		}
		if !ok {
			return usageErrorf("--%s cannot be used with the %s strategy.", name, o.Backoff.Type)
		}
	}

	if o.Timeout == nil {
		switch {
		case o.Policy.StopIfTimeout:
			return usageErrorf("--stop-if-timeout requires --timeout.")
		case o.Policy.RetryIfTimeout:
			return usageErrorf("--retry-if-timeout requires --timeout.")
		case o.ExpectedRuntime != nil:
			return usageErrorf("--expected-runtime requires --timeout.")
		}
	} else if *o.Timeout <= 0 {
		return usageErrorf("--timeout must be greater than 0.")
	}

	if o.WaitMin != nil && o.WaitMax != nil && *o.WaitMin > *o.WaitMax {
		return usageErrorf("--wait-min cannot be greater than --wait-max.")
	}

	if o.Policy.UsesSignals() && !proc.SignalsSupported {
		return usageErrorf("signal predicates are not supported on this platform.")
	}

	if o.Align != "" {
		sched, err := alignParser.Parse(o.Align)
		if err != nil {
			return usageErrorf("invalid --align schedule %q: %v", o.Align, err)
		}
		o.alignSchedule = sched
	}
	return nil
}

// Schedule builds the backoff schedule. --unlimited-attempts and --forever
// remove the attempt cap.
func (o *Options) Schedule() core.Schedule {
	attempts := o.Attempts
	if o.Unlimited || o.Forever {
		attempts = 0
	}
	return core.Schedule{
		Backoff:  o.Backoff,
		Attempts: attempts,
		Wait: core.WaitParams{
			Jitter:  o.Jitter,
			WaitMin: o.WaitMin,
			WaitMax: o.WaitMax,
			Stagger: o.Stagger,
		},
	}
}

// RunConfig builds the orchestrator configuration for a run.
func (o *Options) RunConfig(runID string) attempt.Config {
	cfg := attempt.Config{
		Command:   o.Command,
		Schedule:  o.Schedule(),
		Policy:    &o.Policy,
		ForceKill: o.ForceKill,
		Forever:   o.Forever,
		Align:     o.alignSchedule,
		RunID:     runID,
	}
	if o.Timeout != nil {
		cfg.Timeout = core.DurationFromSeconds(*o.Timeout)
	}
	if o.ExpectedRuntime != nil {
		cfg.ExpectedRuntime = core.DurationFromSeconds(*o.ExpectedRuntime)
	}
	return cfg
}

const usageHeader = `Retry a command with configurable backoff and stop/retry policies.

Usage:
  attempt [OPTIONS] [STRATEGY] [STRATEGY OPTIONS] [--] COMMAND [ARGS]...

Strategies:
  fixed         Wait a fixed amount of time between attempts (default)
  exponential   Wait multiplier * base^n between attempts (alias: exp)
  linear        Wait multiplier * n + starting-wait between attempts

Time values accept seconds (1.5), units (500ms, 1h30m, 1hr 30min 10s) or ISO 8601 (PT1M30S).
Patterns are comma separated codes and ranges, e.g. 1..3,5.

Exit codes: 0 success, 1 I/O error, 2 usage error, 3 retries exhausted, 4 stopped.

Options:
`

// Usage writes the help text to w.
func Usage(w io.Writer) {
	fs := newFlagSet(&Options{})
	var b strings.Builder
	b.WriteString(usageHeader)
	b.WriteString(fs.FlagUsages())
	_, _ = io.WriteString(w, b.String())
}
