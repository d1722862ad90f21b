// Package attempt runs a command repeatedly according to a backoff schedule
// and a stop/retry policy.
package attempt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/openjobspec/attempt/internal/clock"
	"github.com/openjobspec/attempt/internal/core"
	"github.com/openjobspec/attempt/internal/logging"
	"github.com/openjobspec/attempt/internal/metrics"
	"github.com/openjobspec/attempt/internal/policy"
	"github.com/openjobspec/attempt/internal/poll"
	"github.com/openjobspec/attempt/internal/tracing"
)

// Config describes one run. It is not modified by Run.
type Config struct {
	Command  []string
	Schedule core.Schedule
	Policy   *policy.Policy

	// Timeout bounds each attempt; zero means no timeout.
	Timeout time.Duration
	// ExpectedRuntime is waited out before timeout polling starts.
	ExpectedRuntime time.Duration
	// ForceKill kills timed-out children instead of asking them to exit.
	ForceKill bool
	// Forever retries regardless of outcome unless a stop predicate matches.
	Forever bool
	// Align, when set, delays the first attempt until the schedule next fires.
	Align cron.Schedule

	RunID string
}

// Summary describes a finished run.
type Summary struct {
	RunID      string
	Command    []string
	Outcome    core.Outcome
	Attempts   int
	Timeouts   int
	LastStatus *int
	LastSignal *int
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

// ExitCode is the process exit code for the run.
func (s Summary) ExitCode() int {
	return s.Outcome.ExitCode()
}

// Runner drives the attempt loop. Exactly one child is alive at a time.
type Runner struct {
	clock   clock.Clock
	spawner Spawner
	sampler core.Sampler
	logger  *slog.Logger
}

// New creates a runner with the given clock and spawner.
func New(clk clock.Clock, spawner Spawner) *Runner {
	return &Runner{
		clock:   clk,
		spawner: spawner,
		sampler: core.DefaultSampler,
		logger:  slog.Default(),
	}
}

// SetLogger sets the logger for the runner.
func (r *Runner) SetLogger(logger *slog.Logger) {
	r.logger = logger
}

// SetSampler sets the random source for stagger delays.
func (r *Runner) SetSampler(s core.Sampler) {
	r.sampler = s
}

// Run executes attempts until the policy stops or the schedule is exhausted.
// A non-nil error means an OS-level failure aborted the run; the summary then
// has OutcomeIOError.
func (r *Runner) Run(ctx context.Context, cfg Config) (Summary, error) {
	summary := Summary{
		RunID:     cfg.RunID,
		Command:   cfg.Command,
		StartedAt: r.clock.Now(),
	}
	if cfg.Policy == nil {
		cfg.Policy = &policy.Policy{}
	}

	ctx, span := tracing.StartSpan(ctx, "attempt.run",
		tracing.RunID(cfg.RunID),
		tracing.Command(strings.Join(cfg.Command, " ")),
	)
	defer span.End()

	finish := func(outcome core.Outcome, err error) (Summary, error) {
		summary.Outcome = outcome
		summary.Err = err
		summary.FinishedAt = r.clock.Now()
		metrics.RunsTotal.WithLabelValues(outcome.String()).Inc()
		span.SetAttributes(tracing.Outcome(outcome.String()))
		if err != nil {
			tracing.RecordError(span, err)
		} else {
			tracing.SetOK(span)
		}
		return summary, err
	}

	r.align(ctx, cfg.Align)

	if delay := cfg.Schedule.Wait.StaggerDelay(r.sampler); delay > 0 {
		r.logger.InfoContext(ctx, fmt.Sprintf("Staggering by %.2f seconds", delay.Seconds()))
		r.clock.Sleep(delay)
	}

	for step := range cfg.Schedule.Steps() {
		logging.Trace(ctx, "starting new attempt", "attempt", step.Index+1)
		summary.Attempts++

		res, err := r.runOnce(ctx, cfg, step)
		if err != nil {
			return finish(core.OutcomeIOError, err)
		}
		if res.timedOut {
			summary.Timeouts++
		}
		summary.LastStatus, summary.LastSignal = exitDetails(res.exit)

		if res.decision == policy.Stop {
			if res.exit.Success() {
				r.logger.DebugContext(ctx, "Terminated: Success.")
				return finish(core.OutcomeSuccess, nil)
			}
			r.logger.DebugContext(ctx, "Terminated: Command has failed, but cannot be retried.")
			return finish(core.OutcomeStopped, nil)
		}

		if !step.Last {
			r.logger.DebugContext(ctx, fmt.Sprintf("Command has failed, retrying in %s...", core.HumanDuration(step.Delay)))
			metrics.BackoffSleep.Observe(step.Delay.Seconds())
			r.clock.Sleep(step.Delay)
		}
	}

	r.logger.DebugContext(ctx, "Terminated: Retries exhausted.")
	return finish(core.OutcomeRetriesExhausted, nil)
}

type result struct {
	exit     Exit
	timedOut bool
	decision policy.Decision
}

// runOnce spawns, waits out and evaluates a single attempt.
func (r *Runner) runOnce(ctx context.Context, cfg Config, step core.Step) (result, error) {
	ctx, span := tracing.StartSpan(ctx, "attempt.try", tracing.AttemptIndex(step.Index))
	defer span.End()

	var res result
	start := r.clock.Now()

	p, err := r.spawner.Spawn(cfg.Command, cfg.Policy.NeedsOutput())
	if err != nil {
		tracing.RecordError(span, err)
		return res, err
	}

	if cfg.Timeout > 0 {
		logging.Trace(ctx, "polling child command")
		done, err := poll.WithTimeout(p, r.clock, cfg.Timeout, cfg.ExpectedRuntime)
		if err != nil {
			_ = p.Terminate(true)
			tracing.RecordError(span, err)
			return res, fmt.Errorf("polling child: %w", err)
		}
		if !done {
			r.logger.DebugContext(ctx, "Child command has timed out; sending signal...", "force", cfg.ForceKill)
			res.timedOut = true
			metrics.TimeoutsTotal.Inc()
			if err := p.Terminate(cfg.ForceKill); err != nil {
				tracing.RecordError(span, err)
				return res, fmt.Errorf("terminating child: %w", err)
			}
		} else {
			logging.Trace(ctx, "child command has exited")
		}
	}

	res.exit, err = p.Wait()
	if err != nil {
		tracing.RecordError(span, err)
		return res, err
	}
	r.logger.DebugContext(ctx, "Child has exited.", "status", res.exit.String())

	res.decision, err = cfg.Policy.Evaluate(ctx, res.exit, res.timedOut, cfg.Forever)
	if err != nil {
		tracing.RecordError(span, err)
		return res, fmt.Errorf("evaluating policy: %w", err)
	}

	metrics.AttemptsTotal.WithLabelValues(res.decision.String()).Inc()
	metrics.AttemptDuration.Observe(r.clock.Now().Sub(start).Seconds())

	span.SetAttributes(tracing.TimedOut(res.timedOut), tracing.Decision(res.decision.String()))
	if code, ok := res.exit.StatusCode(); ok {
		span.SetAttributes(tracing.ExitStatus(code))
	}
	if sig, ok := res.exit.Signal(); ok {
		span.SetAttributes(tracing.ExitSignal(sig))
	}
	if res.decision == policy.Continue && !step.Last {
		span.SetAttributes(tracing.BackoffSeconds(step.Delay.Seconds()))
	}
	return res, nil
}

// align sleeps until the next firing of sched.
func (r *Runner) align(ctx context.Context, sched cron.Schedule) {
	if sched == nil {
		return
	}
	now := r.clock.Now()
	next := sched.Next(now)
	if next.IsZero() {
		return
	}
	wait := next.Sub(now)
	r.logger.InfoContext(ctx, fmt.Sprintf("Aligning to schedule, waiting %s", core.HumanDuration(wait)), "next", next.Format(time.RFC3339))
	r.clock.Sleep(wait)
}

func exitDetails(e Exit) (*int, *int) {
	var status, signal *int
	if code, ok := e.StatusCode(); ok {
		status = &code
	}
	if sig, ok := e.Signal(); ok {
		signal = &sig
	}
	return status, signal
}
