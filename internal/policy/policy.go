// Package policy decides after each attempt whether to stop or to retry.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/openjobspec/attempt/internal/core"
	"github.com/openjobspec/attempt/internal/logging"
)

// Decision is the evaluator's verdict for one attempt.
type Decision int

const (
	Stop Decision = iota
	Continue
)

func (d Decision) String() string {
	if d == Continue {
		return "continue"
	}
	return "stop"
}

// Output is what the evaluator can learn about a finished child.
type Output interface {
	// StatusCode is the exit status; ok is false when the child was killed.
	StatusCode() (code int, ok bool)
	// Signal is the terminating signal; ok is false if there was none or the
	// platform has no signals.
	Signal() (sig int, ok bool)
	Stdout() (string, error)
	Stderr() (string, error)
}

// Succeeded reports whether out describes a successful exit.
func Succeeded(out Output) bool {
	code, ok := out.StatusCode()
	return ok && code == core.ExitSuccess
}

// Policy holds the stop and retry predicates. Nil patterns and regexes and
// empty strings are unset. Stop predicates take precedence over retry
// predicates; when neither matches the decision is Stop.
type Policy struct {
	RetryAlways           bool
	RetryFailingStatus    bool
	RetryIfKilled         bool
	RetryIfTimeout        bool
	RetryIfStatus         *core.CodePattern
	RetryIfSignal         *core.CodePattern
	RetryIfContains       string
	RetryIfMatches        *regexp.Regexp
	RetryIfStdoutContains string
	RetryIfStdoutMatches  *regexp.Regexp
	RetryIfStderrContains string
	RetryIfStderrMatches  *regexp.Regexp

	StopIfKilled         bool
	StopIfTimeout        bool
	StopIfStatus         *core.CodePattern
	StopIfSignal         *core.CodePattern
	StopIfContains       string
	StopIfMatches        *regexp.Regexp
	StopIfStdoutContains string
	StopIfStdoutMatches  *regexp.Regexp
	StopIfStderrContains string
	StopIfStderrMatches  *regexp.Regexp
}

// DefaultBehavior reports whether no predicate is configured, in which case a
// successful exit stops and anything else retries. forever always retries, so
// it disables the default behavior.
func (p *Policy) DefaultBehavior(forever bool) bool {
	return !forever &&
		!p.RetryAlways && !p.RetryFailingStatus && !p.RetryIfKilled && !p.RetryIfTimeout &&
		p.RetryIfStatus == nil && p.RetryIfSignal == nil &&
		p.RetryIfContains == "" && p.RetryIfMatches == nil &&
		p.RetryIfStdoutContains == "" && p.RetryIfStdoutMatches == nil &&
		p.RetryIfStderrContains == "" && p.RetryIfStderrMatches == nil &&
		!p.StopIfKilled && !p.StopIfTimeout &&
		p.StopIfStatus == nil && p.StopIfSignal == nil &&
		p.StopIfContains == "" && p.StopIfMatches == nil &&
		p.StopIfStdoutContains == "" && p.StopIfStdoutMatches == nil &&
		p.StopIfStderrContains == "" && p.StopIfStderrMatches == nil
}

// NeedsOutput reports whether any predicate inspects stdout or stderr, i.e.
// whether the child's output must be captured.
func (p *Policy) NeedsOutput() bool {
	return p.RetryIfContains != "" || p.RetryIfMatches != nil ||
		p.RetryIfStdoutContains != "" || p.RetryIfStdoutMatches != nil ||
		p.RetryIfStderrContains != "" || p.RetryIfStderrMatches != nil ||
		p.StopIfContains != "" || p.StopIfMatches != nil ||
		p.StopIfStdoutContains != "" || p.StopIfStdoutMatches != nil ||
		p.StopIfStderrContains != "" || p.StopIfStderrMatches != nil
}

// UsesSignals reports whether a signal pattern is configured.
func (p *Policy) UsesSignals() bool {
	return p.RetryIfSignal != nil || p.StopIfSignal != nil
}

// Evaluate decides whether to stop or continue after an attempt. An error is
// returned only if a text predicate needs a stream that cannot be decoded.
func (p *Policy) Evaluate(ctx context.Context, out Output, timedOut, forever bool) (Decision, error) {
	logging.Trace(ctx, "evaluating policy")

	if p.DefaultBehavior(forever) {
		if Succeeded(out) {
			slog.DebugContext(ctx, "stop: command was successful")
			return Stop, nil
		}
		slog.DebugContext(ctx, "retry: command failed")
		return Continue, nil
	}

	stop, err := p.evaluateStop(ctx, out, timedOut)
	if err != nil {
		return Stop, err
	}
	if stop {
		return Stop, nil
	}

	retry, err := p.evaluateRetry(ctx, out, timedOut, forever)
	if err != nil {
		return Stop, err
	}
	if retry {
		return Continue, nil
	}

	slog.DebugContext(ctx, "stop: no retry predicates matched")
	return Stop, nil
}

func (p *Policy) evaluateStop(ctx context.Context, out Output, timedOut bool) (bool, error) {
	logging.Trace(ctx, "evaluating stop predicates")

	if p.StopIfTimeout && timedOut {
		slog.DebugContext(ctx, "stop: timeout")
		return true, nil
	}

	if code, ok := out.StatusCode(); ok {
		if p.StopIfStatus != nil && p.StopIfStatus.Contains(code) {
			slog.DebugContext(ctx, "stop: status matches", "status", code)
			return true, nil
		}
	} else if p.StopIfKilled {
		slog.DebugContext(ctx, "stop: command killed by signal")
		return true, nil
	}

	if sig, ok := out.Signal(); ok && p.StopIfSignal != nil && p.StopIfSignal.Contains(sig) {
		slog.DebugContext(ctx, "stop: signal matches", "signal", sig)
		return true, nil
	}

	return p.matchText(ctx, "stop", out, textPredicates{
		contains:       p.StopIfContains,
		matches:        p.StopIfMatches,
		stdoutContains: p.StopIfStdoutContains,
		stdoutMatches:  p.StopIfStdoutMatches,
		stderrContains: p.StopIfStderrContains,
		stderrMatches:  p.StopIfStderrMatches,
	})
}

func (p *Policy) evaluateRetry(ctx context.Context, out Output, timedOut, forever bool) (bool, error) {
	logging.Trace(ctx, "evaluating retry predicates")

	if p.RetryAlways || forever {
		slog.DebugContext(ctx, "retry: retrying by default")
		return true, nil
	}

	if p.RetryIfTimeout && timedOut {
		slog.DebugContext(ctx, "retry: command timed out")
		return true, nil
	}

	code, exited := out.StatusCode()
	if exited && p.RetryIfStatus != nil && p.RetryIfStatus.Contains(code) {
		slog.DebugContext(ctx, "retry: status matches", "status", code)
		return true, nil
	}
	if exited && p.RetryFailingStatus && code != core.ExitSuccess {
		slog.DebugContext(ctx, "retry: command exited with failing status", "status", code)
		return true, nil
	}
	if !exited && p.RetryIfKilled {
		slog.DebugContext(ctx, "retry: command killed by signal")
		return true, nil
	}

	if sig, ok := out.Signal(); ok && p.RetryIfSignal != nil && p.RetryIfSignal.Contains(sig) {
		slog.DebugContext(ctx, "retry: signal matches", "signal", sig)
		return true, nil
	}

	return p.matchText(ctx, "retry", out, textPredicates{
		contains:       p.RetryIfContains,
		matches:        p.RetryIfMatches,
		stdoutContains: p.RetryIfStdoutContains,
		stdoutMatches:  p.RetryIfStdoutMatches,
		stderrContains: p.RetryIfStderrContains,
		stderrMatches:  p.RetryIfStderrMatches,
	})
}

type textPredicates struct {
	contains       string
	matches        *regexp.Regexp
	stdoutContains string
	stdoutMatches  *regexp.Regexp
	stderrContains string
	stderrMatches  *regexp.Regexp
}

type textCheck struct {
	stream   string
	contains string
	matches  *regexp.Regexp
}

// matchText runs the text predicates in order: combined contains, combined
// matches, then the stdout and stderr specific ones. Streams are only read
// when a predicate needs them.
func (p *Policy) matchText(ctx context.Context, verdict string, out Output, tp textPredicates) (bool, error) {
	checks := []textCheck{
		{stream: "stdout", contains: tp.contains},
		{stream: "stderr", contains: tp.contains},
		{stream: "stdout", matches: tp.matches},
		{stream: "stderr", matches: tp.matches},
		{stream: "stdout", contains: tp.stdoutContains},
		{stream: "stdout", matches: tp.stdoutMatches},
		{stream: "stderr", contains: tp.stderrContains},
		{stream: "stderr", matches: tp.stderrMatches},
	}

	for _, c := range checks {
		if c.contains == "" && c.matches == nil {
			continue
		}
		text, err := readStream(out, c.stream)
		if err != nil {
			return false, err
		}
		if c.contains != "" && strings.Contains(text, c.contains) {
			slog.DebugContext(ctx, verdict+": "+c.stream+" contained string", "string", c.contains)
			return true, nil
		}
		if c.matches != nil && c.matches.MatchString(text) {
			slog.DebugContext(ctx, verdict+": "+c.stream+" matched regex", "regex", c.matches.String())
			return true, nil
		}
	}
	return false, nil
}

func readStream(out Output, stream string) (string, error) {
	var (
		text string
		err  error
	)
	if stream == "stdout" {
		text, err = out.Stdout()
	} else {
		text, err = out.Stderr()
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", stream, err)
	}
	return text, nil
}
