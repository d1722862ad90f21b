// Package proc runs one child command per attempt and exposes its exit
// status, signal and captured output.
package proc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
	"unicode/utf8"
)

// GracePeriod is how long a gracefully terminated child has to exit before
// it is killed.
const GracePeriod = 3 * time.Second

// ErrInvalidUTF8 is returned when captured output is read as text but is not
// valid UTF-8.
var ErrInvalidUTF8 = errors.New("command output is not valid UTF-8")

// Options control where the child's streams go.
type Options struct {
	// Capture keeps a copy of stdout and stderr for the policy evaluator.
	// Output is still passed through to Stdout and Stderr.
	Capture bool
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer

	// GracePeriod overrides the package GracePeriod when positive.
	GracePeriod time.Duration
}

func (o Options) withDefaults() Options {
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.GracePeriod <= 0 {
		o.GracePeriod = GracePeriod
	}
	return o
}

// Child is a running command. It is reaped by a background goroutine so Poll
// never blocks.
type Child struct {
	cmd    *exec.Cmd
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	done   chan struct{}
	err    error
	grace  time.Duration
}

// Start spawns argv[0] with the remaining arguments.
func Start(argv []string, opts Options) (*Child, error) {
	if len(argv) == 0 {
		return nil, errors.New("proc: empty command")
	}
	opts = opts.withDefaults()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = opts.Stdin
	cmd.WaitDelay = opts.GracePeriod

	c := &Child{cmd: cmd, done: make(chan struct{}), grace: opts.GracePeriod}
	if opts.Capture {
		c.stdout = &bytes.Buffer{}
		c.stderr = &bytes.Buffer{}
		cmd.Stdout = io.MultiWriter(opts.Stdout, c.stdout)
		cmd.Stderr = io.MultiWriter(opts.Stderr, c.stderr)
	} else {
		cmd.Stdout = opts.Stdout
		cmd.Stderr = opts.Stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawning %q: %w", argv[0], err)
	}

	go func() {
		err := cmd.Wait()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) || errors.Is(err, exec.ErrWaitDelay) {
			err = nil
		}
		c.err = err
		close(c.done)
	}()
	return c, nil
}

// Pid returns the child's process id.
func (c *Child) Pid() int {
	return c.cmd.Process.Pid
}

// Poll reports whether the child has exited, without blocking.
func (c *Child) Poll() (bool, error) {
	select {
	case <-c.done:
		return true, c.err
	default:
		return false, nil
	}
}

// Terminate stops the child and waits for it to be reaped. A graceful
// termination sends SIGTERM where the platform has signals and escalates to a
// kill after the grace period; force kills immediately. Terminating an exited
// child is a no-op.
func (c *Child) Terminate(force bool) error {
	if exited, _ := c.Poll(); exited {
		return nil
	}

	if !force {
		if err := interrupt(c.cmd.Process); err == nil {
			select {
			case <-c.done:
				return nil
			case <-time.After(c.grace):
			}
		}
	}

	if err := c.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("killing pid %d: %w", c.Pid(), err)
	}
	<-c.done
	return nil
}

// Wait blocks until the child exits and returns its exit record. The error is
// non-nil only for OS-level failures, never for a failing exit status.
func (c *Child) Wait() (*Exit, error) {
	<-c.done
	if c.err != nil {
		return nil, fmt.Errorf("waiting for pid %d: %w", c.Pid(), c.err)
	}
	e := &Exit{state: c.cmd.ProcessState}
	if c.stdout != nil {
		e.captured = true
		e.stdout = c.stdout.Bytes()
		e.stderr = c.stderr.Bytes()
	}
	return e, nil
}

// Exit is the record of a finished child. It implements policy.Output.
type Exit struct {
	state    *os.ProcessState
	captured bool
	stdout   []byte
	stderr   []byte

	stdoutText *string
	stderrText *string
}

// StatusCode returns the exit status, or false if the child was killed by a signal.
func (e *Exit) StatusCode() (int, bool) {
	code := e.state.ExitCode()
	if code < 0 {
		return 0, false
	}
	return code, true
}

// Signal returns the signal that terminated the child, if any.
func (e *Exit) Signal() (int, bool) {
	return exitSignal(e.state)
}

// Success reports whether the child exited with status zero.
func (e *Exit) Success() bool {
	return e.state.Success()
}

// Stdout returns the captured standard output, decoded once. It is empty when
// output was not captured.
func (e *Exit) Stdout() (string, error) {
	return decode(e.captured, e.stdout, &e.stdoutText)
}

// Stderr returns the captured standard error, decoded once.
func (e *Exit) Stderr() (string, error) {
	return decode(e.captured, e.stderr, &e.stderrText)
}

func (e *Exit) String() string {
	return e.state.String()
}

func decode(captured bool, raw []byte, cache **string) (string, error) {
	if !captured {
		return "", nil
	}
	if *cache != nil {
		return **cache, nil
	}
	if !utf8.Valid(raw) {
		return "", ErrInvalidUTF8
	}
	text := string(raw)
	*cache = &text
	return text, nil
}
