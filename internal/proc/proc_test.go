//go:build unix

package proc

import (
	"bytes"
	"errors"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"testing"
	"time"
)

func quiet(capture bool) Options {
	return Options{Capture: capture, Stdout: io.Discard, Stderr: io.Discard}
}

func startAndWait(t *testing.T, argv []string, opts Options) *Exit {
	t.Helper()
	c, err := Start(argv, opts)
	if err != nil {
		t.Fatalf("Start(%v) error = %v", argv, err)
	}
	e, err := c.Wait()
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	return e
}

func TestStart_ExitStatus(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		code int
	}{
		{"true", []string{"true"}, 0},
		{"false", []string{"false"}, 1},
		{"custom", []string{"sh", "-c", "exit 10"}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := startAndWait(t, tt.argv, quiet(false))
			code, ok := e.StatusCode()
			if !ok || code != tt.code {
				t.Errorf("StatusCode() = (%d, %v), want (%d, true)", code, ok, tt.code)
			}
			if e.Success() != (tt.code == 0) {
				t.Errorf("Success() = %v, want %v", e.Success(), tt.code == 0)
			}
			if _, ok := e.Signal(); ok {
				t.Error("Signal() reported a signal for a normal exit")
			}
		})
	}
}

func TestStart_NotFound(t *testing.T) {
	_, err := Start([]string{"attempt-test-no-such-command"}, quiet(false))
	if !errors.Is(err, exec.ErrNotFound) {
		t.Errorf("Start() error = %v, want exec.ErrNotFound", err)
	}
}

func TestStart_EmptyCommand(t *testing.T) {
	if _, err := Start(nil, quiet(false)); err == nil {
		t.Error("Start(nil) error = nil, want error")
	}
}

func TestCapture(t *testing.T) {
	var passthrough bytes.Buffer
	opts := Options{Capture: true, Stdout: &passthrough, Stderr: io.Discard}
	e := startAndWait(t, []string{"sh", "-c", "printf foo; printf bar >&2"}, opts)

	stdout, err := e.Stdout()
	if err != nil || stdout != "foo" {
		t.Errorf("Stdout() = (%q, %v), want (%q, nil)", stdout, err, "foo")
	}
	stderr, err := e.Stderr()
	if err != nil || stderr != "bar" {
		t.Errorf("Stderr() = (%q, %v), want (%q, nil)", stderr, err, "bar")
	}
	if passthrough.String() != "foo" {
		t.Errorf("passthrough = %q, want %q", passthrough.String(), "foo")
	}
}

func TestNoCapture(t *testing.T) {
	var passthrough bytes.Buffer
	opts := Options{Stdout: &passthrough, Stderr: io.Discard}
	e := startAndWait(t, []string{"sh", "-c", "printf foo"}, opts)

	if stdout, err := e.Stdout(); err != nil || stdout != "" {
		t.Errorf("Stdout() = (%q, %v), want empty", stdout, err)
	}
	if passthrough.String() != "foo" {
		t.Errorf("passthrough = %q, want %q", passthrough.String(), "foo")
	}
}

func TestInvalidUTF8(t *testing.T) {
	e := startAndWait(t, []string{"sh", "-c", `printf '\377\376'`}, quiet(true))

	if _, err := e.Stdout(); !errors.Is(err, ErrInvalidUTF8) {
		t.Errorf("Stdout() error = %v, want ErrInvalidUTF8", err)
	}
	if _, err := e.Stderr(); err != nil {
		t.Errorf("Stderr() error = %v, want nil", err)
	}
}

func TestPoll(t *testing.T) {
	c, err := Start([]string{"sleep", "5"}, quiet(false))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	done, err := c.Poll()
	if err != nil || done {
		t.Errorf("Poll() = (%v, %v), want (false, nil)", done, err)
	}

	if err := c.Terminate(true); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}
	done, err = c.Poll()
	if err != nil || !done {
		t.Errorf("Poll() after Terminate = (%v, %v), want (true, nil)", done, err)
	}
}

func TestTerminate_Graceful(t *testing.T) {
	c, err := Start([]string{"sleep", "30"}, quiet(false))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	start := time.Now()
	if err := c.Terminate(false); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed >= GracePeriod {
		t.Errorf("graceful Terminate took %v, want under %v", elapsed, GracePeriod)
	}

	e, err := c.Wait()
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if _, ok := e.StatusCode(); ok {
		t.Error("StatusCode() ok = true for a signalled child")
	}
	sig, ok := e.Signal()
	if !ok || sig != int(syscall.SIGTERM) {
		t.Errorf("Signal() = (%d, %v), want (%d, true)", sig, ok, int(syscall.SIGTERM))
	}
}

func TestTerminate_EscalatesToKill(t *testing.T) {
	opts := quiet(false)
	opts.GracePeriod = 200 * time.Millisecond

	c, err := Start([]string{"sh", "-c", "trap '' TERM; exec sleep 30"}, opts)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	if err := c.Terminate(false); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < opts.GracePeriod {
		t.Errorf("Terminate took %v, want at least the %v grace period", elapsed, opts.GracePeriod)
	}
	if elapsed >= GracePeriod {
		t.Errorf("Terminate took %v, want the configured grace period, not %v", elapsed, GracePeriod)
	}

	e, err := c.Wait()
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if sig, ok := e.Signal(); !ok || sig != int(syscall.SIGKILL) {
		t.Errorf("Signal() = (%d, %v), want (%d, true)", sig, ok, int(syscall.SIGKILL))
	}
}

func TestOptionsDefaults(t *testing.T) {
	tests := []struct {
		name  string
		grace time.Duration
		want  time.Duration
	}{
		{"unset", 0, GracePeriod},
		{"negative", -time.Second, GracePeriod},
		{"configured", 500 * time.Millisecond, 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Options{GracePeriod: tt.grace}.withDefaults()
			if got.GracePeriod != tt.want {
				t.Errorf("GracePeriod = %v, want %v", got.GracePeriod, tt.want)
			}
			if got.Stdin == nil || got.Stdout == nil || got.Stderr == nil {
				t.Error("withDefaults() left a nil stream")
			}
		})
	}
}

func TestTerminate_Exited(t *testing.T) {
	c, err := Start([]string{"true"}, quiet(false))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := c.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if err := c.Terminate(false); err != nil {
		t.Errorf("Terminate() on exited child error = %v", err)
	}
}

func TestSignalName(t *testing.T) {
	if got := SignalName(int(syscall.SIGTERM)); got != "SIGTERM" {
		t.Errorf("SignalName(15) = %q, want SIGTERM", got)
	}
	if got := SignalName(200); !strings.Contains(got, "200") {
		t.Errorf("SignalName(200) = %q, want it to mention the number", got)
	}
}
