//go:build unix

package proc

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// SignalsSupported reports whether children can be matched by terminating signal.
const SignalsSupported = true

func interrupt(p *os.Process) error {
	return p.Signal(unix.SIGTERM)
}

func exitSignal(state *os.ProcessState) (int, bool) {
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return 0, false
	}
	return int(ws.Signal()), true
}

// SignalName returns the conventional name of sig, e.g. "SIGTERM".
func SignalName(sig int) string {
	if name := unix.SignalName(syscall.Signal(sig)); name != "" {
		return name
	}
	return syscall.Signal(sig).String()
}
