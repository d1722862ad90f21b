//go:build !unix

package proc

import (
	"errors"
	"os"
	"strconv"
)

// SignalsSupported reports whether children can be matched by terminating signal.
const SignalsSupported = false

func interrupt(*os.Process) error {
	return errors.New("proc: graceful termination not supported")
}

func exitSignal(*os.ProcessState) (int, bool) {
	return 0, false
}

// SignalName returns the signal number, since this platform has no names.
func SignalName(sig int) string {
	return strconv.Itoa(sig)
}
