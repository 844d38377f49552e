package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// ExitStatus describes how a child terminated.
type ExitStatus struct {
	Code     int            // exit code, -1 when killed by a signal
	Signal   syscall.Signal // terminating signal when Signaled
	Signaled bool
}

// Success reports a zero exit code without a signal.
func (s ExitStatus) Success() bool {
	return !s.Signaled && s.Code == 0
}

func (s ExitStatus) String() string {
	if s.Signaled {
		return fmt.Sprintf("signal %s", s.Signal)
	}
	return fmt.Sprintf("exit code %d", s.Code)
}

// exitStatusFromState converts the result of cmd.Wait.
func exitStatusFromState(state *os.ProcessState, err error) ExitStatus {
	if state != nil {
		if ws, ok := state.Sys().(syscall.WaitStatus); ok {
			if ws.Signaled() {
				return ExitStatus{Code: -1, Signal: ws.Signal(), Signaled: true}
			}
			return ExitStatus{Code: ws.ExitStatus()}
		}
		return ExitStatus{Code: state.ExitCode()}
	}
	return ExitStatus{Code: exitCodeFromError(err)}
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}
