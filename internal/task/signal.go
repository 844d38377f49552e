package task

import (
	"fmt"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// Signal is a POSIX signal referenced by name in configuration.
type Signal syscall.Signal

// ParseSignal resolves a signal name such as "TERM" or "SIGTERM".
// Matching is case-insensitive; unknown names are an error.
func ParseSignal(name string) (Signal, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if upper == "" {
		return 0, NewError(ErrKindSignal, "empty signal name", nil)
	}
	if !strings.HasPrefix(upper, "SIG") {
		upper = "SIG" + upper
	}
	sig := unix.SignalNum(upper)
	if sig == 0 {
		return 0, NewError(ErrKindSignal, fmt.Sprintf("unknown signal %q", name), nil)
	}
	return Signal(sig), nil
}

// Sys returns the signal as a syscall.Signal.
func (s Signal) Sys() syscall.Signal {
	return syscall.Signal(s)
}

// Name returns the signal name without the SIG prefix, e.g. "TERM".
func (s Signal) Name() string {
	name := unix.SignalName(syscall.Signal(s))
	if name == "" {
		return fmt.Sprintf("%d", int(s))
	}
	return strings.TrimPrefix(name, "SIG")
}

func (s Signal) String() string {
	return s.Name()
}

// MarshalText implements encoding.TextMarshaler.
func (s Signal) MarshalText() ([]byte, error) {
	return []byte(s.Name()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Signal) UnmarshalText(text []byte) error {
	sig, err := ParseSignal(string(text))
	if err != nil {
		return err
	}
	*s = sig
	return nil
}
