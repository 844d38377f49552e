package task

import "fmt"

// RestartPolicy decides whether a finished child is replaced.
type RestartPolicy string

// Restart policies
const (
	RestartNever   RestartPolicy = "never"
	RestartAlways  RestartPolicy = "always"
	RestartOnError RestartPolicy = "on-error"
)

// ParseRestartPolicy validates a policy name. An empty name means never.
func ParseRestartPolicy(s string) (RestartPolicy, error) {
	switch RestartPolicy(s) {
	case "", RestartNever:
		return RestartNever, nil
	case RestartAlways:
		return RestartAlways, nil
	case RestartOnError:
		return RestartOnError, nil
	default:
		return "", NewError(ErrKindInvalidConfig, fmt.Sprintf("unknown restart policy %q", s), nil)
	}
}

// ShouldRestart reports whether a child with the given outcome is restarted.
func (p RestartPolicy) ShouldRestart(failed bool) bool {
	switch p {
	case RestartAlways:
		return !failed
	case RestartOnError:
		return failed
	default:
		return false
	}
}
