package monitor

import (
	"log/slog"
	"syscall"
	"time"

	"github.com/smazurov/taskmaster/internal/events"
	"github.com/smazurov/taskmaster/internal/logging"
	"github.com/smazurov/taskmaster/internal/process"
	"github.com/smazurov/taskmaster/internal/task"
)

// Child is the process handle a Monitor supervises.
type Child interface {
	Pid() int
	TryWait() (process.ExitStatus, bool)
	Signal(sig syscall.Signal) error
	Kill() error
	Wait(timeout time.Duration) (process.ExitStatus, bool)
}

// SpawnFunc starts one child of t.
type SpawnFunc func(t task.Task, childID uint64, now time.Time, logger logging.Logger) (Child, error)

// Options configures a new Monitor.
type Options struct {
	// Logger for monitor operations. If nil, uses the "monitor" module logger.
	Logger *slog.Logger

	// Bus receives lifecycle events (optional).
	Bus *events.Bus

	// Spawn starts children. If nil, uses process.Spawn.
	Spawn SpawnFunc

	// KillWait bounds the wait after SIGKILL. Defaults to 5s.
	KillWait time.Duration
}

func spawnProcess(t task.Task, childID uint64, now time.Time, logger logging.Logger) (Child, error) {
	c, err := process.Spawn(t, childID, now, logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}
