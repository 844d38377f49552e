package monitor

import (
	"log/slog"
	"slices"
	"syscall"
	"time"

	"github.com/smazurov/taskmaster/internal/events"
	"github.com/smazurov/taskmaster/internal/logging"
	"github.com/smazurov/taskmaster/internal/process"
	"github.com/smazurov/taskmaster/internal/task"
)

const defaultKillWait = 5 * time.Second

type runningChild struct {
	child       Child
	childID     uint64
	startedAt   time.Time
	startupTime time.Duration
	stopSignal  syscall.Signal
	stopDelay   time.Duration
}

type stoppingChild struct {
	child       Child
	childID     uint64
	startedAt   time.Time
	startupTime time.Duration
	stoppedAt   time.Time
	timeout     time.Duration
	killed      bool
}

type finishedChild struct {
	child         Child
	status        process.ExitStatus
	executionTime time.Duration
	startupTime   time.Duration
	requested     bool
}

// stop sends the stop signal and stamps the stop time.
func (r runningChild) stop(now time.Time, logger *slog.Logger) stoppingChild {
	if err := r.child.Signal(r.stopSignal); err != nil {
		logger.Warn("Failed to send stop signal", "pid", r.child.Pid(), "signal", r.stopSignal.String(), "error", err)
	}
	return stoppingChild{
		child:       r.child,
		childID:     r.childID,
		startedAt:   r.startedAt,
		startupTime: r.startupTime,
		stoppedAt:   now,
		timeout:     r.stopDelay,
	}
}

// Monitor supervises the children of one task.
type Monitor struct {
	id              string
	task            task.Task
	state           Status
	retryCount      uint
	spawnedChildren uint64

	running  []runningChild
	stopping []stoppingChild
	finished []finishedChild

	logger   *slog.Logger
	bus      *events.Bus
	spawn    SpawnFunc
	killWait time.Duration
}

// New creates an inactive Monitor for t.
func New(id string, t task.Task, opts Options) *Monitor {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("monitor")
	}
	spawn := opts.Spawn
	if spawn == nil {
		spawn = spawnProcess
	}
	killWait := opts.KillWait
	if killWait <= 0 {
		killWait = defaultKillWait
	}
	return &Monitor{
		id:       id,
		task:     t,
		state:    StatusInactive,
		logger:   logger.With("task", id),
		bus:      opts.Bus,
		spawn:    spawn,
		killWait: killWait,
	}
}

// ID returns the task id.
func (m *Monitor) ID() string { return m.id }

// Task returns the current task.
func (m *Monitor) Task() task.Task { return m.task }

// Status returns the current status.
func (m *Monitor) Status() Status { return m.state }

// RetryCount returns the restarts consumed since the last explicit start.
func (m *Monitor) RetryCount() uint { return m.retryCount }

// Spawned returns the number of spawn attempts over the Monitor's lifetime.
func (m *Monitor) Spawned() uint64 { return m.spawnedChildren }

// HasFinished reports whether no child is running or stopping.
func (m *Monitor) HasFinished() bool {
	return len(m.running) == 0 && len(m.stopping) == 0
}

// IsRunning reports whether the Monitor still needs cycles.
func (m *Monitor) IsRunning() bool {
	if !m.HasFinished() || len(m.finished) > 0 {
		return true
	}
	switch m.state {
	case StatusActive, StatusFailing, StatusStopping, StatusReloading:
		return true
	default:
		return false
	}
}

// Start spawns NumProcess children and resets the retry counter.
// It is a no-op unless the Monitor is inactive, finished, failed or stopped.
func (m *Monitor) Start(now time.Time) bool {
	if !m.state.startable() {
		m.logger.Warn("Start ignored", "status", m.state.String())
		return false
	}
	m.startChildren(now)
	return true
}

// Stop signals every running child and moves it to the stopping cohort.
func (m *Monitor) Stop(now time.Time) bool {
	switch m.state {
	case StatusActive, StatusFailing:
	default:
		m.logger.Warn("Stop ignored", "status", m.state.String())
		return false
	}
	m.setState(StatusStopping)
	m.stopRunning(now)
	return true
}

// Restart stops the running children and spawns a fresh set. From any
// status, including stopping, the Monitor ends up active; children still in
// the stopping cohort finish their stop independently.
func (m *Monitor) Restart(now time.Time) {
	m.stopRunning(now)
	m.startChildren(now)
}

// Reload replaces the task. Equal tasks are ignored. Running children are
// stopped with their original stop settings; new children are spawned when
// the Monitor was running or the new task autostarts.
func (m *Monitor) Reload(t task.Task, now time.Time) bool {
	if m.task.Equal(t) {
		return false
	}

	wasRunning := m.state == StatusActive || m.state == StatusFailing
	m.setState(StatusReloading)
	m.stopRunning(now)
	m.task = t
	m.logger.Info("Task reloaded", "was_running", wasRunning, "autostart", t.Autostart)

	if wasRunning || t.Autostart {
		m.startChildren(now)
	} else {
		m.setState(StatusInactive)
	}
	return true
}

// Cycle polls the running and stopping cohorts, then drains finished children.
func (m *Monitor) Cycle(now time.Time) {
	m.pollRunning(now)
	m.pollStopping(now)
	m.drainFinished(now)

	if m.HasFinished() {
		m.commit()
	}
}

func (m *Monitor) pollRunning(now time.Time) {
	m.running = slices.DeleteFunc(m.running, func(r runningChild) bool {
		status, exited := r.child.TryWait()
		if !exited {
			return false
		}
		m.finished = append(m.finished, finishedChild{
			child:         r.child,
			status:        status,
			executionTime: now.Sub(r.startedAt),
			startupTime:   r.startupTime,
		})
		return true
	})
}

func (m *Monitor) pollStopping(now time.Time) {
	kept := m.stopping[:0]
	for _, s := range m.stopping {
		status, exited := s.child.TryWait()
		// SIGKILL is sent once; a child that survives it stays in the cohort.
		if !exited && !s.killed && now.Sub(s.stoppedAt) > s.timeout {
			m.logger.Warn("Stop delay elapsed, killing", "pid", s.child.Pid(), "timeout", s.timeout)
			if err := s.child.Kill(); err != nil {
				m.logger.Error("Failed to kill process", "pid", s.child.Pid(), "error", err)
			}
			m.bus.Publish(events.ChildKilledEvent{TaskID: m.id, PID: s.child.Pid()})
			s.killed = true
			status, exited = s.child.Wait(m.killWait)
		}
		if !exited {
			kept = append(kept, s)
			continue
		}
		m.finished = append(m.finished, finishedChild{
			child:         s.child,
			status:        status,
			executionTime: now.Sub(s.startedAt),
			startupTime:   s.startupTime,
			requested:     true,
		})
	}
	clear(m.stopping[len(kept):])
	m.stopping = kept
}

func (m *Monitor) drainFinished(now time.Time) {
	finished := m.finished
	m.finished = nil

	for _, f := range finished {
		outcome := m.classify(f)
		m.logger.Info("Process exited",
			"pid", f.child.Pid(),
			"status", f.status.String(),
			"outcome", string(outcome),
			"execution_time", f.executionTime)
		m.bus.Publish(events.ChildExitedEvent{
			TaskID:    m.id,
			PID:       f.child.Pid(),
			Outcome:   string(outcome),
			ExitCode:  f.status.Code,
			Signaled:  f.status.Signaled,
			Requested: f.requested,
		})

		if outcome == OutcomeRequested {
			continue
		}
		failed := outcome == OutcomeFailed
		if failed && m.state == StatusActive {
			m.setState(StatusFailing)
		}
		if m.shouldRestart(failed) {
			m.retryCount++
			m.logger.Info("Restarting process", "retry", m.retryCount, "max_retry", m.task.Retry)
			m.bus.Publish(events.TaskRestartedEvent{TaskID: m.id, RetryCount: m.retryCount})
			m.spawnChild(now)
		}
	}
}

// classify applies the exit-code and success-delay rules.
func (m *Monitor) classify(f finishedChild) Outcome {
	if f.requested {
		return OutcomeRequested
	}
	if f.status.Signaled || !m.task.ExpectsExitCode(f.status.Code) || f.executionTime < f.startupTime {
		return OutcomeFailed
	}
	return OutcomeFinished
}

func (m *Monitor) shouldRestart(failed bool) bool {
	if m.state == StatusStopping || m.state == StatusStopped {
		return false
	}
	return m.retryCount < m.task.Retry && m.task.Restart.ShouldRestart(failed)
}

// commit sets the terminal label once no child is left.
func (m *Monitor) commit() {
	switch m.state {
	case StatusStopping:
		m.setState(StatusStopped)
	case StatusFailing:
		m.setState(StatusFailed)
	case StatusActive:
		m.setState(StatusFinished)
	}
}

func (m *Monitor) startChildren(now time.Time) {
	m.retryCount = 0
	m.setState(StatusActive)
	for range m.task.NumProcess {
		m.spawnChild(now)
	}
}

func (m *Monitor) stopRunning(now time.Time) {
	for _, r := range m.running {
		m.stopping = append(m.stopping, r.stop(now, m.logger))
	}
	m.running = nil
}

// spawnChild starts one child. Failures mark the Monitor as failing.
func (m *Monitor) spawnChild(now time.Time) {
	childID := m.spawnedChildren
	m.spawnedChildren++

	child, err := m.spawn(m.task, childID, now, m.logger)
	if err != nil {
		m.logger.Error("Failed to spawn process", "child_id", childID, "error", err)
		m.bus.Publish(events.ChildSpawnFailedEvent{TaskID: m.id, Error: err.Error()})
		if m.state == StatusActive {
			m.setState(StatusFailing)
		}
		return
	}

	m.running = append(m.running, runningChild{
		child:       child,
		childID:     childID,
		startedAt:   now,
		startupTime: m.task.StartupTime(),
		stopSignal:  m.task.StopSignal.Sys(),
		stopDelay:   m.task.StopTimeout(),
	})
	m.logger.Info("Process spawned", "pid", child.Pid(), "child_id", childID)
	m.bus.Publish(events.ChildSpawnedEvent{TaskID: m.id, ChildID: childID, PID: child.Pid()})
}

func (m *Monitor) setState(s Status) {
	if m.state == s {
		return
	}
	from := m.state
	m.state = s
	m.logger.Debug("Status changed", "from", from.String(), "to", s.String())
	m.bus.Publish(events.TaskStateChangedEvent{TaskID: m.id, From: from.String(), To: s.String()})
}
