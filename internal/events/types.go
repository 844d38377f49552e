package events

// Event type constants for kelindar/event.
const (
	TypeTaskStateChanged uint32 = iota + 1
	TypeChildSpawned
	TypeChildSpawnFailed
	TypeChildExited
	TypeChildKilled
	TypeTaskRestarted
	TypeConfigReloaded
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// TaskStateChangedEvent is published on every monitor status transition.
type TaskStateChangedEvent struct {
	TaskID string `json:"task_id"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// Type returns the event type identifier for TaskStateChangedEvent.
func (e TaskStateChangedEvent) Type() uint32 { return TypeTaskStateChanged }

// ChildSpawnedEvent is published after a child process started.
type ChildSpawnedEvent struct {
	TaskID  string `json:"task_id"`
	ChildID uint64 `json:"child_id"`
	PID     int    `json:"pid"`
}

// Type returns the event type identifier for ChildSpawnedEvent.
func (e ChildSpawnedEvent) Type() uint32 { return TypeChildSpawned }

// ChildSpawnFailedEvent is published when a child could not be started.
type ChildSpawnFailedEvent struct {
	TaskID string `json:"task_id"`
	Error  string `json:"error"`
}

// Type returns the event type identifier for ChildSpawnFailedEvent.
func (e ChildSpawnFailedEvent) Type() uint32 { return TypeChildSpawnFailed }

// ChildExitedEvent is published once a finished child has been classified.
// Requested is set for children that exited after a stop request.
type ChildExitedEvent struct {
	TaskID    string `json:"task_id"`
	PID       int    `json:"pid"`
	Outcome   string `json:"outcome"`
	ExitCode  int    `json:"exit_code"`
	Signaled  bool   `json:"signaled"`
	Requested bool   `json:"requested"`
}

// Type returns the event type identifier for ChildExitedEvent.
func (e ChildExitedEvent) Type() uint32 { return TypeChildExited }

// ChildKilledEvent is published when a stopping child outlived its stop delay.
type ChildKilledEvent struct {
	TaskID string `json:"task_id"`
	PID    int    `json:"pid"`
}

// Type returns the event type identifier for ChildKilledEvent.
func (e ChildKilledEvent) Type() uint32 { return TypeChildKilled }

// TaskRestartedEvent is published when the restart policy respawns a child.
type TaskRestartedEvent struct {
	TaskID     string `json:"task_id"`
	RetryCount uint   `json:"retry_count"`
}

// Type returns the event type identifier for TaskRestartedEvent.
func (e TaskRestartedEvent) Type() uint32 { return TypeTaskRestarted }

// ConfigReloadedEvent is published after each reload attempt.
type ConfigReloadedEvent struct {
	Tasks int    `json:"tasks"`
	Error string `json:"error,omitempty"`
}

// Type returns the event type identifier for ConfigReloadedEvent.
func (e ConfigReloadedEvent) Type() uint32 { return TypeConfigReloaded }
