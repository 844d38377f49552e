package monitor

// Status is the state-machine label of a Monitor.
type Status string

// Monitor statuses.
const (
	StatusInactive  Status = "inactive"  // never started
	StatusActive    Status = "active"    // children running
	StatusReloading Status = "reloading" // applying a new task
	StatusFailing   Status = "failing"   // a child failed, others may run
	StatusFinished  Status = "finished"  // every child exited successfully
	StatusFailed    Status = "failed"    // at least one child failed
	StatusStopping  Status = "stopping"  // stop requested, waiting for exits
	StatusStopped   Status = "stopped"   // every stopped child exited
)

func (s Status) String() string {
	return string(s)
}

// startable reports whether Start may spawn from this status.
func (s Status) startable() bool {
	switch s {
	case StatusInactive, StatusFinished, StatusFailed, StatusStopped:
		return true
	default:
		return false
	}
}

// Outcome is the classification of a finished child.
type Outcome string

// Child outcomes.
const (
	OutcomeFinished  Outcome = "finished"
	OutcomeFailed    Outcome = "failed"
	OutcomeRequested Outcome = "requested"
)
