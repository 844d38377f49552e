package monitor

// Snapshot is a point-in-time view of a Monitor.
type Snapshot struct {
	ID         string `json:"id"`
	Status     Status `json:"status"`
	Running    int    `json:"running"`
	Stopping   int    `json:"stopping"`
	RetryCount uint   `json:"retries"`
	Spawned    uint64 `json:"spawned"`
	PIDs       []int  `json:"pids"`
}

// Snapshot captures the Monitor's counters and the pids of running children.
func (m *Monitor) Snapshot() Snapshot {
	pids := make([]int, 0, len(m.running))
	for _, r := range m.running {
		pids = append(pids, r.child.Pid())
	}
	return Snapshot{
		ID:         m.id,
		Status:     m.state,
		Running:    len(m.running),
		Stopping:   len(m.stopping),
		RetryCount: m.retryCount,
		Spawned:    m.spawnedChildren,
		PIDs:       pids,
	}
}
