package state

import "time"

// ensureCycle starts the cycle worker if a Monitor needs it. Callers hold r.mu.
func (r *Registry) ensureCycle() {
	if r.cycling || !r.anyRunning() {
		return
	}
	r.cycling = true
	r.cycleDone = make(chan struct{})
	r.logger.Debug("Cycle worker started")
	go r.cycleLoop(r.cycleDone)
}

func (r *Registry) anyRunning() bool {
	for _, m := range r.monitors {
		if m.IsRunning() {
			return true
		}
	}
	return false
}

// cycleLoop runs until no Monitor reports running.
func (r *Registry) cycleLoop(done chan struct{}) {
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	for range ticker.C {
		if !r.cycleOnce() {
			close(done)
			return
		}
	}
}

// cycleOnce cycles every running Monitor and reports whether any still runs.
// When none does, the worker is marked stopped before the lock is released.
func (r *Registry) cycleOnce() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, m := range r.monitors {
		if m.IsRunning() {
			m.Cycle(now)
		}
	}

	if r.anyRunning() {
		return true
	}
	r.cycling = false
	r.logger.Debug("Cycle worker stopped")
	return false
}
