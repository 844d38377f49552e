// Package state holds the registry of Monitors keyed by task id and the
// background worker that cycles them.
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/smazurov/taskmaster/internal/events"
	"github.com/smazurov/taskmaster/internal/logging"
	"github.com/smazurov/taskmaster/internal/monitor"
	"github.com/smazurov/taskmaster/internal/task"
)

// DefaultCyclePeriod is the sleep between two cycle iterations.
const DefaultCyclePeriod = 500 * time.Millisecond

// ErrUnknownTask is returned for ids absent from the configuration.
var ErrUnknownTask = errors.New("unknown task")

// Options configures a Registry.
type Options struct {
	// Logger for registry operations. If nil, uses the "state" module logger.
	Logger *slog.Logger

	// Bus receives lifecycle events (optional).
	Bus *events.Bus

	// CyclePeriod overrides DefaultCyclePeriod.
	CyclePeriod time.Duration

	// Monitor is the template for every Monitor the registry creates.
	// Its Bus defaults to the registry's Bus.
	Monitor monitor.Options
}

// Entry pairs a task id with its current task.
type Entry struct {
	ID   string
	Task task.Task
}

// Registry maps task ids to Monitors. All access goes through one mutex,
// shared by the event loop and the cycle worker.
type Registry struct {
	mu       sync.Mutex
	monitors map[string]*monitor.Monitor

	logger      *slog.Logger
	bus         *events.Bus
	period      time.Duration
	monitorOpts monitor.Options

	cycling   bool
	cycleDone chan struct{}
}

// New creates an empty Registry.
func New(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("state")
	}
	period := opts.CyclePeriod
	if period <= 0 {
		period = DefaultCyclePeriod
	}
	monitorOpts := opts.Monitor
	if monitorOpts.Bus == nil {
		monitorOpts.Bus = opts.Bus
	}
	return &Registry{
		monitors:    make(map[string]*monitor.Monitor),
		logger:      logger,
		bus:         opts.Bus,
		period:      period,
		monitorOpts: monitorOpts,
	}
}

// Reload reconciles the registry with cfg. Existing Monitors receive the new
// task, new ids get a Monitor that starts immediately when autostart is set.
// Monitors whose id disappeared from cfg are kept untouched.
// It returns the ids whose Monitor was created or changed.
func (r *Registry) Reload(cfg map[string]task.Task) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var changed []string

	for _, id := range slices.Sorted(maps.Keys(cfg)) {
		t := cfg[id]
		if m, ok := r.monitors[id]; ok {
			if m.Reload(t, now) {
				changed = append(changed, id)
			}
			continue
		}

		m := monitor.New(id, t, r.monitorOpts)
		r.monitors[id] = m
		changed = append(changed, id)
		r.logger.Info("Task added", "task", id, "autostart", t.Autostart)
		if t.Autostart {
			m.Start(now)
		}
	}

	for id := range r.monitors {
		if _, ok := cfg[id]; !ok {
			r.logger.Warn("Task missing from configuration, keeping monitor", "task", id)
		}
	}

	r.ensureCycle()
	return changed
}

// Start starts the task's children.
func (r *Registry) Start(id string) (monitor.Status, error) {
	return r.apply(id, func(m *monitor.Monitor, now time.Time) {
		m.Start(now)
	})
}

// Stop stops the task's children.
func (r *Registry) Stop(id string) (monitor.Status, error) {
	return r.apply(id, func(m *monitor.Monitor, now time.Time) {
		m.Stop(now)
	})
}

// Restart stops the task's children and starts a fresh set.
func (r *Registry) Restart(id string) (monitor.Status, error) {
	return r.apply(id, func(m *monitor.Monitor, now time.Time) {
		m.Restart(now)
	})
}

func (r *Registry) apply(id string, fn func(*monitor.Monitor, time.Time)) (monitor.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.monitors[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	fn(m, time.Now())
	r.ensureCycle()
	return m.Status(), nil
}

// Status returns the task's current status.
func (r *Registry) Status(id string) (monitor.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.monitors[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return m.Status(), nil
}

// Info returns the task's current configuration.
func (r *Registry) Info(id string) (task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.monitors[id]
	if !ok {
		return task.Task{}, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return m.Task(), nil
}

// List returns every task sorted by id.
func (r *Registry) List() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]Entry, 0, len(r.monitors))
	for _, id := range slices.Sorted(maps.Keys(r.monitors)) {
		entries = append(entries, Entry{ID: id, Task: r.monitors[id].Task()})
	}
	return entries
}

// Snapshot returns the task's monitor snapshot.
func (r *Registry) Snapshot(id string) (monitor.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.monitors[id]
	if !ok {
		return monitor.Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return m.Snapshot(), nil
}

// Snapshots returns a snapshot of every Monitor sorted by id.
func (r *Registry) Snapshots() []monitor.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snaps := make([]monitor.Snapshot, 0, len(r.monitors))
	for _, id := range slices.Sorted(maps.Keys(r.monitors)) {
		snaps = append(snaps, r.monitors[id].Snapshot())
	}
	return snaps
}

// StopAll requests a stop on every Monitor that has running children.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, id := range slices.Sorted(maps.Keys(r.monitors)) {
		m := r.monitors[id]
		switch m.Status() {
		case monitor.StatusActive, monitor.StatusFailing:
			m.Stop(now)
		}
	}
	r.ensureCycle()
}

// Drain blocks until no Monitor is running or ctx is done.
func (r *Registry) Drain(ctx context.Context) error {
	for {
		r.mu.Lock()
		if !r.cycling {
			r.mu.Unlock()
			return nil
		}
		done := r.cycleDone
		r.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
