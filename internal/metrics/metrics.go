// Package metrics exports supervisor activity as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smazurov/taskmaster/internal/events"
)

const namespace = "taskmaster"

// Metrics owns the supervisor collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	spawned  *prometheus.CounterVec
	exited   *prometheus.CounterVec
	killed   *prometheus.CounterVec
	restarts *prometheus.CounterVec
	state    *prometheus.GaugeVec
	reloads  *prometheus.CounterVec
}

// New registers the supervisor collectors on reg. A nil reg gets a fresh
// registry that also carries the Go runtime and process collectors.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		spawned: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "children_spawned_total",
			Help:      "Child processes started",
		}, []string{"task"}),
		exited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "children_exited_total",
			Help:      "Child processes reaped, by outcome",
		}, []string{"task", "outcome"}),
		killed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "children_killed_total",
			Help:      "Children killed after outliving their stop delay",
		}, []string{"task"}),
		restarts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_restarts_total",
			Help:      "Respawns triggered by the restart policy",
		}, []string{"task"}),
		state: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "task_state",
			Help:      "1 for the current status of each task",
		}, []string{"task", "state"}),
		reloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Configuration reload attempts",
		}, []string{"result"}),
	}
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Attach subscribes m to bus and returns a function that detaches it.
func (m *Metrics) Attach(bus *events.Bus) func() {
	unsubs := []func(){
		bus.Subscribe(func(e events.ChildSpawnedEvent) {
			m.spawned.WithLabelValues(e.TaskID).Inc()
		}),
		bus.Subscribe(func(e events.ChildExitedEvent) {
			m.exited.WithLabelValues(e.TaskID, e.Outcome).Inc()
		}),
		bus.Subscribe(func(e events.ChildKilledEvent) {
			m.killed.WithLabelValues(e.TaskID).Inc()
		}),
		bus.Subscribe(func(e events.TaskRestartedEvent) {
			m.restarts.WithLabelValues(e.TaskID).Inc()
		}),
		bus.Subscribe(func(e events.TaskStateChangedEvent) {
			if e.From != "" {
				m.state.WithLabelValues(e.TaskID, e.From).Set(0)
			}
			m.state.WithLabelValues(e.TaskID, e.To).Set(1)
		}),
		bus.Subscribe(func(e events.ConfigReloadedEvent) {
			result := "success"
			if e.Error != "" {
				result = "failure"
			}
			m.reloads.WithLabelValues(result).Inc()
		}),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
