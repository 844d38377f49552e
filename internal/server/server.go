// Package server runs the supervisor: a single event loop that owns the task
// registry and serves control requests from a unix socket.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/smazurov/taskmaster/internal/api"
	"github.com/smazurov/taskmaster/internal/config"
	"github.com/smazurov/taskmaster/internal/events"
	"github.com/smazurov/taskmaster/internal/logging"
	"github.com/smazurov/taskmaster/internal/metrics"
	"github.com/smazurov/taskmaster/internal/socket"
	"github.com/smazurov/taskmaster/internal/state"
	"github.com/smazurov/taskmaster/internal/task"
)

// DefaultSocketPath is where clients find the server.
const DefaultSocketPath = "/tmp/taskmaster.sock"

// drainMargin is added to the longest stop delay when waiting for children on quit.
const drainMargin = 2 * time.Second

// ErrSocketInUse is returned when another server owns the control socket.
var ErrSocketInUse = socket.ErrInUse

// Options configures a Server.
type Options struct {
	ConfigPath    string
	SocketPath    string
	AdminSocket   string        // admin API socket, disabled when empty
	Format        string        // human, json or yaml
	WatchInterval time.Duration // config poll interval
	CyclePeriod   time.Duration // registry cycle period
}

// Server is the supervisor process.
type Server struct {
	opts      Options
	logger    *slog.Logger
	formatter Formatter
	bus       *events.Bus
	metrics   *metrics.Metrics
	registry  *state.Registry
	initial   map[string]task.Task

	events chan Event
	done   chan struct{}
}

// New loads the configuration and prepares the server. Nothing is started
// until Run.
func New(opts Options) (*Server, error) {
	if opts.SocketPath == "" {
		opts.SocketPath = DefaultSocketPath
	}
	formatter, err := NewFormatter(opts.Format)
	if err != nil {
		return nil, err
	}
	tasks, err := config.LoadTasks(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	bus := events.New()
	m := metrics.New(nil)
	m.Attach(bus)

	return &Server{
		opts:      opts,
		logger:    logging.GetLogger("server"),
		formatter: formatter,
		bus:       bus,
		metrics:   m,
		registry:  state.New(state.Options{Bus: bus, CyclePeriod: opts.CyclePeriod}),
		initial:   tasks,
		events:    make(chan Event, 16),
		done:      make(chan struct{}),
	}, nil
}

// Registry exposes the task registry, mainly for tests.
func (s *Server) Registry() *state.Registry {
	return s.registry
}

// Bus returns the lifecycle event bus.
func (s *Server) Bus() *events.Bus {
	return s.bus
}

// Run binds the control socket, starts every autostart task and serves
// until a Quit request, a terminating signal or ctx cancellation. All tasks
// are stopped before Run returns.
func (s *Server) Run(ctx context.Context) error {
	listener := NewListener(s.opts.SocketPath, s.events, s.logger)
	if err := listener.Start(); err != nil {
		return err
	}
	defer listener.Stop()

	if s.opts.AdminSocket != "" {
		admin := api.NewServer(&api.Options{
			Tasks:   s.registry,
			Bus:     s.bus,
			Metrics: s.metrics.Handler(),
			Logs:    logging.GetBuffer(),
		})
		if err := admin.Start(s.opts.AdminSocket); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := admin.Stop(stopCtx); err != nil {
				s.logger.Warn("Admin API shutdown", "error", err)
			}
		}()
	}

	var watchOpts []config.WatcherOption
	if s.opts.WatchInterval > 0 {
		watchOpts = append(watchOpts, config.WithPollInterval(s.opts.WatchInterval))
	}
	watcher := config.NewWatcher(s.opts.ConfigPath, logging.GetLogger("config"), watchOpts...)
	watcher.OnChange(func() { s.enqueue(Reload{}) })
	if err := watcher.Start(); err != nil {
		return err
	}
	defer func() { _ = watcher.Stop() }()

	sigCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	watchSignals(sigCtx, s.events, s.logger)

	s.apply(s.initial)
	s.notify(daemon.SdNotifyReady)
	s.logger.Info("Supervisor ready", "tasks", len(s.initial), "socket", s.opts.SocketPath)

	s.loop(ctx)
	close(s.done)
	s.shutdown()
	return nil
}

// loop is the only place requests mutate the registry.
func (s *Server) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			if s.handle(ev) {
				return
			}
		}
	}
}

// enqueue posts ev unless the loop is gone.
func (s *Server) enqueue(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// handle processes one event and reports whether the loop should exit.
func (s *Server) handle(ev Event) bool {
	switch e := ev.(type) {
	case Reload:
		_ = s.reload()
	case Quit:
		return true
	case ClientRequest:
		return s.handleRequest(e)
	}
	return false
}

func (s *Server) handleRequest(req ClientRequest) bool {
	defer close(req.Reply)

	msg := req.Message
	if err := msg.Validate(); err != nil {
		s.send(s.formatter.SendError(req.Reply, err))
		return false
	}

	switch msg.Type {
	case MessageList:
		s.send(s.formatter.SendTasks(req.Reply, s.registry.List()))
	case MessageInfo:
		t, err := s.registry.Info(msg.ID)
		if err != nil {
			s.send(s.formatter.SendError(req.Reply, err))
			return false
		}
		s.send(s.formatter.SendTask(req.Reply, msg.ID, t))
	case MessageStatus, MessageStart, MessageStop, MessageRestart:
		op := s.registry.Status
		switch msg.Type {
		case MessageStart:
			op = s.registry.Start
		case MessageStop:
			op = s.registry.Stop
		case MessageRestart:
			op = s.registry.Restart
		}
		status, err := op(msg.ID)
		if err != nil {
			s.send(s.formatter.SendError(req.Reply, err))
			return false
		}
		s.send(s.formatter.SendStatus(req.Reply, msg.ID, status))
	case MessageReload:
		if err := s.reload(); err != nil {
			s.send(s.formatter.SendError(req.Reply, err))
			return false
		}
		s.send(s.formatter.SendTasks(req.Reply, s.registry.List()))
	case MessageQuit:
		s.logger.Info("Quit requested by client")
		return true
	}
	return false
}

func (s *Server) send(err error) {
	if err != nil {
		s.logger.Error("Failed to format reply", "error", err)
	}
}

// reload re-reads the configuration. A file that fails to load leaves the
// current tasks untouched.
func (s *Server) reload() error {
	s.notify(daemon.SdNotifyReloading)
	defer s.notify(daemon.SdNotifyReady)

	tasks, err := config.LoadTasks(s.opts.ConfigPath)
	if err != nil {
		s.logger.Error("Reload failed, keeping current configuration", "error", err)
		s.bus.Publish(events.ConfigReloadedEvent{Error: err.Error()})
		return err
	}
	s.apply(tasks)
	return nil
}

func (s *Server) apply(tasks map[string]task.Task) {
	changed := s.registry.Reload(tasks)
	s.logger.Info("Configuration applied", "tasks", len(tasks), "changed", changed)
	s.bus.Publish(events.ConfigReloadedEvent{Tasks: len(tasks)})
}

// shutdown stops every task and waits for the children to exit.
func (s *Server) shutdown() {
	s.notify(daemon.SdNotifyStopping)
	s.logger.Info("Stopping all tasks")

	var longest time.Duration
	for _, e := range s.registry.List() {
		longest = max(longest, e.Task.StopTimeout())
	}

	s.registry.StopAll()
	ctx, cancel := context.WithTimeout(context.Background(), longest+drainMargin)
	defer cancel()
	if err := s.registry.Drain(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("Children still running at exit")
		}
		return
	}
	s.logger.Info("All tasks stopped")
}

func (s *Server) notify(msg string) {
	if _, err := daemon.SdNotify(false, msg); err != nil {
		s.logger.Debug("sd_notify failed", "state", msg, "error", err)
	}
}
