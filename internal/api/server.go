// Package api serves the read-only admin HTTP API over a unix socket.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/taskmaster/internal/api/models"
	"github.com/smazurov/taskmaster/internal/events"
	"github.com/smazurov/taskmaster/internal/logging"
	"github.com/smazurov/taskmaster/internal/monitor"
	"github.com/smazurov/taskmaster/internal/socket"
	"github.com/smazurov/taskmaster/internal/version"
)

// TaskSource provides the monitor views served under /api/tasks.
type TaskSource interface {
	Snapshots() []monitor.Snapshot
	Snapshot(id string) (monitor.Snapshot, error)
}

// Options configures the admin API.
type Options struct {
	Tasks   TaskSource
	Bus     *events.Bus         // source for /api/events (optional)
	Metrics http.Handler        // served at /metrics when set
	Logs    *logging.RingBuffer // source for /api/logs (optional)
}

// Server is the admin API.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	socketPath string
	options    *Options
	logger     *slog.Logger
}

// NewServer builds the API and registers every route.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	config := huma.DefaultConfig("Taskmaster Admin API", version.Version)
	config.Info.Description = "Read-only view of supervised tasks"
	config.Servers = []*huma.Server{}

	api := humago.New(mux, config)
	api.UseMiddleware(HTTPLoggingMiddleware)

	s := &Server{
		api:     api,
		mux:     mux,
		options: opts,
		logger:  logging.GetLogger("api"),
	}

	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start binds the unix socket at path and serves in the background.
func (s *Server) Start(path string) error {
	l, err := socket.Listen(path)
	if err != nil {
		return err
	}
	s.socketPath = path
	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("Admin API listening", "socket", path)

	go s.serve(l)
	return nil
}

func (s *Server) serve(l net.Listener) {
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("Admin API stopped", "error", err)
	}
}

// Stop closes open connections and removes the socket file.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Stopping admin API")
	err := s.httpServer.Shutdown(ctx)
	if rmErr := socket.Remove(s.socketPath); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{Body: models.HealthData{Status: "ok"}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerTaskRoutes()
	s.registerLogRoutes()
	s.registerEventRoutes()
}
