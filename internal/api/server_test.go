package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/taskmaster/internal/api/models"
	"github.com/smazurov/taskmaster/internal/logging"
	"github.com/smazurov/taskmaster/internal/monitor"
	"github.com/smazurov/taskmaster/internal/state"
)

type fakeTasks struct {
	snaps []monitor.Snapshot
}

func (f *fakeTasks) Snapshots() []monitor.Snapshot { return f.snaps }

func (f *fakeTasks) Snapshot(id string) (monitor.Snapshot, error) {
	for _, s := range f.snaps {
		if s.ID == id {
			return s, nil
		}
	}
	return monitor.Snapshot{}, fmt.Errorf("%w: %s", state.ErrUnknownTask, id)
}

func newTestServer(opts *Options) *Server {
	if opts.Tasks == nil {
		opts.Tasks = &fakeTasks{snaps: []monitor.Snapshot{
			{ID: "cron", Status: monitor.StatusFinished, Spawned: 1},
			{ID: "web", Status: monitor.StatusActive, Running: 2, Spawned: 2, PIDs: []int{100, 101}},
		}}
	}
	return NewServer(opts)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := get(t, newTestServer(&Options{}), "/api/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body models.HealthData
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
}

func TestVersion(t *testing.T) {
	w := get(t, newTestServer(&Options{}), "/api/version")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"go_version"`) {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestListTasks(t *testing.T) {
	w := get(t, newTestServer(&Options{}), "/api/tasks")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var tasks []models.TaskData
	if err := json.Unmarshal(w.Body.Bytes(), &tasks); err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 || tasks[0].ID != "cron" || tasks[1].ID != "web" {
		t.Fatalf("tasks = %+v", tasks)
	}
	if tasks[1].Status != "active" || tasks[1].Running != 2 || len(tasks[1].PIDs) != 2 {
		t.Errorf("web = %+v", tasks[1])
	}
	if tasks[0].PIDs == nil {
		t.Error("pids should encode as an empty list")
	}
}

func TestGetTask(t *testing.T) {
	tests := []struct {
		path       string
		wantStatus int
		wantID     string
	}{
		{"/api/tasks/web", http.StatusOK, "web"},
		{"/api/tasks/missing", http.StatusNotFound, ""},
	}

	s := newTestServer(&Options{})
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(t, s, tt.path)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantID == "" {
				return
			}
			var data models.TaskData
			if err := json.Unmarshal(w.Body.Bytes(), &data); err != nil {
				t.Fatal(err)
			}
			if data.ID != tt.wantID {
				t.Errorf("id = %q, want %q", data.ID, tt.wantID)
			}
		})
	}
}

func TestLogs(t *testing.T) {
	rb := logging.NewRingBuffer(10)
	rb.Write(logging.LogEntry{Module: "monitor", Message: "one"})
	rb.Write(logging.LogEntry{Module: "server", Message: "two"})
	rb.Write(logging.LogEntry{Module: "monitor", Message: "three"})

	s := newTestServer(&Options{Logs: rb})

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"one", "two", "three"}},
		{"?module=monitor", []string{"one", "three"}},
		{"?limit=1", []string{"three"}},
		{"?module=server&limit=5", []string{"two"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := get(t, s, "/api/logs"+tt.query)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", w.Code, w.Body.String())
			}
			var entries []models.LogEntryData
			if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, e := range entries {
				got = append(got, e.Message)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("messages = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "taskmaster_up 1\n")
	})
	w := get(t, newTestServer(&Options{Metrics: metrics}), "/metrics")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "taskmaster_up") {
		t.Errorf("metrics route: %d %s", w.Code, w.Body.String())
	}
}

func TestStartStop_UnixSocket(t *testing.T) {
	dir, err := os.MkdirTemp("", "tm")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "admin.sock")

	s := newTestServer(&Options{})
	if err := s.Start(path); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	client := &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", path)
		},
	}}
	resp, err := client.Get("http://taskmaster/api/health")
	if err != nil {
		t.Fatalf("GET over socket: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("socket file should be removed, stat err = %v", err)
	}
}
