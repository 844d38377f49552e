package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/smazurov/taskmaster/internal/monitor"
	"github.com/smazurov/taskmaster/internal/socket"
)

const testConfig = `
[web]
cmd = "/bin/sleep 30"
autostart = true
stopdelay = 1

[idle]
cmd = "/bin/sleep 30"
stopdelay = 1
`

type testServer struct {
	srv    *Server
	socket string
	config string
	errCh  chan error
}

func startServer(t *testing.T, format string) *testServer {
	t.Helper()
	dir, err := os.MkdirTemp("", "tm")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	cfg := filepath.Join(dir, "tasks.toml")
	if err := os.WriteFile(cfg, []byte(testConfig), 0o644); err != nil {
		t.Fatal(err)
	}

	srv, err := New(Options{
		ConfigPath:    cfg,
		SocketPath:    filepath.Join(dir, "tm.sock"),
		Format:        format,
		WatchInterval: time.Hour,
		CyclePeriod:   50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ts := &testServer{srv: srv, socket: srv.opts.SocketPath, config: cfg, errCh: make(chan error, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { ts.errCh <- srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-ts.errCh:
		case <-time.After(10 * time.Second):
			t.Error("server did not stop")
		}
	})

	waitFor(t, func() bool {
		conn, err := socket.Dial(ts.socket, 100*time.Millisecond)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	})
	// Wait for the autostart task so tests begin from a known state.
	waitFor(t, func() bool {
		st, err := srv.Registry().Status("web")
		return err == nil && st == monitor.StatusActive
	})
	return ts
}

func (ts *testServer) request(t *testing.T, msg Message) string {
	t.Helper()
	conn, err := socket.Dial(ts.socket, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	data, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	return string(data)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestServer_Requests(t *testing.T) {
	ts := startServer(t, FormatHuman)

	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"list", Message{Type: MessageList}, "Available jobs:\n    - idle\n    - web\n"},
		{"status", Message{Type: MessageStatus, ID: "web"}, "status of web: active\n"},
		{"status idle", Message{Type: MessageStatus, ID: "idle"}, "status of idle: inactive\n"},
		{"unknown", Message{Type: MessageStatus, ID: "nope"}, "unknown task: nope\n"},
		{"missing id", Message{Type: MessageStart}, "Start: missing task id\n"},
		{"start", Message{Type: MessageStart, ID: "idle"}, "status of idle: active\n"},
		{"stop", Message{Type: MessageStop, ID: "idle"}, "status of idle: stopping\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ts.request(t, tt.msg); got != tt.want {
				t.Errorf("reply = %q, want %q", got, tt.want)
			}
		})
	}

	info := ts.request(t, Message{Type: MessageInfo, ID: "web"})
	if !strings.HasPrefix(info, "Info web:\n") || !strings.Contains(info, "cmd: /bin/sleep 30") {
		t.Errorf("info reply = %q", info)
	}
}

func TestServer_ReloadRequest(t *testing.T) {
	ts := startServer(t, FormatHuman)

	updated := strings.Replace(testConfig, "[idle]", "[extra]\ncmd = \"/bin/true\"\n\n[idle]", 1)
	if err := os.WriteFile(ts.config, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}
	got := ts.request(t, Message{Type: MessageReload})
	if got != "Available jobs:\n    - extra\n    - idle\n    - web\n" {
		t.Errorf("reload reply = %q", got)
	}

	if err := os.WriteFile(ts.config, []byte("[broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	got = ts.request(t, Message{Type: MessageReload})
	if !strings.Contains(got, "PARSE_TOML") {
		t.Errorf("bad reload reply = %q", got)
	}
	if _, err := ts.srv.Registry().Status("extra"); err != nil {
		t.Errorf("tasks should survive a failed reload: %v", err)
	}
}

func TestServer_JSONReplies(t *testing.T) {
	ts := startServer(t, FormatJSON)

	var reply map[string]string
	if err := json.Unmarshal([]byte(ts.request(t, Message{Type: MessageStatus, ID: "web"})), &reply); err != nil {
		t.Fatal(err)
	}
	if reply["type"] != "status" || reply["status"] != "active" {
		t.Errorf("reply = %v", reply)
	}

	if err := json.Unmarshal([]byte(ts.request(t, Message{Type: MessageInfo, ID: "nope"})), &reply); err != nil {
		t.Fatal(err)
	}
	if reply["type"] != "error" {
		t.Errorf("reply = %v", reply)
	}
}

func TestServer_Quit(t *testing.T) {
	ts := startServer(t, FormatHuman)

	if got := ts.request(t, Message{Type: MessageQuit}); got != "" {
		t.Errorf("quit reply = %q, want empty", got)
	}

	select {
	case err := <-ts.errCh:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
		ts.errCh <- err
	case <-time.After(10 * time.Second):
		t.Fatal("server did not exit after quit")
	}

	if st, _ := ts.srv.Registry().Status("web"); st != monitor.StatusStopped {
		t.Errorf("web status after quit = %s, want stopped", st)
	}
	if _, err := os.Stat(ts.socket); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("socket should be removed after quit, stat err = %v", err)
	}
}

func TestServer_Signals(t *testing.T) {
	ts := startServer(t, FormatHuman)

	updated := strings.Replace(testConfig, "[idle]", "[extra]\ncmd = \"/bin/true\"\n\n[idle]", 1)
	if err := os.WriteFile(ts.config, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := syscall.Kill(os.Getpid(), syscall.SIGHUP); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		return strings.Contains(ts.request(t, Message{Type: MessageList}), "    - extra\n")
	})

	if err := syscall.Kill(os.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-ts.errCh:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
		ts.errCh <- err
	case <-time.After(10 * time.Second):
		t.Fatal("server did not exit after SIGTERM")
	}

	if st, _ := ts.srv.Registry().Status("web"); st != monitor.StatusStopped {
		t.Errorf("web status after SIGTERM = %s, want stopped", st)
	}
	if _, err := os.Stat(ts.socket); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("socket should be removed after SIGTERM, stat err = %v", err)
	}
}

func TestServer_SocketInUse(t *testing.T) {
	ts := startServer(t, FormatHuman)

	other, err := New(Options{ConfigPath: ts.config, SocketPath: ts.socket})
	if err != nil {
		t.Fatal(err)
	}
	if err := other.Run(context.Background()); !errors.Is(err, ErrSocketInUse) {
		t.Errorf("Run() error = %v, want ErrSocketInUse", err)
	}
}

func TestNew_MissingConfig(t *testing.T) {
	if _, err := New(Options{ConfigPath: filepath.Join(t.TempDir(), "nope.toml")}); err == nil {
		t.Error("New() should fail on a missing config")
	}
}
