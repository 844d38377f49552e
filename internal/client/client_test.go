package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/smazurov/taskmaster/internal/server"
)

// fakeServer answers every request with "<type> <id>\n" and records them.
type fakeServer struct {
	path string
	mu   sync.Mutex
	got  []server.Message
}

func startFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	dir, err := os.MkdirTemp("", "tm")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	fs := &fakeServer{path: filepath.Join(dir, "s.sock")}
	l, err := net.Listen("unix", fs.path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go fs.serve(conn)
		}
	}()
	return fs
}

func (fs *fakeServer) serve(conn net.Conn) {
	defer conn.Close()
	var msg server.Message
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		return
	}
	fs.mu.Lock()
	fs.got = append(fs.got, msg)
	fs.mu.Unlock()
	if msg.Type == server.MessageQuit {
		return
	}
	fmt.Fprintf(conn, "%s %s\n", msg.Type, msg.ID)
}

func (fs *fakeServer) requests() []server.Message {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]server.Message(nil), fs.got...)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    []server.Message
		local   int
		wantErr bool
	}{
		{line: "list", want: []server.Message{{Type: server.MessageList}}},
		{line: "reload", want: []server.Message{{Type: server.MessageReload}}},
		{line: "stop-server", want: []server.Message{{Type: server.MessageQuit}}},
		{line: "start web", want: []server.Message{{Type: server.MessageStart, ID: "web"}}},
		{line: "status  a b", want: []server.Message{
			{Type: server.MessageStatus, ID: "a"},
			{Type: server.MessageStatus, ID: "b"},
		}},
		{line: "history", local: localHistory},
		{line: "help", local: localHelp},
		{line: "exit", local: localExit},
		{line: "start", wantErr: true},
		{line: "list extra", wantErr: true},
		{line: "frobnicate", wantErr: true},
		{line: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, err := ParseCommand(tt.line)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCommand) {
					t.Errorf("error = %v, want ErrInvalidCommand", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if cmd.local != tt.local {
				t.Errorf("local = %d, want %d", cmd.local, tt.local)
			}
			if fmt.Sprint(cmd.Messages()) != fmt.Sprint(tt.want) {
				t.Errorf("messages = %v, want %v", cmd.Messages(), tt.want)
			}
		})
	}
}

func TestExec_OneRequestPerID(t *testing.T) {
	fs := startFakeServer(t)
	var out bytes.Buffer
	c := New(Options{SocketPath: fs.path, Out: &out, Err: &out})

	exit, err := c.Exec("restart web worker")
	if err != nil || exit {
		t.Fatalf("Exec() = %v, %v", exit, err)
	}
	if got := out.String(); got != "Restart web\nRestart worker\n" {
		t.Errorf("output = %q", got)
	}
	if n := len(fs.requests()); n != 2 {
		t.Errorf("server saw %d requests, want 2", n)
	}
}

func TestRun_Session(t *testing.T) {
	fs := startFakeServer(t)
	in := strings.NewReader("list\nbogus\nhistory\nexit\nlist\n")
	var out, errOut bytes.Buffer
	c := New(Options{SocketPath: fs.path, In: in, Out: &out, Err: &errOut})

	if err := c.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !strings.Contains(out.String(), Prompt+"List \n") {
		t.Errorf("missing list reply in %q", out.String())
	}
	if !strings.Contains(out.String(), "   1  list\n   2  bogus\n   3  history\n") {
		t.Errorf("history not numbered: %q", out.String())
	}
	if !strings.Contains(errOut.String(), "invalid command") {
		t.Errorf("stderr = %q", errOut.String())
	}
	if n := len(fs.requests()); n != 1 {
		t.Errorf("server saw %d requests, want 1 (nothing after exit)", n)
	}
}

func TestRun_EOF(t *testing.T) {
	fs := startFakeServer(t)
	var out bytes.Buffer
	c := New(Options{SocketPath: fs.path, In: strings.NewReader("status web"), Out: &out, Err: &out})

	if err := c.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "Status web\n") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRun_Unreachable(t *testing.T) {
	var out bytes.Buffer
	c := New(Options{
		SocketPath: filepath.Join(t.TempDir(), "none.sock"),
		In:         strings.NewReader("list\n"),
		Out:        &out,
		Err:        &out,
	})
	if err := c.Run(); !errors.Is(err, ErrServerUnreachable) {
		t.Errorf("Run() error = %v, want ErrServerUnreachable", err)
	}
}

func TestExec_StopServerEmptyReply(t *testing.T) {
	fs := startFakeServer(t)
	var out bytes.Buffer
	c := New(Options{SocketPath: fs.path, Out: &out, Err: &out})

	if _, err := c.Exec("stop-server"); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("output = %q, want empty", out.String())
	}
}
