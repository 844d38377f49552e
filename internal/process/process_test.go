package process

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/smazurov/taskmaster/internal/task"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTask(cmd string) task.Task {
	t := task.New(cmd)
	t.Env = map[string]string{"PATH": "/usr/bin:/bin"}
	return t
}

// waitForExit polls TryWait until the child exits, failing the test on timeout.
func waitForExit(t *testing.T, c *Child, timeout time.Duration) ExitStatus {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if status, ok := c.TryWait(); ok {
			return status
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timeout waiting for process to exit")
	return ExitStatus{}
}

func TestSpawnExitCode(t *testing.T) {
	c, err := Spawn(testTask(`/bin/sh -c "exit 3"`), 0, time.Now(), testLogger())
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if c.Pid() <= 0 {
		t.Errorf("expected positive pid, got %d", c.Pid())
	}

	status := waitForExit(t, c, 2*time.Second)
	if status.Signaled || status.Code != 3 {
		t.Errorf("expected exit code 3, got %v", status)
	}
}

func TestTryWaitDoesNotBlock(t *testing.T) {
	c, err := Spawn(testTask("/bin/sleep 5"), 0, time.Now(), testLogger())
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	defer func() {
		_ = c.Kill()
		c.Wait(time.Second)
	}()

	start := time.Now()
	if _, ok := c.TryWait(); ok {
		t.Fatal("sleep should still be running")
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("TryWait blocked for %v", elapsed)
	}
}

func TestSignalTerminates(t *testing.T) {
	c, err := Spawn(testTask("/bin/sleep 60"), 0, time.Now(), testLogger())
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if err := c.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("Signal failed: %v", err)
	}

	status, ok := c.Wait(2 * time.Second)
	if !ok {
		t.Fatal("process did not exit after SIGTERM")
	}
	if !status.Signaled || status.Signal != syscall.SIGTERM {
		t.Errorf("expected termination by SIGTERM, got %v", status)
	}
}

func TestKillIgnoringChild(t *testing.T) {
	c, err := Spawn(testTask(`/bin/sh -c 'trap "" TERM; sleep 60'`), 0, time.Now(), testLogger())
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	_ = c.Signal(syscall.SIGTERM)
	if _, ok := c.Wait(300 * time.Millisecond); ok {
		t.Fatal("child should ignore SIGTERM")
	}

	if err := c.Kill(); err != nil {
		t.Fatalf("Kill failed: %v", err)
	}
	status, ok := c.Wait(2 * time.Second)
	if !ok {
		t.Fatal("process did not exit after SIGKILL")
	}
	if !status.Signaled || status.Signal != syscall.SIGKILL {
		t.Errorf("expected termination by SIGKILL, got %v", status)
	}
}

func TestSignalAfterExit(t *testing.T) {
	c, err := Spawn(testTask("/bin/true"), 0, time.Now(), testLogger())
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	waitForExit(t, c, 2*time.Second)

	if err := c.Signal(syscall.SIGTERM); err != nil {
		t.Errorf("signalling an exited child should be a no-op, got %v", err)
	}
}

func TestOutputTemplateAndEnv(t *testing.T) {
	dir := t.TempDir()
	tk := testTask(`/bin/sh -c 'echo "$GREETING"; echo oops >&2'`)
	tk.Env["GREETING"] = "hello"
	tk.Stdout = filepath.Join(dir, "out-{.Id}-{.Time}.log")
	tk.Stderr = filepath.Join(dir, "err-{.Id}.log")

	now := time.Unix(1700000000, 0)
	c, err := Spawn(tk, 4, now, testLogger())
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	waitForExit(t, c, 2*time.Second)

	out, err := os.ReadFile(filepath.Join(dir, "out-4-1700000000.log"))
	if err != nil {
		t.Fatalf("stdout file missing: %v", err)
	}
	if strings.TrimSpace(string(out)) != "hello" {
		t.Errorf("stdout = %q, want hello", out)
	}

	errOut, err := os.ReadFile(filepath.Join(dir, "err-4.log"))
	if err != nil {
		t.Fatalf("stderr file missing: %v", err)
	}
	if strings.TrimSpace(string(errOut)) != "oops" {
		t.Errorf("stderr = %q, want oops", errOut)
	}
}

func TestEnvironmentNotInherited(t *testing.T) {
	t.Setenv("TASKMASTER_PARENT_ONLY", "leak")

	dir := t.TempDir()
	tk := testTask(`/bin/sh -c 'echo "[$TASKMASTER_PARENT_ONLY]"'`)
	tk.Stdout = filepath.Join(dir, "out.log")

	c, err := Spawn(tk, 0, time.Now(), testLogger())
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	waitForExit(t, c, 2*time.Second)

	out, _ := os.ReadFile(tk.Stdout)
	if strings.TrimSpace(string(out)) != "[]" {
		t.Errorf("parent environment leaked into child: %q", out)
	}
}

func TestOutputTruncatedOnSpawn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.log")
	if err := os.WriteFile(path, []byte("stale content that is long\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tk := testTask("echo new")
	tk.Stdout = path
	c, err := Spawn(tk, 0, time.Now(), testLogger())
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	waitForExit(t, c, 2*time.Second)

	out, _ := os.ReadFile(path)
	if string(out) != "new\n" {
		t.Errorf("output not truncated: %q", out)
	}
}

func TestWorkingDirAndUmask(t *testing.T) {
	dir := t.TempDir()
	tk := testTask("touch created")
	tk.WorkingDir = dir
	tk.Umask = 0o077

	c, err := Spawn(tk, 0, time.Now(), testLogger())
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if status := waitForExit(t, c, 2*time.Second); !status.Success() {
		t.Fatalf("touch failed: %v", status)
	}

	info, err := os.Stat(filepath.Join(dir, "created"))
	if err != nil {
		t.Fatalf("file not created in working dir: %v", err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		t.Errorf("umask not applied, mode = %#o", perm)
	}
}

func TestSpawnFailures(t *testing.T) {
	if _, err := Spawn(testTask("   "), 0, time.Now(), testLogger()); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("expected ErrEmptyCommand, got %v", err)
	}

	if _, err := Spawn(testTask("/nonexistent/binary"), 0, time.Now(), testLogger()); err == nil {
		t.Error("expected error for missing executable")
	}

	tk := testTask("/bin/true")
	tk.Stdout = filepath.Join(t.TempDir(), "missing", "out.log")
	if _, err := Spawn(tk, 0, time.Now(), testLogger()); err == nil {
		t.Error("expected error for unwritable output path")
	}
}

func TestExitStatusString(t *testing.T) {
	if got := (ExitStatus{Code: 2}).String(); got != "exit code 2" {
		t.Errorf("String = %q", got)
	}
	if got := (ExitStatus{Code: -1, Signal: syscall.SIGKILL, Signaled: true}).String(); got != "signal killed" {
		t.Errorf("String = %q", got)
	}
	if !(ExitStatus{}).Success() {
		t.Error("zero status should be success")
	}
}
