package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/smazurov/taskmaster/internal/logging"
	"github.com/smazurov/taskmaster/internal/task"
)

// ErrEmptyCommand is returned when a task has nothing to execute.
var ErrEmptyCommand = errors.New("empty command")

// spawnMu serializes Start calls because the umask is process-wide.
var spawnMu sync.Mutex

// Child is a handle on one spawned OS process.
type Child struct {
	cmd    *exec.Cmd
	pid    int
	done   chan struct{}
	status ExitStatus
	logger logging.Logger
}

// Spawn starts t as child number childID. The {.Id} and {.Time} placeholders
// of the output paths are replaced with childID and now.Unix().
func Spawn(t task.Task, childID uint64, now time.Time, logger logging.Logger) (*Child, error) {
	if strings.TrimSpace(t.Cmd) == "" {
		return nil, ErrEmptyCommand
	}
	args, err := t.Argv()
	if err != nil {
		return nil, err
	}

	stdout, err := openOutput(task.RenderPath(t.Stdout, childID, now.Unix()))
	if err != nil {
		return nil, err
	}
	defer stdout.Close()

	stderr, err := openOutput(task.RenderPath(t.Stderr, childID, now.Unix()))
	if err != nil {
		return nil, err
	}
	defer stderr.Close()

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = t.WorkingDir
	cmd.Env = t.Environ()
	cmd.Stdin = nil
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if cred := credential(t); cred != nil {
		cmd.SysProcAttr.Credential = cred
	}

	if err := startWithUmask(cmd, t.Umask); err != nil {
		logger.Error("Failed to start process", "error", err, "command", t.Cmd)
		return nil, fmt.Errorf("failed to start %q: %w", t.Cmd, err)
	}

	c := &Child{
		cmd:    cmd,
		pid:    cmd.Process.Pid,
		done:   make(chan struct{}),
		logger: logger,
	}
	logger.Debug("Process started", "pid", c.pid, "child_id", childID, "command", t.Cmd)

	go func() {
		waitErr := cmd.Wait()
		c.status = exitStatusFromState(cmd.ProcessState, waitErr)
		close(c.done)
	}()

	return c, nil
}

func startWithUmask(cmd *exec.Cmd, umask uint32) error {
	spawnMu.Lock()
	defer spawnMu.Unlock()

	if umask != 0 {
		old := unix.Umask(int(umask))
		defer unix.Umask(old)
	}
	return cmd.Start()
}

func openOutput(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output %s: %w", path, err)
	}
	return f, nil
}

func credential(t task.Task) *syscall.Credential {
	if t.UID == nil && t.GID == nil {
		return nil
	}
	cred := &syscall.Credential{
		Uid:         uint32(os.Getuid()),
		Gid:         uint32(os.Getgid()),
		NoSetGroups: true,
	}
	if t.UID != nil {
		cred.Uid = *t.UID
	}
	if t.GID != nil {
		cred.Gid = *t.GID
	}
	return cred
}

// Pid returns the OS process id.
func (c *Child) Pid() int {
	return c.pid
}

// TryWait reports the exit status if the child has exited. It never blocks.
func (c *Child) TryWait() (ExitStatus, bool) {
	select {
	case <-c.done:
		return c.status, true
	default:
		return ExitStatus{}, false
	}
}

// Signal sends sig to the child's process group.
func (c *Child) Signal(sig syscall.Signal) error {
	if _, exited := c.TryWait(); exited {
		return nil
	}
	err := syscall.Kill(-c.pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		// Group already gone; fall back to the leader in case it changed group.
		err = c.cmd.Process.Signal(sig)
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
	}
	if err != nil {
		return fmt.Errorf("failed to send %s to pid %d: %w", sig, c.pid, err)
	}
	return nil
}

// Kill sends SIGKILL to the child's process group.
func (c *Child) Kill() error {
	return c.Signal(syscall.SIGKILL)
}

// Wait blocks until the child exits or timeout elapses.
func (c *Child) Wait(timeout time.Duration) (ExitStatus, bool) {
	select {
	case <-c.done:
		return c.status, true
	case <-time.After(timeout):
		c.logger.Error("Process did not exit in time", "pid", c.pid, "timeout", timeout)
		return ExitStatus{}, false
	}
}
