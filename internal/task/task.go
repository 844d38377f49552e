package task

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"syscall"
	"time"
)

// Defaults applied to fields missing from configuration.
const (
	DefaultNumProcess = 1
	DefaultWorkingDir = "."
	DefaultStopSignal = Signal(syscall.SIGTERM)
	DefaultStopDelay  = 2
	DefaultOutput     = "/dev/null"
)

// Task describes one supervised job. Values are treated as immutable once loaded.
type Task struct {
	Cmd          string            `json:"cmd" yaml:"cmd"`
	Autostart    bool              `json:"autostart" yaml:"autostart"`
	NumProcess   uint              `json:"numprocess" yaml:"numprocess"`
	Umask        uint32            `json:"umask" yaml:"umask"`
	WorkingDir   string            `json:"workingdir" yaml:"workingdir"`
	StopSignal   Signal            `json:"stopsignal" yaml:"stopsignal"`
	StopDelay    uint              `json:"stopdelay" yaml:"stopdelay"`
	Stdout       string            `json:"stdout" yaml:"stdout"`
	Stderr       string            `json:"stderr" yaml:"stderr"`
	Retry        uint              `json:"retry" yaml:"retry"`
	SuccessDelay uint              `json:"successdelay" yaml:"successdelay"`
	ExitCodes    []int             `json:"exitcodes" yaml:"exitcodes"`
	Restart      RestartPolicy     `json:"restart" yaml:"restart"`
	Env          map[string]string `json:"env" yaml:"env"`
	UID          *uint32           `json:"uid,omitempty" yaml:"uid,omitempty"`
	GID          *uint32           `json:"gid,omitempty" yaml:"gid,omitempty"`
}

// New returns a Task for cmd with every other field at its default.
func New(cmd string) Task {
	return Task{
		Cmd:        cmd,
		NumProcess: DefaultNumProcess,
		WorkingDir: DefaultWorkingDir,
		StopSignal: DefaultStopSignal,
		StopDelay:  DefaultStopDelay,
		Stdout:     DefaultOutput,
		Stderr:     DefaultOutput,
		ExitCodes:  []int{0},
		Restart:    RestartNever,
		Env:        map[string]string{},
	}
}

// Argv splits Cmd into the executable and its arguments.
func (t Task) Argv() ([]string, error) {
	args, err := SplitCommand(t.Cmd)
	if err != nil {
		return nil, NewError(ErrKindInvalidCommand, t.Cmd, err)
	}
	if len(args) == 0 {
		return nil, NewError(ErrKindInvalidCommand, "empty command", nil)
	}
	return args, nil
}

// Validate checks the fields that can't be enforced by the decoder.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Cmd) == "" {
		return NewError(ErrKindInvalidConfig, "cmd is required", nil)
	}
	if _, err := t.Argv(); err != nil {
		return err
	}
	if _, err := ParseRestartPolicy(string(t.Restart)); err != nil {
		return err
	}
	if t.StopSignal <= 0 {
		return NewError(ErrKindSignal, "stopsignal is not set", nil)
	}
	if t.Umask > 0o777 {
		return NewError(ErrKindInvalidConfig, fmt.Sprintf("umask %#o out of range", t.Umask), nil)
	}
	return nil
}

// Equal reports structural equality over every field.
func (t Task) Equal(o Task) bool {
	return t.Cmd == o.Cmd &&
		t.Autostart == o.Autostart &&
		t.NumProcess == o.NumProcess &&
		t.Umask == o.Umask &&
		t.WorkingDir == o.WorkingDir &&
		t.StopSignal == o.StopSignal &&
		t.StopDelay == o.StopDelay &&
		t.Stdout == o.Stdout &&
		t.Stderr == o.Stderr &&
		t.Retry == o.Retry &&
		t.SuccessDelay == o.SuccessDelay &&
		slices.Equal(t.ExitCodes, o.ExitCodes) &&
		t.Restart == o.Restart &&
		maps.Equal(t.Env, o.Env) &&
		equalID(t.UID, o.UID) &&
		equalID(t.GID, o.GID)
}

func equalID(a, b *uint32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ExpectsExitCode reports whether code is listed in ExitCodes.
func (t Task) ExpectsExitCode(code int) bool {
	return slices.Contains(t.ExitCodes, code)
}

// StopTimeout is the grace period between the stop signal and SIGKILL.
func (t Task) StopTimeout() time.Duration {
	return time.Duration(t.StopDelay) * time.Second
}

// StartupTime is the minimum run time for an exit to count as a success.
func (t Task) StartupTime() time.Duration {
	return time.Duration(t.SuccessDelay) * time.Second
}

// Environ renders Env as sorted KEY=VALUE pairs.
func (t Task) Environ() []string {
	keys := slices.Sorted(maps.Keys(t.Env))
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+t.Env[k])
	}
	return env
}

// SplitCommand parses a command string into arguments.
// Handles quoted strings and basic escaping.
func SplitCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)
	quoted := false

	runes := []rune(strings.TrimSpace(command))

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			switch {
			case !inQuote:
				inQuote = true
				quoted = true
				quoteChar = r
			case r == quoteChar:
				inQuote = false
				quoteChar = 0
			default:
				current.WriteRune(r)
			}
		case r == ' ' && !inQuote:
			if current.Len() > 0 || quoted {
				args = append(args, current.String())
				current.Reset()
				quoted = false
			}
		case r == '\\' && i+1 < len(runes):
			i++
			current.WriteRune(runes[i])
		default:
			current.WriteRune(r)
		}
	}

	if inQuote {
		return nil, fmt.Errorf("unclosed quote in command")
	}
	if current.Len() > 0 || quoted {
		args = append(args, current.String())
	}

	return args, nil
}
