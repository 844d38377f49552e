package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/smazurov/taskmaster/internal/task"
)

// Format is a task configuration file format.
type Format string

// Supported formats.
const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatFromPath selects the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yml", ".yaml":
		return FormatYAML, nil
	default:
		return "", task.NewError(task.ErrKindUnknownFormat, fmt.Sprintf("unsupported config extension %q", filepath.Ext(path)), nil)
	}
}

// rawTask mirrors the on-disk schema. Pointers distinguish unset fields.
type rawTask struct {
	Cmd          *string           `toml:"cmd" yaml:"cmd"`
	Autostart    *bool             `toml:"autostart" yaml:"autostart"`
	NumProcess   *uint             `toml:"numprocess" yaml:"numprocess"`
	Umask        any               `toml:"umask" yaml:"umask"`
	WorkingDir   *string           `toml:"workingdir" yaml:"workingdir"`
	StopSignal   *string           `toml:"stopsignal" yaml:"stopsignal"`
	StopDelay    *uint             `toml:"stopdelay" yaml:"stopdelay"`
	Stdout       *string           `toml:"stdout" yaml:"stdout"`
	Stderr       *string           `toml:"stderr" yaml:"stderr"`
	Retry        *uint             `toml:"retry" yaml:"retry"`
	SuccessDelay *uint             `toml:"successdelay" yaml:"successdelay"`
	ExitCodes    []int             `toml:"exitcodes" yaml:"exitcodes"`
	Restart      *string           `toml:"restart" yaml:"restart"`
	Env          map[string]string `toml:"env" yaml:"env"`
	UID          *uint32           `toml:"uid" yaml:"uid"`
	GID          *uint32           `toml:"gid" yaml:"gid"`
}

// LoadTasks reads and validates the task configuration at path.
func LoadTasks(path string) (map[string]task.Task, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, task.NewError(task.ErrKindReadFile, "unable to read file "+path, err)
	}
	return ParseTasks(data, format)
}

// ParseTasks decodes a task mapping and applies defaults.
func ParseTasks(data []byte, format Format) (map[string]task.Task, error) {
	raw := make(map[string]rawTask)

	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&raw); err != nil {
			return nil, task.NewError(task.ErrKindParseTOML, "invalid TOML", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, task.NewError(task.ErrKindParseYAML, "invalid YAML", err)
		}
	default:
		return nil, task.NewError(task.ErrKindUnknownFormat, fmt.Sprintf("unsupported format %q", format), nil)
	}

	tasks := make(map[string]task.Task, len(raw))
	for id, r := range raw {
		t, err := r.toTask()
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", id, err)
		}
		tasks[id] = t
	}
	return tasks, nil
}

func (r rawTask) toTask() (task.Task, error) {
	if r.Cmd == nil {
		return task.Task{}, task.NewError(task.ErrKindInvalidConfig, "cmd is required", nil)
	}
	t := task.New(*r.Cmd)

	if r.Autostart != nil {
		t.Autostart = *r.Autostart
	}
	if r.NumProcess != nil {
		t.NumProcess = *r.NumProcess
	}
	if r.Umask != nil {
		umask, err := parseUmask(r.Umask)
		if err != nil {
			return task.Task{}, err
		}
		t.Umask = umask
	}
	if r.WorkingDir != nil {
		t.WorkingDir = *r.WorkingDir
	}
	if r.StopSignal != nil {
		sig, err := task.ParseSignal(*r.StopSignal)
		if err != nil {
			return task.Task{}, err
		}
		t.StopSignal = sig
	}
	if r.StopDelay != nil {
		t.StopDelay = *r.StopDelay
	}
	if r.Stdout != nil {
		t.Stdout = *r.Stdout
	}
	if r.Stderr != nil {
		t.Stderr = *r.Stderr
	}
	if r.Retry != nil {
		t.Retry = *r.Retry
	}
	if r.SuccessDelay != nil {
		t.SuccessDelay = *r.SuccessDelay
	}
	if r.ExitCodes != nil {
		t.ExitCodes = r.ExitCodes
	}
	if r.Restart != nil {
		policy, err := task.ParseRestartPolicy(*r.Restart)
		if err != nil {
			return task.Task{}, err
		}
		t.Restart = policy
	}
	if r.Env != nil {
		t.Env = r.Env
	}
	t.UID = r.UID
	t.GID = r.GID

	if err := t.Validate(); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

// parseUmask accepts an integer or an octal string such as "022".
func parseUmask(v any) (uint32, error) {
	var n int64
	switch x := v.(type) {
	case int64:
		n = x
	case int:
		n = int64(x)
	case uint64:
		n = int64(x)
	case string:
		parsed, err := strconv.ParseUint(strings.TrimPrefix(x, "0o"), 8, 32)
		if err != nil {
			return 0, task.NewError(task.ErrKindInvalidConfig, fmt.Sprintf("invalid umask %q", x), err)
		}
		n = int64(parsed)
	default:
		return 0, task.NewError(task.ErrKindInvalidConfig, fmt.Sprintf("invalid umask %v", v), nil)
	}
	if n < 0 || n > 0o777 {
		return 0, task.NewError(task.ErrKindInvalidConfig, fmt.Sprintf("umask %#o out of range", n), nil)
	}
	return uint32(n), nil
}
