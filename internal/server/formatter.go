package server

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/smazurov/taskmaster/internal/monitor"
	"github.com/smazurov/taskmaster/internal/state"
	"github.com/smazurov/taskmaster/internal/task"
)

// Formatter turns replies into chunks written to a request's reply channel.
type Formatter interface {
	SendTask(reply chan<- string, id string, t task.Task) error
	SendTasks(reply chan<- string, entries []state.Entry) error
	SendStatus(reply chan<- string, id string, status monitor.Status) error
	SendError(reply chan<- string, err error) error
}

// Reply formats accepted by --format.
const (
	FormatHuman = "human"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// NewFormatter returns the formatter registered under name.
func NewFormatter(name string) (Formatter, error) {
	switch name {
	case "", FormatHuman:
		return Human{}, nil
	case FormatJSON:
		return structured{marshal: marshalJSON}, nil
	case FormatYAML:
		return structured{marshal: yaml.Marshal}, nil
	default:
		return nil, fmt.Errorf("unknown message format %q", name)
	}
}

// Human writes plain text meant for a terminal.
type Human struct{}

func (Human) SendTasks(reply chan<- string, entries []state.Entry) error {
	reply <- "Available jobs:\n"
	for _, e := range entries {
		reply <- "    - " + e.ID + "\n"
	}
	return nil
}

func (Human) SendStatus(reply chan<- string, id string, status monitor.Status) error {
	reply <- fmt.Sprintf("status of %s: %s\n", id, status)
	return nil
}

func (Human) SendTask(reply chan<- string, id string, t task.Task) error {
	reply <- fmt.Sprintf("Info %s:\n", id)
	reply <- describeTask(t)
	return nil
}

func (Human) SendError(reply chan<- string, err error) error {
	reply <- err.Error() + "\n"
	return nil
}

// describeTask renders one "key: value" line per field.
func describeTask(t task.Task) string {
	var b strings.Builder
	line := func(key, value string) {
		fmt.Fprintf(&b, "    %s: %s\n", key, value)
	}

	codes := make([]string, len(t.ExitCodes))
	for i, c := range t.ExitCodes {
		codes[i] = strconv.Itoa(c)
	}
	env := make([]string, 0, len(t.Env))
	for _, k := range slices.Sorted(maps.Keys(t.Env)) {
		env = append(env, k+"="+t.Env[k])
	}

	line("cmd", t.Cmd)
	line("autostart", strconv.FormatBool(t.Autostart))
	line("numprocess", strconv.FormatUint(uint64(t.NumProcess), 10))
	line("umask", fmt.Sprintf("%03o", t.Umask))
	line("workingdir", t.WorkingDir)
	line("stopsignal", t.StopSignal.Name())
	line("stopdelay", strconv.FormatUint(uint64(t.StopDelay), 10))
	line("stdout", t.Stdout)
	line("stderr", t.Stderr)
	line("retry", strconv.FormatUint(uint64(t.Retry), 10))
	line("successdelay", strconv.FormatUint(uint64(t.SuccessDelay), 10))
	line("exitcodes", "["+strings.Join(codes, ", ")+"]")
	line("restart", string(t.Restart))
	line("env", strings.Join(env, ", "))
	if t.UID != nil {
		line("uid", strconv.FormatUint(uint64(*t.UID), 10))
	}
	if t.GID != nil {
		line("gid", strconv.FormatUint(uint64(*t.GID), 10))
	}
	return b.String()
}

// Structured replies are tagged objects shared by the JSON and YAML formats.
type (
	errorReply struct {
		Type    string `json:"type" yaml:"type"`
		Message string `json:"message" yaml:"message"`
	}
	statusReply struct {
		Type   string         `json:"type" yaml:"type"`
		TaskID string         `json:"taskid" yaml:"taskid"`
		Status monitor.Status `json:"status" yaml:"status"`
	}
	tasksReply struct {
		Type  string               `json:"type" yaml:"type"`
		Tasks map[string]task.Task `json:"tasks" yaml:"tasks"`
	}
	taskReply struct {
		Type   string    `json:"type" yaml:"type"`
		TaskID string    `json:"taskid" yaml:"taskid"`
		Task   task.Task `json:"task" yaml:"task"`
	}
)

type structured struct {
	marshal func(any) ([]byte, error)
}

func (s structured) send(reply chan<- string, v any) error {
	data, err := s.marshal(v)
	if err != nil {
		return fmt.Errorf("encode reply: %w", err)
	}
	reply <- string(data)
	return nil
}

func (s structured) SendTasks(reply chan<- string, entries []state.Entry) error {
	tasks := make(map[string]task.Task, len(entries))
	for _, e := range entries {
		tasks[e.ID] = e.Task
	}
	return s.send(reply, tasksReply{Type: "tasks", Tasks: tasks})
}

func (s structured) SendStatus(reply chan<- string, id string, status monitor.Status) error {
	return s.send(reply, statusReply{Type: "status", TaskID: id, Status: status})
}

func (s structured) SendTask(reply chan<- string, id string, t task.Task) error {
	return s.send(reply, taskReply{Type: "task", TaskID: id, Task: t})
}

func (s structured) SendError(reply chan<- string, err error) error {
	return s.send(reply, errorReply{Type: "error", Message: err.Error()})
}

func marshalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
