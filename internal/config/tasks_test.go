package config

import (
	"errors"
	"slices"
	"syscall"
	"testing"

	"github.com/smazurov/taskmaster/internal/task"
)

const fullTOML = `
[web]
cmd = "/bin/sleep 1"
autostart = true
numprocess = 2
umask = 0o022
workingdir = "/tmp"
stopsignal = "SIGQUIT"
stopdelay = 5
stdout = "/tmp/web-{.Id}.out"
stderr = "/tmp/web-{.Id}.err"
retry = 3
successdelay = 1
exitcodes = [0, 2]
restart = "on-error"
uid = 1000
gid = 1000

[web.env]
PORT = "8080"

[minimal]
cmd = "/bin/true"
`

const fullYAML = `
web:
  cmd: /bin/sleep 1
  autostart: true
  numprocess: 2
  umask: "022"
  workingdir: /tmp
  stopsignal: QUIT
  stopdelay: 5
  stdout: /tmp/web-{.Id}.out
  stderr: /tmp/web-{.Id}.err
  retry: 3
  successdelay: 1
  exitcodes: [0, 2]
  restart: on-error
  env:
    PORT: "8080"
  uid: 1000
  gid: 1000
minimal:
  cmd: /bin/true
`

func checkFullTasks(t *testing.T, tasks map[string]task.Task) {
	t.Helper()

	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}

	web := tasks["web"]
	if web.Cmd != "/bin/sleep 1" || !web.Autostart || web.NumProcess != 2 {
		t.Errorf("web basics wrong: %+v", web)
	}
	if web.Umask != 0o022 {
		t.Errorf("umask = %#o, want 022", web.Umask)
	}
	if web.StopSignal.Sys() != syscall.SIGQUIT || web.StopDelay != 5 {
		t.Errorf("stop settings wrong: %v %d", web.StopSignal, web.StopDelay)
	}
	if web.Restart != task.RestartOnError || web.Retry != 3 || web.SuccessDelay != 1 {
		t.Errorf("restart settings wrong: %+v", web)
	}
	if !slices.Equal(web.ExitCodes, []int{0, 2}) {
		t.Errorf("exitcodes = %v", web.ExitCodes)
	}
	if web.Env["PORT"] != "8080" {
		t.Errorf("env = %v", web.Env)
	}
	if web.UID == nil || *web.UID != 1000 || web.GID == nil || *web.GID != 1000 {
		t.Errorf("uid/gid not set")
	}

	if !tasks["minimal"].Equal(task.New("/bin/true")) {
		t.Errorf("minimal task should carry every default, got %+v", tasks["minimal"])
	}
}

func TestParseTasksTOML(t *testing.T) {
	tasks, err := ParseTasks([]byte(fullTOML), FormatTOML)
	if err != nil {
		t.Fatalf("ParseTasks failed: %v", err)
	}
	checkFullTasks(t, tasks)
}

func TestParseTasksYAML(t *testing.T) {
	tasks, err := ParseTasks([]byte(fullYAML), FormatYAML)
	if err != nil {
		t.Fatalf("ParseTasks failed: %v", err)
	}
	checkFullTasks(t, tasks)
}

func TestTOMLAndYAMLAgree(t *testing.T) {
	fromTOML, err := ParseTasks([]byte(fullTOML), FormatTOML)
	if err != nil {
		t.Fatal(err)
	}
	fromYAML, err := ParseTasks([]byte(fullYAML), FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	for id, tk := range fromTOML {
		if !tk.Equal(fromYAML[id]) {
			t.Errorf("task %s differs between formats", id)
		}
	}
}

func TestParseTasksEmpty(t *testing.T) {
	for _, format := range []Format{FormatTOML, FormatYAML} {
		tasks, err := ParseTasks(nil, format)
		if err != nil {
			t.Errorf("%s: empty config failed: %v", format, err)
		}
		if len(tasks) != 0 {
			t.Errorf("%s: got %d tasks from empty config", format, len(tasks))
		}
	}
}

func TestParseTasksErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
		kind   string
	}{
		{"missing cmd", "[web]\nautostart = true\n", FormatTOML, task.ErrKindInvalidConfig},
		{"unknown signal", "[web]\ncmd = \"/bin/true\"\nstopsignal = \"BOGUS\"\n", FormatTOML, task.ErrKindSignal},
		{"unknown restart", "web:\n  cmd: /bin/true\n  restart: sometimes\n", FormatYAML, task.ErrKindInvalidConfig},
		{"bad toml", "[web\ncmd=", FormatTOML, task.ErrKindParseTOML},
		{"bad yaml", "web: [unclosed", FormatYAML, task.ErrKindParseYAML},
		{"unknown field", "[web]\ncmd = \"/bin/true\"\ncommand = \"x\"\n", FormatTOML, task.ErrKindParseTOML},
		{"unbalanced quote", "[web]\ncmd = \"/bin/sh -c 'oops\"\n", FormatTOML, task.ErrKindInvalidCommand},
		{"bad umask", "web:\n  cmd: /bin/true\n  umask: \"999\"\n", FormatYAML, task.ErrKindInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTasks([]byte(tt.data), tt.format)
			if err == nil {
				t.Fatal("expected error")
			}
			var taskErr *task.Error
			if !errors.As(err, &taskErr) {
				t.Fatalf("error %v is not a *task.Error", err)
			}
			if taskErr.Kind != tt.kind {
				t.Errorf("kind = %s, want %s (%v)", taskErr.Kind, tt.kind, err)
			}
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"tasks.toml":     FormatTOML,
		"tasks.yml":      FormatYAML,
		"/etc/tm/t.YAML": FormatYAML,
	}
	for path, want := range tests {
		got, err := FormatFromPath(path)
		if err != nil || got != want {
			t.Errorf("FormatFromPath(%q) = %q, %v; want %q", path, got, err, want)
		}
	}
	if _, err := FormatFromPath("tasks.json"); err == nil {
		t.Error("expected error for .json")
	}
}

func TestLoadTasks(t *testing.T) {
	path := writeFile(t, "tasks.toml", fullTOML)
	tasks, err := LoadTasks(path)
	if err != nil {
		t.Fatalf("LoadTasks failed: %v", err)
	}
	checkFullTasks(t, tasks)

	_, err = LoadTasks(path + ".missing.toml")
	var taskErr *task.Error
	if !errors.As(err, &taskErr) || taskErr.Kind != task.ErrKindReadFile {
		t.Errorf("missing file error = %v, want READ_FILE", err)
	}
}
