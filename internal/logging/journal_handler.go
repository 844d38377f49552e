package logging

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// SyslogIdentifier tags every journal entry; filter with journalctl -t taskmaster.
const SyslogIdentifier = "taskmaster"

// JournalHandler sends records to the systemd journal. The module attribute
// becomes TASKMASTER_MODULE and the slog level, including trace, is kept in
// TASKMASTER_LEVEL since journald priorities stop at debug.
type JournalHandler struct {
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
	send   func(message string, priority journal.Priority, fields map[string]string) error
}

// NewJournalHandler creates a journal handler at the given level.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level, send: journal.Send}
}

func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	return h.send(r.Message, journalPriority(r.Level), h.fields(r))
}

// fields builds the journal fields for r, without PRIORITY and MESSAGE which
// journal.Send sets itself.
func (h *JournalHandler) fields(r slog.Record) map[string]string {
	fields := map[string]string{
		"SYSLOG_IDENTIFIER": SyslogIdentifier,
		"TASKMASTER_LEVEL":  levelToString(r.Level),
	}
	for _, a := range h.attrs {
		addJournalField(fields, nil, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addJournalField(fields, h.groups, a)
		return true
	})
	return fields
}

func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = slices.Clone(h.attrs)
	// Attrs added under a group keep that group's prefix.
	if len(h.groups) > 0 {
		attrs = []slog.Attr{{Key: strings.Join(h.groups, "_"), Value: slog.GroupValue(attrs...)}}
	}
	clone.attrs = append(clone.attrs, attrs...)
	return &clone
}

func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func journalPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

func addJournalField(fields map[string]string, groups []string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			groups = append(append([]string(nil), groups...), a.Key)
		}
		for _, ga := range a.Value.Group() {
			addJournalField(fields, groups, ga)
		}
		return
	}

	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, "_") + "_" + key
	}
	if key == "module" {
		key = "taskmaster_module"
	}
	fields[journalFieldName(key)] = journalValue(a.Value)
}

// journalFieldName maps an attribute key onto journald's field alphabet:
// uppercase letters, digits and underscores, not starting with an underscore
// or a digit.
func journalFieldName(key string) string {
	var b strings.Builder
	for _, c := range strings.ToUpper(key) {
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		} else {
			b.WriteByte('_')
		}
	}
	name := strings.TrimLeft(b.String(), "_")
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "F_" + name
	}
	return name
}

func journalValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	default:
		return v.String()
	}
}

// IsJournalAvailable reports whether the systemd journal socket is reachable.
func IsJournalAvailable() bool {
	return journal.Enabled()
}
