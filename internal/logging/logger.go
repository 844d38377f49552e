package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/lumberjack"
)

const defaultBufferSize = 1000

// LevelTrace is below debug and enabled by --verbose trace.
const LevelTrace = slog.LevelDebug - 4

// Rotation settings for the log file.
const (
	fileMaxSizeMB  = 10
	fileMaxBackups = 3
)

// Logger is a duck-typed interface satisfied by *slog.Logger.
// Use this interface instead of *slog.Logger to decouple from the concrete type.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

var (
	moduleLoggers   = make(map[string]*slog.Logger)
	moduleSinks     = make(map[string]*swapHandler)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	globalConfig    Config
	globalLevelVar  = &slog.LevelVar{}
	isInitialized   bool
	mutex           sync.RWMutex
	logBuffer       = NewRingBuffer(defaultBufferSize)
	logFile         io.WriteCloser
	startTime       = time.Now()
)

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	File    string            `toml:"file"`
	Modules map[string]string `toml:"modules"`
}

// Initialize sets up the logging system. When File is set, records go to a
// size-rotated file instead of stdout.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	if config.File != "" {
		logFile = &lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    fileMaxSizeMB,
			MaxBackups: fileMaxBackups,
		}
	}

	globalConfig = config
	isInitialized = true
	startTime = time.Now()

	globalLevel := parseLevel(config.Level)
	if globalLevel == nil {
		defaultLevel := slog.LevelInfo
		globalLevel = &defaultLevel
	}
	globalLevelVar.Set(*globalLevel)

	// Loggers handed out before Initialize stay valid and move to the new sink.
	for module, levelVar := range moduleLevelVars {
		levelVar.Set(moduleLevel(module, *globalLevel))
		moduleSinks[module].swap(moduleHandler(module, config.Format, levelVar))
	}

	slog.SetDefault(slog.New(createHandler(config.Format, globalLevelVar)))
}

// Close flushes and closes the log file, if any.
func Close() error {
	mutex.Lock()
	defer mutex.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// GetBuffer returns the log ring buffer for reading recent logs.
func GetBuffer() *RingBuffer {
	mutex.RLock()
	defer mutex.RUnlock()
	return logBuffer
}

// GetLogger returns a logger for the specified module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	if logger, exists := moduleLoggers[module]; exists {
		mutex.RUnlock()
		return logger
	}
	mutex.RUnlock()

	mutex.Lock()
	defer mutex.Unlock()

	if logger, exists := moduleLoggers[module]; exists {
		return logger
	}

	levelVar := &slog.LevelVar{}
	if isInitialized {
		globalLevel := slog.LevelInfo
		if parsed := parseLevel(globalConfig.Level); parsed != nil {
			globalLevel = *parsed
		}
		levelVar.Set(moduleLevel(module, globalLevel))
	} else {
		levelVar.Set(slog.LevelInfo)
	}

	format := "text"
	if isInitialized {
		format = globalConfig.Format
	}

	sink := newSwapHandler(moduleHandler(module, format, levelVar))
	logger := slog.New(sink)
	moduleLoggers[module] = logger
	moduleSinks[module] = sink
	moduleLevelVars[module] = levelVar
	return logger
}

func moduleHandler(module, format string, level slog.Leveler) slog.Handler {
	return createHandler(format, level).WithAttrs([]slog.Attr{slog.String("module", module)})
}

// moduleLevel resolves the module override, falling back to the global level.
func moduleLevel(module string, global slog.Level) slog.Level {
	if levelStr, exists := globalConfig.Modules[module]; exists {
		if parsed := parseLevel(levelStr); parsed != nil {
			return *parsed
		}
	}
	return global
}

// createHandler creates a slog handler with the specified format and level.
// Logs to stdout or the log file, journal (when available), and the ring buffer.
// Every record is tagged with the seconds elapsed since Initialize.
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceLevel}

	var out io.Writer
	switch {
	case logFile != nil:
		out = logFile
	case isStdoutAvailable():
		out = os.Stdout
	}

	var handlers []slog.Handler
	if out != nil {
		if format == "json" {
			handlers = append(handlers, slog.NewJSONHandler(out, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(out, opts))
		}
	}

	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}

	handlers = append(handlers, NewBufferHandler(logBuffer, level))

	var handler slog.Handler
	if len(handlers) == 1 {
		handler = handlers[0]
	} else {
		handler = NewMultiHandler(handlers...)
	}
	return NewElapsedHandler(handler, startTime)
}

// replaceLevel prints LevelTrace as TRACE instead of DEBUG-4.
func replaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}

// isStdoutAvailable checks if stdout is connected to a terminal, pipe, socket, or file.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	// Available if terminal, pipe, socket, or regular file (not /dev/null which is ModeDevice)
	return (mode&os.ModeCharDevice) != 0 || (mode&os.ModeNamedPipe) != 0 || (mode&os.ModeSocket) != 0 || mode.IsRegular()
}

// ValidLevel reports whether level is a recognized level name.
func ValidLevel(level string) bool {
	return parseLevel(level) != nil
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) *slog.Level {
	var l slog.Level
	switch strings.ToLower(level) {
	case "trace":
		l = LevelTrace
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil
	}
	return &l
}
