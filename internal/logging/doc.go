// Package logging provides slog loggers with per-module levels.
//
// Records go to stdout, or to a size-rotated file when Config.File is set,
// plus the systemd journal when it is reachable and an in-memory ring buffer
// served by the admin API. Every record carries an "elapsed" attribute with
// the whole seconds since Initialize.
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		File:    "/var/log/taskmaster.log",
//		Modules: map[string]string{"monitor": "trace"},
//	})
//	logger := logging.GetLogger("monitor")
//
// Levels are trace, debug, info, warn and error. Loggers obtained before
// Initialize keep working and pick up the new levels.
//
// Journal output can be read with:
//
//	journalctl -t taskmaster MODULE=monitor
package logging
