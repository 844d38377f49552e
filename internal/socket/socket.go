// Package socket opens the unix stream sockets used by the control server
// and the admin API.
package socket

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// ErrInUse is returned when another process is accepting on the path.
var ErrInUse = errors.New("socket already in use")

// probeTimeout bounds the liveness check on an existing socket file.
const probeTimeout = 200 * time.Millisecond

// Listen binds a unix socket at path. A leftover socket file nobody answers
// on is removed first; a live one yields ErrInUse. Regular files are never
// removed.
func Listen(path string) (net.Listener, error) {
	if fi, err := os.Lstat(path); err == nil {
		if fi.Mode()&os.ModeSocket == 0 {
			return nil, fmt.Errorf("%s exists and is not a socket", path)
		}
		if conn, err := net.DialTimeout("unix", path, probeTimeout); err == nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%w: %s", ErrInUse, path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}

	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}
	// The socket file is removed explicitly by the owner on shutdown.
	if ul, ok := l.(*net.UnixListener); ok {
		ul.SetUnlinkOnClose(false)
	}
	return l, nil
}

// Dial connects to the unix socket at path.
func Dial(path string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", path, timeout)
}

// Remove deletes the socket file, ignoring a missing one.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
