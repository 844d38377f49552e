// Package process provides the child-process primitive used by monitors.
//
// Spawn starts one configured command with its output redirected to files,
// an explicit environment, its own process group, and optional uid, gid and
// umask. The returned Child is polled without blocking through TryWait;
// signals go to the child's whole process group so that shell wrappers and
// their descendants stop together.
//
// Example:
//
//	child, err := process.Spawn(t, 0, time.Now(), logger)
//	if err != nil {
//	    return err
//	}
//	_ = child.Signal(syscall.SIGTERM)
//	if _, ok := child.Wait(2 * time.Second); !ok {
//	    _ = child.Kill()
//	}
package process
