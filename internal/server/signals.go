package server

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// watchSignals turns SIGHUP into Reload and SIGINT, SIGTERM, SIGQUIT into
// Quit until ctx is done.
func watchSignals(ctx context.Context, events chan<- Event, logger *slog.Logger) {
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigCh)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigCh:
				logger.Info("Received signal", "signal", sig.String())
				var ev Event = Quit{}
				if sig == syscall.SIGHUP {
					ev = Reload{}
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}
