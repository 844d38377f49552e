package logging

import (
	"context"
	"log/slog"
	"time"
)

// ElapsedHandler adds an "elapsed" attribute holding whole seconds since start.
type ElapsedHandler struct {
	next  slog.Handler
	start time.Time
}

// NewElapsedHandler wraps next.
func NewElapsedHandler(next slog.Handler, start time.Time) *ElapsedHandler {
	return &ElapsedHandler{next: next, start: start}
}

// Enabled implements slog.Handler.
func (h *ElapsedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *ElapsedHandler) Handle(ctx context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	r = r.Clone()
	r.AddAttrs(slog.Int64("elapsed", int64(ts.Sub(h.start)/time.Second)))
	return h.next.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h *ElapsedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ElapsedHandler{next: h.next.WithAttrs(attrs), start: h.start}
}

// WithGroup implements slog.Handler.
func (h *ElapsedHandler) WithGroup(name string) slog.Handler {
	return &ElapsedHandler{next: h.next.WithGroup(name), start: h.start}
}
