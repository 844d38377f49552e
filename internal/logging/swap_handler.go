package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// swapHandler forwards to a sink that Initialize can replace after loggers
// have been handed out. Attrs and groups added through With are replayed
// onto whichever sink is current.
type swapHandler struct {
	sink   *atomic.Pointer[slog.Handler]
	derive []func(slog.Handler) slog.Handler
}

func newSwapHandler(h slog.Handler) *swapHandler {
	sink := &atomic.Pointer[slog.Handler]{}
	sink.Store(&h)
	return &swapHandler{sink: sink}
}

// swap installs h for this logger and everything derived from it.
func (s *swapHandler) swap(h slog.Handler) {
	s.sink.Store(&h)
}

func (s *swapHandler) current() slog.Handler {
	h := *s.sink.Load()
	for _, d := range s.derive {
		h = d(h)
	}
	return h
}

func (s *swapHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return (*s.sink.Load()).Enabled(ctx, level)
}

func (s *swapHandler) Handle(ctx context.Context, r slog.Record) error {
	return s.current().Handle(ctx, r)
}

func (s *swapHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return s
	}
	return s.with(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (s *swapHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return s
	}
	return s.with(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (s *swapHandler) with(d func(slog.Handler) slog.Handler) *swapHandler {
	derive := make([]func(slog.Handler) slog.Handler, len(s.derive), len(s.derive)+1)
	copy(derive, s.derive)
	return &swapHandler{sink: s.sink, derive: append(derive, d)}
}
