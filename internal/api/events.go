package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/taskmaster/internal/events"
)

// registerEventRoutes exposes the lifecycle bus as Server-Sent Events.
func (s *Server) registerEventRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Lifecycle events",
		Description: "Task state changes, spawns, exits, kills and reloads as they happen",
		Tags:        []string{"events"},
	}, map[string]any{
		"task-state-changed": events.TaskStateChangedEvent{},
		"child-spawned":      events.ChildSpawnedEvent{},
		"child-spawn-failed": events.ChildSpawnFailedEvent{},
		"child-exited":       events.ChildExitedEvent{},
		"child-killed":       events.ChildKilledEvent{},
		"task-restarted":     events.TaskRestartedEvent{},
		"config-reloaded":    events.ConfigReloadedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		bus := s.options.Bus
		unsubscribers := []func(){
			events.Forward[events.TaskStateChangedEvent](bus, eventCh),
			events.Forward[events.ChildSpawnedEvent](bus, eventCh),
			events.Forward[events.ChildSpawnFailedEvent](bus, eventCh),
			events.Forward[events.ChildExitedEvent](bus, eventCh),
			events.Forward[events.ChildKilledEvent](bus, eventCh),
			events.Forward[events.TaskRestartedEvent](bus, eventCh),
			events.Forward[events.ConfigReloadedEvent](bus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
