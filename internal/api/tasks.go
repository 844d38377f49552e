package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/taskmaster/internal/api/models"
	"github.com/smazurov/taskmaster/internal/monitor"
	"github.com/smazurov/taskmaster/internal/state"
)

func (s *Server) registerTaskRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/api/tasks",
		Summary:     "List tasks",
		Description: "Every configured task with its monitor counters, sorted by id",
		Tags:        []string{"tasks"},
	}, func(_ context.Context, _ *struct{}) (*models.TaskListResponse, error) {
		snaps := s.options.Tasks.Snapshots()
		body := make([]models.TaskData, 0, len(snaps))
		for _, snap := range snaps {
			body = append(body, toTaskData(snap))
		}
		return &models.TaskListResponse{Body: body}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/api/tasks/{id}",
		Summary:     "Get task",
		Tags:        []string{"tasks"},
		Errors:      []int{404},
	}, func(_ context.Context, input *models.TaskInput) (*models.TaskResponse, error) {
		snap, err := s.options.Tasks.Snapshot(input.ID)
		if errors.Is(err, state.ErrUnknownTask) {
			return nil, huma.Error404NotFound("unknown task " + input.ID)
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("snapshot failed", err)
		}
		return &models.TaskResponse{Body: toTaskData(snap)}, nil
	})
}

func toTaskData(snap monitor.Snapshot) models.TaskData {
	pids := snap.PIDs
	if pids == nil {
		pids = []int{}
	}
	return models.TaskData{
		ID:       snap.ID,
		Status:   snap.Status.String(),
		Running:  snap.Running,
		Stopping: snap.Stopping,
		Retries:  snap.RetryCount,
		Spawned:  snap.Spawned,
		PIDs:     pids,
	}
}
