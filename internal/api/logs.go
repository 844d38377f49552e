package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/taskmaster/internal/api/models"
)

func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent logs",
		Description: "Newest entries from the in-memory log buffer, oldest first",
		Tags:        []string{"logs"},
	}, func(_ context.Context, input *models.LogsInput) (*models.LogsResponse, error) {
		body := []models.LogEntryData{}
		if s.options.Logs == nil {
			return &models.LogsResponse{Body: body}, nil
		}

		for _, e := range s.options.Logs.Tail(0) {
			if input.Module != "" && e.Module != input.Module {
				continue
			}
			body = append(body, models.LogEntryData{
				Timestamp:  e.Timestamp,
				Level:      e.Level,
				Module:     e.Module,
				Message:    e.Message,
				Attributes: e.Attributes,
			})
		}
		if input.Limit > 0 && len(body) > input.Limit {
			body = body[len(body)-input.Limit:]
		}
		return &models.LogsResponse{Body: body}, nil
	})
}
