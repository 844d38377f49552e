// Package models holds the admin API request and response bodies.
package models

import "time"

// Health check models
type HealthData struct {
	Status string `json:"status" example:"ok" doc:"Service status"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Release version"`
	GitCommit string `json:"git_commit" example:"a1b2c3d" doc:"Git commit hash"`
	BuildDate string `json:"build_date" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go toolchain"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"OS and architecture"`
}

type VersionResponse struct {
	Body VersionData
}

// Task models
type TaskData struct {
	ID       string `json:"id" example:"web" doc:"Task identifier"`
	Status   string `json:"status" example:"active" doc:"Monitor status"`
	Running  int    `json:"running" example:"2" doc:"Children currently running"`
	Stopping int    `json:"stopping" example:"0" doc:"Children asked to stop and not yet exited"`
	Retries  uint   `json:"retries" example:"1" doc:"Restarts consumed since the last start"`
	Spawned  uint64 `json:"spawned" example:"3" doc:"Children spawned over the task lifetime"`
	PIDs     []int  `json:"pids" doc:"Process ids of running children"`
}

type TaskListResponse struct {
	Body []TaskData
}

type TaskInput struct {
	ID string `path:"id" example:"web" doc:"Task identifier"`
}

type TaskResponse struct {
	Body TaskData
}

// Log models
type LogsInput struct {
	Limit  int    `query:"limit" default:"100" minimum:"0" doc:"Newest entries to return, 0 for all"`
	Module string `query:"module" example:"monitor" doc:"Only entries from this module"`
}

type LogEntryData struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level" example:"info"`
	Module     string         `json:"module" example:"monitor"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

type LogsResponse struct {
	Body []LogEntryData
}
