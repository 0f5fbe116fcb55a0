package api

import (
	"time"

	"github.com/heimdex/vidtopics/internal/jobs"
	"github.com/heimdex/vidtopics/internal/workpool"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// LegacyError is the error body of the original routes.
type LegacyError struct {
	Error string `json:"error"`
}

type ProjectsResponse struct {
	Projects []string `json:"projects"`
}

type UsersResponse struct {
	Users []string `json:"users"`
}

type MessageResponse struct {
	Response string `json:"response"`
}

type StatusMessage struct {
	Status string `json:"status"`
	File   string `json:"file,omitempty"`
	JobID  string `json:"job_id,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
	Backend string `json:"backend"`
}

type StatusResponse struct {
	State         string           `json:"state"`
	LastError     string           `json:"last_error,omitempty"`
	JobsRunning   int              `json:"jobs_running"`
	ActiveJobs    []JobResponse    `json:"active_jobs,omitempty"`
	Pools         []workpool.Stats `json:"pools"`
	ModelLoaded   bool             `json:"model_loaded"`
	ModelLoadedAt string           `json:"model_loaded_at,omitempty"`
	ModelServer   string           `json:"model_server,omitempty"` // "ok" or the health error
	Subscribers   int              `json:"subscribers"`
}

type JobResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Project   string `json:"project"`
	User      string `json:"user,omitempty"`
	Target    string `json:"target,omitempty"`
	Progress  int    `json:"progress"`
	Total     int    `json:"total"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Result    string `json:"result,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

func JobToResponse(j *jobs.Job) JobResponse {
	return JobResponse{
		ID:        j.ID,
		Type:      j.Type,
		Status:    j.Status,
		Project:   j.Project,
		User:      j.User,
		Target:    j.Target,
		Progress:  j.Progress,
		Total:     j.Total,
		Message:   j.Message,
		Error:     j.Error,
		Result:    j.Result,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.Format(time.RFC3339),
	}
}
