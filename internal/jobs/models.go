// Package jobs records every captioning and topic-modeling request in the
// SQLite ledger and announces its lifecycle on the event hub.
package jobs

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("job not found")

const (
	TypeProcessVideo   = "process_video"
	TypeProcessReports = "process_reports"

	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Job struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Project   string    `json:"project"`
	User      string    `json:"user,omitempty"`
	Target    string    `json:"target,omitempty"` // video name for captioning jobs
	Progress  int       `json:"progress"`
	Total     int       `json:"total"`
	Message   string    `json:"message,omitempty"` // latest caption while running
	Error     string    `json:"error,omitempty"`
	Result    string    `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Finished reports whether the job reached a terminal status.
func (j *Job) Finished() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

type ListOptions struct {
	Project string
	Status  string
	Limit   int
}
