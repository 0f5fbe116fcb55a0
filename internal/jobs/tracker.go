package jobs

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/heimdex/vidtopics/internal/events"
	"github.com/heimdex/vidtopics/internal/logging"
)

type Publisher interface {
	Publish(e events.Event)
}

// Tracker wraps units of work in ledger rows.
type Tracker struct {
	repo   Repository
	pub    Publisher
	logger *slog.Logger
}

func NewTracker(repo Repository, pub Publisher, logger *slog.Logger) *Tracker {
	return &Tracker{repo: repo, pub: pub, logger: logger}
}

// Handle lets running work report on its job.
type Handle struct {
	t      *Tracker
	ctx    context.Context
	logger *slog.Logger

	mu  sync.Mutex
	job Job
}

// ID returns the job id.
func (h *Handle) ID() string {
	return h.job.ID
}

// Running marks the job as started. Work that queues for a worker slot calls
// it once the slot is acquired.
func (h *Handle) Running() {
	h.mu.Lock()
	h.job.Status = StatusRunning
	snap := h.job
	h.mu.Unlock()

	if err := h.t.repo.UpdateStatus(h.ctx, snap.ID, StatusRunning, ""); err != nil {
		h.logger.Warn("failed to mark job running", "error", err)
	}
	h.t.publish(events.TypeJobProgress, snap)
}

// Progress records done of total steps and the latest message.
func (h *Handle) Progress(done, total int, message string) {
	h.mu.Lock()
	h.job.Progress, h.job.Total, h.job.Message = done, total, message
	snap := h.job
	h.mu.Unlock()

	if err := h.t.repo.UpdateProgress(h.ctx, snap.ID, done, total, message); err != nil {
		h.logger.Warn("failed to update job progress", "error", err)
	}
	h.t.publish(events.TypeJobProgress, snap)
}

// SetResult stores a short summary of the outcome, such as the report path.
func (h *Handle) SetResult(result string) {
	h.mu.Lock()
	h.job.Result = result
	id := h.job.ID
	h.mu.Unlock()

	if err := h.t.repo.SetResult(h.ctx, id, result); err != nil {
		h.logger.Warn("failed to store job result", "error", err)
	}
}

// Track creates a pending job from tmpl, runs fn and records whether it
// succeeded. Ledger writes outlive cancellation of ctx so that a client
// hanging up still leaves a failed row behind. fn's error is returned as is.
func (t *Tracker) Track(ctx context.Context, tmpl Job, fn func(ctx context.Context, h *Handle) error) (*Job, error) {
	job := tmpl
	job.ID = uuid.NewString()
	job.Status = StatusPending

	ledgerCtx := context.WithoutCancel(ctx)
	if err := t.repo.Create(ledgerCtx, &job); err != nil {
		return nil, err
	}
	t.publish(events.TypeJobCreated, job)

	logger := logging.WithProject(logging.WithJobID(t.logger, job.ID), job.Project, job.User).With("type", job.Type)
	logger.Debug("job created")

	h := &Handle{t: t, ctx: ledgerCtx, logger: logger, job: job}
	runErr := fn(ctx, h)

	h.mu.Lock()
	if runErr != nil {
		h.job.Status = StatusFailed
		h.job.Error = runErr.Error()
	} else {
		h.job.Status = StatusCompleted
	}
	final := h.job
	h.mu.Unlock()

	if err := t.repo.UpdateStatus(ledgerCtx, final.ID, final.Status, final.Error); err != nil {
		logger.Warn("failed to record job status", "status", final.Status, "error", err)
	}
	if runErr != nil {
		logger.Warn("job failed", "error", runErr)
		t.publish(events.TypeJobFailed, final)
	} else {
		logger.Info("job completed")
		t.publish(events.TypeJobCompleted, final)
	}
	return &final, runErr
}

func (t *Tracker) publish(typ string, job Job) {
	if t.pub != nil {
		t.pub.Publish(events.Event{Type: typ, Data: job})
	}
}
