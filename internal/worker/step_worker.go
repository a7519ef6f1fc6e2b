package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pitchreel/api/internal/model"
	"github.com/pitchreel/api/internal/pipeline"
	"github.com/pitchreel/api/internal/service"
	"github.com/pitchreel/api/internal/store"
	"github.com/pitchreel/api/internal/websocket"
)

// StepWorker drives jobs forward in the background. Each asynq task performs
// exactly one unit of work; non-terminal jobs re-enqueue themselves after the
// step interval, so a crash between steps loses at most one unit.
type StepWorker struct {
	jobService   *service.JobService
	hub          *websocket.Hub
	stepInterval time.Duration
}

// NewStepWorker creates a new step worker
func NewStepWorker(jobService *service.JobService, hub *websocket.Hub, stepInterval time.Duration) *StepWorker {
	if stepInterval <= 0 {
		stepInterval = 2 * time.Second
	}
	return &StepWorker{
		jobService:   jobService,
		hub:          hub,
		stepInterval: stepInterval,
	}
}

// ProcessTask performs one step of the referenced job
func (w *StepWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload struct {
		JobID string `json:"jobId"`
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w: %w", err, asynq.SkipRetry)
	}

	res, err := w.jobService.Step(ctx, payload.JobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Deleted while queued; nothing left to advance.
			log.Printf("Step task for missing job %s dropped", payload.JobID)
			return nil
		}
		var pe *pipeline.PersistenceError
		if errors.As(err, &pe) {
			// Transient store trouble; let asynq retry with backoff.
			return err
		}
		return fmt.Errorf("step failed for job %s: %w: %w", payload.JobID, err, asynq.SkipRetry)
	}

	w.broadcast(res)

	if !res.Done {
		if err := w.jobService.EnqueueStep(res.JobID, res.Kind, w.stepInterval); err != nil {
			return fmt.Errorf("failed to re-enqueue job %s: %w", res.JobID, err)
		}
	}
	return nil
}

func (w *StepWorker) broadcast(res *model.JobStepResponse) {
	if w.hub == nil {
		return
	}
	switch res.Status {
	case model.JobStatusCompleted:
		w.hub.BroadcastComplete(res.JobID, res.JobStatusResponse)
	case model.JobStatusFailed:
		msg := "job failed"
		if res.Error != nil {
			msg = *res.Error
		}
		w.hub.BroadcastError(res.JobID, "JOB_FAILED", msg)
	case model.JobStatusCanceled:
		// No broadcast; cancellation is client-initiated.
	default:
		w.hub.BroadcastProgress(res.JobID, res.Progress, res.Status, res.CurrentStep)
	}
}
