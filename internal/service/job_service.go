package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/pitchreel/api/internal/client"
	"github.com/pitchreel/api/internal/model"
	"github.com/pitchreel/api/internal/pipeline"
	"github.com/pitchreel/api/internal/store"
)

const (
	// TaskTypeStep is the asynq task that advances a job by one unit of work.
	TaskTypeStep = "job:step"

	QueueProjects = "projects"
	QueueStories  = "stories"
)

// Enqueuer is the slice of asynq.Client the job service needs. Tests swap in
// a recorder.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// JobService manages job lifecycle: creation, polling, manual stepping,
// cancellation, results and deletion. Background stepping is delegated to
// asynq; synchronous stepping goes straight through the controller.
type JobService struct {
	store           store.Gateway
	controller      *pipeline.Controller
	enqueuer        Enqueuer
	storage         client.StorageClient
	captionsDefault bool
}

func NewJobService(gw store.Gateway, ctrl *pipeline.Controller, enq Enqueuer, storage client.StorageClient, captionsDefault bool) *JobService {
	return &JobService{
		store:           gw,
		controller:      ctrl,
		enqueuer:        enq,
		storage:         storage,
		captionsDefault: captionsDefault,
	}
}

// CreateJob registers a new job in the queued state and schedules its first
// background step.
func (s *JobService) CreateJob(ctx context.Context, req *model.JobCreateRequest) (*model.JobCreateResponse, error) {
	captions := s.captionsDefault
	if req.Captions != nil {
		captions = *req.Captions
	}

	job := &model.Job{
		ID:              uuid.New().String(),
		Kind:            req.Kind,
		Title:           req.Title,
		Status:          model.JobStatusQueued,
		Progress:        0,
		SourceText:      req.SourceText,
		CaptionsEnabled: captions,
		CreatedAt:       time.Now(),
	}

	if err := s.store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	if err := s.EnqueueStep(job.ID, job.Kind, 0); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	return &model.JobCreateResponse{
		JobID:     job.ID,
		Kind:      job.Kind,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
	}, nil
}

// EnqueueStep schedules one step of a job on its kind's queue. The worker
// re-enqueues until the job reaches a terminal state.
func (s *JobService) EnqueueStep(jobID string, kind model.JobKind, delay time.Duration) error {
	payload, err := json.Marshal(map[string]string{"jobId": jobID})
	if err != nil {
		return err
	}

	queue := QueueStories
	if kind == model.JobKindProject {
		queue = QueueProjects
	}

	opts := []asynq.Option{
		asynq.Queue(queue),
		asynq.MaxRetry(5),
		asynq.Retention(24 * time.Hour),
	}
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}

	_, err = s.enqueuer.Enqueue(asynq.NewTask(TaskTypeStep, payload), opts...)
	return err
}

// GetStatus returns the polling shape for a job
func (s *JobService) GetStatus(ctx context.Context, jobID string) (*model.JobStatusResponse, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return statusResponse(job), nil
}

// Step performs one unit of work synchronously and returns the resulting
// status. Safe to call concurrently with the background worker; the job lease
// serializes writers and the loser reports "another step is in progress".
func (s *JobService) Step(ctx context.Context, jobID string) (*model.JobStepResponse, error) {
	res, err := s.controller.Step(ctx, jobID)
	if err != nil {
		return nil, err
	}

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &model.JobStepResponse{
		JobStatusResponse: *statusResponse(job),
		Done:              res.Done,
		Message:           res.Message,
	}, nil
}

// Cancel moves a non-terminal job to canceled. Progress and already-produced
// artifacts are retained. The controller records the request outside the job
// row, so a step in flight cannot overwrite it: the step settles the request
// before its next save.
func (s *JobService) Cancel(ctx context.Context, jobID string) (*model.JobCancelResponse, error) {
	if err := s.controller.Cancel(ctx, jobID); err != nil {
		return nil, err
	}
	return &model.JobCancelResponse{
		Success: true,
		JobID:   jobID,
		Status:  model.JobStatusCanceled,
	}, nil
}

// GetResult returns every artifact the job has produced so far. Results stay
// retrievable for failed and canceled jobs; completed work is never discarded.
func (s *JobService) GetResult(ctx context.Context, jobID string) (*model.JobResultResponse, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	resp := &model.JobResultResponse{
		JobID:       job.ID,
		Kind:        job.Kind,
		Status:      job.Status,
		Deliverable: job.DeliverableRef,
		Artifacts:   []model.ArtifactRef{},
		CompletedAt: job.CompletedAt,
	}

	switch job.Kind {
	case model.JobKindStory:
		scenes, err := s.store.ListScenes(ctx, jobID)
		if err != nil {
			return nil, err
		}
		shots, err := s.store.ListShots(ctx, jobID)
		if err != nil {
			return nil, err
		}
		orderShots(scenes, shots)
		for _, shot := range shots {
			if shot.FinalShotRef != nil {
				resp.Artifacts = append(resp.Artifacts, *shot.FinalShotRef)
			}
		}
		if job.CombinedVideoRef != nil {
			resp.Artifacts = append(resp.Artifacts, *job.CombinedVideoRef)
		}
		if job.CaptionedVideoRef != nil {
			resp.Artifacts = append(resp.Artifacts, *job.CaptionedVideoRef)
		}
		resp.Scenes = scenes
		resp.Shots = shots

	case model.JobKindProject:
		tasks, err := s.store.ListTasks(ctx, jobID)
		if err != nil {
			return nil, err
		}
		for _, task := range tasks {
			for _, ref := range task.Artifacts {
				resp.Artifacts = append(resp.Artifacts, ref)
			}
		}
		resp.Tasks = tasks
	}

	return resp, nil
}

// ListTasks returns the task graph of a project job
func (s *JobService) ListTasks(ctx context.Context, jobID string) ([]*model.Task, error) {
	if _, err := s.store.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return s.store.ListTasks(ctx, jobID)
}

// Delete removes a job, everything it owns, and the objects this service
// wrote to storage for it
func (s *JobService) Delete(ctx context.Context, jobID string) error {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	s.cleanupStorage(ctx, job)
	return s.store.DeleteJob(ctx, jobID)
}

// cleanupStorage best-effort deletes the job's uploaded source and packaged
// manifest. Generated media lives in the media engine's bucket and is only
// referenced by URL, never owned here.
func (s *JobService) cleanupStorage(ctx context.Context, job *model.Job) {
	if s.storage == nil {
		return
	}
	if job.SourceRef != nil {
		key := fmt.Sprintf("sources/%s/source%s", job.ID, path.Ext(job.SourceRef.URL))
		if err := s.storage.Delete(ctx, key); err != nil {
			log.Printf("Failed to delete source for job %s: %v", job.ID, err)
		}
	}
	if job.Kind == model.JobKindProject && job.DeliverableRef != nil {
		key := fmt.Sprintf("deliverables/%s/manifest.json", job.ID)
		if err := s.storage.Delete(ctx, key); err != nil {
			log.Printf("Failed to delete manifest for job %s: %v", job.ID, err)
		}
	}
}

func statusResponse(job *model.Job) *model.JobStatusResponse {
	return &model.JobStatusResponse{
		JobID:       job.ID,
		Kind:        job.Kind,
		Status:      job.Status,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
}

// orderShots sorts shots by (scene sort index, shot sort index) so artifact
// lists follow narrative order.
func orderShots(scenes []*model.Scene, shots []*model.Shot) {
	sceneIdx := make(map[string]int, len(scenes))
	for _, sc := range scenes {
		sceneIdx[sc.ID] = sc.SortIndex
	}
	sort.SliceStable(shots, func(i, j int) bool {
		if sceneIdx[shots[i].SceneID] != sceneIdx[shots[j].SceneID] {
			return sceneIdx[shots[i].SceneID] < sceneIdx[shots[j].SceneID]
		}
		return shots[i].SortIndex < shots[j].SortIndex
	})
}
