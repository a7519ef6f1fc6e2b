package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pitchreel/api/internal/capability"
	"github.com/pitchreel/api/internal/model"
	"github.com/pitchreel/api/internal/pipeline"
	"github.com/pitchreel/api/internal/service"
	"github.com/pitchreel/api/internal/store"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
}

func (r *recordingEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func newWorkerFixture() (*StepWorker, *service.JobService, *store.MemoryStore, *recordingEnqueuer) {
	gw := store.NewMemoryStore()
	locker := store.NewMemoryLocker()
	dispatcher := capability.NewRegistry(nil, nil, nil)
	ctrl := pipeline.NewController(gw, locker, dispatcher, time.Second)
	enq := &recordingEnqueuer{}
	jobService := service.NewJobService(gw, ctrl, enq, nil, true)
	return NewStepWorker(jobService, nil, time.Second), jobService, gw, enq
}

func stepTask(t *testing.T, jobID string) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"jobId": jobID})
	if err != nil {
		t.Fatal(err)
	}
	return asynq.NewTask(service.TaskTypeStep, payload)
}

func TestProcessTaskReenqueuesUntilDone(t *testing.T) {
	w, svc, _, enq := newWorkerFixture()
	ctx := context.Background()

	resp, err := svc.CreateJob(ctx, &model.JobCreateRequest{Kind: model.JobKindStory, SourceText: "transcript"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	enq.tasks = nil // drop the creation-time enqueue

	if err := w.ProcessTask(ctx, stepTask(t, resp.JobID)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(enq.tasks) != 1 {
		t.Fatalf("non-terminal step must re-enqueue, got %d tasks", len(enq.tasks))
	}
	if enq.tasks[0].Type() != service.TaskTypeStep {
		t.Errorf("re-enqueued type = %s", enq.tasks[0].Type())
	}
}

func TestProcessTaskStopsWhenTerminal(t *testing.T) {
	w, svc, _, enq := newWorkerFixture()
	ctx := context.Background()

	resp, err := svc.CreateJob(ctx, &model.JobCreateRequest{Kind: model.JobKindStory, SourceText: "transcript"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Cancel(ctx, resp.JobID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	enq.tasks = nil

	if err := w.ProcessTask(ctx, stepTask(t, resp.JobID)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(enq.tasks) != 0 {
		t.Errorf("terminal job re-enqueued %d tasks", len(enq.tasks))
	}
}

func TestProcessTaskMissingJobDropped(t *testing.T) {
	w, _, _, enq := newWorkerFixture()

	// A deleted job's queued step is dropped without an asynq retry.
	if err := w.ProcessTask(context.Background(), stepTask(t, "gone")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(enq.tasks) != 0 {
		t.Errorf("missing job re-enqueued %d tasks", len(enq.tasks))
	}
}

func TestProcessTaskBadPayload(t *testing.T) {
	w, _, _, _ := newWorkerFixture()

	err := w.ProcessTask(context.Background(), asynq.NewTask(service.TaskTypeStep, []byte("{")))
	if err == nil {
		t.Fatal("expected error for bad payload")
	}
}
