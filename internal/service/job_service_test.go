package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pitchreel/api/internal/capability"
	"github.com/pitchreel/api/internal/model"
	"github.com/pitchreel/api/internal/pipeline"
	"github.com/pitchreel/api/internal/store"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
}

func (r *recordingEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{}, nil
}

type recordingStorage struct {
	deleted []string
}

func (r *recordingStorage) Upload(_ context.Context, key string, _ io.Reader, _ string) (string, error) {
	return "https://cdn.example/" + key, nil
}

func (r *recordingStorage) UploadJSON(_ context.Context, key string, _ interface{}) (string, error) {
	return "https://cdn.example/" + key, nil
}

func (r *recordingStorage) Delete(_ context.Context, key string) error {
	r.deleted = append(r.deleted, key)
	return nil
}

func newTestService() (*JobService, *store.MemoryStore, *recordingEnqueuer) {
	gw := store.NewMemoryStore()
	locker := store.NewMemoryLocker()
	dispatcher := capability.NewRegistry(nil, nil, nil)
	ctrl := pipeline.NewController(gw, locker, dispatcher, time.Second)
	enq := &recordingEnqueuer{}
	return NewJobService(gw, ctrl, enq, nil, true), gw, enq
}

func TestCreateJobEnqueuesFirstStep(t *testing.T) {
	svc, gw, enq := newTestService()
	ctx := context.Background()

	resp, err := svc.CreateJob(ctx, &model.JobCreateRequest{Kind: model.JobKindStory, Title: "My pitch", SourceText: "transcript"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if resp.Status != model.JobStatusQueued {
		t.Errorf("status = %s, want queued", resp.Status)
	}

	job, err := gw.GetJob(ctx, resp.JobID)
	if err != nil {
		t.Fatalf("job not persisted: %v", err)
	}
	if !job.CaptionsEnabled {
		t.Error("captions default must apply")
	}

	if len(enq.tasks) != 1 || enq.tasks[0].Type() != TaskTypeStep {
		t.Fatalf("enqueued tasks = %v", enq.tasks)
	}
}

func TestCreateJobCaptionsOverride(t *testing.T) {
	svc, gw, _ := newTestService()
	off := false

	resp, err := svc.CreateJob(context.Background(), &model.JobCreateRequest{Kind: model.JobKindStory, SourceText: "t", Captions: &off})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	job, _ := gw.GetJob(context.Background(), resp.JobID)
	if job.CaptionsEnabled {
		t.Error("explicit captions=false must override the default")
	}
}

// End to end through the mock capability registry: stepping a story job until
// done completes it with a deliverable.
func TestStepStoryJobToCompletion(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	resp, err := svc.CreateJob(ctx, &model.JobCreateRequest{Kind: model.JobKindStory, SourceText: "we build custom keyboards"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var last *model.JobStepResponse
	for i := 0; i < 60; i++ {
		last, err = svc.Step(ctx, resp.JobID)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if last.Done {
			break
		}
	}
	if last == nil || !last.Done {
		t.Fatal("job did not finish")
	}
	if last.Status != model.JobStatusCompleted {
		t.Fatalf("final status = %s (%s)", last.Status, last.Message)
	}

	result, err := svc.GetResult(ctx, resp.JobID)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if result.Deliverable == nil {
		t.Error("completed story must have a deliverable")
	}
	if len(result.Shots) == 0 || len(result.Artifacts) == 0 {
		t.Errorf("result missing shots/artifacts: %d shots, %d artifacts", len(result.Shots), len(result.Artifacts))
	}
}

func TestCancel(t *testing.T) {
	svc, gw, _ := newTestService()
	ctx := context.Background()

	resp, _ := svc.CreateJob(ctx, &model.JobCreateRequest{Kind: model.JobKindProject, SourceText: "plan"})

	out, err := svc.Cancel(ctx, resp.JobID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !out.Success || out.Status != model.JobStatusCanceled {
		t.Errorf("cancel response = %+v", out)
	}

	// Canceling again is rejected; the terminal state is final.
	if _, err := svc.Cancel(ctx, resp.JobID); err == nil {
		t.Error("second cancel must fail")
	}

	// A queued step finds the terminal state and stops.
	step, err := svc.Step(ctx, resp.JobID)
	if err != nil {
		t.Fatalf("step after cancel: %v", err)
	}
	if !step.Done || step.Status != model.JobStatusCanceled {
		t.Errorf("step after cancel = %+v", step)
	}

	job, _ := gw.GetJob(ctx, resp.JobID)
	if job.CompletedAt == nil {
		t.Error("canceled job must have CompletedAt")
	}
}

func TestDeleteCascades(t *testing.T) {
	svc, gw, _ := newTestService()
	ctx := context.Background()

	resp, _ := svc.CreateJob(ctx, &model.JobCreateRequest{Kind: model.JobKindStory, SourceText: "t"})

	// Run a few steps so children exist.
	for i := 0; i < 8; i++ {
		if _, err := svc.Step(ctx, resp.JobID); err != nil {
			t.Fatalf("step: %v", err)
		}
	}

	if err := svc.Delete(ctx, resp.JobID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := gw.GetJob(ctx, resp.JobID); !errors.Is(err, store.ErrNotFound) {
		t.Error("job survived delete")
	}
	shots, _ := gw.ListShots(ctx, resp.JobID)
	if len(shots) != 0 {
		t.Errorf("%d shots survived delete", len(shots))
	}

	if err := svc.Delete(ctx, resp.JobID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("delete of missing job = %v, want ErrNotFound", err)
	}
}

// Deleting a job also removes the objects this service put in storage: the
// uploaded source and, for project jobs, the packaged manifest.
func TestDeleteCleansStorage(t *testing.T) {
	gw := store.NewMemoryStore()
	locker := store.NewMemoryLocker()
	ctrl := pipeline.NewController(gw, locker, capability.NewRegistry(nil, nil, nil), time.Second)
	storage := &recordingStorage{}
	svc := NewJobService(gw, ctrl, &recordingEnqueuer{}, storage, true)
	ctx := context.Background()

	job := &model.Job{
		ID:             "j1",
		Kind:           model.JobKindProject,
		Status:         model.JobStatusCompleted,
		SourceRef:      &model.ArtifactRef{URL: "https://cdn.example/sources/j1/source.m4a"},
		DeliverableRef: &model.ArtifactRef{URL: "https://cdn.example/deliverables/j1/manifest.json"},
		CreatedAt:      time.Now(),
	}
	if err := gw.SaveJob(ctx, job); err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, "j1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	want := map[string]bool{
		"sources/j1/source.m4a":         false,
		"deliverables/j1/manifest.json": false,
	}
	for _, key := range storage.deleted {
		if _, ok := want[key]; !ok {
			t.Errorf("unexpected storage delete %q", key)
		}
		want[key] = true
	}
	for key, seen := range want {
		if !seen {
			t.Errorf("storage object %q not deleted", key)
		}
	}
}

func TestGetStatusUnknownJob(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.GetStatus(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
