package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/pitchreel/api/internal/model"
)

func okHandler(result *Result) HandlerFunc {
	return func(ctx context.Context, inv *Invocation) (*Result, error) {
		return result, nil
	}
}

func failHandler(msg string) HandlerFunc {
	return func(ctx context.Context, inv *Invocation) (*Result, error) {
		return nil, fmt.Errorf("%s", msg)
	}
}

func TestInvokeMissingHandler(t *testing.T) {
	d := NewDispatcher()
	_, err := d.Invoke(context.Background(), model.CapabilityStory, &Invocation{Job: &model.Job{ID: "j1"}})

	var ce *CapabilityError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CapabilityError, got %v", err)
	}
	var nh *NoHandlerError
	if !errors.As(err, &nh) {
		t.Fatalf("expected NoHandlerError inside, got %v", err)
	}
}

func TestInvokeWrapsHandlerError(t *testing.T) {
	d := NewDispatcher()
	d.Register(model.CapabilityCompose, failHandler("engine down"))

	_, err := d.Invoke(context.Background(), model.CapabilityCompose, &Invocation{Job: &model.Job{ID: "j1"}})
	var ce *CapabilityError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CapabilityError, got %v", err)
	}
	if ce.Capability != model.CapabilityCompose {
		t.Errorf("capability = %s, want compose", ce.Capability)
	}
}

func TestDispatchTaskNoHandlerBlocks(t *testing.T) {
	d := NewDispatcher()
	job := &model.Job{ID: "j1", Kind: model.JobKindProject}
	tk := &model.Task{ID: "t1", Capability: model.CapabilityInfra, Status: model.TaskStatusReady}

	d.DispatchTask(context.Background(), job, tk)

	if tk.Status != model.TaskStatusBlocked {
		t.Errorf("task status = %s, want blocked", tk.Status)
	}
	if tk.Error == nil {
		t.Error("blocked task must record why")
	}
}

func TestDispatchTaskFailureIsolated(t *testing.T) {
	d := NewDispatcher()
	d.Register(model.CapabilityBackend, failHandler("model refused"))
	job := &model.Job{ID: "j1", Kind: model.JobKindProject}
	tk := &model.Task{ID: "t1", Capability: model.CapabilityBackend, Status: model.TaskStatusReady}

	d.DispatchTask(context.Background(), job, tk)

	if tk.Status != model.TaskStatusFailed {
		t.Errorf("task status = %s, want failed", tk.Status)
	}
	if tk.Error == nil || *tk.Error == "" {
		t.Error("failed task must record the cause")
	}
}

func TestDispatchTaskSuccess(t *testing.T) {
	d := NewDispatcher()
	d.Register(model.CapabilityDesign, okHandler(&Result{
		OutputText: "brand guide",
		Artifacts:  map[string]model.ArtifactRef{"doc": {URL: "https://cdn.example/doc.pdf"}},
	}))
	job := &model.Job{ID: "j1", Kind: model.JobKindProject}
	tk := &model.Task{ID: "t1", Capability: model.CapabilityDesign, Status: model.TaskStatusReady}

	d.DispatchTask(context.Background(), job, tk)

	if tk.Status != model.TaskStatusCompleted {
		t.Fatalf("task status = %s, want completed", tk.Status)
	}
	if tk.OutputText != "brand guide" {
		t.Errorf("output = %q", tk.OutputText)
	}
	if len(tk.Artifacts) != 1 || tk.Artifacts[0].URL != "https://cdn.example/doc.pdf" {
		t.Errorf("artifacts = %v", tk.Artifacts)
	}
	if tk.CompletedAt == nil {
		t.Error("completed task must have CompletedAt")
	}
}
