package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pitchreel/api/internal/model"
)

// Invocation is the narrow call shape consumed from a generation capability.
// Exactly one of Task/Shot is set for unit-level work; Job is always set.
type Invocation struct {
	Job  *model.Job
	Task *model.Task
	Shot *model.Shot

	// Prompt/context inputs for the capability.
	Input   string
	Context json.RawMessage
}

// Result is what a capability hands back: opaque artifact references keyed by
// slot, free text output, and optional structured data.
type Result struct {
	Artifacts  map[string]model.ArtifactRef
	OutputText string
	Data       json.RawMessage

	// Shot media results, filled only by the shot_media capability.
	Media *model.ShotMedia
}

// Handler performs one bounded unit of generation work.
type Handler interface {
	Invoke(ctx context.Context, inv *Invocation) (*Result, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, inv *Invocation) (*Result, error)

func (f HandlerFunc) Invoke(ctx context.Context, inv *Invocation) (*Result, error) {
	return f(ctx, inv)
}

// Dispatcher routes one ready unit of work to a registered capability
// handler. The registry is closed at construction time: handlers are
// registered during wiring and never swapped afterwards.
type Dispatcher struct {
	handlers map[model.Capability]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[model.Capability]Handler)}
}

// Register binds a handler to a capability. Last registration wins; wiring
// code registers each capability once.
func (d *Dispatcher) Register(cap model.Capability, h Handler) {
	d.handlers[cap] = h
}

// Registered reports whether a capability has a handler.
func (d *Dispatcher) Registered(cap model.Capability) bool {
	_, ok := d.handlers[cap]
	return ok
}

// Invoke runs a capability directly. A missing handler or a handler error is
// wrapped as a CapabilityError for the caller to classify.
func (d *Dispatcher) Invoke(ctx context.Context, cap model.Capability, inv *Invocation) (*Result, error) {
	h, ok := d.handlers[cap]
	if !ok {
		return nil, &CapabilityError{Capability: cap, Unit: unitName(inv), Err: &NoHandlerError{Capability: cap}}
	}
	res, err := h.Invoke(ctx, inv)
	if err != nil {
		return nil, &CapabilityError{Capability: cap, Unit: unitName(inv), Err: err}
	}
	return res, nil
}

// DispatchTask routes one task to its capability handler and records the
// outcome on the task:
//
//   - no handler registered → the task is blocked and surfaced for manual
//     action, the job is not failed;
//   - handler failure → the task is failed, only that branch of the graph
//     stalls;
//   - success → the task is completed and its artifacts attached, making
//     dependents newly eligible on the next resolver pass.
func (d *Dispatcher) DispatchTask(ctx context.Context, job *model.Job, task *model.Task) {
	h, ok := d.handlers[task.Capability]
	if !ok {
		task.Status = model.TaskStatusBlocked
		msg := (&NoHandlerError{Capability: task.Capability}).Error()
		task.Error = &msg
		return
	}

	task.Status = model.TaskStatusInProgress
	res, err := h.Invoke(ctx, &Invocation{Job: job, Task: task, Input: task.Title, Context: task.Context})
	if err != nil {
		task.Status = model.TaskStatusFailed
		msg := err.Error()
		task.Error = &msg
		return
	}

	task.Status = model.TaskStatusCompleted
	task.Error = nil
	task.OutputText = res.OutputText
	for _, ref := range res.Artifacts {
		task.Artifacts = append(task.Artifacts, ref)
	}
	now := time.Now()
	task.CompletedAt = &now
}

func unitName(inv *Invocation) string {
	switch {
	case inv == nil:
		return "unknown"
	case inv.Task != nil:
		return "task " + inv.Task.ID
	case inv.Shot != nil:
		return "shot " + inv.Shot.ID
	case inv.Job != nil:
		return "job " + inv.Job.ID
	}
	return "unknown"
}
