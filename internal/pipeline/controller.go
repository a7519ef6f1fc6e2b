package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pitchreel/api/internal/model"
	"github.com/pitchreel/api/internal/store"
)

// StepResult is the status delta returned by one controller step.
type StepResult struct {
	Done       bool
	Message    string
	Status     model.JobStatus
	Progress   int
	AdvancedTo model.JobStatus
}

// Controller is the single externally invoked entry point of the pipeline.
// Each Step call performs exactly one bounded unit of work — at most one
// external generation call — and leaves durable state sufficient to resume,
// so the pipeline survives process restarts between polls. The driving
// cadence is the caller repeatedly invoking Step until Done.
type Controller struct {
	store      store.Gateway
	locker     store.Locker
	dispatcher *Dispatcher
	leaseTTL   time.Duration
}

func NewController(gw store.Gateway, locker store.Locker, d *Dispatcher, leaseTTL time.Duration) *Controller {
	if leaseTTL <= 0 {
		leaseTTL = 30 * time.Second
	}
	return &Controller{store: gw, locker: locker, dispatcher: d, leaseTTL: leaseTTL}
}

// SceneDescriptor is one entry of the scene decomposition capability output.
type SceneDescriptor struct {
	Script string           `json:"script"`
	Shots  []ShotDescriptor `json:"shots"`
}

// ShotDescriptor describes one shot within a scene.
type ShotDescriptor struct {
	Script string `json:"script"`
}

// Step loads the job, performs one unit of work for its current stage,
// persists the outcome and returns the status delta. Terminal jobs return an
// idempotent no-op. Any unrecoverable failure marks the job failed with a
// recorded cause; a job is never left silently stuck.
func (c *Controller) Step(ctx context.Context, jobID string) (*StepResult, error) {
	release, ok, err := c.locker.Acquire(ctx, jobID, c.leaseTTL)
	if err != nil {
		return nil, &PersistenceError{Op: "acquire lease", Err: err}
	}
	if !ok {
		return &StepResult{Done: false, Message: "another step is in progress"}, nil
	}
	defer release()

	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, &PersistenceError{Op: "load job", Err: err}
	}

	// Cancellation and terminal idempotence come first: no capability is
	// invoked for a job that can no longer move.
	if job.IsTerminal() {
		return &StepResult{
			Done:     true,
			Status:   job.Status,
			Progress: job.Progress,
			Message:  fmt.Sprintf("job is %s", job.Status),
		}, nil
	}
	if requested, err := c.store.CancelRequested(ctx, jobID); err != nil {
		return nil, &PersistenceError{Op: "check cancel request", Err: err}
	} else if requested {
		return c.settleCancel(ctx, job)
	}

	res, err := c.stepOnce(ctx, job)
	if err != nil {
		var pe *PersistenceError
		if errors.As(err, &pe) {
			// Transient: surface to the caller for retry, job state untouched.
			return nil, err
		}
		return c.failJob(ctx, job, err), nil
	}
	return res, nil
}

func (c *Controller) stepOnce(ctx context.Context, job *model.Job) (*StepResult, error) {
	if job.StartedAt == nil && job.Status != model.JobStatusQueued {
		now := time.Now()
		job.StartedAt = &now
	}
	if job.Kind == model.JobKindStory {
		return c.stepStory(ctx, job)
	}
	return c.stepProject(ctx, job)
}

// ---- story pipeline ----

func (c *Controller) stepStory(ctx context.Context, job *model.Job) (*StepResult, error) {
	switch job.Status {
	case model.JobStatusQueued:
		now := time.Now()
		job.StartedAt = &now
		return c.advance(ctx, job)

	case model.JobStatusUploading:
		if job.SourceRef == nil && job.SourceText == "" {
			// Upload happens out of band; nothing to do yet.
			return c.progressResult(ctx, job, false, "waiting for source upload")
		}
		return c.advance(ctx, job)

	case model.JobStatusGeneratingStory:
		if job.StoryText != "" {
			return c.advance(ctx, job)
		}
		inv := &Invocation{Job: job, Input: storyInput(job)}
		res, err := c.dispatcher.Invoke(ctx, model.CapabilityStory, inv)
		if err != nil {
			return nil, err
		}
		if res.OutputText == "" {
			return nil, &TerminalJobError{Stage: job.Status, Msg: "story capability returned empty narrative"}
		}
		job.StoryText = res.OutputText
		return c.progressResult(ctx, job, false, "story generated")

	case model.JobStatusGeneratingScenes:
		if job.TotalShots > 0 {
			return c.advance(ctx, job)
		}
		return c.decomposeScenes(ctx, job)

	case model.JobStatusGeneratingMedia:
		return c.stepShotMedia(ctx, job)

	case model.JobStatusBuildingVideo:
		if job.CombinedVideoRef != nil {
			return c.advance(ctx, job)
		}
		return c.composeVideo(ctx, job)

	case model.JobStatusAddingCaptions:
		if job.CaptionedVideoRef != nil {
			return c.advance(ctx, job)
		}
		inv := &Invocation{Job: job, Input: job.CombinedVideoRef.URL}
		res, err := c.dispatcher.Invoke(ctx, model.CapabilityCaptions, inv)
		if err != nil {
			return nil, err
		}
		ref, ok := res.Artifacts["captioned"]
		if !ok {
			return nil, &TerminalJobError{Stage: job.Status, Msg: "captions capability returned no artifact"}
		}
		job.CaptionedVideoRef = &ref
		return c.progressResult(ctx, job, false, "captions added")
	}
	return nil, &TerminalJobError{Stage: job.Status, Msg: "stage not handled by story pipeline"}
}

func (c *Controller) decomposeScenes(ctx context.Context, job *model.Job) (*StepResult, error) {
	inv := &Invocation{Job: job, Input: job.StoryText}
	res, err := c.dispatcher.Invoke(ctx, model.CapabilityScenes, inv)
	if err != nil {
		return nil, err
	}

	var descs []SceneDescriptor
	if err := json.Unmarshal(res.Data, &descs); err != nil {
		return nil, &DecompositionError{Reason: fmt.Sprintf("unparseable scene list: %v", err)}
	}
	total := 0
	for _, d := range descs {
		total += len(d.Shots)
	}
	if total == 0 {
		return nil, &DecompositionError{Reason: "scene decomposition produced no shots"}
	}

	// Scenes and shots are created once here; identity is immutable
	// afterwards, only artifact refs are filled in by later steps.
	for i, d := range descs {
		scene := &model.Scene{
			ID:        uuid.New().String(),
			JobID:     job.ID,
			SortIndex: i,
			Script:    d.Script,
		}
		for j, sd := range d.Shots {
			shot := &model.Shot{
				ID:        uuid.New().String(),
				JobID:     job.ID,
				SceneID:   scene.ID,
				SortIndex: j,
				Script:    sd.Script,
			}
			scene.ShotIDs = append(scene.ShotIDs, shot.ID)
			if err := c.store.SaveShot(ctx, shot); err != nil {
				return nil, &PersistenceError{Op: "save shot", Err: err}
			}
		}
		if err := c.store.SaveScene(ctx, scene); err != nil {
			return nil, &PersistenceError{Op: "save scene", Err: err}
		}
	}

	job.TotalShots = total
	job.CompletedShots = 0
	return c.progressResult(ctx, job, false, fmt.Sprintf("decomposed into %d scenes, %d shots", len(descs), total))
}

// stepShotMedia advances the first incomplete shot in (scene, shot) sort
// order through one composite media invocation. The handler receives the
// shot's current refs and produces only the missing artifacts, so a
// partially-filled shot resumes mid-chain.
func (c *Controller) stepShotMedia(ctx context.Context, job *model.Job) (*StepResult, error) {
	shots, err := c.orderedShots(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	var target *model.Shot
	completed := 0
	for _, sh := range shots {
		if sh.Complete() {
			completed++
		} else if target == nil {
			target = sh
		}
	}
	job.CompletedShots = completed

	if target == nil {
		return c.advance(ctx, job)
	}

	res, err := c.dispatcher.Invoke(ctx, model.CapabilityShotMedia, &Invocation{Job: job, Shot: target, Input: target.Script})
	if err != nil {
		var ce *CapabilityError
		if errors.As(err, &ce) {
			// A failed shot is job-fatal: earlier shots keep their
			// artifacts, later shots are never attempted.
			return nil, &TerminalJobError{Stage: job.Status, Msg: ce.Error()}
		}
		return nil, err
	}
	if res.Media == nil {
		return nil, &TerminalJobError{Stage: job.Status, Msg: fmt.Sprintf("media capability returned nothing for shot %s", target.ID)}
	}

	before := *target
	if err := target.AttachMedia(*res.Media); err != nil {
		return nil, &TerminalJobError{Stage: job.Status, Msg: fmt.Sprintf("shot %s: %v", target.ID, err)}
	}
	if *target == before {
		return nil, &TerminalJobError{Stage: job.Status, Msg: fmt.Sprintf("media capability made no progress on shot %s", target.ID)}
	}

	if err := c.store.SaveShot(ctx, target); err != nil {
		return nil, &PersistenceError{Op: "save shot", Err: err}
	}
	if target.Complete() {
		job.CompletedShots++
	}
	return c.progressResult(ctx, job, false, fmt.Sprintf("shot %d/%d processed", job.CompletedShots, job.TotalShots))
}

func (c *Controller) composeVideo(ctx context.Context, job *model.Job) (*StepResult, error) {
	shots, err := c.orderedShots(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(shots))
	for _, sh := range shots {
		if sh.FinalShotRef != nil {
			urls = append(urls, sh.FinalShotRef.URL)
		}
	}
	payload, _ := json.Marshal(map[string][]string{"shots": urls})

	res, err := c.dispatcher.Invoke(ctx, model.CapabilityCompose, &Invocation{Job: job, Context: payload})
	if err != nil {
		return nil, err
	}
	ref, ok := res.Artifacts["combined"]
	if !ok {
		return nil, &TerminalJobError{Stage: job.Status, Msg: "compose capability returned no artifact"}
	}
	job.CombinedVideoRef = &ref
	return c.progressResult(ctx, job, false, "scenes concatenated")
}

// orderedShots returns all shots sorted by (scene.sortIndex, shot.sortIndex).
func (c *Controller) orderedShots(ctx context.Context, jobID string) ([]*model.Shot, error) {
	scenes, err := c.store.ListScenes(ctx, jobID)
	if err != nil {
		return nil, &PersistenceError{Op: "list scenes", Err: err}
	}
	shots, err := c.store.ListShots(ctx, jobID)
	if err != nil {
		return nil, &PersistenceError{Op: "list shots", Err: err}
	}

	sceneOrder := make(map[string]int, len(scenes))
	for _, sc := range scenes {
		sceneOrder[sc.ID] = sc.SortIndex
	}
	sort.SliceStable(shots, func(i, j int) bool {
		si, sj := sceneOrder[shots[i].SceneID], sceneOrder[shots[j].SceneID]
		if si != sj {
			return si < sj
		}
		return shots[i].SortIndex < shots[j].SortIndex
	})
	return shots, nil
}

func storyInput(job *model.Job) string {
	if job.SourceText != "" {
		return job.SourceText
	}
	if job.SourceRef != nil {
		return job.SourceRef.URL
	}
	return ""
}

// ---- project task-graph pipeline ----

func (c *Controller) stepProject(ctx context.Context, job *model.Job) (*StepResult, error) {
	switch job.Status {
	case model.JobStatusQueued:
		now := time.Now()
		job.StartedAt = &now
		return c.advance(ctx, job)

	case model.JobStatusPlanning:
		if job.TotalTasks > 0 {
			return c.advance(ctx, job)
		}
		return c.planTasks(ctx, job)

	case model.JobStatusExecuting:
		return c.stepTaskGraph(ctx, job)

	case model.JobStatusPackaging:
		if job.DeliverableRef != nil {
			return c.advance(ctx, job)
		}
		return c.packageDeliverables(ctx, job)
	}
	return nil, &TerminalJobError{Stage: job.Status, Msg: "stage not handled by project pipeline"}
}

func (c *Controller) planTasks(ctx context.Context, job *model.Job) (*StepResult, error) {
	inv := &Invocation{Job: job, Input: storyInput(job)}
	res, err := c.dispatcher.Invoke(ctx, model.CapabilityPlan, inv)
	if err != nil {
		return nil, err
	}

	var descs []TaskDescriptor
	if err := json.Unmarshal(res.Data, &descs); err != nil {
		return nil, &DecompositionError{Reason: fmt.Sprintf("unparseable task list: %v", err)}
	}

	// All-or-nothing: a rejected graph persists no tasks.
	tasks, err := BuildGraph(job.ID, descs)
	if err != nil {
		return nil, err
	}
	if err := c.store.SaveTasks(ctx, job.ID, tasks); err != nil {
		return nil, &PersistenceError{Op: "save task graph", Err: err}
	}

	job.TotalTasks = len(tasks)
	job.CompletedTasks = 0
	return c.advance(ctx, job)
}

func (c *Controller) stepTaskGraph(ctx context.Context, job *model.Job) (*StepResult, error) {
	tasks, err := c.store.ListTasks(ctx, job.ID)
	if err != nil {
		return nil, &PersistenceError{Op: "list tasks", Err: err}
	}

	ready := ReadyTasks(tasks)
	if len(ready) == 0 {
		// Pending tasks downstream of failed or blocked work can never run;
		// mark them so the stage can close out with partial results.
		for _, t := range Unreachable(tasks) {
			t.Status = model.TaskStatusBlocked
			msg := "dependency failed or blocked"
			t.Error = &msg
			if err := c.store.SaveTask(ctx, t); err != nil {
				return nil, &PersistenceError{Op: "save task", Err: err}
			}
		}
		job.CompletedTasks = countCompleted(tasks)
		return c.advance(ctx, job)
	}

	task := ready[0]
	c.dispatcher.DispatchTask(ctx, job, task)
	if err := c.store.SaveTask(ctx, task); err != nil {
		return nil, &PersistenceError{Op: "save task", Err: err}
	}

	job.CompletedTasks = countCompleted(tasks)
	return c.progressResult(ctx, job, false, fmt.Sprintf("task %q %s", task.Title, task.Status))
}

func (c *Controller) packageDeliverables(ctx context.Context, job *model.Job) (*StepResult, error) {
	tasks, err := c.store.ListTasks(ctx, job.ID)
	if err != nil {
		return nil, &PersistenceError{Op: "list tasks", Err: err}
	}

	type entry struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		ContentType string `json:"contentType,omitempty"`
	}
	var entries []entry
	for _, t := range tasks {
		for _, a := range t.Artifacts {
			entries = append(entries, entry{Title: t.Title, URL: a.URL, ContentType: a.ContentType})
		}
	}
	payload, _ := json.Marshal(map[string]interface{}{"artifacts": entries})

	res, err := c.dispatcher.Invoke(ctx, model.CapabilityPackage, &Invocation{Job: job, Context: payload})
	if err != nil {
		return nil, err
	}
	ref, ok := res.Artifacts["deliverable"]
	if !ok {
		return nil, &TerminalJobError{Stage: job.Status, Msg: "package capability returned no artifact"}
	}
	job.DeliverableRef = &ref
	return c.progressResult(ctx, job, false, "deliverables packaged")
}

func countCompleted(tasks []*model.Task) int {
	n := 0
	for _, t := range tasks {
		if t.Status == model.TaskStatusCompleted {
			n++
		}
	}
	return n
}

// ---- shared plumbing ----

// advance moves the job to the next stage, running the finalize bookkeeping
// when the next stage is terminal completion.
func (c *Controller) advance(ctx context.Context, job *model.Job) (*StepResult, error) {
	snap := c.snapshot(job)
	next, err := Advance(snap)
	if err != nil {
		return nil, &TerminalJobError{Stage: job.Status, Msg: err.Error()}
	}

	job.Status = next
	if next == model.JobStatusCompleted {
		c.finalize(job)
	}
	res, perr := c.progressResult(ctx, job, next == model.JobStatusCompleted, fmt.Sprintf("advanced to %s", next))
	if perr != nil {
		return nil, perr
	}
	res.AdvancedTo = next
	return res, nil
}

// finalize records completion. For story jobs the deliverable is the
// captioned video when captions ran, otherwise the combined cut.
func (c *Controller) finalize(job *model.Job) {
	if job.Kind == model.JobKindStory && job.DeliverableRef == nil {
		if job.CaptionedVideoRef != nil {
			job.DeliverableRef = job.CaptionedVideoRef
		} else {
			job.DeliverableRef = job.CombinedVideoRef
		}
	}
	now := time.Now()
	job.CompletedAt = &now
}

// progressResult recomputes progress and status text, persists the job row
// and builds the step's return value. Progress never decreases. A cancel
// requested while this step was in flight wins over the step's own mutation:
// the row is settled to canceled instead of the in-progress stage, so the
// request is never overwritten.
func (c *Controller) progressResult(ctx context.Context, job *model.Job, done bool, message string) (*StepResult, error) {
	snap := c.snapshot(job)
	if p := Progress(snap); p > job.Progress {
		job.Progress = p
	}
	job.CurrentStep = CurrentStep(snap)

	if !job.IsTerminal() {
		requested, err := c.store.CancelRequested(ctx, job.ID)
		if err != nil {
			return nil, &PersistenceError{Op: "check cancel request", Err: err}
		}
		if requested {
			return c.settleCancel(ctx, job)
		}
	}

	if err := c.store.SaveJob(ctx, job); err != nil {
		return nil, &PersistenceError{Op: "save job", Err: err}
	}
	return &StepResult{
		Done:     done,
		Message:  message,
		Status:   job.Status,
		Progress: job.Progress,
	}, nil
}

// settleCancel moves the job to canceled. Progress and artifacts produced so
// far are retained.
func (c *Controller) settleCancel(ctx context.Context, job *model.Job) (*StepResult, error) {
	job.Status = model.JobStatusCanceled
	job.CurrentStep = "Canceled"
	now := time.Now()
	job.CompletedAt = &now

	if err := c.store.SaveJob(ctx, job); err != nil {
		return nil, &PersistenceError{Op: "save job", Err: err}
	}
	return &StepResult{
		Done:     true,
		Message:  "job is canceled",
		Status:   job.Status,
		Progress: job.Progress,
	}, nil
}

// Cancel records a cancellation request for a non-terminal job. When no step
// holds the lease the row is settled immediately; otherwise the in-flight
// step observes the request before its next save and settles it there.
func (c *Controller) Cancel(ctx context.Context, jobID string) error {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return &PersistenceError{Op: "load job", Err: err}
	}
	if job.IsTerminal() {
		return fmt.Errorf("job already %s", job.Status)
	}

	if err := c.store.RequestCancel(ctx, jobID); err != nil {
		return &PersistenceError{Op: "request cancel", Err: err}
	}

	release, ok, err := c.locker.Acquire(ctx, jobID, c.leaseTTL)
	if err != nil || !ok {
		// A step is in flight; it settles the request before its next save.
		return nil
	}
	defer release()

	// Reload under the lease: the row may have moved since the first read.
	job, err = c.store.GetJob(ctx, jobID)
	if err != nil || job.IsTerminal() {
		return nil
	}
	_, err = c.settleCancel(ctx, job)
	return err
}

func (c *Controller) snapshot(job *model.Job) Snapshot {
	return Snapshot{
		Job:            job,
		TotalShots:     job.TotalShots,
		CompletedShots: job.CompletedShots,
		TotalTasks:     job.TotalTasks,
		CompletedTasks: job.CompletedTasks,
	}
}

// failJob records a terminal failure. Artifacts produced so far stay
// attached and retrievable.
func (c *Controller) failJob(ctx context.Context, job *model.Job, cause error) *StepResult {
	msg := cause.Error()
	job.Status = model.JobStatusFailed
	job.Error = &msg
	job.CurrentStep = "Failed"
	now := time.Now()
	job.CompletedAt = &now

	if err := c.store.SaveJob(ctx, job); err != nil {
		log.Printf("Failed to persist failure for job %s: %v", job.ID, err)
	}
	return &StepResult{
		Done:     true,
		Message:  msg,
		Status:   job.Status,
		Progress: job.Progress,
	}
}
