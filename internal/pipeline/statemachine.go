package pipeline

import (
	"fmt"

	"github.com/pitchreel/api/internal/model"
)

// Snapshot is the state the state machine guards evaluate against: the job
// row plus the aggregate counts the controller has already loaded.
type Snapshot struct {
	Job            *model.Job
	TotalShots     int
	CompletedShots int
	TotalTasks     int
	CompletedTasks int
}

var storyStages = []model.JobStatus{
	model.JobStatusQueued,
	model.JobStatusUploading,
	model.JobStatusGeneratingStory,
	model.JobStatusGeneratingScenes,
	model.JobStatusGeneratingMedia,
	model.JobStatusBuildingVideo,
	model.JobStatusAddingCaptions,
	model.JobStatusCompleted,
}

var projectStages = []model.JobStatus{
	model.JobStatusQueued,
	model.JobStatusPlanning,
	model.JobStatusExecuting,
	model.JobStatusPackaging,
	model.JobStatusCompleted,
}

// Stages returns the ordered stage list for a job kind.
func Stages(kind model.JobKind) []model.JobStatus {
	if kind == model.JobKindStory {
		return storyStages
	}
	return projectStages
}

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(s model.JobStatus) bool {
	return s == model.JobStatusCompleted || s == model.JobStatusFailed || s == model.JobStatusCanceled
}

// Next returns the stage that follows the current one for the job's kind.
// Captions are skipped for jobs that have them disabled.
func Next(snap Snapshot) (model.JobStatus, error) {
	stages := Stages(snap.Job.Kind)
	for i, s := range stages {
		if s != snap.Job.Status {
			continue
		}
		if i == len(stages)-1 {
			return "", fmt.Errorf("no stage after %s", s)
		}
		next := stages[i+1]
		if next == model.JobStatusAddingCaptions && !snap.Job.CaptionsEnabled {
			next = model.JobStatusCompleted
		}
		return next, nil
	}
	return "", fmt.Errorf("status %s is not a %s stage", snap.Job.Status, snap.Job.Kind)
}

// Advance validates the guard for leaving the current stage and returns the
// next one. Guards check that the stage's output actually exists; they do not
// mutate anything.
func Advance(snap Snapshot) (model.JobStatus, error) {
	if IsTerminal(snap.Job.Status) {
		return "", fmt.Errorf("cannot advance terminal status %s", snap.Job.Status)
	}
	if err := guard(snap); err != nil {
		return "", err
	}
	return Next(snap)
}

func guard(snap Snapshot) error {
	job := snap.Job
	switch job.Status {
	case model.JobStatusQueued:
		return nil
	case model.JobStatusUploading:
		if job.SourceRef == nil && job.SourceText == "" {
			return fmt.Errorf("source file not stored")
		}
	case model.JobStatusGeneratingStory:
		if job.StoryText == "" {
			return fmt.Errorf("no narrative text generated")
		}
	case model.JobStatusGeneratingScenes:
		if snap.TotalShots == 0 {
			return fmt.Errorf("scene decomposition produced no shots")
		}
	case model.JobStatusGeneratingMedia:
		if snap.CompletedShots != snap.TotalShots {
			return fmt.Errorf("media incomplete: %d/%d shots", snap.CompletedShots, snap.TotalShots)
		}
	case model.JobStatusBuildingVideo:
		if job.CombinedVideoRef == nil {
			return fmt.Errorf("no combined video artifact")
		}
	case model.JobStatusAddingCaptions:
		if job.CaptionedVideoRef == nil {
			return fmt.Errorf("no captioned video artifact")
		}
	case model.JobStatusPlanning:
		if snap.TotalTasks == 0 {
			return fmt.Errorf("no task graph built")
		}
	case model.JobStatusExecuting:
		// The controller only advances once no ready work remains.
	case model.JobStatusPackaging:
		if job.DeliverableRef == nil {
			return fmt.Errorf("no deliverable packaged")
		}
	default:
		return fmt.Errorf("unknown stage %s", job.Status)
	}
	return nil
}
