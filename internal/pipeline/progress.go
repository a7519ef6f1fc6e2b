package pipeline

import (
	"fmt"
	"math"

	"github.com/pitchreel/api/internal/model"
)

// Story stage weights. These are the canonical mapping: they must sum to
// exactly 100 and are fixed for the life of stored progress values, since
// progress is required to be monotonic across steps.
var storyStageWeights = map[model.JobStatus]int{
	model.JobStatusUploading:        5,
	model.JobStatusGeneratingStory:  10,
	model.JobStatusGeneratingScenes: 10,
	model.JobStatusGeneratingMedia:  50,
	model.JobStatusBuildingVideo:    15,
	model.JobStatusAddingCaptions:   10,
}

// StoryStageWeights returns a copy of the canonical weight table.
func StoryStageWeights() map[model.JobStatus]int {
	out := make(map[model.JobStatus]int, len(storyStageWeights))
	for k, v := range storyStageWeights {
		out[k] = v
	}
	return out
}

// stageBase is the cumulative weight of every stage before the given one,
// i.e. the progress shown at the instant the stage is entered.
func stageBase(stage model.JobStatus) int {
	base := 0
	for _, s := range storyStages {
		if s == stage {
			return base
		}
		base += storyStageWeights[s]
	}
	return base
}

// Progress computes the percent-complete for a snapshot. Task-graph jobs use
// the completed/total ratio; story jobs use fixed stage weights with linear
// interpolation across shots inside the media stage. The caller clamps the
// result to be monotonic against the stored value.
func Progress(snap Snapshot) int {
	job := snap.Job
	switch {
	case job.Status == model.JobStatusCompleted:
		return 100
	case job.Status == model.JobStatusFailed, job.Status == model.JobStatusCanceled:
		return job.Progress
	}

	if job.Kind == model.JobKindProject {
		if snap.TotalTasks == 0 {
			return 0
		}
		return int(math.Round(100 * float64(snap.CompletedTasks) / float64(snap.TotalTasks)))
	}

	base := stageBase(job.Status)
	if job.Status == model.JobStatusGeneratingMedia && snap.TotalShots > 0 {
		w := storyStageWeights[model.JobStatusGeneratingMedia]
		return base + int(math.Round(float64(w)*float64(snap.CompletedShots)/float64(snap.TotalShots)))
	}
	return base
}

// CurrentStep renders the human-readable status line for a snapshot.
func CurrentStep(snap Snapshot) string {
	switch snap.Job.Status {
	case model.JobStatusQueued:
		return "Queued"
	case model.JobStatusUploading:
		return "Uploading source"
	case model.JobStatusGeneratingStory:
		return "Generating story"
	case model.JobStatusGeneratingScenes:
		return "Structuring scenes and shots"
	case model.JobStatusGeneratingMedia:
		return fmt.Sprintf("Generating Media (%d/%d shots)", snap.CompletedShots, snap.TotalShots)
	case model.JobStatusBuildingVideo:
		return "Building video"
	case model.JobStatusAddingCaptions:
		return "Adding captions"
	case model.JobStatusPlanning:
		return "Planning tasks"
	case model.JobStatusExecuting:
		return fmt.Sprintf("Executing tasks (%d/%d complete)", snap.CompletedTasks, snap.TotalTasks)
	case model.JobStatusPackaging:
		return "Packaging deliverables"
	case model.JobStatusCompleted:
		return "Completed"
	case model.JobStatusFailed:
		return "Failed"
	case model.JobStatusCanceled:
		return "Canceled"
	}
	return string(snap.Job.Status)
}
