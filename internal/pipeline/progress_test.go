package pipeline

import (
	"testing"

	"github.com/pitchreel/api/internal/model"
)

func TestStoryStageWeightsSumTo100(t *testing.T) {
	sum := 0
	for _, w := range StoryStageWeights() {
		sum += w
	}
	if sum != 100 {
		t.Fatalf("stage weights sum to %d, want 100", sum)
	}
}

func TestStoryProgressByStage(t *testing.T) {
	cases := []struct {
		status model.JobStatus
		want   int
	}{
		{model.JobStatusQueued, 0},
		{model.JobStatusUploading, 0},
		{model.JobStatusGeneratingStory, 5},
		{model.JobStatusGeneratingScenes, 15},
		{model.JobStatusGeneratingMedia, 25},
		{model.JobStatusBuildingVideo, 75},
		{model.JobStatusAddingCaptions, 90},
		{model.JobStatusCompleted, 100},
	}

	for _, tc := range cases {
		snap := storySnap(tc.status)
		if got := Progress(snap); got != tc.want {
			t.Errorf("Progress(%s) = %d, want %d", tc.status, got, tc.want)
		}
	}
}

func TestStoryProgressInterpolatesShots(t *testing.T) {
	snap := storySnap(model.JobStatusGeneratingMedia)
	snap.TotalShots = 4

	for shots, want := range map[int]int{0: 25, 1: 38, 2: 50, 3: 63, 4: 75} {
		snap.CompletedShots = shots
		if got := Progress(snap); got != want {
			t.Errorf("Progress with %d/4 shots = %d, want %d", shots, got, want)
		}
	}
}

func TestProjectProgressRatio(t *testing.T) {
	snap := Snapshot{
		Job:            &model.Job{Kind: model.JobKindProject, Status: model.JobStatusExecuting},
		TotalTasks:     4,
		CompletedTasks: 2,
	}
	if got := Progress(snap); got != 50 {
		t.Errorf("Progress 2/4 tasks = %d, want 50", got)
	}

	snap.TotalTasks = 0
	snap.CompletedTasks = 0
	if got := Progress(snap); got != 0 {
		t.Errorf("Progress with no tasks = %d, want 0", got)
	}
}

func TestTerminalProgressRetained(t *testing.T) {
	snap := storySnap(model.JobStatusFailed)
	snap.Job.Progress = 63
	if got := Progress(snap); got != 63 {
		t.Errorf("failed job progress = %d, want retained 63", got)
	}

	snap = storySnap(model.JobStatusCanceled)
	snap.Job.Progress = 40
	if got := Progress(snap); got != 40 {
		t.Errorf("canceled job progress = %d, want retained 40", got)
	}
}

func TestCurrentStepFormats(t *testing.T) {
	snap := storySnap(model.JobStatusGeneratingMedia)
	snap.TotalShots = 4
	snap.CompletedShots = 2
	if got := CurrentStep(snap); got != "Generating Media (2/4 shots)" {
		t.Errorf("CurrentStep = %q", got)
	}

	snap = Snapshot{
		Job:            &model.Job{Kind: model.JobKindProject, Status: model.JobStatusExecuting},
		TotalTasks:     5,
		CompletedTasks: 3,
	}
	if got := CurrentStep(snap); got != "Executing tasks (3/5 complete)" {
		t.Errorf("CurrentStep = %q", got)
	}
}
