package pipeline

import (
	"testing"

	"github.com/pitchreel/api/internal/model"
)

func storySnap(status model.JobStatus) Snapshot {
	return Snapshot{Job: &model.Job{Kind: model.JobKindStory, Status: status, CaptionsEnabled: true}}
}

func TestStoryStageOrder(t *testing.T) {
	want := []model.JobStatus{
		model.JobStatusQueued,
		model.JobStatusUploading,
		model.JobStatusGeneratingStory,
		model.JobStatusGeneratingScenes,
		model.JobStatusGeneratingMedia,
		model.JobStatusBuildingVideo,
		model.JobStatusAddingCaptions,
		model.JobStatusCompleted,
	}
	got := Stages(model.JobKindStory)
	if len(got) != len(want) {
		t.Fatalf("stage count = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("stage %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestNextSkipsCaptionsWhenDisabled(t *testing.T) {
	snap := storySnap(model.JobStatusBuildingVideo)
	snap.Job.CaptionsEnabled = false

	next, err := Next(snap)
	if err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	if next != model.JobStatusCompleted {
		t.Errorf("next = %s, want completed when captions disabled", next)
	}

	snap.Job.CaptionsEnabled = true
	next, err = Next(snap)
	if err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	if next != model.JobStatusAddingCaptions {
		t.Errorf("next = %s, want adding_captions when captions enabled", next)
	}
}

func TestAdvanceGuardRejectsMissingOutput(t *testing.T) {
	cases := []struct {
		name string
		snap Snapshot
	}{
		{"uploading without source", storySnap(model.JobStatusUploading)},
		{"story without narrative", storySnap(model.JobStatusGeneratingStory)},
		{"scenes without shots", storySnap(model.JobStatusGeneratingScenes)},
		{"media incomplete", func() Snapshot {
			s := storySnap(model.JobStatusGeneratingMedia)
			s.TotalShots = 4
			s.CompletedShots = 2
			return s
		}()},
		{"building without combined video", storySnap(model.JobStatusBuildingVideo)},
		{"planning without tasks", Snapshot{Job: &model.Job{Kind: model.JobKindProject, Status: model.JobStatusPlanning}}},
	}

	for _, tc := range cases {
		if _, err := Advance(tc.snap); err == nil {
			t.Errorf("%s: Advance succeeded, want guard error", tc.name)
		}
	}
}

func TestAdvanceWithSatisfiedGuard(t *testing.T) {
	snap := storySnap(model.JobStatusUploading)
	snap.Job.SourceText = "we make custom keyboards"

	next, err := Advance(snap)
	if err != nil {
		t.Fatalf("Advance returned error: %v", err)
	}
	if next != model.JobStatusGeneratingStory {
		t.Errorf("next = %s, want generating_story", next)
	}
}

func TestAdvanceTerminal(t *testing.T) {
	for _, status := range []model.JobStatus{model.JobStatusCompleted, model.JobStatusFailed, model.JobStatusCanceled} {
		if _, err := Advance(storySnap(status)); err == nil {
			t.Errorf("Advance from %s succeeded, want error", status)
		}
	}
}
