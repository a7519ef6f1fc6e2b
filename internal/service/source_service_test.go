package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pitchreel/api/internal/model"
	"github.com/pitchreel/api/internal/store"
)

func TestUploadSourceAttachesRef(t *testing.T) {
	gw := store.NewMemoryStore()
	svc := NewSourceService(gw, nil)
	ctx := context.Background()

	job := &model.Job{ID: "j1", Kind: model.JobKindStory, Status: model.JobStatusUploading, CreatedAt: time.Now()}
	if err := gw.SaveJob(ctx, job); err != nil {
		t.Fatal(err)
	}

	resp, err := svc.UploadSource(ctx, "j1", "note.m4a", "audio/mp4", strings.NewReader("bytes"), 5)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if resp.Source.URL == "" || resp.Source.ContentType != "audio/mp4" {
		t.Errorf("source = %+v", resp.Source)
	}
	if !strings.HasSuffix(resp.Source.URL, ".m4a") {
		t.Errorf("source URL lost the file extension: %s", resp.Source.URL)
	}

	loaded, _ := gw.GetJob(ctx, "j1")
	if loaded.SourceRef == nil || loaded.SourceRef.URL != resp.Source.URL {
		t.Errorf("job source ref = %v", loaded.SourceRef)
	}
}

func TestUploadSourceRejectsTerminalJob(t *testing.T) {
	gw := store.NewMemoryStore()
	svc := NewSourceService(gw, nil)
	ctx := context.Background()

	if err := gw.SaveJob(ctx, &model.Job{ID: "j1", Kind: model.JobKindStory, Status: model.JobStatusCanceled}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.UploadSource(ctx, "j1", "note.m4a", "audio/mp4", strings.NewReader("b"), 1); err == nil {
		t.Fatal("expected rejection for terminal job")
	}
}

func TestUploadSourceRejectsConsumedJob(t *testing.T) {
	gw := store.NewMemoryStore()
	svc := NewSourceService(gw, nil)
	ctx := context.Background()

	if err := gw.SaveJob(ctx, &model.Job{ID: "j1", Kind: model.JobKindStory, Status: model.JobStatusGeneratingScenes, StoryText: "done"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.UploadSource(ctx, "j1", "note.m4a", "audio/mp4", strings.NewReader("b"), 1); err == nil {
		t.Fatal("expected rejection once the source was consumed")
	}
}

func TestSafeExt(t *testing.T) {
	cases := map[string]string{
		"note.m4a":         ".m4a",
		"script.txt":       ".txt",
		"noext":            "",
		"weird.reallylong": "",
	}
	for in, want := range cases {
		if got := safeExt(in); got != want {
			t.Errorf("safeExt(%q) = %q, want %q", in, got, want)
		}
	}
}
