package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/pitchreel/api/internal/client"
	"github.com/pitchreel/api/internal/model"
	"github.com/pitchreel/api/internal/store"
)

// SourceService stores uploaded source material (voice notes, scripts) and
// attaches the reference to the owning job.
type SourceService struct {
	store    store.Gateway
	r2Client client.StorageClient
}

func NewSourceService(gw store.Gateway, r2Client client.StorageClient) *SourceService {
	return &SourceService{
		store:    gw,
		r2Client: r2Client,
	}
}

// UploadSource uploads a source file and records it on the job. Only
// non-terminal jobs that have not yet consumed their source accept uploads.
func (s *SourceService) UploadSource(ctx context.Context, jobID, filename, contentType string, file io.Reader, size int64) (*model.SourceUploadResponse, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.IsTerminal() {
		return nil, fmt.Errorf("job already %s", job.Status)
	}
	if job.StoryText != "" || job.TotalTasks > 0 {
		return nil, fmt.Errorf("job already consumed its source material")
	}

	key := fmt.Sprintf("sources/%s/source%s", jobID, safeExt(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var fileURL string
	if s.r2Client == nil {
		fileURL = fmt.Sprintf("https://cdn.pitchreel.dev/mock/%s", key)
	} else {
		fileURL, err = s.r2Client.Upload(ctx, key, file, contentType)
		if err != nil {
			return nil, fmt.Errorf("failed to upload source: %w", err)
		}
	}

	job.SourceRef = &model.ArtifactRef{URL: fileURL, ContentType: contentType}
	if err := s.store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	return &model.SourceUploadResponse{
		JobID:       jobID,
		Source:      *job.SourceRef,
		SizeBytes:   size,
		ContentType: contentType,
		UploadedAt:  time.Now(),
	}, nil
}

// safeExt keeps the original file extension when it is a plain suffix,
// discarding anything that could smuggle path segments.
func safeExt(filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(filename)))
	if ext == "" || strings.ContainsAny(ext, "/\\") || len(ext) > 8 {
		return ""
	}
	return ext
}
