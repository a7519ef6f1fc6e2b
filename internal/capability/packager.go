package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pitchreel/api/internal/client"
	"github.com/pitchreel/api/internal/model"
	"github.com/pitchreel/api/internal/pipeline"
)

// PackageHandler assembles the deliverable manifest for a completed task
// graph and uploads it to object storage.
type PackageHandler struct {
	storage client.StorageClient
}

func NewPackageHandler(storage client.StorageClient) *PackageHandler {
	return &PackageHandler{storage: storage}
}

func (h *PackageHandler) Invoke(ctx context.Context, inv *pipeline.Invocation) (*pipeline.Result, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(inv.Context, &payload); err != nil {
		return nil, fmt.Errorf("invalid package payload: %w", err)
	}

	manifest := map[string]interface{}{
		"jobId":       inv.Job.ID,
		"title":       inv.Job.Title,
		"generatedAt": time.Now().UTC().Format(time.RFC3339),
		"contents":    payload,
	}

	key := fmt.Sprintf("deliverables/%s/manifest.json", inv.Job.ID)
	if h.storage == nil {
		return artifactResult("deliverable", model.ArtifactRef{
			URL:         fmt.Sprintf("%s/%s", mockCDNBase, key),
			ContentType: "application/json",
		}), nil
	}

	url, err := h.storage.UploadJSON(ctx, key, manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to upload deliverable manifest: %w", err)
	}
	return artifactResult("deliverable", model.ArtifactRef{URL: url, ContentType: "application/json"}), nil
}
