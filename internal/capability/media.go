package capability

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pitchreel/api/internal/client"
	"github.com/pitchreel/api/internal/model"
	"github.com/pitchreel/api/internal/pipeline"
)

const mockCDNBase = "https://cdn.pitchreel.dev/mock"

// ShotMediaHandler renders one shot through the media engine. The engine
// receives whatever artifacts the shot already has and produces the missing
// ones, so a shot interrupted mid-chain resumes instead of regenerating.
type ShotMediaHandler struct {
	media client.MediaEngine
}

func NewShotMediaHandler(media client.MediaEngine) *ShotMediaHandler {
	return &ShotMediaHandler{media: media}
}

func (h *ShotMediaHandler) Invoke(ctx context.Context, inv *pipeline.Invocation) (*pipeline.Result, error) {
	if inv.Shot == nil {
		return nil, fmt.Errorf("shot media invocation without a shot")
	}
	if !mediaConfigured(h.media) {
		return &pipeline.Result{Media: mockShotMedia(inv.Job.ID, inv.Shot.ID)}, nil
	}

	req := &client.RenderShotRequest{
		JobID:     inv.Job.ID,
		ShotID:    inv.Shot.ID,
		Script:    inv.Shot.Script,
		OutputKey: fmt.Sprintf("media/%s/shots/%s", inv.Job.ID, inv.Shot.ID),
	}
	if inv.Shot.ImageRef != nil {
		req.ImageURL = inv.Shot.ImageRef.URL
	}
	if inv.Shot.AudioRef != nil {
		req.AudioURL = inv.Shot.AudioRef.URL
	}
	if inv.Shot.VideoRef != nil {
		req.VideoURL = inv.Shot.VideoRef.URL
	}

	resp, err := h.media.RenderShot(ctx, req)
	if err != nil {
		return nil, err
	}

	media := &model.ShotMedia{}
	if resp.ImageURL != "" {
		media.ImageRef = &model.ArtifactRef{URL: resp.ImageURL, ContentType: "image/png"}
	}
	if resp.AudioURL != "" {
		media.AudioRef = &model.ArtifactRef{URL: resp.AudioURL, ContentType: "audio/mpeg"}
		media.AudioDurationSeconds = resp.AudioDuration
	}
	if resp.VideoURL != "" {
		media.VideoRef = &model.ArtifactRef{URL: resp.VideoURL, ContentType: "video/mp4"}
	}
	if resp.FinalURL != "" {
		media.FinalShotRef = &model.ArtifactRef{URL: resp.FinalURL, ContentType: "video/mp4"}
	}
	return &pipeline.Result{Media: media}, nil
}

// ComposeHandler concatenates the finished shot videos into one cut.
type ComposeHandler struct {
	media client.MediaEngine
}

func NewComposeHandler(media client.MediaEngine) *ComposeHandler {
	return &ComposeHandler{media: media}
}

func (h *ComposeHandler) Invoke(ctx context.Context, inv *pipeline.Invocation) (*pipeline.Result, error) {
	var payload struct {
		Shots []string `json:"shots"`
	}
	if err := json.Unmarshal(inv.Context, &payload); err != nil {
		return nil, fmt.Errorf("invalid compose payload: %w", err)
	}
	if len(payload.Shots) == 0 {
		return nil, fmt.Errorf("no shot videos to concatenate")
	}

	if !mediaConfigured(h.media) {
		return artifactResult("combined", model.ArtifactRef{
			URL:         fmt.Sprintf("%s/%s/combined.mp4", mockCDNBase, inv.Job.ID),
			ContentType: "video/mp4",
		}), nil
	}

	resp, err := h.media.Concat(ctx, &client.ConcatRequest{
		ShotURLs:  payload.Shots,
		OutputKey: fmt.Sprintf("media/%s/combined.mp4", inv.Job.ID),
	})
	if err != nil {
		return nil, err
	}
	return artifactResult("combined", model.ArtifactRef{URL: resp.OutputURL, ContentType: "video/mp4"}), nil
}

// CaptionsHandler burns captions into the combined cut.
type CaptionsHandler struct {
	media client.MediaEngine
}

func NewCaptionsHandler(media client.MediaEngine) *CaptionsHandler {
	return &CaptionsHandler{media: media}
}

func (h *CaptionsHandler) Invoke(ctx context.Context, inv *pipeline.Invocation) (*pipeline.Result, error) {
	if inv.Input == "" {
		return nil, fmt.Errorf("no combined video to caption")
	}
	if !mediaConfigured(h.media) {
		return artifactResult("captioned", model.ArtifactRef{
			URL:         fmt.Sprintf("%s/%s/captioned.mp4", mockCDNBase, inv.Job.ID),
			ContentType: "video/mp4",
		}), nil
	}

	resp, err := h.media.Captions(ctx, &client.CaptionsRequest{
		VideoURL:  inv.Input,
		OutputKey: fmt.Sprintf("media/%s/captioned.mp4", inv.Job.ID),
	})
	if err != nil {
		return nil, err
	}
	return artifactResult("captioned", model.ArtifactRef{URL: resp.OutputURL, ContentType: "video/mp4"}), nil
}

func artifactResult(name string, ref model.ArtifactRef) *pipeline.Result {
	return &pipeline.Result{Artifacts: map[string]model.ArtifactRef{name: ref}}
}

func mediaConfigured(m client.MediaEngine) bool {
	if m == nil {
		return false
	}
	if mc, ok := m.(*client.MediaClient); ok {
		return mc.IsConfigured()
	}
	return true
}

func mockShotMedia(jobID, shotID string) *model.ShotMedia {
	base := fmt.Sprintf("%s/%s/shots/%s", mockCDNBase, jobID, shotID)
	return &model.ShotMedia{
		ImageRef:             &model.ArtifactRef{URL: base + "/image.png", ContentType: "image/png"},
		AudioRef:             &model.ArtifactRef{URL: base + "/audio.mp3", ContentType: "audio/mpeg"},
		AudioDurationSeconds: 4.2,
		VideoRef:             &model.ArtifactRef{URL: base + "/video.mp4", ContentType: "video/mp4"},
		FinalShotRef:         &model.ArtifactRef{URL: base + "/final.mp4", ContentType: "video/mp4"},
	}
}
