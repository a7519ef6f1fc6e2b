package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/pitchreel/api/internal/config"
)

// MediaEngine defines the interface for the media generation microservice.
// One call, one bounded unit of work; timeouts are the service's problem and
// surface here as request errors.
type MediaEngine interface {
	RenderShot(ctx context.Context, req *RenderShotRequest) (*RenderShotResponse, error)
	Concat(ctx context.Context, req *ConcatRequest) (*ConcatResponse, error)
	Captions(ctx context.Context, req *CaptionsRequest) (*CaptionsResponse, error)
	HealthCheck(ctx context.Context) error
}

// MediaClient implements MediaEngine for the internal media pipeline service.
type MediaClient struct {
	httpClient *http.Client
	baseURL    string
}

// RenderShotRequest asks the engine to produce the missing artifacts for one
// shot. Already-present refs are passed so the engine resumes mid-chain
// instead of regenerating.
type RenderShotRequest struct {
	JobID     string `json:"job_id"`
	ShotID    string `json:"shot_id"`
	Script    string `json:"script"`
	ImageURL  string `json:"image_url,omitempty"`
	AudioURL  string `json:"audio_url,omitempty"`
	VideoURL  string `json:"video_url,omitempty"`
	OutputKey string `json:"output_key"`
}

// RenderShotResponse carries the produced artifact URLs. Fields the engine
// did not need to produce echo the inputs.
type RenderShotResponse struct {
	ImageURL      string  `json:"image_url,omitempty"`
	AudioURL      string  `json:"audio_url,omitempty"`
	AudioDuration float64 `json:"audio_duration,omitempty"`
	VideoURL      string  `json:"video_url,omitempty"`
	FinalURL      string  `json:"final_url,omitempty"`
}

// ConcatRequest concatenates finished shot videos in order
type ConcatRequest struct {
	ShotURLs  []string `json:"shot_urls"`
	OutputKey string   `json:"output_key"`
}

// ConcatResponse represents the combined video
type ConcatResponse struct {
	OutputURL string  `json:"output_url"`
	Duration  float64 `json:"duration"`
}

// CaptionsRequest burns captions into a combined video
type CaptionsRequest struct {
	VideoURL  string `json:"video_url"`
	Language  string `json:"language,omitempty"`
	OutputKey string `json:"output_key"`
}

// CaptionsResponse represents the captioned video
type CaptionsResponse struct {
	OutputURL string `json:"output_url"`
}

// NewMediaClient creates a new media engine client
func NewMediaClient(cfg *config.MediaConfig) *MediaClient {
	return &MediaClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.ServiceURL,
	}
}

// RenderShot produces the missing artifacts for one shot
func (c *MediaClient) RenderShot(ctx context.Context, req *RenderShotRequest) (*RenderShotResponse, error) {
	var result RenderShotResponse
	if err := c.post(ctx, "/shots/render", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Concat concatenates shot videos into one combined cut
func (c *MediaClient) Concat(ctx context.Context, req *ConcatRequest) (*ConcatResponse, error) {
	var result ConcatResponse
	if err := c.post(ctx, "/video/concat", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Captions adds captions to a combined video
func (c *MediaClient) Captions(ctx context.Context, req *CaptionsRequest) (*CaptionsResponse, error) {
	var result CaptionsResponse
	if err := c.post(ctx, "/video/captions", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// HealthCheck verifies the media service is reachable
func (c *MediaClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("media service unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}

// post sends a POST request with JSON body and parses the JSON response
func (c *MediaClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Printf("[Media API] → POST %s", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("media API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// IsConfigured returns true if the client has valid configuration
func (c *MediaClient) IsConfigured() bool {
	return c.baseURL != ""
}
