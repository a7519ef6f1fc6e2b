package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/pitchreel/api/internal/service"
	"github.com/pitchreel/api/internal/store"
	"github.com/pitchreel/api/pkg/response"
)

const maxSourceSize = 50 * 1024 * 1024 // 50MB

type SourceHandler struct {
	service *service.SourceService
}

func NewSourceHandler(svc *service.SourceService) *SourceHandler {
	return &SourceHandler{service: svc}
}

// Upload handles POST /api/jobs/:jobId/source
func (h *SourceHandler) Upload(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	if file.Size > maxSourceSize {
		return response.ValidationError(c, "File size exceeds 50MB limit", map[string]interface{}{
			"maxSize":  maxSourceSize,
			"fileSize": file.Size,
		})
	}

	contentType := file.Header.Get("Content-Type")
	if !validSourceType(contentType) {
		return response.ValidationError(c, "Invalid file type. Supported: audio voice notes, plain text, markdown, PDF", map[string]interface{}{
			"contentType": contentType,
		})
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	result, err := h.service.UploadSource(c.Context(), jobID, file.Filename, contentType, f, file.Size)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		if strings.HasPrefix(err.Error(), "job already") {
			return response.ValidationError(c, err.Error(), nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, result)
}

func validSourceType(contentType string) bool {
	validTypes := map[string]bool{
		"audio/wav":       true,
		"audio/x-wav":     true,
		"audio/mpeg":      true,
		"audio/mp3":       true,
		"audio/mp4":       true,
		"audio/x-m4a":     true,
		"audio/aac":       true,
		"audio/webm":      true,
		"text/plain":      true,
		"text/markdown":   true,
		"application/pdf": true,
	}
	return validTypes[contentType]
}
