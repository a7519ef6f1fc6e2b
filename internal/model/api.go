package model

import "time"

// JobCreateRequest represents the request to create a job
type JobCreateRequest struct {
	Kind       JobKind `json:"kind" validate:"required,oneof=project story"`
	Title      string  `json:"title" validate:"omitempty,max=200"`
	SourceText string  `json:"sourceText" validate:"omitempty,max=20000"`
	Captions   *bool   `json:"captions" validate:"omitempty"`
}

// JobCreateResponse represents the response when creating a job
type JobCreateResponse struct {
	JobID     string    `json:"jobId"`
	Kind      JobKind   `json:"kind"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// JobStatusResponse is the polling shape: status, progress, currentStep and
// error, as consumed by the job detail view.
type JobStatusResponse struct {
	JobID       string     `json:"jobId"`
	Kind        JobKind    `json:"kind"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep,omitempty"`
	Error       *string    `json:"error"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
}

// JobStepResponse is the status shape plus the step outcome
type JobStepResponse struct {
	JobStatusResponse
	Done    bool   `json:"done"`
	Message string `json:"message,omitempty"`
}

// JobCancelResponse represents the response when canceling a job
type JobCancelResponse struct {
	Success bool      `json:"success"`
	JobID   string    `json:"jobId"`
	Status  JobStatus `json:"status"`
}

// JobResultResponse carries every artifact the job produced. Artifacts remain
// retrievable after a terminal failure.
type JobResultResponse struct {
	JobID       string        `json:"jobId"`
	Kind        JobKind       `json:"kind"`
	Status      JobStatus     `json:"status"`
	Deliverable *ArtifactRef  `json:"deliverable,omitempty"`
	Artifacts   []ArtifactRef `json:"artifacts"`
	Tasks       []*Task       `json:"tasks,omitempty"`
	Scenes      []*Scene      `json:"scenes,omitempty"`
	Shots       []*Shot       `json:"shots,omitempty"`
	CompletedAt *time.Time    `json:"completedAt"`
}

// SourceUploadResponse represents a stored source voice note or script file
type SourceUploadResponse struct {
	JobID       string      `json:"jobId"`
	Source      ArtifactRef `json:"source"`
	SizeBytes   int64       `json:"sizeBytes"`
	ContentType string      `json:"contentType"`
	UploadedAt  time.Time   `json:"uploadedAt"`
}
