package model

import (
	"errors"
	"time"
)

// ArtifactRef is an opaque reference to a generated artifact. The pipeline
// never inspects artifact bytes, only presence and URL.
type ArtifactRef struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType,omitempty"`
}

// Job is the macro unit of work: a project (task-graph job) or a story
// (video pipeline job). A job exclusively owns its children; deleting a job
// cascades to its tasks, scenes and shots.
type Job struct {
	ID          string    `json:"id"`
	Kind        JobKind   `json:"kind"`
	Title       string    `json:"title,omitempty"`
	Status      JobStatus `json:"status"`
	Progress    int       `json:"progress"`
	CurrentStep string    `json:"currentStep,omitempty"`
	Error       *string   `json:"error,omitempty"`

	// Intake
	SourceText string       `json:"sourceText,omitempty"`
	SourceRef  *ArtifactRef `json:"sourceRef,omitempty"`

	// Story pipeline state
	StoryText         string       `json:"storyText,omitempty"`
	CaptionsEnabled   bool         `json:"captionsEnabled"`
	TotalShots        int          `json:"totalShots"`
	CompletedShots    int          `json:"completedShots"`
	CombinedVideoRef  *ArtifactRef `json:"combinedVideoRef,omitempty"`
	CaptionedVideoRef *ArtifactRef `json:"captionedVideoRef,omitempty"`

	// Task-graph state
	TotalTasks     int `json:"totalTasks"`
	CompletedTasks int `json:"completedTasks"`

	// Final deliverable (package manifest for projects, final video for stories)
	DeliverableRef *ArtifactRef `json:"deliverableRef,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// IsTerminal reports whether the job can no longer be mutated by the
// controller.
func (j *Job) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCanceled:
		return true
	}
	return false
}

// Scene groups an ordered run of shots. Identity is immutable after the
// decomposition step; only child shot artifacts are filled in later.
type Scene struct {
	ID        string   `json:"id"`
	JobID     string   `json:"jobId"`
	SortIndex int      `json:"sortIndex"`
	Script    string   `json:"script"`
	ShotIDs   []string `json:"shotIds"`
}

// Shot is the leaf unit of the story pipeline. Its artifact fields obey a
// strict dependency chain: VideoRef requires ImageRef; FinalShotRef requires
// both VideoRef and AudioRef.
type Shot struct {
	ID        string `json:"id"`
	JobID     string `json:"jobId"`
	SceneID   string `json:"sceneId"`
	SortIndex int    `json:"sortIndex"`
	Script    string `json:"script"`

	ImageRef             *ArtifactRef `json:"imageRef,omitempty"`
	AudioRef             *ArtifactRef `json:"audioRef,omitempty"`
	AudioDurationSeconds float64      `json:"audioDurationSeconds,omitempty"`
	VideoRef             *ArtifactRef `json:"videoRef,omitempty"`
	FinalShotRef         *ArtifactRef `json:"finalShotRef,omitempty"`
}

// ErrShotChain is returned when attaching media would violate the shot's
// artifact dependency chain.
var ErrShotChain = errors.New("shot artifact dependency chain violated")

// ShotMedia carries newly produced shot artifacts back from a capability.
// Absent fields leave the current refs untouched.
type ShotMedia struct {
	ImageRef             *ArtifactRef `json:"imageRef,omitempty"`
	AudioRef             *ArtifactRef `json:"audioRef,omitempty"`
	AudioDurationSeconds float64      `json:"audioDurationSeconds,omitempty"`
	VideoRef             *ArtifactRef `json:"videoRef,omitempty"`
	FinalShotRef         *ArtifactRef `json:"finalShotRef,omitempty"`
}

// AttachMedia merges produced artifacts into the shot, enforcing the chain
// invariant on the merged state.
func (s *Shot) AttachMedia(m ShotMedia) error {
	merged := *s
	if m.ImageRef != nil {
		merged.ImageRef = m.ImageRef
	}
	if m.AudioRef != nil {
		merged.AudioRef = m.AudioRef
		merged.AudioDurationSeconds = m.AudioDurationSeconds
	}
	if m.VideoRef != nil {
		merged.VideoRef = m.VideoRef
	}
	if m.FinalShotRef != nil {
		merged.FinalShotRef = m.FinalShotRef
	}

	if merged.VideoRef != nil && merged.ImageRef == nil {
		return ErrShotChain
	}
	if merged.FinalShotRef != nil && (merged.VideoRef == nil || merged.AudioRef == nil) {
		return ErrShotChain
	}

	*s = merged
	return nil
}

// Complete reports whether the shot has its final mixed artifact.
func (s *Shot) Complete() bool {
	return s.FinalShotRef != nil
}
