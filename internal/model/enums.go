package model

// Job kinds
type JobKind string

const (
	JobKindProject JobKind = "project"
	JobKindStory   JobKind = "story"
)

var ValidJobKinds = []JobKind{JobKindProject, JobKindStory}

// Job status covers both stage machines. Story jobs move through the
// uploading→captions stages, project jobs through planning→packaging.
type JobStatus string

const (
	JobStatusQueued           JobStatus = "queued"
	JobStatusUploading        JobStatus = "uploading"
	JobStatusGeneratingStory  JobStatus = "generating_story"
	JobStatusGeneratingScenes JobStatus = "generating_scenes"
	JobStatusGeneratingMedia  JobStatus = "generating_media"
	JobStatusBuildingVideo    JobStatus = "building_video"
	JobStatusAddingCaptions   JobStatus = "adding_captions"
	JobStatusPlanning         JobStatus = "planning"
	JobStatusExecuting        JobStatus = "executing"
	JobStatusPackaging        JobStatus = "packaging"
	JobStatusCompleted        JobStatus = "completed"
	JobStatusFailed           JobStatus = "failed"
	JobStatusCanceled         JobStatus = "canceled"
)

// Task status
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusReady      TaskStatus = "ready"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusBlocked    TaskStatus = "blocked"
)

// Capability names a pluggable generation service invoked for exactly one
// unit of work. The dispatcher registry is keyed by this enum; capabilities
// without a registered handler degrade to blocked tasks.
type Capability string

const (
	// Task-graph capabilities (project jobs)
	CapabilityDesign      Capability = "design"
	CapabilityFrontend    Capability = "frontend"
	CapabilityBackend     Capability = "backend"
	CapabilityContent     Capability = "content"
	CapabilityInfra       Capability = "infra"
	CapabilityQA          Capability = "qa"
	CapabilityHumanReview Capability = "human_review"
	CapabilityPlan        Capability = "plan"
	CapabilityPackage     Capability = "package"

	// Story pipeline capabilities
	CapabilityStory     Capability = "story"
	CapabilityScenes    Capability = "scenes"
	CapabilityShotMedia Capability = "shot_media"
	CapabilityCompose   Capability = "compose"
	CapabilityCaptions  Capability = "captions"
)

var ValidTaskCapabilities = []Capability{
	CapabilityDesign, CapabilityFrontend, CapabilityBackend, CapabilityContent,
	CapabilityInfra, CapabilityQA, CapabilityHumanReview,
}

// Task priority
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Weight returns the ordering weight of a priority, higher first. Unknown
// priorities sort last.
func (p Priority) Weight() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Phase is a named, ordered grouping over tasks. Purely a reporting view.
type Phase string

const (
	PhaseDesign Phase = "design"
	PhaseBuild  Phase = "build"
	PhaseTest   Phase = "test"
	PhaseLaunch Phase = "launch"
)

var ValidPhases = []Phase{PhaseDesign, PhaseBuild, PhaseTest, PhaseLaunch}
