package model

import (
	"encoding/json"
	"time"
)

// Task is one node of a project job's dependency graph. Tasks are created in
// a single atomic batch by the graph builder and never recreated; only status
// and outputs mutate afterward.
type Task struct {
	ID                 string          `json:"id"`
	JobID              string          `json:"jobId"`
	Title              string          `json:"title"`
	Phase              Phase           `json:"phase"`
	Capability         Capability      `json:"capability"`
	Priority           Priority        `json:"priority"`
	Status             TaskStatus      `json:"status"`
	DependsOn          []string        `json:"dependsOn,omitempty"`
	AcceptanceCriteria []string        `json:"acceptanceCriteria,omitempty"`
	Context            json.RawMessage `json:"context,omitempty"`

	// Seq preserves declaration order for the resolver's stable tie-break.
	Seq int `json:"seq"`

	Artifacts  []ArtifactRef `json:"artifacts,omitempty"`
	OutputText string        `json:"outputText,omitempty"`
	Error      *string       `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
