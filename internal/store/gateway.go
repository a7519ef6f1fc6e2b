// Package store is the persistence gateway: durable keyed storage for jobs,
// tasks, scenes and shots. Simple keyed reads and writes; no cross-entity
// transactions beyond single-row updates and the atomic task batch written by
// the graph builder.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/pitchreel/api/internal/model"
)

// ErrNotFound is returned when a keyed read misses.
var ErrNotFound = errors.New("not found")

// Gateway is the persistence interface the pipeline consumes.
type Gateway interface {
	GetJob(ctx context.Context, id string) (*model.Job, error)
	SaveJob(ctx context.Context, job *model.Job) error
	// DeleteJob removes the job and cascades to all of its children.
	DeleteJob(ctx context.Context, id string) error

	// RequestCancel records a cancellation request outside the job row, so a
	// step in flight cannot overwrite it when it saves the row. The controller
	// checks the request before every job save and settles it to canceled.
	RequestCancel(ctx context.Context, jobID string) error
	CancelRequested(ctx context.Context, jobID string) (bool, error)

	ListTasks(ctx context.Context, jobID string) ([]*model.Task, error)
	SaveTask(ctx context.Context, task *model.Task) error
	// SaveTasks writes a whole task graph in one atomic batch.
	SaveTasks(ctx context.Context, jobID string, tasks []*model.Task) error

	ListScenes(ctx context.Context, jobID string) ([]*model.Scene, error)
	SaveScene(ctx context.Context, scene *model.Scene) error

	ListShots(ctx context.Context, jobID string) ([]*model.Shot, error)
	SaveShot(ctx context.Context, shot *model.Shot) error
}

// Locker grants the short-TTL advisory lease that enforces the
// single-writer-per-job discipline. Acquire returns ok=false without error
// when another holder owns the lease.
type Locker interface {
	Acquire(ctx context.Context, jobID string, ttl time.Duration) (release func(), ok bool, err error)
}
