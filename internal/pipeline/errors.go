package pipeline

import (
	"fmt"

	"github.com/pitchreel/api/internal/model"
)

// DecompositionError reports a malformed or cyclic graph produced by a
// planning capability. The entire graph is rejected before persistence and
// the job stays in its pre-decomposition state.
type DecompositionError struct {
	Reason string
}

func (e *DecompositionError) Error() string {
	return fmt.Sprintf("task graph decomposition rejected: %s", e.Reason)
}

// CapabilityError reports a single unit's generation failure. It is isolated
// to that unit and never cascades to sibling units.
type CapabilityError struct {
	Capability model.Capability
	Unit       string
	Err        error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability %s failed for %s: %v", e.Capability, e.Unit, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }

// NoHandlerError is wrapped inside a CapabilityError when the registry has no
// handler for a capability; the dispatcher degrades the unit to blocked
// instead of failing it.
type NoHandlerError struct {
	Capability model.Capability
}

func (e *NoHandlerError) Error() string {
	return fmt.Sprintf("no handler registered for capability %s", e.Capability)
}

// PersistenceError reports a transient storage failure. Callers may safely
// retry the step.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// TerminalJobError reports an unrecoverable failure; the controller sets the
// job to failed with this message. Previously completed artifacts remain
// attached and downloadable.
type TerminalJobError struct {
	Stage model.JobStatus
	Msg   string
}

func (e *TerminalJobError) Error() string {
	return fmt.Sprintf("job failed in stage %s: %s", e.Stage, e.Msg)
}
