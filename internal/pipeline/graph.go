package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pitchreel/api/internal/model"
)

// TaskDescriptor is one entry of a planning capability's output. Descriptors
// reference each other by temporary string ids; the builder remaps them to
// durable ids.
type TaskDescriptor struct {
	TempID             string           `json:"id"`
	Title              string           `json:"title"`
	Phase              model.Phase      `json:"phase"`
	Capability         model.Capability `json:"capability"`
	Priority           model.Priority   `json:"priority"`
	DependsOn          []string         `json:"dependsOn,omitempty"`
	AcceptanceCriteria []string         `json:"acceptanceCriteria,omitempty"`
	Context            json.RawMessage  `json:"context,omitempty"`
}

// BuildGraph validates a decomposed task list and materializes it as
// persistable tasks. Validation is all-or-nothing: any dangling dependency,
// self-dependency or cycle rejects the whole graph with a DecompositionError
// and nothing is persisted.
//
// On success temporary ids are remapped to durable ids, tasks keep their
// declaration order in Seq, and initial statuses follow the resolver rule:
// no dependencies → ready, otherwise pending.
func BuildGraph(jobID string, descs []TaskDescriptor) ([]*model.Task, error) {
	if len(descs) == 0 {
		return nil, &DecompositionError{Reason: "empty task list"}
	}

	byTemp := make(map[string]int, len(descs))
	for i, d := range descs {
		if d.TempID == "" {
			return nil, &DecompositionError{Reason: fmt.Sprintf("task %d has no id", i)}
		}
		if _, dup := byTemp[d.TempID]; dup {
			return nil, &DecompositionError{Reason: fmt.Sprintf("duplicate task id %q", d.TempID)}
		}
		byTemp[d.TempID] = i
	}

	for _, d := range descs {
		for _, dep := range d.DependsOn {
			if dep == d.TempID {
				return nil, &DecompositionError{Reason: fmt.Sprintf("task %q depends on itself", d.TempID)}
			}
			if _, ok := byTemp[dep]; !ok {
				return nil, &DecompositionError{Reason: fmt.Sprintf("task %q depends on unknown task %q", d.TempID, dep)}
			}
		}
	}

	if err := checkAcyclic(descs, byTemp); err != nil {
		return nil, err
	}

	ids := make(map[string]string, len(descs))
	for _, d := range descs {
		ids[d.TempID] = uuid.New().String()
	}

	now := time.Now()
	tasks := make([]*model.Task, 0, len(descs))
	for i, d := range descs {
		status := model.TaskStatusPending
		if len(d.DependsOn) == 0 {
			status = model.TaskStatusReady
		}
		deps := make([]string, len(d.DependsOn))
		for j, dep := range d.DependsOn {
			deps[j] = ids[dep]
		}
		tasks = append(tasks, &model.Task{
			ID:                 ids[d.TempID],
			JobID:              jobID,
			Title:              d.Title,
			Phase:              d.Phase,
			Capability:         d.Capability,
			Priority:           d.Priority,
			Status:             status,
			DependsOn:          deps,
			AcceptanceCriteria: d.AcceptanceCriteria,
			Context:            d.Context,
			Seq:                i,
			CreatedAt:          now,
		})
	}

	return tasks, nil
}

// checkAcyclic runs a depth-first topological check over the dependency
// edges. A back edge means a cycle.
func checkAcyclic(descs []TaskDescriptor, byTemp map[string]int) error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make([]int, len(descs))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return &DecompositionError{Reason: fmt.Sprintf("dependency cycle through task %q", descs[i].TempID)}
		}
		state[i] = visiting
		for _, dep := range descs[i].DependsOn {
			if err := visit(byTemp[dep]); err != nil {
				return err
			}
		}
		state[i] = done
		return nil
	}

	for i := range descs {
		if err := visit(i); err != nil {
			return err
		}
	}
	return nil
}
