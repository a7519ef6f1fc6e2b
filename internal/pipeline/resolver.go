package pipeline

import (
	"sort"

	"github.com/pitchreel/api/internal/model"
)

// ReadyTasks returns every not-yet-run task whose dependency set is a subset
// of the completed task ids, ordered by priority descending with declaration
// order as the stable tie-break.
//
// Dangling references and cycles are rejected at build time, so the resolver
// never has to handle them.
func ReadyTasks(tasks []*model.Task) []*model.Task {
	completed := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t.Status == model.TaskStatusCompleted {
			completed[t.ID] = true
		}
	}

	var ready []*model.Task
	for _, t := range tasks {
		if t.Status != model.TaskStatusPending && t.Status != model.TaskStatusReady {
			continue
		}
		eligible := true
		for _, dep := range t.DependsOn {
			if !completed[dep] {
				eligible = false
				break
			}
		}
		if eligible {
			ready = append(ready, t)
		}
	}

	sort.SliceStable(ready, func(i, j int) bool {
		wi, wj := ready[i].Priority.Weight(), ready[j].Priority.Weight()
		if wi != wj {
			return wi > wj
		}
		return ready[i].Seq < ready[j].Seq
	})

	return ready
}

// Unreachable returns the pending tasks that can never become ready because
// their dependency closure contains a failed or blocked task. The controller
// marks these blocked before advancing past the executing stage.
func Unreachable(tasks []*model.Task) []*model.Task {
	byID := make(map[string]*model.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	memo := make(map[string]bool, len(tasks))
	var stuck func(t *model.Task) bool
	stuck = func(t *model.Task) bool {
		if v, ok := memo[t.ID]; ok {
			return v
		}
		// Acyclicity is guaranteed at build time, so this recursion terminates.
		memo[t.ID] = false
		for _, dep := range t.DependsOn {
			d, ok := byID[dep]
			if !ok {
				continue
			}
			if d.Status == model.TaskStatusFailed || d.Status == model.TaskStatusBlocked || stuck(d) {
				memo[t.ID] = true
				break
			}
		}
		return memo[t.ID]
	}

	var out []*model.Task
	for _, t := range tasks {
		if t.Status != model.TaskStatusPending && t.Status != model.TaskStatusReady {
			continue
		}
		if stuck(t) {
			out = append(out, t)
		}
	}
	return out
}
