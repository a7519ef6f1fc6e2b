package pipeline

import (
	"testing"

	"github.com/pitchreel/api/internal/model"
)

func task(id string, status model.TaskStatus, priority model.Priority, seq int, deps ...string) *model.Task {
	return &model.Task{
		ID:        id,
		JobID:     "job-1",
		Title:     "task " + id,
		Priority:  priority,
		Status:    status,
		DependsOn: deps,
		Seq:       seq,
	}
}

func TestReadyTasksDependencyGate(t *testing.T) {
	tasks := []*model.Task{
		task("a", model.TaskStatusCompleted, model.PriorityMedium, 0),
		task("b", model.TaskStatusPending, model.PriorityMedium, 1, "a"),
		task("c", model.TaskStatusPending, model.PriorityMedium, 2, "a", "b"),
		task("d", model.TaskStatusInProgress, model.PriorityMedium, 3),
	}

	ready := ReadyTasks(tasks)
	if len(ready) != 1 {
		t.Fatalf("expected 1 ready task, got %d", len(ready))
	}
	if ready[0].ID != "b" {
		t.Errorf("ready task = %s, want b", ready[0].ID)
	}
}

func TestReadyTasksOrdering(t *testing.T) {
	tasks := []*model.Task{
		task("low", model.TaskStatusReady, model.PriorityLow, 0),
		task("critical", model.TaskStatusReady, model.PriorityCritical, 1),
		task("high-late", model.TaskStatusReady, model.PriorityHigh, 3),
		task("high-early", model.TaskStatusReady, model.PriorityHigh, 2),
	}

	ready := ReadyTasks(tasks)
	want := []string{"critical", "high-early", "high-late", "low"}
	for i, id := range want {
		if ready[i].ID != id {
			t.Errorf("ready[%d] = %s, want %s", i, ready[i].ID, id)
		}
	}
}

func TestUnreachable(t *testing.T) {
	tasks := []*model.Task{
		task("a", model.TaskStatusFailed, model.PriorityMedium, 0),
		task("b", model.TaskStatusPending, model.PriorityMedium, 1, "a"),
		task("c", model.TaskStatusPending, model.PriorityMedium, 2, "b"),
		task("d", model.TaskStatusCompleted, model.PriorityMedium, 3),
		task("e", model.TaskStatusPending, model.PriorityMedium, 4, "d"),
	}

	stuck := Unreachable(tasks)
	if len(stuck) != 2 {
		t.Fatalf("expected 2 unreachable tasks, got %d", len(stuck))
	}
	ids := map[string]bool{}
	for _, s := range stuck {
		ids[s.ID] = true
	}
	if !ids["b"] || !ids["c"] {
		t.Errorf("unreachable set = %v, want b and c", ids)
	}
	if ids["e"] {
		t.Error("task with completed dependency must stay reachable")
	}
}

func TestUnreachableBlockedUpstream(t *testing.T) {
	tasks := []*model.Task{
		task("a", model.TaskStatusBlocked, model.PriorityMedium, 0),
		task("b", model.TaskStatusPending, model.PriorityMedium, 1, "a"),
	}
	stuck := Unreachable(tasks)
	if len(stuck) != 1 || stuck[0].ID != "b" {
		t.Fatalf("expected b unreachable behind blocked task, got %v", stuck)
	}
}
