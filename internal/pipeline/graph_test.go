package pipeline

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/pitchreel/api/internal/model"
)

func descriptor(id string, deps ...string) TaskDescriptor {
	return TaskDescriptor{
		TempID:     id,
		Title:      "task " + id,
		Phase:      model.PhaseBuild,
		Capability: model.CapabilityBackend,
		Priority:   model.PriorityMedium,
		DependsOn:  deps,
	}
}

func TestBuildGraphValid(t *testing.T) {
	descs := []TaskDescriptor{
		descriptor("t1"),
		descriptor("t2", "t1"),
		descriptor("t3", "t1", "t2"),
	}

	tasks, err := BuildGraph("job-1", descs)
	if err != nil {
		t.Fatalf("BuildGraph returned error: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}

	if tasks[0].Status != model.TaskStatusReady {
		t.Errorf("root task status = %s, want ready", tasks[0].Status)
	}
	if tasks[1].Status != model.TaskStatusPending {
		t.Errorf("dependent task status = %s, want pending", tasks[1].Status)
	}

	// Temp ids must be remapped to the generated task ids.
	if tasks[1].DependsOn[0] != tasks[0].ID {
		t.Errorf("dependency not remapped: got %s, want %s", tasks[1].DependsOn[0], tasks[0].ID)
	}
	if tasks[2].DependsOn[1] != tasks[1].ID {
		t.Errorf("second dependency not remapped: got %s, want %s", tasks[2].DependsOn[1], tasks[1].ID)
	}

	for i, task := range tasks {
		if task.Seq != i {
			t.Errorf("task %d Seq = %d, want %d", i, task.Seq, i)
		}
		if task.JobID != "job-1" {
			t.Errorf("task %d JobID = %s", i, task.JobID)
		}
	}
}

func TestBuildGraphEmpty(t *testing.T) {
	_, err := BuildGraph("job-1", nil)
	var de *DecompositionError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecompositionError, got %v", err)
	}
}

func TestBuildGraphDuplicateID(t *testing.T) {
	descs := []TaskDescriptor{descriptor("t1"), descriptor("t1")}
	if _, err := BuildGraph("job-1", descs); err == nil {
		t.Fatal("expected error for duplicate task id")
	}
}

func TestBuildGraphSelfDependency(t *testing.T) {
	descs := []TaskDescriptor{descriptor("t1", "t1")}
	if _, err := BuildGraph("job-1", descs); err == nil {
		t.Fatal("expected error for self-dependency")
	}
}

func TestBuildGraphDanglingDependency(t *testing.T) {
	descs := []TaskDescriptor{descriptor("t1", "ghost")}
	tasks, err := BuildGraph("job-1", descs)
	if err == nil {
		t.Fatal("expected error for dangling dependency")
	}
	if tasks != nil {
		t.Error("rejected graph must persist no tasks")
	}
}

// Planning responses carry context as an inline JSON object; it must survive
// decoding and land on the task untouched.
func TestBuildGraphObjectContext(t *testing.T) {
	raw := `[{"id":"t1","title":"Design","phase":"design","capability":"design","priority":"high",
		"context":{"style":"minimal","palette":["#111","#eee"]}}]`

	var descs []TaskDescriptor
	if err := json.Unmarshal([]byte(raw), &descs); err != nil {
		t.Fatalf("descriptor with object context rejected: %v", err)
	}

	tasks, err := BuildGraph("job-1", descs)
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	var ctx struct {
		Style string `json:"style"`
	}
	if err := json.Unmarshal(tasks[0].Context, &ctx); err != nil {
		t.Fatalf("task context unparseable: %v", err)
	}
	if ctx.Style != "minimal" {
		t.Errorf("context style = %q", ctx.Style)
	}
}

func TestBuildGraphCycle(t *testing.T) {
	descs := []TaskDescriptor{
		descriptor("a", "b"),
		descriptor("b", "a"),
	}
	_, err := BuildGraph("job-1", descs)
	var de *DecompositionError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecompositionError for cycle, got %v", err)
	}
}
