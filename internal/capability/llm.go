// Package capability implements the generation handlers behind the pipeline
// dispatcher. Each handler performs one bounded external call and falls back
// to deterministic mock output when its client is not configured, so the
// whole pipeline runs end to end in development.
package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pitchreel/api/internal/client"
	"github.com/pitchreel/api/internal/model"
	"github.com/pitchreel/api/internal/pipeline"
)

const storySystemPrompt = `You are a narrative writer for short business videos.
Given a transcript of a voice note or a raw script, write a tight spoken
narrative of 150-300 words. Return only the narrative text.`

const scenesSystemPrompt = `You split a narrative into scenes and shots for a
short video. Respond with JSON: {"scenes":[{"script":"...","shots":[{"script":"..."}]}]}.
Use 2-5 scenes with 1-4 shots each. Every shot script must be a single spoken sentence or two.`

const planSystemPrompt = `You decompose a business request into an executable task graph.
Respond with JSON: {"tasks":[{"id":"t1","title":"...","phase":"design|build|test|launch",
"capability":"design|frontend|backend|content|infra|qa|human_review",
"priority":"critical|high|medium|low","dependsOn":["t0"],"acceptanceCriteria":["..."]}]}.
Ids are local to this response. Dependencies must form an acyclic graph.`

// StoryHandler turns the source transcript into a narrative.
type StoryHandler struct {
	llm *client.LLMClient
}

func NewStoryHandler(llm *client.LLMClient) *StoryHandler {
	return &StoryHandler{llm: llm}
}

func (h *StoryHandler) Invoke(ctx context.Context, inv *pipeline.Invocation) (*pipeline.Result, error) {
	if h.llm == nil || !h.llm.IsConfigured() {
		return &pipeline.Result{OutputText: mockStory(inv.Input)}, nil
	}
	text, err := h.llm.ChatCompletion(ctx, storySystemPrompt, inv.Input)
	if err != nil {
		return nil, err
	}
	return &pipeline.Result{OutputText: strings.TrimSpace(text)}, nil
}

// ScenesHandler decomposes a narrative into scenes and shots.
type ScenesHandler struct {
	llm *client.LLMClient
}

func NewScenesHandler(llm *client.LLMClient) *ScenesHandler {
	return &ScenesHandler{llm: llm}
}

func (h *ScenesHandler) Invoke(ctx context.Context, inv *pipeline.Invocation) (*pipeline.Result, error) {
	if h.llm == nil || !h.llm.IsConfigured() {
		return &pipeline.Result{Data: mockScenes(inv.Input)}, nil
	}

	raw, err := h.llm.ChatCompletionJSON(ctx, scenesSystemPrompt, inv.Input)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Scenes []pipeline.SceneDescriptor `json:"scenes"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("scene decomposition is not valid JSON: %w", err)
	}
	data, err := json.Marshal(parsed.Scenes)
	if err != nil {
		return nil, err
	}
	return &pipeline.Result{Data: data}, nil
}

// PlanHandler decomposes a project request into task descriptors.
type PlanHandler struct {
	llm *client.LLMClient
}

func NewPlanHandler(llm *client.LLMClient) *PlanHandler {
	return &PlanHandler{llm: llm}
}

func (h *PlanHandler) Invoke(ctx context.Context, inv *pipeline.Invocation) (*pipeline.Result, error) {
	if h.llm == nil || !h.llm.IsConfigured() {
		return &pipeline.Result{Data: mockPlan()}, nil
	}

	raw, err := h.llm.ChatCompletionJSON(ctx, planSystemPrompt, inv.Input)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Tasks []pipeline.TaskDescriptor `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("task decomposition is not valid JSON: %w", err)
	}
	data, err := json.Marshal(parsed.Tasks)
	if err != nil {
		return nil, err
	}
	return &pipeline.Result{Data: data}, nil
}

// TaskHandler executes one task-graph unit through the LLM. The same handler
// serves every text-producing task capability; the capability name steers the
// system prompt.
type TaskHandler struct {
	llm        *client.LLMClient
	capability model.Capability
}

func NewTaskHandler(llm *client.LLMClient, cap model.Capability) *TaskHandler {
	return &TaskHandler{llm: llm, capability: cap}
}

func (h *TaskHandler) Invoke(ctx context.Context, inv *pipeline.Invocation) (*pipeline.Result, error) {
	if h.llm == nil || !h.llm.IsConfigured() {
		return &pipeline.Result{
			OutputText: fmt.Sprintf("mock %s output for %q", h.capability, inv.Input),
		}, nil
	}

	system := fmt.Sprintf(
		"You are a %s specialist. Produce the deliverable for the given task. Acceptance criteria, if present, are in the task context.",
		h.capability,
	)
	user := inv.Input
	if len(inv.Context) > 0 {
		user = fmt.Sprintf("%s\n\nContext:\n%s", inv.Input, string(inv.Context))
	}
	if inv.Task != nil && len(inv.Task.AcceptanceCriteria) > 0 {
		user = fmt.Sprintf("%s\n\nAcceptance criteria:\n- %s", user, strings.Join(inv.Task.AcceptanceCriteria, "\n- "))
	}

	text, err := h.llm.ChatCompletion(ctx, system, user)
	if err != nil {
		return nil, err
	}
	return &pipeline.Result{OutputText: text}, nil
}

func mockStory(input string) string {
	seed := strings.TrimSpace(input)
	if seed == "" {
		seed = "an ambitious new product"
	}
	if len(seed) > 120 {
		seed = seed[:120]
	}
	return fmt.Sprintf(
		"Meet a business built around %s. In the next minute you'll see what it does, who it serves, and why it matters. From the first idea to the finished result, every piece works together to deliver something customers actually want.",
		seed,
	)
}

func mockScenes(story string) json.RawMessage {
	scenes := []pipeline.SceneDescriptor{
		{
			Script: "Opening: the problem and the promise.",
			Shots: []pipeline.ShotDescriptor{
				{Script: "Every business starts with a problem worth solving."},
				{Script: firstSentence(story)},
			},
		},
		{
			Script: "Closing: what happens next.",
			Shots: []pipeline.ShotDescriptor{
				{Script: "Here is how it comes together for customers."},
				{Script: "This is just the beginning."},
			},
		},
	}
	data, _ := json.Marshal(scenes)
	return data
}

func mockPlan() json.RawMessage {
	descs := []pipeline.TaskDescriptor{
		{TempID: "t1", Title: "Define brand identity", Phase: model.PhaseDesign, Capability: model.CapabilityDesign, Priority: model.PriorityCritical},
		{TempID: "t2", Title: "Build landing page", Phase: model.PhaseBuild, Capability: model.CapabilityFrontend, Priority: model.PriorityHigh, DependsOn: []string{"t1"}},
		{TempID: "t3", Title: "Build signup API", Phase: model.PhaseBuild, Capability: model.CapabilityBackend, Priority: model.PriorityHigh, DependsOn: []string{"t1"}},
		{TempID: "t4", Title: "Write launch copy", Phase: model.PhaseLaunch, Capability: model.CapabilityContent, Priority: model.PriorityMedium, DependsOn: []string{"t2", "t3"}},
	}
	data, _ := json.Marshal(descs)
	return data
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, ".!?"); i > 0 && i < len(text)-1 {
		return text[:i+1]
	}
	if text == "" {
		return "The story starts here."
	}
	return text
}
