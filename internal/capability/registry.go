package capability

import (
	"github.com/pitchreel/api/internal/client"
	"github.com/pitchreel/api/internal/model"
	"github.com/pitchreel/api/internal/pipeline"
)

// NewRegistry wires every handled capability into a dispatcher. Capabilities
// with no automated handler (infra, qa, human_review) stay unregistered;
// tasks requiring them end up blocked rather than silently skipped.
func NewRegistry(llm *client.LLMClient, media client.MediaEngine, storage client.StorageClient) *pipeline.Dispatcher {
	d := pipeline.NewDispatcher()

	d.Register(model.CapabilityPlan, NewPlanHandler(llm))
	d.Register(model.CapabilityStory, NewStoryHandler(llm))
	d.Register(model.CapabilityScenes, NewScenesHandler(llm))

	for _, cap := range []model.Capability{
		model.CapabilityDesign,
		model.CapabilityFrontend,
		model.CapabilityBackend,
		model.CapabilityContent,
	} {
		d.Register(cap, NewTaskHandler(llm, cap))
	}

	d.Register(model.CapabilityShotMedia, NewShotMediaHandler(media))
	d.Register(model.CapabilityCompose, NewComposeHandler(media))
	d.Register(model.CapabilityCaptions, NewCaptionsHandler(media))
	d.Register(model.CapabilityPackage, NewPackageHandler(storage))

	return d
}
