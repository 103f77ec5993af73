package engine

import (
	"context"

	"github.com/wyrdbound/grimoire/execctx"
	"github.com/wyrdbound/grimoire/host"
	"github.com/wyrdbound/grimoire/internal/grimerr"
)

// subflowCaller is the concrete Sub-flow Runtime (§4.7): it implements
// action.FlowCaller (and, structurally, dispatch.Dispatcher's identical
// FlowCaller field type), built fresh per top-level Run/Resume invocation
// so nested flow_call steps never share state across unrelated
// invocations. It closes over the Host in effect for its invocation, so
// a sub-flow's dice/tables/names/LLM/validator/interaction/events are
// the same collaborators as its caller's — only the Execution Context is
// isolated.
type subflowCaller struct {
	engine *Engine
	host   *host.Host
}

// CallFlow looks up flowID in the registry, builds a fresh, isolated
// Execution Context, runs the sub-flow to DONE, and returns its
// projected outputs (§4.7 steps 1-5). The sub-flow never observes or
// mutates the caller's context: it gets its own execctx.Context built
// solely from the rendered inputs passed in.
func (sc *subflowCaller) CallFlow(ctx context.Context, flowID string, inputs map[string]any) (map[string]any, error) {
	flow, err := sc.engine.Registry.Get(flowID)
	if err != nil {
		return nil, err
	}
	if len(flow.Steps) == 0 {
		return nil, grimerr.New(grimerr.SchemaError, "flow has no steps").WithFlow(flow.ID)
	}
	if err := checkRequiredInputs(flow, inputs); err != nil {
		return nil, err
	}

	ec := execctx.New(inputs)
	// allowPause=false: §4.7 runs the sub-flow straight through to DONE;
	// a resume point inside a sub-flow is not a pause boundary for the
	// blocking flow_call invocation protocol.
	outcome, err := sc.engine.runLoop(ctx, flow, ec, sc.host, flow.Steps[0].ID, nil, false)
	if err != nil {
		return nil, err
	}
	return outcome.Outputs, nil
}
