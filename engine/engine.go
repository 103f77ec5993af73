// Package engine implements the Flow Interpreter / Control Loop (§4.6)
// and drives the Sub-flow Runtime (§4.7, see subflow.go) and the
// Resume/Checkpoint Machinery (§4.8, backed by the checkpoint package)
// around the Step Dispatcher and Action Evaluator: a run loop advancing
// a step index, with token-keyed paused-run snapshots for pause/resume,
// generalized into a typed step-kind interpreter with explicit/sequential
// transitions and a condition-guarded skip path.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wyrdbound/grimoire/action"
	"github.com/wyrdbound/grimoire/checkpoint"
	"github.com/wyrdbound/grimoire/dispatch"
	"github.com/wyrdbound/grimoire/execctx"
	"github.com/wyrdbound/grimoire/host"
	"github.com/wyrdbound/grimoire/internal/grimerr"
	"github.com/wyrdbound/grimoire/model"
	"github.com/wyrdbound/grimoire/registry"
	"github.com/wyrdbound/grimoire/telemetry"
	"github.com/wyrdbound/grimoire/template"
)

// Engine runs flows against a Host, looking up flow_call and resume
// targets in Registry and persisting pause checkpoints in Checkpoints.
// An Engine is safe for concurrent Run/Resume calls: all mutable state
// lives in the per-invocation execctx.Context and dispatch.Dispatcher,
// never on the Engine itself.
type Engine struct {
	Registry    *registry.Registry
	Checkpoints checkpoint.Store
	Templater   *template.Templater

	// conditionTemplater renders step.Condition non-strictly, so a
	// condition naming an unset variable without a `||` default
	// ("{{ variables.flag }}") renders empty, and so false, instead of
	// failing with UnresolvedReference.
	conditionTemplater *template.Templater
}

// New builds an Engine backed by reg and store. store may be nil, in
// which case pausing at a resume point fails rather than silently
// discarding the checkpoint.
func New(reg *registry.Registry, store checkpoint.Store) *Engine {
	return &Engine{
		Registry:           reg,
		Checkpoints:        store,
		Templater:          template.NewTemplater(),
		conditionTemplater: &template.Templater{Strict: false},
	}
}

// Outcome is the terminal result of Run/Resume (§6): exactly one of
// Outputs or Ticket is set, never both, matching §8's "run either
// returns outputs, a resume ticket, or a typed error — never a partial
// value."
type Outcome struct {
	Outputs map[string]any
	Ticket  *checkpoint.Ticket
}

// Run executes flow from its first step with the given inputs (§4.6
// INIT).
func (e *Engine) Run(ctx context.Context, flow *model.Flow, inputs map[string]any, h *host.Host) (*Outcome, error) {
	if len(flow.Steps) == 0 {
		return nil, grimerr.New(grimerr.SchemaError, "flow has no steps").WithFlow(flow.ID)
	}
	if err := checkRequiredInputs(flow, inputs); err != nil {
		return nil, err
	}
	ec := execctx.New(inputs)
	return e.runLoop(ctx, flow, ec, h, flow.Steps[0].ID, nil, true)
}

// Resume continues a previously paused invocation from ticket (§4.8).
// The flow is looked up in Registry by ticket.FlowID; a version mismatch
// between the ticket and the registered flow is VersionMismatch.
func (e *Engine) Resume(ctx context.Context, ticket *checkpoint.Ticket, h *host.Host) (*Outcome, error) {
	flow, err := e.Registry.Get(ticket.FlowID)
	if err != nil {
		return nil, err
	}
	if effectiveVersion(flow) != ticket.FlowVersion {
		return nil, grimerr.New(grimerr.VersionMismatch,
			fmt.Sprintf("flow %s is at version %d, ticket was taken at version %d", ticket.FlowID, effectiveVersion(flow), ticket.FlowVersion),
		).WithFlow(flow.ID)
	}
	ec := execctx.New(nil)
	ec.Restore(ticket.Snapshot)
	return e.runLoop(ctx, flow, ec, h, ticket.StepID, ticket.ParentTickets, true)
}

func effectiveVersion(flow *model.Flow) int {
	if flow.Version == 0 {
		return 1
	}
	return flow.Version
}

func checkRequiredInputs(flow *model.Flow, inputs map[string]any) error {
	for _, p := range flow.Inputs {
		if !p.Required {
			continue
		}
		if _, ok := inputs[p.ID]; !ok {
			return grimerr.New(grimerr.MissingInput, p.ID).WithFlow(flow.ID)
		}
	}
	return nil
}

func buildStepIndex(flow *model.Flow) map[string]int {
	idx := make(map[string]int, len(flow.Steps))
	for i, s := range flow.Steps {
		idx[s.ID] = i
	}
	return idx
}

func isResumePoint(flow *model.Flow, stepID string) bool {
	for _, id := range flow.ResumePoints {
		if id == stepID {
			return true
		}
	}
	return false
}

// runLoop drives RUN/TRANSITION/PAUSE/DONE (§4.6) starting at
// startStepID. allowPause is false while running as a sub-flow
// invocation: §4.7 runs a sub-flow straight through to DONE, so a
// resume point inside a sub-flow is not a pause boundary.
func (e *Engine) runLoop(ctx context.Context, flow *model.Flow, ec *execctx.Context, h *host.Host, startStepID string, parentTickets []string, allowPause bool) (*Outcome, error) {
	idx := buildStepIndex(flow)
	sc := &subflowCaller{engine: e, host: h}
	disp := &dispatch.Dispatcher{
		Templater: e.Templater,
		Host:      h,
		Actions: &action.Evaluator{
			Templater:  e.Templater,
			Host:       h,
			FlowCaller: sc,
			TypeOf:     typeResolver(flow),
		},
		FlowCaller: sc,
	}

	currentID := startStepID
	for {
		if h.CheckCancelled() {
			return nil, grimerr.New(grimerr.Cancelled, "cancelled").WithFlow(flow.ID).WithStep(currentID)
		}
		if allowPause && isResumePoint(flow, currentID) && h.CheckPauseRequested() {
			ticket, err := e.pause(ctx, flow, ec, currentID, parentTickets)
			if err != nil {
				return nil, err
			}
			return &Outcome{Ticket: ticket}, nil
		}

		i, ok := idx[currentID]
		if !ok {
			return nil, grimerr.New(grimerr.UnknownStep, currentID).WithFlow(flow.ID)
		}
		step := &flow.Steps[i]

		var stepOutcome dispatch.Outcome
		skip := false
		if step.Condition != "" {
			truthy, err := e.conditionTemplater.RenderBool(step.Condition, ec.TemplateContext())
			if err != nil {
				return nil, grimerr.Wrap(grimerr.TemplateError, err).WithFlow(flow.ID).WithStep(step.ID)
			}
			skip = !truthy
		}

		if !skip {
			if err := disp.Actions.Run(ctx, ec, step.PreActions, flow.ID, step.ID); err != nil {
				return nil, err
			}
			spanCtx, endSpan := telemetry.StartStep(ctx, flow.ID, step.ID, string(step.Type))
			var err error
			stepOutcome, err = disp.Dispatch(spanCtx, ec, flow.ID, step)
			endSpan(err)
			if err != nil {
				return nil, err
			}
			if step.Type != model.KindCompletion {
				ec.BindResult(stepOutcome.Result)
			}
			if err := disp.Actions.Run(ctx, ec, step.Actions, flow.ID, step.ID); err != nil {
				return nil, err
			}
		}

		if step.Type == model.KindCompletion {
			return e.done(ctx, flow, ec, h)
		}

		next := stepOutcome.NextStep
		if next == "" {
			next = step.NextStep
		}
		if next == "" {
			if i+1 >= len(flow.Steps) {
				return e.done(ctx, flow, ec, h)
			}
			next = flow.Steps[i+1].ID
		}
		if _, ok := idx[next]; !ok {
			return nil, grimerr.New(grimerr.UnknownStep, next).WithFlow(flow.ID).WithStep(step.ID)
		}
		currentID = next
	}
}

func (e *Engine) pause(ctx context.Context, flow *model.Flow, ec *execctx.Context, stepID string, parentTickets []string) (*checkpoint.Ticket, error) {
	ticket := &checkpoint.Ticket{
		Token:         uuid.NewString(),
		FlowID:        flow.ID,
		FlowVersion:   effectiveVersion(flow),
		StepID:        stepID,
		Snapshot:      ec.Snapshot(),
		ParentTickets: parentTickets,
		CreatedAt:     time.Now(),
	}
	if e.Checkpoints == nil {
		return nil, grimerr.New(grimerr.SchemaError, "no checkpoint store configured; cannot pause").WithFlow(flow.ID).WithStep(stepID)
	}
	if err := e.Checkpoints.Save(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// done projects the flow's declared outputs out of ec (§4.6 DONE),
// validating each one whose Param.Validate is set.
func (e *Engine) done(ctx context.Context, flow *model.Flow, ec *execctx.Context, h *host.Host) (*Outcome, error) {
	outputs := make(map[string]any, len(flow.Outputs))
	for _, p := range flow.Outputs {
		v, err := ec.Get("outputs." + p.ID)
		if err != nil {
			continue
		}
		if p.Validate && h != nil && h.Validator != nil {
			if errs := h.Validator.Validate(ctx, p.Type, v); len(errs) > 0 {
				return nil, grimerr.New(grimerr.ValidationError, errs[0].Message).WithFlow(flow.ID).WithPath("outputs." + p.ID)
			}
		}
		outputs[p.ID] = v
	}
	return &Outcome{Outputs: outputs}, nil
}

// typeResolver exposes a flow's declared input/output/variable Param
// types to the action evaluator's validate_value action
// (action.TypeResolver).
func typeResolver(flow *model.Flow) action.TypeResolver {
	decls := make(map[string]string, len(flow.Inputs)+len(flow.Outputs)+len(flow.Variables))
	for _, p := range flow.Inputs {
		decls["inputs."+p.ID] = p.Type
	}
	for _, p := range flow.Outputs {
		decls["outputs."+p.ID] = p.Type
	}
	for _, p := range flow.Variables {
		decls["variables."+p.ID] = p.Type
	}
	return func(path string) (string, bool) {
		t, ok := decls[path]
		return t, ok
	}
}
