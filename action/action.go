// Package action implements the Action Evaluator (spec §4.4): the
// ordered execution of set_value/swap_values/display_value/
// validate_value/log_event/log_message/flow_call against an Execution
// Context, aborting on the first failing action and surfacing its index
// and kind.
package action

import (
	"context"
	"errors"

	"github.com/wyrdbound/grimoire/execctx"
	"github.com/wyrdbound/grimoire/host"
	"github.com/wyrdbound/grimoire/internal/grimerr"
	"github.com/wyrdbound/grimoire/model"
	"github.com/wyrdbound/grimoire/template"
)

// FlowCaller invokes a named sub-flow, used by the flow_call action. The
// engine package implements this (and injects itself here) to avoid a
// circular import between action and engine.
type FlowCaller interface {
	CallFlow(ctx context.Context, flowID string, inputs map[string]any) (map[string]any, error)
}

// TypeResolver resolves the declared type name for a reference path
// (used by validate_value), looked up against a flow's inputs/outputs/
// variables Param declarations. ok is false if path names no declared
// field, in which case validate_value is a no-op success.
type TypeResolver func(path string) (typeName string, ok bool)

// Evaluator runs action lists against an execctx.Context.
type Evaluator struct {
	Templater  *template.Templater
	Host       *host.Host
	FlowCaller FlowCaller
	TypeOf     TypeResolver
}

// Run executes actions in order, aborting and returning on the first
// failure. The returned error carries flowID/stepID/action index+kind.
func (e *Evaluator) Run(ctx context.Context, ec *execctx.Context, actions []model.Action, flowID, stepID string) error {
	for i, a := range actions {
		if err := e.runOne(ctx, ec, a); err != nil {
			return attachContext(err, flowID, stepID, i, a.Kind)
		}
	}
	return nil
}

func attachContext(err error, flowID, stepID string, index int, kind string) error {
	var ge *grimerr.Error
	if errors.As(err, &ge) {
		return ge.WithFlow(flowID).WithStep(stepID).WithAction(index, kind)
	}
	return grimerr.Wrap(grimerr.ValidationError, err).WithFlow(flowID).WithStep(stepID).WithAction(index, kind)
}

func (e *Evaluator) renderPath(ec *execctx.Context, path string) (string, error) {
	return e.Templater.Render(path, ec.TemplateContext())
}

func (e *Evaluator) runOne(ctx context.Context, ec *execctx.Context, a model.Action) error {
	switch a.Kind {
	case "set_value":
		return e.setValue(ec, a)
	case "swap_values":
		return e.swapValues(ec, a)
	case "display_value":
		return e.displayValue(ctx, ec, a)
	case "validate_value":
		return e.validateValue(ctx, ec, a)
	case "log_event":
		return e.logEvent(ctx, ec, a)
	case "log_message":
		return e.logMessage(ctx, ec, a)
	case "flow_call":
		return e.flowCall(ctx, ec, a)
	default:
		return grimerr.New(grimerr.UnknownStepKind, "unknown action kind: "+a.Kind)
	}
}

func (e *Evaluator) setValue(ec *execctx.Context, a model.Action) error {
	path, err := e.renderPath(ec, a.Path)
	if err != nil {
		return err
	}
	value := a.Value
	if s, ok := a.Value.(string); ok {
		rendered, err := e.Templater.Render(s, ec.TemplateContext())
		if err != nil {
			return err
		}
		value = rendered
	}
	return ec.Set(path, value)
}

func (e *Evaluator) swapValues(ec *execctx.Context, a model.Action) error {
	p1, err := e.renderPath(ec, a.Path1)
	if err != nil {
		return err
	}
	p2, err := e.renderPath(ec, a.Path2)
	if err != nil {
		return err
	}
	return ec.Swap(p1, p2)
}

func (e *Evaluator) displayValue(ctx context.Context, ec *execctx.Context, a model.Action) error {
	path, err := e.renderPath(ec, a.Path)
	if err != nil {
		return err
	}
	v, err := ec.Get(path)
	if err != nil {
		return err
	}
	if e.Host != nil && e.Host.Interaction != nil {
		return e.Host.Interaction.Display(ctx, v)
	}
	return nil
}

func (e *Evaluator) validateValue(ctx context.Context, ec *execctx.Context, a model.Action) error {
	path, err := e.renderPath(ec, a.Path)
	if err != nil {
		return err
	}
	v, err := ec.Get(path)
	if err != nil {
		return err
	}
	if e.TypeOf == nil || e.Host == nil || e.Host.Validator == nil {
		return nil
	}
	typeName, ok := e.TypeOf(path)
	if !ok {
		return nil
	}
	if errs := e.Host.Validator.Validate(ctx, typeName, v); len(errs) > 0 {
		return grimerr.New(grimerr.ValidationError, errs[0].Message).WithPath(path)
	}
	return nil
}

func (e *Evaluator) logEvent(ctx context.Context, ec *execctx.Context, a model.Action) error {
	rendered, err := e.Templater.RenderDeep(a.EventData, ec.TemplateContext())
	if err != nil {
		return err
	}
	if e.Host != nil && e.Host.Events != nil {
		e.Host.Events.LogEvent(ctx, a.EventType, rendered.(map[string]any))
	}
	return nil
}

func (e *Evaluator) logMessage(ctx context.Context, ec *execctx.Context, a model.Action) error {
	msg, err := e.Templater.Render(a.Message, ec.TemplateContext())
	if err != nil {
		return err
	}
	if e.Host != nil && e.Host.Events != nil {
		e.Host.Events.LogMessage(ctx, msg)
	}
	return nil
}

func (e *Evaluator) flowCall(ctx context.Context, ec *execctx.Context, a model.Action) error {
	if e.FlowCaller == nil {
		return grimerr.New(grimerr.UnknownFlow, "no flow caller configured")
	}
	rendered, err := e.Templater.RenderDeep(a.FlowCall.Inputs, ec.TemplateContext())
	if err != nil {
		return err
	}
	outputs, err := e.FlowCaller.CallFlow(ctx, a.FlowCall.Flow, rendered.(map[string]any))
	if err != nil {
		return err
	}
	ec.BindResult(outputs)
	return nil
}
