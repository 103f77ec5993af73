// Package dispatch implements the Step Dispatcher (spec §4.5): one
// handler per step kind, producing a result binding and (for
// player_choice) a possible next-step override. Condition evaluation and
// pre/post-action execution around a step are the control loop's job
// (engine package); Dispatch only runs the per-kind domain operation and
// any actions nested inside that operation (dice_sequence's per-item
// actions, table_roll's per-entry actions, the selected player_choice's
// actions).
package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/wyrdbound/grimoire/action"
	"github.com/wyrdbound/grimoire/execctx"
	"github.com/wyrdbound/grimoire/host"
	"github.com/wyrdbound/grimoire/internal/grimerr"
	"github.com/wyrdbound/grimoire/model"
	"github.com/wyrdbound/grimoire/template"
)

// Outcome is what a step kind's handler produces: the value the control
// loop binds as the step's result, and an optional next-step override
// (only player_choice ever sets one).
type Outcome struct {
	Result   any
	NextStep string
}

// Dispatcher holds the collaborators every step-kind handler may need.
type Dispatcher struct {
	Templater  *template.Templater
	Host       *host.Host
	Actions    *action.Evaluator
	FlowCaller action.FlowCaller
}

// Dispatch routes to the handler for step.Type.
func (d *Dispatcher) Dispatch(ctx context.Context, ec *execctx.Context, flowID string, step *model.Step) (Outcome, error) {
	switch step.Type {
	case model.KindDiceRoll:
		return d.diceRoll(ctx, ec, flowID, step)
	case model.KindDiceSequence:
		return d.diceSequence(ctx, ec, flowID, step)
	case model.KindPlayerChoice:
		return d.playerChoice(ctx, ec, flowID, step)
	case model.KindTableRoll:
		return d.tableRoll(ctx, ec, flowID, step)
	case model.KindPlayerInput:
		return d.playerInput(ctx, ec, flowID, step)
	case model.KindLLMGeneration:
		return d.llmGeneration(ctx, ec, flowID, step)
	case model.KindNameGeneration:
		return d.nameGeneration(ctx, ec, flowID, step)
	case model.KindCompletion:
		return Outcome{}, nil
	case model.KindFlowCall:
		return d.flowCall(ctx, ec, flowID, step)
	default:
		return Outcome{}, grimerr.New(grimerr.UnknownStepKind, string(step.Type)).WithFlow(flowID).WithStep(step.ID)
	}
}

func wrapStep(err error, flowID, stepID string) error {
	var ge *grimerr.Error
	if errors.As(err, &ge) {
		return ge.WithFlow(flowID).WithStep(stepID)
	}
	return grimerr.Wrap(grimerr.UnknownStepKind, err).WithFlow(flowID).WithStep(stepID)
}

func (d *Dispatcher) diceRoll(ctx context.Context, ec *execctx.Context, flowID string, step *model.Step) (Outcome, error) {
	expr, err := d.Templater.Render(step.DiceRoll.Roll, ec.TemplateContext())
	if err != nil {
		return Outcome{}, wrapStep(err, flowID, step.ID)
	}
	roll, err := d.Host.Dice.Roll(ctx, expr)
	if err != nil {
		return Outcome{}, wrapStep(err, flowID, step.ID)
	}
	return Outcome{Result: map[string]any{"total": roll.Total, "detail": roll.Detail}}, nil
}

func (d *Dispatcher) diceSequence(ctx context.Context, ec *execctx.Context, flowID string, step *model.Step) (Outcome, error) {
	spec := step.DiceSequence
	if step.Parallel {
		return d.diceSequenceParallel(ctx, ec, flowID, step)
	}
	results := make([]any, 0, len(spec.Items))
	for _, item := range spec.Items {
		ec.BindItem(item)
		expr, err := d.Templater.Render(spec.Roll, ec.TemplateContext())
		if err != nil {
			return Outcome{}, wrapStep(err, flowID, step.ID)
		}
		roll, err := d.Host.Dice.Roll(ctx, expr)
		if err != nil {
			return Outcome{}, wrapStep(err, flowID, step.ID)
		}
		r := map[string]any{"total": roll.Total, "detail": roll.Detail}
		ec.BindResult(r)
		if err := d.Actions.Run(ctx, ec, spec.Actions, flowID, step.ID); err != nil {
			return Outcome{}, err
		}
		results = append(results, r)
	}
	return Outcome{Result: results}, nil
}

// diceSequenceParallel runs each item's roll concurrently (§4.6's parallel
// step units), serializing context mutation (item/result bind + actions)
// through mu so the final state is equivalent to some sequential
// interleaving respecting each unit's own action order (§5).
func (d *Dispatcher) diceSequenceParallel(ctx context.Context, ec *execctx.Context, flowID string, step *model.Step) (Outcome, error) {
	spec := step.DiceSequence
	results := make([]any, len(spec.Items))
	errs := make([]error, len(spec.Items))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i, item := range spec.Items {
		wg.Add(1)
		go func(i int, item any) {
			defer wg.Done()
			mu.Lock()
			ec.BindItem(item)
			expr, err := d.Templater.Render(spec.Roll, ec.TemplateContext())
			mu.Unlock()
			if err != nil {
				errs[i] = wrapStep(err, flowID, step.ID)
				return
			}
			roll, err := d.Host.Dice.Roll(ctx, expr)
			if err != nil {
				errs[i] = wrapStep(err, flowID, step.ID)
				return
			}
			r := map[string]any{"total": roll.Total, "detail": roll.Detail}
			mu.Lock()
			ec.BindResult(r)
			err = d.Actions.Run(ctx, ec, spec.Actions, flowID, step.ID)
			mu.Unlock()
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = r
		}(i, item)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return Outcome{}, err
		}
	}
	return Outcome{Result: results}, nil
}

func (d *Dispatcher) tableRoll(ctx context.Context, ec *execctx.Context, flowID string, step *model.Step) (Outcome, error) {
	spec := step.TableRoll
	var results []any
	var err error
	if step.Parallel {
		results, err = d.tableRollParallel(ctx, ec, flowID, step)
	} else {
		results, err = d.tableRollSequential(ctx, ec, flowID, step)
	}
	if err != nil {
		return Outcome{}, err
	}
	var final any = results
	if len(results) == 1 {
		final = results[0]
	}
	return Outcome{Result: final}, nil
}

func (d *Dispatcher) tableRollSequential(ctx context.Context, ec *execctx.Context, flowID string, step *model.Step) ([]any, error) {
	spec := step.TableRoll
	results := make([]any, 0, len(spec.Tables))
	for _, entry := range spec.Tables {
		tableName, err := d.Templater.Render(entry.Table, ec.TemplateContext())
		if err != nil {
			return nil, wrapStep(err, flowID, step.ID)
		}
		te, err := d.Host.Tables.RollTable(ctx, tableName)
		if err != nil {
			return nil, wrapStep(err, flowID, step.ID)
		}
		r := map[string]any{
			"entry":       te.Entry,
			"roll_result": map[string]any{"total": te.Roll.Total, "detail": te.Roll.Detail},
		}
		ec.BindResult(r)
		if err := d.Actions.Run(ctx, ec, entry.Actions, flowID, step.ID); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// tableRollParallel runs each table entry concurrently, mirroring
// diceSequenceParallel's serialize-mutation-under-mu approach.
func (d *Dispatcher) tableRollParallel(ctx context.Context, ec *execctx.Context, flowID string, step *model.Step) ([]any, error) {
	spec := step.TableRoll
	results := make([]any, len(spec.Tables))
	errs := make([]error, len(spec.Tables))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i, entry := range spec.Tables {
		wg.Add(1)
		go func(i int, entry model.TableRollEntry) {
			defer wg.Done()
			mu.Lock()
			tableName, err := d.Templater.Render(entry.Table, ec.TemplateContext())
			mu.Unlock()
			if err != nil {
				errs[i] = wrapStep(err, flowID, step.ID)
				return
			}
			te, err := d.Host.Tables.RollTable(ctx, tableName)
			if err != nil {
				errs[i] = wrapStep(err, flowID, step.ID)
				return
			}
			r := map[string]any{
				"entry":       te.Entry,
				"roll_result": map[string]any{"total": te.Roll.Total, "detail": te.Roll.Detail},
			}
			mu.Lock()
			ec.BindResult(r)
			err = d.Actions.Run(ctx, ec, entry.Actions, flowID, step.ID)
			mu.Unlock()
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = r
		}(i, entry)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (d *Dispatcher) playerInput(ctx context.Context, ec *execctx.Context, flowID string, step *model.Step) (Outcome, error) {
	prompt, err := d.Templater.Render(step.Prompt, ec.TemplateContext())
	if err != nil {
		return Outcome{}, wrapStep(err, flowID, step.ID)
	}
	text, err := d.Host.Interaction.PromptText(ctx, prompt)
	if err != nil {
		return Outcome{}, wrapStep(err, flowID, step.ID)
	}
	return Outcome{Result: text}, nil
}

func (d *Dispatcher) llmGeneration(ctx context.Context, ec *execctx.Context, flowID string, step *model.Step) (Outcome, error) {
	spec := step.LLMGeneration
	rendered, err := d.Templater.RenderDeep(spec.PromptData, ec.TemplateContext())
	if err != nil {
		return Outcome{}, wrapStep(err, flowID, step.ID)
	}
	data, _ := rendered.(map[string]any)
	text, err := d.Host.LLM.Complete(ctx, spec.PromptID, data, spec.LLMSettings)
	if err != nil {
		return Outcome{}, wrapStep(grimerr.Wrap(grimerr.LLMError, err), flowID, step.ID)
	}
	return Outcome{Result: text}, nil
}

// nameGenDefaults mirrors §4.5's documented defaults for name_generation.
var nameGenDefaults = map[string]any{
	"max_length": 15,
	"corpus":     "generic-fantasy",
	"segmenter":  "fantasy",
	"algorithm":  "bayesian",
}

func (d *Dispatcher) nameGeneration(ctx context.Context, ec *execctx.Context, flowID string, step *model.Step) (Outcome, error) {
	spec := step.NameGeneration
	generator := spec.Generator
	if generator == "" {
		generator = "wyrdbound-rng"
	}
	settings := make(map[string]any, len(nameGenDefaults))
	for k, v := range nameGenDefaults {
		settings[k] = v
	}
	for k, v := range spec.Settings {
		settings[k] = v
	}
	obj, err := d.Host.Names.Generate(ctx, generator, settings)
	if err != nil {
		return Outcome{}, wrapStep(grimerr.Wrap(grimerr.GeneratorError, err), flowID, step.ID)
	}
	return Outcome{Result: obj}, nil
}

func (d *Dispatcher) flowCall(ctx context.Context, ec *execctx.Context, flowID string, step *model.Step) (Outcome, error) {
	spec := step.FlowCall
	rendered, err := d.Templater.RenderDeep(spec.Inputs, ec.TemplateContext())
	if err != nil {
		return Outcome{}, wrapStep(err, flowID, step.ID)
	}
	inputs, _ := rendered.(map[string]any)
	if d.FlowCaller == nil {
		return Outcome{}, grimerr.New(grimerr.UnknownFlow, "no flow caller configured").WithFlow(flowID).WithStep(step.ID)
	}
	outputs, err := d.FlowCaller.CallFlow(ctx, spec.Flow, inputs)
	if err != nil {
		return Outcome{}, wrapStep(err, flowID, step.ID)
	}
	return Outcome{Result: outputs}, nil
}
