package dispatch

import (
	"context"
	"sort"
	"strconv"

	"github.com/wyrdbound/grimoire/execctx"
	"github.com/wyrdbound/grimoire/host"
	"github.com/wyrdbound/grimoire/internal/grimerr"
	"github.com/wyrdbound/grimoire/model"
)

func (d *Dispatcher) playerChoice(ctx context.Context, ec *execctx.Context, flowID string, step *model.Step) (Outcome, error) {
	spec := step.PlayerChoice
	switch {
	case len(spec.Choices) > 0:
		return d.staticChoice(ctx, ec, flowID, step, spec.Choices)
	case spec.ChoiceSource != nil:
		return d.dynamicChoice(ctx, ec, flowID, step, spec.ChoiceSource)
	default:
		return Outcome{}, grimerr.New(grimerr.SchemaError, "player_choice has neither choices nor choice_source").WithFlow(flowID).WithStep(step.ID)
	}
}

// staticChoice presents the flow author's fixed menu, binds result to the
// chosen id, and runs that choice's own actions (§4.4's choice.Actions),
// honoring an explicit choice.NextStep override.
func (d *Dispatcher) staticChoice(ctx context.Context, ec *execctx.Context, flowID string, step *model.Step, choices []model.Choice) (Outcome, error) {
	opts := make([]host.Choice, len(choices))
	byID := make(map[string]model.Choice, len(choices))
	for i, c := range choices {
		label, err := d.Templater.Render(c.Label, ec.TemplateContext())
		if err != nil {
			return Outcome{}, wrapStep(err, flowID, step.ID)
		}
		opts[i] = host.Choice{ID: c.ID, Label: label}
		byID[c.ID] = c
	}

	selected, err := d.Host.Interaction.PresentChoice(ctx, step.Prompt, opts, 1)
	if err != nil {
		return Outcome{}, wrapStep(err, flowID, step.ID)
	}
	if len(selected) == 0 {
		return Outcome{}, wrapStep(grimerr.New(grimerr.Cancelled, "no selection made"), flowID, step.ID)
	}
	chosenID := selected[0]
	chosen, ok := byID[chosenID]
	if !ok {
		return Outcome{}, wrapStep(grimerr.New(grimerr.ValidationError, "unknown choice id: "+chosenID), flowID, step.ID)
	}

	ec.BindResult(chosenID)
	if err := d.Actions.Run(ctx, ec, chosen.Actions, flowID, step.ID); err != nil {
		return Outcome{}, err
	}
	return Outcome{Result: chosenID, NextStep: chosen.NextStep}, nil
}

// dynamicChoice builds its menu from a table roll or a table_from_values
// collection rather than the flow author's literal list. A dynamic source
// never carries its own per-option actions or next_step (SPEC_FULL.md §9):
// transition after a dynamic pick is always via the step's own next_step.
func (d *Dispatcher) dynamicChoice(ctx context.Context, ec *execctx.Context, flowID string, step *model.Step, src *model.ChoiceSource) (Outcome, error) {
	selCount := src.SelectionCount
	if selCount <= 0 {
		selCount = 1
	}

	var opts []host.Choice
	var err error
	switch {
	case src.Table != "":
		opts, err = d.drawTableChoices(ctx, ec, src.Table, src.DisplayFormat, selCount)
	case src.TableFromValues != "":
		opts, err = d.enumerateValueChoices(ctx, ec, src.TableFromValues, src.DisplayFormat)
	default:
		err = grimerr.New(grimerr.SchemaError, "choice_source needs table or table_from_values")
	}
	if err != nil {
		return Outcome{}, wrapStep(err, flowID, step.ID)
	}

	selected, err := d.Host.Interaction.PresentChoice(ctx, step.Prompt, opts, selCount)
	if err != nil {
		return Outcome{}, wrapStep(err, flowID, step.ID)
	}
	result := bindSelection(selected)
	ec.BindResult(result)
	return Outcome{Result: result}, nil
}

func (d *Dispatcher) drawTableChoices(ctx context.Context, ec *execctx.Context, table, displayFormat string, count int) ([]host.Choice, error) {
	opts := make([]host.Choice, 0, count)
	for i := 0; i < count; i++ {
		entry, err := d.Host.Tables.RollTable(ctx, table)
		if err != nil {
			return nil, err
		}
		tc := ec.TemplateContext()
		tc["entry"] = entry.Entry
		label, err := d.Templater.Render(displayFormat, tc)
		if err != nil {
			return nil, err
		}
		opts = append(opts, host.Choice{ID: strconv.Itoa(i), Label: label})
	}
	return opts, nil
}

func (d *Dispatcher) enumerateValueChoices(ctx context.Context, ec *execctx.Context, ref, displayFormat string) ([]host.Choice, error) {
	values, err := d.resolveCollection(ctx, ec, ref)
	if err != nil {
		return nil, err
	}
	switch v := values.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		opts := make([]host.Choice, 0, len(keys))
		for _, k := range keys {
			tc := ec.TemplateContext()
			tc["key"] = k
			tc["value"] = v[k]
			label, err := d.Templater.Render(displayFormat, tc)
			if err != nil {
				return nil, err
			}
			opts = append(opts, host.Choice{ID: k, Label: label})
		}
		return opts, nil
	case []any:
		opts := make([]host.Choice, 0, len(v))
		for i, item := range v {
			tc := ec.TemplateContext()
			tc["key"] = i
			tc["value"] = item
			label, err := d.Templater.Render(displayFormat, tc)
			if err != nil {
				return nil, err
			}
			opts = append(opts, host.Choice{ID: strconv.Itoa(i), Label: label})
		}
		return opts, nil
	default:
		return nil, grimerr.New(grimerr.TableError, "table_from_values did not resolve to a list or map")
	}
}

// resolveCollection resolves a table_from_values reference: a {{ }}
// expression evaluates against the execution context (e.g. a
// variables/outputs path), while a bare name is looked up as a registered
// table's raw values.
func (d *Dispatcher) resolveCollection(ctx context.Context, ec *execctx.Context, ref string) (any, error) {
	if containsTemplate(ref) {
		return d.Templater.EvaluateExpression(ref, ec.TemplateContext())
	}
	if d.Host != nil && d.Host.Tables != nil {
		return d.Host.Tables.Values(ctx, ref)
	}
	return nil, grimerr.New(grimerr.TableError, "cannot resolve table_from_values: "+ref)
}

func containsTemplate(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '{' && s[i+1] == '{' {
			return true
		}
	}
	return false
}

// bindSelection mirrors static choice's singular-vs-plural result shape: a
// single pick binds the bare id, multiple picks bind a list.
func bindSelection(ids []string) any {
	if len(ids) == 1 {
		return ids[0]
	}
	out := make([]any, len(ids))
	for i, v := range ids {
		out[i] = v
	}
	return out
}
