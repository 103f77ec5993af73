package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyrdbound/grimoire/action"
	"github.com/wyrdbound/grimoire/execctx"
	"github.com/wyrdbound/grimoire/host"
	"github.com/wyrdbound/grimoire/internal/grimerr"
	"github.com/wyrdbound/grimoire/model"
	"github.com/wyrdbound/grimoire/template"
)

type fakeDice struct {
	total  int
	detail string
}

func (f *fakeDice) Roll(ctx context.Context, expr string) (host.DiceRoll, error) {
	return host.DiceRoll{Total: f.total, Detail: f.detail}, nil
}

type fakeTables struct {
	rows   []host.TableEntry
	call   int
	values any
}

func (f *fakeTables) RollTable(ctx context.Context, name string) (host.TableEntry, error) {
	if f.call >= len(f.rows) {
		return host.TableEntry{}, grimerr.New(grimerr.TableError, "no more rows")
	}
	row := f.rows[f.call]
	f.call++
	return row, nil
}

func (f *fakeTables) Values(ctx context.Context, name string) (any, error) {
	return f.values, nil
}

type fakeInteraction struct {
	selected []string
	prompted string
}

func (f *fakeInteraction) PresentChoice(ctx context.Context, prompt string, choices []host.Choice, selectionCount int) ([]string, error) {
	f.prompted = prompt
	return f.selected, nil
}

func (f *fakeInteraction) PromptText(ctx context.Context, prompt string) (string, error) {
	return "answer", nil
}

func (f *fakeInteraction) Display(ctx context.Context, value any) error { return nil }

func newDispatcher(h *host.Host) *Dispatcher {
	return &Dispatcher{
		Templater: template.NewTemplater(),
		Host:      h,
		Actions:   &action.Evaluator{Templater: template.NewTemplater(), Host: h},
	}
}

func TestDiceRollBindsTotalAndDetail(t *testing.T) {
	h := &host.Host{Dice: &fakeDice{total: 9, detail: "3d4: [2,3,4] = 9"}}
	d := newDispatcher(h)
	ec := execctx.New(nil)
	step := &model.Step{ID: "s1", Type: model.KindDiceRoll, DiceRoll: &model.DiceRollSpec{Roll: "3d4"}}

	out, err := d.Dispatch(context.Background(), ec, "flow1", step)
	require.NoError(t, err)
	m := out.Result.(map[string]any)
	assert.Equal(t, 9, m["total"])
	assert.Equal(t, "3d4: [2,3,4] = 9", m["detail"])
}

func TestDiceSequenceRunsInnerActionsPerItem(t *testing.T) {
	h := &host.Host{Dice: &fakeDice{total: 1, detail: "d6: [1] = 1"}}
	d := newDispatcher(h)
	ec := execctx.New(nil)
	step := &model.Step{
		ID:   "s2",
		Type: model.KindDiceSequence,
		DiceSequence: &model.DiceSequenceSpec{
			Items: []any{"a", "b"},
			Roll:  "1d6",
			Actions: []model.Action{
				{Kind: "set_value", Path: "outputs.m.{{ item }}", Value: "{{ result.total }}"},
			},
		},
	}

	out, err := d.Dispatch(context.Background(), ec, "flow1", step)
	require.NoError(t, err)
	results := out.Result.([]any)
	assert.Len(t, results, 2)

	v, err := ec.Get("outputs.m.a")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
	v, err = ec.Get("outputs.m.b")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestStaticPlayerChoiceBindsIDAndHonorsNextStep(t *testing.T) {
	h := &host.Host{Interaction: &fakeInteraction{selected: []string{"fight"}}}
	d := newDispatcher(h)
	ec := execctx.New(nil)
	step := &model.Step{
		ID:     "s3",
		Type:   model.KindPlayerChoice,
		Prompt: "what do you do?",
		PlayerChoice: &model.PlayerChoiceSpec{
			Choices: []model.Choice{
				{ID: "fight", Label: "Fight", NextStep: "combat"},
				{ID: "flee", Label: "Flee", NextStep: "escape"},
			},
		},
	}

	out, err := d.Dispatch(context.Background(), ec, "flow1", step)
	require.NoError(t, err)
	assert.Equal(t, "fight", out.Result)
	assert.Equal(t, "combat", out.NextStep)
}

func TestDynamicTableChoiceDrawsSelectionCountRows(t *testing.T) {
	tables := &fakeTables{rows: []host.TableEntry{
		{Entry: "goblin", Roll: host.DiceRoll{Total: 1, Detail: "d6: 1"}},
		{Entry: "orc", Roll: host.DiceRoll{Total: 2, Detail: "d6: 2"}},
	}}
	inter := &fakeInteraction{selected: []string{"0"}}
	h := &host.Host{Tables: tables, Interaction: inter}
	d := newDispatcher(h)
	ec := execctx.New(nil)
	step := &model.Step{
		ID:   "s4",
		Type: model.KindPlayerChoice,
		PlayerChoice: &model.PlayerChoiceSpec{
			ChoiceSource: &model.ChoiceSource{
				Table:          "random-encounter",
				DisplayFormat:  "{{ entry }}",
				SelectionCount: 2,
			},
		},
	}

	out, err := d.Dispatch(context.Background(), ec, "flow1", step)
	require.NoError(t, err)
	assert.Equal(t, "0", out.Result)
	assert.Equal(t, 2, tables.call)
	assert.Empty(t, out.NextStep)
}

func TestTableRollBindsEntryAndRollResult(t *testing.T) {
	tables := &fakeTables{rows: []host.TableEntry{
		{Entry: "a bent iron key", Roll: host.DiceRoll{Total: 4, Detail: "d8: 4"}},
	}}
	h := &host.Host{Tables: tables}
	d := newDispatcher(h)
	ec := execctx.New(nil)
	step := &model.Step{
		ID:   "s5",
		Type: model.KindTableRoll,
		TableRoll: &model.TableRollSpec{
			Tables: []model.TableRollEntry{{Table: "trinkets"}},
		},
	}

	out, err := d.Dispatch(context.Background(), ec, "flow1", step)
	require.NoError(t, err)
	m := out.Result.(map[string]any)
	assert.Equal(t, "a bent iron key", m["entry"])
	rr := m["roll_result"].(map[string]any)
	assert.Equal(t, 4, rr["total"])
}

func TestUnknownStepKindIsFatal(t *testing.T) {
	d := newDispatcher(&host.Host{})
	ec := execctx.New(nil)
	step := &model.Step{ID: "s6", Type: "not_a_real_kind"}

	_, err := d.Dispatch(context.Background(), ec, "flow1", step)
	require.Error(t, err)
	var ge *grimerr.Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, grimerr.UnknownStepKind, ge.Code)
}
