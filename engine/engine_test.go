package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyrdbound/grimoire/checkpoint"
	"github.com/wyrdbound/grimoire/dsl"
	"github.com/wyrdbound/grimoire/host"
	"github.com/wyrdbound/grimoire/registry"
)

// scriptedInteraction returns one queued selection per PresentChoice
// call, for deterministic player_choice tests.
type scriptedInteraction struct {
	selections [][]string
	calls      int
}

func (s *scriptedInteraction) PresentChoice(ctx context.Context, prompt string, choices []host.Choice, selectionCount int) ([]string, error) {
	sel := s.selections[s.calls]
	s.calls++
	return sel, nil
}

func (s *scriptedInteraction) PromptText(ctx context.Context, prompt string) (string, error) {
	return "", nil
}

func (s *scriptedInteraction) Display(ctx context.Context, value any) error { return nil }

func mustParse(t *testing.T, yamlDoc string) *registry.Registry {
	t.Helper()
	flow, err := dsl.ParseFromString(yamlDoc)
	require.NoError(t, err)
	reg := registry.New()
	reg.Register(flow)
	return reg
}

// TestSingleDiceRollBindsOutput covers §8 scenario 1.
func TestSingleDiceRollBindsOutput(t *testing.T) {
	reg := mustParse(t, `
id: single-roll
kind: flow
name: Single Roll
outputs:
  - type: int
    id: x
steps:
  - id: r
    type: dice_roll
    roll: "1d1"
    actions:
      - set_value:
          path: outputs.x
          value: "{{ result.total }}"
`)
	flow, err := reg.Get("single-roll")
	require.NoError(t, err)

	eng := New(reg, nil)
	out, err := eng.Run(context.Background(), flow, nil, NewDefaultHost())
	require.NoError(t, err)
	require.NotNil(t, out.Outputs)
	assert.Equal(t, "1", out.Outputs["x"])
}

// TestDiceSequenceBindsPerItem covers §8 scenario 2.
func TestDiceSequenceBindsPerItem(t *testing.T) {
	reg := mustParse(t, `
id: seq-flow
kind: flow
name: Sequence Flow
outputs:
  - type: dict
    id: m
steps:
  - id: seq
    type: dice_sequence
    sequence:
      items: ["a", "b"]
      roll: "1d1"
      actions:
        - set_value:
            path: "outputs.m.{{ item }}"
            value: "{{ result.total }}"
`)
	flow, err := reg.Get("seq-flow")
	require.NoError(t, err)

	eng := New(reg, nil)
	out, err := eng.Run(context.Background(), flow, nil, NewDefaultHost())
	require.NoError(t, err)
	m, ok := out.Outputs["m"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1", m["a"])
	assert.Equal(t, "1", m["b"])
}

// TestPlayerChoiceOverridesNextStep covers §8 scenario 3.
func TestPlayerChoiceOverridesNextStep(t *testing.T) {
	reg := mustParse(t, `
id: choice-flow
kind: flow
name: Choice Flow
outputs:
  - type: str
    id: landed
steps:
  - id: c
    type: player_choice
    next_step: stay_step
    choices:
      - id: go
        label: Go
        next_step: end
      - id: stay
        label: Stay
  - id: stay_step
    type: completion
    actions:
      - set_value:
          path: outputs.landed
          value: stay_step
  - id: end
    type: completion
    actions:
      - set_value:
          path: outputs.landed
          value: end
`)
	flow, err := reg.Get("choice-flow")
	require.NoError(t, err)

	h := NewDefaultHost()
	h.Interaction = &scriptedInteraction{selections: [][]string{{"go"}}}

	eng := New(reg, nil)
	out, err := eng.Run(context.Background(), flow, nil, h)
	require.NoError(t, err)
	assert.Equal(t, "end", out.Outputs["landed"])
}

// TestSubFlowOutputMarshaling covers §8 scenario 4.
func TestSubFlowOutputMarshaling(t *testing.T) {
	reg := registry.New()

	child, err := dsl.ParseFromString(`
id: child
kind: flow
name: Child
outputs:
  - type: str
    id: name
steps:
  - id: c1
    type: completion
    actions:
      - set_value:
          path: outputs.name
          value: "Rin"
`)
	require.NoError(t, err)
	reg.Register(child)

	parent, err := dsl.ParseFromString(`
id: parent
kind: flow
name: Parent
outputs:
  - type: str
    id: n
steps:
  - id: call
    type: flow_call
    flow: child
    next_step: done
  - id: done
    type: completion
    actions:
      - set_value:
          path: outputs.n
          value: "{{ result.name }}"
`)
	require.NoError(t, err)
	reg.Register(parent)

	eng := New(reg, nil)
	out, err := eng.Run(context.Background(), parent, nil, NewDefaultHost())
	require.NoError(t, err)
	assert.Equal(t, "Rin", out.Outputs["n"])
}

// TestConditionFalseSkipsStep covers §8 scenario 5.
func TestConditionFalseSkipsStep(t *testing.T) {
	reg := mustParse(t, `
id: cond-flow
kind: flow
name: Cond Flow
outputs:
  - type: str
    id: y
steps:
  - id: maybe
    type: dice_roll
    roll: "1d1"
    condition: "{{ variables.false_flag || '' }}"
    next_step: after
  - id: after
    type: completion
    actions:
      - set_value:
          path: outputs.y
          value: "{{ result || 'none' }}"
`)
	flow, err := reg.Get("cond-flow")
	require.NoError(t, err)

	eng := New(reg, nil)
	out, err := eng.Run(context.Background(), flow, nil, NewDefaultHost())
	require.NoError(t, err)
	assert.Equal(t, "none", out.Outputs["y"])
}

// TestResumeRoundTrip covers §8 scenario 6.
func TestResumeRoundTrip(t *testing.T) {
	reg := mustParse(t, `
id: resume-flow
kind: flow
name: Resume Flow
version: 1
resume_points: [s2]
outputs:
  - type: int
    id: total
steps:
  - id: s1
    type: dice_roll
    roll: "1d1"
    next_step: s2
  - id: s2
    type: dice_roll
    roll: "1d1"
    actions:
      - set_value:
          path: outputs.total
          value: "{{ result.total }}"
`)
	flow, err := reg.Get("resume-flow")
	require.NoError(t, err)

	store, err := checkpoint.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	eng := New(reg, store)

	pauseNow := true
	h := NewDefaultHost()
	h.Paused = func() bool { return pauseNow }

	paused, err := eng.Run(context.Background(), flow, nil, h)
	require.NoError(t, err)
	require.NotNil(t, paused.Ticket)
	assert.Nil(t, paused.Outputs)
	assert.Equal(t, "s2", paused.Ticket.StepID)

	pauseNow = false
	resumed, err := eng.Resume(context.Background(), paused.Ticket, h)
	require.NoError(t, err)
	require.NotNil(t, resumed.Outputs)

	straight, err := eng.Run(context.Background(), flow, nil, NewDefaultHost())
	require.NoError(t, err)
	assert.Equal(t, straight.Outputs, resumed.Outputs)
}

// TestResumeVersionMismatch ensures a stale ticket against a newer
// registered flow version is rejected (§4.8, §7 VersionMismatch).
func TestResumeVersionMismatch(t *testing.T) {
	reg := mustParse(t, `
id: v-flow
kind: flow
name: V Flow
version: 2
resume_points: [s2]
steps:
  - id: s1
    type: completion
    next_step: s2
  - id: s2
    type: completion
`)
	flow, err := reg.Get("v-flow")
	require.NoError(t, err)

	store, err := checkpoint.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	// flow is registered at version 2; the ticket claims version 1.
	stale := &checkpoint.Ticket{
		Token:       "stale",
		FlowID:      flow.ID,
		FlowVersion: 1,
		StepID:      "s2",
	}
	require.NoError(t, store.Save(context.Background(), stale))

	eng := New(reg, store)
	_, err = eng.Resume(context.Background(), stale, NewDefaultHost())
	require.Error(t, err)
}
