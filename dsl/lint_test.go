package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyrdbound/grimoire/internal/grimerr"
)

func TestLintCatchesDuplicateStepID(t *testing.T) {
	flow, err := ParseFromString(`
id: dup-flow
kind: flow
name: Dup Flow
steps:
  - id: s1
    type: completion
  - id: s1
    type: completion
`)
	require.NoError(t, err)
	errs := Lint(flow)
	require.Len(t, errs, 1)
	assert.True(t, grimerr.Is(errs[0], grimerr.DuplicateStepId))
}

func TestLintCatchesUnknownStepReference(t *testing.T) {
	flow, err := ParseFromString(`
id: ref-flow
kind: flow
name: Ref Flow
steps:
  - id: s1
    type: completion
    next_step: nowhere
`)
	require.NoError(t, err)
	errs := Lint(flow)
	require.Len(t, errs, 1)
	assert.True(t, grimerr.Is(errs[0], grimerr.UnknownStepReference))
}

func TestLintRejectsParallelPlayerChoice(t *testing.T) {
	flow, err := ParseFromString(`
id: bad-parallel
kind: flow
name: Bad Parallel
steps:
  - id: s1
    type: player_choice
    parallel: true
    choices:
      - id: a
        label: A
`)
	require.NoError(t, err)
	errs := Lint(flow)
	require.Len(t, errs, 1)
	assert.True(t, grimerr.Is(errs[0], grimerr.SchemaError))
}

func TestLintPassesCleanFlow(t *testing.T) {
	flow, err := ParseFromString(`
id: clean-flow
kind: flow
name: Clean Flow
steps:
  - id: s1
    type: dice_roll
    roll: "1d6"
    next_step: s2
  - id: s2
    type: completion
`)
	require.NoError(t, err)
	assert.Empty(t, Lint(flow))
}
