package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validFlowYAML = `
id: goblin-ambush
kind: flow
name: Goblin Ambush
version: 1
steps:
  - id: roll_initiative
    type: dice_roll
    roll: "1d20"
    next_step: done
  - id: done
    type: completion
`

func TestParseAndValidateValidFlow(t *testing.T) {
	flow, err := ParseFromString(validFlowYAML)
	require.NoError(t, err)
	require.NoError(t, Validate(flow))
	assert.Equal(t, "goblin-ambush", flow.ID)
	assert.Len(t, flow.Steps, 2)
}

func TestValidateRejectsMissingSteps(t *testing.T) {
	flow, err := ParseFromString(`
id: empty-flow
kind: flow
name: Empty Flow
steps: []
`)
	require.NoError(t, err)
	assert.Error(t, Validate(flow))
}

func TestParseRejectsUnknownStepType(t *testing.T) {
	_, err := ParseFromString(`
id: bad-flow
kind: flow
name: Bad Flow
steps:
  - id: s1
    type: not_a_real_kind
`)
	require.Error(t, err)
}
