package defaultcollab

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiceRollerDeterministicWithSeededSource(t *testing.T) {
	d := &DiceRoller{Rand: rand.New(rand.NewPCG(1, 2))}
	roll, err := d.Roll(context.Background(), "2d6+3")
	require.NoError(t, err)
	assert.Greater(t, roll.Total, 4) // 2d6 minimum 2, plus 3
	assert.Contains(t, roll.Detail, "2d6+3")
}

func TestDiceRollerInvalidNotation(t *testing.T) {
	d := &DiceRoller{}
	_, err := d.Roll(context.Background(), "not-dice")
	require.Error(t, err)
}

func TestDiceRollerSingleDie(t *testing.T) {
	d := &DiceRoller{Rand: rand.New(rand.NewPCG(1, 2))}
	roll, err := d.Roll(context.Background(), "1d1")
	require.NoError(t, err)
	assert.Equal(t, 1, roll.Total)
}
