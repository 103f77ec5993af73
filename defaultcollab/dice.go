// Package defaultcollab ships minimal, deterministic-when-seeded
// implementations of the five external collaborator interfaces (host
// package), so the engine is runnable and testable end-to-end without a
// caller supplying its own. These are intentionally minimal — a real RPG
// engine deployment is expected to substitute its own Host.
package defaultcollab

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"

	"github.com/wyrdbound/grimoire/host"
	"github.com/wyrdbound/grimoire/internal/grimerr"
)

// diceNotationRe parses "NdM", "NdM+K", "NdM-K" notation, the same regex
// shape as the DnD-Game rule engine's parseDiceNotation.
var diceNotationRe = regexp.MustCompile(`^\s*(\d+)d(\d+)\s*([+-]\s*\d+)?\s*$`)

// DiceRoller evaluates NdM[+/-K] dice notation with math/rand/v2.
type DiceRoller struct {
	// Rand, if non-nil, is used instead of the package-level source —
	// set it in tests for determinism.
	Rand *rand.Rand
}

func (d *DiceRoller) intn(n int) int {
	if d.Rand != nil {
		return d.Rand.IntN(n)
	}
	return rand.IntN(n)
}

func (d *DiceRoller) Roll(ctx context.Context, expr string) (host.DiceRoll, error) {
	m := diceNotationRe.FindStringSubmatch(expr)
	if m == nil {
		return host.DiceRoll{}, grimerr.New(grimerr.DiceError, "invalid dice notation: "+expr)
	}
	count, _ := strconv.Atoi(m[1])
	sides, _ := strconv.Atoi(m[2])
	if count <= 0 || sides <= 0 {
		return host.DiceRoll{}, grimerr.New(grimerr.DiceError, "dice count and sides must be positive: "+expr)
	}
	modifier := 0
	if mod := strings.ReplaceAll(m[3], " ", ""); mod != "" {
		modifier, _ = strconv.Atoi(mod)
	}

	rolls := make([]int, count)
	total := 0
	for i := 0; i < count; i++ {
		roll := d.intn(sides) + 1
		rolls[i] = roll
		total += roll
	}
	total += modifier

	detail := fmt.Sprintf("%s: %v", strings.TrimSpace(expr), rolls)
	if modifier != 0 {
		detail = fmt.Sprintf("%s %+d", detail, modifier)
	}
	detail = fmt.Sprintf("%s = %d", detail, total)

	return host.DiceRoll{Total: total, Detail: detail}, nil
}
