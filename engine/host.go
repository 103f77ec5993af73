package engine

import (
	"github.com/wyrdbound/grimoire/defaultcollab"
	"github.com/wyrdbound/grimoire/host"
)

// NewDefaultHost builds a Host backed entirely by defaultcollab's
// minimal collaborators (§6B), so a flow is runnable end-to-end without
// a caller supplying its own dice/table/name/LLM/validator
// implementations. Interaction, Events, Paused, and Cancelled are left
// nil; a caller driving an interactive flow (player_choice,
// player_input) must still set Host.Interaction, the one collaborator
// defaultcollab does not ship a default for since presenting choices to
// a human is inherently an I/O surface owned by the caller (CLI,
// mcpserver, or test harness), not a domain default.
func NewDefaultHost() *host.Host {
	return &host.Host{
		Dice:      &defaultcollab.DiceRoller{},
		Tables:    &defaultcollab.TableStore{Tables: map[string][]defaultcollab.TableRow{}},
		Names:     &defaultcollab.NameGenerator{},
		LLM:       defaultcollab.LLMProvider{},
		Validator: defaultcollab.Validator{},
	}
}
