package dsl

import (
	"github.com/wyrdbound/grimoire/internal/grimerr"
	"github.com/wyrdbound/grimoire/model"
)

// Lint performs the semantic, cross-step checks JSON Schema can't express:
// duplicate step ids, step and static-choice next_step references to step
// ids that don't exist in the flow (§7's DuplicateStepId/UnknownStepReference),
// and parallel set on a player_choice or player_input step (SchemaError).
// flow_call targets are not checked.
func Lint(flow *model.Flow) []error {
	var errs []error

	seen := make(map[string]bool, len(flow.Steps))
	ids := make(map[string]bool, len(flow.Steps))
	for _, s := range flow.Steps {
		if seen[s.ID] {
			errs = append(errs, grimerr.New(grimerr.DuplicateStepId, s.ID).WithFlow(flow.ID).WithStep(s.ID))
		}
		seen[s.ID] = true
		ids[s.ID] = true
	}

	checkRef := func(stepID, ref string) {
		if ref != "" && !ids[ref] {
			errs = append(errs, grimerr.New(grimerr.UnknownStepReference, ref).WithFlow(flow.ID).WithStep(stepID))
		}
	}

	for _, s := range flow.Steps {
		checkRef(s.ID, s.NextStep)
		if s.PlayerChoice != nil {
			for _, c := range s.PlayerChoice.Choices {
				checkRef(s.ID, c.NextStep)
			}
		}
		if s.Parallel && (s.Type == model.KindPlayerChoice || s.Type == model.KindPlayerInput) {
			errs = append(errs, grimerr.New(grimerr.SchemaError, "parallel is not valid on an interactive step").WithFlow(flow.ID).WithStep(s.ID))
		}
	}

	return errs
}
