// Package host defines the collaborator interfaces consumed by the step
// dispatcher (spec §1, §6): dice, tables, names, a language model, and a
// validator, plus the user-interaction sink, event sink, pause signal, and
// cancellation signal that together form the Host bundle passed into
// engine.Run/Resume.
package host

import "context"

// DiceRoll is the result of a dice expression evaluation (§4.5).
type DiceRoll struct {
	Total  int
	Detail string
}

// DiceRoller evaluates dice notation expressions.
type DiceRoller interface {
	Roll(ctx context.Context, expr string) (DiceRoll, error)
}

// TableEntry is one row returned from a random-table roll.
type TableEntry struct {
	Entry  any
	Roll   DiceRoll
}

// TableStore consults named random tables.
type TableStore interface {
	RollTable(ctx context.Context, name string) (TableEntry, error)
	// Values returns the full backing collection for a table, used by
	// table_from_values choice sources to iterate key/value pairs.
	Values(ctx context.Context, name string) (any, error)
}

// NameGenerator produces a generated name object, conventionally at least
// containing a "name" key.
type NameGenerator interface {
	Generate(ctx context.Context, generator string, settings map[string]any) (map[string]any, error)
}

// LLMProvider completes a prompt against a language model.
type LLMProvider interface {
	Complete(ctx context.Context, promptID string, data map[string]any, settings map[string]any) (string, error)
}

// ValidationError describes one failed field during validate().
type ValidationError struct {
	Field   string
	Message string
}

// Validator checks a value against a declared type name.
type Validator interface {
	Validate(ctx context.Context, typeName string, value any) []ValidationError
}

// Choice is a single presented option for player_choice.
type Choice struct {
	ID    string
	Label string
}

// Interaction is the user-facing presentation/collection sink: choice
// presenter, free-text prompt, and display sink (§6).
type Interaction interface {
	PresentChoice(ctx context.Context, prompt string, choices []Choice, selectionCount int) ([]string, error)
	PromptText(ctx context.Context, prompt string) (string, error)
	Display(ctx context.Context, value any) error
}

// EventSink receives the structured log_event/log_message emissions of
// the action evaluator; the engine itself emits no events.
type EventSink interface {
	LogEvent(ctx context.Context, eventType string, data map[string]any)
	LogMessage(ctx context.Context, message string)
}

// Host bundles every collaborator the dispatcher and control loop
// consume. A caller may substitute any field; engine.NewDefaultHost builds
// a new Host holding the defaultcollab implementations, with Interaction,
// Events, Paused, and Cancelled left nil.
type Host struct {
	Dice        DiceRoller
	Tables      TableStore
	Names       NameGenerator
	LLM         LLMProvider
	Validator   Validator
	Interaction Interaction
	Events      EventSink

	// Paused is polled by the control loop before dispatching any step
	// whose id appears in the flow's resume_points (§4.8). A nil Paused
	// is treated as "never requests a pause".
	Paused func() bool

	// Cancelled is polled by the control loop at every step boundary
	// (§5); it is not consulted while a collaborator call is in progress.
	// A nil Cancelled is treated as "never cancels".
	Cancelled func() bool
}

func (h *Host) isCancelled() bool {
	return h.Cancelled != nil && h.Cancelled()
}

func (h *Host) isPauseRequested() bool {
	return h.Paused != nil && h.Paused()
}

// CheckCancelled reports whether a cancellation signal is pending; the
// engine's control loop consults it before each step.
func (h *Host) CheckCancelled() bool {
	return h.isCancelled()
}

// CheckPauseRequested reports whether the host wants the control loop to
// pause at the next eligible resume point.
func (h *Host) CheckPauseRequested() bool {
	return h.isPauseRequested()
}
