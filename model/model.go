// Package model defines the immutable flow document shape: flows, steps,
// and the per-kind step specifications of the GRIMOIRE flow format, plus
// the run/step-run bookkeeping records persisted alongside a flow's
// execution.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Flow is a loadable, immutable-after-load procedure document (§3).
type Flow struct {
	ID           string   `yaml:"id" json:"id"`
	Kind         string   `yaml:"kind" json:"kind"`
	Name         string   `yaml:"name" json:"name"`
	Description  string   `yaml:"description,omitempty" json:"description,omitempty"`
	Version      int      `yaml:"version,omitempty" json:"version,omitempty"`
	Inputs       []Param  `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Outputs      []Param  `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	Variables    []Param  `yaml:"variables,omitempty" json:"variables,omitempty"`
	Steps        []Step   `yaml:"steps" json:"steps"`
	ResumePoints []string `yaml:"resume_points,omitempty" json:"resume_points,omitempty"`
}

// Param describes one input, output, or variable slot.
type Param struct {
	Type     string `yaml:"type" json:"type"`
	ID       string `yaml:"id" json:"id"`
	Required bool   `yaml:"required,omitempty" json:"required,omitempty"`
	Validate bool   `yaml:"validate,omitempty" json:"validate,omitempty"`
}

// StepKind enumerates the eight step kinds from §4.5.
type StepKind string

const (
	KindDiceRoll       StepKind = "dice_roll"
	KindDiceSequence   StepKind = "dice_sequence"
	KindPlayerChoice   StepKind = "player_choice"
	KindTableRoll      StepKind = "table_roll"
	KindPlayerInput    StepKind = "player_input"
	KindLLMGeneration  StepKind = "llm_generation"
	KindNameGeneration StepKind = "name_generation"
	KindCompletion     StepKind = "completion"
	KindFlowCall       StepKind = "flow_call"
)

// ErrUnknownField is the load-time error for a step-kind field not
// recognized for that step's Type (§6, §7).
var ErrUnknownField = fmt.Errorf("unknown field")

// Action is one entry of an action list (pre_actions, actions, or a nested
// choice/iteration's own actions) (§4.4).
type Action struct {
	Kind string `json:"kind"`

	// set_value
	Path  string `json:"path,omitempty"`
	Value any    `json:"value,omitempty"`

	// swap_values
	Path1 string `json:"path1,omitempty"`
	Path2 string `json:"path2,omitempty"`

	// display_value / validate_value reuse Path above.

	// log_event
	EventType string         `json:"event_type,omitempty"`
	EventData map[string]any `json:"event_data,omitempty"`

	// log_message
	Message string `json:"message,omitempty"`

	// flow_call
	FlowCall *FlowCallSpec `json:"flow_call,omitempty"`
}

// UnmarshalYAML decodes the single-key action map shape, e.g.
//
//	set_value: {path: outputs.x, value: "{{ result.total }}"}
//	display_value: outputs.x
//	log_message: "rolled {{ result.total }}"
func (a *Action) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]yaml.Node
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("action must have exactly one key, got %d", len(raw))
	}
	for kind, node := range raw {
		n := node
		a.Kind = kind
		switch kind {
		case "set_value":
			var spec struct {
				Path  string `yaml:"path"`
				Value any    `yaml:"value"`
			}
			if err := n.Decode(&spec); err != nil {
				return fmt.Errorf("set_value: %w", err)
			}
			a.Path, a.Value = spec.Path, spec.Value
		case "swap_values":
			var spec struct {
				Path1 string `yaml:"path1"`
				Path2 string `yaml:"path2"`
			}
			if err := n.Decode(&spec); err != nil {
				return fmt.Errorf("swap_values: %w", err)
			}
			a.Path1, a.Path2 = spec.Path1, spec.Path2
		case "display_value", "validate_value":
			var path string
			if err := n.Decode(&path); err != nil {
				return fmt.Errorf("%s: %w", kind, err)
			}
			a.Path = path
		case "log_event":
			var spec struct {
				Type string         `yaml:"type"`
				Data map[string]any `yaml:"data"`
			}
			if err := n.Decode(&spec); err != nil {
				return fmt.Errorf("log_event: %w", err)
			}
			a.EventType, a.EventData = spec.Type, spec.Data
		case "log_message":
			if n.Kind == yaml.ScalarNode {
				var s string
				if err := n.Decode(&s); err != nil {
					return fmt.Errorf("log_message: %w", err)
				}
				a.Message = s
			} else {
				var spec struct {
					Message string `yaml:"message"`
				}
				if err := n.Decode(&spec); err != nil {
					return fmt.Errorf("log_message: %w", err)
				}
				a.Message = spec.Message
			}
		case "flow_call":
			var spec FlowCallSpec
			if err := n.Decode(&spec); err != nil {
				return fmt.Errorf("flow_call: %w", err)
			}
			a.FlowCall = &spec
		default:
			return fmt.Errorf("%w: action %q", ErrUnknownField, kind)
		}
	}
	return nil
}

// FlowCallSpec is the shared shape used by both the flow_call step kind and
// the flow_call action (§4.4, §4.7).
type FlowCallSpec struct {
	Flow   string         `yaml:"flow" json:"flow"`
	Inputs map[string]any `yaml:"inputs,omitempty" json:"inputs,omitempty"`
}

// DiceRollSpec is the dice_roll step's fields.
type DiceRollSpec struct {
	Roll string `yaml:"roll" json:"roll"`
}

// DiceSequenceSpec is the dice_sequence step's fields.
type DiceSequenceSpec struct {
	Items   []any    `yaml:"items" json:"items"`
	Roll    string   `yaml:"roll" json:"roll"`
	Actions []Action `yaml:"actions,omitempty" json:"actions,omitempty"`
}

// Choice is a single static player_choice option.
type Choice struct {
	ID       string   `yaml:"id" json:"id"`
	Label    string   `yaml:"label" json:"label"`
	Actions  []Action `yaml:"actions,omitempty" json:"actions,omitempty"`
	NextStep string   `yaml:"next_step,omitempty" json:"next_step,omitempty"`
}

// ChoiceSource is the dynamic choice source of a player_choice step: either
// a named table or a table_from_values iteration. Exactly one of Table or
// TableFromValues is set.
type ChoiceSource struct {
	Table           string `yaml:"table,omitempty" json:"table,omitempty"`
	TableFromValues string `yaml:"table_from_values,omitempty" json:"table_from_values,omitempty"`
	DisplayFormat   string `yaml:"display_format" json:"display_format"`
	SelectionCount  int    `yaml:"selection_count,omitempty" json:"selection_count,omitempty"`
}

// PlayerChoiceSpec is the player_choice step's fields.
type PlayerChoiceSpec struct {
	Choices      []Choice      `yaml:"choices,omitempty" json:"choices,omitempty"`
	ChoiceSource *ChoiceSource `yaml:"choice_source,omitempty" json:"choice_source,omitempty"`
}

// TableRollEntry is one table reference inside a table_roll step.
type TableRollEntry struct {
	Table   string   `yaml:"table" json:"table"`
	Actions []Action `yaml:"actions,omitempty" json:"actions,omitempty"`
}

// TableRollSpec is the table_roll step's fields.
type TableRollSpec struct {
	Tables []TableRollEntry `yaml:"tables" json:"tables"`
}

// LLMGenerationSpec is the llm_generation step's fields.
type LLMGenerationSpec struct {
	PromptID    string         `yaml:"prompt_id" json:"prompt_id"`
	PromptData  map[string]any `yaml:"prompt_data,omitempty" json:"prompt_data,omitempty"`
	LLMSettings map[string]any `yaml:"llm_settings,omitempty" json:"llm_settings,omitempty"`
}

// NameGenerationSpec is the name_generation step's fields; defaults from
// §4.5 are filled in at dispatch time, not here.
type NameGenerationSpec struct {
	Generator string         `yaml:"generator,omitempty" json:"generator,omitempty"`
	Settings  map[string]any `yaml:"settings,omitempty" json:"settings,omitempty"`
}

// Step is a single, flat step record; exactly one kind-specific spec
// pointer is populated according to Type, decoded through a custom
// UnmarshalYAML normalizer.
type Step struct {
	ID        string   `yaml:"id" json:"id"`
	Name      string   `yaml:"name,omitempty" json:"name,omitempty"`
	Type      StepKind `yaml:"type" json:"type"`
	Prompt    string   `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Condition string   `yaml:"condition,omitempty" json:"condition,omitempty"`
	Parallel  bool     `yaml:"parallel,omitempty" json:"parallel,omitempty"`

	PreActions []Action `yaml:"pre_actions,omitempty" json:"pre_actions,omitempty"`
	Actions    []Action `yaml:"actions,omitempty" json:"actions,omitempty"`
	NextStep   string   `yaml:"next_step,omitempty" json:"next_step,omitempty"`

	DiceRoll       *DiceRollSpec       `yaml:"-" json:"dice_roll,omitempty"`
	DiceSequence   *DiceSequenceSpec   `yaml:"-" json:"dice_sequence,omitempty"`
	PlayerChoice   *PlayerChoiceSpec   `yaml:"-" json:"player_choice,omitempty"`
	TableRoll      *TableRollSpec      `yaml:"-" json:"table_roll,omitempty"`
	LLMGeneration  *LLMGenerationSpec  `yaml:"-" json:"llm_generation,omitempty"`
	NameGeneration *NameGenerationSpec `yaml:"-" json:"name_generation,omitempty"`
	FlowCall       *FlowCallSpec       `yaml:"-" json:"flow_call,omitempty"`
}

var commonStepKeys = map[string]bool{
	"id": true, "name": true, "type": true, "prompt": true, "condition": true,
	"parallel": true, "pre_actions": true, "actions": true, "next_step": true,
}

// UnmarshalYAML decodes the common step fields, routes the type-specific
// fields into the matching spec pointer, and rejects any leftover
// unrecognized key as UnknownField (§6).
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	type stepAlias Step
	var raw stepAlias
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*s = Step(raw)

	var fields map[string]yaml.Node
	if err := value.Decode(&fields); err != nil {
		return err
	}
	for k := range commonStepKeys {
		delete(fields, k)
	}

	switch s.Type {
	case KindDiceRoll:
		var spec DiceRollSpec
		if node, ok := fields["roll"]; ok {
			if err := node.Decode(&spec.Roll); err != nil {
				return err
			}
		}
		s.DiceRoll = &spec
		delete(fields, "roll")
	case KindDiceSequence:
		var spec DiceSequenceSpec
		if node, ok := fields["sequence"]; ok {
			if err := node.Decode(&spec); err != nil {
				return fmt.Errorf("dice_sequence: %w", err)
			}
		}
		s.DiceSequence = &spec
		delete(fields, "sequence")
	case KindPlayerChoice:
		var spec PlayerChoiceSpec
		if node, ok := fields["choices"]; ok {
			if err := node.Decode(&spec.Choices); err != nil {
				return fmt.Errorf("choices: %w", err)
			}
		}
		if node, ok := fields["choice_source"]; ok {
			var src ChoiceSource
			if err := node.Decode(&src); err != nil {
				return fmt.Errorf("choice_source: %w", err)
			}
			spec.ChoiceSource = &src
		}
		s.PlayerChoice = &spec
		delete(fields, "choices")
		delete(fields, "choice_source")
	case KindTableRoll:
		var spec TableRollSpec
		if node, ok := fields["tables"]; ok {
			if err := node.Decode(&spec.Tables); err != nil {
				return fmt.Errorf("tables: %w", err)
			}
		}
		s.TableRoll = &spec
		delete(fields, "tables")
	case KindPlayerInput:
		// no type-specific fields beyond the common `prompt`.
	case KindLLMGeneration:
		var spec LLMGenerationSpec
		if node, ok := fields["prompt_id"]; ok {
			_ = node.Decode(&spec.PromptID)
		}
		if node, ok := fields["prompt_data"]; ok {
			_ = node.Decode(&spec.PromptData)
		}
		if node, ok := fields["llm_settings"]; ok {
			_ = node.Decode(&spec.LLMSettings)
		}
		s.LLMGeneration = &spec
		delete(fields, "prompt_id")
		delete(fields, "prompt_data")
		delete(fields, "llm_settings")
	case KindNameGeneration:
		var spec NameGenerationSpec
		if node, ok := fields["generator"]; ok {
			_ = node.Decode(&spec.Generator)
		}
		if node, ok := fields["settings"]; ok {
			_ = node.Decode(&spec.Settings)
		}
		s.NameGeneration = &spec
		delete(fields, "generator")
		delete(fields, "settings")
	case KindCompletion:
		// terminal; no type-specific fields.
	case KindFlowCall:
		var spec FlowCallSpec
		if node, ok := fields["flow"]; ok {
			_ = node.Decode(&spec.Flow)
		}
		if node, ok := fields["inputs"]; ok {
			_ = node.Decode(&spec.Inputs)
		}
		s.FlowCall = &spec
		delete(fields, "flow")
		delete(fields, "inputs")
	default:
		return fmt.Errorf("unknown step kind: %q on step %q", s.Type, s.ID)
	}

	for k := range fields {
		return fmt.Errorf("%w: unexpected field %q on step %q", ErrUnknownField, k, s.ID)
	}
	return nil
}

// Run is a persisted record of a single top-level flow invocation.
type Run struct {
	ID        uuid.UUID      `json:"id"`
	FlowID    string         `json:"flow_id"`
	Inputs    map[string]any `json:"inputs"`
	Status    RunStatus      `json:"status"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   *time.Time     `json:"ended_at,omitempty"`
	Steps     []StepRun      `json:"steps"`
}

// StepRun is a persisted record of one step dispatch within a Run.
type StepRun struct {
	ID        uuid.UUID      `json:"id"`
	RunID     uuid.UUID      `json:"run_id"`
	StepID    string         `json:"step_id"`
	Status    StepStatus     `json:"status"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   *time.Time     `json:"ended_at,omitempty"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
}

type RunStatus string

type StepStatus string

const (
	RunPending   RunStatus = "PENDING"
	RunRunning   RunStatus = "RUNNING"
	RunSucceeded RunStatus = "SUCCEEDED"
	RunFailed    RunStatus = "FAILED"
	RunPaused    RunStatus = "PAUSED"

	StepPending   StepStatus = "PENDING"
	StepRunning   StepStatus = "RUNNING"
	StepSucceeded StepStatus = "SUCCEEDED"
	StepFailed    StepStatus = "FAILED"
	StepSkipped   StepStatus = "SKIPPED"
)
