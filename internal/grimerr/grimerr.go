// Package grimerr implements the stable error taxonomy of the flow
// interpreter (spec §7) as a single typed error carrying a Code plus the
// flow id, step id, and action index/kind context the engine accumulates
// as an error propagates upward.
package grimerr

import (
	"errors"
	"fmt"
	"strings"
)

// Code is one of the stable identifiers from §7.
type Code string

const (
	// Load-time
	SchemaError          Code = "SchemaError"
	DuplicateStepId      Code = "DuplicateStepId"
	UnknownStepReference Code = "UnknownStepReference"
	UnknownField         Code = "UnknownField"

	// Path/state
	PathNotFound            Code = "PathNotFound"
	TypeConflict            Code = "TypeConflict"
	ReadOnlyRoot            Code = "ReadOnlyRoot"
	ConcurrentWriteConflict Code = "ConcurrentWriteConflict"

	// Template
	TemplateError       Code = "TemplateError"
	UnresolvedReference Code = "UnresolvedReference"

	// Dispatch
	UnknownStepKind Code = "UnknownStepKind"
	UnknownFlow     Code = "UnknownFlow"
	UnknownStep     Code = "UnknownStep"
	MissingInput    Code = "MissingInput"
	ValidationError Code = "ValidationError"

	// Collaborator
	DiceError           Code = "DiceError"
	TableError          Code = "TableError"
	GeneratorError      Code = "GeneratorError"
	LLMError            Code = "LLMError"
	CollaboratorTimeout Code = "CollaboratorTimeout"

	// Execution
	Cancelled       Code = "Cancelled"
	VersionMismatch Code = "VersionMismatch"
)

// Error is the single error type returned across package boundaries in
// this module. Every layer that re-raises an error from a layer below it
// attaches its own context (flow id, step id, action index/kind) rather
// than constructing a new error, so a caller inspecting the top-level
// error sees the full provenance.
type Error struct {
	Code        Code
	FlowID      string
	StepID      string
	ActionIndex int // -1 when not applicable
	ActionKind  string
	Path        string
	Msg         string
	Err         error
}

func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg, ActionIndex: -1}
}

func Wrap(code Code, err error) *Error {
	return &Error{Code: code, Err: err, ActionIndex: -1}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.FlowID != "" {
		fmt.Fprintf(&b, " flow=%s", e.FlowID)
	}
	if e.StepID != "" {
		fmt.Fprintf(&b, " step=%s", e.StepID)
	}
	if e.ActionIndex >= 0 {
		fmt.Fprintf(&b, " action[%d]=%s", e.ActionIndex, e.ActionKind)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " path=%s", e.Path)
	}
	if e.Msg != "" {
		fmt.Fprintf(&b, ": %s", e.Msg)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code alone, so errors.Is(err, grimerr.New(grimerr.PathNotFound, "")) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *Error) clone() *Error { c := *e; return &c }

func (e *Error) WithFlow(id string) *Error {
	c := e.clone()
	c.FlowID = id
	return c
}

func (e *Error) WithStep(id string) *Error {
	c := e.clone()
	c.StepID = id
	return c
}

func (e *Error) WithAction(index int, kind string) *Error {
	c := e.clone()
	c.ActionIndex = index
	c.ActionKind = kind
	return c
}

func (e *Error) WithPath(path string) *Error {
	c := e.clone()
	c.Path = path
	return c
}

// Is reports whether err's chain contains a *Error with the given Code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the Code from err's chain, if any.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
