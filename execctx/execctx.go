// Package execctx implements the Execution Context (spec §4.3): the
// mutable inputs/outputs/variables state of a single flow invocation plus
// the transient result/item/key/value bindings, with writes serialized
// through a single internal mutex so the concurrency model's "equivalent
// to some sequential interleaving" property (§5) holds mechanically.
package execctx

import (
	"strings"
	"sync"

	"github.com/wyrdbound/grimoire/internal/grimerr"
	"github.com/wyrdbound/grimoire/pathref"
)

// Context is the mutable state of one flow invocation. The zero value is
// not usable; construct with New.
type Context struct {
	mu sync.Mutex

	inputs    map[string]any
	outputs   map[string]any
	variables map[string]any

	result      any
	item        any
	key         any
	value       any
	hasKeyValue bool
}

// New builds a fresh Context with inputs populated from the caller. The
// supplied map is copied; the caller's map is never retained or mutated.
func New(inputs map[string]any) *Context {
	in := make(map[string]any, len(inputs))
	for k, v := range inputs {
		in[k] = deepCopy(v)
	}
	return &Context{
		inputs:    in,
		outputs:   map[string]any{},
		variables: map[string]any{},
	}
}

func (c *Context) rootFor(name string) (map[string]any, bool) {
	switch name {
	case "inputs":
		return c.inputs, true
	case "outputs":
		return c.outputs, true
	case "variables":
		return c.variables, true
	default:
		return nil, false
	}
}

// splitRoot separates a path's root segment ("inputs"/"outputs"/
// "variables") from the remainder.
func splitRoot(path string) (root, rest string) {
	if idx := strings.IndexByte(path, '.'); idx >= 0 {
		return path[:idx], path[idx+1:]
	}
	return path, ""
}

// Get reads the value at path. path must be rooted at inputs, outputs, or
// variables (§4.1); any other root is PathNotFound.
func (c *Context) Get(path string) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rootName, rest := splitRoot(path)
	root, ok := c.rootFor(rootName)
	if !ok {
		return nil, grimerr.New(grimerr.PathNotFound, "path must be rooted at inputs, outputs, or variables").WithPath(path)
	}
	if rest == "" {
		return root, nil
	}
	return pathref.Get(root, rest)
}

// Set writes value at path. Writing to inputs is rejected with
// ReadOnlyRoot (§3 invariants).
func (c *Context) Set(path string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rootName, rest := splitRoot(path)
	if rootName == "inputs" {
		return grimerr.New(grimerr.ReadOnlyRoot, "cannot write to inputs").WithPath(path)
	}
	root, ok := c.rootFor(rootName)
	if !ok {
		return grimerr.New(grimerr.PathNotFound, "path must be rooted at inputs, outputs, or variables").WithPath(path)
	}
	if rest == "" {
		return grimerr.New(grimerr.TypeConflict, "cannot overwrite a root directly").WithPath(path)
	}
	return pathref.Set(root, rest, value)
}

// Swap atomically exchanges the values at two existing paths. Neither may
// be rooted at inputs.
func (c *Context) Swap(path1, path2 string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	root1Name, rest1 := splitRoot(path1)
	root2Name, rest2 := splitRoot(path2)
	if root1Name == "inputs" || root2Name == "inputs" {
		return grimerr.New(grimerr.ReadOnlyRoot, "cannot swap against inputs").WithPath(path1)
	}
	root1, ok1 := c.rootFor(root1Name)
	if !ok1 {
		return grimerr.New(grimerr.PathNotFound, "path must be rooted at inputs, outputs, or variables").WithPath(path1)
	}
	root2, ok2 := c.rootFor(root2Name)
	if !ok2 {
		return grimerr.New(grimerr.PathNotFound, "path must be rooted at inputs, outputs, or variables").WithPath(path2)
	}

	if root1Name == root2Name {
		return pathref.Swap(root1, rest1, rest2)
	}
	v1, err := pathref.Get(root1, rest1)
	if err != nil {
		return err
	}
	v2, err := pathref.Get(root2, rest2)
	if err != nil {
		return err
	}
	if err := pathref.Set(root1, rest1, v2); err != nil {
		return err
	}
	return pathref.Set(root2, rest2, v1)
}

// BindResult sets the transient result binding produced by the most
// recently dispatched step.
func (c *Context) BindResult(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = v
}

// Result returns the current result binding.
func (c *Context) Result() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// BindItem sets the current dice_sequence iteration element.
func (c *Context) BindItem(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.item = v
}

// BindKeyValue sets the key/value bindings used while iterating a
// table_from_values choice source.
func (c *Context) BindKeyValue(key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key, c.value, c.hasKeyValue = key, value, true
}

// ClearKeyValue removes the key/value bindings once iteration ends.
func (c *Context) ClearKeyValue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key, c.value, c.hasKeyValue = nil, nil, false
}

// Inputs returns a deep copy of the inputs map.
func (c *Context) Inputs() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return deepCopy(c.inputs).(map[string]any)
}

// Outputs returns a deep copy of the outputs map.
func (c *Context) Outputs() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return deepCopy(c.outputs).(map[string]any)
}

// Variables returns a deep copy of the variables map.
func (c *Context) Variables() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return deepCopy(c.variables).(map[string]any)
}

// TemplateContext returns the flattened view the template engine adapter
// renders against: inputs/outputs/variables plus whichever of
// result/item/key/value are currently bound (§4.2).
func (c *Context) TemplateContext() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]any{
		"inputs":    deepCopy(c.inputs),
		"outputs":   deepCopy(c.outputs),
		"variables": deepCopy(c.variables),
	}
	if c.result != nil {
		out["result"] = deepCopy(c.result)
	}
	if c.item != nil {
		out["item"] = deepCopy(c.item)
	}
	if c.hasKeyValue {
		out["key"] = c.key
		out["value"] = c.value
	}
	return out
}

// Snapshot is a deep, value-level copy of a Context sufficient to resume
// execution at a resume point (§4.8).
type Snapshot struct {
	Inputs      map[string]any
	Outputs     map[string]any
	Variables   map[string]any
	Result      any
	Item        any
	Key         any
	Value       any
	HasKeyValue bool
}

// Snapshot captures the current state of the Context.
func (c *Context) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &Snapshot{
		Inputs:      deepCopy(c.inputs).(map[string]any),
		Outputs:     deepCopy(c.outputs).(map[string]any),
		Variables:   deepCopy(c.variables).(map[string]any),
		Result:      deepCopy(c.result),
		Item:        deepCopy(c.item),
		Key:         c.key,
		Value:       c.value,
		HasKeyValue: c.hasKeyValue,
	}
}

// Restore replaces the Context's state with a previously captured
// Snapshot.
func (c *Context) Restore(s *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputs = deepCopy(s.Inputs).(map[string]any)
	c.outputs = deepCopy(s.Outputs).(map[string]any)
	c.variables = deepCopy(s.Variables).(map[string]any)
	c.result = deepCopy(s.Result)
	c.item = deepCopy(s.Item)
	c.key = s.Key
	c.value = s.Value
	c.hasKeyValue = s.HasKeyValue
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = deepCopy(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = deepCopy(vv)
		}
		return out
	default:
		return v
	}
}
