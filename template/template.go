// Package template implements the Template Engine Adapter (§4.2):
// double-brace expressions, pipe filters, and a logical-OR default
// operator over github.com/flosch/pongo2/v6, a Jinja2-style engine.
//
// pongo2 has no native `||` default operator, so the adapter rewrites
// every top-level `a || b` inside a `{{ ... }}` expression into
// `a|grimoiredefault:b` before handing the string to pongo2, and
// registers a grimoiredefault filter implementing the "absent, empty, or
// false" fallback rule. All pongo2 global-state operations (RegisterFilter,
// FromString, Execute) are serialized behind a package-level mutex,
// since pongo2's registration and compile/execute calls are not
// safe for concurrent use.
package template

import (
	"maps"
	"regexp"
	"strings"
	"sync"

	pongo2 "github.com/flosch/pongo2/v6"

	"github.com/wyrdbound/grimoire/internal/grimerr"
)

var (
	filterRegistrationOnce sync.Once
	pongo2Mutex            sync.Mutex
)

// Templater renders strings against a flattened execution-context view.
// It is safe for concurrent use; all state is pongo2's own global
// registry, guarded by pongo2Mutex.
type Templater struct {
	// Strict gates UnresolvedReference checking for simple variable
	// references; an expression using the `||` default operator is not
	// checked. Default (via NewTemplater) is true, per §4.2.
	Strict bool
}

// NewTemplater constructs a Templater with strict reference checking on,
// registering the grimoiredefault filter exactly once process-wide.
func NewTemplater() *Templater {
	registerDefaultFilter()
	return &Templater{Strict: true}
}

func registerDefaultFilter() {
	filterRegistrationOnce.Do(func() {
		pongo2Mutex.Lock()
		defer pongo2Mutex.Unlock()
		_ = pongo2.RegisterFilter("grimoiredefault", grimoireDefaultFilter)
	})
}

// grimoireDefaultFilter implements `a || b`: fall back to the filter
// parameter when the input is absent, empty, or false. pongo2's own
// Value.Bool() already encodes exactly this truthiness rule (nil, "",
// zero, empty collection, and false are all falsy), so the filter is a
// direct pass-through to it.
func grimoireDefaultFilter(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	if in == nil || !in.Bool() {
		return param, nil
	}
	return in, nil
}

var (
	mustacheRe = regexp.MustCompile(`\{\{(.*?)\}\}`)
	orRe       = regexp.MustCompile(`\s*\|\|\s*`)
	identRe    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
)

// rewriteDefaults rewrites every `a || b` inside a {{ }} block into
// `a|grimoiredefault:b`. Chained defaults (`a || b || c`) fold correctly
// left-to-right since grimoiredefault(grimoiredefault(a,b),c) keeps a if
// truthy, else b if truthy, else c.
func rewriteDefaults(tmpl string) string {
	return mustacheRe.ReplaceAllStringFunc(tmpl, func(block string) string {
		inner := block[2 : len(block)-2]
		inner = orRe.ReplaceAllString(inner, "|grimoiredefault:")
		return "{{" + inner + "}}"
	})
}

// Render renders tmpl against data, the flattened execution-context view
// produced by execctx.Context.TemplateContext. Rendering never mutates
// data.
func (t *Templater) Render(tmpl string, data map[string]any) (string, error) {
	rewritten := rewriteDefaults(tmpl)

	if t.Strict {
		if err := checkUnresolved(rewritten, data); err != nil {
			return "", err
		}
	}

	pongo2Mutex.Lock()
	pl, err := pongo2.FromString(rewritten)
	if err != nil {
		pongo2Mutex.Unlock()
		return "", grimerr.Wrap(grimerr.TemplateError, err)
	}
	out, err := pl.Execute(flattenContext(data))
	pongo2Mutex.Unlock()
	if err != nil {
		return "", grimerr.Wrap(grimerr.TemplateError, err)
	}
	return out, nil
}

// RegisterFilters registers additional custom pongo2 filters, e.g. for a
// caller-specific domain vocabulary.
func (t *Templater) RegisterFilters(filters map[string]pongo2.FilterFunction) error {
	pongo2Mutex.Lock()
	defer pongo2Mutex.Unlock()
	for name, fn := range filters {
		if err := pongo2.RegisterFilter(name, fn); err != nil {
			return grimerr.Wrap(grimerr.TemplateError, err)
		}
	}
	return nil
}

// EvaluateExpression evaluates tmpl and returns the underlying value
// rather than its string rendering, for contexts that need the actual
// object (e.g. resolving a table_from_values reference to the collection
// it names). Simple dotted variable references are looked up directly;
// anything containing filters, operators, or calls falls back to a full
// string render.
func (t *Templater) EvaluateExpression(tmpl string, data map[string]any) (any, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}
	trimmed := strings.TrimSpace(tmpl)
	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") {
		varPath := strings.TrimSpace(trimmed[2 : len(trimmed)-2])
		if identRe.MatchString(varPath) {
			if v, ok := lookupDotted(data, varPath); ok {
				return v, nil
			}
			return nil, grimerr.New(grimerr.UnresolvedReference, varPath)
		}
	}
	return t.Render(tmpl, data)
}

// RenderBool renders tmpl and interprets the result per §4.5's condition
// rule: non-empty, non-"false", non-"0" strings are true.
func (t *Templater) RenderBool(tmpl string, data map[string]any) (bool, error) {
	rendered, err := t.Render(tmpl, data)
	if err != nil {
		return false, err
	}
	switch strings.TrimSpace(rendered) {
	case "", "false", "0":
		return false, nil
	default:
		return true, nil
	}
}

func checkUnresolved(rewritten string, data map[string]any) error {
	for _, m := range mustacheRe.FindAllStringSubmatch(rewritten, -1) {
		expr := strings.TrimSpace(m[1])
		if strings.Contains(expr, "|grimoiredefault:") {
			// The `||` default supplies a value when the reference is absent.
			continue
		}
		varPart := expr
		if idx := strings.IndexByte(expr, '|'); idx >= 0 {
			varPart = strings.TrimSpace(expr[:idx])
		}
		if !identRe.MatchString(varPart) {
			continue
		}
		if _, ok := lookupDotted(data, varPart); !ok {
			return grimerr.New(grimerr.UnresolvedReference, varPart)
		}
	}
	return nil
}

func lookupDotted(data map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = data
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[p]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func flattenContext(data map[string]any) pongo2.Context {
	ctx := make(pongo2.Context, len(data))
	maps.Copy(ctx, data)
	return ctx
}

// Render is the package-level convenience form for a one-off render.
func Render(tmpl string, data map[string]any) (string, error) {
	return NewTemplater().Render(tmpl, data)
}

// RenderDeep walks v, rendering every string leaf as a template against
// data and leaving every other value (including map keys) untouched.
// Used wherever a structured field (action log_event data,
// llm_generation prompt_data) needs to be template-rendered as a whole.
func (t *Templater) RenderDeep(v any, data map[string]any) (any, error) {
	switch val := v.(type) {
	case string:
		return t.Render(val, data)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			rv, err := t.RenderDeep(vv, data)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			rv, err := t.RenderDeep(vv, data)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return val, nil
	}
}
