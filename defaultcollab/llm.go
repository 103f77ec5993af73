package defaultcollab

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// LLMProvider returns a templated canned string so llm_generation steps
// are exercisable in tests and demos without network access. It renders
// prompt_data's values into a deterministic transcript of the prompt,
// rather than calling a real model — a real deployment substitutes a
// network-backed host.LLMProvider (e.g. one wrapping a real
// chat-completion call).
type LLMProvider struct{}

func (LLMProvider) Complete(ctx context.Context, promptID string, data map[string]any, settings map[string]any) (string, error) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", promptID)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, data[k])
	}
	return b.String(), nil
}
