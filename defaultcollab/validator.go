package defaultcollab

import (
	"context"
	"fmt"

	"github.com/wyrdbound/grimoire/host"
)

// Validator checks a value against one of the basic type names
// (str, int, bool, float, list, dict) the engine itself understands, and
// treats any other type name as a registered-model pass-through (always
// ok) — a real model registry is a caller concern per §1.
type Validator struct{}

func (Validator) Validate(ctx context.Context, typeName string, value any) []host.ValidationError {
	switch typeName {
	case "str":
		if _, ok := value.(string); !ok {
			return []host.ValidationError{{Message: fmt.Sprintf("expected str, got %T", value)}}
		}
	case "int":
		switch value.(type) {
		case int, int32, int64:
		default:
			return []host.ValidationError{{Message: fmt.Sprintf("expected int, got %T", value)}}
		}
	case "bool":
		if _, ok := value.(bool); !ok {
			return []host.ValidationError{{Message: fmt.Sprintf("expected bool, got %T", value)}}
		}
	case "float":
		switch value.(type) {
		case float32, float64:
		default:
			return []host.ValidationError{{Message: fmt.Sprintf("expected float, got %T", value)}}
		}
	case "list":
		if _, ok := value.([]any); !ok {
			return []host.ValidationError{{Message: fmt.Sprintf("expected list, got %T", value)}}
		}
	case "dict":
		if _, ok := value.(map[string]any); !ok {
			return []host.ValidationError{{Message: fmt.Sprintf("expected dict, got %T", value)}}
		}
	default:
		// Registered model name: no local schema to check against.
		return nil
	}
	return nil
}
