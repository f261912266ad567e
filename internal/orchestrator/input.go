// ABOUTME: Input-schema validation: required properties present, declared type matches

package orchestrator

import (
	"fmt"

	"github.com/ritualflow/engine/pkg/types"
)

// validateInput checks input against schema's required properties and
// declared JSON-ish types ("string"|"number"|"boolean"|"object"|"array").
func validateInput(schema map[string]types.InputProperty, input map[string]any) error {
	for name, prop := range schema {
		v, present := input[name]
		if !present {
			if prop.Required {
				return types.NewValidationError(name, "required input property is missing")
			}
			continue
		}
		if prop.Type != "" && !matchesType(v, prop.Type) {
			return types.NewValidationError(name, fmt.Sprintf("expected type %q", prop.Type))
		}
	}
	return nil
}

func matchesType(v any, want string) bool {
	switch want {
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		switch v.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	default:
		return true
	}
}
