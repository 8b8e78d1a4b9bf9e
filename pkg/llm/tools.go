package llm

import (
	"strings"

	"github.com/policyforge/policyforge/pkg/registry"
)

// ToolsFromRecord converts a registry record's descriptors into the
// tool definitions advertised to the model. Parameter hints are turned
// into JSON-schema property types by name and hint inspection: cost,
// amount, duration, day and bag counts are numbers, is_* flags are
// booleans, everything else is a string.
func ToolsFromRecord(rec *registry.Record) []ToolDefinition {
	if rec == nil {
		return nil
	}
	tools := make([]ToolDefinition, 0, len(rec.Functions))
	for _, fn := range rec.Functions {
		properties := make(map[string]any, len(fn.Parameters))
		required := make([]string, 0, len(fn.Parameters))
		for name, hint := range fn.Parameters {
			properties[name] = map[string]any{
				"type":        paramType(name, hint),
				"description": hintDescription(hint),
			}
			required = append(required, name)
		}
		tools = append(tools, ToolDefinition{
			Name:        fn.Name,
			Description: fn.Description,
			Parameters: map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		})
	}
	return tools
}

func paramType(name, hint string) string {
	if kind := hintKind(hint); kind != "" {
		return kind
	}
	lower := strings.ToLower(name)
	switch {
	case strings.HasPrefix(lower, "is_") || strings.HasPrefix(lower, "has_"):
		return "boolean"
	case strings.Contains(lower, "cost") || strings.Contains(lower, "amount") ||
		strings.Contains(lower, "duration") || strings.Contains(lower, "days") ||
		strings.Contains(lower, "hours") || strings.HasPrefix(lower, "num_"):
		return "number"
	default:
		return "string"
	}
}

// hintKind reads the "type: description" prefix convention used by
// descriptor parameter hints.
func hintKind(hint string) string {
	kind := hint
	if idx := strings.Index(hint, ":"); idx >= 0 {
		kind = hint[:idx]
	}
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "number", "float", "int", "integer":
		return "number"
	case "bool", "boolean":
		return "boolean"
	case "string":
		return "string"
	default:
		return ""
	}
}

func hintDescription(hint string) string {
	if idx := strings.Index(hint, ":"); idx >= 0 {
		return strings.TrimSpace(hint[idx+1:])
	}
	return hint
}
