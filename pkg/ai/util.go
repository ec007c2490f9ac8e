package ai

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

// stripDuplicateLeadingBrace turns "{ {...}" into "{...}".
func stripDuplicateLeadingBrace(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		rest := strings.TrimSpace(s[1:])
		if strings.HasPrefix(rest, "{") {
			return rest
		}
	}
	return s
}

// GenerateSchema creates a JSON Schema from the given Go type for use with
// structured output. Map-typed fields stay open so free-form property bags
// survive the schema.
func GenerateSchema(value any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		ExpandedStruct:            true,
	}

	t := reflect.TypeOf(value)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	return reflector.ReflectFromType(t)
}

// UnmarshalFlexible decodes model output into out, accepting what a strict
// decode rejects: a JSON object double-encoded as a string, a doubled
// opening brace, and syntax jsonrepair can fix (trailing commas, unquoted
// keys, a truncated tail). The strict decode is tried first.
func UnmarshalFlexible(input string, out any) error {
	input = strings.TrimSpace(input)
	if json.Unmarshal([]byte(input), out) == nil {
		return nil
	}

	var inner string
	if json.Unmarshal([]byte(input), &inner) == nil {
		input = strings.TrimSpace(inner)
		if json.Unmarshal([]byte(input), out) == nil {
			return nil
		}
	}

	repaired, err := jsonrepair.JSONRepair(stripDuplicateLeadingBrace(input))
	if err != nil {
		return fmt.Errorf("repair model output: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("decode repaired model output: %w", err)
	}
	return nil
}
