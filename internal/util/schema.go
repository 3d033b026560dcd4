package util

import "fmt"

// ValidationError reports a parameter that failed schema validation.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ObjectSchema builds a minimal JSON-Schema object from property
// definitions. Helper for tool parameter declarations.
func ObjectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// StringProp describes a string property with a description.
func StringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// IntProp describes an integer property with a description.
func IntProp(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}

// BoolProp describes a boolean property with a description.
func BoolProp(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description}
}

// ValidateParameters validates args against a minimal JSON schema: required
// fields must be present and declared property types must match. Extra
// fields pass through untouched.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	switch req := schema["required"].(type) {
	case []string:
		for _, name := range req {
			if _, ok := params[name]; !ok {
				return &ValidationError{Field: name, Message: "required field is missing"}
			}
		}
	case []any:
		for _, r := range req {
			name, ok := r.(string)
			if !ok {
				continue
			}
			if _, ok := params[name]; !ok {
				return &ValidationError{Field: name, Message: "required field is missing"}
			}
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for name, value := range params {
		prop, ok := properties[name].(map[string]any)
		if !ok {
			continue
		}
		expected, _ := prop["type"].(string)
		if !typeMatches(value, expected) {
			return &ValidationError{
				Field:   name,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %T", expected, value),
			}
		}
	}
	return nil
}

func typeMatches(value any, expected string) bool {
	if value == nil {
		return true
	}
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int32, int64:
			return true
		case float64: // JSON decoding produces float64 for every number
			return v == float64(int64(v))
		}
		return false
	case "number":
		switch value.(type) {
		case int, int32, int64, float32, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}
