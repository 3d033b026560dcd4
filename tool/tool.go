// Package tool implements the function-calling subsystem that lets domain
// agents invoke structured capabilities (backend queries, computations,
// writes) with schema-validated arguments and consistent error handling.
package tool

import (
	"context"
	"fmt"

	"github.com/cargomesh/cargomesh/internal/util"
)

// Tool is a callable capability exposed to the completion oracle.
//
// Implementations should provide clear names and descriptions (the oracle
// decides when to call a tool based on them), define a JSON schema for
// parameters, handle errors gracefully, and be safe for concurrent use.
type Tool interface {
	// Name returns the unique identifier (snake_case recommended).
	Name() string

	// Description is the natural-language description shown to the oracle.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the tool. Arguments arrive decoded from JSON and are
	// validated against the schema before execution.
	Call(ctx context.Context, args map[string]any) (string, error)
}

// ValidationError re-exports the schema validation error type.
type ValidationError = util.ValidationError

// Error codes attached to ToolError for uniform downstream handling.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
)

// ToolError wraps failures during tool execution with the tool name and a
// categorization code.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a ToolError.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
