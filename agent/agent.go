// Package agent implements the domain agents: specialized handlers that
// answer requests for one bounded logistics capability area each. All
// concrete agents share a single bounded reasoning loop (reason -> tool ->
// observe) driven by the completion oracle with domain tools bound to the
// knowledge backend.
package agent

import (
	"context"
	"fmt"

	"github.com/cargomesh/cargomesh/core"
	"github.com/cargomesh/cargomesh/tool"
)

// QueryOptions carries optional per-call inputs.
type QueryOptions struct {
	// Context holds cross-domain inputs, notably "primary_result": the
	// primary agent's answer injected into secondary agents.
	Context map[string]string
}

// DomainAgent is the capability set every domain handler implements.
type DomainAgent interface {
	// Domain returns the constant domain identifier.
	Domain() core.Domain

	// Description is a human-readable summary used for introspection and
	// classification prompts.
	Description() string

	// Keywords feed the router's keyword tables and the registry's reverse
	// index.
	Keywords() []string

	// SystemPrompt is the agent's oracle instruction block.
	SystemPrompt() string

	// SchemaSubset is the domain-relevant backend schema description
	// injected into the prompt.
	SchemaSubset() string

	// Tools returns the agent's callable capabilities, lazily constructed
	// and memoized.
	Tools() []tool.Tool

	// Query runs the reasoning loop to completion and returns the result.
	// Failures inside the loop surface as an error; the orchestrator
	// converts them into degraded results.
	Query(ctx context.Context, text, sessionID string, opts *QueryOptions) (core.AgentResult, error)

	// QueryAsync runs the loop in the background and delivers the outcome
	// on a buffered channel. Decision logic is identical to Query's.
	QueryAsync(ctx context.Context, text, sessionID string, opts *QueryOptions) <-chan Outcome

	// QueryStream runs the reasoning loop while emitting incremental
	// events (token, tool_call, tool_result). The channel is closed when
	// the run finishes; the final result arrives via the returned function
	// after the channel closes.
	QueryStream(ctx context.Context, text, sessionID string, opts *QueryOptions) (<-chan core.Event, func() (core.AgentResult, error))
}

// Outcome is the channel payload of QueryAsync.
type Outcome struct {
	Result core.AgentResult
	Err    error
}

// DegradedResult converts an execution failure into a present-but-failed
// result so synthesis never silently drops the primary domain.
func DegradedResult(domain core.Domain, err error) core.AgentResult {
	return core.AgentResult{
		Answer:   fmt.Sprintf("agent execution error: %v", err),
		Domain:   domain,
		Metadata: map[string]string{"error": err.Error()},
	}
}
