package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cargomesh/cargomesh/core"
)

// Role values used in Message. They mirror the chat-completion convention
// shared by the supported providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of normalized conversation input. Assistant messages
// may carry tool calls; tool messages answer a prior call via ToolCallID.
type Message struct {
	Role       string     `json:"role"`
	Text       string     `json:"text,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a function invocation request surfaced by the oracle, unified
// across providers so downstream logic needs no per-vendor branching.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON-encoded argument object
}

// ParseArguments decodes the call's JSON argument payload.
func (c ToolCall) ParseArguments() (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(c.Arguments) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(c.Arguments), &args); err != nil {
		return nil, fmt.Errorf("decode tool arguments for %s: %w", c.Name, err)
	}
	return args, nil
}

// ToolDefinition declaratively exposes a callable function to the oracle.
// Parameters is a minimal JSON Schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is the normalized oracle input.
type Request struct {
	Instructions string           `json:"instructions,omitempty"`
	Messages     []Message        `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// Response is a partial or final chunk emitted by the oracle. The final
// chunk (Partial == false) carries the finish reason, any requested tool
// calls, and token usage when the provider reports it.
type Response struct {
	Partial      bool             `json:"partial"`
	Text         string           `json:"text,omitempty"`
	ToolCalls    []ToolCall       `json:"tool_calls,omitempty"`
	FinishReason string           `json:"finish_reason,omitempty"`
	Usage        *core.TokenUsage `json:"usage,omitempty"`
}

// Info describes an oracle implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	SupportsTools bool   `json:"supports_tools"`
}

// Oracle is the minimal completion interface the router, agents and
// synthesizer depend on. Implementations stream responses over the first
// channel and report a terminal failure over the second; both channels are
// closed when the call finishes. Callers bound each call with their own
// context deadline; the oracle makes no latency promises.
type Oracle interface {
	Complete(ctx context.Context, req Request) (<-chan Response, <-chan error)
	Info() Info
}

// Final drains a Complete call and returns the last (non-partial) response.
// Partial chunks are folded into the final text when the provider emits the
// final chunk without the accumulated text.
func Final(respCh <-chan Response, errCh <-chan error) (Response, error) {
	var (
		final   Response
		partial strings.Builder
		sawAny  bool
	)
	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			sawAny = true
			if resp.Partial {
				partial.WriteString(resp.Text)
				continue
			}
			final = resp
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}
	if !sawAny {
		return Response{}, fmt.Errorf("oracle returned no response")
	}
	if final.Text == "" && partial.Len() > 0 {
		final.Text = partial.String()
	}
	return final, nil
}

// Text performs a one-shot completion of a single prompt and returns the
// final text plus any reported usage.
func Text(ctx context.Context, o Oracle, prompt string) (string, *core.TokenUsage, error) {
	respCh, errCh := o.Complete(ctx, Request{
		Messages: []Message{{Role: RoleUser, Text: prompt}},
	})
	final, err := Final(respCh, errCh)
	if err != nil {
		return "", nil, err
	}
	return final.Text, final.Usage, nil
}
