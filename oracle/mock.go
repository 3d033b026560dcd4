package oracle

import (
	"context"
	"fmt"
	"sync"

	"github.com/cargomesh/cargomesh/core"
)

// Mock is an in-memory Oracle for tests. Canned completions are keyed on the
// last user message; unmatched prompts get a generic echo unless a scripted
// failure is armed. Every call is counted so tests can assert that a code
// path never reached the oracle.
type Mock struct {
	mu        sync.Mutex
	responses map[string]Response
	err       error
	calls     int
	usage     *core.TokenUsage
}

// NewMock constructs an empty mock oracle.
func NewMock() *Mock {
	return &Mock{responses: make(map[string]Response)}
}

// AddResponse registers a deterministic text completion for a prompt.
func (m *Mock) AddResponse(prompt, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = Response{Text: text, FinishReason: "stop"}
}

// AddToolCall registers a completion that requests a tool invocation.
func (m *Mock) AddToolCall(prompt string, call ToolCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = Response{ToolCalls: []ToolCall{call}, FinishReason: "tool_calls"}
}

// FailWith arms the mock to fail every subsequent call with err. Pass nil to
// disarm.
func (m *Mock) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// ReportUsage attaches fixed token usage to every final response.
func (m *Mock) ReportUsage(u core.TokenUsage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = &u
}

// Calls returns the number of Complete invocations so far.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Complete implements Oracle.
func (m *Mock) Complete(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.calls++
	err := m.err
	var prompt string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			prompt = req.Messages[i].Text
			break
		}
	}
	resp, scripted := m.responses[prompt]
	usage := m.usage
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)
		if err != nil {
			errCh <- err
			return
		}
		if !scripted {
			resp = Response{Text: fmt.Sprintf("mock response to: %s", prompt), FinishReason: "stop"}
		}
		if usage != nil {
			u := *usage
			resp.Usage = &u
		}
		if req.Stream && resp.Text != "" {
			for _, r := range resp.Text {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: string(r)}:
				}
			}
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- resp:
		}
	}()
	return respCh, errCh
}

// Info implements Oracle.
func (m *Mock) Info() Info {
	return Info{Name: "mock", Provider: "mock", SupportsTools: true}
}
