package agent

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cargomesh/cargomesh/core"
	"github.com/cargomesh/cargomesh/logging"
	"github.com/cargomesh/cargomesh/oracle"
	"github.com/cargomesh/cargomesh/tool"
)

// Options configure a Base agent.
type Options struct {
	// MaxIterations caps the reasoning loop; on breach the run terminates
	// with a degraded "max iterations reached" answer.
	MaxIterations int
	// CallTimeout bounds each individual oracle call and tool execution.
	// Zero disables the per-call bound (the caller's context still applies).
	CallTimeout time.Duration
	// Gate bounds process-wide oracle concurrency. Optional.
	Gate *core.CallGate
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// Spec declares a concrete agent's identity: what varies between fleet,
// transport, warehouse, call service and memory. Everything else (the
// reasoning loop) is shared.
type Spec struct {
	Domain       core.Domain
	Description  string
	Keywords     []string
	SystemPrompt string
	SchemaSubset string
	// BuildTools constructs the agent's tools bound to the backend handle.
	// Called at most once; the result is memoized.
	BuildTools func() []tool.Tool
}

// Base is the shared DomainAgent implementation. Concrete agents are Base
// values configured by a Spec; there is no inheritance hierarchy, only the
// shared loop.
type Base struct {
	spec   Spec
	oracle oracle.Oracle
	opts   Options

	toolsOnce sync.Once
	tools     []tool.Tool
	toolIndex map[string]tool.Tool
}

// New constructs a domain agent from its spec and the shared oracle handle.
func New(spec Spec, o oracle.Oracle, optFns ...func(o *Options)) *Base {
	opts := Options{
		MaxIterations: 5,
		CallTimeout:   30 * time.Second,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Base{spec: spec, oracle: o, opts: opts}
}

// Domain implements DomainAgent.
func (a *Base) Domain() core.Domain { return a.spec.Domain }

// Description implements DomainAgent.
func (a *Base) Description() string { return a.spec.Description }

// Keywords implements DomainAgent.
func (a *Base) Keywords() []string { return a.spec.Keywords }

// SystemPrompt implements DomainAgent.
func (a *Base) SystemPrompt() string { return a.spec.SystemPrompt }

// SchemaSubset implements DomainAgent.
func (a *Base) SchemaSubset() string { return a.spec.SchemaSubset }

// Tools implements DomainAgent with lazy, memoized construction.
func (a *Base) Tools() []tool.Tool {
	a.toolsOnce.Do(func() {
		if a.spec.BuildTools != nil {
			a.tools = a.spec.BuildTools()
		}
		a.toolIndex = make(map[string]tool.Tool, len(a.tools))
		for _, t := range a.tools {
			a.toolIndex[t.Name()] = t
		}
	})
	return a.tools
}

// Query implements DomainAgent.
func (a *Base) Query(ctx context.Context, text, sessionID string, opts *QueryOptions) (core.AgentResult, error) {
	return a.runLoop(ctx, text, sessionID, opts, nil)
}

// QueryAsync implements DomainAgent.
func (a *Base) QueryAsync(ctx context.Context, text, sessionID string, opts *QueryOptions) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		result, err := a.runLoop(ctx, text, sessionID, opts, nil)
		out <- Outcome{Result: result, Err: err}
	}()
	return out
}

// QueryStream implements DomainAgent. Events are emitted while the loop
// runs; call the returned function after the channel closes to obtain the
// final result.
func (a *Base) QueryStream(ctx context.Context, text, sessionID string, opts *QueryOptions) (<-chan core.Event, func() (core.AgentResult, error)) {
	events := make(chan core.Event, 64)
	var (
		result core.AgentResult
		err    error
		done   = make(chan struct{})
	)
	go func() {
		defer close(events)
		defer close(done)
		result, err = a.runLoop(ctx, text, sessionID, opts, func(ev core.Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
	}()
	return events, func() (core.AgentResult, error) {
		<-done
		return result, err
	}
}

// instructions renders the full oracle instruction block: system prompt
// plus the domain schema subset.
func (a *Base) instructions() string {
	if a.spec.SchemaSubset == "" {
		return a.spec.SystemPrompt
	}
	return a.spec.SystemPrompt + "\n\n## Backend schema\n" + a.spec.SchemaSubset
}

// runLoop is the bounded reason -> tool -> observe cycle. It has two states,
// reasoning and terminated, with a single self-loop edge gated by "tool
// requested AND iterations < max".
func (a *Base) runLoop(
	ctx context.Context,
	text, sessionID string,
	opts *QueryOptions,
	emit func(core.Event),
) (core.AgentResult, error) {
	logger := logging.WithSession(a.opts.Logger, sessionID)

	userText := text
	if opts != nil {
		if primary, ok := opts.Context["primary_result"]; ok && primary != "" {
			userText = fmt.Sprintf("%s\n\n[Previous Context]\n%s", text, primary)
		}
	}

	defs := make([]oracle.ToolDefinition, 0, len(a.Tools()))
	for _, t := range a.Tools() {
		defs = append(defs, oracle.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}

	result := core.AgentResult{Domain: a.spec.Domain}
	usage := core.TokenUsage{}
	messages := []oracle.Message{{Role: oracle.RoleUser, Text: userText}}

	for iter := 0; iter < a.opts.MaxIterations; iter++ {
		result.Iterations = iter + 1

		final, err := a.completeOnce(ctx, oracle.Request{
			Instructions: a.instructions(),
			Messages:     messages,
			Tools:        defs,
			Stream:       emit != nil,
		}, emit)
		if err != nil {
			return core.AgentResult{}, fmt.Errorf("agent %s oracle call: %w", a.spec.Domain, err)
		}
		if final.Usage != nil {
			usage.Add(*final.Usage)
		}

		if len(final.ToolCalls) == 0 {
			result.Answer = final.Text
			if final.Text != "" {
				result.Thoughts = append(result.Thoughts, final.Text)
			}
			if usage.TotalTokens > 0 || usage.Cost > 0 {
				result.TokenUsage = &usage
			}
			return result, nil
		}

		messages = append(messages, oracle.Message{
			Role:      oracle.RoleAssistant,
			Text:      final.Text,
			ToolCalls: final.ToolCalls,
		})
		if final.Text != "" {
			result.Thoughts = append(result.Thoughts, final.Text)
		}

		for _, call := range final.ToolCalls {
			args, err := call.ParseArguments()
			if err != nil {
				logger.Warn("agent.tool.bad_arguments", "domain", a.spec.Domain, "tool", call.Name, "error", err.Error())
				args = map[string]any{}
			}
			result.ToolCalls = append(result.ToolCalls, core.ToolCallRecord{Name: call.Name, Args: args})
			if emit != nil {
				emit(core.NewToolCallEvent(a.spec.Domain, call.Name, args))
			}

			output := a.executeTool(ctx, logger, call.Name, args)
			result.ToolResults = append(result.ToolResults, core.ToolResultRecord{Result: truncate(output, 500)})
			if emit != nil {
				emit(core.NewToolResultEvent(a.spec.Domain, truncate(output, 500)))
			}

			messages = append(messages, oracle.Message{
				Role:       oracle.RoleTool,
				Text:       output,
				ToolCallID: call.ID,
			})
		}
	}

	// Iteration cap reached: terminate with a degraded answer instead of
	// spinning on tool calls forever.
	logger.Warn("agent.loop.max_iterations", "domain", a.spec.Domain, "max", a.opts.MaxIterations)
	result.Answer = fmt.Sprintf("Unable to produce a final answer within %d reasoning iterations.", a.opts.MaxIterations)
	result.Metadata = map[string]string{"error": "max iterations reached"}
	if usage.TotalTokens > 0 || usage.Cost > 0 {
		result.TokenUsage = &usage
	}
	return result, nil
}

// completeOnce performs one gated, time-bounded oracle call, forwarding
// partial text as token events when emit is set.
func (a *Base) completeOnce(ctx context.Context, req oracle.Request, emit func(core.Event)) (oracle.Response, error) {
	if a.opts.Gate != nil {
		if err := a.opts.Gate.Acquire(ctx); err != nil {
			return oracle.Response{}, err
		}
		defer a.opts.Gate.Release()
	}

	callCtx := ctx
	if a.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.opts.CallTimeout)
		defer cancel()
	}

	respCh, errCh := a.oracle.Complete(callCtx, req)
	if emit == nil {
		return oracle.Final(respCh, errCh)
	}

	var final oracle.Response
	var sawFinal bool
	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if resp.Partial {
				if resp.Text != "" {
					emit(core.NewTokenEvent(a.spec.Domain, resp.Text))
				}
				continue
			}
			final = resp
			sawFinal = true
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return oracle.Response{}, err
			}
		}
	}
	if !sawFinal {
		return oracle.Response{}, fmt.Errorf("oracle returned no final response")
	}
	return final, nil
}

// executeTool runs one tool with the per-call timeout. Tool failures are
// folded into the observation text so the oracle can react to them; they do
// not abort the loop.
func (a *Base) executeTool(ctx context.Context, logger logging.Logger, name string, args map[string]any) string {
	a.Tools() // ensure index
	t, ok := a.toolIndex[name]
	if !ok {
		logger.Warn("agent.tool.unknown", "domain", a.spec.Domain, "tool", name)
		return fmt.Sprintf("tool %q is not available", name)
	}

	callCtx := ctx
	if a.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.opts.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	output, err := t.Call(callCtx, args)
	if err != nil {
		logger.Error("agent.tool.failed", "domain", a.spec.Domain, "tool", name, "error", err.Error())
		return fmt.Sprintf("tool %s failed: %v", name, err)
	}
	logger.Debug("agent.tool.executed", "domain", a.spec.Domain, "tool", name, "duration_ms", time.Since(start).Milliseconds())
	return output
}

// truncate cuts s to at most max bytes, backing off to a rune boundary so
// multi-byte text never yields invalid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
