package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the wire vocabulary of the streaming contract.
// Consumers demultiplex on this tag; the payload fields populated depend on
// the type.
type EventType string

const (
	// EventDomainDecision carries the routing decision. It is emitted
	// strictly before any agent-execution event.
	EventDomainDecision EventType = "domain_decision"
	// EventToken carries an incremental chunk of answer text.
	EventToken EventType = "token"
	// EventToolCall announces a tool invocation requested by an agent.
	EventToolCall EventType = "tool_call"
	// EventToolResult carries a tool invocation's outcome.
	EventToolResult EventType = "tool_result"
	// EventCrossDomain announces that a secondary agent is starting.
	EventCrossDomain EventType = "cross_domain"
	// EventError carries a non-fatal error surfaced to the stream.
	EventError EventType = "error"
	// EventDone terminates a run. It is emitted strictly last and carries
	// the final answer plus the aggregated results.
	EventDone EventType = "done"
)

// Event is the typed envelope multiplexed over a run's stream. After
// emission it must be treated as immutable. The envelope stays typed all the
// way to the transport edge; SSE text encoding happens only there.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Domain    Domain    `json:"domain,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// EventDomainDecision / EventDone
	Decision *RouteDecision `json:"decision,omitempty"`

	// EventToken
	Content string `json:"content,omitempty"`

	// EventToolCall
	Tool  string         `json:"tool,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// EventToolResult
	Result string `json:"result,omitempty"`

	// EventError
	Message string `json:"message,omitempty"`

	// EventDone
	FinalAnswer  string                 `json:"final_answer,omitempty"`
	AgentResults map[Domain]AgentResult `json:"agent_results,omitempty"`
	TokenUsage   *TokenUsage            `json:"token_usage,omitempty"`
}

// NewID generates a unique identifier for events and invocations.
func NewID() string { return uuid.NewString() }

func newEvent(t EventType) Event {
	return Event{ID: NewID(), Type: t, Timestamp: time.Now().UTC()}
}

// NewDecisionEvent wraps a routing decision into the first stream event.
func NewDecisionEvent(decision RouteDecision) Event {
	ev := newEvent(EventDomainDecision)
	ev.Domain = decision.Domain
	d := decision
	ev.Decision = &d
	return ev
}

// NewTokenEvent wraps an incremental answer chunk authored by domain.
func NewTokenEvent(domain Domain, content string) Event {
	ev := newEvent(EventToken)
	ev.Domain = domain
	ev.Content = content
	return ev
}

// NewToolCallEvent announces a tool invocation.
func NewToolCallEvent(domain Domain, tool string, input map[string]any) Event {
	ev := newEvent(EventToolCall)
	ev.Domain = domain
	ev.Tool = tool
	ev.Input = input
	return ev
}

// NewToolResultEvent carries a tool invocation outcome.
func NewToolResultEvent(domain Domain, result string) Event {
	ev := newEvent(EventToolResult)
	ev.Domain = domain
	ev.Result = result
	return ev
}

// NewCrossDomainEvent announces that the named secondary agent is starting.
func NewCrossDomainEvent(domain Domain) Event {
	ev := newEvent(EventCrossDomain)
	ev.Domain = domain
	return ev
}

// NewErrorEvent surfaces a recoverable failure on the stream.
func NewErrorEvent(domain Domain, msg string) Event {
	ev := newEvent(EventError)
	ev.Domain = domain
	ev.Message = msg
	return ev
}

// NewDoneEvent terminates a run with the aggregated outcome.
func NewDoneEvent(result MultiAgentResult) Event {
	ev := newEvent(EventDone)
	ev.FinalAnswer = result.Answer
	d := result.Decision
	ev.Decision = &d
	ev.AgentResults = result.AgentResults
	u := result.TokenUsage
	ev.TokenUsage = &u
	return ev
}

// Terminal reports whether the event closes its run.
func (e Event) Terminal() bool { return e.Type == EventDone }
