package core

import "time"

// TokenUsage aggregates oracle token consumption for a call or a whole
// request. Cost is denominated in USD when the provider exposes pricing.
type TokenUsage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"total_cost"`
}

// Add accumulates another usage sample into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.Cost += other.Cost
}

// ToolCallRecord captures one tool invocation requested during an agent's
// reasoning loop, in request order.
type ToolCallRecord struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolResultRecord captures the (possibly truncated) textual outcome of a
// tool invocation.
type ToolResultRecord struct {
	Result string `json:"result"`
}

// AgentResult is the outcome of a single domain agent run. A degraded run
// (tool error, oracle error, iteration cap) still produces a result with the
// failure reason as the answer and an "error" metadata tag.
type AgentResult struct {
	Answer      string             `json:"answer"`
	Domain      Domain             `json:"domain"`
	Thoughts    []string           `json:"thoughts,omitempty"`
	ToolCalls   []ToolCallRecord   `json:"tool_calls,omitempty"`
	ToolResults []ToolResultRecord `json:"tool_results,omitempty"`
	Iterations  int                `json:"iterations"`
	TokenUsage  *TokenUsage        `json:"token_usage,omitempty"`
	Metadata    map[string]string  `json:"metadata,omitempty"`
}

// Failed reports whether the result carries an execution failure tag.
func (r AgentResult) Failed() bool {
	_, ok := r.Metadata["error"]
	return ok
}

// MultiAgentResult is the orchestrator's final, user-facing outcome: the
// synthesized answer plus the routing decision and every per-domain result
// that contributed to it.
type MultiAgentResult struct {
	Answer       string                 `json:"answer"`
	Decision     RouteDecision          `json:"domain_decision"`
	AgentResults map[Domain]AgentResult `json:"agent_results"`
	TokenUsage   TokenUsage             `json:"token_usage"`
}

// ConversationTurn is one (query, answer) pair recorded against a session.
type ConversationTurn struct {
	SessionID string    `json:"session_id"`
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}
