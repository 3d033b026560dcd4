// Package orchestrator executes routed requests across one or more domain
// agents and folds their answers into a single result. It owns the
// cross-domain execution policy: the primary agent runs first, secondaries
// run with the primary's answer as context, and a synthesis pass merges
// everything. Individual agent failures degrade the result; they never
// abort the request.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cargomesh/cargomesh/agent"
	"github.com/cargomesh/cargomesh/core"
	"github.com/cargomesh/cargomesh/history"
	"github.com/cargomesh/cargomesh/internal/util"
	"github.com/cargomesh/cargomesh/logging"
	"github.com/cargomesh/cargomesh/oracle"
	"github.com/cargomesh/cargomesh/registry"
	"github.com/cargomesh/cargomesh/router"
)

// Options configure an Orchestrator.
type Options struct {
	// MaxCrossDomainAgents caps the total number of agents per request,
	// primary included. Below 2 it disables secondaries entirely.
	MaxCrossDomainAgents int
	// EnableCrossDomain is the global cross-domain switch. Per-request
	// opt-out is QueryOptions.AllowCrossDomain.
	EnableCrossDomain bool
	// HistoryTurns is how many recent turns feed the classification context.
	HistoryTurns int
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// QueryOptions carry per-request inputs.
type QueryOptions struct {
	// SessionID keys conversation history. Empty disables history for the
	// request.
	SessionID string
	// ForcedDomain bypasses routing when set.
	ForcedDomain core.Domain
	// AllowCrossDomain can veto secondary execution for this request even
	// when the decision asks for it.
	AllowCrossDomain bool
}

// Orchestrator coordinates router, registry, agents, synthesis and history
// for a request. Safe for concurrent use.
type Orchestrator struct {
	registry *registry.Registry
	router   *router.DomainRouter
	history  history.ConversationHistory
	oracle   oracle.Oracle
	opts     Options
}

// New constructs an Orchestrator. The oracle handle is used for answer
// synthesis only; agents carry their own. History may be nil.
func New(reg *registry.Registry, rt *router.DomainRouter, hist history.ConversationHistory, o oracle.Oracle, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		MaxCrossDomainAgents: 3,
		EnableCrossDomain:    true,
		HistoryTurns:         5,
		Logger:               logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Orchestrator{registry: reg, router: rt, history: hist, oracle: o, opts: opts}
}

// Query routes text, runs the primary agent and any secondaries
// sequentially, and synthesizes the final answer.
func (o *Orchestrator) Query(ctx context.Context, text string, optFns ...func(o *QueryOptions)) (core.MultiAgentResult, error) {
	return o.execute(ctx, text, false, nil, optFns...)
}

// QueryConcurrent is Query with the secondary agents fanned out in
// goroutines. Ordering of the synthesized sections is unchanged: results
// are joined back into decision order.
func (o *Orchestrator) QueryConcurrent(ctx context.Context, text string, optFns ...func(o *QueryOptions)) (core.MultiAgentResult, error) {
	return o.execute(ctx, text, true, nil, optFns...)
}

func queryOptions(optFns []func(o *QueryOptions)) QueryOptions {
	qopts := QueryOptions{AllowCrossDomain: true}
	for _, fn := range optFns {
		fn(&qopts)
	}
	return qopts
}

// execute is the shared request path. When emit is non-nil the run streams:
// decision first, agent events while they happen, done is left to the
// caller (QueryStream emits it with the returned result).
func (o *Orchestrator) execute(
	ctx context.Context,
	text string,
	concurrent bool,
	emit func(core.Event),
	optFns ...func(o *QueryOptions),
) (core.MultiAgentResult, error) {
	qopts := queryOptions(optFns)
	logger := logging.WithSession(o.opts.Logger, qopts.SessionID)

	routed, err := o.router.Route(ctx, text, func(ro *router.RouteOptions) {
		ro.ForcedDomain = qopts.ForcedDomain
		ro.HistorySummary = o.historySummary(ctx, logger, qopts.SessionID)
	})
	if err != nil {
		return core.MultiAgentResult{}, fmt.Errorf("route request: %w", err)
	}
	decision := routed.Decision
	logger.Info("orchestrator.routed", "domain", decision.Domain,
		"confidence", decision.Confidence, "cross_domain", decision.RequiresCrossDomain)
	if emit != nil {
		emit(core.NewDecisionEvent(decision))
	}

	usage := core.TokenUsage{}
	if routed.Usage != nil {
		usage.Add(*routed.Usage)
	}

	result := core.MultiAgentResult{
		Decision:     decision,
		AgentResults: make(map[core.Domain]core.AgentResult),
	}
	var ordered []core.AgentResult

	primary, ok := o.runPrimary(ctx, logger, text, decision.Domain, qopts, emit)
	if ok {
		result.AgentResults[decision.Domain] = primary
		ordered = append(ordered, primary)
	}

	// Secondaries run even when the primary domain has no agent; they then
	// receive an empty primary answer as context.
	if o.crossDomainAllowed(qopts, decision) {
		secondaries := o.runSecondaries(ctx, logger, text, primary, decision, qopts, concurrent, emit)
		for _, sr := range secondaries {
			result.AgentResults[sr.Domain] = sr
			ordered = append(ordered, sr)
		}
	}

	answer, synthUsage := o.synthesize(ctx, logger, text, ordered)
	result.Answer = answer
	if synthUsage != nil {
		usage.Add(*synthUsage)
	}
	for _, ar := range ordered {
		if ar.TokenUsage != nil {
			usage.Add(*ar.TokenUsage)
		}
	}
	result.TokenUsage = usage

	o.appendHistory(ctx, logger, qopts.SessionID, text, answer)
	return result, nil
}

// runPrimary executes the decision's primary agent. A missing agent is
// logged and skipped; an execution failure degrades into a failed result
// that stays in the aggregation.
func (o *Orchestrator) runPrimary(
	ctx context.Context,
	logger logging.Logger,
	text string,
	domain core.Domain,
	qopts QueryOptions,
	emit func(core.Event),
) (core.AgentResult, bool) {
	a, err := o.registry.Get(domain)
	if err != nil {
		logger.Error("orchestrator.primary.missing", "domain", domain, "error", err.Error())
		if emit != nil {
			emit(core.NewErrorEvent(domain, fmt.Sprintf("no agent registered for %s", domain)))
		}
		return core.AgentResult{}, false
	}

	result, err := o.runAgent(ctx, a, text, qopts.SessionID, nil, emit)
	if err != nil {
		logger.Error("orchestrator.primary.failed", "domain", domain, "error", err.Error())
		if emit != nil {
			emit(core.NewErrorEvent(domain, err.Error()))
		}
		return agent.DegradedResult(domain, err), true
	}
	return result, true
}

func (o *Orchestrator) crossDomainAllowed(qopts QueryOptions, decision core.RouteDecision) bool {
	return qopts.AllowCrossDomain &&
		o.opts.EnableCrossDomain &&
		decision.RequiresCrossDomain &&
		o.opts.MaxCrossDomainAgents >= 2
}

// runSecondaries executes the decision's secondary agents, capped at
// MaxCrossDomainAgents-1, each receiving the primary answer as context. A
// secondary failure is logged and excluded from the aggregation.
func (o *Orchestrator) runSecondaries(
	ctx context.Context,
	logger logging.Logger,
	text string,
	primary core.AgentResult,
	decision core.RouteDecision,
	qopts QueryOptions,
	concurrent bool,
	emit func(core.Event),
) []core.AgentResult {
	domains := decision.SecondaryDomains
	if limit := o.opts.MaxCrossDomainAgents - 1; len(domains) > limit {
		domains = domains[:limit]
	}
	aopts := &agent.QueryOptions{Context: map[string]string{"primary_result": primary.Answer}}

	run := func(domain core.Domain) (core.AgentResult, bool) {
		a, err := o.registry.Get(domain)
		if err != nil {
			logger.Warn("orchestrator.secondary.missing", "domain", domain)
			return core.AgentResult{}, false
		}
		if emit != nil {
			emit(core.NewCrossDomainEvent(domain))
		}
		result, err := a.Query(ctx, text, qopts.SessionID, aopts)
		if err != nil {
			logger.Warn("orchestrator.secondary.failed", "domain", domain, "error", err.Error())
			if emit != nil {
				emit(core.NewErrorEvent(domain, err.Error()))
			}
			return core.AgentResult{}, false
		}
		return result, true
	}

	if !concurrent {
		out := make([]core.AgentResult, 0, len(domains))
		for _, domain := range domains {
			if result, ok := run(domain); ok {
				out = append(out, result)
			}
		}
		return out
	}

	results := make([]*core.AgentResult, len(domains))
	var wg sync.WaitGroup
	for i, domain := range domains {
		wg.Add(1)
		go func(i int, domain core.Domain) {
			defer wg.Done()
			if result, ok := run(domain); ok {
				results[i] = &result
			}
		}(i, domain)
	}
	wg.Wait()

	out := make([]core.AgentResult, 0, len(domains))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// runAgent dispatches to Query or QueryStream depending on whether the run
// is streaming.
func (o *Orchestrator) runAgent(
	ctx context.Context,
	a agent.DomainAgent,
	text, sessionID string,
	aopts *agent.QueryOptions,
	emit func(core.Event),
) (core.AgentResult, error) {
	if emit == nil {
		return a.Query(ctx, text, sessionID, aopts)
	}
	events, wait := a.QueryStream(ctx, text, sessionID, aopts)
	for ev := range events {
		emit(ev)
	}
	return wait()
}

// synthesize folds the collected agent results into the final answer. One
// result passes through verbatim with no oracle involvement; several are
// merged by a single oracle call, with plain concatenation as the fallback
// when that call fails.
func (o *Orchestrator) synthesize(ctx context.Context, logger logging.Logger, query string, results []core.AgentResult) (string, *core.TokenUsage) {
	switch len(results) {
	case 0:
		return "No agent could handle this request.", nil
	case 1:
		return results[0].Answer, nil
	}

	var sections strings.Builder
	for _, r := range results {
		fmt.Fprintf(&sections, "## %s\n%s\n\n", r.Domain, r.Answer)
	}
	raw := strings.TrimSpace(sections.String())

	prompt, err := util.RenderTemplate(synthesisPrompt, map[string]any{
		"Query":    query,
		"Sections": raw,
	})
	if err != nil {
		return raw, nil
	}

	respCh, errCh := o.oracle.Complete(ctx, oracle.Request{
		Messages: []oracle.Message{{Role: oracle.RoleUser, Text: prompt}},
	})
	final, err := oracle.Final(respCh, errCh)
	if err != nil || strings.TrimSpace(final.Text) == "" {
		if err != nil {
			logger.Warn("orchestrator.synthesis.failed", "error", err.Error())
		}
		return raw, final.Usage
	}
	return final.Text, final.Usage
}

func (o *Orchestrator) historySummary(ctx context.Context, logger logging.Logger, sessionID string) string {
	if o.history == nil || sessionID == "" {
		return ""
	}
	turns, err := o.history.Recent(ctx, sessionID, o.opts.HistoryTurns)
	if err != nil {
		logger.Warn("orchestrator.history.read_failed", "error", err.Error())
		return ""
	}
	return history.Summarize(turns)
}

// appendHistory records the turn. Failures are logged and swallowed: losing
// a history entry must not fail the request that produced it.
func (o *Orchestrator) appendHistory(ctx context.Context, logger logging.Logger, sessionID, query, answer string) {
	if o.history == nil || sessionID == "" {
		return
	}
	turn := core.ConversationTurn{
		SessionID: sessionID,
		Query:     query,
		Answer:    answer,
		Timestamp: time.Now().UTC(),
	}
	if err := o.history.Append(ctx, turn); err != nil {
		logger.Warn("orchestrator.history.append_failed", "error", err.Error())
	}
}
