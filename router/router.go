// Package router decides which domain agent handles a request. Three
// mechanisms feed one decision path: a deterministic keyword scorer, an
// oracle-assisted classifier, and a configurable default domain. The router
// always produces a decision; classification failures degrade, they never
// surface.
package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/cargomesh/cargomesh/core"
	"github.com/cargomesh/cargomesh/logging"
)

// Options configure a DomainRouter.
type Options struct {
	// HighConfidenceThreshold short-circuits the oracle: a keyword decision
	// at or above it is terminal.
	HighConfidenceThreshold float64
	// DefaultDomain receives requests nothing else could classify.
	DefaultDomain core.Domain
	// DefaultConfidence is attached to default-domain decisions.
	DefaultConfidence float64
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// RouteOptions carry optional per-request inputs.
type RouteOptions struct {
	// ForcedDomain bypasses classification entirely when set.
	ForcedDomain core.Domain
	// HistorySummary is recent-conversation context for the classifier.
	HistorySummary string
}

// Result pairs a decision with the token usage spent producing it. Usage is
// nil when the oracle was never invoked.
type Result struct {
	Decision core.RouteDecision
	Usage    *core.TokenUsage
}

// AsyncResult is the channel payload of RouteAsync.
type AsyncResult struct {
	Result Result
	Err    error
}

// DomainRouter is the routing decision engine. Safe for concurrent use.
type DomainRouter struct {
	scorer     *KeywordScorer
	classifier *Classifier
	listing    string
	opts       Options
}

// New constructs a DomainRouter. The classifier may be nil, in which case
// routing is purely keyword-driven with the default-domain fallback.
func New(scorer *KeywordScorer, classifier *Classifier, domainListing string, optFns ...func(o *Options)) *DomainRouter {
	opts := Options{
		HighConfidenceThreshold: 0.8,
		DefaultDomain:           core.DomainTransport,
		DefaultConfidence:       0.5,
		Logger:                  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &DomainRouter{scorer: scorer, classifier: classifier, listing: domainListing, opts: opts}
}

// Route classifies query into a routing decision. The decision path, in
// order, is:
//
//  1. forced domain (confidence 1.0, terminal)
//  2. keyword decision at or above the high-confidence threshold
//     (oracle never invoked)
//  3. oracle classification
//  4. the keyword decision from step 2, at any confidence
//  5. default domain at the default confidence
//
// The keyword scorer runs at most once; step 4 reuses step 2's result.
func (r *DomainRouter) Route(ctx context.Context, query string, optFns ...func(o *RouteOptions)) (Result, error) {
	var ropts RouteOptions
	for _, fn := range optFns {
		fn(&ropts)
	}
	logger := r.opts.Logger

	if ropts.ForcedDomain != "" {
		if !ropts.ForcedDomain.Valid() {
			return Result{}, fmt.Errorf("forced domain %q is not routable", ropts.ForcedDomain)
		}
		decision, err := core.NewRouteDecision(ropts.ForcedDomain, 1.0, "forced domain override")
		if err != nil {
			return Result{}, err
		}
		logger.Info("router.decision", "source", "forced", "domain", decision.Domain)
		return Result{Decision: decision}, nil
	}

	keywordDecision, keywordErr := r.scorer.Decide(query)
	if keywordErr == nil && keywordDecision.Confidence >= r.opts.HighConfidenceThreshold {
		logger.Info("router.decision", "source", "keyword", "domain", keywordDecision.Domain,
			"confidence", keywordDecision.Confidence)
		return Result{Decision: keywordDecision}, nil
	}

	var usage *core.TokenUsage
	if r.classifier != nil {
		decision, u, err := r.classifier.Classify(ctx, query, ropts.HistorySummary, r.listing)
		usage = u
		if err == nil {
			logger.Info("router.decision", "source", "oracle", "domain", decision.Domain,
				"confidence", decision.Confidence)
			return Result{Decision: decision, Usage: usage}, nil
		}
		if !errors.Is(err, core.ErrNoDecision) {
			return Result{}, err
		}
	}

	if keywordErr == nil {
		logger.Info("router.decision", "source", "keyword_fallback", "domain", keywordDecision.Domain,
			"confidence", keywordDecision.Confidence)
		return Result{Decision: keywordDecision, Usage: usage}, nil
	}

	decision, err := core.NewRouteDecision(r.opts.DefaultDomain, r.opts.DefaultConfidence,
		"no classification signal, using default domain")
	if err != nil {
		return Result{}, err
	}
	logger.Info("router.decision", "source", "default", "domain", decision.Domain)
	return Result{Decision: decision, Usage: usage}, nil
}

// RouteAsync runs Route in a goroutine and delivers the outcome on a
// buffered channel. The decision path is identical to Route's; nothing is
// recomputed.
func (r *DomainRouter) RouteAsync(ctx context.Context, query string, optFns ...func(o *RouteOptions)) <-chan AsyncResult {
	out := make(chan AsyncResult, 1)
	go func() {
		defer close(out)
		result, err := r.Route(ctx, query, optFns...)
		out <- AsyncResult{Result: result, Err: err}
	}()
	return out
}
