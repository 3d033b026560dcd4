package router

import (
	"fmt"
	"strings"

	"github.com/cargomesh/cargomesh/core"
)

// ScorerOptions configure a KeywordScorer.
type ScorerOptions struct {
	// CrossDomainRatio is the runner-up score fraction at which a keyword
	// decision becomes cross-domain. The default of 0.5 matches observed
	// routing behavior but carries no derivation; treat it as tunable.
	CrossDomainRatio float64
}

// KeywordScorer classifies text by counting how many of a domain's keyword
// entries appear in it. It is deterministic and oracle-free: identical text
// always yields the same decision. Tables are fixed at construction; the
// scorer is safe for concurrent use.
type KeywordScorer struct {
	tables map[core.Domain][]string
	opts   ScorerOptions
}

// NewKeywordScorer constructs a scorer over the given keyword tables.
// Keywords are matched case-insensitively as substrings.
func NewKeywordScorer(tables map[core.Domain][]string, optFns ...func(o *ScorerOptions)) *KeywordScorer {
	normalized := make(map[core.Domain][]string, len(tables))
	for domain, keywords := range tables {
		if !domain.Valid() {
			continue
		}
		lowered := make([]string, 0, len(keywords))
		for _, kw := range keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				lowered = append(lowered, kw)
			}
		}
		normalized[domain] = lowered
	}
	opts := ScorerOptions{CrossDomainRatio: 0.5}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &KeywordScorer{tables: normalized, opts: opts}
}

// Score counts the domain's keyword entries present in text. Each table
// entry contributes at most one hit no matter how often it repeats, so a
// repeated keyword cannot inflate confidence past what a single mention
// earns.
func (s *KeywordScorer) Score(text string, domain core.Domain) int {
	lowered := strings.ToLower(text)
	score := 0
	for _, kw := range s.tables[domain] {
		if strings.Contains(lowered, kw) {
			score++
		}
	}
	return score
}

// ScoreAll scores text against every domain with a keyword table.
func (s *KeywordScorer) ScoreAll(text string) map[core.Domain]int {
	scores := make(map[core.Domain]int, len(s.tables))
	for domain := range s.tables {
		scores[domain] = s.Score(text, domain)
	}
	return scores
}

// Decide converts keyword scores into a routing decision. With no keyword
// hits at all it returns core.ErrNoDecision. The winner is the highest
// score; ties break lexicographically on the domain identifier so the
// outcome never depends on map iteration order. Confidence is the winner's
// share of all hits damped by absolute hit count:
//
//	confidence = (best/total) * min(best/2, 1.0)
//
// so a single stray keyword cannot produce a high-confidence decision. A
// runner-up scoring at least half the winner marks the decision
// cross-domain with that one domain as secondary.
func (s *KeywordScorer) Decide(text string) (core.RouteDecision, error) {
	scores := s.ScoreAll(text)

	var winner, runnerUp core.Domain
	best, second, total := 0, 0, 0
	for _, domain := range core.Domains() {
		score := scores[domain]
		total += score
		if score > best {
			runnerUp, second = winner, best
			winner, best = domain, score
		} else if score > second {
			runnerUp, second = domain, score
		}
	}
	if best == 0 {
		return core.RouteDecision{}, core.ErrNoDecision
	}

	damping := float64(best) / 2.0
	if damping > 1.0 {
		damping = 1.0
	}
	confidence := float64(best) / float64(total) * damping
	if confidence > 1.0 {
		confidence = 1.0
	}

	decision, err := core.NewRouteDecision(winner, confidence,
		fmt.Sprintf("keyword match: %d/%d hits for %s", best, total, winner))
	if err != nil {
		return core.RouteDecision{}, err
	}
	if second > 0 && float64(second) >= float64(best)*s.opts.CrossDomainRatio {
		decision = decision.WithSecondary(runnerUp)
	}
	return decision, nil
}

// Tables exposes the scorer's keyword tables for introspection.
func (s *KeywordScorer) Tables() map[core.Domain][]string {
	out := make(map[core.Domain][]string, len(s.tables))
	for domain, keywords := range s.tables {
		out[domain] = append([]string(nil), keywords...)
	}
	return out
}
