package core

import "fmt"

// RouteDecision is the outcome of domain classification: which agent should
// handle a request, how confident the router is, and whether additional
// domains must be consulted. Decisions are value objects created fresh per
// request and never shared across requests.
type RouteDecision struct {
	Domain              Domain   `json:"domain"`
	Confidence          float64  `json:"confidence"`
	Reasoning           string   `json:"reasoning"`
	RequiresCrossDomain bool     `json:"requires_cross_domain"`
	SecondaryDomains    []Domain `json:"secondary_domains"`
}

// NewRouteDecision validates and constructs a RouteDecision. Confidence
// outside [0,1] is rejected, not clamped.
func NewRouteDecision(domain Domain, confidence float64, reasoning string) (RouteDecision, error) {
	if confidence < 0.0 || confidence > 1.0 {
		return RouteDecision{}, fmt.Errorf("confidence must be in [0.0, 1.0], got %v", confidence)
	}
	return RouteDecision{Domain: domain, Confidence: confidence, Reasoning: reasoning}, nil
}

// WithSecondary returns a copy of the decision marked cross-domain with the
// given secondary domains. Duplicates of the primary are dropped.
func (d RouteDecision) WithSecondary(domains ...Domain) RouteDecision {
	out := d
	out.SecondaryDomains = nil
	seen := map[Domain]bool{d.Domain: true}
	for _, sd := range domains {
		if seen[sd] || !sd.Valid() {
			continue
		}
		seen[sd] = true
		out.SecondaryDomains = append(out.SecondaryDomains, sd)
	}
	out.RequiresCrossDomain = len(out.SecondaryDomains) > 0
	return out
}
