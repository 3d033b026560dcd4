package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cargomesh/cargomesh/core"
	"github.com/cargomesh/cargomesh/internal/util"
	"github.com/cargomesh/cargomesh/logging"
	"github.com/cargomesh/cargomesh/oracle"
)

// Classifier asks the completion oracle to pick a domain. It is strictly
// best-effort: any failure (oracle error, malformed reply, unknown domain,
// out-of-range confidence) collapses to core.ErrNoDecision so the router
// can fall back. The caller never sees an oracle failure as its own error.
type Classifier struct {
	oracle oracle.Oracle
	logger logging.Logger
}

// NewClassifier constructs a Classifier on the given oracle.
func NewClassifier(o oracle.Oracle, logger logging.Logger) *Classifier {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Classifier{oracle: o, logger: logger}
}

// Classify renders the classification prompt and parses the oracle's reply.
// The returned usage is non-nil when the oracle reported token counts, even
// when classification itself failed.
func (c *Classifier) Classify(ctx context.Context, query, historySummary, domainListing string) (core.RouteDecision, *core.TokenUsage, error) {
	prompt, err := util.RenderTemplate(classificationPrompt, map[string]any{
		"Query":   query,
		"History": historySummary,
		"Domains": domainListing,
	})
	if err != nil {
		return core.RouteDecision{}, nil, core.ErrNoDecision
	}

	respCh, errCh := c.oracle.Complete(ctx, oracle.Request{
		Messages: []oracle.Message{{Role: oracle.RoleUser, Text: prompt}},
	})
	final, err := oracle.Final(respCh, errCh)
	if err != nil {
		c.logger.Warn("router.classifier.oracle_failed", "error", err.Error())
		return core.RouteDecision{}, nil, core.ErrNoDecision
	}

	decision, err := ParseDecision(final.Text)
	if err != nil {
		c.logger.Warn("router.classifier.unparseable", "error", err.Error())
		return core.RouteDecision{}, final.Usage, core.ErrNoDecision
	}
	return decision, final.Usage, nil
}

// decisionWire is the JSON shape the classification prompt requests.
type decisionWire struct {
	Domain      string   `json:"domain"`
	Confidence  float64  `json:"confidence"`
	Reasoning   string   `json:"reasoning"`
	CrossDomain bool     `json:"cross_domain"`
	Secondary   []string `json:"secondary_domains"`
}

// ParseDecision extracts a RouteDecision from oracle output. The JSON may
// arrive bare or wrapped in a fenced code block; anything else fails.
func ParseDecision(text string) (core.RouteDecision, error) {
	payload := stripFences(text)

	var wire decisionWire
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return core.RouteDecision{}, fmt.Errorf("decode decision: %w", err)
	}

	domain := core.ParseDomain(wire.Domain)
	if !domain.Valid() {
		return core.RouteDecision{}, fmt.Errorf("unknown primary domain %q", wire.Domain)
	}
	decision, err := core.NewRouteDecision(domain, wire.Confidence, wire.Reasoning)
	if err != nil {
		return core.RouteDecision{}, err
	}
	if wire.CrossDomain {
		secondary := make([]core.Domain, 0, len(wire.Secondary))
		for _, s := range wire.Secondary {
			secondary = append(secondary, core.ParseDomain(s))
		}
		decision = decision.WithSecondary(secondary...)
	}
	return decision, nil
}

// stripFences unwraps ```json ... ``` (or bare ```) fencing around the
// payload and trims surrounding noise down to the outermost JSON object.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return text
}
