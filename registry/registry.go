// Package registry maintains the domain-to-agent table consulted by the
// router and orchestrator. Exactly one agent serves a domain; registering a
// second replaces the first. A reverse keyword index is kept alongside for
// keyword-based lookup and for feeding the router's scoring tables.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cargomesh/cargomesh/agent"
	"github.com/cargomesh/cargomesh/core"
	"github.com/cargomesh/cargomesh/logging"
)

// ErrUnknownDomain rejects registration against a non-routable domain.
var ErrUnknownDomain = errors.New("registry: unknown domain")

// AgentInfo is the introspection record returned by Info and the agents
// listing endpoint.
type AgentInfo struct {
	Domain      core.Domain `json:"domain"`
	Description string      `json:"description"`
	ToolCount   int         `json:"tool_count"`
	Keywords    []string    `json:"keywords"`
}

// Registry is the concurrent domain-to-agent table.
type Registry struct {
	mu       sync.RWMutex
	agents   map[core.Domain]agent.DomainAgent
	keywords map[string]core.Domain
	logger   logging.Logger
}

// New constructs an empty Registry.
func New(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Registry{
		agents:   make(map[core.Domain]agent.DomainAgent),
		keywords: make(map[string]core.Domain),
		logger:   logger,
	}
}

// Register binds an agent to its domain. Registering over an existing
// binding replaces it and logs a warning; the replaced agent's keywords are
// purged from the reverse index first.
func (r *Registry) Register(a agent.DomainAgent) error {
	domain := a.Domain()
	if !domain.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[domain]; exists {
		r.logger.Warn("registry.replace", "domain", domain)
		r.purgeKeywordsLocked(domain)
	}
	r.agents[domain] = a
	for _, kw := range a.Keywords() {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			r.keywords[kw] = domain
		}
	}
	r.logger.Info("registry.register", "domain", domain, "tools", len(a.Tools()))
	return nil
}

// Unregister removes the domain's binding and its keyword index entries,
// returning the removed agent. Unknown domains return nil.
func (r *Registry) Unregister(domain core.Domain) agent.DomainAgent {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, exists := r.agents[domain]
	if !exists {
		return nil
	}
	r.purgeKeywordsLocked(domain)
	delete(r.agents, domain)
	r.logger.Info("registry.unregister", "domain", domain)
	return a
}

func (r *Registry) purgeKeywordsLocked(domain core.Domain) {
	for kw, d := range r.keywords {
		if d == domain {
			delete(r.keywords, kw)
		}
	}
}

// Get returns the agent bound to domain, or core.ErrAgentNotFound.
func (r *Registry) Get(domain core.Domain) (agent.DomainAgent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[domain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrAgentNotFound, domain)
	}
	return a, nil
}

// GetByName resolves a domain string (case-insensitive) and returns its
// agent. Unknown strings report core.ErrAgentNotFound.
func (r *Registry) GetByName(name string) (agent.DomainAgent, error) {
	domain := core.ParseDomain(name)
	if !domain.Valid() {
		return nil, fmt.Errorf("%w: %q", core.ErrAgentNotFound, name)
	}
	return r.Get(domain)
}

// ListAgents returns the registered agents ordered by domain.
func (r *Registry) ListAgents() []agent.DomainAgent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]agent.DomainAgent, 0, len(r.agents))
	for _, domain := range core.Domains() {
		if a, ok := r.agents[domain]; ok {
			out = append(out, a)
		}
	}
	return out
}

// RouteByKeywords returns the domain owning the first index keyword found
// in text, with the reverse-index keys scanned in sorted order for
// determinism. The second return is false when nothing matches.
func (r *Registry) RouteByKeywords(text string) (core.Domain, bool) {
	lowered := strings.ToLower(text)

	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.keywords))
	for kw := range r.keywords {
		keys = append(keys, kw)
	}
	sort.Strings(keys)
	for _, kw := range keys {
		if strings.Contains(lowered, kw) {
			return r.keywords[kw], true
		}
	}
	return core.DomainUnknown, false
}

// ListDomains returns the registered domains in lexicographic order.
func (r *Registry) ListDomains() []core.Domain {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Domain, 0, len(r.agents))
	for _, domain := range core.Domains() {
		if _, ok := r.agents[domain]; ok {
			out = append(out, domain)
		}
	}
	return out
}

// KeywordTables exports every registered agent's keywords, keyed by domain,
// in the shape the router's keyword scorer consumes.
func (r *Registry) KeywordTables() map[core.Domain][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[core.Domain][]string, len(r.agents))
	for domain, a := range r.agents {
		out[domain] = append([]string(nil), a.Keywords()...)
	}
	return out
}

// Info returns introspection records for every registered agent, ordered by
// domain.
func (r *Registry) Info() []AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]AgentInfo, 0, len(r.agents))
	for _, domain := range core.Domains() {
		a, ok := r.agents[domain]
		if !ok {
			continue
		}
		out = append(out, AgentInfo{
			Domain:      domain,
			Description: a.Description(),
			ToolCount:   len(a.Tools()),
			Keywords:    append([]string(nil), a.Keywords()...),
		})
	}
	return out
}

// DomainListing renders registered domains with their descriptions, one per
// line, for classification prompts.
func (r *Registry) DomainListing() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var b strings.Builder
	for _, domain := range core.Domains() {
		a, ok := r.agents[domain]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", domain, a.Description())
	}
	return strings.TrimRight(b.String(), "\n")
}
