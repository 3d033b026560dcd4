// Package server exposes the orchestrator over HTTP: a synchronous query
// endpoint, a server-sent-events streaming endpoint, agent introspection,
// health and Prometheus metrics. The typed event envelope is JSON-encoded
// at this edge and nowhere else.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cargomesh/cargomesh/core"
	"github.com/cargomesh/cargomesh/logging"
	"github.com/cargomesh/cargomesh/orchestrator"
	"github.com/cargomesh/cargomesh/registry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wires the HTTP surface.
type Server struct {
	orch     *orchestrator.Orchestrator
	reg      *registry.Registry
	logger   logging.Logger
	metrics  *metrics
	registry *prometheus.Registry
}

// New constructs a Server. The logger may be nil.
func New(orch *orchestrator.Orchestrator, reg *registry.Registry, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	promReg := prometheus.NewRegistry()
	return &Server{
		orch:     orch,
		reg:      reg,
		logger:   logging.WithComponent(logger, "server"),
		metrics:  newMetrics(promReg),
		registry: promReg,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/v1/query", s.handleQuery)
	r.Post("/v1/query/stream", s.handleQueryStream)
	r.Get("/v1/agents", s.handleAgents)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return r
}

// queryRequest is the request body shared by both query endpoints.
type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
	// Domain forces routing to one domain when set.
	Domain string `json:"domain"`
	// CrossDomain can veto secondary agents for this request. Defaults to
	// allowed.
	CrossDomain *bool `json:"cross_domain"`
}

type queryResponse struct {
	Answer       string                           `json:"answer"`
	Decision     core.RouteDecision               `json:"decision"`
	AgentResults map[core.Domain]core.AgentResult `json:"agent_results"`
	TokenUsage   core.TokenUsage                  `json:"token_usage"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) decodeQuery(w http.ResponseWriter, r *http.Request) (queryRequest, bool) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return queryRequest{}, false
	}
	if req.Query == "" {
		s.writeError(w, http.StatusBadRequest, "query must not be empty")
		return queryRequest{}, false
	}
	if req.Domain != "" && !core.ParseDomain(req.Domain).Valid() {
		s.writeError(w, http.StatusBadRequest, "unknown domain "+req.Domain)
		return queryRequest{}, false
	}
	return req, true
}

func (req queryRequest) apply(o *orchestrator.QueryOptions) {
	o.SessionID = req.SessionID
	if req.Domain != "" {
		o.ForcedDomain = core.ParseDomain(req.Domain)
	}
	if req.CrossDomain != nil {
		o.AllowCrossDomain = *req.CrossDomain
	}
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeQuery(w, r)
	if !ok {
		s.metrics.requests.WithLabelValues("query", "error").Inc()
		return
	}

	start := time.Now()
	result, err := s.orch.QueryConcurrent(r.Context(), req.Query, req.apply)
	s.metrics.duration.WithLabelValues("query").Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Error("server.query.failed", "error", err.Error())
		s.metrics.requests.WithLabelValues("query", "error").Inc()
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.metrics.requests.WithLabelValues("query", "ok").Inc()
	s.metrics.decisions.WithLabelValues(result.Decision.Domain.String()).Inc()

	s.writeJSON(w, http.StatusOK, queryResponse{
		Answer:       result.Answer,
		Decision:     result.Decision,
		AgentResults: result.AgentResults,
		TokenUsage:   result.TokenUsage,
	})
}

func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeQuery(w, r)
	if !ok {
		s.metrics.requests.WithLabelValues("stream", "error").Inc()
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	s.metrics.activeStreams.Inc()
	defer s.metrics.activeStreams.Dec()

	for ev := range s.orch.QueryStream(r.Context(), req.Query, req.apply) {
		if err := writeSSE(w, ev); err != nil {
			s.logger.Warn("server.stream.write_failed", "error", err.Error())
			return
		}
		flusher.Flush()
		if ev.Terminal() {
			s.metrics.decisions.WithLabelValues(ev.Decision.Domain.String()).Inc()
		}
	}
	s.metrics.requests.WithLabelValues("stream", "ok").Inc()
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"agents": s.reg.Info()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeSSE encodes one event as an SSE data frame.
func writeSSE(w http.ResponseWriter, ev core.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n\n"))
	return err
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("server.encode_failed", "error", err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
