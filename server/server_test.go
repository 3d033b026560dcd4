package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cargomesh/cargomesh/agent"
	"github.com/cargomesh/cargomesh/core"
	"github.com/cargomesh/cargomesh/oracle"
	"github.com/cargomesh/cargomesh/orchestrator"
	"github.com/cargomesh/cargomesh/registry"
	"github.com/cargomesh/cargomesh/router"
	"github.com/cargomesh/cargomesh/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	reg := registry.New(nil)
	fleet := agent.New(agent.Spec{
		Domain:       core.DomainFleet,
		Description:  "fleet test agent",
		Keywords:     []string{"차량", "정비", "vehicle"},
		SystemPrompt: "test",
		BuildTools:   func() []tool.Tool { return nil },
	}, oracle.NewMock())
	require.NoError(t, reg.Register(fleet))

	rt := router.New(router.NewKeywordScorer(reg.KeywordTables()), nil, reg.DomainListing())
	orch := orchestrator.New(reg, rt, nil, oracle.NewMock())
	return New(orch, reg, nil)
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandleQuery(t *testing.T) {
	h := newTestServer(t).Handler()

	w := postJSON(t, h, "/v1/query", `{"query":"vehicle status","session_id":"s1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp queryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, core.DomainFleet, resp.Decision.Domain)
	assert.Contains(t, resp.Answer, "vehicle status")
	assert.Contains(t, resp.AgentResults, core.DomainFleet)
}

func TestHandleQuery_BadRequests(t *testing.T) {
	h := newTestServer(t).Handler()

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"query":`},
		{"empty query", `{"query":""}`},
		{"unknown domain", `{"query":"x","domain":"finance"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(t, h, "/v1/query", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestHandleQuery_ForcedDomain(t *testing.T) {
	h := newTestServer(t).Handler()

	w := postJSON(t, h, "/v1/query", `{"query":"totally ambiguous","domain":"fleet"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp queryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, core.DomainFleet, resp.Decision.Domain)
	assert.Equal(t, 1.0, resp.Decision.Confidence)
}

func TestHandleQueryStream(t *testing.T) {
	h := newTestServer(t).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/query/stream",
		strings.NewReader(`{"query":"vehicle status"}`))
	req = req.WithContext(context.Background())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	var types []core.EventType
	scanner := bufio.NewScanner(w.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev core.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		types = append(types, ev.Type)
	}
	require.NotEmpty(t, types)
	assert.Equal(t, core.EventDomainDecision, types[0])
	assert.Equal(t, core.EventDone, types[len(types)-1])
	assert.Contains(t, types, core.EventToken)
}

func TestHandleAgents(t *testing.T) {
	h := newTestServer(t).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/agents", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Agents []registry.AgentInfo `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Agents, 1)
	assert.Equal(t, core.DomainFleet, resp.Agents[0].Domain)
}

func TestHandleHealthAndMetrics(t *testing.T) {
	h := newTestServer(t).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// drive one request so the counters exist, then scrape
	postJSON(t, h, "/v1/query", `{"query":"vehicle status"}`)
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cargomesh_requests_total")
	assert.Contains(t, w.Body.String(), `cargomesh_routing_decisions_total{domain="fleet"}`)
}
