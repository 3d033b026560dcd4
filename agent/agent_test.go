package agent

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/cargomesh/cargomesh/backend"
	"github.com/cargomesh/cargomesh/backend/sqlite"
	"github.com/cargomesh/cargomesh/core"
	"github.com/cargomesh/cargomesh/internal/util"
	"github.com/cargomesh/cargomesh/oracle"
	"github.com/cargomesh/cargomesh/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedOracle returns queued responses in order, regardless of the
// prompt. It complements oracle.Mock for multi-turn loop tests where the
// last user message never changes between iterations.
type scriptedOracle struct {
	responses []oracle.Response
	calls     int
}

func (s *scriptedOracle) Complete(ctx context.Context, req oracle.Request) (<-chan oracle.Response, <-chan error) {
	respCh := make(chan oracle.Response, 1)
	errCh := make(chan error, 1)
	if s.calls < len(s.responses) {
		respCh <- s.responses[s.calls]
	} else {
		errCh <- errors.New("script exhausted")
	}
	s.calls++
	close(respCh)
	close(errCh)
	return respCh, errCh
}

func (s *scriptedOracle) Info() oracle.Info {
	return oracle.Info{Name: "scripted", Provider: "test", SupportsTools: true}
}

func echoSpec(tools ...tool.Tool) Spec {
	return Spec{
		Domain:       core.DomainFleet,
		Description:  "test agent",
		Keywords:     []string{"test"},
		SystemPrompt: "You are a test agent.",
		BuildTools:   func() []tool.Tool { return tools },
	}
}

func echoTool(name string) tool.Tool {
	return tool.NewFunctionTool(
		name, "echoes its input",
		util.ObjectSchema(map[string]any{"text": util.StringProp("text to echo")}),
		func(ctx context.Context, args map[string]any) (string, error) {
			v, _ := args["text"].(string)
			return "echo: " + v, nil
		},
	)
}

func TestBase_DirectAnswer(t *testing.T) {
	mock := oracle.NewMock()
	mock.AddResponse("hello", "hi there")
	mock.ReportUsage(core.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})

	a := New(echoSpec(), mock)
	result, err := a.Query(context.Background(), "hello", "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, "hi there", result.Answer)
	assert.Equal(t, core.DomainFleet, result.Domain)
	assert.Equal(t, 1, result.Iterations)
	assert.Empty(t, result.ToolCalls)
	require.NotNil(t, result.TokenUsage)
	assert.Equal(t, 15, result.TokenUsage.TotalTokens)
}

func TestBase_ToolLoop(t *testing.T) {
	scripted := &scriptedOracle{responses: []oracle.Response{
		{ToolCalls: []oracle.ToolCall{{ID: "c1", Name: "echo", Arguments: `{"text":"ping"}`}}},
		{Text: "the tool said: echo: ping", FinishReason: "stop"},
	}}

	a := New(echoSpec(echoTool("echo")), scripted)
	result, err := a.Query(context.Background(), "run the tool", "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, "the tool said: echo: ping", result.Answer)
	assert.Equal(t, 2, result.Iterations)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "echo", result.ToolCalls[0].Name)
	assert.Equal(t, "ping", result.ToolCalls[0].Args["text"])
	require.Len(t, result.ToolResults, 1)
	assert.Equal(t, "echo: ping", result.ToolResults[0].Result)
	assert.False(t, result.Failed())
}

func TestBase_UnknownToolFoldedIntoObservation(t *testing.T) {
	scripted := &scriptedOracle{responses: []oracle.Response{
		{ToolCalls: []oracle.ToolCall{{ID: "c1", Name: "missing", Arguments: `{}`}}},
		{Text: "done", FinishReason: "stop"},
	}}

	a := New(echoSpec(echoTool("echo")), scripted)
	result, err := a.Query(context.Background(), "run it", "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, "done", result.Answer)
	require.Len(t, result.ToolResults, 1)
	assert.Contains(t, result.ToolResults[0].Result, "not available")
}

func TestBase_MaxIterationsDegrades(t *testing.T) {
	mock := oracle.NewMock()
	mock.AddToolCall("loop forever", oracle.ToolCall{ID: "c1", Name: "echo", Arguments: `{"text":"x"}`})

	a := New(echoSpec(echoTool("echo")), mock, func(o *Options) {
		o.MaxIterations = 2
	})
	result, err := a.Query(context.Background(), "loop forever", "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Iterations)
	assert.True(t, result.Failed())
	assert.Contains(t, result.Answer, "2 reasoning iterations")
	assert.Len(t, result.ToolCalls, 2)
}

func TestBase_OracleFailure(t *testing.T) {
	mock := oracle.NewMock()
	mock.FailWith(errors.New("provider unavailable"))

	a := New(echoSpec(), mock)
	_, err := a.Query(context.Background(), "hello", "s1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider unavailable")
}

func TestBase_CrossDomainContextInjection(t *testing.T) {
	mock := oracle.NewMock() // unmatched prompts echo back the user text

	a := New(echoSpec(), mock)
	result, err := a.Query(context.Background(), "plan dispatch", "s1", &QueryOptions{
		Context: map[string]string{"primary_result": "vehicle 12가3456 is under maintenance"},
	})
	require.NoError(t, err)
	assert.Contains(t, result.Answer, "[Previous Context]")
	assert.Contains(t, result.Answer, "12가3456")
}

func TestBase_QueryAsync(t *testing.T) {
	mock := oracle.NewMock()
	mock.AddResponse("hello", "hi there")

	a := New(echoSpec(), mock)
	outcome := <-a.QueryAsync(context.Background(), "hello", "s1", nil)
	require.NoError(t, outcome.Err)
	assert.Equal(t, "hi there", outcome.Result.Answer)
}

func TestBase_QueryStream(t *testing.T) {
	mock := oracle.NewMock()
	mock.AddResponse("hello", "hi")

	a := New(echoSpec(), mock)
	events, wait := a.QueryStream(context.Background(), "hello", "s1", nil)

	var tokens strings.Builder
	for ev := range events {
		if ev.Type == core.EventToken {
			tokens.WriteString(ev.Content)
		}
	}
	result, err := wait()
	require.NoError(t, err)
	assert.Equal(t, "hi", result.Answer)
	assert.Equal(t, "hi", tokens.String())
}

func TestBase_QueryStreamToolEvents(t *testing.T) {
	scripted := &scriptedOracle{responses: []oracle.Response{
		{ToolCalls: []oracle.ToolCall{{ID: "c1", Name: "echo", Arguments: `{"text":"ping"}`}}},
		{Text: "done", FinishReason: "stop"},
	}}

	a := New(echoSpec(echoTool("echo")), scripted)
	events, wait := a.QueryStream(context.Background(), "run the tool", "s1", nil)

	var types []core.EventType
	for ev := range events {
		types = append(types, ev.Type)
	}
	_, err := wait()
	require.NoError(t, err)
	assert.Contains(t, types, core.EventToolCall)
	assert.Contains(t, types, core.EventToolResult)
}

func TestBase_GateBoundsOracleCalls(t *testing.T) {
	mock := oracle.NewMock()
	gate := core.NewCallGate(1)
	a := New(echoSpec(), mock, func(o *Options) {
		o.Gate = gate
		o.CallTimeout = time.Second
	})

	result, err := a.Query(context.Background(), "hello", "s1", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Answer)
	assert.Equal(t, 0, gate.InFlight())
}

func TestTruncate_RuneBoundary(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))

	long := strings.Repeat("차량", 200) // 6 bytes per repetition
	out := truncate(long, 500)
	assert.True(t, utf8.ValidString(out), "truncation must not split a rune")
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.LessOrEqual(t, len(out), 503)
}

func TestConcreteAgents_Metadata(t *testing.T) {
	mock := oracle.NewMock()
	kb := openTestBackend(t)

	cases := []struct {
		agent     DomainAgent
		domain    core.Domain
		toolCount int
		keyword   string
	}{
		{NewFleet(mock, kb), core.DomainFleet, 4, "정비"},
		{NewTransport(mock, kb), core.DomainTransport, 3, "배송"},
		{NewWarehouse(mock, kb), core.DomainWarehouse, 3, "재고"},
		{NewCallService(mock, kb), core.DomainCallService, 3, "예약"},
		{NewMemory(mock, kb), core.DomainMemory, 2, "기억"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.domain, tc.agent.Domain())
		assert.Len(t, tc.agent.Tools(), tc.toolCount)
		assert.Contains(t, tc.agent.Keywords(), tc.keyword)
		assert.NotEmpty(t, tc.agent.Description())
		assert.NotEmpty(t, tc.agent.SystemPrompt())
		assert.NotEmpty(t, tc.agent.SchemaSubset())
	}
}

const testDDL = `
CREATE TABLE vehicles (plate TEXT, vehicle_type TEXT, status TEXT, mileage INTEGER, driver TEXT);
CREATE TABLE maintenance (plate TEXT, maintenance_type TEXT, due_date TEXT, last_date TEXT, description TEXT);
CREATE TABLE drivers (name TEXT, license_class TEXT, assigned_plate TEXT, phone TEXT);
CREATE TABLE fuel_logs (plate TEXT, filled_at TEXT, liters REAL, cost REAL, odometer INTEGER);
CREATE TABLE facts (fact_id TEXT, session_id TEXT, content TEXT, created_at TEXT);
`

func openTestBackend(t *testing.T) *sqlite.Store {
	t.Helper()
	kb, err := sqlite.Open(filepath.Join(t.TempDir(), "agents.db"), "test schema")
	require.NoError(t, err)
	t.Cleanup(func() { _ = kb.Close() })
	require.NoError(t, kb.Init(context.Background(), testDDL))
	return kb
}

func findTool(t *testing.T, a DomainAgent, name string) tool.Tool {
	t.Helper()
	for _, tl := range a.Tools() {
		if tl.Name() == name {
			return tl
		}
	}
	t.Fatalf("tool %q not found", name)
	return nil
}

func TestFleetTools_VehicleStatus(t *testing.T) {
	kb := openTestBackend(t)
	ctx := context.Background()
	require.NoError(t, kb.ExecuteWrite(ctx,
		sqliteInsert("vehicles", map[string]any{
			"plate": "12가3456", "vehicle_type": "truck", "status": "maintenance",
			"mileage": 84000, "driver": "김철수",
		}),
		sqliteInsert("vehicles", map[string]any{
			"plate": "34나5678", "vehicle_type": "van", "status": "active",
			"mileage": 12000, "driver": "이영희",
		}),
	))

	fleet := NewFleet(oracle.NewMock(), kb)
	status := findTool(t, fleet, "fleet_vehicle_status")

	out, err := status.Call(ctx, map[string]any{"status_filter": "maintenance"})
	require.NoError(t, err)
	assert.Contains(t, out, "12가3456")
	assert.NotContains(t, out, "34나5678")

	out, err = status.Call(ctx, map[string]any{})
	require.NoError(t, err)
	assert.Contains(t, out, "(2)")
}

func TestFleetTools_EmptyResult(t *testing.T) {
	kb := openTestBackend(t)
	fleet := NewFleet(oracle.NewMock(), kb)
	status := findTool(t, fleet, "fleet_vehicle_status")

	out, err := status.Call(context.Background(), map[string]any{"plate": "nope"})
	require.NoError(t, err)
	assert.Equal(t, "No matching records.", out)
}

func TestMemoryTools_RememberAndRecall(t *testing.T) {
	kb := openTestBackend(t)
	ctx := context.Background()
	mem := NewMemory(oracle.NewMock(), kb)

	remember := findTool(t, mem, "remember_fact")
	out, err := remember.Call(ctx, map[string]any{
		"content": "preferred warehouse is Incheon", "session_id": "s1",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Stored fact")

	recall := findTool(t, mem, "recall_facts")
	out, err = recall.Call(ctx, map[string]any{"search": "Incheon"})
	require.NoError(t, err)
	assert.Contains(t, out, "preferred warehouse is Incheon")

	out, err = recall.Call(ctx, map[string]any{"search": "no such fact"})
	require.NoError(t, err)
	assert.Equal(t, "No matching records.", out)
}

func TestMemoryTools_RejectsEmptyContent(t *testing.T) {
	kb := openTestBackend(t)
	mem := NewMemory(oracle.NewMock(), kb)
	remember := findTool(t, mem, "remember_fact")

	_, err := remember.Call(context.Background(), map[string]any{"content": "   "})
	require.Error(t, err)
}

func sqliteInsert(table string, values map[string]any) (stmt backend.Statement) {
	cols := make([]string, 0, len(values))
	params := make([]string, 0, len(values))
	for k := range values {
		cols = append(cols, k)
		params = append(params, ":"+k)
	}
	stmt.Query = "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(params, ", ") + ")"
	stmt.Params = values
	return stmt
}
