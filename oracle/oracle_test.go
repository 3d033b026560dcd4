package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cargomesh/cargomesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMock_CannedResponse(t *testing.T) {
	m := NewMock()
	m.AddResponse("hello", "world")

	text, _, err := Text(context.Background(), m, "hello")
	require.NoError(t, err)
	assert.Equal(t, "world", text)
	assert.Equal(t, 1, m.Calls())
}

func TestMock_StreamingFoldsPartials(t *testing.T) {
	m := NewMock()
	m.AddResponse("stream me", "chunked answer")

	respCh, errCh := m.Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Text: "stream me"}},
		Stream:   true,
	})

	var partials int
	var final Response
	for resp := range respCh {
		if resp.Partial {
			partials++
			continue
		}
		final = resp
	}
	require.NoError(t, <-errCh)
	assert.Equal(t, len("chunked answer"), partials)
	assert.Equal(t, "chunked answer", final.Text)
}

func TestMock_FailWith(t *testing.T) {
	m := NewMock()
	m.FailWith(errors.New("provider down"))

	_, _, err := Text(context.Background(), m, "anything")
	require.Error(t, err)
	assert.Equal(t, 1, m.Calls())
}

func TestMock_ReportsUsage(t *testing.T) {
	m := NewMock()
	m.AddResponse("q", "a")
	m.ReportUsage(core.TokenUsage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5})

	_, usage, err := Text(context.Background(), m, "q")
	require.NoError(t, err)
	require.NotNil(t, usage)
	assert.Equal(t, 5, usage.TotalTokens)
}

func TestToolCall_ParseArguments(t *testing.T) {
	call := ToolCall{Name: "vehicle_status", Arguments: `{"limit": 5, "status_filter": "maintenance"}`}
	args, err := call.ParseArguments()
	require.NoError(t, err)
	assert.Equal(t, float64(5), args["limit"])
	assert.Equal(t, "maintenance", args["status_filter"])

	empty := ToolCall{Name: "noop"}
	args, err = empty.ParseArguments()
	require.NoError(t, err)
	assert.Empty(t, args)

	broken := ToolCall{Name: "bad", Arguments: "{not json"}
	_, err = broken.ParseArguments()
	require.Error(t, err)
}

func TestBreaker_PassesThrough(t *testing.T) {
	m := NewMock()
	m.AddResponse("ping", "pong")
	b := NewBreaker(m)

	text, _, err := Text(context.Background(), b, "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", text)
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	m := NewMock()
	m.FailWith(errors.New("provider down"))
	b := NewBreaker(m, func(o *BreakerOptions) {
		o.ConsecutiveFailures = 2
		o.OpenTimeout = time.Minute
	})

	for i := 0; i < 2; i++ {
		_, _, err := Text(context.Background(), b, "x")
		require.Error(t, err)
	}
	calls := m.Calls()

	// Breaker is now open: the inner oracle must not be reached.
	_, _, err := Text(context.Background(), b, "x")
	require.Error(t, err)
	assert.Equal(t, calls, m.Calls())
}
