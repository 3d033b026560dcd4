package cargomesh

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cargomesh/cargomesh/config"
	"github.com/cargomesh/cargomesh/core"
	"github.com/cargomesh/cargomesh/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Oracle.Provider = "mock"
	cfg.Oracle.Breaker = false
	cfg.Backend.SQLitePath = filepath.Join(t.TempDir(), "test.db")
	return cfg
}

func TestNew_WiresEverything(t *testing.T) {
	m, err := New(testConfig(t))
	require.NoError(t, err)

	assert.Len(t, m.Registry.ListDomains(), 5)
	require.NotNil(t, m.Router)
	require.NotNil(t, m.Orchestrator)
	require.NotNil(t, m.Server)

	schema, err := m.Backend.SchemaDescription(context.Background())
	require.NoError(t, err)
	assert.Contains(t, schema, "vehicles")
	assert.Contains(t, schema, "facts")
}

func TestNew_EndToEndQuery(t *testing.T) {
	m, err := New(testConfig(t))
	require.NoError(t, err)

	result, err := m.Orchestrator.Query(context.Background(), "안녕하세요", func(o *orchestrator.QueryOptions) {
		o.SessionID = "s1"
	})
	require.NoError(t, err)
	// nothing classifiable: the default domain answers
	assert.Equal(t, core.DomainTransport, result.Decision.Domain)
	assert.Equal(t, 0.5, result.Decision.Confidence)
	assert.NotEmpty(t, result.Answer)

	turns, err := m.History.Recent(context.Background(), "s1", 5)
	require.NoError(t, err)
	require.Len(t, turns, 1)
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Oracle.Provider = "nope"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNew_UnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend.Store = "nope"
	_, err := New(cfg)
	assert.Error(t, err)
}
