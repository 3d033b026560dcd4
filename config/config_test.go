package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 0.8, cfg.Router.HighConfidenceThreshold)
	assert.Equal(t, 0.5, cfg.Router.CrossDomainRatio)
	assert.Equal(t, "transport", cfg.Router.DefaultDomain)
	assert.Equal(t, 5, cfg.Agents.MaxIterations)
	assert.Equal(t, 3, cfg.Agents.MaxCrossDomainAgents)
	assert.True(t, cfg.Agents.EnableCrossDomain)
	assert.Equal(t, 30*time.Second, cfg.Agents.CallTimeout.Std())
	assert.Equal(t, "memory", cfg.History.Store)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
router:
  high_confidence_threshold: 0.9
  default_domain: warehouse
agents:
  max_cross_domain_agents: 2
  call_timeout: 10s
history:
  store: redis
  redis_addr: localhost:6379
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 0.9, cfg.Router.HighConfidenceThreshold)
	assert.Equal(t, "warehouse", cfg.Router.DefaultDomain)
	assert.Equal(t, 2, cfg.Agents.MaxCrossDomainAgents)
	assert.Equal(t, 10*time.Second, cfg.Agents.CallTimeout.Std())
	assert.Equal(t, "redis", cfg.History.Store)
	// untouched fields keep their defaults
	assert.Equal(t, 0.5, cfg.Router.DefaultConfidence)
	assert.Equal(t, "openai", cfg.Oracle.Provider)
}

func TestLoad_EnvOverridesAddr(t *testing.T) {
	t.Setenv("CARGOMESH_ADDR", ":7070")
	path := writeConfig(t, "server:\n  addr: \":9090\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"threshold out of range", "router:\n  high_confidence_threshold: 1.5\n"},
		{"bad default domain", "router:\n  default_domain: finance\n"},
		{"zero iterations", "agents:\n  max_iterations: 0\n"},
		{"malformed yaml", "server: [\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
