// Package config loads the service configuration from YAML with sane
// defaults for every field. All routing and execution constants live here;
// nothing in the decision path is hardcoded.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/cargomesh/cargomesh/core"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML can carry values like "30s" or "24h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler. Strings go through
// time.ParseDuration; bare integers are taken as nanoseconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", v, err)
		}
		*d = Duration(parsed)
		return nil
	case int:
		*d = Duration(v)
		return nil
	default:
		return fmt.Errorf("cannot parse %v as duration", raw)
	}
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Router  RouterConfig  `yaml:"router"`
	Agents  AgentConfig   `yaml:"agents"`
	Oracle  OracleConfig  `yaml:"oracle"`
	History HistoryConfig `yaml:"history"`
	Backend BackendConfig `yaml:"backend"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	// Addr is the listen address. The CARGOMESH_ADDR environment variable
	// overrides it.
	Addr string `yaml:"addr"`
}

type RouterConfig struct {
	// HighConfidenceThreshold short-circuits oracle classification.
	HighConfidenceThreshold float64 `yaml:"high_confidence_threshold"`
	// CrossDomainRatio is the runner-up keyword-score fraction that marks a
	// decision cross-domain.
	CrossDomainRatio float64 `yaml:"cross_domain_ratio"`
	// DefaultDomain receives unclassifiable requests.
	DefaultDomain string `yaml:"default_domain"`
	// DefaultConfidence is attached to default-domain decisions.
	DefaultConfidence float64 `yaml:"default_confidence"`
}

type AgentConfig struct {
	// MaxIterations caps each agent's reasoning loop.
	MaxIterations int `yaml:"max_iterations"`
	// MaxCrossDomainAgents caps agents per request, primary included.
	MaxCrossDomainAgents int `yaml:"max_cross_domain_agents"`
	// EnableCrossDomain is the global cross-domain switch.
	EnableCrossDomain bool `yaml:"enable_cross_domain"`
	// CallTimeout bounds each oracle call and tool execution.
	CallTimeout Duration `yaml:"call_timeout"`
}

type OracleConfig struct {
	// Provider selects the completion backend: openai, anthropic or mock.
	Provider string `yaml:"provider"`
	// Model is the provider-specific model identifier.
	Model string `yaml:"model"`
	// MaxConcurrent bounds in-flight oracle calls process-wide.
	MaxConcurrent int `yaml:"max_concurrent"`
	// Breaker enables the circuit breaker around the provider.
	Breaker bool `yaml:"breaker"`
}

type HistoryConfig struct {
	// Store selects the history backend: memory or redis.
	Store string `yaml:"store"`
	// RedisAddr is the Redis address when Store is redis.
	RedisAddr string `yaml:"redis_addr"`
	// MaxTurns bounds the per-session tail.
	MaxTurns int `yaml:"max_turns"`
	// TTL expires idle sessions in the Redis store.
	TTL Duration `yaml:"ttl"`
}

type BackendConfig struct {
	// Store selects the knowledge backend. sqlite is the built-in store;
	// embedders can inject their own implementation at assembly time.
	Store string `yaml:"store"`
	// SQLitePath is the database file when Store is sqlite.
	SQLitePath string `yaml:"sqlite_path"`
}

type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is json or text.
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Router: RouterConfig{
			HighConfidenceThreshold: 0.8,
			CrossDomainRatio:        0.5,
			DefaultDomain:           string(core.DomainTransport),
			DefaultConfidence:       0.5,
		},
		Agents: AgentConfig{
			MaxIterations:        5,
			MaxCrossDomainAgents: 3,
			EnableCrossDomain:    true,
			CallTimeout:          Duration(30 * time.Second),
		},
		Oracle: OracleConfig{
			Provider:      "openai",
			Model:         "gpt-4o-mini",
			MaxConcurrent: 8,
			Breaker:       true,
		},
		History: HistoryConfig{
			Store:    "memory",
			MaxTurns: 100,
			TTL:      Duration(24 * time.Hour),
		},
		Backend: BackendConfig{
			Store:      "sqlite",
			SQLitePath: "cargomesh.db",
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads the configuration file at path, layered over the defaults. An
// empty path returns the defaults. CARGOMESH_ADDR overrides the listen
// address either way.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if addr := os.Getenv("CARGOMESH_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Router.HighConfidenceThreshold < 0 || c.Router.HighConfidenceThreshold > 1 {
		return fmt.Errorf("router.high_confidence_threshold must be in [0,1], got %v", c.Router.HighConfidenceThreshold)
	}
	if c.Router.CrossDomainRatio < 0 || c.Router.CrossDomainRatio > 1 {
		return fmt.Errorf("router.cross_domain_ratio must be in [0,1], got %v", c.Router.CrossDomainRatio)
	}
	if c.Router.DefaultConfidence < 0 || c.Router.DefaultConfidence > 1 {
		return fmt.Errorf("router.default_confidence must be in [0,1], got %v", c.Router.DefaultConfidence)
	}
	if !core.ParseDomain(c.Router.DefaultDomain).Valid() {
		return fmt.Errorf("router.default_domain %q is not routable", c.Router.DefaultDomain)
	}
	if c.Agents.MaxIterations < 1 {
		return fmt.Errorf("agents.max_iterations must be at least 1, got %d", c.Agents.MaxIterations)
	}
	if c.Agents.MaxCrossDomainAgents < 1 {
		return fmt.Errorf("agents.max_cross_domain_agents must be at least 1, got %d", c.Agents.MaxCrossDomainAgents)
	}
	return nil
}
