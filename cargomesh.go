// Package cargomesh assembles the logistics multi-agent service: a domain
// router in front of five specialized agents (fleet, transport, warehouse,
// call service, memory) sharing one knowledge backend, one completion
// oracle and one conversation history. The zero-config entry point is
// New(config.Default()).
package cargomesh

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cargomesh/cargomesh/agent"
	"github.com/cargomesh/cargomesh/backend"
	"github.com/cargomesh/cargomesh/backend/sqlite"
	"github.com/cargomesh/cargomesh/config"
	"github.com/cargomesh/cargomesh/core"
	"github.com/cargomesh/cargomesh/history"
	"github.com/cargomesh/cargomesh/logging"
	"github.com/cargomesh/cargomesh/oracle"
	"github.com/cargomesh/cargomesh/oracle/anthropic"
	"github.com/cargomesh/cargomesh/oracle/openai"
	"github.com/cargomesh/cargomesh/orchestrator"
	"github.com/cargomesh/cargomesh/registry"
	"github.com/cargomesh/cargomesh/router"
	"github.com/cargomesh/cargomesh/server"
	"github.com/redis/go-redis/v9"
)

// schemaDDL is the knowledge-store schema covering every agent's tables.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS vehicles (plate TEXT, vehicle_type TEXT, status TEXT, mileage INTEGER, driver TEXT);
CREATE TABLE IF NOT EXISTS maintenance (plate TEXT, maintenance_type TEXT, due_date TEXT, last_date TEXT, description TEXT);
CREATE TABLE IF NOT EXISTS drivers (name TEXT, license_class TEXT, assigned_plate TEXT, phone TEXT);
CREATE TABLE IF NOT EXISTS fuel_logs (plate TEXT, filled_at TEXT, liters REAL, cost REAL, odometer INTEGER);
CREATE TABLE IF NOT EXISTS shipments (tracking_no TEXT, origin TEXT, destination TEXT, status TEXT, assigned_plate TEXT, eta TEXT);
CREATE TABLE IF NOT EXISTS dispatches (dispatch_id TEXT, plate TEXT, driver TEXT, route TEXT, departure TEXT, status TEXT);
CREATE TABLE IF NOT EXISTS routes (route TEXT, origin TEXT, destination TEXT, distance_km REAL, duration_min INTEGER);
CREATE TABLE IF NOT EXISTS inventory (sku TEXT, item_name TEXT, quantity INTEGER, reorder_level INTEGER, warehouse TEXT);
CREATE TABLE IF NOT EXISTS movements (movement_id TEXT, sku TEXT, direction TEXT, quantity INTEGER, moved_at TEXT, warehouse TEXT);
CREATE TABLE IF NOT EXISTS locations (sku TEXT, warehouse TEXT, zone TEXT, rack TEXT, bin TEXT);
CREATE TABLE IF NOT EXISTS bookings (booking_id TEXT, customer TEXT, pickup TEXT, dropoff TEXT, status TEXT, booked_at TEXT);
CREATE TABLE IF NOT EXISTS etas (booking_id TEXT, eta TEXT, distance_km REAL, updated_at TEXT);
CREATE TABLE IF NOT EXISTS payments (payment_id TEXT, booking_id TEXT, customer TEXT, amount REAL, method TEXT, paid_at TEXT);
CREATE TABLE IF NOT EXISTS facts (fact_id TEXT, session_id TEXT, content TEXT, created_at TEXT);
`

// Option overrides a constructed dependency before wiring.
type Option func(*CargoMesh)

// WithOracle replaces the configured completion oracle, breaker included.
func WithOracle(o oracle.Oracle) Option {
	return func(m *CargoMesh) { m.Oracle = o }
}

// WithBackend replaces the configured knowledge backend.
func WithBackend(b backend.Backend) Option {
	return func(m *CargoMesh) { m.Backend = b }
}

// WithHistory replaces the configured conversation history.
func WithHistory(h history.ConversationHistory) Option {
	return func(m *CargoMesh) { m.History = h }
}

// WithLogger replaces the configured logger.
func WithLogger(l logging.Logger) Option {
	return func(m *CargoMesh) { m.Logger = l }
}

// CargoMesh is the assembled service.
type CargoMesh struct {
	Config       config.Config
	Logger       logging.Logger
	Oracle       oracle.Oracle
	Backend      backend.Backend
	History      history.ConversationHistory
	Registry     *registry.Registry
	Router       *router.DomainRouter
	Orchestrator *orchestrator.Orchestrator
	Server       *server.Server
}

// New builds the service from configuration. Options run first; any
// dependency they leave unset is constructed from the configuration, so an
// override fully replaces its config-driven counterpart.
func New(cfg config.Config, opts ...Option) (*CargoMesh, error) {
	m := &CargoMesh{Config: cfg}
	for _, opt := range opts {
		opt(m)
	}

	if m.Logger == nil {
		m.Logger = buildLogger(cfg.Logging)
	}
	var err error
	if m.Oracle == nil {
		if m.Oracle, err = buildOracle(cfg.Oracle); err != nil {
			return nil, err
		}
	}
	if m.Backend == nil {
		if m.Backend, err = buildBackend(cfg.Backend); err != nil {
			return nil, err
		}
	}
	if m.History == nil {
		m.History = buildHistory(cfg.History)
	}

	gate := core.NewCallGate(cfg.Oracle.MaxConcurrent)
	agentOpts := func(o *agent.Options) {
		o.MaxIterations = cfg.Agents.MaxIterations
		o.CallTimeout = cfg.Agents.CallTimeout.Std()
		o.Gate = gate
		o.Logger = logging.WithComponent(m.Logger, "agent")
	}

	m.Registry = registry.New(logging.WithComponent(m.Logger, "registry"))
	agents := []agent.DomainAgent{
		agent.NewFleet(m.Oracle, m.Backend, agentOpts),
		agent.NewTransport(m.Oracle, m.Backend, agentOpts),
		agent.NewWarehouse(m.Oracle, m.Backend, agentOpts),
		agent.NewCallService(m.Oracle, m.Backend, agentOpts),
		agent.NewMemory(m.Oracle, m.Backend, agentOpts),
	}
	for _, a := range agents {
		if err := m.Registry.Register(a); err != nil {
			return nil, fmt.Errorf("register %s agent: %w", a.Domain(), err)
		}
	}

	classifier := router.NewClassifier(m.Oracle, logging.WithComponent(m.Logger, "router"))
	m.Router = router.New(
		router.NewKeywordScorer(m.Registry.KeywordTables(), func(o *router.ScorerOptions) {
			o.CrossDomainRatio = cfg.Router.CrossDomainRatio
		}),
		classifier,
		m.Registry.DomainListing(),
		func(o *router.Options) {
			o.HighConfidenceThreshold = cfg.Router.HighConfidenceThreshold
			o.DefaultDomain = core.ParseDomain(cfg.Router.DefaultDomain)
			o.DefaultConfidence = cfg.Router.DefaultConfidence
			o.Logger = logging.WithComponent(m.Logger, "router")
		},
	)

	m.Orchestrator = orchestrator.New(m.Registry, m.Router, m.History, m.Oracle,
		func(o *orchestrator.Options) {
			o.MaxCrossDomainAgents = cfg.Agents.MaxCrossDomainAgents
			o.EnableCrossDomain = cfg.Agents.EnableCrossDomain
			o.Logger = logging.WithComponent(m.Logger, "orchestrator")
		},
	)

	m.Server = server.New(m.Orchestrator, m.Registry, m.Logger)
	return m, nil
}

func buildLogger(cfg config.LoggingConfig) logging.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if cfg.Format == "text" {
		return logging.NewTextLogger(os.Stderr, level)
	}
	return logging.NewJSONLogger(os.Stderr, level)
}

func buildOracle(cfg config.OracleConfig) (oracle.Oracle, error) {
	var o oracle.Oracle
	switch cfg.Provider {
	case "openai":
		o = openai.New(func(opts *openai.Options) {
			if cfg.Model != "" {
				opts.Model = cfg.Model
			}
		})
	case "anthropic":
		o = anthropic.New()
	case "mock":
		o = oracle.NewMock()
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Provider)
	}
	if cfg.Breaker {
		o = oracle.NewBreaker(o)
	}
	return o, nil
}

func buildBackend(cfg config.BackendConfig) (backend.Backend, error) {
	switch cfg.Store {
	case "sqlite":
		store, err := sqlite.Open(cfg.SQLitePath, schemaDDL)
		if err != nil {
			return nil, err
		}
		if err := store.Init(context.Background(), schemaDDL); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown backend store %q", cfg.Store)
	}
}

func buildHistory(cfg config.HistoryConfig) history.ConversationHistory {
	if cfg.Store == "redis" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return history.NewRedisStore(client, func(o *history.RedisOptions) {
			o.MaxTurns = int64(cfg.MaxTurns)
			o.TTL = cfg.TTL.Std()
		})
	}
	return history.NewInMemoryStore(cfg.MaxTurns)
}
