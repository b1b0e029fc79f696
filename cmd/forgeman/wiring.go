package main

import (
	"fmt"

	"github.com/forgeman/controlplane/internal/agentkind"
	"github.com/forgeman/controlplane/internal/api"
	"github.com/forgeman/controlplane/internal/config"
	"github.com/forgeman/controlplane/internal/events"
	"github.com/forgeman/controlplane/internal/orchestrator"
	"github.com/forgeman/controlplane/internal/registry"
	"github.com/forgeman/controlplane/internal/state"
)

// daemonBinary is the Terminal Daemon executable Surface dials (and
// spawns, if absent) on first terminal operation.
const daemonBinary = "forgemand-term"

// openRegistry loads the project registry from its default location.
func openRegistry() (*registry.Registry, error) {
	reg, err := registry.New(registry.DefaultPath())
	if err != nil {
		return nil, fmt.Errorf("open project registry: %w", err)
	}
	return reg, nil
}

// newOrchestrator wires an Orchestrator against reg using the loaded
// configuration's timeouts. The returned Orchestrator's debug logger is
// a no-op; no command attaches a session log.
func newOrchestrator(reg *registry.Registry) (*orchestrator.Orchestrator, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// The Claude fallback is best-effort: a project with no Anthropic
	// credentials configured can still run, it just loses the
	// AI-assisted merge and direct-completion fallbacks (an external
	// merge-agent/agent-kind executable still works either way).
	claude, _ := agentkind.NewClaudeClient(agentkind.ClaudeClientConfig{
		APIKey:        cfg.Anthropic.APIKey,
		UseAWSBedrock: cfg.Anthropic.Bedrock,
	})

	return orchestrator.New(orchestrator.Options{
		Projects:     reg,
		Framework:    orchestrator.DefaultFrameworkResolver{},
		Timeout:      cfg.Timeouts.AgentKind,
		GracefulKill: cfg.Timeouts.GracefulKill,
		Claude:       claude,
		Cache:        openCache(),
		Bus:          events.NewBus(256),
	}), nil
}

// newSurface wires the request surface CLI commands drive: an
// Orchestrator plus the project registry and Terminal Daemon client,
// behind the one function-per-operation facade a frontend (this CLI,
// or any future non-CLI client) talks to instead of those packages'
// internal types.
func newSurface(reg *registry.Registry) (*api.Surface, error) {
	orch, err := newOrchestrator(reg)
	if err != nil {
		return nil, err
	}
	return api.New(orch, reg, daemonBinary), nil
}

// openCache opens the global crash-recovery cache database. A failure
// here (missing XDG dirs, locked file) degrades to an uncached
// orchestrator rather than blocking command execution, since the
// in-memory task map is the real source of truth.
func openCache() *state.DB {
	db, err := state.OpenGlobal()
	if err != nil {
		return nil
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil
	}
	return db
}
