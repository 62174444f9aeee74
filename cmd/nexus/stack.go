package main

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/nexusswarm/nexus/internal/agent"
	"github.com/nexusswarm/nexus/internal/config"
	"github.com/nexusswarm/nexus/internal/llm"
	"github.com/nexusswarm/nexus/internal/memory"
	"github.com/nexusswarm/nexus/internal/security"
	"github.com/nexusswarm/nexus/internal/skill"
)

// stack bundles the wired subsystems behind a run: completion routing,
// memory, security, skills, and the role workers.
type stack struct {
	client   *llm.Client
	router   *llm.Router
	mem      *memory.Manager
	enforcer *security.Enforcer
	audit    *security.AuditLogger
	registry *skill.Registry
	watcher  *skill.Watcher
	provider *agent.Provider
}

// buildStack wires every subsystem from the loaded configuration.
func buildStack(cfg *config.Config) (*stack, error) {
	apiKey, _ := config.GetAPIKey(cfg)
	client, err := llm.NewClient(llm.ClientConfig{
		Model:         anthropic.Model(cfg.LLM.DefaultModel),
		APIKey:        apiKey,
		UseAWSBedrock: cfg.LLM.UseBedrock,
		AWSRegion:     cfg.LLM.AWSRegion,
		AWSProfile:    cfg.LLM.AWSProfile,
	})
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}
	router := llm.NewRouter(client, anthropic.Model(cfg.LLM.DefaultModel))

	memCfg := memory.ManagerConfig{
		MaxSessions: cfg.Memory.MaxSessions,
		MaxEntries:  cfg.Memory.MaxEntries,
	}
	if cfg.Memory.Enabled {
		memCfg.DBPath = cfg.Memory.DBPath
		if memCfg.DBPath == "" {
			memCfg.DBPath = memory.DefaultDBPath()
		}
	}
	mem, err := memory.NewManager(memCfg)
	if err != nil {
		return nil, fmt.Errorf("open memory: %w", err)
	}

	var audit *security.AuditLogger
	if cfg.Security.AuditLog != "" {
		audit, err = security.NewAuditLogger(cfg.Security.AuditLog)
		if err != nil {
			mem.Close()
			return nil, fmt.Errorf("open audit log: %w", err)
		}
	}
	enforcer := security.NewEnforcer(audit)

	registry := skill.NewRegistry(enforcer)
	skill.RegisterBuiltins(registry)
	watcher, err := skill.NewWatcher(registry, cfg.SkillsDir())
	if err != nil {
		mem.Close()
		return nil, fmt.Errorf("load skills: %w", err)
	}
	invoker := skill.NewInvoker(registry, enforcer, audit)

	provider, err := agent.NewProvider(agent.Config{
		LLM:    router,
		Memory: mem,
		Skills: invoker,
	})
	if err != nil {
		watcher.Close()
		mem.Close()
		return nil, err
	}

	return &stack{
		client:   client,
		router:   router,
		mem:      mem,
		enforcer: enforcer,
		audit:    audit,
		registry: registry,
		watcher:  watcher,
		provider: provider,
	}, nil
}

// Close releases the stack's resources.
func (s *stack) Close() {
	s.watcher.Close()
	s.mem.Close()
}
