// Package security implements capability-based permission checks for skill
// invocations and an append-only JSONL audit log of every decision.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
)

// Capability names what a skill is allowed to do.
type Capability string

const (
	CapFileRead    Capability = "file:read"
	CapFileWrite   Capability = "file:write"
	CapNetworkHTTP Capability = "network:http"
	CapShellExec   Capability = "shell:execute"
	CapMemoryRead  Capability = "memory:read"
	CapMemoryWrite Capability = "memory:write"
	CapLLMInvoke   Capability = "llm:invoke"
	CapSystemInfo  Capability = "system:info"
)

// ErrCapabilityDenied indicates a skill lacks a required capability.
var ErrCapabilityDenied = errors.New("capability denied")

// Constraints narrow a grant to specific resources.
type Constraints struct {
	// Paths are glob patterns a file capability is limited to.
	Paths []string `yaml:"paths,omitempty"`
	// Domains a network capability is limited to.
	Domains []string `yaml:"domains,omitempty"`
	// Commands a shell capability is limited to.
	Commands []string `yaml:"commands,omitempty"`
}

// Grant is a capability with optional constraints.
type Grant struct {
	Capability  Capability  `yaml:"capability"`
	Constraints Constraints `yaml:"constraints,omitempty"`
}

// Context carries the concrete resource a check is about.
type Context struct {
	Path    string
	Domain  string
	Command string
}

// Enforcer checks capability grants at runtime. Every skill gets the
// default grants plus whatever its manifest declares.
type Enforcer struct {
	mu       sync.RWMutex
	grants   map[string][]Grant
	defaults []Grant
	audit    *AuditLogger
}

// NewEnforcer creates an enforcer. The audit logger may be nil; decisions
// are then unlogged.
func NewEnforcer(audit *AuditLogger) *Enforcer {
	return &Enforcer{
		grants: make(map[string][]Grant),
		defaults: []Grant{
			{Capability: CapLLMInvoke},
			{Capability: CapMemoryRead},
		},
		audit: audit,
	}
}

// Grant assigns capabilities to a skill, replacing previous grants.
func (e *Enforcer) Grant(skillName string, grants []Grant) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.grants[skillName] = grants
}

// Grants returns the effective grants of a skill, defaults included.
func (e *Enforcer) Grants(skillName string) []Grant {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := append([]Grant(nil), e.grants[skillName]...)
	return append(out, e.defaults...)
}

// Check verifies a skill holds the required capability for the given
// resource context. Returns ErrCapabilityDenied (wrapped with detail) when
// it does not. Every decision is audited.
func (e *Enforcer) Check(actor, skillName string, required Capability, ctx Context) error {
	allowed := false
	for _, grant := range e.Grants(skillName) {
		if grant.Capability == required && satisfies(grant.Constraints, ctx) {
			allowed = true
			break
		}
	}

	resource := ctx.Path
	if resource == "" {
		resource = ctx.Domain
	}
	if resource == "" {
		resource = ctx.Command
	}

	if e.audit != nil {
		result := ResultAllowed
		if !allowed {
			result = ResultDenied
		}
		e.audit.LogAction("capability_checked", actor, string(required), skillName+":"+resource, result, nil)
	}

	if !allowed {
		return fmt.Errorf("skill %q lacks capability %q: %w", skillName, required, ErrCapabilityDenied)
	}
	return nil
}

// satisfies verifies the context falls inside the grant's constraints.
// Empty constraints, or a check with no resource context, pass.
func satisfies(c Constraints, ctx Context) bool {
	if len(c.Paths) > 0 && ctx.Path != "" {
		ok := false
		for _, pattern := range c.Paths {
			if matched, _ := filepath.Match(pattern, ctx.Path); matched {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(c.Domains) > 0 && ctx.Domain != "" {
		if !containsString(c.Domains, ctx.Domain) {
			return false
		}
	}
	if len(c.Commands) > 0 && ctx.Command != "" {
		if !containsString(c.Commands, ctx.Command) {
			return false
		}
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
