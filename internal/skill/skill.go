// Package skill implements the skill registry and invoker: built-in skills,
// YAML manifest overrides hot-reloaded from a skills directory, and
// capability-checked, audited invocation.
package skill

import (
	"context"
	"errors"

	"github.com/nexusswarm/nexus/internal/security"
)

// ErrSkillNotFound indicates a lookup for an unregistered skill.
var ErrSkillNotFound = errors.New("skill not found")

// ErrSkillDisabled indicates the skill was disabled by a manifest override.
var ErrSkillDisabled = errors.New("skill disabled")

// ParameterDef describes one parameter a skill accepts.
type ParameterDef struct {
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
}

// Manifest declares what a skill does and what it needs. Manifests also
// exist as YAML files in the skills directory, where they override the
// registered skill's grants or disable it.
type Manifest struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
	Author      string `yaml:"author"`
	// Capabilities are the grants the skill needs, constraints included.
	Capabilities []security.Grant        `yaml:"capabilities,omitempty"`
	Parameters   map[string]ParameterDef `yaml:"parameters,omitempty"`
	Returns      string                  `yaml:"returns,omitempty"`
	// Enabled defaults to true; a manifest file can set it false.
	Enabled *bool `yaml:"enabled,omitempty"`
}

// Result is the outcome of one skill execution.
type Result struct {
	Success bool
	Output  string
	Error   string
}

// Skill is an invocable capability-scoped tool.
type Skill interface {
	Manifest() Manifest
	Execute(ctx context.Context, params map[string]string) (Result, error)
}
