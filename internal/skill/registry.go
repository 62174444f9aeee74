package skill

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/nexusswarm/nexus/internal/security"
)

// Registry stores available skills and keeps the enforcer's grants in sync
// with their manifests.
type Registry struct {
	mu       sync.RWMutex
	skills   map[string]Skill
	disabled map[string]bool
	enforcer *security.Enforcer
}

// NewRegistry creates a registry backed by the given enforcer.
func NewRegistry(enforcer *security.Enforcer) *Registry {
	return &Registry{
		skills:   make(map[string]Skill),
		disabled: make(map[string]bool),
		enforcer: enforcer,
	}
}

// Register adds a skill and grants the capabilities its manifest declares.
func (r *Registry) Register(s Skill) {
	m := s.Manifest()

	r.mu.Lock()
	r.skills[m.Name] = s
	r.mu.Unlock()

	r.enforcer.Grant(m.Name, m.Capabilities)
}

// Get returns a skill by name. Disabled skills are reported distinctly so
// callers can tell policy from absence.
func (r *Registry) Get(name string) (Skill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.skills[name]
	if !ok {
		return nil, fmt.Errorf("skill %q: %w", name, ErrSkillNotFound)
	}
	if r.disabled[name] {
		return nil, fmt.Errorf("skill %q: %w", name, ErrSkillDisabled)
	}
	return s, nil
}

// List returns the manifests of all registered skills, sorted by name.
// Disabled skills are included with Enabled set false.
func (r *Registry) List() []Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	manifests := make([]Manifest, 0, len(r.skills))
	for name, s := range r.skills {
		m := s.Manifest()
		if r.disabled[name] {
			enabled := false
			m.Enabled = &enabled
		}
		manifests = append(manifests, m)
	}
	sort.Slice(manifests, func(i, j int) bool { return manifests[i].Name < manifests[j].Name })
	return manifests
}

// ApplyManifest applies a manifest-file override to a registered skill:
// replacement grants and the enabled flag. Overrides for unknown skills are
// ignored so a manifest can predate its skill.
func (r *Registry) ApplyManifest(m Manifest) {
	r.mu.Lock()
	_, known := r.skills[m.Name]
	if known && m.Enabled != nil {
		r.disabled[m.Name] = !*m.Enabled
	}
	r.mu.Unlock()

	if !known {
		log.Printf("[skill] manifest for unknown skill %q ignored", m.Name)
		return
	}
	if len(m.Capabilities) > 0 {
		r.enforcer.Grant(m.Name, m.Capabilities)
	}
}
