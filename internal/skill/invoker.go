package skill

import (
	"context"
	"fmt"

	"github.com/nexusswarm/nexus/internal/security"
)

// Invoker executes skills with capability checks and audit logging.
type Invoker struct {
	registry *Registry
	enforcer *security.Enforcer
	audit    *security.AuditLogger
}

// NewInvoker creates an invoker. The audit logger may be nil.
func NewInvoker(registry *Registry, enforcer *security.Enforcer, audit *security.AuditLogger) *Invoker {
	return &Invoker{registry: registry, enforcer: enforcer, audit: audit}
}

// Invoke runs a skill on behalf of an actor. Every required capability is
// checked against the concrete resources in params before the skill runs,
// and the invocation is audited either way.
func (i *Invoker) Invoke(ctx context.Context, actor, name string, params map[string]string) (Result, error) {
	s, err := i.registry.Get(name)
	if err != nil {
		return Result{}, err
	}

	secCtx := security.Context{
		Path:    params["path"],
		Domain:  params["domain"],
		Command: params["command"],
	}
	for _, grant := range s.Manifest().Capabilities {
		if err := i.enforcer.Check(actor, name, grant.Capability, secCtx); err != nil {
			i.logInvocation(actor, name, params, security.ResultDenied)
			return Result{}, err
		}
	}

	result, err := s.Execute(ctx, params)
	if err != nil {
		i.logInvocation(actor, name, params, security.ResultError)
		return Result{}, fmt.Errorf("skill %s: %w", name, err)
	}

	outcome := security.ResultAllowed
	if !result.Success {
		outcome = security.ResultError
	}
	i.logInvocation(actor, name, params, outcome)
	return result, nil
}

func (i *Invoker) logInvocation(actor, name string, params map[string]string, result string) {
	if i.audit == nil {
		return
	}
	i.audit.LogAction("skill_invoked", actor, "invoke:"+name, name, result, params)
}
