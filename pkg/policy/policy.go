// Package policy gates every request: authenticate, per-key rate limit,
// validate requested tool/agent/skill names against the key's profile and
// the Registry, check resource ceilings, and audit the decision. The five
// checks always run in this fixed order — cheapest first, audit last —
// so a denied request is still recorded.
package policy

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tarsygate/llmgate/pkg/apierr"
	"github.com/tarsygate/llmgate/pkg/ledger"
	"github.com/tarsygate/llmgate/pkg/registry"
)

// AuthContext is what Authenticate binds a request to.
type AuthContext struct {
	APIKey    string
	ProjectID string
	Profile   ledger.PermissionProfile
}

// Request is everything Evaluate needs to run its five checks. Tools,
// Agents, and Skills are only checked when non-empty (some request kinds,
// like a plain chat completion, never specify any).
type Request struct {
	TaskID                  string
	APIKey                  string
	Tools                   []string
	Agents                  []string
	Skills                  []string
	RequestedTimeoutSeconds int             // 0 = unset, defer to profile ceiling
	RequestedMaxCostUSD     decimal.Decimal // zero value = unset
}

// Decision is Evaluate's successful result: the bound auth context plus
// the effective (request-or-ceiling) resource limits for this task.
type Decision struct {
	Auth                    AuthContext
	EffectiveTimeoutSeconds int
	EffectiveMaxCostUSD     decimal.Decimal
}

// ledgerClient is the subset of *ledger.Ledger Policy depends on, kept as
// an interface so tests can substitute a fake without a live Postgres.
type ledgerClient interface {
	GetAPIKey(ctx context.Context, key string) (*ledger.APIKey, error)
	TouchLastUsed(ctx context.Context, key string) error
	GetPermissionProfile(ctx context.Context, key string) (*ledger.PermissionProfile, error)
	IncrementRateLimit(ctx context.Context, key string, now time.Time, limit int) (bool, time.Time, error)
	WriteAudit(ctx context.Context, ev ledger.AuditEvent) error
}

// registryClient is the subset of *registry.Registry Policy depends on.
type registryClient interface {
	ValidateAgents(names []string) []string
	ValidateSkills(names []string) []string
}

// Policy is the gate every RequestFlow endpoint runs a request through.
type Policy struct {
	ledger   ledgerClient
	registry registryClient
	now      func() time.Time
}

// New builds a Policy over the given Ledger and Registry.
func New(l *ledger.Ledger, r *registry.Registry) *Policy {
	return &Policy{ledger: l, registry: r, now: time.Now}
}

// Evaluate runs authenticate -> rate-limit -> validate-capabilities ->
// resource-gate -> audit in order, halting at the first failure. The
// audit event is always written, whether the outcome is allow or deny.
func (p *Policy) Evaluate(ctx context.Context, req Request) (*Decision, error) {
	auth, err := p.authenticate(ctx, req.APIKey)
	if err != nil {
		p.auditDeny(ctx, req, "", err)
		return nil, err
	}

	if err := p.rateLimit(ctx, auth); err != nil {
		p.auditDeny(ctx, req, auth.APIKey, err)
		return nil, err
	}

	if err := p.validateCapabilities(auth, req); err != nil {
		p.auditDeny(ctx, req, auth.APIKey, err)
		return nil, err
	}

	decision, err := p.resourceGate(auth, req)
	if err != nil {
		p.auditDeny(ctx, req, auth.APIKey, err)
		return nil, err
	}

	p.auditAllow(ctx, req, auth.APIKey)
	return decision, nil
}

func (p *Policy) authenticate(ctx context.Context, key string) (AuthContext, error) {
	if key == "" {
		return AuthContext{}, apierr.AuthMissing()
	}

	rec, err := p.ledger.GetAPIKey(ctx, key)
	if err != nil {
		return AuthContext{}, apierr.AuthInvalid()
	}
	if rec.Revoked {
		return AuthContext{}, apierr.AuthRevoked()
	}

	_ = p.ledger.TouchLastUsed(ctx, key)

	profile, err := p.ledger.GetPermissionProfile(ctx, key)
	if err != nil {
		// No profile on record means no capabilities are granted, not a
		// storage error: treat as a zero-value (deny-everything) profile.
		profile = &ledger.PermissionProfile{APIKey: key}
	}

	return AuthContext{APIKey: key, ProjectID: rec.ProjectID, Profile: *profile}, nil
}

func (p *Policy) rateLimit(ctx context.Context, auth AuthContext) error {
	rec, err := p.ledger.GetAPIKey(ctx, auth.APIKey)
	if err != nil {
		return apierr.AuthInvalid()
	}

	allowed, _, err := p.ledger.IncrementRateLimit(ctx, auth.APIKey, p.now(), rec.RateLimitRPM)
	if err != nil {
		return err
	}
	if !allowed {
		return apierr.RateLimited()
	}
	return nil
}

func (p *Policy) validateCapabilities(auth AuthContext, req Request) error {
	profile := auth.Profile

	for _, tool := range req.Tools {
		if !ledger.Allows(profile.AllowTools, tool) {
			return apierr.PermissionDenied(tool)
		}
	}

	for _, agent := range req.Agents {
		if !ledger.Allows(profile.AllowAgents, agent) {
			return apierr.PermissionDenied(agent)
		}
	}
	if missing := p.registry.ValidateAgents(req.Agents); len(missing) > 0 {
		return apierr.PermissionDenied(missing[0])
	}

	for _, skill := range req.Skills {
		if !ledger.Allows(profile.AllowSkills, skill) {
			return apierr.PermissionDenied(skill)
		}
	}
	if missing := p.registry.ValidateSkills(req.Skills); len(missing) > 0 {
		return apierr.PermissionDenied(missing[0])
	}

	return nil
}

func (p *Policy) resourceGate(auth AuthContext, req Request) (*Decision, error) {
	profile := auth.Profile

	timeout := req.RequestedTimeoutSeconds
	if timeout == 0 {
		timeout = profile.MaxWallSeconds
	} else if timeout > profile.MaxWallSeconds {
		return nil, apierr.PermissionDenied("timeout exceeds profile ceiling")
	}

	maxCost := req.RequestedMaxCostUSD
	if maxCost.IsZero() {
		maxCost = profile.MaxCostUSD
	} else if maxCost.GreaterThan(profile.MaxCostUSD) {
		return nil, apierr.PermissionDenied("max_cost exceeds profile ceiling")
	}

	return &Decision{
		Auth:                    auth,
		EffectiveTimeoutSeconds: timeout,
		EffectiveMaxCostUSD:     maxCost,
	}, nil
}

func (p *Policy) auditAllow(ctx context.Context, req Request, apiKey string) {
	_ = p.ledger.WriteAudit(ctx, ledger.AuditEvent{
		TaskID:   req.TaskID,
		APIKey:   apiKey,
		Kind:     ledger.AuditToolCall,
		Severity: ledger.SeverityInfo,
		Details:  map[string]any{"decision": "allow"},
	})
}

func (p *Policy) auditDeny(ctx context.Context, req Request, apiKey string, cause error) {
	kind := ledger.AuditPermissionViolation
	severity := ledger.SeverityWarning

	if apiErr, ok := cause.(*apierr.Error); ok && apiErr.Kind == apierr.KindRateLimited {
		kind = ledger.AuditRateLimited
	}

	_ = p.ledger.WriteAudit(ctx, ledger.AuditEvent{
		TaskID:   req.TaskID,
		APIKey:   apiKey,
		Kind:     kind,
		Severity: severity,
		Details:  map[string]any{"decision": "deny", "reason": cause.Error()},
	})
}
