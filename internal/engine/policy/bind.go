package policy

import (
	"context"
	"errors"

	"go.trai.ch/ybt/internal/core/domain"
	"go.trai.ch/zerr"
)

// Bind turns policy declarations into bound policies. A declaration without
// a severity uses defaultSeverity. License whitelists default to opt-in
// scope, every other policy applies to all targets.
func Bind(ctx context.Context, specs []domain.PolicySpec, defaultSeverity domain.Severity) ([]Bound, error) {
	if defaultSeverity == "" {
		defaultSeverity = domain.SeverityFatal
	}

	bound := make([]Bound, 0, len(specs))
	var errs []error
	for _, spec := range specs {
		b := Bound{Severity: spec.Severity, Scope: spec.Scope}
		if b.Severity == "" {
			b.Severity = defaultSeverity
		}

		switch spec.Type {
		case domain.PolicyStandardLicenses:
			b.Policy = StandardLicenses{}
			if b.Scope == "" {
				b.Scope = domain.ScopeAll
			}
		case domain.PolicyLicenseWhitelist:
			b.Policy = NewLicenseWhitelist(spec.Name, spec.Allowed)
			if b.Scope == "" {
				b.Scope = domain.ScopeOptIn
			}
		case domain.PolicyRego:
			p, err := NewRegoPolicy(ctx, spec.Name, spec.Module, spec.Source)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			b.Policy = p
			if b.Scope == "" {
				b.Scope = domain.ScopeAll
			}
		default:
			errs = append(errs, &domain.MalformedDeclarationError{
				Target: spec.Name,
				Reason: "unknown policy type " + spec.Type,
			})
			continue
		}
		bound = append(bound, b)
	}
	if len(errs) > 0 {
		return nil, zerr.Wrap(errors.Join(errs...), "invalid policy configuration")
	}
	return bound, nil
}
