// Package policy evaluates organization policies over the target graph.
//
// Policies never short-circuit: every applicable policy runs against every
// target in the closure and all violations are reported together.
package policy

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"go.trai.ch/ybt/internal/core/domain"
	"go.trai.ch/zerr"
)

// Policy is a named predicate over a target and its graph. A nil or empty
// result means the target complies.
type Policy interface {
	Name() string
	Check(ctx context.Context, t *domain.Target, g *domain.Graph) ([]string, error)
}

// Bound is a policy with the severity and scope it was configured with.
type Bound struct {
	Policy   Policy
	Severity domain.Severity
	Scope    string
}

// Applies reports whether the policy checks t.
func (b Bound) Applies(t *domain.Target) bool {
	if b.Scope == domain.ScopeOptIn {
		return t.HasPolicy(b.Policy.Name())
	}
	return true
}

// Evaluate runs every bound policy against every applicable target in closure.
// Violations are ordered by target declaration order, then policy name.
func Evaluate(ctx context.Context, policies []Bound, g *domain.Graph, closure []*domain.Target) ([]domain.Violation, error) {
	type found struct {
		index int
		v     domain.Violation
	}
	var (
		all  []found
		errs []error
	)

	for _, t := range closure {
		for _, b := range policies {
			if !b.Applies(t) {
				continue
			}
			reasons, err := b.Policy.Check(ctx, t, g)
			if err != nil {
				errs = append(errs, zerr.With(zerr.With(
					zerr.Wrap(err, "policy evaluation failed"),
					"policy", b.Policy.Name()),
					"target", t.Name.String()))
				continue
			}
			for _, r := range reasons {
				all = append(all, found{index: t.Index(), v: domain.Violation{
					Policy:   b.Policy.Name(),
					Target:   t.Name.String(),
					Reason:   r,
					Severity: b.Severity,
				}})
			}
		}
	}

	slices.SortStableFunc(all, func(a, b found) int {
		if c := cmp.Compare(a.index, b.index); c != 0 {
			return c
		}
		return cmp.Compare(a.v.Policy, b.v.Policy)
	})

	out := make([]domain.Violation, len(all))
	for i, f := range all {
		out[i] = f.v
	}
	return out, errors.Join(errs...)
}

// Fatal reports whether any violation aborts the run.
func Fatal(violations []domain.Violation) bool {
	return slices.ContainsFunc(violations, func(v domain.Violation) bool {
		return v.Severity == domain.SeverityFatal
	})
}
