package policy

import (
	"context"
	"fmt"
	"slices"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"go.trai.ch/ybt/internal/core/domain"
	"go.trai.ch/zerr"
)

// RegoPolicy evaluates the deny set of a Rego module. Every element of the
// set becomes one violation reason.
type RegoPolicy struct {
	name  string
	query rego.PreparedEvalQuery
}

// NewRegoPolicy compiles source once. filename is only used in diagnostics.
func NewRegoPolicy(ctx context.Context, name, filename, source string) (*RegoPolicy, error) {
	mod, err := ast.ParseModule(filename, source)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse rego module"), "policy", name)
	}
	query := mod.Package.Path.String() + ".deny"

	prepared, err := rego.New(
		rego.Query(query),
		rego.Module(filename, source),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to compile rego module"), "policy", name)
	}
	return &RegoPolicy{name: name, query: prepared}, nil
}

// Name implements Policy.
func (p *RegoPolicy) Name() string { return p.name }

// Check implements Policy.
func (p *RegoPolicy) Check(ctx context.Context, t *domain.Target, g *domain.Graph) ([]string, error) {
	results, err := p.query.Eval(ctx, rego.EvalInput(regoInput(t, g)))
	if err != nil {
		return nil, err
	}

	var reasons []string
	for _, result := range results {
		for _, expr := range result.Expressions {
			values, ok := expr.Value.([]any)
			if !ok {
				continue
			}
			for _, v := range values {
				if s, ok := v.(string); ok {
					reasons = append(reasons, s)
				} else {
					reasons = append(reasons, fmt.Sprint(v))
				}
			}
		}
	}
	slices.Sort(reasons)
	return reasons, nil
}

func regoInput(t *domain.Target, g *domain.Graph) map[string]any {
	deps := g.ClosureOf([]*domain.Target{t})
	depInputs := make([]any, 0, len(deps))
	for _, d := range deps {
		if d == t {
			continue
		}
		depInputs = append(depInputs, map[string]any{
			"name":     d.Name.String(),
			"kind":     string(d.Kind),
			"licenses": anySlice(d.Licenses),
		})
	}

	params := make(map[string]any, len(t.Params))
	for k, v := range t.Params {
		params[k] = v
	}
	direct := make([]any, len(t.Deps))
	for i, d := range t.Deps {
		direct[i] = d.String()
	}

	return map[string]any{
		"target": map[string]any{
			"name":     t.Name.String(),
			"kind":     string(t.Kind),
			"licenses": anySlice(t.Licenses),
			"params":   params,
			"deps":     direct,
		},
		"deps": depInputs,
	}
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
