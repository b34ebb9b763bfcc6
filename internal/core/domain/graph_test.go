package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/ybt/internal/core/domain"
)

func names(ts []*domain.Target) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Name.String()
	}
	return out
}

func lib(name string, deps ...string) domain.Declaration {
	return domain.Declaration{Name: name, Kind: domain.KindLibrary, Deps: deps}
}

func TestBuildGraph_Diamond(t *testing.T) {
	g, err := domain.BuildGraph([]domain.Declaration{
		lib("d", "b", "c"),
		lib("b", "a"),
		lib("c", "a"),
		lib("a"),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, g.Len())

	order := g.TopologicalOrder(collect(g))
	assert.Equal(t, []string{"a", "b", "c", "d"}, names(order))

	a, ok := g.Target(domain.NewName("a"))
	require.True(t, ok)
	assert.Equal(t, []string{"b", "c"}, names(g.Dependents(a)))
}

func collect(g *domain.Graph) []*domain.Target {
	var out []*domain.Target
	for t := range g.Targets() {
		out = append(out, t)
	}
	return out
}

func TestBuildGraph_Errors(t *testing.T) {
	tests := []struct {
		name     string
		decls    []domain.Declaration
		sentinel error
	}{
		{
			name:     "duplicate",
			decls:    []domain.Declaration{lib("a"), lib("a")},
			sentinel: domain.ErrDuplicateTarget,
		},
		{
			name:     "unresolved",
			decls:    []domain.Declaration{lib("a", "missing")},
			sentinel: domain.ErrUnresolvedDependency,
		},
		{
			name:     "unknown kind",
			decls:    []domain.Declaration{{Name: "a", Kind: "widget"}},
			sentinel: domain.ErrMalformedDeclaration,
		},
		{
			name:     "empty alias",
			decls:    []domain.Declaration{{Name: "a", Kind: domain.KindAlias}},
			sentinel: domain.ErrMalformedDeclaration,
		},
		{
			name:     "reserved name",
			decls:    []domain.Declaration{lib("all")},
			sentinel: domain.ErrMalformedDeclaration,
		},
		{
			name:     "negative attempts",
			decls:    []domain.Declaration{{Name: "t", Kind: domain.KindTest, Attempts: -1}},
			sentinel: domain.ErrMalformedDeclaration,
		},
		{
			name:     "self reference",
			decls:    []domain.Declaration{lib("a", "a")},
			sentinel: domain.ErrCycleDetected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.BuildGraph(tt.decls)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestBuildGraph_CyclePath(t *testing.T) {
	_, err := domain.BuildGraph([]domain.Declaration{
		lib("a", "b"),
		lib("b", "c"),
		lib("c", "a"),
	})
	require.Error(t, err)

	var cycle *domain.CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"a", "b", "c", "a"}, cycle.Path)
	assert.Contains(t, err.Error(), "a -> b -> c -> a")
}

func TestBuildGraph_MutualReference(t *testing.T) {
	_, err := domain.BuildGraph([]domain.Declaration{lib("a", "b"), lib("b", "a")})

	var cycle *domain.CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"a", "b", "a"}, cycle.Path)
}

func TestBuildGraph_UnresolvedSuggestions(t *testing.T) {
	_, err := domain.BuildGraph([]domain.Declaration{
		lib("app", "libfoo"),
		lib("lib-foo"),
		lib("unrelated"),
	})

	var unresolved *domain.UnresolvedDependencyError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "app", unresolved.Target)
	assert.Equal(t, "libfoo", unresolved.Dependency)
	assert.Equal(t, []string{"lib-foo"}, unresolved.Suggestions)
	assert.Contains(t, err.Error(), "possible misspelling of: lib-foo")
}

func TestBuildGraph_ReportsEveryConstructionError(t *testing.T) {
	_, err := domain.BuildGraph([]domain.Declaration{
		lib("a", "x"),
		lib("b", "y"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"x" required by "a"`)
	assert.Contains(t, err.Error(), `"y" required by "b"`)
}

func TestBuildGraph_AliasExpansion(t *testing.T) {
	g, err := domain.BuildGraph([]domain.Declaration{
		lib("app", "libs", "c"),
		{Name: "libs", Kind: domain.KindAlias, Members: []string{"a", "nested"}},
		{Name: "nested", Kind: domain.KindAlias, Members: []string{"b", "a"}},
		lib("a"),
		lib("b"),
		lib("c"),
	})
	require.NoError(t, err)

	app, ok := g.Target(domain.NewName("app"))
	require.True(t, ok)
	assert.Equal(t, domain.Names("a", "b", "c"), app.Deps)

	_, isNode := g.Target(domain.NewName("libs"))
	assert.False(t, isNode, "aliases carry no build state")

	members, ok := g.Members(domain.NewName("libs"))
	require.True(t, ok)
	assert.Equal(t, domain.Names("a", "b"), members)
}

func TestBuildGraph_AliasCycle(t *testing.T) {
	_, err := domain.BuildGraph([]domain.Declaration{
		{Name: "x", Kind: domain.KindAlias, Members: []string{"y"}},
		{Name: "y", Kind: domain.KindAlias, Members: []string{"x"}},
	})
	var cycle *domain.CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"x", "y", "x"}, cycle.Path)
}

func TestBuildGraph_CycleThroughAlias(t *testing.T) {
	_, err := domain.BuildGraph([]domain.Declaration{
		lib("a", "group"),
		{Name: "group", Kind: domain.KindAlias, Members: []string{"a"}},
	})
	assert.ErrorIs(t, err, domain.ErrCycleDetected)
}

func TestBuildGraph_DedupesDependencies(t *testing.T) {
	g, err := domain.BuildGraph([]domain.Declaration{
		lib("app", "b", "a", "b"),
		lib("a"),
		lib("b"),
	})
	require.NoError(t, err)
	app, _ := g.Target(domain.NewName("app"))
	assert.Equal(t, domain.Names("b", "a"), app.Deps)
}

func TestGraph_TransitiveClosure(t *testing.T) {
	g, err := domain.BuildGraph([]domain.Declaration{
		lib("a", "b"),
		lib("b", "c"),
		lib("c"),
		lib("d"),
		{Name: "grp", Kind: domain.KindAlias, Members: []string{"d"}},
	})
	require.NoError(t, err)

	closure, err := g.TransitiveClosure([]string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names(closure))

	closure, err = g.TransitiveClosure([]string{"grp", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, names(closure))

	closure, err = g.TransitiveClosure([]string{domain.AllTargets})
	require.NoError(t, err)
	assert.Len(t, closure, 4)

	_, err = g.TransitiveClosure([]string{"e"})
	assert.ErrorIs(t, err, domain.ErrUnresolvedDependency)
}

func TestGraph_TopologicalOrderSubset(t *testing.T) {
	g, err := domain.BuildGraph([]domain.Declaration{
		lib("z", "y"),
		lib("x"),
		lib("y"),
	})
	require.NoError(t, err)

	closure, err := g.TransitiveClosure([]string{"z", "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, names(g.TopologicalOrder(closure)))
}

func TestSuggest(t *testing.T) {
	candidates := []string{"server", "serve", "client", "cli", "service"}
	assert.Equal(t, []string{"serve", "server"}, domain.Suggest("servr", candidates))
	assert.Empty(t, domain.Suggest("zzzzzz", candidates))
}

func TestGraph_ExecutionSet(t *testing.T) {
	g, err := domain.BuildGraph([]domain.Declaration{
		lib("core"),
		{Name: "core_test", Kind: domain.KindTest, Deps: []string{"core"}},
		{Name: "fixtures", Kind: domain.KindTest},
		lib("app", "core", "fixtures"),
	})
	require.NoError(t, err)

	set, err := g.ExecutionSet([]string{domain.AllTargets}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"core", "fixtures", "app"}, names(set), "tests needed by a build stay in")

	set, err = g.ExecutionSet([]string{"core_test"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"core", "core_test"}, names(set))

	set, err = g.ExecutionSet([]string{domain.AllTargets}, true)
	require.NoError(t, err)
	assert.Len(t, set, 4)
}
