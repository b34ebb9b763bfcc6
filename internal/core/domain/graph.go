// Package domain contains the core domain models for the build graph,
// build environments, caching and run reporting.
package domain

import (
	"errors"
	"iter"
	"slices"
	"strings"

	"github.com/agext/levenshtein"
)

// AllTargets is the reserved root name that selects every buildable target.
const AllTargets = "all"

const maxSuggestions = 3

// Graph is an immutable, validated dependency graph over targets.
// Edges point from a target to the targets it requires built first.
type Graph struct {
	targets    []*Target
	index      map[Name]int
	deps       [][]int
	dependents [][]int
	aliases    map[Name][]Name
	declared   []string
}

// BuildGraph validates the declarations and resolves them into a Graph.
// Alias targets are expanded into their members and do not appear as nodes.
// Duplicate, malformed and unresolved declarations are all reported together;
// cycle detection only runs once every reference resolves.
func BuildGraph(decls []Declaration) (*Graph, error) {
	byName := make(map[string]*Declaration, len(decls))
	declared := make([]string, 0, len(decls))
	var errs []error

	for i := range decls {
		d := &decls[i]
		if err := checkDeclaration(d); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, exists := byName[d.Name]; exists {
			errs = append(errs, &DuplicateTargetError{Name: d.Name})
			continue
		}
		byName[d.Name] = d
		declared = append(declared, d.Name)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	g := &Graph{
		index:    make(map[Name]int, len(decls)),
		aliases:  make(map[Name][]Name),
		declared: declared,
	}

	expander := &aliasExpander{
		byName:   byName,
		declared: declared,
		done:     make(map[string][]string),
		visiting: make(map[string]bool),
	}
	for _, name := range declared {
		d := byName[name]
		if d.Kind != KindAlias {
			continue
		}
		members, err := expander.expand(name, nil)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		g.aliases[NewName(name)] = Names(members...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for _, name := range declared {
		d := byName[name]
		if d.Kind == KindAlias {
			continue
		}
		t := newTarget(d, len(g.targets))
		g.index[t.Name] = t.index
		g.targets = append(g.targets, t)
	}

	g.deps = make([][]int, len(g.targets))
	g.dependents = make([][]int, len(g.targets))
	for _, t := range g.targets {
		d := byName[t.Name.String()]
		resolved, err := g.resolveDeps(d, byName, expander)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		t.Deps = Names(resolved...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for _, t := range g.targets {
		for _, dep := range t.Deps {
			di := g.index[dep]
			g.deps[t.index] = append(g.deps[t.index], di)
			g.dependents[di] = append(g.dependents[di], t.index)
		}
	}

	if err := g.detectCycle(); err != nil {
		return nil, err
	}
	return g, nil
}

func checkDeclaration(d *Declaration) error {
	switch {
	case strings.TrimSpace(d.Name) == "":
		return &MalformedDeclarationError{Reason: "target name is empty"}
	case d.Name == AllTargets:
		return &MalformedDeclarationError{Target: d.Name, Reason: "name is reserved"}
	case !d.Kind.IsValid():
		return &MalformedDeclarationError{Target: d.Name, Reason: "unknown kind " + string(d.Kind)}
	case d.Kind == KindAlias && len(d.Members) == 0:
		return &MalformedDeclarationError{Target: d.Name, Reason: "alias has no members"}
	case d.Kind != KindAlias && len(d.Members) > 0:
		return &MalformedDeclarationError{Target: d.Name, Reason: "only aliases may declare members"}
	case d.Attempts < 0:
		return &MalformedDeclarationError{Target: d.Name, Reason: "attempts must not be negative"}
	}
	return nil
}

func newTarget(d *Declaration, index int) *Target {
	t := &Target{
		Name:     NewName(d.Name),
		Kind:     d.Kind,
		Sources:  slices.Clone(d.Sources),
		Params:   make(map[string]string, len(d.Params)),
		Command:  slices.Clone(d.Command),
		Outputs:  slices.Clone(d.Outputs),
		Licenses: slices.Clone(d.Licenses),
		Policies: slices.Clone(d.Policies),
		Attempts: d.Attempts,
		index:    index,
	}
	for k, v := range d.Params {
		t.Params[k] = v
	}
	if d.Env != "" {
		t.Env = NewName(d.Env)
	}
	return t
}

// resolveDeps rewrites alias edges into member edges and drops duplicates,
// keeping the first occurrence.
func (g *Graph) resolveDeps(d *Declaration, byName map[string]*Declaration, ex *aliasExpander) ([]string, error) {
	seen := make(map[string]bool, len(d.Deps))
	out := make([]string, 0, len(d.Deps))
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	for _, dep := range d.Deps {
		if dep == d.Name {
			return nil, &CycleError{Path: []string{d.Name, d.Name}}
		}
		target, ok := byName[dep]
		if !ok {
			return nil, &UnresolvedDependencyError{
				Target:      d.Name,
				Dependency:  dep,
				Suggestions: Suggest(dep, g.declared),
			}
		}
		if target.Kind != KindAlias {
			add(dep)
			continue
		}
		members, err := ex.expand(dep, nil)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if m == d.Name {
				return nil, &CycleError{Path: []string{d.Name, dep, d.Name}}
			}
			add(m)
		}
	}
	return out, nil
}

type aliasExpander struct {
	byName   map[string]*Declaration
	declared []string
	done     map[string][]string
	visiting map[string]bool
}

func (ex *aliasExpander) expand(name string, path []string) ([]string, error) {
	if members, ok := ex.done[name]; ok {
		return members, nil
	}
	path = append(path, name)
	if ex.visiting[name] {
		start := slices.Index(path, name)
		return nil, &CycleError{Path: path[start:]}
	}
	ex.visiting[name] = true
	defer delete(ex.visiting, name)

	alias := ex.byName[name]
	seen := make(map[string]bool)
	var out []string
	for _, m := range alias.Members {
		target, ok := ex.byName[m]
		if !ok {
			return nil, &UnresolvedDependencyError{
				Target:      name,
				Dependency:  m,
				Suggestions: Suggest(m, ex.declared),
			}
		}
		if target.Kind != KindAlias {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
			continue
		}
		nested, err := ex.expand(m, path)
		if err != nil {
			return nil, err
		}
		for _, n := range nested {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	ex.done[name] = out
	return out, nil
}

// detectCycle runs a depth-first search in declaration order and reports
// the first back edge as an ordered path.
func (g *Graph) detectCycle() error {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make([]int, len(g.targets))
	var path []int

	var visit func(u int) error
	visit = func(u int) error {
		state[u] = visiting
		path = append(path, u)
		for _, v := range g.deps[u] {
			switch state[v] {
			case visiting:
				return g.cycleError(path, v)
			case unvisited:
				if err := visit(v); err != nil {
					return err
				}
			}
		}
		state[u] = visited
		path = path[:len(path)-1]
		return nil
	}

	for i := range g.targets {
		if state[i] == unvisited {
			if err := visit(i); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Graph) cycleError(path []int, back int) error {
	start := slices.Index(path, back)
	names := make([]string, 0, len(path)-start+1)
	for _, i := range path[start:] {
		names = append(names, g.targets[i].Name.String())
	}
	names = append(names, g.targets[back].Name.String())
	return &CycleError{Path: names}
}

// Len returns the number of buildable targets.
func (g *Graph) Len() int {
	return len(g.targets)
}

// Target returns the target with the given name.
func (g *Graph) Target(name Name) (*Target, bool) {
	i, ok := g.index[name]
	if !ok {
		return nil, false
	}
	return g.targets[i], true
}

// Targets yields every buildable target in declaration order.
func (g *Graph) Targets() iter.Seq[*Target] {
	return func(yield func(*Target) bool) {
		for _, t := range g.targets {
			if !yield(t) {
				return
			}
		}
	}
}

// Members returns the expanded members of an alias.
func (g *Graph) Members(alias Name) ([]Name, bool) {
	m, ok := g.aliases[alias]
	return m, ok
}

// Dependencies returns the direct dependencies of t in declaration order.
func (g *Graph) Dependencies(t *Target) []*Target {
	out := make([]*Target, 0, len(g.deps[t.index]))
	for _, i := range g.deps[t.index] {
		out = append(out, g.targets[i])
	}
	return out
}

// Dependents returns the targets that directly depend on t, in declaration order.
func (g *Graph) Dependents(t *Target) []*Target {
	out := make([]*Target, 0, len(g.dependents[t.index]))
	for _, i := range g.dependents[t.index] {
		out = append(out, g.targets[i])
	}
	return out
}

// ResolveRoots expands root names into targets. Aliases resolve to their
// members and AllTargets selects every target.
func (g *Graph) ResolveRoots(roots []string) ([]*Target, error) {
	seen := make(map[int]bool)
	var out []*Target
	add := func(i int) {
		if !seen[i] {
			seen[i] = true
			out = append(out, g.targets[i])
		}
	}

	for _, root := range roots {
		if root == AllTargets {
			for i := range g.targets {
				add(i)
			}
			continue
		}
		name := NewName(root)
		if members, ok := g.aliases[name]; ok {
			for _, m := range members {
				add(g.index[m])
			}
			continue
		}
		i, ok := g.index[name]
		if !ok {
			return nil, &UnresolvedDependencyError{
				Dependency:  root,
				Suggestions: Suggest(root, g.declared),
			}
		}
		add(i)
	}
	return out, nil
}

// TransitiveClosure returns every target reachable from the roots, including
// the roots, in declaration order.
func (g *Graph) TransitiveClosure(roots []string) ([]*Target, error) {
	start, err := g.ResolveRoots(roots)
	if err != nil {
		return nil, err
	}
	return g.closureOf(start), nil
}

// ExecutionSet returns the closure a build of roots executes. Unless
// includeTests is set, test targets only take part when named directly or
// when a non-test target in the closure depends on them.
func (g *Graph) ExecutionSet(roots []string, includeTests bool) ([]*Target, error) {
	start, err := g.ResolveRoots(roots)
	if err != nil {
		return nil, err
	}
	if !includeTests {
		named := make(map[string]bool, len(roots))
		for _, r := range roots {
			named[r] = true
		}
		start = slices.DeleteFunc(start, func(t *Target) bool {
			return t.Kind == KindTest && !named[t.Name.String()]
		})
	}
	return g.closureOf(start), nil
}

// ClosureOf returns the transitive closure of already resolved targets.
func (g *Graph) ClosureOf(start []*Target) []*Target {
	return g.closureOf(start)
}

func (g *Graph) closureOf(start []*Target) []*Target {
	reached := make([]bool, len(g.targets))
	queue := make([]int, 0, len(start))
	for _, t := range start {
		if !reached[t.index] {
			reached[t.index] = true
			queue = append(queue, t.index)
		}
	}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range g.deps[u] {
			if !reached[v] {
				reached[v] = true
				queue = append(queue, v)
			}
		}
	}

	out := make([]*Target, 0, len(queue))
	for i, ok := range reached {
		if ok {
			out = append(out, g.targets[i])
		}
	}
	return out
}

// TopologicalOrder orders a subset of the graph so that every target comes
// after its dependencies. Ties are broken by declaration order. Edges to
// targets outside the subset are ignored.
func (g *Graph) TopologicalOrder(subset []*Target) []*Target {
	in := make(map[int]int, len(subset))
	for _, t := range subset {
		in[t.index] = 0
	}
	for _, t := range subset {
		for _, d := range g.deps[t.index] {
			if _, ok := in[d]; ok {
				in[t.index]++
			}
		}
	}

	var ready []int
	for i, deg := range in {
		if deg == 0 {
			ready = append(ready, i)
		}
	}
	slices.Sort(ready)

	out := make([]*Target, 0, len(subset))
	for len(ready) > 0 {
		u := ready[0]
		ready = ready[1:]
		out = append(out, g.targets[u])
		for _, v := range g.dependents[u] {
			if _, ok := in[v]; !ok {
				continue
			}
			in[v]--
			if in[v] == 0 {
				pos, _ := slices.BinarySearch(ready, v)
				ready = slices.Insert(ready, pos, v)
			}
		}
	}
	return out
}

// Suggest returns up to three declared names that look like misspellings of name.
func Suggest(name string, candidates []string) []string {
	lower := strings.ToLower(name)
	var out []string
	for _, c := range candidates {
		if c == name {
			continue
		}
		lc := strings.ToLower(c)
		if levenshtein.Distance(lower, lc, nil) <= 2 ||
			(len(lower) >= 3 && strings.Contains(lc, lower)) ||
			(len(lc) >= 3 && strings.Contains(lower, lc)) {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}
