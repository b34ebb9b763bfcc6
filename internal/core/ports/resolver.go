package ports

// InputResolver expands declared source patterns.
//
//go:generate mockgen -destination=mocks/resolver_mock.go -package=mocks -source=resolver.go
type InputResolver interface {
	// ResolveInputs resolves the given patterns to a sorted, deduplicated list of file paths.
	ResolveInputs(patterns []string, root string) ([]string, error)
}
