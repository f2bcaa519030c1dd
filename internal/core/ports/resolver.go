package ports

// InputResolver defines the interface for resolving input files.
//
//go:generate go run go.uber.org/mock/mockgen -source=resolver.go -destination=mocks/mock_resolver.go -package=mocks
type InputResolver interface {
	// ResolveInputs expands glob patterns relative to root into concrete, sorted file paths.
	// Patterns without glob metacharacters are returned as-is, existing or not.
	ResolveInputs(inputs []string, root string) ([]string, error)
}
