package identity

import (
	"context"
)

// Resolver computes bounded-depth closures over the equivalence graph.
type Resolver struct {
	store *Store
}

// NewResolver builds a resolver over the given store.
func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

// Closure returns every identifier reachable from start within maxDepth hops
// using edges of at least minStrength. Edges are traversable in both
// directions. The result always contains start, and an identifier with no
// edges resolves to just itself. The graph may contain cycles; the visited
// set guarantees termination, and the traversal is iterative so dense graphs
// cannot grow the call stack.
func (r *Resolver) Closure(ctx context.Context, start Identifier, maxDepth int, minStrength float64) (Set, error) {
	visited := NewSet(start)
	if maxDepth <= 0 {
		return visited, nil
	}

	frontier := []Identifier{start}
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		edges, err := r.store.EdgesTouching(ctx, frontier, minStrength)
		if err != nil {
			return nil, err
		}

		var next []Identifier
		for _, edge := range edges {
			for _, endpoint := range []Identifier{edge.Input, edge.Output} {
				if visited.Add(endpoint) {
					next = append(next, endpoint)
				}
			}
		}
		frontier = next
	}
	return visited, nil
}
