package depgraph

import "sort"

// Expand finds all files related to the seed set within maxDepth hops,
// following import edges in both directions.
//
// # Description
//
// Breadth-first traversal seeded with every seed at depth 0. The FIFO
// frontier guarantees nodes are processed in non-decreasing depth order,
// so the first depth recorded for a node is its minimum distance from the
// nearest seed. The depth bound is checked at dequeue time: a node
// discovered at exactly maxDepth is included in the result but never
// expanded further, and maxDepth = 0 yields an empty result because the
// seeds themselves are cut off before any neighbor expansion.
//
// Seeds never appear in the result, regardless of cycles or of being
// reachable from other seeds.
//
// # Inputs
//
//   - g: The import graph. Must not be nil.
//   - seeds: Changed file paths. Normalized internally.
//   - maxDepth: Maximum number of hops from the nearest seed.
//
// # Outputs
//
//   - []string: Sorted related file paths, seeds excluded, deduplicated.
func Expand(g *Graph, seeds []string, maxDepth int) []string {
	seedSet := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		seedSet[NormalizePath(s)] = struct{}{}
	}

	type queueItem struct {
		path  string
		depth int
	}

	queue := make([]queueItem, 0, len(seedSet))
	enqueued := make(map[string]struct{}, len(seedSet))
	for _, s := range seeds {
		p := NormalizePath(s)
		if _, ok := enqueued[p]; ok {
			continue
		}
		enqueued[p] = struct{}{}
		queue = append(queue, queueItem{path: p, depth: 0})
	}

	visited := make(map[string]struct{})
	related := make(map[string]struct{})

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		if _, ok := visited[item.path]; ok {
			continue
		}
		if item.depth >= maxDepth {
			continue
		}
		visited[item.path] = struct{}{}

		for _, neighbor := range g.neighbors(item.path) {
			if _, isSeed := seedSet[neighbor]; isSeed {
				continue
			}
			related[neighbor] = struct{}{}
			if _, ok := visited[neighbor]; !ok {
				queue = append(queue, queueItem{path: neighbor, depth: item.depth + 1})
			}
		}
	}

	result := make([]string, 0, len(related))
	for p := range related {
		result = append(result, p)
	}
	sort.Strings(result)
	return result
}

// neighbors returns the union of dependents and dependencies of a node.
func (g *Graph) neighbors(path string) []string {
	deps := g.dependencies[path]
	rdeps := g.dependents[path]
	if len(deps) == 0 && len(rdeps) == 0 {
		return nil
	}
	union := make(map[string]struct{}, len(deps)+len(rdeps))
	for n := range rdeps {
		union[n] = struct{}{}
	}
	for n := range deps {
		union[n] = struct{}{}
	}
	out := make([]string, 0, len(union))
	for n := range union {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
