package depgraph

import (
	"sort"
	"strings"
)

// Dependency is a single resolved import edge target.
type Dependency struct {
	// Resolved is the repository-relative path of the imported file.
	Resolved string `json:"resolved"`
}

// Module is one source file and its resolved imports, as produced by the
// Resolver.
type Module struct {
	// Source is the repository-relative path of the importing file.
	Source string `json:"source"`

	// Dependencies are the files Source directly imports.
	Dependencies []Dependency `json:"dependencies"`
}

// Graph holds both directions of the import relation.
//
// # Description
//
// Built once per run from the resolver output and read-only afterward.
// dependencies answers "what does this file import"; dependents answers
// "who imports this file". Cycles are permitted; traversal handles them
// with a visited set.
//
// # Thread Safety
//
// Safe for concurrent reads after construction.
type Graph struct {
	dependencies map[string]map[string]struct{}
	dependents   map[string]map[string]struct{}
}

// NormalizePath canonicalizes a path for graph keys and set membership:
// backslashes become forward slashes and a leading "./" is stripped.
func NormalizePath(path string) string {
	p := strings.ReplaceAll(path, "\\", "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return p
}

// BuildGraph constructs the two adjacency maps from resolver output.
//
// # Inputs
//
//   - modules: Resolver output. May be empty or nil.
//
// # Outputs
//
//   - *Graph: The constructed graph. Never nil.
func BuildGraph(modules []Module) *Graph {
	g := &Graph{
		dependencies: make(map[string]map[string]struct{}),
		dependents:   make(map[string]map[string]struct{}),
	}

	for _, m := range modules {
		source := NormalizePath(m.Source)
		for _, dep := range m.Dependencies {
			resolved := NormalizePath(dep.Resolved)
			if resolved == "" || resolved == source {
				continue
			}
			g.addEdge(source, resolved)
		}
	}

	return g
}

func (g *Graph) addEdge(source, resolved string) {
	if g.dependencies[source] == nil {
		g.dependencies[source] = make(map[string]struct{})
	}
	g.dependencies[source][resolved] = struct{}{}

	if g.dependents[resolved] == nil {
		g.dependents[resolved] = make(map[string]struct{})
	}
	g.dependents[resolved][source] = struct{}{}
}

// Dependencies returns the files the given file directly imports, sorted.
func (g *Graph) Dependencies(path string) []string {
	return sortedKeys(g.dependencies[NormalizePath(path)])
}

// Dependents returns the files that directly import the given file, sorted.
func (g *Graph) Dependents(path string) []string {
	return sortedKeys(g.dependents[NormalizePath(path)])
}

// Size returns the number of files with at least one edge.
func (g *Graph) Size() int {
	nodes := make(map[string]struct{}, len(g.dependencies)+len(g.dependents))
	for n := range g.dependencies {
		nodes[n] = struct{}{}
	}
	for n := range g.dependents {
		nodes[n] = struct{}{}
	}
	return len(nodes)
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
