// Package depgraph discovers files related to a change set through import
// relationships.
//
// The package has three parts:
//
//   - Resolver: parses source files with tree-sitter to extract import
//     statements and resolve them to repository-relative file paths. It
//     works outward from the seed files rather than scanning the whole
//     tree, so large repositories stay cheap to analyze.
//   - Graph: forward (dependencies) and reverse (dependents) adjacency
//     maps built once per run from the resolver output.
//   - Expand: bounded breadth-first traversal from the seeds following
//     both edge directions.
//
// All paths are normalized before comparison: leading "./" stripped and
// backslashes converted to forward slashes, so the same file is never
// counted twice under two spellings.
package depgraph
