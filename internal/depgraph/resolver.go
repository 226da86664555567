package depgraph

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
	"golang.org/x/mod/modfile"

	"github.com/zachicecreamcohn/comment-catcher/pkg/logging"
)

// MaxSourceFileSize is the largest file the resolver will parse (10MB).
const MaxSourceFileSize = 10 * 1024 * 1024

// DefaultExtensions are the source extensions the resolver understands.
var DefaultExtensions = []string{".go", ".ts", ".tsx", ".js", ".jsx", ".py"}

// Directories never descended into during dependent discovery.
var skipDirs = map[string]struct{}{
	"node_modules": {},
	"vendor":       {},
	"dist":         {},
	"build":        {},
	"testdata":     {},
}

// ResolveOptions configures a resolver run.
type ResolveOptions struct {
	// MaxDepth bounds how many rounds of outward discovery run. Each
	// round can add one hop of imports and one hop of importers.
	MaxDepth int

	// Exclude is a list of doublestar globs matched against
	// repository-relative paths; matching files are ignored.
	Exclude []string

	// Extensions restricts which files are parsed. Defaults to
	// DefaultExtensions when empty.
	Extensions []string
}

// Resolver extracts import statements from source files and resolves them
// to repository-relative paths.
//
// # Description
//
// The resolver works outward from the seed files instead of parsing the
// whole repository: forward edges come from parsing files already in the
// working set, and reverse edges come from a candidate scan that only
// parses files whose raw bytes mention a known file's import stem. Each
// discovery round widens the set by at most one hop in each direction, so
// the work is proportional to the neighborhood of the change set.
//
// # Thread Safety
//
// Resolver is safe for concurrent use; each parse creates its own
// tree-sitter parser instance.
type Resolver struct {
	root       string
	log        *logging.Logger
	modulePath string
}

// NewResolver creates a Resolver rooted at the given repository path.
func NewResolver(root string, log *logging.Logger) *Resolver {
	if log == nil {
		log = logging.Discard()
	}
	r := &Resolver{root: root, log: log}
	r.modulePath = readModulePath(root)
	return r
}

// Resolve builds the module list for the neighborhood of the seeds.
//
// # Inputs
//
//   - ctx: Context for cancellation. Must not be nil.
//   - seeds: Changed file paths, relative to the repository root.
//   - opts: Traversal bounds and filters.
//
// # Outputs
//
//   - []Module: One entry per parsed file, ordered by source path.
//   - error: Non-nil on context cancellation or an unreadable root.
func (r *Resolver) Resolve(ctx context.Context, seeds []string, opts ResolveOptions) ([]Module, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if opts.MaxDepth <= 0 {
		return nil, nil
	}

	extensions := opts.Extensions
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	extSet := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		extSet[e] = struct{}{}
	}

	// known is the working set of repository-relative paths; imports is
	// the accumulated parse output.
	known := make(map[string]struct{})
	imports := make(map[string][]string)

	for _, s := range seeds {
		p := NormalizePath(s)
		if _, ok := extSet[filepath.Ext(p)]; !ok {
			continue
		}
		if r.excluded(p, opts.Exclude) {
			continue
		}
		known[p] = struct{}{}
	}
	if len(known) == 0 {
		return nil, nil
	}

	candidates, err := r.listCandidates(extSet, opts.Exclude)
	if err != nil {
		return nil, fmt.Errorf("listing candidate files: %w", err)
	}

	for round := 0; round < opts.MaxDepth; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		grew := false

		// Forward hop: parse every known file we have not parsed yet.
		for _, path := range sortedSet(known) {
			if _, done := imports[path]; done {
				continue
			}
			resolved := r.parseFile(ctx, path)
			imports[path] = resolved
			for _, dep := range resolved {
				if _, ok := known[dep]; !ok {
					known[dep] = struct{}{}
					grew = true
				}
			}
		}

		// Reverse hop: find candidates that import anything known. The
		// byte prefilter keeps tree-sitter off files that cannot match.
		stems := importStems(known)
		for _, cand := range candidates {
			if _, ok := known[cand]; ok {
				continue
			}
			if _, done := imports[cand]; done {
				continue
			}
			content, err := r.readCapped(cand)
			if err != nil || !mentionsAny(content, stems) {
				continue
			}
			resolved := r.parseBytes(ctx, cand, content)
			importer := false
			for _, dep := range resolved {
				if _, ok := known[dep]; ok {
					importer = true
					break
				}
			}
			if importer {
				imports[cand] = resolved
				known[cand] = struct{}{}
				grew = true
			}
		}

		if !grew {
			break
		}
	}

	modules := make([]Module, 0, len(imports))
	for _, source := range sortedMapKeys(imports) {
		deps := make([]Dependency, 0, len(imports[source]))
		for _, resolved := range imports[source] {
			deps = append(deps, Dependency{Resolved: resolved})
		}
		modules = append(modules, Module{Source: source, Dependencies: deps})
	}

	r.log.Debug("dependency resolution complete",
		"seeds", len(seeds), "modules", len(modules))
	return modules, nil
}

// listCandidates walks the repository once and returns every file whose
// extension is supported and which is not excluded.
func (r *Resolver) listCandidates(extSet map[string]struct{}, exclude []string) ([]string, error) {
	var candidates []string
	err := filepath.WalkDir(r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") && path != r.root {
				return filepath.SkipDir
			}
			if _, skip := skipDirs[name]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := extSet[filepath.Ext(name)]; !ok {
			return nil
		}
		rel, relErr := filepath.Rel(r.root, path)
		if relErr != nil {
			return nil
		}
		relNorm := NormalizePath(rel)
		if r.excluded(relNorm, exclude) {
			return nil
		}
		candidates = append(candidates, relNorm)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(candidates)
	return candidates, nil
}

func (r *Resolver) excluded(relPath string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, relPath); err == nil && ok {
			return true
		}
	}
	return false
}

// parseFile reads and parses one file, returning its resolved imports.
// Unreadable or oversized files contribute nothing.
func (r *Resolver) parseFile(ctx context.Context, relPath string) []string {
	content, err := r.readCapped(relPath)
	if err != nil {
		r.log.Debug("skipping unreadable file", "path", relPath, "error", err)
		return nil
	}
	return r.parseBytes(ctx, relPath, content)
}

func (r *Resolver) readCapped(relPath string) ([]byte, error) {
	full := filepath.Join(r.root, filepath.FromSlash(relPath))
	info, err := os.Stat(full)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxSourceFileSize {
		return nil, fmt.Errorf("file exceeds %d bytes", MaxSourceFileSize)
	}
	return os.ReadFile(full)
}

// parseBytes extracts import specifiers from content and resolves each to
// repository-relative paths. Specifiers that resolve outside the
// repository (third-party packages, stdlib) are dropped.
func (r *Resolver) parseBytes(ctx context.Context, relPath string, content []byte) []string {
	lang := languageForPath(relPath)
	if lang == nil {
		return nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		r.log.Debug("parse failed", "path", relPath, "error", err)
		return nil
	}
	defer tree.Close()

	specs := collectImportSpecs(tree.RootNode(), content, filepath.Ext(relPath))

	seen := make(map[string]struct{})
	var resolved []string
	for _, spec := range specs {
		for _, target := range r.resolveSpec(relPath, spec) {
			if _, ok := seen[target]; ok {
				continue
			}
			seen[target] = struct{}{}
			resolved = append(resolved, target)
		}
	}
	sort.Strings(resolved)
	return resolved
}

// resolveSpec maps one import specifier to zero or more files in the
// repository.
func (r *Resolver) resolveSpec(fromFile, spec string) []string {
	ext := filepath.Ext(fromFile)
	switch ext {
	case ".go":
		return r.resolveGoImport(spec)
	case ".ts", ".tsx", ".js", ".jsx":
		return r.resolveScriptImport(fromFile, spec)
	case ".py":
		return r.resolvePythonImport(fromFile, spec)
	default:
		return nil
	}
}

// resolveGoImport maps an intra-module Go import path to the non-test .go
// files of the target package directory.
func (r *Resolver) resolveGoImport(importPath string) []string {
	if r.modulePath == "" {
		return nil
	}
	var dir string
	switch {
	case importPath == r.modulePath:
		dir = "."
	case strings.HasPrefix(importPath, r.modulePath+"/"):
		dir = strings.TrimPrefix(importPath, r.modulePath+"/")
	default:
		return nil
	}

	entries, err := os.ReadDir(filepath.Join(r.root, filepath.FromSlash(dir)))
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		if dir == "." {
			files = append(files, name)
		} else {
			files = append(files, dir+"/"+name)
		}
	}
	return files
}

// scriptProbes lists the suffixes tried when resolving a TS/JS specifier
// that names no concrete file.
var scriptProbes = []string{
	"", ".ts", ".tsx", ".js", ".jsx",
	"/index.ts", "/index.tsx", "/index.js", "/index.jsx",
}

// resolveScriptImport resolves a relative TS/JS import specifier against
// the importing file. Bare specifiers (packages) resolve to nothing.
func (r *Resolver) resolveScriptImport(fromFile, spec string) []string {
	if !strings.HasPrefix(spec, ".") {
		return nil
	}
	base := NormalizePath(filepath.Join(filepath.Dir(fromFile), spec))
	for _, probe := range scriptProbes {
		candidate := base + probe
		if r.fileExists(candidate) {
			return []string{candidate}
		}
	}
	return nil
}

// resolvePythonImport resolves "import a.b" and "from .x import y" forms.
func (r *Resolver) resolvePythonImport(fromFile, spec string) []string {
	var base string
	rest := spec

	if strings.HasPrefix(spec, ".") {
		// Relative import: one leading dot is the current package, each
		// additional dot climbs one package.
		level := 0
		for level < len(spec) && spec[level] == '.' {
			level++
		}
		rest = spec[level:]
		base = filepath.Dir(fromFile)
		for i := 1; i < level; i++ {
			base = filepath.Dir(base)
		}
	}

	modPath := strings.ReplaceAll(rest, ".", "/")
	candidate := modPath
	if base != "" && base != "." {
		candidate = NormalizePath(filepath.Join(base, modPath))
	}
	if candidate == "" || candidate == "." {
		return nil
	}

	if r.fileExists(candidate + ".py") {
		return []string{candidate + ".py"}
	}
	if r.fileExists(candidate + "/__init__.py") {
		return []string{candidate + "/__init__.py"}
	}
	return nil
}

func (r *Resolver) fileExists(relPath string) bool {
	info, err := os.Stat(filepath.Join(r.root, filepath.FromSlash(relPath)))
	return err == nil && !info.IsDir()
}

// languageForPath picks the tree-sitter grammar for a file, or nil when
// the extension is unsupported.
func languageForPath(path string) *sitter.Language {
	switch filepath.Ext(path) {
	case ".go":
		return golang.GetLanguage()
	case ".ts":
		return typescript.GetLanguage()
	case ".tsx":
		return tsx.GetLanguage()
	case ".js", ".jsx":
		return javascript.GetLanguage()
	case ".py":
		return python.GetLanguage()
	default:
		return nil
	}
}

// collectImportSpecs walks the syntax tree and returns raw import
// specifier strings (quotes stripped, dotted paths for Python).
func collectImportSpecs(root *sitter.Node, content []byte, ext string) []string {
	var specs []string

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "import_spec": // Go
			if path := n.ChildByFieldName("path"); path != nil {
				specs = append(specs, unquote(path.Content(content)))
			}
			return
		case "import_statement", "export_statement": // TS/JS; Python import
			if ext == ".py" {
				for i := 0; i < int(n.NamedChildCount()); i++ {
					child := n.NamedChild(i)
					switch child.Type() {
					case "dotted_name":
						specs = append(specs, child.Content(content))
					case "aliased_import":
						if name := child.ChildByFieldName("name"); name != nil {
							specs = append(specs, name.Content(content))
						}
					}
				}
				return
			}
			if source := n.ChildByFieldName("source"); source != nil {
				specs = append(specs, unquote(source.Content(content)))
			}
			return
		case "import_from_statement": // Python
			if mod := n.ChildByFieldName("module_name"); mod != nil {
				specs = append(specs, mod.Content(content))
			}
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)

	return specs
}

func unquote(s string) string {
	return strings.Trim(s, "\"'`")
}

// importStems returns the byte patterns used to prefilter candidate
// importers: the file name without extension for every known file, plus
// the Go package directory names.
func importStems(known map[string]struct{}) [][]byte {
	seen := make(map[string]struct{})
	var stems [][]byte
	add := func(s string) {
		if s == "" || s == "." {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		stems = append(stems, []byte(s))
	}
	for path := range known {
		base := filepath.Base(path)
		add(strings.TrimSuffix(base, filepath.Ext(base)))
		if filepath.Ext(path) == ".go" {
			add(filepath.Base(filepath.Dir(path)))
		}
	}
	return stems
}

func mentionsAny(content []byte, stems [][]byte) bool {
	for _, stem := range stems {
		if bytes.Contains(content, stem) {
			return true
		}
	}
	return false
}

// readModulePath extracts the module path from the repository's go.mod,
// or returns "" when there is none.
func readModulePath(root string) string {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return ""
	}
	return modfile.ModulePath(data)
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedMapKeys(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
