// Package comments extracts comments from source files and decides which
// ones are worth analyzing.
package comments

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// DefaultMaxFileSize is the maximum file size the extractor will accept (10MB).
const DefaultMaxFileSize = 10 * 1024 * 1024

// DefaultContextLines is the window of surrounding source captured with
// each comment.
const DefaultContextLines = 3

// ErrFileTooLarge is returned when a file exceeds the size limit.
var ErrFileTooLarge = errors.New("file exceeds maximum size limit")

// ErrInvalidContent is returned for non-UTF-8 input.
var ErrInvalidContent = errors.New("content is not valid UTF-8")

// Comment is one extracted comment or merged comment block.
type Comment struct {
	// File is the repository-relative path.
	File string `json:"file"`

	// StartLine is the 1-based line of the first comment line.
	StartLine int `json:"start_line"`

	// EndLine is the 1-based line of the last comment line. Equal to
	// StartLine for single-line comments.
	EndLine int `json:"end_line"`

	// Text is the comment content with markers stripped.
	Text string `json:"text"`

	// Context is a window of surrounding source lines.
	Context []string `json:"context,omitempty"`
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithMaxFileSize overrides the file size limit.
func WithMaxFileSize(bytes int64) ExtractorOption {
	return func(e *Extractor) {
		if bytes > 0 {
			e.maxFileSize = bytes
		}
	}
}

// WithContextLines overrides the surrounding-source window size.
func WithContextLines(n int) ExtractorOption {
	return func(e *Extractor) {
		if n >= 0 {
			e.contextLines = n
		}
	}
}

// Extractor scrapes comments from source files using tree-sitter.
//
// # Description
//
// Each ExtractFile call creates its own tree-sitter parser, so an
// Extractor is safe for concurrent use. Consecutive line comments with
// adjacent line numbers merge into one block before being returned.
//
// Supported languages: Go, TypeScript, TSX, JavaScript, Python.
type Extractor struct {
	root         string
	maxFileSize  int64
	contextLines int
}

// NewExtractor creates an Extractor rooted at the repository path.
func NewExtractor(root string, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		root:         root,
		maxFileSize:  DefaultMaxFileSize,
		contextLines: DefaultContextLines,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractFile returns all comment blocks in one file.
//
// # Inputs
//
//   - ctx: Context for cancellation. Must not be nil.
//   - relPath: Repository-relative file path.
//
// # Outputs
//
//   - []Comment: Comment blocks in source order. Nil for unsupported
//     extensions.
//   - error: Non-nil when the file exists but cannot be read or parsed;
//     callers treat this as a hard I/O error.
func (e *Extractor) ExtractFile(ctx context.Context, relPath string) ([]Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extraction canceled before start: %w", err)
	}

	lang := languageForPath(relPath)
	if lang == nil {
		return nil, nil
	}

	full := filepath.Join(e.root, filepath.FromSlash(relPath))
	info, err := os.Stat(full)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", relPath, err)
	}
	if info.Size() > e.maxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, relPath, info.Size())
	}

	content, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", relPath, err)
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidContent, relPath)
	}

	return e.Extract(ctx, content, relPath)
}

// Extract parses content directly. Exposed for tests and in-memory use.
func (e *Extractor) Extract(ctx context.Context, content []byte, relPath string) ([]Comment, error) {
	lang := languageForPath(relPath)
	if lang == nil {
		return nil, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", relPath, err)
	}
	defer tree.Close()

	nodes := collectCommentNodes(tree.RootNode())

	lines := strings.Split(string(content), "\n")

	var raw []Comment
	for _, n := range nodes {
		start := int(n.StartPoint().Row) + 1
		end := int(n.EndPoint().Row) + 1
		raw = append(raw, Comment{
			File:      relPath,
			StartLine: start,
			EndLine:   end,
			Text:      cleanText(n.Content(content)),
		})
	}

	merged := mergeAdjacent(raw, lines)

	for i := range merged {
		merged[i].Context = e.contextWindow(lines, merged[i].StartLine, merged[i].EndLine)
	}

	return merged, nil
}

// collectCommentNodes walks the tree and returns comment nodes in source
// order.
func collectCommentNodes(root *sitter.Node) []*sitter.Node {
	var nodes []*sitter.Node

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "comment" {
			nodes = append(nodes, n)
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)

	return nodes
}

// mergeAdjacent folds runs of single-line comments on consecutive lines
// into one block, concatenating their text. Block comments (already
// multi-line) are left alone. A run only merges when nothing but the
// comments themselves occupy those lines.
func mergeAdjacent(comments []Comment, lines []string) []Comment {
	var out []Comment
	for _, c := range comments {
		if len(out) > 0 {
			prev := &out[len(out)-1]
			if c.StartLine == prev.EndLine+1 &&
				c.StartLine == c.EndLine &&
				prev.File == c.File &&
				lineIsOnlyComment(lines, c.StartLine) &&
				lineIsOnlyComment(lines, prev.EndLine) {
				prev.EndLine = c.EndLine
				prev.Text = strings.TrimSpace(prev.Text + " " + c.Text)
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// lineIsOnlyComment reports whether the 1-based line holds nothing before
// its comment marker, i.e. it is not a trailing comment on code.
func lineIsOnlyComment(lines []string, lineNo int) bool {
	if lineNo < 1 || lineNo > len(lines) {
		return false
	}
	trimmed := strings.TrimSpace(lines[lineNo-1])
	return strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") ||
		strings.HasPrefix(trimmed, "/*") || strings.HasPrefix(trimmed, "*")
}

// cleanText strips comment markers and normalizes whitespace.
func cleanText(s string) string {
	s = strings.TrimSpace(s)

	switch {
	case strings.HasPrefix(s, "/*"):
		s = strings.TrimPrefix(s, "/*")
		s = strings.TrimSuffix(s, "*/")
	case strings.HasPrefix(s, "//"):
		s = strings.TrimPrefix(s, "//")
	case strings.HasPrefix(s, "#"):
		s = strings.TrimPrefix(s, "#")
	}

	var parts []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "*")
		line = strings.TrimPrefix(line, "//")
		line = strings.TrimPrefix(line, "#")
		line = strings.TrimSpace(line)
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}

// contextWindow returns source lines around [startLine, endLine].
func (e *Extractor) contextWindow(lines []string, startLine, endLine int) []string {
	if e.contextLines == 0 {
		return nil
	}
	lo := startLine - 1 - e.contextLines
	if lo < 0 {
		lo = 0
	}
	hi := endLine + e.contextLines
	if hi > len(lines) {
		hi = len(lines)
	}
	window := make([]string, hi-lo)
	copy(window, lines[lo:hi])
	return window
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
