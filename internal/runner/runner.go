// Package runner wires the pipeline: change detection, dependency
// expansion, comment extraction, model analysis, and reporting.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/zachicecreamcohn/comment-catcher/internal/analyze"
	"github.com/zachicecreamcohn/comment-catcher/internal/comments"
	"github.com/zachicecreamcohn/comment-catcher/internal/config"
	"github.com/zachicecreamcohn/comment-catcher/internal/depgraph"
	"github.com/zachicecreamcohn/comment-catcher/internal/ghreview"
	"github.com/zachicecreamcohn/comment-catcher/internal/gitdiff"
	"github.com/zachicecreamcohn/comment-catcher/internal/report"
	"github.com/zachicecreamcohn/comment-catcher/pkg/logging"
)

// Exit codes for the check command. Findings and failures share a
// non-zero code so CI treats both as "needs attention".
const (
	ExitClean    = 0
	ExitFindings = 1
)

// Options selects what one run looks at and where output goes.
type Options struct {
	// Root is the repository root.
	Root string

	// Change selects the change source.
	Change gitdiff.Config

	// Format picks the report representation.
	Format report.Format

	// Output is a file path for the report; empty means stdout.
	Output string

	// GitHub enables posting a review to a pull request.
	GitHub bool

	// Owner and Repo are the GitHub coordinates when GitHub is set.
	Owner string
	Repo  string

	// PR is the pull request number when GitHub is set.
	PR int
}

// gitClient is the slice of the git layer the runner uses.
type gitClient interface {
	IsGitRepo() bool
	ChangedFiles(ctx context.Context, cfg gitdiff.Config) ([]gitdiff.ChangedFile, error)
	DiffText(ctx context.Context, cfg gitdiff.Config) (string, error)
}

// commentAnalyzer is the slice of the model layer the runner uses.
type commentAnalyzer interface {
	Analyze(ctx context.Context, in analyze.Input) ([]analyze.Finding, error)
}

// prReviewer posts results to a pull request.
type prReviewer interface {
	PostReview(ctx context.Context, prNumber int, findings []analyze.Finding) error
}

// Runner executes one end-to-end check.
type Runner struct {
	cfg      config.Config
	opts     Options
	log      *logging.Logger
	git      gitClient
	resolver *depgraph.Resolver
	extract  *comments.Extractor
	filter   *comments.Filter
	analyzer commentAnalyzer
	reviewer prReviewer
	stdout   io.Writer
}

// New builds a Runner with real components.
//
// # Outputs
//
//   - *Runner: Ready to run.
//   - error: Non-nil on configuration problems: bad ignore patterns,
//     missing API key, or missing GitHub credentials. All surfaced
//     before any git or network work.
func New(cfg config.Config, opts Options, log *logging.Logger) (*Runner, error) {
	filter, err := comments.NewFilter(cfg.MinCommentLength, cfg.IgnorePatterns)
	if err != nil {
		return nil, err
	}

	analyzer, err := analyze.NewAnalyzer(cfg.Model, cfg.BaseURL, log,
		analyze.WithBatchSize(cfg.BatchSize),
		analyze.WithRequestsPerMinute(cfg.RequestsPerMinute))
	if err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:      cfg,
		opts:     opts,
		log:      log,
		git:      gitdiff.NewClient(opts.Root),
		resolver: depgraph.NewResolver(opts.Root, log),
		extract: comments.NewExtractor(opts.Root,
			comments.WithContextLines(cfg.ContextLines)),
		filter:   filter,
		analyzer: analyzer,
		stdout:   os.Stdout,
	}

	if opts.GitHub {
		reviewer, err := ghreview.NewClient(opts.Owner, opts.Repo, os.Getenv("GITHUB_TOKEN"), log)
		if err != nil {
			return nil, fmt.Errorf("github posting enabled: %w", err)
		}
		r.reviewer = reviewer
	}

	return r, nil
}

// Run executes the pipeline and returns the exit code.
//
// # Description
//
// Git failures and unreadable changed files abort the run. Dependency
// expansion is best effort: a resolver failure logs a warning and the
// analysis proceeds with the changed files alone.
func (r *Runner) Run(ctx context.Context) (int, error) {
	if r.opts.Change.Mode != gitdiff.ChangeModeFiles && !r.git.IsGitRepo() {
		return ExitFindings, fmt.Errorf("%s is not a git repository", r.opts.Root)
	}

	changed, err := r.git.ChangedFiles(ctx, r.opts.Change)
	if err != nil {
		return ExitFindings, err
	}
	if len(changed) == 0 {
		r.log.Info("No changed files, nothing to check")
		return ExitClean, r.writeReport(nil)
	}

	diffText, err := r.git.DiffText(ctx, r.opts.Change)
	if err != nil {
		return ExitFindings, err
	}

	seeds := r.seedFiles(changed)
	if len(seeds) == 0 {
		r.log.Info("No supported source files in the change set")
		return ExitClean, r.writeReport(nil)
	}

	targets := r.expandTargets(ctx, seeds)

	collected, err := r.collectComments(ctx, targets, seeds)
	if err != nil {
		return ExitFindings, err
	}

	significant := r.filter.Apply(collected)
	r.log.Info("Comments collected",
		"files", len(targets), "extracted", len(collected), "significant", len(significant))

	findings, err := r.analyzer.Analyze(ctx, analyze.Input{Diff: diffText, Comments: significant})
	if err != nil {
		return ExitFindings, err
	}

	if err := r.writeReport(findings); err != nil {
		return ExitFindings, err
	}

	if r.reviewer != nil {
		if err := r.reviewer.PostReview(ctx, r.opts.PR, findings); err != nil {
			return ExitFindings, fmt.Errorf("posting review: %w", err)
		}
	}

	if len(findings) > 0 {
		return ExitFindings, nil
	}
	return ExitClean, nil
}

// seedFiles keeps changed files that exist, parse, and pass the exclude
// globs. Deleted files have no comments to check.
func (r *Runner) seedFiles(changed []gitdiff.ChangedFile) []string {
	var seeds []string
	for _, cf := range changed {
		if cf.ChangeType == gitdiff.ChangeDeleted {
			continue
		}
		p := depgraph.NormalizePath(cf.Path)
		if !r.supportedExt(p) || r.excluded(p) {
			continue
		}
		seeds = append(seeds, p)
	}
	sort.Strings(seeds)
	return seeds
}

// expandTargets returns seeds plus their dependency neighborhood, best
// effort.
func (r *Runner) expandTargets(ctx context.Context, seeds []string) []string {
	modules, err := r.resolver.Resolve(ctx, seeds, depgraph.ResolveOptions{
		MaxDepth:   r.cfg.MaxDepth,
		Exclude:    r.cfg.Exclude,
		Extensions: r.cfg.Extensions,
	})
	if err != nil {
		r.log.Warn("Dependency expansion failed, checking changed files only", "error", err)
		return seeds
	}

	graph := depgraph.BuildGraph(modules)
	related := depgraph.Expand(graph, seeds, r.cfg.MaxDepth)
	r.log.Debug("Dependency expansion complete",
		"seeds", len(seeds), "related", len(related))

	seen := make(map[string]struct{}, len(seeds)+len(related))
	var targets []string
	for _, p := range append(append([]string{}, seeds...), related...) {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		targets = append(targets, p)
	}
	sort.Strings(targets)
	return targets
}

// collectComments extracts comments from every target file. Errors on
// changed files abort; related files and oversized or binary content
// degrade to a warning.
func (r *Runner) collectComments(ctx context.Context, targets, seeds []string) ([]comments.Comment, error) {
	seedSet := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		seedSet[s] = struct{}{}
	}

	var all []comments.Comment
	for _, path := range targets {
		extracted, err := r.extract.ExtractFile(ctx, path)
		if err != nil {
			_, isSeed := seedSet[path]
			skippable := errors.Is(err, comments.ErrFileTooLarge) ||
				errors.Is(err, comments.ErrInvalidContent)
			if isSeed && !skippable {
				return nil, fmt.Errorf("extracting comments: %w", err)
			}
			r.log.Warn("Skipping file", "path", path, "error", err)
			continue
		}
		all = append(all, extracted...)
	}
	return all, nil
}

// writeReport renders findings to the configured destination.
func (r *Runner) writeReport(findings []analyze.Finding) error {
	var w io.Writer = r.stdout
	if r.opts.Output != "" {
		f, err := os.Create(filepath.Clean(r.opts.Output))
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch r.opts.Format {
	case report.FormatJSON:
		return report.WriteJSON(w, findings)
	default:
		return report.WriteMarkdown(w, findings)
	}
}

// supportedExt checks the path against the configured extension list, or
// the resolver defaults when unset.
func (r *Runner) supportedExt(path string) bool {
	extensions := r.cfg.Extensions
	if len(extensions) == 0 {
		extensions = depgraph.DefaultExtensions
	}
	ext := filepath.Ext(path)
	for _, e := range extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func (r *Runner) excluded(path string) bool {
	for _, pattern := range r.cfg.Exclude {
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			return true
		}
	}
	return false
}
