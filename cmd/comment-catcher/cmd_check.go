package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zachicecreamcohn/comment-catcher/internal/config"
	"github.com/zachicecreamcohn/comment-catcher/internal/gitdiff"
	"github.com/zachicecreamcohn/comment-catcher/internal/report"
	"github.com/zachicecreamcohn/comment-catcher/internal/runner"
	"github.com/zachicecreamcohn/comment-catcher/pkg/logging"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	// Change detection flags
	checkBase   string
	checkStaged bool
	checkCommit string
	checkFiles  []string

	// Analysis flags
	checkDepth      int
	checkConfigPath string

	// Output flags
	checkFormat  string
	checkOutput  string
	checkVerbose bool
	checkQuiet   bool

	// GitHub flags
	checkGitHub bool
	checkRepo   string
	checkPR     int
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the change set for outdated comments",
	Long: `Check detects changed files, expands through the dependency graph,
and reports comments the change set appears to contradict.

Change Detection Modes:
  (default)    Uncommitted working tree changes
  --staged     Staged changes only
  --commit     A specific commit
  --base       Changes since the merge base with a branch
  --files      An explicit file list

Examples:
  comment-catcher check
  comment-catcher check --staged
  comment-catcher check --base main --format markdown
  comment-catcher check --commit abc123 --output findings.json
  comment-catcher check --base main --github --repo acme/widget --pr 42

Exit codes: 0 when no findings, 1 on findings or failure.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkBase, "base", "",
		"Compare against the merge base with this branch (e.g. main)")
	checkCmd.Flags().BoolVar(&checkStaged, "staged", false,
		"Check staged changes only")
	checkCmd.Flags().StringVar(&checkCommit, "commit", "",
		"Check a specific commit")
	checkCmd.Flags().StringSliceVar(&checkFiles, "files", nil,
		"Check an explicit list of files")

	checkCmd.Flags().IntVar(&checkDepth, "depth", 0,
		"Dependency expansion depth (0 = config default)")
	checkCmd.Flags().StringVar(&checkConfigPath, "config", "",
		"Path to the config file (default .comment-catcher.yaml)")

	checkCmd.Flags().StringVar(&checkFormat, "format", "json",
		"Report format: json or markdown")
	checkCmd.Flags().StringVar(&checkOutput, "output", "",
		"Write the report to a file instead of stdout")
	checkCmd.Flags().BoolVarP(&checkVerbose, "verbose", "v", false,
		"Enable debug logging")
	checkCmd.Flags().BoolVarP(&checkQuiet, "quiet", "q", false,
		"Suppress log output")

	checkCmd.Flags().BoolVar(&checkGitHub, "github", false,
		"Post findings to a GitHub pull request (needs GITHUB_TOKEN)")
	checkCmd.Flags().StringVar(&checkRepo, "repo", "",
		"GitHub repository as owner/name")
	checkCmd.Flags().IntVar(&checkPR, "pr", 0,
		"GitHub pull request number")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	change, err := changeConfig()
	if err != nil {
		return err
	}

	format, err := report.ParseFormat(checkFormat)
	if err != nil {
		return err
	}

	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}

	cfg, err := config.Load(root, checkConfigPath)
	if err != nil {
		return err
	}
	if checkDepth > 0 {
		cfg.MaxDepth = checkDepth
	}

	level := logging.LevelInfo
	if checkVerbose {
		level = logging.LevelDebug
	}
	log := logging.New(logging.Config{
		Level:   level,
		Service: "comment-catcher",
		Quiet:   checkQuiet,
	})
	defer log.Close()

	opts := runner.Options{
		Root:   root,
		Change: change,
		Format: format,
		Output: checkOutput,
		GitHub: checkGitHub,
		PR:     checkPR,
	}

	if checkGitHub {
		owner, repo, err := splitRepo(checkRepo)
		if err != nil {
			return err
		}
		if checkPR < 1 {
			return fmt.Errorf("--github requires --pr")
		}
		opts.Owner, opts.Repo = owner, repo
	}

	r, err := runner.New(cfg, opts, log)
	if err != nil {
		return err
	}

	code, err := r.Run(ctx)
	if err != nil {
		log.Error("Check failed", "error", err)
		os.Exit(runner.ExitFindings)
	}
	os.Exit(code)
	return nil
}

// changeConfig maps the mutually exclusive mode flags onto one change
// source, defaulting to the working tree diff.
func changeConfig() (gitdiff.Config, error) {
	cfg := gitdiff.Config{Mode: gitdiff.ChangeModeDiff}

	modeCount := 0
	if checkStaged {
		cfg.Mode = gitdiff.ChangeModeStaged
		modeCount++
	}
	if checkCommit != "" {
		cfg.Mode = gitdiff.ChangeModeCommit
		cfg.CommitHash = checkCommit
		modeCount++
	}
	if checkBase != "" {
		cfg.Mode = gitdiff.ChangeModeBranch
		cfg.BaseBranch = checkBase
		modeCount++
	}
	if len(checkFiles) > 0 {
		cfg.Mode = gitdiff.ChangeModeFiles
		cfg.Files = checkFiles
		modeCount++
	}

	if modeCount > 1 {
		return gitdiff.Config{}, fmt.Errorf(
			"multiple change modes specified; use only one of --staged, --commit, --base, or --files")
	}
	return cfg, nil
}

// splitRepo parses an owner/name repository reference.
func splitRepo(s string) (string, string, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("--repo must be owner/name, got %q", s)
	}
	return parts[0], parts[1], nil
}
