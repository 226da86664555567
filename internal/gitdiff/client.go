// Package gitdiff retrieves changed files and diff text from git.
package gitdiff

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// ChangeMode selects how the change set is determined.
type ChangeMode string

const (
	// ChangeModeFiles uses an explicit file list, no git required.
	ChangeModeFiles ChangeMode = "files"

	// ChangeModeDiff uses uncommitted working tree changes.
	ChangeModeDiff ChangeMode = "diff"

	// ChangeModeStaged uses staged changes only.
	ChangeModeStaged ChangeMode = "staged"

	// ChangeModeCommit uses a single commit.
	ChangeModeCommit ChangeMode = "commit"

	// ChangeModeBranch uses changes since the merge base with a branch.
	ChangeModeBranch ChangeMode = "branch"
)

// ChangeType describes what happened to a file.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
	ChangeRenamed  ChangeType = "renamed"
	ChangeCopied   ChangeType = "copied"
)

// ChangedFile is one entry from git's name-status output.
type ChangedFile struct {
	Path       string     `json:"path"`
	ChangeType ChangeType `json:"change_type"`
	OldPath    string     `json:"old_path,omitempty"`
}

// Config selects the change source for a run.
type Config struct {
	Mode       ChangeMode
	Files      []string
	CommitHash string
	BaseBranch string
}

// Client runs git in a working directory.
//
// # Thread Safety
//
// Client is safe for concurrent use.
type Client struct {
	workDir string
}

// NewClient creates a Client for the given working directory.
func NewClient(workDir string) *Client {
	return &Client{workDir: workDir}
}

// IsGitRepo checks whether the working directory is inside a git repository.
func (c *Client) IsGitRepo() bool {
	cmd := exec.Command("git", "rev-parse", "--git-dir")
	cmd.Dir = c.workDir
	return cmd.Run() == nil
}

// ChangedFiles returns the change set for the configured mode.
//
// # Inputs
//
//   - ctx: Context for cancellation. Must not be nil.
//   - cfg: Change source configuration.
//
// # Outputs
//
//   - []ChangedFile: Changed files with forward-slash paths.
//   - error: Non-nil if the git invocation fails; callers treat this as
//     a hard error and abort the run.
func (c *Client) ChangedFiles(ctx context.Context, cfg Config) ([]ChangedFile, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}

	switch cfg.Mode {
	case ChangeModeFiles:
		result := make([]ChangedFile, 0, len(cfg.Files))
		for _, f := range cfg.Files {
			result = append(result, ChangedFile{
				Path:       filepath.ToSlash(f),
				ChangeType: ChangeModified,
			})
		}
		return result, nil
	case ChangeModeDiff:
		return c.nameStatus(ctx, []string{"diff", "--name-status"})
	case ChangeModeStaged:
		return c.nameStatus(ctx, []string{"diff", "--cached", "--name-status"})
	case ChangeModeCommit:
		if cfg.CommitHash == "" {
			return nil, fmt.Errorf("commit hash required for commit mode")
		}
		return c.nameStatus(ctx, []string{"show", "--name-status", "--format=", cfg.CommitHash})
	case ChangeModeBranch:
		if cfg.BaseBranch == "" {
			return nil, fmt.Errorf("base branch required for branch mode")
		}
		if err := c.verifyRef(ctx, cfg.BaseBranch); err != nil {
			return nil, err
		}
		return c.nameStatus(ctx, []string{"diff", "--name-status", cfg.BaseBranch + "...HEAD"})
	default:
		return nil, fmt.Errorf("unknown change mode: %s", cfg.Mode)
	}
}

// DiffText returns the full unified diff for the configured mode. For
// ChangeModeFiles the working tree diff is limited to those paths.
func (c *Client) DiffText(ctx context.Context, cfg Config) (string, error) {
	if ctx == nil {
		return "", fmt.Errorf("ctx must not be nil")
	}

	var args []string
	switch cfg.Mode {
	case ChangeModeFiles:
		args = append([]string{"diff", "--"}, cfg.Files...)
	case ChangeModeDiff:
		args = []string{"diff"}
	case ChangeModeStaged:
		args = []string{"diff", "--cached"}
	case ChangeModeCommit:
		if cfg.CommitHash == "" {
			return "", fmt.Errorf("commit hash required for commit mode")
		}
		args = []string{"show", "--format=", cfg.CommitHash}
	case ChangeModeBranch:
		if cfg.BaseBranch == "" {
			return "", fmt.Errorf("base branch required for branch mode")
		}
		args = []string{"diff", cfg.BaseBranch + "...HEAD"}
	default:
		return "", fmt.Errorf("unknown change mode: %s", cfg.Mode)
	}

	stdout, err := c.run(ctx, args)
	if err != nil {
		return "", err
	}
	return stdout, nil
}

func (c *Client) nameStatus(ctx context.Context, args []string) ([]ChangedFile, error) {
	stdout, err := c.run(ctx, args)
	if err != nil {
		return nil, err
	}
	return ParseNameStatus(stdout)
}

func (c *Client) run(ctx context.Context, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}
	return stdout.String(), nil
}

func (c *Client) verifyRef(ctx context.Context, ref string) error {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--verify", ref)
	cmd.Dir = c.workDir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ref %q not found: %w: %s", ref, err, stderr.String())
	}
	return nil
}

// ParseNameStatus parses git diff --name-status output.
// Format: M\tpath/to/file.go, with renames as R100\told\tnew.
func ParseNameStatus(output string) ([]ChangedFile, error) {
	var result []ChangedFile

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}

		status := parts[0]
		cf := ChangedFile{Path: filepath.ToSlash(parts[1])}

		switch {
		case strings.HasPrefix(status, "A"):
			cf.ChangeType = ChangeAdded
		case strings.HasPrefix(status, "M"):
			cf.ChangeType = ChangeModified
		case strings.HasPrefix(status, "D"):
			cf.ChangeType = ChangeDeleted
		case strings.HasPrefix(status, "R"):
			cf.ChangeType = ChangeRenamed
			if len(parts) >= 3 {
				cf.OldPath = filepath.ToSlash(parts[1])
				cf.Path = filepath.ToSlash(parts[2])
			}
		case strings.HasPrefix(status, "C"):
			cf.ChangeType = ChangeCopied
			if len(parts) >= 3 {
				cf.OldPath = filepath.ToSlash(parts[1])
				cf.Path = filepath.ToSlash(parts[2])
			}
		default:
			cf.ChangeType = ChangeModified
		}

		result = append(result, cf)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parsing git output: %w", err)
	}
	return result, nil
}
