package ghreview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zachicecreamcohn/comment-catcher/internal/analyze"
	"github.com/zachicecreamcohn/comment-catcher/internal/report"
	"github.com/zachicecreamcohn/comment-catcher/pkg/logging"
)

// summaryMarker identifies the summary comment so reruns update it
// instead of stacking new ones.
const summaryMarker = "<!-- comment-catcher-summary -->"

// defaultBaseURL is the public GitHub REST endpoint.
const defaultBaseURL = "https://api.github.com"

// PRFile is one entry from the pull request files listing.
type PRFile struct {
	Filename string `json:"filename"`
	Patch    string `json:"patch"`
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint. Used for GitHub Enterprise and
// tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient swaps the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// Client talks to the GitHub pull request review API.
//
// # Thread Safety
//
// Client is safe for concurrent use.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	owner   string
	repo    string
	log     *logging.Logger
}

// NewClient creates a Client for one repository.
//
// # Inputs
//
//   - owner, repo: Repository coordinates, e.g. "acme", "widget".
//   - token: GitHub token with pull request write access.
//   - log: Logger. Must not be nil.
//
// # Outputs
//
//   - *Client: The configured client.
//   - error: Non-nil when the token or coordinates are empty.
func NewClient(owner, repo, token string, log *logging.Logger, opts ...Option) (*Client, error) {
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("repository owner and name are required")
	}
	if token == "" {
		return nil, fmt.Errorf("GitHub token is required")
	}

	c := &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: defaultBaseURL,
		token:   token,
		owner:   owner,
		repo:    repo,
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListPRFiles returns the changed files of a pull request with their
// patches.
func (c *Client) ListPRFiles(ctx context.Context, prNumber int) ([]PRFile, error) {
	var all []PRFile
	for page := 1; ; page++ {
		path := fmt.Sprintf("/repos/%s/%s/pulls/%d/files?per_page=100&page=%d",
			c.owner, c.repo, prNumber, page)

		var files []PRFile
		if err := c.do(ctx, http.MethodGet, path, nil, &files); err != nil {
			return nil, fmt.Errorf("list pull request files: %w", err)
		}
		all = append(all, files...)
		if len(files) < 100 {
			return all, nil
		}
	}
}

// HeadSHA returns the pull request's head commit, required when posting
// inline review comments.
func (c *Client) HeadSHA(ctx context.Context, prNumber int) (string, error) {
	var pr struct {
		Head struct {
			SHA string `json:"sha"`
		} `json:"head"`
	}
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", c.owner, c.repo, prNumber)
	if err := c.do(ctx, http.MethodGet, path, nil, &pr); err != nil {
		return "", fmt.Errorf("get pull request: %w", err)
	}
	if pr.Head.SHA == "" {
		return "", fmt.Errorf("pull request %d has no head commit", prNumber)
	}
	return pr.Head.SHA, nil
}

// PostInlineComment attaches one review comment at a patch position.
func (c *Client) PostInlineComment(ctx context.Context, prNumber int, commitSHA, file string, position int, body string) error {
	payload := map[string]any{
		"commit_id": commitSHA,
		"path":      file,
		"position":  position,
		"body":      body,
	}
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/comments", c.owner, c.repo, prNumber)
	if err := c.do(ctx, http.MethodPost, path, payload, nil); err != nil {
		return fmt.Errorf("post inline comment on %s: %w", file, err)
	}
	return nil
}

// UpsertSummary creates or updates the marker-tagged summary comment on
// the pull request conversation.
func (c *Client) UpsertSummary(ctx context.Context, prNumber int, body string) error {
	marked := summaryMarker + "\n" + body

	existing, err := c.findSummaryComment(ctx, prNumber)
	if err != nil {
		return err
	}

	if existing != 0 {
		path := fmt.Sprintf("/repos/%s/%s/issues/comments/%d", c.owner, c.repo, existing)
		if err := c.do(ctx, http.MethodPatch, path, map[string]any{"body": marked}, nil); err != nil {
			return fmt.Errorf("update summary comment: %w", err)
		}
		c.log.Debug("Updated existing summary comment", "comment_id", existing)
		return nil
	}

	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", c.owner, c.repo, prNumber)
	if err := c.do(ctx, http.MethodPost, path, map[string]any{"body": marked}, nil); err != nil {
		return fmt.Errorf("create summary comment: %w", err)
	}
	return nil
}

// findSummaryComment returns the id of the marker-tagged conversation
// comment, or 0 when none exists.
func (c *Client) findSummaryComment(ctx context.Context, prNumber int) (int64, error) {
	for page := 1; ; page++ {
		path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments?per_page=100&page=%d",
			c.owner, c.repo, prNumber, page)

		var comments []struct {
			ID   int64  `json:"id"`
			Body string `json:"body"`
		}
		if err := c.do(ctx, http.MethodGet, path, nil, &comments); err != nil {
			return 0, fmt.Errorf("list conversation comments: %w", err)
		}
		for _, cm := range comments {
			if strings.Contains(cm.Body, summaryMarker) {
				return cm.ID, nil
			}
		}
		if len(comments) < 100 {
			return 0, nil
		}
	}
}

// PostReview writes the full result set to the pull request: inline
// comments where the finding's line is visible in the diff, and one
// summary comment covering everything.
//
// # Outputs
//
//   - error: Non-nil when any API call fails. Findings posted before the
//     failure stay in place.
func (c *Client) PostReview(ctx context.Context, prNumber int, findings []analyze.Finding) error {
	files, err := c.ListPRFiles(ctx, prNumber)
	if err != nil {
		return err
	}
	patches := make(map[string]string, len(files))
	for _, f := range files {
		patches[f.Filename] = f.Patch
	}

	sha, err := c.HeadSHA(ctx, prNumber)
	if err != nil {
		return err
	}

	var notInline []analyze.Finding
	for _, f := range findings {
		position, ok := PositionInPatch(patches[f.File], f.Line)
		if !ok {
			notInline = append(notInline, f)
			continue
		}
		if err := c.PostInlineComment(ctx, prNumber, sha, f.File, position, inlineBody(f)); err != nil {
			return err
		}
	}

	return c.UpsertSummary(ctx, prNumber, summaryBody(findings, notInline))
}

// inlineBody renders one finding as an inline comment.
func inlineBody(f analyze.Finding) string {
	var sb strings.Builder
	sb.WriteString("**This comment may be outdated.**\n\n")
	fmt.Fprintf(&sb, "%s\n", f.Reason)
	if f.Suggestion != "" {
		fmt.Fprintf(&sb, "\nSuggested rewording: %s\n", f.Suggestion)
	}
	return sb.String()
}

// summaryBody renders the conversation comment, flagging findings whose
// lines are not visible in the diff.
func summaryBody(findings, notInline []analyze.Finding) string {
	var sb strings.Builder
	sb.WriteString(report.RenderMarkdown(findings))

	if len(notInline) > 0 {
		sb.WriteString("\n### Not shown inline\n\n")
		sb.WriteString("These findings are on lines outside the visible diff:\n\n")
		for _, f := range notInline {
			fmt.Fprintf(&sb, "- `%s:%d`\n", f.File, f.Line)
		}
	}
	return sb.String()
}

// do executes one API request and decodes the response into out when
// non-nil.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
