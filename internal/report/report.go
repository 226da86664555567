// Package report renders analysis findings as JSON or Markdown.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/zachicecreamcohn/comment-catcher/internal/analyze"
)

// Format selects the output representation.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a format flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want json or markdown)", s)
	}
}

// WriteJSON writes the findings as a JSON array. An empty run writes [].
func WriteJSON(w io.Writer, findings []analyze.Finding) error {
	if findings == nil {
		findings = []analyze.Finding{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(findings); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// WriteMarkdown writes a human-readable report, one section per finding.
func WriteMarkdown(w io.Writer, findings []analyze.Finding) error {
	_, err := io.WriteString(w, RenderMarkdown(findings))
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// RenderMarkdown renders the Markdown report body.
func RenderMarkdown(findings []analyze.Finding) string {
	var sb strings.Builder

	sb.WriteString("## Potentially Outdated Comments\n\n")

	if len(findings) == 0 {
		sb.WriteString("No outdated comments found.\n")
		return sb.String()
	}

	fmt.Fprintf(&sb, "%d comment(s) may no longer match the code.\n\n", len(findings))

	for _, f := range findings {
		fmt.Fprintf(&sb, "### `%s:%d`\n\n", f.File, f.Line)
		fmt.Fprintf(&sb, "> %s\n\n", escapeMarkdown(f.Comment))
		fmt.Fprintf(&sb, "**Why it looks stale:** %s\n\n", escapeMarkdown(f.Reason))
		if f.Suggestion != "" {
			fmt.Fprintf(&sb, "**Suggested rewording:** %s\n\n", escapeMarkdown(f.Suggestion))
		}
	}

	return sb.String()
}

// escapeMarkdown escapes special markdown characters to prevent injection
// from comment text or model output.
func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"`", "\\`",
		"*", "\\*",
		"_", "\\_",
		"[", "\\[",
		"]", "\\]",
		"#", "\\#",
		"|", "\\|",
		"<", "&lt;",
		">", "&gt;",
		"\n", " ",
	)
	return replacer.Replace(s)
}
