package analyze

import (
	"fmt"
	"strings"

	"github.com/zachicecreamcohn/comment-catcher/internal/comments"
)

// systemPrompt frames the task. The model is told to only report comments
// the diff actually contradicts, not comments that are merely vague.
const systemPrompt = `You are a code review assistant that finds comments made inaccurate by a change set.

You receive a unified diff and a numbered list of comments, each with a window of surrounding source. For each comment, decide whether the diff contradicts what the comment claims.

Report a comment ONLY when the diff changes behavior the comment describes: renamed or removed identifiers the comment references, changed parameters or return values, altered control flow, changed constants or defaults, inverted conditions. Do NOT report comments that are vague, stylistic, or unaffected by the diff.

Report findings by calling the report_outdated_comments tool exactly once. If no comment is outdated, call it with an empty findings array.`

// buildUserPrompt renders the diff and one batch of comments.
func buildUserPrompt(diff string, batch []comments.Comment) string {
	var b strings.Builder

	b.WriteString("## Change set (unified diff)\n\n```diff\n")
	b.WriteString(diff)
	if !strings.HasSuffix(diff, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("```\n\n## Comments to check\n\n")

	for i, c := range batch {
		fmt.Fprintf(&b, "### Comment %d\nFile: %s\nLine: %d\nText: %s\n", i+1, c.File, c.StartLine, c.Text)
		if len(c.Context) > 0 {
			b.WriteString("Surrounding source:\n```\n")
			b.WriteString(strings.Join(c.Context, "\n"))
			b.WriteString("\n```\n")
		}
		b.WriteString("\n")
	}

	return b.String()
}
