// Package ghreview posts findings to a GitHub pull request as inline
// review comments plus one summary comment.
package ghreview

import (
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// PositionInPatch maps a new-file line number to a review comment
// position inside a file's patch.
//
// # Description
//
// GitHub positions are 1-based indexes over the patch text, counting
// every line including hunk headers. Only lines present in the new file
// (context and added lines) have a position; deleted lines and lines
// outside every hunk do not.
//
// # Inputs
//
//   - patch: The file's patch as returned by the pull request files API.
//   - line: 1-based line number in the new version of the file.
//
// # Outputs
//
//   - int: The position, when found.
//   - bool: False when the line is not visible in the patch.
func PositionInPatch(patch string, line int) (int, bool) {
	if patch == "" || line < 1 {
		return 0, false
	}

	hunks, err := diff.ParseHunks([]byte(patch))
	if err != nil {
		return 0, false
	}

	position := 0
	for _, h := range hunks {
		position++ // hunk header line
		newLine := int(h.NewStartLine) - 1

		body := strings.Split(strings.TrimSuffix(string(h.Body), "\n"), "\n")
		for _, bodyLine := range body {
			position++
			if strings.HasPrefix(bodyLine, "+") || strings.HasPrefix(bodyLine, " ") || bodyLine == "" {
				newLine++
				if newLine == line {
					return position, true
				}
			}
		}
	}

	return 0, false
}
