// Package analyze sends extracted comments to a chat model and collects
// findings about comments the change set has made stale.
package analyze

import "github.com/zachicecreamcohn/comment-catcher/internal/comments"

// Finding is one comment the model judged outdated.
type Finding struct {
	// File is the repository-relative path containing the comment.
	File string `json:"file"`

	// Line is the 1-based line of the first comment line.
	Line int `json:"line"`

	// Comment is the cleaned comment text that was analyzed.
	Comment string `json:"comment"`

	// Reason explains what in the change set contradicts the comment.
	Reason string `json:"reason"`

	// Suggestion is optional replacement text. Empty when the model has
	// no concrete rewording.
	Suggestion string `json:"suggestion,omitempty"`
}

// Input bundles everything one analysis run looks at.
type Input struct {
	// Diff is the unified diff of the change set.
	Diff string

	// Comments are the significant comments from changed and related
	// files, in file order.
	Comments []comments.Comment
}
