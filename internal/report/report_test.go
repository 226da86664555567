package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zachicecreamcohn/comment-catcher/internal/analyze"
)

func sample() []analyze.Finding {
	return []analyze.Finding{
		{
			File:       "src/api.go",
			Line:       12,
			Comment:    "returns nil when the user is missing",
			Reason:     "function now returns ErrNotFound instead of nil",
			Suggestion: "returns ErrNotFound when the user is missing",
		},
		{
			File:    "src/db.py",
			Line:    40,
			Comment: "retries three times",
			Reason:  "retry count changed to five",
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("md")
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sample()))

	var decoded []analyze.Finding
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "src/api.go", decoded[0].File)
	assert.Equal(t, 40, decoded[1].Line)
}

func TestWriteJSON_EmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]", string(bytes.TrimSpace(buf.Bytes())))
}

func TestRenderMarkdown(t *testing.T) {
	got := RenderMarkdown(sample())

	assert.Contains(t, got, "## Potentially Outdated Comments")
	assert.Contains(t, got, "2 comment(s)")
	assert.Contains(t, got, "`src/api.go:12`")
	assert.Contains(t, got, "function now returns ErrNotFound instead of nil")
	assert.Contains(t, got, "**Suggested rewording:**")
	assert.Contains(t, got, "`src/db.py:40`")
}

func TestRenderMarkdown_NoFindings(t *testing.T) {
	got := RenderMarkdown(nil)
	assert.Contains(t, got, "No outdated comments found.")
}

func TestRenderMarkdown_EscapesInjection(t *testing.T) {
	got := RenderMarkdown([]analyze.Finding{{
		File:    "a.go",
		Line:    1,
		Comment: "uses `exec` and <script> tags",
		Reason:  "see [link](http://evil)",
	}})

	assert.Contains(t, got, "\\`exec\\`")
	assert.Contains(t, got, "&lt;script&gt;")
	assert.NotContains(t, got, "[link](http://evil)")
}
