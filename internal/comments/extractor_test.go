package comments

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_GoComments(t *testing.T) {
	src := []byte(`package main

// Connect opens the session and retries on transient errors.
func Connect() {}

func helper() {} // trailing note about helper behavior
`)

	e := NewExtractor("")
	got, err := e.Extract(context.Background(), src, "main.go")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 3, got[0].StartLine)
	assert.Equal(t, "Connect opens the session and retries on transient errors.", got[0].Text)
	assert.Equal(t, 6, got[1].StartLine)
	assert.Equal(t, "trailing note about helper behavior", got[1].Text)
}

func TestExtract_MergesAdjacentLineComments(t *testing.T) {
	src := []byte(`package main

// The cache is invalidated on every write
// because readers expect strong consistency.
func write() {}
`)

	e := NewExtractor("")
	got, err := e.Extract(context.Background(), src, "cache.go")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, 3, got[0].StartLine)
	assert.Equal(t, 4, got[0].EndLine)
	assert.Equal(t,
		"The cache is invalidated on every write because readers expect strong consistency.",
		got[0].Text)
}

func TestExtract_DoesNotMergeAcrossBlankLine(t *testing.T) {
	src := []byte(`package main

// first comment about the setup phase

// second comment about the teardown phase
func f() {}
`)

	e := NewExtractor("")
	got, err := e.Extract(context.Background(), src, "f.go")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestExtract_PythonComments(t *testing.T) {
	src := []byte(`# module-level explanation of the retry budget
def retry():
    pass  # inline note
`)

	e := NewExtractor("")
	got, err := e.Extract(context.Background(), src, "retry.py")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "module-level explanation of the retry budget", got[0].Text)
	assert.Equal(t, 1, got[0].StartLine)
}

func TestExtract_TypeScriptBlockComment(t *testing.T) {
	src := []byte(`/* Handles the websocket reconnect loop.
 * Backs off exponentially up to one minute.
 */
export function reconnect() {}
`)

	e := NewExtractor("")
	got, err := e.Extract(context.Background(), src, "ws.ts")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, 1, got[0].StartLine)
	assert.Equal(t, 3, got[0].EndLine)
	assert.Equal(t,
		"Handles the websocket reconnect loop. Backs off exponentially up to one minute.",
		got[0].Text)
}

func TestExtract_ContextWindow(t *testing.T) {
	src := []byte(`package main

var a = 1
var b = 2
// the counter wraps at max int
var c = 3
var d = 4
`)

	e := NewExtractor("", WithContextLines(2))
	got, err := e.Extract(context.Background(), src, "c.go")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, []string{
		"var a = 1",
		"var b = 2",
		"// the counter wraps at max int",
		"var c = 3",
		"var d = 4",
	}, got[0].Context)
}

func TestExtract_UnsupportedExtensionSkipped(t *testing.T) {
	e := NewExtractor("")
	got, err := e.Extract(context.Background(), []byte("# not code"), "notes.txt")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExtractFile_MissingFileIsError(t *testing.T) {
	e := NewExtractor(t.TempDir())
	_, err := e.ExtractFile(context.Background(), "missing.go")
	assert.Error(t, err)
}

func TestExtractFile_SizeLimit(t *testing.T) {
	root := t.TempDir()
	big := make([]byte, 64)
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.go"), big, 0o644))

	e := NewExtractor(root, WithMaxFileSize(16))
	_, err := e.ExtractFile(context.Background(), "big.go")
	assert.ErrorIs(t, err, ErrFileTooLarge)
}
