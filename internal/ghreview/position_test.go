package ghreview

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const twoHunkPatch = `@@ -1,3 +1,4 @@
 line1
+added
 line2
 line3
@@ -10,3 +12,4 @@
 ctx1
 ctx2
+added2
 ctx3`

func TestPositionInPatch_FirstHunk(t *testing.T) {
	pos, ok := PositionInPatch(twoHunkPatch, 1)
	assert.True(t, ok)
	assert.Equal(t, 2, pos)

	pos, ok = PositionInPatch(twoHunkPatch, 2)
	assert.True(t, ok)
	assert.Equal(t, 3, pos)
}

func TestPositionInPatch_SecondHunkCountsHeader(t *testing.T) {
	// Positions keep counting across hunks, including each header line.
	pos, ok := PositionInPatch(twoHunkPatch, 14)
	assert.True(t, ok)
	assert.Equal(t, 9, pos)

	pos, ok = PositionInPatch(twoHunkPatch, 12)
	assert.True(t, ok)
	assert.Equal(t, 7, pos)
}

func TestPositionInPatch_LineOutsideHunks(t *testing.T) {
	_, ok := PositionInPatch(twoHunkPatch, 8)
	assert.False(t, ok)

	_, ok = PositionInPatch(twoHunkPatch, 99)
	assert.False(t, ok)
}

func TestPositionInPatch_DeletedLinesHaveNoPosition(t *testing.T) {
	patch := `@@ -1,3 +1,2 @@
 keep
-removed
 keep2`

	pos, ok := PositionInPatch(patch, 2)
	assert.True(t, ok)
	assert.Equal(t, 4, pos)

	// The removed line shifts positions but never maps to a new line.
	pos, ok = PositionInPatch(patch, 1)
	assert.True(t, ok)
	assert.Equal(t, 2, pos)
}

func TestPositionInPatch_EmptyAndInvalid(t *testing.T) {
	_, ok := PositionInPatch("", 1)
	assert.False(t, ok)

	_, ok = PositionInPatch(twoHunkPatch, 0)
	assert.False(t, ok)

	_, ok = PositionInPatch("not a patch", 1)
	assert.False(t, ok)
}
