package ghreview

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zachicecreamcohn/comment-catcher/internal/analyze"
	"github.com/zachicecreamcohn/comment-catcher/pkg/logging"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient("acme", "widget", "tok", logging.Discard(), WithBaseURL(srv.URL))
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	log := logging.Discard()

	_, err := NewClient("", "widget", "tok", log)
	assert.Error(t, err)

	_, err = NewClient("acme", "widget", "", log)
	assert.Error(t, err)
}

func TestListPRFiles(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/widget/pulls/7/files", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode([]PRFile{
			{Filename: "a.go", Patch: "@@ -1 +1 @@\n-x\n+y"},
		})
	}))

	files, err := c.ListPRFiles(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.go", files[0].Filename)
}

func TestHeadSHA(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/widget/pulls/7", r.URL.Path)
		fmt.Fprint(w, `{"head":{"sha":"abc123"}}`)
	}))

	sha, err := c.HeadSHA(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "abc123", sha)
}

func TestPostInlineComment(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/repos/acme/widget/pulls/7/comments", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))

	err := c.PostInlineComment(context.Background(), 7, "abc123", "a.go", 3, "body text")
	require.NoError(t, err)

	assert.Equal(t, "abc123", got["commit_id"])
	assert.Equal(t, "a.go", got["path"])
	assert.Equal(t, float64(3), got["position"])
}

func TestUpsertSummary_CreatesWhenMissing(t *testing.T) {
	var posted string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			fmt.Fprint(w, `[{"id":1,"body":"unrelated comment"}]`)
		case r.Method == http.MethodPost:
			assert.Equal(t, "/repos/acme/widget/issues/7/comments", r.URL.Path)
			var payload map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			posted = payload["body"]
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))

	require.NoError(t, c.UpsertSummary(context.Background(), 7, "summary text"))
	assert.Contains(t, posted, summaryMarker)
	assert.Contains(t, posted, "summary text")
}

func TestUpsertSummary_UpdatesExisting(t *testing.T) {
	var patchedPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			fmt.Fprintf(w, `[{"id":42,"body":"%s old body"}]`, summaryMarker)
		case http.MethodPatch:
			patchedPath = r.URL.Path
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))

	require.NoError(t, c.UpsertSummary(context.Background(), 7, "new body"))
	assert.Equal(t, "/repos/acme/widget/issues/comments/42", patchedPath)
}

func TestPostReview_SplitsInlineAndSummary(t *testing.T) {
	patch := "@@ -1,2 +1,3 @@\n line1\n+added\n line2"

	var inlinePosted []map[string]any
	var summary string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/repos/acme/widget/pulls/7/files":
			_ = json.NewEncoder(w).Encode([]PRFile{{Filename: "a.go", Patch: patch}})
		case r.URL.Path == "/repos/acme/widget/pulls/7":
			fmt.Fprint(w, `{"head":{"sha":"abc"}}`)
		case r.URL.Path == "/repos/acme/widget/pulls/7/comments" && r.Method == http.MethodPost:
			var payload map[string]any
			_ = json.NewDecoder(r.Body).Decode(&payload)
			inlinePosted = append(inlinePosted, payload)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodGet:
			fmt.Fprint(w, `[]`)
		case r.Method == http.MethodPost:
			var payload map[string]string
			_ = json.NewDecoder(r.Body).Decode(&payload)
			summary = payload["body"]
			w.WriteHeader(http.StatusCreated)
		}
	}))

	findings := []analyze.Finding{
		{File: "a.go", Line: 2, Comment: "visible", Reason: "in diff"},
		{File: "a.go", Line: 50, Comment: "hidden", Reason: "outside diff"},
		{File: "other.go", Line: 1, Comment: "unknown file", Reason: "no patch"},
	}

	require.NoError(t, c.PostReview(context.Background(), 7, findings))

	require.Len(t, inlinePosted, 1)
	assert.Equal(t, float64(3), inlinePosted[0]["position"])

	assert.Contains(t, summary, "Not shown inline")
	assert.Contains(t, summary, "`a.go:50`")
	assert.Contains(t, summary, "`other.go:1`")
}

func TestDo_ErrorStatusSurfaces(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"rate limited"}`)
	}))

	_, err := c.ListPRFiles(context.Background(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "rate limited")
}
