package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vunamhung/antikit/pkg/apperr"
	"github.com/vunamhung/antikit/pkg/github/githubtest"
)

func newFake(t *testing.T) *githubtest.Server {
	t.Helper()
	srv := githubtest.NewServer()
	t.Cleanup(srv.Close)

	srv.AddRepo("acme", "skills", "main", map[string]string{
		"README.md":                   "# readme",
		"skills/alpha/SKILL.md":       "---\nname: alpha\ndescription: Alpha\nversion: 1.0.0\n---\n",
		"skills/alpha/docs/guide.md":  "guide",
		"skills/beta/SKILL.md":        "---\nname: beta\ndescription: Beta\n---\n",
		"skills/.github/workflow.yml": "x",
	})
	return srv
}

func newTestClient(t *testing.T, srv *githubtest.Server, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithEndpoints(srv.APIURL(), srv.GraphQLURL(), srv.RawURL()),
		WithRetry(2, time.Millisecond),
	}, opts...)
	c, err := NewClient(context.Background(), opts...)
	require.NoError(t, err)
	return c
}

func TestListDir(t *testing.T) {
	srv := newFake(t)
	c := newTestClient(t, srv)

	entries, err := c.ListDir(context.Background(), "acme", "skills", "skills", "main")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.GetName())
		assert.Equal(t, "dir", e.GetType())
	}
	assert.Equal(t, []string{".github", "alpha", "beta"}, names)

	root, err := c.ListDir(context.Background(), "acme", "skills", "", "main")
	require.NoError(t, err)
	assert.Len(t, root, 2)
}

func TestListDirErrors(t *testing.T) {
	srv := newFake(t)
	srv.AddEmptyRepo("acme", "empty")
	c := newTestClient(t, srv)

	_, err := c.ListDir(context.Background(), "acme", "missing", "", "main")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.True(t, apperr.IsCode(Classify(err), apperr.GitHubNotFound))

	_, err = c.ListDir(context.Background(), "acme", "empty", "", "main")
	require.Error(t, err)
	assert.True(t, IsEmptyRepository(err))

	srv.SetRateLimited(true)
	_, err = c.ListDir(context.Background(), "acme", "skills", "", "main")
	require.Error(t, err)
	assert.True(t, IsRateLimit(err))
	assert.True(t, apperr.IsCode(Classify(err), apperr.GitHubRateLimit))
}

func TestGetFile(t *testing.T) {
	srv := newFake(t)
	c := newTestClient(t, srv)

	data, err := c.GetFile(context.Background(), "acme", "skills", "skills/alpha/SKILL.md", "main")
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: alpha")

	_, err = c.GetFile(context.Background(), "acme", "skills", "skills", "main")
	assert.Error(t, err)
}

func TestTreeAndBlob(t *testing.T) {
	srv := newFake(t)
	c := newTestClient(t, srv)

	tree, err := c.GetTree(context.Background(), "acme", "skills", "main")
	require.NoError(t, err)

	var blobSHA string
	for _, e := range tree.Entries {
		if e.GetPath() == "skills/alpha/docs/guide.md" {
			assert.Equal(t, "blob", e.GetType())
			blobSHA = e.GetSHA()
		}
	}
	require.NotEmpty(t, blobSHA)

	data, err := c.GetBlob(context.Background(), "acme", "skills", blobSHA)
	require.NoError(t, err)
	assert.Equal(t, "guide", string(data))
}

func TestFetchRaw(t *testing.T) {
	srv := newFake(t)
	c := newTestClient(t, srv)

	data, err := c.FetchRaw(context.Background(), "acme", "skills", "main", "skills/beta/SKILL.md")
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: beta")

	_, err = c.FetchRaw(context.Background(), "acme", "skills", "main", "skills/nope/SKILL.md")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, srv.Hits("raw"), "404 must not be retried")
}

func TestFetchRawRetriesServerErrors(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	c, err := NewClient(context.Background(), WithEndpoints("", "", ts.URL), WithRetry(3, time.Millisecond))
	require.NoError(t, err)

	data, err := c.FetchRaw(context.Background(), "o", "r", "main", "file")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchRawGivesUpOnClientErrors(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	c, err := NewClient(context.Background(), WithEndpoints("", "", ts.URL), WithRetry(3, time.Millisecond))
	require.NoError(t, err)

	_, err = c.FetchRaw(context.Background(), "o", "r", "main", "file")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestListSkillTree(t *testing.T) {
	srv := newFake(t)

	t.Run("requires token", func(t *testing.T) {
		c := newTestClient(t, srv)
		_, err := c.ListSkillTree(context.Background(), "acme", "skills", "main", "skills")
		assert.Error(t, err)
	})

	t.Run("lists entries with skill files", func(t *testing.T) {
		c := newTestClient(t, srv, WithToken("secret"))
		entries, err := c.ListSkillTree(context.Background(), "acme", "skills", "main", "skills")
		require.NoError(t, err)
		require.Len(t, entries, 3)

		byName := map[string]TreeEntry{}
		for _, e := range entries {
			byName[e.Name] = e
		}
		assert.Equal(t, "tree", byName["alpha"].Type)
		assert.Contains(t, byName["alpha"].SkillFile, "version: 1.0.0")
		assert.Empty(t, byName[".github"].SkillFile)
	})

	t.Run("missing object", func(t *testing.T) {
		c := newTestClient(t, srv, WithToken("secret"))
		_, err := c.ListSkillTree(context.Background(), "acme", "skills", "main", "nowhere")
		assert.ErrorIs(t, err, ErrNoObject)
	})

	t.Run("graphql errors", func(t *testing.T) {
		srv.SetGraphQLDisabled(true)
		defer srv.SetGraphQLDisabled(false)

		c := newTestClient(t, srv, WithToken("secret"))
		_, err := c.ListSkillTree(context.Background(), "acme", "skills", "main", "skills")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "GraphQL errors")
	})
}

func TestLatestRelease(t *testing.T) {
	srv := newFake(t)
	srv.AddRelease("vunamhung", "antikit", githubtest.Release{Tag: "v1.0.0"})
	srv.AddRelease("vunamhung", "antikit", githubtest.Release{Tag: "v1.1.0"})
	c := newTestClient(t, srv)

	rel, err := c.LatestRelease(context.Background(), "vunamhung", "antikit")
	require.NoError(t, err)
	assert.Equal(t, "v1.1.0", rel.GetTagName())

	rel, err = c.ReleaseByTag(context.Background(), "vunamhung", "antikit", "v1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", rel.GetTagName())
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.True(t, apperr.IsCode(Classify(&StatusError{StatusCode: 401}), apperr.GitHubAuthFailed))
	assert.True(t, apperr.IsCode(Classify(&StatusError{StatusCode: 429, Message: "API rate limit exceeded"}), apperr.GitHubRateLimit))
	assert.True(t, apperr.IsCode(Classify(assert.AnError), apperr.GitHubNetworkError))
	assert.False(t, retryable(&StatusError{StatusCode: 404}))
	assert.True(t, retryable(&StatusError{StatusCode: 503}))
	assert.True(t, retryable(assert.AnError))
	assert.False(t, retryable(retry.Unrecoverable(ErrNotFound)))
	assert.False(t, retryable(retry.Unrecoverable(assert.AnError)))
}

func TestFetchRawDoesNotRetryMissingFiles(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c, err := NewClient(context.Background(), WithEndpoints("", "", ts.URL), WithRetry(3, time.Millisecond))
	require.NoError(t, err)

	_, err = c.FetchRaw(context.Background(), "o", "r", "main", "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestListSkillTreeDoesNotRetryMalformedReplies(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer ts.Close()

	c, err := NewClient(context.Background(), WithEndpoints("", ts.URL, ""), WithRetry(3, time.Millisecond), WithToken("secret"))
	require.NoError(t, err)

	_, err = c.ListSkillTree(context.Background(), "o", "r", "main", "skills")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode GraphQL response")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
