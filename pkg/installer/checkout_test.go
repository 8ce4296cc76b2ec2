package installer

import (
	"context"
	"encoding/base64"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vunamhung/antikit/pkg/apperr"
	"github.com/vunamhung/antikit/pkg/github"
	"github.com/vunamhung/antikit/pkg/github/githubtest"
	"github.com/vunamhung/antikit/pkg/skills"
)

func newTreeClient(t *testing.T) (*github.Client, *githubtest.Server) {
	t.Helper()
	srv := githubtest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddRepo("acme", "packs", "dev", map[string]string{
		"skills/go/SKILL.md":        skillFile("go", "0.4.0"),
		"skills/go/ref/errors.md":   "errors",
		"skills/gopher/SKILL.md":    skillFile("gopher", "1.0.0"),
		"skills/other/SKILL.md":     skillFile("other", "1.0.0"),
		"README.md":                 "readme",
		"skills/go/ref/deep/a/b.md": "deep",
	})
	client, err := github.NewClient(context.Background(),
		github.WithEndpoints(srv.APIURL(), srv.GraphQLURL(), srv.RawURL()),
		github.WithRetry(1, time.Millisecond))
	require.NoError(t, err)
	return client, srv
}

func TestTreeCheckout(t *testing.T) {
	client, srv := newTreeClient(t)
	work := t.TempDir()

	ref := skills.Ref{Owner: "acme", Repo: "packs", Path: "skills", Branch: "dev"}
	dir, err := NewTreeCheckout(client).Fetch(context.Background(), ref, ref.SkillPath("go"), work)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(work, "repo", "skills", "go"), dir)

	data, err := os.ReadFile(filepath.Join(dir, "ref", "deep", "a", "b.md"))
	require.NoError(t, err)
	assert.Equal(t, "deep", string(data))
	assert.FileExists(t, filepath.Join(dir, "SKILL.md"))
	assert.NoDirExists(t, filepath.Join(work, "repo", "skills", "gopher"))
	assert.Equal(t, 3, srv.Hits("blob"))
}

func TestTreeCheckoutMissingSkill(t *testing.T) {
	client, _ := newTreeClient(t)

	ref := skills.Ref{Owner: "acme", Repo: "packs", Path: "skills", Branch: "dev", SourceName: "team"}
	_, err := NewTreeCheckout(client).Fetch(context.Background(), ref, ref.SkillPath("ghost"), t.TempDir())
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.SkillNotFound))
	assert.Contains(t, err.Error(), `"ghost"`)
}

func TestTreeCheckoutMissingRepo(t *testing.T) {
	client, _ := newTreeClient(t)

	ref := skills.Ref{Owner: "acme", Repo: "gone", Branch: "main"}
	_, err := NewTreeCheckout(client).Fetch(context.Background(), ref, "go", t.TempDir())
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.GitHubNotFound))
}

func TestFallbackCheckout(t *testing.T) {
	ref := skills.Ref{Owner: "acme", Repo: "packs", Branch: "main"}
	ok := &fakeCheckout{files: map[string]map[string]string{"go": {"SKILL.md": "x"}}}
	cloneErr := apperr.New(apperr.GitCloneFailed, "git clone failed")

	t.Run("primary succeeds", func(t *testing.T) {
		fallback := &fakeCheckout{}
		c := &fallbackCheckout{primary: ok, fallback: fallback}
		_, err := c.Fetch(context.Background(), ref, "go", t.TempDir())
		require.NoError(t, err)
		assert.Empty(t, fallback.fetched)
	})

	t.Run("primary fails over to the API", func(t *testing.T) {
		work := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(work, "repo", "partial"), 0o755))

		c := &fallbackCheckout{primary: &fakeCheckout{err: cloneErr}, fallback: ok}
		dir, err := c.Fetch(context.Background(), ref, "go", work)
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(dir, "SKILL.md"))
		assert.NoDirExists(t, filepath.Join(work, "repo", "partial"))
	})

	t.Run("both fail reports the git error", func(t *testing.T) {
		c := &fallbackCheckout{primary: &fakeCheckout{err: cloneErr}, fallback: &fakeCheckout{err: assert.AnError}}
		_, err := c.Fetch(context.Background(), ref, "go", t.TempDir())
		assert.True(t, apperr.IsCode(err, apperr.GitCloneFailed))
	})

	t.Run("missing skill is not retried", func(t *testing.T) {
		fallback := &fakeCheckout{}
		c := &fallbackCheckout{primary: &fakeCheckout{files: map[string]map[string]string{}}, fallback: fallback}
		_, err := c.Fetch(context.Background(), ref, "go", t.TempDir())
		assert.True(t, apperr.IsCode(err, apperr.SkillNotFound))
		assert.Empty(t, fallback.fetched)
	})

	t.Run("no git and API failure", func(t *testing.T) {
		c := &fallbackCheckout{fallback: &fakeCheckout{err: assert.AnError}, gitErr: assert.AnError}
		_, err := c.Fetch(context.Background(), ref, "go", t.TempDir())
		assert.True(t, apperr.IsCode(err, apperr.GitNotInstalled))
	})
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-c", "user.name=test", "-c", "user.email=test@example.com", "-c", "commit.gpgsign=false"}, args...)...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
}

func TestGitCheckout(t *testing.T) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		t.Skip("git not installed")
	}
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("HOME", t.TempDir())

	origin := t.TempDir()
	files := map[string]string{
		"skills/go/SKILL.md":      skillFile("go", "0.4.0"),
		"skills/go/ref/errors.md": "errors",
		"skills/other/SKILL.md":   skillFile("other", "1.0.0"),
	}
	for name, content := range files {
		p := filepath.Join(origin, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	runGit(t, origin, "init", "-q")
	runGit(t, origin, "checkout", "-q", "-b", "dev")
	runGit(t, origin, "add", ".")
	runGit(t, origin, "commit", "-q", "-m", "skills")

	g := NewGitCheckout(gitPath, "")
	g.cloneURL = func(skills.Ref) string { return "file://" + filepath.ToSlash(origin) }

	ref := skills.Ref{Owner: "acme", Repo: "packs", Path: "skills", Branch: "dev"}
	work := t.TempDir()
	dir, err := g.Fetch(context.Background(), ref, ref.SkillPath("go"), work)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "SKILL.md"))
	assert.FileExists(t, filepath.Join(dir, "ref", "errors.md"))
	assert.NoFileExists(t, filepath.Join(work, "repo", "skills", "other", "SKILL.md"))

	_, err = g.Fetch(context.Background(), ref, ref.SkillPath("ghost"), t.TempDir())
	assert.True(t, apperr.IsCode(err, apperr.SkillNotFound))

	_, err = g.Fetch(context.Background(), skills.Ref{Owner: "acme", Repo: "packs", Branch: "nope"}, "go", t.TempDir())
	assert.True(t, apperr.IsCode(err, apperr.GitCloneFailed))
}

// fakeGit writes a git stand-in that records its arguments and GIT_CONFIG_*
// environment, and creates the requested skill directory on clone.
func fakeGit(t *testing.T) (gitPath, argsLog, envLog string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script git stand-in")
	}
	dir := t.TempDir()
	argsLog = filepath.Join(dir, "args.log")
	envLog = filepath.Join(dir, "env.log")
	gitPath = filepath.Join(dir, "git")
	script := `#!/bin/sh
printf '%s\n' "$@" >> "` + argsLog + `"
env | grep '^GIT_CONFIG_' | sort >> "` + envLog + `"
if [ "$1" = clone ]; then
	for last; do :; done
	mkdir -p "$last/skills/go"
fi
`
	require.NoError(t, os.WriteFile(gitPath, []byte(script), 0o755))
	return gitPath, argsLog, envLog
}

func TestGitCheckoutKeepsTokenOutOfArguments(t *testing.T) {
	const token = "ghp_SECRET"
	creds := base64.StdEncoding.EncodeToString([]byte("x-access-token:" + token))

	t.Run("fresh environment", func(t *testing.T) {
		t.Setenv("GIT_CONFIG_COUNT", "")
		gitPath, argsLog, envLog := fakeGit(t)

		ref := skills.Ref{Owner: "acme", Repo: "packs", Path: "skills", Branch: "dev"}
		_, err := NewGitCheckout(gitPath, token).Fetch(context.Background(), ref, ref.SkillPath("go"), t.TempDir())
		require.NoError(t, err)

		args, err := os.ReadFile(argsLog)
		require.NoError(t, err)
		assert.Contains(t, string(args), "clone")
		assert.NotContains(t, string(args), creds)
		assert.NotContains(t, string(args), "extraHeader")

		env, err := os.ReadFile(envLog)
		require.NoError(t, err)
		assert.Contains(t, string(env), "GIT_CONFIG_COUNT=1\n")
		assert.Contains(t, string(env), "GIT_CONFIG_KEY_0=http.extraHeader\n")
		assert.Contains(t, string(env), "GIT_CONFIG_VALUE_0=Authorization: Basic "+creds+"\n")
	})

	t.Run("appends to inherited config entries", func(t *testing.T) {
		t.Setenv("GIT_CONFIG_COUNT", "1")
		t.Setenv("GIT_CONFIG_KEY_0", "core.autocrlf")
		t.Setenv("GIT_CONFIG_VALUE_0", "false")
		gitPath, _, envLog := fakeGit(t)

		ref := skills.Ref{Owner: "acme", Repo: "packs", Path: "skills", Branch: "dev"}
		_, err := NewGitCheckout(gitPath, token).Fetch(context.Background(), ref, ref.SkillPath("go"), t.TempDir())
		require.NoError(t, err)

		env, err := os.ReadFile(envLog)
		require.NoError(t, err)
		assert.Contains(t, string(env), "GIT_CONFIG_COUNT=2\n")
		assert.Contains(t, string(env), "GIT_CONFIG_KEY_0=core.autocrlf\n")
		assert.Contains(t, string(env), "GIT_CONFIG_KEY_1=http.extraHeader\n")
	})

	t.Run("no token", func(t *testing.T) {
		t.Setenv("GIT_CONFIG_COUNT", "")
		gitPath, _, envLog := fakeGit(t)

		ref := skills.Ref{Owner: "acme", Repo: "packs", Path: "skills", Branch: "dev"}
		_, err := NewGitCheckout(gitPath, "").Fetch(context.Background(), ref, ref.SkillPath("go"), t.TempDir())
		require.NoError(t, err)

		env, err := os.ReadFile(envLog)
		require.NoError(t, err)
		assert.NotContains(t, string(env), "extraHeader")
	})
}
