package installer

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/vunamhung/antikit/pkg/apperr"
	"github.com/vunamhung/antikit/pkg/config"
	"github.com/vunamhung/antikit/pkg/github"
	"github.com/vunamhung/antikit/pkg/logger"
	"github.com/vunamhung/antikit/pkg/osutil"
	"github.com/vunamhung/antikit/pkg/skills"
)

// Checkout materialises a single skill directory of a repository on disk.
// Fetch places the files below workDir and returns the directory holding the
// skill's files.
type Checkout interface {
	Fetch(ctx context.Context, ref skills.Ref, skillPath, workDir string) (string, error)
}

// NewCheckout returns the default checkout strategy: a git sparse checkout
// when git is installed, with the GitHub tree API as fallback.
func NewCheckout(client *github.Client) Checkout {
	c := &fallbackCheckout{fallback: NewTreeCheckout(client)}
	gitPath, err := osutil.LookGit()
	if err != nil {
		c.gitErr = err
		return c
	}
	c.primary = NewGitCheckout(gitPath, client.Token())
	return c
}

type fallbackCheckout struct {
	primary  Checkout
	fallback Checkout
	gitErr   error
}

func (c *fallbackCheckout) Fetch(ctx context.Context, ref skills.Ref, skillPath, workDir string) (string, error) {
	log := logger.G(ctx).WithField("path", skillPath)

	var primaryErr error
	if c.primary != nil {
		dir, err := c.primary.Fetch(ctx, ref, skillPath, workDir)
		if err == nil {
			return dir, nil
		}
		if apperr.IsCode(err, apperr.SkillNotFound) {
			return "", err
		}
		primaryErr = err
		log.WithError(err).Warn("sparse checkout failed, falling back to the GitHub API")
		if err := os.RemoveAll(filepath.Join(workDir, checkoutDir)); err != nil {
			return "", errors.Wrap(err, "failed to clean checkout directory")
		}
	} else {
		log.WithError(c.gitErr).Debug("git unavailable, using the GitHub API")
	}

	dir, err := c.fallback.Fetch(ctx, ref, skillPath, workDir)
	if err == nil {
		return dir, nil
	}
	if apperr.IsCode(err, apperr.SkillNotFound) {
		return "", err
	}
	if primaryErr != nil {
		return "", primaryErr
	}
	return "", apperr.New(apperr.GitNotInstalled,
		"Git is not installed and the GitHub API fallback failed: "+err.Error()).WithCause(err)
}

const checkoutDir = "repo"

// GitCheckout fetches a skill with a shallow, blobless sparse clone.
type GitCheckout struct {
	gitPath  string
	token    string
	cloneURL func(skills.Ref) string
}

// NewGitCheckout creates a GitCheckout using the git binary at gitPath. A
// non-empty token is sent as an HTTP authorization header.
func NewGitCheckout(gitPath, token string) *GitCheckout {
	return &GitCheckout{
		gitPath:  gitPath,
		token:    token,
		cloneURL: skills.Ref.CloneURL,
	}
}

// Fetch implements Checkout.
func (g *GitCheckout) Fetch(ctx context.Context, ref skills.Ref, skillPath, workDir string) (string, error) {
	branch := ref.Branch
	if branch == "" {
		branch = config.DefaultBranch
	}
	repoDir := filepath.Join(workDir, checkoutDir)

	if err := g.run(ctx, workDir, "clone", "--depth", "1", "--filter=blob:none", "--sparse",
		"--branch", branch, g.cloneURL(ref), repoDir); err != nil {
		return "", err
	}
	if err := g.run(ctx, repoDir, "sparse-checkout", "set", skillPath); err != nil {
		return "", err
	}

	dir := filepath.Join(repoDir, filepath.FromSlash(skillPath))
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", apperr.SkillNotFoundError(path.Base(skillPath), ref.SourceName)
	}
	return dir, nil
}

func (g *GitCheckout) run(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, g.gitPath, args...)
	cmd.Dir = dir
	cmd.Env = g.env()
	osutil.SetProcessGroup(cmd)
	osutil.SetProcessGroupKill(cmd)

	logger.G(ctx).WithField("args", args).Debug("running git")
	if output, err := cmd.CombinedOutput(); err != nil {
		return apperr.New(apperr.GitCloneFailed,
			fmt.Sprintf("git %s failed: %s", args[0], strings.TrimSpace(string(output))),
			"args", args).WithCause(err)
	}
	return nil
}

// env returns the environment for git. The authorization header travels in
// GIT_CONFIG_* variables so the token stays out of the process arguments.
func (g *GitCheckout) env() []string {
	env := append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	if g.token == "" {
		return env
	}

	n, err := strconv.Atoi(os.Getenv("GIT_CONFIG_COUNT"))
	if err != nil || n < 0 {
		n = 0
	}
	creds := base64.StdEncoding.EncodeToString([]byte("x-access-token:" + g.token))
	return append(env,
		fmt.Sprintf("GIT_CONFIG_KEY_%d=http.extraHeader", n),
		fmt.Sprintf("GIT_CONFIG_VALUE_%d=Authorization: Basic %s", n, creds),
		fmt.Sprintf("GIT_CONFIG_COUNT=%d", n+1),
	)
}

// TreeCheckout fetches a skill through the git trees and blobs API.
type TreeCheckout struct {
	client      *github.Client
	concurrency int
}

// NewTreeCheckout creates a TreeCheckout.
func NewTreeCheckout(client *github.Client) *TreeCheckout {
	return &TreeCheckout{client: client, concurrency: 4}
}

// Fetch implements Checkout.
func (t *TreeCheckout) Fetch(ctx context.Context, ref skills.Ref, skillPath, workDir string) (string, error) {
	branch := ref.Branch
	if branch == "" {
		branch = config.DefaultBranch
	}

	tree, err := t.client.GetTree(ctx, ref.Owner, ref.Repo, branch)
	if err != nil {
		return "", errors.Wrapf(github.Classify(err), "failed to read tree of %s/%s@%s", ref.Owner, ref.Repo, branch)
	}
	if tree.GetTruncated() {
		logger.G(ctx).WithField("repo", ref.Owner+"/"+ref.Repo).Warn("repository tree is truncated, some files may be missing")
	}

	dest := filepath.Join(workDir, checkoutDir, filepath.FromSlash(skillPath))
	prefix := strings.TrimSuffix(skillPath, "/") + "/"

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)
	files := 0
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" || !strings.HasPrefix(entry.GetPath(), prefix) {
			continue
		}
		rel := strings.TrimPrefix(entry.GetPath(), prefix)
		target := filepath.Join(dest, filepath.FromSlash(rel))
		if !strings.HasPrefix(target, dest+string(filepath.Separator)) {
			continue
		}
		files++

		sha := entry.GetSHA()
		mode := os.FileMode(0o644)
		if entry.GetMode() == "100755" {
			mode = 0o755
		}
		g.Go(func() error {
			data, err := t.client.GetBlob(gctx, ref.Owner, ref.Repo, sha)
			if err != nil {
				return errors.Wrapf(github.Classify(err), "failed to download %s", rel)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return errors.Wrapf(err, "failed to create directory for %s", rel)
			}
			return errors.Wrapf(os.WriteFile(target, data, mode), "failed to write %s", rel)
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	if files == 0 {
		return "", apperr.SkillNotFoundError(path.Base(skillPath), ref.SourceName)
	}
	return dest, nil
}
