package github

import (
	"context"

	"github.com/google/go-github/v57/github"
	"github.com/pkg/errors"
)

// ListDir lists a repository directory through the contents API. An empty
// path lists the repository root.
func (c *Client) ListDir(ctx context.Context, owner, repo, path, ref string) ([]*github.RepositoryContent, error) {
	opts := &github.RepositoryContentGetOptions{Ref: ref}
	file, dir, _, err := c.client.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return nil, err
	}
	if file != nil {
		return nil, errors.Errorf("%s/%s/%s is a file, not a directory", owner, repo, path)
	}
	return dir, nil
}

// GetFile returns the decoded content of a file through the contents API.
func (c *Client) GetFile(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	opts := &github.RepositoryContentGetOptions{Ref: ref}
	file, _, _, err := c.client.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, errors.Errorf("%s/%s/%s is a directory, not a file", owner, repo, path)
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode file content")
	}
	return []byte(content), nil
}

// GetTree returns the full recursive tree of ref.
func (c *Client) GetTree(ctx context.Context, owner, repo, ref string) (*github.Tree, error) {
	tree, _, err := c.client.Git.GetTree(ctx, owner, repo, ref, true)
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// GetBlob downloads a blob by SHA.
func (c *Client) GetBlob(ctx context.Context, owner, repo, sha string) ([]byte, error) {
	data, _, err := c.client.Git.GetBlobRaw(ctx, owner, repo, sha)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// LatestRelease returns the latest published release of a repository.
func (c *Client) LatestRelease(ctx context.Context, owner, repo string) (*github.RepositoryRelease, error) {
	release, _, err := c.client.Repositories.GetLatestRelease(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	return release, nil
}

// ReleaseByTag returns the release tagged tag.
func (c *Client) ReleaseByTag(ctx context.Context, owner, repo, tag string) (*github.RepositoryRelease, error) {
	release, _, err := c.client.Repositories.GetReleaseByTag(ctx, owner, repo, tag)
	if err != nil {
		return nil, err
	}
	return release, nil
}
