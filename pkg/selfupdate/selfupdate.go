// Package selfupdate replaces the running antikit binary with a release
// downloaded from GitHub and tracks whether a newer release exists.
package selfupdate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	gh "github.com/google/go-github/v57/github"
	"github.com/pkg/errors"

	"github.com/vunamhung/antikit/pkg/github"
	"github.com/vunamhung/antikit/pkg/logger"
	"github.com/vunamhung/antikit/pkg/skills"
)

// Release repository
const (
	RepoOwner = "vunamhung"
	RepoName  = "antikit"
)

// LatestVersion selects the newest release in Update.
const LatestVersion = "latest"

// Updater downloads release binaries.
type Updater struct {
	client     *github.Client
	httpClient *http.Client
	owner      string
	repo       string
	goos       string
	goarch     string
	executable string
}

// Option configures an Updater.
type Option func(*Updater)

// WithRepo overrides the release repository.
func WithRepo(owner, repo string) Option {
	return func(u *Updater) {
		u.owner = owner
		u.repo = repo
	}
}

// WithHTTPClient sets the client used for asset downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(u *Updater) {
		u.httpClient = c
	}
}

// WithPlatform overrides the target GOOS and GOARCH.
func WithPlatform(goos, goarch string) Option {
	return func(u *Updater) {
		u.goos = goos
		u.goarch = goarch
	}
}

// WithExecutable sets the binary to replace instead of the running one.
func WithExecutable(path string) Option {
	return func(u *Updater) {
		u.executable = path
	}
}

// New creates an Updater.
func New(client *github.Client, opts ...Option) *Updater {
	u := &Updater{
		client:     client,
		httpClient: http.DefaultClient,
		owner:      RepoOwner,
		repo:       RepoName,
		goos:       runtime.GOOS,
		goarch:     runtime.GOARCH,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// AssetName returns the release asset built for the target platform.
func (u *Updater) AssetName() (string, error) {
	switch u.goarch {
	case "amd64", "arm64":
	default:
		return "", errors.Errorf("unsupported architecture: %s", u.goarch)
	}
	switch u.goos {
	case "linux", "darwin":
	default:
		return "", errors.Errorf("unsupported operating system: %s", u.goos)
	}
	return fmt.Sprintf("antikit-%s-%s", u.goos, u.goarch), nil
}

// Latest returns the tag of the newest release.
func (u *Updater) Latest(ctx context.Context) (string, error) {
	rel, err := u.client.LatestRelease(ctx, u.owner, u.repo)
	if err != nil {
		return "", errors.Wrap(github.Classify(err), "failed to fetch latest release")
	}
	return rel.GetTagName(), nil
}

// IsNewer reports whether latest is a higher version than current. A leading
// "v" is ignored, and development builds are never considered outdated.
func IsNewer(latest, current string) bool {
	if current == "" || current == "dev" || latest == "" {
		return false
	}
	return skills.CompareVersions(strings.TrimPrefix(latest, "v"), strings.TrimPrefix(current, "v")) > 0
}

// Result describes a finished update.
type Result struct {
	Version string
	Path    string
	// PendingPath is set when the downloaded binary could not be moved over
	// Path without elevated permissions. The caller must move it.
	PendingPath string
}

// Update installs version ("latest" or a tag) over the current executable.
func (u *Updater) Update(ctx context.Context, version string) (*Result, error) {
	asset, err := u.AssetName()
	if err != nil {
		return nil, err
	}

	tag, downloadURL, err := u.resolveAsset(ctx, version, asset)
	if err != nil {
		return nil, err
	}

	execPath, err := u.executablePath()
	if err != nil {
		return nil, err
	}
	log := logger.G(ctx).WithField("executable_path", execPath)
	log.WithField("url", downloadURL).Debug("downloading release")

	tempPath, err := u.download(ctx, downloadURL, filepath.Dir(execPath))
	if err != nil {
		return nil, err
	}

	res := &Result{Version: tag, Path: execPath}
	if err := os.Rename(tempPath, execPath); err != nil {
		if needsManualMove(err) {
			res.PendingPath = tempPath
			return res, nil
		}
		os.Remove(tempPath)
		return nil, errors.Wrap(err, "failed to replace current binary")
	}
	log.WithField("version", tag).Info("binary updated")
	return res, nil
}

// needsManualMove reports whether a failed rename should be left to the user:
// the target is not writable, or the download landed on another filesystem.
func needsManualMove(err error) bool {
	return os.IsPermission(err) ||
		errors.Is(err, syscall.EXDEV) ||
		strings.Contains(err.Error(), "permission denied")
}

func (u *Updater) resolveAsset(ctx context.Context, version, asset string) (string, string, error) {
	var (
		rel *gh.RepositoryRelease
		err error
	)
	if version == "" || version == LatestVersion {
		rel, err = u.client.LatestRelease(ctx, u.owner, u.repo)
	} else {
		tag := version
		if !strings.HasPrefix(tag, "v") {
			tag = "v" + tag
		}
		rel, err = u.client.ReleaseByTag(ctx, u.owner, u.repo, tag)
	}
	if err != nil {
		return "", "", errors.Wrapf(github.Classify(err), "failed to find release %s", version)
	}

	for _, a := range rel.Assets {
		if a.GetName() == asset {
			return rel.GetTagName(), a.GetBrowserDownloadURL(), nil
		}
	}
	return "", "", errors.Errorf("release %s has no asset %s", rel.GetTagName(), asset)
}

func (u *Updater) executablePath() (string, error) {
	execPath := u.executable
	if execPath == "" {
		p, err := os.Executable()
		if err != nil {
			return "", errors.Wrap(err, "failed to determine current executable path")
		}
		execPath = p
	}
	resolved, err := filepath.EvalSymlinks(execPath)
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve symlinks for executable path")
	}
	return resolved, nil
}

func (u *Updater) download(ctx context.Context, url, dir string) (string, error) {
	tempFile, err := os.CreateTemp(dir, ".antikit-update-*")
	if err != nil {
		tempFile, err = os.CreateTemp("", "antikit-update-*")
		if err != nil {
			return "", errors.Wrap(err, "failed to create temporary file")
		}
	}
	tempPath := tempFile.Name()
	fail := func(err error) (string, error) {
		tempFile.Close()
		os.Remove(tempPath)
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fail(errors.Wrap(err, "failed to create download request"))
	}
	resp, err := u.httpClient.Do(req)
	if err != nil {
		return fail(errors.Wrap(err, "failed to download new version"))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fail(errors.Errorf("failed to download new version: HTTP %d", resp.StatusCode))
	}
	if _, err := io.Copy(tempFile, resp.Body); err != nil {
		return fail(errors.Wrap(err, "failed to write downloaded binary"))
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return "", errors.Wrap(err, "failed to write downloaded binary")
	}
	if err := os.Chmod(tempPath, 0o755); err != nil {
		os.Remove(tempPath)
		return "", errors.Wrap(err, "failed to make downloaded binary executable")
	}
	return tempPath, nil
}
