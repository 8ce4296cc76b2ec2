package selfupdate

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vunamhung/antikit/pkg/github"
	"github.com/vunamhung/antikit/pkg/github/githubtest"
)

func newUpdater(t *testing.T, exe string) (*Updater, *githubtest.Server) {
	t.Helper()
	srv := githubtest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddRelease(RepoOwner, RepoName, githubtest.Release{
		Tag:    "v1.0.0",
		Assets: []githubtest.Asset{{Name: "antikit-linux-amd64", Data: []byte("binary-1.0.0")}},
	})
	srv.AddRelease(RepoOwner, RepoName, githubtest.Release{
		Tag: "v1.1.0",
		Assets: []githubtest.Asset{
			{Name: "antikit-linux-amd64", Data: []byte("binary-1.1.0")},
			{Name: "antikit-darwin-arm64", Data: []byte("mac-1.1.0")},
		},
	})

	client, err := github.NewClient(context.Background(),
		github.WithEndpoints(srv.APIURL(), srv.GraphQLURL(), srv.RawURL()),
		github.WithRetry(1, time.Millisecond))
	require.NoError(t, err)
	return New(client, WithPlatform("linux", "amd64"), WithExecutable(exe)), srv
}

func fakeBinary(t *testing.T) string {
	t.Helper()
	exe := filepath.Join(t.TempDir(), "antikit")
	require.NoError(t, os.WriteFile(exe, []byte("old"), 0o755))
	return exe
}

func TestAssetName(t *testing.T) {
	name, err := New(nil, WithPlatform("darwin", "arm64")).AssetName()
	require.NoError(t, err)
	assert.Equal(t, "antikit-darwin-arm64", name)

	_, err = New(nil, WithPlatform("windows", "amd64")).AssetName()
	assert.Error(t, err)
	_, err = New(nil, WithPlatform("linux", "386")).AssetName()
	assert.Error(t, err)
}

func TestUpdateLatest(t *testing.T) {
	exe := fakeBinary(t)
	u, srv := newUpdater(t, exe)

	latest, err := u.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1.1.0", latest)

	res, err := u.Update(context.Background(), LatestVersion)
	require.NoError(t, err)
	assert.Equal(t, "v1.1.0", res.Version)
	assert.Empty(t, res.PendingPath)

	data, err := os.ReadFile(exe)
	require.NoError(t, err)
	assert.Equal(t, "binary-1.1.0", string(data))
	info, err := os.Stat(exe)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	assert.Equal(t, 1, srv.Hits("download"))

	entries, err := os.ReadDir(filepath.Dir(exe))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestUpdateSpecificVersion(t *testing.T) {
	exe := fakeBinary(t)
	u, _ := newUpdater(t, exe)

	res, err := u.Update(context.Background(), "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", res.Version)

	data, err := os.ReadFile(exe)
	require.NoError(t, err)
	assert.Equal(t, "binary-1.0.0", string(data))
}

func TestUpdateErrors(t *testing.T) {
	exe := fakeBinary(t)
	u, _ := newUpdater(t, exe)

	_, err := u.Update(context.Background(), "v9.9.9")
	require.Error(t, err)

	mac := New(u.client, WithPlatform("darwin", "amd64"), WithExecutable(exe))
	_, err = mac.Update(context.Background(), LatestVersion)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no asset antikit-darwin-amd64")

	data, err := os.ReadFile(exe)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestIsNewer(t *testing.T) {
	assert.True(t, IsNewer("v1.1.0", "1.0.0"))
	assert.True(t, IsNewer("v2.0.0", "v1.9.9"))
	assert.False(t, IsNewer("v1.0.0", "1.0.0"))
	assert.False(t, IsNewer("v0.9.0", "1.0.0"))
	assert.False(t, IsNewer("v9.0.0", "dev"))
	assert.False(t, IsNewer("", "1.0.0"))
}

func TestNeedsManualMove(t *testing.T) {
	rename := func(err error) error {
		return &os.LinkError{Op: "rename", Old: "/tmp/antikit-update-1", New: "/usr/local/bin/antikit", Err: err}
	}

	assert.True(t, needsManualMove(rename(syscall.EACCES)))
	assert.True(t, needsManualMove(rename(syscall.EXDEV)), "cross-device rename")
	assert.True(t, needsManualMove(os.ErrPermission))
	assert.False(t, needsManualMove(rename(syscall.ENOENT)))
	assert.False(t, needsManualMove(assert.AnError))
}
