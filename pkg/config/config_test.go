package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ANTIKIT_CONFIG_DIR", dir)
	t.Setenv("ANTIKIT_GITHUB_TOKEN", "")
	t.Setenv("GITHUB_TOKEN", "")

	v := viper.New()
	require.NoError(t, Init(v, ""))

	s, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, DefaultSkillsDir, s.SkillsDir)
	assert.Equal(t, dir, s.ConfigDir)
	assert.Equal(t, DefaultAPIURL, s.GitHub.APIURL)
	assert.Equal(t, DefaultRawURL, s.GitHub.RawURL)
	assert.Equal(t, time.Hour, s.CacheTTL)
	assert.Equal(t, DefaultConcurrency, s.Concurrency)
	assert.True(t, s.UpdateCheck)
	assert.Empty(t, s.GitHub.Token)
	assert.Equal(t, filepath.Join(dir, "config.json"), s.SourcesFile())
	assert.Equal(t, filepath.Join(dir, "cache.db"), s.CacheDB())
}

func TestLoadSettingsFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ANTIKIT_CONFIG_DIR", dir)
	t.Setenv("ANTIKIT_GITHUB_TOKEN", "")
	t.Setenv("GITHUB_TOKEN", "")

	content := `skills_dir: .claude/skills
cache_ttl: 10m
concurrency: 2
github:
  api_url: http://localhost:9999
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.yaml"), []byte(content), 0o644))

	v := viper.New()
	require.NoError(t, Init(v, ""))
	s, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, ".claude/skills", s.SkillsDir)
	assert.Equal(t, 10*time.Minute, s.CacheTTL)
	assert.Equal(t, 2, s.Concurrency)
	assert.Equal(t, "http://localhost:9999", s.GitHub.APIURL)
	assert.Equal(t, DefaultGraphQLURL, s.GitHub.GraphQLURL)
}

func TestTokenFromEnvironment(t *testing.T) {
	t.Setenv("ANTIKIT_CONFIG_DIR", t.TempDir())

	t.Run("dedicated variable wins", func(t *testing.T) {
		t.Setenv("ANTIKIT_GITHUB_TOKEN", "dedicated")
		t.Setenv("GITHUB_TOKEN", "generic")

		v := viper.New()
		require.NoError(t, Init(v, ""))
		s, err := Load(v)
		require.NoError(t, err)
		assert.Equal(t, "dedicated", s.GitHub.Token)
	})

	t.Run("falls back to GITHUB_TOKEN", func(t *testing.T) {
		t.Setenv("ANTIKIT_GITHUB_TOKEN", "")
		os.Unsetenv("ANTIKIT_GITHUB_TOKEN")
		t.Setenv("GITHUB_TOKEN", "generic")

		v := viper.New()
		require.NoError(t, Init(v, ""))
		s, err := Load(v)
		require.NoError(t, err)
		assert.Equal(t, "generic", s.GitHub.Token)
	})
}

func TestInitExplicitMissingFile(t *testing.T) {
	v := viper.New()
	err := Init(v, filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadClampsValues(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("concurrency", -1)
	v.Set("skills_dir", "")

	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, DefaultConcurrency, s.Concurrency)
	assert.Equal(t, DefaultSkillsDir, s.SkillsDir)
}
