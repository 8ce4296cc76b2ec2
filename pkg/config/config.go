// Package config loads antikit settings from ~/.antikit/settings.yaml, ANTIKIT_*
// environment variables and command-line flags using viper.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Defaults
const (
	DefaultSkillsDir   = ".agent/skills"
	DefaultAPIURL      = "https://api.github.com"
	DefaultGraphQLURL  = "https://api.github.com/graphql"
	DefaultRawURL      = "https://raw.githubusercontent.com"
	DefaultBranch      = "main"
	DefaultCacheTTL    = time.Hour
	DefaultConcurrency = 8
	DefaultUpdateEvery = 6 * time.Hour

	settingsName  = "settings"
	configDirName = ".antikit"
)

// Settings is the resolved runtime configuration.
type Settings struct {
	SkillsDir   string          `mapstructure:"skills_dir"`
	ConfigDir   string          `mapstructure:"config_dir"`
	GitHub      GitHubSettings  `mapstructure:"github"`
	CacheTTL    time.Duration   `mapstructure:"cache_ttl"`
	Concurrency int             `mapstructure:"concurrency"`
	LogLevel    string          `mapstructure:"log_level"`
	LogFormat   string          `mapstructure:"log_format"`
	LogFile     string          `mapstructure:"log_file"`
	UpdateCheck bool            `mapstructure:"update_check"`
	Tracing     TracingSettings `mapstructure:"tracing"`
}

// GitHubSettings holds GitHub endpoint and credential settings.
type GitHubSettings struct {
	APIURL     string `mapstructure:"api_url"`
	GraphQLURL string `mapstructure:"graphql_url"`
	RawURL     string `mapstructure:"raw_url"`
	Token      string `mapstructure:"token"`
}

// TracingSettings configures OpenTelemetry export.
type TracingSettings struct {
	Enabled bool    `mapstructure:"enabled"`
	Sampler string  `mapstructure:"sampler"`
	Ratio   float64 `mapstructure:"ratio"`
}

// DefaultConfigDir returns ~/.antikit.
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user home directory")
	}
	return filepath.Join(home, configDirName), nil
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	if dir, err := DefaultConfigDir(); err == nil {
		v.SetDefault("config_dir", dir)
	}
	v.SetDefault("skills_dir", DefaultSkillsDir)
	v.SetDefault("github.api_url", DefaultAPIURL)
	v.SetDefault("github.graphql_url", DefaultGraphQLURL)
	v.SetDefault("github.raw_url", DefaultRawURL)
	v.SetDefault("github.token", "")
	v.SetDefault("cache_ttl", DefaultCacheTTL)
	v.SetDefault("concurrency", DefaultConcurrency)
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "fmt")
	v.SetDefault("log_file", "")
	v.SetDefault("update_check", true)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sampler", "ratio")
	v.SetDefault("tracing.ratio", 1.0)
}

// Init wires environment variables and the settings file into v. A missing
// settings file is not an error.
func Init(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	v.SetEnvPrefix("ANTIKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// GITHUB_TOKEN is honoured as a fallback for the dedicated variable.
	if err := v.BindEnv("github.token", "ANTIKIT_GITHUB_TOKEN", "GITHUB_TOKEN"); err != nil {
		return errors.Wrap(err, "failed to bind github token env")
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(settingsName)
		v.SetConfigType("yaml")
		v.AddConfigPath(v.GetString("config_dir"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		if cfgFile == "" && os.IsNotExist(errors.Cause(err)) {
			return nil
		}
		return errors.Wrap(err, "failed to read settings file")
	}
	return nil
}

// Load unmarshals v into Settings and fills gaps left by zero values.
func Load(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return s, errors.Wrap(err, "failed to decode settings")
	}
	if s.ConfigDir == "" {
		dir, err := DefaultConfigDir()
		if err != nil {
			return s, err
		}
		s.ConfigDir = dir
	}
	if s.SkillsDir == "" {
		s.SkillsDir = DefaultSkillsDir
	}
	if s.Concurrency <= 0 {
		s.Concurrency = DefaultConcurrency
	}
	if s.CacheTTL < 0 {
		s.CacheTTL = 0
	}
	return s, nil
}

// SourcesFile is the JSON file holding configured sources and the stored token.
func (s Settings) SourcesFile() string {
	return filepath.Join(s.ConfigDir, "config.json")
}

// CacheDB is the SQLite file backing the catalog cache.
func (s Settings) CacheDB() string {
	return filepath.Join(s.ConfigDir, "cache.db")
}

// TempDir is where checkouts are staged before being copied into place.
func (s Settings) TempDir() string {
	return filepath.Join(s.ConfigDir, "temp")
}
