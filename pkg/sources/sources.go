// Package sources manages the configured skill repositories and the stored
// GitHub token. The registry lives in a JSON file guarded by a file lock so
// concurrent antikit invocations never interleave writes.
package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"

	"github.com/vunamhung/antikit/pkg/apperr"
	"github.com/vunamhung/antikit/pkg/config"
	"github.com/vunamhung/antikit/pkg/logger"
	"github.com/vunamhung/antikit/pkg/skills"
)

// Default source
const (
	DefaultSourceName  = "official"
	DefaultSourceOwner = "vunamhung"
	DefaultSourceRepo  = "antiskills"
)

// Source is a GitHub repository, optionally narrowed to a subdirectory, that
// holds skill directories.
type Source struct {
	Name    string `json:"name" yaml:"name"`
	Owner   string `json:"owner" yaml:"owner"`
	Repo    string `json:"repo" yaml:"repo"`
	Branch  string `json:"branch,omitempty" yaml:"branch,omitempty"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
	Default bool   `json:"default,omitempty" yaml:"default,omitempty"`
}

// Ref returns the location of the source's skills.
func (s Source) Ref() skills.Ref {
	branch := s.Branch
	if branch == "" {
		branch = config.DefaultBranch
	}
	return skills.Ref{
		Owner:      s.Owner,
		Repo:       s.Repo,
		Path:       s.Path,
		Branch:     branch,
		SourceName: s.Name,
	}
}

// Config is the persisted registry.
type Config struct {
	Sources     []Source `json:"sources"`
	GitHubToken string   `json:"githubToken,omitempty"`
}

// DefaultConfig returns the registry written on first use.
func DefaultConfig() *Config {
	return &Config{
		Sources: []Source{
			{
				Name:    DefaultSourceName,
				Owner:   DefaultSourceOwner,
				Repo:    DefaultSourceRepo,
				Branch:  config.DefaultBranch,
				Default: true,
			},
		},
	}
}

// Store reads and writes the registry file.
type Store struct {
	path     string
	envToken string
	mu       sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithEnvToken sets the token used when none is stored in the registry.
func WithEnvToken(token string) Option {
	return func(s *Store) {
		s.envToken = token
	}
}

// NewStore creates a store backed by path.
func NewStore(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create config directory")
	}

	s := &Store{path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the registry file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns the registry, creating the default one when the file does not
// exist. An unparsable file yields the default registry and is left untouched.
func (s *Store) Load() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := s.write(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := lockedfile.Read(s.path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	cfg, err := decode(data)
	if err != nil {
		logger.G(context.TODO()).WithError(err).Warn("failed to parse config file, using defaults")
		return DefaultConfig(), nil
	}
	return cfg, nil
}

// List returns the sources in stored order.
func (s *Store) List() ([]Source, error) {
	cfg, err := s.Load()
	if err != nil {
		return nil, err
	}
	return cfg.Sources, nil
}

// Get returns the named source.
func (s *Store) Get(name string) (Source, error) {
	list, err := s.List()
	if err != nil {
		return Source{}, err
	}
	for _, src := range list {
		if src.Name == name {
			return src, nil
		}
	}
	return Source{}, apperr.SourceNotFoundError(name)
}

// Add appends a new, non-default source.
func (s *Store) Add(src Source) error {
	if src.Name == "" || src.Owner == "" || src.Repo == "" {
		return apperr.New(apperr.InvalidInput, "Source name, owner and repo are required")
	}
	if src.Branch == "" {
		src.Branch = config.DefaultBranch
	}
	src.Path = strings.Trim(src.Path, "/")
	src.Default = false

	return s.transform(func(cfg *Config) error {
		for _, existing := range cfg.Sources {
			if existing.Name == src.Name {
				return apperr.New(apperr.SourceAlreadyExists,
					fmt.Sprintf("Source %q already exists. Use a different name or remove it first.", src.Name),
					"sourceName", src.Name)
			}
		}
		for _, existing := range cfg.Sources {
			if strings.EqualFold(existing.Owner, src.Owner) && strings.EqualFold(existing.Repo, src.Repo) {
				return apperr.New(apperr.SourceAlreadyExists,
					fmt.Sprintf("Repository \"%s/%s\" is already added as %q.", src.Owner, src.Repo, existing.Name),
					"sourceName", existing.Name)
			}
		}
		cfg.Sources = append(cfg.Sources, src)
		return nil
	})
}

// Remove deletes a non-default source.
func (s *Store) Remove(name string) error {
	return s.transform(func(cfg *Config) error {
		idx := indexOf(cfg.Sources, name)
		if idx < 0 {
			return apperr.SourceNotFoundError(name)
		}
		if cfg.Sources[idx].Default {
			return apperr.New(apperr.SourceCannotRemoveDefault,
				fmt.Sprintf("Cannot remove the default source %q.", name), "sourceName", name)
		}
		cfg.Sources = append(cfg.Sources[:idx], cfg.Sources[idx+1:]...)
		return nil
	})
}

// SetDefault makes name the only default source.
func (s *Store) SetDefault(name string) error {
	return s.transform(func(cfg *Config) error {
		if indexOf(cfg.Sources, name) < 0 {
			return apperr.SourceNotFoundError(name)
		}
		for i := range cfg.Sources {
			cfg.Sources[i].Default = cfg.Sources[i].Name == name
		}
		return nil
	})
}

// Token returns the stored token, falling back to the environment token.
func (s *Store) Token() string {
	cfg, err := s.Load()
	if err == nil && cfg.GitHubToken != "" {
		return cfg.GitHubToken
	}
	return s.envToken
}

// StoredToken returns only the token saved in the registry.
func (s *Store) StoredToken() string {
	cfg, err := s.Load()
	if err != nil {
		return ""
	}
	return cfg.GitHubToken
}

// SetToken stores token in the registry.
func (s *Store) SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperr.New(apperr.InvalidInput, "Token must not be empty")
	}
	return s.transform(func(cfg *Config) error {
		cfg.GitHubToken = token
		return nil
	})
}

// RemoveToken deletes the stored token.
func (s *Store) RemoveToken() error {
	return s.transform(func(cfg *Config) error {
		cfg.GitHubToken = ""
		return nil
	})
}

// transform applies fn to the registry under an exclusive file lock. Nothing
// is written when fn fails.
func (s *Store) transform(fn func(cfg *Config) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return lockedfile.Transform(s.path, func(data []byte) ([]byte, error) {
		cfg := DefaultConfig()
		if len(data) > 0 {
			decoded, err := decode(data)
			if err != nil {
				logger.G(context.TODO()).WithError(err).Warn("failed to parse config file, starting from defaults")
			} else {
				cfg = decoded
			}
		}

		if err := fn(cfg); err != nil {
			return nil, err
		}
		return encode(cfg)
	})
}

func (s *Store) write(cfg *Config) error {
	data, err := encode(cfg)
	if err != nil {
		return err
	}
	if err := lockedfile.Write(s.path, bytes.NewReader(data), 0o600); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

func decode(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &cfg, nil
}

func encode(cfg *Config) ([]byte, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal config")
	}
	return append(data, '\n'), nil
}

func indexOf(list []Source, name string) int {
	for i, src := range list {
		if src.Name == name {
			return i
		}
	}
	return -1
}

// ParseRepo splits "owner/repo" and requires exactly two non-empty parts.
func ParseRepo(s string) (owner, repo string, err error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) == 2 {
		owner, repo = parts[0], strings.TrimSuffix(parts[1], ".git")
	}
	if owner == "" || repo == "" {
		return "", "", apperr.New(apperr.InvalidInput,
			"Invalid repository format. Use: owner/repo", "input", s)
	}
	return owner, repo, nil
}

// SortDefaultFirst returns a copy of list with the default source first and
// the remaining sources in stored order.
func SortDefaultFirst(list []Source) []Source {
	out := make([]Source, 0, len(list))
	for _, src := range list {
		if src.Default {
			out = append(out, src)
		}
	}
	for _, src := range list {
		if !src.Default {
			out = append(out, src)
		}
	}
	return out
}
