package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/vunamhung/antikit/pkg/apperr"
	"github.com/vunamhung/antikit/pkg/cache"
	"github.com/vunamhung/antikit/pkg/catalog"
	"github.com/vunamhung/antikit/pkg/config"
	"github.com/vunamhung/antikit/pkg/github"
	"github.com/vunamhung/antikit/pkg/installer"
	"github.com/vunamhung/antikit/pkg/local"
	"github.com/vunamhung/antikit/pkg/logger"
	"github.com/vunamhung/antikit/pkg/presenter"
	"github.com/vunamhung/antikit/pkg/sources"
)

const rateLimitHelp = `GitHub API rate limit exceeded.
Set a personal access token to raise the limit:
  antikit config set-token <token>`

// app holds the collaborators shared by commands. Everything is built on
// first use so commands only pay for what they touch.
type app struct {
	settings config.Settings

	store  *sources.Store
	inv    *local.Inventory
	client *github.Client
	cache  *cache.Cache

	cacheTried bool
	logFile    *os.File
}

func newApp(settings config.Settings) *app {
	return &app{settings: settings}
}

// Sources returns the source registry.
func (a *app) Sources() (*sources.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := sources.NewStore(a.settings.SourcesFile(), sources.WithEnvToken(a.settings.GitHub.Token))
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

// Inventory returns the local skills inventory.
func (a *app) Inventory() (*local.Inventory, error) {
	if a.inv != nil {
		return a.inv, nil
	}
	inv, err := local.NewInventory(local.WithSkillsDirName(a.settings.SkillsDir))
	if err != nil {
		return nil, err
	}
	a.inv = inv
	return inv, nil
}

// GitHub returns a client authenticated with the resolved token, if any.
func (a *app) GitHub(ctx context.Context) (*github.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	store, err := a.Sources()
	if err != nil {
		return nil, err
	}
	gh := a.settings.GitHub
	client, err := github.NewClient(ctx,
		github.WithToken(store.Token()),
		github.WithEndpoints(gh.APIURL, gh.GraphQLURL, gh.RawURL),
	)
	if err != nil {
		return nil, err
	}
	a.client = client
	return client, nil
}

// Cache returns the local cache database, or nil when it cannot be opened.
func (a *app) Cache(ctx context.Context) *cache.Cache {
	if a.cacheTried {
		return a.cache
	}
	a.cacheTried = true

	c, err := cache.Open(ctx, a.settings.CacheDB(), a.settings.CacheTTL)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("cache unavailable, continuing without it")
		return nil
	}
	a.cache = c
	return c
}

// Catalog returns a remote catalog over the configured sources.
func (a *app) Catalog(ctx context.Context, refresh bool) (*catalog.Catalog, error) {
	store, err := a.Sources()
	if err != nil {
		return nil, err
	}
	client, err := a.GitHub(ctx)
	if err != nil {
		return nil, err
	}

	opts := []catalog.Option{
		catalog.WithConcurrency(a.settings.Concurrency),
		catalog.WithRefresh(refresh),
		catalog.WithRateLimitHandler(func() {
			presenter.Warning(rateLimitHelp)
		}),
	}
	if c := a.Cache(ctx); c != nil {
		if refresh {
			if err := c.ClearCatalog(ctx); err != nil {
				logger.G(ctx).WithError(err).Debug("failed to clear catalog cache")
			}
		}
		opts = append(opts, catalog.WithCache(c))
	}
	return catalog.New(store, client, opts...), nil
}

// Installer returns an installer resolving skills through cat.
func (a *app) Installer(ctx context.Context, cat *catalog.Catalog) (*installer.Installer, error) {
	inv, err := a.Inventory()
	if err != nil {
		return nil, err
	}
	client, err := a.GitHub(ctx)
	if err != nil {
		return nil, err
	}
	return installer.NewInstaller(inv, cat,
		installer.WithCheckout(installer.NewCheckout(client)),
		installer.WithTempDir(a.settings.TempDir()),
		installer.WithProgress(func(name, message string) {
			presenter.Dim(fmt.Sprintf("  %s: %s", name, message))
		}),
	)
}

// Close releases the cache database and the log file.
func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.L.WithError(err).Debug("failed to close cache")
		}
		a.cache = nil
	}
	if a.logFile != nil {
		logger.SetLogOutput(os.Stderr)
		_ = a.logFile.Close()
		a.logFile = nil
	}
}

// openLogFile sends log output to path, appending to it.
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create log directory")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open log file")
	}
	logger.SetLogOutput(f)
	return f, nil
}

// requireSkillsDir returns the skills directory or DIRECTORY_NOT_FOUND.
func requireSkillsDir(inv *local.Inventory) (string, error) {
	dir := inv.SkillsDir()
	if dir == "" {
		return "", apperr.New(apperr.DirectoryNotFound, "No .agent/skills directory found in current path.")
	}
	return dir, nil
}

func errorsIsCancelled(err error) bool {
	return errors.Is(err, presenter.ErrCancelled) || errors.Is(err, context.Canceled)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
