// Package catalog lists the skills available in the configured sources and
// fetches individual SKILL.md files from GitHub.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/vunamhung/antikit/pkg/apperr"
	"github.com/vunamhung/antikit/pkg/cache"
	"github.com/vunamhung/antikit/pkg/config"
	"github.com/vunamhung/antikit/pkg/github"
	"github.com/vunamhung/antikit/pkg/logger"
	"github.com/vunamhung/antikit/pkg/skills"
	"github.com/vunamhung/antikit/pkg/sources"
	"github.com/vunamhung/antikit/pkg/telemetry"
)

// RemoteSkill is a skill directory found in a source.
type RemoteSkill struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Path        string `json:"path"`
	Source      string `json:"source"`
	Owner       string `json:"owner"`
	Repo        string `json:"repo"`
	Branch      string `json:"branch"`
	BasePath    string `json:"basePath,omitempty"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
}

// Ref returns where the skill lives.
func (r RemoteSkill) Ref() skills.Ref {
	return skills.Ref{
		Owner:      r.Owner,
		Repo:       r.Repo,
		Path:       r.BasePath,
		Branch:     r.Branch,
		SourceName: r.Source,
	}
}

// SkillInfo is the parsed SKILL.md of a remote skill.
type SkillInfo struct {
	Description string
	Version     string
	Content     string
}

// SourceLister provides the configured sources.
type SourceLister interface {
	List() ([]sources.Source, error)
}

// Catalog fetches skill listings.
type Catalog struct {
	sources     SourceLister
	client      *github.Client
	cache       *cache.Cache
	concurrency int
	refresh     bool
	onRateLimit func()
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithCache caches listings per source.
func WithCache(c *cache.Cache) Option {
	return func(cat *Catalog) {
		cat.cache = c
	}
}

// WithConcurrency bounds how many sources are fetched at once.
func WithConcurrency(n int) Option {
	return func(cat *Catalog) {
		if n > 0 {
			cat.concurrency = n
		}
	}
}

// WithRefresh bypasses cached listings.
func WithRefresh(refresh bool) Option {
	return func(cat *Catalog) {
		cat.refresh = refresh
	}
}

// WithRateLimitHandler is called at most once per Fetch when GitHub rate
// limits a request.
func WithRateLimitHandler(fn func()) Option {
	return func(cat *Catalog) {
		cat.onRateLimit = fn
	}
}

// New creates a Catalog.
func New(src SourceLister, client *github.Client, opts ...Option) *Catalog {
	c := &Catalog{
		sources:     src,
		client:      client,
		concurrency: config.DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch lists the skills of every source, or only of sourceName when set.
// Results keep the stored source order. A source that cannot be listed
// contributes nothing instead of failing the whole fetch.
func (c *Catalog) Fetch(ctx context.Context, sourceName string) ([]RemoteSkill, error) {
	all, err := c.sources.List()
	if err != nil {
		return nil, err
	}

	var targets []sources.Source
	for _, src := range all {
		if sourceName == "" || src.Name == sourceName {
			targets = append(targets, src)
		}
	}
	if len(targets) == 0 {
		return nil, apperr.SourceNotFoundError(sourceName)
	}

	var once sync.Once
	rateLimited := func() {
		once.Do(func() {
			if c.onRateLimit != nil {
				c.onRateLimit()
			}
		})
	}

	results := make([][]RemoteSkill, len(targets))
	err = telemetry.WithSpan(ctx, "catalog.fetch", func(ctx context.Context) error {
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(c.concurrency)
		for i, src := range targets {
			g.Go(func() error {
				results[i] = c.fetchSource(ctx, src, rateLimited)
				return nil
			})
		}
		return g.Wait()
	}, attribute.Int("sources", len(targets)))
	if err != nil {
		return nil, err
	}

	var out []RemoteSkill
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func cacheKey(src sources.Source) string {
	ref := src.Ref()
	return fmt.Sprintf("%s|%s/%s@%s:%s", src.Name, ref.Owner, ref.Repo, ref.Branch, strings.Trim(ref.Path, "/"))
}

func (c *Catalog) fetchSource(ctx context.Context, src sources.Source, rateLimited func()) []RemoteSkill {
	log := logger.G(ctx).WithField("source", src.Name)
	key := cacheKey(src)

	if c.cache != nil && !c.refresh {
		var cached []RemoteSkill
		ok, err := c.cache.GetCatalog(ctx, key, &cached)
		if err != nil {
			log.WithError(err).Debug("catalog cache read failed")
		} else if ok {
			log.Debug("using cached catalog")
			return cached
		}
	}

	if c.client.HasToken() {
		list, err := c.fetchViaGraphQL(ctx, src)
		if err == nil {
			c.store(ctx, key, list)
			return list
		}
		if github.IsRateLimit(err) {
			rateLimited()
		}
		log.WithError(err).Debug("GraphQL fetch failed, falling back to REST")
		telemetry.AddEvent(ctx, "catalog.rest_fallback", attribute.String("source", src.Name))
	}

	list, err := c.fetchViaREST(ctx, src)
	if err != nil {
		switch {
		case github.IsRateLimit(err):
			rateLimited()
		case github.IsEmptyRepository(err):
			c.store(ctx, key, []RemoteSkill{})
		default:
			log.WithError(err).Debug("failed to list source")
		}
		return []RemoteSkill{}
	}

	c.store(ctx, key, list)
	return list
}

func (c *Catalog) store(ctx context.Context, key string, list []RemoteSkill) {
	if c.cache == nil {
		return
	}
	if err := c.cache.PutCatalog(ctx, key, list); err != nil {
		logger.G(ctx).WithError(err).Debug("catalog cache write failed")
	}
}

func (c *Catalog) fetchViaGraphQL(ctx context.Context, src sources.Source) ([]RemoteSkill, error) {
	ref := src.Ref()
	entries, err := c.client.ListSkillTree(ctx, ref.Owner, ref.Repo, ref.Branch, ref.Path)
	if err != nil {
		return nil, err
	}

	base := strings.Trim(ref.Path, "/")
	out := make([]RemoteSkill, 0, len(entries))
	for _, e := range entries {
		if e.Type != "tree" || strings.HasPrefix(e.Name, ".") {
			continue
		}

		skill := newRemoteSkill(src, e.Name)
		skill.Version = skills.DefaultVersion
		if e.SkillFile != "" {
			if fm, err := skills.ParseFrontmatter([]byte(e.SkillFile)); err == nil {
				skill.Description = fm.Description
				skill.Version = fm.VersionOrDefault()
			}
		}
		skill.BasePath = base
		out = append(out, skill)
	}
	return out, nil
}

func (c *Catalog) fetchViaREST(ctx context.Context, src sources.Source) ([]RemoteSkill, error) {
	ref := src.Ref()
	contents, err := c.client.ListDir(ctx, ref.Owner, ref.Repo, strings.Trim(ref.Path, "/"), ref.Branch)
	if err != nil {
		return nil, err
	}

	out := make([]RemoteSkill, 0, len(contents))
	for _, item := range contents {
		if item.GetType() != "dir" || strings.HasPrefix(item.GetName(), ".") {
			continue
		}
		skill := newRemoteSkill(src, item.GetName())
		if u := item.GetHTMLURL(); u != "" {
			skill.URL = u
		}
		if p := item.GetPath(); p != "" {
			skill.Path = p
		}
		out = append(out, skill)
	}
	return out, nil
}

func newRemoteSkill(src sources.Source, name string) RemoteSkill {
	ref := src.Ref()
	base := strings.Trim(ref.Path, "/")
	return RemoteSkill{
		Name:     name,
		URL:      fmt.Sprintf("https://github.com/%s/%s/tree/%s/%s", ref.Owner, ref.Repo, ref.Branch, ref.SkillPath(name)),
		Path:     ref.SkillPath(name),
		Source:   src.Name,
		Owner:    ref.Owner,
		Repo:     ref.Repo,
		Branch:   ref.Branch,
		BasePath: base,
	}
}

// Find returns the first skill called name, preferring the default source and
// then the stored source order.
func (c *Catalog) Find(ctx context.Context, name string) (*RemoteSkill, error) {
	return c.FindIn(ctx, name, "")
}

// FindIn is Find restricted to sourceName when it is set.
func (c *Catalog) FindIn(ctx context.Context, name, sourceName string) (*RemoteSkill, error) {
	list, err := c.Fetch(ctx, sourceName)
	if err != nil {
		return nil, err
	}

	all, err := c.sources.List()
	if err != nil {
		return nil, err
	}
	for _, src := range sources.SortDefaultFirst(all) {
		for i := range list {
			if list[i].Name == name && list[i].Source == src.Name {
				return &list[i], nil
			}
		}
	}
	return nil, apperr.SkillNotFoundError(name, sourceName)
}

// FetchSkillInfo downloads and parses the SKILL.md of name. When ref is nil
// or lacks owner and repo, the skill is located through Find. It returns nil
// when the skill or its SKILL.md cannot be found.
func (c *Catalog) FetchSkillInfo(ctx context.Context, name string, ref *skills.Ref) (*SkillInfo, error) {
	var r skills.Ref
	if ref == nil || ref.IsZero() {
		found, err := c.Find(ctx, name)
		if err != nil {
			if apperr.IsCode(err, apperr.SkillNotFound) {
				return nil, nil
			}
			return nil, err
		}
		r = found.Ref()
	} else {
		r = *ref
	}

	content, err := c.fetchSkillFile(ctx, name, r)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, nil
	}

	info := &SkillInfo{Version: skills.DefaultVersion, Content: string(content)}
	fm, err := skills.ParseFrontmatter(content)
	if err != nil {
		// Without a frontmatter block a loose version line still counts.
		info.Version = skills.ParseVersionFromContent(info.Content)
		return info, nil
	}
	info.Description = fm.Description
	info.Version = fm.VersionOrDefault()
	return info, nil
}

func (c *Catalog) fetchSkillFile(ctx context.Context, name string, r skills.Ref) ([]byte, error) {
	filePath := r.SkillPath(name) + "/" + skills.SkillFileName
	log := logger.G(ctx).WithField("skill", name)

	if r.Branch != "" {
		data, err := c.client.FetchRaw(ctx, r.Owner, r.Repo, r.Branch, filePath)
		if err == nil {
			return data, nil
		}
		log.WithError(err).Debug("raw fetch failed, falling back to contents API")
	}

	data, err := c.client.GetFile(ctx, r.Owner, r.Repo, filePath, r.Branch)
	if err != nil {
		if github.IsRateLimit(err) {
			if c.onRateLimit != nil {
				c.onRateLimit()
			}
			return nil, nil
		}
		if github.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(github.Classify(err), "failed to fetch %s", filePath)
	}
	return data, nil
}
