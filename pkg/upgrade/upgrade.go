// Package upgrade compares installed skills with their sources and reinstalls
// the ones that have newer versions.
package upgrade

import (
	"context"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/vunamhung/antikit/pkg/apperr"
	"github.com/vunamhung/antikit/pkg/catalog"
	"github.com/vunamhung/antikit/pkg/config"
	"github.com/vunamhung/antikit/pkg/installer"
	"github.com/vunamhung/antikit/pkg/local"
	"github.com/vunamhung/antikit/pkg/logger"
	"github.com/vunamhung/antikit/pkg/skills"
)

// Status messages for skills that cannot be checked.
const (
	ErrMissingMetadata = "Missing metadata"
	ErrInvalidMetadata = "Invalid metadata"
)

// Status is the update state of one installed skill.
type Status struct {
	Name            string
	LocalVersion    string
	RemoteVersion   string
	Description     string
	UpdateAvailable bool
	Error           string
	Metadata        *skills.Metadata
}

// InfoFetcher reads the remote SKILL.md of a skill.
type InfoFetcher interface {
	FetchSkillInfo(ctx context.Context, name string, ref *skills.Ref) (*catalog.SkillInfo, error)
}

// Installer reinstalls a skill.
type Installer interface {
	Install(ctx context.Context, req installer.Request) (*installer.Result, error)
}

// Upgrader checks and upgrades installed skills.
type Upgrader struct {
	inventory   *local.Inventory
	info        InfoFetcher
	installer   Installer
	concurrency int
}

// Option configures an Upgrader.
type Option func(*Upgrader)

// WithConcurrency bounds how many skills are checked at once.
func WithConcurrency(n int) Option {
	return func(u *Upgrader) {
		if n > 0 {
			u.concurrency = n
		}
	}
}

// New creates an Upgrader.
func New(inv *local.Inventory, info InfoFetcher, inst Installer, opts ...Option) *Upgrader {
	u := &Upgrader{
		inventory:   inv,
		info:        info,
		installer:   inst,
		concurrency: config.DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Check returns the update state of every installed skill, sorted by name.
// Problems with a single skill are reported in its Status, not as an error.
func (u *Upgrader) Check(ctx context.Context) ([]Status, error) {
	names, err := u.inventory.Names()
	if err != nil {
		return nil, err
	}

	out := make([]Status, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)
	for i, name := range names {
		g.Go(func() error {
			out[i] = u.CheckOne(ctx, name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckOne returns the update state of an installed skill.
func (u *Upgrader) CheckOne(ctx context.Context, name string) Status {
	st := Status{Name: name, LocalVersion: skills.DefaultVersion}

	meta, err := u.inventory.ReadMetadata(name)
	switch {
	case err != nil:
		st.Error = err.Error()
		return st
	case meta == nil:
		st.Error = ErrMissingMetadata
		return st
	}

	st.Metadata = meta
	st.Description = meta.Description
	if meta.Version != "" {
		st.LocalVersion = meta.Version
	}
	if !meta.HasSource() {
		st.Error = ErrInvalidMetadata
		return st
	}

	info, err := u.info.FetchSkillInfo(ctx, name, SourceRef(meta))
	if err != nil {
		logger.G(ctx).WithError(err).WithField("skill", name).Debug("failed to fetch remote skill info")
		st.Error = err.Error()
		return st
	}

	st.RemoteVersion = skills.DefaultVersion
	if info != nil {
		st.RemoteVersion = info.Version
		if info.Description != "" {
			st.Description = info.Description
		}
	}
	st.UpdateAvailable = skills.CompareVersions(st.RemoteVersion, st.LocalVersion) > 0
	return st
}

// Upgrade reinstalls name from the source recorded in its metadata.
func (u *Upgrader) Upgrade(ctx context.Context, name string) (*installer.Result, error) {
	meta, err := u.inventory.ReadMetadata(name)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, apperr.New(apperr.SkillMissingMetadata,
			"Skipping \""+name+"\": Missing metadata (install again to fix)", "skillName", name)
	}
	if !meta.HasSource() {
		return nil, apperr.New(apperr.SkillInvalidMetadata,
			"Skipping \""+name+"\": Invalid metadata", "skillName", name)
	}

	return u.installer.Install(ctx, installer.Request{
		Name:  name,
		Ref:   SourceRef(meta),
		Force: true,
	})
}

// BatchResult summarises UpgradeAll.
type BatchResult struct {
	Upgraded []*installer.Result
	Failed   int
}

// UpgradeAll upgrades names one after another. Every failure is collected;
// the returned error is nil only when all upgrades succeeded.
func (u *Upgrader) UpgradeAll(ctx context.Context, names []string) (*BatchResult, error) {
	res := &BatchResult{}
	var errs *multierror.Error
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			errs = multierror.Append(errs, err)
			break
		}
		r, err := u.Upgrade(ctx, name)
		if err != nil {
			res.Failed++
			errs = multierror.Append(errs, errors.Wrapf(err, "failed to upgrade %s", name))
			continue
		}
		res.Upgraded = append(res.Upgraded, r)
	}
	return res, errs.ErrorOrNil()
}

// Upgradable returns the statuses that have an update and no error.
func Upgradable(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if s.UpdateAvailable && s.Error == "" {
			out = append(out, s)
		}
	}
	return out
}

// SortForSelection orders statuses with available updates first, then by name.
func SortForSelection(statuses []Status) {
	sort.SliceStable(statuses, func(i, j int) bool {
		a, b := statuses[i], statuses[j]
		if a.UpdateAvailable != b.UpdateAvailable {
			return a.UpdateAvailable
		}
		return a.Name < b.Name
	})
}

// SourceRef is the location recorded in meta, with the branch defaulted.
func SourceRef(meta *skills.Metadata) *skills.Ref {
	ref := *meta.Source
	if ref.Branch == "" {
		ref.Branch = config.DefaultBranch
	}
	ref.SourceName = meta.SourceName
	return &ref
}
