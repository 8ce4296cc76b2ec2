// Package installer fetches skills from their source repositories into the
// local skills directory, installing declared dependencies first.
package installer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vunamhung/antikit/pkg/apperr"
	"github.com/vunamhung/antikit/pkg/catalog"
	"github.com/vunamhung/antikit/pkg/local"
	"github.com/vunamhung/antikit/pkg/logger"
	"github.com/vunamhung/antikit/pkg/skills"
	"github.com/vunamhung/antikit/pkg/telemetry"
)

// LockFile is created in the skills directory while an install runs.
const LockFile = ".antikit.lock"

// DefaultExcludes are never copied into an installed skill.
var DefaultExcludes = []string{
	".git",
	".git/**",
	"**/.git",
	"**/.git/**",
	"**/.DS_Store",
	"**/Thumbs.db",
	skills.MetadataFile,
}

// Resolver maps a skill name to its remote location.
type Resolver interface {
	FindIn(ctx context.Context, name, sourceName string) (*catalog.RemoteSkill, error)
}

// Request describes a skill to install. When Ref is nil the skill is resolved
// through the catalog, restricted to SourceName when set.
type Request struct {
	Name       string
	Ref        *skills.Ref
	SourceName string
	Force      bool
}

// DependencyStatus describes what happened to a declared dependency.
type DependencyStatus string

// Dependency statuses
const (
	DependencyInstalled DependencyStatus = "installed"
	DependencyPresent   DependencyStatus = "already-installed"
	DependencySelf      DependencyStatus = "self-reference"
	DependencyCycle     DependencyStatus = "cycle"
	DependencyFailed    DependencyStatus = "failed"
)

// DependencyResult is the outcome of one declared dependency.
type DependencyResult struct {
	Name   string
	Status DependencyStatus
	Result *Result
	Err    error
}

// Result is the outcome of an install.
type Result struct {
	Name         string
	Path         string
	Version      string
	Source       string
	Dependencies []DependencyResult
	Skipped      bool
	SkipReason   string
}

// ProgressFunc receives human readable progress for a skill.
type ProgressFunc func(name, message string)

// Installer installs skills into a local inventory.
type Installer struct {
	inventory *local.Inventory
	resolver  Resolver
	checkout  Checkout
	tempRoot  string
	excludes  []string
	progress  ProgressFunc
}

// InstallerOption configures an Installer instance
type InstallerOption func(*Installer)

// WithCheckout sets how skill directories are fetched.
func WithCheckout(c Checkout) InstallerOption {
	return func(i *Installer) {
		i.checkout = c
	}
}

// WithTempDir sets the directory below which per-install work directories
// are created.
func WithTempDir(dir string) InstallerOption {
	return func(i *Installer) {
		i.tempRoot = dir
	}
}

// WithExcludes replaces the doublestar patterns of files that are not copied.
func WithExcludes(patterns ...string) InstallerOption {
	return func(i *Installer) {
		i.excludes = patterns
	}
}

// WithProgress reports progress messages.
func WithProgress(fn ProgressFunc) InstallerOption {
	return func(i *Installer) {
		i.progress = fn
	}
}

// NewInstaller creates a new skill installer
func NewInstaller(inv *local.Inventory, resolver Resolver, opts ...InstallerOption) (*Installer, error) {
	i := &Installer{
		inventory: inv,
		resolver:  resolver,
		tempRoot:  os.TempDir(),
		excludes:  DefaultExcludes,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.checkout == nil {
		return nil, errors.New("installer requires a checkout strategy")
	}
	for _, p := range i.excludes {
		if !doublestar.ValidatePattern(p) {
			return nil, apperr.Newf(apperr.InvalidInput, "invalid exclude pattern %q", p)
		}
	}
	return i, nil
}

// Install installs req.Name and its missing dependencies. The skills
// directory is created in the inventory's start directory when none exists,
// and is locked for the duration of the install.
func (i *Installer) Install(ctx context.Context, req Request) (*Result, error) {
	skillsDir, err := i.inventory.GetOrCreateSkillsDir()
	if err != nil {
		return nil, err
	}

	unlock, err := lockedfile.MutexAt(filepath.Join(skillsDir, LockFile)).Lock()
	if err != nil {
		return nil, errors.Wrap(err, "failed to lock skills directory")
	}
	defer unlock()

	var result *Result
	err = telemetry.WithSpan(ctx, "installer.install", func(ctx context.Context) error {
		var err error
		result, err = i.install(ctx, skillsDir, req, nil)
		return err
	}, attribute.String("skill", req.Name), attribute.Bool("force", req.Force))
	return result, err
}

func (i *Installer) install(ctx context.Context, skillsDir string, req Request, chain []string) (*Result, error) {
	log := logger.G(ctx).WithField("skill", req.Name)

	if err := local.ValidateName(req.Name); err != nil {
		return nil, err
	}
	if i.inventory.Exists(req.Name) && !req.Force {
		log.Debug("skill already installed")
		return &Result{
			Name:       req.Name,
			Path:       filepath.Join(skillsDir, req.Name),
			Skipped:    true,
			SkipReason: fmt.Sprintf("Skill %q already exists. Use --force to overwrite.", req.Name),
		}, nil
	}

	ref, err := i.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	i.report(req.Name, "Fetching from "+ref.String())

	workDir := filepath.Join(i.tempRoot, uuid.NewString())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create temp directory")
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			log.WithError(err).Warn("failed to remove temp directory")
		}
	}()

	srcDir, err := i.checkout.Fetch(ctx, ref, ref.SkillPath(req.Name), workDir)
	if err != nil {
		return nil, err
	}

	fm, err := readFrontmatter(srcDir)
	if err != nil {
		log.WithError(err).Warn("could not read SKILL.md frontmatter")
		fm = &skills.Frontmatter{Name: req.Name}
	}

	result := &Result{
		Name:    req.Name,
		Path:    filepath.Join(skillsDir, req.Name),
		Version: fm.VersionOrDefault(),
		Source:  ref.SourceName,
	}

	chain = append(append([]string(nil), chain...), req.Name)
	for _, dep := range fm.Dependencies {
		result.Dependencies = append(result.Dependencies, i.installDependency(ctx, skillsDir, dep, ref, chain))
	}

	i.report(req.Name, "Copying files")
	if err := os.RemoveAll(result.Path); err != nil {
		return nil, errors.Wrapf(err, "failed to remove existing skill %s", req.Name)
	}
	if err := i.copyDir(srcDir, result.Path); err != nil {
		return nil, errors.Wrapf(err, "failed to install skill %s", req.Name)
	}

	source := ref
	meta := &skills.Metadata{
		Name:         req.Name,
		Version:      result.Version,
		Description:  fm.Description,
		Source:       &source,
		SourceName:   ref.SourceName,
		Dependencies: fm.Dependencies,
	}
	if err := skills.WriteMetadata(result.Path, meta); err != nil {
		return nil, err
	}

	log.WithField("version", result.Version).Info("skill installed")
	return result, nil
}

func (i *Installer) installDependency(ctx context.Context, skillsDir, dep string, parent skills.Ref, chain []string) DependencyResult {
	log := logger.G(ctx).WithField("skill", chain[len(chain)-1]).WithField("dependency", dep)
	res := DependencyResult{Name: dep}

	switch {
	case dep == chain[len(chain)-1]:
		log.Warn("skill depends on itself, skipping")
		res.Status = DependencySelf
		return res
	case contains(chain, dep):
		log.WithField("chain", strings.Join(append(chain, dep), " -> ")).Warn("dependency cycle detected, skipping")
		res.Status = DependencyCycle
		return res
	case i.inventory.Exists(dep):
		res.Status = DependencyPresent
		return res
	}

	i.report(dep, "Installing dependency of "+chain[len(chain)-1])
	depResult, err := i.install(ctx, skillsDir, Request{Name: dep, SourceName: parent.SourceName}, chain)
	if err != nil && parent.SourceName != "" && apperr.IsCode(err, apperr.SkillNotFound) {
		depResult, err = i.install(ctx, skillsDir, Request{Name: dep}, chain)
	}
	if err != nil {
		log.WithError(err).Warn("failed to install dependency")
		res.Status = DependencyFailed
		res.Err = err
		return res
	}
	res.Status = DependencyInstalled
	res.Result = depResult
	return res
}

func (i *Installer) resolve(ctx context.Context, req Request) (skills.Ref, error) {
	if req.Ref != nil && !req.Ref.IsZero() {
		return *req.Ref, nil
	}
	if i.resolver == nil {
		return skills.Ref{}, apperr.SkillNotFoundError(req.Name, req.SourceName)
	}
	i.report(req.Name, "Resolving")
	found, err := i.resolver.FindIn(ctx, req.Name, req.SourceName)
	if err != nil {
		return skills.Ref{}, err
	}
	return found.Ref(), nil
}

func (i *Installer) report(name, message string) {
	if i.progress != nil {
		i.progress(name, message)
	}
}

func readFrontmatter(dir string) (*skills.Frontmatter, error) {
	content, err := os.ReadFile(filepath.Join(dir, skills.SkillFileName))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", skills.SkillFileName)
	}
	return skills.ParseFrontmatter(content)
}

func (i *Installer) excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, p := range i.excludes {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func (i *Installer) copyDir(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if relPath != "." && i.excluded(relPath) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		destPath := filepath.Join(dst, relPath)

		if info.IsDir() {
			return os.MkdirAll(destPath, info.Mode().Perm()|0o700)
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		return copyFile(path, destPath, info.Mode().Perm())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
