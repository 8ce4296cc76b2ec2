// Package backup snapshots the installed skills and configured sources into a
// JSON or YAML file and restores them later.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vunamhung/antikit/pkg/apperr"
	"github.com/vunamhung/antikit/pkg/installer"
	"github.com/vunamhung/antikit/pkg/local"
	"github.com/vunamhung/antikit/pkg/logger"
	"github.com/vunamhung/antikit/pkg/skills"
	"github.com/vunamhung/antikit/pkg/sources"
)

// MaskedToken replaces the GitHub token in backups.
const MaskedToken = "***MASKED***"

// Skill is one installed skill in a backup.
type Skill struct {
	Name          string      `json:"name" yaml:"name"`
	Description   string      `json:"description,omitempty" yaml:"description,omitempty"`
	Version       string      `json:"version,omitempty" yaml:"version,omitempty"`
	Source        *skills.Ref `json:"source,omitempty" yaml:"source,omitempty"`
	SourceName    string      `json:"sourceName,omitempty" yaml:"sourceName,omitempty"`
	InstalledDate *time.Time  `json:"installedDate,omitempty" yaml:"installedDate,omitempty"`
}

// ConfigSummary records the non-secret parts of the configuration.
type ConfigSummary struct {
	GitHubToken  string `json:"githubToken,omitempty" yaml:"githubToken,omitempty"`
	SourcesCount int    `json:"sourcesCount" yaml:"sourcesCount"`
}

// Backup is the content of a backup file.
type Backup struct {
	Version         string           `json:"version" yaml:"version"`
	BackupDate      time.Time        `json:"backupDate" yaml:"backupDate"`
	SkillsDirectory string           `json:"skillsDirectory" yaml:"skillsDirectory"`
	TotalSkills     int              `json:"totalSkills" yaml:"totalSkills"`
	Skills          []Skill          `json:"skills" yaml:"skills"`
	Sources         []sources.Source `json:"sources" yaml:"sources"`
	Config          *ConfigSummary   `json:"config,omitempty" yaml:"config,omitempty"`
}

// SourceStore is the part of the source registry a backup needs.
type SourceStore interface {
	List() ([]sources.Source, error)
	StoredToken() string
}

// Create snapshots the skills of inv and the sources of store.
func Create(ctx context.Context, inv *local.Inventory, store SourceStore, version string, now time.Time) (*Backup, error) {
	dir := inv.SkillsDir()
	if dir == "" {
		return nil, apperr.New(apperr.DirectoryNotFound, "No .agent/skills directory found in current path.")
	}

	installed, err := inv.List()
	if err != nil {
		return nil, err
	}
	srcs, err := store.List()
	if err != nil {
		return nil, err
	}

	b := &Backup{
		Version:         version,
		BackupDate:      now.UTC(),
		SkillsDirectory: dir,
		TotalSkills:     len(installed),
		Skills:          make([]Skill, 0, len(installed)),
		Sources:         srcs,
		Config:          &ConfigSummary{SourcesCount: len(srcs)},
	}
	if store.StoredToken() != "" {
		b.Config.GitHubToken = MaskedToken
	}

	for _, s := range installed {
		entry := Skill{Name: s.Name, Description: s.Description}
		if m := s.Metadata; m != nil {
			entry.Version = m.Version
			entry.Source = m.Source
			entry.SourceName = m.SourceName
			if !m.InstalledAt.IsZero() {
				t := m.InstalledAt
				entry.InstalledDate = &t
			}
			if entry.Description == "" {
				entry.Description = m.Description
			}
		} else {
			logger.G(ctx).WithField("skill", s.Name).Debug("skill has no metadata, backing up name only")
		}
		b.Skills = append(b.Skills, entry)
	}
	return b, nil
}

// DefaultFilename is the file name used when none is given.
func DefaultFilename(now time.Time) string {
	return "antikit-backup-" + now.UTC().Format("2006-01-02") + ".json"
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Write stores b at path, as YAML when the extension is .yaml or .yml and as
// JSON otherwise.
func Write(path string, b *Backup) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err = enc.Encode(b); err == nil {
			err = enc.Close()
		}
		data = buf.Bytes()
	} else {
		data, err = json.MarshalIndent(b, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.Wrap(err, "failed to encode backup")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write backup")
	}
	return nil
}

// Read loads a backup written by Write.
func Read(path string) (*Backup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.New(apperr.InvalidInput, "Backup file not found: "+path)
		}
		return nil, errors.Wrap(err, "failed to read backup")
	}

	var b Backup
	if isYAML(path) {
		err = yaml.Unmarshal(data, &b)
	} else {
		err = json.Unmarshal(data, &b)
	}
	if err != nil {
		return nil, apperr.New(apperr.InvalidInput, "Invalid backup file: "+err.Error()).WithCause(err)
	}
	if b.Skills == nil {
		return nil, apperr.New(apperr.InvalidInput, "Invalid backup format: missing skills array")
	}
	if b.TotalSkills == 0 {
		b.TotalSkills = len(b.Skills)
	}
	return &b, nil
}

// SourceAdder registers sources during a restore.
type SourceAdder interface {
	Add(src sources.Source) error
}

// Installer installs skills during a restore.
type Installer interface {
	Install(ctx context.Context, req installer.Request) (*installer.Result, error)
}

// RestoreOptions control Restore.
type RestoreOptions struct {
	Force       bool
	SkipSources bool
}

// RestoreReport lists what Restore did.
type RestoreReport struct {
	SourcesAdded   []string
	SourcesSkipped []string
	Installed      []string
	Skipped        []string
	Failed         []string
}

// Restore re-adds the backed up sources, except the default one and those
// already present, then installs every skill. Failures do not stop the
// restore; they are collected into the returned error.
func Restore(ctx context.Context, b *Backup, inv *local.Inventory, adder SourceAdder, inst Installer, opts RestoreOptions) (*RestoreReport, error) {
	log := logger.G(ctx)
	report := &RestoreReport{}
	var errs *multierror.Error

	if !opts.SkipSources {
		for _, src := range b.Sources {
			if src.Default {
				report.SourcesSkipped = append(report.SourcesSkipped, src.Name)
				continue
			}
			err := adder.Add(src)
			switch {
			case err == nil:
				report.SourcesAdded = append(report.SourcesAdded, src.Name)
			case apperr.IsCode(err, apperr.SourceAlreadyExists):
				report.SourcesSkipped = append(report.SourcesSkipped, src.Name)
			default:
				log.WithError(err).WithField("source", src.Name).Warn("failed to restore source")
				errs = multierror.Append(errs, errors.Wrapf(err, "failed to add source %s", src.Name))
			}
		}
	}

	for _, s := range b.Skills {
		if inv.Exists(s.Name) && !opts.Force {
			report.Skipped = append(report.Skipped, s.Name)
			continue
		}

		req := installer.Request{Name: s.Name, Force: opts.Force}
		if s.Source != nil && !s.Source.IsZero() {
			ref := *s.Source
			ref.SourceName = s.SourceName
			req.Ref = &ref
		}

		res, err := inst.Install(ctx, req)
		switch {
		case err != nil:
			report.Failed = append(report.Failed, s.Name)
			errs = multierror.Append(errs, errors.Wrapf(err, "failed to install %s", s.Name))
		case res.Skipped:
			report.Skipped = append(report.Skipped, s.Name)
		default:
			report.Installed = append(report.Installed, s.Name)
		}
	}

	return report, errs.ErrorOrNil()
}
