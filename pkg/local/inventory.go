// Package local enumerates and manages the skills installed in a project's
// skills directory.
package local

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/vunamhung/antikit/pkg/apperr"
	"github.com/vunamhung/antikit/pkg/config"
	"github.com/vunamhung/antikit/pkg/skills"
)

// LocalVersion is reported for installed skills that declare no version.
const LocalVersion = "local"

// Skill is an installed skill.
type Skill struct {
	Name        string
	Path        string
	Description string
	Version     string
	Metadata    *skills.Metadata
}

// Inventory locates the skills directory and reads installed skills from it.
type Inventory struct {
	startDir  string
	skillsDir string
	relDir    string
}

// Option configures an Inventory.
type Option func(*Inventory) error

// WithStartDir sets the directory the skills directory search starts from.
func WithStartDir(dir string) Option {
	return func(inv *Inventory) error {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return errors.Wrap(err, "failed to resolve start directory")
		}
		inv.startDir = abs
		return nil
	}
}

// WithSkillsDirName overrides the relative skills directory (.agent/skills).
func WithSkillsDirName(rel string) Option {
	return func(inv *Inventory) error {
		if rel != "" {
			inv.relDir = rel
		}
		return nil
	}
}

// WithSkillsDir pins the skills directory instead of searching for it.
func WithSkillsDir(dir string) Option {
	return func(inv *Inventory) error {
		inv.skillsDir = dir
		return nil
	}
}

// NewInventory creates an inventory rooted at the current working directory
// unless options say otherwise.
func NewInventory(opts ...Option) (*Inventory, error) {
	inv := &Inventory{relDir: config.DefaultSkillsDir}
	for _, opt := range opts {
		if err := opt(inv); err != nil {
			return nil, err
		}
	}

	if inv.startDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get working directory")
		}
		inv.startDir = cwd
	}

	return inv, nil
}

// FindSkillsDir walks up from start looking for rel and returns the first match,
// or "" when none of the ancestors has one.
func FindSkillsDir(start, rel string) string {
	dir := start
	for {
		candidate := filepath.Join(dir, rel)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// SkillsDir returns the skills directory in use, or "" when there is none.
func (inv *Inventory) SkillsDir() string {
	if inv.skillsDir != "" {
		if info, err := os.Stat(inv.skillsDir); err == nil && info.IsDir() {
			return inv.skillsDir
		}
		return ""
	}
	return FindSkillsDir(inv.startDir, inv.relDir)
}

// GetOrCreateSkillsDir returns the existing skills directory or creates one
// under the start directory.
func (inv *Inventory) GetOrCreateSkillsDir() (string, error) {
	if dir := inv.SkillsDir(); dir != "" {
		return dir, nil
	}

	dir := inv.skillsDir
	if dir == "" {
		dir = filepath.Join(inv.startDir, inv.relDir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create skills directory")
	}
	return dir, nil
}

// List returns the installed skills sorted by name. A missing skills directory
// yields an empty list.
func (inv *Inventory) List() ([]*Skill, error) {
	dir := inv.SkillsDir()
	if dir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skills directory")
	}

	var result []*Skill
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		entryPath := filepath.Join(dir, entry.Name())

		// Stat follows symlinked skill directories.
		info, err := os.Stat(entryPath)
		if err != nil || !info.IsDir() {
			continue
		}

		result = append(result, loadSkill(entry.Name(), entryPath))
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Names returns the names of installed skills.
func (inv *Inventory) Names() ([]string, error) {
	list, err := inv.List()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(list))
	for _, s := range list {
		names = append(names, s.Name)
	}
	return names, nil
}

// Get returns a single installed skill.
func (inv *Inventory) Get(name string) (*Skill, error) {
	path, err := inv.skillPath(name)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, apperr.New(apperr.SkillNotFound, "Skill \""+name+"\" not found", "skillName", name)
	}
	return loadSkill(name, path), nil
}

// Exists reports whether name is installed.
func (inv *Inventory) Exists(name string) bool {
	path, err := inv.skillPath(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Remove deletes an installed skill.
func (inv *Inventory) Remove(name string) error {
	path, err := inv.skillPath(name)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(path); err != nil {
		return apperr.New(apperr.SkillNotFound, "Skill \""+name+"\" not found", "skillName", name)
	}
	if err := os.RemoveAll(path); err != nil {
		return errors.Wrapf(err, "failed to remove skill %s", name)
	}
	return nil
}

// ReadMetadata returns the sidecar of an installed skill, or nil.
func (inv *Inventory) ReadMetadata(name string) (*skills.Metadata, error) {
	path, err := inv.skillPath(name)
	if err != nil {
		return nil, err
	}
	return skills.ReadMetadata(path)
}

// ReadSkillFile returns the SKILL.md content of an installed skill.
func (inv *Inventory) ReadSkillFile(name string) (string, error) {
	path, err := inv.skillPath(name)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(filepath.Join(path, skills.SkillFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperr.New(apperr.SkillNotFound, "Skill \""+name+"\" not found", "skillName", name)
		}
		return "", errors.Wrap(err, "failed to read skill file")
	}
	return string(content), nil
}

func (inv *Inventory) skillPath(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	dir := inv.SkillsDir()
	if dir == "" {
		return "", apperr.New(apperr.DirectoryNotFound, "No "+inv.relDir+" directory found")
	}
	return filepath.Join(dir, name), nil
}

// ValidateName rejects names that would escape the skills directory.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return apperr.New(apperr.InvalidInput, "Invalid skill name: \""+name+"\"", "skillName", name)
	}
	return nil
}

// loadSkill reads what it can about an installed skill. Unreadable or
// malformed files leave fields empty rather than hiding the skill.
func loadSkill(name, path string) *Skill {
	s := &Skill{Name: name, Path: path, Version: LocalVersion}

	if content, err := os.ReadFile(filepath.Join(path, skills.SkillFileName)); err == nil {
		if fm, err := skills.ParseFrontmatter(content); err == nil {
			s.Description = fm.Description
			if fm.Version != "" {
				s.Version = fm.Version
			}
		}
	}

	if m, err := skills.ReadMetadata(path); err == nil && m != nil {
		s.Metadata = m
		if m.Version != "" {
			s.Version = m.Version
		}
	}

	return s
}
