// Package skills models antikit skills: directories containing a SKILL.md file
// whose YAML frontmatter declares name, version, description and optional
// dependencies. It parses that frontmatter, reads and writes the metadata
// sidecar kept next to installed skills, and compares skill versions.
package skills

import (
	"fmt"
	"strings"
)

// File names
const (
	SkillFileName = "SKILL.md"
	MetadataFile  = ".antikit-skill.json"
)

// DefaultVersion is used whenever a skill does not declare a version.
const DefaultVersion = "0.0.0"

// Frontmatter is the YAML header of a SKILL.md file.
type Frontmatter struct {
	Name         string   `mapstructure:"name"`
	Description  string   `mapstructure:"description"`
	Version      string   `mapstructure:"version"`
	Dependencies []string `mapstructure:"dependencies"`
}

// VersionOrDefault returns the declared version or DefaultVersion.
func (f *Frontmatter) VersionOrDefault() string {
	if f == nil || f.Version == "" {
		return DefaultVersion
	}
	return f.Version
}

// Ref locates a skill inside a GitHub repository. Path is the base directory
// holding skill directories (the source subpath), not the skill directory.
type Ref struct {
	Owner      string `json:"owner" yaml:"owner"`
	Repo       string `json:"repo" yaml:"repo"`
	Path       string `json:"path,omitempty" yaml:"path,omitempty"`
	Branch     string `json:"branch,omitempty" yaml:"branch,omitempty"`
	SourceName string `json:"-" yaml:"-"`
}

// IsZero reports whether the ref lacks an owner or repo.
func (r Ref) IsZero() bool {
	return r.Owner == "" || r.Repo == ""
}

// SkillPath returns the repository path of the named skill.
func (r Ref) SkillPath(name string) string {
	base := strings.Trim(r.Path, "/")
	if base == "" {
		return name
	}
	return base + "/" + name
}

// CloneURL returns the HTTPS clone URL of the repository.
func (r Ref) CloneURL() string {
	return CloneURL(r.Owner, r.Repo)
}

func (r Ref) String() string {
	s := r.Owner + "/" + r.Repo
	if r.Path != "" {
		s += "/" + strings.Trim(r.Path, "/")
	}
	if r.Branch != "" {
		s += "@" + r.Branch
	}
	return s
}

// CloneURL returns the HTTPS clone URL for owner/repo.
func CloneURL(owner, repo string) string {
	return fmt.Sprintf("https://github.com/%s/%s.git", owner, repo)
}
