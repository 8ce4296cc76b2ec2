package skills

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ValidationReport is the outcome of validating a SKILL.md file.
type ValidationReport struct {
	Path        string
	Frontmatter *Frontmatter
	Errors      []string
	Warnings    []string
}

// Valid reports whether no errors were found.
func (r *ValidationReport) Valid() bool {
	return len(r.Errors) == 0
}

// ResolveSkillFile turns a skill directory or SKILL.md path into the SKILL.md path.
func ResolveSkillFile(target string) (string, error) {
	if target == "" {
		target = "."
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve path")
	}
	if filepath.Base(abs) == SkillFileName {
		return abs, nil
	}
	return filepath.Join(abs, SkillFileName), nil
}

// ValidateFile checks the SKILL.md at path. A missing file is returned as an
// error; content problems are recorded on the report.
func ValidateFile(path string) (*ValidationReport, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("%s not found at %s", SkillFileName, path)
		}
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	report := Validate(content)
	report.Path = path
	return report, nil
}

// Validate checks SKILL.md content for the fields antikit relies on.
func Validate(content []byte) *ValidationReport {
	report := &ValidationReport{}

	raw, ok := ExtractFrontmatter(string(content))
	if !ok {
		report.Errors = append(report.Errors, "Missing or invalid YAML frontmatter")
		return report
	}

	fm, err := ParseFrontmatter(content)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report
	}
	report.Frontmatter = fm

	if _, err := decodeYAMLFrontmatter(content); err != nil {
		report.Warnings = append(report.Warnings, "Frontmatter is not valid YAML; fields were read line by line")
	}

	if strings.TrimSpace(fm.Name) == "" {
		report.Errors = append(report.Errors, `Missing "name" field`)
	}
	if strings.TrimSpace(fm.Description) == "" {
		report.Errors = append(report.Errors, `Missing "description" field`)
	}
	if strings.TrimSpace(fm.Version) == "" {
		report.Errors = append(report.Errors, `Missing "version" field`)
	} else if !IsValidVersion(fm.Version) {
		report.Warnings = append(report.Warnings, "Version "+fm.Version+" is not in MAJOR.MINOR.PATCH form")
	}

	if strings.Contains(raw, "dependencies:") && len(fm.Dependencies) == 0 {
		report.Warnings = append(report.Warnings, `"dependencies" is declared but lists no skills`)
	}
	for _, dep := range fm.Dependencies {
		if dep == fm.Name {
			report.Warnings = append(report.Warnings, "Skill depends on itself; the dependency will be skipped")
		}
		if strings.ContainsAny(dep, " /\\") {
			report.Errors = append(report.Errors, "Invalid dependency name: "+dep)
		}
	}

	return report
}
