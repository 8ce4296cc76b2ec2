package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vunamhung/antikit/pkg/apperr"
	"github.com/vunamhung/antikit/pkg/presenter"
	"github.com/vunamhung/antikit/pkg/skills"
)

var validateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate a skill's SKILL.md",
	Long: `Check that SKILL.md starts with YAML frontmatter declaring name,
description and version, that the version is in MAJOR.MINOR.PATCH form and
that dependencies are well formed.

The path may be a skill directory or a SKILL.md file and defaults to the
current directory.
`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		target := "."
		if len(args) == 1 {
			target = args[0]
		}

		path, err := skills.ResolveSkillFile(target)
		if err != nil {
			return err
		}
		presenter.Info(fmt.Sprintf("Inspecting: %s", path))
		presenter.Info("")

		report, err := skills.ValidateFile(path)
		if err != nil {
			return apperr.New(apperr.InvalidInput, err.Error()).WithCause(err)
		}

		for _, w := range report.Warnings {
			presenter.Warning(w)
		}
		if !report.Valid() {
			return apperr.New(apperr.InvalidInput,
				"Validation failed:\n  - "+strings.Join(report.Errors, "\n  - "), "path", path)
		}

		fm := report.Frontmatter
		presenter.Success("Skill metadata is valid!")
		presenter.KeyValue("Name", fm.Name)
		presenter.KeyValue("Version", fm.Version)
		presenter.KeyValue("Description", fm.Description)
		if len(fm.Dependencies) > 0 {
			presenter.KeyValue("Dependencies", strings.Join(fm.Dependencies, ", "))
		}
		return nil
	},
}
