package main

import (
	"fmt"
	"strings"

	"github.com/aymanbagabas/go-udiff"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vunamhung/antikit/pkg/apperr"
	"github.com/vunamhung/antikit/pkg/presenter"
	"github.com/vunamhung/antikit/pkg/skills"
	"github.com/vunamhung/antikit/pkg/upgrade"
)

var diffCmd = &cobra.Command{
	Use:   "diff <skill>",
	Short: "Compare an installed skill's SKILL.md with its source",
	Long: `Show a unified diff between the installed SKILL.md of a skill and the
SKILL.md currently published in the source it was installed from.

Examples:
  antikit diff react
`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeInstalledSkills,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name := args[0]

		inv, err := cli.Inventory()
		if err != nil {
			return err
		}
		if _, err := requireSkillsDir(inv); err != nil {
			return err
		}
		installed, err := inv.ReadSkillFile(name)
		if err != nil {
			return err
		}

		var ref *skills.Ref
		if meta, err := inv.ReadMetadata(name); err == nil && meta.HasSource() {
			ref = upgrade.SourceRef(meta)
		}

		cat, err := cli.Catalog(ctx, false)
		if err != nil {
			return err
		}
		info, err := cat.FetchSkillInfo(ctx, name, ref)
		if err != nil {
			return err
		}
		if info == nil {
			return apperr.New(apperr.SkillNotFound,
				fmt.Sprintf("Skill %q not found in any configured source.", name), "skillName", name)
		}

		diff := skillDiff(name, installed, info.Content)
		if diff == "" {
			presenter.Success(fmt.Sprintf("%s is identical to its source", name))
			return nil
		}
		printDiff(diff)
		return nil
	},
}

func skillDiff(name, installed, remote string) string {
	file := name + "/" + skills.SkillFileName
	return udiff.Unified("installed/"+file, "remote/"+file, installed, remote)
}

func printDiff(diff string) {
	add := color.New(color.FgGreen)
	del := color.New(color.FgRed)
	hunk := color.New(color.FgCyan)
	w := presenter.Writer()
	for _, line := range strings.SplitAfter(diff, "\n") {
		switch {
		case line == "":
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			color.New(color.Bold).Fprint(w, line)
		case strings.HasPrefix(line, "@@"):
			hunk.Fprint(w, line)
		case strings.HasPrefix(line, "+"):
			add.Fprint(w, line)
		case strings.HasPrefix(line, "-"):
			del.Fprint(w, line)
		default:
			fmt.Fprint(w, line)
		}
	}
}
