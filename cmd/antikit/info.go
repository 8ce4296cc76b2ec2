package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vunamhung/antikit/pkg/apperr"
	"github.com/vunamhung/antikit/pkg/osutil"
	"github.com/vunamhung/antikit/pkg/presenter"
	"github.com/vunamhung/antikit/pkg/skills"
)

var infoCmd = &cobra.Command{
	Use:     "info <skill>",
	Aliases: []string{"doc"},
	Short:   "Show a skill's documentation",
	Long: `Render the SKILL.md of a skill. The installed copy is shown when there is
one, otherwise the skill is looked up in the configured sources.

Examples:
  antikit info react            # Render the documentation
  antikit info react --raw      # Print SKILL.md unrendered
  antikit info react --remote   # Ignore the installed copy
`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeInstalledSkills,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name := args[0]
		raw, _ := cmd.Flags().GetBool("raw")
		remote, _ := cmd.Flags().GetBool("remote")

		inv, err := cli.Inventory()
		if err != nil {
			return err
		}

		var content, origin string
		if !remote && inv.Exists(name) {
			content, err = inv.ReadSkillFile(name)
			if err != nil {
				return err
			}
			origin = "local"
		} else {
			if !remote {
				presenter.Warning(fmt.Sprintf("Skill %q not found locally. Searching remote...", name))
			}
			cat, err := cli.Catalog(ctx, false)
			if err != nil {
				return err
			}
			info, err := cat.FetchSkillInfo(ctx, name, nil)
			if err != nil {
				return err
			}
			if info == nil || info.Content == "" {
				return apperr.New(apperr.SkillNotFound,
					fmt.Sprintf("Skill %q not found in any configured source.", name), "skillName", name)
			}
			content, origin = info.Content, "remote"
		}

		if raw {
			fmt.Fprint(presenter.Writer(), content)
			return nil
		}

		presenter.Success(fmt.Sprintf("Viewing %s docs for: %s", origin, name))
		if tp, ok := presenter.Default().(*presenter.TerminalPresenter); ok {
			tp.SetWidth(osutil.TerminalWidth(80))
		}
		presenter.Markdown(documentBody(content))
		return nil
	},
}

// documentBody returns the markdown to render for a SKILL.md, dropping the
// frontmatter unless nothing else is left.
func documentBody(content string) string {
	body := skills.ExtractBody(content)
	if strings.TrimSpace(body) == "" {
		return content
	}
	return body
}

func init() {
	infoCmd.Flags().Bool("raw", false, "print SKILL.md without rendering")
	infoCmd.Flags().Bool("remote", false, "show the remote SKILL.md even when the skill is installed")
}
