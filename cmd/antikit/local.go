package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vunamhung/antikit/pkg/local"
	"github.com/vunamhung/antikit/pkg/presenter"
)

var localCmd = &cobra.Command{
	Use:     "local",
	Aliases: []string{"l"},
	Short:   "List skills installed in the project",
	Long:    `List the skills installed in the nearest .agent/skills directory.`,
	Args:    cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		inv, err := cli.Inventory()
		if err != nil {
			return err
		}

		dir := inv.SkillsDir()
		if dir == "" {
			presenter.Warning("No .agent/skills directory found in current path.")
			presenter.Dim("Make sure you are in a project with .agent/skills folder.")
			return nil
		}

		installed, err := inv.List()
		if err != nil {
			return err
		}
		if len(installed) == 0 {
			presenter.Warning("No skills installed.")
			presenter.Dim("Use 'antikit install <skill>' to install a skill")
			return nil
		}

		presenter.Section(fmt.Sprintf("Installed Skills (%d) at %s", len(installed), dir))
		presenter.Table([]string{"Skill Name", "Version", "Description"}, localRows(installed))
		return nil
	},
}

func localRows(installed []*local.Skill) [][]string {
	rows := make([][]string, 0, len(installed))
	for _, s := range installed {
		desc := s.Description
		if desc == "" {
			desc = "No description"
		}
		rows = append(rows, []string{s.Name, s.Version, truncate(desc, 60)})
	}
	return rows
}
