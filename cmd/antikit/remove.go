package main

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/vunamhung/antikit/pkg/apperr"
	"github.com/vunamhung/antikit/pkg/local"
	"github.com/vunamhung/antikit/pkg/osutil"
	"github.com/vunamhung/antikit/pkg/presenter"
)

var removeCmd = &cobra.Command{
	Use:     "remove [skill]...",
	Aliases: []string{"rm"},
	Short:   "Remove installed skills",
	Long: `Remove installed skills from the project.

Without arguments an interactive selection is shown when running in a
terminal.

Examples:
  antikit remove react          # Remove one skill
  antikit remove react vue      # Remove several skills
  antikit remove -i             # Pick skills to remove
  antikit remove --all -y       # Remove everything without asking
`,
	ValidArgsFunction: completeInstalledSkills,
	RunE: func(cmd *cobra.Command, args []string) error {
		interactive, _ := cmd.Flags().GetBool("interactive")
		all, _ := cmd.Flags().GetBool("all")
		yes, _ := cmd.Flags().GetBool("yes")

		inv, err := cli.Inventory()
		if err != nil {
			return err
		}
		if _, err := requireSkillsDir(inv); err != nil {
			return err
		}

		if len(args) > 0 {
			return removeNamed(inv, args)
		}

		installed, err := inv.List()
		if err != nil {
			return err
		}
		if len(installed) == 0 {
			presenter.Warning("No skills installed.")
			return nil
		}

		switch {
		case all:
			return removeAll(inv, installed, yes)
		case interactive || osutil.IsInteractive():
			return interactiveRemove(inv, installed)
		default:
			return apperr.New(apperr.InvalidInput,
				"Please specify a skill name to remove, or use -i or --all.")
		}
	},
}

func init() {
	removeCmd.Flags().BoolP("interactive", "i", false, "select skills to remove")
	removeCmd.Flags().BoolP("all", "a", false, "remove all installed skills")
	removeCmd.Flags().BoolP("yes", "y", false, "skip confirmation")
}

func removeNamed(inv *local.Inventory, names []string) error {
	var errs *multierror.Error
	for _, name := range names {
		if !inv.Exists(name) {
			errs = multierror.Append(errs, apperr.New(apperr.SkillNotFound,
				fmt.Sprintf("Skill %q is not installed.", name), "skillName", name))
			continue
		}
		if err := inv.Remove(name); err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "failed to remove %s", name))
			continue
		}
		presenter.Success(fmt.Sprintf("Removed %s", name))
	}
	if errs != nil && len(errs.Errors) == 1 {
		return errs.Errors[0]
	}
	return errs.ErrorOrNil()
}

func removeAll(inv *local.Inventory, installed []*local.Skill, yes bool) error {
	presenter.Warning(fmt.Sprintf("You are about to remove ALL %d installed skills:", len(installed)))
	presenter.Table([]string{"Skill Name", "Description"}, removalRows(installed))

	if !yes {
		ok, err := presenter.Confirm(fmt.Sprintf("Permanently remove ALL %d skills?", len(installed)), false)
		if err != nil {
			return err
		}
		if !ok {
			presenter.Warning("Operation cancelled.")
			return nil
		}
	}
	return removeBatch(inv, installed)
}

func interactiveRemove(inv *local.Inventory, installed []*local.Skill) error {
	choices := make([]presenter.Choice, 0, len(installed))
	for _, s := range installed {
		label := s.Name
		if s.Description != "" {
			label += " - " + truncate(s.Description, 80)
		}
		choices = append(choices, presenter.Choice{Label: label, Value: s.Name})
	}

	selected, err := presenter.MultiSelect(fmt.Sprintf("Select skills to remove (%d installed)", len(installed)), choices)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		presenter.Warning("No skills selected.")
		return nil
	}

	chosen := make([]*local.Skill, 0, len(selected))
	for _, s := range installed {
		for _, name := range selected {
			if s.Name == name {
				chosen = append(chosen, s)
			}
		}
	}

	presenter.Warning(fmt.Sprintf("You are about to remove %s:", plural(len(chosen), "skill")))
	presenter.Table([]string{"Skill Name", "Description"}, removalRows(chosen))

	ok, err := presenter.Confirm(fmt.Sprintf("Permanently remove %s?", plural(len(chosen), "skill")), false)
	if err != nil {
		return err
	}
	if !ok {
		presenter.Warning("Operation cancelled.")
		return nil
	}
	return removeBatch(inv, chosen)
}

func removeBatch(inv *local.Inventory, list []*local.Skill) error {
	var errs *multierror.Error
	removed := 0
	for _, s := range list {
		if err := inv.Remove(s.Name); err != nil {
			presenter.Error(err, fmt.Sprintf("Failed to remove %s", s.Name))
			errs = multierror.Append(errs, errors.Wrapf(err, "failed to remove %s", s.Name))
			continue
		}
		presenter.Success(fmt.Sprintf("Removed %s", s.Name))
		removed++
	}

	presenter.Separator()
	if errs != nil {
		presenter.Warning(fmt.Sprintf("Removed %s, %d failed", plural(removed, "skill"), len(errs.Errors)))
		return errs.ErrorOrNil()
	}
	presenter.Success(fmt.Sprintf("Successfully removed %s", plural(removed, "skill")))
	return nil
}

func removalRows(list []*local.Skill) [][]string {
	rows := make([][]string, 0, len(list))
	for _, s := range list {
		desc := s.Description
		if desc == "" {
			desc = "No description"
		}
		rows = append(rows, []string{s.Name, truncate(desc, 60)})
	}
	return rows
}
