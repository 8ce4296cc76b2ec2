package main

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/vunamhung/antikit/pkg/osutil"
	"github.com/vunamhung/antikit/pkg/presenter"
	"github.com/vunamhung/antikit/pkg/upgrade"
)

var upgradeCmd = &cobra.Command{
	Use:     "upgrade [skill]",
	Aliases: []string{"ug"},
	Short:   "Upgrade installed skills",
	Long: `Compare installed skills with the sources they were installed from and
reinstall the ones with a newer version.

Without a skill name every installed skill is checked. In a terminal the
skills to upgrade are picked interactively unless -y is given.

Examples:
  antikit upgrade react     # Upgrade one skill
  antikit upgrade           # Check everything and pick what to upgrade
  antikit upgrade -y        # Upgrade everything that has an update
`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeInstalledSkills,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		interactive, _ := cmd.Flags().GetBool("interactive")
		yes, _ := cmd.Flags().GetBool("yes")
		refresh, _ := cmd.Flags().GetBool("refresh")

		inv, err := cli.Inventory()
		if err != nil {
			return err
		}
		if _, err := requireSkillsDir(inv); err != nil {
			return err
		}
		cat, err := cli.Catalog(ctx, refresh)
		if err != nil {
			return err
		}
		inst, err := cli.Installer(ctx, cat)
		if err != nil {
			return err
		}
		u := upgrade.New(inv, cat, inst, upgrade.WithConcurrency(cli.settings.Concurrency))

		if len(args) == 1 {
			presenter.Info(fmt.Sprintf("Upgrading %s...", args[0]))
			res, err := u.Upgrade(ctx, args[0])
			if err != nil {
				return err
			}
			reportInstall(res)
			return nil
		}

		presenter.Info("Checking for updates...")
		statuses, err := u.Check(ctx)
		if err != nil {
			return err
		}
		if len(statuses) == 0 {
			presenter.Warning("No skills installed.")
			return nil
		}
		presenter.Success(fmt.Sprintf("Found %s", plural(len(statuses), "installed skill")))

		if interactive || (!yes && osutil.IsInteractive()) {
			return interactiveUpgrade(ctx, u, statuses)
		}
		return upgradeAll(ctx, u, statuses, yes)
	},
}

func init() {
	upgradeCmd.Flags().BoolP("interactive", "i", false, "select skills to upgrade")
	upgradeCmd.Flags().BoolP("yes", "y", false, "skip confirmation")
	upgradeCmd.Flags().Bool("refresh", false, "ignore cached source listings")
}

func interactiveUpgrade(ctx context.Context, u *upgrade.Upgrader, statuses []upgrade.Status) error {
	upgrade.SortForSelection(statuses)

	available := upgrade.Upgradable(statuses)
	if len(available) == 0 {
		presenter.Success("All skills are up to date!")
		printStatusTable(statuses)
		return nil
	}

	for _, s := range statuses {
		if s.Error != "" {
			presenter.Dim(fmt.Sprintf("  ✗ %s (%s)", s.Name, s.Error))
		}
	}

	choices := make([]presenter.Choice, 0, len(available))
	for _, s := range available {
		label := fmt.Sprintf("%s v%s → v%s", s.Name, s.LocalVersion, s.RemoteVersion)
		if s.Description != "" {
			label += " - " + truncate(s.Description, 80)
		}
		choices = append(choices, presenter.Choice{Label: label, Value: s.Name})
	}

	selected, err := presenter.MultiSelect("Select skills to upgrade", choices)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		presenter.Warning("No skills selected.")
		return nil
	}

	ok, err := presenter.Confirm(fmt.Sprintf("Upgrade %s?", plural(len(selected), "skill")), true)
	if err != nil {
		return err
	}
	if !ok {
		presenter.Warning("Operation cancelled.")
		return nil
	}
	return runUpgrades(ctx, u, selected)
}

func upgradeAll(ctx context.Context, u *upgrade.Upgrader, statuses []upgrade.Status, yes bool) error {
	available := upgrade.Upgradable(statuses)
	if len(available) == 0 {
		presenter.Success("All skills are up to date!")
		printStatusTable(statuses)
		return nil
	}

	presenter.Info(fmt.Sprintf("Found %s with available updates:", plural(len(available), "skill")))
	rows := make([][]string, 0, len(available))
	names := make([]string, 0, len(available))
	for _, s := range available {
		rows = append(rows, []string{s.Name, s.LocalVersion, s.RemoteVersion})
		names = append(names, s.Name)
	}
	presenter.Table([]string{"Skill Name", "Current", "Latest"}, rows)

	if !yes {
		if !osutil.IsInteractive() {
			presenter.Warning("Run with -y to upgrade without confirmation.")
			return nil
		}
		ok, err := presenter.Confirm("Upgrade all skills?", true)
		if err != nil {
			return err
		}
		if !ok {
			presenter.Warning("Operation cancelled.")
			return nil
		}
	}
	return runUpgrades(ctx, u, names)
}

func runUpgrades(ctx context.Context, u *upgrade.Upgrader, names []string) error {
	res, err := u.UpgradeAll(ctx, names)
	for _, r := range res.Upgraded {
		reportInstall(r)
	}

	presenter.Separator()
	if err != nil {
		var merr *multierror.Error
		if errors.As(err, &merr) {
			for _, e := range merr.Errors {
				presenter.Error(e, "")
			}
		}
		return errors.Errorf("upgraded %s, %d failed", plural(len(res.Upgraded), "skill"), res.Failed)
	}
	presenter.Success(fmt.Sprintf("All %s upgraded successfully", plural(len(res.Upgraded), "skill")))
	return nil
}

func printStatusTable(statuses []upgrade.Status) {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		state := "Up to date"
		switch {
		case s.Error != "":
			state = "Error: " + s.Error
		case s.UpdateAvailable:
			state = "Update available"
		}
		rows = append(rows, []string{s.Name, s.LocalVersion, state})
	}
	presenter.Table([]string{"Skill Name", "Version", "Status"}, rows)
}
