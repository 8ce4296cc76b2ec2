package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vunamhung/antikit/pkg/backup"
	"github.com/vunamhung/antikit/pkg/osutil"
	"github.com/vunamhung/antikit/pkg/presenter"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Restore skills and sources from a backup",
	Long: `Re-add the sources recorded in a backup and install every skill it lists.
Skills that are already installed are skipped unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		yes, _ := cmd.Flags().GetBool("yes")
		force, _ := cmd.Flags().GetBool("force")
		skipSources, _ := cmd.Flags().GetBool("skip-sources")

		b, err := backup.Read(args[0])
		if err != nil {
			return err
		}

		presenter.Section("Backup")
		if b.Version != "" {
			presenter.KeyValue("Created by", "antikit "+b.Version)
		}
		if !b.BackupDate.IsZero() {
			presenter.KeyValue("Date", b.BackupDate.Local().Format(time.RFC1123))
		}
		presenter.KeyValue("Skills", fmt.Sprint(len(b.Skills)))
		presenter.KeyValue("Sources", fmt.Sprint(len(b.Sources)))
		presenter.Info("")

		if len(b.Skills) > 0 {
			presenter.Table([]string{"Skill", "Version", "Source"}, restoreRows(b.Skills))
		}

		if !yes {
			if !osutil.IsInteractive() {
				presenter.Warning("Run with -y to restore without confirmation.")
				return nil
			}
			ok, err := presenter.Confirm(fmt.Sprintf("Restore %s?", plural(len(b.Skills), "skill")), true)
			if err != nil {
				return err
			}
			if !ok {
				presenter.Info("Restore cancelled.")
				return nil
			}
		}

		inv, err := cli.Inventory()
		if err != nil {
			return err
		}
		if _, err := inv.GetOrCreateSkillsDir(); err != nil {
			return err
		}
		store, err := cli.Sources()
		if err != nil {
			return err
		}
		cat, err := cli.Catalog(ctx, false)
		if err != nil {
			return err
		}
		inst, err := cli.Installer(ctx, cat)
		if err != nil {
			return err
		}

		report, restoreErr := backup.Restore(ctx, b, inv, store, inst, backup.RestoreOptions{
			Force:       force,
			SkipSources: skipSources,
		})
		if report != nil {
			printRestoreReport(report)
		}
		if restoreErr != nil {
			return restoreErr
		}
		presenter.Success("Restore completed")
		return nil
	},
}

func init() {
	restoreCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	restoreCmd.Flags().Bool("force", false, "reinstall skills that are already installed")
	restoreCmd.Flags().Bool("skip-sources", false, "do not restore sources")
}

func restoreRows(list []backup.Skill) [][]string {
	rows := make([][]string, 0, len(list))
	for _, s := range list {
		v := s.Version
		if v == "" {
			v = "-"
		}
		src := s.SourceName
		if src == "" && s.Source != nil {
			src = s.Source.Owner + "/" + s.Source.Repo
		}
		if src == "" {
			src = "-"
		}
		rows = append(rows, []string{s.Name, v, src})
	}
	return rows
}

func printRestoreReport(r *backup.RestoreReport) {
	presenter.Info("")
	presenter.Section("Restore Summary")
	line := func(label string, names []string) {
		if len(names) == 0 {
			return
		}
		presenter.KeyValue(label, fmt.Sprintf("%d (%s)", len(names), strings.Join(names, ", ")))
	}
	line("Sources added", r.SourcesAdded)
	line("Sources skipped", r.SourcesSkipped)
	line("Installed", r.Installed)
	line("Skipped", r.Skipped)
	line("Failed", r.Failed)
}
