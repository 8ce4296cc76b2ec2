package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/vunamhung/antikit/pkg/backup"
	"github.com/vunamhung/antikit/pkg/presenter"
	"github.com/vunamhung/antikit/pkg/version"
)

var backupCmd = &cobra.Command{
	Use:   "backup [file]",
	Short: "Back up installed skills and sources",
	Long: `Write the installed skills and configured sources to a file that
"antikit restore" can replay. The file is YAML when its extension is
.yaml or .yml and JSON otherwise. The GitHub token is never written.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		now := time.Now()

		path := backup.DefaultFilename(now)
		if len(args) == 1 {
			path = args[0]
		}

		inv, err := cli.Inventory()
		if err != nil {
			return err
		}
		store, err := cli.Sources()
		if err != nil {
			return err
		}

		b, err := backup.Create(ctx, inv, store, version.Version, now)
		if err != nil {
			return err
		}
		if err := backup.Write(path, b); err != nil {
			return err
		}

		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		presenter.Success("Backup created successfully")
		presenter.KeyValue("File", path)
		presenter.KeyValue("Skills", fmt.Sprint(b.TotalSkills))
		presenter.KeyValue("Sources", fmt.Sprint(len(b.Sources)))
		presenter.KeyValue("Date", b.BackupDate.Local().Format(time.RFC1123))
		return nil
	},
}
