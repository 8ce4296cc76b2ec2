package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/vunamhung/antikit/pkg/config"
	"github.com/vunamhung/antikit/pkg/logger"
	"github.com/vunamhung/antikit/pkg/presenter"
	"github.com/vunamhung/antikit/pkg/selfupdate"
	"github.com/vunamhung/antikit/pkg/version"
)

const updateNoticeTimeout = 2 * time.Second

var updateCmd = &cobra.Command{
	Use:     "update",
	Aliases: []string{"up"},
	Short:   "Update antikit to the latest version",
	Long: `Download and install the latest release of antikit, or a specific version,
over the running binary.

Examples:
  antikit update                    # Install the latest release
  antikit update --version 1.4.0    # Install a specific release
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		target, _ := cmd.Flags().GetString("version")
		if target == "" {
			return errors.New("version cannot be empty")
		}

		client, err := cli.GitHub(ctx)
		if err != nil {
			return err
		}
		updater := selfupdate.New(client)

		current := version.Get().Version
		presenter.Info(fmt.Sprintf("Current version: %s", current))

		if target == selfupdate.LatestVersion {
			latest, err := updater.Latest(ctx)
			if err != nil {
				return err
			}
			if !selfupdate.IsNewer(latest, current) && !version.Get().IsDev() {
				presenter.Success(fmt.Sprintf("antikit is already up to date (%s)", current))
				return nil
			}
		}

		res, err := updater.Update(ctx, target)
		if err != nil {
			return errors.Wrap(err, "failed to update antikit")
		}

		if res.PendingPath != "" {
			presenter.Warning("Elevated permissions required to update. You may be prompted for your password.")
			if err := sudoMove(ctx, res.PendingPath, res.Path); err != nil {
				os.Remove(res.PendingPath)
				return err
			}
		}

		presenter.Success(fmt.Sprintf("Updated antikit to %s", res.Version))
		presenter.Info("Run 'antikit version' to verify the new version.")
		return nil
	},
}

func init() {
	updateCmd.Flags().String("version", selfupdate.LatestVersion, "specific version to install (e.g. v1.4.0)")
}

func sudoMove(ctx context.Context, from, to string) error {
	cmd := exec.CommandContext(ctx, "sudo", "mv", from, to)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	if err := cmd.Run(); err != nil {
		return errors.Wrap(err, "failed to replace current binary with sudo")
	}
	return nil
}

// showUpdateNotice prints a hint when a newer release exists. The release
// check is cached so GitHub is asked at most once per interval.
func showUpdateNotice(ctx context.Context) {
	if ctx == nil || !cli.settings.UpdateCheck || presenter.IsQuiet() {
		return
	}
	current := version.Get()
	if current.IsDev() {
		return
	}

	store := cli.Cache(ctx)
	if store == nil {
		return
	}
	client, err := cli.GitHub(ctx)
	if err != nil {
		logger.G(ctx).WithError(err).Debug("update check skipped")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, updateNoticeTimeout)
	defer cancel()

	notifier := selfupdate.NewNotifier(store, selfupdate.New(client), selfupdate.WithInterval(config.DefaultUpdateEvery))
	latest, ok := notifier.Notice(ctx, current.Version)
	if !ok {
		return
	}

	presenter.Info("")
	presenter.Warning(fmt.Sprintf("Update available: %s → %s", current.Version, latest))
	presenter.Dim("Run 'antikit update' to install it.")
}
