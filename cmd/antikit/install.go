package main

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/vunamhung/antikit/pkg/installer"
	"github.com/vunamhung/antikit/pkg/presenter"
)

var installCmd = &cobra.Command{
	Use:     "install <skill>...",
	Aliases: []string{"i"},
	Short:   "Install skills from the configured sources",
	Long: `Install one or more skills into the project's .agent/skills directory.

Declared dependencies are installed first. The skills directory is created in
the current directory when no project directory has one.

Examples:
  antikit install react                 # Install from the first source that has it
  antikit install react vue             # Install several skills
  antikit install react --source team   # Install from a specific source
  antikit install react --force         # Overwrite an installed copy
`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		force, _ := cmd.Flags().GetBool("force")
		source, _ := cmd.Flags().GetString("source")
		refresh, _ := cmd.Flags().GetBool("refresh")

		cat, err := cli.Catalog(ctx, refresh)
		if err != nil {
			return err
		}
		inst, err := cli.Installer(ctx, cat)
		if err != nil {
			return err
		}

		var errs *multierror.Error
		for _, name := range args {
			req := installer.Request{Name: name, SourceName: source, Force: force}
			if err := installOne(ctx, inst, req); err != nil {
				errs = multierror.Append(errs, errors.Wrapf(err, "failed to install %s", name))
			}
		}
		if len(args) > 1 && errs != nil {
			presenter.Warning(fmt.Sprintf("Installed %d of %d skills", len(args)-len(errs.Errors), len(args)))
		}
		if errs != nil && len(errs.Errors) == 1 {
			return errs.Errors[0]
		}
		return errs.ErrorOrNil()
	},
}

func init() {
	installCmd.Flags().BoolP("force", "f", false, "overwrite the skill if it is already installed")
	installCmd.Flags().StringP("source", "s", "", "only look for the skill in this source")
	installCmd.Flags().Bool("refresh", false, "ignore cached source listings")
}

// installOne installs a skill and reports the outcome, including its
// dependencies.
func installOne(ctx context.Context, inst *installer.Installer, req installer.Request) error {
	presenter.Info(fmt.Sprintf("Installing %s...", req.Name))

	res, err := inst.Install(ctx, req)
	if err != nil {
		return err
	}
	reportInstall(res)
	return nil
}

func reportInstall(res *installer.Result) {
	for _, dep := range res.Dependencies {
		switch dep.Status {
		case installer.DependencyInstalled:
			presenter.Success(fmt.Sprintf("Installed dependency %s", dep.Name))
		case installer.DependencyPresent:
			presenter.Dim(fmt.Sprintf("  Dependency %s is already installed", dep.Name))
		case installer.DependencySelf:
			presenter.Warning(fmt.Sprintf("Skill %s lists itself as a dependency, skipped", res.Name))
		case installer.DependencyCycle:
			presenter.Warning(fmt.Sprintf("Dependency cycle through %s, skipped", dep.Name))
		case installer.DependencyFailed:
			presenter.Warning(fmt.Sprintf("Failed to install dependency %s: %v", dep.Name, dep.Err))
		}
	}

	if res.Skipped {
		presenter.Warning(res.SkipReason)
		return
	}

	msg := fmt.Sprintf("Installed %s", res.Name)
	if res.Version != "" {
		msg += " v" + res.Version
	}
	if res.Source != "" {
		msg += fmt.Sprintf(" from %s", res.Source)
	}
	presenter.Success(msg)
	presenter.Dim("  → " + res.Path)
}
