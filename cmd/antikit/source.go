package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vunamhung/antikit/pkg/config"
	"github.com/vunamhung/antikit/pkg/presenter"
	"github.com/vunamhung/antikit/pkg/sources"
)

var sourceCmd = &cobra.Command{
	Use:     "source",
	Aliases: []string{"src"},
	Short:   "Manage skill sources",
	Long:    `List, add and remove the GitHub repositories skills are fetched from.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var sourceListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List configured sources",
	Args:    cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		store, err := cli.Sources()
		if err != nil {
			return err
		}
		list, err := store.List()
		if err != nil {
			return err
		}

		presenter.Section("Configured Sources")
		nameColor := color.New(color.FgCyan, color.Bold)
		for _, src := range list {
			line := "  " + nameColor.Sprint(src.Name)
			if src.Default {
				line += color.GreenString(" (default)")
			}
			presenter.Info(line)

			ref := src.Ref()
			location := fmt.Sprintf("%s/%s", src.Owner, src.Repo)
			if src.Path != "" {
				location += "/" + src.Path
			}
			presenter.Info(fmt.Sprintf("    → %s [%s]", location, ref.Branch))
		}
		presenter.Info("")
		presenter.Dim("Config file: " + store.Path())
		return nil
	},
}

var sourceAddCmd = &cobra.Command{
	Use:   "add <owner/repo>",
	Short: "Add a source",
	Long: `Add a GitHub repository as a skill source.

Examples:
  antikit source add acme/skills                  # Named "skills", branch main
  antikit source add acme/monorepo -p agent/skills # Skills live in a subdirectory
  antikit source add acme/skills -n team -b dev    # Custom name and branch
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, repo, err := sources.ParseRepo(args[0])
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		branch, _ := cmd.Flags().GetString("branch")
		path, _ := cmd.Flags().GetString("path")
		if name == "" {
			name = repo
		}

		store, err := cli.Sources()
		if err != nil {
			return err
		}
		src := sources.Source{Name: name, Owner: owner, Repo: repo, Branch: branch, Path: path}
		if err := store.Add(src); err != nil {
			return err
		}
		presenter.Success(fmt.Sprintf("Added source %q (%s/%s)", name, owner, repo))
		return nil
	},
}

var sourceRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a source",
	Args:    cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		store, err := cli.Sources()
		if err != nil {
			return err
		}
		if err := store.Remove(args[0]); err != nil {
			return err
		}
		presenter.Success(fmt.Sprintf("Removed source %q", args[0]))
		return nil
	},
	ValidArgsFunction: completeSourceNames,
}

var sourceDefaultCmd = &cobra.Command{
	Use:               "default <name>",
	Short:             "Set the default source",
	Long:              `Make a source the default. Skills found in several sources are installed from the default one.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSourceNames,
	RunE: func(_ *cobra.Command, args []string) error {
		store, err := cli.Sources()
		if err != nil {
			return err
		}
		if err := store.SetDefault(args[0]); err != nil {
			return err
		}
		presenter.Success(fmt.Sprintf("Default source set to %q", args[0]))
		return nil
	},
}

func init() {
	sourceAddCmd.Flags().StringP("name", "n", "", "name of the source (default: repository name)")
	sourceAddCmd.Flags().StringP("branch", "b", config.DefaultBranch, "branch to use")
	sourceAddCmd.Flags().StringP("path", "p", "", "subdirectory holding the skills")

	sourceCmd.AddCommand(sourceListCmd, sourceAddCmd, sourceRemoveCmd, sourceDefaultCmd)
}

func completeSourceNames(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	dir := os.Getenv("ANTIKIT_CONFIG_DIR")
	if dir == "" {
		var err error
		if dir, err = config.DefaultConfigDir(); err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
	}
	store, err := sources.NewStore(config.Settings{ConfigDir: dir}.SourcesFile())
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	list, err := store.List()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	names := make([]string, 0, len(list))
	for _, src := range list {
		names = append(names, src.Name)
	}
	return filterCompletions(names, nil, toComplete), cobra.ShellCompDirectiveNoFileComp
}
