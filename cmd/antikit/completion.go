package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vunamhung/antikit/pkg/local"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate a shell completion script",
	Long: `Generate a completion script for your shell.

Examples:
  antikit completion bash > /etc/bash_completion.d/antikit
  antikit completion zsh > "${fpath[1]}/_antikit"
  antikit completion fish > ~/.config/fish/completions/antikit.fish
  antikit completion powershell | Out-String | Invoke-Expression
`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := cmd.Root()
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return root.GenBashCompletionV2(out, true)
		case "zsh":
			return root.GenZshCompletion(out)
		case "fish":
			return root.GenFishCompletion(out, true)
		case "powershell":
			return root.GenPowerShellCompletionWithDesc(out)
		}
		return errors.Errorf("unsupported shell %q", args[0])
	},
}

func isCompletionCommand(cmd *cobra.Command) bool {
	return cmd == completionCmd || strings.HasPrefix(cmd.Name(), cobra.ShellCompRequestCmd)
}

// completeInstalledSkills completes the names of installed skills not
// already on the command line.
func completeInstalledSkills(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	rel := viper.GetString("skills_dir")
	if rel == "" {
		rel = os.Getenv("ANTIKIT_SKILLS_DIR")
	}
	inv, err := local.NewInventory(local.WithSkillsDirName(rel))
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	names, err := inv.Names()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	return filterCompletions(names, args, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func filterCompletions(names, used []string, prefix string) []string {
	seen := make(map[string]bool, len(used))
	for _, u := range used {
		seen[u] = true
	}
	var out []string
	for _, n := range names {
		if !seen[n] && strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	return out
}
