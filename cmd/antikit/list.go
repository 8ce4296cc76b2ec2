package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vunamhung/antikit/pkg/apperr"
	"github.com/vunamhung/antikit/pkg/catalog"
	"github.com/vunamhung/antikit/pkg/installer"
	"github.com/vunamhung/antikit/pkg/local"
	"github.com/vunamhung/antikit/pkg/logger"
	"github.com/vunamhung/antikit/pkg/osutil"
	"github.com/vunamhung/antikit/pkg/presenter"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List skills available in the configured sources",
	Long: `List the skills available in the configured sources, grouped by source.
Installed skills are marked with a check.

The search query matches skill names case-insensitively. A query containing
*, ? or [ is matched as a glob pattern, anything else as a substring.

Examples:
  antikit list                    # List every skill
  antikit list --search react     # Names containing "react"
  antikit list --search 'go-*'    # Names matching a glob
  antikit list --source team      # Only skills from the "team" source
  antikit list -i                 # Pick skills to install
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		search, _ := cmd.Flags().GetString("search")
		source, _ := cmd.Flags().GetString("source")
		interactive, _ := cmd.Flags().GetBool("interactive")
		refresh, _ := cmd.Flags().GetBool("refresh")

		match, err := newNameMatcher(search)
		if err != nil {
			return err
		}

		cat, err := cli.Catalog(ctx, refresh)
		if err != nil {
			return err
		}
		inv, err := cli.Inventory()
		if err != nil {
			return err
		}

		if source != "" {
			presenter.Info(fmt.Sprintf("Fetching skills from %s...", source))
		} else {
			presenter.Info("Fetching skills from all sources...")
		}
		all, err := cat.Fetch(ctx, source)
		if err != nil {
			return err
		}

		var found []catalog.RemoteSkill
		for _, s := range all {
			if match(s.Name) {
				found = append(found, s)
			}
		}
		presenter.Success(fmt.Sprintf("Found %s", plural(len(found), "skill")))

		if len(found) == 0 {
			presenter.Warning("No skills found.")
			return nil
		}

		describe(ctx, cat, found, cli.settings.Concurrency)
		listed := markInstalled(found, inv)

		if interactive {
			if !osutil.IsInteractive() {
				return apperr.New(apperr.InvalidInput, "Interactive mode needs a terminal.")
			}
			return interactiveInstall(ctx, cat, listed)
		}

		printCatalog(listed)
		return nil
	},
}

func init() {
	listCmd.Flags().StringP("search", "s", "", "filter skills by name (substring or glob)")
	listCmd.Flags().String("source", "", "only list skills from this source")
	listCmd.Flags().BoolP("interactive", "i", false, "select skills to install")
	listCmd.Flags().Bool("refresh", false, "ignore cached source listings")
}

type listedSkill struct {
	catalog.RemoteSkill
	Installed bool
}

// newNameMatcher returns a case-insensitive predicate for skill names. An
// empty query matches everything.
func newNameMatcher(query string) (func(string) bool, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return func(string) bool { return true }, nil
	}
	if !strings.ContainsAny(query, "*?[") {
		return func(name string) bool {
			return strings.Contains(strings.ToLower(name), query)
		}, nil
	}

	g, err := glob.Compile(query)
	if err != nil {
		return nil, apperr.New(apperr.InvalidInput, fmt.Sprintf("Invalid search pattern %q: %v", query, err)).WithCause(err)
	}
	return func(name string) bool {
		return g.Match(strings.ToLower(name))
	}, nil
}

// describe fills in descriptions the listing did not carry by reading each
// skill's SKILL.md. Failures leave the description empty.
func describe(ctx context.Context, cat *catalog.Catalog, list []catalog.RemoteSkill, concurrency int) {
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i := range list {
		if list[i].Description != "" {
			continue
		}
		g.Go(func() error {
			ref := list[i].Ref()
			info, err := cat.FetchSkillInfo(ctx, list[i].Name, &ref)
			if err != nil {
				logger.G(ctx).WithError(err).WithField("skill", list[i].Name).Debug("failed to fetch skill description")
				return nil
			}
			if info != nil {
				list[i].Description = info.Description
				if list[i].Version == "" {
					list[i].Version = info.Version
				}
			}
			return nil
		})
	}
	g.Wait()
}

func markInstalled(list []catalog.RemoteSkill, inv *local.Inventory) []listedSkill {
	out := make([]listedSkill, 0, len(list))
	for _, s := range list {
		out = append(out, listedSkill{RemoteSkill: s, Installed: inv.Exists(s.Name)})
	}
	return out
}

type sourceGroup struct {
	Source string
	Skills []listedSkill
}

// groupBySource groups skills by source, keeping the order in which sources
// first appear.
func groupBySource(list []listedSkill) []sourceGroup {
	var groups []sourceGroup
	index := map[string]int{}
	for _, s := range list {
		name := s.Source
		if name == "" {
			name = "unknown"
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, sourceGroup{Source: name})
		}
		groups[i].Skills = append(groups[i].Skills, s)
	}
	return groups
}

func printCatalog(list []listedSkill) {
	presenter.Section("Available Skills")

	sourceColor := color.New(color.FgMagenta, color.Bold)
	nameColor := color.New(color.FgCyan, color.Bold)
	for _, group := range groupBySource(list) {
		presenter.Info("")
		presenter.Info(sourceColor.Sprintf("📦 %s", group.Source))
		for _, s := range group.Skills {
			marker := "  "
			if s.Installed {
				marker = color.GreenString(" ✓")
			}
			presenter.Info(fmt.Sprintf("%s %s", marker, nameColor.Sprint(s.Name)))
			if s.Description != "" {
				presenter.Dim("     " + s.Description)
			}
		}
	}

	presenter.Info("")
	presenter.Dim("Use 'antikit list -i' to select and install skills")
}

func interactiveInstall(ctx context.Context, cat *catalog.Catalog, list []listedSkill) error {
	var choices []presenter.Choice
	byKey := map[string]listedSkill{}
	for _, s := range list {
		if s.Installed {
			continue
		}
		key := s.Source + "/" + s.Name
		label := fmt.Sprintf("%s [%s]", s.Name, s.Source)
		if s.Description != "" {
			label += " - " + truncate(s.Description, 50)
		}
		choices = append(choices, presenter.Choice{Label: label, Value: key})
		byKey[key] = s
	}
	if len(choices) == 0 {
		presenter.Success("All listed skills are already installed.")
		return nil
	}

	selected, err := presenter.MultiSelect("Select skills to install (space to select, enter to confirm)", choices)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		presenter.Warning("No skills selected.")
		return nil
	}

	ok, err := presenter.Confirm(fmt.Sprintf("Install %s?", plural(len(selected), "skill")), true)
	if err != nil {
		return err
	}
	if !ok {
		presenter.Warning("Installation cancelled.")
		return nil
	}

	inst, err := cli.Installer(ctx, cat)
	if err != nil {
		return err
	}

	installed := 0
	var failed []string
	for _, key := range selected {
		s := byKey[key]
		ref := s.Ref()
		if err := installOne(ctx, inst, installer.Request{Name: s.Name, Ref: &ref}); err != nil {
			presenter.Error(err, fmt.Sprintf("Failed to install %s", s.Name))
			failed = append(failed, s.Name)
			continue
		}
		installed++
	}

	presenter.Separator()
	if len(failed) > 0 {
		return errors.Errorf("installed %d skill(s), failed: %s", installed, strings.Join(failed, ", "))
	}
	presenter.Success(fmt.Sprintf("Installed %s", plural(installed, "skill")))
	return nil
}
