package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vunamhung/antikit/pkg/local"
	"github.com/vunamhung/antikit/pkg/presenter"
)

const (
	statsTopSkills = 5
	statsBarWidth  = 20
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show statistics about installed skills",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		inv, err := cli.Inventory()
		if err != nil {
			return err
		}
		if _, err := requireSkillsDir(inv); err != nil {
			return err
		}
		installed, err := inv.List()
		if err != nil {
			return err
		}
		store, err := cli.Sources()
		if err != nil {
			return err
		}
		srcs, err := store.List()
		if err != nil {
			return err
		}

		if len(installed) == 0 {
			presenter.Warning("No skills installed.")
			return nil
		}

		st := computeStats(installed, len(srcs))
		printStats(st)
		return nil
	},
}

type sourceCount struct {
	Name    string
	Count   int
	Percent float64
}

type skillStats struct {
	Total        int
	Sources      int
	WithMetadata int
	WithVersion  int
	BySource     []sourceCount
	Top          []*local.Skill
}

// computeStats summarizes installed skills. Skills without a recorded origin
// are counted under "local".
func computeStats(installed []*local.Skill, sourcesConfigured int) skillStats {
	st := skillStats{Total: len(installed), Sources: sourcesConfigured}

	counts := map[string]int{}
	var order []string
	for _, s := range installed {
		if s.Metadata != nil {
			st.WithMetadata++
		}
		if s.Version != "" && s.Version != local.LocalVersion {
			st.WithVersion++
		}
		name := skillSourceName(s)
		if _, ok := counts[name]; !ok {
			order = append(order, name)
		}
		counts[name]++
	}

	for _, name := range order {
		st.BySource = append(st.BySource, sourceCount{
			Name:    name,
			Count:   counts[name],
			Percent: float64(counts[name]) * 100 / float64(st.Total),
		})
	}
	sort.SliceStable(st.BySource, func(i, j int) bool {
		return st.BySource[i].Count > st.BySource[j].Count
	})

	st.Top = installed[:min(statsTopSkills, len(installed))]
	return st
}

func skillSourceName(s *local.Skill) string {
	m := s.Metadata
	switch {
	case m == nil:
		return "local"
	case m.SourceName != "":
		return m.SourceName
	case m.HasSource():
		return m.Source.Owner + "/" + m.Source.Repo
	default:
		return "local"
	}
}

func percentBar(percent float64, width int) string {
	n := int(percent/100*float64(width) + 0.5)
	n = max(0, min(n, width))
	return strings.Repeat("█", n) + strings.Repeat("░", width-n)
}

func printStats(st skillStats) {
	presenter.Section("Overview")
	presenter.Table([]string{"Metric", "Value"}, [][]string{
		{"Total skills", fmt.Sprint(st.Total)},
		{"Sources configured", fmt.Sprint(st.Sources)},
		{"Skills with metadata", fmt.Sprint(st.WithMetadata)},
	})
	presenter.Info("")

	presenter.Section("Skills by Source")
	rows := make([][]string, 0, len(st.BySource))
	for _, sc := range st.BySource {
		rows = append(rows, []string{
			sc.Name,
			fmt.Sprint(sc.Count),
			fmt.Sprintf("%.1f%%", sc.Percent),
			percentBar(sc.Percent, statsBarWidth),
		})
	}
	presenter.Table([]string{"Source", "Skills", "Share", ""}, rows)
	presenter.Info("")

	presenter.Section("Versions")
	presenter.KeyValue("With version", fmt.Sprint(st.WithVersion))
	presenter.KeyValue("Without version", fmt.Sprint(st.Total-st.WithVersion))
	presenter.Info("")

	presenter.Section(fmt.Sprintf("Top %d Skills", len(st.Top)))
	top := make([][]string, 0, len(st.Top))
	for _, s := range st.Top {
		top = append(top, []string{s.Name, s.Version, skillSourceName(s)})
	}
	presenter.Table([]string{"Skill", "Version", "Source"}, top)
}
