package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vunamhung/antikit/pkg/presenter"
	"github.com/vunamhung/antikit/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Long:  `Print the version information of antikit in JSON format.`,
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		info := version.Get()
		json, err := info.JSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(presenter.Writer(), json)
		return nil
	},
}
