package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/corpuscheck/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Long:  `Print the version information of validate-corpus in JSON format.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		info := version.Get()
		json, err := info.JSON()
		if err != nil {
			fail(err, "Failed to format version info")
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), json)
	},
}
