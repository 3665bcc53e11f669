package main

import (
	"github.com/spf13/cobra"

	"github.com/jingkaihe/corpuscheck/pkg/report"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of the JSON report",
	Long:  `Print the JSON Schema describing the report written by --json and --format json.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		data, err := report.Schema()
		if err != nil {
			fail(err, "Failed to generate report schema")
			return
		}
		cmd.OutOrStdout().Write(data)
	},
}
