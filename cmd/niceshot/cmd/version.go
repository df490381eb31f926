package cmd

import (
	"fmt"

	"github.com/cuongbtq/niceshot/internal/pipeline"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), pipeline.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
