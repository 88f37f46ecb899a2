// Package commands implements the ociadapt command line tool: a placeholder
// rewriter for SQL files and a statement runner for quick checks against a
// configured database.
package commands

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "ociadapt",
	Short:         "Rewrite positional SQL placeholders and run statements through the adapter",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "ociadapt.yaml", "connection profiles file")
	rootCmd.AddCommand(rewriteCmd)
	rootCmd.AddCommand(execCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
