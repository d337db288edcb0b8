// Command promptlab runs batch ablation evaluations of prompt-section
// combinations against a remote model and manages the resulting record store.
package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var devLog bool

	rootCmd := &cobra.Command{
		Use:           "promptlab",
		Short:         "Batch prompt-section ablation evaluation",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVar(&devLog, "dev-log", false, "Human-readable console logging")

	rootCmd.AddCommand(newRunCommand(&devLog))
	rootCmd.AddCommand(newExportCommand())
	rootCmd.AddCommand(newStatusCommand())

	return rootCmd
}
