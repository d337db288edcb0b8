package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ahrav/promptlab/infrastructure/store"
	"github.com/ahrav/promptlab/internal/application"
)

func newExportCommand() *cobra.Command {
	var (
		storePath string
		outPath   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export live evaluation records as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			resultStore, err := store.Open(storePath)
			if err != nil {
				return err
			}
			defer func() { _ = resultStore.Close() }()

			out := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("creating export file: %w", err)
				}
				defer func() { _ = f.Close() }()
				out = f
			}

			return resultStore.ExportCSV(cmd.Context(), out)
		},
	}

	cmd.Flags().StringVar(&storePath, "store", application.DefaultStorePath, "Result database path")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")

	return cmd
}
