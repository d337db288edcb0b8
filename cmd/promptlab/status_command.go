package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/promptlab/infrastructure/store"
	"github.com/ahrav/promptlab/internal/application"
	"github.com/ahrav/promptlab/internal/domain"
)

// storeStatus is the JSON shape of the status command's output.
type storeStatus struct {
	Records   int            `json:"records"`
	Completed int            `json:"completed"`
	Failed    int            `json:"failed"`
	ByDim     map[string]int `json:"records_by_dimension"`
}

func newStatusCommand() *cobra.Command {
	var storePath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize the live records in the result store",
		RunE: func(cmd *cobra.Command, args []string) error {
			resultStore, err := store.Open(storePath)
			if err != nil {
				return err
			}
			defer func() { _ = resultStore.Close() }()

			records, err := resultStore.All(cmd.Context())
			if err != nil {
				return err
			}

			status := storeStatus{ByDim: make(map[string]int)}
			for _, rec := range records {
				status.Records++
				status.ByDim[rec.Key.Dimension]++
				switch rec.Status {
				case domain.StatusCompleted:
					status.Completed++
				case domain.StatusFailed:
					status.Failed++
				}
			}

			out, err := json.MarshalIndent(status, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if status.Failed > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d failed records; rerun with --retry-failed to retry them\n", status.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&storePath, "store", application.DefaultStorePath, "Result database path")

	return cmd
}
