package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ExcerptLength bounds the response text carried in the tabular export.
// The full response stays in the database; the export is for dashboards.
const ExcerptLength = 500

// ExportCSV writes every live record as one tabular row. This file is the
// sole downstream contract: the dashboard reads it and never writes back.
// Columns: combination, query, dimension, score_or_bool, response_excerpt,
// status, timestamp.
func (s *SQLiteStore) ExportCSV(ctx context.Context, w io.Writer) error {
	records, err := s.All(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{
		"combination", "query", "dimension",
		"score_or_bool", "response_excerpt", "status", "timestamp",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, rec := range records {
		row := []string{
			rec.Key.Combination,
			rec.Key.Query,
			rec.Key.Dimension,
			strconv.Itoa(rec.Judgment.Score),
			rec.ResponseExcerpt(ExcerptLength),
			string(rec.Status),
			rec.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
