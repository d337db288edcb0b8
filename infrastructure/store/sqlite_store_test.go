package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/promptlab/internal/domain"
	"github.com/ahrav/promptlab/internal/ports"
)

func openTestStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func sampleRecord(comboKey, query string) domain.EvaluationRecord {
	return domain.EvaluationRecord{
		Key: domain.RecordKey{
			Combination: comboKey,
			Query:       query,
			Dimension:   "helpfulness",
		},
		Response:  "a generated response",
		Judgment:  domain.Judgment{Kind: domain.KindScale, Score: 85, Raw: "85"},
		Status:    domain.StatusCompleted,
		Attempts:  1,
		CreatedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestStore_AppendThenExists(t *testing.T) {
	// Given an empty store
	s, _ := openTestStore(t)
	ctx := context.Background()
	rec := sampleRecord("0+1", "q1")

	exists, err := s.Exists(ctx, rec.Key)
	require.NoError(t, err)
	assert.False(t, exists)

	// When appending
	require.NoError(t, s.Append(ctx, rec, false))

	// Then the key is live
	exists, err = s.Exists(ctx, rec.Key)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_AppendIsIdempotentWithoutForce(t *testing.T) {
	// Given a persisted record
	s, _ := openTestStore(t)
	ctx := context.Background()
	rec := sampleRecord("0+1", "q1")
	require.NoError(t, s.Append(ctx, rec, false))

	// When appending the same key with a different score and no force
	rec.Judgment.Score = 10
	require.NoError(t, s.Append(ctx, rec, false))

	// Then the original record is untouched
	records, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 85, records[0].Judgment.Score)
}

func TestStore_ForceSupersedesPriorRecord(t *testing.T) {
	// Given a persisted record
	s, _ := openTestStore(t)
	ctx := context.Background()
	rec := sampleRecord("0+1", "q1")
	require.NoError(t, s.Append(ctx, rec, false))

	// When force-appending a recomputed record for the same key
	rec.Judgment.Score = 40
	require.NoError(t, s.Append(ctx, rec, true))

	// Then exactly one live record remains, carrying the new score
	records, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 40, records[0].Judgment.Score)
}

func TestStore_ReopenReconstructsState(t *testing.T) {
	// Given records persisted and the store closed
	s, path := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, sampleRecord("0+1", "q1"), false))
	require.NoError(t, s.Append(ctx, sampleRecord("empty", "q2"), false))
	require.NoError(t, s.Close())

	// When reopening the same file
	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	// Then prior state is fully visible
	exists, err := reopened.Exists(ctx, sampleRecord("0+1", "q1").Key)
	require.NoError(t, err)
	assert.True(t, exists)

	records, err := reopened.All(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestStore_RoundTripsAllFields(t *testing.T) {
	// Given a boolean failure record with every field set
	s, _ := openTestStore(t)
	ctx := context.Background()
	rec := domain.EvaluationRecord{
		Key:       domain.RecordKey{Combination: "2", Query: "q", Dimension: "refuses"},
		Response:  "",
		Judgment:  domain.Judgment{Kind: domain.KindBoolean, Score: 100, Passed: true, Raw: "Y"},
		Status:    domain.StatusFailed,
		Error:     "judging call failed",
		Attempts:  4,
		CreatedAt: time.Date(2026, 8, 30, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, s.Append(ctx, rec, false))

	// When reading it back
	records, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)

	// Then every field survives
	got := records[0]
	assert.Equal(t, rec.Key, got.Key)
	assert.Equal(t, domain.KindBoolean, got.Judgment.Kind)
	assert.True(t, got.Judgment.Passed)
	assert.Equal(t, 100, got.Judgment.Score)
	assert.Equal(t, "Y", got.Judgment.Raw)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "judging call failed", got.Error)
	assert.Equal(t, 4, got.Attempts)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
}

func TestStore_CorruptedFileRefusesToOpen(t *testing.T) {
	// Given a file that is not a database
	path := filepath.Join(t.TempDir(), "garbage.db")
	require.NoError(t, os.WriteFile(path, []byte("this is not sqlite at all, not even close"), 0o644))

	// When opening
	_, err := Open(path)

	// Then the corruption is surfaced, not silently reinitialized
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrStoreCorrupted))
}

func TestExportCSV_WritesDashboardRows(t *testing.T) {
	// Given completed and failed records
	s, _ := openTestStore(t)
	ctx := context.Background()
	completed := sampleRecord("0+1", "q1")
	completed.Response = strings.Repeat("r", 600)
	require.NoError(t, s.Append(ctx, completed, false))

	failed := sampleRecord("empty", "q2")
	failed.Status = domain.StatusFailed
	failed.Judgment.Score = 0
	require.NoError(t, s.Append(ctx, failed, false))

	// When exporting
	var buf bytes.Buffer
	require.NoError(t, s.ExportCSV(ctx, &buf))

	// Then the header and one row per live record come out
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "combination,query,dimension,score_or_bool,response_excerpt,status,timestamp", lines[0])
	assert.Contains(t, lines[1], "0+1")
	assert.Contains(t, lines[1], "completed")
	assert.Contains(t, lines[2], "empty")
	assert.Contains(t, lines[2], "failed")

	// And the response is excerpted, never dumped whole
	assert.Less(t, len(lines[1]), 600)
}
