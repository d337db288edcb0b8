package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkUnit_KeyMatchesRecordIdentity(t *testing.T) {
	// Given a work unit
	combo, err := NewCombination(0, 2)
	require.NoError(t, err)
	unit := WorkUnit{
		Combination: combo,
		Query:       "What is the refund policy?",
		Dimension:   Dimension{Name: "helpfulness", Kind: KindScale},
	}

	// When deriving its key
	key := unit.Key()

	// Then the key carries the combination encoding, query, and dimension name
	assert.Equal(t, "0+2", key.Combination)
	assert.Equal(t, "What is the refund policy?", key.Query)
	assert.Equal(t, "helpfulness", key.Dimension)
}

func TestResponseExcerpt_TruncatesLongResponses(t *testing.T) {
	rec := EvaluationRecord{Response: strings.Repeat("x", 600)}

	excerpt := rec.ResponseExcerpt(500)

	assert.Len(t, excerpt, 503, "500 runes plus ellipsis")
	assert.True(t, strings.HasSuffix(excerpt, "..."))
}

func TestResponseExcerpt_ShortResponsesPassThrough(t *testing.T) {
	rec := EvaluationRecord{Response: "short"}
	assert.Equal(t, "short", rec.ResponseExcerpt(500))
}

func TestSummary_TotalAccountsForEveryUnit(t *testing.T) {
	s := Summary{Completed: 3, Skipped: 2, Failed: 1}
	assert.Equal(t, 6, s.Total())
	assert.Equal(t, "completed=3 skipped=2 failed=1", s.String())
}
