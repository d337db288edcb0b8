package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/promptlab/internal/domain"
	"github.com/ahrav/promptlab/internal/ports"
)

func collect(t *testing.T, n int, policy Policy) []domain.Combination {
	t.Helper()
	seq, err := Combinations(n, policy)
	require.NoError(t, err)
	var out []domain.Combination
	for c := range seq {
		out = append(out, c)
	}
	return out
}

func TestPowerset_YieldsAllSubsets(t *testing.T) {
	// Given a four-section prompt
	combos := collect(t, 4, Policy{Type: PolicyPowerset})

	// Then the powerset has 2^4 members with no duplicates
	require.Len(t, combos, 16)
	seen := make(map[string]struct{}, len(combos))
	for _, c := range combos {
		_, dup := seen[c.Key()]
		assert.False(t, dup, "duplicate combination %s", c.Key())
		seen[c.Key()] = struct{}{}
	}

	// And the empty combination comes first, the full set last
	assert.True(t, combos[0].IsEmpty())
	assert.Equal(t, "0+1+2+3", combos[len(combos)-1].Key())
}

func TestPowerset_OrderedBySizeThenLexicographically(t *testing.T) {
	combos := collect(t, 3, Policy{Type: PolicyPowerset})

	keys := make([]string, len(combos))
	for i, c := range combos {
		keys[i] = c.Key()
	}
	assert.Equal(t, []string{"empty", "0", "1", "2", "0+1", "0+2", "1+2", "0+1+2"}, keys)
}

func TestPowerset_Restartable(t *testing.T) {
	// Given a generated sequence
	seq, err := Combinations(3, Policy{Type: PolicyPowerset})
	require.NoError(t, err)

	// When ranging it twice
	first := make([]string, 0, 8)
	for c := range seq {
		first = append(first, c.Key())
	}
	second := make([]string, 0, 8)
	for c := range seq {
		second = append(second, c.Key())
	}

	// Then both passes see the identical order
	assert.Equal(t, first, second)
}

func TestPowerset_RejectsSectionCountsAboveCeiling(t *testing.T) {
	_, err := Combinations(21, Policy{Type: PolicyPowerset})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrTooManyCombinations))
}

func TestPowerset_CeilingOverride(t *testing.T) {
	_, err := Combinations(6, Policy{Type: PolicyPowerset, MaxSections: 5})
	assert.True(t, errors.Is(err, ports.ErrTooManyCombinations))

	_, err = Combinations(5, Policy{Type: PolicyPowerset, MaxSections: 5})
	assert.NoError(t, err)
}

func TestSample_DeterministicForSeed(t *testing.T) {
	// Given the same seed twice
	policy := Policy{Type: PolicySample, SampleSize: 10, Seed: 42}
	first := collect(t, 8, policy)
	second := collect(t, 8, policy)

	// Then both draws are identical
	require.Len(t, first, 10)
	for i := range first {
		assert.Equal(t, first[i].Key(), second[i].Key())
	}

	// And a different seed draws a different sample
	other := collect(t, 8, Policy{Type: PolicySample, SampleSize: 10, Seed: 43})
	different := false
	for i := range first {
		if first[i].Key() != other[i].Key() {
			different = true
			break
		}
	}
	assert.True(t, different, "seeds 42 and 43 should not draw the same sample")
}

func TestSample_AlwaysIncludesEmptyAndFullBaselines(t *testing.T) {
	combos := collect(t, 6, Policy{Type: PolicySample, SampleSize: 5, Seed: 1})

	keys := make(map[string]struct{}, len(combos))
	for _, c := range combos {
		keys[c.Key()] = struct{}{}
	}
	assert.Contains(t, keys, domain.EmptyCombinationKey)
	assert.Contains(t, keys, domain.FullCombination(6).Key())
}

func TestSample_SizeOneKeepsFullBaseline(t *testing.T) {
	// Given the smallest permitted sample
	combos := collect(t, 3, Policy{Type: PolicySample, SampleSize: 1, Seed: 9})

	// Then the single survivor is the full-set baseline
	require.Len(t, combos, 1)
	assert.Equal(t, domain.FullCombination(3).Key(), combos[0].Key())
}

func TestSample_CapsAtUniverseSize(t *testing.T) {
	// Given a sample size larger than 2^n
	combos := collect(t, 2, Policy{Type: PolicySample, SampleSize: 100, Seed: 7})

	assert.Len(t, combos, 4)
}

func TestExplicit_AugmentsWithBaselines(t *testing.T) {
	// Given an explicit list missing the baselines
	combo, err := domain.NewCombination(1)
	require.NoError(t, err)
	combos := collect(t, 3, Policy{Type: PolicyExplicit, Explicit: []domain.Combination{combo}})

	// Then the full and empty combinations are prepended
	keys := make([]string, len(combos))
	for i, c := range combos {
		keys[i] = c.Key()
	}
	assert.Equal(t, []string{"0+1+2", "empty", "1"}, keys)
}

func TestExplicit_RejectsOutOfRangeIndices(t *testing.T) {
	combo, err := domain.NewCombination(5)
	require.NoError(t, err)

	_, err = Combinations(3, Policy{Type: PolicyExplicit, Explicit: []domain.Combination{combo}})
	require.Error(t, err)
}

func TestCombinationCount_PowersetWithoutEnumeration(t *testing.T) {
	count, err := CombinationCount(10, Policy{Type: PolicyPowerset})
	require.NoError(t, err)
	assert.Equal(t, 1024, count)
}

func TestCombinationCount_SampleAndExplicit(t *testing.T) {
	count, err := CombinationCount(6, Policy{Type: PolicySample, SampleSize: 5, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	combo, err := domain.NewCombination(1)
	require.NoError(t, err)
	count, err = CombinationCount(3, Policy{Type: PolicyExplicit, Explicit: []domain.Combination{combo}})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestCombinations_UnknownPolicyRejected(t *testing.T) {
	_, err := Combinations(3, Policy{Type: "mystery"})
	require.Error(t, err)
}
