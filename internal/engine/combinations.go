// Package engine implements the batch combination-evaluation core: lazy
// combination generation, the bounded-concurrency scheduler with uniform
// retry policy, the LLM-as-judge scoring pipeline, and the orchestrator that
// ties them to the durable result store.
package engine

import (
	"fmt"
	"iter"
	"math/rand/v2"

	"github.com/ahrav/promptlab/internal/domain"
	"github.com/ahrav/promptlab/internal/ports"
)

// PolicyType selects how section combinations are enumerated.
type PolicyType string

const (
	// PolicyPowerset enumerates all 2^n subsets, ordered by subset size then
	// lexicographically, empty set first and full set last.
	PolicyPowerset PolicyType = "powerset"
	// PolicySample draws a deterministic pseudo-random sample of distinct
	// subsets, reproducible given the seed.
	PolicySample PolicyType = "sample"
	// PolicyExplicit evaluates a caller-supplied list of combinations.
	PolicyExplicit PolicyType = "explicit"
)

// DefaultMaxSections caps powerset enumeration. 2^20 subsets is already past
// the practical limit of an ablation run; anything above it is rejected
// before a single remote call is made.
const DefaultMaxSections = 20

// Sampling uses 64-bit subset masks.
const maxSampleSections = 63

// Policy configures combination generation.
type Policy struct {
	// Type selects the enumeration strategy.
	Type PolicyType

	// SampleSize is the number of distinct subsets for PolicySample.
	SampleSize int

	// Seed makes PolicySample reproducible: the same seed yields the same
	// subsets in the same order.
	Seed uint64

	// Explicit lists the combinations for PolicyExplicit.
	Explicit []domain.Combination

	// MaxSections overrides the powerset ceiling; zero means
	// DefaultMaxSections.
	MaxSections int
}

func (p Policy) ceiling() int {
	if p.MaxSections > 0 {
		return p.MaxSections
	}
	return DefaultMaxSections
}

// Combinations returns the lazy, restartable sequence of combinations for n
// sections under the given policy. Re-ranging the sequence reproduces the
// identical order, so callers can make multiple passes without materializing
// the universe. Every policy yields the full-set baseline and the empty
// combination, enabling delta-vs-baseline analysis downstream.
func Combinations(n int, policy Policy) (iter.Seq[domain.Combination], error) {
	if n < 0 {
		return nil, fmt.Errorf("section count must be non-negative, got %d", n)
	}

	switch policy.Type {
	case PolicyPowerset:
		if n > policy.ceiling() {
			return nil, fmt.Errorf("%w: %d sections would produce 2^%d combinations (ceiling %d sections)",
				ports.ErrTooManyCombinations, n, n, policy.ceiling())
		}
		return powersetSeq(n), nil

	case PolicySample:
		if n > maxSampleSections {
			return nil, fmt.Errorf("%w: sampling supports at most %d sections, got %d",
				ports.ErrTooManyCombinations, maxSampleSections, n)
		}
		if policy.SampleSize < 1 {
			return nil, fmt.Errorf("sample size must be positive, got %d", policy.SampleSize)
		}
		return sampleSeq(n, policy.SampleSize, policy.Seed), nil

	case PolicyExplicit:
		if len(policy.Explicit) == 0 {
			return nil, fmt.Errorf("explicit policy requires at least one combination")
		}
		for _, c := range policy.Explicit {
			for _, idx := range c.Indices() {
				if idx >= n {
					return nil, fmt.Errorf("explicit combination %s references section %d but only %d sections exist",
						c.Key(), idx, n)
				}
			}
		}
		return explicitSeq(n, policy.Explicit), nil

	default:
		return nil, fmt.Errorf("unknown combination policy %q", policy.Type)
	}
}

// CombinationCount returns how many combinations the policy will yield,
// without enumerating the powerset.
func CombinationCount(n int, policy Policy) (int, error) {
	switch policy.Type {
	case PolicyPowerset:
		if n > policy.ceiling() {
			return 0, fmt.Errorf("%w: %d sections (ceiling %d)",
				ports.ErrTooManyCombinations, n, policy.ceiling())
		}
		return 1 << n, nil
	default:
		seq, err := Combinations(n, policy)
		if err != nil {
			return 0, err
		}
		count := 0
		for range seq {
			count++
		}
		return count, nil
	}
}

// powersetSeq yields subsets by size then lexicographically: the empty
// combination first, all singletons next, the full set last.
func powersetSeq(n int) iter.Seq[domain.Combination] {
	return func(yield func(domain.Combination) bool) {
		for size := 0; size <= n; size++ {
			if !yieldCombinationsOfSize(n, size, yield) {
				return
			}
		}
	}
}

// yieldCombinationsOfSize enumerates size-r subsets of {0..n-1} in
// lexicographic order using the standard odometer walk.
func yieldCombinationsOfSize(n, r int, yield func(domain.Combination) bool) bool {
	if r == 0 {
		return yield(domain.Combination{})
	}

	indices := make([]int, r)
	for i := range indices {
		indices[i] = i
	}

	for {
		combo, _ := domain.NewCombination(indices...)
		if !yield(combo) {
			return false
		}

		// Advance the rightmost index that still has headroom.
		i := r - 1
		for i >= 0 && indices[i] == n-r+i {
			i--
		}
		if i < 0 {
			return true
		}
		indices[i]++
		for j := i + 1; j < r; j++ {
			indices[j] = indices[j-1] + 1
		}
	}
}

// sampleSeq yields the full and empty combinations followed by up to k-2
// additional distinct subsets drawn from a PCG stream seeded deterministically.
// The full-set baseline comes first so it survives even a sample of one.
// Rebuilding the sequence with the same seed reproduces the same order.
func sampleSeq(n, k int, seed uint64) iter.Seq[domain.Combination] {
	return func(yield func(domain.Combination) bool) {
		universe := uint64(1) << n
		if uint64(k) > universe {
			k = int(universe)
		}

		rng := rand.New(rand.NewPCG(seed, seed+1))
		fullMask := universe - 1

		seen := map[uint64]struct{}{fullMask: {}, 0: {}}
		masks := []uint64{fullMask, 0}
		for len(masks) < k && uint64(len(masks)) < universe {
			mask := rng.Uint64N(universe)
			if _, dup := seen[mask]; dup {
				continue
			}
			seen[mask] = struct{}{}
			masks = append(masks, mask)
		}
		if k < len(masks) {
			masks = masks[:k]
		}

		for _, mask := range masks {
			if !yield(maskToCombination(mask, n)) {
				return
			}
		}
	}
}

// explicitSeq yields the caller's list augmented with the full-set baseline
// and empty combination when the list omits them.
func explicitSeq(n int, explicit []domain.Combination) iter.Seq[domain.Combination] {
	return func(yield func(domain.Combination) bool) {
		full := domain.FullCombination(n)
		ordered := make([]domain.Combination, 0, len(explicit)+2)
		seen := make(map[string]struct{}, len(explicit)+2)

		for _, c := range []domain.Combination{full, {}} {
			ordered = append(ordered, c)
			seen[c.Key()] = struct{}{}
		}
		for _, c := range explicit {
			if _, dup := seen[c.Key()]; dup {
				continue
			}
			seen[c.Key()] = struct{}{}
			ordered = append(ordered, c)
		}

		for _, c := range ordered {
			if !yield(c) {
				return
			}
		}
	}
}

func maskToCombination(mask uint64, n int) domain.Combination {
	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if mask&(1<<uint(i)) != 0 {
			indices = append(indices, i)
		}
	}
	combo, _ := domain.NewCombination(indices...)
	return combo
}
