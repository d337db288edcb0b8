// Package domain defines the immutable value types shared across the
// evaluation engine: prompt-section combinations, behavioral dimensions,
// work units, and the persisted evaluation records they produce.
package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// EmptyCombinationKey is the deterministic identifier of the combination
// containing no sections. The empty combination is a valid member of the
// universe and serves as the lower baseline for delta analysis.
const EmptyCombinationKey = "empty"

// Combination is a subset of prompt-section indices. The concatenation of the
// selected sections, in section-list order, forms one candidate system prompt.
// A Combination is a value type: it is never mutated after construction and
// its identity is fully determined by Key.
type Combination struct {
	// indices are the selected section positions, sorted ascending and
	// deduplicated at construction time.
	indices []int
}

// NewCombination builds a Combination from the given section indices.
// Duplicate indices are collapsed and negative indices are rejected.
func NewCombination(indices ...int) (Combination, error) {
	seen := make(map[int]struct{}, len(indices))
	sorted := make([]int, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 {
			return Combination{}, fmt.Errorf("section index must be non-negative, got %d", idx)
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		sorted = append(sorted, idx)
	}
	sort.Ints(sorted)
	return Combination{indices: sorted}, nil
}

// FullCombination returns the combination selecting every section of an
// n-section prompt. This is the baseline against which ablations are compared.
func FullCombination(n int) Combination {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return Combination{indices: indices}
}

// Indices returns a copy of the selected section indices in ascending order.
func (c Combination) Indices() []int {
	out := make([]int, len(c.indices))
	copy(out, c.indices)
	return out
}

// Size returns the number of sections selected by this combination.
func (c Combination) Size() int { return len(c.indices) }

// IsEmpty reports whether the combination selects no sections.
func (c Combination) IsEmpty() bool { return len(c.indices) == 0 }

// Key returns the deterministic string identity of the combination,
// e.g. "0+2+5" for sections zero, two, and five. The empty combination
// encodes as EmptyCombinationKey. Keys are stable across runs and are the
// combination component of the store's idempotency key.
func (c Combination) Key() string {
	if len(c.indices) == 0 {
		return EmptyCombinationKey
	}
	parts := make([]string, len(c.indices))
	for i, idx := range c.indices {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, "+")
}

// String implements fmt.Stringer using the combination key.
func (c Combination) String() string { return c.Key() }

// ParseCombinationKey reconstructs a Combination from its Key encoding.
// It is the inverse of Key for every valid combination.
func ParseCombinationKey(key string) (Combination, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Combination{}, fmt.Errorf("combination key cannot be empty")
	}
	if key == EmptyCombinationKey {
		return Combination{}, nil
	}

	parts := strings.Split(key, "+")
	indices := make([]int, 0, len(parts))
	for _, part := range parts {
		idx, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return Combination{}, fmt.Errorf("invalid combination key %q: %w", key, err)
		}
		indices = append(indices, idx)
	}
	return NewCombination(indices...)
}

// Assemble concatenates the selected sections, in section-list order,
// into one candidate system prompt. Sections are joined with a blank line.
// Indices beyond the section list are an error: a combination is only
// meaningful relative to the section list it was generated from.
func (c Combination) Assemble(sections []string) (string, error) {
	var b strings.Builder
	for i, idx := range c.indices {
		if idx >= len(sections) {
			return "", fmt.Errorf("combination %s references section %d but only %d sections exist",
				c.Key(), idx, len(sections))
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(sections[idx])
	}
	return b.String(), nil
}
