package condition

// Limit calculator bounds. A column may never be offered fewer than
// MinFragmentsPerColumn or more than MaxFragmentsPerColumn alternatives,
// regardless of the configured ceiling.
const (
	MinFragmentsPerColumn = 2
	MaxFragmentsPerColumn = 1000

	// DefaultFragmentEstimate is the assumed fragment count for columns the
	// user has not configured yet. It only shapes initial UI limits; the
	// pre-execution ceiling check is what guarantees safety.
	DefaultFragmentEstimate = 3
)

// MaxFragments computes the maximum number of fragments the column currently
// being configured may have without the total cartesian product exceeding
// ceiling. configured maps already-configured columns to their fragment
// counts; columns without an entry are estimated at defaultEstimate each.
//
// The result is always within [MinFragmentsPerColumn, MaxFragmentsPerColumn].
// Pure function; callers re-evaluate it on every configuration edit.
func MaxFragments(selectedColumns int, configured map[string]int, ceiling, defaultEstimate int) int {
	if selectedColumns <= 0 {
		return clampFragments(ceiling)
	}
	if defaultEstimate <= 0 {
		defaultEstimate = DefaultFragmentEstimate
	}

	otherProduct := 1
	if len(configured) > 0 {
		for _, count := range configured {
			if count < MinFragmentsPerColumn {
				count = MinFragmentsPerColumn
			}
			otherProduct = saturatingMul(otherProduct, count)
		}
	} else {
		for i := 0; i < selectedColumns-1; i++ {
			otherProduct = saturatingMul(otherProduct, defaultEstimate)
		}
	}

	if otherProduct < 1 {
		otherProduct = 1
	}
	return clampFragments(ceiling / otherProduct)
}

// RunningProduct returns the total combination count implied by the given
// per-column fragment counts. Saturates instead of overflowing so the result
// can always be compared against a ceiling.
func RunningProduct(counts []int) int {
	product := 1
	for _, count := range counts {
		if count <= 0 {
			return 0
		}
		product = saturatingMul(product, count)
	}
	return product
}

func clampFragments(v int) int {
	if v < MinFragmentsPerColumn {
		return MinFragmentsPerColumn
	}
	if v > MaxFragmentsPerColumn {
		return MaxFragmentsPerColumn
	}
	return v
}

// saturatingMul multiplies non-negative ints, capping at the maximum int
// value instead of wrapping.
func saturatingMul(a, b int) int {
	const maxInt = int(^uint(0) >> 1)
	if a == 0 || b == 0 {
		return 0
	}
	if a > maxInt/b {
		return maxInt
	}
	return a * b
}
