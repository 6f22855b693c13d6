package vmem

import "math"

// AddOverflowSafe adds a and b, returning ok = false when the sum would wrap.
func AddOverflowSafe(a, b uintptr) (uintptr, bool) {
	if a > math.MaxUint-b {
		return 0, false
	}
	return a + b, true
}

// RoundUpSafe is RoundUp with ok = false when the result would wrap.
// align must be a power of two.
func RoundUpSafe(n, align uintptr) (uintptr, bool) {
	sum, ok := AddOverflowSafe(n, align-1)
	if !ok {
		return 0, false
	}
	return sum &^ (align - 1), true
}

// SpanSize returns the bytes needed for size bytes at page granularity plus
// extra bytes in front, or ok = false when that does not fit a uintptr.
func SpanSize(extra, size uintptr) (uintptr, bool) {
	n, ok := RoundUpSafe(size, PageSize())
	if !ok {
		return 0, false
	}
	return AddOverflowSafe(extra, n)
}
