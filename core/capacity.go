package core

import "strconv"

// CapacityPolicy maps a session's declared configuration to its effective
// maximum member count and minimum viable group size. It must be a pure
// function: the coordinator and lifecycle manager evaluate it repeatedly
// without synchronization.
type CapacityPolicy func(cfg SessionConfig) (capacity, minSize int)

// DefaultCapacityPolicy normalizes the declared capacity to at least 1 and
// clamps the minimum viable size into [1, capacity]. A zero MinSize means
// the session is only ready at full capacity.
func DefaultCapacityPolicy(cfg SessionConfig) (int, int) {
	capacity := cfg.Capacity
	if capacity < 1 {
		capacity = 1
	}
	minSize := cfg.MinSize
	if minSize < 1 || minSize > capacity {
		minSize = capacity
	}
	return capacity, minSize
}

// NumericAttr coerces an attribute value to a float64 for ordering
// comparisons (skill ratings and similar matching attributes arrive as
// untyped store values). The second return reports whether coercion
// succeeded.
func NumericAttr(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// StringAttr coerces an attribute value to its string form for equality
// comparisons against a SessionConfig match value.
func StringAttr(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(s), true
	default:
		return "", false
	}
}
