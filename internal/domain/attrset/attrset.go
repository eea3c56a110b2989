// Package attrset implements checkbox-style multi-select fields. It knows
// nothing about what the values mean; vocabularies are enforced by callers.
package attrset

import "slices"

// Toggle returns a new set with value included or excluded. Including a
// present value and excluding an absent one are both no-ops. Insertion order
// is preserved and the input slice is never modified.
func Toggle[T comparable](set []T, value T, included bool) []T {
	idx := slices.Index(set, value)

	if included {
		if idx >= 0 {
			return clone(set)
		}
		out := make([]T, 0, len(set)+1)
		out = append(out, set...)
		return append(out, value)
	}

	if idx < 0 {
		return clone(set)
	}
	out := make([]T, 0, len(set)-1)
	for _, v := range set {
		if v != value {
			out = append(out, v)
		}
	}
	return out
}

// Contains reports whether value is in set.
func Contains[T comparable](set []T, value T) bool {
	return slices.Contains(set, value)
}

func clone[T comparable](set []T) []T {
	return append(make([]T, 0, len(set)), set...)
}
