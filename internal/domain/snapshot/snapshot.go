// Package snapshot compares raid and egg rosters across polls.
package snapshot

import (
	"encoding/json"
	"slices"
)

// Canonical returns an order-independent representation of items: each
// element encoded to JSON, then sorted. Elements that fail to encode are
// kept as their error text so they still take part in the comparison.
func Canonical[T any](items []T) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		b, err := json.Marshal(it)
		if err != nil {
			out = append(out, "!"+err.Error())
			continue
		}
		out = append(out, string(b))
	}
	slices.Sort(out)
	return out
}

// HasChanged reports whether current differs from previous, ignoring element
// order. A nil and an empty collection are equal.
func HasChanged[T any](current, previous []T) bool {
	if len(current) != len(previous) {
		return true
	}
	return !slices.Equal(Canonical(current), Canonical(previous))
}
