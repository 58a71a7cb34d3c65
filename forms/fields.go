package forms

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

func required(errs ErrorSet, field, value, label string) bool {
	if strings.TrimSpace(value) == "" {
		errs.Add(field, label+" is required")
		return false
	}
	return true
}

// parseNumber accepts only finite decimal numbers; NaN and Inf are rejected.
func parseNumber(value string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func checkCoordinate(errs ErrorSet, field, value, label string, limit float64) {
	if !required(errs, field, value, label) {
		return
	}
	v, ok := parseNumber(value)
	if !ok {
		errs.Add(field, label+" must be a number")
		return
	}
	if v < -limit || v > limit {
		errs.Add(field, label+" must be between -"+formatNumber(limit)+" and "+formatNumber(limit))
	}
}

// checkPrice validates an optional non-negative amount; empty means zero.
func checkPrice(errs ErrorSet, field, value, label string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	v, ok := parseNumber(value)
	if !ok {
		errs.Add(field, label+" must be a number")
		return
	}
	if v < 0 {
		errs.Add(field, label+" must not be negative")
	}
}

func price(value string) float64 {
	v, _ := parseNumber(value)
	return v
}

// optionalAmount parses a fee amount; empty means "varies".
func optionalAmount(value string) *float64 {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	v, _ := parseNumber(value)
	return &v
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseLayout(layout, value string) (time.Time, bool) {
	t, err := time.Parse(layout, strings.TrimSpace(value))
	return t, err == nil
}

// toggle adds v to set when absent and removes it when present.
func toggle(set []string, v string) ([]string, bool) {
	if i := slices.Index(set, v); i >= 0 {
		return slices.Delete(slices.Clone(set), i, i+1), false
	}
	return append(slices.Clone(set), v), true
}

// toggleCompanion flips key in selected. Selecting appends exactly one
// default companion record built by def; deselecting filters out the
// companion records keyed by key and leaves every other record alone.
func toggleCompanion[T any](selected []string, companions []T, key string,
	keyOf func(T) string, def func(string) T) ([]string, []T) {

	selected, added := toggle(selected, key)
	if added {
		return selected, append(slices.Clone(companions), def(key))
	}
	kept := make([]T, 0, len(companions))
	for _, c := range companions {
		if keyOf(c) != key {
			kept = append(kept, c)
		}
	}
	return selected, kept
}

func companionKeys[T any](companions []T, keyOf func(T) string) []string {
	out := make([]string, 0, len(companions))
	for _, c := range companions {
		out = append(out, keyOf(c))
	}
	return out
}

// duplicate returns the first value that appears more than once.
func duplicate(values []string) (string, bool) {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if seen[v] {
			return v, true
		}
		seen[v] = true
	}
	return "", false
}

// sameSet reports whether a and b hold the same distinct values.
func sameSet(a, b []string) bool {
	in := func(xs []string) map[string]bool {
		m := make(map[string]bool, len(xs))
		for _, x := range xs {
			m[x] = true
		}
		return m
	}
	ma, mb := in(a), in(b)
	if len(ma) != len(mb) {
		return false
	}
	for k := range ma {
		if !mb[k] {
			return false
		}
	}
	return true
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
