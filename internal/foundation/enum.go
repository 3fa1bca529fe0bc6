// Package foundation holds small generic helpers shared by configuration and
// compiler option parsing.
package foundation

import (
	"fmt"
	"sort"
	"strings"
)

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Normalizer maps user-supplied strings onto a closed set of values.
type Normalizer[T comparable] struct {
	name         string
	validValues  map[string]T
	validKeys    []string
	defaultValue T
}

// NewNormalizer creates a normalizer for the enum called name. Keys are
// matched case-insensitively after trimming whitespace.
func NewNormalizer[T comparable](name string, values map[string]T, defaultValue T) *Normalizer[T] {
	normalized := make(map[string]T, len(values))
	keys := make([]string, 0, len(values))
	for k, v := range values {
		nk := normalizeKey(k)
		normalized[nk] = v
		keys = append(keys, nk)
	}
	sort.Strings(keys)

	return &Normalizer[T]{
		name:         name,
		validValues:  normalized,
		validKeys:    keys,
		defaultValue: defaultValue,
	}
}

// Normalize returns the value for raw, or the default when raw is empty or
// not recognized.
func (n *Normalizer[T]) Normalize(raw string) T {
	if value, ok := n.validValues[normalizeKey(raw)]; ok {
		return value
	}
	return n.defaultValue
}

// NormalizeWithError returns the value for raw. An empty input yields the
// default; an unknown input is an error listing the accepted values.
func (n *Normalizer[T]) NormalizeWithError(raw string) (T, error) {
	cleaned := normalizeKey(raw)
	if cleaned == "" {
		return n.defaultValue, nil
	}
	if value, ok := n.validValues[cleaned]; ok {
		return value, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q (valid: %s)", n.name, raw, strings.Join(n.validKeys, ", "))
}

// Values returns the accepted keys in sorted order.
func (n *Normalizer[T]) Values() []string {
	return append([]string(nil), n.validKeys...)
}
