package util

import "errors"

var (
	ErrNoElement        = errors.New("no element found")
	ErrMultipleElements = errors.New("multiple elements found")
)

// GetOne returns the single value of m. It fails with ErrNoElement or
// ErrMultipleElements otherwise.
func GetOne[K comparable, T any](m map[K]T) (T, error) {
	var zero T
	switch len(m) {
	case 0:
		return zero, ErrNoElement
	case 1:
		for _, v := range m {
			return v, nil
		}
	}
	return zero, ErrMultipleElements
}

// Filter returns the entries of m for which keep is true.
func Filter[K comparable, T any](m map[K]T, keep func(K, T) bool) map[K]T {
	out := make(map[K]T)
	for k, v := range m {
		if keep(k, v) {
			out[k] = v
		}
	}
	return out
}
