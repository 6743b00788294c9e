// Package utils holds small helpers for optional values.
package utils

import "strings"

func Ptr[T any](v T) *T {
	return &v
}

// Deref returns *v, or fallback when v is nil.
func Deref[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}

// StringOrNil trims s and returns nil when nothing is left.
func StringOrNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
