// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package pointer bridges optional columns and plain Go values.

Repositories store empty strings and zero times as SQL NULL, and read NULL
back as the zero value. These generic helpers keep that mapping in one place.

Key Functions:
  - NonZero: Returns nil for the zero value, a pointer otherwise.
  - Val: Safely dereferences a pointer, returning the zero value if nil.
*/
package pointer

// NonZero returns a pointer to v, or nil when v is the zero value of T.
func NonZero[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}
	return &v
}

// Val safely dereferences a pointer.
// If the pointer is nil, it returns the zero value of the underlying type.
func Val[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
