// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package casespec

import "fmt"

// Opt is an optional value: the zero Opt is unset.
//
// CaseSpec uses it for every field the builder leaves for the renderers to default.
type Opt[T any] struct {
	Value T
	Valid bool
}

// Some returns a set Opt holding v.
func Some[T any](v T) Opt[T] {
	return Opt[T]{Value: v, Valid: true}
}

// Or returns the value if set, or def otherwise.
func (o Opt[T]) Or(def T) T {
	if o.Valid {
		return o.Value
	}
	return def
}

// Get returns the value and whether it is set.
func (o Opt[T]) Get() (T, bool) {
	return o.Value, o.Valid
}

// String implements fmt.Stringer.
func (o Opt[T]) String() string {
	if !o.Valid {
		return "<unset>"
	}
	return fmt.Sprintf("%v", o.Value)
}
