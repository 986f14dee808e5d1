// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package casespec

import (
	"math"
	"strings"

	"github.com/gomlx/tilingut/pkg/support/sets"
)

// Row is one spreadsheet row: column name to cell value.
//
// Cell values are loosely typed: string, bool, any Go integer or float kind, nil, or (when built
// programmatically) slices of those.
type Row map[string]any

var missingSentinels = sets.MakeWith("", "nan", "none", "null")

// IsMissing returns whether v is a "no value" cell: nil, blank string, NaN or one of the
// textual sentinels "nan", "none", "null".
func IsMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return missingSentinels.Has(strings.ToLower(strings.TrimSpace(x)))
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	}
	return false
}

// Get returns the value of the first of the given columns holding a non-missing value.
// It returns nil if none does.
func (r Row) Get(columns ...string) any {
	v, _ := r.Lookup(columns...)
	return v
}

// Lookup is like Get, but also returns the name of the column that matched, or "" if none did.
func (r Row) Lookup(columns ...string) (value any, column string) {
	for _, column := range columns {
		if v, found := r[column]; found && !IsMissing(v) {
			return v, column
		}
	}
	return nil, ""
}

// Has returns whether the column is present with a non-missing value.
func (r Row) Has(column string) bool {
	v, found := r[column]
	return found && !IsMissing(v)
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}
