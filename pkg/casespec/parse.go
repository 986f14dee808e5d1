// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package casespec

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/gomlx/tilingut/pkg/support/sets"
)

// The parsers in this file are total: malformed input degrades to the default (or "not
// provided") value, they never return errors or panic.

var (
	trueStrings  = sets.MakeWith("1", "true", "t", "yes", "y")
	falseStrings = sets.MakeWith("0", "false", "f", "no", "n")

	reShapeListSep = regexp.MustCompile(`\],\s*\[`)
)

const shapeBrackets = "[](){}"

// ParseBool accepts native booleans and the case-insensitive forms "1", "true", "t", "yes", "y".
// Everything else, including "0", "false", "f", "no", "n" and nil, is false.
func ParseBool(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	}
	s := strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
	if trueStrings.Has(s) {
		return true
	}
	if falseStrings.Has(s) {
		return false
	}
	return false
}

// ParseInt accepts integers, floats (truncated toward zero), booleans and numeric strings ("12",
// "12.7"). Missing or unparsable values return def.
func ParseInt(v any, def int64) int64 {
	if i, ok := toInt(v); ok {
		return i
	}
	return def
}

// ParseOptInt is ParseInt that leaves the result unset instead of defaulting it.
func ParseOptInt(v any) Opt[int64] {
	if i, ok := toInt(v); ok {
		return Some(i)
	}
	return Opt[int64]{}
}

// ParseFloat accepts numbers and numeric strings, returning def for anything else.
func ParseFloat(v any, def float64) float64 {
	if f, ok := toFloat(v); ok {
		return f
	}
	return def
}

// ParseShape parses a 2D shape from a 2-element list, or a string like "[1024,2048]",
// "1024, 2048", "(1024,2048)" or "1024x2048". It returns nil when v is not exactly a 2D shape.
func ParseShape(v any) Shape {
	if IsMissing(v) {
		return nil
	}
	if items, ok := toList(v); ok {
		if len(items) != 2 {
			return nil
		}
		return dimsFromItems(items)
	}
	parts := splitDims(fmt.Sprint(v))
	if len(parts) != 2 {
		return nil
	}
	return dimsFromStrings(parts)
}

// ParseShape1D parses the length of a 1D shape: a scalar, "[12288]", "(12288,)" or a one
// element list.
func ParseShape1D(v any) Opt[int64] {
	if IsMissing(v) {
		return Opt[int64]{}
	}
	if items, ok := toList(v); ok {
		if len(items) != 1 {
			return Opt[int64]{}
		}
		return ParseOptInt(items[0])
	}
	s := strings.Trim(strings.TrimSpace(fmt.Sprint(v)), shapeBrackets)
	s = strings.TrimSuffix(strings.TrimSpace(s), ",")
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return Opt[int64]{}
	}
	i, ok := truncateToInt(f)
	if !ok {
		return Opt[int64]{}
	}
	return Some(i)
}

// ParseDims parses a shape of any rank ≥ 1 ("[4,7168,4096]", "4x7168x4096", "[3904]" or a
// list). It returns nil if v is missing or any dimension fails to parse.
func ParseDims(v any) Shape {
	if IsMissing(v) {
		return nil
	}
	if items, ok := toList(v); ok {
		return dimsFromItems(items)
	}
	return dimsFromStrings(splitDims(fmt.Sprint(v)))
}

// ParseShapeList parses a list of shapes like "[[512,12288],[12288,3904],[3904]]" into
// [(512,12288), (12288,3904), (3904,)]. Malformed entries are skipped.
func ParseShapeList(v any) []Shape {
	if IsMissing(v) {
		return nil
	}
	var shapes []Shape
	if items, ok := toList(v); ok {
		for _, item := range items {
			sub, ok := toList(item)
			if !ok {
				continue
			}
			if shape := dimsFromItems(sub); shape != nil {
				shapes = append(shapes, shape)
			}
		}
		return shapes
	}
	inner := strings.Trim(strings.TrimSpace(fmt.Sprint(v)), "[]")
	for _, part := range reShapeListSep.Split(inner, -1) {
		part = strings.Trim(strings.TrimSpace(part), "[]")
		if part == "" {
			continue
		}
		if shape := dimsFromStrings(splitDims(part)); shape != nil {
			shapes = append(shapes, shape)
		}
	}
	return shapes
}

// ParseDTypeList parses "[FLOAT16,FLOAT16]" or "['bf16', 'int32']" into upper-cased tokens.
func ParseDTypeList(v any) []string {
	if IsMissing(v) {
		return nil
	}
	var tokens []string
	if items, ok := toList(v); ok {
		for _, item := range items {
			tokens = append(tokens, fmt.Sprint(item))
		}
	} else {
		tokens = strings.Split(strings.Trim(strings.TrimSpace(fmt.Sprint(v)), "[]"), ",")
	}
	var dtypes []string
	for _, token := range tokens {
		token = strings.Trim(strings.TrimSpace(token), `"'`)
		if token != "" {
			dtypes = append(dtypes, strings.ToUpper(token))
		}
	}
	return dtypes
}

// ParseIntList parses "[128,128,64]" or "128, 128, 64" (or a list) into integers.
// Tokens that fail to parse are skipped.
func ParseIntList(v any) []int64 {
	if IsMissing(v) {
		return nil
	}
	var items []any
	if list, ok := toList(v); ok {
		items = list
	} else {
		for _, token := range strings.Split(strings.Trim(strings.TrimSpace(fmt.Sprint(v)), shapeBrackets), ",") {
			items = append(items, token)
		}
	}
	var values []int64
	for _, item := range items {
		if i, ok := toInt(item); ok {
			values = append(values, i)
		}
	}
	return values
}

// splitDims strips the surrounding brackets, treats 'x'/'X' as separators and returns the
// non-empty comma separated parts.
func splitDims(s string) []string {
	s = strings.Trim(strings.TrimSpace(s), shapeBrackets)
	s = strings.NewReplacer("x", ",", "X", ",").Replace(s)
	var parts []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func dimsFromStrings(parts []string) Shape {
	if len(parts) == 0 {
		return nil
	}
	shape := make(Shape, len(parts))
	for ii, part := range parts {
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil
		}
		i, ok := truncateToInt(f)
		if !ok {
			return nil
		}
		shape[ii] = i
	}
	return shape
}

func dimsFromItems(items []any) Shape {
	if len(items) == 0 {
		return nil
	}
	shape := make(Shape, len(items))
	for ii, item := range items {
		i, ok := toInt(item)
		if !ok {
			return nil
		}
		shape[ii] = i
	}
	return shape
}

// toInt converts any numeric-ish value to an int64, truncating floats.
func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case string:
		s := strings.TrimSpace(x)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	return truncateToInt(f)
}

// truncateToInt truncates f toward zero. It fails for NaN, infinities and values outside the
// int64 range: float64(math.MaxInt64) is 2^63, itself out of range.
func truncateToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// toFloat converts any numeric value or numeric string to a float64. NaN is rejected.
func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case string:
		var err error
		f, err = strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// toList returns the elements of v if it is a slice of one of the supported element types.
func toList(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []int:
		return anySlice(x), true
	case []int64:
		return anySlice(x), true
	case []float64:
		return anySlice(x), true
	case []string:
		return anySlice(x), true
	case Shape:
		return anySlice([]int64(x)), true
	case [][]int64:
		return anySlice(x), true
	case []Shape:
		return anySlice(x), true
	}
	return nil, false
}

func anySlice[T any](s []T) []any {
	out := make([]any, len(s))
	for ii, e := range s {
		out[ii] = e
	}
	return out
}
