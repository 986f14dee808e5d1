// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package casespec

import (
	"maps"
	"slices"
	"strings"
)

// Data type literals, without the "ge::" namespace.
const (
	DTFloat16    = "DT_FLOAT16"
	DTBFloat16   = "DT_BF16"
	DTFloat      = "DT_FLOAT"
	DTDouble     = "DT_DOUBLE"
	DTInt8       = "DT_INT8"
	DTInt16      = "DT_INT16"
	DTInt32      = "DT_INT32"
	DTInt64      = "DT_INT64"
	DTUint8      = "DT_UINT8"
	DTBool       = "DT_BOOL"
	DTFloat8E4M3 = "DT_FLOAT8_E4M3FN"
	DTFloat8E5M2 = "DT_FLOAT8_E5M2"
	DTHiFloat8   = "DT_HIFLOAT8"
)

// DefaultDType is used when a row names no dtype at all.
const DefaultDType = "float16"

// DTypeToGE maps a dtype name to its (input, output) literal pair. Only the bf16 and fp16
// families are recognized; anything else silently maps to (DT_FLOAT16, DT_FLOAT16).
func DTypeToGE(dtype string) (in, out string) {
	switch strings.ToLower(strings.TrimSpace(dtype)) {
	case "bf16", "bfloat16", "dt_bf16":
		return DTBFloat16, DTBFloat16
	case "float16", "fp16", "dt_float16":
		return DTFloat16, DTFloat16
	}
	return DTFloat16, DTFloat16
}

// MapOfNames maps lower-case dtype spellings to literals.
// It backs GEDType, used for explicit per-tensor dtype columns.
var MapOfNames = map[string]string{
	"float16":       DTFloat16,
	"fp16":          DTFloat16,
	"half":          DTFloat16,
	"bf16":          DTBFloat16,
	"bfloat16":      DTBFloat16,
	"float32":       DTFloat,
	"fp32":          DTFloat,
	"float":         DTFloat,
	"float64":       DTDouble,
	"double":        DTDouble,
	"int8":          DTInt8,
	"int16":         DTInt16,
	"int32":         DTInt32,
	"int64":         DTInt64,
	"uint8":         DTUint8,
	"bool":          DTBool,
	"float8_e4m3fn": DTFloat8E4M3,
	"fp8_e4m3":      DTFloat8E4M3,
	"float8_e5m2":   DTFloat8E5M2,
	"fp8_e5m2":      DTFloat8E5M2,
	"hifloat8":      DTHiFloat8,
}

func init() {
	// Accept the literals themselves, with or without the "ge::" prefix.
	for _, literal := range slices.Collect(maps.Values(MapOfNames)) {
		MapOfNames[strings.ToLower(literal)] = literal
	}
}

// GEDType maps a dtype name ("bf16", "int32", "DT_FLOAT", "ge::DT_INT64", ...) to its literal.
// It returns false for unknown names.
func GEDType(name string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.TrimPrefix(key, "ge::")
	literal, found := MapOfNames[key]
	return literal, found
}
