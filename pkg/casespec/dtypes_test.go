// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package casespec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDTypeToGE(t *testing.T) {
	for _, name := range []string{"bf16", "BFloat16", " DT_BF16 "} {
		in, out := DTypeToGE(name)
		assert.Equal(t, DTBFloat16, in)
		assert.Equal(t, DTBFloat16, out)
	}
	for _, name := range []string{"FP16", "float16", "unknown_type", "", "int32"} {
		in, out := DTypeToGE(name)
		assert.Equal(t, "DT_FLOAT16", in, "DTypeToGE(%q)", name)
		assert.Equal(t, "DT_FLOAT16", out, "DTypeToGE(%q)", name)
	}
}

func TestGEDType(t *testing.T) {
	for name, want := range map[string]string{
		"int32":            DTInt32,
		"FP32":             DTFloat,
		"ge::DT_INT64":     DTInt64,
		"DT_FLOAT8_E4M3FN": DTFloat8E4M3,
		"bool":             DTBool,
		"bfloat16":         DTBFloat16,
	} {
		got, found := GEDType(name)
		assert.True(t, found, name)
		assert.Equal(t, want, got, name)
	}
	_, found := GEDType("complex64")
	assert.False(t, found)
}
