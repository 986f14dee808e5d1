// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xslices

import (
	"flag"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduct(t *testing.T) {
	assert.Equal(t, int64(1), Product([]int64{}))
	assert.Equal(t, int64(48), Product([]int64{2, 3, 8}))
	assert.Equal(t, 6, Product([]int{1, 2, 3}))
}

func TestSortedKeys(t *testing.T) {
	m := map[string]int{"n": 1, "k": 2, "m": 3}
	assert.Equal(t, []string{"k", "m", "n"}, SortedKeys(m))
	assert.Equal(t, "n", Last(SortedKeys(m)))
}

func TestFlag(t *testing.T) {
	fs := flag.CommandLine
	values := Flag("test_xslices_ints", []int{1}, "ints", strconv.Atoi)
	assert.Equal(t, []int{1}, *values)
	require.NoError(t, fs.Set("test_xslices_ints", "3, 5,7"))
	assert.Equal(t, []int{3, 5, 7}, *values)
	require.Error(t, fs.Set("test_xslices_ints", "3,x"))
	assert.Equal(t, []int{7}, SliceWithValue(1, 7))
}
