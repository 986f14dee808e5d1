// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sheet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/tilingut/pkg/casespec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeXLSX(t *testing.T, sheetName string, lines [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if sheetName != "" {
		_, err := f.NewSheet(sheetName)
		require.NoError(t, err)
	} else {
		sheetName = "Sheet1"
	}
	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheetName, cell, &line))
	}
	path := filepath.Join(t.TempDir(), "params.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestLoadXLSX(t *testing.T) {
	path := writeXLSX(t, "", [][]any{
		{"test_name", "m", "k", "n", "dtype", "x1_shape", "", "ratio"},
		{"first", 1024, 2048, 4096, "bf16", nil, "ignored", 0.5},
		{nil, nil, nil, nil, nil, nil, nil, nil},
		{"second", nil, nil, nil, "fp16", "[64,7168]"},
	})
	rows, err := Load(path, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, casespec.Row{
		"test_name": "first", "m": int64(1024), "k": int64(2048), "n": int64(4096),
		"dtype": "bf16", "ratio": 0.5,
	}, rows[0])
	assert.Equal(t, casespec.Row{"test_name": "second", "dtype": "fp16", "x1_shape": "[64,7168]"}, rows[1])

	spec := casespec.FromRow(rows[1], 2)
	assert.Equal(t, casespec.Dims(64, 7168), spec.X1Shape)
}

func TestLoadXLSXNamedSheet(t *testing.T) {
	path := writeXLSX(t, "Params", [][]any{{"m"}, {8}})
	rows, err := Load(path, "Params")
	require.NoError(t, err)
	assert.Equal(t, []casespec.Row{{"m": int64(8)}}, rows)

	_, err = Load(path, "Missing")
	assert.Error(t, err)
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"test_name,m,k,n,x2_shape,expected_tiling_key\n"+
			"a,16,32,64,,110UL\n"+
			"b,1.5,NaN,8,\"[8,8]\",3\n"), 0o644))
	rows, err := Load(path, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, casespec.Row{
		"test_name": "a", "m": int64(16), "k": int64(32), "n": int64(64), "expected_tiling_key": "110UL",
	}, rows[0])
	assert.Equal(t, 1.5, rows[1]["m"])
	assert.Equal(t, "[8,8]", rows[1]["x2_shape"])
	assert.True(t, casespec.IsMissing(rows[1]["k"]))
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "params.ods"), "")
	assert.Error(t, err)
	_, err = Load(filepath.Join(t.TempDir(), "missing.xlsx"), "")
	assert.Error(t, err)
	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"), "")
	assert.Error(t, err)
}

func TestFromRecords(t *testing.T) {
	assert.Nil(t, FromRecords(nil))
	rows := FromRecords([][]string{{" m ", "  "}, {"3", "x"}, {"", ""}, {"4", "5", "extra"}})
	assert.Equal(t, []casespec.Row{{"m": int64(3)}, {"m": int64(4)}}, rows)
}

func TestUseNameColumn(t *testing.T) {
	rows := []casespec.Row{{"label": "first"}, {"m": 1}}
	require.NoError(t, UseNameColumn(rows, "label"))
	assert.Equal(t, "first", rows[0]["test_name"])
	assert.NotContains(t, rows[1], "test_name")
	assert.Error(t, UseNameColumn(rows, "no_such_column"))
}
