// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package sheet loads the test-parameter spreadsheet into rows of column name -> value.
//
// The first line of the sheet is the header. Empty cells are left out of the rows, and rows
// with no values at all are dropped. Cells holding a plain integer become int64, other numbers
// become float64, everything else stays a string for the casespec parsers to interpret.
package sheet

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/gomlx/tilingut/pkg/casespec"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"k8s.io/klog/v2"
)

// Load reads the rows of the spreadsheet at path, chosen by extension: .xlsx, .xlsm (sheetName
// selects the sheet, the first one if empty) or .csv.
func Load(path, sheetName string) ([]casespec.Row, error) {
	var (
		records [][]string
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		records, err = readExcel(path, sheetName)
	case ".csv":
		records, err = readCSV(path)
	default:
		return nil, errors.Errorf("unsupported spreadsheet format %q for %q, use .xlsx, .xlsm or .csv", ext, path)
	}
	if err != nil {
		return nil, err
	}
	rows := FromRecords(records)
	klog.V(1).Infof("loaded %d rows from %q", len(rows), path)
	return rows, nil
}

func readExcel(path, sheetName string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open spreadsheet %q", path)
	}
	defer func() {
		if err := f.Close(); err != nil {
			klog.Warningf("closing %q: %v", path, err)
		}
	}()
	if sheetName == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.Errorf("spreadsheet %q has no sheets", path)
		}
		sheetName = sheets[0]
	}
	records, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sheet %q of %q", sheetName, path)
	}
	return records, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", path)
	}
	defer func() { _ = file.Close() }()
	df := dataframe.ReadCSV(file,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String))
	if df.Err != nil {
		return nil, errors.Wrapf(df.Err, "failed to parse CSV %q", path)
	}
	return df.Records(), nil
}

// FromRecords converts a header line plus data lines into rows. Blank header cells are skipped,
// and so are their columns.
func FromRecords(records [][]string) []casespec.Row {
	if len(records) == 0 {
		return nil
	}
	header := make([]string, len(records[0]))
	for i, name := range records[0] {
		header[i] = strings.TrimSpace(name)
	}
	rows := make([]casespec.Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(casespec.Row, len(header))
		for col, cell := range record {
			if col >= len(header) || header[col] == "" {
				continue
			}
			if v := convertCell(cell); v != nil {
				row[header[col]] = v
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}

func convertCell(cell string) any {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	if i, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil && !strings.ContainsAny(cell, "nN") {
		return f
	}
	return cell
}

// UseNameColumn copies the given column into the "test_name" column of every row, so it is
// used as the case name. It fails if no row has the column.
func UseNameColumn(rows []casespec.Row, column string) error {
	found := false
	for _, row := range rows {
		if v, ok := row[column]; ok {
			row["test_name"] = v
			found = true
		}
	}
	if !found && len(rows) > 0 {
		return errors.Errorf("name column %q not found in the spreadsheet", column)
	}
	return nil
}
