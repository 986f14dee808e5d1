// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package generate runs the rendering pipeline over the rows of a spreadsheet:
// row -> casespec.CaseSpec -> selected renderer -> rendered case.
//
// Generation is best-effort per row: a row that fails (missing parameters, renderer error or
// even a renderer panic) is reported as a RowError and its siblings carry on. Rows can be
// rendered concurrently, the results are always reported in row order.
package generate

import (
	"context"
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tilingut/internal/workerspool"
	"github.com/gomlx/tilingut/pkg/assemble"
	"github.com/gomlx/tilingut/pkg/casespec"
	"github.com/gomlx/tilingut/pkg/render"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// FirstRowIndex is the index given to the first data row: case names default to
// "case_<index>" and skipped rows are logged with it.
const FirstRowIndex = 1

// ErrNoRows is returned when there is nothing to generate.
var ErrNoRows = errors.New("no rows to generate test cases from")

// RowError is the failure of one row.
type RowError struct {
	Index int
	Name  string
	Err   error
}

// Error implements error.
func (e *RowError) Error() string {
	return fmt.Sprintf("row %d (%s): %v", e.Index, e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *RowError) Unwrap() error { return e.Err }

// Report is the outcome of Generator.Run.
type Report struct {
	Operator  string
	Selection *render.Selection
	Rows      int

	// Cases rendered successfully, in row order.
	Cases []assemble.Case

	// Skipped rows, in row order.
	Skipped []*RowError
}

// Generated returns the number of cases rendered.
func (r *Report) Generated() int {
	return len(r.Cases)
}

// Unit assembles the cases of the report behind prefix.
func (r *Report) Unit(prefix string) (*assemble.Unit, error) {
	unit := assemble.New(r.Operator, prefix)
	for _, c := range r.Cases {
		if err := unit.Add(c); err != nil {
			return nil, err
		}
	}
	return unit, nil
}

// Generator renders rows for an operator.
type Generator struct {
	Selector *render.Selector

	// Pool renders rows concurrently. If nil or disabled, rows are rendered one at a time.
	Pool *workerspool.Pool

	// OnRow, if set, is called after each row is rendered or skipped, possibly from several
	// goroutines at once.
	OnRow func(index int, err error)
}

// New returns a serial Generator using selector.
func New(selector *render.Selector) *Generator {
	return &Generator{Selector: selector}
}

type rowResult struct {
	c   assemble.Case
	err error
}

// Run renders one case per row.
//
// It returns an error (along with the partial report) if rows is empty, if no row produced a
// case (wrapping assemble.ErrNoCases) or if ctx was cancelled. Rows not yet started when ctx is
// cancelled are not rendered.
func (g *Generator) Run(ctx context.Context, op string, rows []casespec.Row) (*Report, error) {
	report := &Report{Operator: op, Rows: len(rows)}
	if len(rows) == 0 {
		return report, errors.Wrapf(ErrNoRows, "operator %s", op)
	}
	sel := g.Selector.Select(op)
	report.Selection = sel

	results := make([]rowResult, len(rows))
	task := func(i int) {
		idx := i + FirstRowIndex
		if err := ctx.Err(); err != nil {
			results[i].err = err
			return
		}
		results[i] = renderRow(sel, rows[i], idx)
		if g.OnRow != nil {
			g.OnRow(idx, results[i].err)
		}
	}
	if g.Pool != nil && g.Pool.IsEnabled() {
		g.Pool.Run(len(rows), task)
	} else {
		for i := range rows {
			task(i)
		}
	}
	if err := ctx.Err(); err != nil {
		return report, errors.Wrapf(err, "generation of %s test cases interrupted", op)
	}

	for i, res := range results {
		if res.err != nil {
			rowErr := &RowError{Index: i + FirstRowIndex, Name: res.c.Name, Err: res.err}
			klog.Warningf("skipping %v", rowErr)
			report.Skipped = append(report.Skipped, rowErr)
			continue
		}
		report.Cases = append(report.Cases, res.c)
	}
	if len(report.Cases) == 0 {
		return report, errors.Wrapf(assemble.ErrNoCases, "all %d rows of %s failed", len(rows), op)
	}
	klog.V(1).Infof("%s: %d cases generated, %d rows skipped", op, report.Generated(), len(report.Skipped))
	return report, nil
}

// renderRow builds the CaseSpec of one row and renders it. Panics are returned as errors.
func renderRow(sel *render.Selection, row casespec.Row, idx int) (res rowResult) {
	spec := casespec.FromRow(row, idx)
	res.c = assemble.Case{Index: idx, Name: spec.Name}
	exception := exceptions.Try(func() {
		res.c.Text, res.err = sel.Render(spec, idx)
	})
	if exception != nil {
		if err, ok := exception.(error); ok {
			res.err = errors.Wrapf(err, "renderer %s panicked", sel.Name)
		} else {
			res.err = errors.Errorf("renderer %s panicked: %v", sel.Name, exception)
		}
	}
	if res.err == nil {
		klog.V(2).Infof("row %d: rendered case %s", idx, spec.Name)
	}
	return
}
