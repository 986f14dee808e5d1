// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package generate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/gomlx/tilingut/internal/workerspool"
	"github.com/gomlx/tilingut/pkg/assemble"
	"github.com/gomlx/tilingut/pkg/casespec"
	"github.com/gomlx/tilingut/pkg/render"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

func newSelector(t *testing.T) *render.Selector {
	t.Setenv(render.TemplateDirEnv, "")
	return render.NewSelector("")
}

// tenRows returns 10 rows, where rows 4 and 8 (1-based) have neither shapes nor m/k/n.
func tenRows() []casespec.Row {
	rows := make([]casespec.Row, 10)
	for i := range rows {
		rows[i] = casespec.Row{"test_name": fmt.Sprintf("case_%02d", i), "m": 128 * (i + 1), "k": 256, "n": 512}
	}
	rows[3] = casespec.Row{"test_name": "no_shapes_a", "dtype": "bf16"}
	rows[7] = casespec.Row{"test_name": "no_shapes_b", "m": 16}
	return rows
}

func TestRunPartialSuccess(t *testing.T) {
	g := New(newSelector(t))
	report, err := g.Run(context.Background(), "AllGatherMatmul", tenRows())
	require.NoError(t, err)
	assert.Equal(t, 10, report.Rows)
	assert.Equal(t, 8, report.Generated())
	require.Len(t, report.Skipped, 2)
	assert.Equal(t, 4, report.Skipped[0].Index)
	assert.Equal(t, "no_shapes_a", report.Skipped[0].Name)
	assert.Equal(t, 8, report.Skipped[1].Index)
	for _, skipped := range report.Skipped {
		assert.True(t, errors.Is(skipped, casespec.ErrMissingParameter), "%v", skipped)
	}
	assert.Equal(t, render.SourceRegistry, report.Selection.Source)
	assert.Equal(t, FirstRowIndex, report.Cases[0].Index)

	unit, err := report.Unit("#include <gtest/gtest.h>\n")
	require.NoError(t, err)
	text := string(unit.Bytes())
	assert.Equal(t, 8, strings.Count(text, "TEST_F("))
	assert.Equal(t, strings.Count(text, "{"), strings.Count(text, "}"))
	last := -1
	for _, c := range report.Cases {
		pos := strings.Index(text, "TEST_F(AllGatherMatmulTiling, "+c.Name+")")
		require.Greater(t, pos, last, "cases in row order")
		last = pos
	}
}

func TestRunParallelMatchesSerial(t *testing.T) {
	rows := tenRows()
	serial, err := New(newSelector(t)).Run(context.Background(), "MatmulReduceScatter", rows)
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []int
	g := &Generator{
		Selector: newSelector(t),
		Pool:     workerspool.NewWithParallelism(4),
		OnRow: func(index int, _ error) {
			mu.Lock()
			seen = append(seen, index)
			mu.Unlock()
		},
	}
	parallel, err := g.Run(context.Background(), "MatmulReduceScatter", rows)
	require.NoError(t, err)
	assert.Equal(t, serial.Cases, parallel.Cases)
	assert.Equal(t, len(serial.Skipped), len(parallel.Skipped))
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, seen)
}

func TestRunIsolatesPanics(t *testing.T) {
	selector := newSelector(t)
	selector.Registry = render.NewRegistry()
	selector.Registry.Register("Flaky", render.WithoutHelpers(
		func(op string, spec *casespec.CaseSpec, idx int) (string, error) {
			switch idx {
			case 2:
				panic("index out of range")
			case 3:
				panic(errors.New("nil spec field"))
			}
			return fmt.Sprintf("TEST_F(%sTiling, %s) {\n}", op, spec.Name), nil
		}))
	rows := []casespec.Row{{}, {}, {}, {}}
	for _, pool := range []*workerspool.Pool{nil, workerspool.NewWithParallelism(2)} {
		g := &Generator{Selector: selector, Pool: pool}
		report, err := g.Run(context.Background(), "Flaky", rows)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Generated())
		require.Len(t, report.Skipped, 2)
		assert.Contains(t, report.Skipped[0].Error(), "index out of range")
		assert.Contains(t, report.Skipped[1].Error(), "nil spec field")
		assert.Equal(t, "case_1", report.Cases[0].Name)
		assert.Equal(t, "case_4", report.Cases[1].Name)
	}
}

func TestRunBatchFailures(t *testing.T) {
	g := New(newSelector(t))
	_, err := g.Run(context.Background(), "AllGatherMatmul", nil)
	assert.True(t, errors.Is(err, ErrNoRows))

	report, err := g.Run(context.Background(), "AllGatherMatmul", []casespec.Row{{"m": 1}, {}})
	assert.True(t, errors.Is(err, assemble.ErrNoCases))
	assert.Len(t, report.Skipped, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Run(ctx, "AllGatherMatmul", tenRows())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRunUnnamedRowsAreNumberedFromOne(t *testing.T) {
	rows := []casespec.Row{{"m": 16, "k": 32, "n": 64}, {"m": 32, "k": 32, "n": 64}}
	report, err := New(newSelector(t)).Run(context.Background(), "AllGatherMatmul", rows)
	require.NoError(t, err)
	require.Len(t, report.Cases, 2)
	assert.Equal(t, "case_1", report.Cases[0].Name)
	assert.Equal(t, 1, report.Cases[0].Index)
	assert.Equal(t, "case_2", report.Cases[1].Name)
	assert.Contains(t, report.Cases[0].Text, "TEST_F(AllGatherMatmulTiling, case_1)")
}
