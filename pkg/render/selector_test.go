// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package render_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/tilingut/pkg/casespec"
	. "github.com/gomlx/tilingut/pkg/render"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(_ *testing.T, path, contents string) {
	must.M(os.WriteFile(path, []byte(contents), 0o644))
}

func renderSelection(t *testing.T, sel *Selection, row casespec.Row) string {
	t.Helper()
	spec := casespec.FromRow(row, 0)
	text, err := sel.Render(spec, 0)
	require.NoError(t, err)
	checkWellFormed(t, sel.Op, spec.Name, text)
	return text
}

var mknRow = casespec.Row{"test_name": "sel", "m": 32, "k": 64, "n": 128}

func TestSelectorWithoutTemplates(t *testing.T) {
	t.Setenv(TemplateDirEnv, "")
	s := NewSelector(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Equal(t, "", s.TemplateRoot())

	sel := s.Select("MatmulAllReduce")
	assert.Equal(t, SourceRegistry, sel.Source)
	assert.Equal(t, "MatmulAllReduce", sel.Name)
	renderSelection(t, sel, mknRow)

	sel = s.Select("matmul_all_reduce")
	assert.Equal(t, SourceRegistry, sel.Source)
	assert.Equal(t, "MatmulAllReduce", sel.Name)

	sel = s.Select("BrandNewOperator")
	assert.Equal(t, SourceDefault, sel.Source)
	assert.Equal(t, DefaultName, sel.Name)
	text := renderSelection(t, sel, mknRow)
	assert.Contains(t, text, "TEST_F(BrandNewOperatorTiling, sel)")

	assert.Same(t, sel, s.Select("BrandNewOperator"), "selections are cached")
}

func TestSelectorDefaultTemplate(t *testing.T) {
	t.Setenv(TemplateDirEnv, "")
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "default.yaml"), "hardware:\n  core_num: 48\n")
	s := NewSelector(dir)
	assert.Equal(t, dir, s.TemplateRoot())

	sel := s.Select("BrandNewOperator")
	assert.Equal(t, SourceTemplate, sel.Source)
	assert.Equal(t, filepath.Join(dir, "default.yaml"), sel.Path)
	assert.Equal(t, DefaultName, sel.Name)
	text := renderSelection(t, sel, mknRow)
	assert.Contains(t, text, `"CORE_NUM": 48`)

	// Without a renderer key the file stem picks the renderer: default.yaml is DefaultName even
	// for operators with a renderer of their own.
	sel = s.Select("MatmulAllReduce")
	assert.Equal(t, SourceTemplate, sel.Source)
	assert.Equal(t, filepath.Join(dir, "default.yaml"), sel.Path)
	assert.Equal(t, DefaultName, sel.Name)
	text = renderSelection(t, sel, mknRow)
	assert.Contains(t, text, "TEST_F(MatmulAllReduceTiling, sel)")
	assert.Contains(t, text, `"CORE_NUM": 48`)
	assert.NotContains(t, text, ".SetOpType(op_type)")
}

func TestSelectorOperatorTemplate(t *testing.T) {
	t.Setenv(TemplateDirEnv, "")
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "distribute_barrier.yml"), `
defaults:
  world_size: 4
  x: [2, 2]
compile_info: Barrier Info
`)
	s := NewSelector(dir)
	sel := s.Select("DistributeBarrier")
	assert.Equal(t, SourceTemplate, sel.Source)
	text := renderSelection(t, sel, nil)
	assert.Contains(t, text, "int64_t world_size = 4;")
	assert.Contains(t, text, "gert::StorageShape x_ref_shape = {{2, 2}, {2, 2}};")
	assert.Contains(t, text, "struct Barrier_Info {} compile_info;")

	// Row columns still win over the overlay defaults.
	text = renderSelection(t, sel, casespec.Row{"world_size": 2})
	assert.Contains(t, text, "int64_t world_size = 2;")

	// The overlay doesn't leak into other selections or the built-in tables.
	text = renderSelection(t, NewSelector("").Select("DistributeBarrier"), nil)
	assert.Contains(t, text, "int64_t world_size = 8;")
}

func TestSelectorRendererAlias(t *testing.T) {
	t.Setenv(TemplateDirEnv, "")
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "MyAllGather.yaml"), "renderer: all_gather_matmul_v2\n")
	sel := NewSelector(dir).Select("MyAllGather")
	assert.Equal(t, SourceTemplate, sel.Source)
	assert.Equal(t, "AllGatherMatmulV2", sel.Name)
	text := renderSelection(t, sel, mknRow)
	assert.Contains(t, text, ".SetOpType(op_type)")
}

func TestSelectorBrokenTemplateFallsBack(t *testing.T) {
	t.Setenv(TemplateDirEnv, "")
	for name, contents := range map[string]string{
		"unknown key":      "renderer: MatmulAllReduce\ncolour: blue\n",
		"unknown renderer": "renderer: NoSuchRenderer\n",
		"bad hardware":     "hardware:\n  core_count: 2\n",
		"not yaml":         "renderer: [unclosed\n",
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, "MatmulAllReduce.yaml"), contents)
			sel := NewSelector(dir).Select("MatmulAllReduce")
			assert.Equal(t, SourceBuiltIn, sel.Source)
			assert.Equal(t, "AllGatherMatmul", sel.Name)
			renderSelection(t, sel, mknRow)
		})
	}
}

func TestSelectorEnvironment(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "default.yml"), "compile_info: FromEnv\n")
	t.Setenv(TemplateDirEnv, dir)
	sel := NewSelector("").Select("MatmulReduceScatter")
	assert.Equal(t, SourceTemplate, sel.Source)
	assert.Equal(t, DefaultName, sel.Name)
	assert.Contains(t, renderSelection(t, sel, mknRow), "struct FromEnv {} compile_info;")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	_, name, isDefault := r.Resolve("MoeEPLBUpdateExpert")
	assert.Equal(t, "MoeEPLBUpdateExpert", name)
	assert.False(t, isDefault)

	_, name, isDefault = r.Resolve("moe_eplb_update_expert")
	assert.Equal(t, "MoeEPLBUpdateExpert", name)
	assert.False(t, isDefault)

	renderer, name, isDefault := r.Resolve("NotRegistered")
	assert.Equal(t, DefaultName, name)
	assert.True(t, isDefault)
	assert.Equal(t, BuiltIn(), renderer)

	custom := WithoutHelpers(func(op string, spec *casespec.CaseSpec, idx int) (string, error) {
		return "TEST_F(" + op + "Tiling, " + spec.Name + ") {\n}\n", nil
	})
	r.Register("NotRegistered", custom)
	_, name, isDefault = r.Resolve("not_registered")
	assert.Equal(t, "NotRegistered", name)
	assert.False(t, isDefault)
	assert.Contains(t, r.Names(), "NotRegistered")
}

func TestDefaultTablesAreCopies(t *testing.T) {
	tables := DefaultTables()
	tables.Set("/DistributeBarrier", "world_size", 2)
	value, found := DefaultTables().Get("/DistributeBarrier", "world_size")
	require.True(t, found)
	assert.Equal(t, int64(8), value)
	value, found = DefaultTables().Get("/DistributeBarrier", "reduce_op")
	require.True(t, found)
	assert.Equal(t, "sum", value)
}

func TestHardwareOverridden(t *testing.T) {
	hw, err := HardwareDefault.Overridden(map[string]any{"core_num": 48, "load3d_constraints": "1"})
	require.NoError(t, err)
	assert.Equal(t, int64(48), hw.CoreNum)
	assert.Equal(t, "1", hw.Load3DConstraints)
	assert.Equal(t, HardwareDefault.UBSize, hw.UBSize)
	assert.Equal(t, int64(20), HardwareDefault.CoreNum, "the profile itself is not modified")

	_, err = HardwareDefault.Overridden(map[string]any{"cores": 48})
	assert.Error(t, err)
	_, err = HardwareDefault.Overridden(map[string]any{"ub_size": "large"})
	assert.Error(t, err)
}

func TestSelectorCustomDefaults(t *testing.T) {
	t.Setenv(TemplateDirEnv, "")
	defaults := DefaultTables()
	defaults.Set("/DistributeBarrier", "world_size", int64(32))
	s := NewSelector("")
	s.Defaults = defaults
	text := renderSelection(t, s.Select("DistributeBarrier"), nil)
	assert.Contains(t, text, "int64_t world_size = 32;")

	// Overlays stack on top of the custom tables.
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "DistributeBarrier.yaml"), "defaults:\n  x: [5, 6]\n")
	s = NewSelector(dir)
	s.Defaults = defaults
	text = renderSelection(t, s.Select("DistributeBarrier"), nil)
	assert.Contains(t, text, "int64_t world_size = 32;")
	assert.Contains(t, text, "{{5, 6}, {5, 6}}")
	x, _ := defaults.Get("/DistributeBarrier/overlay", "x")
	assert.Equal(t, casespec.Dims(3, 4), x, "the overlay is applied to a copy")
}
