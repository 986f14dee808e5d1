// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package render

import (
	"testing"

	"github.com/gomlx/tilingut/pkg/casespec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minimalTestCase() *TestCase {
	tc := &TestCase{
		Operator:      "FakeOp",
		Name:          "minimal",
		Hardware:      HardwareDefault,
		CompileInfo:   "FakeOpCompileInfo",
		KernelInputs:  1,
		KernelOutputs: 1,
		TilingDataCap: 1024,
	}
	tc.AddInput(tc.AddTensor("x_shape", casespec.Dims(2, 3)), "ge::DT_FLOAT")
	tc.AddOutput(tc.AddTensor("y_shape", casespec.Dims(6)), "")
	return tc
}

func TestEmitMinimal(t *testing.T) {
	text, err := minimalTestCase().Emit()
	require.NoError(t, err)
	want := []string{
		"TEST_F(FakeOpTiling, minimal) {\n",
		"gert::StorageShape x_shape = {{2, 3}, {2, 3}};",
		".NodeIoNum(1, 1)",
		".IrInstanceNum({1})",
		".InputShapes({&x_shape})",
		".OutputShapes({&y_shape})",
		".NodeInputTd(0, ge::DT_FLOAT, ge::FORMAT_ND, ge::FORMAT_ND)",
		"gert::TilingData::CreateCap(1024)",
		`"CORE_NUM": 20`,
	}
	for _, w := range want {
		assert.Contains(t, text, w)
	}
	for _, absent := range []string{".NodeAttrs(", ".NodeOutputTd(", "HcomTopoInfo", "soc_versions", "GetTilingKey"} {
		assert.NotContains(t, text, absent)
	}
}

func TestEmitAttrsAndDecls(t *testing.T) {
	tc := minimalTestCase()
	group := tc.DeclareString("group", `we"ird`)
	counts := tc.DeclareVector("counts", []int64{1, 2, 3})
	tc.AddAttrs(
		StringVarAttr("group", group),
		VectorAttr("counts", counts),
		FloatAttr("eps", 0.5),
		IntAttr("n", -3),
	)
	tc.Topology = &Topology{GroupVar: group, RankSize: 4}
	text, err := tc.Emit()
	require.NoError(t, err)
	assert.Contains(t, text, `std::string group("we\"ird");`)
	assert.Contains(t, text, "std::vector<int64_t> counts = {1, 2, 3};")
	assert.Contains(t, text, `.NodeAttrs({{"group", ge::AnyValue::CreateFrom<std::string>(group)}, `+
		`{"counts", ge::AnyValue::CreateFrom<std::vector<int64_t>>(counts)}, `+
		`{"eps", ge::AnyValue::CreateFrom<float>(0.5)}, `+
		`{"n", ge::AnyValue::CreateFrom<int64_t>(-3)}})`)
	assert.Contains(t, text, "topo_info.rank_size = 4;")
	assert.NotContains(t, text, "comm_sets")
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(tc *TestCase){
		"bad name":         func(tc *TestCase) { tc.Name = "1 bad name" },
		"no operator":      func(tc *TestCase) { tc.Operator = "" },
		"no inputs":        func(tc *TestCase) { tc.Inputs = nil },
		"undeclared":       func(tc *TestCase) { tc.AddInput("ghost_shape", "") },
		"duplicate tensor": func(tc *TestCase) { tc.AddTensor("x_shape", casespec.Dims(1)) },
		"topology group":   func(tc *TestCase) { tc.Topology = &Topology{RankSize: 8} },
	} {
		t.Run(name, func(t *testing.T) {
			tc := minimalTestCase()
			mutate(tc)
			_, err := tc.Emit()
			assert.Error(t, err)
		})
	}
}

func TestAddTensorSkipsEmpty(t *testing.T) {
	tc := &TestCase{}
	assert.Equal(t, "", tc.AddTensor("bias_shape", nil))
	assert.Empty(t, tc.Tensors)
	assert.Equal(t, "bias_shape", tc.AddTensor("bias_shape", casespec.Dims(8)))
}

func TestCaseCtxLookupOrder(t *testing.T) {
	defaults := DefaultTables()
	defaults.Set("/DistributeBarrier/overlay", "world_size", int64(4))
	spec := casespec.FromRow(casespec.Row{"group": "row_group"}, 0)
	c := &caseCtx{op: "DistributeBarrier", spec: spec, helpers: Helpers{Defaults: defaults}.withFallbacks(),
		scope: "/DistributeBarrier/overlay"}

	assert.Equal(t, "row_group", c.String("group", "x"), "row first")
	assert.Equal(t, int64(4), c.Int("world_size", 1), "then the overlay scope")
	assert.Equal(t, "sum", c.String("reduce_op", "x"), "then the shared root")
	assert.Equal(t, int64(7), c.Int("not_there", 7), "then the code default")
	assert.Equal(t, casespec.Dims(3, 4), c.Dims("x", nil))
	assert.Equal(t, "ge::DT_INT64", c.DType("missing_dtype", "ge::DT_INT64"))
}
