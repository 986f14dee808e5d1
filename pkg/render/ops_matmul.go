// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package render

import (
	"github.com/gomlx/tilingut/pkg/casespec"
)

// Matmul fused with a collective: AllGatherMatmul, MatmulReduceScatter, MatmulAllReduce and
// their quantized V2 variants. They all take their shapes from casespec.EnsureShapes.

var allGatherMatmulOp = &opDef{
	Name:          "AllGatherMatmul",
	Hardware:      HardwareDefault,
	KernelInputs:  4,
	KernelOutputs: 2,
	TilingDataCap: 4096,
	Describe:      describeAllGatherMatmul,
}

// describeAllGatherMatmul: inputs (x1, x2, bias, nullptr), outputs (output, gather_output).
// It is also the generic renderer used for operators without one of their own.
func describeAllGatherMatmul(c *caseCtx, tc *TestCase) error {
	shapes, err := c.Shapes()
	if err != nil {
		return err
	}
	spec := c.spec
	dtIn, dtOut := c.IODTypes()

	x1 := tc.AddTensor("x1_shape", shapes.X1)
	x2 := tc.AddTensor("x2_shape", shapes.X2)
	bias := tc.AddTensor("bias_shape", shapes.Bias)
	gather := tc.AddTensor("gather_output_shape", shapes.GatherOutput)
	output := tc.AddTensor("output_shape", shapes.Output)

	tc.AddInput(x1, dtIn)
	tc.AddInput(x2, dtIn)
	tc.AddInput(bias, dtIn)
	tc.AddInput("", "")
	tc.AddOutput(output, dtOut)
	tc.AddOutput(gather, dtOut)

	group := tc.DeclareString("group", c.String("group", "group"))
	tc.AddAttrs(
		StringVarAttr("group", group),
		BoolAttr("is_trans_a", spec.IsTransA),
		BoolAttr("is_trans_b", spec.IsTransB),
		IntAttr("gather_index", spec.GatherIndex),
		IntAttr("comm_turn", spec.CommTurn),
	)
	tc.Topology = &Topology{GroupVar: group, RankSize: spec.WorldSize, CommSets: true}
	return nil
}

var allGatherMatmulV2Op = &opDef{
	Name:          "AllGatherMatmulV2",
	Hardware:      HardwareLarge,
	KernelInputs:  4,
	KernelOutputs: 1,
	TilingDataCap: 4096,
	SetOpType:     true,
	Defaults: map[string]any{
		"dt_x1":          "float8_e4m3fn",
		"dt_scale":       "float32",
		"dt_out":         "float16",
		"rank_size_attr": int64(0),
		"block_size":     int64(0),
		"group_size":     int64(0),
		"is_gather_out":  false,
		"is_amax_out":    false,
		"y_dtype":        int64(0),
	},
	Describe: describeAllGatherMatmulV2,
}

// describeAllGatherMatmulV2: inputs (x1, x2, bias, x1_scale, x2_scale, offset),
// outputs (output, gather_output, amax).
func describeAllGatherMatmulV2(c *caseCtx, tc *TestCase) error {
	shapes, err := c.Shapes()
	if err != nil {
		return err
	}
	spec := c.spec
	dtX1 := c.DType("dt_x1", ge(casespec.DTFloat8E4M3))
	dtX2 := c.DType("dt_x2", dtX1)
	dtScale := c.DType("dt_scale", ge(casespec.DTFloat))
	dtOut := c.DType("dt_out", ge(casespec.DTFloat16))
	isAmaxOut := c.Bool("is_amax_out", false)

	x1 := tc.AddTensor("x1_shape", shapes.X1)
	x2 := tc.AddTensor("x2_shape", shapes.X2)
	gather := tc.AddTensor("gather_output_shape", shapes.GatherOutput)
	output := tc.AddTensor("output_shape", shapes.Output)
	x1Scale := tc.AddTensor("x1Scale_shape", casespec.Dims(1))
	x2Scale := tc.AddTensor("x2Scale_shape", casespec.Dims(1))
	var amax string
	if elems := c.Int("amax_elems", 0); isAmaxOut && elems > 0 {
		amax = tc.AddTensor("amax_shape", casespec.Dims(elems))
	}

	tc.AddInput(x1, dtX1)
	tc.AddInput(x2, dtX2)
	tc.AddInput("", dtScale)
	tc.AddInput(x1Scale, dtScale)
	tc.AddInput(x2Scale, dtScale)
	tc.AddInput("", "")
	tc.AddOutput(output, dtOut)
	tc.AddOutput(gather, "")
	tc.AddOutput(amax, "")

	group := tc.DeclareString("group", c.String("group", "group"))
	tc.AddAttrs(
		StringVarAttr("group", group),
		BoolAttr("is_trans_a", spec.IsTransA),
		BoolAttr("is_trans_b", spec.IsTransB),
		IntAttr("gather_index", spec.GatherIndex),
		IntAttr("comm_turn", spec.CommTurn),
		IntAttr("rank_size", c.Int("rank_size_attr", 0)),
		IntAttr("block_size", c.Int("block_size", 0)),
		IntAttr("group_size", c.Int("group_size", 0)),
		BoolAttr("is_gather_out", c.Bool("is_gather_out", false)),
		BoolAttr("is_amax_out", isAmaxOut),
		IntAttr("y_dtype", c.Int("y_dtype", 0)),
	)
	tc.Topology = &Topology{GroupVar: group, RankSize: spec.WorldSize, CommSets: true}
	return nil
}

var matmulReduceScatterOp = &opDef{
	Name:          "MatmulReduceScatter",
	Hardware:      HardwareDefault,
	KernelInputs:  4,
	KernelOutputs: 1,
	TilingDataCap: 4096,
	Describe:      describeMatmulReduceScatter,
}

// describeMatmulReduceScatter: inputs (x1, x2, bias, nullptr), outputs (output).
// The hccl_deterministic column, if present, sets HCCL_DETERMINISTIC around the tiling call.
func describeMatmulReduceScatter(c *caseCtx, tc *TestCase) error {
	shapes, err := c.Shapes()
	if err != nil {
		return err
	}
	spec := c.spec
	dtIn, dtOut := c.IODTypes()

	x1 := tc.AddTensor("x1_shape", shapes.X1)
	x2 := tc.AddTensor("x2_shape", shapes.X2)
	bias := tc.AddTensor("bias_shape", shapes.Bias)
	output := tc.AddTensor("output_shape", shapes.Output)

	tc.AddInput(x1, dtIn)
	tc.AddInput(x2, dtIn)
	tc.AddInput(bias, dtIn)
	tc.AddInput("", "")
	tc.AddOutput(output, dtOut)

	group := tc.DeclareString("group", c.String("group", "group"))
	tc.AddAttrs(
		StringVarAttr("group", group),
		StringAttr("reduce_op", c.String("reduce_op", "sum")),
		BoolAttr("is_trans_a", spec.IsTransA),
		BoolAttr("is_trans_b", spec.IsTransB),
		IntAttr("comm_turn", spec.CommTurn),
	)
	if det := c.String("hccl_deterministic", ""); det != "" {
		tc.Env = append(tc.Env, casespec.EnvVar{Name: "HCCL_DETERMINISTIC", Value: det})
	}
	tc.Topology = &Topology{GroupVar: group, RankSize: spec.WorldSize, CommSets: true}
	return nil
}

var matmulReduceScatterV2Op = &opDef{
	Name:          "MatmulReduceScatterV2",
	Hardware:      HardwareDefault,
	KernelInputs:  7,
	KernelOutputs: 2,
	TilingDataCap: 4096,
	SetOpType:     true,
	Defaults: map[string]any{
		"rank_size_attr": int64(0),
		"block_size":     int64(0),
		"group_size":     int64(0),
		"is_amax_out":    true,
		"y_dtype":        int64(0),
	},
	Describe: describeMatmulReduceScatterV2,
}

// describeMatmulReduceScatterV2: inputs (x1, x2, bias, x1_scale, x2_scale, quant_scale, offset),
// outputs (output, amax). Only x1 and x2 are wired, the rest are nullptr with a dtype.
func describeMatmulReduceScatterV2(c *caseCtx, tc *TestCase) error {
	shapes, err := c.Shapes()
	if err != nil {
		return err
	}
	spec := c.spec
	dtX1 := c.DType("dt_x1", ge(casespec.DTFloat16))
	dtX2 := c.DType("dt_x2", ge(casespec.DTFloat16))
	dtBias := c.DType("dt_in2", dtX1)
	dtScale := c.DType("dt_scale", ge(casespec.DTFloat))
	dtOut := c.DType("dt_out0", dtX1)
	dtAmax := c.DType("dt_out1", ge(casespec.DTFloat))

	x1 := tc.AddTensor("x1_shape", shapes.X1)
	x2 := tc.AddTensor("x2_shape", shapes.X2)
	output := tc.AddTensor("output_shape", shapes.Output)

	tc.AddInput(x1, dtX1)
	tc.AddInput(x2, dtX2)
	tc.AddInput("", dtBias)
	tc.AddInput("", dtScale)
	tc.AddInput("", dtScale)
	tc.AddInput("", dtScale)
	tc.AddInput("", "")
	tc.AddOutput(output, dtOut)
	tc.AddOutput("", dtAmax)

	group := tc.DeclareString("group", c.String("group", "group"))
	reduceOp := tc.DeclareString("reduce_op", c.String("reduce_op", "sum"))
	tc.AddAttrs(
		StringVarAttr("group", group),
		StringVarAttr("reduce_op", reduceOp),
		BoolAttr("is_trans_a", spec.IsTransA),
		BoolAttr("is_trans_b", spec.IsTransB),
		IntAttr("comm_turn", spec.CommTurn),
		IntAttr("rank_size", c.Int("rank_size_attr", 0)),
		IntAttr("block_size", c.Int("block_size", 0)),
		IntAttr("group_size", c.Int("group_size", 0)),
		BoolAttr("is_amax_out", c.Bool("is_amax_out", true)),
		IntAttr("y_dtype", c.Int("y_dtype", 0)),
	)
	tc.Topology = &Topology{GroupVar: group, RankSize: spec.WorldSize, CommSets: true}
	return nil
}

var matmulAllReduceOp = &opDef{
	Name:          "MatmulAllReduce",
	Hardware:      HardwareDefault,
	KernelInputs:  4,
	KernelOutputs: 1,
	TilingDataCap: 4096,
	SetOpType:     true,
	Defaults:      map[string]any{"has_x3": false},
	Describe:      describeMatmulAllReduce,
}

// describeMatmulAllReduce: inputs (x1, x2, bias, x3), outputs (output). x3 has the output
// shape and is wired only when has_x3 is set. The topology has no comm_sets.
func describeMatmulAllReduce(c *caseCtx, tc *TestCase) error {
	shapes, err := c.Shapes()
	if err != nil {
		return err
	}
	spec := c.spec
	dtIn, dtOut := c.IODTypes()

	x1 := tc.AddTensor("x1_shape", shapes.X1)
	x2 := tc.AddTensor("x2_shape", shapes.X2)
	bias := tc.AddTensor("bias_shape", shapes.Bias)
	output := tc.AddTensor("output_shape", shapes.Output)
	var x3 string
	if c.Bool("has_x3", false) {
		x3 = tc.AddTensor("x3_shape", shapes.Output)
	}

	tc.AddInput(x1, dtIn)
	tc.AddInput(x2, dtIn)
	tc.AddInput(bias, dtIn)
	tc.AddInput(x3, "")
	tc.AddOutput(output, dtOut)

	group := tc.DeclareString("group", c.String("group", "group"))
	tc.AddAttrs(
		StringVarAttr("group", group),
		StringAttr("reduce_op", c.String("reduce_op", "sum")),
		BoolAttr("is_trans_a", spec.IsTransA),
		BoolAttr("is_trans_b", spec.IsTransB),
		IntAttr("comm_turn", spec.CommTurn),
	)
	tc.Topology = &Topology{GroupVar: group, RankSize: spec.WorldSize}
	return nil
}
