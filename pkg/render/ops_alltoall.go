// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package render

import (
	"github.com/gomlx/tilingut/pkg/casespec"
)

// All-to-all exchanges fused with (grouped or batch) matmuls.

// gmmCounts are the default send_counts and recv_counts: 32 peers, 128 tokens each.
var gmmCounts = []int64{
	128, 128, 128, 128, 128, 128, 128, 128, 128, 128, 128, 128, 128, 128, 128, 128,
	128, 128, 128, 128, 128, 128, 128, 128, 128, 128, 128, 128, 128, 128, 128, 128,
}

// gmmInputs declares and wires the inputs shared by the grouped matmul all-to-all operators:
// (gmm_x, gmm_weight, send_counts_tensor, recv_counts_tensor, mm_x, mm_weight). The counts
// tensors are always nullptr; mm_x and mm_weight are wired only when present.
func gmmInputs(c *caseCtx, tc *TestCase, mmX, mmWeight casespec.Shape) error {
	gmmXDims := c.Dims("gmm_x", nil)
	if err := requireRank("gmm_x", gmmXDims, 1); err != nil {
		return err
	}
	gmmWeightDims := c.Dims("gmm_weight", nil)
	if err := requireRank("gmm_weight", gmmWeightDims, 1); err != nil {
		return err
	}
	dt, _ := c.IODTypes()
	tc.AddInput(tc.AddTensor("gmmX_shape", gmmXDims), dt)
	tc.AddInput(tc.AddTensor("gmmWeight_shape", gmmWeightDims), dt)
	tc.AddInput("", ge(casespec.DTInt64))
	tc.AddInput("", ge(casespec.DTInt64))
	tc.AddInput(tc.AddTensor("mmX_shape", mmX), dt)
	tc.AddInput(tc.AddTensor("mmWeight_shape", mmWeight), dt)
	return nil
}

// gmmCountVectors declares the send_counts and recv_counts vectors.
func gmmCountVectors(c *caseCtx, tc *TestCase) (send, recv string) {
	send = tc.DeclareVector("send_counts", c.IntList("send_counts", gmmCounts))
	recv = tc.DeclareVector("recv_counts", c.IntList("recv_counts", gmmCounts))
	return
}

var alltoAllvGroupedMatMulOp = &opDef{
	Name:          "AlltoAllvGroupedMatMul",
	Hardware:      HardwareDefault,
	KernelInputs:  5,
	KernelOutputs: 4,
	TilingDataCap: 8192,
	Defaults: map[string]any{
		"gmm_x":            casespec.Dims(4096, 7168),
		"gmm_weight":       casespec.Dims(4, 7168, 4096),
		"mm_x":             casespec.Dims(2048, 7168),
		"mm_weight":        casespec.Dims(7168, 64),
		"gmm_y":            casespec.Dims(4096, 4096),
		"mm_y":             casespec.Dims(2047, 64),
		"is_need_mm":       true,
		"trans_gmm_weight": false,
		"trans_mm_weight":  false,
		"permute_out_flag": false,
	},
	Describe: describeAlltoAllvGroupedMatMul,
}

// describeAlltoAllvGroupedMatMul: inputs (gmm_x, gmm_weight, send_counts_tensor,
// recv_counts_tensor, mm_x, mm_weight), outputs (gmm_y, mm_y, permute_out).
// is_need_mm=false drops the shared matmul branch (mm_x, mm_weight, mm_y).
func describeAlltoAllvGroupedMatMul(c *caseCtx, tc *TestCase) error {
	var mmX, mmWeight, mmY casespec.Shape
	if c.Bool("is_need_mm", true) {
		mmX, mmWeight, mmY = c.Dims("mm_x", nil), c.Dims("mm_weight", nil), c.Dims("mm_y", nil)
	}
	if err := gmmInputs(c, tc, mmX, mmWeight); err != nil {
		return err
	}
	fp16 := ge(casespec.DTFloat16)
	tc.AddOutput(tc.AddTensor("gmmY_shape", c.Dims("gmm_y", nil)), fp16)
	tc.AddOutput(tc.AddTensor("mmY_shape", mmY), fp16)
	tc.AddOutput(tc.AddTensor("permuteOut_shape", c.Dims("permute_out", nil)), fp16)

	epWorldSize := c.OptInt(c.spec.EPWorldSize, "ep_world_size", 8)
	group := tc.DeclareString("group", c.String("group", "group"))
	send, recv := gmmCountVectors(c, tc)
	tc.AddAttrs(
		StringVarAttr("group", group),
		IntAttr("ep_world_size", epWorldSize),
		VectorAttr("send_counts", send),
		VectorAttr("recv_counts", recv),
		BoolAttr("trans_gmm_weight", c.Bool("trans_gmm_weight", false)),
		BoolAttr("trans_mm_weight", c.Bool("trans_mm_weight", false)),
		BoolAttr("permute_out_flag", c.Bool("permute_out_flag", false)),
	)
	tc.Topology = &Topology{GroupVar: group, RankSize: epWorldSize, CommSets: true}
	return nil
}

var groupedMatMulAlltoAllvOp = &opDef{
	Name:          "GroupedMatMulAlltoAllv",
	Hardware:      HardwareDefault,
	KernelInputs:  5,
	KernelOutputs: 4,
	TilingDataCap: 8192,
	Defaults: map[string]any{
		"gmm_x":            casespec.Dims(4096, 7168),
		"gmm_weight":       casespec.Dims(4, 7168, 4096),
		"y":                casespec.Dims(4096, 4096),
		"group_attr_key":   "group",
		"trans_gmm_weight": false,
		"trans_mm_weight":  false,
		"expect_success":   false,
	},
	Describe: describeGroupedMatMulAlltoAllv,
}

// describeGroupedMatMulAlltoAllv: inputs (gmm_x, gmm_weight, send_counts_tensor,
// recv_counts_tensor, mm_x, mm_weight), outputs (y, mm_y). The optional matmul branch is wired
// only when mm_x, mm_weight or mm_y are given. Cases expect failure unless stated otherwise.
func describeGroupedMatMulAlltoAllv(c *caseCtx, tc *TestCase) error {
	if err := gmmInputs(c, tc, c.Dims("mm_x", nil), c.Dims("mm_weight", nil)); err != nil {
		return err
	}
	fp16 := ge(casespec.DTFloat16)
	tc.AddOutput(tc.AddTensor("y_shape", c.Dims("y", nil)), fp16)
	tc.AddOutput(tc.AddTensor("mmY_shape", c.Dims("mm_y", nil)), fp16)

	epWorldSize := c.OptInt(c.spec.EPWorldSize, "ep_world_size", 8)
	group := tc.DeclareString("group_name", c.String("group", "group"))
	send, recv := gmmCountVectors(c, tc)
	tc.AddAttrs(
		StringVarAttr(c.String("group_attr_key", "group"), group),
		IntAttr("ep_world_size", epWorldSize),
		VectorAttr("send_counts", send),
		VectorAttr("recv_counts", recv),
		BoolAttr("trans_gmm_weight", c.Bool("trans_gmm_weight", false)),
		BoolAttr("trans_mm_weight", c.Bool("trans_mm_weight", false)),
	)
	tc.Topology = &Topology{GroupVar: group, RankSize: c.Int("world_size", epWorldSize), CommSets: true}
	return nil
}

// batchMatMulInputs declares and wires (x, weight[, bias]) and the y output of the batch matmul
// all-to-all operators. x is left as nullptr when x_is_null is set.
func batchMatMulInputs(c *caseCtx, tc *TestCase) error {
	dtIn, dtOut := c.IODTypes()
	xDims, weightDims := c.Dims("x", nil), c.Dims("weight", nil)
	if err := requireRank("weight", weightDims, 1); err != nil {
		return err
	}
	x := tc.AddTensor("x_shape", xDims)
	weight := tc.AddTensor("weight_shape", weightDims)
	bias := tc.AddTensor("bias_shape", c.Dims("bias", nil))
	y := tc.AddTensor("y1_output_shape", c.Dims("y", nil))
	if c.Bool("x_is_null", false) {
		x = ""
	}

	tc.AddInput(x, dtIn)
	tc.AddInput(weight, dtIn)
	if bias != "" {
		biasDT := dtIn
		if c.Has("bias_dtype") {
			_, out := c.helpers.DTypeToGE(c.String("bias_dtype", ""))
			biasDT = ge(out)
		}
		tc.AddInput(bias, c.DType("bias_dt_ge", biasDT))
	}
	tc.AddOutput(y, dtOut)
	return nil
}

var alltoAllAllGatherBatchMatMulOp = &opDef{
	Name:          "AlltoAllAllGatherBatchMatMul",
	Hardware:      HardwareDefault,
	KernelInputs:  4,
	KernelOutputs: 2,
	TilingDataCap: 4096,
	Defaults: map[string]any{
		"x":                casespec.Dims(16, 128, 64),
		"weight":           casespec.Dims(4, 64, 128),
		"y":                casespec.Dims(4, 512, 64),
		"ep_world_size":    int64(4),
		"tp_world_size":    int64(2),
		"x_shard_type":     int64(1),
		"act_type":         int64(0),
		"transpose_weight": false,
		"output_y2_flag":   false,
		"output_y3_flag":   false,
		"x_is_null":        false,
	},
	Describe: describeAlltoAllAllGatherBatchMatMul,
}

// describeAlltoAllAllGatherBatchMatMul: inputs (x, weight[, bias]), outputs (y1).
// The topology is installed on the EP group.
func describeAlltoAllAllGatherBatchMatMul(c *caseCtx, tc *TestCase) error {
	if err := batchMatMulInputs(c, tc); err != nil {
		return err
	}
	spec := c.spec
	ep, tp := moeGroups(c, tc)
	tc.AddAttrs(
		StringVarAttr("group_ep", ep),
		StringVarAttr("group_tp", tp),
		IntAttr("ep_world_size", c.OptInt(spec.EPWorldSize, "ep_world_size", 4)),
		IntAttr("tp_world_size", c.OptInt(spec.TPWorldSize, "tp_world_size", 2)),
		IntAttr("x_shard_type", c.Int("x_shard_type", 1)),
		IntAttr("act_type", c.Int("act_type", 0)),
		BoolAttr("transpose_weight", c.Bool("transpose_weight", false)),
		BoolAttr("output_y2_flag", c.Bool("output_y2_flag", false)),
		BoolAttr("output_y3_flag", c.Bool("output_y3_flag", false)),
	)
	tc.Topology = &Topology{GroupVar: ep, RankSize: spec.WorldSize, CommSets: true}
	return nil
}

var batchMatMulReduceScatterAlltoAllOp = &opDef{
	Name:          "BatchMatMulReduceScatterAlltoAll",
	Hardware:      HardwareDefault,
	KernelInputs:  4,
	KernelOutputs: 2,
	TilingDataCap: 4096,
	Defaults: map[string]any{
		"x":                casespec.Dims(2, 1024, 64),
		"weight":           casespec.Dims(2, 64, 128),
		"y":                casespec.Dims(16, 128, 64),
		"ep_world_size":    int64(8),
		"tp_world_size":    int64(2),
		"y_shard_type":     int64(1),
		"transpose_weight": false,
		"x_is_null":        false,
	},
	Describe: describeBatchMatMulReduceScatterAlltoAll,
}

// describeBatchMatMulReduceScatterAlltoAll: inputs (x, weight[, bias]), outputs (y).
// The topology is installed on the EP group.
func describeBatchMatMulReduceScatterAlltoAll(c *caseCtx, tc *TestCase) error {
	if err := batchMatMulInputs(c, tc); err != nil {
		return err
	}
	spec := c.spec
	ep, tp := moeGroups(c, tc)
	tc.AddAttrs(
		StringVarAttr("group_ep", ep),
		StringVarAttr("group_tp", tp),
		IntAttr("ep_world_size", c.OptInt(spec.EPWorldSize, "ep_world_size", 8)),
		IntAttr("tp_world_size", c.OptInt(spec.TPWorldSize, "tp_world_size", 2)),
		IntAttr("y_shard_type", c.Int("y_shard_type", 1)),
		BoolAttr("transpose_weight", c.Bool("transpose_weight", false)),
	)
	tc.Topology = &Topology{GroupVar: ep, RankSize: spec.WorldSize, CommSets: true}
	return nil
}
