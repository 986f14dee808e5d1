// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package render

import (
	"github.com/gomlx/tilingut/pkg/casespec"
	"github.com/pkg/errors"
)

// Mixture-of-experts dispatch and combine operators. They communicate through attributes only
// (group_ep, group_tp), so none of them installs a topology.

// requireRank returns an error if shape doesn't have at least rank dimensions.
func requireRank(name string, shape casespec.Shape, rank int) error {
	if shape.Rank() < rank {
		return errors.Errorf("%s needs at least %d dimensions, got %s", name, rank, shape)
	}
	return nil
}

// atLeastOne returns n if positive, else 1.
func atLeastOne(n int64) int64 {
	if n > 0 {
		return n
	}
	return 1
}

// moeShapes returns the expanded input, expert ids and output shapes of a MoE case: the generic
// matmul shapes when they resolve, otherwise the x1, x2 and out columns or table defaults.
// A missing out is left nil for the caller to derive.
func moeShapes(c *caseCtx) (x1, x2, out casespec.Shape, err error) {
	if shapes, shapesErr := c.Shapes(); shapesErr == nil {
		x1, x2, out = shapes.X1, shapes.X2, shapes.Output
	} else {
		x1, x2, out = c.Dims("x1", nil), c.Dims("x2", nil), c.Dims("out", nil)
	}
	if err = requireRank("x1 (expand_x)", x1, 2); err != nil {
		return
	}
	err = requireRank("x2 (expert_ids)", x2, 2)
	return
}

// moeGroups declares the ep_group and tp_group variables and returns their names.
func moeGroups(c *caseCtx, tc *TestCase) (ep, tp string) {
	ep = tc.DeclareString("ep_group", c.spec.GroupEP)
	tp = tc.DeclareString("tp_group", c.spec.GroupTP)
	return
}

// moeAttrs returns the attributes shared by the MoE operators, from group_ep to
// shared_expert_rank_num, with the given group expressions.
func moeAttrs(c *caseCtx, groupEP, groupTP Attr, defExpertNum, defShared int64) []Attr {
	spec := c.spec
	groupEP.Name, groupTP.Name = "group_ep", "group_tp"
	return []Attr{
		groupEP,
		IntAttr("ep_world_size", c.OptInt(spec.EPWorldSize, "ep_world_size", 8)),
		IntAttr("ep_rank_id", c.OptInt(spec.EPRankID, "ep_rank_id", 0)),
		IntAttr("moe_expert_num", c.OptInt(spec.MoeExpertNum, "moe_expert_num", defExpertNum)),
		groupTP,
		IntAttr("tp_world_size", c.OptInt(spec.TPWorldSize, "tp_world_size", 1)),
		IntAttr("tp_rank_id", c.OptInt(spec.TPRankID, "tp_rank_id", 0)),
		IntAttr("expert_shard_type", c.OptInt(spec.ExpertShardType, "expert_shard_type", 0)),
		IntAttr("shared_expert_num", c.OptInt(spec.SharedExpertNum, "shared_expert_num", defShared)),
		IntAttr("shared_expert_rank_num", c.OptInt(spec.SharedExpertRankNum, "shared_expert_rank_num", defShared)),
	}
}

var moeDistributeDispatchOp = &opDef{
	Name:          "MoeDistributeDispatch",
	Hardware:      HardwareDefault,
	KernelInputs:  3,
	KernelOutputs: 6,
	TilingDataCap: 4096,
	SetOpType:     true,
	Defaults: map[string]any{
		"x1":                     casespec.Dims(8, 7168),
		"x2":                     casespec.Dims(8, 8),
		"moe_expert_num":         int64(8),
		"shared_expert_num":      int64(1),
		"shared_expert_rank_num": int64(1),
		"expert_shard_type":      int64(0),
		"quant_mode":             int64(0),
		"global_bs":              int64(0),
		"expert_token_nums_type": int64(0),
		"expert_token_nums_len":  int64(1),
	},
	Describe: describeMoeDistributeDispatch,
}

// describeMoeDistributeDispatch: inputs (expand_x, expert_ids), outputs (expand_x, dynamic_scales,
// expand_idx, expert_token_nums, ep_recv_count, tp_recv_count).
func describeMoeDistributeDispatch(c *caseCtx, tc *TestCase) error {
	x1, x2, out, err := moeShapes(c)
	if err != nil {
		return err
	}
	if out == nil {
		out = casespec.Dims(x1.Dim(0)*8, x1.Dim(1))
	}
	spec := c.spec
	dtIn, _ := c.IODTypes()
	epWorldSize := c.OptInt(spec.EPWorldSize, "ep_world_size", 8)
	tpWorldSize := c.OptInt(spec.TPWorldSize, "tp_world_size", 1)

	expandXOut := c.Dims("expand_x_out", out)
	if err := requireRank("expand_x_out", expandXOut, 1); err != nil {
		return err
	}
	expandX := tc.AddTensor("expand_x_shape", x1)
	expertIDs := tc.AddTensor("expert_ids_shape", x2)
	outputs := []string{
		tc.AddTensor("expand_x_output_shape", expandXOut),
		tc.AddTensor("dynamic_scales_output_shape", casespec.Dims(c.Int("dynamic_scales_len", expandXOut.Dim(0)))),
		tc.AddTensor("expand_idx_output_shape", casespec.Dims(c.Int("expand_idx_len", x2.Dim(0)*x2.Dim(1)))),
		tc.AddTensor("expert_token_nums_output_shape", casespec.Dims(c.Int("expert_token_nums_len", 1))),
		tc.AddTensor("ep_recv_count_output_shape", casespec.Dims(c.Int("ep_recv_count_len", atLeastOne(epWorldSize)))),
		tc.AddTensor("tp_recv_count_output_shape", casespec.Dims(c.Int("tp_recv_count_len", atLeastOne(tpWorldSize)))),
	}

	tc.AddInput(expandX, dtIn)
	tc.AddInput(expertIDs, ge(casespec.DTInt32))
	outputDTypes := []string{dtIn, casespec.DTFloat, casespec.DTInt32, casespec.DTInt64, casespec.DTInt32, casespec.DTInt32}
	for ii, output := range outputs {
		tc.AddOutput(output, ge(outputDTypes[ii]))
	}

	ep, tp := moeGroups(c, tc)
	tc.AddAttrs(moeAttrs(c, StringVarAttr("", ep), StringVarAttr("", tp), 8, 1)...)
	tc.AddAttrs(
		IntAttr("quant_mode", c.OptInt(spec.QuantMode, "quant_mode", 0)),
		IntAttr("global_bs", c.OptInt(spec.GlobalBS, "global_bs", 0)),
		IntAttr("expert_token_nums_type", c.OptInt(spec.ExpertTokenNumsType, "expert_token_nums_type", 0)),
	)
	return nil
}

var moeDistributeCombineV2Op = &opDef{
	Name:          "MoeDistributeCombineV2",
	Hardware:      HardwareDefault,
	CompileInfo:   "MoeDistributeCombineCompileInfo",
	KernelInputs:  6,
	KernelOutputs: 1,
	TilingDataCap: 4096,
	Defaults: map[string]any{
		"x1":                     casespec.Dims(64, 7168),
		"x2":                     casespec.Dims(8, 8),
		"out":                    casespec.Dims(8, 7168),
		"moe_expert_num":         int64(7),
		"shared_expert_num":      int64(1),
		"shared_expert_rank_num": int64(1),
		"expert_shard_type":      int64(0),
		"global_bs":              int64(0),
		"out_dtype":              int64(0),
		"comm_quant_mode":        int64(0),
		"group_list_type":        int64(0),
	},
	Describe: describeMoeDistributeCombineV2,
}

// describeMoeDistributeCombineV2: inputs (expand_x, expert_ids, expand_idx, ep_send_counts,
// expert_scales, tp_send_counts), outputs (x). With a shared_expert_x shape the node takes the
// 12-input form: five optional inputs left as nullptr, then shared_expert_x.
func describeMoeDistributeCombineV2(c *caseCtx, tc *TestCase) error {
	x1, x2, out, err := moeShapes(c)
	if err != nil {
		return err
	}
	spec := c.spec
	if out == nil {
		out = x1
	}
	dtIn, _ := c.IODTypes()
	epWorldSize := c.OptInt(spec.EPWorldSize, "ep_world_size", 8)
	tpWorldSize := c.OptInt(spec.TPWorldSize, "tp_world_size", 1)

	expertIDsDims := c.Dims("expert_ids", x2)
	if err := requireRank("expert_ids", expertIDsDims, 2); err != nil {
		return err
	}
	expandX := tc.AddTensor("expand_x_shape", c.Dims("expand_x", x1))
	expertIDs := tc.AddTensor("expert_ids_shape", expertIDsDims)
	expandIdx := tc.AddTensor("expand_idx_shape",
		casespec.Dims(c.Int("expand_idx_len", expertIDsDims.Dim(0)*expertIDsDims.Dim(1))))
	epSendCounts := tc.AddTensor("ep_send_counts_shape", casespec.Dims(c.Int("ep_send_counts_len", atLeastOne(epWorldSize))))
	tpSendCounts := tc.AddTensor("tp_send_counts_shape", casespec.Dims(c.Int("tp_send_counts_len", atLeastOne(tpWorldSize))))
	expertScales := tc.AddTensor("expert_scales_shape", c.Dims("expert_scales", expertIDsDims))
	var sharedExpertX string
	if shape := spec.SharedExpertX; shape != nil {
		if shape.Rank() < 2 || shape.Rank() > 3 {
			return errors.Errorf("shared_expert_x must be 2D or 3D, got %s", shape)
		}
		sharedExpertX = tc.AddTensor("shared_expert_x_shape", shape)
	}
	xOutput := tc.AddTensor("x_output_shape", c.Dims("x_output", out))

	tc.AddInput(expandX, dtIn)
	tc.AddInput(expertIDs, ge(casespec.DTInt32))
	tc.AddInput(expandIdx, ge(casespec.DTInt32))
	tc.AddInput(epSendCounts, ge(casespec.DTInt32))
	tc.AddInput(expertScales, ge(casespec.DTFloat))
	tc.AddInput(tpSendCounts, ge(casespec.DTInt32))
	if sharedExpertX != "" {
		for _, dtype := range []string{casespec.DTInt32, casespec.DTFloat, casespec.DTInt32, casespec.DTInt32, casespec.DTFloat} {
			tc.AddInput("", ge(dtype))
		}
		tc.AddInput(sharedExpertX, dtIn)
	}
	tc.AddOutput(xOutput, ge(casespec.DTFloat16))

	ep, tp := moeGroups(c, tc)
	tc.AddAttrs(moeAttrs(c, StringVarAttr("", ep), StringVarAttr("", tp), 7, 1)...)
	tc.AddAttrs(
		IntAttr("global_bs", c.OptInt(spec.GlobalBS, "global_bs", 0)),
		IntAttr("out_dtype", c.OptInt(spec.OutDType, "out_dtype", 0)),
		IntAttr("comm_quant_mode", c.OptInt(spec.CommQuantMode, "comm_quant_mode", 0)),
		IntAttr("group_list_type", c.OptInt(spec.GroupListType, "group_list_type", 0)),
	)
	return nil
}

var moeDistributeCombineAddRmsNormOp = &opDef{
	Name:          "MoeDistributeCombineAddRmsNorm",
	Hardware:      HardwareDefault,
	KernelInputs:  2,
	KernelOutputs: 1,
	TilingDataCap: 8192,
	Defaults: map[string]any{
		"A":                      int64(64),
		"BS":                     int64(8),
		"K":                      int64(8),
		"H":                      int64(7168),
		"moe_expert_num":         int64(8),
		"shared_expert_num":      int64(0),
		"shared_expert_rank_num": int64(0),
		"comm_alg":               "",
		"norm_eps":               1e-6,
	},
	Describe: describeMoeDistributeCombineAddRmsNorm,
}

// describeMoeDistributeCombineAddRmsNorm: 14 inputs and outputs (y, rstd, x). Shapes derive from
// A (expanded rows), BS (batch), K (top-k) and H (hidden size), each tensor overridable by a
// column of its own name. activation_scale, weight_scale, group_list and expand_scales are wired
// only when given.
func describeMoeDistributeCombineAddRmsNorm(c *caseCtx, tc *TestCase) error {
	spec := c.spec
	dt, _ := c.IODTypesOr(ge(casespec.DTBFloat16))
	dtI32, dtI64, dtF32, dtBool := ge(casespec.DTInt32), ge(casespec.DTInt64), ge(casespec.DTFloat), ge(casespec.DTBool)
	a, bs, k, h := c.Int("A", 64), c.Int("BS", 8), c.Int("K", 8), c.Int("H", 7168)
	epWorldSize := c.OptInt(spec.EPWorldSize, "ep_world_size", 8)
	tpWorldSize := c.OptInt(spec.TPWorldSize, "tp_world_size", 1)

	type input struct {
		name  string
		dims  casespec.Shape
		dtype string
	}
	inputs := []input{
		{"expand_x", casespec.Dims(a, h), dt},
		{"expert_ids", casespec.Dims(bs, k), dtI32},
		{"assist_info", casespec.Dims(a * 128), dtI32},
		{"ep_send_counts", casespec.Dims(epWorldSize), dtI32},
		{"expert_scales", casespec.Dims(bs, k), dtF32},
		{"residual_x", casespec.Dims(bs, 1, h), dt},
		{"gamma", casespec.Dims(h), dt},
		{"tp_send_counts", casespec.Dims(tpWorldSize), dtI32},
		{"x_active_mask", casespec.Dims(bs), dtBool},
		{"activation_scale", nil, dtF32},
		{"weight_scale", nil, dtF32},
		{"group_list", nil, dtI64},
		{"expand_scales", nil, dtF32},
		{"shared_expert_x", casespec.Dims(bs, h), dt},
	}
	if spec.SharedExpertX != nil {
		inputs[len(inputs)-1].dims = spec.SharedExpertX
	}
	for _, in := range inputs {
		tensor := tc.AddTensor(in.name+"_shape", c.Dims(in.name, in.dims))
		tc.AddInput(tensor, in.dtype)
	}
	tc.AddOutput(tc.AddTensor("y_shape", c.Dims("y", casespec.Dims(bs, 1, h))), dt)
	tc.AddOutput(tc.AddTensor("rstd_shape", c.Dims("rstd", casespec.Dims(bs, 1, 1))), dtF32)
	tc.AddOutput(tc.AddTensor("x_shape", c.Dims("x", casespec.Dims(bs, 1, h))), dt)

	tc.AddAttrs(moeAttrs(c, StringAttr("", spec.GroupEP), StringAttr("", spec.GroupTP), 8, 0)...)
	tc.AddAttrs(
		IntAttr("global_bs", c.OptInt(spec.GlobalBS, "global_bs", 0)),
		IntAttr("out_dtype", c.OptInt(spec.OutDType, "out_dtype", 0)),
		IntAttr("comm_quant_mode", c.OptInt(spec.CommQuantMode, "comm_quant_mode", 0)),
		IntAttr("group_list_type", c.OptInt(spec.GroupListType, "group_list_type", 0)),
		StringAttr("comm_alg", c.String("comm_alg", "")),
		FloatAttr("norm_eps", c.Float("norm_eps", 1e-6)),
	)
	return nil
}
