// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package render

import (
	"github.com/gomlx/tilingut/pkg/casespec"
)

var distributeBarrierOp = &opDef{
	Name:          "DistributeBarrier",
	Hardware:      HardwareDefault,
	KernelInputs:  1,
	KernelOutputs: 1,
	TilingDataCap: 4096,
	Defaults: map[string]any{
		"x":          casespec.Dims(3, 4),
		"world_size": int64(casespec.DefaultWorldSize),
	},
	Describe: describeDistributeBarrier,
}

// describeDistributeBarrier: input (x_ref), output (x_ref), with y defaulting to x.
func describeDistributeBarrier(c *caseCtx, tc *TestCase) error {
	dtIn, dtOut := c.IODTypesOr(ge(casespec.DTFloat16))
	xDims := c.Dims("x", nil)
	if err := requireRank("x", xDims, 1); err != nil {
		return err
	}
	tc.AddInput(tc.AddTensor("x_ref_shape", xDims), dtIn)
	tc.AddOutput(tc.AddTensor("x_ref_output_shape", c.Dims("y", xDims)), dtOut)

	group := tc.DeclareString("group", c.String("group", "group"))
	worldSize := tc.DeclareInt("world_size", c.WorldSize())
	tc.AddAttrs(
		StringVarAttr("group", group),
		IntVarAttr("world_size", worldSize),
	)
	return nil
}

var moeEPLBUpdateExpertOp = &opDef{
	Name:          "MoeEPLBUpdateExpert",
	Hardware:      HardwareDefault,
	KernelInputs:  2,
	KernelOutputs: 1,
	TilingDataCap: 8192,
	Defaults: map[string]any{
		"expert_ids":          casespec.Dims(128, 8),
		"eplb_table":          casespec.Dims(256, 5),
		"balanced_expert_ids": casespec.Dims(128, 8),
		"local_rank_id":       int64(0),
		"world_size":          int64(8),
		"balance_mode":        int64(0),
	},
	Describe: describeMoeEPLBUpdateExpert,
}

// describeMoeEPLBUpdateExpert: inputs (expert_ids, eplb_table), output (balanced_expert_ids).
// Tensors are INT32 unless the row names a dtype.
func describeMoeEPLBUpdateExpert(c *caseCtx, tc *TestCase) error {
	dtIn, dtOut := c.IODTypesOr(ge(casespec.DTInt32))
	expertIDs := c.Dims("expert_ids", nil)
	if err := requireRank("expert_ids", expertIDs, 1); err != nil {
		return err
	}
	tc.AddInput(tc.AddTensor("expertIds_shape", expertIDs), dtIn)
	tc.AddInput(tc.AddTensor("eplbTable_shape", c.Dims("eplb_table", nil)), dtIn)
	tc.AddOutput(tc.AddTensor("balancedExpertIds_shape", c.Dims("balanced_expert_ids", expertIDs)), dtOut)
	tc.AddAttrs(
		IntAttr("local_rank_id", c.Int("local_rank_id", 0)),
		IntAttr("world_size", c.Int("world_size", 8)),
		IntAttr("balance_mode", c.Int("balance_mode", 0)),
	)
	return nil
}
