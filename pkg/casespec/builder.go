// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package casespec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gomlx/tilingut/pkg/support/xslices"
	"github.com/gomlx/tilingut/pkg/support/xstrings"
)

// Column aliases, checked left to right: the first non-missing one wins.
var (
	NameColumns        = []string{"test_name", "name", "case_name"}
	X1ShapeColumns     = []string{"x1_shape", "x_shape", "expand_x_shape"}
	X2ShapeColumns     = []string{"x2_shape", "expert_ids_shape"}
	GatherShapeColumns = []string{"gather_output_shape", "gather_out_shape"}
	OutputShapeColumns = []string{"output_shape", "x_output_shape", "output_x_shape"}
	TilingKeyColumns   = []string{"expected_tiling_key", "tiling_key"}
	WorldSizeColumns   = []string{"world_size", "rank_size"}
	EnvColumns         = []string{"env_vars", "env"}
	SocVersionColumns  = []string{"soc_version", "short_soc_version"}
	DTypeColumns       = []string{"expand_x_dtype", "input_tensor_dtype", "output_dtype", "dtype", "DType"}
)

const (
	DefaultWorldSize = 8
	DefaultGroupEP   = "ep_group"
	DefaultGroupTP   = "tp_group"
)

var (
	reTilingKeyLiteral = regexp.MustCompile(`^(0[xX][0-9a-fA-F]+|[0-9]+)[uUlL]*$`)
	reEnvSeparators    = regexp.MustCompile(`[;\n]`)
)

// FromRow builds the CaseSpec of the row numbered idx. Callers number data rows from 1 (see
// generate.FirstRowIndex), and an unnamed row is called "case_<idx>".
//
// Priorities per field:
//
//   - Shapes: explicit shape columns (first alias wins), then input_tensor_shape entries 0 and 1
//     override x1/x2. m, k, n are kept for EnsureShapes when no explicit shape is available.
//   - DType: expand_x_dtype, then input_tensor_dtype[0], then output_dtype[0], then dtype/DType,
//     then "float16".
//   - HasBias: only the is_bias column.
//
// Operator-specific integers are left unset when absent. FromRow never fails: malformed cells
// degrade to their defaults.
func FromRow(row Row, idx int) *CaseSpec {
	spec := &CaseSpec{
		Index:   idx,
		Columns: row.Clone(),
	}
	name := ""
	if v := row.Get(NameColumns...); v != nil {
		name = fmt.Sprint(v)
	}
	spec.Name = xstrings.SanitizeIdentifier(name, fmt.Sprintf("case_%d", idx))

	spec.M = ParseOptInt(row.Get("m", "M"))
	spec.K = ParseOptInt(row.Get("k", "K"))
	spec.N = ParseOptInt(row.Get("n", "N"))

	spec.X1Shape = ParseShape(row.Get(X1ShapeColumns...))
	spec.X2Shape = ParseShape(row.Get(X2ShapeColumns...))
	spec.GatherOutputShape = ParseShape(row.Get(GatherShapeColumns...))
	spec.OutputShape = ParseShape(row.Get(OutputShapeColumns...))
	spec.SharedExpertX = ParseDims(row.Get("shared_expert_x_shape", "shared_expert_x"))

	spec.InputShapes = ParseShapeList(row.Get("input_tensor_shape"))
	if len(spec.InputShapes) >= 1 && spec.InputShapes[0].Rank() >= 2 {
		spec.X1Shape = Dims(spec.InputShapes[0][0], spec.InputShapes[0][1])
	}
	if len(spec.InputShapes) >= 2 && spec.InputShapes[1].Rank() >= 2 {
		spec.X2Shape = Dims(spec.InputShapes[1][0], spec.InputShapes[1][1])
	}

	spec.InputDTypes = ParseDTypeList(row.Get("input_tensor_dtype"))
	spec.OutputDTypes = ParseDTypeList(row.Get("output_dtype"))
	spec.DType = resolveDType(row, spec.InputDTypes, spec.OutputDTypes)

	spec.IsTransA = ParseBool(row.Get("is_trans_a", "transpose_a"))
	spec.IsTransB = ParseBool(row.Get("is_trans_b", "transpose_b"))
	spec.HasBias = ParseBool(row.Get("is_bias"))
	if row.Has("bias_len") {
		spec.BiasLen = ParseOptInt(row.Get("bias_len"))
	}
	if !spec.BiasLen.Valid {
		spec.BiasLen = ParseShape1D(row.Get("bias_shape"))
	}

	spec.WorldSize = ParseInt(row.Get(WorldSizeColumns...), DefaultWorldSize)
	spec.GatherOutput = true
	if v := row.Get("gather_output"); v != nil {
		spec.GatherOutput = ParseBool(v)
	}
	spec.GatherIndex = ParseInt(row.Get("gather_index"), 0)
	spec.CommTurn = ParseInt(row.Get("comm_turn"), 0)
	spec.ExpectedTilingKey, spec.ExpectedTilingKeyLiteral = parseTilingKey(row.Get(TilingKeyColumns...))

	spec.GroupEP = stringOr(row.Get("group_ep"), DefaultGroupEP)
	spec.GroupTP = stringOr(row.Get("group_tp"), DefaultGroupTP)
	spec.EPWorldSize = ParseOptInt(row.Get("ep_world_size"))
	spec.EPRankID = ParseOptInt(row.Get("ep_rank_id"))
	spec.MoeExpertNum = ParseOptInt(row.Get("moe_expert_num"))
	spec.TPWorldSize = ParseOptInt(row.Get("tp_world_size"))
	spec.TPRankID = ParseOptInt(row.Get("tp_rank_id"))
	spec.ExpertShardType = ParseOptInt(row.Get("expert_shard_type"))
	spec.SharedExpertNum = ParseOptInt(row.Get("shared_expert_num"))
	spec.SharedExpertRankNum = ParseOptInt(row.Get("shared_expert_rank_num"))
	spec.GlobalBS = ParseOptInt(row.Get("global_bs"))
	spec.OutDType = ParseOptInt(row.Get("out_dtype"))
	spec.CommQuantMode = ParseOptInt(row.Get("comm_quant_mode"))
	spec.QuantMode = ParseOptInt(row.Get("quant_mode"))
	spec.GroupListType = ParseOptInt(row.Get("group_list_type"))
	spec.ExpertTokenNumsType = ParseOptInt(row.Get("expert_token_nums_type"))
	if v := row.Get(SocVersionColumns...); v != nil {
		spec.ShortSocVersion = Some(strings.TrimSpace(fmt.Sprint(v)))
	}

	spec.ExpectSuccess = parseExpectSuccess(row)
	spec.EnvVars = ParseEnvVars(row.Get(EnvColumns...))
	return spec
}

func resolveDType(row Row, inputs, outputs []string) string {
	if v := row.Get("expand_x_dtype"); v != nil {
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			return s
		}
	}
	if len(inputs) > 0 {
		return inputs[0]
	}
	if len(outputs) > 0 {
		return outputs[0]
	}
	return stringOr(row.Get("dtype", "DType"), DefaultDType)
}

func stringOr(v any, def string) string {
	if v == nil {
		return def
	}
	if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
		return s
	}
	return def
}

// parseTilingKey returns the numeric key, or the verbatim literal for values like "110UL" or
// "0x10" that are valid C++ integer literals but not plain integers.
func parseTilingKey(v any) (Opt[int64], string) {
	if v == nil {
		return Opt[int64]{}, ""
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if key := ParseOptInt(s); key.Valid {
			return key, ""
		}
		if reTilingKeyLiteral.MatchString(s) {
			return Opt[int64]{}, s
		}
		return Opt[int64]{}, ""
	}
	return ParseOptInt(v), ""
}

// parseExpectSuccess reads expected_ret ("GRAPH_FAILED", "ge::GRAPH_SUCCESS", "failed", ...)
// and falls back to the expect_success boolean column.
func parseExpectSuccess(row Row) Opt[bool] {
	if v := row.Get("expected_ret"); v != nil {
		ret := strings.ToUpper(fmt.Sprint(v))
		switch {
		case strings.Contains(ret, "FAIL"):
			return Some(false)
		case strings.Contains(ret, "SUCCESS"):
			return Some(true)
		}
	}
	if v := row.Get("expect_success"); v != nil {
		return Some(ParseBool(v))
	}
	return Opt[bool]{}
}

// ParseEnvVars parses "NAME=value;OTHER=value" (';' or newline separated), or a map, into an
// ordered list. Entries without a name are skipped; a later entry overrides an earlier one with
// the same name.
func ParseEnvVars(v any) []EnvVar {
	var pairs []EnvVar
	switch x := v.(type) {
	case nil:
		return nil
	case map[string]string:
		for _, name := range xslices.SortedKeys(x) {
			pairs = append(pairs, EnvVar{Name: name, Value: x[name]})
		}
	case map[string]any:
		for _, name := range xslices.SortedKeys(x) {
			pairs = append(pairs, EnvVar{Name: name, Value: fmt.Sprint(x[name])})
		}
	default:
		for _, entry := range reEnvSeparators.Split(fmt.Sprint(v), -1) {
			name, value, _ := strings.Cut(entry, "=")
			pairs = append(pairs, EnvVar{Name: name, Value: value})
		}
	}
	var envs []EnvVar
	position := make(map[string]int)
	for _, pair := range pairs {
		pair.Name = strings.TrimSpace(pair.Name)
		pair.Value = strings.TrimSpace(pair.Value)
		if pair.Name == "" {
			continue
		}
		if pos, found := position[pair.Name]; found {
			envs[pos].Value = pair.Value
			continue
		}
		position[pair.Name] = len(envs)
		envs = append(envs, pair)
	}
	return envs
}
