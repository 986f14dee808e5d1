// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package casespec turns loosely typed spreadsheet rows into CaseSpec records, the normalized
// description of one tiling test case, and resolves the tensor shapes of the generic
// matmul-family operators.
//
// Two-stage defaults: the builder (FromRow) leaves operator-specific fields unset, and each
// renderer applies its own default when reading them.
package casespec

// EnvVar is one environment variable set around the tiling call.
type EnvVar struct {
	Name, Value string
}

// CaseSpec describes one test case for one operator invocation.
// It is built once per row by FromRow and never mutated afterwards.
type CaseSpec struct {
	// Name is the gtest case name, already sanitized into an identifier.
	Name string

	// Index is the row number given to FromRow, 1 for the first data row.
	Index int

	// M, K, N are the matmul dimensions, used when no explicit shapes are given.
	M, K, N Opt[int64]

	// DType names the element type ("float16", "bf16", ...), see DTypeToGE.
	DType string

	IsTransA, IsTransB bool

	// HasBias is driven exclusively by the is_bias column.
	HasBias bool

	// WorldSize is the communication group size, 8 by default.
	WorldSize int64

	// GatherOutput defaults to true.
	GatherOutput bool
	GatherIndex  int64
	CommTurn     int64

	// ExpectedTilingKey, if set, is asserted after the tiling call.
	// ExpectedTilingKeyLiteral keeps a key that is not a plain integer (e.g. "110UL") verbatim,
	// and takes precedence when set.
	ExpectedTilingKey        Opt[int64]
	ExpectedTilingKeyLiteral string

	// Explicit shape overrides, nil when not provided.
	X1Shape, X2Shape, GatherOutputShape, OutputShape Shape
	SharedExpertX                                    Shape
	BiasLen                                          Opt[int64]

	// InputShapes is the full input_tensor_shape list, if given.
	InputShapes []Shape

	// InputDTypes and OutputDTypes are the upper-cased input_tensor_dtype / output_dtype lists.
	InputDTypes, OutputDTypes []string

	// Communication groups.
	GroupEP, GroupTP string

	// Operator-specific attributes. Left unset by the builder: renderers pick their own defaults.
	EPWorldSize         Opt[int64]
	EPRankID            Opt[int64]
	MoeExpertNum        Opt[int64]
	TPWorldSize         Opt[int64]
	TPRankID            Opt[int64]
	ExpertShardType     Opt[int64]
	SharedExpertNum     Opt[int64]
	SharedExpertRankNum Opt[int64]
	GlobalBS            Opt[int64]
	OutDType            Opt[int64]
	CommQuantMode       Opt[int64]
	QuantMode           Opt[int64]
	GroupListType       Opt[int64]
	ExpertTokenNumsType Opt[int64]

	// ShortSocVersion, if set, is installed as the "version" platform resource.
	ShortSocVersion Opt[string]

	// ExpectSuccess selects the expected return code: GRAPH_SUCCESS (true) or GRAPH_FAILED.
	ExpectSuccess Opt[bool]

	// EnvVars are set before the tiling call and unset when the test body exits.
	EnvVars []EnvVar

	// Columns is the source row, for the operator-specific keys a single renderer reads.
	Columns Row
}

// Column returns the raw value of the first non-missing column among the given names, or nil.
func (c *CaseSpec) Column(names ...string) any {
	return c.Columns.Get(names...)
}

// ExplicitDType reports whether the source row named a dtype, as opposed to DType holding the
// DefaultDType fallback.
func (c *CaseSpec) ExplicitDType() bool {
	return c.Columns.Get(DTypeColumns...) != nil
}
