// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package render

import (
	"fmt"
	"strconv"

	"github.com/gomlx/tilingut/pkg/casespec"
	"github.com/gomlx/tilingut/pkg/support/xstrings"
)

// TestCase describes one TEST_F block. Renderers fill it in, and Emit writes it out.
type TestCase struct {
	// Operator is the operator name; the fixture is Operator+"Tiling".
	Operator string

	// Name is the gtest case name, a valid identifier.
	Name string

	Hardware Hardware

	// CompileInfo is the name of the (empty) compile-info struct declared for the parse step.
	CompileInfo string

	// KernelInputs, KernelOutputs are the IO counts of the tiling-parse kernel context.
	KernelInputs, KernelOutputs int

	// TilingDataCap is the capacity of the tiling data buffer, also used for the workspace vector.
	TilingDataCap int

	// Tensors are declared as gert::StorageShape variables, in order.
	Tensors []Tensor

	// Decls are C++ declarations (one statement each, without indentation) placed before the
	// context is built, e.g. the group name variables.
	Decls []string

	// Inputs and Outputs are the positional slots of the node.
	Inputs, Outputs []Slot

	Attrs []Attr

	// SetOpType adds .SetOpType(op_type) to the context builder.
	SetOpType bool

	// SocVersion, if not empty, is installed as the "version" platform resource.
	SocVersion string

	// Topology, if set, is installed for the duration of the test body.
	Topology *Topology

	// Env variables are set before the tiling call and unset when the test body exits.
	Env []casespec.EnvVar

	// ExpectFailure selects ge::GRAPH_FAILED as the expected return code.
	ExpectFailure bool

	// TilingKey, if not empty, is the C++ expression the tiling key must equal.
	TilingKey string
}

// Tensor is a gert::StorageShape declaration, with equal origin and storage dimensions.
type Tensor struct {
	Name string
	Dims casespec.Shape
}

// Slot is one positional input or output of the node.
type Slot struct {
	// Tensor is the name of a declared Tensor, or "" for nullptr.
	Tensor string

	// DType is the GE dtype literal (e.g. "ge::DT_FLOAT16") of the slot, or "" if the slot has
	// no tensor description.
	DType string
}

// Attr is one node attribute: {"Name", ge::AnyValue::CreateFrom<Type>(Value)}.
type Attr struct {
	Name string

	// Type is the C++ type of the attribute, see the Attr* constants.
	Type string

	// Value is a C++ expression: a literal or the name of a declared variable.
	Value string
}

// C++ types of node attributes.
const (
	AttrString = "std::string"
	AttrBool   = "bool"
	AttrInt    = "int64_t"
	AttrFloat  = "float"
	AttrVector = "std::vector<int64_t>"
)

// Topology is the communication topology installed with ge::HcomTopoInfo.
type Topology struct {
	// GroupVar is the name of the declared std::string holding the group name.
	GroupVar string
	RankSize int64

	// CommSets sets topo_level_descs[0].comm_sets to 0b1U.
	CommSets bool
}

// Fixture returns the gtest fixture class name.
func (tc *TestCase) Fixture() string {
	return tc.Operator + "Tiling"
}

// AddTensor declares a tensor and returns its variable name. A nil or empty dims declares
// nothing and returns "", which wires as nullptr.
func (tc *TestCase) AddTensor(name string, dims casespec.Shape) string {
	if len(dims) == 0 {
		return ""
	}
	tc.Tensors = append(tc.Tensors, Tensor{Name: name, Dims: dims})
	return name
}

// AddInput appends an input slot.
func (tc *TestCase) AddInput(tensor, dtype string) {
	tc.Inputs = append(tc.Inputs, Slot{Tensor: tensor, DType: dtype})
}

// AddOutput appends an output slot.
func (tc *TestCase) AddOutput(tensor, dtype string) {
	tc.Outputs = append(tc.Outputs, Slot{Tensor: tensor, DType: dtype})
}

// DeclareString declares `std::string variable("value");` and returns variable.
func (tc *TestCase) DeclareString(variable, value string) string {
	tc.Decls = append(tc.Decls, fmt.Sprintf("std::string %s(\"%s\");", variable, xstrings.CEscape(value)))
	return variable
}

// DeclareInt declares `int64_t variable = value;` and returns variable.
func (tc *TestCase) DeclareInt(variable string, value int64) string {
	tc.Decls = append(tc.Decls, fmt.Sprintf("int64_t %s = %d;", variable, value))
	return variable
}

// DeclareVector declares `std::vector<int64_t> variable = {...};` and returns variable.
func (tc *TestCase) DeclareVector(variable string, values []int64) string {
	tc.Decls = append(tc.Decls, fmt.Sprintf("std::vector<int64_t> %s = {%s};", variable, joinInts(values)))
	return variable
}

// AddAttrs appends node attributes.
func (tc *TestCase) AddAttrs(attrs ...Attr) {
	tc.Attrs = append(tc.Attrs, attrs...)
}

// StringVarAttr is a string attribute read from a declared std::string variable.
func StringVarAttr(name, variable string) Attr {
	return Attr{Name: name, Type: AttrString, Value: variable}
}

// StringAttr is a string attribute with a literal value.
func StringAttr(name, value string) Attr {
	return Attr{Name: name, Type: AttrString, Value: fmt.Sprintf("std::string(\"%s\")", xstrings.CEscape(value))}
}

// BoolAttr is a boolean attribute.
func BoolAttr(name string, value bool) Attr {
	return Attr{Name: name, Type: AttrBool, Value: strconv.FormatBool(value)}
}

// IntAttr is an int64_t attribute.
func IntAttr(name string, value int64) Attr {
	return Attr{Name: name, Type: AttrInt, Value: strconv.FormatInt(value, 10)}
}

// IntVarAttr is an int64_t attribute read from a declared variable.
func IntVarAttr(name, variable string) Attr {
	return Attr{Name: name, Type: AttrInt, Value: variable}
}

// FloatAttr is a float attribute.
func FloatAttr(name string, value float64) Attr {
	return Attr{Name: name, Type: AttrFloat, Value: strconv.FormatFloat(value, 'g', -1, 32)}
}

// VectorAttr is a std::vector<int64_t> attribute read from a declared variable.
func VectorAttr(name, variable string) Attr {
	return Attr{Name: name, Type: AttrVector, Value: variable}
}

func joinInts(values []int64) string {
	buf := make([]byte, 0, 8*len(values))
	for ii, v := range values {
		if ii > 0 {
			buf = append(buf, ", "...)
		}
		buf = strconv.AppendInt(buf, v, 10)
	}
	return string(buf)
}
