// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package casespec

import (
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/tilingut/pkg/support/xslices"
	"github.com/pkg/errors"
)

// Shape lists the dimensions of a tensor. A nil Shape means "not provided".
type Shape []int64

// Dims is a convenience constructor.
func Dims(dims ...int64) Shape {
	return Shape(dims)
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int {
	return len(s)
}

// Dim returns the dimension at axis, where a negative axis counts from the end.
func (s Shape) Dim(axis int) int64 {
	return xslices.At(s, axis)
}

// Size returns the number of elements, 1 for a scalar.
func (s Shape) Size() int64 {
	return xslices.Product(s)
}

// Equal returns whether both shapes have the same dimensions.
func (s Shape) Equal(other Shape) bool {
	return slices.Equal(s, other)
}

// String implements fmt.Stringer, e.g. "[64, 7168]".
func (s Shape) String() string {
	parts := xslices.Map(s, func(d int64) string { return strconv.FormatInt(d, 10) })
	return "[" + strings.Join(parts, ", ") + "]"
}

// ErrMissingParameter is returned (wrapped) when a case lacks the information needed to resolve
// its shapes.
var ErrMissingParameter = errors.New("missing parameter")

// Resolved holds the shapes of the generic matmul-family tensors. GatherOutput and Bias are nil
// when the tensor is absent.
type Resolved struct {
	X1, X2, GatherOutput, Output, Bias Shape
}

// EnsureShapes resolves the generic matmul-family shapes of spec:
//
//   - With both X1Shape and X2Shape given they are used as-is, and Output and GatherOutput
//     default to X1.
//   - Otherwise M, K, N are all required: X1=(m,k), X2=(n,k) if IsTransB else (k,n),
//     Output=(m,n) and GatherOutput=(m,k), unless overridden.
//   - Bias is (BiasLen,) if given, else (last output dimension,), and only when HasBias.
//   - GatherOutput is nil whenever GatherOutput is false, regardless of overrides.
//
// It returns an error wrapping ErrMissingParameter if neither explicit shapes nor m, k, n are
// available. It's a pure function of spec.
func EnsureShapes(spec *CaseSpec) (Resolved, error) {
	var r Resolved
	if spec.X1Shape != nil && spec.X2Shape != nil {
		r.X1, r.X2 = slices.Clone(spec.X1Shape), slices.Clone(spec.X2Shape)
		r.Output = firstShape(spec.OutputShape, r.X1)
		r.GatherOutput = firstShape(spec.GatherOutputShape, r.X1)
	} else {
		m, hasM := spec.M.Get()
		k, hasK := spec.K.Get()
		n, hasN := spec.N.Get()
		if !hasM || !hasK || !hasN {
			return Resolved{}, errors.Wrapf(ErrMissingParameter,
				"case %q: shapes need both x1_shape and x2_shape columns, or all of m, k, n", spec.Name)
		}
		r.X1 = Dims(m, k)
		if spec.IsTransB {
			r.X2 = Dims(n, k)
		} else {
			r.X2 = Dims(k, n)
		}
		r.Output = firstShape(spec.OutputShape, Dims(m, n))
		r.GatherOutput = firstShape(spec.GatherOutputShape, Dims(m, k))
	}
	if spec.HasBias {
		if biasLen, ok := spec.BiasLen.Get(); ok {
			r.Bias = Dims(biasLen)
		} else {
			r.Bias = Dims(r.Output.Dim(-1))
		}
	}
	if !spec.GatherOutput {
		r.GatherOutput = nil
	}
	return r, nil
}

func firstShape(shapes ...Shape) Shape {
	for _, s := range shapes {
		if s != nil {
			return slices.Clone(s)
		}
	}
	return nil
}
