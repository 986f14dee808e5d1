// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package render turns a casespec.CaseSpec into the text of one gtest TEST_F block exercising an
// operator's tiling function.
//
// Every operator family has its own Renderer with a fixed positional input/output contract.
// Renderers don't write text themselves: they describe the case as a TestCase, and a single
// emitter (see TestCase.Emit) produces the C++ source, so section order and cleanup discipline
// are the same for all operators.
//
// Renderers are found through a Selector, which resolves an operator name to a registered
// Renderer, optionally adjusted by an overlay file from a template directory.
package render

import (
	"github.com/gomlx/tilingut/internal/scoped"
	"github.com/gomlx/tilingut/pkg/casespec"
)

// Renderer renders one test case of the operator op.
//
// Renderers are pure: they only read spec and helpers, so they can be called concurrently.
type Renderer interface {
	Render(op string, spec *casespec.CaseSpec, idx int, helpers Helpers) (string, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(op string, spec *casespec.CaseSpec, idx int, helpers Helpers) (string, error)

// Render implements Renderer.
func (fn RendererFunc) Render(op string, spec *casespec.CaseSpec, idx int, helpers Helpers) (string, error) {
	return fn(op, spec, idx, helpers)
}

// Helpers is the capability bag passed to every renderer.
type Helpers struct {
	// EnsureShapes resolves the generic matmul-family shapes.
	EnsureShapes func(spec *casespec.CaseSpec) (casespec.Resolved, error)

	// DTypeToGE maps a dtype name to its (input, output) GE literals, without the "ge::" prefix.
	DTypeToGE func(dtype string) (in, out string)

	// Defaults holds the per-renderer default tables. If nil, the built-in tables are used.
	Defaults *scoped.Params

	// Scope is the scope in Defaults where lookups start. If empty, renderers use their own
	// scope ("/<RendererName>").
	Scope string

	// Hardware, if set, replaces the renderer's hardware profile.
	Hardware *Hardware

	// CompileInfo, if set, replaces the renderer's compile-info struct name.
	CompileInfo string
}

// DefaultHelpers returns the Helpers backed by the casespec package and the built-in default tables.
func DefaultHelpers() Helpers {
	return Helpers{
		EnsureShapes: casespec.EnsureShapes,
		DTypeToGE:    casespec.DTypeToGE,
		Defaults:     defaultTables,
	}
}

// withFallbacks fills in any capability left unset.
func (h Helpers) withFallbacks() Helpers {
	if h.EnsureShapes == nil {
		h.EnsureShapes = casespec.EnsureShapes
	}
	if h.DTypeToGE == nil {
		h.DTypeToGE = casespec.DTypeToGE
	}
	if h.Defaults == nil {
		h.Defaults = defaultTables
	}
	return h
}
