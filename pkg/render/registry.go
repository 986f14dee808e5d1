// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package render

import (
	"sync"

	"github.com/gomlx/tilingut/internal/scoped"
	"github.com/gomlx/tilingut/pkg/casespec"
	"github.com/gomlx/tilingut/pkg/support/sets"
	"github.com/gomlx/tilingut/pkg/support/xstrings"
)

// DefaultName is the registry entry used for operators without a renderer of their own.
// It is the AllGatherMatmul renderer, see BuiltIn.
const DefaultName = "default"

// builtInOps is the fixed table of operator renderers.
var builtInOps = []*opDef{
	allGatherMatmulOp,
	allGatherMatmulV2Op,
	matmulReduceScatterOp,
	matmulReduceScatterV2Op,
	matmulAllReduceOp,
	moeDistributeDispatchOp,
	moeDistributeCombineV2Op,
	moeDistributeCombineAddRmsNormOp,
	alltoAllvGroupedMatMulOp,
	groupedMatMulAlltoAllvOp,
	alltoAllAllGatherBatchMatMulOp,
	batchMatMulReduceScatterAlltoAllOp,
	distributeBarrierOp,
	moeEPLBUpdateExpertOp,
}

// sharedDefaults is the root scope of the default tables: values every renderer falls back to.
var sharedDefaults = map[string]any{
	"group":         "group",
	"reduce_op":     "sum",
	"ep_world_size": int64(8),
	"tp_world_size": int64(1),
	"ep_rank_id":    int64(0),
	"tp_rank_id":    int64(0),
}

// defaultTables holds sharedDefaults at "/" and each renderer's Defaults at "/<Name>".
// It is read-only after init.
var defaultTables = scoped.New("/")

func init() {
	defaultTables.SetAll("/", sharedDefaults)
	for _, op := range builtInOps {
		defaultTables.SetAll(op.Scope(), op.Defaults)
	}
}

// DefaultTables returns a copy of the built-in default tables.
func DefaultTables() *scoped.Params {
	return defaultTables.Clone()
}

// BuiltIn returns the generic AllGatherMatmul renderer, used for unknown operators and whenever
// a template overlay fails to load.
func BuiltIn() Renderer {
	return allGatherMatmulOp
}

// WithoutHelpers adapts a renderer function that doesn't take Helpers.
func WithoutHelpers(fn func(op string, spec *casespec.CaseSpec, idx int) (string, error)) Renderer {
	return RendererFunc(func(op string, spec *casespec.CaseSpec, idx int, _ Helpers) (string, error) {
		return fn(op, spec, idx)
	})
}

// Registry maps operator names to renderers. It is safe for concurrent use.
//
// Each entry is reachable by its CamelCase name and by its snake_case name.
type Registry struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
	canonical map[string]string
}

// NewRegistry returns a registry holding the built-in renderers and the DefaultName entry.
func NewRegistry() *Registry {
	r := &Registry{
		renderers: make(map[string]Renderer),
		canonical: make(map[string]string),
	}
	for _, op := range builtInOps {
		r.Register(op.Name, op)
	}
	r.Register(DefaultName, BuiltIn())
	return r
}

// Register adds or replaces the renderer for name (and for its snake_case form).
func (r *Registry) Register(name string, renderer Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderers[name] = renderer
	r.canonical[name] = name
	if snake := xstrings.SnakeFromCamel(name); snake != name {
		r.renderers[snake] = renderer
		r.canonical[snake] = name
	}
}

// Lookup returns the renderer registered under name (CamelCase or snake_case) and its canonical
// name.
func (r *Registry) Lookup(name string) (renderer Renderer, canonical string, found bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	renderer, found = r.renderers[name]
	return renderer, r.canonical[name], found
}

// Resolve finds the renderer for op: exact name, then snake_case name, then DefaultName.
// The last return value tells whether the default was used.
func (r *Registry) Resolve(op string) (renderer Renderer, canonical string, isDefault bool) {
	if renderer, canonical, found := r.Lookup(op); found {
		return renderer, canonical, canonical == DefaultName
	}
	if renderer, canonical, found := r.Lookup(xstrings.SnakeFromCamel(op)); found {
		return renderer, canonical, canonical == DefaultName
	}
	if renderer, canonical, found := r.Lookup(DefaultName); found {
		return renderer, canonical, true
	}
	return BuiltIn(), allGatherMatmulOp.Name, true
}

// Names returns the canonical names of the registered renderers, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := sets.Make[string](len(r.renderers))
	for _, canonical := range r.canonical {
		names.Insert(canonical)
	}
	return sets.Sorted(names)
}
