// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/tilingut/pkg/casespec"
	"github.com/gomlx/tilingut/pkg/support/xstrings"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// opDef is the Renderer of one operator family: the fixed parts of its test case plus a
// function describing the per-case parts.
type opDef struct {
	Name string

	Hardware Hardware

	// CompileInfo defaults to Name+"CompileInfo".
	CompileInfo string

	KernelInputs, KernelOutputs int
	TilingDataCap               int
	SetOpType                   bool

	// Defaults is the renderer's default table, stored in scope "/<Name>".
	Defaults map[string]any

	// Describe fills in the tensors, slots, attributes and topology of the case.
	Describe func(c *caseCtx, tc *TestCase) error
}

// Scope returns the scope of the renderer's default table.
func (d *opDef) Scope() string {
	return "/" + d.Name
}

// Render implements Renderer.
func (d *opDef) Render(op string, spec *casespec.CaseSpec, idx int, helpers Helpers) (string, error) {
	if spec == nil {
		return "", errors.Errorf("%s renderer: nil case spec for row %d", d.Name, idx)
	}
	helpers = helpers.withFallbacks()
	c := &caseCtx{op: op, spec: spec, idx: idx, helpers: helpers, scope: helpers.Scope}
	if c.scope == "" {
		c.scope = d.Scope()
	}

	tc := &TestCase{
		Operator:      op,
		Name:          spec.Name,
		Hardware:      d.Hardware,
		CompileInfo:   d.CompileInfo,
		KernelInputs:  d.KernelInputs,
		KernelOutputs: d.KernelOutputs,
		TilingDataCap: d.TilingDataCap,
		SetOpType:     d.SetOpType,
	}
	if tc.CompileInfo == "" {
		tc.CompileInfo = d.Name + "CompileInfo"
	}
	if helpers.Hardware != nil {
		tc.Hardware = *helpers.Hardware
	}
	if helpers.CompileInfo != "" {
		tc.CompileInfo = helpers.CompileInfo
	}
	if name := c.String("compile_info_name", ""); name != "" {
		tc.CompileInfo = xstrings.SanitizeIdentifier(name, tc.CompileInfo)
	}

	if err := d.Describe(c, tc); err != nil {
		return "", errors.WithMessagef(err, "%s renderer, case %q (row %d)", d.Name, spec.Name, idx)
	}
	c.applyCommon(tc)
	text, err := tc.Emit()
	if err != nil {
		return "", errors.WithMessagef(err, "%s renderer, row %d", d.Name, idx)
	}
	klog.V(2).Infof("%s: rendered case %q (row %d) with %d inputs, %d outputs, %d attributes",
		d.Name, tc.Name, idx, len(tc.Inputs), len(tc.Outputs), len(tc.Attrs))
	return text, nil
}

// caseCtx gives a renderer typed access to the values of one case.
//
// Every getter looks for the key first in the row columns and then in the default tables,
// starting at the renderer's scope. The def argument is used only when neither has the key.
type caseCtx struct {
	op      string
	spec    *casespec.CaseSpec
	idx     int
	helpers Helpers
	scope   string
}

func (c *caseCtx) value(key string) (any, bool) {
	if v := c.spec.Column(key); v != nil {
		return v, true
	}
	v, found := c.helpers.Defaults.Get(c.scope, key)
	if !found || casespec.IsMissing(v) {
		return nil, false
	}
	return v, true
}

// Has reports whether key has a value, in the row or in the default tables.
func (c *caseCtx) Has(key string) bool {
	_, found := c.value(key)
	return found
}

func (c *caseCtx) Int(key string, def int64) int64 {
	v, found := c.value(key)
	if !found {
		return def
	}
	return casespec.ParseInt(v, def)
}

// OptInt returns the builder's value if set, and otherwise looks key up like Int.
func (c *caseCtx) OptInt(o casespec.Opt[int64], key string, def int64) int64 {
	if o.Valid {
		return o.Value
	}
	return c.Int(key, def)
}

func (c *caseCtx) Bool(key string, def bool) bool {
	v, found := c.value(key)
	if !found {
		return def
	}
	return casespec.ParseBool(v)
}

func (c *caseCtx) Float(key string, def float64) float64 {
	v, found := c.value(key)
	if !found {
		return def
	}
	return casespec.ParseFloat(v, def)
}

func (c *caseCtx) String(key, def string) string {
	v, found := c.value(key)
	if !found {
		return def
	}
	if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
		return s
	}
	return def
}

// Dims returns the shape under key, of any rank, or def if absent or unparsable.
func (c *caseCtx) Dims(key string, def casespec.Shape) casespec.Shape {
	v, found := c.value(key)
	if !found {
		return def
	}
	if dims := casespec.ParseDims(v); len(dims) > 0 {
		return dims
	}
	return def
}

func (c *caseCtx) IntList(key string, def []int64) []int64 {
	v, found := c.value(key)
	if !found {
		return def
	}
	if list := casespec.ParseIntList(v); len(list) > 0 {
		return list
	}
	return def
}

// DType returns the GE literal ("ge::DT_...") named under key, or def if absent or unknown.
func (c *caseCtx) DType(key, def string) string {
	v, found := c.value(key)
	if !found {
		return def
	}
	literal, ok := casespec.GEDType(fmt.Sprint(v))
	if !ok {
		klog.Warningf("%s row %d: unknown dtype %q in column %q, using %s", c.op, c.idx, v, key, def)
		return def
	}
	return ge(literal)
}

// WorldSize is the row's world_size (or rank_size) column, else the default tables, else the
// builder's default.
func (c *caseCtx) WorldSize() int64 {
	if _, column := c.spec.Columns.Lookup(casespec.WorldSizeColumns...); column != "" {
		return c.spec.WorldSize
	}
	return c.Int("world_size", c.spec.WorldSize)
}

// IODTypes returns the (input, output) GE literals of the case dtype.
func (c *caseCtx) IODTypes() (in, out string) {
	in, out = c.helpers.DTypeToGE(c.spec.DType)
	return ge(in), ge(out)
}

// IODTypesOr is IODTypes when the row names a dtype, and (def, def) otherwise.
func (c *caseCtx) IODTypesOr(def string) (in, out string) {
	if !c.spec.ExplicitDType() {
		return def, def
	}
	return c.IODTypes()
}

// Shapes runs the generic shape resolver on the case.
func (c *caseCtx) Shapes() (casespec.Resolved, error) {
	return c.helpers.EnsureShapes(c.spec)
}

// applyCommon sets the parts every renderer shares: SoC version, environment, expected return
// and tiling key.
func (c *caseCtx) applyCommon(tc *TestCase) {
	spec := c.spec
	tc.SocVersion = spec.ShortSocVersion.Or("")
	tc.Env = append(tc.Env, spec.EnvVars...)
	tc.ExpectFailure = !spec.ExpectSuccess.Or(c.Bool("expect_success", true))
	switch {
	case spec.ExpectedTilingKeyLiteral != "":
		tc.TilingKey = spec.ExpectedTilingKeyLiteral
	case spec.ExpectedTilingKey.Valid:
		tc.TilingKey = strconv.FormatInt(spec.ExpectedTilingKey.Value, 10)
	}
}

// ge prefixes a dtype literal with the "ge::" namespace.
func ge(literal string) string {
	if strings.HasPrefix(literal, "ge::") {
		return literal
	}
	return "ge::" + literal
}
