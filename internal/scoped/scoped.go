/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package scoped provides a mapping from a string key to any value, organized in nested scopes.
package scoped

import (
	"strings"

	"github.com/gomlx/tilingut/pkg/support/xslices"
)

// Params maps keys to values per scope, and a lookup walks from the given scope up to the root:
//
//	Scope "/": { "world_size": 8, "group": "group" }
//	Scope "/DistributeBarrier": { "world_size": 16 }
//	Scope "/DistributeBarrier/overlay": { "group": "barrier_group" }
//
//	Get("/DistributeBarrier/overlay", "world_size") -> 16
//	Get("/DistributeBarrier/overlay", "group") -> "barrier_group"
//	Get("/MatmulAllReduce", "world_size") -> 8
//
// Scopes are paths separated by Separator, and the root scope is Separator itself.
//
// The renderers keep their default tables in a Params: shared defaults at the root, one scope
// per renderer, and one child scope per template overlay.
type Params struct {
	Separator  string
	scopeToMap map[string]map[string]any
}

// New creates an empty Params.
func New(scopeSeparator string) *Params {
	return &Params{
		Separator:  scopeSeparator,
		scopeToMap: make(map[string]map[string]any),
	}
}

// Clone returns a copy of the Params: the scopes are copied, the values are shared.
func (p *Params) Clone() *Params {
	clone := New(p.Separator)
	for scope, dataMap := range p.scopeToMap {
		clone.SetAll(scope, dataMap)
	}
	return clone
}

// Set sets the value for the given key, in the given scope.
func (p *Params) Set(scope, key string, value any) {
	dataMap, found := p.scopeToMap[scope]
	if !found || dataMap == nil {
		dataMap = make(map[string]any)
		p.scopeToMap[scope] = dataMap
	}
	dataMap[key] = value
}

// SetAll sets all the values in the given scope.
func (p *Params) SetAll(scope string, values map[string]any) {
	for key, value := range values {
		p.Set(scope, key, value)
	}
}

// Parent returns the enclosing scope of scope. The parent of the root is the root.
func (p *Params) Parent(scope string) string {
	idx := strings.LastIndex(scope, p.Separator)
	if idx <= 0 {
		return p.Separator
	}
	return scope[:idx]
}

// Lookup searches key in scope and then in each enclosing scope up to the root.
// It returns the first value found and the scope where it was found.
func (p *Params) Lookup(scope, key string) (value any, foundIn string, found bool) {
	if scope == "" {
		scope = p.Separator
	}
	for {
		value, found = p.scopeToMap[scope][key]
		if found {
			return value, scope, true
		}
		if scope == p.Separator {
			return nil, "", false
		}
		scope = p.Parent(scope)
	}
}

// Get retrieves the value for the given key in the given scope or any parent scope.
// E.g: Get("/a/b", "myKey") will search for "myKey" in scopes "/a/b", "/a" and "/"
// consecutively until "myKey" is found.
func (p *Params) Get(scope, key string) (value any, found bool) {
	value, _, found = p.Lookup(scope, key)
	return
}

// Enumerate calls fn for every value stored, sorted by scope and then by key.
func (p *Params) Enumerate(fn func(scope, key string, value any)) {
	for _, scope := range xslices.SortedKeys(p.scopeToMap) {
		keyValues := p.scopeToMap[scope]
		for _, key := range xslices.SortedKeys(keyValues) {
			fn(scope, key, keyValues[key])
		}
	}
}
