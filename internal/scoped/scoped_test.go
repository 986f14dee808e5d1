// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package scoped_test

import (
	"testing"

	"github.com/gomlx/tilingut/internal/scoped"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTable() *scoped.Params {
	p := scoped.New("/")
	p.Set("/", "world_size", 8)
	p.Set("/", "group", "group")
	p.Set("/", "tp_world_size", 1)
	p.Set("/DistributeBarrier", "world_size", 16)
	p.Set("/DistributeBarrier/overlay", "group", "barrier_group")
	return p
}

func TestGet(t *testing.T) {
	p := newTable()

	value, found := p.Get("/DistributeBarrier/overlay", "world_size")
	require.True(t, found)
	assert.Equal(t, 16, value)

	value, found = p.Get("/DistributeBarrier/overlay", "group")
	require.True(t, found)
	assert.Equal(t, "barrier_group", value)

	value, found = p.Get("/MatmulAllReduce", "world_size")
	require.True(t, found)
	assert.Equal(t, 8, value)

	value, found = p.Get("/a/b/c", "tp_world_size")
	require.True(t, found)
	assert.Equal(t, 1, value)

	_, found = p.Get("/DistributeBarrier", "missing")
	assert.False(t, found)

	// Empty scope is the root.
	value, found = p.Get("", "group")
	require.True(t, found)
	assert.Equal(t, "group", value)
}

func TestLookupReportsScope(t *testing.T) {
	p := newTable()
	_, at, found := p.Lookup("/DistributeBarrier/overlay", "world_size")
	require.True(t, found)
	assert.Equal(t, "/DistributeBarrier", at)

	_, at, found = p.Lookup("/DistributeBarrier/overlay", "tp_world_size")
	require.True(t, found)
	assert.Equal(t, "/", at)
}

func TestParent(t *testing.T) {
	p := scoped.New("/")
	assert.Equal(t, "/", p.Parent("/"))
	assert.Equal(t, "/", p.Parent("/a"))
	assert.Equal(t, "/a", p.Parent("/a/b"))
}

func TestCloneIsIndependent(t *testing.T) {
	p := newTable()
	clone := p.Clone()
	clone.SetAll("/DistributeBarrier", map[string]any{"world_size": 4, "extra": true})

	value, _ := p.Get("/DistributeBarrier", "world_size")
	assert.Equal(t, 16, value)
	_, found := p.Get("/DistributeBarrier", "extra")
	assert.False(t, found)

	value, _ = clone.Get("/DistributeBarrier", "world_size")
	assert.Equal(t, 4, value)
}

func TestEnumerate(t *testing.T) {
	p := newTable()
	type entry struct {
		scope, key string
		value      any
	}
	want := []entry{
		{"/", "group", "group"},
		{"/", "tp_world_size", 1},
		{"/", "world_size", 8},
		{"/DistributeBarrier", "world_size", 16},
		{"/DistributeBarrier/overlay", "group", "barrier_group"},
	}
	var got []entry
	p.Enumerate(func(scope, key string, value any) {
		got = append(got, entry{scope, key, value})
	})
	assert.Equal(t, want, got)
}
