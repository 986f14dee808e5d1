// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	exists, err := FileExists(file)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = FileExists(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, exists)

	assert.True(t, IsFile(file))
	assert.False(t, IsDir(file))
	assert.True(t, IsDir(dir))
}

func TestFirstDir(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "case-templates"), 0o755))

	assert.Equal(t, "", FirstDir([]string{"", "no-such-dir-here"}))
	assert.Equal(t, filepath.Join(base, "case-templates"),
		FirstDir([]string{"no-such-dir-here", "case-templates"}, "", base))
	assert.Equal(t, base, FirstDir([]string{base, "case-templates"}, base))
}

func TestReplaceTildeInDir(t *testing.T) {
	dir, err := ReplaceTildeInDir("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", dir)
	home, err := ReplaceTildeInDir("~/runs")
	require.NoError(t, err)
	assert.NotContains(t, home, "~")
}
