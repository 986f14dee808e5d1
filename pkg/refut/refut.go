// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package refut extracts the reusable boilerplate (includes, usings, fixture class and helper
// functions) from a hand-written reference gtest file, by removing its TEST_F blocks.
//
// The extraction is textual: braces inside string literals, character literals or comments are
// counted like any other brace. A reference file with an unbalanced brace inside a literal will
// produce a corrupted prefix. Splitter is an interface so a tokenizing implementation can replace
// BraceSplitter without changing the callers.
package refut

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gomlx/tilingut/pkg/support/xstrings"
	"github.com/pkg/errors"
)

// Splitter removes the test bodies from the source of a reference unit test.
type Splitter interface {
	// Strip returns src without its TEST_F blocks. Every other line is kept verbatim and in order.
	Strip(src string) string
}

var (
	reTestF   = regexp.MustCompile(`^\s*TEST_F\s*\(`)
	reTestFML = regexp.MustCompile(`(?m)^\s*TEST_F\s*\(`)
	reFixture = regexp.MustCompile(`class\s+([A-Za-z0-9_]+)\s*:\s*public\s+testing::Test`)
)

// BraceSplitter removes TEST_F blocks by counting braces line by line.
//
// A block starts at a line matching `^\s*TEST_F\s*(`. Counting starts at the first '{' found on
// that line or any following one, and the block ends with the line where the depth returns to 0.
// A header without any '{' until the end of the file consumes the rest of the file.
type BraceSplitter struct{}

var _ Splitter = BraceSplitter{}

// Strip implements Splitter.
func (BraceSplitter) Strip(src string) string {
	lines := strings.SplitAfter(src, "\n")
	var sb strings.Builder
	sb.Grow(len(src))
	for i := 0; i < len(lines); {
		line := lines[i]
		if !reTestF.MatchString(line) {
			sb.WriteString(line)
			i++
			continue
		}

		// Find the opening brace.
		var rest string
		for ; i < len(lines); i++ {
			if lb := strings.IndexByte(lines[i], '{'); lb >= 0 {
				rest = lines[i][lb:]
				break
			}
		}
		if i >= len(lines) {
			break
		}

		// Consume until the matching closing brace.
		depth := braceDelta(rest)
		i++
		for depth > 0 && i < len(lines) {
			depth += braceDelta(lines[i])
			i++
		}
	}
	return sb.String()
}

func braceDelta(s string) (delta int) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			delta++
		case '}':
			delta--
		}
	}
	return
}

// PrefixSplitter keeps only the text before the first TEST_F header.
//
// It loses helper functions defined between or after tests, but never misreads braces.
type PrefixSplitter struct{}

var _ Splitter = PrefixSplitter{}

// Strip implements Splitter.
func (PrefixSplitter) Strip(src string) string {
	return CommonPrefix(src)
}

// CommonPrefix returns the text before the first TEST_F header, right-trimmed and terminated by a
// single newline. A source without TEST_F is returned whole (also trimmed).
func CommonPrefix(src string) string {
	if loc := reTestFML.FindStringIndex(src); loc != nil {
		src = src[:loc[0]]
	}
	return strings.TrimRight(src, " \t\r\n") + "\n"
}

// Boilerplate strips src with splitter and normalizes the result into a prefix ready to be
// followed by rendered cases.
func Boilerplate(splitter Splitter, src string) string {
	return CommonPrefix(splitter.Strip(src))
}

// ReadFile reads a reference unit test. Invalid UTF-8 sequences are dropped.
func ReadFile(path string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read reference unit test %q", path)
	}
	return strings.ToValidUTF8(string(contents), ""), nil
}

// InferOperatorName guesses the operator under test.
//
// It first looks for the fixture `class XxxTiling : public testing::Test` and drops the "Tiling"
// suffix. Otherwise it uses the file name: "test_all_gather_matmul.cpp" -> "AllGatherMatmul".
// It returns false if neither yields a name.
func InferOperatorName(path, src string) (string, bool) {
	if m := reFixture.FindStringSubmatch(src); m != nil {
		if name := strings.TrimSuffix(m[1], "Tiling"); name != "" {
			return name, true
		}
	}
	if path == "" {
		return "", false
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base = strings.TrimPrefix(base, "test_")
	name := xstrings.SanitizeIdentifier(xstrings.CamelFromSnake(base), "")
	return name, name != ""
}
