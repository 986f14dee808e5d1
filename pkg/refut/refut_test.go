// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package refut_test

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/gomlx/tilingut/pkg/refut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reference = `#include <gtest/gtest.h>
#include "tiling/all_gather_matmul_tiling.h"

using namespace ge;

class AllGatherMatmulTiling : public testing::Test {
 protected:
  static void SetUpTestCase() {}
};

TEST_F(AllGatherMatmulTiling, first) {
  int a = 1;
  if (a) {
    a++;
  }
}

static int helper() { return 1; }

TEST_F(AllGatherMatmulTiling,
       second)
{
  std::vector<int64_t> v = {1, 2};
}
TEST_F(AllGatherMatmulTiling, empty) {}
// trailing comment
`

func TestBraceSplitter(t *testing.T) {
	got := BraceSplitter{}.Strip(reference)
	assert.NotContains(t, got, "TEST_F")
	assert.NotContains(t, got, "a++")
	assert.NotContains(t, got, "std::vector")
	assert.Contains(t, got, "class AllGatherMatmulTiling : public testing::Test {")
	assert.Contains(t, got, "static int helper() { return 1; }\n")
	assert.True(t, strings.HasSuffix(got, "// trailing comment\n"))
	assert.Equal(t, strings.Count(got, "{"), strings.Count(got, "}"))
}

func TestBraceSplitterRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for trial := range 20 {
		var src strings.Builder
		var kept []string
		numTests, numLines := rng.IntN(6), rng.IntN(12)
		slots := make([]bool, 0, numTests+numLines) // true for a test block.
		for range numTests {
			slots = append(slots, true)
		}
		for range numLines {
			slots = append(slots, false)
		}
		rng.Shuffle(len(slots), func(i, j int) { slots[i], slots[j] = slots[j], slots[i] })
		for i, isTest := range slots {
			if isTest {
				fmt.Fprintf(&src, "TEST_F(OpTiling, case_%d) {\n", i)
				nested := rng.IntN(3)
				for range nested {
					src.WriteString("  if (x) {\n")
				}
				src.WriteString("  EXPECT_EQ(1, 1);\n")
				for range nested {
					src.WriteString("  }\n")
				}
				src.WriteString("}\n")
			} else {
				line := fmt.Sprintf("int line_%d_%d = 0;\n", trial, i)
				kept = append(kept, line)
				src.WriteString(line)
			}
		}
		got := BraceSplitter{}.Strip(src.String())
		assert.Equal(t, strings.Join(kept, ""), got, "trial %d:\n%s", trial, src.String())
		assert.NotContains(t, got, "TEST_F(")
	}
}

func TestBraceSplitterUnterminated(t *testing.T) {
	src := "int a;\nTEST_F(OpTiling, broken)\nint b;\n"
	assert.Equal(t, "int a;\n", BraceSplitter{}.Strip(src))
}

// Braces inside literals are counted like code: this documents the limitation.
func TestBraceSplitterLiteralBraces(t *testing.T) {
	src := "TEST_F(OpTiling, lit) {\n  const char *s = \"{\";\n}\nint after;\nint after2;\n}\nint kept;\n"
	assert.Equal(t, "int kept;\n", BraceSplitter{}.Strip(src))
}

func TestCommonPrefix(t *testing.T) {
	prefix := CommonPrefix(reference)
	assert.True(t, strings.HasSuffix(prefix, "};\n"))
	assert.NotContains(t, prefix, "TEST_F")
	assert.NotContains(t, prefix, "helper")
	assert.Equal(t, "int x;\n", CommonPrefix("int x;\n\n\n"))
	assert.Equal(t, prefix, PrefixSplitter{}.Strip(reference))
}

func TestBoilerplate(t *testing.T) {
	got := Boilerplate(BraceSplitter{}, reference)
	assert.True(t, strings.HasSuffix(got, "// trailing comment\n"))
	assert.Contains(t, got, "helper")
	assert.False(t, strings.HasSuffix(got, "\n\n"))
}

func TestInferOperatorName(t *testing.T) {
	name, ok := InferOperatorName("any.cpp", reference)
	require.True(t, ok)
	assert.Equal(t, "AllGatherMatmul", name)

	name, ok = InferOperatorName("/tmp/test_matmul_reduce_scatter.cpp", "int x;")
	require.True(t, ok)
	assert.Equal(t, "MatmulReduceScatter", name)

	name, ok = InferOperatorName("dir/test_moe_distribute_combine_v2_tiling(1).cpp", "")
	require.True(t, ok)
	assert.Equal(t, "MoeDistributeCombineV2Tiling_1_", name)

	_, ok = InferOperatorName("", "")
	assert.False(t, ok)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.cpp")
	require.NoError(t, os.WriteFile(path, []byte("int a;\xff\n"), 0o644))
	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "int a;\n", got)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.cpp"))
	assert.Error(t, err)
}
