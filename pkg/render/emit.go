// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package render

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/gomlx/tilingut/pkg/support/xslices"
	"github.com/gomlx/tilingut/pkg/support/xstrings"
	"github.com/pkg/errors"
)

// testCaseTemplate uses "[[ ]]" delimiters so the C++ braces can be written as they are.
var testCaseTemplate = template.Must(
	template.
		New("test_case").
		Delims("[[", "]]").
		Parse(
			`TEST_F([[.Fixture]], [[.Name]]) {
    // 1. Setup interfaces
    std::string op_type("[[.Operator]]");
    ASSERT_NE(gert::OpImplRegistry::GetInstance().GetOpImpl(op_type.c_str()), nullptr);
    auto tiling_func = gert::OpImplRegistry::GetInstance().GetOpImpl(op_type.c_str())->tiling;
    auto tiling_parse_func = gert::OpImplRegistry::GetInstance().GetOpImpl(op_type.c_str())->tiling_parse;

    // 2. Setup compile info and platform info
    string compile_info_string = R"({
        "hardware_info": {
[[- with .Hardware]]
            "BT_SIZE": [[.BTSize]],
            "load3d_constraints": "[[.Load3DConstraints]]",
            "Intrinsic_fix_pipe_l0c2out": [[.FixPipeL0C2Out]],
            "Intrinsic_data_move_l12ub": [[.DataMoveL12UB]],
            "Intrinsic_data_move_l0c2ub": [[.DataMoveL0C2UB]],
            "Intrinsic_data_move_out2l1_nd2nz": [[.DataMoveOut2L1ND2NZ]],
            "UB_SIZE": [[.UBSize]],
            "L2_SIZE": [[.L2Size]],
            "L1_SIZE": [[.L1Size]],
            "L0A_SIZE": [[.L0ASize]],
            "L0B_SIZE": [[.L0BSize]],
            "L0C_SIZE": [[.L0CSize]],
            "CORE_NUM": [[.CoreNum]]
[[- end]]
        }
    })";
    map<string, string> soc_infos;
    map<string, string> aicore_spec;
    map<string, string> intrinsics;
    GetPlatFormInfos(compile_info_string.c_str(), soc_infos, aicore_spec, intrinsics);

    fe::PlatFormInfos platform_info;
    platform_info.Init();
    struct [[.CompileInfo]] {} compile_info;

    // tilingParseFunc simulate
    auto kernel_holder =
        gert::KernelRunContextFaker()
            .KernelIONum([[.KernelInputs]], [[.KernelOutputs]])
            .Inputs({const_cast<char*>(compile_info_string.c_str()), reinterpret_cast<void*>(&platform_info)})
            .Outputs({&compile_info})
            .Build();

    // 3. Create context
    auto param = gert::TilingData::CreateCap([[.TilingDataCap]]);
    ASSERT_NE(param, nullptr);
    auto workspace_size_holer = gert::ContinuousVector::Create<size_t>([[.TilingDataCap]]);
    auto ws_size = reinterpret_cast<gert::ContinuousVector*>(workspace_size_holer.get());

    // 4. Define input/output shapes
[[- range .Tensors]]
    gert::StorageShape [[.Name]] = {{[[.Dims]]}, {[[.Dims]]}};
[[- end]]

    // 5. Build fake context
[[- range .Decls]]
    [[.]]
[[- end]]
    auto holder = gert::TilingContextFaker()
                      .NodeIoNum([[.NumInputs]], [[.NumOutputs]])
                      .IrInstanceNum({[[.IrInstanceNum]]})
                      .InputShapes({[[.InputShapes]]})
                      .OutputShapes({[[.OutputShapes]]})
[[- if .Attrs]]
                      .NodeAttrs({[[.Attrs]]})
[[- end]]
                      .CompileInfo(&compile_info)
                      .PlatformInfo(reinterpret_cast<char*>(&platform_info))
[[- range .InputTds]]
                      .NodeInputTd([[.Index]], [[.DType]], ge::FORMAT_ND, ge::FORMAT_ND)
[[- end]]
[[- range .OutputTds]]
                      .NodeOutputTd([[.Index]], [[.DType]], ge::FORMAT_ND, ge::FORMAT_ND)
[[- end]]
                      .TilingData(param.get())
                      .Workspace(ws_size)
[[- if .SetOpType]]
                      .SetOpType(op_type)
[[- end]]
                      .Build();

    // 6. Init TilingContext pointer
    gert::TilingContext* tiling_context = holder.GetContext<gert::TilingContext>();
    ASSERT_NE(tiling_context->GetPlatformInfo(), nullptr);

    // 7. Set compile settings
    tiling_context->GetPlatformInfo()->SetPlatformRes("SoCInfo", soc_infos);
    tiling_context->GetPlatformInfo()->SetPlatformRes("AICoreSpec", aicore_spec);
    tiling_context->GetPlatformInfo()->SetCoreNumByCoreType("AICore");
    tiling_context->GetPlatformInfo()->SetPlatformRes("AICoreintrinsicDtypeMap", intrinsics);
[[- if .SocVersion]]
    map<string, string> soc_versions = {{"Short_SoC_version", "[[.SocVersion]]"}};
    tiling_context->GetPlatformInfo()->SetPlatformRes("version", soc_versions);
[[- end]]
[[- if or .Topology .Env]]

    // 8. Set communication and environment, undone when the test body exits
[[- end]]
[[- with .Topology]]
    ge::HcomTopoInfo::TopoInfo topo_info;
    topo_info.rank_size = [[.RankSize]];
[[- if .CommSets]]
    topo_info.topo_level_descs[0].comm_sets = 0b1U;
[[- end]]
    ge::HcomTopoInfo::Instance().SetGroupTopoInfo([[.GroupVar]].c_str(), topo_info);
    std::shared_ptr<void> topo_guard(nullptr, [&](void*) { ge::HcomTopoInfo::Instance().UnsetGroupTopoInfo([[.GroupVar]].c_str()); });
[[- end]]
[[- range .Env]]
    setenv("[[.Name]]", "[[.Value]]", 1);
    std::shared_ptr<void> env_guard_[[.Index]](nullptr, [](void*) { unsetenv("[[.Name]]"); });
[[- end]]

    // 9. Call op function
    EXPECT_EQ(tiling_func(tiling_context), [[.ExpectedRet]]);
[[- if .TilingKey]]

    // 10. Check tiling key
    auto tiling_key = tiling_context->GetTilingKey();
    ASSERT_EQ(tiling_key, [[.TilingKey]]);
[[- end]]
}
`))

type tensorView struct {
	Name, Dims string
}

type tdView struct {
	Index int
	DType string
}

type envView struct {
	Index       int
	Name, Value string
}

// testCaseView is the TestCase with every list pre-formatted for the template.
type testCaseView struct {
	Fixture, Name, Operator     string
	Hardware                    Hardware
	CompileInfo                 string
	KernelInputs, KernelOutputs int
	TilingDataCap               int
	Tensors                     []tensorView
	Decls                       []string
	NumInputs, NumOutputs       int
	IrInstanceNum               string
	InputShapes, OutputShapes   string
	Attrs                       string
	InputTds, OutputTds         []tdView
	SetOpType                   bool
	SocVersion                  string
	Topology                    *Topology
	Env                         []envView
	ExpectedRet                 string
	TilingKey                   string
}

// Validate checks the structural consistency of the test case: every slot refers to a declared
// tensor, names are identifiers and the topology group is declared.
func (tc *TestCase) Validate() error {
	if tc.Operator == "" || tc.Name == "" {
		return errors.Errorf("test case needs an operator and a name, got operator=%q name=%q", tc.Operator, tc.Name)
	}
	if got := xstrings.SanitizeIdentifier(tc.Name, ""); got != tc.Name {
		return errors.Errorf("test case name %q is not a valid identifier", tc.Name)
	}
	if len(tc.Inputs) == 0 {
		return errors.Errorf("test case %q has no inputs", tc.Name)
	}
	declared := make(map[string]bool, len(tc.Tensors))
	for _, t := range tc.Tensors {
		if declared[t.Name] {
			return errors.Errorf("test case %q declares tensor %q twice", tc.Name, t.Name)
		}
		declared[t.Name] = true
	}
	for _, slots := range [][]Slot{tc.Inputs, tc.Outputs} {
		for ii, slot := range slots {
			if slot.Tensor != "" && !declared[slot.Tensor] {
				return errors.Errorf("test case %q: slot #%d refers to undeclared tensor %q", tc.Name, ii, slot.Tensor)
			}
		}
	}
	if tc.Topology != nil && tc.Topology.GroupVar == "" {
		return errors.Errorf("test case %q: topology without a group variable", tc.Name)
	}
	return nil
}

func (tc *TestCase) view() testCaseView {
	v := testCaseView{
		Fixture:       tc.Fixture(),
		Name:          tc.Name,
		Operator:      xstrings.CEscape(tc.Operator),
		Hardware:      tc.Hardware,
		CompileInfo:   tc.CompileInfo,
		KernelInputs:  tc.KernelInputs,
		KernelOutputs: tc.KernelOutputs,
		TilingDataCap: tc.TilingDataCap,
		Decls:         tc.Decls,
		NumInputs:     len(tc.Inputs),
		NumOutputs:    len(tc.Outputs),
		IrInstanceNum: strings.Join(xslices.SliceWithValue(len(tc.Inputs), "1"), ", "),
		InputShapes:   slotShapes(tc.Inputs),
		OutputShapes:  slotShapes(tc.Outputs),
		InputTds:      slotDTypes(tc.Inputs),
		OutputTds:     slotDTypes(tc.Outputs),
		SetOpType:     tc.SetOpType,
		SocVersion:    xstrings.CEscape(tc.SocVersion),
		Topology:      tc.Topology,
		ExpectedRet:   "ge::GRAPH_SUCCESS",
		TilingKey:     tc.TilingKey,
	}
	if tc.ExpectFailure {
		v.ExpectedRet = "ge::GRAPH_FAILED"
	}
	for _, t := range tc.Tensors {
		v.Tensors = append(v.Tensors, tensorView{Name: t.Name, Dims: joinInts(t.Dims)})
	}
	attrs := make([]string, 0, len(tc.Attrs))
	for _, attr := range tc.Attrs {
		attrs = append(attrs, fmt.Sprintf("{\"%s\", ge::AnyValue::CreateFrom<%s>(%s)}", attr.Name, attr.Type, attr.Value))
	}
	v.Attrs = strings.Join(attrs, ", ")
	for ii, env := range tc.Env {
		v.Env = append(v.Env, envView{Index: ii, Name: xstrings.CEscape(env.Name), Value: xstrings.CEscape(env.Value)})
	}
	return v
}

func slotShapes(slots []Slot) string {
	return strings.Join(xslices.Map(slots, func(s Slot) string {
		if s.Tensor == "" {
			return "nullptr"
		}
		return "&" + s.Tensor
	}), ", ")
}

func slotDTypes(slots []Slot) (tds []tdView) {
	for ii, s := range slots {
		if s.DType != "" {
			tds = append(tds, tdView{Index: ii, DType: s.DType})
		}
	}
	return
}

// Emit validates the test case and writes its TEST_F block, terminated by a newline.
func (tc *TestCase) Emit() (string, error) {
	if err := tc.Validate(); err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := testCaseTemplate.Execute(&sb, tc.view()); err != nil {
		return "", errors.Wrapf(err, "failed to emit test case %q", tc.Name)
	}
	return sb.String(), nil
}
