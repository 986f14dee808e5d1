// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// tilingut generates the gtest unit tests of an operator's tiling function from a spreadsheet of
// test parameters, one TEST_F per row, reusing the boilerplate of a hand-written reference test.
//
// Usage:
//
//	tilingut -ref test_all_gather_matmul.cpp -sheet params.xlsx [-op AllGatherMatmul] [-out file.cpp]
//
// By default the output goes to runs/<timestamp>_<op_lower>/test_<op_lower>_tiling.cpp.
// Rows that can't be rendered are skipped and reported; the run fails only if no row renders.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/gomlx/tilingut/internal/scoped"
	"github.com/gomlx/tilingut/internal/workerspool"
	"github.com/gomlx/tilingut/pkg/assemble"
	"github.com/gomlx/tilingut/pkg/casespec"
	"github.com/gomlx/tilingut/pkg/generate"
	"github.com/gomlx/tilingut/pkg/refut"
	"github.com/gomlx/tilingut/pkg/render"
	"github.com/gomlx/tilingut/pkg/sheet"
	"github.com/gomlx/tilingut/pkg/support/fsutil"
	"github.com/gomlx/tilingut/pkg/support/xslices"
	"github.com/gomlx/tilingut/ui/commandline"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagRef    = flag.String("ref", "", "Reference unit test (.cpp) with the includes, fixture class and helpers to reuse.")
	flagSheets = xslices.Flag("sheet", nil,
		"Spreadsheet(s) with one test case per row: .xlsx, .xlsm or .csv. Several files can be given separated by commas, "+
			"their rows are concatenated.",
		func(s string) (string, error) { return s, nil })
	flagSheetName = flag.String("sheet_name", "", "Sheet to read from .xlsx files. Defaults to the first sheet.")
	flagNameCol   = flag.String("name_col", "", "Column with the test names. Defaults to test_name, name or case_name.")
	flagOp        = flag.String("op", "", "Operator name, e.g. AllGatherMatmul. "+
		"If empty it is inferred from the fixture class or the file name of -ref.")
	flagOut       = flag.String("out", "", "Output file. Defaults to <runs>/<timestamp>_<op_lower>/test_<op_lower>_tiling.cpp.")
	flagRuns      = flag.String("runs", "runs", "Root directory of the timestamped run directories.")
	flagTemplates = flag.String("templates", "",
		fmt.Sprintf("Template directory with YAML overlays. Defaults to $%s, then ./%s.", render.TemplateDirEnv, render.DefaultTemplateDir))
	flagParallel = flag.Int("parallel", 0, "Number of rows rendered in parallel: 0 renders one row at a time, -1 is unlimited.")
	flagProgress = flag.Bool("progress", false, "Display a progress bar while rendering.")
	flagManifest = flag.Bool("manifest", true, "Write "+assemble.ManifestFileName+" next to the output.")
	flagSplit    = flag.Bool("split_cases", false, "Also write each case to its own file, under a \"cases\" sub-directory of the output.")
	flagPrefix   = flag.Bool("prefix_only", false,
		"Only keep the reference text before its first TEST_F, instead of removing the TEST_F blocks.")
	flagListDefaults  = flag.Bool("list_defaults", false, "List the renderers' default values (after -set) and exit.")
	flagListRenderers = flag.Bool("list_renderers", false, "List the registered renderers and exit.")
)

func main() {
	klog.InitFlags(nil)
	defaults := render.DefaultTables()
	flagSet := commandline.CreateDefaultsSettingsFlag(defaults, "set")
	flag.Parse()

	if *flagListRenderers {
		fmt.Println(strings.Join(render.NewRegistry().Names(), "\n"))
		return
	}
	paramsSet, err := commandline.ParseDefaultsSettings(defaults, *flagSet)
	if err != nil {
		klog.Errorf("Invalid -set: %+v", err)
		os.Exit(1)
	}
	if *flagListDefaults {
		fmt.Println(commandline.SprintDefaults(defaults))
		return
	}
	if len(paramsSet) > 0 {
		klog.Infof("Defaults changed:\n%s", commandline.SprintModifiedDefaults(defaults, paramsSet))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, defaults); err != nil {
		klog.Errorf("%+v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, defaults *scoped.Params) error {
	start := time.Now()
	if *flagRef == "" || len(*flagSheets) == 0 {
		return errors.New("both -ref and -sheet are required, see tilingut -help")
	}
	refPath, err := fsutil.ReplaceTildeInDir(*flagRef)
	if err != nil {
		return err
	}
	src, err := refut.ReadFile(refPath)
	if err != nil {
		return err
	}
	var splitter refut.Splitter = refut.BraceSplitter{}
	if *flagPrefix {
		splitter = refut.PrefixSplitter{}
	}
	prefix := refut.Boilerplate(splitter, src)

	op := *flagOp
	if op == "" {
		var found bool
		op, found = refut.InferOperatorName(refPath, src)
		if !found {
			return errors.Errorf("can't infer the operator name from %q, use -op", refPath)
		}
		klog.Infof("Operator %s inferred from %q", op, refPath)
	}

	rows, sheetPaths, err := loadRows()
	if err != nil {
		return err
	}

	selector := render.NewSelector(*flagTemplates)
	selector.Defaults = defaults
	g := generate.New(selector)
	if pool := workerspool.New(); *flagParallel != 0 {
		pool.SetMaxParallelism(*flagParallel)
		g.Pool = pool
		if pool.IsUnlimited() {
			klog.V(1).Infof("rendering all rows in parallel")
		} else {
			klog.V(1).Infof("rendering up to %d rows in parallel", pool.MaxParallelism())
		}
	}
	var progress *commandline.RowProgress
	if *flagProgress {
		progress = commandline.NewRowProgress(nil, op, len(rows))
		g.OnRow = progress.OnRow
	}
	report, err := g.Run(ctx, op, rows)
	if progress != nil {
		progress.Finish()
	}
	if err != nil {
		return err
	}
	unit, err := report.Unit(prefix)
	if err != nil {
		return err
	}

	now := time.Now()
	outPath := *flagOut
	if outPath != "" {
		if outPath, err = fsutil.ReplaceTildeInDir(outPath); err != nil {
			return err
		}
	} else {
		runsDir, err := fsutil.ReplaceTildeInDir(*flagRuns)
		if err != nil {
			return err
		}
		runDir, err := assemble.CreateRunDir(runsDir, op, now)
		if err != nil {
			return err
		}
		outPath = filepath.Join(runDir, assemble.FileName(op))
	}
	n, err := unit.Write(outPath)
	if err != nil {
		return err
	}
	klog.Infof("Wrote %d cases to %q", unit.Len(), outPath)
	if *flagSplit {
		paths, err := unit.WriteCases(filepath.Join(filepath.Dir(outPath), "cases"))
		if err != nil {
			return err
		}
		klog.V(1).Infof("Wrote %d single-case files", len(paths))
	}
	if *flagManifest {
		if err := writeManifest(report, refPath, sheetPaths, outPath, now); err != nil {
			return err
		}
	}

	fmt.Println(commandline.SprintSummary(commandline.Summary{
		Reference: refPath,
		Sheet:     strings.Join(sheetPaths, ", "),
		Output:    outPath,
		Bytes:     n,
		Elapsed:   time.Since(start),
		Report:    report,
	}))
	return nil
}

// loadRows reads and concatenates the rows of all -sheet files.
func loadRows() (rows []casespec.Row, paths []string, err error) {
	for _, sheetPath := range *flagSheets {
		sheetPath, err = fsutil.ReplaceTildeInDir(sheetPath)
		if err != nil {
			return
		}
		var sheetRows []casespec.Row
		sheetRows, err = sheet.Load(sheetPath, *flagSheetName)
		if err != nil {
			return
		}
		rows = append(rows, sheetRows...)
		paths = append(paths, sheetPath)
	}
	if len(rows) == 0 {
		err = errors.Errorf("no test parameters in %s", strings.Join(paths, ", "))
		return
	}
	if *flagNameCol != "" {
		err = sheet.UseNameColumn(rows, *flagNameCol)
	}
	klog.Infof("Loaded %d rows", len(rows))
	return
}

func writeManifest(report *generate.Report, refPath string, sheetPaths []string, outPath string, now time.Time) error {
	m := assemble.NewManifest(report.Operator, now)
	m.Reference = refPath
	m.Sheet = strings.Join(sheetPaths, ",")
	m.Output = outPath
	m.Rows = report.Rows
	m.Generated = report.Generated()
	if sel := report.Selection; sel != nil {
		m.Renderer = sel.Name
		m.RendererSource = string(sel.Source)
		m.Template = sel.Path
	}
	for _, rowErr := range report.Skipped {
		m.Skipped = append(m.Skipped, assemble.SkippedRow{Index: rowErr.Index, Name: rowErr.Name, Error: rowErr.Err.Error()})
	}
	_, err := m.Write(filepath.Dir(outPath))
	return err
}
