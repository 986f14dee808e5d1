// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package assemble joins the reference boilerplate with the rendered cases into one C++
// translation unit and writes it under a timestamped run directory.
package assemble

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// TimestampLayout is the layout of the timestamp prefix of run directories.
const TimestampLayout = "20060102_150405"

// ErrNoCases is returned when writing a Unit without any case.
var ErrNoCases = errors.New("no test cases to write")

// Case is one rendered TEST_F block.
type Case struct {
	// Index of the row the case was rendered from.
	Index int

	// Name of the test, the second argument of TEST_F.
	Name string

	Text string
}

// Unit is a translation unit under construction: the boilerplate prefix and the cases, in the
// order they were added.
//
// All cases must belong to the unit's fixture, "<Operator>Tiling". Duplicate case names are
// not checked.
type Unit struct {
	Operator string
	Prefix   string
	Cases    []Case

	reFixture *regexp.Regexp
}

// New creates an empty Unit for the operator.
func New(operator, prefix string) *Unit {
	return &Unit{Operator: operator, Prefix: prefix}
}

// Fixture returns the gtest fixture class name of the unit.
func (u *Unit) Fixture() string {
	return u.Operator + "Tiling"
}

// Add appends a rendered case. It fails if the case does not use the unit's fixture.
func (u *Unit) Add(c Case) error {
	if u.reFixture == nil {
		u.reFixture = regexp.MustCompile(`TEST_F\s*\(\s*` + regexp.QuoteMeta(u.Fixture()) + `\s*,`)
	}
	if !u.reFixture.MatchString(c.Text) {
		return errors.Errorf("case %q (row %d) is not a TEST_F of fixture %s", c.Name, c.Index, u.Fixture())
	}
	u.Cases = append(u.Cases, c)
	return nil
}

// Len returns the number of cases.
func (u *Unit) Len() int {
	return len(u.Cases)
}

// Bytes returns the contents of the translation unit: prefix, a blank line, the cases separated
// by blank lines and a trailing newline.
func (u *Unit) Bytes() []byte {
	var sb strings.Builder
	sb.WriteString(u.Prefix)
	sb.WriteString("\n\n")
	for i, c := range u.Cases {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(c.Text)
	}
	sb.WriteString("\n")
	return []byte(sb.String())
}

// Write writes the translation unit to path, creating the parent directories.
// It returns the number of bytes written.
//
// A unit without cases is not written and ErrNoCases is returned.
func (u *Unit) Write(path string) (int, error) {
	if len(u.Cases) == 0 {
		return 0, errors.Wrapf(ErrNoCases, "operator %s, output %q", u.Operator, path)
	}
	contents := u.Bytes()
	if err := writeFile(path, contents); err != nil {
		return 0, err
	}
	return len(contents), nil
}

// WriteCases writes each case to its own file under dir, each prefixed with the boilerplate, so
// a single failing case can be compiled in isolation. It returns the paths written, in order.
func (u *Unit) WriteCases(dir string) ([]string, error) {
	paths := make([]string, 0, len(u.Cases))
	for _, c := range u.Cases {
		single := &Unit{Operator: u.Operator, Prefix: u.Prefix, Cases: []Case{c}}
		path := filepath.Join(dir, fmt.Sprintf("test_%s_%03d_%s.cpp", strings.ToLower(u.Operator), c.Index, c.Name))
		if err := writeFile(path, single.Bytes()); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, contents []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %q", path)
	}
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %q", path)
	}
	return nil
}

// FileName returns the conventional file name of the translation unit: test_<op_lower>_tiling.cpp.
func FileName(operator string) string {
	return fmt.Sprintf("test_%s_tiling.cpp", strings.ToLower(operator))
}

// RunDir returns the run directory for the operator: <root>/<YYYYmmdd_HHMMSS>_<op_lower>.
// It doesn't create it.
func RunDir(root, operator string, now time.Time) string {
	return filepath.Join(root, now.Format(TimestampLayout)+"_"+strings.ToLower(operator))
}

// CreateRunDir creates (if needed) and returns RunDir(root, operator, now).
func CreateRunDir(root, operator string, now time.Time) (string, error) {
	dir := RunDir(root, operator, now)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create run directory %q", dir)
	}
	return dir, nil
}
