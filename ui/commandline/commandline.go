// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package commandline contains the terminal tools of the generators: the run summary table,
// the per-row progress bar and the "-set" flag overriding the renderers' default tables.
package commandline

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/tilingut/pkg/generate"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
	redRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "9", Dark: "9"}).
			Bold(true).
			PaddingLeft(1).PaddingRight(1)
)

// TableWithReds is a lipgloss table where some rows are highlighted in red.
type TableWithReds struct {
	Table *lgtable.Table
	Count int
	Reds  map[int]bool
}

// Row appends a row, in red if isRed.
func (t *TableWithReds) Row(isRed bool, row ...string) {
	if isRed {
		t.Reds[t.Count] = true
	}
	t.Table.Row(row...)
	t.Count++
}

// NewTable creates a table with alternating row styles. The alignments are per column, the last
// one is used for the remaining columns.
func NewTable(alignments ...lipgloss.Position) *TableWithReds {
	t := &TableWithReds{
		Reds: make(map[int]bool),
	}
	t.Table = lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row < 0 {
				s = headerRowStyle
				return
			}
			if t.Reds[row] {
				s = redRowStyle
			} else if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			alignment := lipgloss.Left
			if col < len(alignments) {
				alignment = alignments[col]
			} else if len(alignments) > 0 {
				alignment = alignments[len(alignments)-1]
			}
			s = s.Align(alignment)
			return
		})
	return t
}

// Summary of one generation run.
type Summary struct {
	Reference, Sheet, Output string

	// Bytes written to Output.
	Bytes int

	Elapsed time.Duration
	Report  *generate.Report
}

// SprintSummary renders the summary table of a run, followed by a table of the skipped rows if
// there are any.
func SprintSummary(s Summary) string {
	r := s.Report
	table := NewTable(lipgloss.Right, lipgloss.Left)
	table.Row(false, "operator", r.Operator)
	if sel := r.Selection; sel != nil {
		renderer := fmt.Sprintf("%s (%s)", sel.Name, sel.Source)
		table.Row(false, "renderer", renderer)
		if sel.Path != "" {
			table.Row(false, "template", sel.Path)
		}
	}
	if s.Reference != "" {
		table.Row(false, "reference", s.Reference)
	}
	if s.Sheet != "" {
		table.Row(false, "sheet", s.Sheet)
	}
	table.Row(false, "rows", humanize.Comma(int64(r.Rows)))
	table.Row(false, "generated", humanize.Comma(int64(r.Generated())))
	table.Row(len(r.Skipped) > 0, "skipped", humanize.Comma(int64(len(r.Skipped))))
	if s.Output != "" {
		table.Row(false, "output", s.Output)
		table.Row(false, "size", humanize.Bytes(uint64(s.Bytes)))
	}
	if s.Elapsed > 0 {
		table.Row(false, "elapsed", FormatDuration(s.Elapsed))
	}
	parts := []string{table.Table.Render()}

	if len(r.Skipped) > 0 {
		skipped := NewTable(lipgloss.Right, lipgloss.Left)
		skipped.Table.Headers("Row", "Name", "Error")
		for _, rowErr := range r.Skipped {
			skipped.Row(true, fmt.Sprint(rowErr.Index), rowErr.Name, firstLine(rowErr.Err.Error()))
		}
		parts = append(parts, skipped.Table.Render())
	}
	return strings.Join(parts, "\n")
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
