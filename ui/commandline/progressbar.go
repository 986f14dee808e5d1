// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
)

// ProgressbarStyle to use. Defaults to the ASCII version.
// Consider "progressbar.ThemeUnicode" for a prettier version.
// But it requires some of the graphical symbols to be supported.
var ProgressbarStyle = progressbar.ThemeASCII

// RowProgress displays the progress of the rows being rendered.
// OnRow can be used as generate.Generator.OnRow.
type RowProgress struct {
	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	termenv *termenv.Output
	failed  int
}

// NewRowProgress creates a progress bar for numRows rows, written to w (os.Stderr if nil).
func NewRowProgress(w io.Writer, operator string, numRows int) *RowProgress {
	if w == nil {
		w = os.Stderr
	}
	p := &RowProgress{termenv: termenv.NewOutput(w)}
	p.bar = progressbar.NewOptions(numRows,
		progressbar.OptionSetDescription(fmt.Sprintf("      [bold]%s[reset]", operator)),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("rows"),
		progressbar.OptionSetTheme(ProgressbarStyle),
		progressbar.OptionSetWriter(w),
	)
	p.termenv.HideCursor()
	return p
}

// OnRow advances the progress bar by one row. It is safe for concurrent use.
func (p *RowProgress) OnRow(_ int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.failed++
		p.bar.Describe(fmt.Sprintf("      [red]%d skipped[reset]", p.failed))
	}
	_ = p.bar.Add(1)
}

// Failed returns the number of rows reported with an error so far.
func (p *RowProgress) Failed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}

// Finish completes the progress bar and restores the cursor.
func (p *RowProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.bar.Finish()
	p.termenv.ShowCursor()
	_, _ = fmt.Fprintln(p.termenv)
}
