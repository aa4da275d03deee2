// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui prints human readable apindex output.
//
// Errors and failed jobs are red, warnings and skipped work yellow, finished
// work green and neutral information cyan. Color follows fatih/color, so it
// is off when NO_COLOR is set or stdout is not a terminal, and InitColors
// turns it off for --no-color.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	Red    = color.New(color.FgRed)
	Yellow = color.New(color.FgYellow)
	Green  = color.New(color.FgGreen)
	Cyan   = color.New(color.FgCyan)
	Bold   = color.New(color.Bold)
	Dim    = color.New(color.Faint)
)

// InitColors disables color output when noColor is set.
func InitColors(noColor bool) {
	if noColor {
		color.NoColor = true
	}
}

// Printer writes prefixed, colored lines to a writer.
type Printer struct {
	w io.Writer
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

var std = NewPrinter(os.Stdout)

func (p *Printer) line(c *color.Color, prefix, format string, args ...any) {
	_, _ = c.Fprintf(p.w, prefix+format+"\n", args...)
}

// Successf prints "✓ ..." in green.
func (p *Printer) Successf(format string, args ...any) { p.line(Green, "✓ ", format, args...) }

// Warningf prints "⚠ ..." in yellow.
func (p *Printer) Warningf(format string, args ...any) { p.line(Yellow, "⚠ ", format, args...) }

// Errorf prints "✗ ..." in red.
func (p *Printer) Errorf(format string, args ...any) { p.line(Red, "✗ ", format, args...) }

// Infof prints "ℹ ..." in cyan.
func (p *Printer) Infof(format string, args ...any) { p.line(Cyan, "ℹ ", format, args...) }

// Header prints a bold title underlined with '='.
func (p *Printer) Header(text string) {
	_, _ = Bold.Fprintln(p.w, text)
	_, _ = fmt.Fprintln(p.w, strings.Repeat("=", len([]rune(text))))
}

// Field prints an indented "label value" line.
func (p *Printer) Field(label string, value any) {
	_, _ = fmt.Fprintf(p.w, "  %s %v\n", Label(label), value)
}

// List prints names as a dim, comma separated line under label. Nothing is
// printed for an empty list.
func (p *Printer) List(label string, names []string) {
	if len(names) == 0 {
		return
	}
	_, _ = fmt.Fprintf(p.w, "  %s %s\n", Label(label), DimText(strings.Join(names, ", ")))
}

func Successf(format string, args ...any) { std.Successf(format, args...) }
func Warningf(format string, args ...any) { std.Warningf(format, args...) }
func Errorf(format string, args ...any)   { std.Errorf(format, args...) }
func Infof(format string, args ...any)    { std.Infof(format, args...) }
func Header(text string)                  { std.Header(text) }

// Label returns text in bold.
func Label(text string) string {
	return Bold.Sprint(text)
}

// DimText returns text faint, for paths and other details.
func DimText(text string) string {
	return Dim.Sprint(text)
}

// CountText returns a count in cyan.
func CountText(count int) string {
	return Cyan.Sprint(count)
}
