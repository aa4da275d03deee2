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

package ui

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func noColor(t *testing.T) {
	t.Helper()
	saved := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = saved })
}

func TestInitColors(t *testing.T) {
	saved := color.NoColor
	defer func() { color.NoColor = saved }()

	color.NoColor = false
	InitColors(false)
	assert.False(t, color.NoColor)

	InitColors(true)
	assert.True(t, color.NoColor)
}

func TestPrinter_Lines(t *testing.T) {
	noColor(t)

	tests := []struct {
		name  string
		print func(p *Printer)
		want  string
	}{
		{"success", func(p *Printer) { p.Successf("indexed %d projects", 3) }, "✓ indexed 3 projects\n"},
		{"warning", func(p *Printer) { p.Warningf("quota reached") }, "⚠ quota reached\n"},
		{"error", func(p *Printer) { p.Errorf("%s failed", "requests") }, "✗ requests failed\n"},
		{"info", func(p *Printer) { p.Infof("run %s", "abc") }, "ℹ run abc\n"},
		{"header", func(p *Printer) { p.Header("Ledger") }, "Ledger\n======\n"},
		{"field", func(p *Printer) { p.Field("Done:", 4) }, "  Done: 4\n"},
		{"list", func(p *Printer) { p.List("Failed:", []string{"a", "b"}) }, "  Failed: a, b\n"},
		{"empty list", func(p *Printer) { p.List("Failed:", nil) }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.print(NewPrinter(&buf))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestTextHelpers(t *testing.T) {
	noColor(t)

	assert.Equal(t, "Ledger:", Label("Ledger:"))
	assert.Equal(t, "/data/dist", DimText("/data/dist"))
	assert.Equal(t, "42", CountText(42))
}
