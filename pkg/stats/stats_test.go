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

package stats

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kraklabs/apindex/pkg/worker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type doc struct {
	Items []int
}

func TestStatistician_Count(t *testing.T) {
	s := New[doc](discardLogger()).
		Scalar("size", func(d *doc) float64 { return float64(len(d.Items)) }).
		Map("parity", func(d *doc) map[string]float64 {
			out := map[string]float64{}
			for _, i := range d.Items {
				if i%2 == 0 {
					out["even"]++
				} else {
					out["odd"]++
				}
			}
			return out
		})

	got := s.Count("t", &doc{Items: []int{1, 2, 3}})
	assert.Equal(t, Values{"size": 3, "parity.even": 1, "parity.odd": 2}, got)
	assert.Equal(t, []string{"size", "parity"}, s.Names())
}

func TestStatistician_RecoversCounterPanic(t *testing.T) {
	s := New[doc](discardLogger()).
		Scalar("first", func(d *doc) float64 { return float64(d.Items[10]) }).
		Scalar("size", func(d *doc) float64 { return float64(len(d.Items)) })

	got := s.Count("t", &doc{Items: []int{1}})
	assert.Equal(t, Values{"size": 1}, got)
}

func TestStatistician_NilData(t *testing.T) {
	s := New[doc](discardLogger()).Scalar("size", func(d *doc) float64 { return float64(len(d.Items)) })
	assert.Empty(t, s.Count("t", nil))
}

func TestDistributions(t *testing.T) {
	d := &worker.Distribution{
		Product:   worker.Product{Duration: worker.Duration(3 * time.Second), State: worker.StateSuccess},
		FileCount: 4, FileSize: 2048, LocCount: 120,
	}
	got := Distributions(discardLogger()).Count("p@1.0", d)
	assert.Equal(t, Values{"duration": 3, "success": 1, "loc": 120, "filesize": 2048, "filecount": 4}, got)
}

func TestAPIs(t *testing.T) {
	d := &worker.APIDescription{
		Product: worker.Product{State: worker.StateFailure},
		Entries: map[string]worker.APIEntry{
			"m":   {Form: "module"},
			"m.C": {Form: "class"},
			"m.f": {Form: "function"},
			"m.g": {Form: "function"},
		},
	}
	got := APIs(discardLogger()).Count("p@1.0", d)
	assert.Equal(t, 0.0, got["success"])
	assert.Equal(t, 4.0, got["entries"])
	assert.Equal(t, 2.0, got["forms.function"])
	assert.Equal(t, 1.0, got["forms.module"])
}

func TestChanges(t *testing.T) {
	d := &worker.APIDifference{
		Product: worker.Product{State: worker.StateSuccess},
		Entries: map[string]worker.DiffEntry{
			"1": {Kind: "RemoveFunction", Rank: worker.RankHigh},
			"2": {Kind: "RemoveFunction", Rank: worker.RankHigh},
			"3": {Kind: "AddFunction", Rank: worker.RankCompatible},
			"4": {Kind: "AddParameter", Rank: worker.RankLow},
			"5": {Kind: "Unclassified", Rank: worker.RankUnknown},
		},
	}
	got := Changes(discardLogger()).Count("p@1.0&2.0", d)

	assert.Equal(t, 2.0, got["kinds.RemoveFunction"])
	assert.Equal(t, 1.0, got["kinds.AddFunction"])
	assert.Equal(t, 2.0, got["breaking_kinds.RemoveFunction"])
	assert.Equal(t, 1.0, got["breaking_kinds.AddParameter"])
	assert.NotContains(t, got, "breaking_kinds.AddFunction")
	assert.Equal(t, 2.0, got["ranks.High"])
	assert.Equal(t, 0.0, got["ranks.Medium"])
	assert.Equal(t, 1.0, got["ranks.Unknown"])
	assert.Equal(t, 3.0, got["breaking"])
}

func TestReports(t *testing.T) {
	got := Reports(discardLogger()).Count("p@1&2", &worker.Report{Product: worker.Product{State: worker.StateSuccess}})
	assert.Equal(t, Values{"duration": 0, "success": 1}, got)
}

func TestTable_Keys(t *testing.T) {
	tbl := Table{"b": {}, "a": {}}
	assert.Equal(t, []string{"a", "b"}, tbl.Keys())
}
