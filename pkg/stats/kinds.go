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
	"log/slog"

	"github.com/kraklabs/apindex/pkg/worker"
)

// Document is the per project statistics file.
type Document struct {
	Dists   Table `json:"dists"`
	APIs    Table `json:"apis"`
	Changes Table `json:"changes"`
	Reports Table `json:"reports"`
}

// NewDocument returns a Document with empty tables.
func NewDocument() *Document {
	return &Document{Dists: Table{}, APIs: Table{}, Changes: Table{}, Reports: Table{}}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Set bundles the statisticians of every artifact kind.
type Set struct {
	Dists   *Statistician[worker.Distribution]
	APIs    *Statistician[worker.APIDescription]
	Changes *Statistician[worker.APIDifference]
	Reports *Statistician[worker.Report]
}

// Default returns the standard counters.
func Default(logger *slog.Logger) *Set {
	return &Set{
		Dists:   Distributions(logger),
		APIs:    APIs(logger),
		Changes: Changes(logger),
		Reports: Reports(logger),
	}
}

// Distributions counts preprocess payloads.
func Distributions(logger *slog.Logger) *Statistician[worker.Distribution] {
	return New[worker.Distribution](logger).
		Scalar("duration", func(d *worker.Distribution) float64 { return d.Duration.Seconds() }).
		Scalar("success", func(d *worker.Distribution) float64 { return boolValue(d.Success()) }).
		Scalar("loc", func(d *worker.Distribution) float64 { return float64(d.LocCount) }).
		Scalar("filesize", func(d *worker.Distribution) float64 { return float64(d.FileSize) }).
		Scalar("filecount", func(d *worker.Distribution) float64 { return float64(d.FileCount) })
}

// APIs counts extract payloads.
func APIs(logger *slog.Logger) *Statistician[worker.APIDescription] {
	return New[worker.APIDescription](logger).
		Scalar("duration", func(d *worker.APIDescription) float64 { return d.Duration.Seconds() }).
		Scalar("success", func(d *worker.APIDescription) float64 { return boolValue(d.Success()) }).
		Scalar("entries", func(d *worker.APIDescription) float64 { return float64(len(d.Entries)) }).
		Map("forms", func(d *worker.APIDescription) map[string]float64 {
			out := make(map[string]float64)
			for _, e := range d.Entries {
				out[e.Form]++
			}
			return out
		})
}

func breakingKinds(d *worker.APIDifference) map[string]float64 {
	out := make(map[string]float64)
	for _, e := range d.Breaking(worker.RankLow) {
		out[e.Kind]++
	}
	return out
}

// Changes counts diff payloads.
func Changes(logger *slog.Logger) *Statistician[worker.APIDifference] {
	return New[worker.APIDifference](logger).
		Scalar("duration", func(d *worker.APIDifference) float64 { return d.Duration.Seconds() }).
		Scalar("success", func(d *worker.APIDifference) float64 { return boolValue(d.Success()) }).
		Map("kinds", func(d *worker.APIDifference) map[string]float64 {
			out := make(map[string]float64)
			for k, n := range d.Kinds() {
				out[k] = float64(n)
			}
			return out
		}).
		Map("breaking_kinds", breakingKinds).
		Map("ranks", func(d *worker.APIDifference) map[string]float64 {
			out := make(map[string]float64, len(worker.Ranks))
			for _, r := range worker.Ranks {
				out[r.String()] = float64(len(d.Rank(r)))
			}
			return out
		}).
		Scalar("breaking", func(d *worker.APIDifference) float64 {
			var total float64
			for _, n := range breakingKinds(d) {
				total += n
			}
			return total
		})
}

// Reports counts report payloads.
func Reports(logger *slog.Logger) *Statistician[worker.Report] {
	return New[worker.Report](logger).
		Scalar("duration", func(d *worker.Report) float64 { return d.Duration.Seconds() }).
		Scalar("success", func(d *worker.Report) float64 { return boolValue(d.Success()) })
}
