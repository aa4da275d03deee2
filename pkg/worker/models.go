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

package worker

import (
	"encoding/json"
	"regexp"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
)

// State is the production state the tool records in every payload.
type State int

const (
	StatePending State = 0
	StateSuccess State = 1
	StateFailure State = 2
)

// Duration decodes both numeric seconds and ISO 8601 durations ("PT1.5S").
type Duration time.Duration

var isoDuration = regexp.MustCompile(`^P(?:(\d+(?:\.\d+)?)D)?(?:T(?:(\d+(?:\.\d+)?)H)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var seconds float64
	if err := json.Unmarshal(data, &seconds); err == nil {
		*d = Duration(seconds * float64(time.Second))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "decode duration")
	}
	m := isoDuration.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return errors.Newf("invalid duration %q", s)
	}
	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second}
	var total float64
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return errors.Wrapf(err, "invalid duration %q", s)
		}
		total += v * float64(unit)
	}
	*d = Duration(total)
	return nil
}

// MarshalJSON encodes the duration as numeric seconds.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Seconds())
}

// Seconds returns the duration as floating point seconds.
func (d Duration) Seconds() float64 {
	return time.Duration(d).Seconds()
}

// Product holds the fields shared by every tool payload.
type Product struct {
	Creation string   `json:"creation,omitempty"`
	Duration Duration `json:"duration"`
	State    State    `json:"state"`
}

// Success reports whether the tool marked the payload successful.
func (p Product) Success() bool {
	return p.State == StateSuccess
}

// Distribution is the preprocess payload.
type Distribution struct {
	Product
	FileCount  int      `json:"fileCount"`
	FileSize   int      `json:"fileSize"`
	LocCount   int      `json:"locCount"`
	TopModules []string `json:"topModules,omitempty"`
}

// APIEntry is one entry of an API description. Only its form is decoded.
type APIEntry struct {
	Form string `json:"form"`
}

// APIDescription is the extract payload.
type APIDescription struct {
	Product
	Entries map[string]APIEntry `json:"entries"`
}

// BreakingRank grades how breaking a difference entry is.
type BreakingRank int

const (
	RankUnknown    BreakingRank = -1
	RankCompatible BreakingRank = 0
	RankLow        BreakingRank = 30
	RankMedium     BreakingRank = 60
	RankHigh       BreakingRank = 100
)

// Ranks lists every rank in ascending order.
var Ranks = []BreakingRank{RankUnknown, RankCompatible, RankLow, RankMedium, RankHigh}

func (r BreakingRank) String() string {
	switch r {
	case RankUnknown:
		return "Unknown"
	case RankCompatible:
		return "Compatible"
	case RankLow:
		return "Low"
	case RankMedium:
		return "Medium"
	case RankHigh:
		return "High"
	default:
		return "BreakingRank(" + strconv.Itoa(int(r)) + ")"
	}
}

// DiffEntry is one change between two API descriptions.
type DiffEntry struct {
	Kind string       `json:"kind"`
	Rank BreakingRank `json:"rank"`
}

// APIDifference is the diff payload.
type APIDifference struct {
	Product
	Entries map[string]DiffEntry `json:"entries"`
}

// Kinds returns the number of entries per change kind.
func (d *APIDifference) Kinds() map[string]int {
	out := make(map[string]int)
	for _, e := range d.Entries {
		out[e.Kind]++
	}
	return out
}

// Breaking returns the entries ranked at least min.
func (d *APIDifference) Breaking(min BreakingRank) []DiffEntry {
	var out []DiffEntry
	for _, e := range d.Entries {
		if e.Rank >= min {
			out = append(out, e)
		}
	}
	return out
}

// Rank returns the entries with exactly rank r.
func (d *APIDifference) Rank(r BreakingRank) []DiffEntry {
	var out []DiffEntry
	for _, e := range d.Entries {
		if e.Rank == r {
			out = append(out, e)
		}
	}
	return out
}

// Report is the report payload.
type Report struct {
	Product
	Content string `json:"content,omitempty"`
}
