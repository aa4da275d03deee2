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

package release

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Release identifies one published version of a project.
type Release struct {
	Project string `json:"project"`
	Version string `json:"version"`
}

// String returns the canonical "project@version" form used in job keys.
func (r Release) String() string {
	return r.Project + "@" + r.Version
}

// Pair is two adjacent releases of the same project.
type Pair struct {
	Old Release `json:"old"`
	New Release `json:"new"`
}

// String returns "project@old&new".
func (p Pair) String() string {
	return p.Old.Project + "@" + p.Old.Version + "&" + p.New.Version
}

// Project returns the project both releases belong to.
func (p Pair) Project() string {
	return p.Old.Project
}

// ParseRelease parses the "project@version" form.
func ParseRelease(s string) (Release, error) {
	project, version, ok := strings.Cut(s, "@")
	if !ok || project == "" || version == "" {
		return Release{}, errors.Newf("invalid release %q", s)
	}
	return Release{Project: project, Version: version}, nil
}

// ParsePair parses the "project@old&new" form.
func ParsePair(s string) (Pair, error) {
	project, versions, ok := strings.Cut(s, "@")
	if !ok || project == "" {
		return Pair{}, errors.Newf("invalid release pair %q", s)
	}
	oldVersion, newVersion, ok := strings.Cut(versions, "&")
	if !ok || oldVersion == "" || newVersion == "" {
		return Pair{}, errors.Newf("invalid release pair %q", s)
	}
	return Pair{
		Old: Release{Project: project, Version: oldVersion},
		New: Release{Project: project, Version: newVersion},
	}, nil
}

// Strings renders releases in their canonical form.
func Strings[T interface{ String() string }](items []T) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.String()
	}
	return out
}

// PairAdjacent emits (r[i-1], r[i]) for every consecutive element of an
// already sorted slice. filter, when non-nil, drops pairs it returns false for.
func PairAdjacent(releases []Release, filter func(Pair) bool) []Pair {
	if len(releases) < 2 {
		return nil
	}
	pairs := make([]Pair, 0, len(releases)-1)
	for i := 1; i < len(releases); i++ {
		p := Pair{Old: releases[i-1], New: releases[i]}
		if filter != nil && !filter(p) {
			continue
		}
		pairs = append(pairs, p)
	}
	return pairs
}

// Latest returns the last n releases of a sorted slice. n <= 0 returns all.
func Latest(releases []Release, n int) []Release {
	if n <= 0 || len(releases) <= n {
		return releases
	}
	return releases[len(releases)-n:]
}
