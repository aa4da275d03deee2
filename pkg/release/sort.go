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
	"log/slog"
	"slices"

	"github.com/Masterminds/semver/v3"
	pep440 "github.com/aquasecurity/go-pep440-version"
	"github.com/cockroachdb/errors"
	goversion "github.com/hashicorp/go-version"
)

// comparator parses every version up front and returns an index comparison.
// It fails as a whole when any single version cannot be parsed.
type comparator struct {
	name string
	keys func(versions []string) (func(i, j int) int, error)
}

var comparators = []comparator{
	{name: "pep440", keys: pep440Keys},
	{name: "semver", keys: semverKeys},
	{name: "version", keys: genericKeys},
}

func pep440Keys(versions []string) (func(i, j int) int, error) {
	parsed := make([]pep440.Version, len(versions))
	for i, v := range versions {
		pv, err := pep440.Parse(v)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %q", v)
		}
		parsed[i] = pv
	}
	return func(i, j int) int { return parsed[i].Compare(parsed[j]) }, nil
}

func semverKeys(versions []string) (func(i, j int) int, error) {
	parsed := make([]*semver.Version, len(versions))
	for i, v := range versions {
		sv, err := semver.NewVersion(v)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %q", v)
		}
		parsed[i] = sv
	}
	return func(i, j int) int { return parsed[i].Compare(parsed[j]) }, nil
}

func genericKeys(versions []string) (func(i, j int) int, error) {
	parsed := make([]*goversion.Version, len(versions))
	for i, v := range versions {
		gv, err := goversion.NewVersion(v)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %q", v)
		}
		parsed[i] = gv
	}
	return func(i, j int) int { return parsed[i].Compare(parsed[j]) }, nil
}

// Sort returns the releases ordered ascending by version. The input slice is
// not modified. When no comparator can handle every version the input order
// is kept and a warning is logged.
func Sort(releases []Release, logger *slog.Logger) []Release {
	if logger == nil {
		logger = slog.Default()
	}
	out := slices.Clone(releases)
	if len(out) < 2 {
		return out
	}

	versions := make([]string, len(out))
	for i, r := range out {
		versions[i] = r.Version
	}

	for _, c := range comparators {
		cmp, err := c.keys(versions)
		if err != nil {
			logger.Warn("release.sort.fallback", "comparator", c.name, "err", err)
			continue
		}
		order := make([]int, len(out))
		for i := range order {
			order[i] = i
		}
		slices.SortStableFunc(order, cmp)
		sorted := make([]Release, len(out))
		for i, idx := range order {
			sorted[i] = out[idx]
		}
		return sorted
	}

	logger.Warn("release.sort.unsorted", "count", len(out), "releases", Strings(out))
	return out
}
