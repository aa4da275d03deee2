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

// Package release models published versions of a project and turns a
// version history into adjacent comparison pairs.
//
// # Sorting
//
// Versions are ordered with a chain of comparators:
//
//  1. Semantic versions (github.com/Masterminds/semver/v3)
//  2. Generic dotted versions (github.com/hashicorp/go-version), which also
//     accept forms such as "2.0rc1" or "1.2.3.4"
//  3. Input order, unchanged, with a warning
//
// A comparator is only used when it can parse every version in the input, so
// a single odd version never produces a half sorted result.
//
// # Pairing
//
//	releases := release.Sort(rels, logger)
//	pairs := release.PairAdjacent(releases, nil)
//	// [1.0, 1.1, 2.0] -> [1.0&1.1, 1.1&2.0]
//
// # Metadata
//
// PyPIClient reads the release list of a project from the package index JSON
// API and caches the answer on disk for a freshness window. Enumerator
// combines a Source with sorting, filtering and the most recent N policy.
package release
