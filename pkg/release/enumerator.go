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
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
)

// Enumerator turns a project name into its sorted release history.
type Enumerator struct {
	source Source
	logger *slog.Logger

	// Filter, when set, drops releases before sorting.
	Filter func(Release) bool
}

// NewEnumerator creates an Enumerator over source.
func NewEnumerator(source Source, logger *slog.Logger) *Enumerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enumerator{source: source, logger: logger}
}

// List returns every known release of project sorted ascending.
func (e *Enumerator) List(ctx context.Context, project string) ([]Release, error) {
	versions, err := e.source.Versions(ctx, project)
	if err != nil {
		return nil, errors.Wrapf(err, "list releases of %s", project)
	}

	releases := make([]Release, 0, len(versions))
	for _, v := range versions {
		r := Release{Project: project, Version: v}
		if e.Filter != nil && !e.Filter(r) {
			continue
		}
		releases = append(releases, r)
	}
	return Sort(releases, e.logger), nil
}
