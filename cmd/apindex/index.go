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

package main

import (
	"github.com/kraklabs/apindex/internal/output"
	"github.com/kraklabs/apindex/pkg/indexer"
)

// runIndex executes the 'index' command: it rebuilds index.json and
// stats.json of every published project and writes packages.json.
func (c *cli) runIndex(args []string) error {
	fs := c.newFlagSet("index", "Rebuilds the index documents of every project in the published tree.")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	s, err := c.open(configArg(fs.Args()), true)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, _, stopSignals := handleSignals(s.logger())
	defer stopSignals()

	m, err := s.newIndexer(s.newStrategies()).IndexPackages(ctx)
	if m != nil {
		if outErr := c.printManifest(m); outErr != nil && err == nil {
			err = outErr
		}
	}
	return err
}

func (c *cli) printManifest(m *indexer.Manifest) error {
	if c.globals.JSON {
		return output.JSONTo(c.stdout, m)
	}
	c.out.Successf("%d projects indexed", len(m.Projects))
	if len(m.Failed) > 0 {
		c.out.Errorf("%d projects could not be indexed", len(m.Failed))
		c.out.List("Failed:", m.Failed)
	}
	return nil
}
