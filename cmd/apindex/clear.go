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
	"strings"

	apierrors "github.com/kraklabs/apindex/internal/errors"
	"github.com/kraklabs/apindex/internal/output"
	"github.com/kraklabs/apindex/pkg/ledger"
	"github.com/kraklabs/apindex/pkg/processor"
)

// stdlibPrefix marks ledger keys of standard library jobs.
const stdlibPrefix = processor.StdlibProject + "@"

// clearStdlib removes the standard library entries of l and returns how
// many were removed.
func clearStdlib(l *ledger.Ledger) int {
	return l.Remove(func(key string, _ ledger.Entry) bool {
		return strings.Contains(key, stdlibPrefix)
	})
}

// runClearStd executes the 'clear-std' command, so the next process run
// redoes every standard library job.
func (c *cli) runClearStd(args []string) error {
	fs := c.newFlagSet("clear-std", "Forgets the ledger entries of the standard library.")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	s, err := c.open(configArg(fs.Args()), true)
	if err != nil {
		return err
	}
	defer s.Close()

	removed := clearStdlib(s.ledger)
	if err := s.ledger.Save(); err != nil {
		return apierrors.NewLedgerError("Cannot save the ledger", "", "Check that "+s.ws.LedgerPath+" is writable", err)
	}
	s.logger().Info("ledger.clear.stdlib", "removed", removed)

	if c.globals.JSON {
		return output.JSONTo(c.stdout, map[string]int{"removed": removed})
	}
	c.out.Successf("removed %d standard library entries", removed)
	return nil
}
