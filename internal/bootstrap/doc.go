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

// Package bootstrap prepares the apindex workspace.
//
// A workspace is a cache root holding scratch and intermediate artifacts, a
// dist root holding the published tree, and the ledger file. Prepare
// resolves and creates them:
//
//	ws, err := bootstrap.Prepare(bootstrap.Config{Cache: "cache", Dist: "dist"}, logger)
//	if err != nil {
//	    return err
//	}
//	lock, err := ws.Lock()
//	if err != nil {
//	    return err // bootstrap.ErrLocked when another run owns the ledger
//	}
//	defer lock.Release()
//	l := ws.OpenLedger(1000, logger)
//
// Prepare is idempotent.
//
// # Locking
//
// Lock takes an exclusive flock on "<ledger>.lock" and records the owner's
// pid and start time. A second invocation on the same ledger gets ErrLocked
// and can describe the holder with ReadLockInfo.
package bootstrap
