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

// Package worker runs the external API analysis tool.
//
// The tool exposes four verbs (preprocess, extract, diff, report) and a
// --version flag. Each verb writes a JSON document to stdout, optionally gzip
// compressed, and diagnostics to stderr. Exit status 0 is the only success
// signal.
//
// Two adapters implement Worker: Subprocess runs a local command and
// Container runs the tool image through docker with a bind mounted volume.
package worker
