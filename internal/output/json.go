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

// Package output writes the machine readable (--json) form of apindex
// command results. Human readable output lives in package ui.
package output

import (
	"encoding/json"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// JSON writes data to stdout as indented JSON.
func JSON(data any) error {
	return JSONTo(os.Stdout, data)
}

// JSONTo writes data to w as JSON indented by two spaces.
func JSONTo(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return errors.Wrap(err, "encode json")
	}
	return nil
}

// JSONLine writes data to w as one compact line, for event streams.
func JSONLine(w io.Writer, data any) error {
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return errors.Wrap(err, "encode json")
	}
	return nil
}

// ErrorJSON is a bare error object.
type ErrorJSON struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSONErrorTo writes err to w as an ErrorJSON.
func JSONErrorTo(w io.Writer, err error) error {
	return JSONTo(w, ErrorJSON{Error: err.Error()})
}
