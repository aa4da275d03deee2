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
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrToolFailed marks a tool invocation that exited non-zero.
	ErrToolFailed = errors.New("analysis tool failed")

	// ErrNoPayload marks a tool invocation whose output could not be parsed.
	ErrNoPayload = errors.New("analysis tool produced no payload")
)

// Result is the outcome of one tool invocation.
type Result[T any] struct {
	Verb string
	Code int
	Log  []byte
	Out  []byte
	Data *T
}

// Ensure returns an error unless the tool exited zero and its output parsed.
func (r *Result[T]) Ensure() error {
	if r.Code != 0 {
		return errors.Mark(errors.Newf("%s exited with code %d", r.Verb, r.Code), ErrToolFailed)
	}
	if r.Data == nil {
		return errors.Mark(errors.Newf("%s output could not be parsed", r.Verb), ErrNoPayload)
	}
	return nil
}

// Save writes the output to path and the diagnostics to its sibling .log.
func (r *Result[T]) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}
	if err := os.WriteFile(path, r.Out, 0644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	logPath := LogPath(path)
	if err := os.WriteFile(logPath, r.Log, 0644); err != nil {
		return errors.Wrapf(err, "write %s", logPath)
	}
	return nil
}

// LogPath returns the sibling log file of an artifact path.
func LogPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".log"
}
