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

package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONTo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONTo(&buf, map[string]any{"project": "requests", "done": 4}))

	out := buf.String()
	assert.Contains(t, out, "  \"project\": \"requests\"")
	assert.Contains(t, out, `"done": 4`)
	assert.True(t, strings.HasSuffix(out, "}\n"))
}

func TestJSONLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONLine(&buf, map[string]any{"a": 1}))
	require.NoError(t, JSONLine(&buf, map[string]any{"a": 2}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{`{"a":1}`, `{"a":2}`}, lines)
}

func TestJSONTo_Unencodable(t *testing.T) {
	var buf bytes.Buffer
	err := JSONTo(&buf, map[string]any{"ch": make(chan int)})
	assert.ErrorContains(t, err, "encode json")
}

func TestJSONErrorTo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONErrorTo(&buf, errors.New("ledger is locked")))

	var got ErrorJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "ledger is locked", got.Error)
	assert.Empty(t, got.Code)
}
