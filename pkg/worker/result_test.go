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
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	raw := []byte(`{"state":1,"entries":{"m":{"form":"module"},"m.f":{"form":"function"}}}`)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "plain", data: raw},
		{name: "gzip", data: gzipped(t, raw)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var api APIDescription
			require.NoError(t, Decode(tt.data, &api))
			assert.Len(t, api.Entries, 2)
			assert.Equal(t, "function", api.Entries["m.f"].Form)
		})
	}
}

func TestDecode_Invalid(t *testing.T) {
	var api APIDescription
	assert.Error(t, Decode([]byte("{"), &api))
	assert.Error(t, Decode([]byte{0x1f, 0x8b, 0x00}, &api))
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: `1.5`, want: 1500 * time.Millisecond},
		{in: `"PT2S"`, want: 2 * time.Second},
		{in: `"PT1M30.5S"`, want: 90*time.Second + 500*time.Millisecond},
		{in: `"P1DT1H"`, want: 25 * time.Hour},
		{in: `"PT"`, wantErr: true},
		{in: `"soon"`, wantErr: true},
		{in: `true`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.in), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, time.Duration(d))
		})
	}
}

func TestAPIDifference_Helpers(t *testing.T) {
	d := APIDifference{Entries: map[string]DiffEntry{
		"a": {Kind: "RemoveFunction", Rank: RankHigh},
		"b": {Kind: "AddFunction", Rank: RankCompatible},
		"c": {Kind: "RemoveFunction", Rank: RankHigh},
		"d": {Kind: "ChangeParameter", Rank: RankLow},
	}}

	assert.Equal(t, map[string]int{"RemoveFunction": 2, "AddFunction": 1, "ChangeParameter": 1}, d.Kinds())
	assert.Len(t, d.Breaking(RankLow), 3)
	assert.Len(t, d.Rank(RankHigh), 2)
	assert.Empty(t, d.Rank(RankMedium))
	assert.Equal(t, "Medium", RankMedium.String())
}

func TestResult_Save(t *testing.T) {
	dir := t.TempDir()
	res := &Result[Report]{Verb: VerbReport, Out: []byte("out"), Log: []byte("log")}

	path := filepath.Join(dir, "p", "reports", "1.0&2.0.json")
	require.NoError(t, res.Save(path))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "out", string(out))

	log, err := os.ReadFile(filepath.Join(dir, "p", "reports", "1.0&2.0.log"))
	require.NoError(t, err)
	assert.Equal(t, "log", string(log))
}

func TestLogPath(t *testing.T) {
	assert.Equal(t, "/d/p/apis/1.0.0.log", LogPath("/d/p/apis/1.0.0.json"))
	assert.Equal(t, "/d/p/changes/1.0&2.0.log", LogPath("/d/p/changes/1.0&2.0.json"))
}

func TestDuration_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Product{Duration: Duration(1500 * time.Millisecond), State: StateSuccess})
	require.NoError(t, err)

	var back Product
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, Duration(1500*time.Millisecond), back.Duration)
	assert.True(t, back.Success())
}
