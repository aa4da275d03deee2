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
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/kraklabs/apindex/internal/errors"
	apitest "github.com/kraklabs/apindex/internal/testing"
	"github.com/kraklabs/apindex/pkg/ledger"
)

func seedLedger(t *testing.T, path string) {
	t.Helper()
	l := ledger.New(path, apitest.DiscardLogger())
	ok := func() error { return nil }
	for _, job := range [][2]string{
		{ledger.KindExtract, "python@3.11"},
		{ledger.KindExtract, "python@3.12"},
		{ledger.KindDiff, "python@3.11&3.12"},
		{ledger.KindExtract, "requests@2.0"},
		{ledger.KindExtract, "cpython@1.0"},
	} {
		require.NoError(t, l.WithJob(job[0], job[1], "0.5.1", ok))
	}
	require.NoError(t, l.Save())
}

func TestClearStdlib(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexer.json")
	seedLedger(t, path)

	l := ledger.Load(path, apitest.DiscardLogger())
	removed := clearStdlib(l)
	assert.Equal(t, 4, removed)

	_, ok := l.Get(ledger.Key(ledger.KindExtract, "requests@2.0"))
	assert.True(t, ok)
	assert.Len(t, l.Data, 1)
}

func TestRun_ClearStd(t *testing.T) {
	dir := t.TempDir()
	distRoot := filepath.Join(dir, "dist")
	db := filepath.Join(distRoot, "indexer.json")
	require.NoError(t, os.MkdirAll(distRoot, 0755))
	seedLedger(t, db)

	cfg, err := json.Marshal(map[string]any{"cache": filepath.Join(dir, "cache"), "dist": distRoot})
	require.NoError(t, err)
	cfgPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(cfgPath, cfg, 0644))

	code, out, errOut := runCLI(t, "--json", "clear-std", cfgPath)
	require.Equal(t, apierrors.ExitSuccess, code, errOut)

	var got map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 4, got["removed"])

	l := ledger.Load(db, apitest.DiscardLogger())
	assert.Len(t, l.Data, 1)
}
