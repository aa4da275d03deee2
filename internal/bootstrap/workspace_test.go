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

package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apitest "github.com/kraklabs/apindex/internal/testing"
	"github.com/kraklabs/apindex/pkg/ledger"
)

func TestPrepare_Defaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	ws, err := Prepare(Config{}, apitest.DiscardLogger())
	require.NoError(t, err)

	root, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	cache, err := filepath.EvalSymlinks(ws.Cache.Root())
	require.NoError(t, err)
	distRoot, err := filepath.EvalSymlinks(ws.Dist.Root())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, DefaultCache), cache)
	assert.Equal(t, filepath.Join(root, DefaultDist), distRoot)
	assert.Equal(t, filepath.Join(ws.Dist.Root(), DefaultLedgerName), ws.LedgerPath)
	assert.DirExists(t, ws.Cache.Root())
	assert.DirExists(t, ws.Dist.Root())
}

func TestPrepare_Explicit(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Cache: filepath.Join(dir, "c"),
		Dist:  filepath.Join(dir, "d"),
		DB:    filepath.Join(dir, "state", "db.json"),
	}

	ws, err := Prepare(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg.Cache, ws.Cache.Root())
	assert.Equal(t, cfg.Dist, ws.Dist.Root())
	assert.Equal(t, cfg.DB, ws.LedgerPath)
	assert.DirExists(t, filepath.Join(dir, "state"))
	assert.Equal(t, cfg.DB+".lock", ws.LockPath())

	again, err := Prepare(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, ws.LedgerPath, again.LedgerPath)
}

func TestWorkspace_OpenLedger(t *testing.T) {
	dir := t.TempDir()
	ws, err := Prepare(Config{Cache: filepath.Join(dir, "c"), Dist: filepath.Join(dir, "d")}, nil)
	require.NoError(t, err)

	l := ws.OpenLedger(5, apitest.DiscardLogger())
	assert.Equal(t, 5, l.ProcessLimit)
	require.NoError(t, l.WithJob(ledger.KindExtract, "requests@1.0", "0.5.1", func() error { return nil }))
	require.NoError(t, l.Save())

	reopened := ws.OpenLedger(0, apitest.DiscardLogger())
	assert.True(t, reopened.IsDone(ledger.KindExtract, "requests@1.0", "0.5.1"))
	assert.Equal(t, 0, reopened.ProcessCount)
}

func TestWorkspace_Projects(t *testing.T) {
	dir := t.TempDir()
	ws, err := Prepare(Config{Cache: filepath.Join(dir, "c"), Dist: filepath.Join(dir, "d")}, nil)
	require.NoError(t, err)

	projects, err := ws.Projects()
	require.NoError(t, err)
	assert.Empty(t, projects)

	require.NoError(t, os.MkdirAll(filepath.Join(ws.Dist.Root(), "requests"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(ws.Dist.Root(), "flask"), 0755))

	projects, err = ws.Projects()
	require.NoError(t, err)
	assert.Equal(t, []string{"flask", "requests"}, projects)
}

func TestLock_Exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexer.json.lock")

	first, err := AcquireLock(path)
	require.NoError(t, err)

	_, err = AcquireLock(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLocked))

	info, err := ReadLockInfo(path)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, os.Getpid(), info.PID)
	assert.False(t, info.StartedAt.IsZero())

	first.Release()
	first.Release()

	second, err := AcquireLock(path)
	require.NoError(t, err)
	second.Release()
}

func TestReadLockInfo(t *testing.T) {
	dir := t.TempDir()

	info, err := ReadLockInfo(filepath.Join(dir, "missing.lock"))
	require.NoError(t, err)
	assert.Nil(t, info)

	bad := filepath.Join(dir, "bad.lock")
	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0600))
	_, err = ReadLockInfo(bad)
	assert.Error(t, err)
}
