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
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/kraklabs/apindex/pkg/dist"
	"github.com/kraklabs/apindex/pkg/ledger"
)

// Default locations, relative to the working directory.
const (
	DefaultCache      = "cache"
	DefaultDist       = "dist"
	DefaultLedgerName = "indexer.json"
)

// Config names the workspace roots. Empty fields take the defaults; the
// ledger defaults to <Dist>/indexer.json.
type Config struct {
	Cache string
	Dist  string
	DB    string
}

// Workspace is a prepared set of roots.
type Workspace struct {
	Cache      *dist.PathBuilder
	Dist       *dist.PathBuilder
	LedgerPath string
}

// Prepare resolves cfg to absolute paths and creates the roots.
func Prepare(cfg Config, logger *slog.Logger) (*Workspace, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Cache == "" {
		cfg.Cache = DefaultCache
	}
	if cfg.Dist == "" {
		cfg.Dist = DefaultDist
	}
	if cfg.DB == "" {
		cfg.DB = filepath.Join(cfg.Dist, DefaultLedgerName)
	}

	cache, err := filepath.Abs(cfg.Cache)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve cache %s", cfg.Cache)
	}
	distRoot, err := filepath.Abs(cfg.Dist)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve dist %s", cfg.Dist)
	}
	db, err := filepath.Abs(cfg.DB)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve ledger %s", cfg.DB)
	}

	for _, dir := range []string{cache, distRoot, filepath.Dir(db)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "create %s", dir)
		}
	}

	logger.Debug("bootstrap.workspace.ready", "cache", cache, "dist", distRoot, "ledger", db)
	return &Workspace{
		Cache:      dist.New(cache),
		Dist:       dist.New(distRoot),
		LedgerPath: db,
	}, nil
}

// OpenLedger loads the ledger with the given job quota.
func (w *Workspace) OpenLedger(limit int, logger *slog.Logger) *ledger.Ledger {
	l := ledger.Load(w.LedgerPath, logger)
	l.SetLimit(limit)
	return l
}

// LockPath returns the lock file guarding the ledger.
func (w *Workspace) LockPath() string {
	return w.LedgerPath + ".lock"
}

// Lock takes the workspace lock.
func (w *Workspace) Lock() (*Lock, error) {
	return AcquireLock(w.LockPath())
}

// Projects lists the projects present in the published tree.
func (w *Workspace) Projects() ([]string, error) {
	return w.Dist.Projects()
}
