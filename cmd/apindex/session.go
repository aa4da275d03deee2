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
	"fmt"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/kraklabs/apindex/internal/bootstrap"
	apierrors "github.com/kraklabs/apindex/internal/errors"
	"github.com/kraklabs/apindex/internal/logging"
	"github.com/kraklabs/apindex/pkg/indexer"
	"github.com/kraklabs/apindex/pkg/ledger"
	"github.com/kraklabs/apindex/pkg/processor"
	"github.com/kraklabs/apindex/pkg/release"
	"github.com/kraklabs/apindex/pkg/stats"
	"github.com/kraklabs/apindex/pkg/worker"
)

// session is an opened workspace for one command.
type session struct {
	configPath string
	cfg        *Config
	runID      string
	lc         *logging.Context
	ws         *bootstrap.Workspace
	lock       *bootstrap.Lock
	ledger     *ledger.Ledger
}

func (s *session) logger() *slog.Logger { return s.lc.Logger() }

// Close releases the workspace lock.
func (s *session) Close() {
	s.lock.Release()
}

// open loads the configuration, prepares the workspace and, when locked is
// set, takes the ledger lock before loading the ledger.
func (c *cli) open(configPath string, locked bool) (*session, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	lc := newLogging(c.globals, c.stderr).With("run", runID)

	ws, err := bootstrap.Prepare(bootstrap.Config{Cache: cfg.Cache, Dist: cfg.Dist, DB: cfg.DB}, lc.Logger())
	if err != nil {
		return nil, apierrors.NewPermissionError("Cannot prepare the workspace", "", "Check that cache and dist are writable", err)
	}

	s := &session{configPath: configPath, cfg: cfg, runID: runID, lc: lc, ws: ws}
	if locked {
		lock, err := ws.Lock()
		if err != nil {
			return nil, lockError(ws, err)
		}
		s.lock = lock
	}
	s.ledger = ws.OpenLedger(cfg.ProcessLimit, lc.Logger())
	return s, nil
}

func lockError(ws *bootstrap.Workspace, err error) error {
	if !errors.Is(err, bootstrap.ErrLocked) {
		return apierrors.NewPermissionError("Cannot lock the ledger", "", "Check that "+ws.LockPath()+" is writable", err)
	}
	cause := "Another apindex run owns " + ws.LedgerPath
	if info, infoErr := bootstrap.ReadLockInfo(ws.LockPath()); infoErr == nil && info != nil {
		cause = fmt.Sprintf("apindex pid %d started %s owns %s", info.PID, info.StartedAt.Format("2006-01-02 15:04:05"), ws.LedgerPath)
	}
	return apierrors.NewLockedError("Ledger is busy", cause, "Wait for the other run to finish", err)
}

// newWorker builds the worker adapter selected by the configuration.
func (s *session) newWorker() (worker.Worker, error) {
	opts := worker.Options{Verbose: s.cfg.Verbose, Compress: s.cfg.Compress, Logger: s.logger()}
	var (
		w   worker.Worker
		err error
	)
	switch s.cfg.Worker {
	case "image":
		w, err = worker.NewContainer(s.ws.Cache.Root(), s.cfg.Image, opts)
	default:
		w, err = worker.NewSubprocess(s.cfg.Command, opts)
	}
	if err != nil {
		return nil, apierrors.NewConfigError("Invalid worker configuration", "", "Check command and image in "+s.configPath, err)
	}
	return w, nil
}

// newStrategies builds the release strategies: the package index for
// ordinary projects and, when stdlib_versions is set, the local
// interpreters for the standard library.
func (s *session) newStrategies() processor.Strategies {
	client := release.NewPyPIClient(release.PyPIConfig{
		BaseURL:   s.cfg.IndexURL,
		Mirror:    s.cfg.Mirror,
		CacheDir:  s.ws.Cache.Root(),
		Freshness: s.cfg.Freshness.D(),
	}, s.logger())

	strategies := processor.Strategies{
		Package: &processor.PackageStrategy{
			Enumerator:  release.NewEnumerator(client, s.logger()),
			MaxReleases: s.cfg.MaxReleases,
		},
	}
	if len(s.cfg.StdlibVersions) > 0 {
		strategies.Stdlib = &processor.StdlibStrategy{
			Versions: s.cfg.StdlibVersions,
			Locate:   processor.LocateStdlib,
			Env:      s.cfg.StdlibEnv,
			Logger:   s.logger(),
		}
	}
	return strategies
}

func (s *session) newIndexer(lister indexer.ReleaseLister) *indexer.Indexer {
	return indexer.New(indexer.Config{
		Dist:     s.ws.Dist,
		Releases: lister,
		Stats:    stats.Default(s.logger()),
		Logger:   s.logger(),
		RunID:    s.runID,
	})
}
