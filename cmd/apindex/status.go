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
	"time"

	"github.com/cockroachdb/errors"

	"github.com/kraklabs/apindex/internal/bootstrap"
	"github.com/kraklabs/apindex/internal/output"
	"github.com/kraklabs/apindex/internal/ui"
	"github.com/kraklabs/apindex/pkg/indexer"
	"github.com/kraklabs/apindex/pkg/ledger"
)

// statusReport is the --json output of status.
type statusReport struct {
	Ledger       string               `json:"ledger"`
	Name         string               `json:"name"`
	Entries      int                  `json:"entries"`
	ProcessLimit int                  `json:"processLimit"`
	Summary      []ledger.KindSummary `json:"summary"`
	Projects     []string             `json:"projects"`
	Manifest     *indexer.Manifest    `json:"manifest,omitempty"`
	Running      *bootstrap.LockInfo  `json:"running,omitempty"`
}

// readManifest reads packages.json. It returns nil when none was written
// yet.
func readManifest(path string) (*indexer.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read %s", path)
	}
	var m indexer.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return &m, nil
}

// running reports the lock holder when another run is active.
func running(ws *bootstrap.Workspace) *bootstrap.LockInfo {
	lock, err := ws.Lock()
	if err == nil {
		lock.Release()
		return nil
	}
	if !errors.Is(err, bootstrap.ErrLocked) {
		return nil
	}
	info, _ := bootstrap.ReadLockInfo(ws.LockPath())
	return info
}

func (c *cli) collectStatus(s *session) (*statusReport, error) {
	projects, err := s.ws.Projects()
	if err != nil {
		return nil, err
	}
	m, err := readManifest(s.ws.Dist.Manifest())
	if err != nil {
		s.logger().Warn("status.manifest.unreadable", "err", err)
	}
	return &statusReport{
		Ledger:       s.ws.LedgerPath,
		Name:         s.ledger.Name,
		Entries:      len(s.ledger.Data),
		ProcessLimit: s.ledger.ProcessLimit,
		Summary:      s.ledger.Summary(),
		Projects:     projects,
		Manifest:     m,
		Running:      running(s.ws),
	}, nil
}

// runStatus executes the 'status' command.
func (c *cli) runStatus(args []string) error {
	fs := c.newFlagSet("status", "Shows ledger and manifest summaries.")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	s, err := c.open(configArg(fs.Args()), false)
	if err != nil {
		return err
	}
	defer s.Close()

	rep, err := c.collectStatus(s)
	if err != nil {
		return err
	}
	if c.globals.JSON {
		return output.JSONTo(c.stdout, rep)
	}

	c.out.Header("apindex status")
	c.out.Field("Ledger:", ui.DimText(rep.Ledger))
	c.out.Field("Entries:", ui.CountText(rep.Entries))
	for _, k := range rep.Summary {
		c.out.Field(k.Kind+":", ui.CountText(k.Success)+" done, "+ui.CountText(k.Failure)+" failed")
	}
	c.out.Field("Projects:", ui.CountText(len(rep.Projects)))
	if rep.Manifest != nil {
		c.out.Field("Last index:", rep.Manifest.Time.Local().Format(time.DateTime))
		c.out.List("Index failures:", rep.Manifest.Failed)
	}
	if rep.Running != nil {
		c.out.Warningf("run in progress (pid %d, started %s)", rep.Running.PID, rep.Running.StartedAt.Format(time.DateTime))
	}
	return nil
}
