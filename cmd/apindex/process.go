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
	"github.com/cockroachdb/errors"

	apierrors "github.com/kraklabs/apindex/internal/errors"
	"github.com/kraklabs/apindex/internal/output"
	"github.com/kraklabs/apindex/pkg/ledger"
	"github.com/kraklabs/apindex/pkg/processor"
)

// processReport is the --json output of process.
type processReport struct {
	RunID       string `json:"runId"`
	ToolVersion string `json:"toolVersion"`
	Limit       int    `json:"processLimit"`
	Jobs        int    `json:"processCount"`
	Quota       bool   `json:"quotaExhausted"`
	*processor.BatchResult
}

// runProcess executes the 'process' command.
//
// Flags:
//   - --limit: job quota for this run, overriding process_limit
//   - --timeout: batch timeout, overriding timeout
//   - --package: process only the named projects (repeatable)
func (c *cli) runProcess(args []string) error {
	fs := c.newFlagSet("process", "Processes every release and adjacent release pair of the configured packages.")
	limit := fs.Int("limit", -1, "Job quota for this run (-1 uses process_limit, 0 disables)")
	timeout := fs.Duration("timeout", 0, "Batch timeout (0 uses the configured timeout)")
	only := fs.StringSlice("package", nil, "Process only this project (repeatable)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	s, err := c.open(configArg(fs.Args()), true)
	if err != nil {
		return err
	}
	defer s.Close()

	if *limit >= 0 {
		s.ledger.SetLimit(*limit)
	}
	batchTimeout := s.cfg.Timeout.D()
	if *timeout > 0 {
		batchTimeout = *timeout
	}
	projects := s.cfg.Packages
	if len(*only) > 0 {
		projects = *only
	}
	if len(projects) == 0 {
		return apierrors.NewInputError(
			"No packages to process",
			"The packages list of "+s.configPath+" is empty",
			"Add project names to packages or pass --package",
		)
	}

	log := s.logger()
	stopMetrics := serveMetrics(c.globals.MetricsAddr, log)
	defer stopMetrics()
	ctx, work, stopSignals := handleSignals(log)
	defer stopSignals()

	w, err := s.newWorker()
	if err != nil {
		return err
	}
	strategies := s.newStrategies()
	proc, err := processor.New(processor.Config{
		Worker:      w,
		Ledger:      s.ledger,
		Cache:       s.ws.Cache,
		Dist:        s.ws.Dist,
		Indexer:     s.newIndexer(strategies),
		Strategies:  strategies,
		Logging:     s.lc,
		Progress:    NewProjectProgress(NewProgressConfig(c.globals)),
		WorkContext: work,
	})
	if err != nil {
		return errors.Wrap(err, "create processor")
	}

	toolVersion, err := proc.ToolVersion(ctx)
	if err != nil {
		return apierrors.NewConfigError(
			"Cannot run the analysis tool",
			"The worker did not report its version",
			"Install aexpy, or set command or worker in "+s.configPath,
			err,
		)
	}
	log.Info("process.start", "tool", toolVersion, "projects", len(projects),
		"limit", s.ledger.ProcessLimit, "timeout", batchTimeout.String())

	res, err := proc.Packages(ctx, projects, batchTimeout)
	quota := errors.Is(err, ledger.ErrQuotaExhausted)
	if res != nil {
		rep := processReport{
			RunID:       s.runID,
			ToolVersion: toolVersion,
			Limit:       s.ledger.ProcessLimit,
			Jobs:        s.ledger.ProcessCount,
			Quota:       quota,
			BatchResult: res,
		}
		if outErr := c.printProcess(rep); outErr != nil && err == nil {
			err = outErr
		}
	}
	if quota {
		log.Info("process.quota", "jobs", s.ledger.ProcessCount)
	}
	return err
}

func (c *cli) printProcess(rep processReport) error {
	if c.globals.JSON {
		return output.JSONTo(c.stdout, rep)
	}
	c.out.Header("apindex run " + rep.RunID)
	c.out.Field("Tool:", rep.ToolVersion)
	c.out.Field("Jobs:", rep.Jobs)
	if len(rep.Done) > 0 {
		c.out.Successf("%d projects processed", len(rep.Done))
	}
	if len(rep.Failed) > 0 {
		c.out.Errorf("%d projects failed", len(rep.Failed))
		c.out.List("Failed:", rep.Failed)
	}
	switch {
	case rep.Quota:
		c.out.Warningf("job quota of %d reached, run again to continue", rep.Limit)
	case rep.TimedOut:
		c.out.Warningf("batch timeout reached")
	case rep.Canceled:
		c.out.Warningf("interrupted")
	}
	c.out.List("Skipped:", rep.Skipped)
	return nil
}
