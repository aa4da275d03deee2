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
	"io"
	"log/slog"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/apindex/internal/logging"
)

// GlobalFlags are the flags accepted before the command name.
type GlobalFlags struct {
	JSON        bool
	Quiet       bool
	NoColor     bool
	Verbose     int
	Debug       bool
	MetricsAddr string
	Version     bool
}

// parseGlobals parses the global flags and returns the remaining
// arguments, starting with the command.
func parseGlobals(args []string, stderr io.Writer) (GlobalFlags, []string, error) {
	var g GlobalFlags
	fs := flag.NewFlagSet("apindex", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	fs.Usage = func() { printUsage(stderr) }

	fs.BoolVar(&g.JSON, "json", false, "Machine readable output")
	fs.BoolVarP(&g.Quiet, "quiet", "q", false, "Hide progress bars")
	fs.BoolVar(&g.NoColor, "no-color", false, "Disable colored output")
	fs.CountVarP(&g.Verbose, "verbose", "v", "Increase log verbosity (repeatable)")
	fs.BoolVar(&g.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&g.MetricsAddr, "metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")
	fs.BoolVar(&g.Version, "version", false, "Show version and exit")

	if err := fs.Parse(args); err != nil {
		return g, nil, err
	}
	if g.JSON {
		g.Quiet = true
	}
	return g, fs.Args(), nil
}

// LogLevel is debug with --debug or -v, info otherwise.
func (g GlobalFlags) LogLevel() slog.Level {
	if g.Debug || g.Verbose > 0 {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// newLogging builds the logging context for a run.
func newLogging(g GlobalFlags, w io.Writer) *logging.Context {
	return logging.NewText(w, g.LogLevel())
}
