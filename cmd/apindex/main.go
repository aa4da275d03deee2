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

// Package main implements the apindex CLI, which keeps a published index of
// API descriptions and API differences for Python projects up to date.
//
// Usage:
//
//	apindex [global options] <command> [options] [config]
//
// The configuration defaults to ./config.json and the command to process.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	flag "github.com/spf13/pflag"

	apierrors "github.com/kraklabs/apindex/internal/errors"
	"github.com/kraklabs/apindex/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func printUsage(w io.Writer) {
	_, _ = fmt.Fprint(w, `apindex - incremental API index builder

apindex enumerates the releases of Python projects, runs the analysis tool
on every release and every pair of adjacent releases, and publishes the
results as a static tree. Finished work is recorded in a ledger so that
each run only does what is new.

Usage:
  apindex [global options] <command> [options] [config]

Commands:
  process     Process the configured packages (default)
  index       Rebuild the index documents of every published project
  clear-std   Forget the ledger entries of the standard library
  status      Show ledger and manifest summaries
  init        Write a configuration template
  completion  Generate shell completion script (bash|zsh|fish)

Global Options:
  --json               Machine readable output
  -q, --quiet          Hide progress bars
  --no-color           Disable colored output
  -v, --verbose        Increase log verbosity (repeatable)
  --debug              Enable debug logging
  --metrics-addr ADDR  Serve Prometheus metrics on ADDR
  --version            Show version and exit

Examples:
  apindex init                       Create ./config.json
  apindex process                    Process packages from ./config.json
  apindex process --limit 50 my.yaml Process at most 50 jobs
  apindex index                      Rebuild index.json and stats.json files
  apindex status --json              Ledger summary as JSON

For detailed command help: apindex <command> --help

`)
}

// cli carries what every command needs.
type cli struct {
	globals GlobalFlags
	stdout  io.Writer
	stderr  io.Writer
	out     *ui.Printer
}

func newCLI(g GlobalFlags, stdout, stderr io.Writer) *cli {
	return &cli{globals: g, stdout: stdout, stderr: stderr, out: ui.NewPrinter(stdout)}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	g, rest, err := parseGlobals(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return apierrors.ExitSuccess
		}
		return apierrors.ExitInput
	}
	ui.InitColors(g.NoColor)

	if g.Version {
		_, _ = fmt.Fprintf(stdout, "apindex version %s\ncommit: %s\nbuilt: %s\n", version, commit, date)
		return apierrors.ExitSuccess
	}

	command := "process"
	if len(rest) > 0 {
		command, rest = rest[0], rest[1:]
	}

	c := newCLI(g, stdout, stderr)
	switch command {
	case "process":
		err = c.runProcess(rest)
	case "index":
		err = c.runIndex(rest)
	case "clear-std":
		err = c.runClearStd(rest)
	case "status":
		err = c.runStatus(rest)
	case "init":
		err = c.runInit(rest)
	case "completion":
		err = c.runCompletion(rest)
	case "help":
		printUsage(stdout)
	default:
		printUsage(stderr)
		err = apierrors.NewInputError("Unknown command: "+command, "", "Run: apindex --help")
	}
	if errors.Is(err, flag.ErrHelp) {
		return apierrors.ExitSuccess
	}
	return apierrors.Report(stderr, err, g.JSON, g.NoColor)
}

// newFlagSet creates a command flag set reporting parse errors as input
// errors.
func (c *cli) newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(c.stderr, "Usage: apindex %s [options] [config]\n\n%s\n\nOptions:\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return apierrors.NewInputError("Invalid options for "+fs.Name(), err.Error(), "Run: apindex "+fs.Name()+" --help")
	}
	return nil
}

// configArg returns the configuration path among the positional args.
func configArg(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return DefaultConfigPath
}
