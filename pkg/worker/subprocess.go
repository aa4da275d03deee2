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
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/kballard/go-shellquote"
)

// Verbs understood by the analysis tool.
const (
	VerbPreprocess = "preprocess"
	VerbExtract    = "extract"
	VerbDiff       = "diff"
	VerbReport     = "report"
)

// DefaultCommand is the subprocess command prefix used when none is configured.
const DefaultCommand = "aexpy"

// Worker invokes the analysis tool. A returned error means the tool could not
// be started at all; tool failures are reported through Result.Code.
type Worker interface {
	Preprocess(ctx context.Context, args []string) (*Result[Distribution], error)
	Extract(ctx context.Context, args []string) (*Result[APIDescription], error)
	Diff(ctx context.Context, args []string) (*Result[APIDifference], error)
	Report(ctx context.Context, args []string) (*Result[Report], error)

	// Version returns the tool version, e.g. "0.5.1".
	Version(ctx context.Context) (string, error)

	// ResolvePath maps a host path to the path the tool sees.
	ResolvePath(path string) (string, error)
}

// Options configures tool invocations.
type Options struct {
	// Verbose is the tool verbosity, clamped to 0-5.
	Verbose int

	// Compress asks the tool to gzip its output.
	Compress bool

	Logger *slog.Logger
}

// Subprocess runs the tool as a local command.
type Subprocess struct {
	prefix   []string
	verbose  int
	compress bool
	logger   *slog.Logger
}

// NewSubprocess creates a Subprocess adapter. command is a shell-quoted
// command prefix such as "python -m aexpy"; empty selects DefaultCommand.
func NewSubprocess(command string, opts Options) (*Subprocess, error) {
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}
	prefix, err := shellquote.Split(command)
	if err != nil {
		return nil, errors.Wrapf(err, "parse worker command %q", command)
	}
	if len(prefix) == 0 {
		return nil, errors.Newf("empty worker command %q", command)
	}
	return newSubprocess(prefix, opts), nil
}

func newSubprocess(prefix []string, opts Options) *Subprocess {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Subprocess{
		prefix:   prefix,
		verbose:  min(5, max(0, opts.Verbose)),
		compress: opts.Compress,
		logger:   logger,
	}
}

// Command returns the full argument vector for a tool invocation.
func (s *Subprocess) Command(args ...string) []string {
	argv := append([]string{}, s.prefix...)
	if s.verbose > 0 {
		argv = append(argv, "-"+strings.Repeat("v", s.verbose))
	}
	return append(argv, args...)
}

func (s *Subprocess) env() []string {
	gzipIO := "0"
	if s.compress {
		gzipIO = "1"
	}
	return append(os.Environ(), "PYTHONUTF8=1", "AEXPY_GZIP_IO="+gzipIO)
}

// run executes the tool and returns its exit code, stdout and stderr.
func (s *Subprocess) run(ctx context.Context, args []string) (int, []byte, []byte, error) {
	argv := s.Command(args...)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // G204: command comes from configuration
	cmd.Env = s.env()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	s.logger.Debug("worker.run", "argv", argv, "duration_ms", time.Since(start).Milliseconds())

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), stdout.Bytes(), stderr.Bytes(), nil
		}
		return -1, stdout.Bytes(), stderr.Bytes(), errors.Wrapf(err, "start %s", argv[0])
	}
	return 0, stdout.Bytes(), stderr.Bytes(), nil
}

func runParse[T any](ctx context.Context, s *Subprocess, verb string, args []string) (*Result[T], error) {
	code, out, log, err := s.run(ctx, append([]string{verb}, args...))
	if err != nil {
		return nil, err
	}
	result := &Result[T]{Verb: verb, Code: code, Log: log, Out: out}

	data := new(T)
	if err := Decode(out, data); err != nil {
		s.logger.Error("worker.parse.failed", "verb", verb, "code", code, "err", err)
		return result, nil
	}
	result.Data = data
	return result, nil
}

// Preprocess runs the preprocess verb.
func (s *Subprocess) Preprocess(ctx context.Context, args []string) (*Result[Distribution], error) {
	return runParse[Distribution](ctx, s, VerbPreprocess, args)
}

// Extract runs the extract verb.
func (s *Subprocess) Extract(ctx context.Context, args []string) (*Result[APIDescription], error) {
	return runParse[APIDescription](ctx, s, VerbExtract, args)
}

// Diff runs the diff verb.
func (s *Subprocess) Diff(ctx context.Context, args []string) (*Result[APIDifference], error) {
	return runParse[APIDifference](ctx, s, VerbDiff, args)
}

// Report runs the report verb.
func (s *Subprocess) Report(ctx context.Context, args []string) (*Result[Report], error) {
	return runParse[Report](ctx, s, VerbReport, args)
}

// Version runs the tool with --version.
func (s *Subprocess) Version(ctx context.Context) (string, error) {
	code, out, log, err := s.run(ctx, []string{"--version"})
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", errors.Mark(errors.Newf("--version exited with code %d: %s", code, strings.TrimSpace(string(log))), ErrToolFailed)
	}
	return ParseVersion(string(out)), nil
}

// ResolvePath returns path unchanged.
func (s *Subprocess) ResolvePath(path string) (string, error) {
	return path, nil
}

// ParseVersion extracts the version number from the tool's --version output.
func ParseVersion(out string) string {
	v := strings.TrimSpace(out)
	v = strings.TrimPrefix(v, "aexpy v")
	return strings.TrimSuffix(v, ".")
}
