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

package processor

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/kraklabs/apindex/pkg/release"
)

// StdlibProject is the project name handled by StdlibStrategy.
const StdlibProject = "python"

// Strategy is the per project policy for listing releases and building the
// tool arguments of a release.
type Strategy interface {
	// Releases returns the releases to process, sorted ascending.
	Releases(ctx context.Context, project string) ([]release.Release, error)

	// PreprocessArgs returns the preprocess arguments for r. scratch is a
	// working directory, already resolved for the worker.
	PreprocessArgs(ctx context.Context, r release.Release, scratch string) ([]string, error)

	// ExtractArgs returns arguments appended to the extract invocation of r.
	ExtractArgs(r release.Release) []string
}

// Strategies selects the strategy of a project by name.
type Strategies struct {
	// Package is used for every project except StdlibProject.
	Package Strategy
	// Stdlib, when set, is used for StdlibProject.
	Stdlib Strategy
}

// For returns the strategy handling project.
func (s Strategies) For(project string) Strategy {
	if project == StdlibProject && s.Stdlib != nil {
		return s.Stdlib
	}
	return s.Package
}

// Releases lists the releases of project with its strategy.
func (s Strategies) Releases(ctx context.Context, project string) ([]release.Release, error) {
	return s.For(project).Releases(ctx, project)
}

// PackageStrategy processes the most recent releases of an index package.
type PackageStrategy struct {
	Enumerator  *release.Enumerator
	MaxReleases int
}

// Releases returns the last MaxReleases releases of project.
func (s *PackageStrategy) Releases(ctx context.Context, project string) ([]release.Release, error) {
	all, err := s.Enumerator.List(ctx, project)
	if err != nil {
		return nil, err
	}
	return release.Latest(all, s.MaxReleases), nil
}

// PreprocessArgs downloads and unpacks the release into scratch.
func (s *PackageStrategy) PreprocessArgs(_ context.Context, r release.Release, scratch string) ([]string, error) {
	return []string{"-r", "-p", r.String(), scratch, "-"}, nil
}

// ExtractArgs returns no extra arguments.
func (s *PackageStrategy) ExtractArgs(release.Release) []string { return nil }

// StdlibLocator returns the standard library directory of an interpreter
// version.
type StdlibLocator func(ctx context.Context, version string) (string, error)

// StdlibStrategy processes the standard library of configured interpreter
// versions.
type StdlibStrategy struct {
	Versions []string
	Locate   StdlibLocator

	// Env names the extractor environment of a version; "{version}" is
	// replaced. Empty lets the tool pick its own interpreter.
	Env string

	Logger *slog.Logger
}

// Releases returns one release per configured version, sorted.
func (s *StdlibStrategy) Releases(_ context.Context, project string) ([]release.Release, error) {
	out := make([]release.Release, len(s.Versions))
	for i, v := range s.Versions {
		out[i] = release.Release{Project: project, Version: v}
	}
	return release.Sort(out, s.Logger), nil
}

// ExtractArgs selects the extractor environment matching the interpreter.
func (s *StdlibStrategy) ExtractArgs(r release.Release) []string {
	if s.Env == "" {
		return nil
	}
	return []string{"-e", strings.ReplaceAll(s.Env, "{version}", r.Version)}
}

// PreprocessArgs points the tool at the interpreter's stdlib and lists its
// public top level modules.
func (s *StdlibStrategy) PreprocessArgs(ctx context.Context, r release.Release, _ string) ([]string, error) {
	locate := s.Locate
	if locate == nil {
		locate = LocateStdlib
	}
	root, err := locate(ctx, r.Version)
	if err != nil {
		return nil, errors.Wrapf(err, "locate stdlib of %s", r)
	}
	modules, err := TopModules(root)
	if err != nil {
		return nil, err
	}

	args := []string{"-s", root, "-p", r.String(), "-P", r.Version}
	for _, m := range modules {
		args = append(args, "-m", m)
	}
	return append(args, "-"), nil
}

// LocateStdlib runs python<version> and returns the directory holding
// its pathlib module.
func LocateStdlib(ctx context.Context, version string) (string, error) {
	cmd := exec.CommandContext(ctx, "python"+version, "-c", "import pathlib; print(pathlib.__file__)") //nolint:gosec // G204: version from configuration
	out, err := cmd.Output()
	if err != nil {
		return "", errors.Wrapf(err, "run python%s", version)
	}
	file := strings.TrimSpace(string(out))
	if file == "" {
		return "", errors.Newf("python%s printed no pathlib location", version)
	}
	// pathlib is a package since 3.13.
	dir := filepath.Dir(file)
	if filepath.Base(dir) == "pathlib" {
		dir = filepath.Dir(dir)
	}
	return dir, nil
}

// TopModules lists the importable top level names of a stdlib directory,
// skipping private names and names containing a dash.
func TopModules(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", root)
	}
	seen := make(map[string]bool)
	var modules []string
	for _, e := range entries {
		name := e.Name()
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if stem == "" || strings.HasPrefix(stem, "_") || strings.Contains(stem, "-") || seen[stem] {
			continue
		}
		seen[stem] = true
		modules = append(modules, stem)
	}
	sort.Strings(modules)
	return modules, nil
}
