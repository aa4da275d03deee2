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

// Package dist maps releases and release pairs to artifact paths.
//
// The same layout is used for the local cache tree and the published dist
// tree:
//
//	<root>/<project>/distributions/<version>.json
//	<root>/<project>/apis/<version>.json
//	<root>/<project>/changes/<old>&<new>.json
//	<root>/<project>/reports/<old>&<new>.json
//	<root>/<project>/index.json
//	<root>/<project>/stats.json
//	<root>/packages.json
//
// Every artifact has a sibling .log file holding the tool diagnostics.
package dist

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/kraklabs/apindex/pkg/release"
)

// Kind is an artifact directory.
type Kind string

const (
	KindDistributions Kind = "distributions"
	KindAPIs          Kind = "apis"
	KindChanges       Kind = "changes"
	KindReports       Kind = "reports"
)

const (
	artifactExt  = ".json"
	indexFile    = "index.json"
	statsFile    = "stats.json"
	manifestFile = "packages.json"
)

// PathBuilder builds artifact paths under a root directory.
type PathBuilder struct {
	root string
}

// New creates a PathBuilder rooted at root.
func New(root string) *PathBuilder {
	return &PathBuilder{root: filepath.Clean(root)}
}

// Root returns the tree root.
func (b *PathBuilder) Root() string { return b.root }

// ProjectDir returns the directory of a project.
func (b *PathBuilder) ProjectDir(project string) string {
	return filepath.Join(b.root, project)
}

// KindDir returns the artifact directory of a project.
func (b *PathBuilder) KindDir(project string, kind Kind) string {
	return filepath.Join(b.root, project, string(kind))
}

func (b *PathBuilder) releasePath(r release.Release, kind Kind) string {
	return filepath.Join(b.KindDir(r.Project, kind), r.Version+artifactExt)
}

func (b *PathBuilder) pairPath(p release.Pair, kind Kind) string {
	return filepath.Join(b.KindDir(p.Project(), kind), p.Old.Version+"&"+p.New.Version+artifactExt)
}

// Preprocess returns the distribution artifact of a release.
func (b *PathBuilder) Preprocess(r release.Release) string {
	return b.releasePath(r, KindDistributions)
}

// Extract returns the API description artifact of a release.
func (b *PathBuilder) Extract(r release.Release) string {
	return b.releasePath(r, KindAPIs)
}

// Diff returns the API difference artifact of a pair.
func (b *PathBuilder) Diff(p release.Pair) string {
	return b.pairPath(p, KindChanges)
}

// Report returns the report artifact of a pair.
func (b *PathBuilder) Report(p release.Pair) string {
	return b.pairPath(p, KindReports)
}

// Index returns the project index document path.
func (b *PathBuilder) Index(project string) string {
	return filepath.Join(b.root, project, indexFile)
}

// Stats returns the project statistics document path.
func (b *PathBuilder) Stats(project string) string {
	return filepath.Join(b.root, project, statsFile)
}

// Manifest returns the path of the tree manifest.
func (b *PathBuilder) Manifest() string {
	return filepath.Join(b.root, manifestFile)
}

// Projects lists the project directories of the tree in name order. A
// missing root yields no projects.
func (b *PathBuilder) Projects() ([]string, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "list projects in %s", b.root)
	}
	var projects []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			projects = append(projects, e.Name())
		}
	}
	sort.Strings(projects)
	return projects, nil
}

// artifactNames returns the base names (without extension) of the .json
// artifacts of a project directory.
func (b *PathBuilder) artifactNames(project string, kind Kind) ([]string, error) {
	dir := b.KindDir(project, kind)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "list %s", dir)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != artifactExt {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), artifactExt))
	}
	sort.Strings(names)
	return names, nil
}

func (b *PathBuilder) releases(project string, kind Kind) ([]release.Release, error) {
	names, err := b.artifactNames(project, kind)
	if err != nil {
		return nil, err
	}
	out := make([]release.Release, 0, len(names))
	for _, v := range names {
		out = append(out, release.Release{Project: project, Version: v})
	}
	return out, nil
}

func (b *PathBuilder) pairs(project string, kind Kind) ([]release.Pair, error) {
	names, err := b.artifactNames(project, kind)
	if err != nil {
		return nil, err
	}
	out := make([]release.Pair, 0, len(names))
	for _, name := range names {
		p, err := release.ParsePair(project + "@" + name)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Distributions lists the releases with a distribution artifact.
func (b *PathBuilder) Distributions(project string) ([]release.Release, error) {
	return b.releases(project, KindDistributions)
}

// APIs lists the releases with an API description artifact.
func (b *PathBuilder) APIs(project string) ([]release.Release, error) {
	return b.releases(project, KindAPIs)
}

// Changes lists the pairs with an API difference artifact.
func (b *PathBuilder) Changes(project string) ([]release.Pair, error) {
	return b.pairs(project, KindChanges)
}

// Reports lists the pairs with a report artifact.
func (b *PathBuilder) Reports(project string) ([]release.Pair, error) {
	return b.pairs(project, KindReports)
}

// Exists reports whether path is an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
