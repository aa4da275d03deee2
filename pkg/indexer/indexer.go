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

// Package indexer rebuilds the per project index documents of a
// distribution tree from the artifacts present on disk.
//
// Index never edits an existing document: it lists the artifacts, drops the
// ones that no longer parse, and writes index.json and stats.json from
// scratch. IndexPackages does this for every project and writes the tree
// manifest.
package indexer

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/kraklabs/apindex/pkg/dist"
	"github.com/kraklabs/apindex/pkg/release"
	"github.com/kraklabs/apindex/pkg/stats"
	"github.com/kraklabs/apindex/pkg/worker"
)

// ReleaseLister lists the releases a project is expected to have.
type ReleaseLister interface {
	Releases(ctx context.Context, project string) ([]release.Release, error)
}

// Document is the project index.
type Document struct {
	Releases      []string `json:"releases"`
	Distributions []string `json:"distributions"`
	APIs          []string `json:"apis"`
	Pairs         []string `json:"pairs"`
	Changes       []string `json:"changes"`
	Reports       []string `json:"reports"`
}

// Manifest lists the projects of a tree.
type Manifest struct {
	RunID    string    `json:"runId"`
	Time     time.Time `json:"time"`
	Projects []string  `json:"projects"`
	Failed   []string  `json:"failed"`
}

// Config configures an Indexer.
type Config struct {
	Dist     *dist.PathBuilder
	Releases ReleaseLister
	Stats    *stats.Set
	Logger   *slog.Logger
	RunID    string
}

// Indexer writes index documents.
type Indexer struct {
	dist     *dist.PathBuilder
	releases ReleaseLister
	stats    *stats.Set
	logger   *slog.Logger
	runID    string
	now      func() time.Time
}

// New creates an Indexer.
func New(cfg Config) *Indexer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	st := cfg.Stats
	if st == nil {
		st = stats.Default(logger)
	}
	return &Indexer{
		dist:     cfg.Dist,
		releases: cfg.Releases,
		stats:    st,
		logger:   logger,
		runID:    cfg.RunID,
		now:      time.Now,
	}
}

func readPayload(path string, v any) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path built from the dist tree
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	return errors.Wrapf(worker.Decode(data, v), "parse %s", path)
}

// succeeded reports whether a decoded payload carries the tool's success
// state. Payloads without a product are taken as successful.
func succeeded(payload any) bool {
	if p, ok := payload.(interface{ Success() bool }); ok {
		return p.Success()
	}
	return true
}

// removeArtifact deletes a corrupt artifact and its log.
func (ix *Indexer) removeArtifact(kind dist.Kind, path string, cause error) {
	ix.logger.Warn("indexer.artifact.corrupt", "kind", string(kind), "path", path, "err", cause)
	for _, p := range []string{path, worker.LogPath(path)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			ix.logger.Error("indexer.artifact.remove.error", "path", p, "err", err)
		}
	}
	recordRemoved(string(kind))
}

// loadReleases parses every artifact of a release kind, removing the corrupt
// ones and skipping failed products, and returns the successful releases
// sorted.
func loadReleases[T any](ix *Indexer, project string, kind dist.Kind, list func(string) ([]release.Release, error), path func(release.Release) string, st *stats.Statistician[T], table stats.Table) ([]release.Release, error) {
	found, err := list(project)
	if err != nil {
		return nil, err
	}
	valid := make([]release.Release, 0, len(found))
	for _, r := range found {
		p := path(r)
		payload := new(T)
		if err := readPayload(p, payload); err != nil {
			ix.removeArtifact(kind, p, err)
			continue
		}
		if !succeeded(payload) {
			ix.logger.Info("indexer.artifact.failed", "kind", string(kind), "path", p)
			continue
		}
		valid = append(valid, r)
		table[r.String()] = st.Count(r.String(), payload)
	}
	return release.Sort(valid, ix.logger), nil
}

// countPairs folds the statistics of the existing pair artifacts. A pair
// artifact that does not parse is logged and left in place; a failed product
// is not listed.
func countPairs[T any](ix *Indexer, pairs []release.Pair, path func(release.Pair) string, st *stats.Statistician[T], table stats.Table) []release.Pair {
	var present []release.Pair
	for _, pair := range pairs {
		p := path(pair)
		if !dist.Exists(p) {
			continue
		}
		payload := new(T)
		if err := readPayload(p, payload); err != nil {
			ix.logger.Warn("indexer.stats.load.error", "path", p, "err", err)
			present = append(present, pair)
			continue
		}
		if !succeeded(payload) {
			ix.logger.Info("indexer.artifact.failed", "path", p)
			continue
		}
		present = append(present, pair)
		table[pair.String()] = st.Count(pair.String(), payload)
	}
	return present
}

// Index rebuilds index.json and stats.json of project.
func (ix *Indexer) Index(ctx context.Context, project string) error {
	log := ix.logger
	log.Info("indexer.index", "project", project)

	var releases []release.Release
	if ix.releases != nil {
		rs, err := ix.releases.Releases(ctx, project)
		if err != nil {
			log.Warn("indexer.releases.error", "project", project, "err", err)
		} else {
			releases = rs
		}
	}

	doc := stats.NewDocument()
	dists, err := loadReleases(ix, project, dist.KindDistributions, ix.dist.Distributions, ix.dist.Preprocess, ix.stats.Dists, doc.Dists)
	if err != nil {
		return err
	}
	apis, err := loadReleases(ix, project, dist.KindAPIs, ix.dist.APIs, ix.dist.Extract, ix.stats.APIs, doc.APIs)
	if err != nil {
		return err
	}

	pairs := release.PairAdjacent(apis, nil)
	changes := countPairs(ix, pairs, ix.dist.Diff, ix.stats.Changes, doc.Changes)
	reports := countPairs(ix, pairs, ix.dist.Report, ix.stats.Reports, doc.Reports)

	index := Document{
		Releases:      release.Strings(releases),
		Distributions: release.Strings(dists),
		APIs:          release.Strings(apis),
		Pairs:         release.Strings(pairs),
		Changes:       release.Strings(changes),
		Reports:       release.Strings(reports),
	}
	if err := writeJSON(ix.dist.Index(project), index); err != nil {
		return err
	}
	if err := writeJSON(ix.dist.Stats(project), doc); err != nil {
		return err
	}

	log.Info("indexer.index.done", "project", project,
		"releases", len(releases), "distributions", len(dists), "apis", len(apis),
		"pairs", len(pairs), "changes", len(changes), "reports", len(reports))
	return nil
}

// IndexPackages indexes every project of the tree and writes the manifest.
func (ix *Indexer) IndexPackages(ctx context.Context) (*Manifest, error) {
	projects, err := ix.dist.Projects()
	if err != nil {
		return nil, err
	}

	m := &Manifest{RunID: ix.runID, Projects: []string{}, Failed: []string{}}
	for _, project := range projects {
		if err := ctx.Err(); err != nil {
			return m, errors.Wrap(err, "index packages")
		}
		err := ix.Index(ctx, project)
		recordIndexed(err)
		if err != nil {
			ix.logger.Error("indexer.index.failed", "project", project, "err", err)
			m.Failed = append(m.Failed, project)
			continue
		}
		m.Projects = append(m.Projects, project)
	}

	m.Time = ix.now().UTC()
	if err := writeJSON(ix.dist.Manifest(), m); err != nil {
		return m, err
	}
	ix.logger.Info("indexer.packages.done", "projects", len(m.Projects), "failed", len(m.Failed))
	return m, nil
}

// writeJSON writes v to path atomically (temp file + rename).
func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "marshal %s", path)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return errors.Wrapf(err, "write %s", tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "rename %s", path)
	}
	return nil
}

// Load reads the index document of project.
func Load(b *dist.PathBuilder, project string) (*Document, error) {
	data, err := os.ReadFile(b.Index(project)) //nolint:gosec // G304: path built from the dist tree
	if err != nil {
		return nil, errors.Wrapf(err, "read index of %s", project)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parse index of %s", project)
	}
	return &doc, nil
}
