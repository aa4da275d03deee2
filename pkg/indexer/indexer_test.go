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

package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apitest "github.com/kraklabs/apindex/internal/testing"
	"github.com/kraklabs/apindex/pkg/dist"
	"github.com/kraklabs/apindex/pkg/release"
)

type listerFunc func(ctx context.Context, project string) ([]release.Release, error)

func (f listerFunc) Releases(ctx context.Context, project string) ([]release.Release, error) {
	return f(ctx, project)
}

func staticLister(project string, versions ...string) ReleaseLister {
	return listerFunc(func(context.Context, string) ([]release.Release, error) {
		out := make([]release.Release, len(versions))
		for i, v := range versions {
			out[i] = release.Release{Project: project, Version: v}
		}
		return out, nil
	})
}

func rel(v string) release.Release { return release.Release{Project: "p", Version: v} }

func pair(a, b string) release.Pair { return release.Pair{Old: rel(a), New: rel(b)} }

func seed(t *testing.T, b *dist.PathBuilder, versions ...string) {
	t.Helper()
	for _, v := range versions {
		apitest.WritePayload(t, b.Preprocess(rel(v)), apitest.SuccessPayload(map[string]any{"locCount": 10}))
		apitest.WritePayload(t, b.Extract(rel(v)), apitest.SuccessPayload(map[string]any{
			"entries": map[string]any{"p": map[string]any{"form": "module"}},
		}))
	}
}

func newIndexer(t *testing.T, b *dist.PathBuilder, lister ReleaseLister) *Indexer {
	t.Helper()
	return New(Config{Dist: b, Releases: lister, Logger: apitest.DiscardLogger(), RunID: "run-1"})
}

func TestIndex_Reconstruction(t *testing.T) {
	b := dist.New(t.TempDir())
	seed(t, b, "1.0", "1.10", "1.2")
	apitest.WritePayload(t, b.Diff(pair("1.0", "1.2")), apitest.SuccessPayload(nil))
	apitest.WritePayload(t, b.Report(pair("1.0", "1.2")), apitest.SuccessPayload(nil))
	apitest.WritePayload(t, b.Diff(pair("1.2", "1.10")), apitest.SuccessPayload(nil))

	ix := newIndexer(t, b, staticLister("p", "1.0", "1.2", "1.10", "2.0"))
	require.NoError(t, ix.Index(context.Background(), "p"))

	doc, err := Load(b, "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"p@1.0", "p@1.2", "p@1.10", "p@2.0"}, doc.Releases)
	assert.Equal(t, []string{"p@1.0", "p@1.2", "p@1.10"}, doc.Distributions)
	assert.Equal(t, []string{"p@1.0", "p@1.2", "p@1.10"}, doc.APIs)
	assert.Equal(t, []string{"p@1.0&1.2", "p@1.2&1.10"}, doc.Pairs)
	assert.Equal(t, []string{"p@1.0&1.2", "p@1.2&1.10"}, doc.Changes)
	assert.Equal(t, []string{"p@1.0&1.2"}, doc.Reports)

	// Rebuilding from a deleted index yields the same document.
	require.NoError(t, os.Remove(b.Index("p")))
	require.NoError(t, ix.Index(context.Background(), "p"))
	again, err := Load(b, "p")
	require.NoError(t, err)
	assert.Equal(t, doc, again)
}

func TestIndex_SelfHealsCorruptArtifact(t *testing.T) {
	b := dist.New(t.TempDir())
	seed(t, b, "1.0", "2.0", "3.0")
	corrupt := b.Extract(rel("2.0"))
	apitest.WriteArtifact(t, corrupt, []byte("{truncated"))

	before := testutil.ToFloat64(counterRemoved(string(dist.KindAPIs)))

	ix := newIndexer(t, b, nil)
	require.NoError(t, ix.Index(context.Background(), "p"))

	assert.NoFileExists(t, corrupt)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(corrupt), "2.0.log"))
	assert.FileExists(t, b.Preprocess(rel("2.0")))

	doc, err := Load(b, "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"p@1.0", "p@3.0"}, doc.APIs)
	assert.Equal(t, []string{"p@1.0&3.0"}, doc.Pairs)
	assert.Empty(t, doc.Releases)
	assert.Equal(t, before+1, testutil.ToFloat64(counterRemoved(string(dist.KindAPIs))))
}

func TestIndex_ExcludesFailedProducts(t *testing.T) {
	b := dist.New(t.TempDir())
	seed(t, b, "1.0", "2.0")
	failed := map[string]any{"state": 2, "duration": 0.1}
	apitest.WritePayload(t, b.Extract(rel("1.1")), failed)
	apitest.WritePayload(t, b.Diff(pair("1.0", "2.0")), apitest.SuccessPayload(nil))
	apitest.WritePayload(t, b.Report(pair("1.0", "2.0")), failed)

	before := testutil.ToFloat64(counterRemoved(string(dist.KindAPIs)))

	ix := newIndexer(t, b, nil)
	require.NoError(t, ix.Index(context.Background(), "p"))

	doc, err := Load(b, "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"p@1.0", "p@2.0"}, doc.APIs)
	assert.Equal(t, []string{"p@1.0&2.0"}, doc.Pairs)
	assert.Equal(t, []string{"p@1.0&2.0"}, doc.Changes)
	assert.Empty(t, doc.Reports)

	// Failed products are not corrupt: they stay on disk.
	assert.FileExists(t, b.Extract(rel("1.1")))
	assert.FileExists(t, b.Report(pair("1.0", "2.0")))
	assert.Equal(t, before, testutil.ToFloat64(counterRemoved(string(dist.KindAPIs))))
}

func counterRemoved(kind string) prometheus.Counter {
	ixMetrics.init()
	return ixMetrics.removed.WithLabelValues(kind)
}

func TestIndex_GzipArtifacts(t *testing.T) {
	b := dist.New(t.TempDir())
	raw, err := json.Marshal(apitest.SuccessPayload(map[string]any{"fileCount": 7}))
	require.NoError(t, err)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err = zw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	apitest.WriteArtifact(t, b.Preprocess(rel("1.0")), buf.Bytes())

	ix := newIndexer(t, b, nil)
	require.NoError(t, ix.Index(context.Background(), "p"))

	doc, err := Load(b, "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"p@1.0"}, doc.Distributions)
}

func TestIndex_Stats(t *testing.T) {
	b := dist.New(t.TempDir())
	seed(t, b, "1.0", "2.0")
	apitest.WritePayload(t, b.Diff(pair("1.0", "2.0")), apitest.SuccessPayload(map[string]any{
		"entries": map[string]any{"x": map[string]any{"kind": "RemoveClass", "rank": 100}},
	}))
	// An unreadable report is kept but contributes no statistics.
	apitest.WriteArtifact(t, b.Report(pair("1.0", "2.0")), []byte("???"))

	ix := newIndexer(t, b, nil)
	require.NoError(t, ix.Index(context.Background(), "p"))

	data, err := os.ReadFile(b.Stats("p"))
	require.NoError(t, err)
	var doc struct {
		Dists   map[string]map[string]float64 `json:"dists"`
		APIs    map[string]map[string]float64 `json:"apis"`
		Changes map[string]map[string]float64 `json:"changes"`
		Reports map[string]map[string]float64 `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, 10.0, doc.Dists["p@1.0"]["loc"])
	assert.Equal(t, 1.0, doc.APIs["p@2.0"]["entries"])
	assert.Equal(t, 1.0, doc.Changes["p@1.0&2.0"]["breaking"])
	assert.Empty(t, doc.Reports)
	assert.FileExists(t, b.Report(pair("1.0", "2.0")))

	idx, err := Load(b, "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"p@1.0&2.0"}, idx.Reports)
}

func TestIndex_ListerErrorIsNotFatal(t *testing.T) {
	b := dist.New(t.TempDir())
	seed(t, b, "1.0")
	lister := listerFunc(func(context.Context, string) ([]release.Release, error) {
		return nil, errors.New("index unreachable")
	})

	ix := newIndexer(t, b, lister)
	require.NoError(t, ix.Index(context.Background(), "p"))

	doc, err := Load(b, "p")
	require.NoError(t, err)
	assert.Empty(t, doc.Releases)
	assert.Equal(t, []string{"p@1.0"}, doc.APIs)
}

func TestIndexPackages(t *testing.T) {
	root := t.TempDir()
	b := dist.New(root)
	seed(t, b, "1.0")
	apitest.WritePayload(t, b.Extract(release.Release{Project: "q", Version: "0.1"}), apitest.SuccessPayload(nil))

	ix := newIndexer(t, b, nil)
	m, err := ix.IndexPackages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"p", "q"}, m.Projects)
	assert.Empty(t, m.Failed)
	assert.Equal(t, "run-1", m.RunID)

	data, err := os.ReadFile(b.Manifest())
	require.NoError(t, err)
	var stored Manifest
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, m.Projects, stored.Projects)
	assert.FileExists(t, b.Index("q"))
}

func TestIndexPackages_Canceled(t *testing.T) {
	b := dist.New(t.TempDir())
	seed(t, b, "1.0")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newIndexer(t, b, nil).IndexPackages(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}
