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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type metricsIndexer struct {
	once sync.Once

	removed  *prometheus.CounterVec
	projects *prometheus.CounterVec
}

var ixMetrics metricsIndexer

func (m *metricsIndexer) init() {
	m.once.Do(func() {
		m.removed = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "apindex_artifacts_removed_total", Help: "Corrupt artifacts removed while indexing"}, []string{"kind"})
		m.projects = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "apindex_projects_indexed_total", Help: "Projects indexed by outcome"}, []string{"outcome"})
		prometheus.MustRegister(m.removed, m.projects)
	})
}

func recordRemoved(kind string) {
	ixMetrics.init()
	ixMetrics.removed.WithLabelValues(kind).Inc()
}

func recordIndexed(err error) {
	ixMetrics.init()
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	ixMetrics.projects.WithLabelValues(outcome).Inc()
}
