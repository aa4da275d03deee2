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
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsProcessor holds Prometheus metrics for the processor.
type metricsProcessor struct {
	once sync.Once

	// Jobs
	jobs        *prometheus.CounterVec
	jobsSkipped *prometheus.CounterVec

	// Projects
	projects *prometheus.CounterVec

	// Durations
	workerDuration *prometheus.HistogramVec
}

var procMetrics metricsProcessor

func (m *metricsProcessor) init() {
	m.once.Do(func() {
		m.jobs = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "apindex_jobs_total", Help: "Jobs executed by kind and outcome"}, []string{"kind", "outcome"})
		m.jobsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "apindex_jobs_skipped_total", Help: "Jobs skipped because the ledger marks them done"}, []string{"kind"})
		m.projects = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "apindex_projects_total", Help: "Projects processed by outcome"}, []string{"outcome"})

		buckets := []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 1800, 3600}
		m.workerDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "apindex_worker_seconds", Help: "Analysis tool invocation duration by verb", Buckets: buckets}, []string{"verb"})

		prometheus.MustRegister(m.jobs, m.jobsSkipped, m.projects, m.workerDuration)
	})
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// record helpers
func recordJob(kind string, err error) {
	procMetrics.init()
	procMetrics.jobs.WithLabelValues(kind, outcome(err)).Inc()
}

func recordSkip(kind string) {
	procMetrics.init()
	procMetrics.jobsSkipped.WithLabelValues(kind).Inc()
}

func recordProject(err error) {
	procMetrics.init()
	procMetrics.projects.WithLabelValues(outcome(err)).Inc()
}

func observeWorker(verb string, start time.Time) {
	procMetrics.init()
	procMetrics.workerDuration.WithLabelValues(verb).Observe(time.Since(start).Seconds())
}
