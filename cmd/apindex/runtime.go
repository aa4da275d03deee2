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
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// watchSignals turns signals into cancellation. The first signal cancels
// batch, so no new project starts. The second cancels work, which kills the
// running tool invocation.
func watchSignals(sigs <-chan os.Signal, logger *slog.Logger) (batch, work context.Context, stop func()) {
	batch, cancelBatch := context.WithCancel(context.Background())
	work, cancelWork := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigs:
			logger.Info("shutdown.signal", "signal", sig.String(), "action", "finish current project")
			cancelBatch()
		case <-done:
			return
		}
		select {
		case sig := <-sigs:
			logger.Warn("shutdown.signal", "signal", sig.String(), "action", "abort current job")
			cancelWork()
		case <-done:
		}
	}()

	stop = func() {
		close(done)
		cancelBatch()
		cancelWork()
	}
	return batch, work, stop
}

// handleSignals watches SIGINT and SIGTERM.
func handleSignals(logger *slog.Logger) (batch, work context.Context, stop func()) {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	batch, work, stopWatch := watchSignals(sigChan, logger)
	return batch, work, func() {
		signal.Stop(sigChan)
		stopWatch()
	}
}

// serveMetrics exposes /metrics on addr until the returned func is called.
// An empty addr disables it.
func serveMetrics(addr string, logger *slog.Logger) func() {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics.http.start", "addr", addr, "path", "/metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics.http.error", "err", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
