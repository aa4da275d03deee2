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

package release

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"
)

const (
	// DefaultIndexURL is the upstream package index.
	DefaultIndexURL = "https://pypi.org"

	// MirrorIndexURL is used when the mirror flag is set.
	MirrorIndexURL = "https://pypi.tuna.tsinghua.edu.cn"

	// DefaultFreshness is how long a cached release list is reused.
	DefaultFreshness = 24 * time.Hour
)

// ErrNotFound is returned when the index does not know the project.
var ErrNotFound = errors.New("project not found")

// Source lists the raw version strings of a project.
type Source interface {
	Versions(ctx context.Context, project string) ([]string, error)
}

// PyPIConfig configures a PyPIClient.
type PyPIConfig struct {
	// BaseURL overrides the index URL. Empty selects DefaultIndexURL or
	// MirrorIndexURL depending on Mirror.
	BaseURL string

	// Mirror selects MirrorIndexURL when BaseURL is empty.
	Mirror bool

	// CacheDir is the cache root; answers are stored under
	// <CacheDir>/releases/<project>/index.json. Empty disables caching.
	CacheDir string

	// Freshness is the maximum age of a reusable cache file.
	Freshness time.Duration

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// RequestsPerSecond throttles requests to the index.
	RequestsPerSecond float64

	// MaxRetries bounds attempts for transient failures.
	MaxRetries int

	// HTTPClient replaces the default client (tests).
	HTTPClient *http.Client
}

// PyPIClient reads release lists from the package index JSON API.
type PyPIClient struct {
	baseURL    string
	cacheDir   string
	freshness  time.Duration
	maxRetries int
	client     *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	now        func() time.Time
}

// NewPyPIClient creates a client with defaults applied.
func NewPyPIClient(cfg PyPIConfig, logger *slog.Logger) *PyPIClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultIndexURL
		if cfg.Mirror {
			cfg.BaseURL = MirrorIndexURL
		}
	}
	if cfg.Freshness <= 0 {
		cfg.Freshness = DefaultFreshness
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &PyPIClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		cacheDir:   cfg.CacheDir,
		freshness:  cfg.Freshness,
		maxRetries: cfg.MaxRetries,
		client:     client,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:     logger,
		now:        time.Now,
	}
}

// Versions returns the version strings of a project that have uploaded
// files, in lexicographic order.
func (c *PyPIClient) Versions(ctx context.Context, project string) ([]string, error) {
	raw, err := c.releases(ctx, project)
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(raw))
	for v, files := range raw {
		if len(files) == 0 {
			continue
		}
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions, nil
}

type releaseFiles map[string][]json.RawMessage

func (c *PyPIClient) cachePath(project string) string {
	return filepath.Join(c.cacheDir, "releases", project, "index.json")
}

func (c *PyPIClient) releases(ctx context.Context, project string) (releaseFiles, error) {
	if c.cacheDir != "" {
		if raw, ok := c.readCache(project); ok {
			return raw, nil
		}
	}

	body, err := c.fetch(ctx, project)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Releases releaseFiles `json:"releases"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, errors.Wrapf(err, "decode releases of %s", project)
	}
	if doc.Releases == nil {
		doc.Releases = releaseFiles{}
	}

	if c.cacheDir != "" {
		c.writeCache(project, doc.Releases)
	}
	return doc.Releases, nil
}

func (c *PyPIClient) readCache(project string) (releaseFiles, bool) {
	path := c.cachePath(project)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if c.now().Sub(info.ModTime()) > c.freshness {
		return nil, false
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path built from cache root
	if err != nil {
		return nil, false
	}
	var raw releaseFiles
	if err := json.Unmarshal(data, &raw); err != nil {
		c.logger.Warn("release.cache.corrupt", "path", path, "err", err)
		return nil, false
	}
	c.logger.Debug("release.cache.hit", "project", project, "path", path)
	return raw, true
}

func (c *PyPIClient) writeCache(project string, raw releaseFiles) {
	path := c.cachePath(project)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		c.logger.Warn("release.cache.write.error", "path", path, "err", err)
		return
	}
	data, err := json.Marshal(raw)
	if err != nil {
		c.logger.Warn("release.cache.write.error", "path", path, "err", err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		c.logger.Warn("release.cache.write.error", "path", path, "err", err)
	}
}

// fetch performs the HTTP request with retries on transient failures.
func (c *PyPIClient) fetch(ctx context.Context, project string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/pypi/%s/json", c.baseURL, url.PathEscape(project))

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "wait for rate limiter")
		}

		c.logger.Info("release.request", "project", project, "url", endpoint, "attempt", attempt+1)
		body, retryable, err := c.get(ctx, endpoint)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable || attempt == c.maxRetries-1 {
			break
		}

		sleep := backoff(attempt)
		c.logger.Warn("release.request.retry", "project", project, "attempt", attempt+1, "sleep_ms", sleep.Milliseconds(), "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil, errors.Wrapf(lastErr, "fetch releases of %s", project)
}

func (c *PyPIClient) get(ctx context.Context, endpoint string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, true, errors.Wrap(err, "read body")
		}
		return body, false, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, errors.Mark(errors.Newf("status %d for %s", resp.StatusCode, endpoint), ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, errors.Newf("status %d for %s", resp.StatusCode, endpoint)
	default:
		return nil, false, errors.Newf("status %d for %s", resp.StatusCode, endpoint)
	}
}

// backoff returns exponential backoff with full jitter, capped at 8s.
func backoff(attempt int) time.Duration {
	d := 500 * time.Millisecond
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	if d > 8*time.Second {
		d = 8 * time.Second
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}
