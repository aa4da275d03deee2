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

// Package ledger persists the outcome of every job the processor runs.
//
// A job is identified by "<kind>:<target>", e.g. "extract:requests@2.31.0" or
// "diff:requests@2.30.0&2.31.0". A job is done when its entry is a Success
// recorded under the current tool version; anything else runs again.
package ledger

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Job kinds. Preprocess is folded into extract and report into diff.
const (
	KindExtract = "extract"
	KindDiff    = "diff"
)

// ErrQuotaExhausted is returned by WithJob once the per-run job limit is
// reached. The ledger has been saved when it is returned.
var ErrQuotaExhausted = errors.New("job quota exhausted")

// State is the recorded outcome of a job.
type State int

const (
	StateSuccess State = 1
	StateFailure State = 2
)

func (s State) String() string {
	switch s {
	case StateSuccess:
		return "success"
	case StateFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Entry is the stored outcome of one job.
type Entry struct {
	Version string    `json:"version"`
	State   State     `json:"state"`
	Time    time.Time `json:"time"`
}

// Key builds a job key.
func Key(kind, target string) string {
	return kind + ":" + target
}

// Ledger is the job ledger. It is owned by a single processor and is not
// safe for concurrent use.
type Ledger struct {
	path   string
	logger *slog.Logger
	now    func() time.Time

	Name         string           `json:"name"`
	Data         map[string]Entry `json:"data"`
	ProcessLimit int              `json:"processLimit"`
	ProcessCount int              `json:"processCount"`
}

// New returns an empty ledger bound to path.
func New(path string, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		path:   path,
		logger: logger,
		now:    time.Now,
		Name:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Data:   make(map[string]Entry),
	}
}

// Load reads the ledger at path. A missing or unreadable file yields an empty
// ledger bound to path. The stored process count is never trusted.
func Load(path string, logger *slog.Logger) *Ledger {
	l := New(path, logger)

	data, err := os.ReadFile(path) //nolint:gosec // G304: path from configuration
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Info("ledger.load.empty", "path", path)
		} else {
			l.logger.Error("ledger.load.error", "path", path, "err", err)
		}
		return l
	}

	var stored Ledger
	if err := json.Unmarshal(data, &stored); err != nil {
		l.logger.Error("ledger.load.corrupt", "path", path, "err", err)
		return l
	}
	if stored.Name != "" {
		l.Name = stored.Name
	}
	if stored.Data != nil {
		l.Data = stored.Data
	}
	l.ProcessLimit = stored.ProcessLimit
	l.ProcessCount = 0

	l.logger.Info("ledger.load", "path", path, "entries", len(l.Data))
	return l
}

// Path returns the file the ledger is saved to.
func (l *Ledger) Path() string { return l.path }

// SetLimit sets the job quota for this run. Zero disables it.
func (l *Ledger) SetLimit(limit int) {
	l.ProcessLimit = max(0, limit)
}

// Save writes the ledger atomically (temp file + rename).
func (l *Ledger) Save() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return errors.Wrap(err, "create ledger dir")
	}

	data, err := json.Marshal(l)
	if err != nil {
		return errors.Wrap(err, "marshal ledger")
	}

	tmpPath := l.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return errors.Wrap(err, "write ledger temp")
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "rename ledger")
	}

	l.logger.Debug("ledger.save", "path", l.path, "entries", len(l.Data), "processed", l.ProcessCount)
	return nil
}

// Get returns the entry stored for key.
func (l *Ledger) Get(key string) (Entry, bool) {
	e, ok := l.Data[key]
	return e, ok
}

// IsDone reports whether the job succeeded under toolVersion.
func (l *Ledger) IsDone(kind, target, toolVersion string) bool {
	e, ok := l.Data[Key(kind, target)]
	return ok && e.State == StateSuccess && e.Version == toolVersion
}

// WithJob runs body as the job kind:target and records its outcome. The
// job counts against the quota whatever its outcome; when the quota is
// reached the ledger is saved and an error marked ErrQuotaExhausted is
// returned, carrying the body's error as a secondary error.
func (l *Ledger) WithJob(kind, target, toolVersion string, body func() error) error {
	key := Key(kind, target)

	bodyErr := body()
	state := StateSuccess
	if bodyErr != nil {
		state = StateFailure
		l.logger.Error("ledger.job.failed", "kind", kind, "target", target, "err", bodyErr)
	}
	l.Data[key] = Entry{Version: toolVersion, State: state, Time: l.now().UTC()}
	l.ProcessCount++

	if l.ProcessLimit > 0 && l.ProcessCount >= l.ProcessLimit {
		l.logger.Warn("ledger.quota.reached", "limit", l.ProcessLimit, "last", key)
		quotaErr := errors.Mark(errors.Newf("processed %d jobs, limit %d", l.ProcessCount, l.ProcessLimit), ErrQuotaExhausted)
		if err := l.Save(); err != nil {
			quotaErr = errors.WithSecondaryError(quotaErr, err)
		}
		if bodyErr != nil {
			quotaErr = errors.WithSecondaryError(quotaErr, bodyErr)
		}
		return quotaErr
	}

	if bodyErr != nil {
		return errors.Wrapf(bodyErr, "job %s", key)
	}
	return nil
}

// Remove deletes the entries whose key matches pred and returns how many
// were removed.
func (l *Ledger) Remove(pred func(key string, e Entry) bool) int {
	removed := 0
	for key, e := range l.Data {
		if pred(key, e) {
			delete(l.Data, key)
			removed++
		}
	}
	return removed
}

// KindSummary counts entries of one job kind.
type KindSummary struct {
	Kind    string `json:"kind"`
	Success int    `json:"success"`
	Failure int    `json:"failure"`
}

// Summary counts entries by kind, in kind order.
func (l *Ledger) Summary() []KindSummary {
	byKind := make(map[string]*KindSummary)
	for key, e := range l.Data {
		kind, _, _ := strings.Cut(key, ":")
		s, ok := byKind[kind]
		if !ok {
			s = &KindSummary{Kind: kind}
			byKind[kind] = s
		}
		switch e.State {
		case StateSuccess:
			s.Success++
		case StateFailure:
			s.Failure++
		}
	}
	out := make([]KindSummary, 0, len(byKind))
	for _, s := range byKind {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}
