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

package ledger

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	return Load(filepath.Join(t.TempDir(), "db", "indexer.json"), discardLogger())
}

func ok() error { return nil }

func TestLoad_Missing(t *testing.T) {
	l := newLedger(t)
	assert.Empty(t, l.Data)
	assert.Equal(t, "indexer", l.Name)
	assert.Equal(t, 0, l.ProcessCount)
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexer.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))

	l := Load(path, discardLogger())
	assert.Empty(t, l.Data)
	assert.Equal(t, path, l.Path())

	// The empty ledger can be saved over the corrupt file.
	require.NoError(t, l.WithJob(KindExtract, "p@1.0", "1.0", ok))
	require.NoError(t, l.Save())
	assert.Len(t, Load(path, discardLogger()).Data, 1)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	l := newLedger(t)
	l.SetLimit(100)
	require.NoError(t, l.WithJob(KindExtract, "p@1.0", "0.5.1", ok))
	require.Error(t, l.WithJob(KindDiff, "p@1.0&2.0", "0.5.1", func() error { return errors.New("boom") }))
	require.NoError(t, l.Save())

	raw, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, doc, "data")
	assert.Contains(t, doc, "processLimit")
	assert.EqualValues(t, 2, doc["processCount"])

	loaded := Load(l.Path(), discardLogger())
	assert.Equal(t, 0, loaded.ProcessCount, "process count is reset on load")
	assert.Equal(t, 100, loaded.ProcessLimit)

	e, found := loaded.Get("extract:p@1.0")
	require.True(t, found)
	assert.Equal(t, StateSuccess, e.State)
	assert.Equal(t, "0.5.1", e.Version)

	e, found = loaded.Get("diff:p@1.0&2.0")
	require.True(t, found)
	assert.Equal(t, StateFailure, e.State)
}

func TestIsDone(t *testing.T) {
	l := newLedger(t)
	require.NoError(t, l.WithJob(KindExtract, "p@1.0", "1.0", ok))
	_ = l.WithJob(KindExtract, "p@2.0", "1.0", func() error { return errors.New("fail") })

	tests := []struct {
		name    string
		target  string
		version string
		want    bool
	}{
		{"success same version", "p@1.0", "1.0", true},
		{"success other version", "p@1.0", "1.1", false},
		{"failure", "p@2.0", "1.0", false},
		{"missing", "p@3.0", "1.0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.IsDone(KindExtract, tt.target, tt.version))
		})
	}
}

func TestWithJob_FailureWrapsKey(t *testing.T) {
	l := newLedger(t)
	sentinel := errors.New("tool exploded")

	err := l.WithJob(KindDiff, "p@1&2", "v", func() error { return sentinel })
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel))
	assert.Contains(t, err.Error(), "diff:p@1&2")
	assert.False(t, errors.Is(err, ErrQuotaExhausted))
	assert.Equal(t, 1, l.ProcessCount)
}

func TestWithJob_Quota(t *testing.T) {
	l := newLedger(t)
	l.SetLimit(3)

	ran := 0
	var quotaErr error
	for i := 0; i < 5; i++ {
		err := l.WithJob(KindExtract, "p@"+string(rune('a'+i)), "v", func() error {
			ran++
			return nil
		})
		if errors.Is(err, ErrQuotaExhausted) {
			quotaErr = err
			break
		}
		require.NoError(t, err)
	}

	require.Error(t, quotaErr)
	assert.Equal(t, 3, ran)
	assert.Len(t, l.Data, 3)

	// Quota exhaustion persists the ledger.
	saved := Load(l.Path(), discardLogger())
	assert.Len(t, saved.Data, 3)
}

func TestWithJob_QuotaKeepsBodyError(t *testing.T) {
	l := newLedger(t)
	l.SetLimit(1)

	err := l.WithJob(KindExtract, "p@1", "v", func() error { return errors.New("last job failed") })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQuotaExhausted))
	assert.Contains(t, fmt.Sprintf("%+v", err), "last job failed")

	e, _ := l.Get("extract:p@1")
	assert.Equal(t, StateFailure, e.State)
}

func TestWithJob_NoLimit(t *testing.T) {
	l := newLedger(t)
	for i := 0; i < 50; i++ {
		require.NoError(t, l.WithJob(KindExtract, "p@"+strings.Repeat("1", i+1), "v", ok))
	}
	assert.Equal(t, 50, l.ProcessCount)
}

func TestRemove(t *testing.T) {
	l := newLedger(t)
	require.NoError(t, l.WithJob(KindExtract, "python@3.12", "v", ok))
	require.NoError(t, l.WithJob(KindDiff, "python@3.11&3.12", "v", ok))
	require.NoError(t, l.WithJob(KindExtract, "requests@2.0", "v", ok))

	n := l.Remove(func(key string, _ Entry) bool { return strings.Contains(key, "python@") })
	assert.Equal(t, 2, n)
	assert.Len(t, l.Data, 1)
	_, found := l.Get("extract:requests@2.0")
	assert.True(t, found)
}

func TestSummary(t *testing.T) {
	l := newLedger(t)
	require.NoError(t, l.WithJob(KindExtract, "p@1", "v", ok))
	require.NoError(t, l.WithJob(KindExtract, "p@2", "v", ok))
	_ = l.WithJob(KindDiff, "p@1&2", "v", func() error { return errors.New("x") })

	assert.Equal(t, []KindSummary{
		{Kind: KindDiff, Success: 0, Failure: 1},
		{Kind: KindExtract, Success: 2, Failure: 0},
	}, l.Summary())
}
