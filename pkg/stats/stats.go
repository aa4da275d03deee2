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

// Package stats folds tool payloads into named numeric counters.
package stats

import (
	"log/slog"
	"sort"

	"github.com/cockroachdb/errors"
)

// Values maps counter names to values for one document.
type Values map[string]float64

// Table maps a target (release or pair string) to its values.
type Table map[string]Values

type counter[T any] struct {
	name string
	fn   func(*T) map[string]float64
}

// Statistician holds the counters of one payload type.
type Statistician[T any] struct {
	counters []counter[T]
	logger   *slog.Logger
}

// New creates an empty Statistician.
func New[T any](logger *slog.Logger) *Statistician[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Statistician[T]{logger: logger}
}

// Scalar registers a counter producing a single value stored under name.
func (s *Statistician[T]) Scalar(name string, fn func(*T) float64) *Statistician[T] {
	s.counters = append(s.counters, counter[T]{name: name, fn: func(d *T) map[string]float64 {
		return map[string]float64{"": fn(d)}
	}})
	return s
}

// Map registers a counter producing several values stored as name.key.
func (s *Statistician[T]) Map(name string, fn func(*T) map[string]float64) *Statistician[T] {
	s.counters = append(s.counters, counter[T]{name: name, fn: fn})
	return s
}

// Names returns the registered counter names in registration order.
func (s *Statistician[T]) Names() []string {
	names := make([]string, len(s.counters))
	for i, c := range s.counters {
		names[i] = c.name
	}
	return names
}

// Count evaluates every counter over data. A counter that panics is logged
// and skipped; the others still contribute.
func (s *Statistician[T]) Count(target string, data *T) Values {
	out := make(Values)
	if data == nil {
		return out
	}
	for _, c := range s.counters {
		values, err := s.eval(c, data)
		if err != nil {
			s.logger.Warn("stats.counter.failed", "counter", c.name, "target", target, "err", err)
			continue
		}
		for key, v := range values {
			if key == "" {
				out[c.name] = v
			} else {
				out[c.name+"."+key] = v
			}
		}
	}
	return out
}

func (s *Statistician[T]) eval(c counter[T], data *T) (values map[string]float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("counter panicked: %v", r)
		}
	}()
	return c.fn(data), nil
}

// Keys returns the sorted targets of a table.
func (t Table) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
