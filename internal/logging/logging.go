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

// Package logging provides a slog handler with scoped message indentation.
//
// Nested work (project, release, job) opens a scope with Indent; every record
// logged while the scope is open is prefixed accordingly. The returned
// function closes the scope:
//
//	lc := logging.New(slog.NewTextHandler(os.Stderr, nil))
//	defer lc.Indent()()
//	lc.Logger().Info("processor.package", "project", "requests")
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
)

const indentUnit = "  "

// Context owns a logger whose messages are indented by the current scope
// depth. Loggers derived with With share the depth.
type Context struct {
	logger *slog.Logger
	depth  *atomic.Int32
}

// New wraps h.
func New(h slog.Handler) *Context {
	depth := new(atomic.Int32)
	return &Context{
		logger: slog.New(&indentHandler{next: h, depth: depth}),
		depth:  depth,
	}
}

// NewText is New over a text handler writing to w at level. Error values are
// rendered with Error() so every record stays on one line.
func NewText(w io.Writer, level slog.Level) *Context {
	return New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level, ReplaceAttr: FlattenErrors}))
}

// FlattenErrors is a slog ReplaceAttr func replacing error values with their
// message.
func FlattenErrors(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindAny {
		return a
	}
	if err, ok := a.Value.Any().(error); ok && err != nil {
		return slog.String(a.Key, err.Error())
	}
	return a
}

// Discard returns a Context that drops every record.
func Discard() *Context {
	return NewText(io.Discard, slog.LevelError+1)
}

// Logger returns the indenting logger.
func (c *Context) Logger() *slog.Logger { return c.logger }

// Depth returns the current scope depth.
func (c *Context) Depth() int { return int(c.depth.Load()) }

// Indent opens a scope and returns the function that closes it. Closing more
// than once has no further effect.
func (c *Context) Indent() func() {
	c.depth.Add(1)
	var closed atomic.Bool
	return func() {
		if closed.CompareAndSwap(false, true) {
			c.depth.Add(-1)
		}
	}
}

// With returns a Context whose logger carries args and shares this scope.
func (c *Context) With(args ...any) *Context {
	return &Context{logger: c.logger.With(args...), depth: c.depth}
}

type indentHandler struct {
	next  slog.Handler
	depth *atomic.Int32
}

func (h *indentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *indentHandler) Handle(ctx context.Context, r slog.Record) error {
	depth := int(h.depth.Load())
	if depth <= 0 {
		return h.next.Handle(ctx, r)
	}
	nr := slog.NewRecord(r.Time, r.Level, strings.Repeat(indentUnit, depth)+r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		nr.AddAttrs(a)
		return true
	})
	return h.next.Handle(ctx, nr)
}

func (h *indentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &indentHandler{next: h.next.WithAttrs(attrs), depth: h.depth}
}

func (h *indentHandler) WithGroup(name string) slog.Handler {
	return &indentHandler{next: h.next.WithGroup(name), depth: h.depth}
}
