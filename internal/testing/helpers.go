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

package testing

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/kraklabs/apindex/pkg/release"
	"github.com/kraklabs/apindex/pkg/worker"
)

// Outcome scripts how FakeWorker answers a call.
type Outcome int

const (
	// OutcomeOK exits zero with a valid payload.
	OutcomeOK Outcome = iota
	// OutcomeFail exits non-zero without output.
	OutcomeFail
	// OutcomeGarbage exits zero with unparsable output.
	OutcomeGarbage
	// OutcomeFailedProduct exits non-zero with a parsable payload in the
	// failure state, the way the tool reports its own errors.
	OutcomeFailedProduct
)

// Call records one FakeWorker invocation.
type Call struct {
	Verb   string
	Target string
	Args   []string
}

// FakeWorker is an in-process worker.Worker.
type FakeWorker struct {
	mu sync.Mutex

	// ToolVersion is returned by Version.
	ToolVersion string
	// VersionErr, when set, is returned by Version.
	VersionErr error

	// Outcomes maps a release or pair string to its scripted outcome for
	// every verb. Missing targets succeed.
	Outcomes map[string]Outcome
	// VerbOutcomes maps "<verb>:<target>" to an outcome and takes precedence
	// over Outcomes.
	VerbOutcomes map[string]Outcome

	Calls []Call
}

// NewFakeWorker creates a FakeWorker reporting version.
func NewFakeWorker(version string) *FakeWorker {
	return &FakeWorker{
		ToolVersion:  version,
		Outcomes:     make(map[string]Outcome),
		VerbOutcomes: make(map[string]Outcome),
	}
}

// Count returns the number of calls of verb.
func (w *FakeWorker) Count(verb string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, c := range w.Calls {
		if c.Verb == verb {
			n++
		}
	}
	return n
}

// Targets returns the targets of the calls of verb, in call order.
func (w *FakeWorker) Targets(verb string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []string
	for _, c := range w.Calls {
		if c.Verb == verb {
			out = append(out, c.Target)
		}
	}
	return out
}

// Reset forgets recorded calls.
func (w *FakeWorker) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Calls = nil
}

// releaseFromArtifact maps <root>/<project>/<kind>/<name>.json to project
// and name.
func releaseFromArtifact(path string) (string, string) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	project := filepath.Base(filepath.Dir(filepath.Dir(path)))
	return project, name
}

func targetOf(verb string, args []string) string {
	switch verb {
	case worker.VerbPreprocess:
		for i, a := range args {
			if a == "-p" && i+1 < len(args) {
				return args[i+1]
			}
		}
	case worker.VerbExtract:
		if len(args) > 0 {
			project, version := releaseFromArtifact(args[0])
			return project + "@" + version
		}
	case worker.VerbDiff:
		if len(args) > 1 {
			project, oldVersion := releaseFromArtifact(args[0])
			_, newVersion := releaseFromArtifact(args[1])
			return project + "@" + oldVersion + "&" + newVersion
		}
	case worker.VerbReport:
		if len(args) > 0 {
			project, name := releaseFromArtifact(args[0])
			return project + "@" + name
		}
	}
	return ""
}

func (w *FakeWorker) outcome(verb, target string) Outcome {
	if o, ok := w.VerbOutcomes[verb+":"+target]; ok {
		return o
	}
	return w.Outcomes[target]
}

func fakeRun[T any](w *FakeWorker, verb string, args []string, payload any) *worker.Result[T] {
	w.mu.Lock()
	target := targetOf(verb, args)
	w.Calls = append(w.Calls, Call{Verb: verb, Target: target, Args: append([]string(nil), args...)})
	outcome := w.outcome(verb, target)
	w.mu.Unlock()

	res := &worker.Result[T]{Verb: verb, Log: []byte(verb + " " + target + "\n")}
	switch outcome {
	case OutcomeFail:
		res.Code = 1
		res.Log = append(res.Log, "fake failure\n"...)
		return res
	case OutcomeGarbage:
		res.Out = []byte("not json")
		return res
	case OutcomeFailedProduct:
		res.Code = 1
		res.Log = append(res.Log, "fake failure\n"...)
		payload = map[string]any{"state": int(worker.StateFailure), "duration": 0.1}
	}

	out, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	res.Out = out
	data := new(T)
	if err := json.Unmarshal(out, data); err != nil {
		panic(err)
	}
	res.Data = data
	return res
}

func successPayload(extra map[string]any) map[string]any {
	doc := map[string]any{"state": int(worker.StateSuccess), "duration": 0.25}
	for k, v := range extra {
		doc[k] = v
	}
	return doc
}

// Preprocess implements worker.Worker.
func (w *FakeWorker) Preprocess(_ context.Context, args []string) (*worker.Result[worker.Distribution], error) {
	return fakeRun[worker.Distribution](w, worker.VerbPreprocess, args, successPayload(map[string]any{
		"fileCount": 2, "fileSize": 512, "locCount": 40,
	})), nil
}

// Extract implements worker.Worker.
func (w *FakeWorker) Extract(_ context.Context, args []string) (*worker.Result[worker.APIDescription], error) {
	return fakeRun[worker.APIDescription](w, worker.VerbExtract, args, successPayload(map[string]any{
		"entries": map[string]any{"pkg": map[string]any{"form": "module"}, "pkg.run": map[string]any{"form": "function"}},
	})), nil
}

// Diff implements worker.Worker.
func (w *FakeWorker) Diff(_ context.Context, args []string) (*worker.Result[worker.APIDifference], error) {
	return fakeRun[worker.APIDifference](w, worker.VerbDiff, args, successPayload(map[string]any{
		"entries": map[string]any{"1": map[string]any{"kind": "RemoveFunction", "rank": int(worker.RankHigh)}},
	})), nil
}

// Report implements worker.Worker.
func (w *FakeWorker) Report(_ context.Context, args []string) (*worker.Result[worker.Report], error) {
	return fakeRun[worker.Report](w, worker.VerbReport, args, successPayload(map[string]any{"content": "report"})), nil
}

// Version implements worker.Worker.
func (w *FakeWorker) Version(context.Context) (string, error) {
	if w.VersionErr != nil {
		return "", w.VersionErr
	}
	return w.ToolVersion, nil
}

// ResolvePath implements worker.Worker.
func (w *FakeWorker) ResolvePath(path string) (string, error) {
	return path, nil
}

// FakeSource is a release.Source over a static project to versions map.
// Unknown projects yield release.ErrNotFound.
type FakeSource map[string][]string

// Versions implements release.Source.
func (s FakeSource) Versions(_ context.Context, project string) ([]string, error) {
	versions, ok := s[project]
	if !ok {
		return nil, errors.Mark(errors.Newf("unknown project %s", project), release.ErrNotFound)
	}
	return append([]string(nil), versions...), nil
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// WriteArtifact writes data to path and a log to its sibling .log file.
//
// Example:
//
//	b := dist.New(t.TempDir())
//	testing.WriteArtifact(t, b.Extract(r), []byte(`{"state":1}`))
func WriteArtifact(t *testing.T, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create artifact dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}
	if err := os.WriteFile(worker.LogPath(path), []byte("log\n"), 0644); err != nil {
		t.Fatalf("failed to write artifact log: %v", err)
	}
}

// WritePayload marshals v and writes it with WriteArtifact.
func WritePayload(t *testing.T, path string, v any) {
	t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	WriteArtifact(t, path, data)
}

// SuccessPayload returns a minimal successful payload document with extra
// fields merged in.
func SuccessPayload(extra map[string]any) map[string]any {
	return successPayload(extra)
}
