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

// Package testing provides test helpers for apindex packages.
//
// # Fake Worker
//
// FakeWorker implements worker.Worker in process. It recognizes the release
// or pair a call is about from its arguments, so tests can script outcomes
// per target:
//
//	func TestMyFeature(t *testing.T) {
//	    w := apitest.NewFakeWorker("0.5.1")
//	    w.Outcomes["requests@2.0"] = apitest.OutcomeFail
//
//	    // Run the processor with w...
//	    assert.Equal(t, 3, w.Count(worker.VerbPreprocess))
//	}
//
// # Fake Release Source
//
// FakeSource implements release.Source over a static map:
//
//	src := apitest.FakeSource{"requests": {"1.0", "2.0"}}
//	enum := release.NewEnumerator(src, nil)
//
// # Artifacts
//
// WriteArtifact and WritePayload seed a distribution tree with artifacts and
// their sibling logs.
package testing
