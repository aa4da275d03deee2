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
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apitest "github.com/kraklabs/apindex/internal/testing"
	"github.com/kraklabs/apindex/pkg/release"
)

func TestStrategies_For(t *testing.T) {
	pkg := &PackageStrategy{}
	std := &StdlibStrategy{}

	s := Strategies{Package: pkg, Stdlib: std}
	assert.Same(t, std, s.For(StdlibProject))
	assert.Same(t, pkg, s.For("requests"))

	s = Strategies{Package: pkg}
	assert.Same(t, pkg, s.For(StdlibProject))
}

func TestPackageStrategy(t *testing.T) {
	src := apitest.FakeSource{"p": {"1.0", "1.1", "1.2", "2.0"}}
	s := &PackageStrategy{Enumerator: release.NewEnumerator(src, apitest.DiscardLogger()), MaxReleases: 2}

	releases, err := s.Releases(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"p@1.2", "p@2.0"}, release.Strings(releases))

	args, err := s.PreprocessArgs(context.Background(), release.Release{Project: "p", Version: "2.0"}, "/cache/.scratch-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"-r", "-p", "p@2.0", "/cache/.scratch-1", "-"}, args)
	assert.Empty(t, s.ExtractArgs(release.Release{Project: "p", Version: "2.0"}))
}

func TestTopModules(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"os.py", "json", "_thread.py", "__pycache__", "site-packages", "abc.py", "json.py"} {
		path := filepath.Join(root, name)
		if filepath.Ext(name) == "" {
			require.NoError(t, os.Mkdir(path, 0755))
		} else {
			require.NoError(t, os.WriteFile(path, nil, 0644))
		}
	}

	modules, err := TopModules(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"abc", "json", "os"}, modules)
}

func TestStdlibStrategy(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "os.py"), nil, 0644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "email"), 0755))

	var asked string
	s := &StdlibStrategy{
		Versions: []string{"3.11", "3.12"},
		Locate: func(_ context.Context, version string) (string, error) {
			asked = version
			return root, nil
		},
	}

	releases, err := s.Releases(context.Background(), StdlibProject)
	require.NoError(t, err)
	assert.Equal(t, []string{"python@3.11", "python@3.12"}, release.Strings(releases))

	args, err := s.PreprocessArgs(context.Background(), releases[1], "/ignored")
	require.NoError(t, err)
	assert.Equal(t, "3.12", asked)
	assert.Equal(t, []string{"-s", root, "-p", "python@3.12", "-P", "3.12", "-m", "email", "-m", "os", "-"}, args)
	assert.Empty(t, s.ExtractArgs(releases[1]))
}

func TestStdlibStrategy_LocateError(t *testing.T) {
	s := &StdlibStrategy{Locate: func(context.Context, string) (string, error) {
		return "", errors.New("no interpreter")
	}}
	_, err := s.PreprocessArgs(context.Background(), release.Release{Project: StdlibProject, Version: "3.12"}, "")
	assert.Error(t, err)
}

func TestStdlibStrategy_SortsVersions(t *testing.T) {
	s := &StdlibStrategy{Versions: []string{"3.12", "3.9", "3.10"}, Logger: apitest.DiscardLogger()}

	releases, err := s.Releases(context.Background(), StdlibProject)
	require.NoError(t, err)
	assert.Equal(t, []string{"python@3.9", "python@3.10", "python@3.12"}, release.Strings(releases))
	assert.Equal(t, []string{"3.12", "3.9", "3.10"}, s.Versions)
}

func TestStdlibStrategy_ExtractEnv(t *testing.T) {
	s := &StdlibStrategy{Env: "py{version}"}
	r := release.Release{Project: StdlibProject, Version: "3.12"}
	assert.Equal(t, []string{"-e", "py3.12"}, s.ExtractArgs(r))
}
