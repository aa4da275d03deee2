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

package worker

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// DefaultImage is the tool image used by the Container adapter.
const DefaultImage = "stardustdl/aexpy:latest"

// ContainerMount is where the volume is mounted inside the container.
const ContainerMount = "/data"

// Container runs the tool image through docker with volume mounted at
// ContainerMount. Every path handed to the tool must live under volume.
type Container struct {
	*Subprocess
	volume string
}

// NewContainer creates a Container adapter.
func NewContainer(volume, image string, opts Options) (*Container, error) {
	abs, err := filepath.Abs(volume)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve volume %s", volume)
	}
	if image == "" {
		image = DefaultImage
	}
	prefix := []string{"docker", "run", "-v", abs + ":" + ContainerMount, "-u", "root", "--rm", image}
	if opts.Compress {
		prefix = append(prefix, "--gzip")
	}
	return &Container{Subprocess: newSubprocess(prefix, opts), volume: abs}, nil
}

// ResolvePath maps a host path under the volume to its container path.
func (c *Container) ResolvePath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", errors.Wrapf(err, "resolve %s", p)
	}
	rel, err := filepath.Rel(c.volume, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Newf("path %s is outside the worker volume %s", p, c.volume)
	}
	return path.Join(ContainerMount, filepath.ToSlash(rel)), nil
}
