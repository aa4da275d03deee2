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
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/kraklabs/apindex/internal/bootstrap"
	apierrors "github.com/kraklabs/apindex/internal/errors"
)

// templateConfig is the configuration written by init.
func templateConfig() *Config {
	cfg := DefaultConfig()
	cfg.Cache = bootstrap.DefaultCache
	cfg.Dist = bootstrap.DefaultDist
	cfg.Packages = []string{"requests"}
	return cfg
}

// encodeConfig renders cfg as YAML for .yaml and .yml paths and as JSON
// otherwise.
func encodeConfig(path string, cfg *Config) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Marshal(cfg)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// runInit executes the 'init' command.
func (c *cli) runInit(args []string) error {
	fs := c.newFlagSet("init", "Writes a configuration template.")
	force := fs.Bool("force", false, "Overwrite an existing configuration")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	path := configArg(fs.Args())

	if _, err := os.Stat(path); err == nil && !*force {
		return apierrors.NewInputError("Configuration already exists", path+" is present", "Use --force to overwrite it")
	}

	data, err := encodeConfig(path, templateConfig())
	if err != nil {
		return errors.Wrap(err, "encode configuration")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return apierrors.NewPermissionError("Cannot create "+dir, "", "", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return apierrors.NewPermissionError("Cannot write "+path, "", "Check the directory permissions", err)
	}

	c.out.Successf("wrote %s", path)
	c.out.Infof("edit packages, then run: apindex process %s", path)
	return nil
}
