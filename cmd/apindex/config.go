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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	apierrors "github.com/kraklabs/apindex/internal/errors"
	"github.com/kraklabs/apindex/pkg/worker"
)

// DefaultConfigPath is used when no configuration path is given.
const DefaultConfigPath = "config.json"

// Duration is a time.Duration read from "4h", "90m" or a number of
// seconds.
type Duration time.Duration

func (d Duration) D() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return errors.Newf("line %d: duration must be a scalar", node.Line)
	}
	switch node.Tag {
	case "!!int", "!!float":
		var secs float64
		if err := node.Decode(&secs); err != nil {
			return err
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(node.Value)
	if err != nil {
		return errors.Wrapf(err, "line %d", node.Line)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Config is the apindex configuration file.
type Config struct {
	Cache    string `yaml:"cache" json:"cache,omitempty"`
	Dist     string `yaml:"dist" json:"dist,omitempty"`
	DB       string `yaml:"db,omitempty" json:"db,omitempty"`
	Mirror   bool   `yaml:"mirror" json:"mirror"`
	IndexURL string `yaml:"index_url,omitempty" json:"index_url,omitempty" validate:"omitempty,url"`

	// Worker selects the local command ("package") or the container
	// image ("image").
	Worker   string   `yaml:"worker" json:"worker" validate:"oneof=package image"`
	Command  string   `yaml:"command" json:"command"`
	Image    string   `yaml:"image" json:"image"`
	Compress bool     `yaml:"compress" json:"compress"`
	Verbose  int      `yaml:"verbose" json:"verbose" validate:"gte=0,lte=5"`
	Packages []string `yaml:"packages" json:"packages" validate:"dive,required"`

	StdlibVersions []string `yaml:"stdlib_versions,omitempty" json:"stdlib_versions,omitempty" validate:"dive,pyversion"`
	StdlibEnv      string   `yaml:"stdlib_env,omitempty" json:"stdlib_env,omitempty"`

	ProcessLimit int      `yaml:"process_limit" json:"process_limit" validate:"gte=0"`
	Timeout      Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`
	MaxReleases  int      `yaml:"max_releases" json:"max_releases" validate:"gte=0"`
	Freshness    Duration `yaml:"freshness" json:"freshness" validate:"gte=0"`
}

// DefaultConfig returns the configuration used for fields a file leaves
// out.
func DefaultConfig() *Config {
	return &Config{
		Worker:       "package",
		Command:      worker.DefaultCommand,
		Image:        worker.DefaultImage,
		Packages:     []string{},
		ProcessLimit: 1000,
		Timeout:      Duration(4 * time.Hour),
		MaxReleases:  40,
		Freshness:    Duration(24 * time.Hour),
	}
}

var (
	configValidate = validator.New()
	pyVersionRe    = regexp.MustCompile(`^3\.\d+$`)
)

func init() {
	_ = configValidate.RegisterValidation("pyversion", func(fl validator.FieldLevel) bool {
		return pyVersionRe.MatchString(fl.Field().String())
	})
}

// ParseConfig decodes a JSON or YAML document over the defaults and
// validates it.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate configuration")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return errors.Newf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// LoadConfig reads the configuration at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apierrors.NewConfigError(
				"Cannot read configuration",
				fmt.Sprintf("%s does not exist", path),
				"Run: apindex init "+path,
				err,
			)
		}
		return nil, apierrors.NewPermissionError("Cannot read configuration", "", "Check the file permissions of "+path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, apierrors.NewConfigError("Invalid configuration in "+path, "", "Fix the reported fields", err)
	}
	return cfg, nil
}
