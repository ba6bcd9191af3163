// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the toolkit configuration file and applies
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the user's home directory when no
// --config flag is given.
const DefaultFileName = ".uactl.yaml"

// Duration accepts "30s"/"5m"-style values in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds cluster and toolkit settings shared by all commands.
type Config struct {
	// Kubeconfig is the path to the kubeconfig used for API access.
	// Empty means the client-go default resolution order.
	Kubeconfig string `yaml:"kubeconfig"`

	// Namespace workloads are submitted into.
	Namespace string `yaml:"namespace"`

	// Registry is the image registry prefix for runner image builds,
	// e.g. "registry.ezua.example.com/workloads".
	Registry string `yaml:"registry"`

	// TemplateLibrary is the directory holding workload templates.
	// Empty means built-in templates only.
	TemplateLibrary string `yaml:"templateLibrary"`

	// PollInterval between workload status polls.
	PollInterval Duration `yaml:"pollInterval"`

	// Timeout for --wait before giving up on a terminal phase.
	Timeout Duration `yaml:"timeout"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Namespace:    "default",
		PollInterval: Duration(5 * time.Second),
		Timeout:      Duration(30 * time.Minute),
	}
}

// Load reads the configuration from path on fs, falling back to defaults
// when path is empty and no default file exists. Environment variables
// (UACTL_NAMESPACE, UACTL_REGISTRY, UACTL_KUBECONFIG, UACTL_TEMPLATE_LIBRARY)
// override file values.
func Load(fs afero.Fs, path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, DefaultFileName)
		}
	}

	if path != "" {
		data, err := afero.ReadFile(fs, path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, errors.Wrapf(err, "malformed config file %q", path)
			}
		case os.IsNotExist(err) && !explicit:
			// No default config file is fine.
		default:
			return Config{}, errors.Wrapf(err, "failed to read config file %q", path)
		}
	}

	applyEnv(&cfg)

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = Default().PollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = Default().Timeout
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("UACTL_KUBECONFIG"); v != "" {
		cfg.Kubeconfig = v
	}
	if v := os.Getenv("UACTL_NAMESPACE"); v != "" {
		cfg.Namespace = v
	}
	if v := os.Getenv("UACTL_REGISTRY"); v != "" {
		cfg.Registry = v
	}
	if v := os.Getenv("UACTL_TEMPLATE_LIBRARY"); v != "" {
		cfg.TemplateLibrary = v
	}
}
