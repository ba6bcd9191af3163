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

// Package featurestore synchronizes feature-view definitions with the
// platform's feature registry in two idempotent phases: apply the
// definitions, then materialize the interval the registry has not seen yet.
package featurestore

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"ezua-toolkit/pkg/config"
)

// viewNamePattern is the feast naming rule: snake_case, leading letter.
var viewNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// featureTypes lists the value types the online store can serve.
var featureTypes = map[string]bool{
	"int32": true, "int64": true, "float": true, "double": true,
	"string": true, "bool": true, "bytes": true, "unix_timestamp": true,
}

// Feature is a single served column of a feature view.
type Feature struct {
	Name  string `yaml:"name"`
	DType string `yaml:"dtype"`
}

// Source points at the offline data backing a view.
type Source struct {
	Path                 string `yaml:"path"`
	EventTimestampColumn string `yaml:"event_timestamp_column"`
}

// Definition is one feature view as declared in a definition YAML.
type Definition struct {
	Name     string          `yaml:"name"`
	Entities []string        `yaml:"entities"`
	TTL      config.Duration `yaml:"ttl"`
	Features []Feature       `yaml:"features"`
	Source   Source          `yaml:"source"`
}

// Validate checks the rules a definition must satisfy before it may enter
// the registry.
func (d *Definition) Validate() error {
	if !viewNamePattern.MatchString(d.Name) {
		return fmt.Errorf("feature view name %q must be snake_case starting with a letter", d.Name)
	}
	if len(d.Entities) == 0 {
		return fmt.Errorf("feature view %q declares no entities", d.Name)
	}
	if d.TTL.Std() <= 0 {
		return fmt.Errorf("feature view %q must declare a positive ttl", d.Name)
	}
	if len(d.Features) == 0 {
		return fmt.Errorf("feature view %q declares no features", d.Name)
	}
	for _, f := range d.Features {
		if !viewNamePattern.MatchString(f.Name) {
			return fmt.Errorf("feature %q of view %q has an invalid name", f.Name, d.Name)
		}
		if !featureTypes[f.DType] {
			return fmt.Errorf("feature %q of view %q has unsupported dtype %q", f.Name, d.Name, f.DType)
		}
	}
	if d.Source.Path == "" {
		return fmt.Errorf("feature view %q declares no source path", d.Name)
	}
	return nil
}

// Canonical renders the definition as the registry stores it. The struct
// field order fixes the output, so equal definitions always render equal.
func (d *Definition) Canonical() (string, error) {
	out, err := yaml.Marshal(d)
	if err != nil {
		return "", errors.Wrapf(err, "failed to render feature view %q", d.Name)
	}
	return string(out), nil
}

// ParseDefinition parses and validates a single feature-view document.
func ParseDefinition(raw []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, errors.Wrap(err, "failed to parse feature view definition")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadDefinitions reads every .yaml file in dir, sorted by file name, and
// returns the validated definitions. Duplicate view names across files are
// an error.
func LoadDefinitions(fs afero.Fs, dir string) ([]*Definition, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read definitions directory %q", dir)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	seen := map[string]string{}
	var defs []*Definition
	for _, name := range names {
		raw, err := afero.ReadFile(fs, filepath.Join(dir, name))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read definition file %q", name)
		}
		def, err := ParseDefinition(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "definition file %q", name)
		}
		if prev, dup := seen[def.Name]; dup {
			return nil, fmt.Errorf("feature view %q defined in both %q and %q", def.Name, prev, name)
		}
		seen[def.Name] = name
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("no feature view definitions found in %q", dir)
	}
	return defs, nil
}
