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

package template

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agext/levenshtein"
	getter "github.com/hashicorp/go-getter"
	cp "github.com/otiai10/copy"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"ezua-toolkit/pkg/logging"
)

//go:embed templates/*.yaml
var builtinFS embed.FS

// suggestionDistance is the maximum edit distance for a "did you mean" hint.
const suggestionDistance = 5

// NotFoundError reports a template absent from the store, with the nearest
// existing name when one is close enough.
type NotFoundError struct {
	Name       string
	Suggestion string
}

func (e *NotFoundError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("template %q not found (did you mean %q?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("template %q not found", e.Name)
}

// Store serves templates from a library directory layered over the built-in
// set. Library templates shadow built-ins of the same name. Templates are
// read-only once loaded.
type Store struct {
	fs      afero.Fs
	library string
}

// NewStore returns a store reading the library directory on fs. An empty
// library serves built-in templates only.
func NewStore(fs afero.Fs, library string) *Store {
	return &Store{fs: fs, library: library}
}

// Get loads the named template, returning *NotFoundError when absent.
func (s *Store) Get(name string) (*Template, error) {
	if s.library != "" {
		path := filepath.Join(s.library, name+".yaml")
		data, err := afero.ReadFile(s.fs, path)
		if err == nil {
			return New(name, data)
		}
		if !isNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read template %q", path)
		}
	}

	data, err := builtinFS.ReadFile("templates/" + name + ".yaml")
	if err == nil {
		return New(name, data)
	}

	names, listErr := s.List()
	if listErr != nil {
		names = nil
	}
	return nil, &NotFoundError{Name: name, Suggestion: closest(name, names)}
}

// List returns the sorted names of all available templates.
func (s *Store) List() ([]string, error) {
	seen := map[string]bool{}

	entries, err := builtinFS.ReadDir("templates")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list built-in templates")
	}
	for _, e := range entries {
		seen[strings.TrimSuffix(e.Name(), ".yaml")] = true
	}

	if s.library != "" {
		infos, err := afero.ReadDir(s.fs, s.library)
		if err != nil && !isNotExist(err) {
			return nil, errors.Wrapf(err, "failed to list template library %q", s.library)
		}
		for _, info := range infos {
			if info.IsDir() || !strings.HasSuffix(info.Name(), ".yaml") {
				continue
			}
			seen[strings.TrimSuffix(info.Name(), ".yaml")] = true
		}
	}

	names := maps.Keys(seen)
	slices.Sort(names)
	return names, nil
}

// Import copies templates from src into the library directory. Local
// directories are copied as-is; anything else (https, git, s3 URLs) is
// fetched with go-getter. The fetchers write to the OS filesystem, so
// Import requires a store backed by it.
func (s *Store) Import(ctx context.Context, src string) error {
	if s.library == "" {
		return errors.New("no template library configured; set templateLibrary in the config file")
	}
	if _, ok := s.fs.(*afero.OsFs); !ok {
		return errors.New("template import requires an OS-backed library filesystem")
	}
	if err := s.fs.MkdirAll(s.library, 0755); err != nil {
		return errors.Wrapf(err, "failed to create template library %q", s.library)
	}

	if info, err := s.fs.Stat(src); err == nil && info.IsDir() {
		logging.Info("Copying templates from %s into %s", src, s.library)
		if err := cp.Copy(src, s.library); err != nil {
			return errors.Wrapf(err, "failed to copy templates from %q", src)
		}
		return nil
	}

	logging.Info("Fetching templates from %s into %s", src, s.library)
	client := &getter.Client{
		Ctx:  ctx,
		Src:  src,
		Dst:  s.library,
		Mode: getter.ClientModeDir,
	}
	if err := client.Get(); err != nil {
		return errors.Wrapf(err, "failed to fetch templates from %q", src)
	}
	return nil
}

func closest(name string, candidates []string) string {
	best := ""
	bestDist := suggestionDistance + 1
	for _, c := range candidates {
		if d := levenshtein.Distance(name, c, nil); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func isNotExist(err error) bool {
	return os.IsNotExist(err)
}
