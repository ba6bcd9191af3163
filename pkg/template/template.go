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

// Package template holds the library of parameterized workload descriptors.
// A template is a YAML document with <token> placeholders that are resolved
// at submission time.
package template

import (
	"fmt"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// tokenPattern is the placeholder grammar: <token>, where token is a
// lowercase identifier. Matches like "<2Gi>" or "<nil>" are not tokens.
var tokenPattern = regexp.MustCompile(`<([a-z][a-z0-9_]*)>`)

// Template is a named, read-only workload descriptor with placeholders.
type Template struct {
	name string
	raw  []byte
}

// New validates raw as a template and wraps it. The content must be a
// single well-formed YAML document once placeholders are ignored.
func New(name string, raw []byte) (*Template, error) {
	// Placeholders are valid YAML scalars, so the document must parse
	// as-is; a template that does not parse can never materialize.
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("template %q is not valid YAML: %w", name, err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("template %q is empty", name)
	}

	t := &Template{name: name, raw: append([]byte(nil), raw...)}
	return t, nil
}

// Name returns the template's library name.
func (t *Template) Name() string {
	return t.name
}

// Raw returns a copy of the template content.
func (t *Template) Raw() []byte {
	return append([]byte(nil), t.raw...)
}

// Placeholders returns the sorted, distinct placeholder tokens present in
// the template.
func (t *Template) Placeholders() []string {
	seen := map[string]bool{}
	for _, m := range tokenPattern.FindAllSubmatch(t.raw, -1) {
		seen[string(m[1])] = true
	}
	tokens := make([]string, 0, len(seen))
	for tok := range seen {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return tokens
}

// Tokens scans arbitrary content for placeholder tokens.
func Tokens(content []byte) []string {
	t := Template{raw: content}
	return t.Placeholders()
}

// Substitute replaces placeholders in content with their values in a single
// left-to-right pass. Substituted text is never re-scanned, so a value that
// happens to contain placeholder-shaped text passes through literally.
// Tokens without a value stay in place.
func Substitute(content []byte, values map[string]string) []byte {
	return tokenPattern.ReplaceAllFunc(content, func(match []byte) []byte {
		token := string(tokenPattern.FindSubmatch(match)[1])
		if value, ok := values[token]; ok {
			return []byte(value)
		}
		return match
	})
}
