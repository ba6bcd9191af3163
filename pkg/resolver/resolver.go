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

// Package resolver maps template placeholders to concrete values and
// validates them against per-token rules before materialization.
package resolver

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	registryname "github.com/google/go-containerregistry/pkg/name"
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/util/validation"

	"ezua-toolkit/pkg/template"
)

// Context carries the candidate values for one submission. It is built per
// invocation and discarded after materialization.
type Context map[string]string

// Resolution is the subset of the context actually consumed by a template,
// already validated.
type Resolution map[string]string

// MissingParameterError names a placeholder with no value in the context.
type MissingParameterError struct {
	Token string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing parameter %q", e.Token)
}

// InvalidParameterError names a placeholder whose value failed its rule.
type InvalidParameterError struct {
	Token  string
	Value  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%q: %s", e.Token, e.Value, e.Reason)
}

// Resolve checks every placeholder of t against ctx. All placeholders must
// be present and valid; the template itself is never modified.
func Resolve(t *template.Template, ctx Context) (Resolution, error) {
	res := Resolution{}
	for _, token := range t.Placeholders() {
		value, ok := ctx[token]
		if !ok {
			return nil, &MissingParameterError{Token: token}
		}
		if err := validate(token, value); err != nil {
			return nil, err
		}
		res[token] = value
	}
	return res, nil
}

// validate applies the rule registered for the token's name class. Every
// token matches exactly one rule; names with no specific class fall back to
// the non-empty rule.
func validate(token, value string) error {
	fail := func(reason string) error {
		return &InvalidParameterError{Token: token, Value: value, Reason: reason}
	}

	if value == "" {
		return fail("value must not be empty")
	}

	switch {
	case hasSuffix(token, "_cpu", "_memory", "_gpu", "_storage"):
		if _, err := resource.ParseQuantity(value); err != nil {
			return fail("must be a resource quantity such as \"500m\" or \"2Gi\"")
		}
	case hasSuffix(token, "_cores", "_replicas", "_seconds"):
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fail("must be a non-negative integer")
		}
	case hasSuffix(token, "_path"):
		if !strings.HasPrefix(value, "/") && !hasURIScheme(value) {
			return fail("must be an absolute path or a URI with a scheme")
		}
	case token == "name" || token == "namespace" || hasSuffix(token, "_name"):
		if msgs := validation.IsDNS1123Label(value); len(msgs) > 0 {
			return fail(msgs[0])
		}
	case token == "image" || hasSuffix(token, "_image"):
		if _, err := registryname.ParseReference(value); err != nil {
			return fail("must be a valid image reference")
		}
	case hasSuffix(token, "_time"):
		if _, err := time.Parse(time.RFC3339, value); err != nil {
			return fail("must be an RFC 3339 timestamp")
		}
	}
	return nil
}

func hasSuffix(token string, suffixes ...string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(token, s) {
			return true
		}
	}
	return false
}

func hasURIScheme(value string) bool {
	i := strings.Index(value, "://")
	return i > 0 && !strings.ContainsAny(value[:i], "/ ")
}
