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

// Package descriptor turns a template plus a resolution into a concrete,
// validated workload descriptor ready for submission.
package descriptor

import (
	"fmt"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	sigsyaml "sigs.k8s.io/yaml"

	"ezua-toolkit/pkg/resolver"
	"ezua-toolkit/pkg/template"
)

// InvalidDescriptorError reports a structurally unacceptable descriptor.
type InvalidDescriptorError struct {
	Reason string
}

func (e *InvalidDescriptorError) Error() string {
	return "invalid descriptor: " + e.Reason
}

func invalid(format string, args ...any) error {
	return &InvalidDescriptorError{Reason: fmt.Sprintf(format, args...)}
}

// Descriptor is an immutable, fully materialized workload descriptor.
type Descriptor struct {
	raw []byte
	obj *unstructured.Unstructured
}

// Materialize substitutes every placeholder of t with its resolved value
// and validates the result. It is a pure transform: same template and
// resolution always produce a byte-identical descriptor, and no partially
// substituted content ever escapes.
func Materialize(t *template.Template, r resolver.Resolution) (*Descriptor, error) {
	var leftover []string
	for _, token := range t.Placeholders() {
		if _, ok := r[token]; !ok {
			leftover = append(leftover, token)
		}
	}
	if len(leftover) > 0 {
		return nil, invalid("unresolved placeholders remain: %s", strings.Join(leftover, ", "))
	}

	// A single pass over the template; substituted values are never
	// re-scanned, so placeholder-shaped text inside a value is literal.
	content := template.Substitute(t.Raw(), r)

	var obj map[string]interface{}
	if err := sigsyaml.Unmarshal(content, &obj); err != nil {
		return nil, invalid("materialized content is not valid YAML: %v", err)
	}

	u := &unstructured.Unstructured{Object: obj}
	if err := validateStructure(u); err != nil {
		return nil, err
	}
	if err := validateResources(u.Object); err != nil {
		return nil, err
	}
	if err := validateVolumeMounts(u.Object); err != nil {
		return nil, err
	}

	return &Descriptor{raw: content, obj: u}, nil
}

// Bytes returns a copy of the descriptor content.
func (d *Descriptor) Bytes() []byte {
	return append([]byte(nil), d.raw...)
}

// Object returns a deep copy of the descriptor as an unstructured object.
func (d *Descriptor) Object() *unstructured.Unstructured {
	return d.obj.DeepCopy()
}

// Kind returns the descriptor's kind.
func (d *Descriptor) Kind() string {
	return d.obj.GetKind()
}

// APIVersion returns the descriptor's apiVersion.
func (d *Descriptor) APIVersion() string {
	return d.obj.GetAPIVersion()
}

// Name returns metadata.name.
func (d *Descriptor) Name() string {
	return d.obj.GetName()
}

// Namespace returns metadata.namespace; may be empty, in which case the
// submitter's configured namespace applies.
func (d *Descriptor) Namespace() string {
	return d.obj.GetNamespace()
}

// knownPlurals overrides the lowercase-plus-s resource guess for kinds the
// platform submits today.
var knownPlurals = map[string]string{
	"SparkApplication":          "sparkapplications",
	"ScheduledSparkApplication": "scheduledsparkapplications",
	"RayJob":                    "rayjobs",
	"Workflow":                  "workflows",
}

// GroupVersionResource derives the REST resource for the descriptor.
func (d *Descriptor) GroupVersionResource() (schema.GroupVersionResource, error) {
	return ResourceFor(d.APIVersion(), d.Kind())
}

// ResourceFor derives the REST resource for an apiVersion/kind pair.
func ResourceFor(apiVersion, kind string) (schema.GroupVersionResource, error) {
	gv, err := schema.ParseGroupVersion(apiVersion)
	if err != nil {
		return schema.GroupVersionResource{}, fmt.Errorf("invalid apiVersion %q: %w", apiVersion, err)
	}
	plural, ok := knownPlurals[kind]
	if !ok {
		plural = strings.ToLower(kind) + "s"
	}
	return gv.WithResource(plural), nil
}

func validateStructure(u *unstructured.Unstructured) error {
	if u.GetAPIVersion() == "" {
		return invalid("apiVersion is required")
	}
	if u.GetKind() == "" {
		return invalid("kind is required")
	}
	if u.GetName() == "" {
		return invalid("metadata.name is required")
	}
	return nil
}

// validateResources walks the descriptor for container resource blocks and
// checks every request against its corresponding limit.
func validateResources(node interface{}) error {
	m, ok := node.(map[string]interface{})
	if ok {
		if res, ok := m["resources"].(map[string]interface{}); ok {
			if err := checkRequestsWithinLimits(res); err != nil {
				return err
			}
		}
		for _, v := range m {
			if err := validateResources(v); err != nil {
				return err
			}
		}
		return nil
	}
	if list, ok := node.([]interface{}); ok {
		for _, item := range list {
			if err := validateResources(item); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkRequestsWithinLimits(res map[string]interface{}) error {
	requests, _ := res["requests"].(map[string]interface{})
	limits, _ := res["limits"].(map[string]interface{})
	for key, reqVal := range requests {
		limVal, ok := limits[key]
		if !ok {
			continue
		}
		req, err := parseQuantityValue(reqVal)
		if err != nil {
			return invalid("resource request %s: %v", key, err)
		}
		lim, err := parseQuantityValue(limVal)
		if err != nil {
			return invalid("resource limit %s: %v", key, err)
		}
		if req.Cmp(lim) > 0 {
			return invalid("resource request %s=%v exceeds limit %v", key, reqVal, limVal)
		}
	}
	return nil
}

func parseQuantityValue(v interface{}) (resource.Quantity, error) {
	switch val := v.(type) {
	case string:
		return resource.ParseQuantity(val)
	case float64:
		return resource.ParseQuantity(strconv.FormatFloat(val, 'f', -1, 64))
	case int64:
		return resource.ParseQuantity(strconv.FormatInt(val, 10))
	default:
		return resource.Quantity{}, fmt.Errorf("unsupported quantity value %v", v)
	}
}

// validateVolumeMounts rejects overlapping mount paths within a container.
func validateVolumeMounts(node interface{}) error {
	m, ok := node.(map[string]interface{})
	if ok {
		if mounts, ok := m["volumeMounts"].([]interface{}); ok {
			if err := checkMountOverlap(mounts); err != nil {
				return err
			}
		}
		for _, v := range m {
			if err := validateVolumeMounts(v); err != nil {
				return err
			}
		}
		return nil
	}
	if list, ok := node.([]interface{}); ok {
		for _, item := range list {
			if err := validateVolumeMounts(item); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkMountOverlap(mounts []interface{}) error {
	paths := []string{}
	for _, mount := range mounts {
		mm, ok := mount.(map[string]interface{})
		if !ok {
			continue
		}
		path, _ := mm["mountPath"].(string)
		if path == "" {
			return invalid("volumeMount without mountPath")
		}
		paths = append(paths, strings.TrimSuffix(path, "/"))
	}
	for i := range paths {
		for j := range paths {
			if i == j {
				continue
			}
			if paths[i] == paths[j] || strings.HasPrefix(paths[j], paths[i]+"/") {
				return invalid("overlapping volume mount paths %q and %q", paths[i], paths[j])
			}
		}
	}
	return nil
}
