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

package featurestore

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"ezua-toolkit/pkg/descriptor"
	"ezua-toolkit/pkg/logging"
	"ezua-toolkit/pkg/orchestrator"
	"ezua-toolkit/pkg/resolver"
	"ezua-toolkit/pkg/shell"
	"ezua-toolkit/pkg/template"
)

const (
	// registryPrefix names the per-project registry ConfigMap.
	registryPrefix = "feast-registry-"
	// watermarkAnnotation records the end of the last successfully
	// materialized interval, RFC3339.
	watermarkAnnotation = "ezua.hpe.com/materialized-through"
	// projectLabel marks registry ConfigMaps for discovery.
	projectLabel = "ezua.hpe.com/project"

	materializeTemplate = "feast-materialize"
)

// ErrUpToDate reports that the registry watermark already covers the
// requested interval end, so there is nothing to materialize.
var ErrUpToDate = errors.New("feature store is already materialized through the requested time")

// Sync drives the two-phase synchronization for one feature-store project.
type Sync struct {
	client    kubernetes.Interface
	templates *template.Store
	orch      orchestrator.Orchestrator
	namespace string
	project   string
	// jobParams supplies the non-derived parameters of the materialization
	// job template, at minimum "image".
	jobParams resolver.Context
}

// NewSync wires a Sync against a cluster. The project name must be a DNS
// label; it becomes part of the registry ConfigMap name.
func NewSync(client kubernetes.Interface, templates *template.Store, orch orchestrator.Orchestrator,
	namespace, project string, jobParams resolver.Context) *Sync {
	return &Sync{
		client:    client,
		templates: templates,
		orch:      orch,
		namespace: namespace,
		project:   project,
		jobParams: jobParams,
	}
}

func (s *Sync) registryName() string {
	return registryPrefix + s.project
}

// Apply upserts the definitions into the project registry and reports how
// many entries actually changed. Applying the same definitions twice is a
// no-op: the registry is left byte-identical and zero is returned.
func (s *Sync) Apply(ctx context.Context, defs []*Definition) (int, error) {
	desired := map[string]string{}
	for _, def := range defs {
		rendered, err := def.Canonical()
		if err != nil {
			return 0, err
		}
		desired[def.Name] = rendered
	}

	cms := s.client.CoreV1().ConfigMaps(s.namespace)
	existing, err := cms.Get(ctx, s.registryName(), metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		cm := &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{
				Name:      s.registryName(),
				Namespace: s.namespace,
				Labels:    map[string]string{projectLabel: s.project},
			},
			Data: desired,
		}
		if _, err := cms.Create(ctx, cm, metav1.CreateOptions{}); err != nil {
			return 0, errors.Wrapf(err, "failed to create registry %q", s.registryName())
		}
		logging.Info("Created registry %q with %d feature view(s)", s.registryName(), len(desired))
		return len(desired), nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read registry %q", s.registryName())
	}

	changed := 0
	if existing.Data == nil {
		existing.Data = map[string]string{}
	}
	for name, rendered := range desired {
		if existing.Data[name] != rendered {
			existing.Data[name] = rendered
			changed++
		}
	}
	if changed == 0 {
		logging.Info("Registry %q already up to date", s.registryName())
		return 0, nil
	}
	if _, err := cms.Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
		return 0, errors.Wrapf(err, "failed to update registry %q", s.registryName())
	}
	logging.Info("Updated %d feature view(s) in registry %q", changed, s.registryName())
	return changed, nil
}

// MaterializeIncremental submits a materialization job covering
// [watermark, end) and, if the job succeeds, advances the watermark to end.
// The first run has no watermark and falls back to end minus the largest
// view TTL in the registry.
func (s *Sync) MaterializeIncremental(ctx context.Context, end time.Time, opts orchestrator.AwaitOptions) (orchestrator.Record, error) {
	cms := s.client.CoreV1().ConfigMaps(s.namespace)
	registry, err := cms.Get(ctx, s.registryName(), metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return orchestrator.Record{}, fmt.Errorf("registry %q not found; apply definitions first", s.registryName())
	}
	if err != nil {
		return orchestrator.Record{}, errors.Wrapf(err, "failed to read registry %q", s.registryName())
	}

	start, err := s.intervalStart(registry, end)
	if err != nil {
		return orchestrator.Record{}, err
	}
	if !start.Before(end) {
		return orchestrator.Record{}, ErrUpToDate
	}

	rec, err := s.submitMaterialization(ctx, start, end)
	if err != nil {
		return rec, err
	}

	rec, err = orchestrator.AwaitTerminal(ctx, s.orch, rec, opts)
	if err != nil {
		return rec, err
	}
	if rec.Phase != orchestrator.PhaseSucceeded {
		logging.Warn("Materialization %q finished %s; watermark stays at %s", rec.Name, rec.Phase, start.Format(time.RFC3339))
		return rec, nil
	}

	if err := s.advanceWatermark(ctx, end); err != nil {
		return rec, err
	}
	logging.Info("Materialized %q through %s", s.project, end.Format(time.RFC3339))
	return rec, nil
}

// intervalStart returns the watermark, or end minus the largest view TTL
// when the registry carries none yet.
func (s *Sync) intervalStart(registry *corev1.ConfigMap, end time.Time) (time.Time, error) {
	if raw, ok := registry.Annotations[watermarkAnnotation]; ok && raw != "" {
		watermark, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, errors.Wrapf(err, "registry %q has a malformed watermark %q", s.registryName(), raw)
		}
		return watermark, nil
	}

	var maxTTL time.Duration
	for name, rendered := range registry.Data {
		def, err := ParseDefinition([]byte(rendered))
		if err != nil {
			return time.Time{}, errors.Wrapf(err, "registry entry %q is corrupt", name)
		}
		if ttl := def.TTL.Std(); ttl > maxTTL {
			maxTTL = ttl
		}
	}
	if maxTTL == 0 {
		return time.Time{}, fmt.Errorf("registry %q is empty; apply definitions first", s.registryName())
	}
	return end.Add(-maxTTL), nil
}

func (s *Sync) submitMaterialization(ctx context.Context, start, end time.Time) (orchestrator.Record, error) {
	tmpl, err := s.templates.Get(materializeTemplate)
	if err != nil {
		return orchestrator.Record{}, err
	}

	params := resolver.Context{}
	for token, value := range s.jobParams {
		params[token] = value
	}
	params["name"] = materializeTemplate + "-" + shell.RandomString(6)
	params["namespace"] = s.namespace
	params["project_name"] = s.project
	params["start_time"] = start.UTC().Format(time.RFC3339)
	params["end_time"] = end.UTC().Format(time.RFC3339)

	resolution, err := resolver.Resolve(tmpl, params)
	if err != nil {
		return orchestrator.Record{}, err
	}
	d, err := descriptor.Materialize(tmpl, resolution)
	if err != nil {
		return orchestrator.Record{}, err
	}
	logging.Info("Submitting materialization of [%s, %s) for project %q", params["start_time"], params["end_time"], s.project)
	return s.orch.Submit(ctx, d)
}

// advanceWatermark re-reads the registry before writing so a concurrent
// Apply is not clobbered.
func (s *Sync) advanceWatermark(ctx context.Context, end time.Time) error {
	cms := s.client.CoreV1().ConfigMaps(s.namespace)
	registry, err := cms.Get(ctx, s.registryName(), metav1.GetOptions{})
	if err != nil {
		return errors.Wrapf(err, "failed to re-read registry %q", s.registryName())
	}
	if registry.Annotations == nil {
		registry.Annotations = map[string]string{}
	}
	registry.Annotations[watermarkAnnotation] = end.UTC().Format(time.RFC3339)
	if _, err := cms.Update(ctx, registry, metav1.UpdateOptions{}); err != nil {
		return errors.Wrapf(err, "failed to advance watermark on registry %q", s.registryName())
	}
	return nil
}
