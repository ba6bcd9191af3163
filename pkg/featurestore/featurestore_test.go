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
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	kubefake "k8s.io/client-go/kubernetes/fake"

	"ezua-toolkit/pkg/descriptor"
	"ezua-toolkit/pkg/orchestrator"
	"ezua-toolkit/pkg/resolver"
	"ezua-toolkit/pkg/template"
)

const driverStatsDef = `
name: driver_hourly_stats
entities: [driver_id]
ttl: 24h
features:
  - name: trips_today
    dtype: int64
  - name: avg_rating
    dtype: double
source:
  path: s3://warehouse/driver_stats.parquet
  event_timestamp_column: event_ts
`

func TestParseDefinition(t *testing.T) {
	def, err := ParseDefinition([]byte(driverStatsDef))
	if err != nil {
		t.Fatalf("ParseDefinition: %v", err)
	}
	if def.Name != "driver_hourly_stats" {
		t.Errorf("name = %q", def.Name)
	}
	if def.TTL.Std() != 24*time.Hour {
		t.Errorf("ttl = %v, want 24h", def.TTL.Std())
	}
	if len(def.Features) != 2 {
		t.Errorf("got %d features, want 2", len(def.Features))
	}
}

func TestDefinitionValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Definition)
		reason string
	}{
		{"bad view name", func(d *Definition) { d.Name = "Driver-Stats" }, "snake_case"},
		{"no entities", func(d *Definition) { d.Entities = nil }, "no entities"},
		{"zero ttl", func(d *Definition) { d.TTL = 0 }, "positive ttl"},
		{"no features", func(d *Definition) { d.Features = nil }, "no features"},
		{"bad dtype", func(d *Definition) { d.Features[0].DType = "varchar" }, "unsupported dtype"},
		{"no source", func(d *Definition) { d.Source.Path = "" }, "no source path"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			def, err := ParseDefinition([]byte(driverStatsDef))
			if err != nil {
				t.Fatalf("ParseDefinition: %v", err)
			}
			tc.mutate(def)
			err = def.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.reason) {
				t.Errorf("Validate() = %v, want mention of %q", err, tc.reason)
			}
		})
	}
}

func TestLoadDefinitions(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeDef := func(path, name string) {
		content := strings.Replace(driverStatsDef, "driver_hourly_stats", name, 1)
		if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	writeDef("/views/b.yaml", "order_stats")
	writeDef("/views/a.yaml", "driver_stats")
	afero.WriteFile(fs, "/views/notes.txt", []byte("ignored"), 0o644)

	defs, err := LoadDefinitions(fs, "/views")
	if err != nil {
		t.Fatalf("LoadDefinitions: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("got %d definitions, want 2", len(defs))
	}
	if defs[0].Name != "driver_stats" || defs[1].Name != "order_stats" {
		t.Errorf("order = %q, %q; want file-name order", defs[0].Name, defs[1].Name)
	}

	writeDef("/views/c.yaml", "driver_stats")
	if _, err := LoadDefinitions(fs, "/views"); err == nil || !strings.Contains(err.Error(), "defined in both") {
		t.Errorf("duplicate views should fail loading, got %v", err)
	}
}

// succeedingOrchestrator accepts every submission and reports it Succeeded
// on the first status poll.
type succeedingOrchestrator struct {
	submitted []*descriptor.Descriptor
}

func (f *succeedingOrchestrator) Submit(ctx context.Context, d *descriptor.Descriptor) (orchestrator.Record, error) {
	f.submitted = append(f.submitted, d)
	return orchestrator.Record{
		Name: d.Name(), Namespace: d.Namespace(), Kind: d.Kind(), APIVersion: d.APIVersion(),
		Phase: orchestrator.PhasePending, SubmittedAt: time.Now(),
	}, nil
}

func (f *succeedingOrchestrator) Status(ctx context.Context, rec orchestrator.Record) (orchestrator.Record, error) {
	return rec.Observe(orchestrator.PhaseSucceeded, "")
}

func (f *succeedingOrchestrator) Logs(ctx context.Context, rec orchestrator.Record, out io.Writer) error {
	return nil
}

func (f *succeedingOrchestrator) Delete(ctx context.Context, rec orchestrator.Record) error {
	return nil
}

func newTestSync(t *testing.T) (*Sync, *succeedingOrchestrator) {
	t.Helper()
	orch := &succeedingOrchestrator{}
	sync := NewSync(
		kubefake.NewSimpleClientset(),
		template.NewStore(afero.NewMemMapFs(), ""),
		orch,
		"analytics",
		"rides",
		resolver.Context{
			"image":        "registry.example.com/feast:v0.40",
			"ttl_seconds":  "3600",
			"feast_cpu":    "1",
			"feast_memory": "2Gi",
		},
	)
	return sync, orch
}

func mustApply(t *testing.T, s *Sync) {
	t.Helper()
	def, err := ParseDefinition([]byte(driverStatsDef))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Apply(context.Background(), []*Definition{def}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	s, _ := newTestSync(t)
	def, err := ParseDefinition([]byte(driverStatsDef))
	if err != nil {
		t.Fatal(err)
	}
	defs := []*Definition{def}
	ctx := context.Background()

	changed, err := s.Apply(ctx, defs)
	if err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	if changed != 1 {
		t.Errorf("first Apply changed %d entries, want 1", changed)
	}

	changed, err = s.Apply(ctx, defs)
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if changed != 0 {
		t.Errorf("second Apply changed %d entries, want 0", changed)
	}

	def.TTL = def.TTL * 2
	changed, err = s.Apply(ctx, []*Definition{def})
	if err != nil {
		t.Fatalf("third Apply: %v", err)
	}
	if changed != 1 {
		t.Errorf("changed definition not detected, got %d", changed)
	}
}

func TestMaterializeAdvancesWatermark(t *testing.T) {
	s, orch := newTestSync(t)
	mustApply(t, s)
	ctx := context.Background()
	end := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	rec, err := s.MaterializeIncremental(ctx, end, orchestrator.AwaitOptions{
		Timeout: time.Second, Interval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("MaterializeIncremental: %v", err)
	}
	if rec.Phase != orchestrator.PhaseSucceeded {
		t.Errorf("phase = %q, want Succeeded", rec.Phase)
	}
	if len(orch.submitted) != 1 {
		t.Fatalf("submitted %d jobs, want 1", len(orch.submitted))
	}

	// First run covers [end-TTL, end).
	manifest := string(orch.submitted[0].Bytes())
	if !strings.Contains(manifest, "2026-08-28T12:00:00Z") || !strings.Contains(manifest, "2026-08-29T12:00:00Z") {
		t.Errorf("job does not cover the TTL-derived interval:\n%s", manifest)
	}

	cm, err := s.client.CoreV1().ConfigMaps("analytics").Get(ctx, "feast-registry-rides", metav1.GetOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got := cm.Annotations[watermarkAnnotation]; got != "2026-08-29T12:00:00Z" {
		t.Errorf("watermark = %q, want the interval end", got)
	}
}

func TestMaterializeFromWatermark(t *testing.T) {
	s, orch := newTestSync(t)
	mustApply(t, s)
	ctx := context.Background()
	opts := orchestrator.AwaitOptions{Timeout: time.Second, Interval: time.Millisecond}

	first := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	if _, err := s.MaterializeIncremental(ctx, first, opts); err != nil {
		t.Fatalf("first run: %v", err)
	}

	second := first.Add(6 * time.Hour)
	if _, err := s.MaterializeIncremental(ctx, second, opts); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(orch.submitted) != 2 {
		t.Fatalf("submitted %d jobs, want 2", len(orch.submitted))
	}
	manifest := string(orch.submitted[1].Bytes())
	if !strings.Contains(manifest, `"feast", "materialize", "2026-08-29T12:00:00Z", "2026-08-29T18:00:00Z"`) {
		t.Errorf("second run does not start at the watermark:\n%s", manifest)
	}

	// Re-running at the same end has nothing left to cover.
	_, err := s.MaterializeIncremental(ctx, second, opts)
	if !errors.Is(err, ErrUpToDate) {
		t.Errorf("third run error = %v, want ErrUpToDate", err)
	}
}

func TestMaterializeWithoutRegistry(t *testing.T) {
	s, _ := newTestSync(t)
	_, err := s.MaterializeIncremental(context.Background(), time.Now(), orchestrator.AwaitOptions{})
	if err == nil || !strings.Contains(err.Error(), "apply definitions first") {
		t.Errorf("error = %v, want a hint to apply first", err)
	}
}
