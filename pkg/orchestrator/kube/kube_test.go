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

package kube

import (
	"context"
	"errors"
	"strings"
	"testing"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	dynfake "k8s.io/client-go/dynamic/fake"
	kubefake "k8s.io/client-go/kubernetes/fake"

	"ezua-toolkit/pkg/descriptor"
	"ezua-toolkit/pkg/orchestrator"
	"ezua-toolkit/pkg/resolver"
	"ezua-toolkit/pkg/template"
)

const jobManifest = `
apiVersion: batch/v1
kind: Job
metadata:
  name: <name>
spec:
  template:
    metadata:
      labels:
        app: etl
    spec:
      restartPolicy: Never
      containers:
      - name: main
        image: <image>
`

func materializeJob(t *testing.T, name string) *descriptor.Descriptor {
	t.Helper()
	tmpl, err := template.New("job", []byte(jobManifest))
	if err != nil {
		t.Fatalf("template.New: %v", err)
	}
	d, err := descriptor.Materialize(tmpl, resolver.Resolution{
		"name":  name,
		"image": "registry.example.com/etl:v1",
	})
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	return d
}

func newTestOrchestrator(objects ...runtime.Object) *Orchestrator {
	scheme := runtime.NewScheme()
	dyn := dynfake.NewSimpleDynamicClient(scheme, objects...)
	return NewWithClients(dyn, kubefake.NewSimpleClientset(), "analytics")
}

func TestSubmitDefaultsNamespaceAndLabels(t *testing.T) {
	o := newTestOrchestrator()

	rec, err := o.Submit(context.Background(), materializeJob(t, "etl-run"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rec.Namespace != "analytics" {
		t.Errorf("namespace = %q, want %q", rec.Namespace, "analytics")
	}
	if rec.Phase != orchestrator.PhasePending {
		t.Errorf("phase = %q, want Pending", rec.Phase)
	}
	if rec.Kind != "Job" || rec.APIVersion != "batch/v1" {
		t.Errorf("identity = %s/%s, want batch/v1/Job", rec.APIVersion, rec.Kind)
	}

	gvr, _ := descriptor.ResourceFor(rec.APIVersion, rec.Kind)
	obj, err := o.dyn.Resource(gvr).Namespace("analytics").Get(context.Background(), "etl-run", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("created object not found: %v", err)
	}
	if obj.GetLabels()[WorkloadLabel] != "etl-run" {
		t.Errorf("workload label not set on object: %v", obj.GetLabels())
	}
	podLabel, _, _ := unstructured.NestedString(obj.Object, "spec", "template", "metadata", "labels", WorkloadLabel)
	if podLabel != "etl-run" {
		t.Errorf("workload label not propagated to pod template, got %q", podLabel)
	}
}

func TestSubmitDuplicateIsRejected(t *testing.T) {
	o := newTestOrchestrator()
	ctx := context.Background()

	if _, err := o.Submit(ctx, materializeJob(t, "etl-run")); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err := o.Submit(ctx, materializeJob(t, "etl-run"))
	var rejected *orchestrator.SubmissionRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("second submit error = %v, want SubmissionRejectedError", err)
	}
}

func TestStatusObservesPhase(t *testing.T) {
	o := newTestOrchestrator()
	ctx := context.Background()

	rec, err := o.Submit(ctx, materializeJob(t, "etl-run"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	rec, err = o.Status(ctx, rec)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if rec.Phase != orchestrator.PhasePending {
		t.Errorf("phase = %q, want Pending before the job starts", rec.Phase)
	}
}

func TestDeleteAbsentWorkloadIsNotAnError(t *testing.T) {
	o := newTestOrchestrator()
	rec := orchestrator.Record{
		Name: "gone", Namespace: "analytics", Kind: "Job", APIVersion: "batch/v1",
	}
	if err := o.Delete(context.Background(), rec); err != nil {
		t.Errorf("Delete of absent workload: %v", err)
	}
}

func TestObjectPhaseJob(t *testing.T) {
	cases := []struct {
		name   string
		status map[string]interface{}
		want   orchestrator.Phase
	}{
		{"no status", nil, orchestrator.PhasePending},
		{
			"active pods",
			map[string]interface{}{"active": int64(1)},
			orchestrator.PhaseRunning,
		},
		{
			"complete condition",
			map[string]interface{}{
				"succeeded": int64(1),
				"conditions": []interface{}{
					map[string]interface{}{"type": "Complete", "status": "True"},
				},
			},
			orchestrator.PhaseSucceeded,
		},
		{
			"failed condition",
			map[string]interface{}{
				"failed": int64(1),
				"conditions": []interface{}{
					map[string]interface{}{"type": "Failed", "status": "True", "message": "backoff limit exceeded"},
				},
			},
			orchestrator.PhaseFailed,
		},
		{
			"false conditions ignored",
			map[string]interface{}{
				"conditions": []interface{}{
					map[string]interface{}{"type": "Failed", "status": "False"},
				},
			},
			orchestrator.PhasePending,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obj := &unstructured.Unstructured{Object: map[string]interface{}{
				"apiVersion": "batch/v1",
				"kind":       "Job",
				"metadata":   map[string]interface{}{"name": "j"},
			}}
			if tc.status != nil {
				obj.Object["status"] = tc.status
			}
			got, msg := ObjectPhase(obj)
			if got != tc.want {
				t.Errorf("phase = %q, want %q", got, tc.want)
			}
			if tc.want == orchestrator.PhaseFailed && msg == "" {
				t.Error("failed phase should carry the condition message")
			}
		})
	}
}

func TestObjectPhaseCustomResource(t *testing.T) {
	cases := []struct {
		name   string
		status map[string]interface{}
		want   orchestrator.Phase
	}{
		{"no status", nil, orchestrator.PhasePending},
		{
			"spark running",
			map[string]interface{}{
				"applicationState": map[string]interface{}{"state": "RUNNING"},
			},
			orchestrator.PhaseRunning,
		},
		{
			"spark completed",
			map[string]interface{}{
				"applicationState": map[string]interface{}{"state": "COMPLETED"},
			},
			orchestrator.PhaseSucceeded,
		},
		{
			"spark failed",
			map[string]interface{}{
				"applicationState": map[string]interface{}{"state": "FAILED", "errorMessage": "driver OOM"},
			},
			orchestrator.PhaseFailed,
		},
		{
			"flat phase field",
			map[string]interface{}{"phase": "Succeeded"},
			orchestrator.PhaseSucceeded,
		},
		{
			"flat state field",
			map[string]interface{}{"state": "Pending"},
			orchestrator.PhasePending,
		},
		{
			"unknown state counts as running",
			map[string]interface{}{"phase": "Aggregating"},
			orchestrator.PhaseRunning,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obj := &unstructured.Unstructured{Object: map[string]interface{}{
				"apiVersion": "sparkoperator.k8s.io/v1beta2",
				"kind":       "SparkApplication",
				"metadata":   map[string]interface{}{"name": "app"},
			}}
			if tc.status != nil {
				obj.Object["status"] = tc.status
			}
			got, msg := ObjectPhase(obj)
			if got != tc.want {
				t.Errorf("phase = %q, want %q", got, tc.want)
			}
			if tc.want == orchestrator.PhaseFailed && !strings.Contains(msg, "driver OOM") {
				t.Errorf("failed phase message = %q, want the operator error", msg)
			}
		})
	}
}

func TestCleanManifestsStripsDescriptions(t *testing.T) {
	raw := []byte(`
apiVersion: apiextensions.k8s.io/v1
kind: CustomResourceDefinition
metadata:
  name: widgets.example.com
spec:
  versions:
  - name: v1
    schema:
      openAPIV3Schema:
        description: top level description
        properties:
          spec:
            description: nested description
            type: object
---
apiVersion: v1
kind: ServiceAccount
metadata:
  name: operator
`)
	docs, err := cleanManifests(raw)
	if err != nil {
		t.Fatalf("cleanManifests: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	for _, doc := range docs {
		if strings.Contains(string(doc), "description") {
			t.Errorf("description field survived cleaning:\n%s", doc)
		}
	}
	if !strings.Contains(string(docs[1]), "ServiceAccount") {
		t.Errorf("second document lost its kind:\n%s", docs[1])
	}
}

func TestManifestResource(t *testing.T) {
	cases := []struct {
		apiVersion, kind, want string
	}{
		{"apiextensions.k8s.io/v1", "CustomResourceDefinition", "customresourcedefinitions"},
		{"rbac.authorization.k8s.io/v1", "ClusterRoleBinding", "clusterrolebindings"},
		{"v1", "ServiceAccount", "serviceaccounts"},
		{"apps/v1", "Deployment", "deployments"},
	}
	for _, tc := range cases {
		obj := &unstructured.Unstructured{Object: map[string]interface{}{
			"apiVersion": tc.apiVersion,
			"kind":       tc.kind,
			"metadata":   map[string]interface{}{"name": "x"},
		}}
		gvr, err := manifestResource(obj)
		if err != nil {
			t.Fatalf("%s/%s: %v", tc.apiVersion, tc.kind, err)
		}
		if gvr.Resource != tc.want {
			t.Errorf("%s/%s resource = %q, want %q", tc.apiVersion, tc.kind, gvr.Resource, tc.want)
		}
	}
}
