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

package kubectl

import (
	"testing"

	"ezua-toolkit/pkg/orchestrator"
)

func TestPhaseFromManifest(t *testing.T) {
	cases := []struct {
		name     string
		manifest string
		want     orchestrator.Phase
	}{
		{
			"job complete",
			`
apiVersion: batch/v1
kind: Job
metadata:
  name: etl
status:
  succeeded: 1
  conditions:
  - type: Complete
    status: "True"
`,
			orchestrator.PhaseSucceeded,
		},
		{
			"job running",
			`
apiVersion: batch/v1
kind: Job
metadata:
  name: etl
status:
  active: 2
`,
			orchestrator.PhaseRunning,
		},
		{
			"spark application failed",
			`
apiVersion: sparkoperator.k8s.io/v1beta2
kind: SparkApplication
metadata:
  name: etl
status:
  applicationState:
    state: FAILED
    errorMessage: driver pod evicted
`,
			orchestrator.PhaseFailed,
		},
		{
			"fresh object",
			`
apiVersion: batch/v1
kind: Job
metadata:
  name: etl
`,
			orchestrator.PhasePending,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, msg, err := PhaseFromManifest([]byte(tc.manifest))
			if err != nil {
				t.Fatalf("PhaseFromManifest: %v", err)
			}
			if got != tc.want {
				t.Errorf("phase = %q, want %q", got, tc.want)
			}
			if tc.want == orchestrator.PhaseFailed && msg != "driver pod evicted" {
				t.Errorf("message = %q, want the operator error", msg)
			}
		})
	}
}

func TestPhaseFromManifestRejectsGarbage(t *testing.T) {
	if _, _, err := PhaseFromManifest([]byte("{not yaml")); err == nil {
		t.Error("expected an error for unparseable output")
	}
}

func TestQualifiedKind(t *testing.T) {
	cases := []struct {
		apiVersion, kind, want string
	}{
		{"batch/v1", "Job", "job.batch"},
		{"sparkoperator.k8s.io/v1beta2", "SparkApplication", "sparkapplication.sparkoperator.k8s.io"},
		{"v1", "Pod", "pod"},
	}
	for _, tc := range cases {
		rec := orchestrator.Record{Kind: tc.kind, APIVersion: tc.apiVersion}
		if got := qualifiedKind(rec); got != tc.want {
			t.Errorf("qualifiedKind(%s, %s) = %q, want %q", tc.apiVersion, tc.kind, got, tc.want)
		}
	}
}

func TestLooksLikeRejection(t *testing.T) {
	rejections := []string{
		`The Job "etl" is invalid: spec.template: Required value`,
		`error validating "descriptor.yaml": unknown field "replicaz"`,
		`admission webhook "validation.gatekeeper.sh" denied the request`,
		`error: no matches for kind "SparkApplication" in version "sparkoperator.k8s.io/v1beta2"`,
	}
	for _, stderr := range rejections {
		if !looksLikeRejection(stderr) {
			t.Errorf("should classify as rejection: %q", stderr)
		}
	}
	if looksLikeRejection("Unable to connect to the server: dial tcp: i/o timeout") {
		t.Error("transport failures must not classify as rejections")
	}
}
