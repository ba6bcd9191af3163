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
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"ezua-toolkit/pkg/orchestrator"
)

// ObjectPhase maps the status of a workload object to a lifecycle phase.
// batch/v1 Jobs are read through their conditions; everything else is read
// through the conventional status fields custom workload operators publish.
func ObjectPhase(obj *unstructured.Unstructured) (orchestrator.Phase, string) {
	if obj.GetAPIVersion() == "batch/v1" && obj.GetKind() == "Job" {
		return jobPhase(obj)
	}
	return customResourcePhase(obj)
}

// jobPhase folds batch/v1 Job status into a phase. A Complete=True condition
// wins over everything; a Failed=True condition makes the job Failed; any
// active or finished pod counter means the job has started.
func jobPhase(obj *unstructured.Unstructured) (orchestrator.Phase, string) {
	conditions, _, _ := unstructured.NestedSlice(obj.Object, "status", "conditions")
	for _, c := range conditions {
		cond, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		condType, _ := cond["type"].(string)
		condStatus, _ := cond["status"].(string)
		if condStatus != "True" {
			continue
		}
		switch condType {
		case "Complete", "SuccessCriteriaMet":
			return orchestrator.PhaseSucceeded, ""
		case "Failed":
			message, _ := cond["message"].(string)
			reason, _ := cond["reason"].(string)
			if message == "" {
				message = reason
			}
			return orchestrator.PhaseFailed, message
		}
	}

	for _, counter := range []string{"active", "succeeded", "failed"} {
		if v, found, _ := unstructured.NestedFieldNoCopy(obj.Object, "status", counter); found && asInt64(v) > 0 {
			return orchestrator.PhaseRunning, ""
		}
	}
	return orchestrator.PhasePending, ""
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	}
	return 0
}

// customResourcePhase reads the state published by workload operators. The
// Spark operator nests it under applicationState; most others expose a flat
// status.phase or status.state.
func customResourcePhase(obj *unstructured.Unstructured) (orchestrator.Phase, string) {
	state, found, _ := unstructured.NestedString(obj.Object, "status", "applicationState", "state")
	if !found {
		state, found, _ = unstructured.NestedString(obj.Object, "status", "phase")
	}
	if !found {
		state, _, _ = unstructured.NestedString(obj.Object, "status", "state")
	}

	message, _, _ := unstructured.NestedString(obj.Object, "status", "applicationState", "errorMessage")
	if message == "" {
		message, _, _ = unstructured.NestedString(obj.Object, "status", "message")
	}

	phase := normalizeState(state)
	if phase != orchestrator.PhaseFailed {
		message = ""
	}
	return phase, message
}

// normalizeState collapses operator-specific state vocabularies onto the
// four lifecycle phases. Unknown states count as Running rather than Pending
// so that an operator mid-flight never looks unscheduled.
func normalizeState(state string) orchestrator.Phase {
	switch strings.ToUpper(state) {
	case "", "NEW", "PENDING", "SUBMITTED", "QUEUED", "SUSPENDED":
		return orchestrator.PhasePending
	case "COMPLETED", "SUCCEEDED", "SUCCESS", "COMPLETING":
		return orchestrator.PhaseSucceeded
	case "FAILED", "ERROR", "SUBMISSION_FAILED", "FAILING", "INVALIDATING":
		return orchestrator.PhaseFailed
	default:
		return orchestrator.PhaseRunning
	}
}
