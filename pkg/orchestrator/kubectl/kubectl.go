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

// Package kubectl submits workload descriptors through the kubectl binary.
// It is the fallback path for environments where direct API server access
// is not configured but a working kubectl context is.
package kubectl

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	sigsyaml "sigs.k8s.io/yaml"

	"ezua-toolkit/pkg/descriptor"
	"ezua-toolkit/pkg/logging"
	"ezua-toolkit/pkg/orchestrator"
	"ezua-toolkit/pkg/orchestrator/kube"
	"ezua-toolkit/pkg/shell"
)

// Orchestrator shells out to kubectl for every operation.
type Orchestrator struct {
	kubeconfig string
	namespace  string
}

// New returns an Orchestrator that targets the given kubeconfig and
// namespace. An empty kubeconfig uses kubectl's own resolution.
func New(kubeconfig, namespace string) *Orchestrator {
	return &Orchestrator{kubeconfig: kubeconfig, namespace: namespace}
}

func (o *Orchestrator) args(rec orchestrator.Record, verb string, extra ...string) []string {
	args := []string{verb}
	args = append(args, extra...)
	ns := rec.Namespace
	if ns == "" {
		ns = o.namespace
	}
	if ns != "" {
		args = append(args, "--namespace", ns)
	}
	if o.kubeconfig != "" {
		args = append(args, "--kubeconfig", o.kubeconfig)
	}
	return args
}

// Submit writes the descriptor to a temporary file and applies it with
// kubectl create. Validation failures reported by kubectl surface as
// SubmissionRejectedError.
func (o *Orchestrator) Submit(ctx context.Context, d *descriptor.Descriptor) (orchestrator.Record, error) {
	tmpFile, err := os.CreateTemp("", "uactl-descriptor-*.yaml")
	if err != nil {
		return orchestrator.Record{}, errors.Wrap(err, "failed to create temporary descriptor file")
	}
	defer os.Remove(tmpFile.Name())
	defer tmpFile.Close()

	if _, err := tmpFile.Write(d.Bytes()); err != nil {
		return orchestrator.Record{}, errors.Wrap(err, "failed to write descriptor to temporary file")
	}

	ns := d.Namespace()
	if ns == "" {
		ns = o.namespace
	}

	cmdArgs := []string{"create", "-f", tmpFile.Name(), "--namespace", ns}
	if o.kubeconfig != "" {
		cmdArgs = append(cmdArgs, "--kubeconfig", o.kubeconfig)
	}
	logging.Info("Executing: kubectl %s", strings.Join(cmdArgs, " "))
	res := shell.ExecuteCommand("kubectl", cmdArgs...)
	if res.ExitCode != 0 {
		if looksLikeRejection(res.Stderr) {
			return orchestrator.Record{}, &orchestrator.SubmissionRejectedError{Reason: strings.TrimSpace(res.Stderr)}
		}
		return orchestrator.Record{}, fmt.Errorf("kubectl create failed with exit code %d: %s", res.ExitCode, res.Stderr)
	}

	return orchestrator.Record{
		Name:        d.Name(),
		Namespace:   ns,
		Kind:        d.Kind(),
		APIVersion:  d.APIVersion(),
		Phase:       orchestrator.PhasePending,
		SubmittedAt: time.Now(),
	}, nil
}

// Status fetches the object with kubectl get -o yaml and folds its phase
// into the record.
func (o *Orchestrator) Status(ctx context.Context, rec orchestrator.Record) (orchestrator.Record, error) {
	res := shell.ExecuteCommand("kubectl", o.args(rec, "get", qualifiedKind(rec), rec.Name, "-o", "yaml")...)
	if res.ExitCode != 0 {
		return rec, fmt.Errorf("kubectl get failed with exit code %d: %s", res.ExitCode, res.Stderr)
	}
	phase, message, err := PhaseFromManifest([]byte(res.Stdout))
	if err != nil {
		return rec, err
	}
	return rec.Observe(phase, message)
}

// Logs streams pod logs selected by the workload label.
func (o *Orchestrator) Logs(ctx context.Context, rec orchestrator.Record, out io.Writer) error {
	selector := fmt.Sprintf("%s=%s", kube.WorkloadLabel, rec.Name)
	res := shell.ExecuteCommand("kubectl", o.args(rec, "logs", "--selector", selector, "--prefix")...)
	if res.ExitCode != 0 {
		return fmt.Errorf("kubectl logs failed with exit code %d: %s", res.ExitCode, res.Stderr)
	}
	_, err := io.WriteString(out, res.Stdout)
	return err
}

// Delete removes the workload. An already absent workload is not an error.
func (o *Orchestrator) Delete(ctx context.Context, rec orchestrator.Record) error {
	res := shell.ExecuteCommand("kubectl", o.args(rec, "delete", qualifiedKind(rec), rec.Name, "--ignore-not-found")...)
	if res.ExitCode != 0 {
		return fmt.Errorf("kubectl delete failed with exit code %d: %s", res.ExitCode, res.Stderr)
	}
	logging.Info("Deleted %s %q", rec.Kind, rec.Name)
	return nil
}

// PhaseFromManifest parses a kubectl get -o yaml dump and maps its status
// to a lifecycle phase.
func PhaseFromManifest(manifest []byte) (orchestrator.Phase, string, error) {
	obj := &unstructured.Unstructured{}
	if err := sigsyaml.Unmarshal(manifest, obj); err != nil {
		return orchestrator.PhasePending, "", errors.Wrap(err, "failed to parse kubectl output")
	}
	phase, message := kube.ObjectPhase(obj)
	return phase, message, nil
}

// qualifiedKind renders "kind.group" so kubectl resolves custom resources
// unambiguously; core kinds stay bare.
func qualifiedKind(rec orchestrator.Record) string {
	kind := strings.ToLower(rec.Kind)
	if group, _, found := strings.Cut(rec.APIVersion, "/"); found {
		return kind + "." + group
	}
	return kind
}

func looksLikeRejection(stderr string) bool {
	for _, marker := range []string{
		"is invalid",
		"error validating",
		"admission webhook",
		"denied the request",
		"already exists",
		"no matches for kind",
		"Unsupported value",
	} {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}
