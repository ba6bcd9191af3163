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

// Package kube submits workload descriptors to a Kubernetes cluster through
// the API server and reports their lifecycle phase.
package kube

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"ezua-toolkit/pkg/descriptor"
	"ezua-toolkit/pkg/logging"
	"ezua-toolkit/pkg/orchestrator"
)

// WorkloadLabel marks every pod spawned by a submitted descriptor so that
// logs and cleanup can find them regardless of the workload kind.
const WorkloadLabel = "ezua.hpe.com/workload"

// Orchestrator talks to the Kubernetes API server directly via client-go.
type Orchestrator struct {
	dyn       dynamic.Interface
	clientset kubernetes.Interface
	namespace string
}

// New builds an Orchestrator from a kubeconfig path. An empty path falls
// back to the standard kubeconfig resolution (KUBECONFIG, then ~/.kube/config).
func New(kubeconfig, namespace string) (*Orchestrator, error) {
	cfg, err := restConfig(kubeconfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load cluster credentials")
	}
	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create dynamic client")
	}
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create clientset")
	}
	return &Orchestrator{dyn: dyn, clientset: clientset, namespace: namespace}, nil
}

// NewWithClients is the constructor used by tests; it accepts pre-built
// clients instead of a kubeconfig.
func NewWithClients(dyn dynamic.Interface, clientset kubernetes.Interface, namespace string) *Orchestrator {
	return &Orchestrator{dyn: dyn, clientset: clientset, namespace: namespace}
}

func restConfig(kubeconfig string) (*rest.Config, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		loadingRules.ExplicitPath = kubeconfig
	}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		loadingRules, &clientcmd.ConfigOverrides{}).ClientConfig()
}

// Submit creates the descriptor's object on the cluster and returns a record
// in the Pending phase. Rejections by the API server (validation failures,
// missing CRDs, quota) surface as SubmissionRejectedError.
func (o *Orchestrator) Submit(ctx context.Context, d *descriptor.Descriptor) (orchestrator.Record, error) {
	gvr, err := d.GroupVersionResource()
	if err != nil {
		return orchestrator.Record{}, &orchestrator.SubmissionRejectedError{Reason: err.Error()}
	}

	obj := d.Object()
	ns := obj.GetNamespace()
	if ns == "" {
		ns = o.namespace
		obj.SetNamespace(ns)
	}
	labelWorkload(obj)

	logging.Info("Submitting %s %q to namespace %q", d.Kind(), obj.GetName(), ns)
	created, err := o.dyn.Resource(gvr).Namespace(ns).Create(ctx, obj, metav1.CreateOptions{})
	if err != nil {
		if isRejection(err) {
			return orchestrator.Record{}, &orchestrator.SubmissionRejectedError{Reason: err.Error()}
		}
		return orchestrator.Record{}, errors.Wrapf(err, "failed to submit %s %q", d.Kind(), obj.GetName())
	}

	return orchestrator.Record{
		Name:        created.GetName(),
		Namespace:   ns,
		Kind:        d.Kind(),
		APIVersion:  d.APIVersion(),
		Phase:       orchestrator.PhasePending,
		SubmittedAt: time.Now(),
	}, nil
}

// Status fetches the workload object and folds its observed phase into the
// record. A failed workload additionally carries recent cluster events in
// the record message.
func (o *Orchestrator) Status(ctx context.Context, rec orchestrator.Record) (orchestrator.Record, error) {
	gvr, err := descriptor.ResourceFor(rec.APIVersion, rec.Kind)
	if err != nil {
		return rec, err
	}
	obj, err := o.dyn.Resource(gvr).Namespace(rec.Namespace).Get(ctx, rec.Name, metav1.GetOptions{})
	if err != nil {
		return rec, errors.Wrapf(err, "failed to get %s %q", rec.Kind, rec.Name)
	}

	phase, message := ObjectPhase(obj)
	if phase == orchestrator.PhasePending || phase == orchestrator.PhaseRunning {
		// A started pod means the workload is past scheduling even when the
		// owning object's status lags behind.
		if started, err := o.anyPodStarted(ctx, rec); err == nil && started && phase == orchestrator.PhasePending {
			phase = orchestrator.PhaseRunning
		}
	}
	if phase == orchestrator.PhaseFailed && message == "" {
		message = o.recentEvents(ctx, rec)
	}
	return rec.Observe(phase, message)
}

// Logs streams logs from every pod belonging to the workload, in pod name
// order, prefixing each pod's output with its name when there is more than one.
func (o *Orchestrator) Logs(ctx context.Context, rec orchestrator.Record, out io.Writer) error {
	pods, err := o.workloadPods(ctx, rec)
	if err != nil {
		return err
	}
	if len(pods) == 0 {
		return fmt.Errorf("no pods found for %s %q in namespace %q", rec.Kind, rec.Name, rec.Namespace)
	}

	for _, pod := range pods {
		if len(pods) > 1 {
			fmt.Fprintf(out, "==> %s <==\n", pod.Name)
		}
		req := o.clientset.CoreV1().Pods(rec.Namespace).GetLogs(pod.Name, &corev1.PodLogOptions{})
		stream, err := req.Stream(ctx)
		if err != nil {
			return errors.Wrapf(err, "failed to stream logs from pod %q", pod.Name)
		}
		_, copyErr := io.Copy(out, stream)
		stream.Close()
		if copyErr != nil {
			return errors.Wrapf(copyErr, "failed to read logs from pod %q", pod.Name)
		}
	}
	return nil
}

// Delete removes the workload object; dependent pods are garbage collected
// by the cluster. Deleting an already absent workload is not an error.
func (o *Orchestrator) Delete(ctx context.Context, rec orchestrator.Record) error {
	gvr, err := descriptor.ResourceFor(rec.APIVersion, rec.Kind)
	if err != nil {
		return err
	}
	propagation := metav1.DeletePropagationBackground
	err = o.dyn.Resource(gvr).Namespace(rec.Namespace).Delete(ctx, rec.Name, metav1.DeleteOptions{
		PropagationPolicy: &propagation,
	})
	if apierrors.IsNotFound(err) {
		logging.Debug("%s %q already gone", rec.Kind, rec.Name)
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "failed to delete %s %q", rec.Kind, rec.Name)
	}
	logging.Info("Deleted %s %q from namespace %q", rec.Kind, rec.Name, rec.Namespace)
	return nil
}

func (o *Orchestrator) workloadPods(ctx context.Context, rec orchestrator.Record) ([]corev1.Pod, error) {
	selector := fmt.Sprintf("%s=%s", WorkloadLabel, rec.Name)
	list, err := o.clientset.CoreV1().Pods(rec.Namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list pods for %s %q", rec.Kind, rec.Name)
	}
	pods := list.Items
	if len(pods) == 0 && rec.Kind == "Job" {
		// Jobs label their pods with job-name even when the template carries
		// no workload label.
		list, err = o.clientset.CoreV1().Pods(rec.Namespace).List(ctx, metav1.ListOptions{
			LabelSelector: "job-name=" + rec.Name,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list pods for job %q", rec.Name)
		}
		pods = list.Items
	}
	sort.Slice(pods, func(i, j int) bool { return pods[i].Name < pods[j].Name })
	return pods, nil
}

func (o *Orchestrator) anyPodStarted(ctx context.Context, rec orchestrator.Record) (bool, error) {
	pods, err := o.workloadPods(ctx, rec)
	if err != nil {
		return false, err
	}
	for _, pod := range pods {
		if pod.Status.Phase == corev1.PodRunning || pod.Status.Phase == corev1.PodSucceeded || pod.Status.Phase == corev1.PodFailed {
			return true, nil
		}
	}
	return false, nil
}

// recentEvents collects the most recent warning events for the workload
// object into a single diagnostic line. Best effort; an empty string means
// no events were found or the lookup failed.
func (o *Orchestrator) recentEvents(ctx context.Context, rec orchestrator.Record) string {
	selector := fmt.Sprintf("involvedObject.name=%s,involvedObject.kind=%s", rec.Name, rec.Kind)
	list, err := o.clientset.CoreV1().Events(rec.Namespace).List(ctx, metav1.ListOptions{FieldSelector: selector})
	if err != nil {
		logging.Debug("failed to list events for %s %q: %v", rec.Kind, rec.Name, err)
		return ""
	}
	var parts []string
	for _, ev := range list.Items {
		if ev.Type != corev1.EventTypeWarning {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", ev.Reason, ev.Message))
	}
	if len(parts) > 3 {
		parts = parts[len(parts)-3:]
	}
	return strings.Join(parts, "; ")
}

func labelWorkload(obj *unstructured.Unstructured) {
	labels := obj.GetLabels()
	if labels == nil {
		labels = map[string]string{}
	}
	labels[WorkloadLabel] = obj.GetName()
	obj.SetLabels(labels)

	// Propagate the label onto known pod template paths so that spawned pods
	// are selectable too. Missing paths are skipped.
	for _, path := range [][]string{
		{"spec", "template", "metadata", "labels"},
		{"spec", "driver", "labels"},
		{"spec", "executor", "labels"},
	} {
		if _, found, err := unstructured.NestedMap(obj.Object, path[:len(path)-1]...); err != nil || !found {
			continue
		}
		_ = unstructured.SetNestedField(obj.Object, obj.GetName(), append(path, WorkloadLabel)...)
	}
}

func isRejection(err error) bool {
	return apierrors.IsInvalid(err) ||
		apierrors.IsBadRequest(err) ||
		apierrors.IsAlreadyExists(err) ||
		apierrors.IsForbidden(err) ||
		apierrors.IsNotFound(err) ||
		apierrors.IsRequestEntityTooLargeError(err)
}
