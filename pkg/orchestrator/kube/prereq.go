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
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	yamlv2 "gopkg.in/yaml.v2"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	sigsyaml "sigs.k8s.io/yaml"

	"ezua-toolkit/pkg/logging"
)

var crdResource = schema.GroupVersionResource{
	Group:    "apiextensions.k8s.io",
	Version:  "v1",
	Resource: "customresourcedefinitions",
}

// Prereq names a CRD a template depends on and where its operator manifests
// can be fetched from when the CRD is absent.
type Prereq struct {
	// CRDName is the full CRD name, e.g. "sparkapplications.sparkoperator.k8s.io".
	CRDName string
	// ManifestURL points at the multi-document install manifest.
	ManifestURL string
}

// TemplatePrereqs maps template names to the operator each one requires.
// Templates absent from the map need nothing beyond core APIs.
var TemplatePrereqs = map[string]Prereq{
	"spark-etl": {
		CRDName:     "sparkapplications.sparkoperator.k8s.io",
		ManifestURL: "https://raw.githubusercontent.com/kubeflow/spark-operator/v2.1.0/config/crd/bases/sparkoperator.k8s.io_sparkapplications.yaml",
	},
}

// EnsureCRD checks that the named CRD exists on the cluster and, when it
// does not, downloads and applies the operator manifests. The apply is
// idempotent: objects that already exist are left untouched.
func (o *Orchestrator) EnsureCRD(ctx context.Context, prereq Prereq) error {
	logging.Info("Checking for CRD %q...", prereq.CRDName)
	_, err := o.dyn.Resource(crdResource).Get(ctx, prereq.CRDName, metav1.GetOptions{})
	if err == nil {
		logging.Debug("CRD %q already installed", prereq.CRDName)
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return errors.Wrapf(err, "failed to check for CRD %q", prereq.CRDName)
	}

	logging.Info("CRD %q not found. Installing from %s", prereq.CRDName, prereq.ManifestURL)
	raw, err := downloadManifests(ctx, prereq.ManifestURL)
	if err != nil {
		return err
	}
	cleaned, err := cleanManifests(raw)
	if err != nil {
		return err
	}
	if err := o.applyManifests(ctx, cleaned); err != nil {
		return err
	}
	logging.Info("CRD %q installed.", prereq.CRDName)
	return nil
}

func downloadManifests(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build manifest request")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to download operator manifests")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download operator manifests: received status code %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// cleanManifests strips description fields from every document. Operator
// release manifests carry schema descriptions large enough to blow past the
// annotation size limit on server-side apply.
func cleanManifests(raw []byte) ([][]byte, error) {
	decoder := yamlv2.NewDecoder(bytes.NewReader(raw))
	var docs [][]byte

	for {
		var doc interface{}
		if err := decoder.Decode(&doc); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrap(err, "failed to decode manifest document")
		}
		if doc == nil {
			continue
		}
		if data, ok := doc.(map[interface{}]interface{}); ok {
			removeDescriptionFields(data)
		}
		cleaned, err := yamlv2.Marshal(doc)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal cleaned manifest")
		}
		docs = append(docs, cleaned)
	}
	return docs, nil
}

func removeDescriptionFields(data map[interface{}]interface{}) {
	for key, value := range data {
		if key == "description" {
			delete(data, key)
			continue
		}
		switch v := value.(type) {
		case map[interface{}]interface{}:
			removeDescriptionFields(v)
		case []interface{}:
			for _, item := range v {
				if itemMap, ok := item.(map[interface{}]interface{}); ok {
					removeDescriptionFields(itemMap)
				}
			}
		}
	}
}

func (o *Orchestrator) applyManifests(ctx context.Context, docs [][]byte) error {
	for _, doc := range docs {
		obj := &unstructured.Unstructured{}
		if err := sigsyaml.Unmarshal(doc, obj); err != nil {
			return errors.Wrap(err, "failed to parse manifest document")
		}
		if obj.GetKind() == "" {
			continue
		}
		if err := o.createManifestObject(ctx, obj); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) createManifestObject(ctx context.Context, obj *unstructured.Unstructured) error {
	gvr, err := manifestResource(obj)
	if err != nil {
		return err
	}

	var client dynamic.ResourceInterface = o.dyn.Resource(gvr)
	if ns := obj.GetNamespace(); ns != "" {
		client = o.dyn.Resource(gvr).Namespace(ns)
	}

	_, err = client.Create(ctx, obj, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		logging.Debug("%s %q already exists, skipping", obj.GetKind(), obj.GetName())
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "failed to create %s %q", obj.GetKind(), obj.GetName())
	}
	logging.Debug("Created %s %q", obj.GetKind(), obj.GetName())
	return nil
}

// manifestResource maps the kinds that appear in operator install manifests
// onto their REST resources. Plurals that do not follow the lowercase-plus-s
// rule are listed explicitly.
func manifestResource(obj *unstructured.Unstructured) (schema.GroupVersionResource, error) {
	gv, err := schema.ParseGroupVersion(obj.GetAPIVersion())
	if err != nil {
		return schema.GroupVersionResource{}, errors.Wrapf(err, "invalid apiVersion in manifest %q", obj.GetName())
	}
	plural, ok := manifestPlurals[obj.GetKind()]
	if !ok {
		plural = strings.ToLower(obj.GetKind()) + "s"
	}
	return gv.WithResource(plural), nil
}

var manifestPlurals = map[string]string{
	"CustomResourceDefinition":       "customresourcedefinitions",
	"ClusterRole":                    "clusterroles",
	"ClusterRoleBinding":             "clusterrolebindings",
	"Role":                           "roles",
	"RoleBinding":                    "rolebindings",
	"MutatingWebhookConfiguration":   "mutatingwebhookconfigurations",
	"ValidatingWebhookConfiguration": "validatingwebhookconfigurations",
	"NetworkPolicy":                  "networkpolicies",
	"Ingress":                        "ingresses",
}
