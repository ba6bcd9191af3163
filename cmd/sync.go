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

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"ezua-toolkit/pkg/featurestore"
	"ezua-toolkit/pkg/logging"
	"ezua-toolkit/pkg/orchestrator"
	"ezua-toolkit/pkg/resolver"
)

var (
	syncProject    string
	syncDefsDir    string
	syncImage      string
	syncEnd        string
	syncApplyOnly  bool
	syncCPU        string
	syncMemory     string
	syncTTLSeconds string
)

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVar(&syncProject, "project", "", "Feature-store project to synchronize. Required.")
	syncCmd.Flags().StringVarP(&syncDefsDir, "definitions", "d", "", "Directory of feature-view definition YAMLs. Required.")
	syncCmd.Flags().StringVar(&syncImage, "image", "", "Feast runner image for the materialization job. Required unless --apply-only.")
	syncCmd.Flags().StringVar(&syncEnd, "end", "", "Materialize through this RFC3339 time (default now).")
	syncCmd.Flags().BoolVar(&syncApplyOnly, "apply-only", false, "Apply definitions without materializing.")
	syncCmd.Flags().StringVar(&syncCPU, "cpu", "1", "CPU request for the materialization job.")
	syncCmd.Flags().StringVar(&syncMemory, "memory", "2Gi", "Memory request for the materialization job.")
	syncCmd.Flags().StringVar(&syncTTLSeconds, "ttl-seconds", "3600", "Seconds to retain the finished materialization job.")

	_ = syncCmd.MarkFlagRequired("project")
	_ = syncCmd.MarkFlagRequired("definitions")
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronizes feature-view definitions and materializes the gap.",
	Long: `Runs the two-phase feature-store synchronization: feature-view
definitions are applied to the project registry (a no-op when nothing
changed), then a materialization job is submitted covering the interval
since the registry's watermark. The watermark only advances when the job
succeeds, so a failed or interrupted sync can simply be re-run.`,
	Args: cobra.NoArgs,
	RunE: runSyncCmd,
}

func runSyncCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	defs, err := featurestore.LoadDefinitions(afero.NewOsFs(), syncDefsDir)
	if err != nil {
		return err
	}

	client, err := newClientset()
	if err != nil {
		return err
	}
	orch, err := newOrchestrator()
	if err != nil {
		return err
	}

	sync := featurestore.NewSync(client, newTemplateStore(), orch, cfg.Namespace, syncProject, resolver.Context{
		"image":        syncImage,
		"ttl_seconds":  syncTTLSeconds,
		"feast_cpu":    syncCPU,
		"feast_memory": syncMemory,
	})

	changed, err := sync.Apply(ctx, defs)
	if err != nil {
		return err
	}
	logging.Info("Applied %d definition(s); %d changed", len(defs), changed)

	if syncApplyOnly {
		return nil
	}
	if syncImage == "" {
		return fmt.Errorf("--image is required to materialize; pass --apply-only to skip")
	}

	end := time.Now().UTC()
	if syncEnd != "" {
		end, err = time.Parse(time.RFC3339, syncEnd)
		if err != nil {
			return fmt.Errorf("malformed --end %q: %w", syncEnd, err)
		}
	}

	rec, err := sync.MaterializeIncremental(ctx, end, awaitOptions())
	if errors.Is(err, featurestore.ErrUpToDate) {
		logging.Info("Nothing to materialize: %v", err)
		return nil
	}
	if err != nil {
		return err
	}
	if rec.Phase == orchestrator.PhaseFailed {
		return &workloadFailedError{rec: rec}
	}
	logging.Info("Feature store %q synchronized through %s", syncProject, end.Format(time.RFC3339))
	return nil
}

// newClientset builds the typed client the feature-store registry uses.
func newClientset() (kubernetes.Interface, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if cfg.Kubeconfig != "" {
		loadingRules.ExplicitPath = cfg.Kubeconfig
	}
	restCfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		loadingRules, &clientcmd.ConfigOverrides{}).ClientConfig()
	if err != nil {
		return nil, err
	}
	return kubernetes.NewForConfig(restCfg)
}
