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
	"fmt"

	"github.com/spf13/cobra"

	"ezua-toolkit/pkg/imagebuilder"
	"ezua-toolkit/pkg/logging"
	"ezua-toolkit/pkg/orchestrator"
	"ezua-toolkit/pkg/orchestrator/kube"
)

var (
	submitTemplateFile string
	submitParamsFile   string
	submitSetPairs     []string
	submitWait         bool
	submitBaseImage    string
	submitBuildContext string
	submitPlatform     string
)

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringVarP(&submitTemplateFile, "file", "f", "", "Submit a template file instead of a named library template.")
	submitCmd.Flags().StringVarP(&submitParamsFile, "params", "p", "", "YAML file providing template parameters.")
	submitCmd.Flags().StringArrayVar(&submitSetPairs, "set", nil, "Set a template parameter as key=value (repeatable, overrides --params).")
	submitCmd.Flags().BoolVarP(&submitWait, "wait", "w", false, "Poll the workload to a terminal phase before returning.")
	submitCmd.Flags().StringVar(&submitBaseImage, "base-image", "", "Build the runner image on top of this base before submitting. Requires --build-context.")
	submitCmd.Flags().StringVarP(&submitBuildContext, "build-context", "c", "", "Build context directory for --base-image.")
	submitCmd.Flags().StringVar(&submitPlatform, "platform", "linux/amd64", "Target platform for the runner image build.")
}

var submitCmd = &cobra.Command{
	Use:   "submit [template]",
	Short: "Materializes a workload template and submits it to the cluster.",
	Long: `Materializes the named template (or the file given with -f) with the
provided parameters and submits the resulting descriptor. With --wait the
command polls the workload and exits 0 only when it succeeds.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSubmitCmd,
}

func runSubmitCmd(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && submitTemplateFile == "" {
		return fmt.Errorf("name a template or pass one with -f")
	}
	if len(args) == 1 && submitTemplateFile != "" {
		return fmt.Errorf("cannot combine a template name with -f")
	}
	if (submitBaseImage == "") != (submitBuildContext == "") {
		return fmt.Errorf("--base-image and --build-context must be given together")
	}

	name := ""
	if len(args) == 1 {
		name = args[0]
	}
	tmpl, err := loadTemplate(newTemplateStore(), name, submitTemplateFile)
	if err != nil {
		return err
	}

	setPairs := submitSetPairs
	if submitBaseImage != "" {
		image, err := imagebuilder.Build(imagebuilder.Options{
			Registry:   cfg.Registry,
			BaseImage:  submitBaseImage,
			ContextDir: submitBuildContext,
			Platform:   submitPlatform,
		})
		if err != nil {
			return err
		}
		setPairs = append(append([]string{}, setPairs...), "image="+image)
	}

	d, err := materializeTemplate(tmpl, submitParamsFile, setPairs)
	if err != nil {
		return err
	}

	orch, err := newOrchestrator()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if prereq, ok := kube.TemplatePrereqs[tmpl.Name()]; ok && !flagViaKubectl {
		if ko, ok := orch.(*kube.Orchestrator); ok {
			if err := ko.EnsureCRD(ctx, prereq); err != nil {
				return err
			}
		}
	}

	rec, err := orch.Submit(ctx, d)
	if err != nil {
		return err
	}
	logging.Info("Submitted %s %q to namespace %q", rec.Kind, rec.Name, rec.Namespace)

	if !submitWait {
		fmt.Fprintln(cmd.OutOrStdout(), rec.ID())
		return nil
	}

	rec, err = orchestrator.AwaitTerminal(ctx, orch, rec, awaitOptions())
	if err != nil {
		return err
	}
	logging.Info("Workload %q finished: %s", rec.Name, rec.Phase)
	if rec.Phase == orchestrator.PhaseFailed {
		return &workloadFailedError{rec: rec}
	}
	return nil
}
