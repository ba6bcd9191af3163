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

// Package cmd implements the uactl command line interface.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"ezua-toolkit/pkg/config"
	"ezua-toolkit/pkg/descriptor"
	"ezua-toolkit/pkg/logging"
	"ezua-toolkit/pkg/orchestrator"
	"ezua-toolkit/pkg/orchestrator/kube"
	"ezua-toolkit/pkg/orchestrator/kubectl"
	"ezua-toolkit/pkg/resolver"
	"ezua-toolkit/pkg/template"
)

// Exit codes surfaced to calling scripts; each maps one failure class.
const (
	exitOK                  = 0
	exitGeneric             = 1
	exitWorkloadFailed      = 2
	exitTimeout             = 3
	exitSubmissionRejected  = 4
	exitNotFoundOrParameter = 5
	exitInvalidDescriptor   = 6
)

var (
	flagConfig     string
	flagVerbose    bool
	flagNoColor    bool
	flagNamespace  string
	flagKubeconfig string
	flagViaKubectl bool

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "uactl",
	Short: "Submits parameterized analytics workloads to the platform cluster.",
	Long: `uactl materializes workload templates (Spark applications, batch jobs,
feature-store materializations) with typed parameters and submits them to the
cluster, polling each submission to a terminal phase.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Configure(flagVerbose, flagNoColor)
		loaded, err := config.Load(afero.NewOsFs(), flagConfig)
		if err != nil {
			return err
		}
		if flagNamespace != "" {
			loaded.Namespace = flagNamespace
		}
		if flagKubeconfig != "" {
			loaded.Kubeconfig = flagKubeconfig
		}
		cfg = loaded
		return nil
	},
}

func init() {
	// Accept snake_case spellings of multi-word flags.
	rootCmd.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Path to the uactl config file (default ~/"+config.DefaultFileName+").")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging.")
	pf.BoolVar(&flagNoColor, "no-color", false, "Disable colored log output.")
	pf.StringVarP(&flagNamespace, "namespace", "n", "", "Namespace to submit workloads into (overrides config).")
	pf.StringVar(&flagKubeconfig, "kubeconfig", "", "Path to the kubeconfig file (overrides config).")
	pf.BoolVar(&flagViaKubectl, "via-kubectl", false, "Submit through the kubectl binary instead of the API server.")
}

// workloadFailedError marks a submission that reached the Failed phase; it
// maps to its own exit code so scripts can tell workload failures from
// tooling failures.
type workloadFailedError struct {
	rec orchestrator.Record
}

func (e *workloadFailedError) Error() string {
	if e.rec.Message != "" {
		return fmt.Sprintf("workload %q failed: %s", e.rec.Name, e.rec.Message)
	}
	return fmt.Sprintf("workload %q failed", e.rec.Name)
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		logging.Error("%v", err)
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	var (
		notFound     *template.NotFoundError
		missingParam *resolver.MissingParameterError
		rejected     *orchestrator.SubmissionRejectedError
		timeout      *orchestrator.TimeoutError
		failed       *workloadFailedError
		invalid      *descriptor.InvalidDescriptorError
	)
	switch {
	case errors.As(err, &notFound), errors.As(err, &missingParam):
		return exitNotFoundOrParameter
	case errors.As(err, &invalid):
		return exitInvalidDescriptor
	case errors.As(err, &rejected):
		return exitSubmissionRejected
	case errors.As(err, &timeout):
		return exitTimeout
	case errors.As(err, &failed):
		return exitWorkloadFailed
	default:
		return exitGeneric
	}
}

// newOrchestrator picks the submission path: client-go by default, kubectl
// when --via-kubectl is set.
func newOrchestrator() (orchestrator.Orchestrator, error) {
	if flagViaKubectl {
		return kubectl.New(cfg.Kubeconfig, cfg.Namespace), nil
	}
	return kube.New(cfg.Kubeconfig, cfg.Namespace)
}

func newTemplateStore() *template.Store {
	return template.NewStore(afero.NewOsFs(), cfg.TemplateLibrary)
}

func awaitOptions() orchestrator.AwaitOptions {
	return orchestrator.AwaitOptions{
		Timeout:  cfg.Timeout.Std(),
		Interval: cfg.PollInterval.Std(),
	}
}

// loadTemplate fetches a template by name from the store, or from a file
// when -f was given.
func loadTemplate(store *template.Store, name, file string) (*template.Template, error) {
	if file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read template file %q: %w", file, err)
		}
		base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		return template.New(base, raw)
	}
	return store.Get(name)
}

// materializeTemplate resolves parameters against the template and builds
// the validated descriptor. Shared by submit and materialize.
func materializeTemplate(tmpl *template.Template, paramsFile string, setPairs []string) (*descriptor.Descriptor, error) {
	var fileContents []byte
	var err error
	if paramsFile != "" {
		fileContents, err = os.ReadFile(paramsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read parameter file %q: %w", paramsFile, err)
		}
	}
	params, err := resolver.BuildContext(os.Environ(), fileContents, setPairs)
	if err != nil {
		return nil, err
	}
	resolution, err := resolver.Resolve(tmpl, params)
	if err != nil {
		return nil, err
	}
	return descriptor.Materialize(tmpl, resolution)
}
