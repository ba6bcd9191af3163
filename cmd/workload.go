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
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ezua-toolkit/pkg/logging"
	"ezua-toolkit/pkg/orchestrator"
)

// kindAliases maps the workload kinds uactl submits to their API versions,
// keyed by the lowercase spelling accepted on the command line.
var kindAliases = map[string]struct {
	kind       string
	apiVersion string
}{
	"job":                       {"Job", "batch/v1"},
	"sparkapplication":          {"SparkApplication", "sparkoperator.k8s.io/v1beta2"},
	"spark":                     {"SparkApplication", "sparkoperator.k8s.io/v1beta2"},
	"scheduledsparkapplication": {"ScheduledSparkApplication", "sparkoperator.k8s.io/v1beta2"},
	"rayjob":                    {"RayJob", "ray.io/v1"},
	"workflow":                  {"Workflow", "argoproj.io/v1alpha1"},
}

var flagAPIVersion string

func addWorkloadFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagAPIVersion, "api-version", "", "API version of the workload kind, for kinds uactl does not know.")
}

// recordFromArgs rebuilds a submission record from "<kind> <name>" arguments.
func recordFromArgs(kindArg, name string) (orchestrator.Record, error) {
	alias, ok := kindAliases[strings.ToLower(kindArg)]
	if !ok && flagAPIVersion == "" {
		known := make([]string, 0, len(kindAliases))
		for k := range kindAliases {
			known = append(known, k)
		}
		return orchestrator.Record{}, fmt.Errorf("unknown workload kind %q; pass --api-version or use one of: %s",
			kindArg, strings.Join(known, ", "))
	}
	rec := orchestrator.Record{
		Name:      name,
		Namespace: cfg.Namespace,
	}
	if ok {
		rec.Kind = alias.kind
		rec.APIVersion = alias.apiVersion
	} else {
		rec.Kind = kindArg
	}
	if flagAPIVersion != "" {
		rec.APIVersion = flagAPIVersion
	}
	return rec, nil
}

func init() {
	rootCmd.AddCommand(statusCmd, logsCmd, deleteCmd)
	addWorkloadFlags(statusCmd)
	addWorkloadFlags(logsCmd)
	addWorkloadFlags(deleteCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status <kind> <name>",
	Short: "Reports the lifecycle phase of a submitted workload.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := recordFromArgs(args[0], args[1])
		if err != nil {
			return err
		}
		orch, err := newOrchestrator()
		if err != nil {
			return err
		}
		rec, err = orch.Status(cmd.Context(), rec)
		if err != nil {
			return err
		}
		if rec.Message != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", rec.ID(), rec.Phase, rec.Message)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", rec.ID(), rec.Phase)
		}
		return nil
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs <kind> <name>",
	Short: "Prints the logs of a submitted workload's pods.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := recordFromArgs(args[0], args[1])
		if err != nil {
			return err
		}
		orch, err := newOrchestrator()
		if err != nil {
			return err
		}
		return orch.Logs(cmd.Context(), rec, cmd.OutOrStdout())
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <kind> <name>",
	Short: "Removes a submitted workload from the cluster.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := recordFromArgs(args[0], args[1])
		if err != nil {
			return err
		}
		orch, err := newOrchestrator()
		if err != nil {
			return err
		}
		start := time.Now()
		if err := orch.Delete(cmd.Context(), rec); err != nil {
			return err
		}
		logging.Debug("Delete completed in %s", time.Since(start).Round(time.Millisecond))
		return nil
	},
}
