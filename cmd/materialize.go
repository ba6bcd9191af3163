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
	"os"

	"github.com/spf13/cobra"

	"ezua-toolkit/pkg/logging"
)

var (
	materializeTemplateFile string
	materializeParamsFile   string
	materializeSetPairs     []string
	materializeOutput       string
)

func init() {
	rootCmd.AddCommand(materializeCmd)

	materializeCmd.Flags().StringVarP(&materializeTemplateFile, "file", "f", "", "Materialize a template file instead of a named library template.")
	materializeCmd.Flags().StringVarP(&materializeParamsFile, "params", "p", "", "YAML file providing template parameters.")
	materializeCmd.Flags().StringArrayVar(&materializeSetPairs, "set", nil, "Set a template parameter as key=value (repeatable, overrides --params).")
	materializeCmd.Flags().StringVarP(&materializeOutput, "output", "o", "", "Write the descriptor to this path instead of stdout.")
}

var materializeCmd = &cobra.Command{
	Use:   "materialize [template]",
	Short: "Materializes a workload template without submitting it.",
	Long: `Substitutes parameters into the named template (or the file given with
-f), validates the result, and prints the descriptor. Nothing is submitted;
the output can be reviewed, versioned, or applied later.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMaterializeCmd,
}

func runMaterializeCmd(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && materializeTemplateFile == "" {
		return fmt.Errorf("name a template or pass one with -f")
	}
	if len(args) == 1 && materializeTemplateFile != "" {
		return fmt.Errorf("cannot combine a template name with -f")
	}

	name := ""
	if len(args) == 1 {
		name = args[0]
	}
	tmpl, err := loadTemplate(newTemplateStore(), name, materializeTemplateFile)
	if err != nil {
		return err
	}
	d, err := materializeTemplate(tmpl, materializeParamsFile, materializeSetPairs)
	if err != nil {
		return err
	}

	if materializeOutput != "" {
		if err := os.WriteFile(materializeOutput, d.Bytes(), 0o644); err != nil {
			return fmt.Errorf("failed to write descriptor to %q: %w", materializeOutput, err)
		}
		logging.Info("Descriptor written to %s", materializeOutput)
		return nil
	}
	_, err = cmd.OutOrStdout().Write(d.Bytes())
	return err
}
