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

	"github.com/spf13/cobra"

	"ezua-toolkit/pkg/logging"
)

func init() {
	rootCmd.AddCommand(templatesCmd)
	templatesCmd.AddCommand(templatesListCmd, templatesShowCmd, templatesImportCmd)
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manages the workload template library.",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists available templates and their parameters.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := newTemplateStore()
		names, err := store.List()
		if err != nil {
			return err
		}
		for _, name := range names {
			tmpl, err := store.Get(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, strings.Join(tmpl.Placeholders(), ", "))
		}
		return nil
	},
}

var templatesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Prints a template with its placeholders intact.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tmpl, err := newTemplateStore().Get(args[0])
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(tmpl.Raw())
		return err
	},
}

var templatesImportCmd = &cobra.Command{
	Use:   "import <source>",
	Short: "Imports templates into the library from a directory or URL.",
	Long: `Copies every template from the source into the configured template
library. The source may be a local directory or any go-getter URL
(git::https://..., https://... archives, s3::..., and so on).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newTemplateStore().Import(cmd.Context(), args[0]); err != nil {
			return err
		}
		logging.Info("Imported templates from %s into %s", args[0], cfg.TemplateLibrary)
		return nil
	},
}
