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

package resolver

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// envPrefix marks process environment variables that feed the context:
// UACTL_PARAM_DRIVER_MEMORY provides the "driver_memory" token.
const envPrefix = "UACTL_PARAM_"

// BuildContext assembles a resolution context from, in rising precedence,
// process environment variables, an optional YAML parameter file, and
// key=value pairs from --set flags.
func BuildContext(environ []string, paramsFile []byte, setPairs []string) (Context, error) {
	ctx := Context{}

	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, envPrefix) {
			continue
		}
		token := strings.ToLower(strings.TrimPrefix(k, envPrefix))
		if token != "" {
			ctx[token] = v
		}
	}

	if len(paramsFile) > 0 {
		// Scalars like `replicas: 2` arrive untyped; everything becomes a
		// string before rule validation.
		var fromFile map[string]interface{}
		if err := yaml.Unmarshal(paramsFile, &fromFile); err != nil {
			return nil, fmt.Errorf("malformed parameter file: %w", err)
		}
		for k, v := range fromFile {
			ctx[k] = fmt.Sprint(v)
		}
	}

	for _, pair := range setPairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("malformed --set value %q, expected key=value", pair)
		}
		ctx[k] = v
	}

	return ctx, nil
}
