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

package template

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPlaceholders(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "distinct sorted tokens",
			raw:  "metadata:\n  name: <name>\nspec:\n  image: <image>\n  cpu: <workload_cpu>\n",
			want: []string{"image", "name", "workload_cpu"},
		},
		{
			name: "repeated token counted once",
			raw:  "a: <name>\nb: <name>\nc: <name>\n",
			want: []string{"name"},
		},
		{
			name: "no tokens",
			raw:  "a: 1\nb: two\n",
			want: []string{},
		},
		{
			name: "angle brackets that are not tokens",
			raw:  "a: <2Gi>\nb: <Name>\nc: x<y\n",
			want: []string{},
		},
		{
			name: "token embedded in a longer value",
			raw:  "image: registry.local/<username>-runner:latest\n",
			want: []string{"username"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := New("test", []byte(tt.raw))
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, tmpl.Placeholders()); diff != "" {
				t.Errorf("Placeholders mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewRejectsEmpty(t *testing.T) {
	if _, err := New("empty", nil); err == nil {
		t.Errorf("Expected error for empty template")
	}
}

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		values map[string]string
		want   string
	}{
		{
			name:   "plain substitution",
			raw:    "name: <name>\nimage: <image>\n",
			values: map[string]string{"name": "etl", "image": "runner:v1"},
			want:   "name: etl\nimage: runner:v1\n",
		},
		{
			name:   "value containing another token is literal",
			raw:    "cmd: <command>\ngreeting: <greeting>\n",
			values: map[string]string{"command": "echo <greeting>", "greeting": "hi"},
			want:   "cmd: echo <greeting>\ngreeting: hi\n",
		},
		{
			name:   "unknown token stays in place",
			raw:    "a: <known>\nb: <unknown>\n",
			values: map[string]string{"known": "x"},
			want:   "a: x\nb: <unknown>\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(Substitute([]byte(tt.raw), tt.values))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Substitute mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRawIsACopy(t *testing.T) {
	tmpl, err := New("test", []byte("a: <name>\n"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	raw := tmpl.Raw()
	raw[0] = 'z'
	if string(tmpl.Raw()) != "a: <name>\n" {
		t.Errorf("Mutating Raw() result must not affect the template")
	}
}
