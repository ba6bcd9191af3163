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

package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type ConfigSuite struct {
	fs afero.Fs
}

var _ = Suite(&ConfigSuite{})

func (s *ConfigSuite) SetUpTest(c *C) {
	s.fs = afero.NewMemMapFs()
	os.Unsetenv("UACTL_NAMESPACE")
	os.Unsetenv("UACTL_REGISTRY")
	os.Unsetenv("UACTL_KUBECONFIG")
	os.Unsetenv("UACTL_TEMPLATE_LIBRARY")
}

func (s *ConfigSuite) TestLoadFile(c *C) {
	content := `
namespace: analytics
registry: registry.ezua.example.com/workloads
templateLibrary: /opt/uactl/templates
pollInterval: 2s
timeout: 10m
`
	err := afero.WriteFile(s.fs, "/etc/uactl.yaml", []byte(content), 0644)
	c.Assert(err, IsNil)

	cfg, err := Load(s.fs, "/etc/uactl.yaml")
	c.Assert(err, IsNil)
	c.Check(cfg.Namespace, Equals, "analytics")
	c.Check(cfg.Registry, Equals, "registry.ezua.example.com/workloads")
	c.Check(cfg.TemplateLibrary, Equals, "/opt/uactl/templates")
	c.Check(cfg.PollInterval.Std(), Equals, 2*time.Second)
	c.Check(cfg.Timeout.Std(), Equals, 10*time.Minute)
}

func (s *ConfigSuite) TestExplicitFileMissing(c *C) {
	_, err := Load(s.fs, "/nowhere/uactl.yaml")
	c.Check(err, NotNil)
}

func (s *ConfigSuite) TestDefaults(c *C) {
	err := afero.WriteFile(s.fs, "/etc/uactl.yaml", []byte("namespace: demo\n"), 0644)
	c.Assert(err, IsNil)

	cfg, err := Load(s.fs, "/etc/uactl.yaml")
	c.Assert(err, IsNil)
	c.Check(cfg.Namespace, Equals, "demo")
	c.Check(cfg.PollInterval.Std(), Equals, 5*time.Second)
	c.Check(cfg.Timeout.Std(), Equals, 30*time.Minute)
}

func (s *ConfigSuite) TestEnvOverrides(c *C) {
	err := afero.WriteFile(s.fs, "/etc/uactl.yaml", []byte("namespace: demo\n"), 0644)
	c.Assert(err, IsNil)

	os.Setenv("UACTL_NAMESPACE", "override")
	os.Setenv("UACTL_REGISTRY", "registry.internal/jobs")
	defer os.Unsetenv("UACTL_NAMESPACE")
	defer os.Unsetenv("UACTL_REGISTRY")

	cfg, err := Load(s.fs, "/etc/uactl.yaml")
	c.Assert(err, IsNil)
	c.Check(cfg.Namespace, Equals, "override")
	c.Check(cfg.Registry, Equals, "registry.internal/jobs")
}

func (s *ConfigSuite) TestMalformedFile(c *C) {
	err := afero.WriteFile(s.fs, "/etc/uactl.yaml", []byte("timeout: not-a-duration\n"), 0644)
	c.Assert(err, IsNil)

	_, err = Load(s.fs, "/etc/uactl.yaml")
	c.Check(err, NotNil)
}
