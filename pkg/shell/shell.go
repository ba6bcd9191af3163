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

// Package shell wraps os/exec for the handful of places the toolkit shells
// out to a cluster CLI (kubectl). Commands are never run through a shell
// interpreter; arguments are passed verbatim.
package shell

import (
	"bytes"
	"math/rand"
	"os/exec"
	"strings"
	"time"
)

// Result captures the outcome of an executed command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Command is a pending external command, optionally with stdin attached.
type Command struct {
	name  string
	args  []string
	input string
}

// NewCommand prepares a command without running it.
func NewCommand(name string, args ...string) *Command {
	return &Command{name: name, args: args}
}

// SetInput attaches data to the command's stdin.
func (c *Command) SetInput(input string) {
	c.input = input
}

// String renders the command line for log messages.
func (c *Command) String() string {
	return strings.Join(append([]string{c.name}, c.args...), " ")
}

// Execute runs the command and waits for it to exit. A non-zero exit code is
// reported in the Result, not as an error; callers decide what is fatal.
func (c *Command) Execute() Result {
	cmd := exec.Command(c.name, c.args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if c.input != "" {
		cmd.Stdin = strings.NewReader(c.input)
	}

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
		} else {
			// The command could not be started at all (e.g. binary missing).
			res.ExitCode = -1
			if res.Stderr == "" {
				res.Stderr = err.Error()
			}
		}
	}
	return res
}

// ExecuteCommand runs name with args and returns the result.
func ExecuteCommand(name string, args ...string) Result {
	return NewCommand(name, args...).Execute()
}

// RandomString returns a random lowercase string of the given length,
// suitable for unique workload name suffixes.
func RandomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz"
	seededRand := rand.New(rand.NewSource(time.Now().UnixNano()))
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[seededRand.Intn(len(charset))]
	}
	return string(b)
}
