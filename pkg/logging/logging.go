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

// Package logging routes all user-facing toolkit output through a single
// logrus logger so that commands never write to stdout/stderr directly.
package logging

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var logger = logrus.New()

func init() {
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
		ForceColors:            isatty.IsTerminal(os.Stderr.Fd()),
	})
}

// Configure adjusts log verbosity and coloring. It is called once by the
// root command after flag parsing.
func Configure(verbose bool, noColor bool) {
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	if noColor || !isatty.IsTerminal(os.Stderr.Fd()) {
		color.NoColor = true
		logger.SetFormatter(&logrus.TextFormatter{
			DisableTimestamp:       true,
			DisableLevelTruncation: true,
			DisableColors:          true,
		})
	}
}

// Debug logs at debug level; shown only with --verbose.
func Debug(format string, args ...any) {
	logger.Debugf(format, args...)
}

// Info logs progress messages.
func Info(format string, args ...any) {
	logger.Infof(format, args...)
}

// Warn logs recoverable problems.
func Warn(format string, args ...any) {
	logger.Warnf(format, args...)
}

// Error logs failures that the caller will surface separately.
func Error(format string, args ...any) {
	logger.Errorf(format, args...)
}

// Fatal logs the message and terminates the process with exit code 1.
func Fatal(format string, args ...any) {
	logger.Fatalf(format, args...)
}
