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

// Package imagebuilder assembles runner images without a Docker daemon:
// the build context is tarred, filtered by ignore patterns, and appended
// as a layer onto a base image which is then pushed to the platform
// registry.
package imagebuilder

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/go-containerregistry/pkg/compression"
	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
	"github.com/moby/patternmatcher"
	"github.com/moby/patternmatcher/ignorefile"

	"ezua-toolkit/pkg/logging"
	"ezua-toolkit/pkg/shell"
)

// DefaultIgnorePatterns are always excluded from the build context, on top
// of whatever the context's .dockerignore adds.
var DefaultIgnorePatterns = []string{
	".git",
	".ipynb_checkpoints",
	"__pycache__",
	"venv",
	".venv",
	"node_modules",
	"*.log",
	"tmp/",
	".DS_Store",
}

// Options describes one runner-image build.
type Options struct {
	// Registry is the push target prefix, e.g. "registry.ezua.example.com/workloads".
	Registry string
	// BaseImage is the image the context layer is appended onto.
	BaseImage string
	// ContextDir is the directory packed into the new layer.
	ContextDir string
	// Platform selects os/arch, e.g. "linux/amd64".
	Platform string
}

// Build creates the runner image and returns its full pushed reference.
// The tag combines the invoking user, a random prefix and a timestamp so
// repeated builds never collide.
func Build(opts Options) (string, error) {
	platform, err := parsePlatform(opts.Platform)
	if err != nil {
		return "", err
	}
	if opts.Registry == "" {
		return "", fmt.Errorf("no registry configured; set registry in the config file or pass --registry")
	}

	userName := os.Getenv("USER")
	if userName == "" {
		userName = "unknown"
	}
	tag := fmt.Sprintf("%s-%s", shell.RandomString(4), time.Now().Format("2006-01-02-15-04-05"))
	imageName := fmt.Sprintf("%s/%s-runner:%s", strings.TrimSuffix(opts.Registry, "/"), userName, tag)

	logging.Info("Building runner image %s", imageName)
	logging.Info("Base image: %s", opts.BaseImage)
	logging.Info("Build context: %s", opts.ContextDir)
	logging.Debug("Target platform: %s/%s", platform.OS, platform.Architecture)

	matcher, err := ReadDockerignorePatterns(opts.ContextDir, DefaultIgnorePatterns)
	if err != nil {
		return "", err
	}

	tempTarballPath, err := createFilteredTar(opts.ContextDir, matcher)
	if err != nil {
		return "", fmt.Errorf("failed to create filtered tarball: %w", err)
	}
	defer func() {
		os.Remove(tempTarballPath)
		logging.Debug("Cleaned up temporary tarball file: %s", tempTarballPath)
	}()

	tarLayer, err := tarball.LayerFromOpener(func() (io.ReadCloser, error) {
		file, openErr := os.Open(tempTarballPath)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open temporary tarball %q: %w", tempTarballPath, openErr)
		}
		return file, nil
	}, tarball.WithCompression(compression.GZip))
	if err != nil {
		return "", fmt.Errorf("failed to create layer from tarball: %w", err)
	}

	baseRef, err := name.ParseReference(opts.BaseImage)
	if err != nil {
		return "", fmt.Errorf("failed to parse base image reference %q: %w", opts.BaseImage, err)
	}
	baseImg, err := crane.Pull(baseRef.String(), crane.WithPlatform(&platform))
	if err != nil {
		return "", fmt.Errorf("failed to pull base image %q: %w", opts.BaseImage, err)
	}

	newImg, err := mutate.AppendLayers(baseImg, tarLayer)
	if err != nil {
		return "", fmt.Errorf("failed to append layer: %w", err)
	}

	imageRef, err := name.ParseReference(imageName)
	if err != nil {
		return "", fmt.Errorf("failed to parse new image reference %q: %w", imageName, err)
	}
	logging.Info("Pushing runner image to %s", imageName)
	if err := crane.Push(newImg, imageRef.String(), crane.WithPlatform(&platform)); err != nil {
		return "", fmt.Errorf("failed to push image %q: %w", imageName, err)
	}

	logging.Info("Runner image %s built and pushed.", imageName)
	return imageName, nil
}

// parsePlatform converts a platform string (e.g., "linux/amd64") into a v1.Platform struct.
func parsePlatform(platformStr string) (v1.Platform, error) {
	parts := strings.Split(platformStr, "/")
	if len(parts) != 2 {
		return v1.Platform{}, fmt.Errorf("invalid platform format: %q, expected \"os/arch\"", platformStr)
	}
	return v1.Platform{
		OS:           parts[0],
		Architecture: parts[1],
	}, nil
}

// ReadDockerignorePatterns layers the context's .dockerignore over the
// default exclusions. A missing .dockerignore is fine.
func ReadDockerignorePatterns(dir string, defaultPatterns []string) (*patternmatcher.PatternMatcher, error) {
	dockerignorePath := filepath.Join(dir, ".dockerignore")

	patterns := make([]string, len(defaultPatterns))
	copy(patterns, defaultPatterns)

	if _, err := os.Stat(dockerignorePath); err == nil {
		file, err := os.Open(dockerignorePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open .dockerignore file %q: %w", dockerignorePath, err)
		}
		defer file.Close()

		filePatterns, err := ignorefile.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read .dockerignore file %q: %w", dockerignorePath, err)
		}
		patterns = append(patterns, filePatterns...)
		logging.Debug("Found %d patterns in .dockerignore at %q", len(filePatterns), dockerignorePath)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat .dockerignore file %q: %w", dockerignorePath, err)
	}

	matcher, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("failed to create pattern matcher: %w", err)
	}
	return matcher, nil
}

// processTarEntry processes a single file or directory for tarball creation.
func processTarEntry(tarWriter *tar.Writer, sourceDir string, ignoreMatcher *patternmatcher.PatternMatcher, path string, info fs.FileInfo, errFromWalk error) error {
	if errFromWalk != nil {
		return errFromWalk
	}

	relPath, err := filepath.Rel(sourceDir, path)
	if err != nil {
		return fmt.Errorf("failed to get relative path for %q: %w", path, err)
	}
	if relPath == "." {
		return nil
	}

	// Directory patterns only match paths carrying the trailing slash.
	relPathSlash := filepath.ToSlash(relPath)
	if info.IsDir() && !strings.HasSuffix(relPathSlash, "/") {
		relPathSlash += "/"
	}

	ignored, err := ignoreMatcher.MatchesOrParentMatches(relPathSlash)
	if err != nil {
		return fmt.Errorf("failed to check ignore patterns for %q: %w", path, err)
	}
	if ignored {
		logging.Debug("Ignoring %q", relPath)
		if info.IsDir() {
			return filepath.SkipDir
		}
		return nil
	}

	header, err := tar.FileInfoHeader(info, relPath)
	if err != nil {
		return fmt.Errorf("failed to create tar header for %q: %w", path, err)
	}
	header.Name = relPath

	if err := tarWriter.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header for %q: %w", path, err)
	}

	if info.Mode().IsRegular() {
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open file %q: %w", path, err)
		}
		defer file.Close()

		if _, err := io.Copy(tarWriter, file); err != nil {
			return fmt.Errorf("failed to write file content for %q: %w", path, err)
		}
	}

	return nil
}

func createFilteredTar(sourceDir string, ignoreMatcher *patternmatcher.PatternMatcher) (string, error) {
	tmpFile, err := os.CreateTemp("", "uactl-build-context-*.tar.gz")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file for tarball: %w", err)
	}
	defer tmpFile.Close()

	gzipWriter := gzip.NewWriter(tmpFile)
	tarWriter := tar.NewWriter(gzipWriter)

	logging.Debug("Creating filtered tar from %s to temporary file %s", sourceDir, tmpFile.Name())

	walkErr := filepath.Walk(sourceDir, func(path string, info fs.FileInfo, err error) error {
		return processTarEntry(tarWriter, sourceDir, ignoreMatcher, path, info, err)
	})

	// Close the writers before deciding the outcome; a close failure means
	// a truncated archive and must surface like any other write error.
	if closeErr := tarWriter.Close(); closeErr != nil && walkErr == nil {
		walkErr = fmt.Errorf("failed to close tar writer: %w", closeErr)
	}
	if closeErr := gzipWriter.Close(); closeErr != nil && walkErr == nil {
		walkErr = fmt.Errorf("failed to close gzip writer: %w", closeErr)
	}

	if walkErr != nil {
		os.Remove(tmpFile.Name())
		return "", walkErr
	}

	return tmpFile.Name(), nil
}
