// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package assemble

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ManifestFileName is the name of the manifest written next to the translation unit.
const ManifestFileName = "manifest.yaml"

// SkippedRow records a row that didn't produce a case.
type SkippedRow struct {
	Index int    `yaml:"index"`
	Name  string `yaml:"name,omitempty"`
	Error string `yaml:"error"`
}

// Manifest describes one generation run.
type Manifest struct {
	RunID     string    `yaml:"run_id"`
	Operator  string    `yaml:"operator"`
	CreatedAt time.Time `yaml:"created_at"`
	Reference string    `yaml:"reference"`
	Sheet     string    `yaml:"sheet"`
	Output    string    `yaml:"output"`

	// Renderer is the registry name of the renderer used, and RendererSource the layer of the
	// selector that provided it (template, registry, default or built-in).
	Renderer       string `yaml:"renderer"`
	RendererSource string `yaml:"renderer_source"`
	Template       string `yaml:"template,omitempty"`

	Rows      int          `yaml:"rows"`
	Generated int          `yaml:"generated"`
	Skipped   []SkippedRow `yaml:"skipped,omitempty"`
}

// NewManifest returns a Manifest with a fresh run id.
func NewManifest(operator string, now time.Time) *Manifest {
	return &Manifest{
		RunID:     uuid.NewString(),
		Operator:  operator,
		CreatedAt: now,
	}
}

// Write writes the manifest as YAML to dir/manifest.yaml and returns the path.
func (m *Manifest) Write(dir string) (string, error) {
	contents, err := yaml.Marshal(m)
	if err != nil {
		return "", errors.Wrapf(err, "failed to encode manifest of run %s", m.RunID)
	}
	path := filepath.Join(dir, ManifestFileName)
	if err := writeFile(path, contents); err != nil {
		return "", err
	}
	return path, nil
}

// ReadManifest reads a manifest written by Manifest.Write.
func ReadManifest(path string) (*Manifest, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read manifest %q", path)
	}
	m := &Manifest{}
	if err := yaml.Unmarshal(contents, m); err != nil {
		return nil, errors.Wrapf(err, "failed to parse manifest %q", path)
	}
	return m, nil
}
