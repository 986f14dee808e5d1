// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package render

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gomlx/tilingut/internal/scoped"
	"github.com/gomlx/tilingut/pkg/casespec"
	"github.com/gomlx/tilingut/pkg/support/fsutil"
	"github.com/gomlx/tilingut/pkg/support/xstrings"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

const (
	// TemplateDirEnv names the environment variable selecting the template directory.
	TemplateDirEnv = "CASE_TEMPLATE_DIR"

	// DefaultTemplateDir is looked up in the working directory and next to the executable.
	DefaultTemplateDir = "case-templates"
)

// Source tells which layer of the fallback chain answered a selection.
type Source string

const (
	// SourceTemplate: an overlay file from the template directory.
	SourceTemplate Source = "template"

	// SourceRegistry: the registry entry of the operator (exact or snake_case name).
	SourceRegistry Source = "registry"

	// SourceDefault: the registry's default entry, the operator has no renderer of its own.
	SourceDefault Source = "default"

	// SourceBuiltIn: the built-in renderer, after a template overlay failed to load.
	SourceBuiltIn Source = "built-in"
)

// Selection is the renderer chosen for one operator, with the helpers to call it with.
type Selection struct {
	Op       string
	Renderer Renderer
	Helpers  Helpers

	// Name is the canonical registry name of the renderer.
	Name   string
	Source Source

	// Path is the overlay file used, if Source is SourceTemplate.
	Path string
}

// Render renders one case with the selected renderer.
func (s *Selection) Render(spec *casespec.CaseSpec, idx int) (string, error) {
	return s.Renderer.Render(s.Op, spec, idx, s.Helpers)
}

// Overlay is the content of a template directory file (<Op>.yaml, <op_snake>.yaml or default.yaml).
type Overlay struct {
	// Renderer names the registry entry to use. If empty, the file stem is resolved instead, so
	// default.yaml selects DefaultName.
	Renderer string `yaml:"renderer"`

	// Defaults override the renderer's default table.
	Defaults map[string]any `yaml:"defaults"`

	// Hardware overrides fields of the renderer's hardware profile, keyed by their yaml names.
	Hardware map[string]any `yaml:"hardware"`

	// CompileInfo overrides the compile-info struct name.
	CompileInfo string `yaml:"compile_info"`
}

// LoadOverlay reads and validates an overlay file. Unknown top-level keys are an error.
func LoadOverlay(path string) (*Overlay, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read template overlay %q", path)
	}
	overlay := &Overlay{}
	dec := yaml.NewDecoder(bytes.NewReader(contents))
	dec.KnownFields(true)
	if err := dec.Decode(overlay); err != nil {
		return nil, errors.Wrapf(err, "failed to parse template overlay %q", path)
	}
	return overlay, nil
}

// Selector resolves operator names to renderers:
//
//  1. If a template directory exists, the first of <Op>.yaml, <op_snake>.yaml and default.yaml
//     (or .yml) found is loaded as an Overlay over the renderer it names (or its file stem).
//  2. Otherwise the registry is asked: exact name, then snake_case name, then DefaultName.
//  3. If an overlay fails to load, the built-in renderer is used and a warning is logged.
//
// Selections are cached per operator name. A Selector is safe for concurrent use.
type Selector struct {
	// Registry of renderers. NewSelector sets it to NewRegistry().
	Registry *Registry

	// TemplateDir is an explicit template directory, tried before $CASE_TEMPLATE_DIR and the
	// default locations.
	TemplateDir string

	// Defaults replaces the built-in default tables, if set. It must not be modified once
	// selections are made.
	Defaults *scoped.Params

	mu    sync.Mutex
	cache map[string]*Selection
}

// NewSelector returns a Selector over the built-in registry.
func NewSelector(templateDir string) *Selector {
	return &Selector{
		Registry:    NewRegistry(),
		TemplateDir: templateDir,
	}
}

// TemplateRoot returns the template directory in use, or "" if there is none.
//
// Candidates, first existing directory wins: TemplateDir, $CASE_TEMPLATE_DIR, ./case-templates.
// Relative candidates are also tried next to the executable.
func (s *Selector) TemplateRoot() string {
	exeDir := fsutil.ExecutableDir()
	if s.TemplateDir != "" && fsutil.FirstDir([]string{s.TemplateDir}, exeDir) == "" {
		klog.Warningf("template directory %q not found", s.TemplateDir)
	}
	candidates := []string{s.TemplateDir, os.Getenv(TemplateDirEnv), DefaultTemplateDir}
	return fsutil.FirstDir(candidates, exeDir)
}

// overlayCandidates lists the files probed in the template directory, in order.
func overlayCandidates(op string) []string {
	var names []string
	for _, stem := range []string{op, xstrings.SnakeFromCamel(op), DefaultName} {
		names = append(names, stem+".yaml", stem+".yml")
	}
	return names
}

// Select returns the renderer for op. It never fails: the last resort is BuiltIn.
func (s *Selector) Select(op string) *Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sel, found := s.cache[op]; found {
		return sel
	}
	if s.Registry == nil {
		s.Registry = NewRegistry()
	}
	if s.cache == nil {
		s.cache = make(map[string]*Selection)
	}
	sel := s.resolve(op)
	klog.V(1).Infof("operator %q: renderer %s (source %s%s)", op, sel.Name, sel.Source, pathSuffix(sel.Path))
	s.cache[op] = sel
	return sel
}

func pathSuffix(path string) string {
	if path == "" {
		return ""
	}
	return ", " + path
}

func (s *Selector) resolve(op string) *Selection {
	if root := s.TemplateRoot(); root != "" {
		for _, name := range overlayCandidates(op) {
			path := filepath.Join(root, name)
			klog.V(2).Infof("probing template %q", path)
			if !fsutil.IsFile(path) {
				continue
			}
			sel, err := s.fromOverlay(op, path)
			if err != nil {
				klog.Warningf("operator %q: template %q failed to load, using the built-in renderer: %v", op, path, err)
				return s.builtIn(op)
			}
			return sel
		}
	}
	renderer, name, isDefault := s.Registry.Resolve(op)
	sel := &Selection{Op: op, Renderer: renderer, Helpers: s.helpers(), Name: name, Source: SourceRegistry}
	if isDefault {
		sel.Source = SourceDefault
	}
	return sel
}

func (s *Selector) builtIn(op string) *Selection {
	return &Selection{
		Op:       op,
		Renderer: BuiltIn(),
		Helpers:  s.helpers(),
		Name:     allGatherMatmulOp.Name,
		Source:   SourceBuiltIn,
	}
}

// helpers returns DefaultHelpers, with the Selector's default tables if set.
func (s *Selector) helpers() Helpers {
	helpers := DefaultHelpers()
	if s.Defaults != nil {
		helpers.Defaults = s.Defaults
	}
	return helpers
}

// fromOverlay builds the selection described by the overlay file at path.
func (s *Selector) fromOverlay(op, path string) (*Selection, error) {
	overlay, err := LoadOverlay(path)
	if err != nil {
		return nil, err
	}
	var (
		renderer Renderer
		name     string
	)
	if overlay.Renderer != "" {
		var found bool
		renderer, name, found = s.Registry.Lookup(overlay.Renderer)
		if !found {
			return nil, errors.Errorf("unknown renderer %q", overlay.Renderer)
		}
	} else {
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		renderer, name, _ = s.Registry.Resolve(stem)
	}

	helpers := s.helpers()
	base := HardwareDefault
	scope := "/" + name
	if def, ok := renderer.(*opDef); ok {
		base = def.Hardware
		scope = def.Scope()
	}
	if len(overlay.Defaults) > 0 {
		helpers.Defaults = helpers.Defaults.Clone()
		helpers.Scope = scope + "/overlay"
		helpers.Defaults.SetAll(helpers.Scope, overlay.Defaults)
	}
	if len(overlay.Hardware) > 0 {
		hw, err := base.Overridden(overlay.Hardware)
		if err != nil {
			return nil, err
		}
		helpers.Hardware = &hw
	}
	if overlay.CompileInfo != "" {
		helpers.CompileInfo = xstrings.SanitizeIdentifier(overlay.CompileInfo, "")
	}
	return &Selection{
		Op:       op,
		Renderer: renderer,
		Helpers:  helpers,
		Name:     name,
		Source:   SourceTemplate,
		Path:     path,
	}, nil
}
