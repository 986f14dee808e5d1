// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/tilingut/internal/scoped"
	"github.com/gomlx/tilingut/pkg/casespec"
	"github.com/gomlx/tilingut/pkg/support/fsutil"
	"github.com/pkg/errors"
)

// ParseDefaultsSettings changes the renderers' default tables from settings, typically the
// contents of a flag set by the user.
// The settings are a list separated by ";": e.g.: "reduce_op=max;/DistributeBarrier/world_size=4".
//
// A parameter without scope is set at the root, shared by all renderers. A scoped parameter
// ("/<Renderer>/<key>", the leading separator is optional) only changes that renderer.
// The parameter must already have a value visible from the scope: its type is used to parse the
// new value. Shapes are given as "[a,b]" or "axb", integer lists as "1,2,3".
//
// For integer types, "_" is removed: it allows one to enter large numbers using it as a separator, like
// in Go. E.g.: 1_000_000 = 1000000.
//
// An entry "file:<path>" reads more settings from the file, one or more per line, where lines
// starting with "#" are comments.
//
// It returns the list of parameter paths set.
func ParseDefaultsSettings(params *scoped.Params, settings string) (paramsSet []string, err error) {
	for _, setting := range strings.Split(settings, ";") {
		paramsSet, err = parseDefaultsSetting(params, strings.TrimSpace(setting), paramsSet)
		if err != nil {
			return
		}
	}
	return
}

// splitParamPath splits "/Scope/key" into ("/Scope", "key"), and "key" into (root, "key").
func splitParamPath(params *scoped.Params, paramPath string) (scope, key string) {
	sep := params.Separator
	idx := strings.LastIndex(paramPath, sep)
	if idx < 0 {
		return sep, paramPath
	}
	scope, key = paramPath[:idx], paramPath[idx+len(sep):]
	if !strings.HasPrefix(scope, sep) {
		scope = sep + scope
	}
	return
}

func parseDefaultsSetting(params *scoped.Params, setting string, paramsSet []string) (newParamsSet []string, err error) {
	newParamsSet = paramsSet
	if setting == "" {
		return
	}
	if strings.HasPrefix(setting, "file:") {
		// Read parameters from a file.
		var filePath string
		filePath, err = fsutil.ReplaceTildeInDir(strings.TrimPrefix(setting, "file:"))
		if err != nil {
			return
		}
		var contents []byte
		contents, err = os.ReadFile(filePath)
		if err != nil {
			err = errors.Wrapf(err, "failed to read settings from file %q", filePath)
			return
		}
		for _, line := range strings.Split(string(contents), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			for _, setting := range strings.Split(line, ";") {
				newParamsSet, err = parseDefaultsSetting(params, strings.TrimSpace(setting), newParamsSet)
				if err != nil {
					return
				}
			}
		}
		return
	}

	paramPath, valueStr, ok := strings.Cut(setting, "=")
	if !ok {
		err = errors.Errorf("can't parse setting %q: each setting requires the format \"<param>=<value>\"", setting)
		return
	}
	paramPath, valueStr = strings.TrimSpace(paramPath), strings.TrimSpace(valueStr)
	scope, key := splitParamPath(params, paramPath)
	current, found := params.Get(scope, key)
	if !found {
		err = errors.Errorf("can't set default %q: %q has no default value in scope %q or its parents", paramPath, key, scope)
		return
	}

	var value any
	switch current.(type) {
	case int64, int:
		var v int64
		v, err = strconv.ParseInt(strings.ReplaceAll(valueStr, "_", ""), 10, 64)
		value = v
	case float64:
		var v float64
		v, err = strconv.ParseFloat(valueStr, 64)
		value = v
	case bool:
		var v bool
		v, err = strconv.ParseBool(valueStr)
		value = v
	case string:
		value = valueStr
	case casespec.Shape:
		shape := casespec.ParseDims(valueStr)
		if shape == nil {
			err = errors.New("not a shape")
		}
		value = shape
	case []int64:
		value = casespec.ParseIntList(strings.ReplaceAll(valueStr, "_", ""))
	default:
		err = errors.Errorf("don't know how to parse type %T", current)
	}
	if err != nil {
		err = errors.Wrapf(err, "failed to parse value %q for default %q (current value is %#v)", valueStr, paramPath, current)
		return
	}
	params.Set(scope, key, value)
	newParamsSet = append(newParamsSet, paramPath)
	return
}

// CreateDefaultsSettingsFlag creates a string flag with the given flagName (if empty it will be named
// "set") and with a description of the shared default values in params.
//
// The flag should be created before the call to `flags.Parse()`.
func CreateDefaultsSettingsFlag(params *scoped.Params, flagName string) *string {
	if flagName == "" {
		flagName = "set"
	}
	var parts []string
	parts = append(parts, fmt.Sprintf(
		`Override renderer default values. `+
			`It should be a list of elements "param=value" separated by ";". `+
			`Use "%[1]s<Renderer>%[1]s<param>" to change only one renderer. `+
			`It can also be given an entry like: "file:settings_file.txt", in `+
			`which case the file will be read and the settings will be parsed, `+
			`with new-lines working as ";" to separate settings and lines starting with "#" are considered comments. `+
			`See -list_defaults for all values. Shared defaults:`,
		params.Separator))
	params.Enumerate(func(scope, key string, value any) {
		if scope != params.Separator {
			return
		}
		parts = append(parts, fmt.Sprintf("%q: default value is %v", key, value))
	})
	usage := strings.Join(parts, "\n")
	var settings string
	flag.StringVar(&settings, flagName, "", usage)
	return &settings
}

// SprintDefaults pretty-prints all default values into a string.
func SprintDefaults(params *scoped.Params) string {
	var parts []string
	params.Enumerate(func(scope, key string, value any) {
		if scope == params.Separator {
			scope = ""
		}
		parts = append(parts, fmt.Sprintf("\t\"%s%s%s\": (%T) %v", scope, params.Separator, key, value, value))
	})
	return strings.Join(parts, "\n")
}

// SprintModifiedDefaults pretty-prints the values of the parameters set by ParseDefaultsSettings.
func SprintModifiedDefaults(params *scoped.Params, paramsSet []string) string {
	var parts []string
	paramsSet = slices.Clone(paramsSet)
	slices.Sort(paramsSet)
	paramsSet = slices.Compact(paramsSet)
	for _, paramPath := range paramsSet {
		value, found := params.Get(splitParamPath(params, paramPath))
		if !found {
			continue
		}
		parts = append(parts, fmt.Sprintf("\t%q: (%T) %v", paramPath, value, value))
	}
	return strings.Join(parts, "\n")
}
