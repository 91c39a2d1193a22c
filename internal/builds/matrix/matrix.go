// Copyright 2026 The Rlsr Authors
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

// Package matrix expands builds with matrix axis groups into concrete builds.
package matrix

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rlsr/rlsr/internal/common/mapsh"
	"github.com/rlsr/rlsr/internal/config"
	"github.com/rlsr/rlsr/internal/model"
)

// Expand returns one build per matrix combination.
// Builds without a matrix are returned unchanged with empty matrix values.
// Each group is cross producted over its axes sorted by name, and the groups are appended in order.
// Expanded builds have their matrix cleared and carry the values they were created from.
func Expand(builds []config.Build) ([]config.Build, error) {
	var result []config.Build
	for _, b := range builds {
		expanded, err := expandBuild(b)
		if err != nil {
			return nil, model.NewConfigError(fmt.Sprintf("builds: %q", b.Name), err)
		}
		result = append(result, expanded...)
	}
	return result, nil
}

func expandBuild(b config.Build) ([]config.Build, error) {
	groups, err := groupsOf(b)
	if err != nil {
		return nil, err
	}

	if len(groups) == 0 {
		c := b.Clone()
		if c.MatrixValues == nil {
			c.MatrixValues = map[string]string{}
		}
		return []config.Build{c}, nil
	}

	var result []config.Build
	for _, g := range groups {
		for _, values := range crossProduct(g) {
			c := b.Clone()
			c.Matrix = nil
			c.MatrixParsed = nil
			c.MatrixValues = values
			for _, axis := range mapsh.KeysSorted(values) {
				if err := fold(&c, axis, values[axis]); err != nil {
					return nil, err
				}
			}
			if c.Buildx != nil {
				if err := c.Buildx.Validate(); err != nil {
					return nil, fmt.Errorf("matrix %v: %w", values, err)
				}
			}
			result = append(result, c)
		}
	}

	return result, nil
}

// groupsOf returns the validated matrix groups of b.
func groupsOf(b config.Build) ([]config.MatrixGroup, error) {
	if b.MatrixParsed != nil {
		for _, g := range b.MatrixParsed {
			if err := g.Validate(); err != nil {
				return nil, err
			}
		}
		return b.MatrixParsed, nil
	}

	var groups []config.MatrixGroup
	for i, m := range b.Matrix {
		g, err := config.ParseMatrixGroup(m)
		if err != nil {
			return nil, fmt.Errorf("matrix group %d: %w", i, err)
		}
		if err := g.Validate(); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// crossProduct returns every combination of the axis values in g.
// The last axis in sorted order varies fastest.
func crossProduct(g config.MatrixGroup) []map[string]string {
	axes := mapsh.KeysSorted(g)
	result := []map[string]string{{}}
	for _, axis := range axes {
		var next []map[string]string
		for _, partial := range result {
			for _, v := range g[axis] {
				m := mapsh.Clone(partial)
				m[axis] = v
				next = append(next, m)
			}
		}
		result = next
	}
	return result
}

// fold sets the build field that axis maps to.
// Unknown axes are only kept in the matrix values.
func fold(b *config.Build, axis, value string) error {
	if !config.IsKnownMatrixAxis(axis) {
		return nil
	}

	switch axis {
	case "os":
		b.Os = value
		return nil
	case "arch":
		b.Arch = value
		return nil
	case "arm":
		b.Arm = value
		return nil
	}

	bx := b.Buildx
	if bx == nil {
		if axis == "target" {
			b.Target = value
		}
		return nil
	}

	switch axis {
	case "target":
		bx.Target = value
	case "builder":
		bx.Builder = value
	case "context":
		bx.Context = value
	case "dockerfile":
		bx.Dockerfile = value
	case "platforms":
		bx.Platforms = []string{value}
	case "tags":
		bx.Tags = []string{value}
	case "cache_from":
		bx.CacheFrom = []string{value}
	case "cache_to":
		bx.CacheTo = []string{value}
	case "outputs":
		bx.Outputs = []string{value}
	case "secrets":
		bx.Secrets = []string{value}
	case "ssh":
		bx.SSH = []string{value}
	case "load":
		v, err := parseBool(axis, value)
		if err != nil {
			return err
		}
		bx.Load = v
	case "provenance":
		v, err := parseBool(axis, value)
		if err != nil {
			return err
		}
		bx.Provenance = &v
	case "sbom":
		v, err := parseBool(axis, value)
		if err != nil {
			return err
		}
		bx.Sbom = &v
	default:
		for _, prefix := range config.MatrixMapPrefixes {
			k, ok := strings.CutPrefix(axis, prefix)
			if !ok || k == "" {
				continue
			}
			switch prefix {
			case config.MatrixBuildArgsPrefix:
				bx.BuildArgs = setKey(bx.BuildArgs, k, value)
			case config.MatrixLabelsPrefix:
				bx.Labels = setKey(bx.Labels, k, value)
			case config.MatrixAnnotationsPrefix:
				bx.Annotations = setKey(bx.Annotations, k, value)
			}
			break
		}
	}

	return nil
}

func parseBool(axis, value string) (bool, error) {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("matrix axis %q: invalid bool %q", axis, value)
	}
	return v, nil
}

func setKey(m map[string]string, k, v string) map[string]string {
	if m == nil {
		m = make(map[string]string)
	}
	m[k] = v
	return m
}
