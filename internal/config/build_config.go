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

package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/bep/logg"
	"github.com/mitchellh/mapstructure"
	"github.com/rlsr/rlsr/internal/archives/archiveformats"
	"github.com/rlsr/rlsr/internal/builds/buildtypes"
	"github.com/rlsr/rlsr/internal/common/mapsh"
	"github.com/rlsr/rlsr/internal/model"
)

var _ model.Initializer = (*Build)(nil)

// Matrix axis names with a fixed meaning.
var matrixAxes = map[string]bool{
	"os":         true,
	"arch":       true,
	"arm":        true,
	"target":     true,
	"platforms":  true,
	"tags":       true,
	"cache_from": true,
	"cache_to":   true,
	"outputs":    true,
	"secrets":    true,
	"ssh":        true,
	"builder":    true,
	"context":    true,
	"dockerfile": true,
	"load":       true,
	"provenance": true,
	"sbom":       true,
}

// Prefixes of matrix axis names that insert into a buildx key/value map,
// e.g. build_args.GO_VERSION.
const (
	MatrixBuildArgsPrefix   = "build_args."
	MatrixLabelsPrefix      = "labels."
	MatrixAnnotationsPrefix = "annotations."
)

var MatrixMapPrefixes = []string{MatrixBuildArgsPrefix, MatrixLabelsPrefix, MatrixAnnotationsPrefix}

// IsKnownMatrixAxis reports whether name is folded into a build field.
// Other axis names are only available to templates.
func IsKnownMatrixAxis(name string) bool {
	if matrixAxes[name] {
		return true
	}
	for _, p := range MatrixMapPrefixes {
		if strings.HasPrefix(name, p) && len(name) > len(p) {
			return true
		}
	}
	return false
}

type Build struct {
	Name string `toml:"name" yaml:"name"`

	// custom (default) or buildx.
	Type string `toml:"type" yaml:"type"`

	Command string  `toml:"command" yaml:"command"`
	Buildx  *Buildx `toml:"buildx" yaml:"buildx"`

	Artifact    string `toml:"artifact" yaml:"artifact"`
	BinName     string `toml:"bin_name" yaml:"bin_name"`
	ArchiveName string `toml:"archive_name" yaml:"archive_name"`

	Os     string `toml:"os" yaml:"os"`
	Arch   string `toml:"arch" yaml:"arch"`
	Arm    string `toml:"arm" yaml:"arm"`
	Target string `toml:"target" yaml:"target"`

	// A list of axis groups, e.g. [{os = ["linux", "darwin"], arch = ["amd64", "arm64"]}].
	Matrix []map[string]any `toml:"matrix" yaml:"matrix"`

	Env      []string `toml:"env" yaml:"env"`
	PreHook  string   `toml:"prehook" yaml:"prehook"`
	PostHook string   `toml:"posthook" yaml:"posthook"`

	NoArchive       bool     `toml:"no_archive" yaml:"no_archive"`
	AdditionalFiles []string `toml:"additional_files" yaml:"additional_files"`
	ArchiveFormat   string   `toml:"archive_format" yaml:"archive_format"`

	// ArchiveMeta is archive format specific metadata.
	// The deb format reads maintainer, description, vendor, homepage and license from it.
	ArchiveMeta map[string]any `toml:"archive_meta" yaml:"archive_meta"`

	TypeParsed          buildtypes.Type       `toml:"-" yaml:"-"`
	ArchiveFormatParsed archiveformats.Format `toml:"-" yaml:"-"`
	MatrixParsed        []MatrixGroup         `toml:"-" yaml:"-"`

	// MatrixValues holds the axis values this build was expanded from.
	MatrixValues map[string]string `toml:"-" yaml:"-"`
}

func (b *Build) Init() error {
	what := fmt.Sprintf("builds: %q", b.Name)
	if b.Name == "" {
		return model.NewConfigError("builds", fmt.Errorf("build has no name"))
	}

	if b.Type == "" && b.Buildx != nil {
		b.Type = buildtypes.Buildx.String()
	}

	var err error
	if b.TypeParsed, err = buildtypes.Parse(b.Type); err != nil {
		return model.NewConfigError(what, err)
	}

	switch b.TypeParsed {
	case buildtypes.Custom:
		if b.Command == "" {
			return model.NewConfigError(what, fmt.Errorf("custom build has no command"))
		}
		if b.Buildx != nil {
			return model.NewConfigError(what, fmt.Errorf("custom build cannot have a buildx config"))
		}
	case buildtypes.Buildx:
		if b.Buildx == nil {
			return model.NewConfigError(what, fmt.Errorf("buildx build has no buildx config"))
		}
		if b.Command != "" {
			return model.NewConfigError(what, fmt.Errorf("buildx build cannot have a command"))
		}
	}

	if b.Artifact != "" && b.ArchiveName == "" {
		return model.NewConfigError(what, fmt.Errorf("build with an artifact needs an archive_name"))
	}

	if b.ArchiveFormatParsed, err = archiveformats.Parse(b.ArchiveFormat); err != nil {
		return model.NewConfigError(what, err)
	}

	b.MatrixParsed = nil
	for i, m := range b.Matrix {
		g, err := ParseMatrixGroup(m)
		if err != nil {
			return model.NewConfigError(what, fmt.Errorf("matrix group %d: %w", i, err))
		}
		if err := g.Validate(); err != nil {
			return model.NewConfigError(what, err)
		}
		b.MatrixParsed = append(b.MatrixParsed, g)
	}

	// Matrix values may still set load, tags or outputs.
	if b.Buildx != nil && len(b.MatrixParsed) == 0 {
		if err := b.Buildx.Validate(); err != nil {
			return model.NewConfigError(what, err)
		}
	}

	return nil
}

// Clone returns a deep copy of b.
func (b Build) Clone() Build {
	c := b
	c.Env = cloneStrings(b.Env)
	c.AdditionalFiles = cloneStrings(b.AdditionalFiles)
	c.ArchiveMeta = mapsh.Clone(b.ArchiveMeta)
	c.MatrixValues = mapsh.Clone(b.MatrixValues)
	if b.Matrix != nil {
		c.Matrix = make([]map[string]any, len(b.Matrix))
		for i, m := range b.Matrix {
			c.Matrix[i] = mapsh.Clone(m)
		}
	}
	if b.MatrixParsed != nil {
		c.MatrixParsed = make([]MatrixGroup, len(b.MatrixParsed))
		for i, g := range b.MatrixParsed {
			c.MatrixParsed[i] = g.clone()
		}
	}
	if b.Buildx != nil {
		bx := b.Buildx.Clone()
		c.Buildx = &bx
	}
	return c
}

// Fields is used by the logging framework.
func (b Build) Fields() logg.Fields {
	fields := logg.Fields{
		logg.Field{Name: "type", Value: b.TypeParsed},
	}
	if b.Os != "" {
		fields = append(fields, logg.Field{Name: "os", Value: b.Os})
	}
	if b.Arch != "" {
		fields = append(fields, logg.Field{Name: "arch", Value: b.Arch})
	}
	return fields
}

// MatrixGroup maps an axis name to its candidate values.
type MatrixGroup map[string][]string

// ParseMatrixGroup decodes an axis group from config.
// Scalar values of any type are converted to their string form, e.g. true becomes "true".
func ParseMatrixGroup(m map[string]any) (MatrixGroup, error) {
	g := MatrixGroup{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook:       scalarToStringHook,
		Result:           &g,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(m); err != nil {
		return nil, err
	}
	return g, nil
}

func scalarToStringHook(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String {
		return data, nil
	}
	switch v := data.(type) {
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}
	return data, nil
}

// Validate checks that g and all of its axes have values.
func (g MatrixGroup) Validate() error {
	if len(g) == 0 {
		return fmt.Errorf("matrix group is empty")
	}
	for _, axis := range mapsh.KeysSorted(g) {
		if len(g[axis]) == 0 {
			return fmt.Errorf("matrix axis %q has no values", axis)
		}
	}
	return nil
}

func (g MatrixGroup) clone() MatrixGroup {
	c := make(MatrixGroup, len(g))
	for k, v := range g {
		c[k] = cloneStrings(v)
	}
	return c
}

// Buildx configures a docker buildx build.
type Buildx struct {
	Builder     string            `toml:"builder" yaml:"builder"`
	Context     string            `toml:"context" yaml:"context"`
	Dockerfile  string            `toml:"dockerfile" yaml:"dockerfile"`
	Platforms   []string          `toml:"platforms" yaml:"platforms"`
	Tags        []string          `toml:"tags" yaml:"tags"`
	Load        bool              `toml:"load" yaml:"load"`
	BuildArgs   map[string]string `toml:"build_args" yaml:"build_args"`
	Labels      map[string]string `toml:"labels" yaml:"labels"`
	CacheFrom   []string          `toml:"cache_from" yaml:"cache_from"`
	CacheTo     []string          `toml:"cache_to" yaml:"cache_to"`
	Target      string            `toml:"target" yaml:"target"`
	Outputs     []string          `toml:"outputs" yaml:"outputs"`
	Provenance  *bool             `toml:"provenance" yaml:"provenance"`
	Sbom        *bool             `toml:"sbom" yaml:"sbom"`
	Secrets     []string          `toml:"secrets" yaml:"secrets"`
	SSH         []string          `toml:"ssh" yaml:"ssh"`
	Annotations map[string]string `toml:"annotations" yaml:"annotations"`
}

// Validate checks the rules that make a buildx invocation invalid.
func (b Buildx) Validate() error {
	if b.Load && len(b.Outputs) > 0 {
		return fmt.Errorf("cannot set both load and outputs")
	}
	if b.Load && len(b.Tags) == 0 {
		return fmt.Errorf("must set tags when load is true")
	}
	return nil
}

// Clone returns a deep copy of b.
func (b Buildx) Clone() Buildx {
	c := b
	c.Platforms = cloneStrings(b.Platforms)
	c.Tags = cloneStrings(b.Tags)
	c.CacheFrom = cloneStrings(b.CacheFrom)
	c.CacheTo = cloneStrings(b.CacheTo)
	c.Outputs = cloneStrings(b.Outputs)
	c.Secrets = cloneStrings(b.Secrets)
	c.SSH = cloneStrings(b.SSH)
	c.BuildArgs = mapsh.Clone(b.BuildArgs)
	c.Labels = mapsh.Clone(b.Labels)
	c.Annotations = mapsh.Clone(b.Annotations)
	if b.Provenance != nil {
		v := *b.Provenance
		c.Provenance = &v
	}
	if b.Sbom != nil {
		v := *b.Sbom
		c.Sbom = &v
	}
	return c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}
