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

package model

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

type Initializer interface {
	// Init initializes a config struct, that could be parsing of strings into Go objects, compiling of Glob patterns etc.
	// It returns an error if the initialization failed.
	Init() error
}

// TemplateMeta is the run wide template data.
// It is created once before any build starts and never modified.
type TemplateMeta struct {
	ProjectName string

	Tag         string
	PreviousTag string

	// Version is Tag without any leading "v".
	Version     string
	Major       uint64
	Minor       uint64
	Patch       uint64
	Prerelease  string

	FullCommit  string
	ShortCommit string
	Branch      string

	IsSnapshot   bool
	IsPrerelease bool
	IsDirty      bool

	Env map[string]string

	// Set when the run starts.
	Date      string
	Timestamp int64
	Now       time.Time
}

// BuildMeta is TemplateMeta plus the fields of the build being rendered.
type BuildMeta struct {
	TemplateMeta

	BuildName string
	Os        string
	Arch      string
	Arm       string
	Target    string

	// The axis values this build was expanded from.
	Matrix map[string]string
}

// ForBuild returns a BuildMeta copy of m.
func (m TemplateMeta) ForBuild() BuildMeta {
	return BuildMeta{TemplateMeta: m, Matrix: map[string]string{}}
}

// TemplateContext is the data passed to every template.
//
//	{{ .Meta.Tag }}, {{ .Meta.Matrix.os }}, {{ .Env.HOME }}
type TemplateContext struct {
	Meta      BuildMeta
	Env       map[string]string
	Date      string
	Timestamp int64
	Now       time.Time
}

// NewTemplateContext creates a new context for the given build meta.
func NewTemplateContext(m BuildMeta) TemplateContext {
	env := m.Env
	if env == nil {
		env = map[string]string{}
	}
	return TemplateContext{
		Meta:      m,
		Env:       env,
		Date:      m.Date,
		Timestamp: m.Timestamp,
		Now:       m.Now,
	}
}

// EnvMap returns the current OS environment as a map.
func EnvMap() map[string]string {
	m := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		if k == "" {
			continue
		}
		m[k] = v
	}
	return m
}

// ConfigError is returned for configuration problems found before any build starts.
type ConfigError struct {
	What string
	Err  error
}

func NewConfigError(what string, err error) *ConfigError {
	return &ConfigError{What: what, Err: err}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %v", e.What, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// FromMap converts m to T.
// See https://pkg.go.dev/github.com/mitchellh/mapstructure#section-readme
func FromMap[T any](m map[string]any) (T, error) {
	var t T
	err := mapstructure.WeakDecode(m, &t)
	return t, err
}
