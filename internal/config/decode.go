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
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/bep/helpers/envhelpers"
	"github.com/bep/varexpand"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var zeroType = reflect.TypeOf((*zeroer)(nil)).Elem()

// Format is the config file format.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatFromFilename returns the format for the given filename's extension.
func FormatFromFilename(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported config file extension %q, must be one of .toml, .yaml or .yml", filepath.Ext(filename))
	}
}

// DecodeFile decodes and initializes the config in filename.
func DecodeFile(filename string) (Config, error) {
	format, err := FormatFromFilename(filename)
	if err != nil {
		return Config{}, err
	}
	f, err := os.Open(filename)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return DecodeAndApplyDefaults(f, format)
}

// DecodeAndApplyDefaults first expand any environment variables in r (${var}),
// decodes it, applies default values and initializes it.
func DecodeAndApplyDefaults(r io.Reader, format Format) (Config, error) {
	cfg := &Config{}

	// Expand environment variables in the source.
	// This is not the most effective, but it's certianly very simple.
	// And the config files should be fairly small.
	var buf strings.Builder
	_, err := io.Copy(&buf, r)
	if err != nil {
		return *cfg, err
	}
	s := buf.String()

	s = varexpand.Expand(s, func(k string) string {
		return os.Getenv(k)
	})

	switch format {
	case FormatYAML:
		d := yaml.NewDecoder(strings.NewReader(s))
		d.KnownFields(true)
		if err := d.Decode(cfg); err != nil && err != io.EOF {
			return *cfg, err
		}
	default:
		d := toml.NewDecoder(strings.NewReader(s))
		d.DisallowUnknownFields()
		if err := d.Decode(cfg); err != nil {
			return *cfg, err
		}
	}

	// Merge build settings.
	// We may have build settings on all of project > release > build.
	// Note that this replaces any zero value as defined by isTruthfulValue,
	// meaning any value on the right will be used if the left is zero according to that definiton.
	for i := range cfg.Releases {
		shallowMerge(&cfg.Releases[i].BuildDefaults, cfg.BuildDefaults)
		for j := range cfg.Releases[i].Builds {
			shallowMerge(&cfg.Releases[i].Builds[j], cfg.Releases[i].BuildDefaults)
		}
	}

	if err := cfg.Init(); err != nil {
		return *cfg, err
	}

	return *cfg, nil
}

// LoadEnvFile reads KEY=VALUE lines from filename.
// Empty lines and lines starting with # are skipped.
func LoadEnvFile(filename string) (map[string]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	env := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v := envhelpers.SplitEnvVar(line)
		k = strings.TrimSpace(strings.TrimPrefix(k, "export "))
		if k == "" {
			continue
		}
		env[k] = strings.Trim(strings.TrimSpace(v), `"'`)
	}

	return env, scanner.Err()
}

type zeroer interface {
	IsZero() bool
}

// This is based on "thruthy" function used in the Hugo template system, reused for a slightly different domain.
// The only difference is that this function returns true for empty non-nil slices and maps.
//
// isTruthfulValue returns whether the given value has a meaningful truth value.
// This is based on template.IsTrue in Go's stdlib, but also considers
// IsZero and any interface value will be unwrapped before it's considered
// for truthfulness.
//
// Based on:
// https://github.com/golang/go/blob/178a2c42254166cffed1b25fb1d3c7a5727cada6/src/text/template/exec.go#L306
func isTruthfulValue(val reflect.Value) (truth bool) {
	val = indirectInterface(val)

	if !val.IsValid() {
		// Something like var x interface{}, never set. It's a form of nil.
		return
	}

	if val.Type().Implements(zeroType) {
		return !val.Interface().(zeroer).IsZero()
	}

	switch val.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice:
		return !val.IsNil()
	case reflect.String:
		truth = val.Len() > 0
	case reflect.Bool:
		truth = val.Bool()
	case reflect.Chan, reflect.Func, reflect.Ptr, reflect.Interface:
		truth = !val.IsNil()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		truth = val.Int() != 0
	case reflect.Struct:
		truth = true // Struct values are always true.
	default:
		return
	}

	return
}

// Based on: https://github.com/golang/go/blob/178a2c42254166cffed1b25fb1d3c7a5727cada6/src/text/template/exec.go#L931
func indirectInterface(v reflect.Value) reflect.Value {
	if v.Kind() != reflect.Interface {
		return v
	}
	if v.IsNil() {
		return reflect.Value{}
	}
	return v.Elem()
}

func shallowMerge(dst, src any) {
	dstv := reflect.ValueOf(dst)
	if dstv.Kind() != reflect.Ptr {
		panic("dst is not a pointer")
	}

	dstv = reflect.Indirect(dstv)
	srcv := reflect.Indirect(reflect.ValueOf(src))

	for i := 0; i < dstv.NumField(); i++ {
		v := dstv.Field(i)
		if !v.CanSet() {
			continue
		}
		if !isTruthfulValue(v) {
			v.Set(srcv.Field(i))
		}
	}
}
