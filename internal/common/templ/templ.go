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

package templ

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"
	"unicode"

	"github.com/Masterminds/semver/v3"
)

// We add a limited set of useful funcs, mostly string handling, to the Go built-ins.
// The piped value is always the last argument, e.g. {{ .Meta.Tag | trimPrefix "v" }}.
var BuiltInFuncs = template.FuncMap{
	"upper": func(s string) string {
		return strings.ToUpper(s)
	},
	"lower": func(s string) string {
		return strings.ToLower(s)
	},
	"replace": func(old, new, s string) string {
		return strings.ReplaceAll(s, old, new)
	},
	"trimPrefix": func(prefix, s string) string {
		return strings.TrimPrefix(s, prefix)
	},
	"trimSuffix": func(suffix, s string) string {
		return strings.TrimSuffix(s, suffix)
	},
	"title": title,
	"split": func(sep, s string) []string {
		if sep == "" {
			return []string{s}
		}
		return strings.Split(s, sep)
	},
	"time": formatTime,
	"default": func(fallback, s string) string {
		if s == "" {
			return fallback
		}
		return s
	},
	"incMajor": func(s string) string {
		return bump(s, func(v *semver.Version) *semver.Version {
			return semver.New(v.Major()+1, 0, 0, "", "")
		})
	},
	"incMinor": func(s string) string {
		return bump(s, func(v *semver.Version) *semver.Version {
			return semver.New(v.Major(), v.Minor()+1, 0, "", "")
		})
	},
	"incPatch": func(s string) string {
		return bump(s, func(v *semver.Version) *semver.Version {
			return semver.New(v.Major(), v.Minor(), v.Patch()+1, "", "")
		})
	},
}

// Sprintt renders the Go template t with the given data in ctx.
func Sprintt(t string, ctx any) (string, error) {
	if !strings.Contains(t, "{{") {
		return t, nil
	}
	tmpl, err := template.New("").Funcs(BuiltInFuncs).Option("missingkey=zero").Parse(t)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %q: %w", t, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("failed to execute template %q: %w", t, err)
	}
	return buf.String(), nil
}

// SprinttAll renders every template in ts.
func SprinttAll(ts []string, ctx any) ([]string, error) {
	if ts == nil {
		return nil, nil
	}
	out := make([]string, len(ts))
	for i, t := range ts {
		s, err := Sprintt(t, ctx)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// IsTemplate reports whether s contains template actions.
func IsTemplate(s string) bool {
	return strings.Contains(s, "{{")
}

func title(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// formatTime formats s, an RFC3339 time or unix seconds, using the Go layout.
// Anything else is returned unchanged.
func formatTime(layout, s string) string {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC().Format(layout)
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC().Format(layout)
	}
	return s
}

// bump applies f to the semver in s keeping any v/V prefix.
// Values that are not versions are returned unchanged.
func bump(s string, f func(v *semver.Version) *semver.Version) string {
	prefix, raw := "", s
	if strings.HasPrefix(s, "v") || strings.HasPrefix(s, "V") {
		prefix, raw = s[:1], s[1:]
	}
	v, err := semver.StrictNewVersion(raw)
	if err != nil {
		return s
	}
	return prefix + f(v).String()
}
