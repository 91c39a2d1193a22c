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

package builds

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rlsr/rlsr/internal/common/mapsh"
	"github.com/rlsr/rlsr/internal/common/templ"
	"github.com/rlsr/rlsr/internal/config"
)

// RenderBuildx returns a copy of bx with every string rendered against ctx.
// Map keys and values are both rendered.
func RenderBuildx(bx config.Buildx, ctx any) (config.Buildx, error) {
	var err error
	r := bx.Clone()

	render := func(s *string) {
		if err != nil {
			return
		}
		*s, err = templ.Sprintt(*s, ctx)
	}
	renderAll := func(ss *[]string) {
		if err != nil {
			return
		}
		*ss, err = templ.SprinttAll(*ss, ctx)
	}
	renderMap := func(m *map[string]string) {
		if err != nil || *m == nil {
			return
		}
		rendered := make(map[string]string, len(*m))
		err = mapsh.RangeSorted(*m, func(k, v string) error {
			rk, err := templ.Sprintt(k, ctx)
			if err != nil {
				return err
			}
			rv, err := templ.Sprintt(v, ctx)
			if err != nil {
				return err
			}
			rendered[rk] = rv
			return nil
		})
		*m = rendered
	}

	render(&r.Builder)
	render(&r.Context)
	render(&r.Dockerfile)
	render(&r.Target)
	renderAll(&r.Platforms)
	renderAll(&r.Tags)
	renderAll(&r.CacheFrom)
	renderAll(&r.CacheTo)
	renderAll(&r.Outputs)
	renderAll(&r.Secrets)
	renderAll(&r.SSH)
	renderMap(&r.BuildArgs)
	renderMap(&r.Labels)
	renderMap(&r.Annotations)

	return r, err
}

// BuildxArgs returns the docker arguments for a buildx build of bx, starting with "buildx".
// bx is expected to be rendered.
func BuildxArgs(bx config.Buildx) ([]string, error) {
	if err := bx.Validate(); err != nil {
		return nil, err
	}

	args := []string{"buildx", "build"}

	if bx.Builder != "" {
		args = append(args, "--builder", bx.Builder)
	}

	dockerfile := bx.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}
	args = append(args, "--file", dockerfile)

	if len(bx.Platforms) > 0 {
		args = append(args, "--platform", strings.Join(bx.Platforms, ","))
	}
	for _, tag := range bx.Tags {
		args = append(args, "--tag", tag)
	}
	if bx.Load {
		args = append(args, "--load")
	}
	args = appendKeyValues(args, "--build-arg", bx.BuildArgs)
	args = appendKeyValues(args, "--label", bx.Labels)
	for _, v := range bx.CacheFrom {
		args = append(args, "--cache-from", v)
	}
	for _, v := range bx.CacheTo {
		args = append(args, "--cache-to", v)
	}
	if bx.Target != "" {
		args = append(args, "--target", bx.Target)
	}
	for _, v := range bx.Outputs {
		args = append(args, "--output", v)
	}
	if bx.Provenance != nil {
		args = append(args, "--provenance="+strconv.FormatBool(*bx.Provenance))
	}
	if bx.Sbom != nil {
		args = append(args, "--sbom="+strconv.FormatBool(*bx.Sbom))
	}
	for _, v := range bx.Secrets {
		args = append(args, "--secret", v)
	}
	for _, v := range bx.SSH {
		args = append(args, "--ssh", v)
	}
	args = appendKeyValues(args, "--annotation", bx.Annotations)

	buildContext := bx.Context
	if buildContext == "" {
		buildContext = "."
	}
	args = append(args, buildContext)

	return args, nil
}

func appendKeyValues(args []string, flag string, m map[string]string) []string {
	for _, k := range mapsh.KeysSorted(m) {
		args = append(args, flag, k+"="+m[k])
	}
	return args
}

// EnsureBuilder creates the named buildx builder and switches to it.
// If the builder already exists it is selected instead.
func EnsureBuilder(ctx context.Context, runner CommandRunner, env []string, builder string) error {
	out, err := runner.RunCommand(ctx, env, "docker", "buildx", "create", "--name", builder, "--use")
	if err == nil {
		return nil
	}
	if !builderExists(out) {
		return fmt.Errorf("create buildx builder %q: %w: %s", builder, err, strings.TrimSpace(out))
	}
	if out, err := runner.RunCommand(ctx, env, "docker", "buildx", "use", builder); err != nil {
		return fmt.Errorf("use buildx builder %q: %w: %s", builder, err, strings.TrimSpace(out))
	}
	return nil
}

func builderExists(output string) bool {
	s := strings.ToLower(output)
	return strings.Contains(s, "already exists") ||
		strings.Contains(s, "existing builder") ||
		strings.Contains(s, "existing instance") ||
		(strings.Contains(s, "exists") && strings.Contains(s, "builder"))
}
