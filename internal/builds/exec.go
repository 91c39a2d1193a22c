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
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"runtime"

	"github.com/bep/helpers/envhelpers"
	"github.com/bep/logg"
	"github.com/rlsr/rlsr/internal/common/logging"
)

// CommandRunner runs an external command and returns its combined output.
type CommandRunner interface {
	RunCommand(ctx context.Context, env []string, name string, args ...string) (string, error)
}

// NewCommandRunner returns a CommandRunner that streams the command output to log line by line.
func NewCommandRunner(log logg.LevelLogger) CommandRunner {
	return &execRunner{log: log}
}

type execRunner struct {
	log logg.LevelLogger
}

func (r *execRunner) RunCommand(ctx context.Context, env []string, name string, args ...string) (string, error) {
	var buf bytes.Buffer
	lw := logging.NewLineWriter(r.log)
	defer lw.Close()

	out := io.MultiWriter(&buf, lw)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	if err != nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	return buf.String(), err
}

// ShellCommand returns the program and arguments that run script in the system shell.
func ShellCommand(script string) (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C", script}
	}
	return "sh", []string{"-c", script}
}

// Environ returns the OS environment with the given key=value pairs applied in order.
func Environ(vars ...string) []string {
	environ := os.Environ()
	var keyVals []string
	for _, v := range vars {
		key, val := envhelpers.SplitEnvVar(v)
		if key == "" {
			continue
		}
		keyVals = append(keyVals, key, val)
	}
	envhelpers.SetEnvVars(&environ, keyVals...)
	return environ
}
