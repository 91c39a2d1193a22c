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

package main

import (
	"archive/zip"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"
)

func TestBasic(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testscripts/basic",
		Setup: func(env *testscript.Env) error {
			// Keep the developer's git and Docker config out of the tests.
			env.Setenv("GIT_CONFIG_NOSYSTEM", "1")
			env.Setenv("DOCKER_CONFIG", env.WorkDir)
			return nil
		},
	})
}

func TestMain(m *testing.M) {
	os.Exit(
		testscript.RunMain(m, map[string]func() int{
			// The main program.
			"rlsr": func() int {
				if err := parseAndRun(os.Args[1:]); err != nil {
					fmt.Fprintln(os.Stderr, err)
					return -1
				}
				return 0
			},

			// Helpers.
			"checkfile": func() int {
				// The built-in exists does not check for zero size files.
				args := os.Args[1:]
				var readonly, exec bool
			loop:
				for len(args) > 0 {
					switch args[0] {
					case "-readonly":
						readonly = true
						args = args[1:]
					case "-exec":
						exec = true
						args = args[1:]
					default:
						break loop
					}
				}
				if len(args) == 0 {
					fatalf("usage: checkfile [-readonly] [-exec] file...")
				}

				for _, filename := range args {
					fi, err := os.Stat(filename)
					if err != nil {
						fmt.Fprintf(os.Stderr, "stat %s: %v\n", filename, err)
						return -1
					}
					if fi.Size() == 0 {
						fmt.Fprintf(os.Stderr, "%s is empty\n", filename)
						return -1
					}
					if readonly && fi.Mode()&0o222 != 0 {
						fmt.Fprintf(os.Stderr, "%s is writable\n", filename)
						return -1
					}
					if exec && runtime.GOOS != "windows" && fi.Mode()&0o111 == 0 {
						fmt.Fprintf(os.Stderr, "%s is not executable\n", filename)
						return -1
					}
				}

				return 0
			},
			"ziplist": func() int {
				// Prints the sorted entry names of a zip archive.
				if len(os.Args) != 2 {
					fatalf("usage: ziplist file.zip")
				}
				zr, err := zip.OpenReader(os.Args[1])
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					return -1
				}
				defer zr.Close()
				var names []string
				for _, f := range zr.File {
					names = append(names, f.Name)
				}
				sort.Strings(names)
				fmt.Println(strings.Join(names, "\n"))
				return 0
			},
		}),
	)
}

func fatalf(format string, a ...any) {
	panic(fmt.Sprintf(format, a...))
}
