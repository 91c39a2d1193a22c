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

package ioh

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestCopyFile(t *testing.T) {
	c := qt.New(t)

	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "a", "b", "dst.txt")

	c.Assert(os.WriteFile(src, []byte("hello"), 0o644), qt.IsNil)
	c.Assert(CopyFile(src, dst), qt.IsNil)

	b, err := os.ReadFile(dst)
	c.Assert(err, qt.IsNil)
	c.Assert(string(b), qt.Equals, "hello")

	c.Assert(CopyFile(filepath.Join(dir, "missing"), dst), qt.ErrorMatches, `open .*missing.*`)
	c.Assert(CopyFile(dir, dst), qt.ErrorMatches, `.*is a directory`)
}
