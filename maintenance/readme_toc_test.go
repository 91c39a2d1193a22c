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
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestReadMeTOC(t *testing.T) {
	c := qt.New(t)

	doc := `
# rlsr

## Configuration

Some text.

### Matrix builds

Some text.

## Publish targets
`

	toc, err := createToc(doc)
	c.Assert(err, qt.IsNil)

	c.Assert(strings.TrimSpace(toc), qt.Equals, "* [Configuration](#configuration)\n     * [Matrix builds](#matrix-builds)\n * [Publish targets](#publish-targets)")
}
