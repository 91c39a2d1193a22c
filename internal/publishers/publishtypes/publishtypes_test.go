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

package publishtypes

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestType(t *testing.T) {
	c := qt.New(t)

	c.Assert(MustParse("Github"), qt.Equals, GitHub)
	c.Assert(MustParse("gitlab"), qt.Equals, GitLab)
	c.Assert(MustParse("docker").String(), qt.Equals, "docker")
	c.Assert(MustParse("S3"), qt.Equals, S3)

	_, err := Parse("invalid")
	c.Assert(err, qt.ErrorMatches, "invalid publish type \"invalid\", must be one of .*")
	c.Assert(func() { MustParse("invalid") }, qt.PanicMatches, `invalid.*`)
}
