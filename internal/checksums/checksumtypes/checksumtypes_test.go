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

package checksumtypes

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestParse(t *testing.T) {
	c := qt.New(t)

	c.Assert(MustParse("sha256"), qt.Equals, SHA256)
	c.Assert(MustParse("SHA512"), qt.Equals, SHA512)
	c.Assert(MustParse("sha3-256"), qt.Equals, SHA3_256)
	c.Assert(MustParse("sha3_256"), qt.Equals, SHA3_256)
	c.Assert(MustParse("sha3_512").String(), qt.Equals, "sha3-512")
	c.Assert(MustParse("blake2b"), qt.Equals, Blake2b)
	c.Assert(MustParse("blake2s"), qt.Equals, Blake2s)
	c.Assert(MustParse("md5"), qt.Equals, MD5)
	c.Assert(MustParse("sha1"), qt.Equals, SHA1)

	_, err := Parse("crc32")
	c.Assert(err, qt.ErrorMatches, `invalid checksum algorithm "crc32", must be one of .*`)
	c.Assert(func() { MustParse("") }, qt.PanicMatches, `invalid.*`)
}
