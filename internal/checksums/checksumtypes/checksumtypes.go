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
	"fmt"
	"strings"

	"github.com/rlsr/rlsr/internal/common/mapsh"
)

// Algorithm is a checksum algorithm.
type Algorithm int

const (
	Invalid Algorithm = iota
	SHA256
	SHA512
	SHA3_256
	SHA3_512
	Blake2b
	Blake2s
	MD5
	SHA1
)

var algorithmString = map[Algorithm]string{
	// The string values is what users can specify in the config.
	SHA256:   "sha256",
	SHA512:   "sha512",
	SHA3_256: "sha3-256",
	SHA3_512: "sha3-512",
	Blake2b:  "blake2b",
	Blake2s:  "blake2s",
	MD5:      "md5",
	SHA1:     "sha1",
}

var stringAlgorithm = map[string]Algorithm{}

func init() {
	for k, v := range algorithmString {
		stringAlgorithm[v] = k
	}
}

func (a Algorithm) String() string {
	return algorithmString[a]
}

// Parse parses a string into an Algorithm.
// Both sha3-256 and sha3_256 are accepted.
func Parse(s string) (Algorithm, error) {
	a := stringAlgorithm[strings.ReplaceAll(strings.ToLower(s), "_", "-")]
	if a == Invalid {
		return a, fmt.Errorf("invalid checksum algorithm %q, must be one of %s", s, mapsh.KeysSorted(algorithmString))
	}
	return a, nil
}

// MustParse is like Parse but panics on errors.
func MustParse(s string) Algorithm {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}
