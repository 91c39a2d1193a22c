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
	"fmt"
	"strings"

	"github.com/rlsr/rlsr/internal/common/mapsh"
)

type Type int

const (
	InvalidType Type = iota
	GitHub
	GitLab
	Docker
	S3
)

var typeString = map[Type]string{
	GitHub: "github",
	GitLab: "gitlab",
	Docker: "docker",
	S3:     "s3",
}

var stringType = map[string]Type{}

func init() {
	for k, v := range typeString {
		stringType[v] = k
	}
}

func (t Type) String() string {
	return typeString[t]
}

// Parse parses a string into a Type.
func Parse(s string) (Type, error) {
	t := stringType[strings.ToLower(s)]
	if t == InvalidType {
		return t, fmt.Errorf("invalid publish type %q, must be one of %s", s, mapsh.KeysSorted(typeString))
	}
	return t, nil
}

// MustParse is like Parse but panics on errors.
func MustParse(s string) Type {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}
