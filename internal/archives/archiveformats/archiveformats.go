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

package archiveformats

import (
	"fmt"
	"strings"

	"github.com/rlsr/rlsr/internal/common/mapsh"
)

const (
	InvalidFormat Format = iota
	Zip
	TarGz
	TarZstd
	TarLz4
	Deb
)

var formatString = map[Format]string{
	// The string values is what users can specify in the config.
	Zip:     "zip",
	TarGz:   "tar_gz",
	TarZstd: "tar_zstd",
	TarLz4:  "tar_lz4",
	Deb:     "deb",
}

var formatExtension = map[Format]string{
	Zip:     ".zip",
	TarGz:   ".tar.gz",
	TarZstd: ".tar.zstd",
	TarLz4:  ".tar.lz4",
	Deb:     ".deb",
}

var stringFormat = map[string]Format{}

func init() {
	for k, v := range formatString {
		stringFormat[v] = k
		// Also accept the extension form, e.g. tar.gz.
		stringFormat[strings.TrimPrefix(formatExtension[k], ".")] = k
	}
}

// Parse parses a string into a Format.
// The empty string is parsed as Zip.
func Parse(s string) (Format, error) {
	if s == "" {
		return Zip, nil
	}
	f := stringFormat[strings.ToLower(s)]
	if f == InvalidFormat {
		return f, fmt.Errorf("invalid archive format %q, must be one of %s", s, mapsh.KeysSorted(formatString))
	}
	return f, nil
}

// MustParse is like Parse but panics if the string is not a valid format.
func MustParse(s string) Format {
	f, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return f
}

// Format represents the type of archive.
type Format int

func (f Format) String() string {
	return formatString[f]
}

// Extension returns the file extension including the leading dot.
func (f Format) Extension() string {
	return formatExtension[f]
}

// FromFilename returns the format of an archive filename by its extension.
func FromFilename(filename string) (Format, bool) {
	for f, ext := range formatExtension {
		if strings.HasSuffix(filename, ext) {
			return f, true
		}
	}
	return InvalidFormat, false
}
