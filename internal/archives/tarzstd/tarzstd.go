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

package tarzstd

import (
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/rlsr/rlsr/internal/archives/tarball"
)

// New returns a zstd compressed tar archive using the default encoder level.
func New(out io.WriteCloser) (*tarball.Archive, error) {
	zw, err := zstd.NewWriter(out)
	if err != nil {
		return nil, err
	}
	return tarball.New(out, zw), nil
}
